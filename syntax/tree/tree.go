/*
DESCRIPTION
  tree.go provides the field tree produced by template decoding: one node per
  decoded field, with parent, child and previous sibling links so that named
  fields can be found from any position in the tree.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package tree provides the decoded field tree.
package tree

import "fmt"

// Kind is the kind of a decoded field.
type Kind int

// Field kinds. The first six are primitive and always carry a Value.
const (
	BitString Kind = iota
	Uint
	Checksum
	Nibbles
	Octets
	Text
	Complex   // Root of a descriptor or section.
	Loop      // Loop header, or an empty loop marker.
	LoopEntry // Header of one loop iteration.
)

var kindNames = [...]string{
	BitString: "bslbf",
	Uint:      "uimsbf",
	Checksum:  "checksum",
	Nibbles:   "nibbles",
	Octets:    "octets",
	Text:      "text",
	Complex:   "complex",
	Loop:      "loop",
	LoopEntry: "entry",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Primitive reports whether fields of kind k carry a value.
func (k Kind) Primitive() bool { return k >= BitString && k <= Text }

// Value is the raw value of a primitive field. It is one of UintValue,
// NibblesValue, BytesValue or StringValue.
type Value interface {
	value()
}

// UintValue holds bit string, unsigned integer and checksum values.
type UintValue uint64

// NibblesValue holds nibble array values, each in the range 0-15.
type NibblesValue []int

// BytesValue holds octet array values.
type BytesValue []byte

// StringValue holds decoded text.
type StringValue string

func (UintValue) value()    {}
func (NibblesValue) value() {}
func (BytesValue) value()   {}
func (StringValue) value()  {}

// matches reports whether v is the value type required for kind k.
func matches(k Kind, v Value) bool {
	switch k {
	case BitString, Uint, Checksum:
		_, ok := v.(UintValue)
		return ok
	case Nibbles:
		_, ok := v.(NibblesValue)
		return ok
	case Octets:
		_, ok := v.(BytesValue)
		return ok
	case Text:
		_, ok := v.(StringValue)
		return ok
	default:
		return v == nil
	}
}

// Presentation holds the strings a renderer needs to display a field.
type Presentation struct {
	Prefix      string
	PrefixColor string
	Label       string
	LabelColor  string
	Bold        bool
	Text        string // Rendered value.
}

// Span locates a field in the decoded buffer.
type Span struct {
	Pos  int // Byte position of the first bit.
	Off  int // Offset of the first bit within Pos, 0-7.
	Bits int // Length in bits.
}

// Node is one decoded field.
type Node struct {
	Kind         Kind
	Name         string
	Value        Value
	Visible      bool
	Presentation *Presentation
	Span         Span

	empty    bool
	parent   *Node
	prev     *Node
	children []*Node
}

// New returns a new node. New panics if v is not the value type for k.
func New(k Kind, name string, v Value) *Node {
	if !matches(k, v) {
		panic(fmt.Sprintf("tree: value %T does not match kind %v", v, k))
	}
	return &Node{Kind: k, Name: name, Value: v}
}

// NewEmptyLoop returns a marker node for a loop with no entries.
func NewEmptyLoop(name string) *Node {
	return &Node{Kind: Loop, Name: name, empty: true}
}

// EmptyLoop reports whether n marks a loop that had no entries.
func (n *Node) EmptyLoop() bool { return n.empty }

// Append adds c as the last child of n. Append panics if c already has a
// parent or is n itself.
func (n *Node) Append(c *Node) {
	if c.parent != nil || c == n {
		panic(fmt.Sprintf("tree: node %q already attached", c.Name))
	}
	c.parent = n
	if len(n.children) > 0 {
		c.prev = n.children[len(n.children)-1]
	}
	n.children = append(n.children, c)
}

// Parent returns the parent of n, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Prev returns the sibling decoded before n, or nil.
func (n *Node) Prev() *Node { return n.prev }

// Children returns the children of n in decode order. The slice must not be
// modified.
func (n *Node) Children() []*Node { return n.children }

// Last returns the most recently appended child of n, or nil.
func (n *Node) Last() *Node {
	if len(n.children) == 0 {
		return nil
	}
	return n.children[len(n.children)-1]
}

// Uint returns the value of a bit string, unsigned integer or checksum node.
func (n *Node) Uint() (uint64, bool) {
	v, ok := n.Value.(UintValue)
	return uint64(v), ok
}

// Lookup finds the most recently decoded field with the given name visible
// from n. The children of n are searched newest first, then the earlier
// siblings of n and of each of its ancestors in turn. The search is by tree
// position, not by template scope, so a name reused in an enclosing level
// resolves to the nearest match.
func (n *Node) Lookup(name string) (*Node, bool) {
	for c := n.Last(); c != nil; c = c.prev {
		if c.Name == name {
			return c, true
		}
	}
	for a := n; a != nil; a = a.parent {
		for s := a.prev; s != nil; s = s.prev {
			if s.Name == name {
				return s, true
			}
		}
	}
	return nil, false
}

// Walk calls fn for n and its descendants, depth first, with the depth of
// each node below n. Children of a node are skipped if fn returns false.
func (n *Node) Walk(fn func(n *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.children {
		c.walk(fn, depth+1)
	}
}

// Find returns the first node in depth first order below n, including n,
// with the given name.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Walk(func(c *Node, _ int) bool {
		if found != nil {
			return false
		}
		if c.Name == name {
			found = c
			return false
		}
		return true
	})
	return found
}
