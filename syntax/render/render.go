/*
DESCRIPTION
  render.go provides text and YAML renderings of decoded field trees.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package render writes decoded field trees for people to read.
package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ausocean/tsinspect/syntax/tree"
)

// Options control rendering.
type Options struct {
	Hidden  bool // Also render fields the template does not show.
	Color   bool // Use ANSI colors and bold text.
	Offsets bool // Start each line with the field's byte position.
}

// ANSI escape sequences.
const (
	reset = "\x1b[0m"
	bold  = "\x1b[1m"
)

var colors = map[string]string{
	"black":   "\x1b[30m",
	"red":     "\x1b[31m",
	"green":   "\x1b[32m",
	"yellow":  "\x1b[33m",
	"blue":    "\x1b[34m",
	"magenta": "\x1b[35m",
	"cyan":    "\x1b[36m",
	"white":   "\x1b[37m",
}

// line is one rendered field.
type line struct {
	depth  int
	prefix string
	label  string
	text   string
	leaf   bool
	node   *tree.Node
}

// lines flattens the tree under n into the fields to render. Fields that are
// not rendered still have their children rendered, at their own depth.
func lines(n *tree.Node, o Options) []line {
	var out []line
	var walk func(n *tree.Node, depth int)
	walk = func(n *tree.Node, depth int) {
		if !n.Visible && !o.Hidden {
			for _, c := range n.Children() {
				walk(c, depth)
			}
			return
		}
		out = append(out, describe(n, depth, o))
		for _, c := range n.Children() {
			walk(c, depth+1)
		}
	}
	walk(n, 0)
	return out
}

func describe(n *tree.Node, depth int, o Options) line {
	l := line{depth: depth, label: n.Name, leaf: n.Kind.Primitive() || n.EmptyLoop(), node: n}
	p := n.Presentation
	if p == nil {
		l.text = Value(n)
		if n.EmptyLoop() {
			l.text = "empty"
		}
		return l
	}
	l.prefix, l.text = p.Prefix, p.Text
	if p.Label != "" {
		l.label = p.Label
	}
	if o.Color {
		l.prefix = paint(l.prefix, p.PrefixColor, false)
		l.label = paint(l.label, p.LabelColor, p.Bold)
	}
	return l
}

func paint(s, color string, b bool) string {
	if s == "" {
		return s
	}
	c := colors[strings.ToLower(color)]
	if b {
		c += bold
	}
	if c == "" {
		return s
	}
	return c + s + reset
}

// Value returns a plain rendering of the value of n, or "" for structural
// fields.
func Value(n *tree.Node) string {
	switch v := n.Value.(type) {
	case tree.UintValue:
		return fmt.Sprint(uint64(v))
	case tree.NibblesValue:
		var sb strings.Builder
		for _, d := range v {
			fmt.Fprintf(&sb, "%X", d)
		}
		return sb.String()
	case tree.BytesValue:
		return fmt.Sprintf("%X", []byte(v))
	case tree.StringValue:
		return string(v)
	default:
		return ""
	}
}

// Text writes the tree under n as indented lines of "label: value".
func Text(w io.Writer, n *tree.Node, o Options) error {
	bw := bufio.NewWriter(w)
	for _, l := range lines(n, o) {
		if o.Offsets {
			fmt.Fprintf(bw, "%04x.%d  ", l.node.Span.Pos, l.node.Span.Off)
		}
		bw.WriteString(strings.Repeat("  ", l.depth))
		if l.prefix != "" {
			bw.WriteString(l.prefix + " ")
		}
		bw.WriteString(l.label)
		if l.text != "" || l.leaf {
			bw.WriteString(": " + l.text)
		}
		bw.WriteByte('\n')
	}
	return errors.Wrap(bw.Flush(), "could not write text")
}

// YAML writes the tree under n as a YAML document. Each field is a single
// entry mapping so that order and repeated names are kept. Colors are never
// used.
func YAML(w io.Writer, n *tree.Node, o Options) error {
	o.Color = false
	ls := lines(n, o)
	var seq yaml.Node
	seq.Kind = yaml.SequenceNode
	build(&seq, ls, 0, len(ls), 0)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&seq); err != nil {
		return errors.Wrap(err, "could not encode yaml")
	}
	return errors.Wrap(enc.Close(), "could not write yaml")
}

// build appends the lines ls[i:j] at the given depth, with their deeper
// followers as children, to seq.
func build(seq *yaml.Node, ls []line, i, j, depth int) {
	for i < j {
		l := ls[i]
		k := i + 1
		for k < j && ls[k].depth > depth {
			k++
		}

		label := l.label
		if p := strings.TrimSpace(l.prefix); p != "" {
			label = p + " " + label
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: label}
		var val *yaml.Node
		if k == i+1 {
			val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: l.text}
		} else {
			val = &yaml.Node{Kind: yaml.SequenceNode}
			build(val, ls, i+1, k, depth+1)
		}
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{key, val}})
		i = k
	}
}
