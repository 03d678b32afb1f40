/*
DESCRIPTION
  decode.go provides the Decoder, which decodes descriptors and sections into
  field trees using templates from a grammar.Registry.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package decode decodes MPEG-2 and DVB descriptors and sections into field
// trees, driven by the templates of a grammar.Registry.
//
// Decoding is synchronous and allocates a new tree per call; a Decoder may be
// used by several goroutines at once.
package decode

import (
	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	"github.com/ausocean/tsinspect/syntax/bits"
	"github.com/ausocean/tsinspect/syntax/grammar"
	"github.com/ausocean/tsinspect/syntax/tree"
)

// Header sizes in bytes.
const (
	descriptorHeaderLen = 2 // descriptor_tag, descriptor_length.
	sectionHeaderLen    = 3 // table_id, flags and 12 bit section_length.
)

// unparsedName names the node holding bytes a template did not cover.
const unparsedName = "unparsed"

// Decoder decodes descriptors and sections.
type Decoder struct {
	reg *grammar.Registry
	log logging.Logger
}

// New returns a Decoder that finds templates in reg.
func New(reg *grammar.Registry, log logging.Logger) *Decoder {
	return &Decoder{reg: reg, log: log}
}

// session holds the state of one top level decode call.
type session struct {
	buf  *bits.Buffer
	snap *grammar.Snapshot
	log  logging.Logger
}

func (d *Decoder) session(buf *bits.Buffer) *session {
	return &session{buf: buf, snap: d.reg.Snapshot(), log: d.log}
}

// Descriptor decodes the descriptor at pos, which must end at or before the
// byte index limit. It returns the root node of the descriptor and the
// number of bits it occupies, which is always the size declared by its
// header.
func (d *Decoder) Descriptor(buf *bits.Buffer, pos, limit int) (*tree.Node, int, error) {
	return d.session(buf).descriptor(pos, clamp(limit, buf))
}

// Section decodes the section at pos, which must end at or before the byte
// index limit. It returns the root node of the section and the number of
// bits it occupies, which is always the size declared by its header.
func (d *Decoder) Section(buf *bits.Buffer, pos, limit int) (*tree.Node, int, error) {
	return d.session(buf).section(pos, clamp(limit, buf))
}

// Descriptors decodes consecutive descriptors from pos up to limit, as found
// in a descriptor loop. It returns the root node of each descriptor and the
// number of bits consumed.
func (d *Decoder) Descriptors(buf *bits.Buffer, pos, limit int) ([]*tree.Node, int, error) {
	s := d.session(buf)
	limit = clamp(limit, buf)
	var (
		nodes []*tree.Node
		start = pos
	)
	for pos < limit {
		n, used, err := s.descriptor(pos, limit)
		if err != nil {
			return nodes, (pos - start) * 8, err
		}
		nodes = append(nodes, n)
		pos += used / 8
	}
	return nodes, (pos - start) * 8, nil
}

func clamp(limit int, buf *bits.Buffer) int {
	if limit > buf.Len() {
		return buf.Len()
	}
	return limit
}

func (s *session) descriptor(pos, limit int) (*tree.Node, int, error) {
	if pos < 0 || pos+descriptorHeaderLen > limit {
		return nil, 0, errors.Wrapf(ErrBounds, "descriptor header at %d exceeds limit %d", pos, limit)
	}
	tag, _ := s.buf.Uint8(pos)
	l, _ := s.buf.Uint8(pos + 1)
	end := pos + descriptorHeaderLen + int(l)
	if end > limit {
		return nil, 0, errors.Wrapf(ErrBounds, "descriptor 0x%02x at %d with length %d exceeds limit %d", tag, pos, l, limit)
	}

	key := grammar.TagKey(tag)
	if tag == grammar.ExtensionTag && l > 0 {
		ext, _ := s.buf.Uint8(pos + descriptorHeaderLen)
		key = grammar.ExtKey(tag, ext)
	}
	g, ok := s.snap.Descriptor(key)
	if !ok {
		s.log.Debug("no template for descriptor, using default", "key", key.String(), "pos", pos)
	}

	root, err := s.structure(g.Name, g.Fields, pos, end)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "descriptor %s (%v) at %d", g.Name, key, pos)
	}
	return root, (end - pos) * 8, nil
}

func (s *session) section(pos, limit int) (*tree.Node, int, error) {
	if pos < 0 || pos+sectionHeaderLen > limit {
		return nil, 0, errors.Wrapf(ErrBounds, "section header at %d exceeds limit %d", pos, limit)
	}
	id, _ := s.buf.Uint8(pos)
	w, _ := s.buf.Uint16(pos + 1)
	l := int(w & 0x0fff)
	end := pos + sectionHeaderLen + l
	if end > limit {
		return nil, 0, errors.Wrapf(ErrBounds, "section 0x%02x at %d with length %d exceeds limit %d", id, pos, l, limit)
	}

	g, ok := s.snap.Section(id)
	if !ok {
		s.log.Debug("no template for table, using default", "tableID", id, "pos", pos)
	}

	root, err := s.structure(g.Name, g.Fields, pos, end)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "section %s (0x%02x) at %d", g.Name, id, pos)
	}
	return root, (end - pos) * 8, nil
}

// structure decodes defs into a new root node spanning pos to end. Bytes
// the template leaves undecoded are kept in a hidden node.
func (s *session) structure(name string, defs []grammar.Def, pos, end int) (*tree.Node, error) {
	root := tree.New(tree.Complex, name, nil)
	root.Visible = true
	root.Presentation = &tree.Presentation{Label: name}
	root.Span = tree.Span{Pos: pos, Bits: (end - pos) * 8}

	used, err := s.list(defs, root, pos, 0, end)
	if err != nil {
		return nil, err
	}

	declared := (end - pos) * 8
	if used < declared {
		s.log.Debug("template did not cover structure", "name", name, "used", used, "declared", declared)
		if used%8 == 0 {
			rest := pos + used/8
			b, _ := s.buf.Bytes(rest, end-rest)
			n := tree.New(tree.Octets, unparsedName, tree.BytesValue(b))
			n.Span = tree.Span{Pos: rest, Bits: (end - rest) * 8}
			root.Append(n)
		}
	}
	return root, nil
}

// list decodes defs in order under parent, starting off bits into the byte
// at pos, and returns the number of bits consumed.
func (s *session) list(defs []grammar.Def, parent *tree.Node, pos, off, limit int) (int, error) {
	total := 0
	for _, def := range defs {
		p, o := advance(pos, off, total)
		used, err := s.def(def, parent, p, o, limit)
		if err != nil {
			return 0, err
		}
		total += used
	}
	return total, nil
}

// advance returns the byte position and bit offset n bits after pos, off.
func advance(pos, off, n int) (int, int) {
	bit := off + n
	return pos + bit/8, bit % 8
}

func (s *session) def(def grammar.Def, parent *tree.Node, pos, off, limit int) (int, error) {
	switch d := def.(type) {
	case *grammar.DataField:
		node, used, err := Field(s.buf, d, parent, pos, off, limit)
		if err != nil {
			return 0, err
		}
		parent.Append(node)
		return used, nil
	case *grammar.ConditionalField:
		return s.conditional(d, parent, pos, off, limit)
	case *grammar.LoopField:
		return s.loop(d, parent, pos, off, limit)
	case grammar.DescriptorMarker:
		if off != 0 {
			return 0, errors.Wrapf(ErrAlignment, "descriptor at bit offset %d", off)
		}
		node, used, err := s.descriptor(pos, limit)
		if err != nil {
			return 0, err
		}
		parent.Append(node)
		return used, nil
	default:
		return 0, errors.Wrapf(ErrInvalidGrammar, "unknown definition %T", def)
	}
}
