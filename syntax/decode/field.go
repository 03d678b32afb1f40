/*
DESCRIPTION
  field.go provides decoding of single data fields: bit strings, unsigned
  integers, checksums, nibble arrays, octet arrays and text.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package decode

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/ausocean/tsinspect/syntax/bits"
	"github.com/ausocean/tsinspect/syntax/grammar"
	"github.com/ausocean/tsinspect/syntax/text"
	"github.com/ausocean/tsinspect/syntax/tree"
)

var kinds = [...]tree.Kind{
	grammar.Bits:     tree.BitString,
	grammar.Uint:     tree.Uint,
	grammar.Checksum: tree.Checksum,
	grammar.Nibbles:  tree.Nibbles,
	grammar.Octets:   tree.Octets,
	grammar.Text:     tree.Text,
}

// Field decodes the data field f starting off bits into the byte at pos.
// The field must end at or before the byte index limit. Length references
// are resolved from scope, the node the field will be appended to. Field
// returns the new node, which is not attached to scope, and the number of
// bits consumed.
func Field(buf *bits.Buffer, f *grammar.DataField, scope *tree.Node, pos, off, limit int) (*tree.Node, int, error) {
	if err := f.Validate(); err != nil {
		return nil, 0, err
	}
	if limit > buf.Len() {
		limit = buf.Len()
	}

	var (
		n   int // Length in bits.
		v   tree.Value
		txt string
		err error
	)
	switch f.Encoding {
	case grammar.Bits, grammar.Uint:
		n = f.Length.N
		if f.Encoding == grammar.Uint && (off+n)%8 != 0 {
			return nil, 0, errors.Wrapf(ErrAlignment, "field %q: %d bit integer at bit offset %d does not end on a byte boundary", f.Name, n, off)
		}
		if err = span(f.Name, pos, off, n, limit); err != nil {
			return nil, 0, err
		}
		var u uint64
		u, err = buf.Bits(pos, off, n)
		v, txt = tree.UintValue(u), f.Present.Number(u, n)

	case grammar.Checksum:
		n = f.Length.N
		if off != 0 {
			return nil, 0, errors.Wrapf(ErrAlignment, "field %q: checksum at bit offset %d", f.Name, off)
		}
		if err = span(f.Name, pos, off, n, limit); err != nil {
			return nil, 0, err
		}
		var u uint64
		u, err = buf.Bits(pos, 0, n)
		v, txt = tree.UintValue(u), grammar.FormatUint(u, n, grammar.Hex)
		if f.Present != nil && f.Present.Mapper != nil {
			txt = f.Present.Number(u, n)
		}

	case grammar.Nibbles:
		if off != 0 && off != 4 {
			return nil, 0, errors.Wrapf(ErrAlignment, "field %q: nibbles at bit offset %d", f.Name, off)
		}
		var count int
		avail := ((limit-pos)*8 - off) / 4
		count, err = resolve(f.Name, f.Length, scope, avail)
		if err != nil {
			return nil, 0, err
		}
		if count > avail {
			return nil, 0, errors.Wrapf(ErrBounds, "field %q: %d nibbles at byte %d bit %d exceed limit %d", f.Name, count, pos, off, limit)
		}
		n = 4 * count
		if err = span(f.Name, pos, off, n, limit); err != nil {
			return nil, 0, err
		}
		var nib []int
		nib, err = buf.Nibbles(pos, off, count)
		v, txt = tree.NibblesValue(nib), nibbleString(nib)

	case grammar.Octets, grammar.Text:
		if off != 0 {
			return nil, 0, errors.Wrapf(ErrAlignment, "field %q: %v at bit offset %d", f.Name, f.Encoding, off)
		}
		var count int
		count, err = resolve(f.Name, f.Length, scope, limit-pos)
		if err != nil {
			return nil, 0, err
		}
		if count > limit-pos {
			return nil, 0, errors.Wrapf(ErrBounds, "field %q: %d bytes at %d exceed limit %d", f.Name, count, pos, limit)
		}
		n = 8 * count
		if err = span(f.Name, pos, off, n, limit); err != nil {
			return nil, 0, err
		}
		var b []byte
		b, err = buf.Bytes(pos, count)
		if err != nil {
			break
		}
		if f.Encoding == grammar.Octets {
			v, txt = tree.BytesValue(b), fmt.Sprintf("%X", b)
			break
		}
		var s string
		s, err = text.Decode(b, f.Charset)
		if err != nil {
			// Undecodable text is still shown rather than failing the structure.
			s, err = text.Decode(b, text.ASCII)
		}
		v, txt = tree.StringValue(s), s

	default:
		return nil, 0, errors.Wrapf(ErrInvalidGrammar, "field %q: unknown encoding %d", f.Name, int(f.Encoding))
	}
	if err != nil {
		return nil, 0, errors.Wrapf(ErrBounds, "field %q: %v", f.Name, err)
	}

	node := tree.New(kinds[f.Encoding], f.Name, v)
	node.Span = tree.Span{Pos: pos, Off: off, Bits: n}
	if p := f.Present; p != nil {
		node.Visible = true
		node.Presentation = &tree.Presentation{
			Prefix:      p.Prefix,
			PrefixColor: p.PrefixColor,
			Label:       p.LabelOr(f.Name),
			LabelColor:  p.LabelColor,
			Bold:        p.Bold,
			Text:        txt,
		}
	}
	return node, n, nil
}

// span returns ErrBounds if n bits starting off bits into pos extend past
// the byte index limit.
func span(name string, pos, off, n, limit int) error {
	if pos < 0 || pos*8+off+n > limit*8 {
		return errors.Wrapf(ErrBounds, "field %q: %d bits at byte %d bit %d exceed limit %d", name, n, pos, off, limit)
	}
	return nil
}

// maxLength bounds referenced lengths so later scaling to bits cannot overflow.
const maxLength = math.MaxInt32

// resolve returns the value of length l, correction included. avail is the
// number of units remaining before the limit and is the basis of implicit
// lengths.
func resolve(name string, l grammar.Length, scope *tree.Node, avail int) (int, error) {
	var n int
	switch l.Kind {
	case grammar.Const:
		n = l.N + l.Correction
	case grammar.Ref:
		v, err := reference(name, l.Field, scope)
		if err != nil {
			return 0, err
		}
		if v > maxLength {
			return 0, errors.Wrapf(ErrBounds, "field %q: %q holds length %d", name, l.Field, v)
		}
		n = int(v) + l.Correction
	case grammar.Implicit:
		n = avail + l.Correction
	default:
		return 0, errors.Wrapf(ErrInvalidGrammar, "field %q: unknown length kind %d", name, l.Kind)
	}
	if n < 0 {
		return 0, errors.Wrapf(ErrBounds, "field %q: length %v resolves to %d", name, l, n)
	}
	return n, nil
}

// reference returns the numeric value of the field ref visible from scope.
func reference(name, ref string, scope *tree.Node) (uint64, error) {
	if scope == nil {
		return 0, errors.Wrapf(ErrUnresolvedReference, "field %q: no scope to find %q", name, ref)
	}
	node, ok := scope.Lookup(ref)
	if !ok {
		return 0, errors.Wrapf(ErrUnresolvedReference, "field %q: %q not found", name, ref)
	}
	v, ok := node.Uint()
	if !ok {
		return 0, errors.Wrapf(ErrUnresolvedReference, "field %q: %q is %v, not numeric", name, ref, node.Kind)
	}
	return v, nil
}

func nibbleString(nib []int) string {
	var sb strings.Builder
	for _, n := range nib {
		sb.WriteByte("0123456789ABCDEF"[n])
	}
	return sb.String()
}
