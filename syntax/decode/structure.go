/*
DESCRIPTION
  structure.go provides decoding of conditional fields and loops.

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

	"github.com/pkg/errors"

	"github.com/ausocean/tsinspect/syntax/grammar"
	"github.com/ausocean/tsinspect/syntax/tree"
)

// conditional decodes the Then or Else list of c under parent.
func (s *session) conditional(c *grammar.ConditionalField, parent *tree.Node, pos, off, limit int) (int, error) {
	if err := c.Cond.Check(); err != nil {
		return 0, errors.Wrapf(err, "field %q", c.Name)
	}
	v, err := reference(c.Name, c.Cond.Field, parent)
	if err != nil {
		return 0, err
	}
	defs := c.Else
	if c.Cond.Eval(v) {
		defs = c.Then
	}
	return s.list(defs, parent, pos, off, limit)
}

// loop decodes the loop l under parent.
func (s *session) loop(l *grammar.LoopField, parent *tree.Node, pos, off, limit int) (int, error) {
	if off != 0 {
		return 0, errors.Wrapf(ErrAlignment, "loop %q at bit offset %d", l.Name, off)
	}
	if len(l.Body) == 0 {
		return 0, errors.Wrapf(ErrInvalidGrammar, "loop %q has an empty body", l.Name)
	}

	n, err := s.loopLength(l, parent, pos, limit)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		parent.Append(emptyLoop(l, pos))
		return 0, nil
	}

	holder := parent
	if !l.NoHeader {
		holder = tree.New(tree.Loop, l.Name, nil)
		holder.Span = tree.Span{Pos: pos}
		if l.Header != nil {
			holder.Visible = true
			holder.Presentation = &tree.Presentation{
				Prefix:      l.Header.Prefix,
				PrefixColor: l.Header.PrefixColor,
				Label:       l.Header.LabelOr(l.Name),
				LabelColor:  l.Header.LabelColor,
				Bold:        l.Header.Bold,
			}
		}
		parent.Append(holder)
	}

	var total int
	switch l.Discipline {
	case grammar.ByCount:
		avail := (limit - pos) * 8
		for i := 1; i <= n; i++ {
			p, o := advance(pos, 0, total)
			used, err := s.iteration(l, holder, i, p, o, limit)
			if err != nil {
				return 0, errors.Wrapf(err, "loop %q entry %d", l.Name, i)
			}
			// A count beyond the bits remaining can only be met by empty
			// iterations, which a malformed count could repeat for a very long time.
			if used == 0 && n > avail {
				return 0, errors.Wrapf(ErrNonTerminating, "loop %q: count %d with empty iterations", l.Name, n)
			}
			total += used
		}

	case grammar.ByLength:
		if n > limit-pos {
			return 0, errors.Wrapf(ErrBounds, "loop %q: %d bytes at %d exceed limit %d", l.Name, n, pos, limit)
		}
		end := pos + n
		for i := 1; pos*8+total < end*8; i++ {
			p, o := advance(pos, 0, total)
			used, err := s.iteration(l, holder, i, p, o, end)
			if err != nil {
				return 0, errors.Wrapf(err, "loop %q entry %d", l.Name, i)
			}
			if used == 0 {
				return 0, errors.Wrapf(ErrNonTerminating, "loop %q entry %d consumed no bits", l.Name, i)
			}
			total += used
		}

	default:
		return 0, errors.Wrapf(ErrInvalidGrammar, "loop %q: unknown discipline %d", l.Name, l.Discipline)
	}

	if holder != parent {
		holder.Span.Bits = total
	}
	return total, nil
}

// loopLength returns the repetition count or byte length of l.
func (s *session) loopLength(l *grammar.LoopField, scope *tree.Node, pos, limit int) (int, error) {
	switch {
	case l.Discipline == grammar.ByCount && l.Length.Kind == grammar.Implicit:
		return 0, errors.Wrapf(ErrInvalidGrammar, "loop %q: count cannot be implicit", l.Name)
	case l.Discipline == grammar.ByLength && l.Length.Kind == grammar.Const:
		return 0, errors.Wrapf(ErrInvalidGrammar, "loop %q: byte length cannot be constant", l.Name)
	}
	return resolve(l.Name, l.Length, scope, limit-pos)
}

// iteration decodes entry i of l under holder and returns the bits consumed.
func (s *session) iteration(l *grammar.LoopField, holder *tree.Node, i, pos, off, limit int) (int, error) {
	if l.DescriptorLoop() {
		if off != 0 {
			return 0, errors.Wrapf(ErrAlignment, "descriptor at bit offset %d", off)
		}
		node, used, err := s.descriptor(pos, limit)
		if err != nil {
			return 0, err
		}
		holder.Append(node)
		return used, nil
	}

	entry := tree.New(tree.LoopEntry, fmt.Sprintf("%s[%d]", l.Name, i), nil)
	entry.Span = tree.Span{Pos: pos, Off: off}
	if l.Header != nil || l.Entry != (grammar.Entry{}) {
		entry.Visible = true
		entry.Presentation = &tree.Presentation{Label: l.Entry.Label(i)}
	}
	holder.Append(entry)
	used, err := s.list(l.Body, entry, pos, off, limit)
	if err != nil {
		return 0, err
	}
	entry.Span.Bits = used
	return used, nil
}

// emptyLoop returns the marker for a loop with no entries.
func emptyLoop(l *grammar.LoopField, pos int) *tree.Node {
	n := tree.NewEmptyLoop(l.Name)
	n.Span = tree.Span{Pos: pos}
	if l.Header != nil {
		n.Visible = true
		n.Presentation = &tree.Presentation{
			Prefix: l.Header.Prefix,
			Label:  l.Header.LabelOr(l.Name),
			Text:   "empty",
		}
	}
	return n
}
