/*
DESCRIPTION
  grammar.go defines the field definitions that make up a descriptor or
  section template, and their self consistency checks.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package grammar provides the template model that drives decoding of MPEG-2
// and DVB descriptors and sections, and a registry of templates by
// identifier.
package grammar

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ausocean/tsinspect/syntax/text"
)

// ErrInvalid is returned when a definition fails its consistency checks.
var ErrInvalid = errors.New("invalid grammar")

// Def is one entry of a field definition list. It is one of *DataField,
// *ConditionalField, *LoopField or DescriptorMarker.
type Def interface {
	def()
	Validate() error
}

// Encoding is the wire encoding of a data field.
type Encoding int

// Data field encodings.
const (
	Bits     Encoding = iota // Bit string, any alignment.
	Uint                     // Unsigned integer ending on a byte boundary.
	Checksum                 // 8, 16, 32 or 64 bits starting on a byte boundary.
	Nibbles                  // Array of 4 bit values.
	Octets                   // Array of bytes.
	Text                     // Character set encoded bytes.
)

var encodingNames = [...]string{
	Bits:     "bits",
	Uint:     "uint",
	Checksum: "checksum",
	Nibbles:  "nibbles",
	Octets:   "octets",
	Text:     "text",
}

func (e Encoding) String() string {
	if e < 0 || int(e) >= len(encodingNames) {
		return fmt.Sprintf("encoding(%d)", int(e))
	}
	return encodingNames[e]
}

// LengthKind selects how a length is resolved.
type LengthKind int

// Length resolution strategies.
const (
	Const    LengthKind = iota // A fixed number.
	Ref                        // The value of a previously decoded field plus Correction.
	Implicit                   // Everything up to the end of the enclosing structure.
)

// Length describes the length of a field or loop. For bit string, unsigned
// integer and checksum fields the length is in bits; for nibble arrays in
// nibbles; for octet arrays and text in bytes. For loops it is a repetition
// count or a byte length depending on the discipline.
type Length struct {
	Kind       LengthKind
	N          int    // Used by Const.
	Field      string // Used by Ref.
	Correction int    // Added to the resolved length.
}

// Fixed returns a constant length.
func Fixed(n int) Length { return Length{Kind: Const, N: n} }

// FromField returns a length taken from the named field plus correction.
func FromField(name string, correction int) Length {
	return Length{Kind: Ref, Field: name, Correction: correction}
}

// ToEnd returns an implicit length reaching the end of the structure.
func ToEnd(correction int) Length { return Length{Kind: Implicit, Correction: correction} }

func (l Length) String() string {
	switch l.Kind {
	case Const:
		if l.Correction != 0 {
			return fmt.Sprintf("%d%+d", l.N, l.Correction)
		}
		return fmt.Sprint(l.N)
	case Ref:
		return fmt.Sprintf("%s%+d", l.Field, l.Correction)
	default:
		return fmt.Sprintf("implicit%+d", l.Correction)
	}
}

// DataField defines a primitive field.
type DataField struct {
	Name     string
	Encoding Encoding
	Length   Length
	Charset  text.Charset // Used by Text.
	Present  *Present     // Nil for fields that are decoded but not shown.
}

// ConditionalField selects Then or Else depending on a previously decoded
// value.
type ConditionalField struct {
	Name string
	Cond Condition
	Then []Def
	Else []Def
}

// Discipline is the termination rule of a loop.
type Discipline int

// Loop disciplines.
const (
	ByCount  Discipline = iota // Length gives the number of repetitions.
	ByLength                   // Length gives the number of bytes.
)

// LoopField repeats Body. A Body whose first element is Descriptors is a
// descriptor loop and the rest of the body is ignored.
type LoopField struct {
	Name       string
	Discipline Discipline
	Length     Length
	Body       []Def
	NoHeader   bool     // Attach entries to the enclosing node.
	Header     *Present // Presentation of the loop header.
	Entry      Entry    // Labelling of loop entries.
}

// DescriptorLoop reports whether l iterates over descriptors.
func (l *LoopField) DescriptorLoop() bool {
	if len(l.Body) == 0 {
		return false
	}
	_, ok := l.Body[0].(DescriptorMarker)
	return ok
}

// Entry describes how loop entries are labelled. If Indexed is set it is a
// format taking the 1-based entry number, otherwise Fixed is used, otherwise
// "entry N".
type Entry struct {
	Fixed   string
	Indexed string
}

// Label returns the label of entry i, counting from 1.
func (e Entry) Label(i int) string {
	switch {
	case e.Indexed != "":
		return fmt.Sprintf(e.Indexed, i)
	case e.Fixed != "":
		return e.Fixed
	default:
		return fmt.Sprintf("entry %d", i)
	}
}

// DescriptorMarker in a definition list means "a descriptor goes here".
type DescriptorMarker struct{}

// Descriptors is the descriptor marker.
var Descriptors = DescriptorMarker{}

func (*DataField) def()        {}
func (*ConditionalField) def() {}
func (*LoopField) def()        {}
func (DescriptorMarker) def()  {}

func invalid(name, format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, "field %q: %s", name, fmt.Sprintf(format, args...))
}

// Validate checks f for consistency.
func (f *DataField) Validate() error {
	l := f.Length
	if l.Kind < Const || l.Kind > Implicit {
		return invalid(f.Name, "unknown length kind %d", l.Kind)
	}
	if l.Kind == Const && l.N < 0 {
		return invalid(f.Name, "negative length %d", l.N)
	}
	if l.Kind == Ref && l.Field == "" {
		return invalid(f.Name, "length reference has no field name")
	}
	if l.Kind == Const && l.N+l.Correction < 0 {
		return invalid(f.Name, "length %d with correction %d is negative", l.N, l.Correction)
	}

	switch f.Encoding {
	case Bits, Uint:
		if l.Kind != Const || l.Correction != 0 || l.N < 1 || l.N > 64 {
			return invalid(f.Name, "%v needs a constant length of 1 to 64 bits, have %v", f.Encoding, l)
		}
	case Checksum:
		if l.Kind != Const || l.Correction != 0 {
			return invalid(f.Name, "checksum needs a constant length without correction")
		}
		switch l.N {
		case 8, 16, 32, 64:
		default:
			return invalid(f.Name, "checksum length must be 8, 16, 32 or 64 bits, have %d", l.N)
		}
	case Nibbles, Octets:
	case Text:
		if !f.Charset.Valid() {
			return invalid(f.Name, "unknown charset %d", int(f.Charset))
		}
	default:
		return invalid(f.Name, "unknown encoding %d", int(f.Encoding))
	}
	return f.Present.validate(f.Name)
}

// Validate checks c and its branches for consistency.
func (c *ConditionalField) Validate() error {
	if err := c.Cond.Check(); err != nil {
		return errors.Wrapf(err, "field %q", c.Name)
	}
	if err := validateList(c.Then); err != nil {
		return err
	}
	return validateList(c.Else)
}

// Validate checks l and its body for consistency.
func (l *LoopField) Validate() error {
	switch l.Discipline {
	case ByCount:
		if l.Length.Kind == Implicit {
			return invalid(l.Name, "loop by count cannot have an implicit length")
		}
	case ByLength:
		if l.Length.Kind == Const {
			return invalid(l.Name, "loop by length needs a field reference or implicit length")
		}
	default:
		return invalid(l.Name, "unknown loop discipline %d", l.Discipline)
	}
	if l.Length.Kind == Ref && l.Length.Field == "" {
		return invalid(l.Name, "loop length reference has no field name")
	}
	if len(l.Body) == 0 {
		return invalid(l.Name, "loop has an empty body")
	}
	if l.DescriptorLoop() {
		return nil
	}
	if err := l.Header.validate(l.Name); err != nil {
		return err
	}
	return validateList(l.Body)
}

// Validate always succeeds for the descriptor marker.
func (DescriptorMarker) Validate() error { return nil }

func validateList(defs []Def) error {
	for i, d := range defs {
		if d == nil {
			return errors.Wrapf(ErrInvalid, "nil definition at index %d", i)
		}
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}
