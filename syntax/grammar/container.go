/*
DESCRIPTION
  container.go provides the descriptor and section templates and the built in
  default templates used for identifiers with no registered template.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package grammar

import (
	"fmt"

	"github.com/pkg/errors"
)

// ExtensionTag is the descriptor tag whose descriptors carry a tag extension
// byte after the length.
const ExtensionTag = 0x7f

// NoExt is the DescriptorKey.Ext of descriptors without a tag extension.
const NoExt = -1

// DescriptorKey identifies a descriptor template.
type DescriptorKey struct {
	Tag uint8
	Ext int // Tag extension, or NoExt.
}

// TagKey returns the key of a descriptor without a tag extension.
func TagKey(tag uint8) DescriptorKey { return DescriptorKey{Tag: tag, Ext: NoExt} }

// ExtKey returns the key of an extension descriptor.
func ExtKey(tag, ext uint8) DescriptorKey { return DescriptorKey{Tag: tag, Ext: int(ext)} }

func (k DescriptorKey) String() string {
	if k.Ext == NoExt {
		return fmt.Sprintf("0x%02x", k.Tag)
	}
	return fmt.Sprintf("0x%02x/0x%02x", k.Tag, k.Ext)
}

// DescriptorGrammar is the template of a descriptor. Fields include the tag
// and length header fields.
type DescriptorGrammar struct {
	Name   string
	Key    DescriptorKey
	Fields []Def
}

// Validate checks g and its fields for consistency.
func (g *DescriptorGrammar) Validate() error {
	if g.Name == "" {
		return errors.Wrapf(ErrInvalid, "descriptor %v has no name", g.Key)
	}
	if g.Key.Ext < NoExt || g.Key.Ext > 0xff {
		return errors.Wrapf(ErrInvalid, "descriptor %q: tag extension %d out of range", g.Name, g.Key.Ext)
	}
	return errors.Wrapf(validateList(g.Fields), "descriptor %q", g.Name)
}

// SectionGrammar is the template of a section, registered under each of
// TableIDs. Fields include the table_id and section_length header fields.
type SectionGrammar struct {
	Name     string
	TableIDs []uint8
	Fields   []Def
}

// Validate checks g and its fields for consistency.
func (g *SectionGrammar) Validate() error {
	if g.Name == "" {
		return errors.Wrapf(ErrInvalid, "section %v has no name", g.TableIDs)
	}
	if len(g.TableIDs) == 0 {
		return errors.Wrapf(ErrInvalid, "section %q has no table ids", g.Name)
	}
	return errors.Wrapf(validateList(g.Fields), "section %q", g.Name)
}

func present(label string, f Format) *Present { return &Present{Label: label, Format: f} }

// DefaultDescriptor is used for descriptors with no registered template. It
// decodes the header and leaves the body as raw bytes.
var DefaultDescriptor = &DescriptorGrammar{
	Name: "descriptor",
	Key:  TagKey(0),
	Fields: []Def{
		&DataField{Name: "descriptor_tag", Encoding: Uint, Length: Fixed(8), Present: present("descriptor_tag", Hex)},
		&DataField{Name: "descriptor_length", Encoding: Uint, Length: Fixed(8), Present: present("descriptor_length", Dec)},
		&DataField{Name: "payload", Encoding: Octets, Length: ToEnd(0), Present: present("payload", Hex)},
	},
}

// DefaultSection is used for sections with no registered template. It
// decodes the private section header and leaves the body as raw bytes.
var DefaultSection = &SectionGrammar{
	Name: "section",
	Fields: []Def{
		&DataField{Name: "table_id", Encoding: Uint, Length: Fixed(8), Present: present("table_id", Hex)},
		&DataField{Name: "section_syntax_indicator", Encoding: Bits, Length: Fixed(1), Present: present("section_syntax_indicator", Dec)},
		&DataField{Name: "private_indicator", Encoding: Bits, Length: Fixed(1), Present: present("private_indicator", Dec)},
		&DataField{Name: "reserved", Encoding: Bits, Length: Fixed(2)},
		&DataField{Name: "section_length", Encoding: Uint, Length: Fixed(12), Present: present("section_length", Dec)},
		&DataField{Name: "payload", Encoding: Octets, Length: ToEnd(0), Present: present("payload", Hex)},
	},
}
