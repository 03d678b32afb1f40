/*
DESCRIPTION
  template.go provides parsing of descriptor and section templates from YAML.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package template loads descriptor and section templates from YAML
// documents, provides the built in MPEG-2 and DVB templates, and keeps a
// grammar.Registry up to date with a template directory.
//
// Each YAML document holds one template:
//
//	name: service_descriptor
//	descriptor: {tag: 0x48}
//	fields:
//	  - {name: descriptor_tag, kind: uint, bits: 8, format: hex}
//	  - {name: descriptor_length, kind: uint, bits: 8}
//	  - {name: service_type, kind: uint, bits: 8, map: [{value: 0x01, label: digital television service}]}
//	  - {name: provider_length, kind: uint, bits: 8, hidden: true}
//	  - {name: provider, kind: text, length: provider_length}
//
// Section templates give table ids in place of a descriptor key:
//
//	table: {ids: [0x42, 0x46]}
//
// A length or condition names a field decoded earlier. The name is found by
// position in the decoded tree: first among the fields already decoded at
// the same level, newest first, then at each enclosing level in turn. The
// first match wins, so a name reused at an inner level hides the outer one.
package template

import (
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ausocean/tsinspect/syntax/grammar"
	"github.com/ausocean/tsinspect/syntax/text"
)

// ErrTemplate is returned for YAML that does not describe a template.
var ErrTemplate = errors.New("bad template")

// Set is a collection of templates.
type Set struct {
	Descriptors []*grammar.DescriptorGrammar
	Sections    []*grammar.SectionGrammar
}

// Merge appends the templates of o to s. Templates in o take precedence when
// installed.
func (s *Set) Merge(o Set) {
	s.Descriptors = append(s.Descriptors, o.Descriptors...)
	s.Sections = append(s.Sections, o.Sections...)
}

// Len returns the number of templates in s.
func (s Set) Len() int { return len(s.Descriptors) + len(s.Sections) }

// Install adds the templates of each set to reg. Nothing is added if any
// template is invalid.
func Install(reg *grammar.Registry, sets ...Set) error {
	var all Set
	for _, s := range sets {
		all.Merge(s)
	}
	return reg.Add(all.Descriptors, all.Sections)
}

// document is the YAML form of one template.
type document struct {
	Name       string     `yaml:"name"`
	Descriptor *key       `yaml:"descriptor,omitempty"`
	Table      *tableKey  `yaml:"table,omitempty"`
	Fields     []fieldDoc `yaml:"fields"`
}

type key struct {
	Tag uint8  `yaml:"tag"`
	Ext *uint8 `yaml:"ext,omitempty"`
}

type tableKey struct {
	IDs []uint8 `yaml:"ids"`
}

// fieldDoc is the YAML form of a field, conditional or loop, selected by
// Kind.
type fieldDoc struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	// Data fields.
	Bits       int    `yaml:"bits,omitempty"`
	Length     size   `yaml:"length,omitempty"`
	Correction int    `yaml:"correction,omitempty"`
	Charset    string `yaml:"charset,omitempty"`

	// Presentation.
	Hidden      bool       `yaml:"hidden,omitempty"`
	Label       string     `yaml:"label,omitempty"`
	Prefix      string     `yaml:"prefix,omitempty"`
	PrefixColor string     `yaml:"prefix_color,omitempty"`
	LabelColor  string     `yaml:"label_color,omitempty"`
	Bold        bool       `yaml:"bold,omitempty"`
	Format      string     `yaml:"format,omitempty"`
	Map         []mapEntry `yaml:"map,omitempty"`
	Mapping     string     `yaml:"mapping,omitempty"`

	// Conditionals.
	Field  string     `yaml:"field,omitempty"`
	Op     string     `yaml:"op,omitempty"`
	Value  *uint64    `yaml:"value,omitempty"`
	Values []uint64   `yaml:"values,omitempty"`
	Then   []fieldDoc `yaml:"then,omitempty"`
	Else   []fieldDoc `yaml:"else,omitempty"`

	// Loops.
	Count    size       `yaml:"count,omitempty"`
	NoHeader bool       `yaml:"no_header,omitempty"`
	Entry    string     `yaml:"entry,omitempty"`
	Body     []fieldDoc `yaml:"body,omitempty"`
}

type mapEntry struct {
	Value *uint64 `yaml:"value,omitempty"`
	From  *uint64 `yaml:"from,omitempty"`
	To    *uint64 `yaml:"to,omitempty"`
	Label string  `yaml:"label"`
}

// size is a length given as a number, a field name or "implicit".
type size struct {
	set      bool
	n        int
	field    string
	implicit bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *size) UnmarshalYAML(v *yaml.Node) error {
	if v.Kind != yaml.ScalarNode {
		return errors.Wrapf(ErrTemplate, "line %d: length must be a number or a field name", v.Line)
	}
	s.set = true
	switch {
	case v.ShortTag() == "!!int":
		return v.Decode(&s.n)
	case v.Value == "implicit":
		s.implicit = true
	default:
		s.field = v.Value
	}
	return nil
}

// IsZero lets omitempty recognise an unset size.
func (s size) IsZero() bool { return !s.set }

func (s size) length(correction int) grammar.Length {
	switch {
	case s.implicit:
		return grammar.ToEnd(correction)
	case s.field != "":
		return grammar.FromField(s.field, correction)
	default:
		return grammar.Length{Kind: grammar.Const, N: s.n, Correction: correction}
	}
}

// Parse reads the templates in the YAML documents of r.
func Parse(r io.Reader) (Set, error) {
	var set Set
	dec := yaml.NewDecoder(r)
	for i := 0; ; i++ {
		var doc document
		err := dec.Decode(&doc)
		if err == io.EOF {
			return set, nil
		}
		if err != nil {
			return Set{}, errors.Wrapf(err, "could not decode document %d", i)
		}
		if err := doc.add(&set); err != nil {
			return Set{}, errors.Wrapf(err, "document %d", i)
		}
	}
}

// ParseBytes is shorthand for Parse(bytes.NewReader(b)).
func ParseBytes(b []byte) (Set, error) { return Parse(bytes.NewReader(b)) }

func (d *document) add(set *Set) error {
	if d.Name == "" {
		return errors.Wrap(ErrTemplate, "template has no name")
	}
	if (d.Descriptor == nil) == (d.Table == nil) {
		return errors.Wrapf(ErrTemplate, "template %q needs exactly one of descriptor or table", d.Name)
	}
	fields, err := defs(d.Fields)
	if err != nil {
		return errors.Wrapf(err, "template %q", d.Name)
	}

	if d.Descriptor != nil {
		k := grammar.TagKey(d.Descriptor.Tag)
		if d.Descriptor.Ext != nil {
			k = grammar.ExtKey(d.Descriptor.Tag, *d.Descriptor.Ext)
		}
		set.Descriptors = append(set.Descriptors, &grammar.DescriptorGrammar{Name: d.Name, Key: k, Fields: fields})
		return nil
	}
	if len(d.Table.IDs) == 0 {
		return errors.Wrapf(ErrTemplate, "template %q has no table ids", d.Name)
	}
	set.Sections = append(set.Sections, &grammar.SectionGrammar{Name: d.Name, TableIDs: d.Table.IDs, Fields: fields})
	return nil
}

func defs(docs []fieldDoc) ([]grammar.Def, error) {
	out := make([]grammar.Def, 0, len(docs))
	for i := range docs {
		d, err := docs[i].def()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

var encodings = map[string]grammar.Encoding{
	"bits":     grammar.Bits,
	"bslbf":    grammar.Bits,
	"uint":     grammar.Uint,
	"uimsbf":   grammar.Uint,
	"checksum": grammar.Checksum,
	"crc":      grammar.Checksum,
	"nibbles":  grammar.Nibbles,
	"octets":   grammar.Octets,
	"bytes":    grammar.Octets,
	"text":     grammar.Text,
}

func (f *fieldDoc) def() (grammar.Def, error) {
	kind := strings.ToLower(f.Kind)
	switch kind {
	case "if":
		return f.conditional()
	case "loop":
		return f.loop()
	case "descriptors":
		return grammar.Descriptors, nil
	}
	enc, ok := encodings[kind]
	if !ok {
		return nil, errors.Wrapf(ErrTemplate, "field %q: unknown kind %q", f.Name, f.Kind)
	}
	if f.Name == "" {
		return nil, errors.Wrapf(ErrTemplate, "%s field has no name", kind)
	}

	df := &grammar.DataField{Name: f.Name, Encoding: enc}
	switch enc {
	case grammar.Bits, grammar.Uint, grammar.Checksum:
		df.Length = grammar.Fixed(f.Bits)
	default:
		if !f.Length.set {
			return nil, errors.Wrapf(ErrTemplate, "field %q: %s needs a length", f.Name, kind)
		}
		df.Length = f.Length.length(f.Correction)
	}
	if enc == grammar.Text {
		c, err := text.ParseCharset(f.Charset)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", f.Name)
		}
		df.Charset = c
	}

	p, err := f.present()
	if err != nil {
		return nil, err
	}
	df.Present = p
	return df, nil
}

// present returns the presentation rules of f, or nil if f is hidden.
func (f *fieldDoc) present() (*grammar.Present, error) {
	if f.Hidden {
		return nil, nil
	}
	format, err := grammar.ParseFormat(f.Format)
	if err != nil {
		return nil, errors.Wrapf(err, "field %q", f.Name)
	}
	p := &grammar.Present{
		Prefix:      f.Prefix,
		PrefixColor: f.PrefixColor,
		Label:       f.Label,
		LabelColor:  f.LabelColor,
		Bold:        f.Bold,
		Format:      format,
	}

	switch {
	case f.Mapping != "" && len(f.Map) != 0:
		return nil, errors.Wrapf(ErrTemplate, "field %q: map and mapping are exclusive", f.Name)
	case f.Mapping != "":
		m, err := grammar.CannedMapper(f.Mapping)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", f.Name)
		}
		p.Mapper = m
	case len(f.Map) != 0:
		m := &grammar.ValueMap{Values: map[uint64]string{}}
		for _, e := range f.Map {
			switch {
			case e.Value != nil:
				m.Values[*e.Value] = e.Label
			case e.From != nil && e.To != nil:
				m.Ranges = append(m.Ranges, grammar.Range{From: *e.From, To: *e.To, Label: e.Label})
			default:
				return nil, errors.Wrapf(ErrTemplate, "field %q: map entry %q needs a value or a range", f.Name, e.Label)
			}
		}
		p.Mapper = m
	}
	return p, nil
}

func (f *fieldDoc) conditional() (grammar.Def, error) {
	op, err := grammar.ParseOp(f.Op)
	if err != nil {
		return nil, errors.Wrapf(err, "condition on %q", f.Field)
	}
	values := f.Values
	if f.Value != nil {
		values = append([]uint64{*f.Value}, values...)
	}
	then, err := defs(f.Then)
	if err != nil {
		return nil, err
	}
	els, err := defs(f.Else)
	if err != nil {
		return nil, err
	}
	name := f.Name
	if name == "" {
		name = "if " + f.Field
	}
	return &grammar.ConditionalField{
		Name: name,
		Cond: grammar.Condition{Field: f.Field, Op: op, Values: values},
		Then: then,
		Else: els,
	}, nil
}

func (f *fieldDoc) loop() (grammar.Def, error) {
	if f.Name == "" {
		return nil, errors.Wrap(ErrTemplate, "loop has no name")
	}
	l := &grammar.LoopField{Name: f.Name, NoHeader: f.NoHeader}
	switch {
	case f.Count.set && f.Length.set:
		return nil, errors.Wrapf(ErrTemplate, "loop %q: count and length are exclusive", f.Name)
	case f.Count.set:
		l.Discipline, l.Length = grammar.ByCount, f.Count.length(f.Correction)
	case f.Length.set:
		l.Discipline, l.Length = grammar.ByLength, f.Length.length(f.Correction)
	default:
		return nil, errors.Wrapf(ErrTemplate, "loop %q needs a count or a length", f.Name)
	}

	if strings.Contains(f.Entry, "%d") {
		l.Entry.Indexed = f.Entry
	} else {
		l.Entry.Fixed = f.Entry
	}

	p, err := f.present()
	if err != nil {
		return nil, err
	}
	l.Header = p

	body, err := defs(f.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "loop %q", f.Name)
	}
	l.Body = body
	return l, nil
}
