/*
DESCRIPTION
  grammar_test.go provides testing for template validation, presentation and
  the registry.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package grammar

import (
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/ausocean/tsinspect/syntax/text"
)

const errNotExpectedOut = "Did not get expected output: \ngot : %v, \nwant: %v"

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		def  Def
		ok   bool
	}{
		{name: "uint", def: &DataField{Name: "a", Encoding: Uint, Length: Fixed(12)}, ok: true},
		{name: "uint too wide", def: &DataField{Name: "a", Encoding: Uint, Length: Fixed(65)}},
		{name: "bits by ref", def: &DataField{Name: "a", Encoding: Bits, Length: FromField("n", 0)}},
		{name: "checksum 12", def: &DataField{Name: "a", Encoding: Checksum, Length: Fixed(12)}},
		{name: "checksum 32", def: &DataField{Name: "a", Encoding: Checksum, Length: Fixed(32)}, ok: true},
		{name: "uint with correction", def: &DataField{Name: "a", Encoding: Uint, Length: Length{Kind: Const, N: 8, Correction: 1}}},
		{name: "octets corrected", def: &DataField{Name: "a", Encoding: Octets, Length: Length{Kind: Const, N: 4, Correction: -1}}, ok: true},
		{name: "octets corrected negative", def: &DataField{Name: "a", Encoding: Octets, Length: Length{Kind: Const, N: 1, Correction: -2}}},
		{name: "octets implicit", def: &DataField{Name: "a", Encoding: Octets, Length: ToEnd(-4)}, ok: true},
		{name: "ref without field", def: &DataField{Name: "a", Encoding: Octets, Length: Length{Kind: Ref}}},
		{name: "bad charset", def: &DataField{Name: "a", Encoding: Text, Length: Fixed(1), Charset: text.Charset(99)}},
		{name: "bad format", def: &DataField{Name: "a", Encoding: Uint, Length: Fixed(8), Present: &Present{Format: Format(7)}}},
		{
			name: "reversed range",
			def: &DataField{Name: "a", Encoding: Uint, Length: Fixed(8), Present: &Present{
				Mapper: &ValueMap{Ranges: []Range{{From: 9, To: 2}}},
			}},
		},
		{
			name: "condition without constant",
			def:  &ConditionalField{Name: "c", Cond: Condition{Field: "f", Op: Equal}},
		},
		{
			name: "condition set",
			def:  &ConditionalField{Name: "c", Cond: Condition{Field: "f", Op: EqualAny, Values: []uint64{1, 2}}},
			ok:   true,
		},
		{
			name: "invalid branch",
			def: &ConditionalField{
				Name: "c",
				Cond: Condition{Field: "f", Op: Larger, Values: []uint64{1}},
				Else: []Def{&DataField{Name: "a", Encoding: Uint, Length: Fixed(0)}},
			},
		},
		{
			name: "implicit count",
			def:  &LoopField{Name: "l", Discipline: ByCount, Length: ToEnd(0), Body: []Def{Descriptors}},
		},
		{
			name: "constant length",
			def:  &LoopField{Name: "l", Discipline: ByLength, Length: Fixed(4), Body: []Def{Descriptors}},
		},
		{
			name: "empty body",
			def:  &LoopField{Name: "l", Discipline: ByLength, Length: ToEnd(0)},
		},
		{
			name: "constant count",
			def:  &LoopField{Name: "l", Discipline: ByCount, Length: Fixed(3), Body: []Def{&DataField{Name: "a", Encoding: Uint, Length: Fixed(8)}}},
			ok:   true,
		},
		{name: "marker", def: Descriptors, ok: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.def.Validate()
			if test.ok && err != nil {
				t.Errorf("did not expect error: %v", err)
			}
			if !test.ok && !errors.Is(err, ErrInvalid) {
				t.Errorf("unexpected error: "+errNotExpectedOut, err, ErrInvalid)
			}
		})
	}
}

func TestDefaultsValid(t *testing.T) {
	if err := DefaultDescriptor.Validate(); err != nil {
		t.Errorf("default descriptor is invalid: %v", err)
	}
	if err := validateList(DefaultSection.Fields); err != nil {
		t.Errorf("default section fields are invalid: %v", err)
	}
}

func TestCondition(t *testing.T) {
	tests := []struct {
		c    Condition
		v    uint64
		want bool
	}{
		{c: Condition{Op: Equal, Values: []uint64{3}}, v: 3, want: true},
		{c: Condition{Op: NotEqual, Values: []uint64{3}}, v: 3, want: false},
		{c: Condition{Op: Larger, Values: []uint64{3}}, v: 4, want: true},
		{c: Condition{Op: Smaller, Values: []uint64{3}}, v: 3, want: false},
		{c: Condition{Op: EqualAny, Values: []uint64{1, 5}}, v: 5, want: true},
		{c: Condition{Op: NotEqualAll, Values: []uint64{1, 5}}, v: 5, want: false},
		{c: Condition{Op: NotEqualAll, Values: []uint64{1, 5}}, v: 2, want: true},
	}
	for i, test := range tests {
		if got := test.c.Eval(test.v); got != test.want {
			t.Errorf("unexpected result for test %d: "+errNotExpectedOut, i, got, test.want)
		}
	}

	if op, err := ParseOp("NOT_IN"); err != nil || op != NotEqualAll {
		t.Errorf("unexpected operator: %v, %v", op, err)
	}
	if _, err := ParseOp("like"); !errors.Is(err, ErrInvalid) {
		t.Errorf("unexpected error: "+errNotExpectedOut, err, ErrInvalid)
	}
}

func TestNumber(t *testing.T) {
	service := &ValueMap{
		Values: map[uint64]string{0x01: "digital television"},
		Ranges: []Range{{From: 0x80, To: 0xfe, Label: "user defined"}},
	}

	tests := []struct {
		p    *Present
		v    uint64
		bits int
		want string
	}{
		{p: nil, v: 42, bits: 8, want: "42"},
		{p: &Present{Format: Hex}, v: 0x1f, bits: 13, want: "0x001F"},
		{p: &Present{Format: Bin}, v: 5, bits: 4, want: "0b0101"},
		{p: &Present{Mapper: service}, v: 1, bits: 8, want: "digital television"},
		{p: &Present{Mapper: service}, v: 0x90, bits: 8, want: "user defined"},
		{p: &Present{Mapper: service, Format: Hex}, v: 0x20, bits: 8, want: "0x20"},
		{p: &Present{Mapper: Duration}, v: 0x013045, bits: 24, want: "01:30:45"},
		{p: &Present{Mapper: Duration}, v: 0x0a0000, bits: 24, want: "655360"},
		{p: &Present{Mapper: MJDTime}, v: 0xc079124500, bits: 40, want: "1993-10-13 12:45:00 UTC"},
		{p: &Present{Mapper: MJDTime}, v: 0xffffffffff, bits: 40, want: "undefined"},
		{p: &Present{Mapper: LanguageCode}, v: 0x656e67, bits: 24, want: "eng"},
	}
	for i, test := range tests {
		if got := test.p.Number(test.v, test.bits); got != test.want {
			t.Errorf("unexpected result for test %d: "+errNotExpectedOut, i, got, test.want)
		}
	}

	if m, err := CannedMapper("utc_time"); err != nil || m == nil {
		t.Errorf("could not get canned mapper: %v", err)
	}
	if _, err := CannedMapper("phase_of_moon"); !errors.Is(err, ErrInvalid) {
		t.Errorf("unexpected error: "+errNotExpectedOut, err, ErrInvalid)
	}
}

func TestEntryLabel(t *testing.T) {
	tests := []struct {
		e    Entry
		want string
	}{
		{e: Entry{}, want: "entry 2"},
		{e: Entry{Fixed: "program"}, want: "program"},
		{e: Entry{Fixed: "program", Indexed: "stream %d"}, want: "stream 2"},
	}
	for _, test := range tests {
		if got := test.e.Label(2); got != test.want {
			t.Errorf(errNotExpectedOut, got, test.want)
		}
	}
}

func desc(name string, k DescriptorKey) *DescriptorGrammar {
	return &DescriptorGrammar{
		Name:   name,
		Key:    k,
		Fields: []Def{&DataField{Name: "descriptor_tag", Encoding: Uint, Length: Fixed(8)}},
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	err := r.Add(
		[]*DescriptorGrammar{desc("service", TagKey(0x48)), desc("extension", TagKey(0x7f)), desc("audio", ExtKey(0x7f, 0x06))},
		[]*SectionGrammar{{Name: "sdt", TableIDs: []uint8{0x42, 0x46}, Fields: DefaultSection.Fields}},
	)
	if err != nil {
		t.Fatalf("could not add templates: %v", err)
	}

	descTests := []struct {
		k    DescriptorKey
		want string
		ok   bool
	}{
		{k: TagKey(0x48), want: "service", ok: true},
		{k: ExtKey(0x7f, 0x06), want: "audio", ok: true},
		{k: ExtKey(0x7f, 0x07), want: "extension", ok: true},
		{k: TagKey(0x49), want: DefaultDescriptor.Name, ok: false},
	}
	for _, test := range descTests {
		g, ok := r.Descriptor(test.k)
		if g.Name != test.want || ok != test.ok {
			t.Errorf("unexpected lookup of %v: got %s/%v, want %s/%v", test.k, g.Name, ok, test.want, test.ok)
		}
	}

	for _, id := range []uint8{0x42, 0x46} {
		if g, ok := r.Section(id); !ok || g.Name != "sdt" {
			t.Errorf("unexpected section for 0x%02x: %s/%v", id, g.Name, ok)
		}
	}
	if g, ok := r.Section(0x00); ok || g != DefaultSection {
		t.Errorf("expected default section, got %s/%v", g.Name, ok)
	}
}

func TestRegistryVersion(t *testing.T) {
	r := NewRegistry()
	if r.Version() != 0 {
		t.Errorf("unexpected initial version: %d", r.Version())
	}
	if err := r.AddDescriptor(desc("a", TagKey(1))); err != nil {
		t.Fatalf("could not add: %v", err)
	}
	old := r.Snapshot()

	// An invalid addition changes nothing.
	bad := &DescriptorGrammar{Name: "", Key: TagKey(2)}
	if err := r.Add([]*DescriptorGrammar{desc("b", TagKey(3)), bad}, nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("unexpected error: "+errNotExpectedOut, err, ErrInvalid)
	}
	if r.Version() != 1 {
		t.Errorf("version changed by failed add: %d", r.Version())
	}
	if _, ok := r.Descriptor(TagKey(3)); ok {
		t.Error("partial add visible")
	}

	if err := r.Replace([]*DescriptorGrammar{desc("c", TagKey(4))}, nil); err != nil {
		t.Fatalf("could not replace: %v", err)
	}
	if r.Version() != 2 {
		t.Errorf("unexpected version after replace: %d", r.Version())
	}
	if _, ok := r.Descriptor(TagKey(1)); ok {
		t.Error("replaced template still present")
	}

	// A pinned snapshot is unaffected.
	if g, ok := old.Descriptor(TagKey(1)); !ok || g.Name != "a" {
		t.Errorf("snapshot changed: %s/%v", g.Name, ok)
	}
	if d, s := old.Len(); d != 1 || s != 0 {
		t.Errorf("unexpected snapshot size: %d, %d", d, s)
	}
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if err := r.AddDescriptor(desc("d", TagKey(uint8(i)))); err != nil {
				t.Errorf("could not add: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			r.Descriptor(TagKey(0))
		}()
	}
	wg.Wait()
	if d, _ := r.Snapshot().Len(); d != 8 {
		t.Errorf("unexpected descriptor count: "+errNotExpectedOut, d, 8)
	}
	if r.Version() != 8 {
		t.Errorf("unexpected version: "+errNotExpectedOut, r.Version(), 8)
	}
}
