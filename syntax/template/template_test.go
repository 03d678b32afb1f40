/*
DESCRIPTION
  template_test.go provides testing for template parsing, the built in
  templates and directory reloading.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package template

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/ausocean/tsinspect/syntax/bits"
	"github.com/ausocean/tsinspect/syntax/decode"
	"github.com/ausocean/tsinspect/syntax/grammar"
	"github.com/ausocean/tsinspect/syntax/tree"
)

const errNotExpectedOut = "Did not get expected output: \ngot : %v, \nwant: %v"

const serviceTemplate = `
name: service_descriptor
descriptor: {tag: 0x48}
fields:
  - {name: descriptor_tag, kind: uint, bits: 8, format: hex}
  - {name: descriptor_length, kind: uint, bits: 8}
  - {name: service_type, kind: uint, bits: 8, map: [{value: 0x01, label: tv}, {from: 0x80, to: 0xfe, label: user defined}]}
  - {name: provider_length, kind: uint, bits: 8, hidden: true}
  - {name: provider, kind: text, length: provider_length, charset: dvb, label: service_provider_name}
  - kind: if
    field: provider_length
    op: larger
    value: 0
    then:
      - {name: flag, kind: bits, bits: 8}
---
name: private_table
table: {ids: [0x80, 0x81]}
fields:
  - {name: table_id, kind: uint, bits: 8}
  - {name: rest, kind: bits, bits: 4}
  - {name: section_length, kind: uint, bits: 12}
  - kind: loop
    name: items
    count: 2
    correction: 1
    entry: item
    body:
      - {name: v, kind: uint, bits: 8}
`

func TestParse(t *testing.T) {
	set, err := Parse(strings.NewReader(serviceTemplate))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if len(set.Descriptors) != 1 || len(set.Sections) != 1 {
		t.Fatalf("unexpected template counts: %d descriptors, %d sections", len(set.Descriptors), len(set.Sections))
	}

	d := set.Descriptors[0]
	if d.Key != grammar.TagKey(0x48) {
		t.Errorf("unexpected key: "+errNotExpectedOut, d.Key, grammar.TagKey(0x48))
	}
	if err := d.Validate(); err != nil {
		t.Errorf("parsed template invalid: %v", err)
	}

	st := d.Fields[2].(*grammar.DataField)
	if got := st.Present.Number(0x90, 8); got != "user defined" {
		t.Errorf("unexpected mapping: "+errNotExpectedOut, got, "user defined")
	}
	if d.Fields[3].(*grammar.DataField).Present != nil {
		t.Error("hidden field has presentation")
	}
	provider := d.Fields[4].(*grammar.DataField)
	if provider.Length != grammar.FromField("provider_length", 0) || provider.Present.Label != "service_provider_name" {
		t.Errorf("unexpected provider field: %+v", provider)
	}
	cond := d.Fields[5].(*grammar.ConditionalField)
	want := grammar.Condition{Field: "provider_length", Op: grammar.Larger, Values: []uint64{0}}
	if !cmp.Equal(cond.Cond, want) {
		t.Errorf("unexpected condition:\n%s", cmp.Diff(want, cond.Cond))
	}

	s := set.Sections[0]
	if !cmp.Equal(s.TableIDs, []uint8{0x80, 0x81}) {
		t.Errorf("unexpected table ids: %v", s.TableIDs)
	}
	l := s.Fields[3].(*grammar.LoopField)
	if l.Discipline != grammar.ByCount || l.Length.N != 2 || l.Length.Correction != 1 || l.Entry.Fixed != "item" {
		t.Errorf("unexpected loop: %+v", l)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		err  error
	}{
		{name: "no name", in: "descriptor: {tag: 1}\nfields: []", err: ErrTemplate},
		{name: "no key", in: "name: x\nfields: []", err: ErrTemplate},
		{name: "both keys", in: "name: x\ndescriptor: {tag: 1}\ntable: {ids: [1]}", err: ErrTemplate},
		{name: "unknown kind", in: "name: x\ndescriptor: {tag: 1}\nfields: [{name: a, kind: float}]", err: ErrTemplate},
		{name: "octets without length", in: "name: x\ndescriptor: {tag: 1}\nfields: [{name: a, kind: octets}]", err: ErrTemplate},
		{name: "loop without length", in: "name: x\ndescriptor: {tag: 1}\nfields: [{name: l, kind: loop, body: [{kind: descriptors}]}]", err: ErrTemplate},
		{name: "bad operator", in: "name: x\ndescriptor: {tag: 1}\nfields: [{kind: if, field: a, op: like, value: 1}]", err: grammar.ErrInvalid},
		{name: "bad mapping", in: "name: x\ndescriptor: {tag: 1}\nfields: [{name: a, kind: uint, bits: 8, mapping: moon}]", err: grammar.ErrInvalid},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(test.in))
			if !errors.Is(err, test.err) {
				t.Errorf("unexpected error: "+errNotExpectedOut, err, test.err)
			}
		})
	}
}

func TestBuiltin(t *testing.T) {
	set, err := Builtin()
	if err != nil {
		t.Fatalf("could not load built in templates: %v", err)
	}
	reg := grammar.NewRegistry()
	if err := Install(reg, set); err != nil {
		t.Fatalf("could not install built in templates: %v", err)
	}

	for _, id := range []uint8{0x00, 0x01, 0x02, 0x40, 0x42, 0x4e, 0x6f, 0x70, 0x73} {
		if _, ok := reg.Section(id); !ok {
			t.Errorf("no built in template for table 0x%02x", id)
		}
	}
	keys := []grammar.DescriptorKey{
		grammar.TagKey(0x05), grammar.TagKey(0x09), grammar.TagKey(0x0a), grammar.TagKey(0x40),
		grammar.TagKey(0x41), grammar.TagKey(0x48), grammar.TagKey(0x4d), grammar.TagKey(0x52),
		grammar.TagKey(0x54), grammar.TagKey(0x58), grammar.ExtKey(0x7f, 0x06),
	}
	for _, k := range keys {
		if _, ok := reg.Descriptor(k); !ok {
			t.Errorf("no built in template for descriptor %v", k)
		}
	}
}

func builtinDecoder(t *testing.T) *decode.Decoder {
	reg := grammar.NewRegistry()
	set, err := Builtin()
	if err != nil {
		t.Fatalf("could not load built in templates: %v", err)
	}
	if err := Install(reg, set); err != nil {
		t.Fatalf("could not install built in templates: %v", err)
	}
	return decode.New(reg, (*logging.TestLogger)(t))
}

func uintOf(t *testing.T, n *tree.Node, name string) uint64 {
	t.Helper()
	f := n.Find(name)
	if f == nil {
		t.Fatalf("no field %q", name)
	}
	v, ok := f.Uint()
	if !ok {
		t.Fatalf("field %q is not numeric", name)
	}
	return v
}

func entries(t *testing.T, n *tree.Node, loop string) []*tree.Node {
	t.Helper()
	l := n.Find(loop)
	if l == nil {
		t.Fatalf("no loop %q", loop)
	}
	return l.Children()
}

func TestDecodePAT(t *testing.T) {
	b := []byte{
		0x00, 0xb0, 0x11, // table_id, section_length 17.
		0x00, 0x01, 0xc1, 0x00, 0x00,
		0x00, 0x00, 0xe0, 0x10, // Network PID 0x10.
		0x00, 0x01, 0xe1, 0x00, // Program 1 on PID 0x100.
		0xde, 0xad, 0xbe, 0xef,
	}
	root, n, err := builtinDecoder(t).Section(bits.NewBuffer(b), 0, len(b))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if n != len(b)*8 {
		t.Errorf("unexpected bit count: "+errNotExpectedOut, n, len(b)*8)
	}
	if root.Name != "program_association_section" {
		t.Errorf("unexpected template: %s", root.Name)
	}

	progs := entries(t, root, "programs")
	if len(progs) != 2 {
		t.Fatalf("unexpected program count: "+errNotExpectedOut, len(progs), 2)
	}
	if v := uintOf(t, progs[0], "network_PID"); v != 0x10 {
		t.Errorf("unexpected network PID: "+errNotExpectedOut, v, 0x10)
	}
	if progs[0].Find("program_map_PID") != nil {
		t.Error("program 0 should not have a PMT PID")
	}
	if v := uintOf(t, progs[1], "program_map_PID"); v != 0x100 {
		t.Errorf("unexpected PMT PID: "+errNotExpectedOut, v, 0x100)
	}
	if progs[1].Presentation.Label != "program 2" {
		t.Errorf("unexpected entry label: %q", progs[1].Presentation.Label)
	}
	if c := root.Find("CRC_32"); c == nil || c.Presentation.Text != "0xDEADBEEF" {
		t.Errorf("unexpected CRC: %+v", c)
	}
}

func TestDecodePMT(t *testing.T) {
	b := []byte{
		0x02, 0xb0, 0x23,
		0x00, 0x01, 0xc1, 0x00, 0x00,
		0xe1, 0x00, // PCR PID 0x100.
		0xf0, 0x06, // program_info_length 6.
		0x05, 0x04, 'C', 'U', 'E', 'I',
		0x1b, 0xe1, 0x01, 0xf0, 0x00,
		0x0f, 0xe1, 0x02, 0xf0, 0x06, 0x0a, 0x04, 'e', 'n', 'g', 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	root, _, err := builtinDecoder(t).Section(bits.NewBuffer(b), 0, len(b))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if v := uintOf(t, root, "PCR_PID"); v != 0x100 {
		t.Errorf("unexpected PCR PID: "+errNotExpectedOut, v, 0x100)
	}

	info := entries(t, root, "program_info")
	if len(info) != 1 || info[0].Name != "registration_descriptor" {
		t.Fatalf("unexpected program info: %v", info)
	}
	if got := info[0].Find("format_identifier").Value; got != tree.StringValue("CUEI") {
		t.Errorf(errNotExpectedOut, got, "CUEI")
	}

	streams := entries(t, root, "streams")
	if len(streams) != 2 {
		t.Fatalf("unexpected stream count: "+errNotExpectedOut, len(streams), 2)
	}
	if st := streams[0].Find("stream_type"); st.Presentation.Text != "H.264 video" {
		t.Errorf("unexpected stream type: %q", st.Presentation.Text)
	}
	if es := streams[0].Find("ES_info"); es == nil || !es.EmptyLoop() {
		t.Errorf("expected empty ES info loop")
	}
	lang := streams[1].Find("ISO_639_language_code")
	if lang == nil || lang.Presentation.Text != "eng" {
		t.Errorf("unexpected language: %+v", lang)
	}
	if v := uintOf(t, streams[1], "elementary_PID"); v != 0x102 {
		t.Errorf("unexpected PID: "+errNotExpectedOut, v, 0x102)
	}
}

func TestDecodeSDT(t *testing.T) {
	b := []byte{
		0x42, 0xf0, 0x1d,
		0x00, 0x01, 0xc1, 0x00, 0x00,
		0x00, 0x02, 0xff,
		0x00, 0x03, 0xfc, 0x80, 0x0c, // Service 3, running, 12 bytes of descriptors.
		0x48, 0x0a, 0x01, 0x03, 'A', 'B', 'C', 0x04, 'N', 'e', 'w', 's',
		0x00, 0x00, 0x00, 0x00,
	}
	root, n, err := builtinDecoder(t).Section(bits.NewBuffer(b), 0, len(b))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if n != len(b)*8 {
		t.Errorf("unexpected bit count: "+errNotExpectedOut, n, len(b)*8)
	}

	svcs := entries(t, root, "services")
	if len(svcs) != 1 {
		t.Fatalf("unexpected service count: "+errNotExpectedOut, len(svcs), 1)
	}
	if rs := svcs[0].Find("running_status"); rs.Presentation.Text != "running" {
		t.Errorf("unexpected running status: %q", rs.Presentation.Text)
	}
	want := map[string]string{
		"service_type":          "digital television service",
		"service_provider_name": "ABC",
		"service_name":          "News",
	}
	got := map[string]string{}
	for k := range want {
		if f := svcs[0].Find(k); f != nil && f.Presentation != nil {
			got[k] = f.Presentation.Text
		}
	}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected service fields:\n%s", cmp.Diff(want, got))
	}
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	reg := grammar.NewRegistry()

	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(serviceTemplate), 0o644); err != nil {
		t.Fatalf("could not write template: %v", err)
	}
	if err := Reload(reg, dir, true); err != nil {
		t.Fatalf("could not reload: %v", err)
	}
	if _, ok := reg.Section(0x80); !ok {
		t.Error("template from directory not installed")
	}
	if _, ok := reg.Section(0x00); ok {
		t.Error("built in template installed")
	}

	// A broken file leaves the registry as it was.
	v := reg.Version()
	if err := os.WriteFile(filepath.Join(dir, "b.yml"), []byte("name: x\n"), 0o644); err != nil {
		t.Fatalf("could not write template: %v", err)
	}
	if err := Reload(reg, dir, false); !errors.Is(err, ErrTemplate) {
		t.Errorf("unexpected error: "+errNotExpectedOut, err, ErrTemplate)
	}
	if reg.Version() != v {
		t.Errorf("registry changed by failed reload")
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	reg := grammar.NewRegistry()
	w := NewWatcher(reg, dir, true, (*logging.TestLogger)(t))
	reloaded := make(chan error, 16)
	w.Reloaded = func(err error) { reloaded <- err }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- w.Run(ctx) }()

	// The watch may not be in place for the first write, so keep writing
	// until a reload is seen.
	path := filepath.Join(dir, "t.yaml")
	deadline := time.After(10 * time.Second)
loop:
	for {
		if err := os.WriteFile(path, []byte(serviceTemplate), 0o644); err != nil {
			t.Fatalf("could not write template: %v", err)
		}
		select {
		case err := <-reloaded:
			if err != nil {
				t.Fatalf("reload failed: %v", err)
			}
			break loop
		case <-time.After(time.Second):
		case <-deadline:
			t.Fatal("no reload seen")
		}
	}

	if _, ok := reg.Descriptor(grammar.TagKey(0x48)); !ok {
		t.Error("watched template not installed")
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("unexpected error from Run: %v", err)
	}
}

func TestRearm(t *testing.T) {
	timer := time.NewTimer(time.Millisecond)
	// Let the timer expire without receiving from its channel.
	time.Sleep(20 * time.Millisecond)

	rearm(timer, time.Hour)
	select {
	case <-timer.C:
		t.Error("stale expiry received after rearm")
	case <-time.After(50 * time.Millisecond):
	}
	timer.Stop()
}
