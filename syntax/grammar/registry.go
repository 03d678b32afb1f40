/*
DESCRIPTION
  registry.go provides a registry of descriptor and section templates by
  identifier.

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
	"sync/atomic"
)

// Snapshot is an immutable view of a Registry's templates at one version.
type Snapshot struct {
	Version     uint64
	descriptors map[DescriptorKey]*DescriptorGrammar
	sections    map[uint8]*SectionGrammar
}

// Descriptor returns the template for k. An extension key with no template
// falls back to the template for the bare tag. If neither exists the
// default descriptor template is returned with ok false.
func (s *Snapshot) Descriptor(k DescriptorKey) (g *DescriptorGrammar, ok bool) {
	if g, ok = s.descriptors[k]; ok {
		return g, true
	}
	if k.Ext != NoExt {
		if g, ok = s.descriptors[TagKey(k.Tag)]; ok {
			return g, true
		}
	}
	return DefaultDescriptor, false
}

// Section returns the template for table id, or the default section
// template with ok false.
func (s *Snapshot) Section(id uint8) (g *SectionGrammar, ok bool) {
	if g, ok = s.sections[id]; ok {
		return g, true
	}
	return DefaultSection, false
}

// Len returns the number of descriptor and section templates.
func (s *Snapshot) Len() (descriptors, sections int) {
	return len(s.descriptors), len(s.sections)
}

// Registry holds templates by identifier. Additions are serialised and
// publish a new Snapshot; lookups never lock. Templates must not be modified
// once added.
type Registry struct {
	mu   sync.Mutex // Serialises writers.
	snap atomic.Pointer[Snapshot]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.snap.Store(&Snapshot{
		descriptors: map[DescriptorKey]*DescriptorGrammar{},
		sections:    map[uint8]*SectionGrammar{},
	})
	return r
}

// Snapshot returns the current templates. A decode should use one Snapshot
// throughout so that a concurrent reload cannot change templates under it.
func (r *Registry) Snapshot() *Snapshot { return r.snap.Load() }

// Version returns the current version, incremented by every change.
func (r *Registry) Version() uint64 { return r.snap.Load().Version }

// Descriptor is shorthand for r.Snapshot().Descriptor(k).
func (r *Registry) Descriptor(k DescriptorKey) (*DescriptorGrammar, bool) {
	return r.Snapshot().Descriptor(k)
}

// Section is shorthand for r.Snapshot().Section(id).
func (r *Registry) Section(id uint8) (*SectionGrammar, bool) {
	return r.Snapshot().Section(id)
}

// Add validates and adds the given templates, replacing any existing
// templates with the same identifiers. Nothing is added if any template is
// invalid.
func (r *Registry) Add(descs []*DescriptorGrammar, secs []*SectionGrammar) error {
	if err := validateAll(descs, secs); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.snap.Load()
	next := &Snapshot{
		Version:     old.Version + 1,
		descriptors: make(map[DescriptorKey]*DescriptorGrammar, len(old.descriptors)+len(descs)),
		sections:    make(map[uint8]*SectionGrammar, len(old.sections)+len(secs)),
	}
	for k, g := range old.descriptors {
		next.descriptors[k] = g
	}
	for k, g := range old.sections {
		next.sections[k] = g
	}
	insert(next, descs, secs)
	r.snap.Store(next)
	return nil
}

// AddDescriptor adds a single descriptor template.
func (r *Registry) AddDescriptor(g *DescriptorGrammar) error {
	return r.Add([]*DescriptorGrammar{g}, nil)
}

// AddSection adds a single section template.
func (r *Registry) AddSection(g *SectionGrammar) error {
	return r.Add(nil, []*SectionGrammar{g})
}

// Replace validates the given templates and makes them the registry's only
// templates. The registry is unchanged if any template is invalid.
func (r *Registry) Replace(descs []*DescriptorGrammar, secs []*SectionGrammar) error {
	if err := validateAll(descs, secs); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	next := &Snapshot{
		Version:     r.snap.Load().Version + 1,
		descriptors: make(map[DescriptorKey]*DescriptorGrammar, len(descs)),
		sections:    make(map[uint8]*SectionGrammar, len(secs)),
	}
	insert(next, descs, secs)
	r.snap.Store(next)
	return nil
}

func validateAll(descs []*DescriptorGrammar, secs []*SectionGrammar) error {
	for _, g := range descs {
		if err := g.Validate(); err != nil {
			return err
		}
	}
	for _, g := range secs {
		if err := g.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func insert(s *Snapshot, descs []*DescriptorGrammar, secs []*SectionGrammar) {
	for _, g := range descs {
		s.descriptors[g.Key] = g
	}
	for _, g := range secs {
		for _, id := range g.TableIDs {
			s.sections[id] = g
		}
	}
}
