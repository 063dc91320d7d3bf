package resource

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/gogpu/g3d/gpucore"
)

// layoutTable deduplicates bind group layouts. Layouts are bucketed by a
// hash of their ordered entries and confirmed with a structural compare.
type layoutTable struct {
	buckets map[uint64][]gpucore.BindGroupLayoutID
	descs   map[gpucore.BindGroupLayoutID]gpucore.BindGroupLayoutDesc
}

func newLayoutTable() layoutTable {
	return layoutTable{
		buckets: make(map[uint64][]gpucore.BindGroupLayoutID),
		descs:   make(map[gpucore.BindGroupLayoutID]gpucore.BindGroupLayoutDesc),
	}
}

func (t *layoutTable) len() int { return len(t.descs) }

func (t *layoutTable) find(h uint64, entries []gpucore.BindGroupLayoutEntry) (gpucore.BindGroupLayoutID, bool) {
	for _, id := range t.buckets[h] {
		if sameEntries(t.descs[id].Entries, entries) {
			return id, true
		}
	}
	return gpucore.InvalidID, false
}

// layoutHash hashes the ordered (binding, type, visibility, size) tuples.
// Entry names and the label are not part of the identity.
func layoutHash(entries []gpucore.BindGroupLayoutEntry) uint64 {
	d := xxhash.New()
	var buf [14]byte
	for _, e := range entries {
		binary.LittleEndian.PutUint32(buf[0:4], e.Binding)
		buf[4] = byte(e.Type)
		buf[5] = byte(e.Visibility)
		binary.LittleEndian.PutUint64(buf[6:14], e.Size)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

func sameEntries(a, b []gpucore.BindGroupLayoutEntry) bool {
	return slices.EqualFunc(a, b, func(x, y gpucore.BindGroupLayoutEntry) bool {
		return x.Binding == y.Binding && x.Type == y.Type && x.Visibility == y.Visibility && x.Size == y.Size
	})
}

func validateLayout(desc gpucore.BindGroupLayoutDesc) error {
	seen := make(map[uint32]struct{}, len(desc.Entries))
	for i, e := range desc.Entries {
		if _, dup := seen[e.Binding]; dup {
			return fmt.Errorf("%w: layout %q binds slot %d twice", ErrInvalidDescriptor, desc.Label, e.Binding)
		}
		seen[e.Binding] = struct{}{}
		if e.Type < gpucore.BindingUniform || e.Type > gpucore.BindingCubeTexture {
			return fmt.Errorf("%w: layout %q entry %d has binding type %v", ErrInvalidDescriptor, desc.Label, i, e.Type)
		}
		if e.Type == gpucore.BindingUniform && e.Size == 0 {
			return fmt.Errorf("%w: layout %q uniform at slot %d has zero size", ErrInvalidDescriptor, desc.Label, e.Binding)
		}
		if e.Visibility == 0 {
			return fmt.Errorf("%w: layout %q slot %d is visible to no stage", ErrInvalidDescriptor, desc.Label, e.Binding)
		}
	}
	return nil
}

// GetOrCreateLayout returns the layout for desc, creating it on first use.
// Structurally identical entry lists share one handle; the same entries in a
// different order are a different layout.
func (m *Manager) GetOrCreateLayout(desc gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	if err := validateLayout(desc); err != nil {
		return gpucore.InvalidID, err
	}
	h := layoutHash(desc.Entries)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return gpucore.InvalidID, ErrClosed
	}
	if id, ok := m.layouts.find(h, desc.Entries); ok {
		return id, nil
	}

	id, err := m.dev.CreateShaderLayout(desc)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("resource: create layout %q: %w", desc.Label, err)
	}
	stored := desc
	stored.Entries = slices.Clone(desc.Entries)
	m.layouts.descs[id] = stored
	m.layouts.buckets[h] = append(m.layouts.buckets[h], id)

	slogger().Debug("resource: layout created", "label", desc.Label, "id", id, "entries", len(desc.Entries))
	return id, nil
}

// LayoutDesc returns the description a layout was created from.
func (m *Manager) LayoutDesc(id gpucore.BindGroupLayoutID) (gpucore.BindGroupLayoutDesc, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	desc, ok := m.layouts.descs[id]
	return desc, ok
}

// CreateBindGroup binds resources to layout. entries must list the layout's
// bindings in layout order, each carrying a resource of the right kind;
// otherwise the call fails with gpucore.ErrBindGroupLayoutMismatch.
func (m *Manager) CreateBindGroup(layout gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) (gpucore.BindGroupID, error) {
	m.mu.RLock()
	desc, ok := m.layouts.descs[layout]
	if !ok {
		m.mu.RUnlock()
		return gpucore.InvalidID, fmt.Errorf("%w: layout %d", gpucore.ErrResourceNotFound, layout)
	}
	err := m.checkEntries(desc, entries)
	m.mu.RUnlock()
	if err != nil {
		return gpucore.InvalidID, err
	}

	id, err := m.dev.CreateBindGroup(layout, entries)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("resource: create bind group for %q: %w", desc.Label, err)
	}
	m.mu.Lock()
	m.bindGroups[id] = layout
	m.mu.Unlock()
	return id, nil
}

// checkEntries validates entries against desc. Caller must hold m.mu.
func (m *Manager) checkEntries(desc gpucore.BindGroupLayoutDesc, entries []gpucore.BindGroupEntry) error {
	if len(entries) != len(desc.Entries) {
		return fmt.Errorf("%w: layout %q has %d entries, got %d",
			gpucore.ErrBindGroupLayoutMismatch, desc.Label, len(desc.Entries), len(entries))
	}
	for i, le := range desc.Entries {
		e := entries[i]
		if e.Binding != le.Binding {
			return fmt.Errorf("%w: entry %d binds slot %d, layout %q expects %d",
				gpucore.ErrBindGroupLayoutMismatch, i, e.Binding, desc.Label, le.Binding)
		}
		if !e.Accepts(le.Type) {
			return fmt.Errorf("%w: slot %d of %q expects a %v resource",
				gpucore.ErrBindGroupLayoutMismatch, le.Binding, desc.Label, le.Type)
		}

		switch {
		case le.Type.IsBuffer():
			info, ok := m.buffers[e.Buffer]
			if !ok {
				return fmt.Errorf("%w: buffer %d", gpucore.ErrResourceNotFound, e.Buffer)
			}
			want := gpucore.BufferUsageUniform
			if le.Type == gpucore.BindingStorage {
				want = gpucore.BufferUsageStorage
			}
			if !info.usage.Has(want) {
				return fmt.Errorf("%w: buffer %q bound at slot %d lacks %v usage",
					gpucore.ErrBindGroupLayoutMismatch, info.label, le.Binding, want)
			}
			if info.size < e.Offset+le.Size {
				return fmt.Errorf("%w: buffer %q is %d bytes, slot %d needs %d at offset %d",
					gpucore.ErrBindGroupLayoutMismatch, info.label, info.size, le.Binding, le.Size, e.Offset)
			}
		case le.Type.IsTexture():
			info, ok := m.textures[e.Texture]
			if !ok {
				return fmt.Errorf("%w: texture %d", gpucore.ErrResourceNotFound, e.Texture)
			}
			if info.dimension != textureDimension(le.Type) {
				return fmt.Errorf("%w: texture %q bound at %v slot %d",
					gpucore.ErrBindGroupLayoutMismatch, info.name, le.Type, le.Binding)
			}
		case le.Type == gpucore.BindingSampler:
			if _, ok := m.samplers[e.Sampler]; !ok {
				return fmt.Errorf("%w: sampler %d", gpucore.ErrResourceNotFound, e.Sampler)
			}
		}
	}
	return nil
}

func textureDimension(t gpucore.BindingType) gpucore.TextureDimension {
	switch t {
	case gpucore.BindingTextureArray:
		return gpucore.Texture2DArray
	case gpucore.BindingCubeTexture:
		return gpucore.TextureCube
	default:
		return gpucore.Texture2D
	}
}

// ReleaseBindGroup destroys a bind group. The resources it references are
// not released.
func (m *Manager) ReleaseBindGroup(id gpucore.BindGroupID) error {
	m.mu.Lock()
	_, ok := m.bindGroups[id]
	delete(m.bindGroups, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: bind group %d", gpucore.ErrResourceNotFound, id)
	}
	m.dev.DestroyBindGroup(id)
	return nil
}
