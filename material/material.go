package material

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/g3d/gpucore"
	"github.com/gogpu/g3d/resource"
)

var (
	// ErrStorageInMaterialUnsupported is returned for storage bindings.
	// Storage buffers belong to per-instance or global data.
	ErrStorageInMaterialUnsupported = errors.New("material: storage bindings are not supported in materials")

	// ErrUnknownProperty is returned by Update for a name no uniform uses.
	ErrUnknownProperty = errors.New("material: unknown property")

	// ErrPropertySize is returned when property data is longer than its uniform.
	ErrPropertySize = errors.New("material: property data exceeds uniform size")
)

// LayoutSpec is one bind group of a material.
type LayoutSpec struct {
	Label   string
	Entries []gpucore.BindGroupLayoutEntry
}

// Descriptor declares a material.
type Descriptor struct {
	Name string

	// FragmentShader is the fragment stage the material is drawn with.
	FragmentShader gpucore.ShaderSource

	// Layouts are the material's bind groups, in group order.
	Layouts []LayoutSpec

	// Data seeds uniform buffers, keyed by entry name.
	Data map[string][]byte
}

type uniform struct {
	name   string
	buffer gpucore.BufferID
	size   uint64
	owned  bool
}

// Material is a realized descriptor.
type Material struct {
	name     string
	fragment gpucore.ShaderSource

	layouts    []gpucore.BindGroupLayoutID
	bindGroups []gpucore.BindGroupID

	uniforms []uniform
	// samplers created for entries without an override. Textures are never
	// owned: missing ones come from the factory's shared defaults.
	samplers []gpucore.SamplerID

	props map[string][]byte
	dirty bool
}

// Name returns the descriptor name.
func (m *Material) Name() string { return m.name }

// FragmentShader returns the fragment stage the material is drawn with.
func (m *Material) FragmentShader() gpucore.ShaderSource { return m.fragment }

// Layouts returns the bind group layouts in group order.
func (m *Material) Layouts() []gpucore.BindGroupLayoutID { return slices.Clone(m.layouts) }

// BindGroups returns the bind groups in group order.
func (m *Material) BindGroups() []gpucore.BindGroupID { return slices.Clone(m.bindGroups) }

// Dirty reports whether property changes are waiting for the next Bind.
func (m *Material) Dirty() bool { return m.dirty }

// Property returns the current value of a property.
func (m *Material) Property(name string) ([]byte, bool) {
	v, ok := m.props[name]
	return v, ok
}

// Update sets a uniform property. The buffer is written on the next Bind.
func (m *Material) Update(name string, data []byte) error {
	u, ok := m.uniform(name)
	if !ok {
		return fmt.Errorf("%w: %q on %q", ErrUnknownProperty, name, m.name)
	}
	if uint64(len(data)) > u.size {
		return fmt.Errorf("%w: %q is %d bytes, uniform is %d", ErrPropertySize, name, len(data), u.size)
	}
	m.props[name] = slices.Clone(data)
	m.dirty = true
	return nil
}

func (m *Material) uniform(name string) (uniform, bool) {
	for _, u := range m.uniforms {
		if u.name == name {
			return u, true
		}
	}
	return uniform{}, false
}

// Flush writes every property to its uniform buffer if the material is
// dirty, then clears the dirty flag. The flag stays set if a write fails.
func (m *Material) Flush(res *resource.Manager) error {
	if !m.dirty {
		return nil
	}
	for _, u := range m.uniforms {
		data, ok := m.props[u.name]
		if !ok {
			continue
		}
		padded := make([]byte, u.size)
		copy(padded, data)
		if err := res.WriteToBuffer(u.buffer, padded); err != nil {
			return fmt.Errorf("material %q: property %q: %w", m.name, u.name, err)
		}
	}
	m.dirty = false
	return nil
}

// Bind flushes pending property writes and sets the material's bind groups
// at firstSlot, firstSlot+1, ...
func (m *Material) Bind(res *resource.Manager, pass gpucore.RenderPass, firstSlot uint32) error {
	if err := m.Flush(res); err != nil {
		return err
	}
	for i, bg := range m.bindGroups {
		pass.SetBindGroup(firstSlot+uint32(i), bg, nil)
	}
	return nil
}
