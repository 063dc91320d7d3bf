package material

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/g3d/gpucore"
	"github.com/gogpu/g3d/resource"
)

// Factory realizes materials on a resource manager. It owns the default
// textures shared by materials that do not supply their own.
type Factory struct {
	res *resource.Manager

	mu       sync.Mutex
	defaults map[gpucore.TextureDimension]gpucore.TextureID
}

// NewFactory creates a Factory.
func NewFactory(res *resource.Manager) *Factory {
	return &Factory{
		res:      res,
		defaults: make(map[gpucore.TextureDimension]gpucore.TextureID),
	}
}

// Option overrides a resource a material would otherwise create.
type Option func(*overrides)

type overrides struct {
	buffers  map[string]gpucore.BufferID
	textures map[string]gpucore.TextureID
	samplers map[string]gpucore.SamplerID
}

// WithBuffer binds an existing uniform buffer to the entry called name.
// The material does not release it.
func WithBuffer(name string, id gpucore.BufferID) Option {
	return func(o *overrides) { o.buffers[name] = id }
}

// WithTexture binds an existing texture to the entry called name.
func WithTexture(name string, id gpucore.TextureID) Option {
	return func(o *overrides) { o.textures[name] = id }
}

// WithSampler binds an existing sampler to the entry called name.
func WithSampler(name string, id gpucore.SamplerID) Option {
	return func(o *overrides) { o.samplers[name] = id }
}

// New realizes desc. On failure every resource created so far is released.
func (f *Factory) New(desc Descriptor, opts ...Option) (*Material, error) {
	for _, spec := range desc.Layouts {
		for _, e := range spec.Entries {
			if e.Type == gpucore.BindingStorage {
				return nil, fmt.Errorf("%w: %q entry %q", ErrStorageInMaterialUnsupported, desc.Name, e.Name)
			}
		}
	}

	o := overrides{
		buffers:  make(map[string]gpucore.BufferID),
		textures: make(map[string]gpucore.TextureID),
		samplers: make(map[string]gpucore.SamplerID),
	}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Material{
		name:     desc.Name,
		fragment: desc.FragmentShader,
		props:    make(map[string][]byte),
	}
	for i, spec := range desc.Layouts {
		if err := f.realize(m, desc, i, spec, &o); err != nil {
			_ = f.Release(m)
			return nil, err
		}
	}
	return m, nil
}

func (f *Factory) realize(m *Material, desc Descriptor, group int, spec LayoutSpec, o *overrides) error {
	label := spec.Label
	if label == "" {
		label = fmt.Sprintf("%s/%d", desc.Name, group)
	}
	layout, err := f.res.GetOrCreateLayout(gpucore.BindGroupLayoutDesc{Label: label, Entries: spec.Entries})
	if err != nil {
		return fmt.Errorf("material %q: %w", desc.Name, err)
	}
	m.layouts = append(m.layouts, layout)

	entries := make([]gpucore.BindGroupEntry, len(spec.Entries))
	for i, le := range spec.Entries {
		e := gpucore.BindGroupEntry{Binding: le.Binding}
		switch {
		case le.Type == gpucore.BindingUniform:
			id, err := f.uniform(m, desc, le, o)
			if err != nil {
				return err
			}
			e.Buffer = id
		case le.Type.IsTexture():
			if id, ok := o.textures[le.Name]; ok {
				e.Texture = id
				break
			}
			id, err := f.defaultTexture(le.Type)
			if err != nil {
				return fmt.Errorf("material %q: default texture for %q: %w", desc.Name, le.Name, err)
			}
			e.Texture = id
		case le.Type == gpucore.BindingSampler:
			if id, ok := o.samplers[le.Name]; ok {
				e.Sampler = id
				break
			}
			id, err := f.res.CreateSampler()
			if err != nil {
				return fmt.Errorf("material %q: %w", desc.Name, err)
			}
			m.samplers = append(m.samplers, id)
			e.Sampler = id
		default:
			return fmt.Errorf("%w: %q entry %q has type %v", resource.ErrInvalidDescriptor, desc.Name, le.Name, le.Type)
		}
		entries[i] = e
	}

	bg, err := f.res.CreateBindGroup(layout, entries)
	if err != nil {
		return fmt.Errorf("material %q group %d: %w", desc.Name, group, err)
	}
	m.bindGroups = append(m.bindGroups, bg)
	return nil
}

func (f *Factory) uniform(m *Material, desc Descriptor, le gpucore.BindGroupLayoutEntry, o *overrides) (gpucore.BufferID, error) {
	data, seeded := desc.Data[le.Name]
	if uint64(len(data)) > le.Size {
		return gpucore.InvalidID, fmt.Errorf("%w: %q property %q is %d bytes, uniform is %d",
			ErrPropertySize, desc.Name, le.Name, len(data), le.Size)
	}

	u := uniform{name: le.Name, size: le.Size}
	if id, ok := o.buffers[le.Name]; ok {
		u.buffer = id
	} else {
		id, err := f.res.CreateBuffer(desc.Name+"."+le.Name, gpucore.BufferDescriptor{
			Size:  le.Size,
			Usage: gpucore.BufferUsageUniform,
		}, data)
		if err != nil {
			return gpucore.InvalidID, fmt.Errorf("material %q: %w", desc.Name, err)
		}
		u.buffer = id
		u.owned = true
	}
	m.uniforms = append(m.uniforms, u)
	if seeded {
		m.props[le.Name] = slices.Clone(data)
		// An override buffer holds unknown contents; seed it on first bind.
		if !u.owned {
			m.dirty = true
		}
	}
	return u.buffer, nil
}

var white = []byte{255, 255, 255, 255}

// defaultTexture returns the shared 1x1 white texture for binding type t,
// creating it on first use.
func (f *Factory) defaultTexture(t gpucore.BindingType) (gpucore.TextureID, error) {
	data := gpucore.TextureData{Width: 1, Height: 1, Format: gpucore.TextureFormatRGBA8Unorm}
	switch t {
	case gpucore.BindingTextureArray:
		data.Dimension = gpucore.Texture2DArray
	case gpucore.BindingCubeTexture:
		data.Dimension = gpucore.TextureCube
		data.Layers = 6
	}
	for range data.LayerCount() {
		data.Pixels = append(data.Pixels, white...)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.defaults[data.Dimension]; ok {
		return id, nil
	}
	id, err := f.res.CreateTexture(data, fmt.Sprintf("default-%v", t))
	if err != nil {
		return gpucore.InvalidID, err
	}
	f.defaults[data.Dimension] = id
	return id, nil
}

// Release destroys the bind groups and the resources the material created.
// Override resources and default textures are left alone.
func (f *Factory) Release(m *Material) error {
	var errs []error
	for _, bg := range m.bindGroups {
		errs = append(errs, f.res.ReleaseBindGroup(bg))
	}
	for _, u := range m.uniforms {
		if u.owned {
			errs = append(errs, f.res.ReleaseBuffer(u.buffer))
		}
	}
	for _, s := range m.samplers {
		errs = append(errs, f.res.ReleaseSampler(s))
	}
	m.bindGroups, m.uniforms, m.samplers = nil, nil, nil
	return errors.Join(errs...)
}

// Close releases the shared default textures.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	for dim, id := range f.defaults {
		errs = append(errs, f.res.ReleaseTexture(id))
		delete(f.defaults, dim)
	}
	return errors.Join(errs...)
}
