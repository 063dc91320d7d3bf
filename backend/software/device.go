// Package software implements an immediate-mode raster driver on the CPU.
//
// It models the constraints of a classic raster API: vertex buffers carry
// CPU-side layout metadata that must match the bound pipeline, vertex and
// storage usage cannot be combined, and draws execute as they are recorded.
// Buffer contents are kept in memory and every submitted pass is kept as a
// command log, which makes the driver the reference device for tests and
// headless runs.
package software

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/g3d/backend"
	"github.com/gogpu/g3d/gpucore"
)

func init() {
	backend.Register(backend.Software, func(backend.Options) (gpucore.Device, error) {
		return New(), nil
	})
}

type buffer struct {
	label  string
	usage  gpucore.BufferUsage
	layout *gpucore.VertexLayout
	data   []byte
}

type texture struct {
	name string
	data gpucore.TextureData
}

type bindGroup struct {
	layout  gpucore.BindGroupLayoutID
	entries []gpucore.BindGroupEntry
}

// Device is the software driver. It is safe for concurrent use; each
// RenderPass must be recorded from a single goroutine.
type Device struct {
	caps gpucore.Capabilities

	mu         sync.RWMutex
	closed     bool
	buffers    map[gpucore.BufferID]*buffer
	textures   map[gpucore.TextureID]*texture
	samplers   map[gpucore.SamplerID]gpucore.SamplerDesc
	layouts    map[gpucore.BindGroupLayoutID]gpucore.BindGroupLayoutDesc
	bindGroups map[gpucore.BindGroupID]bindGroup
	pipelines  map[gpucore.PipelineID]gpucore.PipelineDesc

	passes     [][]Command
	writeFault func(label string) error

	nextID atomic.Uint64
}

// Option configures a Device.
type Option func(*Device)

// WithForbiddenUsage replaces the rejected buffer usage combinations.
func WithForbiddenUsage(combos ...gpucore.BufferUsage) Option {
	return func(d *Device) { d.caps.ForbiddenUsage = combos }
}

// WithMaxBindGroups sets the number of bind group slots per pipeline.
func WithMaxBindGroups(n int) Option {
	return func(d *Device) { d.caps.MaxBindGroups = n }
}

// New creates a software device.
func New(opts ...Option) *Device {
	d := &Device{
		caps: gpucore.Capabilities{
			Name:                 backend.Software,
			ForbiddenUsage:       []gpucore.BufferUsage{gpucore.BufferUsageVertex | gpucore.BufferUsageStorage},
			RequiresVertexLayout: true,
			MaxBindGroups:        4,
		},
		buffers:    make(map[gpucore.BufferID]*buffer),
		textures:   make(map[gpucore.TextureID]*texture),
		samplers:   make(map[gpucore.SamplerID]gpucore.SamplerDesc),
		layouts:    make(map[gpucore.BindGroupLayoutID]gpucore.BindGroupLayoutDesc),
		bindGroups: make(map[gpucore.BindGroupID]bindGroup),
		pipelines:  make(map[gpucore.PipelineID]gpucore.PipelineDesc),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Device) newID() uint64 { return d.nextID.Add(1) }

// Capabilities reports the raster constraints.
func (d *Device) Capabilities() gpucore.Capabilities {
	caps := d.caps
	caps.ForbiddenUsage = slices.Clone(d.caps.ForbiddenUsage)
	return caps
}

// === Pipelines ===

// InitPipeline links a pipeline. Both stages need an entry point or a
// name, and every bind group layout must exist.
func (d *Device) InitPipeline(desc gpucore.PipelineDesc) (gpucore.PipelineID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	if desc.Vertex.WGSL == "" && desc.Vertex.Name == "" {
		return gpucore.InvalidID, fmt.Errorf("%w: %q has no vertex stage", gpucore.ErrPipelineCreationFailed, desc.Label)
	}
	if desc.Fragment.WGSL == "" && desc.Fragment.Name == "" {
		return gpucore.InvalidID, fmt.Errorf("%w: %q has no fragment stage", gpucore.ErrPipelineCreationFailed, desc.Label)
	}
	for _, l := range desc.BindGroupLayouts {
		if _, ok := d.layouts[l]; !ok {
			return gpucore.InvalidID, fmt.Errorf("%w: %q references layout %d", gpucore.ErrPipelineCreationFailed, desc.Label, l)
		}
	}
	id := gpucore.PipelineID(d.newID())
	desc.VertexLayouts = slices.Clone(desc.VertexLayouts)
	desc.BindGroupLayouts = slices.Clone(desc.BindGroupLayouts)
	d.pipelines[id] = desc
	return id, nil
}

// DestroyPipeline releases a pipeline.
func (d *Device) DestroyPipeline(id gpucore.PipelineID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pipelines, id)
}

// CreateShaderLayout stores a bind group layout.
func (d *Device) CreateShaderLayout(desc gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	id := gpucore.BindGroupLayoutID(d.newID())
	desc.Entries = slices.Clone(desc.Entries)
	d.layouts[id] = desc
	return id, nil
}

// CreateBindGroup stores a bind group after checking it against its layout.
func (d *Device) CreateBindGroup(layout gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) (gpucore.BindGroupID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	desc, ok := d.layouts[layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: layout %d", gpucore.ErrResourceNotFound, layout)
	}
	if len(desc.Entries) != len(entries) {
		return gpucore.InvalidID, fmt.Errorf("%w: %d entries for %d bindings", gpucore.ErrBindGroupLayoutMismatch, len(entries), len(desc.Entries))
	}
	for i, e := range entries {
		if e.Binding != desc.Entries[i].Binding || !e.Accepts(desc.Entries[i].Type) {
			return gpucore.InvalidID, fmt.Errorf("%w: entry %d", gpucore.ErrBindGroupLayoutMismatch, i)
		}
	}
	id := gpucore.BindGroupID(d.newID())
	d.bindGroups[id] = bindGroup{layout: layout, entries: slices.Clone(entries)}
	return id, nil
}

// DestroyBindGroup releases a bind group.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.bindGroups, id)
}

// === Buffer Management ===

// CreateBuffer allocates a zero-filled buffer.
func (d *Device) CreateBuffer(label string, desc gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	return d.CreateBufferWithData(label, desc, nil)
}

// CreateBufferWithData allocates a buffer and copies data into its start.
func (d *Device) CreateBufferWithData(label string, desc gpucore.BufferDescriptor, data []byte) (gpucore.BufferID, error) {
	if !d.caps.Allows(desc.Usage) {
		return gpucore.InvalidID, fmt.Errorf("%w: %v", gpucore.ErrUnsupportedUsageCombination, desc.Usage)
	}
	if desc.Usage.Has(gpucore.BufferUsageVertex) && desc.Layout == nil {
		return gpucore.InvalidID, fmt.Errorf("%w: %q", gpucore.ErrMissingVertexLayout, label)
	}
	if uint64(len(data)) > desc.Size {
		return gpucore.InvalidID, fmt.Errorf("%w: %d bytes into %d", gpucore.ErrBufferOverrun, len(data), desc.Size)
	}

	b := &buffer{label: label, usage: desc.Usage, data: make([]byte, desc.Size)}
	if desc.Layout != nil {
		l := *desc.Layout
		l.Elements = slices.Clone(l.Elements)
		b.layout = &l
	}
	copy(b.data, data)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = b
	return id, nil
}

// WriteBuffer copies data into the buffer at offset.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrResourceNotFound, id)
	}
	if d.writeFault != nil {
		if err := d.writeFault(b.label); err != nil {
			return err
		}
	}
	size := uint64(len(b.data))
	if offset > size || uint64(len(data)) > size-offset {
		return fmt.Errorf("%w: %d bytes at %d into %q", gpucore.ErrBufferOverrun, len(data), offset, b.label)
	}
	copy(b.data[offset:], data)
	return nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, id)
}

// === Textures ===

// CreateTexture stores a copy of the texture payload.
func (d *Device) CreateTexture(data gpucore.TextureData, name string) (gpucore.TextureID, error) {
	data.Pixels = slices.Clone(data.Pixels)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	id := gpucore.TextureID(d.newID())
	d.textures[id] = &texture{name: name, data: data}
	return id, nil
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.textures, id)
}

// CreateSampler stores a sampler description.
func (d *Device) CreateSampler(desc gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	id := gpucore.SamplerID(d.newID())
	d.samplers[id] = desc
	return id, nil
}

// DestroySampler releases a sampler.
func (d *Device) DestroySampler(id gpucore.SamplerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.samplers, id)
}

// Close drops every resource. Later creation calls fail with
// gpucore.ErrDeviceClosed.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	clear(d.buffers)
	clear(d.textures)
	clear(d.samplers)
	clear(d.layouts)
	clear(d.bindGroups)
	clear(d.pipelines)
}

var _ gpucore.Device = (*Device)(nil)
