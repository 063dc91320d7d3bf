//go:build !nogpu

package native

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/g3d/backend"
	"github.com/gogpu/g3d/gpucore"
)

func init() {
	backend.Register(backend.Native, func(opts backend.Options) (gpucore.Device, error) {
		return OpenVulkan(Config{
			Width:        opts.Width,
			Height:       opts.Height,
			ShaderFormat: opts.ShaderFormat,
		})
	})
}

// Native driver errors.
var (
	// ErrNilDevice is returned when a driver is created without a HAL device or queue.
	ErrNilDevice = errors.New("native: HAL device or queue is nil")

	// ErrUnalignedWrite is returned when a buffer write does not start on a
	// 4-byte boundary.
	ErrUnalignedWrite = errors.New("native: buffer write offset is not 4-byte aligned")

	// ErrNoAdapter is returned when no GPU adapter is found.
	ErrNoAdapter = errors.New("native: no GPU adapters found")
)

// Shader formats accepted by Config.ShaderFormat.
const (
	ShaderFormatWGSL  = "wgsl"
	ShaderFormatSPIRV = "spirv"
)

// Config configures a Device.
type Config struct {
	// Width and Height size the offscreen color and depth targets.
	// Zero selects 800x600.
	Width, Height uint32

	// Format is the color target format. Zero selects RGBA8Unorm.
	Format gputypes.TextureFormat

	// ShaderFormat selects how WGSL reaches the HAL: "wgsl" (default)
	// passes source through, "spirv" compiles it with naga first.
	ShaderFormat string
}

func (c Config) withDefaults() Config {
	if c.Width == 0 {
		c.Width = 800
	}
	if c.Height == 0 {
		c.Height = 600
	}
	if c.Format == gputypes.TextureFormatUndefined {
		c.Format = gputypes.TextureFormatRGBA8Unorm
	}
	if c.ShaderFormat == "" {
		c.ShaderFormat = ShaderFormatWGSL
	}
	return c
}

type buffer struct {
	raw   hal.Buffer
	label string
	size  uint64 // requested size; raw is rounded up to 4 bytes
	usage gpucore.BufferUsage
}

type texture struct {
	raw  hal.Texture
	view hal.TextureView
	name string
}

type pipeline struct {
	raw    hal.RenderPipeline
	layout hal.PipelineLayout
	desc   gpucore.PipelineDesc
}

// Device is the explicit-binding driver on top of a gogpu/wgpu HAL device.
// Resource creation is safe for concurrent use; each RenderPass must be
// recorded from a single goroutine.
type Device struct {
	cfg    Config
	device hal.Device
	queue  hal.Queue
	owner  func() // releases what OpenVulkan opened, nil otherwise

	color     hal.Texture
	colorView hal.TextureView
	depth     hal.Texture
	depthView hal.TextureView

	clearMu    sync.Mutex
	clearColor gputypes.Color

	mu         sync.RWMutex
	closed     bool
	buffers    map[gpucore.BufferID]*buffer
	textures   map[gpucore.TextureID]*texture
	samplers   map[gpucore.SamplerID]hal.Sampler
	layouts    map[gpucore.BindGroupLayoutID]hal.BindGroupLayout
	bindGroups map[gpucore.BindGroupID]hal.BindGroup
	pipelines  map[gpucore.PipelineID]*pipeline
	shaders    shaderCache

	pending []submitted
	submits atomic.Uint64
	nextID  atomic.Uint64
}

// submitted is a command buffer in flight.
type submitted struct {
	index uint64
	cmd   hal.CommandBuffer
}

// New wraps an open HAL device and queue. The caller keeps ownership of
// both; Close releases only what the driver created.
func New(device hal.Device, queue hal.Queue, cfg Config) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	cfg = cfg.withDefaults()
	if cfg.ShaderFormat != ShaderFormatWGSL && cfg.ShaderFormat != ShaderFormatSPIRV {
		return nil, fmt.Errorf("native: unknown shader format %q", cfg.ShaderFormat)
	}
	d := &Device{
		cfg:        cfg,
		device:     device,
		queue:      queue,
		clearColor: gputypes.Color{A: 1},
		buffers:    make(map[gpucore.BufferID]*buffer),
		textures:   make(map[gpucore.TextureID]*texture),
		samplers:   make(map[gpucore.SamplerID]hal.Sampler),
		layouts:    make(map[gpucore.BindGroupLayoutID]hal.BindGroupLayout),
		bindGroups: make(map[gpucore.BindGroupID]hal.BindGroup),
		pipelines:  make(map[gpucore.PipelineID]*pipeline),
		shaders:    newShaderCache(cfg.ShaderFormat),
	}
	if err := d.createTargets(); err != nil {
		d.destroyTargets()
		return nil, err
	}
	slogger().Info("native: device ready", "width", cfg.Width, "height", cfg.Height,
		"format", cfg.Format, "shaders", cfg.ShaderFormat)
	return d, nil
}

// createTargets allocates the offscreen color and depth attachments.
func (d *Device) createTargets() error {
	size := hal.Extent3D{Width: d.cfg.Width, Height: d.cfg.Height, DepthOrArrayLayers: 1}

	color, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "g3d_color_target",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        d.cfg.Format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("native: create color target: %w", err)
	}
	d.color = color
	if d.colorView, err = d.device.CreateTextureView(color, &hal.TextureViewDescriptor{Label: "g3d_color_target_view"}); err != nil {
		return fmt.Errorf("native: create color target view: %w", err)
	}

	depth, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "g3d_depth_target",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatDepth32Float,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("native: create depth target: %w", err)
	}
	d.depth = depth
	if d.depthView, err = d.device.CreateTextureView(depth, &hal.TextureViewDescriptor{Label: "g3d_depth_target_view"}); err != nil {
		return fmt.Errorf("native: create depth target view: %w", err)
	}
	return nil
}

// destroyTargets releases the attachments. Each is nil-checked to support
// partial cleanup.
func (d *Device) destroyTargets() {
	if d.depthView != nil {
		d.device.DestroyTextureView(d.depthView)
		d.depthView = nil
	}
	if d.depth != nil {
		d.device.DestroyTexture(d.depth)
		d.depth = nil
	}
	if d.colorView != nil {
		d.device.DestroyTextureView(d.colorView)
		d.colorView = nil
	}
	if d.color != nil {
		d.device.DestroyTexture(d.color)
		d.color = nil
	}
}

func (d *Device) newID() uint64 { return d.nextID.Add(1) }

// Capabilities reports an explicit-binding device: any usage combination is
// accepted and vertex layouts travel with the pipeline.
func (d *Device) Capabilities() gpucore.Capabilities {
	return gpucore.Capabilities{
		Name:                 backend.Native,
		RequiresVertexLayout: false,
		MaxBindGroups:        int(gputypes.DefaultLimits().MaxBindGroups),
	}
}

// Target returns the offscreen color texture passes render into.
func (d *Device) Target() hal.Texture { return d.color }

// SetClearColor sets the color the target is cleared to at pass start.
func (d *Device) SetClearColor(c gputypes.Color) {
	d.clearMu.Lock()
	d.clearColor = c
	d.clearMu.Unlock()
}

// === Pipelines ===

// InitPipeline compiles both stages and links a render pipeline against the
// offscreen targets. Every pipeline carries depth state because passes always
// attach the depth target; DepthTest selects whether it tests and writes.
func (d *Device) InitPipeline(desc gpucore.PipelineDesc) (gpucore.PipelineID, error) {
	fail := func(err error) (gpucore.PipelineID, error) {
		return gpucore.InvalidID, fmt.Errorf("%w: %q: %w", gpucore.ErrPipelineCreationFailed, desc.Label, err)
	}
	buffers, err := vertexBuffers(desc.VertexLayouts)
	if err != nil {
		return fail(err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}

	groupLayouts := make([]hal.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, id := range desc.BindGroupLayouts {
		l, ok := d.layouts[id]
		if !ok {
			return fail(fmt.Errorf("layout %d: %w", id, gpucore.ErrResourceNotFound))
		}
		groupLayouts[i] = l
	}

	vs, err := d.shaders.get(d.device, desc.Vertex)
	if err != nil {
		return fail(err)
	}
	fs, err := d.shaders.get(d.device, desc.Fragment)
	if err != nil {
		return fail(err)
	}

	layout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_layout",
		BindGroupLayouts: groupLayouts,
	})
	if err != nil {
		return fail(err)
	}

	blend := gputypes.BlendStatePremultiplied()
	compare := gputypes.CompareFunctionAlways
	if desc.DepthTest {
		compare = gputypes.CompareFunctionLess
	}
	raw, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vs,
			EntryPoint: entryPoint(desc.Vertex, "vs_main"),
			Buffers:    buffers,
		},
		Primitive: primitiveState(desc),
		DepthStencil: &hal.DepthStencilState{
			Format:            gputypes.TextureFormatDepth32Float,
			DepthWriteEnabled: desc.DepthTest,
			DepthCompare:      compare,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		Fragment: &hal.FragmentState{
			Module:     fs,
			EntryPoint: entryPoint(desc.Fragment, "fs_main"),
			Targets: []gputypes.ColorTargetState{{
				Format:    d.cfg.Format,
				Blend:     &blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		d.device.DestroyPipelineLayout(layout)
		return fail(err)
	}

	id := gpucore.PipelineID(d.newID())
	desc.VertexLayouts = slices.Clone(desc.VertexLayouts)
	desc.BindGroupLayouts = slices.Clone(desc.BindGroupLayouts)
	d.pipelines[id] = &pipeline{raw: raw, layout: layout, desc: desc}
	slogger().Debug("native: pipeline linked", "label", desc.Label, "id", id, "groups", len(groupLayouts))
	return id, nil
}

func entryPoint(s gpucore.ShaderSource, fallback string) string {
	if s.EntryPoint != "" {
		return s.EntryPoint
	}
	return fallback
}

// DestroyPipeline releases a pipeline and its layout. Shader modules stay
// cached until Close.
func (d *Device) DestroyPipeline(id gpucore.PipelineID) {
	d.mu.Lock()
	p, ok := d.pipelines[id]
	delete(d.pipelines, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyRenderPipeline(p.raw)
		d.device.DestroyPipelineLayout(p.layout)
	}
}

// CreateShaderLayout creates a HAL bind group layout.
func (d *Device) CreateShaderLayout(desc gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	entries := make([]gputypes.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		le, err := layoutEntry(e)
		if err != nil {
			return gpucore.InvalidID, err
		}
		entries[i] = le
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	raw, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: desc.Label, Entries: entries})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create layout %q: %w", desc.Label, err)
	}
	id := gpucore.BindGroupLayoutID(d.newID())
	d.layouts[id] = raw
	return id, nil
}

// CreateBindGroup resolves entry IDs to HAL handles and creates the group.
func (d *Device) CreateBindGroup(layout gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) (gpucore.BindGroupID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	rawLayout, ok := d.layouts[layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: layout %d", gpucore.ErrResourceNotFound, layout)
	}

	out := make([]gputypes.BindGroupEntry, len(entries))
	for i, e := range entries {
		out[i].Binding = e.Binding
		switch {
		case e.Buffer != gpucore.InvalidID:
			b, ok := d.buffers[e.Buffer]
			if !ok {
				return gpucore.InvalidID, fmt.Errorf("%w: buffer %d", gpucore.ErrResourceNotFound, e.Buffer)
			}
			size := e.Size
			if size == 0 {
				size = b.size - min(e.Offset, b.size)
			}
			out[i].Resource = gputypes.BufferBinding{Buffer: b.raw.NativeHandle(), Offset: e.Offset, Size: size}
		case e.Texture != gpucore.InvalidID:
			t, ok := d.textures[e.Texture]
			if !ok {
				return gpucore.InvalidID, fmt.Errorf("%w: texture %d", gpucore.ErrResourceNotFound, e.Texture)
			}
			out[i].Resource = gputypes.TextureViewBinding{TextureView: t.view.NativeHandle()}
		case e.Sampler != gpucore.InvalidID:
			s, ok := d.samplers[e.Sampler]
			if !ok {
				return gpucore.InvalidID, fmt.Errorf("%w: sampler %d", gpucore.ErrResourceNotFound, e.Sampler)
			}
			out[i].Resource = gputypes.SamplerBinding{Sampler: s.NativeHandle()}
		default:
			return gpucore.InvalidID, fmt.Errorf("%w: entry %d binds nothing", gpucore.ErrBindGroupLayoutMismatch, i)
		}
	}

	raw, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{Layout: rawLayout, Entries: out})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create bind group: %w", err)
	}
	id := gpucore.BindGroupID(d.newID())
	d.bindGroups[id] = raw
	return id, nil
}

// DestroyBindGroup releases a bind group.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	g, ok := d.bindGroups[id]
	delete(d.bindGroups, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyBindGroup(g)
	}
}

// === Buffer Management ===

// CreateBuffer allocates a zero-filled buffer.
func (d *Device) CreateBuffer(label string, desc gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	return d.CreateBufferWithData(label, desc, nil)
}

// CreateBufferWithData allocates a buffer and uploads data through the queue.
func (d *Device) CreateBufferWithData(label string, desc gpucore.BufferDescriptor, data []byte) (gpucore.BufferID, error) {
	if uint64(len(data)) > desc.Size {
		return gpucore.InvalidID, fmt.Errorf("%w: %d bytes into %d", gpucore.ErrBufferOverrun, len(data), desc.Size)
	}
	usage := desc.Usage
	if len(data) > 0 {
		usage |= gpucore.BufferUsageCopyDst
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  alignUp(max(desc.Size, 4)),
		Usage: bufferUsage(usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create buffer %q: %w", label, err)
	}
	if len(data) > 0 {
		if err := d.queue.WriteBuffer(raw, 0, padded(data)); err != nil {
			d.device.DestroyBuffer(raw)
			return gpucore.InvalidID, fmt.Errorf("native: upload buffer %q: %w", label, err)
		}
	}
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &buffer{raw: raw, label: label, size: desc.Size, usage: usage}
	return id, nil
}

// padded returns data extended with zeros to a multiple of 4 bytes.
func padded(data []byte) []byte {
	n := alignUp(uint64(len(data)))
	if n == uint64(len(data)) {
		return data
	}
	out := make([]byte, n)
	copy(out, data)
	return out
}

// WriteBuffer schedules a queue write. The offset must be 4-byte aligned;
// a trailing partial word is zero-padded inside the allocation.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.RLock()
	b, ok := d.buffers[id]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrResourceNotFound, id)
	}
	if offset > b.size || uint64(len(data)) > b.size-offset {
		return fmt.Errorf("%w: %d bytes at %d into %q", gpucore.ErrBufferOverrun, len(data), offset, b.label)
	}
	if len(data) == 0 {
		return nil
	}
	if offset%4 != 0 {
		return fmt.Errorf("%w: %d into %q", ErrUnalignedWrite, offset, b.label)
	}
	if err := d.queue.WriteBuffer(b.raw, offset, padded(data)); err != nil {
		return fmt.Errorf("native: write %q: %w", b.label, err)
	}
	return nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	b, ok := d.buffers[id]
	delete(d.buffers, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyBuffer(b.raw)
	}
}

// === Textures ===

// CreateTexture creates a sampled texture with a view matching its
// dimension and uploads the pixels, if any.
func (d *Device) CreateTexture(data gpucore.TextureData, name string) (gpucore.TextureID, error) {
	format, err := textureFormat(data.Format)
	if err != nil {
		return gpucore.InvalidID, err
	}
	if len(data.Pixels) > 0 && len(data.Pixels) != data.ByteSize() {
		return gpucore.InvalidID, fmt.Errorf("%w: texture %q has %d bytes, want %d",
			gpucore.ErrBufferOverrun, name, len(data.Pixels), data.ByteSize())
	}
	layers := data.LayerCount()
	size := hal.Extent3D{Width: data.Width, Height: data.Height, DepthOrArrayLayers: layers}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	raw, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         name,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create texture %q: %w", name, err)
	}
	view, err := d.device.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:           name + "_view",
		Format:          format,
		Dimension:       viewDimension(data.Dimension),
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: layers,
	})
	if err != nil {
		d.device.DestroyTexture(raw)
		return gpucore.InvalidID, fmt.Errorf("native: create view for %q: %w", name, err)
	}
	if len(data.Pixels) > 0 {
		err := d.queue.WriteTexture(
			&hal.ImageCopyTexture{Texture: raw, Aspect: gputypes.TextureAspectAll},
			data.Pixels,
			&hal.ImageDataLayout{BytesPerRow: data.Width * data.Format.BytesPerPixel(), RowsPerImage: data.Height},
			&size,
		)
		if err != nil {
			d.device.DestroyTextureView(view)
			d.device.DestroyTexture(raw)
			return gpucore.InvalidID, fmt.Errorf("native: upload texture %q: %w", name, err)
		}
	}
	id := gpucore.TextureID(d.newID())
	d.textures[id] = &texture{raw: raw, view: view, name: name}
	return id, nil
}

// DestroyTexture releases a texture and its view.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	t, ok := d.textures[id]
	delete(d.textures, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyTextureView(t.view)
		d.device.DestroyTexture(t.raw)
	}
}

// CreateSampler creates a HAL sampler.
func (d *Device) CreateSampler(desc gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceClosed
	}
	raw, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: addressMode(desc.AddressU),
		AddressModeV: addressMode(desc.AddressV),
		AddressModeW: addressMode(desc.AddressW),
		MagFilter:    filterMode(desc.MagFilter),
		MinFilter:    filterMode(desc.MinFilter),
		MipmapFilter: filterMode(desc.MipmapFilter),
		LodMaxClamp:  32,
		Anisotropy:   1,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create sampler %q: %w", desc.Label, err)
	}
	id := gpucore.SamplerID(d.newID())
	d.samplers[id] = raw
	return id, nil
}

// DestroySampler releases a sampler.
func (d *Device) DestroySampler(id gpucore.SamplerID) {
	d.mu.Lock()
	s, ok := d.samplers[id]
	delete(d.samplers, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroySampler(s)
	}
}

// === Inspection ===

// Submissions returns the number of passes handed to the queue.
func (d *Device) Submissions() uint64 { return d.submits.Load() }

// Live returns the number of live buffers, textures, samplers and bind groups.
func (d *Device) Live() (buffers, textures, samplers, bindGroups int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.buffers), len(d.textures), len(d.samplers), len(d.bindGroups)
}

// Close waits for the queue to drain and releases every resource the driver
// created. Safe to call more than once.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	if err := d.device.WaitIdle(); err != nil {
		slogger().Warn("native: wait idle failed", "err", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.pending {
		d.device.FreeCommandBuffer(s.cmd)
	}
	d.pending = nil
	for _, g := range d.bindGroups {
		d.device.DestroyBindGroup(g)
	}
	for _, p := range d.pipelines {
		d.device.DestroyRenderPipeline(p.raw)
		d.device.DestroyPipelineLayout(p.layout)
	}
	for _, l := range d.layouts {
		d.device.DestroyBindGroupLayout(l)
	}
	for _, b := range d.buffers {
		d.device.DestroyBuffer(b.raw)
	}
	for _, t := range d.textures {
		d.device.DestroyTextureView(t.view)
		d.device.DestroyTexture(t.raw)
	}
	for _, s := range d.samplers {
		d.device.DestroySampler(s)
	}
	clear(d.bindGroups)
	clear(d.pipelines)
	clear(d.layouts)
	clear(d.buffers)
	clear(d.textures)
	clear(d.samplers)
	d.shaders.destroy(d.device)
	d.destroyTargets()

	if d.owner != nil {
		d.owner()
		d.owner = nil
	}
}

var _ gpucore.Device = (*Device)(nil)
