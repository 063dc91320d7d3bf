package resource

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/g3d/gpucore"
	"github.com/gogpu/g3d/internal/cache"
)

// Manager errors.
var (
	// ErrInvalidDescriptor is returned for descriptors that no backend could
	// accept (zero-sized buffers, duplicate bindings, empty textures).
	ErrInvalidDescriptor = errors.New("resource: invalid descriptor")

	// ErrInitialDataTooLarge is returned when initial buffer contents are
	// longer than the buffer.
	ErrInitialDataTooLarge = errors.New("resource: initial data exceeds buffer size")

	// ErrUnknownShader is returned when the stride table has no entry for a
	// shader.
	ErrUnknownShader = errors.New("resource: shader has no stride entry")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("resource: manager closed")
)

// Config configures a Manager.
type Config struct {
	// Strides maps a vertex shader name to the vertex elements it consumes,
	// in attribute order. Geometry is interleaved following this table.
	Strides map[string][]gpucore.VertexElement

	// LayoutCacheLimit bounds the derived vertex layout cache.
	// 0 means unlimited.
	LayoutCacheLimit int

	// Sampler is used by CreateSampler. Zero value means
	// gpucore.DefaultSamplerDesc.
	Sampler *gpucore.SamplerDesc
}

type bufferInfo struct {
	label string
	size  uint64
	usage gpucore.BufferUsage
}

type textureInfo struct {
	name      string
	dimension gpucore.TextureDimension
}

// Manager creates GPU resources on a device from declarative descriptors,
// validates them against the device's capabilities and deduplicates the ones
// that are shared (bind group layouts, pipelines).
//
// Every handle it returns stays valid until released through the matching
// Release method or Close. Manager is safe for concurrent use.
type Manager struct {
	dev  gpucore.Device
	caps gpucore.Capabilities
	cfg  Config

	mu         sync.RWMutex
	closed     bool
	buffers    map[gpucore.BufferID]bufferInfo
	textures   map[gpucore.TextureID]textureInfo
	samplers   map[gpucore.SamplerID]struct{}
	bindGroups map[gpucore.BindGroupID]gpucore.BindGroupLayoutID
	layouts    layoutTable

	pipelines     *cache.Cache[string, gpucore.PipelineID]
	pipelineMu    sync.RWMutex // guards pipelineDescs, taken under the cache lock
	pipelineDescs map[gpucore.PipelineID]gpucore.PipelineDesc
	vertexLayouts *cache.Cache[string, gpucore.VertexLayout]
}

// New creates a Manager on dev.
func New(dev gpucore.Device, cfg Config) *Manager {
	m := &Manager{
		dev:        dev,
		caps:       dev.Capabilities(),
		cfg:        cfg,
		buffers:    make(map[gpucore.BufferID]bufferInfo),
		textures:   make(map[gpucore.TextureID]textureInfo),
		samplers:   make(map[gpucore.SamplerID]struct{}),
		bindGroups: make(map[gpucore.BindGroupID]gpucore.BindGroupLayoutID),
		layouts:    newLayoutTable(),

		pipelineDescs: make(map[gpucore.PipelineID]gpucore.PipelineDesc),
	}
	m.pipelines = cache.New[string, gpucore.PipelineID](0, func(_ string, id gpucore.PipelineID) {
		m.pipelineMu.Lock()
		delete(m.pipelineDescs, id)
		m.pipelineMu.Unlock()
		dev.DestroyPipeline(id)
	})
	m.vertexLayouts = cache.New[string, gpucore.VertexLayout](cfg.LayoutCacheLimit, nil)
	return m
}

// Device returns the underlying device.
func (m *Manager) Device() gpucore.Device { return m.dev }

// Capabilities returns the device capabilities.
func (m *Manager) Capabilities() gpucore.Capabilities { return m.caps }

// === Buffers ===

// CreateBuffer allocates a buffer of desc.Size bytes, seeded with
// initialData when it is non-empty. BufferUsageCopyDst is always added so
// the buffer can be updated through WriteToBuffer.
func (m *Manager) CreateBuffer(label string, desc gpucore.BufferDescriptor, initialData []byte) (gpucore.BufferID, error) {
	if desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: buffer %q has zero size", ErrInvalidDescriptor, label)
	}
	if uint64(len(initialData)) > desc.Size {
		return gpucore.InvalidID, fmt.Errorf("%w: %q: %d > %d bytes", ErrInitialDataTooLarge, label, len(initialData), desc.Size)
	}
	if !m.caps.Allows(desc.Usage) {
		return gpucore.InvalidID, fmt.Errorf("%w: %q on %s: %v", gpucore.ErrUnsupportedUsageCombination, label, m.caps.Name, desc.Usage)
	}
	if m.caps.RequiresVertexLayout && desc.Usage.Has(gpucore.BufferUsageVertex) && desc.Layout == nil {
		return gpucore.InvalidID, fmt.Errorf("%w: %q on %s", gpucore.ErrMissingVertexLayout, label, m.caps.Name)
	}
	if err := m.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}

	desc.Usage |= gpucore.BufferUsageCopyDst

	var (
		id  gpucore.BufferID
		err error
	)
	if len(initialData) > 0 {
		id, err = m.dev.CreateBufferWithData(label, desc, initialData)
	} else {
		id, err = m.dev.CreateBuffer(label, desc)
	}
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("resource: create buffer %q: %w", label, err)
	}

	m.mu.Lock()
	m.buffers[id] = bufferInfo{label: label, size: desc.Size, usage: desc.Usage}
	m.mu.Unlock()

	slogger().Debug("resource: buffer created", "label", label, "id", id, "size", desc.Size, "usage", desc.Usage.String())
	return id, nil
}

// BufferSize returns the size of a live buffer.
func (m *Manager) BufferSize(id gpucore.BufferID) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.buffers[id]
	return info.size, ok
}

// Range selects the part of a write. Zero values mean "from the start" and,
// for Length, "everything after DataOffset".
type Range struct {
	BufferOffset uint64
	DataOffset   uint64
	Length       uint64
}

// WriteToBuffer overwrites the start of the buffer with data.
func (m *Manager) WriteToBuffer(id gpucore.BufferID, data []byte) error {
	return m.WriteRange(id, data, Range{})
}

// WriteRange copies data[r.DataOffset:r.DataOffset+r.Length] into the buffer
// at r.BufferOffset. Ranges outside data or the buffer fail with
// gpucore.ErrBufferOverrun and nothing is written.
func (m *Manager) WriteRange(id gpucore.BufferID, data []byte, r Range) error {
	m.mu.RLock()
	info, ok := m.buffers[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrResourceNotFound, id)
	}

	dataLen := uint64(len(data))
	if r.DataOffset > dataLen {
		return fmt.Errorf("%w: data offset %d past %d bytes of data", gpucore.ErrBufferOverrun, r.DataOffset, dataLen)
	}
	n := r.Length
	if n == 0 {
		n = dataLen - r.DataOffset
	}
	if r.DataOffset+n > dataLen {
		return fmt.Errorf("%w: %d bytes at data offset %d exceed %d bytes of data", gpucore.ErrBufferOverrun, n, r.DataOffset, dataLen)
	}
	if r.BufferOffset > info.size || n > info.size-r.BufferOffset {
		return fmt.Errorf("%w: %d bytes at offset %d into %q (%d bytes)", gpucore.ErrBufferOverrun, n, r.BufferOffset, info.label, info.size)
	}
	if n == 0 {
		return nil
	}
	return m.dev.WriteBuffer(id, r.BufferOffset, data[r.DataOffset:r.DataOffset+n])
}

// ReleaseBuffer destroys a buffer.
func (m *Manager) ReleaseBuffer(id gpucore.BufferID) error {
	m.mu.Lock()
	_, ok := m.buffers[id]
	delete(m.buffers, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrResourceNotFound, id)
	}
	m.dev.DestroyBuffer(id)
	return nil
}

// === Textures and samplers ===

// CreateTexture uploads a decoded texture. Textures without a name get a
// generated unique label.
func (m *Manager) CreateTexture(data gpucore.TextureData, name string) (gpucore.TextureID, error) {
	if data.Width == 0 || data.Height == 0 || data.Format.BytesPerPixel() == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: texture %q is %dx%d format %d", ErrInvalidDescriptor, name, data.Width, data.Height, data.Format)
	}
	if len(data.Pixels) != 0 && len(data.Pixels) != data.ByteSize() {
		return gpucore.InvalidID, fmt.Errorf("%w: texture %q has %d bytes, want %d", ErrInvalidDescriptor, name, len(data.Pixels), data.ByteSize())
	}
	if data.Dimension == gpucore.TextureCube && (data.LayerCount() != 6 || data.Width != data.Height) {
		return gpucore.InvalidID, fmt.Errorf("%w: cube texture %q needs 6 square layers", ErrInvalidDescriptor, name)
	}
	if err := m.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}
	if name == "" {
		name = "texture-" + uuid.NewString()
	}

	id, err := m.dev.CreateTexture(data, name)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("resource: create texture %q: %w", name, err)
	}

	m.mu.Lock()
	m.textures[id] = textureInfo{name: name, dimension: data.Dimension}
	m.mu.Unlock()
	return id, nil
}

// TextureName returns the label of a live texture.
func (m *Manager) TextureName(id gpucore.TextureID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.textures[id]
	return info.name, ok
}

// ReleaseTexture destroys a texture.
func (m *Manager) ReleaseTexture(id gpucore.TextureID) error {
	m.mu.Lock()
	_, ok := m.textures[id]
	delete(m.textures, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: texture %d", gpucore.ErrResourceNotFound, id)
	}
	m.dev.DestroyTexture(id)
	return nil
}

// CreateSampler creates a sampler from the configured default description.
func (m *Manager) CreateSampler() (gpucore.SamplerID, error) {
	desc := gpucore.DefaultSamplerDesc()
	if m.cfg.Sampler != nil {
		desc = *m.cfg.Sampler
	}
	return m.CreateSamplerWith(desc)
}

// CreateSamplerWith creates a sampler from desc.
func (m *Manager) CreateSamplerWith(desc gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	if err := m.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}
	id, err := m.dev.CreateSampler(desc)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("resource: create sampler: %w", err)
	}
	m.mu.Lock()
	m.samplers[id] = struct{}{}
	m.mu.Unlock()
	return id, nil
}

// ReleaseSampler destroys a sampler.
func (m *Manager) ReleaseSampler(id gpucore.SamplerID) error {
	m.mu.Lock()
	_, ok := m.samplers[id]
	delete(m.samplers, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: sampler %d", gpucore.ErrResourceNotFound, id)
	}
	m.dev.DestroySampler(id)
	return nil
}

// === Lifetime ===

// Stats reports the number of live resources per kind.
type Stats struct {
	Buffers    int
	Textures   int
	Samplers   int
	Layouts    int
	BindGroups int
	Pipelines  int

	VertexLayoutCache cache.Stats
}

// Stats returns the current resource counts.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Buffers:           len(m.buffers),
		Textures:          len(m.textures),
		Samplers:          len(m.samplers),
		Layouts:           m.layouts.len(),
		BindGroups:        len(m.bindGroups),
		Pipelines:         m.pipelines.Len(),
		VertexLayoutCache: m.vertexLayouts.Stats(),
	}
}

// Close destroys every resource created through the manager. Layouts are
// owned by the device and released with it. The device itself is not closed.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	bindGroups, buffers, textures, samplers := m.bindGroups, m.buffers, m.textures, m.samplers
	m.bindGroups = make(map[gpucore.BindGroupID]gpucore.BindGroupLayoutID)
	m.buffers = make(map[gpucore.BufferID]bufferInfo)
	m.textures = make(map[gpucore.TextureID]textureInfo)
	m.samplers = make(map[gpucore.SamplerID]struct{})
	m.mu.Unlock()

	for id := range bindGroups {
		m.dev.DestroyBindGroup(id)
	}
	m.pipelines.Clear()
	for id := range buffers {
		m.dev.DestroyBuffer(id)
	}
	for id := range textures {
		m.dev.DestroyTexture(id)
	}
	for id := range samplers {
		m.dev.DestroySampler(id)
	}
	m.vertexLayouts.Clear()
	slogger().Debug("resource: manager closed",
		"buffers", len(buffers), "textures", len(textures), "bindGroups", len(bindGroups))
}

func (m *Manager) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}
