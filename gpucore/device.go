package gpucore

// Device is the contract every backend driver implements.
//
// The engine talks to the GPU only through this interface, so the same
// renderer runs on an immediate-mode raster backend and on an explicit
// binding backend.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - IDs become invalid after destruction and are never reused
//
// Drivers must be safe for concurrent resource creation. Render passes are
// recorded from a single goroutine.
type Device interface {
	// === Capabilities ===

	// Capabilities reports backend-specific rules that callers must honor.
	Capabilities() Capabilities

	// === Pipelines ===

	// InitPipeline compiles and links a render pipeline.
	// Backend failures are wrapped in ErrPipelineCreationFailed.
	InitPipeline(desc PipelineDesc) (PipelineID, error)

	// DestroyPipeline releases a pipeline.
	DestroyPipeline(id PipelineID)

	// CreateShaderLayout creates a bind group layout.
	CreateShaderLayout(desc BindGroupLayoutDesc) (BindGroupLayoutID, error)

	// CreateBindGroup binds concrete resources to a layout.
	// Entries must match the layout's arity and binding numbers.
	CreateBindGroup(layout BindGroupLayoutID, entries []BindGroupEntry) (BindGroupID, error)

	// DestroyBindGroup releases a bind group.
	DestroyBindGroup(id BindGroupID)

	// === Buffer Management ===

	// CreateBuffer creates a zero-filled buffer.
	CreateBuffer(label string, desc BufferDescriptor) (BufferID, error)

	// CreateBufferWithData creates a buffer and uploads data at offset 0.
	// len(data) must not exceed desc.Size.
	CreateBufferWithData(label string, desc BufferDescriptor, data []byte) (BufferID, error)

	// WriteBuffer overwrites len(data) bytes starting at offset.
	// Out-of-range writes fail with ErrBufferOverrun and change nothing.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// DestroyBuffer releases a buffer.
	DestroyBuffer(id BufferID)

	// === Textures ===

	// CreateTexture creates a texture and uploads data.Pixels if present.
	CreateTexture(data TextureData, name string) (TextureID, error)

	// DestroyTexture releases a texture.
	DestroyTexture(id TextureID)

	// CreateSampler creates a texture sampler.
	CreateSampler(desc SamplerDesc) (SamplerID, error)

	// DestroySampler releases a sampler.
	DestroySampler(id SamplerID)

	// === Command Recording ===

	// BeginRenderPass opens a command recording scope. The pass must be
	// closed by exactly one call to RenderPass.Submit.
	BeginRenderPass() (RenderPass, error)

	// Close releases every resource still owned by the device.
	Close()
}

// RenderPass records draw commands. Submit is terminal.
type RenderPass interface {
	// UsePipeline binds a pipeline for subsequent draws.
	UsePipeline(id PipelineID)

	// SetVertexBuffer binds a vertex buffer to a slot.
	SetVertexBuffer(slot uint32, id BufferID)

	// SetBindGroup binds a bind group at the given group index.
	SetBindGroup(index uint32, id BindGroupID, dynamicOffsets []uint32)

	// DrawInstanced draws indexCount indices from indexBuffer instanceCount times.
	DrawInstanced(indexBuffer BufferID, indexCount, instanceCount uint32)

	// DrawIndexed draws indexCount indices from indexBuffer once.
	DrawIndexed(indexBuffer BufferID, indexCount uint32)

	// Submit ends recording and flushes the pass to the GPU.
	// Recording errors that occurred earlier are reported here.
	Submit() error
}
