package gpucore

import (
	"strconv"
	"strings"
)

// Resource IDs
//
// These opaque IDs represent GPU resources. Each driver maintains a mapping
// between IDs and actual backend resources.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture.
type TextureID uint64

// SamplerID is an opaque handle to a texture sampler.
type SamplerID uint64

// PipelineID is an opaque handle to a render pipeline.
type PipelineID uint64

// BindGroupLayoutID is an opaque handle to a bind group layout.
type BindGroupLayoutID uint64

// BindGroupID is an opaque handle to a bind group.
type BindGroupID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 0

	// BufferUsageCopyDst indicates the buffer can be written by the queue.
	BufferUsageCopyDst BufferUsage = 1 << 1

	// BufferUsageIndex indicates the buffer can be used as an index buffer.
	BufferUsageIndex BufferUsage = 1 << 2

	// BufferUsageVertex indicates the buffer can be used as a vertex buffer.
	BufferUsageVertex BufferUsage = 1 << 3

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 4

	// BufferUsageStorage indicates the buffer can be used as a storage buffer.
	BufferUsageStorage BufferUsage = 1 << 5
)

// Has reports whether every flag in f is set.
func (u BufferUsage) Has(f BufferUsage) bool { return u&f == f }

// String returns the flags joined with '|'.
func (u BufferUsage) String() string {
	if u == 0 {
		return "none"
	}
	names := []struct {
		f    BufferUsage
		name string
	}{
		{BufferUsageCopySrc, "copy-src"},
		{BufferUsageCopyDst, "copy-dst"},
		{BufferUsageIndex, "index"},
		{BufferUsageVertex, "vertex"},
		{BufferUsageUniform, "uniform"},
		{BufferUsageStorage, "storage"},
	}
	var parts []string
	for _, n := range names {
		if u&n.f != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ElementType is the scalar type of one vertex element component.
type ElementType uint8

// Element types.
const (
	ElementFloat32 ElementType = iota + 1
	ElementUint32
	ElementSint32
)

// Size returns the size of one component in bytes.
func (t ElementType) Size() uint64 {
	switch t {
	case ElementFloat32, ElementUint32, ElementSint32:
		return 4
	default:
		return 0
	}
}

func (t ElementType) String() string {
	switch t {
	case ElementFloat32:
		return "f32"
	case ElementUint32:
		return "u32"
	case ElementSint32:
		return "i32"
	default:
		return "unknown"
	}
}

// StepMode selects whether a vertex buffer advances per vertex or per instance.
type StepMode uint8

// Step modes.
const (
	StepVertex StepMode = iota
	StepInstance
)

// VertexElement is one named attribute of a vertex layout.
type VertexElement struct {
	Name  string
	Type  ElementType
	Count int
}

// VertexLayout is an ordered list of vertex elements.
//
// Raster backends need it on the CPU side to configure attribute pointers.
// Explicit backends take it as part of the pipeline description.
type VertexLayout struct {
	Elements []VertexElement
	StepMode StepMode
}

// Stride returns the total number of components per vertex.
func (l VertexLayout) Stride() int {
	n := 0
	for _, e := range l.Elements {
		n += e.Count
	}
	return n
}

// StrideBytes returns the size of one vertex in bytes.
func (l VertexLayout) StrideBytes() uint64 {
	var n uint64
	for _, e := range l.Elements {
		n += uint64(e.Count) * e.Type.Size()
	}
	return n
}

// Offset returns the byte offset of element i.
func (l VertexLayout) Offset(i int) uint64 {
	var n uint64
	for _, e := range l.Elements[:i] {
		n += uint64(e.Count) * e.Type.Size()
	}
	return n
}

// Key returns a canonical serialization of the layout.
// Two layouts with equal keys are interchangeable.
func (l VertexLayout) Key() string {
	var b strings.Builder
	for i, e := range l.Elements {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(e.Name)
		b.WriteByte(':')
		b.WriteString(e.Type.String())
		b.WriteByte('x')
		b.WriteString(strconv.Itoa(e.Count))
	}
	if l.StepMode == StepInstance {
		b.WriteString("@instance")
	}
	return b.String()
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	// Size is the buffer size in bytes.
	Size uint64

	// Usage is the set of ways the buffer will be used.
	Usage BufferUsage

	// Layout is optional CPU-side vertex layout metadata. Backends reporting
	// Capabilities.RequiresVertexLayout need it on vertex buffers.
	Layout *VertexLayout
}

// TextureFormat specifies the format of texture data.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatRGBA8Unorm is 8-bit RGBA, normalized unsigned integer.
	TextureFormatRGBA8Unorm TextureFormat = iota + 1

	// TextureFormatRGBA8UnormSRGB is 8-bit RGBA in sRGB color space.
	TextureFormatRGBA8UnormSRGB

	// TextureFormatBGRA8Unorm is 8-bit BGRA, normalized unsigned integer.
	TextureFormatBGRA8Unorm

	// TextureFormatRGBA32Float is 32-bit RGBA, floating point.
	TextureFormatRGBA32Float
)

// BytesPerPixel returns the size of one texel in bytes.
func (f TextureFormat) BytesPerPixel() uint32 {
	switch f {
	case TextureFormatRGBA8Unorm, TextureFormatRGBA8UnormSRGB, TextureFormatBGRA8Unorm:
		return 4
	case TextureFormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// TextureDimension is the shape of a texture.
type TextureDimension uint8

// Texture dimensions.
const (
	Texture2D TextureDimension = iota
	Texture2DArray
	TextureCube
)

// TextureData is a decoded texture payload.
type TextureData struct {
	Width, Height uint32

	// Layers is the number of array layers. Cube textures have 6.
	// Zero is treated as 1.
	Layers uint32

	Format    TextureFormat
	Dimension TextureDimension

	// Pixels holds tightly packed texel rows, layer after layer.
	// It may be empty to create an uninitialized texture.
	Pixels []byte
}

// LayerCount returns Layers with the zero value mapped to 1.
func (d TextureData) LayerCount() uint32 {
	if d.Layers == 0 {
		return 1
	}
	return d.Layers
}

// ByteSize returns the expected length of Pixels.
func (d TextureData) ByteSize() int {
	return int(d.Width) * int(d.Height) * int(d.LayerCount()) * int(d.Format.BytesPerPixel())
}

// FilterMode selects texel filtering.
type FilterMode uint8

// Filter modes.
const (
	FilterLinear FilterMode = iota
	FilterNearest
)

// AddressMode selects how coordinates outside [0, 1] are resolved.
type AddressMode uint8

// Address modes.
const (
	AddressClampToEdge AddressMode = iota
	AddressRepeat
	AddressMirrorRepeat
)

// SamplerDesc describes a texture sampler.
type SamplerDesc struct {
	Label                        string
	MagFilter, MinFilter         FilterMode
	MipmapFilter                 FilterMode
	AddressU, AddressV, AddressW AddressMode
}

// DefaultSamplerDesc returns a linear, repeating sampler.
func DefaultSamplerDesc() SamplerDesc {
	return SamplerDesc{
		Label:    "default",
		AddressU: AddressRepeat,
		AddressV: AddressRepeat,
		AddressW: AddressRepeat,
	}
}

// BindingType specifies the type of a shader binding.
type BindingType uint8

// Binding types.
const (
	// BindingUniform is a uniform buffer binding.
	BindingUniform BindingType = iota + 1

	// BindingStorage is a storage buffer binding.
	BindingStorage

	// BindingTexture is a sampled 2D texture binding.
	BindingTexture

	// BindingSampler is a texture sampler binding.
	BindingSampler

	// BindingTextureArray is a sampled 2D array texture binding.
	BindingTextureArray

	// BindingCubeTexture is a sampled cube texture binding.
	BindingCubeTexture
)

// IsBuffer reports whether the binding takes a buffer.
func (t BindingType) IsBuffer() bool {
	return t == BindingUniform || t == BindingStorage
}

// IsTexture reports whether the binding takes a texture.
func (t BindingType) IsTexture() bool {
	return t == BindingTexture || t == BindingTextureArray || t == BindingCubeTexture
}

func (t BindingType) String() string {
	switch t {
	case BindingUniform:
		return "uniform"
	case BindingStorage:
		return "storage"
	case BindingTexture:
		return "texture"
	case BindingSampler:
		return "sampler"
	case BindingTextureArray:
		return "texture-array"
	case BindingCubeTexture:
		return "cube-texture"
	default:
		return "binding(" + strconv.Itoa(int(t)) + ")"
	}
}

// ShaderStage is a bitmask of shader stages a binding is visible to.
type ShaderStage uint8

// Shader stages.
const (
	StageVertex ShaderStage = 1 << iota
	StageFragment
	StageCompute
)

// BindGroupLayoutEntry describes a single binding in a bind group layout.
type BindGroupLayoutEntry struct {
	// Binding is the binding index.
	Binding uint32

	// Type is the type of resource bound at this index.
	Type BindingType

	// Visibility is the set of stages that can access the binding.
	Visibility ShaderStage

	// Size is the byte length of uniform bindings. Zero for other types.
	Size uint64

	// Name keys the binding into material property data. It does not take
	// part in layout equality.
	Name string
}

// BindGroupLayoutDesc describes a bind group layout.
type BindGroupLayoutDesc struct {
	// Label is an optional debug label.
	Label string

	// Entries defines the bindings in this layout, in order.
	Entries []BindGroupLayoutEntry
}

// BindGroupEntry describes a single binding in a bind group.
// Exactly one of Buffer, Texture or Sampler is set.
type BindGroupEntry struct {
	// Binding is the binding index.
	Binding uint32

	// Buffer is the buffer to bind (for buffer bindings).
	Buffer BufferID

	// Offset is the offset into the buffer.
	Offset uint64

	// Size is the size of the buffer range to bind.
	// Use 0 to bind the entire buffer from offset.
	Size uint64

	// Texture is the texture to bind (for texture bindings).
	Texture TextureID

	// Sampler is the sampler to bind (for sampler bindings).
	Sampler SamplerID
}

// Accepts reports whether the entry carries the resource kind t expects.
func (e BindGroupEntry) Accepts(t BindingType) bool {
	switch {
	case t.IsBuffer():
		return e.Buffer != InvalidID && e.Texture == InvalidID && e.Sampler == InvalidID
	case t.IsTexture():
		return e.Texture != InvalidID && e.Buffer == InvalidID && e.Sampler == InvalidID
	case t == BindingSampler:
		return e.Sampler != InvalidID && e.Buffer == InvalidID && e.Texture == InvalidID
	default:
		return false
	}
}

// ShaderSource identifies one shader stage.
type ShaderSource struct {
	// Name identifies the shader. Geometry strides are looked up by it.
	Name string

	// WGSL is the shader source code.
	WGSL string

	// EntryPoint is the stage entry function.
	EntryPoint string
}

// Topology is the primitive assembly mode.
type Topology uint8

// Topologies.
const (
	TopologyTriangleList Topology = iota
	TopologyLineList
	TopologyPointList
)

// CullMode selects which faces are discarded.
type CullMode uint8

// Cull modes.
const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// PipelineDesc describes a render pipeline.
type PipelineDesc struct {
	// Label is an optional debug label.
	Label string

	Vertex   ShaderSource
	Fragment ShaderSource

	// VertexLayouts lists vertex buffer layouts by slot.
	VertexLayouts []VertexLayout

	// BindGroupLayouts lists bind group layouts by group index.
	BindGroupLayouts []BindGroupLayoutID

	Topology  Topology
	CullMode  CullMode
	DepthTest bool
}

// Capabilities reports the backend-specific parts of the contract.
type Capabilities struct {
	// Name is the backend identifier.
	Name string

	// ForbiddenUsage lists usage combinations the backend rejects.
	// A buffer is rejected when its usage contains every flag of any entry.
	ForbiddenUsage []BufferUsage

	// RequiresVertexLayout reports whether vertex buffers must carry
	// BufferDescriptor.Layout.
	RequiresVertexLayout bool

	// MaxBindGroups is the number of bind group slots a pipeline may use.
	MaxBindGroups int
}

// Allows reports whether a buffer with the given usage can be created.
func (c Capabilities) Allows(usage BufferUsage) bool {
	for _, f := range c.ForbiddenUsage {
		if f != 0 && usage.Has(f) {
			return false
		}
	}
	return true
}
