//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/g3d/gpucore"
)

// Translation from the device-neutral descriptors to gputypes.

func bufferUsage(u gpucore.BufferUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if u.Has(gpucore.BufferUsageCopySrc) {
		out |= gputypes.BufferUsageCopySrc
	}
	if u.Has(gpucore.BufferUsageCopyDst) {
		out |= gputypes.BufferUsageCopyDst
	}
	if u.Has(gpucore.BufferUsageIndex) {
		out |= gputypes.BufferUsageIndex
	}
	if u.Has(gpucore.BufferUsageVertex) {
		out |= gputypes.BufferUsageVertex
	}
	if u.Has(gpucore.BufferUsageUniform) {
		out |= gputypes.BufferUsageUniform
	}
	if u.Has(gpucore.BufferUsageStorage) {
		out |= gputypes.BufferUsageStorage
	}
	return out
}

func textureFormat(f gpucore.TextureFormat) (gputypes.TextureFormat, error) {
	switch f {
	case gpucore.TextureFormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm, nil
	case gpucore.TextureFormatRGBA8UnormSRGB:
		return gputypes.TextureFormatRGBA8UnormSrgb, nil
	case gpucore.TextureFormatBGRA8Unorm:
		return gputypes.TextureFormatBGRA8Unorm, nil
	case gpucore.TextureFormatRGBA32Float:
		return gputypes.TextureFormatRGBA32Float, nil
	default:
		return 0, fmt.Errorf("native: unsupported texture format %d", f)
	}
}

func viewDimension(d gpucore.TextureDimension) gputypes.TextureViewDimension {
	switch d {
	case gpucore.Texture2DArray:
		return gputypes.TextureViewDimension2DArray
	case gpucore.TextureCube:
		return gputypes.TextureViewDimensionCube
	default:
		return gputypes.TextureViewDimension2D
	}
}

func filterMode(f gpucore.FilterMode) gputypes.FilterMode {
	if f == gpucore.FilterNearest {
		return gputypes.FilterModeNearest
	}
	return gputypes.FilterModeLinear
}

func addressMode(a gpucore.AddressMode) gputypes.AddressMode {
	switch a {
	case gpucore.AddressRepeat:
		return gputypes.AddressModeRepeat
	case gpucore.AddressMirrorRepeat:
		return gputypes.AddressModeMirrorRepeat
	default:
		return gputypes.AddressModeClampToEdge
	}
}

func shaderStages(s gpucore.ShaderStage) gputypes.ShaderStages {
	var out gputypes.ShaderStages
	if s&gpucore.StageVertex != 0 {
		out |= gputypes.ShaderStageVertex
	}
	if s&gpucore.StageFragment != 0 {
		out |= gputypes.ShaderStageFragment
	}
	if s&gpucore.StageCompute != 0 {
		out |= gputypes.ShaderStageCompute
	}
	return out
}

func layoutEntry(e gpucore.BindGroupLayoutEntry) (gputypes.BindGroupLayoutEntry, error) {
	out := gputypes.BindGroupLayoutEntry{
		Binding:    e.Binding,
		Visibility: shaderStages(e.Visibility),
	}
	switch e.Type {
	case gpucore.BindingUniform:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: e.Size}
	case gpucore.BindingStorage:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
	case gpucore.BindingSampler:
		out.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	case gpucore.BindingTexture, gpucore.BindingTextureArray, gpucore.BindingCubeTexture:
		dim := gpucore.Texture2D
		switch e.Type {
		case gpucore.BindingTextureArray:
			dim = gpucore.Texture2DArray
		case gpucore.BindingCubeTexture:
			dim = gpucore.TextureCube
		}
		out.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: viewDimension(dim),
		}
	default:
		return out, fmt.Errorf("native: binding %d has type %v", e.Binding, e.Type)
	}
	return out, nil
}

func vertexFormat(e gpucore.VertexElement) (gputypes.VertexFormat, error) {
	formats := map[gpucore.ElementType][4]gputypes.VertexFormat{
		gpucore.ElementFloat32: {gputypes.VertexFormatFloat32, gputypes.VertexFormatFloat32x2, gputypes.VertexFormatFloat32x3, gputypes.VertexFormatFloat32x4},
		gpucore.ElementUint32:  {gputypes.VertexFormatUint32, gputypes.VertexFormatUint32x2, gputypes.VertexFormatUint32x3, gputypes.VertexFormatUint32x4},
		gpucore.ElementSint32:  {gputypes.VertexFormatSint32, gputypes.VertexFormatSint32x2, gputypes.VertexFormatSint32x3, gputypes.VertexFormatSint32x4},
	}
	row, ok := formats[e.Type]
	if !ok || e.Count < 1 || e.Count > 4 {
		return 0, fmt.Errorf("native: element %q is %v x%d", e.Name, e.Type, e.Count)
	}
	return row[e.Count-1], nil
}

// vertexBuffers lays the slots out with consecutive shader locations across
// all buffers, in slot order.
func vertexBuffers(layouts []gpucore.VertexLayout) ([]gputypes.VertexBufferLayout, error) {
	out := make([]gputypes.VertexBufferLayout, len(layouts))
	var location uint32
	for i, l := range layouts {
		step := gputypes.VertexStepModeVertex
		if l.StepMode == gpucore.StepInstance {
			step = gputypes.VertexStepModeInstance
		}
		attrs := make([]gputypes.VertexAttribute, len(l.Elements))
		for j, e := range l.Elements {
			f, err := vertexFormat(e)
			if err != nil {
				return nil, err
			}
			attrs[j] = gputypes.VertexAttribute{Format: f, Offset: l.Offset(j), ShaderLocation: location}
			location++
		}
		out[i] = gputypes.VertexBufferLayout{ArrayStride: l.StrideBytes(), StepMode: step, Attributes: attrs}
	}
	return out, nil
}

func primitiveState(desc gpucore.PipelineDesc) gputypes.PrimitiveState {
	ps := gputypes.PrimitiveState{FrontFace: gputypes.FrontFaceCCW}
	switch desc.Topology {
	case gpucore.TopologyLineList:
		ps.Topology = gputypes.PrimitiveTopologyLineList
	case gpucore.TopologyPointList:
		ps.Topology = gputypes.PrimitiveTopologyPointList
	default:
		ps.Topology = gputypes.PrimitiveTopologyTriangleList
	}
	switch desc.CullMode {
	case gpucore.CullBack:
		ps.CullMode = gputypes.CullModeBack
	case gpucore.CullFront:
		ps.CullMode = gputypes.CullModeFront
	default:
		ps.CullMode = gputypes.CullModeNone
	}
	return ps
}

// alignUp rounds n up to a multiple of 4, the queue copy alignment.
func alignUp(n uint64) uint64 { return (n + 3) &^ 3 }
