package geometry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/g3d/gpucore"
	"github.com/gogpu/g3d/resource"
)

var (
	// ErrNoIndices is returned for a geometry without indices.
	ErrNoIndices = errors.New("geometry: no indices")

	// ErrIndexOutOfRange is returned when an index points past the last vertex.
	ErrIndexOutOfRange = errors.New("geometry: index out of range")
)

// PositionAttribute is the array used to compute bounds.
const PositionAttribute = "position"

// Factory builds geometries on a resource manager.
type Factory struct {
	res *resource.Manager
}

// NewFactory creates a Factory.
func NewFactory(res *resource.Manager) *Factory {
	return &Factory{res: res}
}

// New interleaves arrays for shader and uploads the result.
// The attributes taken from arrays, and their order, come from the
// manager's stride table entry for shader.
func (f *Factory) New(label, shader string, arrays map[string][]float32, indices []uint32) (*Geometry, error) {
	layout, err := f.res.VertexLayout(shader)
	if err != nil {
		return nil, fmt.Errorf("geometry %q: %w", label, err)
	}
	data, _, err := Interleave(arrays, StridesOf(layout))
	if err != nil {
		return nil, fmt.Errorf("geometry %q: %w", label, err)
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoIndices, label)
	}
	vertexCount := uint32(len(data) / layout.Stride())
	for i, idx := range indices {
		if idx >= vertexCount {
			return nil, fmt.Errorf("%w: %q index %d is %d, %d vertices", ErrIndexOutOfRange, label, i, idx, vertexCount)
		}
	}

	vb, err := f.res.CreateBuffer(label+".vertices", gpucore.BufferDescriptor{
		Size:   uint64(len(data)) * 4,
		Usage:  gpucore.BufferUsageVertex,
		Layout: &layout,
	}, Float32Bytes(data))
	if err != nil {
		return nil, fmt.Errorf("geometry %q: %w", label, err)
	}
	ib, err := f.res.CreateBuffer(label+".indices", gpucore.BufferDescriptor{
		Size:  uint64(len(indices)) * 4,
		Usage: gpucore.BufferUsageIndex,
	}, Uint32Bytes(indices))
	if err != nil {
		_ = f.res.ReleaseBuffer(vb)
		return nil, fmt.Errorf("geometry %q: %w", label, err)
	}

	return &Geometry{
		Label:        label,
		VertexBuffer: vb,
		IndexBuffer:  ib,
		IndexCount:   uint32(len(indices)),
		VertexCount:  vertexCount,
		Descriptor:   Descriptor{Shader: shader, Layout: layout},
		Bounds:       ComputeBounds(arrays[PositionAttribute]),
	}, nil
}

// Release frees the geometry's buffers.
func (f *Factory) Release(g *Geometry) error {
	return errors.Join(f.res.ReleaseBuffer(g.VertexBuffer), f.res.ReleaseBuffer(g.IndexBuffer))
}

// Float32Bytes encodes v as little-endian bytes.
func Float32Bytes(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// Uint32Bytes encodes v as little-endian bytes.
func Uint32Bytes(v []uint32) []byte {
	out := make([]byte, len(v)*4)
	for i, u := range v {
		binary.LittleEndian.PutUint32(out[i*4:], u)
	}
	return out
}
