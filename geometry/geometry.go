package geometry

import (
	"strconv"

	"github.com/gogpu/g3d/gpucore"
)

// Descriptor identifies the shape of a geometry: the vertex shader it was
// built for and the layout of its vertex buffer.
type Descriptor struct {
	Shader string
	Layout gpucore.VertexLayout
}

// Key returns the canonical serialization of the descriptor.
func (d Descriptor) Key() string {
	return d.Shader + "|" + d.Layout.Key()
}

// Geometry is a vertex/index buffer pair ready to draw.
type Geometry struct {
	Label        string
	VertexBuffer gpucore.BufferID
	IndexBuffer  gpucore.BufferID
	IndexCount   uint32
	VertexCount  uint32
	Descriptor   Descriptor
	Bounds       Bounds
}

// Key identifies geometries the renderer may draw with one instanced call.
// It is built from the descriptor and the index count only.
func (g *Geometry) Key() string {
	return g.Descriptor.Key() + "#" + strconv.FormatUint(uint64(g.IndexCount), 10)
}

// Equal reports whether g and o have identical descriptors and index counts.
// Vertex data is not compared.
func (g *Geometry) Equal(o *Geometry) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.IndexCount == o.IndexCount && g.Descriptor.Key() == o.Descriptor.Key()
}
