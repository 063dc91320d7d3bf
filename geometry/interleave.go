package geometry

import (
	"errors"
	"fmt"

	"github.com/gogpu/g3d/gpucore"
)

var (
	// ErrInvalidStride is returned when an array's length is not a multiple
	// of its declared element count.
	ErrInvalidStride = errors.New("geometry: array length is not a multiple of its stride")

	// ErrInconsistentItemCount is returned when arrays describe different
	// numbers of vertices.
	ErrInconsistentItemCount = errors.New("geometry: arrays have different item counts")

	// ErrMissingArray is returned when the stride spec names an array that
	// was not supplied.
	ErrMissingArray = errors.New("geometry: missing vertex array")
)

// Stride names an array and the number of elements each vertex takes from it.
type Stride struct {
	Name  string
	Count int
}

// Interleave packs arrays into a single vertex array following spec.
//
// Vertex i of the result holds, in spec order, elements
// [i*Count, (i+1)*Count) of each named array. The returned layout has one
// element per spec entry, in the same order.
//
// Every stride is checked before item counts are compared, so an invalid
// stride is reported even when an earlier array has a different item count.
func Interleave(arrays map[string][]float32, spec []Stride) ([]float32, gpucore.VertexLayout, error) {
	for _, s := range spec {
		arr, ok := arrays[s.Name]
		if !ok {
			return nil, gpucore.VertexLayout{}, fmt.Errorf("%w: %q", ErrMissingArray, s.Name)
		}
		if s.Count <= 0 || len(arr)%s.Count != 0 {
			return nil, gpucore.VertexLayout{}, fmt.Errorf("%w: %q has %d elements, stride %d",
				ErrInvalidStride, s.Name, len(arr), s.Count)
		}
	}

	items := -1
	total := 0
	for _, s := range spec {
		n := len(arrays[s.Name]) / s.Count
		if items >= 0 && n != items {
			return nil, gpucore.VertexLayout{}, fmt.Errorf("%w: %q has %d items, expected %d",
				ErrInconsistentItemCount, s.Name, n, items)
		}
		items = n
		total += s.Count
	}
	if items < 0 {
		items = 0
	}

	out := make([]float32, items*total)
	off := 0
	for i := 0; i < items; i++ {
		for _, s := range spec {
			off += copy(out[off:], arrays[s.Name][i*s.Count:(i+1)*s.Count])
		}
	}

	layout := gpucore.VertexLayout{Elements: make([]gpucore.VertexElement, len(spec))}
	for i, s := range spec {
		layout.Elements[i] = gpucore.VertexElement{Name: s.Name, Type: gpucore.ElementFloat32, Count: s.Count}
	}
	return out, layout, nil
}

// StridesOf returns the stride spec a layout was derived from.
func StridesOf(l gpucore.VertexLayout) []Stride {
	out := make([]Stride, len(l.Elements))
	for i, e := range l.Elements {
		out[i] = Stride{Name: e.Name, Count: e.Count}
	}
	return out
}
