package geometry

import "github.com/chewxy/math32"

// Bounds is the bounding volume of a geometry: an axis-aligned box and the
// sphere around the box center that encloses every vertex.
type Bounds struct {
	Min, Max [3]float32
	Center   [3]float32
	Radius   float32
}

// Extents returns the size of the box along each axis.
func (b Bounds) Extents() [3]float32 {
	return [3]float32{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// ComputeBounds computes bounds from flat xyz positions.
// Empty input yields the zero Bounds.
func ComputeBounds(positions []float32) Bounds {
	if len(positions) < 3 {
		return Bounds{}
	}
	var b Bounds
	for k := 0; k < 3; k++ {
		b.Min[k] = math32.Inf(1)
		b.Max[k] = math32.Inf(-1)
	}
	for i := 0; i+2 < len(positions); i += 3 {
		for k := 0; k < 3; k++ {
			v := positions[i+k]
			b.Min[k] = math32.Min(b.Min[k], v)
			b.Max[k] = math32.Max(b.Max[k], v)
		}
	}
	for k := 0; k < 3; k++ {
		b.Center[k] = (b.Min[k] + b.Max[k]) / 2
	}

	var r2 float32
	for i := 0; i+2 < len(positions); i += 3 {
		dx := positions[i] - b.Center[0]
		dy := positions[i+1] - b.Center[1]
		dz := positions[i+2] - b.Center[2]
		r2 = math32.Max(r2, dx*dx+dy*dy+dz*dz)
	}
	b.Radius = math32.Sqrt(r2)
	return b
}
