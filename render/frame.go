package render

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
)

// Light is a single directional light.
type Light struct {
	Direction Vec3
	Color     Vec3
}

// Frame carries the per-frame values written into the globals buffer.
type Frame struct {
	View       Mat4
	Projection Mat4
	Eye        Vec3
	Light      Light
}

// Camera describes a perspective viewpoint.
type Camera struct {
	Eye, Target, Up Vec3

	// FovY is the vertical field of view in radians.
	FovY      float32
	Aspect    float32
	Near, Far float32
}

// DefaultCamera looks at the origin from +Z.
func DefaultCamera(aspect float32) Camera {
	return Camera{
		Eye:    Vec3{0, 0, 5},
		Up:     Vec3{0, 1, 0},
		FovY:   math32.Pi / 4,
		Aspect: aspect,
		Near:   0.1,
		Far:    100,
	}
}

// Frame builds the frame values for c lit by l.
func (c Camera) Frame(l Light) Frame {
	return Frame{
		View:       LookAt(c.Eye, c.Target, c.Up),
		Projection: Perspective(c.FovY, c.Aspect, c.Near, c.Far),
		Eye:        c.Eye,
		Light:      l,
	}
}

// globalsSize is view, projection and view-projection matrices followed by
// eye position, light direction and light color as vec4s.
const globalsSize = 3*64 + 3*16

func (f Frame) bytes() []byte {
	out := make([]byte, 0, globalsSize)
	out = f.View.AppendBytes(out)
	out = f.Projection.AppendBytes(out)
	out = f.Projection.Mul(f.View).AppendBytes(out)
	for _, v := range []Vec3{f.Eye, f.Light.Direction, f.Light.Color} {
		out = appendVec4(out, v, 0)
	}
	return out
}

func appendVec4(dst []byte, v Vec3, w float32) []byte {
	for _, f := range [4]float32{v[0], v[1], v[2], w} {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}
