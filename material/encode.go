package material

import (
	"encoding/binary"
	"math"
)

// Float32s encodes values as a little-endian uniform payload.
func Float32s(v ...float32) []byte {
	out := make([]byte, 0, len(v)*4)
	for _, f := range v {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
	}
	return out
}

// Uint32s encodes values as a little-endian uniform payload.
func Uint32s(v ...uint32) []byte {
	out := make([]byte, 0, len(v)*4)
	for _, u := range v {
		out = binary.LittleEndian.AppendUint32(out, u)
	}
	return out
}
