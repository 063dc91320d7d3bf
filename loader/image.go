package loader

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	_ "golang.org/x/image/bmp" // register BMP decoder
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/gogpu/g3d/gpucore"
)

// Decode errors.
var (
	// ErrEmptyData is returned when image data is empty.
	ErrEmptyData = errors.New("loader: empty data")

	// ErrFaceCount is returned when a cube map is not given six faces.
	ErrFaceCount = errors.New("loader: cube map needs 6 faces")

	// ErrLayerSize is returned when the layers of an array or cube texture
	// differ in size.
	ErrLayerSize = errors.New("loader: layers differ in size")
)

// DecodeImage decodes a PNG, JPEG, BMP, TIFF or WebP image into an RGBA8
// 2D texture payload.
func DecodeImage(r io.Reader) (gpucore.TextureData, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return gpucore.TextureData{}, fmt.Errorf("loader: decode: %w", err)
	}
	slogger().Debug("loader: image decoded", "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return FromImage(img), nil
}

// DecodeBytes decodes an in-memory image.
func DecodeBytes(data []byte) (gpucore.TextureData, error) {
	if len(data) == 0 {
		return gpucore.TextureData{}, ErrEmptyData
	}
	return DecodeImage(bytes.NewReader(data))
}

// LoadImage reads and decodes an image file.
func LoadImage(path string) (gpucore.TextureData, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return gpucore.TextureData{}, fmt.Errorf("loader: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return DecodeImage(f)
}

// FromImage converts any image to a tightly packed RGBA8 payload. Images
// that are already *image.RGBA with a zero origin and no row padding are
// copied without conversion.
func FromImage(img image.Image) gpucore.TextureData {
	rgba := toRGBA(img)
	b := rgba.Bounds()
	return gpucore.TextureData{
		Width:     uint32(b.Dx()),
		Height:    uint32(b.Dy()),
		Format:    gpucore.TextureFormatRGBA8Unorm,
		Dimension: gpucore.Texture2D,
		Pixels:    rgba.Pix,
	}
}

func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if src, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && src.Stride == 4*b.Dx() {
		dst := *src
		dst.Pix = bytes.Clone(src.Pix[:4*b.Dx()*b.Dy()])
		return &dst
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}

// Resize scales a payload to width x height with Catmull-Rom filtering.
// Only RGBA8 2D payloads are supported.
func Resize(data gpucore.TextureData, width, height uint32) (gpucore.TextureData, error) {
	if data.Format != gpucore.TextureFormatRGBA8Unorm || data.LayerCount() != 1 {
		return gpucore.TextureData{}, fmt.Errorf("loader: resize supports single-layer RGBA8 only")
	}
	if data.Width == width && data.Height == height {
		return data, nil
	}
	src := &image.RGBA{
		Pix:    data.Pixels,
		Stride: 4 * int(data.Width),
		Rect:   image.Rect(0, 0, int(data.Width), int(data.Height)),
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	data.Width, data.Height, data.Pixels = width, height, dst.Pix
	return data, nil
}

// Stack joins 2D payloads of equal size into one layered payload of the
// given dimension. Cube maps take exactly six layers in +X, -X, +Y, -Y,
// +Z, -Z order.
func Stack(dim gpucore.TextureDimension, layers ...gpucore.TextureData) (gpucore.TextureData, error) {
	if dim == gpucore.TextureCube && len(layers) != 6 {
		return gpucore.TextureData{}, fmt.Errorf("%w: got %d", ErrFaceCount, len(layers))
	}
	if len(layers) == 0 {
		return gpucore.TextureData{}, ErrEmptyData
	}
	first := layers[0]
	out := gpucore.TextureData{
		Width:     first.Width,
		Height:    first.Height,
		Layers:    uint32(len(layers)),
		Format:    first.Format,
		Dimension: dim,
		Pixels:    make([]byte, 0, first.ByteSize()*len(layers)),
	}
	for i, l := range layers {
		if l.Width != first.Width || l.Height != first.Height || l.Format != first.Format || l.LayerCount() != 1 {
			return gpucore.TextureData{}, fmt.Errorf("%w: layer %d is %dx%d, layer 0 is %dx%d",
				ErrLayerSize, i, l.Width, l.Height, first.Width, first.Height)
		}
		out.Pixels = append(out.Pixels, l.Pixels...)
	}
	return out, nil
}
