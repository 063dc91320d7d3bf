//go:build !nogpu

package native

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/g3d/gpucore"
)

// errNoSource is returned for a stage that carries only a name.
var errNoSource = errors.New("native: shader stage has no WGSL source")

// shaderCache holds one module per distinct source. Vertex and fragment
// stages of the same file share a module. Callers hold Device.mu.
type shaderCache struct {
	format  string
	modules map[uint64]hal.ShaderModule
}

func newShaderCache(format string) shaderCache {
	return shaderCache{format: format, modules: make(map[uint64]hal.ShaderModule)}
}

func (c *shaderCache) get(device hal.Device, src gpucore.ShaderSource) (hal.ShaderModule, error) {
	if src.WGSL == "" {
		return nil, fmt.Errorf("%w: %q", errNoSource, src.Name)
	}
	key := xxhash.Sum64String(src.WGSL)
	if m, ok := c.modules[key]; ok {
		return m, nil
	}

	source := hal.ShaderSource{WGSL: src.WGSL}
	if c.format == ShaderFormatSPIRV {
		words, err := compileSPIRV(src.WGSL)
		if err != nil {
			return nil, fmt.Errorf("native: compile %q: %w", src.Name, err)
		}
		source = hal.ShaderSource{SPIRV: words}
	}
	m, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: src.Name, Source: source})
	if err != nil {
		return nil, fmt.Errorf("native: shader module %q: %w", src.Name, err)
	}
	c.modules[key] = m
	slogger().Debug("native: shader module created", "name", src.Name, "format", c.format)
	return m, nil
}

func (c *shaderCache) destroy(device hal.Device) {
	for _, m := range c.modules {
		device.DestroyShaderModule(m)
	}
	clear(c.modules)
}

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// compileSPIRV translates WGSL with naga and repacks the little-endian byte
// stream into words.
func compileSPIRV(wgsl string) ([]uint32, error) {
	b, err := naga.Compile(wgsl)
	if err != nil {
		return nil, err
	}
	if len(b)%4 != 0 || len(b) < 4 {
		return nil, fmt.Errorf("SPIR-V output is %d bytes", len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("SPIR-V magic is %#x", words[0])
	}
	return words, nil
}
