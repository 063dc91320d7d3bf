package backend

import (
	"errors"

	"github.com/gogpu/g3d/gpucore"
)

// Backend name constants.
const (
	// Software is the name of the CPU-side immediate-mode driver.
	Software = "software"
	// Native is the name of the explicit-binding driver (gogpu/wgpu HAL).
	Native = "native"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not registered.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNoBackend is returned by OpenDefault when no registered backend opens.
	ErrNoBackend = errors.New("backend: no backend could be opened")
)

// Options configure a driver when it is opened.
type Options struct {
	// Width and Height size the offscreen color target.
	Width, Height uint32

	// ShaderFormat selects how WGSL reaches the driver: "wgsl" passes the
	// source through, "spirv" compiles it first. Drivers that do not compile
	// shaders ignore it.
	ShaderFormat string
}

// Factory opens a driver.
type Factory func(Options) (gpucore.Device, error)
