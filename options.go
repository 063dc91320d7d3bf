package g3d

import (
	"maps"

	"github.com/gogpu/g3d/gpucore"
	"github.com/gogpu/g3d/render"
)

// Option configures an Engine during creation.
//
// Options apply in order, so a field set by WithConfig can be overridden by
// a later option:
//
//	cfg, _ := g3d.LoadConfig("g3d.yaml")
//	eng, err := g3d.New(g3d.WithConfig(cfg), g3d.WithBackend("software"))
type Option func(*options)

type options struct {
	cfg     Config
	device  gpucore.Device
	strides map[string][]gpucore.VertexElement
	camera  *render.Camera
	light   render.Light
}

// defaultOptions returns the options New starts from.
func defaultOptions() options {
	return options{
		cfg: DefaultConfig(),
		light: render.Light{
			Direction: render.Vec3{-0.4, -1, -0.6}.Normalize(),
			Color:     render.Vec3{1, 1, 1},
		},
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithBackend selects the driver by registry name. The empty name opens the
// first backend that works.
func WithBackend(name string) Option {
	return func(o *options) {
		o.cfg.Backend = name
	}
}

// WithDevice makes the engine draw on an already opened device instead of
// opening one. The engine does not close it.
//
// Example:
//
//	dev, _ := native.FromProvider(provider, native.Config{})
//	eng, err := g3d.New(g3d.WithDevice(dev))
func WithDevice(dev gpucore.Device) Option {
	return func(o *options) {
		o.device = dev
	}
}

// WithSize sets the offscreen target size. The camera aspect ratio follows
// it unless WithCamera is given.
func WithSize(width, height uint32) Option {
	return func(o *options) {
		o.cfg.Width, o.cfg.Height = width, height
	}
}

// WithTickRate sets the number of frames per second Run aims for.
func WithTickRate(hz float64) Option {
	return func(o *options) {
		o.cfg.TickRate = hz
	}
}

// WithFailurePolicy sets what a failed globals write does to the renderer.
func WithFailurePolicy(p render.FailurePolicy) Option {
	return func(o *options) {
		o.cfg.OnGlobalWriteFailure = p.String()
	}
}

// WithStrides adds vertex stride entries. They take precedence over entries
// with the same shader name in the configuration.
func WithStrides(strides map[string][]gpucore.VertexElement) Option {
	return func(o *options) {
		if o.strides == nil {
			o.strides = make(map[string][]gpucore.VertexElement, len(strides))
		}
		maps.Copy(o.strides, strides)
	}
}

// WithCamera sets the initial camera.
func WithCamera(c render.Camera) Option {
	return func(o *options) {
		o.camera = &c
	}
}

// WithLight sets the directional light.
func WithLight(l render.Light) Option {
	return func(o *options) {
		o.light = l
	}
}
