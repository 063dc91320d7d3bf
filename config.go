package g3d

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/g3d/gpucore"
	"github.com/gogpu/g3d/render"
)

// Configuration errors.
var (
	// ErrConfigFormat is returned for a configuration file whose extension
	// names no supported format.
	ErrConfigFormat = errors.New("g3d: unsupported config format")

	// ErrInvalidConfig is returned when a configuration value is out of range
	// or cannot be parsed.
	ErrInvalidConfig = errors.New("g3d: invalid config")
)

// Config formats accepted by ParseConfig.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// Defaults applied to zero Config fields.
const (
	DefaultWidth    = 800
	DefaultHeight   = 600
	DefaultTickRate = 60
)

// Config is the file form of the engine settings.
//
// Example YAML:
//
//	backend: software
//	width: 640
//	height: 480
//	tick_rate: 30
//	on_global_write_failure: halt
//	strides:
//	  basic:
//	    - {name: position, count: 3}
//	    - {name: normal, count: 3}
type Config struct {
	// Backend names the driver to open. Empty opens the first backend that
	// works, native first.
	Backend string `yaml:"backend" toml:"backend"`

	Width  uint32 `yaml:"width" toml:"width"`
	Height uint32 `yaml:"height" toml:"height"`

	// TickRate is the number of frames per second Run aims for.
	TickRate float64 `yaml:"tick_rate" toml:"tick_rate"`

	// OnGlobalWriteFailure is "skip-frame" (default) or "halt".
	OnGlobalWriteFailure string `yaml:"on_global_write_failure" toml:"on_global_write_failure"`

	// LayoutCacheLimit bounds the derived vertex layout cache. 0 means
	// unlimited.
	LayoutCacheLimit int `yaml:"layout_cache_limit" toml:"layout_cache_limit"`

	// ShaderFormat is passed to drivers that compile shaders: "wgsl" or
	// "spirv".
	ShaderFormat string `yaml:"shader_format" toml:"shader_format"`

	// LoaderWorkers bounds concurrent texture decodes. 0 means GOMAXPROCS.
	LoaderWorkers int `yaml:"loader_workers" toml:"loader_workers"`

	// Strides maps vertex shader names to their attributes, in order.
	Strides map[string][]Element `yaml:"strides" toml:"strides"`
}

// Element is one vertex attribute in a stride table.
type Element struct {
	Name string `yaml:"name" toml:"name"`

	// Type is "f32" (default), "u32" or "i32".
	Type string `yaml:"type" toml:"type"`

	Count int `yaml:"count" toml:"count"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		TickRate: DefaultTickRate,
	}
}

// LoadConfig reads a configuration file. The format is chosen by
// extension: .yaml and .yml are YAML, .toml is TOML.
func LoadConfig(path string) (Config, error) {
	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".toml":
		format = FormatTOML
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrConfigFormat, path)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("g3d: read config: %w", err)
	}
	return ParseConfig(data, format)
}

// ParseConfig decodes data in the given format over DefaultConfig and
// validates the result. Unknown keys are errors.
func ParseConfig(data []byte, format string) (Config, error) {
	cfg := DefaultConfig()
	r := bytes.NewReader(data)

	var err error
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case FormatTOML:
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrConfigFormat, format)
	}
	if err != nil {
		return Config{}, fmt.Errorf("g3d: decode %s config: %w", format, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field that the engine would otherwise reject later.
func (c Config) Validate() error {
	if c.TickRate < 0 {
		return fmt.Errorf("%w: tick_rate %v is negative", ErrInvalidConfig, c.TickRate)
	}
	if c.LayoutCacheLimit < 0 {
		return fmt.Errorf("%w: layout_cache_limit %d is negative", ErrInvalidConfig, c.LayoutCacheLimit)
	}
	if _, err := render.ParseFailurePolicy(c.OnGlobalWriteFailure); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.vertexStrides(); err != nil {
		return err
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Width == 0 {
		c.Width = DefaultWidth
	}
	if c.Height == 0 {
		c.Height = DefaultHeight
	}
	if c.TickRate == 0 {
		c.TickRate = DefaultTickRate
	}
	return c
}

// tickInterval is the time between Run ticks.
func (c Config) tickInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.TickRate)
}

func (c Config) vertexStrides() (map[string][]gpucore.VertexElement, error) {
	if len(c.Strides) == 0 {
		return nil, nil
	}
	out := make(map[string][]gpucore.VertexElement, len(c.Strides))
	for shader, elems := range c.Strides {
		ves := make([]gpucore.VertexElement, 0, len(elems))
		for _, e := range elems {
			t, err := parseElementType(e.Type)
			if err != nil {
				return nil, fmt.Errorf("%w: strides.%s.%s: %w", ErrInvalidConfig, shader, e.Name, err)
			}
			if e.Name == "" || e.Count < 1 || e.Count > 4 {
				return nil, fmt.Errorf("%w: strides.%s: element %q with count %d",
					ErrInvalidConfig, shader, e.Name, e.Count)
			}
			ves = append(ves, gpucore.VertexElement{Name: e.Name, Type: t, Count: e.Count})
		}
		out[shader] = ves
	}
	return out, nil
}

func parseElementType(s string) (gpucore.ElementType, error) {
	switch s {
	case "", "f32":
		return gpucore.ElementFloat32, nil
	case "u32":
		return gpucore.ElementUint32, nil
	case "i32":
		return gpucore.ElementSint32, nil
	default:
		return 0, fmt.Errorf("unknown element type %q", s)
	}
}
