// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package g3d

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/gogpu/g3d/backend"
	_ "github.com/gogpu/g3d/backend/software" // register the software driver
	"github.com/gogpu/g3d/ecs"
	"github.com/gogpu/g3d/geometry"
	"github.com/gogpu/g3d/gpucore"
	"github.com/gogpu/g3d/loader"
	"github.com/gogpu/g3d/material"
	"github.com/gogpu/g3d/render"
	"github.com/gogpu/g3d/resource"
)

// ErrClosed is returned by Engine methods after Close.
var ErrClosed = errors.New("g3d: engine closed")

// System updates the world once per tick. Structural changes made to the
// store during Update are applied after the last system returns.
type System interface {
	Update(e *Engine, dt time.Duration) error
}

// SystemFunc adapts a function to System.
type SystemFunc func(e *Engine, dt time.Duration) error

// Update implements System.
func (f SystemFunc) Update(e *Engine, dt time.Duration) error { return f(e, dt) }

type textureLoad struct {
	path   string
	name   string
	future *loader.Future[gpucore.TextureData]
	done   func(gpucore.TextureID, error)
}

// Engine ties the entity store, resource manager, factories and renderer to
// one device and runs the frame loop.
//
// An Engine is used from a single goroutine. Only texture decoding runs
// elsewhere.
type Engine struct {
	cfg        Config
	dev        gpucore.Device
	ownsDevice bool
	store      *ecs.Store
	res        *resource.Manager
	geometries *geometry.Factory
	materials  *material.Factory
	renderer   *render.Renderer
	pool       *loader.Pool
	camera     render.Camera
	light      render.Light
	systems    []System
	loads      []textureLoad
	frames     uint64
	closed     bool
}

// New creates an Engine. Without WithDevice it opens the configured
// backend and closes it again in Close.
func New(opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, _ := render.ParseFailurePolicy(cfg.OnGlobalWriteFailure)
	strides, _ := cfg.vertexStrides()
	if len(o.strides) > 0 {
		if strides == nil {
			strides = make(map[string][]gpucore.VertexElement, len(o.strides))
		}
		maps.Copy(strides, o.strides)
	}

	dev, owned := o.device, false
	if dev == nil {
		var err error
		if dev, err = openDevice(cfg); err != nil {
			return nil, err
		}
		owned = true
	}

	e := &Engine{
		cfg:        cfg,
		dev:        dev,
		ownsDevice: owned,
		store:      ecs.NewStore(),
		light:      o.light,
	}
	e.res = resource.New(dev, resource.Config{
		Strides:          strides,
		LayoutCacheLimit: cfg.LayoutCacheLimit,
	})
	r, err := render.New(e.store, e.res, render.Config{OnGlobalWriteFailure: policy})
	if err != nil {
		e.res.Close()
		if owned {
			dev.Close()
		}
		return nil, fmt.Errorf("g3d: %w", err)
	}
	e.renderer = r
	e.geometries = geometry.NewFactory(e.res)
	e.materials = material.NewFactory(e.res)
	e.pool = loader.NewPool(context.Background(), cfg.LoaderWorkers)

	if o.camera != nil {
		e.camera = *o.camera
	} else {
		e.camera = render.DefaultCamera(float32(cfg.Width) / float32(cfg.Height))
	}

	slogger().Info("g3d: engine ready",
		"backend", dev.Capabilities().Name, "width", cfg.Width, "height", cfg.Height,
		"policy", policy, "shaders", len(strides))
	return e, nil
}

func openDevice(cfg Config) (gpucore.Device, error) {
	opts := backend.Options{
		Width:        cfg.Width,
		Height:       cfg.Height,
		ShaderFormat: cfg.ShaderFormat,
	}
	if cfg.Backend == "" {
		dev, err := backend.OpenDefault(opts)
		if err != nil {
			return nil, fmt.Errorf("g3d: open device: %w", err)
		}
		return dev, nil
	}
	dev, err := backend.Open(cfg.Backend, opts)
	if err != nil {
		return nil, fmt.Errorf("g3d: open device: %w", err)
	}
	return dev, nil
}

// Config returns the configuration after defaults were applied.
func (e *Engine) Config() Config { return e.cfg }

// Device returns the device the engine draws on.
func (e *Engine) Device() gpucore.Device { return e.dev }

// Store returns the entity store.
func (e *Engine) Store() *ecs.Store { return e.store }

// Resources returns the resource manager.
func (e *Engine) Resources() *resource.Manager { return e.res }

// Geometries returns the geometry factory.
func (e *Engine) Geometries() *geometry.Factory { return e.geometries }

// Materials returns the material factory.
func (e *Engine) Materials() *material.Factory { return e.materials }

// Renderer returns the renderer.
func (e *Engine) Renderer() *render.Renderer { return e.renderer }

// Camera returns the current camera.
func (e *Engine) Camera() render.Camera { return e.camera }

// SetCamera replaces the camera used from the next frame on.
func (e *Engine) SetCamera(c render.Camera) { e.camera = c }

// SetLight replaces the directional light used from the next frame on.
func (e *Engine) SetLight(l render.Light) { e.light = l }

// Frames returns the number of frames rendered so far.
func (e *Engine) Frames() uint64 { return e.frames }

// AddSystem appends s to the systems run by Tick, in order of addition.
func (e *Engine) AddSystem(s System) {
	e.systems = append(e.systems, s)
}

// Pipeline returns the pipeline that draws geo with mat.
func (e *Engine) Pipeline(spec render.PipelineSpec, geo *geometry.Geometry, mat *material.Material) (gpucore.PipelineID, error) {
	return e.renderer.Pipeline(spec, geo, mat)
}

// Spawn creates an entity with the given components. The entity is
// destroyed again if any component is rejected.
func (e *Engine) Spawn(label string, cs ...ecs.Component) (ecs.Entity, error) {
	ent := e.store.Create(label)
	if err := e.store.AddComponents(ent, cs...); err != nil {
		_ = e.store.Destroy(ent)
		return ecs.NoEntity, fmt.Errorf("g3d: spawn %q: %w", label, err)
	}
	return ent, nil
}

// LoadTexture decodes the image at path in the background. On a later Tick
// the texture is created under name and done is called with its handle or
// the error. done may be nil.
//
// LoadTexture blocks while every loader worker is busy.
func (e *Engine) LoadTexture(path, name string, done func(gpucore.TextureID, error)) error {
	if e.closed {
		return ErrClosed
	}
	e.loads = append(e.loads, textureLoad{
		path:   path,
		name:   name,
		future: loader.LoadImageAsync(e.pool, path),
		done:   done,
	})
	return nil
}

// PendingLoads returns the number of texture loads not yet finished by Tick.
func (e *Engine) PendingLoads() int { return len(e.loads) }

// finishLoads creates the textures whose decode has completed. Callbacks
// may start new loads.
func (e *Engine) finishLoads() {
	loads := e.loads
	e.loads = nil

	var waiting []textureLoad
	for _, l := range loads {
		data, ok, err := l.future.Poll()
		if !ok {
			waiting = append(waiting, l)
			continue
		}
		var id gpucore.TextureID
		if err == nil {
			id, err = e.res.CreateTexture(data, l.name)
		}
		if err != nil {
			slogger().Warn("g3d: texture load failed", "path", l.path, "name", l.name, "err", err)
		} else {
			slogger().Debug("g3d: texture loaded", "path", l.path, "name", l.name,
				"width", data.Width, "height", data.Height)
		}
		if l.done != nil {
			l.done(id, err)
		}
	}
	e.loads = append(waiting, e.loads...)
}

// Tick advances the world by dt and renders one frame.
//
// Finished texture loads are handed out first. Systems then run inside a
// store pass, so entities they add or remove take effect before the frame
// is drawn. A system error stops the tick before rendering.
func (e *Engine) Tick(dt time.Duration) (render.FrameStats, error) {
	if e.closed {
		return render.FrameStats{}, ErrClosed
	}
	e.finishLoads()
	if err := e.update(dt); err != nil {
		return render.FrameStats{}, err
	}
	stats, err := e.renderer.Render(e.camera.Frame(e.light))
	if err != nil {
		return stats, err
	}
	e.frames++
	return stats, nil
}

func (e *Engine) update(dt time.Duration) error {
	e.store.BeginPass()
	defer e.store.EndPass()
	for i, s := range e.systems {
		if err := s.Update(e, dt); err != nil {
			return fmt.Errorf("g3d: system %d: %w", i, err)
		}
	}
	return nil
}

// Run calls Tick at the configured tick rate until ctx is cancelled, which
// returns nil. Skipped frames are logged and the loop goes on; any other
// Tick error stops it and is returned.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.tickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slogger().Info("g3d: run", "interval", interval)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if _, err := e.Tick(dt); err != nil {
				if errors.Is(err, render.ErrFrameSkipped) {
					continue
				}
				return err
			}
		}
	}
}

// Close stops the loader, releases every resource the engine created and
// closes the device if the engine opened it. Loads still pending are
// dropped without calling their callbacks. Close is idempotent.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	e.pool.Close()
	e.loads = nil

	errs := []error{e.renderer.Close(), e.materials.Close()}
	e.res.Close()
	if e.ownsDevice {
		e.dev.Close()
	}
	slogger().Info("g3d: engine closed", "frames", e.frames)
	return errors.Join(errs...)
}
