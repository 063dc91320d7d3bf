// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package g3d is a small 3D rendering engine core built from an entity
// store, a resource manager and a batching renderer over a pluggable
// graphics device.
//
// # Overview
//
// An [Engine] owns one of each part:
//
//   - [ecs.Store] holds entities and their components.
//   - [resource.Manager] creates and deduplicates GPU resources.
//   - [geometry.Factory] and [material.Factory] build meshes and materials.
//   - [render.Renderer] draws every entity that has a [render.Mesh], batching
//     entities that share a pipeline, geometry and material into one
//     instanced draw.
//
// The device is opened by backend name through the [backend] registry. The
// software driver is always available. The native driver runs on the
// gogpu/wgpu HAL and is left out when building with the nogpu tag.
//
// # Quick Start
//
//	eng, err := g3d.New(g3d.WithBackend("software"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	geo, _ := eng.Geometries().New("tri", "basic", arrays, indices)
//	pipe, _ := eng.Pipeline(spec, geo, nil)
//	eng.Spawn("tri", render.Mesh{Pipeline: pipe, Geometry: geo}, render.IdentityTransform())
//
//	stats, err := eng.Tick(time.Second / 60)
//
// # Frame Loop
//
// [Engine.Tick] finishes pending texture loads, runs systems inside a store
// pass and renders one frame. [Engine.Run] calls Tick at the configured
// tick rate until its context is cancelled. Everything except texture
// decoding happens on the goroutine that calls Tick.
//
// # Configuration
//
// [LoadConfig] reads a [Config] from a YAML or TOML file. [WithConfig]
// applies it; the other options override single fields.
//
// # Logging
//
// g3d is silent by default. [SetLogger] installs a [log/slog] logger for the
// engine and all of its packages.
package g3d
