// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/g3d/ecs"
	"github.com/gogpu/g3d/geometry"
	"github.com/gogpu/g3d/gpucore"
	"github.com/gogpu/g3d/material"
	"github.com/gogpu/g3d/resource"
)

var (
	// ErrFrameSkipped is returned by Render when the globals could not be
	// written and the policy is SkipFrame.
	ErrFrameSkipped = errors.New("render: frame skipped")

	// ErrHalted is returned by Render after a globals write failed under the
	// Halt policy, until Resume is called.
	ErrHalted = errors.New("render: renderer halted")

	// ErrNoGeometry is returned for a mesh without geometry.
	ErrNoGeometry = errors.New("render: mesh has no geometry")

	// ErrUnknownPipeline marks mesh groups whose pipeline was never created
	// or has been destroyed. Such groups are skipped.
	ErrUnknownPipeline = errors.New("render: unknown pipeline")

	// ErrLayoutMismatch marks mesh groups whose material bind group layouts
	// differ from the ones their pipeline was built with.
	ErrLayoutMismatch = errors.New("render: material layouts do not match pipeline")
)

const (
	// GlobalsLabel is the label of the per-frame globals buffer.
	GlobalsLabel = "g3d.globals"

	// InstanceStride is the byte size of one instance: the model matrix
	// followed by its inverse-transpose.
	InstanceStride = 128

	minInstanceCapacity = 16
)

// InstanceLayout returns the vertex layout of instance buffers: eight
// vec4 columns, model matrix first.
func InstanceLayout() gpucore.VertexLayout {
	elems := make([]gpucore.VertexElement, 0, 8)
	for _, m := range []string{"model", "normal"} {
		for c := range 4 {
			elems = append(elems, gpucore.VertexElement{
				Name:  fmt.Sprintf("%s%d", m, c),
				Type:  gpucore.ElementFloat32,
				Count: 4,
			})
		}
	}
	return gpucore.VertexLayout{Elements: elems, StepMode: gpucore.StepInstance}
}

// Config configures a Renderer.
type Config struct {
	// OnGlobalWriteFailure selects what a failed globals write does.
	OnGlobalWriteFailure FailurePolicy
}

// FrameStats describes one rendered frame.
type FrameStats struct {
	Entities      int
	Pipelines     int
	Groups        int
	DrawCalls     int
	Instances     int
	SkippedGroups int
}

type groupKey struct {
	pipeline gpucore.PipelineID
	geometry string
	material *material.Material
}

type meshGroup struct {
	key      groupKey
	geometry *geometry.Geometry
	material *material.Material
	models   []Mat4
}

type partition struct {
	pipeline gpucore.PipelineID
	groups   []*meshGroup
}

type instanceBuffer struct {
	id       gpucore.BufferID
	capacity int
}

// Renderer draws the entities of a store. It is used from a single render
// goroutine.
type Renderer struct {
	store *ecs.Store
	res   *resource.Manager
	cfg   Config

	globalsLayout gpucore.BindGroupLayoutID
	globals       gpucore.BufferID
	globalsGroup  gpucore.BindGroupID

	instanceLayout gpucore.VertexLayout
	instances      map[groupKey]*instanceBuffer
	scratch        []byte

	scene  ecs.Scene
	halted bool
}

// New creates a Renderer and its globals buffer.
func New(store *ecs.Store, res *resource.Manager, cfg Config) (*Renderer, error) {
	r := &Renderer{
		store:          store,
		res:            res,
		cfg:            cfg,
		instanceLayout: InstanceLayout(),
		instances:      make(map[groupKey]*instanceBuffer),
	}

	layout, err := res.GetOrCreateLayout(gpucore.BindGroupLayoutDesc{
		Label: GlobalsLabel,
		Entries: []gpucore.BindGroupLayoutEntry{{
			Binding:    0,
			Type:       gpucore.BindingUniform,
			Visibility: gpucore.StageVertex | gpucore.StageFragment,
			Size:       globalsSize,
			Name:       "globals",
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("render: globals layout: %w", err)
	}
	buf, err := res.CreateBuffer(GlobalsLabel, gpucore.BufferDescriptor{
		Size:  globalsSize,
		Usage: gpucore.BufferUsageUniform,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("render: globals buffer: %w", err)
	}
	group, err := res.CreateBindGroup(layout, []gpucore.BindGroupEntry{{Binding: 0, Buffer: buf}})
	if err != nil {
		_ = res.ReleaseBuffer(buf)
		return nil, fmt.Errorf("render: globals bind group: %w", err)
	}
	r.globalsLayout, r.globals, r.globalsGroup = layout, buf, group
	return r, nil
}

// GlobalsLayout returns the layout every pipeline uses at group 0.
func (r *Renderer) GlobalsLayout() gpucore.BindGroupLayoutID { return r.globalsLayout }

// SetActiveScene limits drawing to entities in sc. ecs.NoScene draws every
// entity.
func (r *Renderer) SetActiveScene(sc ecs.Scene) { r.scene = sc }

// ActiveScene returns the scene set by SetActiveScene.
func (r *Renderer) ActiveScene() ecs.Scene { return r.scene }

// Halted reports whether the renderer stopped after a globals write failure.
func (r *Renderer) Halted() bool { return r.halted }

// Resume restarts a halted renderer.
func (r *Renderer) Resume() { r.halted = false }

// PipelineSpec holds the parts of a pipeline that do not come from the
// geometry or the material.
type PipelineSpec struct {
	Label  string
	Vertex gpucore.ShaderSource

	// Fragment is used when the material has no fragment shader.
	Fragment gpucore.ShaderSource

	Topology  gpucore.Topology
	CullMode  gpucore.CullMode
	DepthTest bool
}

// Pipeline returns the pipeline that draws geo with mat. The vertex slots
// and bind group order match what Render sets.
func (r *Renderer) Pipeline(spec PipelineSpec, geo *geometry.Geometry, mat *material.Material) (gpucore.PipelineID, error) {
	if geo == nil {
		return gpucore.InvalidID, ErrNoGeometry
	}
	frag := spec.Fragment
	layouts := []gpucore.BindGroupLayoutID{r.globalsLayout}
	if mat != nil {
		if fs := mat.FragmentShader(); fs.WGSL != "" || fs.Name != "" {
			frag = fs
		}
		layouts = append(layouts, mat.Layouts()...)
	}
	return r.res.GetOrCreatePipeline(gpucore.PipelineDesc{
		Label:            spec.Label,
		Vertex:           spec.Vertex,
		Fragment:         frag,
		VertexLayouts:    []gpucore.VertexLayout{geo.Descriptor.Layout, r.instanceLayout},
		BindGroupLayouts: layouts,
		Topology:         spec.Topology,
		CullMode:         spec.CullMode,
		DepthTest:        spec.DepthTest,
	})
}

// Render draws one frame.
//
// The globals are written before the render pass opens. Once the pass is
// open it is always submitted, even when mesh groups fail. A group whose
// pipeline is unknown or whose material does not fit the pipeline's
// layouts is skipped without touching the pass. Instance buffers of groups
// absent from the frame are released.
func (r *Renderer) Render(f Frame) (FrameStats, error) {
	var stats FrameStats
	if r.halted {
		return stats, ErrHalted
	}

	if err := r.res.WriteToBuffer(r.globals, f.bytes()); err != nil {
		if r.cfg.OnGlobalWriteFailure == Halt {
			r.halted = true
			slogger().Error("render: halted", "stage", StageBeginFrame, "err", err)
			return stats, fmt.Errorf("%w: %w", ErrHalted, err)
		}
		slogger().Warn("render: frame skipped", "stage", StageBeginFrame, "err", err)
		return stats, fmt.Errorf("%w: %w", ErrFrameSkipped, err)
	}

	partitions := r.partition(&stats)

	pass, err := r.res.Device().BeginRenderPass()
	if err != nil {
		return stats, fmt.Errorf("render: %v: %w", StageBeginFrame, err)
	}
	for _, p := range partitions {
		groups := r.usable(p, &stats)
		if len(groups) == 0 {
			continue
		}
		pass.UsePipeline(p.pipeline)
		pass.SetBindGroup(0, r.globalsGroup, nil)
		stats.Pipelines++
		for _, g := range groups {
			if err := r.draw(pass, g); err != nil {
				r.skip(&stats, g, err)
				continue
			}
			stats.DrawCalls++
			stats.Instances += len(g.models)
		}
	}
	r.dropStaleInstances(partitions)
	if err := pass.Submit(); err != nil {
		return stats, fmt.Errorf("render: %v: %w", StageSubmit, err)
	}

	slogger().Debug("render: frame", "entities", stats.Entities, "pipelines", stats.Pipelines,
		"draws", stats.DrawCalls, "instances", stats.Instances, "skipped", stats.SkippedGroups)
	return stats, nil
}

// usable returns the groups of p that can be drawn with its pipeline. The
// others are counted as skipped.
func (r *Renderer) usable(p *partition, stats *FrameStats) []*meshGroup {
	desc, ok := r.res.PipelineDesc(p.pipeline)
	if !ok {
		for _, g := range p.groups {
			r.skip(stats, g, fmt.Errorf("%w: %d", ErrUnknownPipeline, p.pipeline))
		}
		return nil
	}
	groups := p.groups[:0:0]
	for _, g := range p.groups {
		if err := r.checkLayouts(desc, g.material); err != nil {
			r.skip(stats, g, err)
			continue
		}
		groups = append(groups, g)
	}
	return groups
}

// checkLayouts reports whether a pipeline built from desc takes the globals
// at group 0 followed by exactly the layouts of mat.
func (r *Renderer) checkLayouts(desc gpucore.PipelineDesc, mat *material.Material) error {
	if len(desc.BindGroupLayouts) == 0 || desc.BindGroupLayouts[0] != r.globalsLayout {
		return fmt.Errorf("%w: pipeline %q has no globals group", ErrLayoutMismatch, desc.Label)
	}
	var want []gpucore.BindGroupLayoutID
	if mat != nil {
		want = mat.Layouts()
	}
	if !slices.Equal(desc.BindGroupLayouts[1:], want) {
		return fmt.Errorf("%w: pipeline %q takes %v, material has %v",
			ErrLayoutMismatch, desc.Label, desc.BindGroupLayouts[1:], want)
	}
	return nil
}

func (r *Renderer) skip(stats *FrameStats, g *meshGroup, err error) {
	stats.SkippedGroups++
	slogger().Warn("render: mesh group skipped",
		"pipeline", g.key.pipeline, "geometry", g.geometry.Label, "instances", len(g.models), "err", err)
}

// dropStaleInstances releases the instance buffers of groups that were not
// part of this frame.
func (r *Renderer) dropStaleInstances(parts []*partition) {
	if len(r.instances) == 0 {
		return
	}
	live := make(map[groupKey]struct{}, len(r.instances))
	for _, p := range parts {
		for _, g := range p.groups {
			live[g.key] = struct{}{}
		}
	}
	for key, ib := range r.instances {
		if _, ok := live[key]; ok {
			continue
		}
		if err := r.res.ReleaseBuffer(ib.id); err != nil {
			slogger().Warn("render: release instance buffer", "err", err)
		}
		delete(r.instances, key)
	}
}

// partition groups drawable entities by pipeline, then by geometry and
// material, preserving first-appearance order at both levels.
func (r *Renderer) partition(stats *FrameStats) []*partition {
	var parts []*partition
	byPipeline := make(map[gpucore.PipelineID]*partition)
	groups := make(map[groupKey]*meshGroup)

	for _, e := range r.store.EntitiesWithComponents(MeshKind, TransformKind) {
		mesh, err := ecs.Get[Mesh](r.store, e, MeshKind)
		if err != nil {
			if !errors.Is(err, ecs.ErrComponentNotFound) {
				slogger().Warn("render: unreadable mesh", "entity", e, "err", err)
			}
			continue
		}
		if r.scene != ecs.NoScene && r.store.SceneOf(e) != r.scene {
			continue
		}
		if mesh.Geometry == nil {
			slogger().Warn("render: mesh without geometry", "entity", e)
			continue
		}
		model := Identity()
		if tr, err := ecs.Get[Transform](r.store, e, TransformKind); err == nil {
			model = tr.Matrix
		}
		stats.Entities++

		p, ok := byPipeline[mesh.Pipeline]
		if !ok {
			p = &partition{pipeline: mesh.Pipeline}
			byPipeline[mesh.Pipeline] = p
			parts = append(parts, p)
		}
		key := groupKey{pipeline: mesh.Pipeline, geometry: mesh.Geometry.Key(), material: mesh.Material}
		g, ok := groups[key]
		if !ok {
			g = &meshGroup{key: key, geometry: mesh.Geometry, material: mesh.Material}
			groups[key] = g
			p.groups = append(p.groups, g)
			stats.Groups++
		}
		g.models = append(g.models, model)
	}
	return parts
}

// draw writes a group's instance data, binds its material and buffers and
// issues one instanced draw.
func (r *Renderer) draw(pass gpucore.RenderPass, g *meshGroup) error {
	n := len(g.models)
	buf, err := r.instanceBuffer(g, n)
	if err != nil {
		return fmt.Errorf("%v: %w", StageWriteInstanceData, err)
	}
	data := r.scratch[:0]
	for _, m := range g.models {
		data = m.AppendBytes(data)
		data = m.NormalMatrix().AppendBytes(data)
	}
	r.scratch = data
	if err := r.res.WriteToBuffer(buf, data); err != nil {
		return fmt.Errorf("%v: %w", StageWriteInstanceData, err)
	}

	if g.material != nil {
		if err := g.material.Bind(r.res, pass, 1); err != nil {
			return fmt.Errorf("%v: %w", StageIssueDraws, err)
		}
	}
	pass.SetVertexBuffer(0, g.geometry.VertexBuffer)
	pass.SetVertexBuffer(1, buf)
	pass.DrawInstanced(g.geometry.IndexBuffer, g.geometry.IndexCount, uint32(n))
	return nil
}

// instanceBuffer returns a buffer holding at least n instances for g,
// replacing a smaller one.
func (r *Renderer) instanceBuffer(g *meshGroup, n int) (gpucore.BufferID, error) {
	ib := r.instances[g.key]
	if ib != nil && ib.capacity >= n {
		return ib.id, nil
	}
	capacity := max(n, minInstanceCapacity)
	if ib != nil {
		capacity = max(n, ib.capacity*2)
	}
	id, err := r.res.CreateBuffer(fmt.Sprintf("g3d.instances.%d.%s", g.key.pipeline, g.geometry.Label), gpucore.BufferDescriptor{
		Size:   uint64(capacity) * InstanceStride,
		Usage:  gpucore.BufferUsageVertex,
		Layout: &r.instanceLayout,
	}, nil)
	if err != nil {
		return gpucore.InvalidID, err
	}
	if ib != nil {
		if err := r.res.ReleaseBuffer(ib.id); err != nil {
			slogger().Warn("render: release instance buffer", "err", err)
		}
	}
	r.instances[g.key] = &instanceBuffer{id: id, capacity: capacity}
	slogger().Debug("render: instance buffer", "geometry", g.geometry.Label, "capacity", capacity)
	return id, nil
}

// Close releases the globals and instance buffers.
func (r *Renderer) Close() error {
	var errs []error
	for key, ib := range r.instances {
		errs = append(errs, r.res.ReleaseBuffer(ib.id))
		delete(r.instances, key)
	}
	if r.globalsGroup != gpucore.InvalidID {
		errs = append(errs, r.res.ReleaseBindGroup(r.globalsGroup), r.res.ReleaseBuffer(r.globals))
		r.globalsGroup, r.globals = gpucore.InvalidID, gpucore.InvalidID
	}
	return errors.Join(errs...)
}
