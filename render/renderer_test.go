package render

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/gogpu/g3d/backend/software"
	"github.com/gogpu/g3d/ecs"
	"github.com/gogpu/g3d/geometry"
	"github.com/gogpu/g3d/gpucore"
	"github.com/gogpu/g3d/material"
	"github.com/gogpu/g3d/resource"
)

type fixture struct {
	dev   *software.Device
	res   *resource.Manager
	store *ecs.Store
	r     *Renderer
	geo   *geometry.Factory

	tri, quad *geometry.Geometry
	pipeline  gpucore.PipelineID
}

var basicSpec = PipelineSpec{
	Label:    "basic",
	Vertex:   gpucore.ShaderSource{Name: "basic", EntryPoint: "vs_main"},
	Fragment: gpucore.ShaderSource{Name: "basic.frag", EntryPoint: "fs_main"},
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{dev: software.New(), store: ecs.NewStore()}
	f.res = resource.New(f.dev, resource.Config{
		Strides: map[string][]gpucore.VertexElement{
			"basic": {{Name: "position", Count: 3}},
		},
	})
	t.Cleanup(func() {
		f.res.Close()
		f.dev.Close()
	})

	var err error
	if f.r, err = New(f.store, f.res, cfg); err != nil {
		t.Fatalf("New: %v", err)
	}
	f.geo = geometry.NewFactory(f.res)
	f.tri, err = f.geo.New("tri", "basic", map[string][]float32{
		"position": {0, 0, 0, 1, 0, 0, 0, 1, 0},
	}, []uint32{0, 1, 2})
	if err != nil {
		t.Fatalf("tri: %v", err)
	}
	f.quad, err = f.geo.New("quad", "basic", map[string][]float32{
		"position": {0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0},
	}, []uint32{0, 1, 2, 0, 2, 3})
	if err != nil {
		t.Fatalf("quad: %v", err)
	}
	if f.pipeline, err = f.r.Pipeline(basicSpec, f.tri, nil); err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	return f
}

func (f *fixture) spawn(t *testing.T, geo *geometry.Geometry, tr *Transform) ecs.Entity {
	t.Helper()
	e := f.store.Create("")
	cs := []ecs.Component{Mesh{Pipeline: f.pipeline, Geometry: geo}}
	if tr != nil {
		cs = append(cs, *tr)
	}
	if err := f.store.AddComponents(e, cs...); err != nil {
		t.Fatalf("AddComponents: %v", err)
	}
	return e
}

func (f *fixture) spawnMesh(t *testing.T, m Mesh) ecs.Entity {
	t.Helper()
	e := f.store.Create("")
	if err := f.store.AddComponent(e, m); err != nil {
		t.Fatalf("AddComponent: %v", err)
	}
	return e
}

func (f *fixture) render(t *testing.T) FrameStats {
	t.Helper()
	stats, err := f.r.Render(DefaultCamera(1).Frame(Light{}))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return stats
}

func draws(cmds []software.Command) []software.Command {
	var out []software.Command
	for _, c := range cmds {
		if c.Op == software.OpDrawInstanced {
			out = append(out, c)
		}
	}
	return out
}

func instanceBuffers(cmds []software.Command) []gpucore.BufferID {
	var out []gpucore.BufferID
	for _, c := range cmds {
		if c.Op == software.OpSetVertexBuffer && c.Slot == 1 {
			out = append(out, c.Buffer)
		}
	}
	return out
}

func identityBlock() []byte {
	b := Identity().AppendBytes(nil)
	return Identity().AppendBytes(b)
}

func TestBatchGrouping(t *testing.T) {
	f := newFixture(t, Config{})
	id := IdentityTransform()
	for range 3 {
		f.spawn(t, f.tri, &id)
	}
	for range 2 {
		f.spawn(t, f.quad, &id)
	}

	stats := f.render(t)

	if got := f.dev.Count(software.OpUsePipeline); got != 1 {
		t.Errorf("usePipeline calls = %d, want 1", got)
	}
	ds := draws(f.dev.LastPass())
	if len(ds) != 2 {
		t.Fatalf("draw calls = %d, want 2", len(ds))
	}
	if ds[0].InstanceCount != 3 || ds[1].InstanceCount != 2 {
		t.Errorf("instance counts = %d, %d; want 3, 2", ds[0].InstanceCount, ds[1].InstanceCount)
	}
	if stats.DrawCalls != 2 || stats.Instances != 5 || stats.Pipelines != 1 || stats.SkippedGroups != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestTwoIdentityEntities(t *testing.T) {
	f := newFixture(t, Config{})
	id := IdentityTransform()
	f.spawn(t, f.tri, &id)
	f.spawn(t, f.tri, &id)

	f.render(t)

	cmds := f.dev.LastPass()
	if got := f.dev.Count(software.OpUsePipeline); got != 1 {
		t.Errorf("usePipeline calls = %d, want 1", got)
	}
	if cmds[0].Op != software.OpUsePipeline || cmds[0].Pipeline != f.pipeline {
		t.Errorf("first command = %+v, want usePipeline(%d)", cmds[0], f.pipeline)
	}
	ds := draws(cmds)
	if len(ds) != 1 {
		t.Fatalf("draw calls = %d, want 1", len(ds))
	}
	if ds[0].Buffer != f.tri.IndexBuffer || ds[0].IndexCount != 3 || ds[0].InstanceCount != 2 {
		t.Errorf("draw = %+v", ds[0])
	}

	ibs := instanceBuffers(cmds)
	if len(ibs) != 1 {
		t.Fatalf("instance buffers bound = %d", len(ibs))
	}
	data, ok := f.dev.BufferData(ibs[0])
	if !ok || len(data) < 2*InstanceStride {
		t.Fatalf("instance buffer has %d bytes", len(data))
	}
	for i := range 2 {
		block := data[i*InstanceStride : (i+1)*InstanceStride]
		if !bytes.Equal(block, identityBlock()) {
			t.Errorf("instance %d is not an identity block", i)
		}
	}
}

func TestMissingTransformIsIdentity(t *testing.T) {
	f := newFixture(t, Config{})
	f.spawn(t, f.tri, nil)

	f.render(t)

	data, _ := f.dev.BufferData(instanceBuffers(f.dev.LastPass())[0])
	if !bytes.Equal(data[:InstanceStride], identityBlock()) {
		t.Error("entity without a transform is not drawn at identity")
	}
}

func TestInstanceOrderFollowsCreation(t *testing.T) {
	f := newFixture(t, Config{})
	for i := range 3 {
		tr := Transform{Matrix: Translate(float32(i), 0, 0)}
		f.spawn(t, f.tri, &tr)
	}

	f.render(t)

	data, _ := f.dev.BufferData(instanceBuffers(f.dev.LastPass())[0])
	for i := range 3 {
		want := Translate(float32(i), 0, 0).AppendBytes(nil)
		if got := data[i*InstanceStride : i*InstanceStride+64]; !bytes.Equal(got, want) {
			t.Errorf("instance %d model matrix out of order", i)
		}
	}
}

func TestTransformOnlyEntitiesIgnored(t *testing.T) {
	f := newFixture(t, Config{})
	e := f.store.Create("marker")
	if err := f.store.AddComponent(e, IdentityTransform()); err != nil {
		t.Fatal(err)
	}
	stats := f.render(t)
	if stats.Entities != 0 || stats.DrawCalls != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if f.dev.Passes() != 1 {
		t.Errorf("passes = %d, want 1", f.dev.Passes())
	}
}

var errInjected = errors.New("injected write failure")

func TestGlobalWriteFailureSkipsFrame(t *testing.T) {
	f := newFixture(t, Config{})
	f.spawn(t, f.tri, nil)

	f.dev.SetWriteFault(func(label string) error {
		if label == GlobalsLabel {
			return errInjected
		}
		return nil
	})
	_, err := f.r.Render(Frame{})
	if !errors.Is(err, ErrFrameSkipped) || !errors.Is(err, errInjected) {
		t.Fatalf("err = %v, want ErrFrameSkipped wrapping the write error", err)
	}
	if f.dev.Passes() != 0 {
		t.Errorf("a render pass was submitted for a skipped frame")
	}

	f.dev.SetWriteFault(nil)
	f.render(t)
	if f.dev.Passes() != 1 {
		t.Errorf("passes = %d after recovery", f.dev.Passes())
	}
}

func TestGlobalWriteFailureHalts(t *testing.T) {
	f := newFixture(t, Config{OnGlobalWriteFailure: Halt})
	f.spawn(t, f.tri, nil)

	f.dev.SetWriteFault(func(string) error { return errInjected })
	if _, err := f.r.Render(Frame{}); !errors.Is(err, ErrHalted) {
		t.Fatalf("err = %v, want ErrHalted", err)
	}
	f.dev.SetWriteFault(nil)
	if _, err := f.r.Render(Frame{}); !errors.Is(err, ErrHalted) {
		t.Fatalf("halted renderer rendered: %v", err)
	}
	if !f.r.Halted() {
		t.Fatal("Halted() = false")
	}

	f.r.Resume()
	f.render(t)
	if f.dev.Passes() != 1 {
		t.Errorf("passes = %d after resume", f.dev.Passes())
	}
}

func TestFailingGroupIsSkipped(t *testing.T) {
	f := newFixture(t, Config{})
	f.spawn(t, f.tri, nil)
	f.spawn(t, f.quad, nil)

	f.dev.SetWriteFault(func(label string) error {
		if strings.HasPrefix(label, "g3d.instances.") && strings.HasSuffix(label, ".quad") {
			return errInjected
		}
		return nil
	})
	stats := f.render(t)

	if stats.SkippedGroups != 1 || stats.DrawCalls != 1 {
		t.Errorf("stats = %+v, want one draw and one skipped group", stats)
	}
	ds := draws(f.dev.LastPass())
	if len(ds) != 1 || ds[0].Buffer != f.tri.IndexBuffer {
		t.Errorf("draws = %+v", ds)
	}
}

func usedPipelines(cmds []software.Command) []gpucore.PipelineID {
	var out []gpucore.PipelineID
	for _, c := range cmds {
		if c.Op == software.OpUsePipeline {
			out = append(out, c.Pipeline)
		}
	}
	return out
}

func flatMaterial(t *testing.T, f *fixture) *material.Material {
	t.Helper()
	m, err := material.NewFactory(f.res).New(material.Descriptor{
		Name:           "flat",
		FragmentShader: gpucore.ShaderSource{Name: "flat.frag", EntryPoint: "fs_main"},
		Layouts: []material.LayoutSpec{{Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Type: gpucore.BindingUniform, Visibility: gpucore.StageFragment, Size: 16, Name: "color"},
		}}},
	})
	if err != nil {
		t.Fatalf("material: %v", err)
	}
	return m
}

func TestUnknownPipelineIsSkipped(t *testing.T) {
	tests := []struct {
		name     string
		pipeline func(f *fixture) gpucore.PipelineID
	}{
		{"never created", func(*fixture) gpucore.PipelineID { return 9999 }},
		{"invalid id", func(*fixture) gpucore.PipelineID { return gpucore.InvalidID }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.spawn(t, f.tri, nil)
			bad := tt.pipeline(f)
			f.spawnMesh(t, Mesh{Pipeline: bad, Geometry: f.quad})
			f.spawnMesh(t, Mesh{Pipeline: bad, Geometry: f.tri})

			stats, err := f.r.Render(DefaultCamera(1).Frame(Light{}))
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if stats.SkippedGroups != 2 || stats.DrawCalls != 1 || stats.Pipelines != 1 {
				t.Errorf("stats = %+v, want one draw and two skipped groups", stats)
			}
			cmds := f.dev.LastPass()
			if got := usedPipelines(cmds); !slices.Equal(got, []gpucore.PipelineID{f.pipeline}) {
				t.Errorf("pipelines used = %v, want [%d]", got, f.pipeline)
			}
			if ds := draws(cmds); len(ds) != 1 || ds[0].Buffer != f.tri.IndexBuffer {
				t.Errorf("draws = %+v", ds)
			}
		})
	}
}

func TestLayoutMismatchIsSkipped(t *testing.T) {
	f := newFixture(t, Config{})
	flat := flatMaterial(t, f)
	withMaterial, err := f.r.Pipeline(basicSpec, f.tri, flat)
	if err != nil {
		t.Fatal(err)
	}

	f.spawn(t, f.tri, nil)
	// f.pipeline takes no material groups, withMaterial needs one.
	f.spawnMesh(t, Mesh{Pipeline: f.pipeline, Geometry: f.quad, Material: flat})
	f.spawnMesh(t, Mesh{Pipeline: withMaterial, Geometry: f.quad})

	stats, err := f.r.Render(DefaultCamera(1).Frame(Light{}))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if stats.SkippedGroups != 2 || stats.DrawCalls != 1 {
		t.Errorf("stats = %+v, want one draw and two skipped groups", stats)
	}
	cmds := f.dev.LastPass()
	if got := usedPipelines(cmds); !slices.Equal(got, []gpucore.PipelineID{f.pipeline}) {
		t.Errorf("pipelines used = %v, want [%d]", got, f.pipeline)
	}
	for _, c := range cmds {
		if c.Op == software.OpSetBindGroup && c.Slot != 0 {
			t.Errorf("material bound at slot %d for a skipped group", c.Slot)
		}
	}

	if err := f.r.checkLayouts(gpucore.PipelineDesc{}, nil); !errors.Is(err, ErrLayoutMismatch) {
		t.Errorf("pipeline without globals: err = %v", err)
	}
}

func TestStaleInstanceBuffersReleased(t *testing.T) {
	f := newFixture(t, Config{})
	f.spawn(t, f.tri, nil)
	quad := f.spawn(t, f.quad, nil)
	f.render(t)

	bufs := instanceBuffers(f.dev.LastPass())
	if len(bufs) != 2 {
		t.Fatalf("instance buffers = %v, want two", bufs)
	}
	before := f.res.Stats().Buffers

	if err := f.store.Destroy(quad); err != nil {
		t.Fatal(err)
	}
	f.render(t)
	if got := f.res.Stats().Buffers; got != before-1 {
		t.Errorf("buffers = %d, want %d", got, before-1)
	}
	if _, ok := f.res.BufferSize(bufs[1]); ok {
		t.Error("instance buffer of the removed group is still live")
	}
	if _, ok := f.res.BufferSize(bufs[0]); !ok {
		t.Error("instance buffer of the drawn group was released")
	}

	// A group that comes back gets a fresh buffer.
	f.spawn(t, f.quad, nil)
	if stats := f.render(t); stats.DrawCalls != 2 {
		t.Errorf("stats = %+v, want two draws", stats)
	}
	if got := f.res.Stats().Buffers; got != before {
		t.Errorf("buffers = %d, want %d", got, before)
	}
}

func TestReleasedMaterialDropsInstances(t *testing.T) {
	f := newFixture(t, Config{})
	mats := material.NewFactory(f.res)
	var pl gpucore.PipelineID
	before := f.res.Stats().Buffers

	for i := range 4 {
		m, err := mats.New(material.Descriptor{
			Name: "churn",
			Layouts: []material.LayoutSpec{{Entries: []gpucore.BindGroupLayoutEntry{
				{Binding: 0, Type: gpucore.BindingUniform, Visibility: gpucore.StageFragment, Size: 16, Name: "color"},
			}}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if pl == gpucore.InvalidID {
			if pl, err = f.r.Pipeline(basicSpec, f.tri, m); err != nil {
				t.Fatal(err)
			}
		}
		e := f.spawnMesh(t, Mesh{Pipeline: pl, Geometry: f.tri, Material: m})
		if stats := f.render(t); stats.DrawCalls != 1 {
			t.Fatalf("frame %d stats = %+v", i, stats)
		}
		if err := f.store.Destroy(e); err != nil {
			t.Fatal(err)
		}
		if err := mats.Release(m); err != nil {
			t.Fatal(err)
		}
	}
	f.render(t)
	if got := len(f.r.instances); got != 0 {
		t.Errorf("instance buffers kept = %d, want 0", got)
	}
	if got := f.res.Stats().Buffers; got != before {
		t.Errorf("buffers = %d, want %d", got, before)
	}
}

func TestInstanceBufferGrows(t *testing.T) {
	f := newFixture(t, Config{})
	f.spawn(t, f.tri, nil)
	f.render(t)
	before := f.res.Stats().Buffers

	for range 2 * minInstanceCapacity {
		f.spawn(t, f.tri, nil)
	}
	stats := f.render(t)
	if stats.Instances != 2*minInstanceCapacity+1 {
		t.Errorf("instances = %d", stats.Instances)
	}
	if got := f.res.Stats().Buffers; got != before {
		t.Errorf("buffers = %d, want %d (old instance buffer released)", got, before)
	}
	size, _ := f.res.BufferSize(instanceBuffers(f.dev.LastPass())[0])
	if size < uint64(stats.Instances)*InstanceStride {
		t.Errorf("instance buffer is %d bytes for %d instances", size, stats.Instances)
	}
}

func TestActiveScene(t *testing.T) {
	f := newFixture(t, Config{})
	a, b := f.store.NewScene("a"), f.store.NewScene("b")
	ea := f.spawn(t, f.tri, nil)
	eb := f.spawn(t, f.tri, nil)
	if err := f.store.SetScene(ea, a); err != nil {
		t.Fatal(err)
	}
	if err := f.store.SetScene(eb, b); err != nil {
		t.Fatal(err)
	}

	f.r.SetActiveScene(a)
	if stats := f.render(t); stats.Instances != 1 {
		t.Errorf("instances in scene a = %d, want 1", stats.Instances)
	}
	f.r.SetActiveScene(ecs.NoScene)
	if stats := f.render(t); stats.Instances != 2 {
		t.Errorf("instances with no active scene = %d, want 2", stats.Instances)
	}
}

func TestMaterialsSplitGroups(t *testing.T) {
	f := newFixture(t, Config{})
	mats := material.NewFactory(f.res)
	desc := material.Descriptor{
		Name:           "flat",
		FragmentShader: gpucore.ShaderSource{Name: "flat.frag", EntryPoint: "fs_main"},
		Layouts: []material.LayoutSpec{{Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Type: gpucore.BindingUniform, Visibility: gpucore.StageFragment, Size: 16, Name: "color"},
		}}},
	}
	red, err := mats.New(desc)
	if err != nil {
		t.Fatal(err)
	}
	blue, err := mats.New(desc)
	if err != nil {
		t.Fatal(err)
	}
	pl, err := f.r.Pipeline(basicSpec, f.tri, red)
	if err != nil {
		t.Fatal(err)
	}
	if pl2, _ := f.r.Pipeline(basicSpec, f.tri, blue); pl2 != pl {
		t.Errorf("materials of one shape got different pipelines %d and %d", pl, pl2)
	}
	if err := blue.Update("color", material.Float32s(0, 0, 1, 1)); err != nil {
		t.Fatal(err)
	}

	for _, m := range []*material.Material{red, red, blue} {
		e := f.store.Create("")
		if err := f.store.AddComponent(e, Mesh{Pipeline: pl, Geometry: f.tri, Material: m}); err != nil {
			t.Fatal(err)
		}
	}
	stats := f.render(t)

	if stats.Groups != 2 || stats.DrawCalls != 2 {
		t.Errorf("stats = %+v, want two groups", stats)
	}
	var slots []uint32
	for _, c := range f.dev.LastPass() {
		if c.Op == software.OpSetBindGroup {
			slots = append(slots, c.Slot)
		}
	}
	if want := []uint32{0, 1, 1}; !slices.Equal(slots, want) {
		t.Errorf("bind group slots = %v, want %v", slots, want)
	}
	if blue.Dirty() {
		t.Error("material left dirty after render")
	}
}

func TestRendererClose(t *testing.T) {
	f := newFixture(t, Config{})
	f.spawn(t, f.tri, nil)
	f.render(t)

	if err := f.r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Only the two geometries remain.
	if got := f.res.Stats().Buffers; got != 4 {
		t.Errorf("buffers after Close = %d, want 4", got)
	}
}
