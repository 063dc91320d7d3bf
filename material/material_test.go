package material

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/g3d/backend/software"
	"github.com/gogpu/g3d/gpucore"
	"github.com/gogpu/g3d/resource"
)

const fragStages = gpucore.StageVertex | gpucore.StageFragment

func setup(t *testing.T) (*Factory, *resource.Manager, *software.Device) {
	t.Helper()
	dev := software.New()
	res := resource.New(dev, resource.Config{})
	f := NewFactory(res)
	t.Cleanup(func() {
		_ = f.Close()
		res.Close()
		dev.Close()
	})
	return f, res, dev
}

func litDescriptor() Descriptor {
	return Descriptor{
		Name:           "lit",
		FragmentShader: gpucore.ShaderSource{Name: "lit.frag", EntryPoint: "fs_main"},
		Layouts: []LayoutSpec{{
			Label: "lit/material",
			Entries: []gpucore.BindGroupLayoutEntry{
				{Binding: 0, Type: gpucore.BindingUniform, Visibility: fragStages, Size: 16, Name: "color"},
				{Binding: 1, Type: gpucore.BindingTexture, Visibility: gpucore.StageFragment, Name: "albedo"},
				{Binding: 2, Type: gpucore.BindingSampler, Visibility: gpucore.StageFragment, Name: "albedoSampler"},
			},
		}},
		Data: map[string][]byte{"color": Float32s(1, 0, 0, 1)},
	}
}

func TestNewMaterial(t *testing.T) {
	f, res, dev := setup(t)

	m, err := f.New(litDescriptor())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(m.BindGroups()) != 1 || len(m.Layouts()) != 1 {
		t.Fatalf("groups = %d, layouts = %d", len(m.BindGroups()), len(m.Layouts()))
	}
	if m.Dirty() {
		t.Error("fresh material is dirty")
	}

	st := res.Stats()
	if st.Buffers != 1 || st.Samplers != 1 || st.Textures != 1 || st.BindGroups != 1 {
		t.Errorf("stats = %+v", st)
	}

	// The uniform is seeded from Data.
	var buf gpucore.BufferID
	for _, u := range m.uniforms {
		if u.name == "color" {
			buf = u.buffer
		}
	}
	data, ok := dev.BufferData(buf)
	if !ok || !bytes.Equal(data, Float32s(1, 0, 0, 1)) {
		t.Errorf("color buffer = %v", data)
	}
}

func TestDefaultTexturesShared(t *testing.T) {
	f, res, _ := setup(t)

	a, err := f.New(litDescriptor())
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.New(litDescriptor())
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Stats().Textures; got != 1 {
		t.Errorf("textures = %d, want one shared default", got)
	}
	if a.Layouts()[0] != b.Layouts()[0] {
		t.Error("identical layouts not deduplicated")
	}
}

func TestDefaultTextureShapes(t *testing.T) {
	f, res, _ := setup(t)

	desc := Descriptor{
		Name: "sky",
		Layouts: []LayoutSpec{{Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Type: gpucore.BindingCubeTexture, Visibility: gpucore.StageFragment, Name: "env"},
			{Binding: 1, Type: gpucore.BindingTextureArray, Visibility: gpucore.StageFragment, Name: "layers"},
		}}},
	}
	if _, err := f.New(desc); err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := res.Stats().Textures; got != 2 {
		t.Errorf("textures = %d, want 2", got)
	}
}

func TestStorageRejected(t *testing.T) {
	f, res, _ := setup(t)

	desc := litDescriptor()
	desc.Layouts = append(desc.Layouts, LayoutSpec{Entries: []gpucore.BindGroupLayoutEntry{
		{Binding: 0, Type: gpucore.BindingStorage, Visibility: gpucore.StageFragment, Size: 64, Name: "lights"},
	}})
	_, err := f.New(desc)
	if !errors.Is(err, ErrStorageInMaterialUnsupported) {
		t.Fatalf("err = %v, want ErrStorageInMaterialUnsupported", err)
	}
	if st := res.Stats(); st.Buffers != 0 || st.BindGroups != 0 || st.Samplers != 0 {
		t.Errorf("resources leaked: %+v", st)
	}
}

func TestFailedGroupReleasesEarlierOnes(t *testing.T) {
	f, res, _ := setup(t)

	desc := litDescriptor()
	desc.Layouts = append(desc.Layouts, LayoutSpec{Entries: []gpucore.BindGroupLayoutEntry{
		{Binding: 0, Type: gpucore.BindingUniform, Visibility: gpucore.StageFragment, Size: 4, Name: "tint"},
	}})
	desc.Data["tint"] = Float32s(1, 2)

	_, err := f.New(desc)
	if !errors.Is(err, ErrPropertySize) {
		t.Fatalf("err = %v, want ErrPropertySize", err)
	}
	if st := res.Stats(); st.Buffers != 0 || st.BindGroups != 0 || st.Samplers != 0 {
		t.Errorf("resources leaked: %+v", st)
	}
}

func TestOverrides(t *testing.T) {
	f, res, dev := setup(t)

	shared, err := res.CreateBuffer("shared", gpucore.BufferDescriptor{Size: 16, Usage: gpucore.BufferUsageUniform}, nil)
	if err != nil {
		t.Fatal(err)
	}
	samp, err := res.CreateSampler()
	if err != nil {
		t.Fatal(err)
	}
	tex, err := res.CreateTexture(gpucore.TextureData{
		Width: 2, Height: 2, Format: gpucore.TextureFormatRGBA8Unorm, Pixels: make([]byte, 16),
	}, "checker")
	if err != nil {
		t.Fatal(err)
	}

	m, err := f.New(litDescriptor(),
		WithBuffer("color", shared), WithSampler("albedoSampler", samp), WithTexture("albedo", tex))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if st := res.Stats(); st.Buffers != 1 || st.Samplers != 1 || st.Textures != 1 {
		t.Errorf("override resources duplicated: %+v", st)
	}
	// Seed data for an override buffer is written on first bind.
	if !m.Dirty() {
		t.Fatal("material with seeded override buffer is not dirty")
	}
	if err := m.Flush(res); err != nil {
		t.Fatal(err)
	}
	data, _ := dev.BufferData(shared)
	if !bytes.Equal(data, Float32s(1, 0, 0, 1)) {
		t.Errorf("shared buffer = %v", data)
	}

	if err := f.Release(m); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := res.BufferSize(shared); !ok {
		t.Error("Release destroyed an override buffer")
	}
}

func TestUpdateAndBind(t *testing.T) {
	f, res, dev := setup(t)

	m, err := f.New(litDescriptor())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Update("color", Float32s(0, 1)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !m.Dirty() {
		t.Fatal("Update did not mark the material dirty")
	}
	if err := m.Update("missing", nil); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("Update(missing) = %v", err)
	}
	if err := m.Update("color", make([]byte, 32)); !errors.Is(err, ErrPropertySize) {
		t.Errorf("Update(oversized) = %v", err)
	}

	pass, err := dev.BeginRenderPass()
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Bind(res, pass, 1); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if m.Dirty() {
		t.Error("Bind left the material dirty")
	}
	// Submit reports the unmatched draw state; only the recording matters here.
	_ = pass.Submit()

	cmds := dev.LastPass()
	if len(cmds) != 1 || cmds[0].Op != software.OpSetBindGroup || cmds[0].Slot != 1 {
		t.Fatalf("commands = %+v", cmds)
	}

	buf := m.uniforms[0].buffer
	data, _ := dev.BufferData(buf)
	want := append(Float32s(0, 1), make([]byte, 8)...)
	if !bytes.Equal(data, want) {
		t.Errorf("color buffer = %v, want %v", data, want)
	}
}

func TestRelease(t *testing.T) {
	f, res, _ := setup(t)

	m, err := f.New(litDescriptor())
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Release(m); err != nil {
		t.Fatalf("Release: %v", err)
	}
	st := res.Stats()
	if st.Buffers != 0 || st.Samplers != 0 || st.BindGroups != 0 {
		t.Errorf("stats after release = %+v", st)
	}
	if st.Textures != 1 {
		t.Errorf("default texture released with the material")
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if got := res.Stats().Textures; got != 0 {
		t.Errorf("textures after Close = %d", got)
	}
}

func TestReleaseKeepsSharedDefaults(t *testing.T) {
	f, res, _ := setup(t)

	a, err := f.New(litDescriptor())
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.New(litDescriptor())
	if err != nil {
		t.Fatal(err)
	}
	if len(a.samplers) != 1 {
		t.Fatalf("material owns %d samplers, want 1", len(a.samplers))
	}
	if err := f.Release(a); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if a.samplers != nil {
		t.Errorf("samplers after Release = %v", a.samplers)
	}
	st := res.Stats()
	if st.Textures != 1 || st.Samplers != 1 {
		t.Errorf("stats after releasing one of two materials = %+v", st)
	}
	if err := f.Release(b); err != nil {
		t.Fatalf("Release second: %v", err)
	}
	if got := res.Stats().Textures; got != 1 {
		t.Errorf("textures after releasing both = %d, want the shared default", got)
	}
}
