//go:build !nogpu

package native

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/g3d/gpucore"
)

const flatWGSL = `
@vertex
fn vs_main(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(position, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 1.0, 1.0, 1.0);
}
`

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	device, queue := createNoopDevice(t)
	d, err := New(device, queue, Config{Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

var positionLayout = gpucore.VertexLayout{
	Elements: []gpucore.VertexElement{{Name: "position", Type: gpucore.ElementFloat32, Count: 3}},
}

func TestNewRejectsNil(t *testing.T) {
	if _, err := New(nil, nil, Config{}); !errors.Is(err, ErrNilDevice) {
		t.Fatalf("New(nil) error = %v, want ErrNilDevice", err)
	}
	device, queue := createNoopDevice(t)
	if _, err := New(device, queue, Config{ShaderFormat: "hlsl"}); err == nil {
		t.Fatal("New accepted an unknown shader format")
	}
}

func TestCapabilities(t *testing.T) {
	caps := newTestDevice(t).Capabilities()
	if caps.Name != "native" {
		t.Errorf("Name = %q", caps.Name)
	}
	if caps.RequiresVertexLayout {
		t.Error("native driver should not require CPU-side vertex layouts")
	}
	if !caps.Allows(gpucore.BufferUsageVertex | gpucore.BufferUsageStorage) {
		t.Error("vertex|storage should be allowed")
	}
	if caps.MaxBindGroups < 2 {
		t.Errorf("MaxBindGroups = %d", caps.MaxBindGroups)
	}
}

func TestBufferWrites(t *testing.T) {
	d := newTestDevice(t)

	id, err := d.CreateBufferWithData("odd", gpucore.BufferDescriptor{Size: 6, Usage: gpucore.BufferUsageVertex}, []byte{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("CreateBufferWithData: %v", err)
	}

	tests := []struct {
		name   string
		offset uint64
		data   []byte
		want   error
	}{
		{"full", 0, []byte{9, 9, 9, 9, 9, 9}, nil},
		{"tail", 4, []byte{7, 7}, nil},
		{"empty", 6, nil, nil},
		{"overrun", 4, []byte{1, 2, 3}, gpucore.ErrBufferOverrun},
		{"past end", 8, []byte{1}, gpucore.ErrBufferOverrun},
		{"unaligned", 2, []byte{1}, ErrUnalignedWrite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.WriteBuffer(id, tt.offset, tt.data)
			if tt.want == nil && err != nil {
				t.Fatalf("WriteBuffer: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("WriteBuffer error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := d.CreateBufferWithData("big", gpucore.BufferDescriptor{Size: 2}, []byte{1, 2, 3}); !errors.Is(err, gpucore.ErrBufferOverrun) {
		t.Errorf("oversized initial data error = %v", err)
	}
	if err := d.WriteBuffer(999, 0, []byte{1}); !errors.Is(err, gpucore.ErrResourceNotFound) {
		t.Errorf("unknown buffer error = %v", err)
	}

	d.DestroyBuffer(id)
	if n, _, _, _ := d.Live(); n != 0 {
		t.Errorf("live buffers = %d after destroy", n)
	}
}

func TestTextures(t *testing.T) {
	d := newTestDevice(t)

	cube := gpucore.TextureData{
		Width: 1, Height: 1, Layers: 6,
		Format:    gpucore.TextureFormatRGBA8Unorm,
		Dimension: gpucore.TextureCube,
		Pixels:    make([]byte, 24),
	}
	if _, err := d.CreateTexture(cube, "sky"); err != nil {
		t.Fatalf("CreateTexture(cube): %v", err)
	}

	short := cube
	short.Pixels = make([]byte, 4)
	if _, err := d.CreateTexture(short, "short"); !errors.Is(err, gpucore.ErrBufferOverrun) {
		t.Errorf("short pixels error = %v", err)
	}
	if _, err := d.CreateTexture(gpucore.TextureData{Width: 1, Height: 1}, "formatless"); err == nil {
		t.Error("texture without a format was accepted")
	}

	if _, n, _, _ := d.Live(); n != 1 {
		t.Errorf("live textures = %d, want 1", n)
	}
}

// drawSetup creates a pipeline with a uniform group and the buffers a draw needs.
func drawSetup(t *testing.T, d *Device) (gpucore.PipelineID, gpucore.BindGroupID, gpucore.BufferID, gpucore.BufferID) {
	t.Helper()
	layout, err := d.CreateShaderLayout(gpucore.BindGroupLayoutDesc{
		Label: "globals",
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Type: gpucore.BindingUniform, Visibility: gpucore.StageVertex, Size: 64},
		},
	})
	if err != nil {
		t.Fatalf("CreateShaderLayout: %v", err)
	}
	ubo, err := d.CreateBuffer("ubo", gpucore.BufferDescriptor{Size: 64, Usage: gpucore.BufferUsageUniform | gpucore.BufferUsageCopyDst})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	group, err := d.CreateBindGroup(layout, []gpucore.BindGroupEntry{{Binding: 0, Buffer: ubo}})
	if err != nil {
		t.Fatalf("CreateBindGroup: %v", err)
	}
	src := gpucore.ShaderSource{Name: "flat", WGSL: flatWGSL}
	pl, err := d.InitPipeline(gpucore.PipelineDesc{
		Label:            "flat",
		Vertex:           src,
		Fragment:         src,
		VertexLayouts:    []gpucore.VertexLayout{positionLayout},
		BindGroupLayouts: []gpucore.BindGroupLayoutID{layout},
		DepthTest:        true,
	})
	if err != nil {
		t.Fatalf("InitPipeline: %v", err)
	}
	vb, err := d.CreateBufferWithData("tri.vertices", gpucore.BufferDescriptor{Size: 36, Usage: gpucore.BufferUsageVertex}, make([]byte, 36))
	if err != nil {
		t.Fatalf("vertex buffer: %v", err)
	}
	ib, err := d.CreateBufferWithData("tri.indices", gpucore.BufferDescriptor{Size: 12, Usage: gpucore.BufferUsageIndex}, make([]byte, 12))
	if err != nil {
		t.Fatalf("index buffer: %v", err)
	}
	return pl, group, vb, ib
}

func TestPassSubmit(t *testing.T) {
	d := newTestDevice(t)
	pl, group, vb, ib := drawSetup(t, d)

	pass, err := d.BeginRenderPass()
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}
	pass.UsePipeline(pl)
	pass.SetBindGroup(0, group, nil)
	pass.SetVertexBuffer(0, vb)
	pass.DrawInstanced(ib, 3, 2)
	pass.DrawIndexed(ib, 3)
	if err := pass.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := d.Submissions(); got != 1 {
		t.Errorf("Submissions = %d, want 1", got)
	}
	// The noop queue completes work on submit.
	if got := d.InFlight(); got != 0 {
		t.Errorf("InFlight = %d, want 0", got)
	}
	if err := pass.Submit(); !errors.Is(err, gpucore.ErrPassClosed) {
		t.Errorf("second Submit error = %v, want ErrPassClosed", err)
	}
}

func TestPassReportsRecordingErrors(t *testing.T) {
	d := newTestDevice(t)
	_, _, _, ib := drawSetup(t, d)

	tests := []struct {
		name   string
		record func(p gpucore.RenderPass)
		want   error
	}{
		{"unknown pipeline", func(p gpucore.RenderPass) { p.UsePipeline(12345) }, gpucore.ErrResourceNotFound},
		{"unknown bind group", func(p gpucore.RenderPass) { p.SetBindGroup(0, 12345, nil) }, gpucore.ErrResourceNotFound},
		{"unknown vertex buffer", func(p gpucore.RenderPass) { p.SetVertexBuffer(0, 12345) }, gpucore.ErrResourceNotFound},
		{"draw without pipeline", func(p gpucore.RenderPass) { p.DrawIndexed(ib, 3) }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pass, err := d.BeginRenderPass()
			if err != nil {
				t.Fatalf("BeginRenderPass: %v", err)
			}
			tt.record(pass)
			err = pass.Submit()
			if err == nil {
				t.Fatal("Submit reported no error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Submit error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDrawOverrun(t *testing.T) {
	d := newTestDevice(t)
	pl, _, _, ib := drawSetup(t, d)

	pass, err := d.BeginRenderPass()
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}
	pass.UsePipeline(pl)
	pass.DrawIndexed(ib, 4)
	if err := pass.Submit(); !errors.Is(err, gpucore.ErrBufferOverrun) {
		t.Errorf("Submit error = %v, want ErrBufferOverrun", err)
	}
}

func TestInitPipelineFailures(t *testing.T) {
	d := newTestDevice(t)
	src := gpucore.ShaderSource{Name: "flat", WGSL: flatWGSL}

	tests := []struct {
		name string
		desc gpucore.PipelineDesc
	}{
		{"no source", gpucore.PipelineDesc{Label: "named", Vertex: gpucore.ShaderSource{Name: "basic"}, Fragment: src}},
		{"unknown layout", gpucore.PipelineDesc{Label: "layout", Vertex: src, Fragment: src, BindGroupLayouts: []gpucore.BindGroupLayoutID{777}}},
		{"bad element", gpucore.PipelineDesc{Label: "wide", Vertex: src, Fragment: src, VertexLayouts: []gpucore.VertexLayout{{
			Elements: []gpucore.VertexElement{{Name: "wide", Type: gpucore.ElementFloat32, Count: 5}},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.InitPipeline(tt.desc); !errors.Is(err, gpucore.ErrPipelineCreationFailed) {
				t.Fatalf("InitPipeline error = %v, want ErrPipelineCreationFailed", err)
			}
		})
	}
}

func TestShaderModulesShared(t *testing.T) {
	d := newTestDevice(t)
	drawSetup(t, d)
	if n := len(d.shaders.modules); n != 1 {
		t.Errorf("shader modules = %d, want 1 for a shared source", n)
	}
}

func TestCompileSPIRV(t *testing.T) {
	words, err := compileSPIRV(flatWGSL)
	if err != nil {
		t.Fatalf("compileSPIRV: %v", err)
	}
	if words[0] != spirvMagic {
		t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x07230203", words[0])
	}

	device, queue := createNoopDevice(t)
	d, err := New(device, queue, Config{ShaderFormat: ShaderFormatSPIRV})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()
	_, err = d.InitPipeline(gpucore.PipelineDesc{
		Label:         "flat-spirv",
		Vertex:        gpucore.ShaderSource{Name: "flat", WGSL: flatWGSL},
		Fragment:      gpucore.ShaderSource{Name: "flat", WGSL: flatWGSL},
		VertexLayouts: []gpucore.VertexLayout{positionLayout},
	})
	if err != nil {
		t.Fatalf("InitPipeline with SPIR-V: %v", err)
	}
}

func TestVertexBufferLocations(t *testing.T) {
	instance := gpucore.VertexLayout{
		Elements: []gpucore.VertexElement{
			{Name: "model0", Type: gpucore.ElementFloat32, Count: 4},
			{Name: "model1", Type: gpucore.ElementFloat32, Count: 4},
		},
		StepMode: gpucore.StepInstance,
	}
	out, err := vertexBuffers([]gpucore.VertexLayout{positionLayout, instance})
	if err != nil {
		t.Fatalf("vertexBuffers: %v", err)
	}
	if out[0].ArrayStride != 12 || out[1].ArrayStride != 32 {
		t.Errorf("strides = %d, %d", out[0].ArrayStride, out[1].ArrayStride)
	}
	if out[1].StepMode != gputypes.VertexStepModeInstance {
		t.Errorf("instance step mode = %v", out[1].StepMode)
	}
	second := out[1].Attributes[1]
	if second.ShaderLocation != 2 || second.Offset != 16 || second.Format != gputypes.VertexFormatFloat32x4 {
		t.Errorf("model1 attribute = %+v", second)
	}
}

func TestClose(t *testing.T) {
	device, queue := createNoopDevice(t)
	d, err := New(device, queue, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	drawSetup(t, d)
	d.Close()
	d.Close()

	if b, tex, s, g := d.Live(); b+tex+s+g != 0 {
		t.Errorf("resources live after Close: %d %d %d %d", b, tex, s, g)
	}
	if _, err := d.CreateBuffer("late", gpucore.BufferDescriptor{Size: 4}); !errors.Is(err, gpucore.ErrDeviceClosed) {
		t.Errorf("CreateBuffer after Close error = %v", err)
	}
	if _, err := d.BeginRenderPass(); !errors.Is(err, gpucore.ErrDeviceClosed) {
		t.Errorf("BeginRenderPass after Close error = %v", err)
	}
}

// surfaceProvider implements gpucontext.DeviceProvider without HAL access.
type surfaceProvider struct{}

func (surfaceProvider) Device() gpucontext.Device { return nil }
func (surfaceProvider) Queue() gpucontext.Queue   { return nil }
func (surfaceProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatBGRA8Unorm
}
func (surfaceProvider) Adapter() gpucontext.Adapter { return nil }
func (surfaceProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "noop"}
}

type halProviderStub struct {
	surfaceProvider
	device hal.Device
	queue  hal.Queue
}

func (p halProviderStub) HalDevice() any { return p.device }
func (p halProviderStub) HalQueue() any  { return p.queue }

func TestFromProvider(t *testing.T) {
	device, queue := createNoopDevice(t)

	d, err := FromProvider(halProviderStub{device: device, queue: queue}, Config{})
	if err != nil {
		t.Fatalf("FromProvider: %v", err)
	}
	defer d.Close()
	if d.cfg.Format != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("target format = %v, want the surface format", d.cfg.Format)
	}

	if _, err := FromProvider(surfaceProvider{}, Config{}); err == nil {
		t.Error("provider without HAL accessors was accepted")
	}
}
