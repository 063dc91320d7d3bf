//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// halProvider is implemented by hosts that share their HAL device.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// FromProvider builds a driver on the device of a host application, for
// example a gogpu window. The provider must expose HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue. When cfg.Format is
// unset the host's surface format is used for the color target.
func FromProvider(provider gpucontext.DeviceProvider, cfg Config) (*Device, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("native: provider %T does not expose HAL types", provider)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("native: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("native: provider HalQueue is not hal.Queue")
	}
	if cfg.Format == gputypes.TextureFormatUndefined {
		cfg.Format = provider.SurfaceFormat()
	}
	d, err := New(device, queue, cfg)
	if err != nil {
		return nil, err
	}
	slogger().Info("native: using shared device", "adapter", provider.AdapterInfo().Name)
	return d, nil
}

// OpenVulkan opens the first discrete or integrated Vulkan adapter, falling
// back to whatever adapter is listed first. The returned driver owns the
// instance and device and destroys them on Close.
func OpenVulkan(cfg Config) (*Device, error) {
	b, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("native: vulkan backend not available")
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open %s: %w", selected.Info.Name, err)
	}

	d, err := New(openDev.Device, openDev.Queue, cfg)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.owner = func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	slogger().Info("native: vulkan adapter opened", "adapter", selected.Info.Name, "type", selected.Info.DeviceType)
	return d, nil
}
