// Package native implements the explicit-binding driver on gogpu/wgpu.
//
// The driver translates the device-neutral descriptors of package gpucore
// into HAL calls: bind group layouts, bind groups and pipeline layouts are
// real HAL objects, vertex layouts travel with the pipeline, and every pass
// renders into an offscreen color target with a depth attachment.
//
// A driver can be built three ways:
//
//   - New wraps a hal.Device and hal.Queue the caller already owns.
//   - FromProvider shares the device of a host through gpucontext.
//   - OpenVulkan opens its own Vulkan instance and adapter. This is what
//     backend.Open("native", ...) does.
//
// Build with the nogpu tag to leave the driver out.
package native
