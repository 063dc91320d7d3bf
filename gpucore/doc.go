// Package gpucore defines the device-agnostic GPU contract used by g3d.
//
// Every backend driver implements [Device]. The rest of the engine never
// touches a backend object directly: it holds opaque IDs ([BufferID],
// [TextureID], [PipelineID], ...) and passes them back to the device, which
// maps them to its own resources.
//
//	         +-------------------+
//	         | render / material |
//	         |  geometry / ecs   |
//	         +---------+---------+
//	                   |
//	         +---------v---------+
//	         | resource.Manager  |
//	         +---------+---------+
//	                   | gpucore.Device
//	      +------------+------------+
//	      |                         |
//	+-----v------+          +-------v------+
//	|  software  |          |    native    |
//	| (raster,   |          | (wgpu/hal,   |
//	|  recorded) |          |  explicit)   |
//	+------------+          +--------------+
//
// # Two Backend Families
//
// The contract covers an immediate-mode raster API and an explicit-binding
// API at the same time. Where they disagree the difference is exposed through
// [Capabilities]: a raster backend needs CPU-side [VertexLayout] metadata on
// vertex buffers and may forbid some usage combinations, while an explicit
// backend infers layouts from the pipeline.
//
// # Render Passes
//
// [Device.BeginRenderPass] opens one recording scope. The returned
// [RenderPass] must be closed by exactly one call to [RenderPass.Submit].
//
// # IDs
//
// IDs are allocated by the device from a monotonically increasing counter
// and are never reused while the device is alive. [InvalidID] (zero) is never
// returned for a successfully created resource.
package gpucore
