// Package backend selects the GPU driver a g3d engine runs on.
//
// Drivers register a [Factory] from an init function, so importing a driver
// package is enough to make it available:
//
//	import _ "github.com/gogpu/g3d/backend/software"
//	import _ "github.com/gogpu/g3d/backend/native"
//
// # Backend Selection
//
// Use [Open] to request a specific driver by name, or [OpenDefault] to get
// the first driver in priority order that opens successfully:
//
//	dev, err := backend.OpenDefault(backend.Options{Width: 1280, Height: 720})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Close()
//
// # Available Backends
//
//   - "native": explicit-binding driver on gogpu/wgpu HAL
//   - "software": immediate-mode raster driver that records its command stream
package backend
