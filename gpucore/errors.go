package gpucore

import "errors"

// Contract errors. Drivers wrap these with context via fmt.Errorf("%w").
var (
	// ErrPipelineCreationFailed is returned when a backend cannot compile or
	// link a pipeline. The backend-specific cause is wrapped.
	ErrPipelineCreationFailed = errors.New("gpucore: pipeline creation failed")

	// ErrUnsupportedUsageCombination is returned when a buffer combines usage
	// flags the backend forbids.
	ErrUnsupportedUsageCombination = errors.New("gpucore: unsupported buffer usage combination")

	// ErrBindGroupLayoutMismatch is returned when bind group entries do not
	// match the arity or binding numbers of their layout.
	ErrBindGroupLayoutMismatch = errors.New("gpucore: bind group entries do not match layout")

	// ErrBufferOverrun is returned when a write falls outside the buffer or
	// the source data.
	ErrBufferOverrun = errors.New("gpucore: buffer write out of range")

	// ErrMissingVertexLayout is returned by backends that need CPU-side
	// vertex layout metadata when a vertex buffer is created without it.
	ErrMissingVertexLayout = errors.New("gpucore: vertex buffer requires a layout")

	// ErrResourceNotFound is returned when an ID does not name a live resource.
	ErrResourceNotFound = errors.New("gpucore: resource not found")

	// ErrPassClosed is returned when a render pass is used after Submit.
	ErrPassClosed = errors.New("gpucore: render pass already submitted")

	// ErrDeviceClosed is returned after Device.Close.
	ErrDeviceClosed = errors.New("gpucore: device closed")
)
