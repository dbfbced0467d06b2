package aspen

// GraphicsContext bundles everything a frame needs from the graphics device:
// the device handle, the resource allocators, the queue submitter, and the
// frames-in-flight count.
//
// A GraphicsContext is assembled once at startup and then shared by every
// render pass and submit system. It is immutable after creation and safe for
// concurrent use; the thread-safety of the individual allocators is the
// responsibility of their implementations.
//
// The zero value is not usable; construct with NewGraphicsContext.
type GraphicsContext struct {
	device    DeviceHandle
	memory    MemoryAllocator
	bindings  BindingAllocator
	recorders RecorderAllocator
	submitter QueueSubmitter
	reader    TargetReader
	caps      DeviceCapabilities

	framesInFlight int
}

// NewGraphicsContext creates a graphics context around a device handle.
// Optional ContextOption arguments wire in the allocators and submitter:
//
//	// Backend-provided allocators
//	gc := aspen.NewGraphicsContext(handle,
//	    aspen.WithMemoryAllocator(eng.Memory()),
//	    aspen.WithRecorderAllocator(eng.Recorders()),
//	    aspen.WithSubmitter(eng.Submitter()),
//	)
//
// Backends typically expose a convenience constructor that applies all of
// their allocators at once (see backend/native.NewGraphicsContext).
func NewGraphicsContext(device DeviceHandle, opts ...ContextOption) *GraphicsContext {
	// Apply options
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if device == nil {
		device = NullDeviceHandle{}
	}

	return &GraphicsContext{
		device:         device,
		memory:         options.memory,
		bindings:       options.bindings,
		recorders:      options.recorders,
		submitter:      options.submitter,
		reader:         options.reader,
		caps:           options.caps,
		framesInFlight: options.framesInFlight,
	}
}

// Device returns the underlying device handle.
func (gc *GraphicsContext) Device() DeviceHandle {
	return gc.device
}

// Memory returns the memory allocator, or nil if none was configured.
func (gc *GraphicsContext) Memory() MemoryAllocator {
	return gc.memory
}

// Bindings returns the binding allocator, or nil if none was configured.
func (gc *GraphicsContext) Bindings() BindingAllocator {
	return gc.bindings
}

// Recorders returns the recorder allocator, or nil if none was configured.
func (gc *GraphicsContext) Recorders() RecorderAllocator {
	return gc.recorders
}

// Submitter returns the queue submitter, or nil if none was configured.
func (gc *GraphicsContext) Submitter() QueueSubmitter {
	return gc.submitter
}

// Reader returns the target reader, or nil if the backend does not support
// pixel readback.
func (gc *GraphicsContext) Reader() TargetReader {
	return gc.reader
}

// Capabilities returns the device capabilities reported by the backend.
func (gc *GraphicsContext) Capabilities() DeviceCapabilities {
	return gc.caps
}

// FramesInFlight returns how many frames may be in flight at once. Submit
// systems size their per-frame resource rings to this count.
func (gc *GraphicsContext) FramesInFlight() int {
	return gc.framesInFlight
}
