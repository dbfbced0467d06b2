package aspen

// ContextOption configures a GraphicsContext during creation.
// Use functional options to wire in backend allocators.
//
// Example:
//
//	// Minimal context for dry runs
//	gc := aspen.NewGraphicsContext(aspen.NullDeviceHandle{})
//
//	// Backend allocators (dependency injection)
//	gc := aspen.NewGraphicsContext(handle, aspen.WithMemoryAllocator(mem))
type ContextOption func(*contextOptions)

// contextOptions holds optional configuration for GraphicsContext creation.
type contextOptions struct {
	memory    MemoryAllocator
	bindings  BindingAllocator
	recorders RecorderAllocator
	submitter QueueSubmitter
	reader    TargetReader
	caps      DeviceCapabilities

	framesInFlight int
}

// defaultOptions returns the default context options.
func defaultOptions() contextOptions {
	return contextOptions{
		framesInFlight: 2, // double-buffered unless overridden
	}
}

// WithMemoryAllocator sets the allocator used for buffers, render targets,
// and framebuffers.
//
// Example:
//
//	gc := aspen.NewGraphicsContext(handle, aspen.WithMemoryAllocator(eng.Memory()))
func WithMemoryAllocator(m MemoryAllocator) ContextOption {
	return func(o *contextOptions) {
		o.memory = m
	}
}

// WithBindingAllocator sets the allocator used for binding layouts and
// bindings.
func WithBindingAllocator(b BindingAllocator) ContextOption {
	return func(o *contextOptions) {
		o.bindings = b
	}
}

// WithRecorderAllocator sets the allocator used to obtain per-frame command
// recorders.
func WithRecorderAllocator(r RecorderAllocator) ContextOption {
	return func(o *contextOptions) {
		o.recorders = r
	}
}

// WithSubmitter sets the queue submitter used to execute finished command
// bundles.
func WithSubmitter(s QueueSubmitter) ContextOption {
	return func(o *contextOptions) {
		o.submitter = s
	}
}

// WithTargetReader enables pixel readback for offscreen capture.
//
// Example:
//
//	gc := aspen.NewGraphicsContext(handle, aspen.WithTargetReader(eng.Reader()))
func WithTargetReader(r TargetReader) ContextOption {
	return func(o *contextOptions) {
		o.reader = r
	}
}

// WithCapabilities attaches the device capabilities reported by the backend.
func WithCapabilities(caps DeviceCapabilities) ContextOption {
	return func(o *contextOptions) {
		o.caps = caps
	}
}

// WithFramesInFlight sets how many frames may be in flight at once.
// Values below 1 are clamped to 1.
//
// Example:
//
//	// Triple buffering
//	gc := aspen.NewGraphicsContext(handle, aspen.WithFramesInFlight(3))
func WithFramesInFlight(n int) ContextOption {
	return func(o *contextOptions) {
		if n < 1 {
			n = 1
		}
		o.framesInFlight = n
	}
}
