//go:build !nogpu

package native

import "github.com/gogpu/gputypes"

// Option configures engine creation.
type Option func(*options)

type options struct {
	backend gputypes.Backend
	format  gputypes.TextureFormat
}

func defaultOptions() options {
	return options{
		backend: gputypes.BackendVulkan,
		format:  gputypes.TextureFormatBGRA8Unorm,
	}
}

// WithGPUBackend selects the graphics backend New opens. The default is
// Vulkan.
func WithGPUBackend(b gputypes.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithSurfaceFormat sets the texture format the engine reports through
// SurfaceFormat. The default is BGRA8Unorm.
func WithSurfaceFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		o.format = f
	}
}
