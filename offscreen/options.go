package offscreen

import (
	"time"

	"github.com/gogpu/gputypes"
)

// Option configures a System.
type Option func(*options)

type options struct {
	format       gputypes.TextureFormat
	frames       int
	fenceTimeout time.Duration
}

func defaultOptions() options {
	return options{
		format:       gputypes.TextureFormatBGRA8Unorm,
		frames:       2,
		fenceTimeout: time.Second,
	}
}

// WithFormat sets the color target format. The default is BGRA8Unorm, the
// format window compositors expect, so offscreen output matches presented
// output byte for byte.
func WithFormat(format gputypes.TextureFormat) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithFrameCount sets the ring size. Values below 1 are clamped to 1.
func WithFrameCount(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.frames = n
	}
}

// WithFenceTimeout bounds the per-frame completion wait. Timeouts are
// logged, not fatal.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fenceTimeout = d
	}
}
