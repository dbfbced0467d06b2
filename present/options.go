package present

import "time"

// Option configures a System.
type Option func(*options)

type options struct {
	acquireTimeout time.Duration
	fenceTimeout   time.Duration
}

func defaultOptions() options {
	return options{
		acquireTimeout: time.Second,
		fenceTimeout:   time.Second,
	}
}

// WithAcquireTimeout bounds how long Setup waits for a surface target.
//
// Example:
//
//	sys := present.New(sfc, present.WithAcquireTimeout(100*time.Millisecond))
func WithAcquireTimeout(d time.Duration) Option {
	return func(o *options) {
		o.acquireTimeout = d
	}
}

// WithFenceTimeout bounds how long the system waits on a frame completion
// fence before treating it as lost. Lost fences are logged, not fatal.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fenceTimeout = d
	}
}
