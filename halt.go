package aspen

import "errors"

// Halt is the single error type crossing render-pass and submit-system
// boundaries. It signals that the current frame should be abandoned; it is
// never an operating failure. Any other error reaching the frame pipeline
// is treated as fatal.
//
// A Halt carries no surface-recreation semantics. Submit systems that need
// their target rebuilt track that separately (see present.System) so that
// "skip this frame" and "needs external follow-up" stay distinct signals.
type Halt uint8

const (
	// HaltFrame abandons the current frame only. The producer may submit
	// the next frame immediately.
	HaltFrame Halt = iota

	// HaltAll abandons the current frame and tells the producer to stop
	// submitting until the underlying condition (for example a zero-sized
	// or out-of-date output) has been dealt with.
	HaltAll
)

// Error implements the error interface.
func (h Halt) Error() string {
	switch h {
	case HaltFrame:
		return "aspen: halt frame"
	case HaltAll:
		return "aspen: halt all"
	default:
		return "aspen: halt"
	}
}

// String returns the name of the halt value.
func (h Halt) String() string {
	switch h {
	case HaltFrame:
		return "HaltFrame"
	case HaltAll:
		return "HaltAll"
	default:
		return "Halt(?)"
	}
}

// AsHalt reports whether err is, or wraps, a Halt.
func AsHalt(err error) (Halt, bool) {
	var h Halt
	if errors.As(err, &h) {
		return h, true
	}
	return 0, false
}

// IsHalt reports whether err is, or wraps, a Halt of any value.
func IsHalt(err error) bool {
	_, ok := AsHalt(err)
	return ok
}
