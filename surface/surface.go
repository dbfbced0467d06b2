// Copyright 2026 The Aspen Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"errors"
	"time"

	aspen "github.com/ZakGoedegebuur/aspen-renderer"
	"github.com/gogpu/gputypes"
)

// Sentinel errors reported by Surface implementations.
var (
	// ErrOutOfDate reports that the surface no longer matches its window
	// and must be recreated before further acquires or presents succeed.
	ErrOutOfDate = errors.New("surface: out of date")

	// ErrZeroExtent reports an operation at a zero-sized extent, typically
	// a minimized window.
	ErrZeroExtent = errors.New("surface: zero extent")
)

// Acquisition identifies one surface target handed out for a frame.
type Acquisition struct {
	// Index is the position of the acquired target within Targets().
	Index int

	// Target is the acquired presentable target. It stays valid until the
	// matching Present or until the surface is recreated.
	Target aspen.Target

	// Suboptimal reports that the acquire succeeded but the surface no
	// longer matches its window exactly. The frame may still render and
	// present; the owner should schedule a recreate.
	Suboptimal bool
}

// Surface is a ring of presentable targets shared with a windowing system.
//
// Implementations are safe for use from a single goroutine at a time; the
// render thread is the expected owner. AcquireNext and Present form a pair:
// every successful acquire is balanced by exactly one Present (or discarded
// wholesale by Recreate).
type Surface interface {
	// Extent returns the current output extent. After a window resize this
	// is the new extent even before Recreate has run; a zero extent means
	// there is nothing to render to.
	Extent() aspen.Extent

	// Format returns the pixel format shared by all surface targets.
	Format() gputypes.TextureFormat

	// TargetCount returns the number of targets in the ring.
	TargetCount() int

	// Targets returns the ring of presentable targets. The slice is
	// borrowed; it is invalidated by Recreate.
	Targets() []aspen.Target

	// AcquireNext blocks until a target is available or the timeout
	// expires. It returns ErrOutOfDate when the surface must be recreated
	// first.
	AcquireNext(timeout time.Duration) (Acquisition, error)

	// Recreate rebuilds the target ring at the given extent and clears any
	// out-of-date condition. Previously acquired targets and the Targets
	// slice are invalidated. A zero extent returns ErrZeroExtent and
	// leaves the surface out of date.
	Recreate(extent aspen.Extent) error

	// Present hands the target at index back to the windowing system. It
	// returns ErrOutOfDate when the surface went stale; the frame's work
	// is then discarded by the compositor.
	Present(index int) error
}
