// Copyright 2026 The Aspen Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface defines the presentable-target boundary between the frame
// pipeline and a windowing system.
//
// A Surface owns a small ring of targets that a window compositor can
// display. Each frame acquires one target, records commands against it, and
// hands it back with Present. The package deliberately knows nothing about
// windows themselves: window creation, event handling, and vsync policy all
// live with the host application.
//
// # Lifecycle
//
// Surfaces go stale. When the window is resized or the compositor
// invalidates the swap images, AcquireNext and Present start returning
// ErrOutOfDate until the owner calls Recreate with the new extent:
//
//	acq, err := sfc.AcquireNext(time.Second)
//	if errors.Is(err, surface.ErrOutOfDate) {
//		// Schedule a recreate; skip this frame.
//	}
//
// An acquire may also succeed with Acquisition.Suboptimal set, meaning the
// target is still presentable but no longer matches the window exactly. The
// frame should proceed and a recreate should follow.
//
// # Virtual
//
// Virtual is a headless implementation backed by an ordinary allocator. It
// acquires in round-robin order and treats Resize the way a real windowing
// stack treats a window resize, which makes it suitable for tests, tools,
// and machines with no display at all.
package surface
