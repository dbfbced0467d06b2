// Copyright 2026 The Aspen Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package canvas manages multi-buffered offscreen render targets.
//
// A Canvas owns one render-target set and one framebuffer per frame in
// flight, built from a fixed attachment template, and rotates through them
// so that the frame being recorded never writes into targets the GPU may
// still be reading.
//
// # Lifecycle
//
// A canvas starts empty. RebuildExact allocates every set at an exact
// size. Callers decide when a resize is necessary, typically when the
// frame snapshot's output extent differs from Extent; the canvas applies
// no sizing heuristics of its own:
//
//	cv := canvas.New(
//	    aspen.DefaultTargetDescriptor(0, 0, gputypes.TextureFormatBGRA8Unorm),
//	)
//
//	// Inside a pass's Preprocess:
//	if cv.Extent() != snap.Extent {
//	    if err := cv.RebuildExact(snap.Extent, gc.FramesInFlight(), gc.Memory()); err != nil {
//	        return nil, err
//	    }
//	}
//
// # Rotation
//
// RequestPassController advances the rotation index exactly once and
// returns a single-use controller bound to the new current set. Call it at
// most once per frame per canvas, during the build phase:
//
//	pc := cv.RequestPassController()
//	if err := pc.BeginPass(rec, map[int]gputypes.Color{0: clearColor}); err != nil {
//	    return nil, err
//	}
//	// record draws ...
//	if err := pc.EndPass(rec); err != nil {
//	    return nil, err
//	}
//
// # Thread Safety
//
// All Canvas methods are safe for concurrent use; rotation and collection
// bookkeeping happen under a short-held lock that is never held across
// device work. A PassController is single-use and not safe for concurrent
// use.
package canvas
