// Copyright 2026 The Aspen Authors
// SPDX-License-Identifier: BSD-3-Clause

package canvas

import (
	aspen "github.com/ZakGoedegebuur/aspen-renderer"
	"github.com/gogpu/gputypes"
)

// Controller subpass markers. Values >= 0 are the active subpass index.
const (
	subpassNone  = -1
	subpassEnded = -2
)

// PassController is a short-lived, single-use handle scoped to one frame.
// It borrows one framebuffer and its image views from the canvas and
// enforces the begin / zero-or-more-next-subpass / end ordering on the
// command recorder.
//
// Exactly one BeginPass/EndPass pair may run per controller; after EndPass
// the controller is consumed. Ordering violations are programmer errors
// and panic. Device errors from the recorder are returned and leave the
// controller's state unchanged.
//
// A PassController is not safe for concurrent use.
type PassController struct {
	index       int
	images      []aspen.Target
	framebuffer aspen.Framebuffer

	subpass int
}

// BeginOptions carries the optional parts of beginning a pass.
type BeginOptions struct {
	// Label is an optional debug label for the pass.
	Label string

	// Clears maps color-attachment positions (depth-stencil excluded) to
	// clear values. Attachments without an entry keep their contents.
	Clears map[int]gputypes.Color

	// DepthStencil, when non-nil, clears the depth-stencil attachment.
	DepthStencil *aspen.DepthStencilClear

	// Area optionally restricts rendering to a sub-rectangle of the
	// framebuffer.
	Area *aspen.RenderArea
}

// Index returns the canvas rotation index this controller is bound to.
func (pc *PassController) Index() int {
	return pc.index
}

// Images returns the render targets of the bound image set, in template
// order.
func (pc *PassController) Images() []aspen.Target {
	return pc.images
}

// Framebuffer returns the bound framebuffer.
func (pc *PassController) Framebuffer() aspen.Framebuffer {
	return pc.framebuffer
}

// Active reports whether a pass is currently open.
func (pc *PassController) Active() bool {
	return pc.subpass >= 0
}

// Subpass returns the current subpass index. Only meaningful while Active.
func (pc *PassController) Subpass() int {
	return pc.subpass
}

// BeginPass opens the render pass over the bound framebuffer, clearing the
// color attachments named in clears. Attachments without an entry keep
// their contents.
func (pc *PassController) BeginPass(rec aspen.CommandRecorder, clears map[int]gputypes.Color) error {
	return pc.BeginPassWith(rec, &BeginOptions{Clears: clears})
}

// BeginPassWith opens the render pass with full control over clears, the
// render area, and the debug label.
func (pc *PassController) BeginPassWith(rec aspen.CommandRecorder, opts *BeginOptions) error {
	switch pc.subpass {
	case subpassNone:
	case subpassEnded:
		panic("canvas: pass controller already consumed")
	default:
		panic("canvas: render pass already active")
	}
	if opts == nil {
		opts = &BeginOptions{}
	}

	clearColors := make([]*gputypes.Color, pc.framebuffer.ColorCount())
	for i := range clearColors {
		if col, ok := opts.Clears[i]; ok {
			clearColors[i] = &col
		}
	}

	err := rec.BeginPass(&aspen.PassDescriptor{
		Label:        opts.Label,
		Framebuffer:  pc.framebuffer,
		Area:         opts.Area,
		ClearColors:  clearColors,
		DepthStencil: opts.DepthStencil,
	})
	if err != nil {
		return err
	}

	pc.subpass = 0
	return nil
}

// NextSubpass advances to the next subpass of the open pass.
func (pc *PassController) NextSubpass(rec aspen.CommandRecorder) error {
	if pc.subpass < 0 {
		panic("canvas: render pass not active")
	}
	if err := rec.NextSubpass(); err != nil {
		return err
	}
	pc.subpass++
	return nil
}

// EndPass closes the open pass and consumes the controller.
func (pc *PassController) EndPass(rec aspen.CommandRecorder) error {
	if pc.subpass < 0 {
		panic("canvas: render pass not active")
	}
	if err := rec.EndPass(); err != nil {
		return err
	}
	pc.subpass = subpassEnded
	return nil
}
