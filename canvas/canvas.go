// Copyright 2026 The Aspen Authors
// SPDX-License-Identifier: BSD-3-Clause

package canvas

import (
	"fmt"
	"sync"

	aspen "github.com/ZakGoedegebuur/aspen-renderer"
)

// Canvas owns a rotating collection of offscreen render-target sets and
// matching framebuffers, one per frame in flight.
//
// Invariant: after the first successful build, the number of image sets
// always equals the number of framebuffers equals FrameCount. Before the
// first build all three are zero and the collections are empty.
type Canvas struct {
	mu sync.Mutex

	// template describes one attachment set; Width and Height fields are
	// overridden on every rebuild.
	template []aspen.TargetDescriptor

	frameCount int
	current    int

	sets         [][]aspen.Target
	framebuffers []aspen.Framebuffer
}

// New creates an empty canvas from an attachment template. The template's
// Width and Height fields are ignored; RebuildExact supplies the extent.
// Attachments with a depth format occupy the framebuffer's depth-stencil
// slot; at most one per template.
func New(template ...aspen.TargetDescriptor) *Canvas {
	return &Canvas{
		template: template,
	}
}

// Extent returns the built target size, or the zero extent if the canvas
// has never been built.
func (c *Canvas) Extent() aspen.Extent {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.framebuffers) == 0 {
		return aspen.Extent{}
	}
	return c.framebuffers[0].Extent()
}

// FrameCount returns how many image sets the canvas holds, zero before the
// first build.
func (c *Canvas) FrameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameCount
}

// CurrentImageSet returns the render targets at the current rotation
// index. Calling it before any successful build is a programmer error and
// panics; check Extent first.
func (c *Canvas) CurrentImageSet() []aspen.Target {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.sets) == 0 {
		panic("canvas: current image set requested before any build")
	}
	return c.sets[c.current]
}

// RebuildExact destroys every image set and framebuffer and recreates them
// at precisely extent, one set per frame in flight. The new collection is
// built off-lock and swapped in whole, so a concurrent reader observes
// either the old collection or the new one, never a partial rebuild; the
// old targets are destroyed only after the swap. Rotation restarts at
// index zero.
//
// An allocation failure leaves the canvas unchanged and returns the error;
// the caller should treat it as fatal, since it signals device or resource
// exhaustion outside normal control flow.
func (c *Canvas) RebuildExact(extent aspen.Extent, framesInFlight int, alloc aspen.MemoryAllocator) error {
	if framesInFlight < 1 {
		return fmt.Errorf("canvas: frames in flight must be at least 1, got %d", framesInFlight)
	}

	newSets := make([][]aspen.Target, 0, framesInFlight)
	newFBs := make([]aspen.Framebuffer, 0, framesInFlight)

	for i := range framesInFlight {
		set, fb, err := c.buildSet(extent, i, alloc)
		if err != nil {
			destroyCollections(newSets, newFBs)
			return err
		}
		newSets = append(newSets, set)
		newFBs = append(newFBs, fb)
	}

	c.mu.Lock()
	oldSets, oldFBs := c.sets, c.framebuffers
	c.sets = newSets
	c.framebuffers = newFBs
	c.frameCount = framesInFlight
	c.current = 0
	c.mu.Unlock()

	destroyCollections(oldSets, oldFBs)

	aspen.Logger().Debug("canvas rebuilt",
		"extent", extent, "framesInFlight", framesInFlight)
	return nil
}

// buildSet allocates one attachment set and its framebuffer at the given
// extent.
func (c *Canvas) buildSet(extent aspen.Extent, index int, alloc aspen.MemoryAllocator) ([]aspen.Target, aspen.Framebuffer, error) {
	set := make([]aspen.Target, 0, len(c.template))

	fail := func(err error) ([]aspen.Target, aspen.Framebuffer, error) {
		for _, t := range set {
			t.Destroy()
		}
		return nil, nil, err
	}

	fbDesc := aspen.FramebufferDescriptor{
		Label: fmt.Sprintf("canvas-fb-%d", index),
	}

	for a, desc := range c.template {
		desc.Width = extent.Width
		desc.Height = extent.Height
		if desc.Label == "" {
			desc.Label = fmt.Sprintf("canvas-%d-att-%d", index, a)
		}

		target, err := alloc.CreateTarget(&desc)
		if err != nil {
			return fail(fmt.Errorf("canvas: creating attachment %d of set %d: %w", a, index, err))
		}
		set = append(set, target)

		if aspen.IsDepthFormat(desc.Format) {
			fbDesc.DepthStencil = target
		} else {
			fbDesc.Colors = append(fbDesc.Colors, target)
		}
	}

	fb, err := alloc.CreateFramebuffer(&fbDesc)
	if err != nil {
		return fail(fmt.Errorf("canvas: creating framebuffer %d: %w", index, err))
	}

	return set, fb, nil
}

// destroyCollections releases framebuffers before their targets.
func destroyCollections(sets [][]aspen.Target, fbs []aspen.Framebuffer) {
	for _, fb := range fbs {
		fb.Destroy()
	}
	for _, set := range sets {
		for _, t := range set {
			t.Destroy()
		}
	}
}

// RequestPassController advances the rotation index by one (mod the frame
// count) and returns a single-use controller bound to the new current set.
// Call it at most once per frame per canvas. Calling it before any
// successful build is a programmer error and panics.
func (c *Canvas) RequestPassController() *PassController {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frameCount == 0 {
		panic("canvas: pass controller requested before any build")
	}

	c.current = (c.current + 1) % c.frameCount

	return &PassController{
		index:       c.current,
		images:      c.sets[c.current],
		framebuffer: c.framebuffers[c.current],
		subpass:     subpassNone,
	}
}

// Destroy releases every image set and framebuffer and returns the canvas
// to its unbuilt state. The template is kept, so a later RebuildExact
// starts a fresh collection. The caller must ensure no frame still uses
// the targets.
func (c *Canvas) Destroy() {
	c.mu.Lock()
	oldSets, oldFBs := c.sets, c.framebuffers
	c.sets = nil
	c.framebuffers = nil
	c.frameCount = 0
	c.current = 0
	c.mu.Unlock()

	destroyCollections(oldSets, oldFBs)
}
