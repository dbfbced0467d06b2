// Copyright 2026 The Aspen Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"fmt"
	"time"

	aspen "github.com/ZakGoedegebuur/aspen-renderer"
	"github.com/gogpu/gputypes"
)

// Virtual is a headless Surface backed by allocator-created targets.
//
// It never talks to a windowing system: acquires rotate through the ring in
// order and Present is bookkeeping only. Resize plays the role of the window
// resize event, putting the surface out of date until the owner recreates
// it. The zero value is not usable; construct with NewVirtual.
type Virtual struct {
	alloc aspen.MemoryAllocator

	format gputypes.TextureFormat
	usage  aspen.TargetUsage
	count  int

	extent    aspen.Extent
	targets   []aspen.Target
	next      int
	outOfDate bool
}

var _ Surface = (*Virtual)(nil)

// NewVirtual builds a headless surface with count targets of the given
// format. The extent must be nonzero and count at least 1. Targets are
// created render-attachable and copyable so their contents can be read
// back.
func NewVirtual(alloc aspen.MemoryAllocator, format gputypes.TextureFormat, count int, extent aspen.Extent) (*Virtual, error) {
	if alloc == nil {
		return nil, fmt.Errorf("surface: virtual surface needs an allocator")
	}
	if count < 1 {
		return nil, fmt.Errorf("surface: virtual surface needs at least 1 target, got %d", count)
	}
	v := &Virtual{
		alloc:  alloc,
		format: format,
		usage:  aspen.TargetUsageRenderAttachment | aspen.TargetUsageCopySrc,
		count:  count,
	}
	if err := v.Recreate(extent); err != nil {
		return nil, err
	}
	return v, nil
}

// Extent returns the desired output extent, including a pending resize that
// has not been applied by Recreate yet.
func (v *Virtual) Extent() aspen.Extent { return v.extent }

// Format returns the pixel format shared by all targets.
func (v *Virtual) Format() gputypes.TextureFormat { return v.format }

// TargetCount returns the ring size.
func (v *Virtual) TargetCount() int { return v.count }

// Targets returns the current ring. The slice is borrowed and invalidated
// by Recreate.
func (v *Virtual) Targets() []aspen.Target { return v.targets }

// Resize records a new desired extent and marks the surface out of date,
// the way a window resize invalidates a real swapchain. The targets keep
// their old size until Recreate runs.
func (v *Virtual) Resize(extent aspen.Extent) {
	v.extent = extent
	v.outOfDate = true
}

// AcquireNext hands out the next target in ring order. The timeout is
// ignored; a virtual surface never blocks.
func (v *Virtual) AcquireNext(timeout time.Duration) (Acquisition, error) {
	if v.outOfDate {
		return Acquisition{}, ErrOutOfDate
	}
	index := v.next
	v.next = (v.next + 1) % v.count
	return Acquisition{Index: index, Target: v.targets[index]}, nil
}

// Recreate rebuilds the ring at the given extent. The new targets are built
// before the old ones are destroyed, so a failed rebuild leaves the surface
// out of date but intact.
func (v *Virtual) Recreate(extent aspen.Extent) error {
	if extent.IsZero() {
		v.extent = extent
		v.outOfDate = true
		return ErrZeroExtent
	}

	targets := make([]aspen.Target, 0, v.count)
	for i := range v.count {
		desc := aspen.DefaultTargetDescriptor(extent.Width, extent.Height, v.format)
		desc.Label = fmt.Sprintf("virtual-surface-%d", i)
		desc.Usage = v.usage
		t, err := v.alloc.CreateTarget(&desc)
		if err != nil {
			for _, built := range targets {
				built.Destroy()
			}
			v.outOfDate = true
			return fmt.Errorf("surface: create virtual target %d: %w", i, err)
		}
		targets = append(targets, t)
	}

	for _, old := range v.targets {
		old.Destroy()
	}
	v.targets = targets
	v.extent = extent
	v.next = 0
	v.outOfDate = false
	return nil
}

// Present validates the handed-back index. There is no compositor, so a
// presentable surface accepts it without further work.
func (v *Virtual) Present(index int) error {
	if v.outOfDate {
		return ErrOutOfDate
	}
	if index < 0 || index >= v.count {
		return fmt.Errorf("surface: present index %d out of range [0,%d)", index, v.count)
	}
	return nil
}

// Close destroys the target ring. The surface is out of date afterwards.
func (v *Virtual) Close() error {
	for _, t := range v.targets {
		t.Destroy()
	}
	v.targets = nil
	v.outOfDate = true
	return nil
}
