//go:build !nogpu

package native

import (
	"errors"
	"fmt"
	"time"

	aspen "github.com/ZakGoedegebuur/aspen-renderer"
	"github.com/gogpu/wgpu/hal"
)

// ErrNoBundles is returned by Submit when called with nothing to submit.
var ErrNoBundles = errors.New("native: no command bundles to submit")

// Submitter pushes finished command bundles to the device queue.
type Submitter struct {
	device hal.Device
	queue  hal.Queue
}

var _ aspen.QueueSubmitter = (*Submitter)(nil)

// NewSubmitter returns a submitter over the given device and queue.
func NewSubmitter(device hal.Device, queue hal.Queue) *Submitter {
	return &Submitter{device: device, queue: queue}
}

// Submit sends the bundles to the queue in order and returns a fence that
// signals when the GPU has finished them. Each bundle can be submitted only
// once; the returned fence owns the command buffers and staging memory and
// frees them on Destroy.
func (s *Submitter) Submit(bundles []aspen.CommandBundle) (aspen.Fence, error) {
	if len(bundles) == 0 {
		return nil, ErrNoBundles
	}

	checked := make([]*Bundle, 0, len(bundles))
	for _, cb := range bundles {
		b, ok := cb.(*Bundle)
		if !ok {
			return nil, fmt.Errorf("native: submit: %w", ErrForeignResource)
		}
		if b.consumed {
			return nil, fmt.Errorf("native: submit: bundle %q already submitted", b.label)
		}
		for _, prev := range checked {
			if prev == b {
				return nil, fmt.Errorf("native: submit: bundle %q listed twice", b.label)
			}
		}
		checked = append(checked, b)
	}

	cmds := make([]hal.CommandBuffer, 0, len(checked))
	var scratch []hal.Buffer
	for _, b := range checked {
		b.consumed = true
		cmds = append(cmds, b.cmd)
		scratch = append(scratch, b.scratch...)
		b.scratch = nil
	}

	raw, err := s.device.CreateFence()
	if err != nil {
		s.release(cmds, scratch)
		return nil, fmt.Errorf("native: submit: create fence: %w", err)
	}
	if err := s.queue.Submit(cmds, raw, 1); err != nil {
		s.device.DestroyFence(raw)
		s.release(cmds, scratch)
		return nil, fmt.Errorf("native: submit: %w", err)
	}

	return &fence{device: s.device, raw: raw, cmds: cmds, scratch: scratch}, nil
}

func (s *Submitter) release(cmds []hal.CommandBuffer, scratch []hal.Buffer) {
	for _, c := range cmds {
		s.device.FreeCommandBuffer(c)
	}
	for _, b := range scratch {
		s.device.DestroyBuffer(b)
	}
}

// fence wraps a hal fence together with the resources that must stay alive
// until the GPU is done with the submission.
type fence struct {
	device  hal.Device
	raw     hal.Fence
	cmds    []hal.CommandBuffer
	scratch []hal.Buffer
}

var _ aspen.Fence = (*fence)(nil)

// Wait blocks until the fence signals or the timeout passes. It reports
// whether the fence signaled in time.
func (f *fence) Wait(timeout time.Duration) (bool, error) {
	if f.raw == nil {
		return false, errors.New("native: fence already destroyed")
	}
	ok, err := f.device.Wait(f.raw, 1, timeout)
	if err != nil {
		return false, fmt.Errorf("native: fence wait: %w", err)
	}
	return ok, nil
}

// Destroy releases the fence, its command buffers, and any staging memory.
// Safe to call more than once.
func (f *fence) Destroy() {
	if f.raw != nil {
		f.device.DestroyFence(f.raw)
		f.raw = nil
	}
	for _, c := range f.cmds {
		f.device.FreeCommandBuffer(c)
	}
	f.cmds = nil
	for _, b := range f.scratch {
		f.device.DestroyBuffer(b)
	}
	f.scratch = nil
}
