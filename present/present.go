package present

import (
	"errors"
	"fmt"
	"time"

	aspen "github.com/ZakGoedegebuur/aspen-renderer"
	"github.com/ZakGoedegebuur/aspen-renderer/surface"
)

// Frame is the state carried from Setup to Submit for one frame.
type Frame struct {
	// Index is the acquired surface target, also the fence slot the frame
	// signals on completion.
	Index int

	// Started is when Setup acquired the target, used for frame timing.
	Started time.Time
}

// System presents pipeline frames onto a Surface.
//
// It keeps one completion fence per surface target and waits on a target's
// previous fence before reusing it, which bounds the number of frames in
// flight to the size of the target ring. A System belongs to the render
// thread; none of its methods are safe for concurrent use.
type System struct {
	sfc surface.Surface

	acquireTimeout time.Duration
	fenceTimeout   time.Duration

	fences        []aspen.Fence
	framebuffers  []aspen.Framebuffer
	fbExtent      aspen.Extent
	needsRecreate bool
	lastIndex     int
	frame         uint64
}

var _ aspen.SubmitSystem[Frame] = (*System)(nil)

// New builds a present system over sfc. Panics if sfc is nil.
func New(sfc surface.Surface, opts ...Option) *System {
	if sfc == nil {
		panic("present: nil surface")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &System{
		sfc:            sfc,
		acquireTimeout: o.acquireTimeout,
		fenceTimeout:   o.fenceTimeout,
		fences:         make([]aspen.Fence, sfc.TargetCount()),
		lastIndex:      -1,
	}
}

// NeedsRecreate reports whether the surface went stale and will be
// recreated at the top of the next frame.
func (s *System) NeedsRecreate() bool { return s.needsRecreate }

// LastTargetIndex returns the target index of the most recently submitted
// frame, or -1 before the first.
func (s *System) LastTargetIndex() int { return s.lastIndex }

// Setup prepares one frame: recreates a stale surface, acquires the next
// target, waits out the target's previous frame, and opens a recorder.
//
// It halts the frame when the surface has a zero extent or went out of date
// on acquire. Any other failure is returned and treated as fatal by the
// pipeline.
func (s *System) Setup(gc *aspen.GraphicsContext) (*aspen.Snapshot, Frame, aspen.CommandRecorder, error) {
	if gc.Memory() == nil || gc.Recorders() == nil || gc.Submitter() == nil {
		return nil, Frame{}, nil, errors.New("present: graphics context is missing an allocator or submitter")
	}

	extent := s.sfc.Extent()
	if extent.IsZero() {
		return nil, Frame{}, nil, aspen.HaltAll
	}

	if s.needsRecreate {
		if err := s.recreate(extent); err != nil {
			if errors.Is(err, surface.ErrZeroExtent) {
				return nil, Frame{}, nil, aspen.HaltAll
			}
			return nil, Frame{}, nil, fmt.Errorf("present: recreate surface: %w", err)
		}
	}

	acq, err := s.sfc.AcquireNext(s.acquireTimeout)
	if errors.Is(err, surface.ErrOutOfDate) {
		s.needsRecreate = true
		aspen.Logger().Debug("surface out of date on acquire", "extent", extent)
		return nil, Frame{}, nil, aspen.HaltAll
	}
	if err != nil {
		return nil, Frame{}, nil, fmt.Errorf("present: acquire target: %w", err)
	}
	if acq.Suboptimal {
		s.needsRecreate = true
	}

	if err := s.ensureFramebuffers(gc, extent); err != nil {
		return nil, Frame{}, nil, fmt.Errorf("present: build framebuffers: %w", err)
	}

	s.waitSlot(acq.Index)

	snap := &aspen.Snapshot{
		FrameIndex:  s.frame,
		TargetIndex: acq.Index,
		Extent:      extent,
		Format:      s.sfc.Format(),
		Framebuffer: s.framebuffers[acq.Index],
		Data:        acq.Target,
	}
	s.frame++

	rec, err := gc.Recorders().NewRecorder(fmt.Sprintf("present-frame-%d", snap.FrameIndex))
	if err != nil {
		return nil, Frame{}, nil, fmt.Errorf("present: new recorder: %w", err)
	}
	return snap, Frame{Index: acq.Index, Started: time.Now()}, rec, nil
}

// Submit finishes the recording, submits it, and presents the target. The
// completion fence is stored on the target's slot regardless of the present
// outcome; the submitted work is real either way and must be waited out
// before the target is reused.
func (s *System) Submit(gc *aspen.GraphicsContext, rec aspen.CommandRecorder, frame Frame, snap *aspen.Snapshot) {
	bundle, err := rec.Finish()
	if err != nil {
		aspen.Logger().Warn("finish recording failed", "frame", snap.FrameIndex, "err", err)
		return
	}

	fence, err := gc.Submitter().Submit([]aspen.CommandBundle{bundle})
	if err != nil {
		aspen.Logger().Warn("queue submit failed", "frame", snap.FrameIndex, "err", err)
		return
	}

	if err := s.sfc.Present(frame.Index); err != nil {
		if errors.Is(err, surface.ErrOutOfDate) {
			s.needsRecreate = true
			aspen.Logger().Debug("surface out of date on present",
				"rendered", snap.Extent, "surface", s.sfc.Extent())
		} else {
			aspen.Logger().Warn("present failed", "frame", snap.FrameIndex, "target", frame.Index, "err", err)
		}
	}

	s.storeFence(frame.Index, fence)
	s.lastIndex = frame.Index
	aspen.Logger().Debug("frame submitted",
		"frame", snap.FrameIndex, "target", frame.Index, "took", time.Since(frame.Started))
}

// Close waits out all in-flight frames and releases the fences and
// framebuffers. The surface itself stays with its owner.
func (s *System) Close() error {
	s.drainFences()
	s.destroyFramebuffers()
	return nil
}

// recreate rebuilds the surface at extent after draining everything that
// still references the old targets.
func (s *System) recreate(extent aspen.Extent) error {
	s.drainFences()
	s.destroyFramebuffers()
	if err := s.sfc.Recreate(extent); err != nil {
		return err
	}
	s.needsRecreate = false
	s.fences = make([]aspen.Fence, s.sfc.TargetCount())
	aspen.Logger().Debug("surface recreated", "extent", extent, "targets", s.sfc.TargetCount())
	return nil
}

// ensureFramebuffers keeps one single-color framebuffer per surface target,
// rebuilt whenever the extent or the ring changes.
func (s *System) ensureFramebuffers(gc *aspen.GraphicsContext, extent aspen.Extent) error {
	targets := s.sfc.Targets()
	if len(s.framebuffers) == len(targets) && s.fbExtent == extent {
		return nil
	}

	fbs := make([]aspen.Framebuffer, 0, len(targets))
	for i, t := range targets {
		fb, err := gc.Memory().CreateFramebuffer(&aspen.FramebufferDescriptor{
			Label:  fmt.Sprintf("present-fb-%d", i),
			Colors: []aspen.Target{t},
		})
		if err != nil {
			for _, built := range fbs {
				built.Destroy()
			}
			return err
		}
		fbs = append(fbs, fb)
	}

	s.destroyFramebuffers()
	s.framebuffers = fbs
	s.fbExtent = extent
	return nil
}

// waitSlot waits out and releases the fence of the frame that last used the
// given target. A failed wait is logged and treated as no prior frame.
func (s *System) waitSlot(index int) {
	if index >= len(s.fences) {
		grown := make([]aspen.Fence, s.sfc.TargetCount())
		copy(grown, s.fences)
		s.fences = grown
	}
	fence := s.fences[index]
	if fence == nil {
		return
	}
	if ok, err := fence.Wait(s.fenceTimeout); err != nil || !ok {
		aspen.Logger().Warn("frame fence wait failed", "target", index, "signaled", ok, "err", err)
	}
	fence.Destroy()
	s.fences[index] = nil
}

func (s *System) storeFence(index int, fence aspen.Fence) {
	if index >= len(s.fences) {
		grown := make([]aspen.Fence, index+1)
		copy(grown, s.fences)
		s.fences = grown
	}
	if old := s.fences[index]; old != nil {
		old.Destroy()
	}
	s.fences[index] = fence
}

func (s *System) drainFences() {
	for i, fence := range s.fences {
		if fence == nil {
			continue
		}
		if ok, err := fence.Wait(s.fenceTimeout); err != nil || !ok {
			aspen.Logger().Warn("frame fence wait failed", "target", i, "signaled", ok, "err", err)
		}
		fence.Destroy()
		s.fences[i] = nil
	}
}

func (s *System) destroyFramebuffers() {
	for _, fb := range s.framebuffers {
		fb.Destroy()
	}
	s.framebuffers = nil
	s.fbExtent = aspen.Extent{}
}
