package offscreen

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	aspen "github.com/ZakGoedegebuur/aspen-renderer"
	"github.com/ZakGoedegebuur/aspen-renderer/canvas"
	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"
)

// Frame is the state carried from Setup to Submit for one frame.
type Frame struct {
	// Index is the ring slot the frame renders into.
	Index int

	// Color is the frame's first color attachment, the readback source.
	Color aspen.Target

	// Started is when Setup rotated the ring, used for frame timing.
	Started time.Time
}

// System renders pipeline frames into an offscreen canvas ring.
//
// Setup rotates the ring and publishes the slot's framebuffer and pass
// controller; Submit submits the recording and waits it out, so a finished
// frame's targets are safe to read or reuse immediately. Setup and Submit
// belong to the render thread; Resize, CaptureNext, LastCapture, and
// Preview may be called from any goroutine.
type System struct {
	cv     *canvas.Canvas
	format gputypes.TextureFormat
	frames int

	fenceTimeout time.Duration

	extent atomic.Value // aspen.Extent, the desired output size
	frame  uint64

	armed     atomic.Bool
	captureMu sync.Mutex
	capture   *image.RGBA
}

var _ aspen.SubmitSystem[Frame] = (*System)(nil)

// New builds an offscreen system rendering at extent. The ring holds one
// color target per frame in flight, render-attachable and copyable for
// readback.
func New(extent aspen.Extent, opts ...Option) *System {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	template := aspen.DefaultTargetDescriptor(0, 0, o.format)
	template.Label = "offscreen-color"
	template.Usage = aspen.TargetUsageRenderAttachment | aspen.TargetUsageCopySrc

	s := &System{
		cv:           canvas.New(template),
		format:       o.format,
		frames:       o.frames,
		fenceTimeout: o.fenceTimeout,
	}
	s.extent.Store(extent)
	return s
}

// Canvas returns the ring manager, for hosts that attach extra stages to
// the same targets.
func (s *System) Canvas() *canvas.Canvas { return s.cv }

// Resize changes the desired output size. The ring is rebuilt at the top
// of the next frame.
func (s *System) Resize(extent aspen.Extent) { s.extent.Store(extent) }

// Extent returns the desired output size.
func (s *System) Extent() aspen.Extent { return s.extent.Load().(aspen.Extent) }

// CaptureNext arms a one-frame readback. The next frame to complete stores
// its color target into LastCapture, then the system disarms.
func (s *System) CaptureNext() { s.armed.Store(true) }

// LastCapture returns the most recent readback, or nil if none completed.
// Each capture allocates a fresh image, so the returned one never mutates.
func (s *System) LastCapture() *image.RGBA {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()
	return s.capture
}

// Preview returns the last capture scaled so its larger dimension is at
// most maxDim, or nil if nothing was captured. Captures already within
// maxDim are copied unscaled.
func (s *System) Preview(maxDim int) *image.RGBA {
	src := s.LastCapture()
	if src == nil || maxDim < 1 {
		return nil
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Copy(dst, image.Point{}, src, b, draw.Src, nil)
		return dst
	}

	dw, dh := maxDim, max(1, h*maxDim/w)
	if h > w {
		dw, dh = max(1, w*maxDim/h), maxDim
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// Setup rotates the ring, rebuilding it first if the desired extent
// changed, and opens the frame's recorder. A zero desired extent halts all
// pending frames.
func (s *System) Setup(gc *aspen.GraphicsContext) (*aspen.Snapshot, Frame, aspen.CommandRecorder, error) {
	if gc.Memory() == nil || gc.Recorders() == nil || gc.Submitter() == nil {
		return nil, Frame{}, nil, errors.New("offscreen: graphics context is missing an allocator or submitter")
	}

	extent := s.Extent()
	if extent.IsZero() {
		return nil, Frame{}, nil, aspen.HaltAll
	}

	if s.cv.Extent() != extent {
		if err := s.cv.RebuildExact(extent, s.frames, gc.Memory()); err != nil {
			return nil, Frame{}, nil, fmt.Errorf("offscreen: rebuild ring: %w", err)
		}
	}

	pc := s.cv.RequestPassController()
	snap := &aspen.Snapshot{
		FrameIndex:  s.frame,
		TargetIndex: pc.Index(),
		Extent:      extent,
		Format:      s.format,
		Framebuffer: pc.Framebuffer(),
		Data:        pc,
	}
	s.frame++

	rec, err := gc.Recorders().NewRecorder(fmt.Sprintf("offscreen-frame-%d", snap.FrameIndex))
	if err != nil {
		return nil, Frame{}, nil, fmt.Errorf("offscreen: new recorder: %w", err)
	}
	return snap, Frame{Index: pc.Index(), Color: pc.Images()[0], Started: time.Now()}, rec, nil
}

// Submit finishes and submits the recording, waits out its fence, and runs
// a readback if one is armed. Submission failures drop the frame.
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
	if ok, werr := fence.Wait(s.fenceTimeout); werr != nil || !ok {
		aspen.Logger().Warn("frame fence wait failed", "frame", snap.FrameIndex, "signaled", ok, "err", werr)
	}
	fence.Destroy()

	if s.armed.CompareAndSwap(true, false) {
		s.readBack(gc, frame, snap)
	}

	aspen.Logger().Debug("frame submitted",
		"frame", snap.FrameIndex, "slot", frame.Index, "took", time.Since(frame.Started))
}

// Close destroys the ring. Any armed capture is dropped.
func (s *System) Close() error {
	s.armed.Store(false)
	s.cv.Destroy()
	return nil
}

func (s *System) readBack(gc *aspen.GraphicsContext, frame Frame, snap *aspen.Snapshot) {
	reader := gc.Reader()
	if reader == nil {
		aspen.Logger().Warn("capture armed but context has no target reader", "frame", snap.FrameIndex)
		return
	}

	img := image.NewRGBA(image.Rect(0, 0, int(snap.Extent.Width), int(snap.Extent.Height)))
	if err := reader.ReadTarget(frame.Color, img); err != nil {
		aspen.Logger().Warn("target readback failed", "frame", snap.FrameIndex, "err", err)
		return
	}

	s.captureMu.Lock()
	s.capture = img
	s.captureMu.Unlock()
	aspen.Logger().Debug("frame captured", "frame", snap.FrameIndex, "extent", snap.Extent)
}
