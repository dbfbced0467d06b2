package present

import (
	"errors"
	"testing"
	"time"

	aspen "github.com/ZakGoedegebuur/aspen-renderer"
	"github.com/ZakGoedegebuur/aspen-renderer/surface"
	"github.com/gogpu/gputypes"
)

type mockTarget struct {
	extent    aspen.Extent
	destroyed bool
}

func (t *mockTarget) Extent() aspen.Extent { return t.extent }

func (t *mockTarget) Format() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }

func (t *mockTarget) NativeView() any { return nil }

func (t *mockTarget) Destroy() { t.destroyed = true }

type mockFramebuffer struct {
	extent    aspen.Extent
	colors    []aspen.Target
	destroyed bool
}

func (f *mockFramebuffer) Extent() aspen.Extent { return f.extent }

func (f *mockFramebuffer) ColorCount() int { return len(f.colors) }

func (f *mockFramebuffer) Color(i int) aspen.Target { return f.colors[i] }

func (f *mockFramebuffer) DepthStencil() aspen.Target { return nil }

func (f *mockFramebuffer) Destroy() { f.destroyed = true }

type mockAllocator struct {
	framebuffers []*mockFramebuffer
}

func (a *mockAllocator) CreateBuffer(desc *aspen.BufferDescriptor) (aspen.Buffer, error) {
	return nil, errors.New("mock: buffers not supported")
}

func (a *mockAllocator) CreateTarget(desc *aspen.TargetDescriptor) (aspen.Target, error) {
	return nil, errors.New("mock: targets not supported")
}

func (a *mockAllocator) CreateFramebuffer(desc *aspen.FramebufferDescriptor) (aspen.Framebuffer, error) {
	var ext aspen.Extent
	if len(desc.Colors) > 0 {
		ext = desc.Colors[0].Extent()
	}
	fb := &mockFramebuffer{extent: ext, colors: desc.Colors}
	a.framebuffers = append(a.framebuffers, fb)
	return fb, nil
}

type stubFence struct {
	signal    bool
	err       error
	waited    bool
	destroyed bool
}

func (f *stubFence) Wait(timeout time.Duration) (bool, error) {
	f.waited = true
	return f.signal, f.err
}

func (f *stubFence) Destroy() { f.destroyed = true }

type mockBundle struct{ label string }

func (b mockBundle) Label() string { return b.label }

type mockRecorder struct {
	label     string
	finishErr error
	finished  bool
	discarded bool
}

var _ aspen.CommandRecorder = (*mockRecorder)(nil)

func (m *mockRecorder) BeginPass(desc *aspen.PassDescriptor) error { return nil }

func (m *mockRecorder) NextSubpass() error { return nil }

func (m *mockRecorder) EndPass() error { return nil }

func (m *mockRecorder) SetViewport(x, y, w, h, minD, maxD float32) error { return nil }

func (m *mockRecorder) SetScissor(x, y, w, h uint32) error { return nil }

func (m *mockRecorder) SetPipeline(p aspen.RenderPipeline) error { return nil }

func (m *mockRecorder) SetBinding(index uint32, b aspen.Binding, offsets []uint32) error { return nil }

func (m *mockRecorder) SetVertexBuffer(slot uint32, buf aspen.Buffer, offset uint64) error {
	return nil
}

func (m *mockRecorder) SetIndexBuffer(buf aspen.Buffer, format gputypes.IndexFormat, offset uint64) error {
	return nil
}

func (m *mockRecorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	return nil
}

func (m *mockRecorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error {
	return nil
}

func (m *mockRecorder) CopyTarget(src, dst aspen.Target) error { return nil }

func (m *mockRecorder) Finish() (aspen.CommandBundle, error) {
	if m.finishErr != nil {
		return nil, m.finishErr
	}
	m.finished = true
	return mockBundle{label: m.label}, nil
}

func (m *mockRecorder) Discard() { m.discarded = true }

type mockRecorderAllocator struct {
	labels []string
}

func (a *mockRecorderAllocator) NewRecorder(label string) (aspen.CommandRecorder, error) {
	a.labels = append(a.labels, label)
	return &mockRecorder{label: label}, nil
}

type mockSubmitter struct {
	fences    []*stubFence
	submitted [][]aspen.CommandBundle
	err       error
}

func (q *mockSubmitter) Submit(bundles []aspen.CommandBundle) (aspen.Fence, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.submitted = append(q.submitted, bundles)
	f := &stubFence{signal: true}
	q.fences = append(q.fences, f)
	return f, nil
}

// fakeSurface is a controllable Surface: error injection on acquire and
// present, plus a log of recreates and presents.
type fakeSurface struct {
	extent     aspen.Extent
	format     gputypes.TextureFormat
	targets    []aspen.Target
	next       int
	acquireErr error
	suboptimal bool
	presentErr error
	recreated  []aspen.Extent
	presented  []int
}

var _ surface.Surface = (*fakeSurface)(nil)

func newFakeSurface(count int, extent aspen.Extent) *fakeSurface {
	s := &fakeSurface{extent: extent, format: gputypes.TextureFormatBGRA8Unorm}
	for range count {
		s.targets = append(s.targets, &mockTarget{extent: extent})
	}
	return s
}

func (s *fakeSurface) Extent() aspen.Extent { return s.extent }

func (s *fakeSurface) Format() gputypes.TextureFormat { return s.format }

func (s *fakeSurface) TargetCount() int { return len(s.targets) }

func (s *fakeSurface) Targets() []aspen.Target { return s.targets }

func (s *fakeSurface) AcquireNext(timeout time.Duration) (surface.Acquisition, error) {
	if s.acquireErr != nil {
		return surface.Acquisition{}, s.acquireErr
	}
	index := s.next
	s.next = (s.next + 1) % len(s.targets)
	return surface.Acquisition{Index: index, Target: s.targets[index], Suboptimal: s.suboptimal}, nil
}

func (s *fakeSurface) Recreate(extent aspen.Extent) error {
	s.recreated = append(s.recreated, extent)
	s.extent = extent
	s.next = 0
	return nil
}

func (s *fakeSurface) Present(index int) error {
	if s.presentErr != nil {
		return s.presentErr
	}
	s.presented = append(s.presented, index)
	return nil
}

type env struct {
	alloc     *mockAllocator
	recorders *mockRecorderAllocator
	queue     *mockSubmitter
	gc        *aspen.GraphicsContext
}

func newEnv() *env {
	e := &env{
		alloc:     &mockAllocator{},
		recorders: &mockRecorderAllocator{},
		queue:     &mockSubmitter{},
	}
	e.gc = aspen.NewGraphicsContext(aspen.NullDeviceHandle{},
		aspen.WithMemoryAllocator(e.alloc),
		aspen.WithRecorderAllocator(e.recorders),
		aspen.WithSubmitter(e.queue),
	)
	return e
}

func runFrame(t *testing.T, sys *System, e *env) *aspen.Snapshot {
	t.Helper()
	snap, frame, rec, err := sys.Setup(e.gc)
	if err != nil {
		t.Fatalf("Setup() = %v", err)
	}
	sys.Submit(e.gc, rec, frame, snap)
	return snap
}

func TestSystemFrameFlow(t *testing.T) {
	e := newEnv()
	sfc := newFakeSurface(2, aspen.Extent{Width: 320, Height: 240})
	sys := New(sfc)

	snap, frame, rec, err := sys.Setup(e.gc)
	if err != nil {
		t.Fatalf("Setup() = %v", err)
	}
	if snap.FrameIndex != 0 || snap.TargetIndex != 0 {
		t.Errorf("snapshot frame/target = %d/%d, want 0/0", snap.FrameIndex, snap.TargetIndex)
	}
	if snap.Extent != sfc.extent || snap.Format != sfc.format {
		t.Errorf("snapshot extent/format = %v/%v", snap.Extent, snap.Format)
	}
	if snap.Framebuffer == nil {
		t.Error("snapshot has no framebuffer")
	}
	if snap.Data != sfc.targets[0] {
		t.Error("snapshot data is not the acquired target")
	}
	if frame.Index != 0 {
		t.Errorf("frame.Index = %d, want 0", frame.Index)
	}

	sys.Submit(e.gc, rec, frame, snap)

	if len(e.queue.submitted) != 1 || len(e.queue.submitted[0]) != 1 {
		t.Fatalf("submitted %d batches, want one single-bundle batch", len(e.queue.submitted))
	}
	if got := e.queue.submitted[0][0].Label(); got != "present-frame-0" {
		t.Errorf("bundle label = %q", got)
	}
	if len(sfc.presented) != 1 || sfc.presented[0] != 0 {
		t.Errorf("presented = %v, want [0]", sfc.presented)
	}
	if sys.LastTargetIndex() != 0 {
		t.Errorf("LastTargetIndex() = %d, want 0", sys.LastTargetIndex())
	}

	snap2 := runFrame(t, sys, e)
	if snap2.FrameIndex != 1 || snap2.TargetIndex != 1 {
		t.Errorf("second frame = %d/%d, want 1/1", snap2.FrameIndex, snap2.TargetIndex)
	}
}

func TestSystemFenceThrottle(t *testing.T) {
	e := newEnv()
	sfc := newFakeSurface(2, aspen.Extent{Width: 64, Height: 64})
	sys := New(sfc)

	runFrame(t, sys, e)
	runFrame(t, sys, e)
	if len(e.queue.fences) != 2 {
		t.Fatalf("have %d fences, want 2", len(e.queue.fences))
	}
	f0, f1 := e.queue.fences[0], e.queue.fences[1]
	if f0.waited || f1.waited {
		t.Fatal("no fence should be waited before its target is reused")
	}

	// The third frame reuses target 0 and must wait out the first.
	runFrame(t, sys, e)
	if !f0.waited || !f0.destroyed {
		t.Error("target 0 fence not waited and released on reuse")
	}
	if f1.waited {
		t.Error("target 1 fence waited early")
	}
}

func TestSystemZeroExtentHalts(t *testing.T) {
	e := newEnv()
	sfc := newFakeSurface(2, aspen.Extent{})
	sys := New(sfc)

	_, _, _, err := sys.Setup(e.gc)
	if halt, ok := aspen.AsHalt(err); !ok || halt != aspen.HaltAll {
		t.Fatalf("Setup() err = %v, want HaltAll", err)
	}
	if len(e.recorders.labels) != 0 {
		t.Error("recorder opened for a halted frame")
	}
}

func TestSystemAcquireOutOfDate(t *testing.T) {
	e := newEnv()
	sfc := newFakeSurface(2, aspen.Extent{Width: 64, Height: 64})
	sys := New(sfc)

	sfc.acquireErr = surface.ErrOutOfDate
	_, _, _, err := sys.Setup(e.gc)
	if halt, ok := aspen.AsHalt(err); !ok || halt != aspen.HaltAll {
		t.Fatalf("Setup() err = %v, want HaltAll", err)
	}
	if !sys.NeedsRecreate() {
		t.Fatal("out-of-date acquire did not flag recreation")
	}

	// The next frame recreates first, then proceeds normally.
	sfc.acquireErr = nil
	snap, frame, rec, err := sys.Setup(e.gc)
	if err != nil {
		t.Fatalf("Setup() after recreate = %v", err)
	}
	if len(sfc.recreated) != 1 || sfc.recreated[0] != sfc.extent {
		t.Errorf("recreated = %v, want one recreate at %v", sfc.recreated, sfc.extent)
	}
	if sys.NeedsRecreate() {
		t.Error("recreation flag not cleared")
	}
	sys.Submit(e.gc, rec, frame, snap)
	if len(sfc.presented) != 1 {
		t.Errorf("presented = %v, want one frame", sfc.presented)
	}
}

func TestSystemSuboptimalContinues(t *testing.T) {
	e := newEnv()
	sfc := newFakeSurface(2, aspen.Extent{Width: 64, Height: 64})
	sys := New(sfc)

	sfc.suboptimal = true
	runFrame(t, sys, e)
	if !sys.NeedsRecreate() {
		t.Error("suboptimal acquire did not flag recreation")
	}
	if len(sfc.presented) != 1 {
		t.Errorf("presented = %v, want the suboptimal frame presented", sfc.presented)
	}

	sfc.suboptimal = false
	runFrame(t, sys, e)
	if len(sfc.recreated) != 1 {
		t.Errorf("recreated %d times, want 1", len(sfc.recreated))
	}
	if sys.NeedsRecreate() {
		t.Error("recreation flag not cleared after recreate")
	}
}

func TestSystemPresentOutOfDate(t *testing.T) {
	e := newEnv()
	sfc := newFakeSurface(2, aspen.Extent{Width: 64, Height: 64})
	sys := New(sfc)

	sfc.presentErr = surface.ErrOutOfDate
	runFrame(t, sys, e)
	if !sys.NeedsRecreate() {
		t.Fatal("out-of-date present did not flag recreation")
	}
	if len(sfc.presented) != 0 {
		t.Errorf("presented = %v, want none", sfc.presented)
	}

	// The submitted work is still fenced; recreation waits it out.
	sfc.presentErr = nil
	runFrame(t, sys, e)
	if f := e.queue.fences[0]; !f.waited || !f.destroyed {
		t.Error("first frame's fence not drained during recreation")
	}
}

func TestSystemSubmitErrorAbsorbed(t *testing.T) {
	e := newEnv()
	sfc := newFakeSurface(2, aspen.Extent{Width: 64, Height: 64})
	sys := New(sfc)

	e.queue.err = errors.New("device lost")
	snap, frame, rec, err := sys.Setup(e.gc)
	if err != nil {
		t.Fatalf("Setup() = %v", err)
	}
	sys.Submit(e.gc, rec, frame, snap)
	if len(sfc.presented) != 0 {
		t.Error("present ran after a failed submit")
	}

	// The slot holds no fence and the system keeps going.
	e.queue.err = nil
	runFrame(t, sys, e)
	runFrame(t, sys, e)
	if len(sfc.presented) != 2 {
		t.Errorf("presented = %v, want two frames after recovery", sfc.presented)
	}
}

func TestSystemFinishErrorAbsorbed(t *testing.T) {
	e := newEnv()
	sfc := newFakeSurface(2, aspen.Extent{Width: 64, Height: 64})
	sys := New(sfc)

	snap, frame, rec, err := sys.Setup(e.gc)
	if err != nil {
		t.Fatalf("Setup() = %v", err)
	}
	rec.(*mockRecorder).finishErr = errors.New("recording overflow")
	sys.Submit(e.gc, rec, frame, snap)

	if len(e.queue.submitted) != 0 {
		t.Error("bundle submitted after a failed finish")
	}
	if len(sfc.presented) != 0 {
		t.Error("frame presented after a failed finish")
	}
}

func TestSystemFenceWaitFailureAbsorbed(t *testing.T) {
	e := newEnv()
	sfc := newFakeSurface(1, aspen.Extent{Width: 64, Height: 64})
	sys := New(sfc)

	runFrame(t, sys, e)
	e.queue.fences[0].signal = false
	e.queue.fences[0].err = errors.New("timeout")

	// A single-target ring reuses the target immediately.
	snap := runFrame(t, sys, e)
	if snap.TargetIndex != 0 {
		t.Fatalf("TargetIndex = %d, want 0", snap.TargetIndex)
	}
	if !e.queue.fences[0].destroyed {
		t.Error("failed fence not released")
	}
}

func TestSystemRecreateRebuildsFramebuffers(t *testing.T) {
	e := newEnv()
	sfc := newFakeSurface(2, aspen.Extent{Width: 64, Height: 64})
	sys := New(sfc)

	runFrame(t, sys, e)
	if len(e.alloc.framebuffers) != 2 {
		t.Fatalf("built %d framebuffers, want one per target", len(e.alloc.framebuffers))
	}

	sfc.acquireErr = surface.ErrOutOfDate
	if _, _, _, err := sys.Setup(e.gc); !aspen.IsHalt(err) {
		t.Fatalf("Setup() err = %v, want a halt", err)
	}
	sfc.acquireErr = nil
	runFrame(t, sys, e)

	if len(e.alloc.framebuffers) != 4 {
		t.Fatalf("have %d framebuffers, want the ring rebuilt", len(e.alloc.framebuffers))
	}
	for i := range 2 {
		if !e.alloc.framebuffers[i].destroyed {
			t.Errorf("old framebuffer %d not destroyed", i)
		}
	}
}

func TestSystemMissingWiring(t *testing.T) {
	gc := aspen.NewGraphicsContext(aspen.NullDeviceHandle{})
	sys := New(newFakeSurface(1, aspen.Extent{Width: 8, Height: 8}))

	_, _, _, err := sys.Setup(gc)
	if err == nil {
		t.Fatal("Setup() accepted a context with no allocators")
	}
	if aspen.IsHalt(err) {
		t.Error("missing wiring must be fatal, not a halt")
	}
}

func TestSystemClose(t *testing.T) {
	e := newEnv()
	sfc := newFakeSurface(2, aspen.Extent{Width: 64, Height: 64})
	sys := New(sfc)

	runFrame(t, sys, e)
	if err := sys.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if f := e.queue.fences[0]; !f.waited || !f.destroyed {
		t.Error("in-flight fence not drained by Close")
	}
	for i, fb := range e.alloc.framebuffers {
		if !fb.destroyed {
			t.Errorf("framebuffer %d not destroyed by Close", i)
		}
	}
}

func TestSystemNilSurfacePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for nil surface")
		}
	}()
	New(nil)
}
