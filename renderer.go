package aspen

import (
	"io"
	"runtime"
	"sync"
)

// frameJob pairs a runnable system with its one-shot completion signal.
type frameJob struct {
	system RenderSystem
	done   chan struct{}
}

// Renderer owns the dedicated render thread. All device submission flows
// through this one thread: producers hand frame jobs to it via Send and
// receive a PresentBarrier tracking completion.
//
// The hand-off is a rendezvous: Send delivers the job directly to the
// render thread and at most one job is ever in transit. A second Send
// blocks until the thread has completed the first job and come back for
// more, which gives producers natural backpressure; no two jobs are ever
// mid-execution at once, and jobs run strictly in Send order.
//
// The render thread is locked to its OS thread for the lifetime of the
// Renderer, since graphics APIs commonly require queue access from a
// stable thread.
//
// # Shutdown
//
// Close is the only way to stop the render thread: it closes the hand-off
// and then blocks until the thread drains any in-flight job and exits.
// Stop all producers before calling Close; Send on a closed Renderer
// panics. Close is idempotent and safe to call from any goroutine.
//
// A panic inside a frame job is not recovered. Per the error model, device
// failures and contract violations terminate the process rather than limp
// along with a wedged queue.
type Renderer struct {
	gc *GraphicsContext

	jobs    chan frameJob
	stopped chan struct{}

	closeOnce sync.Once
}

// Ensure Renderer implements io.Closer.
var _ io.Closer = (*Renderer)(nil)

// NewRenderer starts the render thread around a graphics context.
//
// Example:
//
//	r := aspen.NewRenderer(gc)
//	defer r.Close()
//
//	barrier := r.Send(pipe)
//	barrier.Wait()
func NewRenderer(gc *GraphicsContext) *Renderer {
	r := &Renderer{
		gc:      gc,
		jobs:    make(chan frameJob),
		stopped: make(chan struct{}),
	}

	go r.loop()
	return r
}

// loop is the render thread: receive a job, run it, signal completion,
// repeat until the hand-off closes.
func (r *Renderer) loop() {
	runtime.LockOSThread()
	defer close(r.stopped)

	Logger().Debug("render thread started")

	for job := range r.jobs {
		job.system.RunFrame(r.gc)
		close(job.done)
	}

	Logger().Debug("render thread stopped")
}

// GraphicsContext returns the context frame jobs run against.
func (r *Renderer) GraphicsContext() *GraphicsContext {
	return r.gc
}

// Send hands a frame job to the render thread and returns a barrier that
// is satisfied when the job completes. Send blocks while the thread is
// busy with a previous job.
//
// Send must not be called after Close.
func (r *Renderer) Send(system RenderSystem) *PresentBarrier {
	done := make(chan struct{})
	r.jobs <- frameJob{system: system, done: done}
	return &PresentBarrier{done: done}
}

// Close shuts down the render thread: it closes the hand-off first, then
// blocks until the thread has exited. Any job already accepted runs to
// completion before Close returns.
func (r *Renderer) Close() error {
	r.closeOnce.Do(func() {
		close(r.jobs)
		<-r.stopped
	})
	return nil
}
