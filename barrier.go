package aspen

// PresentBarrier is the one-shot completion token returned by Renderer.Send.
// It is satisfied when the render thread finishes the submitted frame job.
//
// Wait may be called any number of times, from any goroutine; once the
// barrier is satisfied every Wait returns immediately. A barrier that is
// never waited on does not leak work: Renderer.Close blocks until the
// render thread has finished every accepted job, so frame completion is
// always observed by Wait, by Done, or at the latest by Close. Code that
// must not outrun a specific frame has to call Wait (or select on Done)
// before proceeding.
type PresentBarrier struct {
	done <-chan struct{}
}

// Wait blocks until the frame job this barrier tracks has completed.
func (b *PresentBarrier) Wait() {
	<-b.done
}

// Done returns a channel closed when the frame job completes, for use in
// select statements:
//
//	select {
//	case <-barrier.Done():
//	case <-ctx.Done():
//	}
func (b *PresentBarrier) Done() <-chan struct{} {
	return b.done
}
