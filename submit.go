package aspen

// SubmitSystem owns a frame's output: it acquires the target to render
// into, hands out the command recorder, and finally dispatches the recorded
// work to the device. C is whatever private state Setup must carry over to
// Submit (an acquired image index, a ready-fence, a capture request).
//
// A submit system is driven exactly once per frame, always as a
// Setup/Submit pair, always from the render thread. Implementations size
// any per-frame resource rings to GraphicsContext.FramesInFlight.
type SubmitSystem[C any] interface {
	// Setup acquires the frame's output target, begins command recording,
	// and publishes the snapshot read by every stage.
	//
	// Returning a Halt skips the frame: the target is temporarily
	// unusable (zero extent, stale swap image) and the next frame should
	// try again. Any other error is fatal.
	Setup(gc *GraphicsContext) (*Snapshot, C, CommandRecorder, error)

	// Submit finalizes the recorder and dispatches the bundle to the
	// device, consuming the state carried from Setup. Presentation
	// failures are absorbed here, not propagated; anything unrecoverable
	// panics.
	Submit(gc *GraphicsContext, rec CommandRecorder, carried C, snap *Snapshot)
}

// Submitter is the type-erased form of a SubmitSystem. The adapter stores
// the carried state between Setup and Submit so the pipeline only threads
// the snapshot and recorder.
//
// Submitters are not safe for concurrent use and must not be shared
// between pipelines.
type Submitter interface {
	// Setup runs the submit system's Setup and stores the carried state.
	Setup(gc *GraphicsContext) (*Snapshot, CommandRecorder, error)

	// Submit runs the submit system's Submit on the stored carried state.
	// It panics if Setup has not succeeded since the last Submit.
	Submit(gc *GraphicsContext, rec CommandRecorder, snap *Snapshot)
}

// submitAdapter wraps a SubmitSystem and erases its carried-state type
// behind the Submitter interface.
type submitAdapter[C any] struct {
	system SubmitSystem[C]

	carried C
	armed   bool
}

// NewSubmitter erases a SubmitSystem into a Submitter for use with
// NewPipeline.
func NewSubmitter[C any](system SubmitSystem[C]) Submitter {
	return &submitAdapter[C]{system: system}
}

func (a *submitAdapter[C]) Setup(gc *GraphicsContext) (*Snapshot, CommandRecorder, error) {
	// Carried state from a halted frame is dropped, never replayed.
	a.reset()

	snap, carried, rec, err := a.system.Setup(gc)
	if err != nil {
		return nil, nil, err
	}
	a.carried = carried
	a.armed = true
	return snap, rec, nil
}

func (a *submitAdapter[C]) Submit(gc *GraphicsContext, rec CommandRecorder, snap *Snapshot) {
	if !a.armed {
		panic("aspen: submit system not set up")
	}

	carried := a.carried
	a.reset()

	a.system.Submit(gc, rec, carried, snap)
}

// reset drops the carried state so the GC can reclaim it.
func (a *submitAdapter[C]) reset() {
	var zero C
	a.carried = zero
	a.armed = false
}
