package aspen

// RenderPass is one stage of a frame, split into three phases. P is the
// prepared per-frame data produced before any commands are recorded, and O
// is the output handed to the cleanup phase.
//
// The phases of every stage in a pipeline run as grouped sweeps: all
// Preprocess calls complete before the first BuildCommands call, and all
// BuildCommands calls complete before the first Postprocess call. A later
// stage therefore never observes an earlier stage's build output, only the
// shared snapshot.
//
// Returning a Halt from Preprocess or BuildCommands skips the remainder of
// the frame. Any other error is treated as a fatal device failure.
type RenderPass[P, O any] interface {
	// Preprocess performs per-frame setup: resizing canvases, uploading
	// constants, rotating targets. It must not record device commands.
	Preprocess(gc *GraphicsContext, snap *Snapshot) (P, error)

	// BuildCommands appends this stage's commands to the shared recorder.
	// It is the only phase allowed to touch the recorder.
	BuildCommands(gc *GraphicsContext, snap *Snapshot, rec CommandRecorder, prepared P) (O, error)

	// Postprocess performs cleanup and bookkeeping. It cannot fail.
	Postprocess(gc *GraphicsContext, snap *Snapshot, output O)
}

// Stage is the type-erased form of a RenderPass, letting a pipeline drive a
// list of differently-typed stages through one uniform interface.
//
// A Stage carries its intermediate data between phase calls internally.
// Calling phases out of order is a programmer error and panics; the stage
// would otherwise run on stale or absent data.
//
// Stages are not safe for concurrent use and must not be shared between
// pipelines.
type Stage interface {
	// Preprocess runs the pass's preprocess phase and stores the prepared
	// data for the build phase.
	Preprocess(gc *GraphicsContext, snap *Snapshot) error

	// BuildCommands runs the pass's build phase on the data stored by
	// Preprocess. It panics if no prepared data is stored.
	BuildCommands(gc *GraphicsContext, snap *Snapshot, rec CommandRecorder) error

	// Postprocess runs the pass's cleanup phase on the output stored by
	// BuildCommands. It panics if no output is stored.
	Postprocess(gc *GraphicsContext, snap *Snapshot)
}

// stageTag tracks which phase's data a stage adapter currently holds.
type stageTag uint8

const (
	// stageIdle holds no data; only Preprocess may run.
	stageIdle stageTag = iota

	// stagePreprocessed holds prepared data awaiting BuildCommands.
	stagePreprocessed

	// stageBuilt holds build output awaiting Postprocess.
	stageBuilt
)

func (t stageTag) String() string {
	switch t {
	case stageIdle:
		return "Idle"
	case stagePreprocessed:
		return "Preprocessed"
	case stageBuilt:
		return "Built"
	default:
		return "Unknown"
	}
}

// stageAdapter wraps a RenderPass and erases its P and O types behind the
// Stage interface, holding the in-flight data in a tagged slot.
type stageAdapter[P, O any] struct {
	pass RenderPass[P, O]

	tag      stageTag
	prepared P
	output   O
}

// NewStage erases a RenderPass into a Stage for use with NewPipeline.
//
// Example:
//
//	pipe := aspen.NewPipeline(submitter,
//	    aspen.NewStage(clearPass),
//	    aspen.NewStage(geometryPass),
//	)
func NewStage[P, O any](pass RenderPass[P, O]) Stage {
	return &stageAdapter[P, O]{pass: pass}
}

func (a *stageAdapter[P, O]) Preprocess(gc *GraphicsContext, snap *Snapshot) error {
	// A leftover tag from a halted frame is overwritten here; the stale
	// data is dropped, never replayed.
	a.reset()

	prepared, err := a.pass.Preprocess(gc, snap)
	if err != nil {
		return err
	}
	a.prepared = prepared
	a.tag = stagePreprocessed
	return nil
}

func (a *stageAdapter[P, O]) BuildCommands(gc *GraphicsContext, snap *Snapshot, rec CommandRecorder) error {
	if a.tag != stagePreprocessed {
		panic("aspen: stage data not preprocessed (tag " + a.tag.String() + ")")
	}

	// The prepared data is consumed whether or not the build succeeds.
	prepared := a.prepared
	a.reset()

	output, err := a.pass.BuildCommands(gc, snap, rec, prepared)
	if err != nil {
		return err
	}
	a.output = output
	a.tag = stageBuilt
	return nil
}

func (a *stageAdapter[P, O]) Postprocess(gc *GraphicsContext, snap *Snapshot) {
	if a.tag != stageBuilt {
		panic("aspen: stage data not built (tag " + a.tag.String() + ")")
	}

	output := a.output
	a.reset()

	a.pass.Postprocess(gc, snap, output)
}

// reset drops any stored data so the GC can reclaim it.
func (a *stageAdapter[P, O]) reset() {
	var zeroP P
	var zeroO O
	a.prepared = zeroP
	a.output = zeroO
	a.tag = stageIdle
}
