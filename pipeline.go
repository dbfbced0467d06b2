package aspen

import "fmt"

// RenderSystem is a unit of frame work runnable by the Renderer's dispatch
// thread. Pipeline is the default implementation; applications with custom
// sequencing needs may implement their own.
type RenderSystem interface {
	// RunFrame executes one frame to completion. It is always called from
	// the render thread, one frame at a time.
	RunFrame(gc *GraphicsContext)
}

// Pipeline sequences a submit system and an ordered list of stages into one
// frame. Per frame it runs:
//
//  1. Submitter.Setup: acquire the output target, publish the snapshot,
//     begin command recording.
//  2. Preprocess sweep over all stages, in declared order.
//  3. BuildCommands sweep over all stages, in declared order.
//  4. Postprocess sweep over all stages, in declared order.
//  5. Submitter.Submit: finalize and dispatch the recorded commands.
//
// Each sweep completes fully before the next begins, so a stage's
// Preprocess may assume every earlier stage has already preprocessed.
// Stage order is caller-defined and significant; there is no dependency
// inference between stages.
//
// A Halt from Setup, any Preprocess, or any BuildCommands abandons the
// remainder of the frame: later phases are skipped, partially-recorded
// commands are discarded rather than submitted, and RunFrame returns
// normally so the next frame can proceed. Any non-Halt error is a device
// failure and panics.
//
// A Pipeline is not safe for concurrent use; hand it to a single Renderer
// and drive it from there.
type Pipeline struct {
	submitter Submitter
	stages    []Stage
}

// Ensure Pipeline implements RenderSystem.
var _ RenderSystem = (*Pipeline)(nil)

// NewPipeline creates a pipeline from a submitter and an ordered stage list.
//
// Example:
//
//	pipe := aspen.NewPipeline(aspen.NewSubmitter[present.Frame](system),
//	    aspen.NewStage(scenePass),
//	    aspen.NewStage(blitPass),
//	)
func NewPipeline(submitter Submitter, stages ...Stage) *Pipeline {
	return &Pipeline{
		submitter: submitter,
		stages:    stages,
	}
}

// StageCount returns the number of stages in declared order.
func (p *Pipeline) StageCount() int {
	return len(p.stages)
}

// RunFrame executes one frame through setup, the three stage sweeps, and
// submission.
func (p *Pipeline) RunFrame(gc *GraphicsContext) {
	snap, rec, err := p.submitter.Setup(gc)
	if err != nil {
		if halt, ok := AsHalt(err); ok {
			Logger().Debug("frame halted", "phase", "setup", "halt", halt)
			return
		}
		panic(fmt.Sprintf("aspen: frame setup failed: %v", err))
	}

	for i, stage := range p.stages {
		if err := stage.Preprocess(gc, snap); err != nil {
			p.abandon(rec, "preprocess", i, err)
			return
		}
	}

	for i, stage := range p.stages {
		if err := stage.BuildCommands(gc, snap, rec); err != nil {
			p.abandon(rec, "build", i, err)
			return
		}
	}

	for _, stage := range p.stages {
		stage.Postprocess(gc, snap)
	}

	p.submitter.Submit(gc, rec, snap)
}

// abandon discards the frame's partial recording and classifies the error:
// halts are logged and absorbed, anything else panics.
func (p *Pipeline) abandon(rec CommandRecorder, phase string, stage int, err error) {
	if rec != nil {
		rec.Discard()
	}
	if halt, ok := AsHalt(err); ok {
		Logger().Debug("frame halted", "phase", phase, "stage", stage, "halt", halt)
		return
	}
	panic(fmt.Sprintf("aspen: frame %s failed at stage %d: %v", phase, stage, err))
}
