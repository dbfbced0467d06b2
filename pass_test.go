package aspen

import (
	"testing"
)

// testPass is a RenderPass with pluggable phases, for driving the stage
// adapter through its states.
type testPass[P, O any] struct {
	preprocessFn func(gc *GraphicsContext, snap *Snapshot) (P, error)
	buildFn      func(gc *GraphicsContext, snap *Snapshot, rec CommandRecorder, prepared P) (O, error)
	postFn       func(gc *GraphicsContext, snap *Snapshot, output O)
}

func (p *testPass[P, O]) Preprocess(gc *GraphicsContext, snap *Snapshot) (P, error) {
	return p.preprocessFn(gc, snap)
}

func (p *testPass[P, O]) BuildCommands(gc *GraphicsContext, snap *Snapshot, rec CommandRecorder, prepared P) (O, error) {
	return p.buildFn(gc, snap, rec, prepared)
}

func (p *testPass[P, O]) Postprocess(gc *GraphicsContext, snap *Snapshot, output O) {
	p.postFn(gc, snap, output)
}

func TestStageDataFlow(t *testing.T) {
	gc := NewGraphicsContext(NullDeviceHandle{})
	snap := &Snapshot{FrameIndex: 7}

	var gotPrepared int
	var gotOutput string

	stage := NewStage[int, string](&testPass[int, string]{
		preprocessFn: func(_ *GraphicsContext, s *Snapshot) (int, error) {
			if s != snap {
				t.Error("preprocess observed a different snapshot")
			}
			return 42, nil
		},
		buildFn: func(_ *GraphicsContext, s *Snapshot, _ CommandRecorder, prepared int) (string, error) {
			if s != snap {
				t.Error("build observed a different snapshot")
			}
			gotPrepared = prepared
			return "built", nil
		},
		postFn: func(_ *GraphicsContext, _ *Snapshot, output string) {
			gotOutput = output
		},
	})

	if err := stage.Preprocess(gc, snap); err != nil {
		t.Fatalf("Preprocess() = %v", err)
	}
	if err := stage.BuildCommands(gc, snap, nil); err != nil {
		t.Fatalf("BuildCommands() = %v", err)
	}
	stage.Postprocess(gc, snap)

	if gotPrepared != 42 {
		t.Errorf("build received prepared = %d, want 42", gotPrepared)
	}
	if gotOutput != "built" {
		t.Errorf("postprocess received output = %q, want %q", gotOutput, "built")
	}
}

func TestStageBuildWithoutPreprocessPanics(t *testing.T) {
	gc := NewGraphicsContext(NullDeviceHandle{})
	stage := NewStage[int, int](&testPass[int, int]{
		buildFn: func(_ *GraphicsContext, _ *Snapshot, _ CommandRecorder, _ int) (int, error) {
			t.Error("build phase ran without prepared data")
			return 0, nil
		},
	})

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when building before preprocess")
		}
	}()
	_ = stage.BuildCommands(gc, &Snapshot{}, nil)
}

func TestStagePostprocessWithoutBuildPanics(t *testing.T) {
	gc := NewGraphicsContext(NullDeviceHandle{})
	snap := &Snapshot{}
	stage := NewStage[int, int](&testPass[int, int]{
		preprocessFn: func(_ *GraphicsContext, _ *Snapshot) (int, error) {
			return 1, nil
		},
		postFn: func(_ *GraphicsContext, _ *Snapshot, _ int) {
			t.Error("postprocess ran without build output")
		},
	})

	if err := stage.Preprocess(gc, snap); err != nil {
		t.Fatalf("Preprocess() = %v", err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when postprocessing before build")
		}
	}()
	stage.Postprocess(gc, snap)
}

func TestStagePreprocessHaltLeavesNoData(t *testing.T) {
	gc := NewGraphicsContext(NullDeviceHandle{})
	snap := &Snapshot{}
	stage := NewStage[int, int](&testPass[int, int]{
		preprocessFn: func(_ *GraphicsContext, _ *Snapshot) (int, error) {
			return 0, HaltFrame
		},
	})

	err := stage.Preprocess(gc, snap)
	if halt, ok := AsHalt(err); !ok || halt != HaltFrame {
		t.Fatalf("Preprocess() = %v, want HaltFrame", err)
	}

	// The halt left nothing prepared, so building must panic.
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when building after a preprocess halt")
		}
	}()
	_ = stage.BuildCommands(gc, snap, nil)
}

func TestStageBuildHaltConsumesPrepared(t *testing.T) {
	gc := NewGraphicsContext(NullDeviceHandle{})
	snap := &Snapshot{}
	stage := NewStage[int, int](&testPass[int, int]{
		preprocessFn: func(_ *GraphicsContext, _ *Snapshot) (int, error) {
			return 1, nil
		},
		buildFn: func(_ *GraphicsContext, _ *Snapshot, _ CommandRecorder, _ int) (int, error) {
			return 0, HaltAll
		},
	})

	if err := stage.Preprocess(gc, snap); err != nil {
		t.Fatalf("Preprocess() = %v", err)
	}
	err := stage.BuildCommands(gc, snap, nil)
	if halt, ok := AsHalt(err); !ok || halt != HaltAll {
		t.Fatalf("BuildCommands() = %v, want HaltAll", err)
	}

	// The halted build consumed the prepared data and produced no output.
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when postprocessing after a build halt")
		}
	}()
	stage.Postprocess(gc, snap)
}

func TestStagePreprocessDropsStaleData(t *testing.T) {
	gc := NewGraphicsContext(NullDeviceHandle{})
	snap := &Snapshot{}

	var got int
	pass := &testPass[int, int]{
		buildFn: func(_ *GraphicsContext, _ *Snapshot, _ CommandRecorder, prepared int) (int, error) {
			got = prepared
			return prepared, nil
		},
		postFn: func(_ *GraphicsContext, _ *Snapshot, _ int) {},
	}
	stage := NewStage[int, int](pass)

	// First frame halts after preprocess; its data must not leak into the
	// next frame.
	pass.preprocessFn = func(_ *GraphicsContext, _ *Snapshot) (int, error) {
		return 111, nil
	}
	if err := stage.Preprocess(gc, snap); err != nil {
		t.Fatalf("Preprocess() = %v", err)
	}

	pass.preprocessFn = func(_ *GraphicsContext, _ *Snapshot) (int, error) {
		return 222, nil
	}
	if err := stage.Preprocess(gc, snap); err != nil {
		t.Fatalf("Preprocess() = %v", err)
	}
	if err := stage.BuildCommands(gc, snap, nil); err != nil {
		t.Fatalf("BuildCommands() = %v", err)
	}

	if got != 222 {
		t.Errorf("build received prepared = %d, want 222 (fresh frame)", got)
	}
}
