// Package aspen provides real-time frame orchestration for GPU rendering in Go.
//
// # Overview
//
// aspen sits between an application and a graphics device. It composes an
// ordered set of independently-authored render passes into one coherent
// frame, executes frames on a single dedicated render thread, keeps several
// frames in flight without data races, and recovers from transient device
// conditions such as output resizes and temporarily unavailable images.
//
// # Quick Start
//
//	import (
//	    aspen "github.com/ZakGoedegebuur/aspen-renderer"
//	    "github.com/ZakGoedegebuur/aspen-renderer/backend/native"
//	    "github.com/ZakGoedegebuur/aspen-renderer/offscreen"
//	)
//
//	eng, err := native.New()
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//	gc := native.NewGraphicsContext(eng)
//
//	renderer := aspen.NewRenderer(gc)
//	defer renderer.Close()
//
//	system := offscreen.New(aspen.Extent{Width: 1280, Height: 720})
//	defer system.Close()
//	pipeline := aspen.NewPipeline(aspen.NewSubmitter[offscreen.Frame](system),
//	    aspen.NewStage(myPass))
//
//	barrier := renderer.Send(pipeline)
//	barrier.Wait()
//
// # Frame Protocol
//
// Each frame runs a fixed sequence: the submit system acquires a target and
// publishes an immutable Snapshot, every stage preprocesses, every stage
// builds commands into one shared recorder, every stage postprocesses, and
// the submit system dispatches the finished recording. A stage or submit
// system may return a Halt to skip the rest of the frame; everything else is
// either absorbed at the submit boundary or treated as fatal.
//
// # Architecture
//
// The module is organized into:
//   - Public API: GraphicsContext, RenderPass, SubmitSystem, Pipeline,
//     Renderer, PresentBarrier, Snapshot, Halt
//   - canvas: multi-buffered offscreen render targets with per-frame rotation
//   - surface: the presentable-surface boundary (acquire/recreate/present)
//   - present, offscreen: submit systems bracketing a frame
//   - backend/native: gogpu/wgpu implementation of the device boundary
//
// # Threading
//
// Producer goroutines hand frame jobs to the render thread through a bounded
// hand-off and receive a PresentBarrier per job. The render thread owns all
// device submission; frames execute strictly in hand-off order.
package aspen

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
