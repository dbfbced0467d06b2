// Package present drives frames onto a windowing surface.
//
// System is a submit system for the frame pipeline: its Setup acquires the
// next surface target, throttles on the fence of the frame that last used
// that target, and publishes the per-frame snapshot; its Submit finishes the
// recording, submits it to the queue, and presents the target.
//
// # Surface loss
//
// A surface can go stale at two points: the acquire and the present. Both
// mark the system for recreation; the acquire case additionally halts the
// frame, since there is no target to render to. The recreation itself
// happens at the top of the next Setup, so a stale surface costs at most one
// skipped frame:
//
//	sys := present.New(sfc)
//	submitter := aspen.NewSubmitter[present.Frame](sys)
//	pipeline := aspen.NewPipeline(submitter, stages...)
//
//	for running {
//		renderer.Send(pipeline).Wait()
//	}
//
// A zero-extent surface (minimized window) halts every frame until the
// extent becomes nonzero again.
//
// # Failure handling
//
// Presentation failures are absorbed: a failed queue submit or present is
// logged and the frame is dropped, never replayed. Failures that indicate a
// broken contract, such as a missing allocator on the graphics context, are
// returned from Setup and take the process down through the pipeline.
package present
