// Package offscreen drives frames without any windowing surface.
//
// System is a submit system for the frame pipeline that renders into a
// canvas-managed ring of targets instead of swapchain images. Every frame
// rotates the ring, publishes the current framebuffer through the snapshot,
// and synchronously waits out the submitted work, which makes it suitable
// for batch rendering, golden-image tools, and machines with no display.
//
// Stages reach the ring through the snapshot: Data carries the frame's
// *canvas.PassController, ready for BeginPass:
//
//	func (p *scenePass) BuildCommands(gc *aspen.GraphicsContext, snap *aspen.Snapshot, rec aspen.CommandRecorder, prepared sceneData) (struct{}, error) {
//		pc := snap.Data.(*canvas.PassController)
//		if err := pc.BeginPass(rec, map[int]gputypes.Color{0: background}); err != nil {
//			return struct{}{}, err
//		}
//		// draw calls
//		return struct{}{}, pc.EndPass(rec)
//	}
//
// # Capture
//
// When the graphics context carries a TargetReader, CaptureNext arms a
// one-frame readback: the next submitted frame's color target is copied
// into an *image.RGBA, available from LastCapture. Preview scales the last
// capture down to a thumbnail.
package offscreen
