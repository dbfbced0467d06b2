package aspen

import "github.com/gogpu/gputypes"

// Snapshot holds the per-frame constants produced by a submit system's
// Setup and shared, read-only, with every render pass phase of that frame.
//
// The snapshot is created once per frame and never mutated afterwards;
// passes receive it by pointer purely to avoid copying.
type Snapshot struct {
	// FrameIndex counts frames monotonically from zero.
	FrameIndex uint64

	// TargetIndex is the ring index of the output image for this frame.
	TargetIndex int

	// Extent is the output size in pixels.
	Extent Extent

	// Format is the output pixel format.
	Format gputypes.TextureFormat

	// Framebuffer is the attachment set to render into this frame,
	// or nil when the submit system hands out attachments another way.
	Framebuffer Framebuffer

	// Data carries submit-system specific extras. Passes that depend on
	// a particular submit system may type-assert it.
	Data any
}
