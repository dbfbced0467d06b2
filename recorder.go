package aspen

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// Recorder state errors. Backends return these (possibly wrapped) when
// commands arrive in an order the recorder cannot accept.
var (
	// ErrRecorderFinished is returned when commands are recorded after Finish.
	ErrRecorderFinished = errors.New("aspen: command recorder already finished")

	// ErrPassActive is returned when BeginPass is called inside an open pass.
	ErrPassActive = errors.New("aspen: render pass already active")

	// ErrNoActivePass is returned for draw-state commands outside a pass.
	ErrNoActivePass = errors.New("aspen: no active render pass")
)

// RenderArea restricts rendering to a sub-rectangle of the framebuffer.
type RenderArea struct {
	X      uint32
	Y      uint32
	Width  uint32
	Height uint32
}

// DepthStencilClear holds clear values for a depth-stencil attachment.
type DepthStencilClear struct {
	// Depth is the clear value for the depth aspect, in [0, 1].
	Depth float32

	// Stencil is the clear value for the stencil aspect.
	Stencil uint32
}

// PassDescriptor describes a render pass to begin.
type PassDescriptor struct {
	// Label is an optional debug label for the pass.
	Label string

	// Framebuffer supplies the attachments to render into.
	Framebuffer Framebuffer

	// Area optionally restricts rendering to a sub-rectangle.
	// When nil the full framebuffer extent is used.
	Area *RenderArea

	// ClearColors maps color attachments to optional clear values by
	// position. A nil entry, or an attachment beyond the slice, loads the
	// existing contents instead of clearing.
	ClearColors []*gputypes.Color

	// DepthStencil, when non-nil, clears the depth-stencil attachment on
	// load. When nil the existing contents are loaded.
	DepthStencil *DepthStencilClear
}

// CommandRecorder records GPU commands for one frame.
//
// A recorder is produced by the submit system's Setup and threaded through
// every render pass's BuildCommands call. It is append-only: commands
// accumulate in call order and become executable only through Finish, which
// seals the recorder into a CommandBundle for submission.
//
// # Lifecycle
//
//  1. Obtain via RecorderAllocator.NewRecorder
//  2. BeginPass / record / NextSubpass / record / EndPass, repeated as needed
//  3. Finish() to produce a CommandBundle, or Discard() to abandon
//
// After Finish or Discard the recorder is dead; all further calls return
// ErrRecorderFinished.
//
// # Thread Safety
//
// CommandRecorder is NOT safe for concurrent use. The frame pipeline
// guarantees exclusive access: each frame's recorder is only ever touched
// from the render thread, one pass at a time.
type CommandRecorder interface {
	// BeginPass starts a render pass over the descriptor's framebuffer.
	BeginPass(desc *PassDescriptor) error

	// NextSubpass advances to the next subpass within the current pass,
	// preserving attachment contents.
	NextSubpass() error

	// EndPass ends the current render pass.
	EndPass() error

	// SetViewport sets the viewport transform for subsequent draws.
	SetViewport(x, y, width, height, minDepth, maxDepth float32) error

	// SetScissor restricts subsequent draws to the given rectangle.
	SetScissor(x, y, width, height uint32) error

	// SetPipeline binds a render pipeline for subsequent draws.
	SetPipeline(p RenderPipeline) error

	// SetBinding binds a resource set at the given group index.
	SetBinding(index uint32, b Binding, dynamicOffsets []uint32) error

	// SetVertexBuffer binds a vertex buffer to the given slot.
	SetVertexBuffer(slot uint32, buf Buffer, offset uint64) error

	// SetIndexBuffer binds the index buffer for indexed draws.
	SetIndexBuffer(buf Buffer, format gputypes.IndexFormat, offset uint64) error

	// Draw issues a non-indexed draw call.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error

	// DrawIndexed issues an indexed draw call.
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error

	// CopyTarget copies the full contents of src into dst. Both targets
	// must share extent and format. Must be called outside a render pass.
	CopyTarget(src, dst Target) error

	// Finish seals the recorder and returns the submittable bundle.
	Finish() (CommandBundle, error)

	// Discard abandons all recorded commands. Safe to call after Finish,
	// where it is a no-op.
	Discard()
}
