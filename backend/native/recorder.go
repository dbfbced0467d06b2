//go:build !nogpu

package native

import (
	"errors"
	"fmt"

	aspen "github.com/ZakGoedegebuur/aspen-renderer"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrCopyMismatch is returned by CopyTarget when the two targets differ in
// extent or format.
var ErrCopyMismatch = errors.New("native: copy targets differ in extent or format")

type recorderState uint8

const (
	stateRecording recorderState = iota
	statePass
	stateFinished
	stateDiscarded
)

func (s recorderState) String() string {
	switch s {
	case stateRecording:
		return "recording"
	case statePass:
		return "in-pass"
	case stateFinished:
		return "finished"
	case stateDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("recorderState(%d)", uint8(s))
	}
}

// CommandPool hands out command recorders over a hal device.
type CommandPool struct {
	device hal.Device
}

var _ aspen.RecorderAllocator = (*CommandPool)(nil)

// NewCommandPool returns a recorder source backed by the given device.
func NewCommandPool(device hal.Device) *CommandPool {
	return &CommandPool{device: device}
}

// NewRecorder creates a command encoder and opens it for recording.
func (p *CommandPool) NewRecorder(label string) (aspen.CommandRecorder, error) {
	enc, err := p.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder %q: %w", label, err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("native: begin encoding %q: %w", label, err)
	}
	return &Recorder{
		device:  p.device,
		encoder: enc,
		label:   label,
		state:   stateRecording,
	}, nil
}

// Recorder encodes render passes and copies into a command bundle. It is
// not safe for concurrent use; each frame stage records on its own recorder.
type Recorder struct {
	device  hal.Device
	encoder hal.CommandEncoder
	label   string
	state   recorderState

	pass      hal.RenderPassEncoder
	passLabel string
	passViews []hal.TextureView
	passDepth hal.TextureView
	subpass   int

	// Staging buffers from CopyTarget. They ride along with the bundle and
	// are released once its fence is destroyed.
	scratch []hal.Buffer
}

var _ aspen.CommandRecorder = (*Recorder)(nil)

func (r *Recorder) requireRecording(op string) error {
	switch r.state {
	case stateRecording:
		return nil
	case statePass:
		return fmt.Errorf("native: %s: %w", op, aspen.ErrPassActive)
	default:
		return fmt.Errorf("native: %s: %w", op, aspen.ErrRecorderFinished)
	}
}

func (r *Recorder) requirePass(op string) error {
	switch r.state {
	case statePass:
		return nil
	case stateRecording:
		return fmt.Errorf("native: %s: %w", op, aspen.ErrNoActivePass)
	default:
		return fmt.Errorf("native: %s: %w", op, aspen.ErrRecorderFinished)
	}
}

// BeginPass opens a render pass over the framebuffer's attachments. Clear
// colors apply to the first subpass only; nil entries load instead.
func (r *Recorder) BeginPass(desc *aspen.PassDescriptor) error {
	if err := r.requireRecording("begin pass"); err != nil {
		return err
	}
	if desc == nil {
		return errors.New("native: begin pass: nil descriptor")
	}
	if desc.Framebuffer == nil {
		return fmt.Errorf("native: begin pass %q: nil framebuffer", desc.Label)
	}
	fb, ok := desc.Framebuffer.(*framebuffer)
	if !ok {
		return fmt.Errorf("native: begin pass %q: %w", desc.Label, ErrForeignResource)
	}

	views := make([]hal.TextureView, fb.ColorCount())
	for i := range views {
		t, ok := fb.Color(i).(*texture)
		if !ok {
			return fmt.Errorf("native: begin pass %q: color %d: %w", desc.Label, i, ErrForeignResource)
		}
		views[i] = t.view
	}
	var depthView hal.TextureView
	if ds := fb.DepthStencil(); ds != nil {
		t, ok := ds.(*texture)
		if !ok {
			return fmt.Errorf("native: begin pass %q: depth stencil: %w", desc.Label, ErrForeignResource)
		}
		depthView = t.view
	}

	r.passLabel = desc.Label
	r.passViews = views
	r.passDepth = depthView
	r.subpass = 0
	r.pass = r.encoder.BeginRenderPass(r.passDescriptor(desc.ClearColors, desc.DepthStencil))
	r.state = statePass

	if a := desc.Area; a != nil {
		r.pass.SetScissorRect(a.X, a.Y, a.Width, a.Height)
	}
	return nil
}

// passDescriptor builds the hal pass descriptor for the current subpass.
// Attachments carry the clear ops on the first subpass and load afterwards.
func (r *Recorder) passDescriptor(clears []*gputypes.Color, ds *aspen.DepthStencilClear) *hal.RenderPassDescriptor {
	label := r.passLabel
	if r.subpass > 0 {
		label = fmt.Sprintf("%s#%d", r.passLabel, r.subpass)
	}

	colors := make([]hal.RenderPassColorAttachment, len(r.passViews))
	for i, view := range r.passViews {
		att := hal.RenderPassColorAttachment{
			View:    view,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}
		if r.subpass == 0 && i < len(clears) && clears[i] != nil {
			att.LoadOp = gputypes.LoadOpClear
			att.ClearValue = *clears[i]
		}
		colors[i] = att
	}

	out := &hal.RenderPassDescriptor{
		Label:            label,
		ColorAttachments: colors,
	}
	if r.passDepth != nil {
		att := &hal.RenderPassDepthStencilAttachment{
			View:           r.passDepth,
			DepthLoadOp:    gputypes.LoadOpLoad,
			DepthStoreOp:   gputypes.StoreOpStore,
			StencilLoadOp:  gputypes.LoadOpLoad,
			StencilStoreOp: gputypes.StoreOpStore,
		}
		if r.subpass == 0 && ds != nil {
			att.DepthLoadOp = gputypes.LoadOpClear
			att.DepthClearValue = ds.Depth
			att.StencilLoadOp = gputypes.LoadOpClear
			att.StencilClearValue = ds.Stencil
		}
		out.DepthStencilAttachment = att
	}
	return out
}

// NextSubpass ends the current hal pass and reopens one over the same
// attachments with load ops, keeping their contents.
func (r *Recorder) NextSubpass() error {
	if err := r.requirePass("next subpass"); err != nil {
		return err
	}
	r.pass.End()
	r.subpass++
	r.pass = r.encoder.BeginRenderPass(r.passDescriptor(nil, nil))
	return nil
}

// EndPass closes the active render pass.
func (r *Recorder) EndPass() error {
	if err := r.requirePass("end pass"); err != nil {
		return err
	}
	r.pass.End()
	r.pass = nil
	r.passViews = nil
	r.passDepth = nil
	r.subpass = 0
	r.state = stateRecording
	return nil
}

// SetViewport sets the viewport for subsequent draws.
func (r *Recorder) SetViewport(x, y, width, height, minDepth, maxDepth float32) error {
	if err := r.requirePass("set viewport"); err != nil {
		return err
	}
	r.pass.SetViewport(x, y, width, height, minDepth, maxDepth)
	return nil
}

// SetScissor sets the scissor rectangle for subsequent draws.
func (r *Recorder) SetScissor(x, y, width, height uint32) error {
	if err := r.requirePass("set scissor"); err != nil {
		return err
	}
	r.pass.SetScissorRect(x, y, width, height)
	return nil
}

// SetPipeline binds a render pipeline built by this backend.
func (r *Recorder) SetPipeline(p aspen.RenderPipeline) error {
	if err := r.requirePass("set pipeline"); err != nil {
		return err
	}
	rp, ok := p.(*renderPipeline)
	if !ok {
		return fmt.Errorf("native: set pipeline: %w", ErrForeignResource)
	}
	r.pass.SetPipeline(rp.raw)
	return nil
}

// SetBinding binds a bind group at the given group index.
func (r *Recorder) SetBinding(index uint32, b aspen.Binding, dynamicOffsets []uint32) error {
	if err := r.requirePass("set binding"); err != nil {
		return err
	}
	bb, ok := b.(*binding)
	if !ok {
		return fmt.Errorf("native: set binding: %w", ErrForeignResource)
	}
	r.pass.SetBindGroup(index, bb.raw, dynamicOffsets)
	return nil
}

// SetVertexBuffer binds a vertex buffer to the given slot.
func (r *Recorder) SetVertexBuffer(slot uint32, buf aspen.Buffer, offset uint64) error {
	if err := r.requirePass("set vertex buffer"); err != nil {
		return err
	}
	v, ok := buf.(*buffer)
	if !ok {
		return fmt.Errorf("native: set vertex buffer: %w", ErrForeignResource)
	}
	r.pass.SetVertexBuffer(slot, v.raw, offset)
	return nil
}

// SetIndexBuffer binds the index buffer for DrawIndexed.
func (r *Recorder) SetIndexBuffer(buf aspen.Buffer, format gputypes.IndexFormat, offset uint64) error {
	if err := r.requirePass("set index buffer"); err != nil {
		return err
	}
	v, ok := buf.(*buffer)
	if !ok {
		return fmt.Errorf("native: set index buffer: %w", ErrForeignResource)
	}
	r.pass.SetIndexBuffer(v.raw, format, offset)
	return nil
}

// Draw records a non-indexed draw.
func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	if err := r.requirePass("draw"); err != nil {
		return err
	}
	r.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	return nil
}

// DrawIndexed records an indexed draw.
func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error {
	if err := r.requirePass("draw indexed"); err != nil {
		return err
	}
	r.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
	return nil
}

// CopyTarget copies src into dst through a staging buffer. Both targets must
// share extent and format, and no pass may be active. Targets are assumed to
// sit in render attachment state between passes.
func (r *Recorder) CopyTarget(src, dst aspen.Target) error {
	if err := r.requireRecording("copy target"); err != nil {
		return err
	}
	srcTex, ok := src.(*texture)
	if !ok {
		return fmt.Errorf("native: copy target: source: %w", ErrForeignResource)
	}
	dstTex, ok := dst.(*texture)
	if !ok {
		return fmt.Errorf("native: copy target: destination: %w", ErrForeignResource)
	}
	if srcTex.extent != dstTex.extent || srcTex.format != dstTex.format {
		return fmt.Errorf("native: copy target: %w", ErrCopyMismatch)
	}
	texel, ok := formatTexelSize(srcTex.format)
	if !ok {
		return fmt.Errorf("native: copy target: unsupported format %v", srcTex.format)
	}

	w, h := srcTex.extent.Width, srcTex.extent.Height
	rowBytes := alignedRowBytes(w, texel)
	staging, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: r.label + "_copy_staging",
		Size:  uint64(rowBytes) * uint64(h),
		Usage: gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: copy target: staging buffer: %w", err)
	}
	r.scratch = append(r.scratch, staging)

	layout := hal.ImageDataLayout{
		Offset:       0,
		BytesPerRow:  rowBytes,
		RowsPerImage: h,
	}
	size := hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}

	r.encoder.TransitionTextures([]hal.TextureBarrier{
		{
			Texture: srcTex.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		},
		{
			Texture: dstTex.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopyDst,
			},
		},
	})

	r.encoder.CopyTextureToBuffer(srcTex.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: layout,
		TextureBase:  hal.ImageCopyTexture{Texture: srcTex.tex, MipLevel: 0},
		Size:         size,
	}})
	r.encoder.CopyBufferToTexture(staging, dstTex.tex, []hal.BufferTextureCopy{{
		BufferLayout: layout,
		TextureBase:  hal.ImageCopyTexture{Texture: dstTex.tex, MipLevel: 0},
		Size:         size,
	}})

	r.encoder.TransitionTextures([]hal.TextureBarrier{
		{
			Texture: srcTex.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopySrc,
				NewUsage: gputypes.TextureUsageRenderAttachment,
			},
		},
		{
			Texture: dstTex.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopyDst,
				NewUsage: gputypes.TextureUsageRenderAttachment,
			},
		},
	})
	return nil
}

// Finish closes the recorder and returns the encoded bundle. The recorder
// cannot be used afterwards.
func (r *Recorder) Finish() (aspen.CommandBundle, error) {
	switch r.state {
	case statePass:
		return nil, fmt.Errorf("native: finish %q: %w", r.label, aspen.ErrPassActive)
	case stateFinished, stateDiscarded:
		return nil, fmt.Errorf("native: finish %q: %w", r.label, aspen.ErrRecorderFinished)
	}

	cmd, err := r.encoder.EndEncoding()
	if err != nil {
		r.state = stateDiscarded
		r.releaseScratch()
		return nil, fmt.Errorf("native: finish %q: %w", r.label, err)
	}
	bundle := &Bundle{
		device:  r.device,
		cmd:     cmd,
		label:   r.label,
		scratch: r.scratch,
	}
	r.scratch = nil
	r.state = stateFinished
	return bundle, nil
}

// Discard abandons the recording. Calling it after Finish is a no-op; the
// bundle owns the encoded commands by then.
func (r *Recorder) Discard() {
	switch r.state {
	case stateFinished, stateDiscarded:
		return
	case statePass:
		r.pass.End()
		r.pass = nil
		r.passViews = nil
		r.passDepth = nil
	}
	r.encoder.DiscardEncoding()
	r.releaseScratch()
	r.state = stateDiscarded
}

func (r *Recorder) releaseScratch() {
	for _, b := range r.scratch {
		r.device.DestroyBuffer(b)
	}
	r.scratch = nil
}

// Bundle is a finished command buffer with the staging buffers it depends
// on. The submitter consumes it exactly once.
type Bundle struct {
	device   hal.Device
	cmd      hal.CommandBuffer
	label    string
	scratch  []hal.Buffer
	consumed bool
}

var _ aspen.CommandBundle = (*Bundle)(nil)

// Label returns the recorder label the bundle was encoded under.
func (b *Bundle) Label() string { return b.label }
