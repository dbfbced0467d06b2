//go:build !nogpu

package native

import (
	"errors"
	"fmt"
	"sync"

	aspen "github.com/ZakGoedegebuur/aspen-renderer"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Allocation errors.
var (
	// ErrNoAttachments is returned when a framebuffer is requested with no
	// color or depth attachments.
	ErrNoAttachments = errors.New("native: framebuffer has no attachments")

	// ErrExtentMismatch is returned when framebuffer attachments disagree
	// on their size.
	ErrExtentMismatch = errors.New("native: attachment extents differ")

	// ErrForeignResource is returned when a resource created by another
	// backend is passed to this one.
	ErrForeignResource = errors.New("native: resource was not created by this backend")
)

// Allocator creates buffers, targets, framebuffers, and bindings on a hal
// device. It serves as both the memory allocator and the binding allocator
// of a GraphicsContext and is safe for concurrent use.
type Allocator struct {
	mu     sync.Mutex
	device hal.Device
	queue  hal.Queue
}

var (
	_ aspen.MemoryAllocator  = (*Allocator)(nil)
	_ aspen.BindingAllocator = (*Allocator)(nil)
)

// NewAllocator returns an allocator backed by the given device. The queue is
// used for initial-contents uploads.
func NewAllocator(device hal.Device, queue hal.Queue) *Allocator {
	return &Allocator{device: device, queue: queue}
}

// CreateBuffer creates a GPU buffer. When Contents is set it determines the
// buffer size and is uploaded before the call returns.
func (a *Allocator) CreateBuffer(desc *aspen.BufferDescriptor) (aspen.Buffer, error) {
	size := desc.Size
	if len(desc.Contents) > 0 {
		size = uint64(len(desc.Contents))
	}
	if size == 0 {
		return nil, fmt.Errorf("native: create buffer %q: zero size", desc.Label)
	}

	usage := desc.Usage
	if len(desc.Contents) > 0 {
		// The initial upload goes through the transfer queue.
		usage |= gputypes.BufferUsageCopyDst
	}

	a.mu.Lock()
	raw, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: usage,
	})
	a.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("native: create buffer %q: %w", desc.Label, err)
	}

	if len(desc.Contents) > 0 {
		a.queue.WriteBuffer(raw, 0, desc.Contents)
	}
	return &buffer{device: a.device, raw: raw, label: desc.Label, size: size}, nil
}

// CreateTarget creates a 2D texture with a full view over it.
func (a *Allocator) CreateTarget(desc *aspen.TargetDescriptor) (aspen.Target, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("native: create target %q: zero extent", desc.Label)
	}
	samples := desc.SampleCount
	if samples == 0 {
		samples = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	tex, err := a.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("native: create target %q: %w", desc.Label, err)
	}

	view, err := a.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: desc.Label + "_view",
	})
	if err != nil {
		a.device.DestroyTexture(tex)
		return nil, fmt.Errorf("native: create target view %q: %w", desc.Label, err)
	}

	return &texture{
		device: a.device,
		tex:    tex,
		view:   view,
		extent: aspen.Extent{Width: desc.Width, Height: desc.Height},
		format: desc.Format,
	}, nil
}

// CreateFramebuffer groups existing targets into an attachment set. The
// framebuffer does not take ownership; destroying it leaves the targets
// alive.
func (a *Allocator) CreateFramebuffer(desc *aspen.FramebufferDescriptor) (aspen.Framebuffer, error) {
	if len(desc.Colors) == 0 && desc.DepthStencil == nil {
		return nil, fmt.Errorf("native: framebuffer %q: %w", desc.Label, ErrNoAttachments)
	}

	var extent aspen.Extent
	for i, c := range desc.Colors {
		if c == nil {
			return nil, fmt.Errorf("native: framebuffer %q: color attachment %d is nil", desc.Label, i)
		}
		if extent.IsZero() {
			extent = c.Extent()
		} else if c.Extent() != extent {
			return nil, fmt.Errorf("native: framebuffer %q: %w", desc.Label, ErrExtentMismatch)
		}
	}
	if ds := desc.DepthStencil; ds != nil {
		if extent.IsZero() {
			extent = ds.Extent()
		} else if ds.Extent() != extent {
			return nil, fmt.Errorf("native: framebuffer %q: %w", desc.Label, ErrExtentMismatch)
		}
	}

	return &framebuffer{
		label:  desc.Label,
		colors: append([]aspen.Target(nil), desc.Colors...),
		depth:  desc.DepthStencil,
		extent: extent,
	}, nil
}

// CreateBindingLayout creates a bind group layout from gputypes entries.
func (a *Allocator) CreateBindingLayout(desc *aspen.BindingLayoutDescriptor) (aspen.BindingLayout, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	raw, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: desc.Entries,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create binding layout %q: %w", desc.Label, err)
	}
	return &bindingLayout{device: a.device, raw: raw, label: desc.Label}, nil
}

// CreateBinding creates a bind group against a layout previously created by
// this backend.
func (a *Allocator) CreateBinding(desc *aspen.BindingDescriptor) (aspen.Binding, error) {
	layout, ok := desc.Layout.(*bindingLayout)
	if !ok {
		return nil, fmt.Errorf("native: create binding %q: %w", desc.Label, ErrForeignResource)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	raw, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.raw,
		Entries: desc.Entries,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create binding %q: %w", desc.Label, err)
	}
	return &binding{device: a.device, raw: raw, label: desc.Label}, nil
}

// BufferBindingEntry builds a bind group entry referencing a native buffer.
// The buffer must have been created by this backend's allocator.
func BufferBindingEntry(index uint32, buf aspen.Buffer, offset, size uint64) gputypes.BindGroupEntry {
	b, ok := buf.(*buffer)
	if !ok {
		panic("native: buffer binding entry requires a buffer from this backend")
	}
	return gputypes.BindGroupEntry{
		Binding: index,
		Resource: gputypes.BufferBinding{
			Buffer: b.raw.NativeHandle(),
			Offset: offset,
			Size:   size,
		},
	}
}

// textureUsage maps target usage flags to their gputypes texture equivalents.
func textureUsage(u aspen.TargetUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u&aspen.TargetUsageCopySrc != 0 {
		out |= gputypes.TextureUsageCopySrc
	}
	if u&aspen.TargetUsageCopyDst != 0 {
		out |= gputypes.TextureUsageCopyDst
	}
	if u&aspen.TargetUsageTextureBinding != 0 {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u&aspen.TargetUsageStorageBinding != 0 {
		out |= gputypes.TextureUsageStorageBinding
	}
	if u&aspen.TargetUsageRenderAttachment != 0 {
		out |= gputypes.TextureUsageRenderAttachment
	}
	return out
}

type buffer struct {
	device hal.Device
	raw    hal.Buffer
	label  string
	size   uint64
}

var _ aspen.Buffer = (*buffer)(nil)

func (b *buffer) Label() string { return b.label }

func (b *buffer) Size() uint64 { return b.size }

// NativeHandle returns the underlying hal.Buffer.
func (b *buffer) NativeHandle() any { return b.raw }

func (b *buffer) Destroy() {
	if b.raw == nil {
		return
	}
	b.device.DestroyBuffer(b.raw)
	b.raw = nil
}

type texture struct {
	device hal.Device
	tex    hal.Texture
	view   hal.TextureView
	extent aspen.Extent
	format gputypes.TextureFormat
}

var _ aspen.Target = (*texture)(nil)

func (t *texture) Extent() aspen.Extent { return t.extent }

func (t *texture) Format() gputypes.TextureFormat { return t.format }

// NativeView returns the underlying hal.TextureView.
func (t *texture) NativeView() any { return t.view }

func (t *texture) Destroy() {
	if t.view != nil {
		t.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		t.device.DestroyTexture(t.tex)
		t.tex = nil
	}
}

type framebuffer struct {
	label  string
	colors []aspen.Target
	depth  aspen.Target
	extent aspen.Extent
}

var _ aspen.Framebuffer = (*framebuffer)(nil)

func (f *framebuffer) Extent() aspen.Extent { return f.extent }

func (f *framebuffer) ColorCount() int { return len(f.colors) }

func (f *framebuffer) Color(i int) aspen.Target { return f.colors[i] }

func (f *framebuffer) DepthStencil() aspen.Target { return f.depth }

// Destroy drops the attachment references. The targets themselves stay
// alive; whoever created them destroys them.
func (f *framebuffer) Destroy() {
	f.colors = nil
	f.depth = nil
}

type bindingLayout struct {
	device hal.Device
	raw    hal.BindGroupLayout
	label  string
}

var _ aspen.BindingLayout = (*bindingLayout)(nil)

// NativeHandle returns the underlying hal.BindGroupLayout.
func (l *bindingLayout) NativeHandle() any { return l.raw }

func (l *bindingLayout) Destroy() {
	if l.raw == nil {
		return
	}
	l.device.DestroyBindGroupLayout(l.raw)
	l.raw = nil
}

type binding struct {
	device hal.Device
	raw    hal.BindGroup
	label  string
}

var _ aspen.Binding = (*binding)(nil)

func (b *binding) Destroy() {
	if b.raw == nil {
		return
	}
	b.device.DestroyBindGroup(b.raw)
	b.raw = nil
}
