package aspen

import (
	"fmt"
	"image"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// DeviceHandle provides GPU device access from the host application.
//
// This interface is the primary integration point between aspen and GPU
// frameworks like gogpu. The host application implements DeviceHandle and
// passes it to NewGraphicsContext, allowing aspen to drive frames on the
// shared GPU device.
//
// Key principle: aspen RECEIVES the device from the host, it does NOT create
// one. This enables:
//   - Shared GPU resources between aspen and the host application
//   - Zero device creation overhead in aspen
//   - Consistent resource management across the stack
//
// Example implementation over a native backend:
//
//	type engineHandle struct {
//	    eng *native.Engine
//	}
//
//	func (h *engineHandle) Device() gpucontext.Device {
//	    return h.eng.Device()
//	}
//
//	func (h *engineHandle) Queue() gpucontext.Queue {
//	    return h.eng.Queue()
//	}
//
// DeviceHandle is an alias for gpucontext.DeviceProvider, providing an
// aspen-specific name for the interface while maintaining full compatibility
// with the gpucontext ecosystem.
type DeviceHandle = gpucontext.DeviceProvider

// Extent is a render-target size in pixels.
type Extent struct {
	// Width is the horizontal size in pixels.
	Width uint32

	// Height is the vertical size in pixels.
	Height uint32
}

// IsZero reports whether either dimension is zero. A zero extent cannot be
// rendered to; the present system halts the frame when the window collapses
// to zero size.
func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

// String returns the extent as "WxH".
func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// TargetDescriptor describes parameters for creating a render target.
// This mirrors the WebGPU GPUTextureDescriptor specification.
type TargetDescriptor struct {
	// Label is an optional debug label for the target.
	Label string

	// Width is the target width in pixels.
	Width uint32

	// Height is the target height in pixels.
	Height uint32

	// SampleCount is the number of samples for multisampling.
	// Use 1 for no multisampling.
	SampleCount uint32

	// Format is the target pixel format.
	Format gputypes.TextureFormat

	// Usage specifies how the target will be used.
	Usage TargetUsage
}

// TargetUsage specifies how a render target can be used.
// These flags can be combined with bitwise OR.
type TargetUsage uint32

const (
	// TargetUsageCopySrc allows the target to be used as a copy source.
	TargetUsageCopySrc TargetUsage = 1 << iota

	// TargetUsageCopyDst allows the target to be used as a copy destination.
	TargetUsageCopyDst

	// TargetUsageTextureBinding allows the target to be sampled in a shader.
	TargetUsageTextureBinding

	// TargetUsageStorageBinding allows the target to be used in a storage binding.
	TargetUsageStorageBinding

	// TargetUsageRenderAttachment allows the target to be rendered to.
	TargetUsageRenderAttachment
)

// DefaultTargetDescriptor returns a TargetDescriptor with sensible defaults.
// Only Width, Height, and Format need to be set.
func DefaultTargetDescriptor(width, height uint32, format gputypes.TextureFormat) TargetDescriptor {
	return TargetDescriptor{
		Width:       width,
		Height:      height,
		SampleCount: 1,
		Format:      format,
		Usage:       TargetUsageTextureBinding | TargetUsageRenderAttachment,
	}
}

// IsDepthFormat reports whether a format carries a depth aspect. The
// canvas uses this to route template attachments to the depth-stencil slot
// of its framebuffers.
func IsDepthFormat(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatDepth24Plus,
		gputypes.TextureFormatDepth24PlusStencil8,
		gputypes.TextureFormatDepth32Float:
		return true
	default:
		return false
	}
}

// HasStencilAspect reports whether a format carries a stencil aspect.
func HasStencilAspect(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatDepth24PlusStencil8
}

// Target represents an offscreen render target.
// This interface wraps the underlying GPU texture and its render view.
type Target interface {
	// Extent returns the target size in pixels.
	Extent() Extent

	// Format returns the target pixel format.
	Format() gputypes.TextureFormat

	// NativeView returns the underlying GPU texture view handle, for use
	// in binding entries and backend descriptors.
	NativeView() any

	// Destroy releases GPU resources associated with this target.
	Destroy()
}

// FramebufferDescriptor describes parameters for creating a framebuffer.
//
// All attachments must share the same extent. The depth-stencil attachment
// is optional.
type FramebufferDescriptor struct {
	// Label is an optional debug label for the framebuffer.
	Label string

	// Colors are the color attachments, in shader output order.
	Colors []Target

	// DepthStencil is the optional depth-stencil attachment.
	DepthStencil Target
}

// Framebuffer groups render targets into a bindable attachment set.
//
// A framebuffer references targets but does not own them. Destroying a
// framebuffer releases only the grouping, never the attached targets.
type Framebuffer interface {
	// Extent returns the common extent of all attachments.
	Extent() Extent

	// ColorCount returns the number of color attachments.
	ColorCount() int

	// Color returns the color attachment at the given index.
	Color(index int) Target

	// DepthStencil returns the depth-stencil attachment, or nil.
	DepthStencil() Target

	// Destroy releases the framebuffer grouping.
	Destroy()
}

// BufferDescriptor describes a GPU buffer to create.
type BufferDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the buffer size in bytes. Ignored when Contents is set.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage gputypes.BufferUsage

	// Contents, when non-nil, is uploaded to the buffer at creation and
	// determines its size.
	Contents []byte
}

// Buffer represents a GPU buffer resource.
type Buffer interface {
	// Label returns the buffer's debug label.
	Label() string

	// Size returns the buffer size in bytes.
	Size() uint64

	// NativeHandle returns the underlying GPU buffer handle, for use in
	// binding entries.
	NativeHandle() any

	// Destroy releases GPU resources associated with this buffer.
	Destroy()
}

// BindingLayoutDescriptor describes the shape of a resource binding set.
type BindingLayoutDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Entries describe each binding slot.
	Entries []gputypes.BindGroupLayoutEntry
}

// BindingLayout describes the resource interface of a pipeline stage.
type BindingLayout interface {
	// NativeHandle returns the underlying GPU layout handle.
	NativeHandle() any

	// Destroy releases resources associated with this layout.
	Destroy()
}

// BindingDescriptor describes a concrete resource binding set.
type BindingDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Layout is the layout this binding conforms to.
	Layout BindingLayout

	// Entries bind concrete resources to the layout's slots.
	Entries []gputypes.BindGroupEntry
}

// Binding is a concrete set of shader resources bound to a layout.
type Binding interface {
	// Destroy releases resources associated with this binding.
	Destroy()
}

// RenderPipeline is a compiled GPU render pipeline.
//
// Pipelines are created by backends (see backend/native) and consumed by
// CommandRecorder.SetPipeline.
type RenderPipeline interface {
	// Destroy releases resources associated with this pipeline.
	Destroy()
}

// CommandBundle is a finished, submittable list of GPU commands.
//
// Bundles are produced by CommandRecorder.Finish and consumed exactly once
// by QueueSubmitter.Submit.
type CommandBundle interface {
	// Label returns the bundle's debug label.
	Label() string
}

// Fence tracks completion of submitted GPU work.
type Fence interface {
	// Wait blocks until the fence signals or the timeout expires.
	// It returns true if the fence signaled within the timeout.
	Wait(timeout time.Duration) (bool, error)

	// Destroy releases resources associated with this fence.
	Destroy()
}

// MemoryAllocator creates GPU memory resources: buffers, render targets,
// and framebuffers.
//
// Implementations must be safe for concurrent use; the frame pipeline
// allocates from the render thread while rebuilds may run on the caller's
// thread.
type MemoryAllocator interface {
	// CreateBuffer creates a GPU buffer, uploading desc.Contents if set.
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)

	// CreateTarget creates an offscreen render target.
	CreateTarget(desc *TargetDescriptor) (Target, error)

	// CreateFramebuffer groups targets into an attachment set.
	CreateFramebuffer(desc *FramebufferDescriptor) (Framebuffer, error)
}

// BindingAllocator creates shader resource bindings.
type BindingAllocator interface {
	// CreateBindingLayout creates a binding layout.
	CreateBindingLayout(desc *BindingLayoutDescriptor) (BindingLayout, error)

	// CreateBinding creates a concrete binding conforming to a layout.
	CreateBinding(desc *BindingDescriptor) (Binding, error)
}

// RecorderAllocator creates command recorders.
//
// A fresh recorder is handed out for every frame; recorders are not reused
// across frames.
type RecorderAllocator interface {
	// NewRecorder returns a recorder ready to accept commands.
	NewRecorder(label string) (CommandRecorder, error)
}

// QueueSubmitter submits finished command bundles to the device queue.
type QueueSubmitter interface {
	// Submit enqueues the bundles for execution in order. The returned
	// fence signals when all bundles have completed on the GPU.
	//
	// Each bundle may be submitted at most once.
	Submit(bundles []CommandBundle) (Fence, error)
}

// TargetReader reads rendered pixels back to the CPU.
//
// Readback is optional; backends that cannot copy targets to host memory
// simply do not implement it. Offscreen capture requires it.
type TargetReader interface {
	// ReadTarget blocks until the target's contents are copied into dst.
	// dst must be at least the target's extent; pixels are converted to
	// RGBA order regardless of the target format.
	ReadTarget(t Target, dst *image.RGBA) error
}

// DeviceCapabilities describes the capabilities of a GPU device.
// Used for diagnostics and to size resources within device limits.
type DeviceCapabilities struct {
	// MaxTargetSize is the maximum render-target dimension supported.
	MaxTargetSize uint32

	// MaxBindGroups is the maximum number of bind groups.
	MaxBindGroups uint32

	// VendorName is the GPU vendor name.
	VendorName string

	// DeviceName is the GPU device name.
	DeviceName string

	// BackendName is the graphics API in use (e.g. "Vulkan", "Metal").
	BackendName string

	// DriverInfo is the driver version string, if available.
	DriverInfo string
}

// NullDeviceHandle is a DeviceHandle that provides nil implementations.
// Used in tests and dry runs where no GPU is available.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// Ensure NullDeviceHandle implements DeviceHandle.
var _ DeviceHandle = NullDeviceHandle{}
