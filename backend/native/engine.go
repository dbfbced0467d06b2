//go:build !nogpu

// Package native implements the aspen device boundary on gogpu/wgpu's HAL.
//
// The package has two entry points. New opens its own GPU instance, picks an
// adapter, and owns the resulting device for its lifetime:
//
//	eng, err := native.New()
//	if err != nil {
//	    // no usable GPU
//	}
//	defer eng.Close()
//
//	gc := native.NewGraphicsContext(eng)
//
// FromDevice wraps a device and queue owned by the host application instead,
// for embedding aspen into an existing gogpu setup. The engine then never
// destroys the shared device.
//
// Either way the Engine hands out the allocators the frame pipeline is wired
// with: Memory, Recorders, Submitter, and Reader.
package native

import (
	"errors"
	"fmt"

	aspen "github.com/ZakGoedegebuur/aspen-renderer"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Engine bootstrap errors.
var (
	// ErrBackendUnavailable is returned by New when the requested graphics
	// backend is not compiled in or cannot load.
	ErrBackendUnavailable = errors.New("native: backend unavailable")

	// ErrNoAdapter is returned by New when adapter enumeration finds no GPU.
	ErrNoAdapter = errors.New("native: no GPU adapters found")
)

// Engine owns a GPU device and hands out the aspen allocators backed by it.
//
// An Engine created with New owns its instance and device and releases them
// in Close. An Engine created with FromDevice borrows both from the host and
// releases neither.
//
// Engine implements aspen.DeviceHandle so it can be passed directly to
// aspen.NewGraphicsContext.
type Engine struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	memory *Allocator
	pool   *CommandPool
	submit *Submitter
	reader *Reader

	caps   aspen.DeviceCapabilities
	format gputypes.TextureFormat

	external bool
}

// Ensure Engine can stand in for the device handle.
var _ aspen.DeviceHandle = (*Engine)(nil)

// New opens the requested graphics backend, picks an adapter, and creates a
// device and queue. Discrete and integrated GPUs are preferred over software
// adapters; the first enumerated adapter is the fallback.
func New(opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	backend, ok := hal.GetBackend(o.backend)
	if !ok {
		return nil, fmt.Errorf("native: %s: %w", backendName(o.backend), ErrBackendUnavailable)
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := pickAdapter(adapters)

	lim := gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), lim)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open device: %w", err)
	}

	e := &Engine{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		caps:     buildCapabilities(selected.Info.Name, backendName(o.backend), lim),
		format:   o.format,
	}
	e.initSubsystems()

	aspen.Logger().Info("gpu engine initialized",
		"adapter", selected.Info.Name,
		"backend", backendName(o.backend))
	return e, nil
}

// FromDevice wraps a device and queue owned by the host application. Close
// on the returned engine releases the engine's own bookkeeping only, never
// the shared device.
func FromDevice(device hal.Device, queue hal.Queue, opts ...Option) *Engine {
	if device == nil || queue == nil {
		panic("native: FromDevice requires a device and a queue")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		device:   device,
		queue:    queue,
		caps:     buildCapabilities("", "", gputypes.DefaultLimits()),
		format:   o.format,
		external: true,
	}
	e.initSubsystems()
	return e
}

// pickAdapter prefers discrete GPUs, then integrated ones, then whatever
// the backend enumerated first.
func pickAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
			return &adapters[i]
		}
	}
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}

// initSubsystems builds the allocator set over the engine's device and queue.
func (e *Engine) initSubsystems() {
	e.memory = NewAllocator(e.device, e.queue)
	e.pool = NewCommandPool(e.device)
	e.submit = NewSubmitter(e.device, e.queue)
	e.reader = NewReader(e.device, e.queue)
}

// buildCapabilities fills the aspen capability report from the limits the
// device was opened with.
func buildCapabilities(deviceName, backendName string, lim gputypes.Limits) aspen.DeviceCapabilities {
	return aspen.DeviceCapabilities{
		MaxTargetSize: lim.MaxTextureDimension2D,
		MaxBindGroups: lim.MaxBindGroups,
		DeviceName:    deviceName,
		BackendName:   backendName,
	}
}

// backendName returns a readable name for a backend selector.
func backendName(b gputypes.Backend) string {
	if b == gputypes.BackendVulkan {
		return "Vulkan"
	}
	return fmt.Sprintf("backend(%v)", b)
}

// Memory returns the buffer, target, and framebuffer allocator. The same
// value serves as the binding allocator.
func (e *Engine) Memory() *Allocator {
	return e.memory
}

// Recorders returns the per-frame command recorder source.
func (e *Engine) Recorders() *CommandPool {
	return e.pool
}

// Submitter returns the queue submitter.
func (e *Engine) Submitter() *Submitter {
	return e.submit
}

// Reader returns the target readback reader.
func (e *Engine) Reader() *Reader {
	return e.reader
}

// Capabilities returns the capability report for the opened device.
func (e *Engine) Capabilities() aspen.DeviceCapabilities {
	return e.caps
}

// Device returns the device in gpucontext form.
func (e *Engine) Device() gpucontext.Device {
	return contextDevice{dev: e.device}
}

// Queue returns the device queue in gpucontext form.
func (e *Engine) Queue() gpucontext.Queue {
	return e.queue
}

// Adapter returns nil; the hal path exposes no separate adapter object once
// the device is open.
func (e *Engine) Adapter() gpucontext.Adapter {
	return nil
}

// SurfaceFormat returns the texture format the engine reports to hosts.
func (e *Engine) SurfaceFormat() gputypes.TextureFormat {
	return e.format
}

// HalDevice returns the underlying hal.Device as an untyped value, following
// the provider convention used for gogpu device sharing.
func (e *Engine) HalDevice() any {
	return e.device
}

// HalQueue returns the underlying hal.Queue as an untyped value.
func (e *Engine) HalQueue() any {
	return e.queue
}

// Close releases the device and instance unless they are host-owned. Safe to
// call more than once.
func (e *Engine) Close() {
	if !e.external {
		if e.device != nil {
			e.device.Destroy()
		}
		if e.instance != nil {
			e.instance.Destroy()
		}
	}
	e.device = nil
	e.instance = nil
	e.queue = nil
}

// NewGraphicsContext assembles a GraphicsContext wired to the engine's
// allocators. Extra options are applied after the engine's own, so callers
// can still override the frames-in-flight count or swap out an allocator.
func NewGraphicsContext(e *Engine, opts ...aspen.ContextOption) *aspen.GraphicsContext {
	base := []aspen.ContextOption{
		aspen.WithMemoryAllocator(e.Memory()),
		aspen.WithBindingAllocator(e.Memory()),
		aspen.WithRecorderAllocator(e.Recorders()),
		aspen.WithSubmitter(e.Submitter()),
		aspen.WithTargetReader(e.Reader()),
		aspen.WithCapabilities(e.Capabilities()),
	}
	return aspen.NewGraphicsContext(e, append(base, opts...)...)
}

// contextDevice adapts hal.Device to the gpucontext.Device shape. Polling is
// a no-op in this backend; all synchronization goes through fences.
type contextDevice struct {
	dev hal.Device
}

func (contextDevice) Poll(wait bool) {}

func (d contextDevice) Destroy() {
	if d.dev != nil {
		d.dev.Destroy()
	}
}
