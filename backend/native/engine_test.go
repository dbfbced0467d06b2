//go:build !nogpu

package native

import (
	"testing"

	aspen "github.com/ZakGoedegebuur/aspen-renderer"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func TestNewEngine(t *testing.T) {
	eng, err := New()
	if err != nil {
		t.Skipf("no GPU available: %v", err)
	}
	defer eng.Close()

	caps := eng.Capabilities()
	if caps.MaxTargetSize == 0 {
		t.Error("expected non-zero max target size")
	}
	if caps.BackendName == "" {
		t.Error("expected backend name")
	}
}

func TestFromDeviceSubsystems(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	eng := FromDevice(device, queue)
	if eng.Memory() == nil {
		t.Error("expected non-nil memory allocator")
	}
	if eng.Recorders() == nil {
		t.Error("expected non-nil recorder pool")
	}
	if eng.Submitter() == nil {
		t.Error("expected non-nil submitter")
	}
	if eng.Reader() == nil {
		t.Error("expected non-nil reader")
	}
	if caps := eng.Capabilities(); caps.MaxTargetSize == 0 {
		t.Error("expected non-zero max target size")
	}
	if got := eng.SurfaceFormat(); got != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("default surface format = %v, want BGRA8Unorm", got)
	}
}

func TestFromDeviceSurfaceFormatOption(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	eng := FromDevice(device, queue, WithSurfaceFormat(gputypes.TextureFormatRGBA8Unorm))
	if got := eng.SurfaceFormat(); got != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("surface format = %v, want RGBA8Unorm", got)
	}
}

func TestFromDeviceNilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil device")
		}
	}()
	FromDevice(nil, nil)
}

func TestEngineCloseExternal(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	eng := FromDevice(device, queue)
	eng.Close()
	eng.Close()

	// The shared device must survive an external engine's Close.
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "probe",
		Size:  16,
		Usage: gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		t.Fatalf("device unusable after Close: %v", err)
	}
	device.DestroyBuffer(buf)
}

func TestEngineDeviceHandle(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	eng := FromDevice(device, queue)

	d := eng.Device()
	if d == nil {
		t.Fatal("expected non-nil gpucontext device")
	}
	d.Poll(false)
	if eng.Adapter() != nil {
		t.Error("expected nil adapter")
	}
	if _, ok := eng.HalDevice().(hal.Device); !ok {
		t.Error("HalDevice did not return a hal.Device")
	}
	if _, ok := eng.HalQueue().(hal.Queue); !ok {
		t.Error("HalQueue did not return a hal.Queue")
	}
}

func TestNewGraphicsContextWiring(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	eng := FromDevice(device, queue)
	gc := NewGraphicsContext(eng)

	if gc.Device() != aspen.DeviceHandle(eng) {
		t.Error("device handle not wired")
	}
	if gc.Memory() != aspen.MemoryAllocator(eng.Memory()) {
		t.Error("memory allocator not wired")
	}
	if gc.Bindings() != aspen.BindingAllocator(eng.Memory()) {
		t.Error("binding allocator not wired")
	}
	if gc.Recorders() != aspen.RecorderAllocator(eng.Recorders()) {
		t.Error("recorder allocator not wired")
	}
	if gc.Submitter() != aspen.QueueSubmitter(eng.Submitter()) {
		t.Error("submitter not wired")
	}
	if gc.Reader() != aspen.TargetReader(eng.Reader()) {
		t.Error("reader not wired")
	}
	if got := gc.FramesInFlight(); got != 2 {
		t.Errorf("default frames in flight = %d, want 2", got)
	}
}

func TestNewGraphicsContextOverride(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	eng := FromDevice(device, queue)
	gc := NewGraphicsContext(eng, aspen.WithFramesInFlight(3))
	if got := gc.FramesInFlight(); got != 3 {
		t.Errorf("frames in flight = %d, want 3", got)
	}
}

func TestBackendName(t *testing.T) {
	if got := backendName(gputypes.BackendVulkan); got != "Vulkan" {
		t.Errorf("backendName(Vulkan) = %q", got)
	}
	if got := backendName(gputypes.Backend(250)); got == "" {
		t.Error("expected non-empty name for unknown backend")
	}
}
