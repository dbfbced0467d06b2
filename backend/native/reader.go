//go:build !nogpu

package native

import (
	"errors"
	"fmt"
	"image"
	"time"

	aspen "github.com/ZakGoedegebuur/aspen-renderer"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// copyPitchAlignment is the row pitch alignment required for buffer copies.
const copyPitchAlignment = 256

// readbackTimeout bounds the fence wait during a synchronous readback.
const readbackTimeout = 5 * time.Second

// formatTexelSize returns the byte size of one texel for the color formats
// the transfer paths support.
func formatTexelSize(f gputypes.TextureFormat) (uint32, bool) {
	switch f {
	case gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatRGBA8Unorm:
		return 4, true
	}
	return 0, false
}

// alignedRowBytes rounds a row of texels up to the copy pitch alignment.
func alignedRowBytes(width, texel uint32) uint32 {
	bytes := width * texel
	return (bytes + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}

// Reader copies rendered targets back to CPU images. Each read submits its
// own commands and blocks on a fence, so it is meant for captures and tests
// rather than per-frame streaming.
type Reader struct {
	device hal.Device
	queue  hal.Queue
}

var _ aspen.TargetReader = (*Reader)(nil)

// NewReader returns a reader over the given device and queue.
func NewReader(device hal.Device, queue hal.Queue) *Reader {
	return &Reader{device: device, queue: queue}
}

// ReadTarget copies the target's pixels into dst, converting to RGBA order.
// The target must use a supported color format and dst must be at least as
// large as the target. The target is assumed to be in render attachment
// state and is returned to it.
func (r *Reader) ReadTarget(t aspen.Target, dst *image.RGBA) error {
	tex, ok := t.(*texture)
	if !ok {
		return fmt.Errorf("native: read target: %w", ErrForeignResource)
	}

	var swapBGRA bool
	switch tex.format {
	case gputypes.TextureFormatBGRA8Unorm:
		swapBGRA = true
	case gputypes.TextureFormatRGBA8Unorm:
	default:
		return fmt.Errorf("native: read target: unsupported format %v", tex.format)
	}

	w, h := tex.extent.Width, tex.extent.Height
	if dst == nil {
		return errors.New("native: read target: nil destination image")
	}
	bounds := dst.Bounds()
	if bounds.Dx() < int(w) || bounds.Dy() < int(h) {
		return fmt.Errorf("native: read target: destination %dx%d smaller than target %dx%d",
			bounds.Dx(), bounds.Dy(), w, h)
	}

	rowBytes := alignedRowBytes(w, 4)
	staging, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  uint64(rowBytes) * uint64(h),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: read target: staging buffer: %w", err)
	}
	defer r.device.DestroyBuffer(staging)

	enc, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback"})
	if err != nil {
		return fmt.Errorf("native: read target: command encoder: %w", err)
	}
	if err := enc.BeginEncoding("readback"); err != nil {
		return fmt.Errorf("native: read target: begin encoding: %w", err)
	}

	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	enc.CopyTextureToBuffer(tex.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  rowBytes,
			RowsPerImage: h,
		},
		TextureBase: hal.ImageCopyTexture{Texture: tex.tex, MipLevel: 0},
		Size:        hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmd, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: read target: end encoding: %w", err)
	}
	defer r.device.FreeCommandBuffer(cmd)

	fen, err := r.device.CreateFence()
	if err != nil {
		return fmt.Errorf("native: read target: create fence: %w", err)
	}
	defer r.device.DestroyFence(fen)

	if err := r.queue.Submit([]hal.CommandBuffer{cmd}, fen, 1); err != nil {
		return fmt.Errorf("native: read target: submit: %w", err)
	}
	signaled, err := r.device.Wait(fen, 1, readbackTimeout)
	if err != nil {
		return fmt.Errorf("native: read target: fence wait: %w", err)
	}
	if !signaled {
		return errors.New("native: read target: fence wait timed out")
	}

	data := make([]byte, uint64(rowBytes)*uint64(h))
	if err := r.queue.ReadBuffer(staging, 0, data); err != nil {
		return fmt.Errorf("native: read target: read buffer: %w", err)
	}

	for row := uint32(0); row < h; row++ {
		src := data[row*rowBytes : row*rowBytes+w*4]
		off := dst.PixOffset(bounds.Min.X, bounds.Min.Y+int(row))
		px := dst.Pix[off : off+int(w)*4]
		if swapBGRA {
			for x := uint32(0); x < w; x++ {
				px[x*4+0] = src[x*4+2]
				px[x*4+1] = src[x*4+1]
				px[x*4+2] = src[x*4+0]
				px[x*4+3] = src[x*4+3]
			}
		} else {
			copy(px, src)
		}
	}
	return nil
}
