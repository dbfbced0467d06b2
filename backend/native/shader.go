//go:build !nogpu

package native

import (
	"fmt"

	aspen "github.com/ZakGoedegebuur/aspen-renderer"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// CompileShaderToSPIRV translates WGSL source to SPIR-V words for the hal
// shader module path.
func CompileShaderToSPIRV(wgsl string) ([]uint32, error) {
	spv, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("native: compile shader: %w", err)
	}
	if len(spv)%4 != 0 {
		return nil, fmt.Errorf("native: compile shader: SPIR-V size %d not word aligned", len(spv))
	}
	words := make([]uint32, len(spv)/4)
	for i := range words {
		words[i] = uint32(spv[i*4]) |
			uint32(spv[i*4+1])<<8 |
			uint32(spv[i*4+2])<<16 |
			uint32(spv[i*4+3])<<24
	}
	return words, nil
}

// PipelineDescriptor describes a render pipeline built from WGSL source.
// The shader must define vs_main and fs_main entry points.
type PipelineDescriptor struct {
	Label string

	// WGSL is the shader source for both stages.
	WGSL string

	// VertexLayouts describes the vertex buffer slots, one per slot.
	VertexLayouts []gputypes.VertexBufferLayout

	// BindingLayouts lists the bind group layouts by group index. All must
	// come from this backend's allocator.
	BindingLayouts []aspen.BindingLayout

	// ColorFormat is the render target format the pipeline draws to.
	ColorFormat gputypes.TextureFormat

	// DepthFormat enables a depth stencil stage when set. Depth writes use
	// a standard less-than test.
	DepthFormat gputypes.TextureFormat

	// Topology defaults to a triangle list when zero.
	Topology gputypes.PrimitiveTopology

	// SampleCount defaults to 1 when zero.
	SampleCount uint32

	// Blend is the color blend state, nil for opaque output.
	Blend *gputypes.BlendState
}

// BuildRenderPipeline compiles the descriptor's shader and assembles a
// render pipeline on the engine's device.
func (e *Engine) BuildRenderPipeline(desc PipelineDescriptor) (aspen.RenderPipeline, error) {
	return buildRenderPipeline(e.device, desc)
}

func buildRenderPipeline(device hal.Device, desc PipelineDescriptor) (aspen.RenderPipeline, error) {
	words, err := CompileShaderToSPIRV(desc.WGSL)
	if err != nil {
		return nil, fmt.Errorf("native: pipeline %q: %w", desc.Label, err)
	}

	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return nil, fmt.Errorf("native: pipeline %q: shader module: %w", desc.Label, err)
	}

	bindLayouts := make([]hal.BindGroupLayout, len(desc.BindingLayouts))
	for i, bl := range desc.BindingLayouts {
		l, ok := bl.(*bindingLayout)
		if !ok {
			device.DestroyShaderModule(module)
			return nil, fmt.Errorf("native: pipeline %q: binding layout %d: %w", desc.Label, i, ErrForeignResource)
		}
		bindLayouts[i] = l.raw
	}

	layout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_layout",
		BindGroupLayouts: bindLayouts,
	})
	if err != nil {
		device.DestroyShaderModule(module)
		return nil, fmt.Errorf("native: pipeline %q: pipeline layout: %w", desc.Label, err)
	}

	topology := desc.Topology
	if topology == 0 {
		topology = gputypes.PrimitiveTopologyTriangleList
	}
	samples := desc.SampleCount
	if samples == 0 {
		samples = 1
	}

	var depthStencil *hal.DepthStencilState
	if desc.DepthFormat != gputypes.TextureFormatUndefined {
		keepFace := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		}
		depthStencil = &hal.DepthStencilState{
			Format:            desc.DepthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
			StencilFront:      keepFace,
			StencilBack:       keepFace,
			StencilReadMask:   0,
			StencilWriteMask:  0,
		}
	}

	raw, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    desc.VertexLayouts,
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    desc.ColorFormat,
				Blend:     desc.Blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		DepthStencil: depthStencil,
		Primitive: gputypes.PrimitiveState{
			Topology: topology,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: samples,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		device.DestroyPipelineLayout(layout)
		device.DestroyShaderModule(module)
		return nil, fmt.Errorf("native: pipeline %q: %w", desc.Label, err)
	}

	return &renderPipeline{device: device, raw: raw, layout: layout, module: module}, nil
}

type renderPipeline struct {
	device hal.Device
	raw    hal.RenderPipeline
	layout hal.PipelineLayout
	module hal.ShaderModule
}

var _ aspen.RenderPipeline = (*renderPipeline)(nil)

func (p *renderPipeline) Destroy() {
	if p.raw != nil {
		p.device.DestroyRenderPipeline(p.raw)
		p.raw = nil
	}
	if p.layout != nil {
		p.device.DestroyPipelineLayout(p.layout)
		p.layout = nil
	}
	if p.module != nil {
		p.device.DestroyShaderModule(p.module)
		p.module = nil
	}
}
