//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tilerender/gpucore"
)

// projectionSize is the size of the uniform block: one mat4x4<f32>.
const projectionSize = 64

// program is the tile shader with one pipeline per primitive topology.
type program struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	nearest    hal.Sampler
	linear     hal.Sampler
	triangles  hal.RenderPipeline
	lines      hal.RenderPipeline
}

func (p *program) pipeline(mode gpucore.Primitive) hal.RenderPipeline {
	if mode == gpucore.Lines {
		return p.lines
	}
	return p.triangles
}

func (p *program) sampler(f gpucore.Filter) hal.Sampler {
	if f == gpucore.FilterLinear {
		return p.linear
	}
	return p.nearest
}

func (p *program) destroy(device hal.Device) {
	if p.lines != nil {
		device.DestroyRenderPipeline(p.lines)
	}
	if p.triangles != nil {
		device.DestroyRenderPipeline(p.triangles)
	}
	if p.linear != nil {
		device.DestroySampler(p.linear)
	}
	if p.nearest != nil {
		device.DestroySampler(p.nearest)
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
	}
}

// CreateProgram compiles the tile shader and creates its pipelines.
func (d *Device) CreateProgram() (gpucore.ProgramID, error) {
	if d.closed {
		return 0, ErrClosed
	}
	p := &program{}
	if err := d.buildProgram(p); err != nil {
		p.destroy(d.device)
		return 0, err
	}
	id := gpucore.ProgramID(d.allocID())
	d.programs[id] = p
	return id, nil
}

func (d *Device) buildProgram(p *program) error {
	code, err := compileTileShader()
	if err != nil {
		return err
	}
	p.shader, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "tile_shader",
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return fmt.Errorf("create tile shader module: %w", err)
	}

	p.bindLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "tile_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create tile bind group layout: %w", err)
	}

	p.pipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "tile_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create tile pipeline layout: %w", err)
	}

	p.nearest, err = d.createSampler("tile_sampler_nearest", gputypes.FilterModeNearest)
	if err != nil {
		return err
	}
	p.linear, err = d.createSampler("tile_sampler_linear", gputypes.FilterModeLinear)
	if err != nil {
		return err
	}

	p.triangles, err = d.createPipeline(p, "tile_triangles", gputypes.PrimitiveTopologyTriangleList)
	if err != nil {
		return err
	}
	p.lines, err = d.createPipeline(p, "tile_lines", gputypes.PrimitiveTopologyLineList)
	return err
}

func (d *Device) createSampler(label string, filter gputypes.FilterMode) (hal.Sampler, error) {
	sampler, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        label,
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return sampler, nil
}

func (d *Device) createPipeline(p *program, label string, topology gputypes.PrimitiveTopology) (hal.RenderPipeline, error) {
	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    tileVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    targetFormat,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: topology,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline: %w", label, err)
	}
	return pipeline, nil
}

// tileVertexLayout mirrors gpucore.TileVertexLayout.
func tileVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: 32,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},  // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},  // tex_coord
				{Format: gputypes.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2}, // color
			},
		},
	}
}

// DestroyProgram releases a program and its pipelines.
func (d *Device) DestroyProgram(id gpucore.ProgramID) {
	p, ok := d.programs[id]
	if !ok {
		return
	}
	delete(d.programs, id)
	p.destroy(d.device)
}
