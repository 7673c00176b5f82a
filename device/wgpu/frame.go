//go:build !nogpu

package wgpu

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tilerender"
	"github.com/gogpu/tilerender/gpucore"
)

// copyPitchAlignment is the required BytesPerRow alignment of
// texture-to-buffer copies.
const copyPitchAlignment = 256

// submitTimeout bounds the wait for a frame's fence.
const submitTimeout = 5 * time.Second

type drawCmd struct {
	program gpucore.ProgramID
	mode    gpucore.Primitive
	texture gpucore.TextureID
	base    int // arena offset of the upload bound when recorded
	first   int
	count   int
}

// frame is the state recorded between two Submit calls.
type frame struct {
	cleared    bool
	clearColor [4]float32

	program    gpucore.ProgramID
	texture    gpucore.TextureID
	buffer     gpucore.BufferID
	projection [16]float32

	arena     []byte
	base      int
	hasUpload bool
	draws     []drawCmd
}

func (f *frame) reset() {
	f.cleared = false
	f.arena = f.arena[:0]
	f.base = 0
	f.hasUpload = false
	f.draws = f.draws[:0]
}

// Clear records a clear of the whole target. Draws recorded earlier in the
// frame are discarded.
func (d *Device) Clear(rgba [4]float32) {
	d.frame.cleared = true
	d.frame.clearColor = rgba
	d.frame.draws = d.frame.draws[:0]
}

// UseProgram binds a program; InvalidID unbinds.
func (d *Device) UseProgram(id gpucore.ProgramID) { d.frame.program = id }

// SetProjection sets the projection. The matrix in effect at Submit applies
// to the whole frame.
func (d *Device) SetProjection(m [16]float32) { d.frame.projection = m }

// BindVertexArray is a no-op: the tile layout is baked into the pipelines.
func (d *Device) BindVertexArray(gpucore.VertexArrayID) {}

// BindBuffer binds the vertex buffer; InvalidID unbinds.
func (d *Device) BindBuffer(id gpucore.BufferID) { d.frame.buffer = id }

// BufferData appends data to the frame arena and makes it the contents of
// the bound buffer.
func (d *Device) BufferData(data []byte) {
	f := &d.frame
	if _, ok := d.buffers[f.buffer]; !ok {
		tilerender.Logger().Warn("wgpu: buffer data without a bound buffer", "bytes", len(data))
		return
	}
	// Vertex buffer offsets must be 4-byte aligned.
	for len(f.arena)%4 != 0 {
		f.arena = append(f.arena, 0)
	}
	f.base = len(f.arena)
	f.arena = append(f.arena, data...)
	f.hasUpload = true
}

// BindTexture binds a texture; InvalidID unbinds.
func (d *Device) BindTexture(id gpucore.TextureID) { d.frame.texture = id }

// DrawArrays records a draw of the bound buffer with the bound program and
// texture. Draws with nothing bound are dropped.
func (d *Device) DrawArrays(mode gpucore.Primitive, first, count int) {
	f := &d.frame
	if count <= 0 {
		return
	}
	if _, ok := d.programs[f.program]; !ok || !f.hasUpload {
		tilerender.Logger().Warn("wgpu: draw without program or vertex data", "count", count)
		return
	}
	if _, ok := d.textures[f.texture]; !ok {
		tilerender.Logger().Warn("wgpu: draw without a bound texture", "texture", f.texture)
		return
	}
	f.draws = append(f.draws, drawCmd{
		program: f.program,
		mode:    mode,
		texture: f.texture,
		base:    f.base,
		first:   first,
		count:   count,
	})
}

type bindKey struct {
	program gpucore.ProgramID
	texture gpucore.TextureID
}

// frameResources are created for one Submit and destroyed after it.
type frameResources struct {
	vertBuf    hal.Buffer
	uniformBuf hal.Buffer
	bindGroups map[bindKey]hal.BindGroup
}

func (r *frameResources) destroy(device hal.Device) {
	for _, bg := range r.bindGroups {
		device.DestroyBindGroup(bg)
	}
	if r.uniformBuf != nil {
		device.DestroyBuffer(r.uniformBuf)
	}
	if r.vertBuf != nil {
		device.DestroyBuffer(r.vertBuf)
	}
}

// Submit encodes the recorded frame into one render pass, submits it and
// waits for completion. With a readback image set, the offscreen target is
// copied into it.
func (d *Device) Submit() error {
	if d.closed {
		return ErrClosed
	}
	f := &d.frame
	defer f.reset()
	if !f.cleared && len(f.draws) == 0 {
		return nil
	}

	view, err := d.ensureTarget()
	if err != nil {
		return err
	}

	res := &frameResources{bindGroups: make(map[bindKey]hal.BindGroup)}
	defer res.destroy(d.device)
	if len(f.draws) > 0 {
		if err := d.buildFrameResources(res); err != nil {
			return err
		}
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "tile_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("tile_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	loadOp := gputypes.LoadOpLoad
	if f.cleared {
		loadOp = gputypes.LoadOpClear
	}
	c := f.clearColor
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "tile_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     loadOp,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])},
		}},
	})
	for _, dc := range f.draws {
		bg, ok := res.bindGroups[bindKey{dc.program, dc.texture}]
		if !ok {
			continue
		}
		rp.SetPipeline(d.programs[dc.program].pipeline(dc.mode))
		rp.SetBindGroup(0, bg, nil)
		offset := uint64(dc.base) //nolint:gosec // arena offsets are non-negative
		rp.SetVertexBuffer(0, res.vertBuf, offset)
		rp.Draw(uint32(dc.count), 1, uint32(dc.first), 0) //nolint:gosec // vertex counts fit uint32
	}
	rp.End()

	var staging hal.Buffer
	var pitch uint32
	if d.readback != nil && d.surface == nil {
		staging, pitch, err = d.encodeReadback(encoder)
		if err != nil {
			encoder.DiscardEncoding()
			return err
		}
		defer d.device.DestroyBuffer(staging)
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := d.device.Wait(fence, 1, submitTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	if staging == nil {
		return nil
	}
	data := make([]byte, uint64(pitch)*uint64(d.height)) //nolint:gosec // height is positive
	if err := d.queue.ReadBuffer(staging, 0, data); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	copyBGRAToRGBA(d.readback, data, d.width, d.height, int(pitch))
	return nil
}

func (d *Device) buildFrameResources(res *frameResources) error {
	f := &d.frame
	var err error
	res.vertBuf, err = d.createAndUploadBuffer("tile_vertices", f.arena,
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	res.uniformBuf, err = d.createAndUploadBuffer("tile_projection", projectionBytes(f.projection),
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}

	for _, dc := range f.draws {
		key := bindKey{dc.program, dc.texture}
		if _, ok := res.bindGroups[key]; ok {
			continue
		}
		p, t := d.programs[dc.program], d.textures[dc.texture]
		if p == nil || t == nil {
			// Destroyed after the draw was recorded; the draw is skipped.
			continue
		}
		bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  "tile_bind",
			Layout: p.bindLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{
					Buffer: res.uniformBuf.NativeHandle(), Offset: 0, Size: projectionSize,
				}},
				{Binding: 1, Resource: gputypes.TextureViewBinding{
					TextureView: t.view.NativeHandle(),
				}},
				{Binding: 2, Resource: gputypes.SamplerBinding{
					Sampler: p.sampler(t.filter).NativeHandle(),
				}},
			},
		})
		if err != nil {
			return fmt.Errorf("create tile bind group: %w", err)
		}
		res.bindGroups[key] = bg
	}
	return nil
}

// encodeReadback copies the offscreen target into a new staging buffer and
// returns it with its row pitch.
func (d *Device) encodeReadback(encoder hal.CommandEncoder) (hal.Buffer, uint32, error) {
	w := uint32(d.width)  //nolint:gosec // target exists, so size is positive
	h := uint32(d.height) //nolint:gosec // target exists, so size is positive
	pitch := (w*4 + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "tile_staging",
		Size:  uint64(pitch) * uint64(h),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("create staging buffer: %w", err)
	}

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: d.target.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(d.target.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: pitch, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: d.target.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: d.target.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	return staging, pitch, nil
}

func (d *Device) createAndUploadBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	d.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// projectionBytes encodes a column-major matrix as little-endian float32s.
func projectionBytes(m [16]float32) []byte {
	buf := make([]byte, projectionSize)
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// copyBGRAToRGBA converts a padded BGRA readback into dst, clipped to the
// bounds of both.
func copyBGRAToRGBA(dst *image.RGBA, src []byte, width, height, pitch int) {
	b := dst.Bounds()
	w := min(width, b.Dx())
	h := min(height, b.Dy())
	for y := range h {
		row := src[y*pitch : y*pitch+w*4]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			out[x+0] = row[x+2]
			out[x+1] = row[x+1]
			out[x+2] = row[x+0]
			out[x+3] = row[x+3]
		}
	}
}
