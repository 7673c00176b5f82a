//go:build !nogpu

// Package wgpu implements gpucore.Device on the WebGPU HAL.
//
// Draw calls are recorded during the frame and encoded into one render pass
// on Submit. Each BufferData call appends to a per-frame vertex arena, so a
// draw reads the upload that was bound when it was recorded, the same as
// with a GL buffer that is re-specified between draws.
//
// The device renders into an offscreen BGRA8 target sized by SetViewport,
// or into a surface view set with SetSurfaceTarget. SetReadback copies the
// finished frame into an *image.RGBA after every Submit.
package wgpu

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // registers the Vulkan HAL backend

	"github.com/gogpu/tilerender"
	"github.com/gogpu/tilerender/gpucore"
)

// Device errors.
var (
	// ErrNoAdapter is returned when no Vulkan adapter can be opened.
	ErrNoAdapter = errors.New("wgpu: no GPU adapter")

	// ErrProvider is returned when a device provider does not expose a HAL
	// device and queue.
	ErrProvider = errors.New("wgpu: provider does not expose HAL device")

	// ErrTextureData is returned when pixel data does not match the
	// texture size.
	ErrTextureData = errors.New("wgpu: texture data size mismatch")

	// ErrNoTarget is returned by Submit when draws were recorded but no
	// viewport or surface was set.
	ErrNoTarget = errors.New("wgpu: no render target")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("wgpu: device closed")
)

// targetFormat is the color format of the offscreen target and pipelines.
const targetFormat = gputypes.TextureFormatBGRA8Unorm

type texture struct {
	tex    hal.Texture
	view   hal.TextureView
	filter gpucore.Filter
	desc   gpucore.TextureDesc
}

func (t *texture) destroy(device hal.Device) {
	if t.view != nil {
		device.DestroyTextureView(t.view)
	}
	if t.tex != nil {
		device.DestroyTexture(t.tex)
	}
}

// Device is a gpucore.Device that records draws and submits them through a
// hal.Device.
type Device struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance // set when the device is standalone
	adapter  string

	nextID       uint64
	programs     map[gpucore.ProgramID]*program
	vertexArrays map[gpucore.VertexArrayID]gpucore.VertexLayout
	buffers      map[gpucore.BufferID]struct{}
	textures     map[gpucore.TextureID]*texture

	width, height int
	target        *texture
	surface       hal.TextureView
	readback      *image.RGBA

	frame  frame
	closed bool
}

var _ gpucore.Device = (*Device)(nil)

// New opens a standalone Vulkan device, preferring a discrete or
// integrated GPU.
func New() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoAdapter)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	d := NewWithHAL(openDev.Device, openDev.Queue)
	d.instance = instance
	d.adapter = selected.Info.Name
	tilerender.Logger().Info("wgpu: device opened (standalone)", "adapter", d.adapter)
	return d, nil
}

// NewFromProvider shares the device of an application that already owns
// one. The provider must also implement HalDevice() any and HalQueue() any
// returning a hal.Device and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrProvider)
	}
	return NewWithHAL(device, queue), nil
}

// NewWithHAL wraps an existing device and queue. Close does not destroy
// them.
func NewWithHAL(device hal.Device, queue hal.Queue) *Device {
	return &Device{
		device:       device,
		queue:        queue,
		programs:     make(map[gpucore.ProgramID]*program),
		vertexArrays: make(map[gpucore.VertexArrayID]gpucore.VertexLayout),
		buffers:      make(map[gpucore.BufferID]struct{}),
		textures:     make(map[gpucore.TextureID]*texture),
	}
}

// Name returns "wgpu".
func (d *Device) Name() string { return "wgpu" }

// Adapter returns the adapter name of a standalone device.
func (d *Device) Adapter() string { return d.adapter }

func (d *Device) allocID() uint64 {
	d.nextID++
	return d.nextID
}

// SetSurfaceTarget renders subsequent frames into view instead of the
// offscreen target. A nil view switches back to offscreen rendering.
func (d *Device) SetSurfaceTarget(view hal.TextureView, width, height int) {
	d.surface = view
	if view != nil {
		d.width, d.height = width, height
	}
}

// SetReadback sets an image that receives the offscreen target after each
// Submit. Pixels outside the image bounds are dropped. Nil disables
// readback.
func (d *Device) SetReadback(dst *image.RGBA) {
	d.readback = dst
}

// Size returns the current target size.
func (d *Device) Size() (width, height int) {
	return d.width, d.height
}

// CreateVertexArray registers a vertex array and its buffer. The GPU
// buffer itself is created per frame from the recorded uploads.
func (d *Device) CreateVertexArray(layout gpucore.VertexLayout) (gpucore.VertexArrayID, gpucore.BufferID, error) {
	if d.closed {
		return 0, 0, ErrClosed
	}
	vao := gpucore.VertexArrayID(d.allocID())
	vbo := gpucore.BufferID(d.allocID())
	d.vertexArrays[vao] = layout
	d.buffers[vbo] = struct{}{}
	return vao, vbo, nil
}

// DestroyVertexArray forgets a vertex array and its buffer.
func (d *Device) DestroyVertexArray(vao gpucore.VertexArrayID, vbo gpucore.BufferID) {
	delete(d.vertexArrays, vao)
	delete(d.buffers, vbo)
}

// CreateTexture creates a sampled 2D texture and uploads pixels.
func (d *Device) CreateTexture(desc gpucore.TextureDesc, pixels []byte) (gpucore.TextureID, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if desc.Width <= 0 || desc.Height <= 0 || len(pixels) != desc.DataSize() {
		return 0, fmt.Errorf("%w: %s %dx%d with %d bytes",
			ErrTextureData, desc.Label, desc.Width, desc.Height, len(pixels))
	}
	format := textureFormat(desc.Format)
	w := uint32(desc.Width)  //nolint:gosec // checked positive above
	h := uint32(desc.Height) //nolint:gosec // checked positive above

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return 0, fmt.Errorf("create texture %s: %w", desc.Label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         desc.Label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return 0, fmt.Errorf("create texture view %s: %w", desc.Label, err)
	}

	d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		pixels,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)

	id := gpucore.TextureID(d.allocID())
	d.textures[id] = &texture{tex: tex, view: view, filter: desc.Filter, desc: desc}
	return id, nil
}

// UpdateTexture writes pixels into a sub-rectangle of a texture. The write
// is queued ahead of the next Submit.
func (d *Device) UpdateTexture(id gpucore.TextureID, x, y, width, height int, pixels []byte) error {
	if d.closed {
		return ErrClosed
	}
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: unknown texture %d", ErrTextureData, id)
	}
	if width <= 0 || height <= 0 || x < 0 || y < 0 ||
		x+width > t.desc.Width || y+height > t.desc.Height ||
		len(pixels) != width*height*t.desc.Format.BytesPerPixel() {
		return fmt.Errorf("%w: %s region %dx%d+%d+%d with %d bytes",
			ErrTextureData, t.desc.Label, width, height, x, y, len(pixels))
	}
	w := uint32(width)  //nolint:gosec // checked positive above
	h := uint32(height) //nolint:gosec // checked positive above

	d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: uint32(x), Y: uint32(y), Z: 0}, //nolint:gosec // checked in bounds above
			Aspect:   gputypes.TextureAspectAll,
		},
		pixels,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	return nil
}

func textureFormat(f gpucore.TextureFormat) gputypes.TextureFormat {
	if f == gpucore.FormatRGBA8 {
		return gputypes.TextureFormatRGBA8Unorm
	}
	return gputypes.TextureFormatBGRA8Unorm
}

// DestroyTextures releases textures. Unknown IDs are ignored.
func (d *Device) DestroyTextures(ids ...gpucore.TextureID) {
	for _, id := range ids {
		t, ok := d.textures[id]
		if !ok {
			continue
		}
		delete(d.textures, id)
		t.destroy(d.device)
	}
}

// SetViewport sizes the target. The offscreen texture is recreated on the
// next Submit when the size changed.
func (d *Device) SetViewport(width, height int) {
	if width == d.width && height == d.height {
		return
	}
	d.width, d.height = width, height
	if d.target != nil && d.surface == nil {
		d.target.destroy(d.device)
		d.target = nil
	}
}

func (d *Device) ensureTarget() (hal.TextureView, error) {
	if d.surface != nil {
		return d.surface, nil
	}
	if d.width <= 0 || d.height <= 0 {
		return nil, ErrNoTarget
	}
	if d.target != nil {
		return d.target.view, nil
	}
	w := uint32(d.width)  //nolint:gosec // checked positive above
	h := uint32(d.height) //nolint:gosec // checked positive above
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "tile_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        targetFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create target texture: %w", err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "tile_target_view",
		Format:        targetFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create target view: %w", err)
	}
	d.target = &texture{tex: tex, view: view}
	return view, nil
}

// Close releases every resource created through the device. A standalone
// device and its instance are destroyed too.
func (d *Device) Close() {
	if d.closed {
		return
	}
	d.closed = true
	for id, t := range d.textures {
		t.destroy(d.device)
		delete(d.textures, id)
	}
	for id, p := range d.programs {
		p.destroy(d.device)
		delete(d.programs, id)
	}
	if d.target != nil {
		d.target.destroy(d.device)
		d.target = nil
	}
	if d.instance != nil {
		d.device.Destroy()
		d.instance.Destroy()
		d.instance = nil
	}
}
