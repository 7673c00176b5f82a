//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/tilerender"
	"github.com/gogpu/tilerender/gpucore"
	"github.com/gogpu/tilerender/texcache"
)

// Resource errors. Any of them means the batched backend cannot run and the
// caller should fall back to another backend.
var (
	// ErrNoDevice is returned when no gpucore.Device was supplied.
	ErrNoDevice = errors.New("gpu: no device")

	// ErrProgram is returned when the tile shader fails to compile or link.
	ErrProgram = errors.New("gpu: create program")

	// ErrVertexArray is returned when the vertex layout cannot be allocated.
	ErrVertexArray = errors.New("gpu: create vertex array")

	// ErrWhiteTexture is returned when the fallback texture cannot be created.
	ErrWhiteTexture = errors.New("gpu: create white texture")
)

// whitePixel is one opaque white BGRA pixel.
var whitePixel = []byte{0xFF, 0xFF, 0xFF, 0xFF}

// TextureCache maps sprite ids to resident textures.
type TextureCache = texcache.Cache[tilerender.SpriteID, gpucore.TextureID]

// Resources holds the GPU objects shared across frames: the tile program,
// the vertex array with its buffer, the 1×1 white texture flat geometry is
// drawn with, and the sprite texture cache.
type Resources struct {
	device  gpucore.Device
	program gpucore.ProgramID
	vao     gpucore.VertexArrayID
	vbo     gpucore.BufferID
	white   gpucore.TextureID
	cache   *TextureCache
	atlas   *Atlas
	closed  bool
}

// NewResources creates the shared pipeline resources on device. A failure
// releases whatever was already created and is fatal for the batched
// backend.
func NewResources(device gpucore.Device, opts ...Option) (*Resources, error) {
	return newResources(device, newConfig(opts))
}

func newResources(device gpucore.Device, cfg config) (*Resources, error) {
	if device == nil {
		return nil, ErrNoDevice
	}
	r := &Resources{device: device}

	program, err := device.CreateProgram()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProgram, err)
	}
	r.program = program

	vao, vbo, err := device.CreateVertexArray(gpucore.TileVertexLayout)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: %w", ErrVertexArray, err)
	}
	r.vao, r.vbo = vao, vbo

	white, err := device.CreateTexture(gpucore.TextureDesc{
		Label:  "white",
		Width:  1,
		Height: 1,
		Format: gpucore.FormatBGRA8,
		Filter: gpucore.FilterNearest,
	}, whitePixel)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: %w", ErrWhiteTexture, err)
	}
	r.white = white

	r.cache = texcache.New(cfg.cacheCapacity, r.releaseTexture, texcache.WithLabel(device.Name()))

	if cfg.atlasCell > 0 {
		atlas, err := newAtlas(device, cfg.atlasCell, cfg.atlasColumns)
		if err != nil {
			tilerender.Logger().Warn("gpu: atlas disabled, drawing sprites per texture", "err", err)
		} else {
			r.atlas = atlas
		}
	}

	tilerender.Logger().Info("gpu: resources created",
		"device", device.Name(), "cache_capacity", r.cache.Capacity(), "atlas", r.atlas != nil)
	return r, nil
}

func (r *Resources) releaseTexture(_ tilerender.SpriteID, tex gpucore.TextureID) {
	r.device.DestroyTextures(tex)
}

// Device returns the device the resources live on.
func (r *Resources) Device() gpucore.Device { return r.device }

// Program returns the tile shader program.
func (r *Resources) Program() gpucore.ProgramID { return r.program }

// WhiteTexture returns the fallback texture used for flat geometry.
func (r *Resources) WhiteTexture() gpucore.TextureID { return r.white }

// Cache returns the sprite texture cache.
func (r *Resources) Cache() *TextureCache { return r.cache }

// Atlas returns the sprite atlas, or nil when it is disabled.
func (r *Resources) Atlas() *Atlas { return r.atlas }

// DropTextures releases every cached sprite texture and atlas cell, for
// example after the graphics context was lost. The program and white
// texture are kept.
func (r *Resources) DropTextures() {
	if r.cache != nil {
		r.cache.Clear()
	}
	if r.atlas != nil {
		r.atlas.drop()
	}
}

// endFrame releases what the submitted frame no longer pins.
func (r *Resources) endFrame() {
	r.cache.EndFrame()
	if r.atlas != nil {
		r.atlas.endFrame()
	}
}

// Close releases the cache entries and pipeline resources. Safe to call
// more than once.
func (r *Resources) Close() {
	if r.closed {
		return
	}
	r.closed = true

	r.DropTextures()
	if r.atlas != nil {
		r.atlas.close()
		r.atlas = nil
	}
	if r.white != gpucore.InvalidID {
		r.device.DestroyTextures(r.white)
		r.white = gpucore.InvalidID
	}
	if r.vao != gpucore.InvalidID || r.vbo != gpucore.InvalidID {
		r.device.DestroyVertexArray(r.vao, r.vbo)
		r.vao, r.vbo = gpucore.InvalidID, gpucore.InvalidID
	}
	if r.program != gpucore.InvalidID {
		r.device.DestroyProgram(r.program)
		r.program = gpucore.InvalidID
	}
}
