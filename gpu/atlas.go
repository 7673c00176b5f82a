//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/tilerender"
	"github.com/gogpu/tilerender/batch"
	"github.com/gogpu/tilerender/gpucore"
	"github.com/gogpu/tilerender/texcache"
)

// Atlas errors.
var (
	// ErrAtlas is returned when the atlas texture cannot be created.
	ErrAtlas = errors.New("gpu: create atlas")

	// errAtlasFull means every cell is held by the current frame.
	errAtlasFull = errors.New("gpu: atlas full")
)

// AtlasCache maps sprite ids to atlas cells.
type AtlasCache = texcache.Cache[tilerender.SpriteID, int]

// Atlas packs sprites into the fixed-size cells of one texture, so a frame
// whose sprites all fit is drawn with a single sprite run.
//
// Cell 0 is opaque white and backs tinted fills. The other cells are
// handed out least recently used first. A cell evicted while the frame
// still draws from it returns to the free list at the end of the frame,
// so its pixels are never overwritten under a pending draw.
type Atlas struct {
	device  gpucore.Device
	texture gpucore.TextureID
	cell    int
	columns int
	side    int

	free  []int
	cache *AtlasCache
}

// newAtlas creates a columns×columns grid of cell×cell pixels.
func newAtlas(device gpucore.Device, cell, columns int) (*Atlas, error) {
	if cell <= 0 || columns < 2 {
		return nil, fmt.Errorf("%w: %d columns of %dpx", ErrAtlas, columns, cell)
	}
	a := &Atlas{device: device, cell: cell, columns: columns, side: cell * columns}

	desc := gpucore.TextureDesc{
		Label:  "atlas",
		Width:  a.side,
		Height: a.side,
		Format: gpucore.FormatBGRA8,
		Filter: gpucore.FilterNearest,
	}
	tex, err := device.CreateTexture(desc, make([]byte, desc.DataSize()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAtlas, err)
	}
	a.texture = tex

	white := make([]byte, cell*cell*4)
	for i := range white {
		white[i] = 0xFF
	}
	if err := device.UpdateTexture(tex, 0, 0, cell, cell, white); err != nil {
		device.DestroyTextures(tex)
		return nil, fmt.Errorf("%w: white cell: %w", ErrAtlas, err)
	}

	cells := columns * columns
	// Popped from the end, so low cells are used first.
	a.free = make([]int, 0, cells-1)
	for i := cells - 1; i >= 1; i-- {
		a.free = append(a.free, i)
	}
	// One cell stays spare so a miss can upload before the LRU entry is
	// evicted.
	a.cache = texcache.New(cells-2, a.releaseCell, texcache.WithLabel("atlas"))
	return a, nil
}

func (a *Atlas) releaseCell(_ tilerender.SpriteID, cell int) {
	a.free = append(a.free, cell)
}

// Texture returns the atlas texture.
func (a *Atlas) Texture() gpucore.TextureID { return a.texture }

// CellSize returns the cell edge in pixels.
func (a *Atlas) CellSize() int { return a.cell }

// Cache returns the sprite to cell cache.
func (a *Atlas) Cache() *AtlasCache { return a.cache }

// Fits reports whether s can be placed in a cell.
func (a *Atlas) Fits(s tilerender.Sprite) bool {
	return s.Width <= a.cell && s.Height <= a.cell
}

// Place returns the region holding s, uploading it to a free cell on a
// miss. ok is false when s does not fit, its data is invalid, or no cell is
// free this frame; the caller then draws s from its own texture.
func (a *Atlas) Place(s tilerender.Sprite) (batch.Region, bool) {
	if !a.Fits(s) {
		return batch.Region{}, false
	}
	cell, ok := a.cache.GetOrCreate(s.ID, func() (int, error) {
		return a.upload(s)
	})
	if !ok {
		return batch.Region{}, false
	}
	return a.region(cell, s.Width, s.Height), true
}

func (a *Atlas) upload(s tilerender.Sprite) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	n := len(a.free)
	if n == 0 {
		return 0, errAtlasFull
	}
	cell := a.free[n-1]
	x, y := a.origin(cell)
	if err := a.device.UpdateTexture(a.texture, x, y, s.Width, s.Height, s.Pixels); err != nil {
		return 0, fmt.Errorf("sprite %d: %w", s.ID, err)
	}
	a.free = a.free[:n-1]
	return cell, nil
}

// WhiteRegion samples the center of the white cell's first texel.
func (a *Atlas) WhiteRegion() batch.Region {
	half := 0.5 / float32(a.side)
	return batch.Region{half, 1 - half, half, 1 - half}
}

func (a *Atlas) origin(cell int) (x, y int) {
	return (cell % a.columns) * a.cell, (cell / a.columns) * a.cell
}

func (a *Atlas) region(cell, w, h int) batch.Region {
	x, y := a.origin(cell)
	side := float32(a.side)
	return batch.Region{
		float32(x) / side,
		1 - float32(y)/side,
		float32(x+w) / side,
		1 - float32(y+h)/side,
	}
}

// endFrame returns cells evicted during the frame to the free list.
func (a *Atlas) endFrame() { a.cache.EndFrame() }

// drop forgets every placed sprite. The texture is kept.
func (a *Atlas) drop() { a.cache.Clear() }

func (a *Atlas) close() {
	a.cache.Clear()
	a.device.DestroyTextures(a.texture)
	a.texture = gpucore.InvalidID
}
