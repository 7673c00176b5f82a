// Package spritesheet provides a SpriteLookup over images and PNG sprite
// sheets.
//
// Cells are converted once to BGRA and kept lz4-compressed in memory. A
// Lookup decompresses the cell, so a sheet with many thousands of sprites
// stays small while the renderer keeps only the resident ones on the GPU.
package spritesheet

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pierrec/lz4/v4"
	"golang.org/x/image/draw"

	"github.com/gogpu/tilerender"
)

// Sheet errors.
var (
	// ErrCellSize is returned when a sheet is sliced with a non-positive
	// cell size or an image smaller than one cell.
	ErrCellSize = errors.New("spritesheet: invalid cell size")

	// ErrUnknownSprite is returned when an alias targets a missing sprite.
	ErrUnknownSprite = errors.New("spritesheet: unknown sprite")
)

type cell struct {
	width, height int
	size          int    // decompressed byte length
	data          []byte // lz4 frame
}

// Stats reports sheet memory use.
type Stats struct {
	Sprites     int
	Aliases     int
	RawBytes    int
	StoredBytes int
	Lookups     uint64
	Misses      uint64
}

// Sheet is a concurrency-safe store of sprite cells.
type Sheet struct {
	mu      sync.RWMutex
	cells   map[tilerender.SpriteID]*cell
	aliases map[tilerender.SpriteID]tilerender.SpriteID

	lookups atomic.Uint64
	misses  atomic.Uint64
}

// New creates an empty sheet.
func New() *Sheet {
	return &Sheet{
		cells:   make(map[tilerender.SpriteID]*cell),
		aliases: make(map[tilerender.SpriteID]tilerender.SpriteID),
	}
}

// AddImage converts img to BGRA and stores it under id, replacing any
// previous image.
func (s *Sheet) AddImage(id tilerender.SpriteID, img image.Image) error {
	b := img.Bounds()
	if b.Empty() {
		return fmt.Errorf("%w: sprite %d is empty", tilerender.ErrInvalidSprite, id)
	}
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	return s.AddSprite(tilerender.Sprite{
		ID:     id,
		Width:  b.Dx(),
		Height: b.Dy(),
		Pixels: swizzle(nrgba.Pix),
	})
}

// AddSprite stores raw BGRA sprite data under sp.ID.
func (s *Sheet) AddSprite(sp tilerender.Sprite) error {
	if err := sp.Validate(); err != nil {
		return err
	}
	data, err := compress(sp.Pixels)
	if err != nil {
		return fmt.Errorf("spritesheet: compress sprite %d: %w", sp.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells[sp.ID] = &cell{width: sp.Width, height: sp.Height, size: len(sp.Pixels), data: data}
	delete(s.aliases, sp.ID)
	return nil
}

// LoadPNG decodes a PNG sheet and slices it into cell×cell sprites, left to
// right and top to bottom, numbered from firstID. Fully transparent cells
// are skipped but still consume an id. It returns the number of sprites
// added.
func (s *Sheet) LoadPNG(r io.Reader, cellSize int, firstID tilerender.SpriteID) (int, error) {
	img, err := png.Decode(r)
	if err != nil {
		return 0, fmt.Errorf("spritesheet: decode png: %w", err)
	}
	return s.AddSheet(img, cellSize, firstID)
}

// AddSheet slices img the way LoadPNG does.
func (s *Sheet) AddSheet(img image.Image, cellSize int, firstID tilerender.SpriteID) (int, error) {
	b := img.Bounds()
	if cellSize <= 0 || b.Dx() < cellSize || b.Dy() < cellSize {
		return 0, fmt.Errorf("%w: cell %d for %dx%d sheet", ErrCellSize, cellSize, b.Dx(), b.Dy())
	}

	cols, rows := b.Dx()/cellSize, b.Dy()/cellSize
	added := 0
	id := firstID
	for row := range rows {
		for col := range cols {
			origin := b.Min.Add(image.Pt(col*cellSize, row*cellSize))
			rect := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(cellSize, cellSize))}
			sub := subImage(img, rect)
			if !transparent(sub) {
				if err := s.AddImage(id, sub); err != nil {
					return added, err
				}
				added++
			}
			id++
		}
	}
	tilerender.Logger().Debug("spritesheet: sheet loaded",
		"cells", cols*rows, "sprites", added, "first", firstID)
	return added, nil
}

// Alias makes lookups of id resolve to target's image. The returned
// sprite carries target's id, so both share one texture.
func (s *Sheet) Alias(id, target tilerender.SpriteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cells[target]; !ok {
		return fmt.Errorf("%w: alias %d -> %d", ErrUnknownSprite, id, target)
	}
	s.aliases[id] = target
	return nil
}

// Remove deletes a sprite and any alias named id.
func (s *Sheet) Remove(id tilerender.SpriteID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cells, id)
	delete(s.aliases, id)
}

// Lookup decompresses the sprite for id. It satisfies
// tilerender.SpriteLookup.
func (s *Sheet) Lookup(id tilerender.SpriteID) (tilerender.Sprite, bool) {
	s.mu.RLock()
	key := id
	if target, ok := s.aliases[id]; ok {
		key = target
	}
	c, ok := s.cells[key]
	s.mu.RUnlock()

	s.lookups.Add(1)
	if !ok {
		s.misses.Add(1)
		return tilerender.Sprite{}, false
	}
	pixels, err := decompress(c.data, c.size)
	if err != nil {
		tilerender.Logger().Warn("spritesheet: corrupt cell", "id", key, "error", err)
		return tilerender.Sprite{}, false
	}
	return tilerender.Sprite{ID: key, Width: c.width, Height: c.height, Pixels: pixels}, true
}

// Len returns the number of stored images, not counting aliases.
func (s *Sheet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cells)
}

// Stats returns a snapshot of sheet statistics.
func (s *Sheet) Stats() Stats {
	s.mu.RLock()
	st := Stats{Sprites: len(s.cells), Aliases: len(s.aliases)}
	for _, c := range s.cells {
		st.RawBytes += c.size
		st.StoredBytes += len(c.data)
	}
	s.mu.RUnlock()

	st.Lookups, st.Misses = s.lookups.Load(), s.misses.Load()
	return st
}

func compress(pixels []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(pixels); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte, size int) ([]byte, error) {
	pixels := make([]byte, size)
	if _, err := io.ReadFull(lz4.NewReader(bytes.NewReader(data)), pixels); err != nil {
		return nil, err
	}
	return pixels, nil
}

// swizzle converts RGBA bytes to BGRA in place and returns them.
func swizzle(pix []byte) []byte {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
	return pix
}

func subImage(img image.Image, r image.Rectangle) image.Image {
	if si, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return si.SubImage(r)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

func transparent(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
				return false
			}
		}
	}
	return true
}
