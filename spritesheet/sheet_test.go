package spritesheet

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/gogpu/tilerender"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestAddImageStoresBGRA(t *testing.T) {
	s := New()
	if err := s.AddImage(7, solid(2, 3, color.NRGBA{R: 10, G: 20, B: 30, A: 255})); err != nil {
		t.Fatalf("AddImage: %v", err)
	}

	sp, ok := s.Lookup(7)
	if !ok {
		t.Fatal("Lookup(7) missed")
	}
	if sp.ID != 7 || sp.Width != 2 || sp.Height != 3 {
		t.Errorf("sprite = id %d %dx%d, want id 7 2x3", sp.ID, sp.Width, sp.Height)
	}
	if err := sp.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := []byte{30, 20, 10, 255}
	if !bytes.Equal(sp.Pixels[:4], want) {
		t.Errorf("first pixel = %v, want %v", sp.Pixels[:4], want)
	}
}

func TestAddImageEmpty(t *testing.T) {
	s := New()
	err := s.AddImage(1, image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	if !errors.Is(err, tilerender.ErrInvalidSprite) {
		t.Errorf("err = %v, want ErrInvalidSprite", err)
	}
}

func TestAddSpriteRejectsBadData(t *testing.T) {
	s := New()
	err := s.AddSprite(tilerender.Sprite{ID: 1, Width: 2, Height: 2, Pixels: make([]byte, 3)})
	if !errors.Is(err, tilerender.ErrInvalidSprite) {
		t.Errorf("err = %v, want ErrInvalidSprite", err)
	}
	if s.Len() != 0 {
		t.Error("invalid sprite was stored")
	}
}

func TestLookupMiss(t *testing.T) {
	s := New()
	if _, ok := s.Lookup(42); ok {
		t.Error("empty sheet returned a sprite")
	}
	st := s.Stats()
	if st.Lookups != 1 || st.Misses != 1 {
		t.Errorf("stats = %+v, want 1 lookup and 1 miss", st)
	}
}

func TestAlias(t *testing.T) {
	s := New()
	if err := s.Alias(100, 1); !errors.Is(err, ErrUnknownSprite) {
		t.Errorf("alias to missing: err = %v, want ErrUnknownSprite", err)
	}

	_ = s.AddImage(1, solid(1, 1, color.NRGBA{A: 255}))
	if err := s.Alias(100, 1); err != nil {
		t.Fatalf("Alias: %v", err)
	}
	sp, ok := s.Lookup(100)
	if !ok {
		t.Fatal("alias lookup missed")
	}
	if sp.ID != 1 {
		t.Errorf("alias sprite id = %d, want 1", sp.ID)
	}

	// Storing an image under the alias id replaces the alias.
	_ = s.AddImage(100, solid(1, 1, color.NRGBA{R: 1, A: 255}))
	if sp, _ := s.Lookup(100); sp.ID != 100 {
		t.Errorf("after AddImage, id = %d, want 100", sp.ID)
	}
}

func TestRemove(t *testing.T) {
	s := New()
	_ = s.AddImage(1, solid(1, 1, color.NRGBA{A: 255}))
	s.Remove(1)
	if _, ok := s.Lookup(1); ok {
		t.Error("removed sprite still found")
	}
}

func TestLoadPNG(t *testing.T) {
	// 3x2 cells of 4px; cell (1,0) stays transparent.
	sheet := image.NewNRGBA(image.Rect(0, 0, 12, 8))
	for y := range 8 {
		for x := range 12 {
			if y < 4 && x >= 4 && x < 8 {
				continue
			}
			sheet.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, sheet); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	s := New()
	n, err := s.LoadPNG(&buf, 4, 10)
	if err != nil {
		t.Fatalf("LoadPNG: %v", err)
	}
	if n != 5 {
		t.Errorf("added %d sprites, want 5", n)
	}
	if _, ok := s.Lookup(11); ok {
		t.Error("transparent cell was stored")
	}

	// Cell 5 (row 1, col 2) starts at pixel (8, 4).
	sp, ok := s.Lookup(15)
	if !ok {
		t.Fatal("Lookup(15) missed")
	}
	want := []byte{0, 4, 8, 255}
	if !bytes.Equal(sp.Pixels[:4], want) {
		t.Errorf("cell 15 first pixel = %v, want %v", sp.Pixels[:4], want)
	}
}

func TestLoadPNGErrors(t *testing.T) {
	s := New()
	if _, err := s.LoadPNG(bytes.NewReader([]byte("not a png")), 4, 0); err == nil {
		t.Error("expected decode error")
	}
	if _, err := s.AddSheet(solid(4, 4, color.NRGBA{}), 0, 0); !errors.Is(err, ErrCellSize) {
		t.Errorf("cell 0: err = %v, want ErrCellSize", err)
	}
	if _, err := s.AddSheet(solid(4, 4, color.NRGBA{}), 8, 0); !errors.Is(err, ErrCellSize) {
		t.Errorf("cell larger than sheet: err = %v, want ErrCellSize", err)
	}
}

func TestStatsCompression(t *testing.T) {
	s := New()
	_ = s.AddImage(1, solid(32, 32, color.NRGBA{R: 200, G: 100, B: 50, A: 255}))
	st := s.Stats()
	if st.Sprites != 1 || st.RawBytes != 32*32*4 {
		t.Errorf("stats = %+v", st)
	}
	if st.StoredBytes >= st.RawBytes {
		t.Errorf("solid sprite not compressed: %d >= %d bytes", st.StoredBytes, st.RawBytes)
	}
}

func TestLookupSatisfiesSpriteLookup(t *testing.T) {
	var _ tilerender.SpriteLookup = New().Lookup
}
