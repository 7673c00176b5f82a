package main

import (
	"testing"

	"github.com/gogpu/tilerender/software"
)

func TestTileMapRender(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 128, 96
	cfg.Map.Missing = 0.5

	sheet, err := loadSprites(cfg)
	if err != nil {
		t.Fatalf("loadSprites: %v", err)
	}
	if sheet.Len() != cfg.Map.Sprites {
		t.Errorf("sheet has %d sprites, want %d", sheet.Len(), cfg.Map.Sprites)
	}

	b := software.NewSize(cfg.Width, cfg.Height, sheet.Lookup)
	if err := b.Init(); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	m := newTileMap(cfg)
	if m.cols != 4 || m.rows != 3 {
		t.Fatalf("grid = %dx%d, want 4x3", m.cols, m.rows)
	}
	m.render(b, 0)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	objects := 0
	for _, id := range m.objects {
		if id != 0 {
			objects++
		}
	}
	st := b.Stats()
	if st.Sprites+st.Placeholders != objects {
		t.Errorf("sprites %d + placeholders %d, want %d objects", st.Sprites, st.Placeholders, objects)
	}
	if st.TextCalls < 2 {
		t.Errorf("got %d text calls, want at least 2", st.TextCalls)
	}
}

func TestTileMapDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	a, b := newTileMap(cfg), newTileMap(cfg)
	for i := range a.objects {
		if a.objects[i] != b.objects[i] {
			t.Fatalf("tile %d differs: %d vs %d", i, a.objects[i], b.objects[i])
		}
	}
}

func TestGenerateSprite(t *testing.T) {
	img := generateSprite(3, 32)
	if img.Bounds().Dx() != 32 {
		t.Fatalf("size = %v", img.Bounds())
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Error("corner should be transparent")
	}
	if _, _, _, a := img.At(16, 16).RGBA(); a == 0 {
		t.Error("center should be opaque")
	}
}
