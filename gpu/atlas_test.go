//go:build !nogpu

package gpu

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/tilerender"
	"github.com/gogpu/tilerender/batch"
	"github.com/gogpu/tilerender/gpucore"
)

func TestAtlasRegions(t *testing.T) {
	dev := newFakeDevice()
	a, err := newAtlas(dev, 16, 4)
	if err != nil {
		t.Fatalf("newAtlas() error = %v", err)
	}
	if len(dev.updates) != 1 || dev.updates[0] != (textureUpdate{a.Texture(), 0, 0, 16, 16}) {
		t.Fatalf("white cell upload = %+v", dev.updates)
	}

	r, ok := a.Place(testSprite(1, 8, 8))
	if !ok {
		t.Fatal("Place() failed")
	}
	if want := (batch.Region{0.25, 1, 0.375, 0.875}); r != want {
		t.Errorf("region = %v, want %v", r, want)
	}
	if got := dev.updates[1]; got != (textureUpdate{a.Texture(), 16, 0, 8, 8}) {
		t.Errorf("sprite upload = %+v", got)
	}

	if _, ok := a.Place(testSprite(1, 8, 8)); !ok || len(dev.updates) != 2 {
		t.Errorf("second Place() uploaded again: %+v", dev.updates)
	}

	for id := tilerender.SpriteID(2); id <= 4; id++ {
		a.Place(testSprite(id, 16, 16))
	}
	// Cell 4 starts the second row.
	if got := dev.updates[len(dev.updates)-1]; got.x != 0 || got.y != 16 {
		t.Errorf("fourth sprite at (%d, %d), want (0, 16)", got.x, got.y)
	}

	w := a.WhiteRegion()
	const half = float32(0.5) / 64
	if w != (batch.Region{half, 1 - half, half, 1 - half}) {
		t.Errorf("WhiteRegion() = %v", w)
	}
}

func TestAtlasRejectsBadGrid(t *testing.T) {
	for _, tt := range []struct{ cell, columns int }{{0, 4}, {16, 1}, {-8, 8}} {
		if _, err := newAtlas(newFakeDevice(), tt.cell, tt.columns); !errors.Is(err, ErrAtlas) {
			t.Errorf("newAtlas(%d, %d) error = %v, want ErrAtlas", tt.cell, tt.columns, err)
		}
	}
}

func TestAtlasDrawsSpritesAndPlaceholdersInOneRun(t *testing.T) {
	lookup := lookupOf(testSprite(1, 16, 16), testSprite(2, 16, 16), testSprite(3, 16, 16))
	b, dev := newTestBackend(t, lookup, WithAtlas(16, 4))
	atlas := b.Resources().Atlas()
	if atlas == nil {
		t.Fatal("atlas not created")
	}

	b.Clear(blackColor)
	b.DrawTileSprite(0, 0, 16, 1)
	b.DrawTileSprite(16, 0, 16, 99) // missing
	b.DrawTileSprite(32, 0, 16, 2)
	b.DrawTileSprite(48, 0, 16, 3)
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}

	if len(dev.draws) != 2 {
		t.Fatalf("draws = %+v, want placeholder border + one sprite run", dev.draws)
	}
	if d := dev.draws[0]; d.mode != gpucore.Lines || d.count != 8 {
		t.Errorf("first draw = %+v, want the placeholder border", d)
	}
	run := dev.draws[1]
	if run.texture != atlas.Texture() || run.count != 4*batch.VerticesPerQuad {
		t.Errorf("sprite run = %+v, want 4 quads from texture %d", run, atlas.Texture())
	}
	s := b.Stats()
	if s.Sprites != 3 || s.AtlasSprites != 3 || s.Placeholders != 1 || s.SpriteRuns != 1 {
		t.Errorf("Stats() = %+v", s)
	}
	if b.Resources().Cache().Len() != 0 {
		t.Error("atlas sprites must not get their own textures")
	}
}

func TestAtlasFullFallsBackToOwnTexture(t *testing.T) {
	var sprites []tilerender.Sprite
	for id := tilerender.SpriteID(1); id <= 4; id++ {
		sprites = append(sprites, testSprite(id, 8, 8))
	}
	// 2×2 cells: white plus three sprite cells, two of them resident.
	b, dev := newTestBackend(t, lookupOf(sprites...), WithAtlas(8, 2))
	atlas := b.Resources().Atlas()

	b.Clear(blackColor)
	for i, s := range sprites {
		b.DrawTileSprite(i*8, 0, 8, s.ID)
	}
	if atlas.Cache().Pending() != 1 {
		t.Errorf("Pending() = %d, want sprite 1's cell held until Flush", atlas.Cache().Pending())
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}

	if s := b.Stats(); s.Sprites != 4 || s.AtlasSprites != 3 {
		t.Errorf("Stats() = %+v, want 3 of 4 sprites from the atlas", s)
	}
	if len(dev.draws) != 2 || dev.draws[0].texture != atlas.Texture() || dev.draws[0].count != 18 {
		t.Fatalf("draws = %+v", dev.draws)
	}
	if dev.textures[dev.draws[1].texture].Label != "sprite_4" {
		t.Errorf("fallback draw uses %+v", dev.textures[dev.draws[1].texture])
	}

	// The cell freed at the end of the frame takes sprite 4 next time.
	dev.draws = nil
	b.Clear(blackColor)
	b.DrawTileSprite(0, 0, 8, 4)
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if s := b.Stats(); s.AtlasSprites != 1 {
		t.Errorf("second frame Stats() = %+v, want sprite 4 from the atlas", s)
	}
	if keys := atlas.Cache().Keys(); !slices.Equal(keys, []tilerender.SpriteID{3, 4}) {
		t.Errorf("atlas keys = %v, want [3 4]", keys)
	}
}

func TestSpriteLargerThanCellUsesOwnTexture(t *testing.T) {
	b, dev := newTestBackend(t, lookupOf(testSprite(1, 16, 16)), WithAtlas(8, 4))

	b.Clear(blackColor)
	b.DrawTileSprite(0, 0, 32, 1)
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if s := b.Stats(); s.Sprites != 1 || s.AtlasSprites != 0 {
		t.Errorf("Stats() = %+v", s)
	}
	if b.Resources().Atlas().Cache().Stats().Misses != 0 {
		t.Error("oversized sprite must not reach the atlas cache")
	}
	if dev.textures[dev.draws[0].texture].Label != "sprite_1" {
		t.Errorf("draw uses %+v, want sprite_1", dev.textures[dev.draws[0].texture])
	}
}

func TestAtlasInvalidPixelsSkipped(t *testing.T) {
	bad := tilerender.Sprite{ID: 3, Width: 4, Height: 4, Pixels: make([]byte, 10)}
	b, dev := newTestBackend(t, lookupOf(bad), WithAtlas(8, 2))

	b.Clear(blackColor)
	b.DrawTileSprite(0, 0, 32, 3)
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(dev.draws) != 0 || b.Stats().SkippedSprites != 1 {
		t.Errorf("draws = %+v, stats = %+v", dev.draws, b.Stats())
	}
}

func TestAtlasFailureFallsBackToTextures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeDevice)
	}{
		{"texture", func(d *fakeDevice) { d.failTexture["atlas"] = errors.New("out of memory") }},
		{"white cell", func(d *fakeDevice) { d.failUpdate = errors.New("device lost") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDevice()
			tt.setup(dev)
			b := New(dev, lookupOf(testSprite(1, 4, 4)), WithAtlas(8, 2))
			mustInit(t, b)
			defer b.Close()

			if b.Resources().Atlas() != nil {
				t.Fatal("atlas should be disabled")
			}
			for id, desc := range dev.textures {
				if desc.Label == "atlas" {
					t.Errorf("atlas texture %d leaked", id)
				}
			}

			b.Clear(blackColor)
			b.DrawTileSprite(0, 0, 32, 1)
			if err := b.Flush(); err != nil {
				t.Fatal(err)
			}
			if s := b.Stats(); s.Sprites != 1 || s.AtlasSprites != 0 {
				t.Errorf("Stats() = %+v", s)
			}
		})
	}
}

func TestDropTexturesEmptiesAtlas(t *testing.T) {
	b, dev := newTestBackend(t, lookupOf(testSprite(1, 8, 8)), WithAtlas(8, 4))
	atlas := b.Resources().Atlas()

	b.Clear(blackColor)
	b.DrawTileSprite(0, 0, 8, 1)
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	uploads := len(dev.updates)

	b.Resources().DropTextures()
	if atlas.Cache().Len() != 0 {
		t.Fatalf("atlas still holds %v", atlas.Cache().Keys())
	}
	b.Clear(blackColor)
	b.DrawTileSprite(0, 0, 8, 1)
	if len(dev.updates) != uploads+1 {
		t.Errorf("sprite not uploaded again after DropTextures")
	}
}

func TestCloseReleasesAtlas(t *testing.T) {
	b, dev := newTestBackend(t, nil, WithAtlas(8, 2))
	tex := b.Resources().Atlas().Texture()
	b.Close()
	if !slices.Contains(dev.destroyed, tex) {
		t.Errorf("atlas texture %d not destroyed (destroyed %v)", tex, dev.destroyed)
	}
}
