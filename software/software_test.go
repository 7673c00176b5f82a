package software

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/draw"

	"github.com/gogpu/tilerender"
)

// quadSprite is a 2×2 BGRA sprite: red, green / blue, white.
func quadSprite(id tilerender.SpriteID) tilerender.Sprite {
	return tilerender.Sprite{ID: id, Width: 2, Height: 2, Pixels: []byte{
		0, 0, 255, 255, 0, 255, 0, 255,
		255, 0, 0, 255, 255, 255, 255, 255,
	}}
}

func lookupOf(sprites ...tilerender.Sprite) tilerender.SpriteLookup {
	m := make(map[tilerender.SpriteID]tilerender.Sprite)
	for _, s := range sprites {
		m[s.ID] = s
	}
	return func(id tilerender.SpriteID) (tilerender.Sprite, bool) {
		s, ok := m[id]
		return s, ok
	}
}

func rgbaOf(c tilerender.Color) color.RGBA {
	return color.RGBAModel.Convert(c.NRGBA()).(color.RGBA)
}

func newTestBackend(t *testing.T, w, h int, lookup tilerender.SpriteLookup, opts ...Option) *Backend {
	t.Helper()
	b := NewSize(w, h, lookup, opts...)
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestName(t *testing.T) {
	if got := NewSize(1, 1, nil).Name(); got != "software" {
		t.Errorf("Name() = %q", got)
	}
}

func TestClearAndTileColor(t *testing.T) {
	b := newTestBackend(t, 16, 16, nil)
	b.Clear(tilerender.RGB(10, 20, 30))
	b.DrawTileColor(4, 4, 4, tilerender.RGB(200, 0, 0))
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}

	img := b.Image()
	if got := img.RGBAAt(0, 0); got != (color.RGBA{10, 20, 30, 255}) {
		t.Errorf("background = %v", got)
	}
	if got := img.RGBAAt(5, 5); got != (color.RGBA{200, 0, 0, 255}) {
		t.Errorf("tile = %v", got)
	}
	if got := img.RGBAAt(8, 8); got != (color.RGBA{10, 20, 30, 255}) {
		t.Errorf("pixel past the tile = %v", got)
	}
}

func TestSpriteScaledNearest(t *testing.T) {
	b := newTestBackend(t, 8, 8, lookupOf(quadSprite(3)))
	b.Clear(tilerender.Black)
	b.DrawTileSprite(0, 0, 8, 3)
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}

	img := b.Image()
	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{1, 1, color.RGBA{255, 0, 0, 255}},
		{6, 1, color.RGBA{0, 255, 0, 255}},
		{1, 6, color.RGBA{0, 0, 255, 255}},
		{6, 6, color.RGBA{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		if got := img.RGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel (%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
	if s := b.Stats(); s.Sprites != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestPlaceholder(t *testing.T) {
	b := newTestBackend(t, 64, 64, nil)
	b.Clear(tilerender.Black)
	b.DrawTileSprite(0, 0, 32, 77)
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}

	img := b.Image()
	if got, want := img.RGBAAt(16, 16), rgbaOf(tilerender.PlaceholderColor(77)); got != want {
		t.Errorf("fill = %v, want %v", got, want)
	}
	if got, want := img.RGBAAt(0, 0), rgbaOf(tilerender.PlaceholderBorderColor(77)); got != want {
		t.Errorf("border = %v, want %v", got, want)
	}
	calls := b.TextCalls()
	if len(calls) != 1 || calls[0].Text != "77" {
		t.Errorf("TextCalls() = %+v", calls)
	}
	if b.Stats().Placeholders != 1 {
		t.Errorf("Placeholders = %d", b.Stats().Placeholders)
	}
}

func TestSubmissionOrderPreserved(t *testing.T) {
	b := newTestBackend(t, 8, 8, nil)
	b.Clear(tilerender.White)
	b.DrawShadeOverlay(0, 0, 8, 8, 128)
	b.DrawTileColor(0, 0, 4, tilerender.RGB(0, 200, 0))
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}

	img := b.Image()
	if got := img.RGBAAt(1, 1); got != (color.RGBA{0, 200, 0, 255}) {
		t.Errorf("tile drawn after shade = %v, want it on top", got)
	}
	shaded := img.RGBAAt(6, 6)
	if shaded.R < 120 || shaded.R > 135 || shaded.R != shaded.G {
		t.Errorf("shaded white = %v, want about half gray", shaded)
	}
}

func TestGridLineAndRect(t *testing.T) {
	b := newTestBackend(t, 16, 16, nil)
	b.Clear(tilerender.Black)
	b.DrawGridLine(0, 10, 9, 10, tilerender.White)
	b.DrawGridRect(2, 2, 4, 4, tilerender.White)

	img := b.Image()
	white := color.RGBA{255, 255, 255, 255}
	for x := 0; x <= 9; x++ {
		if img.RGBAAt(x, 10) != white {
			t.Fatalf("line pixel (%d, 10) not painted", x)
		}
	}
	if img.RGBAAt(10, 10) == white {
		t.Error("line painted past its endpoint")
	}
	for _, p := range []image.Point{{2, 2}, {6, 2}, {6, 6}, {2, 6}, {4, 2}, {2, 4}} {
		if img.RGBAAt(p.X, p.Y) != white {
			t.Errorf("outline pixel %v not painted", p)
		}
	}
	if img.RGBAAt(4, 4) == white {
		t.Error("outline filled its interior")
	}
}

func TestDegenerateGridRectStaysInside(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		painted []image.Point
	}{
		{"zero width", 0, 3, []image.Point{{4, 4}, {4, 5}, {4, 6}, {4, 7}}},
		{"zero height", 3, 0, []image.Point{{4, 4}, {5, 4}, {6, 4}, {7, 4}}},
		{"single pixel", 0, 0, []image.Point{{4, 4}}},
		{"negative", -2, 3, nil},
		{"one wide", 1, 2, []image.Point{{4, 4}, {5, 4}, {4, 6}, {5, 6}, {4, 5}, {5, 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBackend(t, 12, 12, nil)
			b.Clear(tilerender.Black)
			b.DrawGridRect(4, 4, tt.w, tt.h, tilerender.White)

			want := make(map[image.Point]bool)
			for _, p := range tt.painted {
				want[p] = true
			}
			img := b.Image()
			for y := range 12 {
				for x := range 12 {
					p := image.Pt(x, y)
					if got := img.RGBAAt(x, y).R == 255; got != want[p] {
						t.Errorf("pixel %v painted = %v, want %v", p, got, want[p])
					}
				}
			}
		})
	}
}

// countingScaler draws nearest-neighbor and counts calls.
type countingScaler struct{ calls int }

func (s *countingScaler) Scale(dst draw.Image, dr image.Rectangle, src image.Image, sr image.Rectangle, op draw.Op, opts *draw.Options) {
	s.calls++
	draw.NearestNeighbor.Scale(dst, dr, src, sr, op, opts)
}

func TestWithScaler(t *testing.T) {
	sc := &countingScaler{}
	b := newTestBackend(t, 8, 8, lookupOf(quadSprite(1)), WithScaler(sc))
	b.Clear(tilerender.Black)
	b.DrawTileSprite(0, 0, 4, 1)
	b.DrawTileSprite(4, 4, 4, 1)
	if sc.calls != 2 {
		t.Errorf("scaler calls = %d, want 2", sc.calls)
	}
	if got := b.Image().RGBAAt(0, 0); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("top-left pixel = %v, want red", got)
	}

	// nil keeps the default.
	d := NewSize(1, 1, nil, WithScaler(nil))
	if d.cfg.scaler != draw.NearestNeighbor {
		t.Error("WithScaler(nil) replaced the default scaler")
	}
}

func TestDiagonalLine(t *testing.T) {
	b := newTestBackend(t, 8, 8, nil)
	b.Clear(tilerender.Black)
	b.DrawGridLine(7, 7, 0, 0, tilerender.White)
	for i := range 8 {
		if b.Image().RGBAAt(i, i).R != 255 {
			t.Errorf("diagonal pixel (%d, %d) not painted", i, i)
		}
	}
}

func TestInvalidSpriteSkipped(t *testing.T) {
	bad := tilerender.Sprite{ID: 1, Width: 4, Height: 4, Pixels: []byte{1, 2, 3}}
	b := newTestBackend(t, 8, 8, lookupOf(bad))
	b.Clear(tilerender.Black)
	b.DrawTileSprite(0, 0, 8, 1)
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if b.Stats().Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", b.Stats().Skipped)
	}
	if b.Image().RGBAAt(2, 2) != (color.RGBA{0, 0, 0, 255}) {
		t.Error("invalid sprite painted pixels")
	}
}

func TestViewportClipsExternalTarget(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 16, 16))
	b := New(dst, nil)
	b.SetViewport(8, 8)
	b.Clear(tilerender.White)
	b.DrawTileColor(0, 0, 16, tilerender.RGB(255, 0, 0))

	if dst.RGBAAt(12, 12).A != 0 {
		t.Error("painted outside the viewport")
	}
	if dst.RGBAAt(4, 4) != (color.RGBA{255, 0, 0, 255}) {
		t.Error("did not paint inside the viewport")
	}
}

func TestViewportResizesOwnedTarget(t *testing.T) {
	b := NewSize(4, 4, nil)
	b.SetViewport(10, 6)
	if got := b.Image().Bounds(); got != image.Rect(0, 0, 10, 6) {
		t.Errorf("Image().Bounds() = %v", got)
	}
}

func TestTextCompositing(t *testing.T) {
	b := newTestBackend(t, 64, 32, nil, WithTextCompositing(true))
	b.Clear(tilerender.Black)
	b.DrawText(2, 20, "88", tilerender.White)
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}

	lit := 0
	for _, v := range b.Image().Pix {
		if v == 255 {
			lit++
		}
	}
	// Alpha is 255 everywhere, so anything above one byte per pixel is text.
	if lit <= 64*32 {
		t.Error("text was not composited")
	}
}

func TestFlushAfterClose(t *testing.T) {
	b := NewSize(4, 4, nil)
	b.Close()
	if err := b.Flush(); !errors.Is(err, tilerender.ErrClosed) {
		t.Errorf("Flush() error = %v, want ErrClosed", err)
	}
}
