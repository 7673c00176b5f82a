// Package software implements the tile drawing contract on the CPU.
//
// Unlike the batched GPU backend, every call paints into the target image
// immediately, so the result follows exact submission order. It is the
// fallback when no GPU backend can be initialized.
package software

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/gogpu/tilerender"
	"github.com/gogpu/tilerender/overlay"
	"github.com/gogpu/tilerender/texcache"
)

// Name is the registry name of the software backend.
const Name = "software"

// Option configures a Backend.
type Option func(*config)

type config struct {
	cacheCapacity     int
	placeholderLabels bool
	compositeText     bool
	scaler            draw.Scaler
}

// WithCacheCapacity sets how many decoded sprites are kept. Values <= 0 keep
// the default.
func WithCacheCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.cacheCapacity = n
		}
	}
}

// WithPlaceholderLabels controls whether placeholder tiles record their
// sprite id as a text call. Enabled by default.
func WithPlaceholderLabels(enabled bool) Option {
	return func(c *config) {
		c.placeholderLabels = enabled
	}
}

// WithTextCompositing makes Flush draw the frame's text calls onto the
// target with the overlay compositor. The calls stay available through
// TextCalls either way.
func WithTextCompositing(enabled bool) Option {
	return func(c *config) {
		c.compositeText = enabled
	}
}

// WithScaler selects the sprite scaling filter. The default is
// nearest-neighbor, matching the GPU backend's sampling.
func WithScaler(s draw.Scaler) Option {
	return func(c *config) {
		if s != nil {
			c.scaler = s
		}
	}
}

// Stats describes the current frame.
type Stats struct {
	Sprites      int
	Placeholders int
	Skipped      int
	TextCalls    int
}

// Backend paints tiles into an *image.RGBA. It implements tilerender.Backend.
type Backend struct {
	dst     *image.RGBA
	owned   bool
	clip    image.Rectangle
	lookup  tilerender.SpriteLookup
	cfg     config
	sprites *texcache.Cache[tilerender.SpriteID, *image.NRGBA]
	overlay *overlay.Compositor
	text    []tilerender.TextCall
	frame   Stats
	last    Stats
	closed  bool
}

var _ tilerender.Backend = (*Backend)(nil)

// New creates a backend painting into dst.
func New(dst *image.RGBA, lookup tilerender.SpriteLookup, opts ...Option) *Backend {
	cfg := config{
		cacheCapacity:     texcache.DefaultCapacity,
		placeholderLabels: true,
		scaler:            draw.NearestNeighbor,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	b := &Backend{
		dst:     dst,
		clip:    dst.Bounds(),
		lookup:  lookup,
		cfg:     cfg,
		sprites: texcache.New[tilerender.SpriteID, *image.NRGBA](cfg.cacheCapacity, nil, texcache.WithLabel(Name)),
	}
	if cfg.compositeText {
		b.overlay = overlay.New(nil)
	}
	return b
}

// NewSize creates a backend painting into a new width×height image.
func NewSize(width, height int, lookup tilerender.SpriteLookup, opts ...Option) *Backend {
	width, height = max(1, width), max(1, height)
	b := New(image.NewRGBA(image.Rect(0, 0, width, height)), lookup, opts...)
	b.owned = true
	return b
}

// Name returns "software".
func (b *Backend) Name() string { return Name }

// Init is a no-op; the software backend has nothing to allocate.
func (b *Backend) Init() error {
	if b.closed {
		return tilerender.ErrClosed
	}
	return nil
}

// Close drops cached sprites.
func (b *Backend) Close() {
	if b.closed {
		return
	}
	b.closed = true
	b.sprites.Clear()
	b.text = nil
}

// Image returns the target image.
func (b *Backend) Image() *image.RGBA { return b.dst }

// Stats returns statistics of the last flushed frame.
func (b *Backend) Stats() Stats { return b.last }

// SetViewport limits painting to the top-left width×height pixels. When the
// backend allocated its own image, the image is resized instead.
func (b *Backend) SetViewport(width, height int) {
	width, height = max(1, width), max(1, height)
	r := image.Rect(0, 0, width, height)
	if b.owned && b.dst.Bounds() != r {
		b.dst = image.NewRGBA(r)
	}
	b.clip = r.Intersect(b.dst.Bounds())
}

// Clear fills the viewport with c and starts a new frame.
func (b *Backend) Clear(c tilerender.Color) {
	b.text = b.text[:0]
	b.frame = Stats{}
	draw.Draw(b.dst, b.clip, image.NewUniform(c.NRGBA()), image.Point{}, draw.Src)
}

func (b *Backend) fill(r image.Rectangle, c tilerender.Color) {
	r = r.Intersect(b.clip)
	if r.Empty() || c.A == 0 {
		return
	}
	draw.Draw(b.dst, r, image.NewUniform(c.NRGBA()), image.Point{}, draw.Over)
}

// DrawTileColor paints a size×size solid square.
func (b *Backend) DrawTileColor(x, y, size int, c tilerender.Color) {
	b.fill(image.Rect(x, y, x+size, y+size), c)
}

// DrawTileSprite paints the sprite scaled to size×size, or a placeholder.
func (b *Backend) DrawTileSprite(x, y, size int, id tilerender.SpriteID) {
	var (
		sprite tilerender.Sprite
		ok     bool
	)
	if b.lookup != nil {
		sprite, ok = b.lookup(id)
	}
	if !ok {
		b.drawPlaceholder(x, y, size, id)
		return
	}

	img, ok := b.sprites.GetOrCreate(sprite.ID, func() (*image.NRGBA, error) {
		return decodeBGRA(sprite)
	})
	if !ok {
		b.frame.Skipped++
		return
	}
	b.frame.Sprites++

	r := image.Rect(x, y, x+size, y+size)
	if !r.Overlaps(b.clip) {
		return
	}
	b.cfg.scaler.Scale(b.dst, r, img, img.Bounds(), draw.Over, nil)
}

// decodeBGRA converts sprite pixels to an NRGBA image.
func decodeBGRA(s tilerender.Sprite) (*image.NRGBA, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	if len(img.Pix) != len(s.Pixels) {
		return nil, fmt.Errorf("software: sprite %d: %w", s.ID, tilerender.ErrInvalidSprite)
	}
	for i := 0; i < len(s.Pixels); i += 4 {
		img.Pix[i+0] = s.Pixels[i+2]
		img.Pix[i+1] = s.Pixels[i+1]
		img.Pix[i+2] = s.Pixels[i+0]
		img.Pix[i+3] = s.Pixels[i+3]
	}
	return img, nil
}

func (b *Backend) drawPlaceholder(x, y, size int, id tilerender.SpriteID) {
	b.frame.Placeholders++
	b.fill(image.Rect(x, y, x+size, y+size), tilerender.PlaceholderColor(id))
	b.DrawGridRect(x, y, size, size, tilerender.PlaceholderBorderColor(id))
	if !b.cfg.placeholderLabels {
		return
	}
	if tc, ok := tilerender.PlaceholderLabel(x, y, size, id); ok {
		b.text = append(b.text, tc)
	}
}

// DrawGridLine paints a one pixel line from (x0, y0) to (x1, y1), both
// endpoints included.
func (b *Backend) DrawGridLine(x0, y0, x1, y1 int, c tilerender.Color) {
	if c.A == 0 {
		return
	}
	src := image.NewUniform(c.NRGBA())
	plot := func(x, y int) {
		p := image.Pt(x, y)
		if !p.In(b.clip) {
			return
		}
		draw.Draw(b.dst, image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))}, src, image.Point{}, draw.Over)
	}

	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	e := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// DrawGridRect paints a w×h outline. Corners are painted once. A zero
// width or height paints a single segment; negative sizes paint nothing.
func (b *Backend) DrawGridRect(x, y, w, h int, c tilerender.Color) {
	if w < 0 || h < 0 {
		return
	}
	if w == 0 || h == 0 {
		b.DrawGridLine(x, y, x+w, y+h, c)
		return
	}
	x1, y1 := x+w, y+h
	b.DrawGridLine(x, y, x1-1, y, c)
	b.DrawGridLine(x1, y, x1, y1-1, c)
	b.DrawGridLine(x1, y1, x+1, y1, c)
	b.DrawGridLine(x, y1, x, y+1, c)
}

// DrawSelectionRect paints a selection outline.
func (b *Backend) DrawSelectionRect(x, y, w, h int, c tilerender.Color) {
	b.DrawGridRect(x, y, w, h, c)
}

// DrawText records a text call.
func (b *Backend) DrawText(x, y int, text string, c tilerender.Color) {
	b.text = append(b.text, tilerender.TextCall{X: x, Y: y, Text: text, Color: c})
}

// DrawShadeOverlay darkens a rectangle with black at the given alpha.
func (b *Backend) DrawShadeOverlay(x, y, w, h int, alpha uint8) {
	b.fill(image.Rect(x, y, x+w, y+h), tilerender.Black.WithAlpha(alpha))
}

// DrawIndicatorIcon does nothing; indicators belong to the overlay layer.
func (b *Backend) DrawIndicatorIcon(int, int, tilerender.Indicator, int) {}

// TextCalls returns the text recorded since the last Clear.
func (b *Backend) TextCalls() []tilerender.TextCall { return b.text }

// Flush finishes the frame. Pixels are already in place; text is composited
// when enabled.
func (b *Backend) Flush() error {
	if b.closed {
		return tilerender.ErrClosed
	}
	if b.overlay != nil {
		b.overlay.Draw(b.dst.SubImage(b.clip).(*image.RGBA), b.text)
	}
	b.frame.TextCalls = len(b.text)
	b.last = b.frame
	b.frame = Stats{}
	b.sprites.EndFrame()
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
