//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/tilerender"
	"github.com/gogpu/tilerender/batch"
	"github.com/gogpu/tilerender/gpucore"
)

// Name is the registry name of the batched backend.
const Name = "gpu"

// FrameStats describes the last flushed frame.
type FrameStats struct {
	DrawCalls      int
	Vertices       int
	SpriteRuns     int
	Sprites        int
	Placeholders   int
	SkippedSprites int
	TextCalls      int

	// AtlasSprites counts the sprites drawn from the atlas.
	AtlasSprites int
}

// String returns a human-readable summary.
func (s FrameStats) String() string {
	return fmt.Sprintf("Frame[%d draws, %d vertices, %d runs, %d sprites, %d placeholders, %d skipped]",
		s.DrawCalls, s.Vertices, s.SpriteRuns, s.Sprites, s.Placeholders, s.SkippedSprites)
}

// opaque is the neutral sprite tint.
var opaque = [4]float32{1, 1, 1, 1}

// Backend is the batched tile backend. It implements tilerender.Backend.
//
// A Backend is used from a single goroutine, the one owning the graphics
// context.
type Backend struct {
	device gpucore.Device
	res    *Resources
	// ownsResources is false when res was supplied by the caller.
	ownsResources bool

	lookup tilerender.SpriteLookup
	cfg    config

	batch     *batch.Batch
	textCalls []tilerender.TextCall
	frame     FrameStats
	last      FrameStats
	scratch   []byte
	closed    bool
}

var _ tilerender.Backend = (*Backend)(nil)

// New creates a backend that owns its resources. They are created by Init
// and released by Close.
func New(device gpucore.Device, lookup tilerender.SpriteLookup, opts ...Option) *Backend {
	return &Backend{
		device:        device,
		ownsResources: true,
		lookup:        lookup,
		cfg:           newConfig(opts),
		batch:         batch.New(),
	}
}

// NewShared creates a ready-to-use backend drawing with resources owned by
// the caller. Close leaves the resources alive, so many short-lived
// backends can share one texture cache.
func NewShared(res *Resources, lookup tilerender.SpriteLookup, opts ...Option) *Backend {
	b := New(res.Device(), lookup, opts...)
	b.res = res
	b.ownsResources = false
	return b
}

// Name returns "gpu".
func (b *Backend) Name() string { return Name }

// Init creates the pipeline resources. Errors are fatal for this backend.
func (b *Backend) Init() error {
	if b.closed {
		return tilerender.ErrClosed
	}
	if b.res != nil {
		return nil
	}
	res, err := newResources(b.device, b.cfg)
	if err != nil {
		return err
	}
	b.res = res
	b.device.SetViewport(b.cfg.width, b.cfg.height)
	return nil
}

// Close releases the backend. Owned resources are destroyed.
func (b *Backend) Close() {
	if b.closed {
		return
	}
	b.closed = true
	if b.ownsResources && b.res != nil {
		b.res.Close()
	}
	b.res = nil
	b.batch.Reset()
	b.textCalls = nil
}

// Resources returns the pipeline resources, or nil before Init.
func (b *Backend) Resources() *Resources { return b.res }

// Stats returns statistics of the last flushed frame.
func (b *Backend) Stats() FrameStats { return b.last }

// SetViewport sets the target size used to build the projection.
func (b *Backend) SetViewport(width, height int) {
	b.cfg.width, b.cfg.height = clampViewport(width, height)
}

// Viewport returns the current target size.
func (b *Backend) Viewport() (width, height int) {
	return b.cfg.width, b.cfg.height
}

// Clear starts a new frame: the batch and text calls are emptied and the
// target is cleared to c.
func (b *Backend) Clear(c tilerender.Color) {
	b.batch.Reset()
	b.textCalls = b.textCalls[:0]
	b.frame = FrameStats{}
	if b.res == nil {
		return
	}
	b.device.Clear(c.Normalized())
}

// DrawTileColor records a size×size solid square.
func (b *Backend) DrawTileColor(x, y, size int, c tilerender.Color) {
	b.batch.AddColorRect(x, y, size, size, c)
}

// DrawTileSprite records a sprite quad. Unknown ids draw a placeholder.
// Sprites whose texture cannot be created are skipped.
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
	if b.res == nil {
		b.frame.SkippedSprites++
		return
	}

	if at := b.res.atlas; at != nil {
		if region, ok := at.Place(sprite); ok {
			b.frame.Sprites++
			b.frame.AtlasSprites++
			b.batch.AddRegion(at.Texture(), x, y, size, size, region, opaque)
			return
		}
	}

	tex, ok := b.res.cache.GetOrCreate(sprite.ID, func() (gpucore.TextureID, error) {
		return b.createSpriteTexture(sprite)
	})
	if !ok {
		b.frame.SkippedSprites++
		return
	}
	b.frame.Sprites++
	b.batch.AddSprite(tex, x, y, size, size)
}

func (b *Backend) createSpriteTexture(s tilerender.Sprite) (gpucore.TextureID, error) {
	if err := s.Validate(); err != nil {
		return gpucore.InvalidID, err
	}
	tex, err := b.device.CreateTexture(gpucore.TextureDesc{
		Label:  fmt.Sprintf("sprite_%d", s.ID),
		Width:  s.Width,
		Height: s.Height,
		Format: gpucore.FormatBGRA8,
		Filter: gpucore.FilterNearest,
	}, s.Pixels)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("sprite %d: %w", s.ID, err)
	}
	return tex, nil
}

func (b *Backend) drawPlaceholder(x, y, size int, id tilerender.SpriteID) {
	b.frame.Placeholders++
	fill := tilerender.PlaceholderColor(id)
	if b.res != nil && b.res.atlas != nil {
		// A tinted white cell keeps the fill in the sprite run, in order
		// with the sprites around it.
		at := b.res.atlas
		b.batch.AddRegion(at.Texture(), x, y, size, size, at.WhiteRegion(), fill.Normalized())
	} else {
		b.batch.AddColorRect(x, y, size, size, fill)
	}
	b.batch.AddRectOutline(x, y, size, size, tilerender.PlaceholderBorderColor(id))
	if !b.cfg.placeholderLabels {
		return
	}
	if tc, ok := tilerender.PlaceholderLabel(x, y, size, id); ok {
		b.textCalls = append(b.textCalls, tc)
	}
}

// DrawGridLine records a line segment.
func (b *Backend) DrawGridLine(x0, y0, x1, y1 int, c tilerender.Color) {
	b.batch.AddLine(x0, y0, x1, y1, c)
}

// DrawGridRect records a rectangle outline.
func (b *Backend) DrawGridRect(x, y, w, h int, c tilerender.Color) {
	b.batch.AddRectOutline(x, y, w, h, c)
}

// DrawSelectionRect records a selection outline.
func (b *Backend) DrawSelectionRect(x, y, w, h int, c tilerender.Color) {
	b.DrawGridRect(x, y, w, h, c)
}

// DrawText records a text call.
func (b *Backend) DrawText(x, y int, text string, c tilerender.Color) {
	b.textCalls = append(b.textCalls, tilerender.TextCall{X: x, Y: y, Text: text, Color: c})
}

// DrawShadeOverlay records a black quad with the given alpha.
func (b *Backend) DrawShadeOverlay(x, y, w, h int, alpha uint8) {
	b.batch.AddColorRect(x, y, w, h, tilerender.Black.WithAlpha(alpha))
}

// DrawIndicatorIcon does nothing; indicators belong to the overlay layer.
func (b *Backend) DrawIndicatorIcon(int, int, tilerender.Indicator, int) {}

// TextCalls returns the text recorded since the last Clear.
func (b *Backend) TextCalls() []tilerender.TextCall { return b.textCalls }

// Flush draws the frame and submits it. The batch is emptied whether or not
// submission succeeds; text calls stay available until the next Clear.
func (b *Backend) Flush() error {
	if b.closed {
		return tilerender.ErrClosed
	}
	if b.res == nil {
		return tilerender.ErrNotInitialized
	}
	res, dev := b.res, b.device

	dev.SetViewport(b.cfg.width, b.cfg.height)
	dev.UseProgram(res.program)
	dev.SetProjection(projection(b.cfg.width, b.cfg.height))
	dev.BindVertexArray(res.vao)
	dev.BindBuffer(res.vbo)

	if v := b.batch.ColorVertices(); len(v) > 0 {
		b.draw(gpucore.Triangles, res.white, v)
	}
	if v := b.batch.LineVertices(); len(v) > 0 {
		b.draw(gpucore.Lines, res.white, v)
	}
	for _, run := range b.batch.Runs() {
		if len(run.Vertices) == 0 {
			continue
		}
		b.frame.SpriteRuns++
		b.draw(gpucore.Triangles, run.Texture, run.Vertices)
	}

	dev.BindTexture(gpucore.InvalidID)
	dev.BindBuffer(gpucore.InvalidID)
	dev.BindVertexArray(gpucore.InvalidID)
	dev.UseProgram(gpucore.InvalidID)

	err := dev.Submit()

	// Textures evicted while pinned by this frame can go now.
	res.endFrame()
	b.batch.Reset()
	b.frame.TextCalls = len(b.textCalls)
	b.last = b.frame
	b.frame = FrameStats{}

	if err != nil {
		tilerender.Logger().Warn("gpu: submit failed", "device", dev.Name(), "err", err)
		return fmt.Errorf("gpu: submit frame: %w", err)
	}
	return nil
}

func (b *Backend) draw(mode gpucore.Primitive, tex gpucore.TextureID, v []batch.Vertex) {
	b.scratch = batch.AppendBytes(b.scratch[:0], v)
	b.device.BufferData(b.scratch)
	b.device.BindTexture(tex)
	b.device.DrawArrays(mode, 0, len(v))
	b.frame.DrawCalls++
	b.frame.Vertices += len(v)
}

// projection maps pixel coordinates with a top-left origin to clip space.
func projection(width, height int) [16]float32 {
	return mgl32.Ortho2D(0, float32(width), float32(height), 0)
}
