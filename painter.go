package tilerender

import "fmt"

// SpriteID is the stable logical key of a sprite asset. It is independent of
// any GPU handle.
type SpriteID int

// Sprite is decoded sprite pixel data as returned by a SpriteLookup.
type Sprite struct {
	// ID keys texture residency. Lookups that alias several ids to the same
	// image return the same ID so the texture is uploaded once.
	ID SpriteID

	Width, Height int

	// Pixels holds Width*Height pixels in B, G, R, A byte order.
	Pixels []byte
}

// Validate reports whether the pixel buffer matches the declared size.
func (s Sprite) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: sprite %d has size %dx%d", ErrInvalidSprite, s.ID, s.Width, s.Height)
	}
	if want := s.Width * s.Height * 4; len(s.Pixels) != want {
		return fmt.Errorf("%w: sprite %d has %d bytes, want %d", ErrInvalidSprite, s.ID, len(s.Pixels), want)
	}
	return nil
}

// SpriteLookup resolves a sprite id to pixel data. It returns false when the
// id has no image; the caller then draws a placeholder.
type SpriteLookup func(id SpriteID) (Sprite, bool)

// TextCall is a buffered text draw. Backends never rasterize text; callers
// retrieve the calls after Flush and composite them separately.
type TextCall struct {
	X, Y  int
	Text  string
	Color Color
}

// Indicator identifies a status icon drawn over a tile.
type Indicator string

// Known indicators.
const (
	IndicatorHouse     Indicator = "house"
	IndicatorSpawn     Indicator = "spawn"
	IndicatorWaypoint  Indicator = "waypoint"
	IndicatorTeleport  Indicator = "teleport"
	IndicatorProtected Indicator = "protected"
)

// Painter is the drawing contract of the tile renderer.
//
// Draw* calls only record work. Nothing reaches the target until Flush.
// All coordinates are integer pixels with a top-left origin.
type Painter interface {
	// Clear starts a new frame and clears the target to c.
	Clear(c Color)

	// DrawTileColor draws a size×size solid square.
	DrawTileColor(x, y, size int, c Color)

	// DrawTileSprite draws the sprite scaled to a size×size square, or a
	// placeholder when the lookup has no image for id.
	DrawTileSprite(x, y, size int, id SpriteID)

	// DrawGridLine draws a one pixel line segment.
	DrawGridLine(x0, y0, x1, y1 int, c Color)

	// DrawGridRect draws a rectangle outline as four segments.
	DrawGridRect(x, y, w, h int, c Color)

	// DrawSelectionRect draws a selection outline. Same geometry as DrawGridRect.
	DrawSelectionRect(x, y, w, h int, c Color)

	// DrawText records a text call for later retrieval through TextCalls.
	DrawText(x, y int, text string, c Color)

	// DrawShadeOverlay darkens a rectangle with black at the given alpha.
	DrawShadeOverlay(x, y, w, h int, alpha uint8)

	// DrawIndicatorIcon is accepted and ignored. Indicators are drawn by the
	// overlay layer.
	DrawIndicatorIcon(x, y int, kind Indicator, size int)

	// SetViewport sets the target size in pixels used by the next Flush.
	SetViewport(width, height int)

	// Flush renders everything recorded since Clear.
	Flush() error

	// TextCalls returns the text recorded for the current frame, in
	// submission order. The slice stays valid until the next Clear.
	TextCalls() []TextCall
}

// Backend is a Painter with a lifecycle.
type Backend interface {
	Painter

	// Name returns the backend identifier (e.g. "gpu", "software").
	Name() string

	// Init allocates backend resources. Failures here are fatal for the
	// backend; callers may fall back to another one.
	Init() error

	// Close releases all backend resources. The backend must not be used
	// afterwards.
	Close()
}
