// Package overlay composites buffered text calls onto a rendered frame.
//
// Tile backends never rasterize text themselves. After Flush the caller
// retrieves the frame's text calls and hands them to a Compositor together
// with the frame image.
package overlay

import (
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/tilerender"
)

// Compositor draws text calls with a fixed font face.
type Compositor struct {
	face font.Face
}

// New returns a compositor using face. A nil face selects the built-in 7×13
// bitmap face.
func New(face font.Face) *Compositor {
	if face == nil {
		face = basicfont.Face7x13
	}
	return &Compositor{face: face}
}

// Face returns the face text is drawn with.
func (c *Compositor) Face() font.Face { return c.face }

// Draw renders calls onto dst in order. Each call's (X, Y) is the baseline
// origin of its first glyph.
func (c *Compositor) Draw(dst draw.Image, calls []tilerender.TextCall) {
	d := font.Drawer{Dst: dst, Face: c.face}
	for _, tc := range calls {
		if tc.Text == "" || tc.Color.A == 0 {
			continue
		}
		d.Src = image.NewUniform(tc.Color.NRGBA())
		d.Dot = fixed.P(tc.X, tc.Y)
		d.DrawString(tc.Text)
	}
}

// Bounds returns the pixel rectangle a call covers.
func (c *Compositor) Bounds(tc tilerender.TextCall) image.Rectangle {
	b, _ := font.BoundString(c.face, tc.Text)
	origin := fixed.P(tc.X, tc.Y)
	return image.Rect(
		(origin.X + b.Min.X).Floor(),
		(origin.Y + b.Min.Y).Floor(),
		(origin.X + b.Max.X).Ceil(),
		(origin.Y + b.Max.Y).Ceil(),
	)
}
