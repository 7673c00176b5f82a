package tilerender

import "strconv"

// Multipliers spreading consecutive ids across the color space.
const (
	placeholderMulR = 2654435761
	placeholderMulG = 2246822519
	placeholderMulB = 3266489917
)

// PlaceholderLabelMinSize is the smallest tile size that gets an id label.
const PlaceholderLabelMinSize = 12

// PlaceholderColor returns the stand-in color for a sprite id the lookup
// could not resolve. The color is stable per id and every channel lies in
// [80, 219], so placeholders are never black or white.
func PlaceholderColor(id SpriteID) Color {
	v := uint32(id) //nolint:gosec // only the low 32 bits select the color
	return Color{
		R: placeholderChannel(v * placeholderMulR),
		G: placeholderChannel(v * placeholderMulG),
		B: placeholderChannel(v * placeholderMulB),
		A: 255,
	}
}

func placeholderChannel(h uint32) uint8 {
	return uint8(80 + (h&0xFF)%140)
}

// PlaceholderBorderColor is PlaceholderColor darkened by 60 per channel.
func PlaceholderBorderColor(id SpriteID) Color {
	c := PlaceholderColor(id)
	return Color{R: darken(c.R, 60), G: darken(c.G, 60), B: darken(c.B, 60), A: 255}
}

func darken(v, by uint8) uint8 {
	if v < by {
		return 0
	}
	return v - by
}

// PlaceholderLabel returns the overlay text call labelling a placeholder
// tile, and false when the tile is too small to carry one.
func PlaceholderLabel(x, y, size int, id SpriteID) (TextCall, bool) {
	if size < PlaceholderLabelMinSize {
		return TextCall{}, false
	}
	n := int64(id)
	if n < 0 {
		n = -n
	}
	return TextCall{
		X:     x + 1,
		Y:     y + size - 2,
		Text:  strconv.FormatInt(n, 10),
		Color: Color{255, 255, 255, 200},
	}, true
}
