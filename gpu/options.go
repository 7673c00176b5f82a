//go:build !nogpu

package gpu

import "github.com/gogpu/tilerender/texcache"

// Option configures a Backend or Resources.
type Option func(*config)

type config struct {
	cacheCapacity     int
	placeholderLabels bool
	width, height     int

	// atlasCell > 0 enables the sprite atlas.
	atlasCell    int
	atlasColumns int
}

func defaultConfig() config {
	return config{
		cacheCapacity:     texcache.DefaultCapacity,
		placeholderLabels: true,
		width:             1,
		height:            1,
	}
}

func newConfig(opts []Option) config {
	c := defaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithCacheCapacity sets the number of sprite textures kept resident.
// Values <= 0 keep the default of 10,000.
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

// WithAtlas packs sprites of at most cell×cell pixels into one texture of
// columns×columns cells, so most frames draw all sprites in a single run.
// Larger sprites, and sprites arriving once every cell is in use this
// frame, fall back to their own textures. columns must be at least 2; cell
// 0 holds white and tints placeholder fills. If the atlas cannot be created
// the backend runs without it.
func WithAtlas(cell, columns int) Option {
	return func(c *config) {
		c.atlasCell, c.atlasColumns = cell, columns
	}
}

// WithViewport sets the initial viewport size. Dimensions below 1 are
// clamped to 1.
func WithViewport(width, height int) Option {
	return func(c *config) {
		c.width, c.height = clampViewport(width, height)
	}
}

func clampViewport(w, h int) (int, int) {
	return max(1, w), max(1, h)
}
