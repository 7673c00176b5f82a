//go:build !nogpu

// Package gpu implements the batched tile backend on top of a
// gpucore.Device.
//
// Draw calls accumulate into a batch.Batch. Flush binds the shared program
// and vertex layout once, then issues one draw call for the color stream,
// one for the line stream, and one per sprite run:
//
//	color quads  -> white texture, triangles
//	line stream  -> white texture, lines
//	sprite runs  -> run texture,   triangles (submission order)
//
// With WithAtlas, sprites that fit a cell share one atlas texture and
// placeholder fills move into the sprite runs as tinted white cells, so a
// typical frame has a single sprite run.
//
// The category order is fixed. Within a frame all flat quads (tile colors,
// placeholder fills, shade overlays) are drawn first, then all lines, then
// all sprites, regardless of the order the calls were made in. Callers that
// need a shade or grid drawn over sprites must flush between the two passes,
// or use the software backend, which paints in exact submission order.
//
// Importing this package registers the "gpu" backend:
//
//	import _ "github.com/gogpu/tilerender/gpu"
package gpu

import (
	"github.com/gogpu/tilerender"
	"github.com/gogpu/tilerender/backend"
)

func init() {
	backend.Register(backend.GPU, func(cfg backend.Config) tilerender.Backend {
		opts := []Option{
			WithViewport(cfg.Width, cfg.Height),
			WithCacheCapacity(cfg.CacheCapacity),
		}
		if cfg.AtlasCell > 0 {
			opts = append(opts, WithAtlas(cfg.AtlasCell, cfg.AtlasColumns))
		}
		return New(cfg.Device, cfg.Lookup, opts...)
	})
}
