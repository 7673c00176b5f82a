// Package tilerender draws the tile layer of a map editor.
//
// # Overview
//
// A frame is built in three steps: Clear, any number of Draw* calls that only
// accumulate work, and Flush, which uploads the accumulated geometry and
// issues the draw calls. One Flush is one frame.
//
//	b, err := backend.Open(backend.Config{Lookup: sheet.Lookup, Width: 800, Height: 600})
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	b.Clear(tilerender.RGB(16, 16, 24))
//	b.DrawTileSprite(0, 0, 32, 4526)
//	b.DrawGridRect(0, 0, 32, 32, tilerender.RGBA(255, 255, 255, 40))
//	if err := b.Flush(); err != nil {
//	    return err
//	}
//	for _, tc := range b.TextCalls() {
//	    // hand to the overlay compositor
//	}
//
// # Sprites
//
// Sprites are resolved on demand through a [SpriteLookup]. A sprite the
// lookup cannot resolve is drawn as a placeholder: a solid quad whose color
// is derived from the id ([PlaceholderColor]), a darker outline, and the id
// as an overlay label.
//
// # Architecture
//
//   - tilerender: drawing contract, colors, sprites, logger
//   - texcache: LRU residency of uploaded sprite textures
//   - batch: vertex streams and texture runs
//   - gpucore: device abstraction the batched backend draws through
//   - gpu: batched backend over a gpucore.Device
//   - software: immediate backend over an *image.RGBA
//   - backend: registry and fallback selection
//   - device/opengl, device/wgpu: gpucore.Device implementations
//   - overlay, spritesheet: text compositing and sprite sources
package tilerender
