// Package backend selects a tile rendering backend at runtime.
//
// Backends register a factory under a name. The software backend is always
// registered; the batched GPU backend registers itself when its package is
// imported:
//
//	import _ "github.com/gogpu/tilerender/gpu"
//
// # Backend Selection
//
// Use Open to build and initialize the best available backend. When a
// backend fails to initialize (no device, shader compile error, ...) it is
// closed and the next one in priority order is tried:
//
//	b, err := backend.Open(backend.Config{
//		Lookup: sheet.Lookup,
//		Width:  800,
//		Height: 600,
//		Device: dev,           // gpucore.Device for "gpu"
//		Target: frame,         // *image.RGBA for "software"
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
// Or request specific backends in order:
//
//	b, err := backend.Open(cfg, backend.Software)
//
// # Available Backends
//
// - "gpu": batched rendering through a gpucore.Device
// - "software": immediate rendering into an *image.RGBA (always available)
package backend
