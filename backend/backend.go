package backend

import (
	"errors"
	"image"

	"github.com/gogpu/tilerender"
	"github.com/gogpu/tilerender/gpucore"
)

// Backend name constants.
const (
	// GPU is the name of the batched backend (package gpu).
	GPU = "gpu"
	// Software is the name of the CPU backend (package software).
	Software = "software"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when no requested backend could be
	// created and initialized.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Config carries everything a factory may need. Backends ignore fields they
// do not use.
type Config struct {
	// Lookup resolves sprite ids to pixels.
	Lookup tilerender.SpriteLookup

	// Width and Height are the initial viewport size in pixels.
	Width, Height int

	// CacheCapacity bounds resident sprite textures. <= 0 keeps the default.
	CacheCapacity int

	// AtlasCell and AtlasColumns enable the sprite atlas of the "gpu"
	// backend when AtlasCell > 0.
	AtlasCell, AtlasColumns int

	// Device is the graphics device for the "gpu" backend.
	Device gpucore.Device

	// Target is the destination image for the "software" backend. When nil,
	// the software backend allocates one of Width×Height.
	Target *image.RGBA
}

// Factory creates an uninitialized backend for cfg.
type Factory func(cfg Config) tilerender.Backend
