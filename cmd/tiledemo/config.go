package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/tilerender"
)

// Config is the demo configuration. It is read from a TOML file and then
// overridden by command-line flags.
type Config struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Tile   int    `toml:"tile"`
	Frames int    `toml:"frames"`
	Cache  int    `toml:"cache"`
	Output string `toml:"output"`

	// Backends are tried in order; the first that initializes is used.
	Backends []string `toml:"backends"`

	Map    MapConfig   `toml:"map"`
	Sheet  SheetConfig `toml:"sheet"`
	Atlas  AtlasConfig `toml:"atlas"`
	Colors ColorConfig `toml:"colors"`
}

// MapConfig controls the generated map.
type MapConfig struct {
	Seed uint64 `toml:"seed"`

	// Sprites is the number of generated sprite ids. Ids above it have no
	// image and render as placeholders.
	Sprites int `toml:"sprites"`

	// Missing is the share of object tiles that use an id without an image.
	Missing float64 `toml:"missing"`
}

// SheetConfig optionally loads sprites from a PNG sheet instead of
// generating them.
type SheetConfig struct {
	Path    string `toml:"path"`
	Cell    int    `toml:"cell"`
	FirstID int    `toml:"first_id"`
}

// AtlasConfig controls the GPU sprite atlas. Cells are one sprite in size:
// the tile size for generated sprites, the sheet cell for loaded ones.
type AtlasConfig struct {
	Enabled bool `toml:"enabled"`
	Columns int  `toml:"columns"`
}

// ColorConfig holds the palette. Colors are written as "#rrggbb" or
// "#rrggbbaa".
type ColorConfig struct {
	Background tilerender.Color `toml:"background"`
	GroundA    tilerender.Color `toml:"ground_a"`
	GroundB    tilerender.Color `toml:"ground_b"`
	Grid       tilerender.Color `toml:"grid"`
	Selection  tilerender.Color `toml:"selection"`
	Label      tilerender.Color `toml:"label"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Width:    640,
		Height:   480,
		Tile:     32,
		Frames:   1,
		Cache:    0,
		Output:   "tiledemo.png",
		Backends: []string{"gpu", "software"},
		Map: MapConfig{
			Seed:    1,
			Sprites: 24,
			Missing: 0.1,
		},
		Sheet: SheetConfig{Cell: 32, FirstID: 1},
		Atlas: AtlasConfig{Enabled: true, Columns: 32},
		Colors: ColorConfig{
			Background: tilerender.RGB(16, 16, 24),
			GroundA:    tilerender.RGB(58, 84, 48),
			GroundB:    tilerender.RGB(66, 94, 54),
			Grid:       tilerender.RGBA(0, 0, 0, 96),
			Selection:  tilerender.RGB(255, 220, 0),
			Label:      tilerender.White,
		},
	}
}

// LoadConfig decodes a TOML file over cfg. Keys missing from the file keep
// their values in cfg.
func LoadConfig(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("tiledemo: load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		tilerender.Logger().Warn("tiledemo: unknown config keys", "keys", fmt.Sprint(undecoded))
	}
	return cfg.Validate()
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("tiledemo: invalid size %dx%d", c.Width, c.Height)
	case c.Tile <= 0:
		return fmt.Errorf("tiledemo: invalid tile size %d", c.Tile)
	case c.Frames <= 0:
		return fmt.Errorf("tiledemo: invalid frame count %d", c.Frames)
	case c.Map.Missing < 0 || c.Map.Missing > 1:
		return fmt.Errorf("tiledemo: missing share %v outside [0, 1]", c.Map.Missing)
	case len(c.Backends) == 0:
		return fmt.Errorf("tiledemo: no backends configured")
	case c.Atlas.Enabled && c.Atlas.Columns < 2:
		return fmt.Errorf("tiledemo: atlas needs at least 2 columns, got %d", c.Atlas.Columns)
	}
	return nil
}

// AtlasCell returns the atlas cell size, or 0 when the atlas is off.
func (c *Config) AtlasCell() int {
	switch {
	case !c.Atlas.Enabled:
		return 0
	case c.Sheet.Path != "":
		return c.Sheet.Cell
	}
	return c.Tile
}
