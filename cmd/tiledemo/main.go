// Command tiledemo renders a generated tile map through the tile renderer
// and saves the last frame as a PNG.
//
// Usage:
//
//	tiledemo [-config tiledemo.toml] [-backend gpu,software] [-output out.png]
//
// The "gpu" backend runs on a standalone Vulkan device with offscreen
// readback. When no device can be opened it fails to initialize and the
// next backend in the list is used.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/gogpu/tilerender"
	"github.com/gogpu/tilerender/backend"
	"github.com/gogpu/tilerender/device/wgpu"
	"github.com/gogpu/tilerender/gpu"
	"github.com/gogpu/tilerender/overlay"
	"github.com/gogpu/tilerender/software"
	"github.com/gogpu/tilerender/spritesheet"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file")
		backends   = flag.String("backend", "", "comma-separated backends in priority order")
		width      = flag.Int("width", 0, "image width")
		height     = flag.Int("height", 0, "image height")
		tile       = flag.Int("tile", 0, "tile size in pixels")
		frames     = flag.Int("frames", 0, "number of frames to render")
		cache      = flag.Int("cache", 0, "sprite texture cache capacity")
		atlas      = flag.Bool("atlas", true, "pack GPU sprites into one atlas texture")
		output     = flag.String("output", "", "output PNG file")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	tilerender.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := DefaultConfig()
	if *configPath != "" {
		if err := LoadConfig(*configPath, &cfg); err != nil {
			log.Fatal(err)
		}
	}

	// Flags given on the command line override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backends = splitList(*backends)
		case "width":
			cfg.Width = *width
		case "height":
			cfg.Height = *height
		case "tile":
			cfg.Tile = *tile
		case "frames":
			cfg.Frames = *frames
		case "cache":
			cfg.Cache = *cache
		case "atlas":
			cfg.Atlas.Enabled = *atlas
		case "output":
			cfg.Output = *output
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("tiledemo: %v", err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func run(cfg Config) error {
	sheet, err := loadSprites(cfg)
	if err != nil {
		return err
	}

	target := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	bcfg := backend.Config{
		Lookup:        sheet.Lookup,
		Width:         cfg.Width,
		Height:        cfg.Height,
		CacheCapacity: cfg.Cache,
		AtlasCell:     cfg.AtlasCell(),
		AtlasColumns:  cfg.Atlas.Columns,
		Target:        target,
	}

	if slices.Contains(cfg.Backends, backend.GPU) {
		dev, err := wgpu.New()
		if err != nil {
			tilerender.Logger().Warn("tiledemo: no GPU device", "error", err)
		} else {
			defer dev.Close()
			dev.SetReadback(target)
			bcfg.Device = dev
		}
	}

	b, err := backend.Open(bcfg, cfg.Backends...)
	if err != nil {
		return err
	}
	defer b.Close()
	tilerender.Logger().Info("tiledemo: rendering", "backend", b.Name(),
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height), "frames", cfg.Frames)

	m := newTileMap(cfg)
	for frame := range cfg.Frames {
		m.render(b, frame)
		if err := b.Flush(); err != nil {
			return fmt.Errorf("flush frame %d: %w", frame, err)
		}
		logFrameStats(b, frame)
	}

	overlay.New(nil).Draw(target, b.TextCalls())
	if err := savePNG(cfg.Output, target); err != nil {
		return err
	}

	st := sheet.Stats()
	tilerender.Logger().Info("tiledemo: saved", "output", cfg.Output,
		"sprites", st.Sprites, "sheet_bytes", st.StoredBytes, "raw_bytes", st.RawBytes)
	return nil
}

func logFrameStats(b tilerender.Backend, frame int) {
	switch bb := b.(type) {
	case *gpu.Backend:
		tilerender.Logger().Debug("tiledemo: frame", "n", frame, "stats", bb.Stats().String())
	case *software.Backend:
		tilerender.Logger().Debug("tiledemo: frame", "n", frame, "stats", fmt.Sprintf("%+v", bb.Stats()))
	}
}

func loadSprites(cfg Config) (*spritesheet.Sheet, error) {
	sheet := spritesheet.New()
	if cfg.Sheet.Path == "" {
		for id := 1; id <= cfg.Map.Sprites; id++ {
			if err := sheet.AddImage(tilerender.SpriteID(id), generateSprite(id, cfg.Tile)); err != nil {
				return nil, err
			}
		}
		return sheet, nil
	}

	f, err := os.Open(cfg.Sheet.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	n, err := sheet.LoadPNG(f, cfg.Sheet.Cell, tilerender.SpriteID(cfg.Sheet.FirstID))
	if err != nil {
		return nil, err
	}
	tilerender.Logger().Info("tiledemo: sheet loaded", "path", cfg.Sheet.Path, "sprites", n)
	return sheet, nil
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
