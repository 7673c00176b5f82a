package main

import (
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"

	"github.com/gogpu/tilerender"
)

// tileMap is a generated map: checkered ground with scattered objects.
type tileMap struct {
	cfg        Config
	cols, rows int

	// objects holds a sprite id per tile, 0 for none.
	objects []tilerender.SpriteID
	// flags marks tiles that carry an indicator.
	flags map[int]tilerender.Indicator
}

func newTileMap(cfg Config) *tileMap {
	cols := (cfg.Width + cfg.Tile - 1) / cfg.Tile
	rows := (cfg.Height + cfg.Tile - 1) / cfg.Tile
	m := &tileMap{
		cfg:     cfg,
		cols:    cols,
		rows:    rows,
		objects: make([]tilerender.SpriteID, cols*rows),
		flags:   make(map[int]tilerender.Indicator),
	}

	rng := rand.New(rand.NewPCG(cfg.Map.Seed, cfg.Map.Seed^0x9e3779b97f4a7c15))
	indicators := []tilerender.Indicator{
		tilerender.IndicatorHouse,
		tilerender.IndicatorSpawn,
		tilerender.IndicatorWaypoint,
	}
	for i := range m.objects {
		if rng.Float64() >= 0.35 {
			continue
		}
		switch {
		case rng.Float64() < cfg.Map.Missing:
			// An id past the sheet renders as a placeholder.
			m.objects[i] = tilerender.SpriteID(cfg.Map.Sprites + 1 + rng.IntN(4096))
		case cfg.Map.Sprites > 0:
			m.objects[i] = tilerender.SpriteID(1 + rng.IntN(cfg.Map.Sprites))
		}
		if rng.IntN(20) == 0 {
			m.flags[i] = indicators[rng.IntN(len(indicators))]
		}
	}
	return m
}

// render draws one frame. The selection moves one tile per frame.
func (m *tileMap) render(p tilerender.Painter, frame int) {
	t := m.cfg.Tile
	pal := m.cfg.Colors

	p.SetViewport(m.cfg.Width, m.cfg.Height)
	p.Clear(pal.Background)

	for row := range m.rows {
		for col := range m.cols {
			x, y := col*t, row*t
			ground := pal.GroundA
			if (row+col)%2 == 1 {
				ground = pal.GroundB
			}
			p.DrawTileColor(x, y, t, ground)
			if id := m.objects[row*m.cols+col]; id != 0 {
				p.DrawTileSprite(x, y, t, id)
			}
			if kind, ok := m.flags[row*m.cols+col]; ok {
				p.DrawIndicatorIcon(x+t-12, y, kind, 12)
			}
		}
	}

	// Shade the bottom rows as if they were a floor below.
	shadeRows := m.rows / 4
	p.DrawShadeOverlay(0, (m.rows-shadeRows)*t, m.cols*t, shadeRows*t, 96)

	for col := 1; col < m.cols; col++ {
		p.DrawGridLine(col*t, 0, col*t, m.rows*t, pal.Grid)
	}
	for row := 1; row < m.rows; row++ {
		p.DrawGridLine(0, row*t, m.cols*t, row*t, pal.Grid)
	}
	p.DrawGridRect(0, 0, m.cols*t-1, m.rows*t-1, pal.Grid)

	sx := (2 + frame) % max(m.cols-3, 1)
	sy := 2 % max(m.rows-2, 1)
	p.DrawSelectionRect(sx*t, sy*t, 3*t, 2*t, pal.Selection)

	p.DrawText(4, 14, fmt.Sprintf("frame %d", frame), pal.Label)
	p.DrawText(sx*t+2, sy*t-3, fmt.Sprintf("%d,%d", sx, sy), pal.Selection)
}

// generateSprite draws a round gem on a transparent tile. The color is
// derived from id so every sprite is distinguishable.
func generateSprite(id, size int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	base := tilerender.PlaceholderColor(tilerender.SpriteID(id * 7919))
	edge := tilerender.PlaceholderBorderColor(tilerender.SpriteID(id * 7919))

	c := float64(size-1) / 2
	r := float64(size) * 0.38
	for y := range size {
		for x := range size {
			dx, dy := float64(x)-c, float64(y)-c
			d := dx*dx + dy*dy
			switch {
			case d <= (r-2)*(r-2):
				img.SetNRGBA(x, y, color.NRGBA{R: base.R, G: base.G, B: base.B, A: 255})
			case d <= r*r:
				img.SetNRGBA(x, y, color.NRGBA{R: edge.R, G: edge.G, B: edge.B, A: 255})
			}
		}
	}
	return img
}
