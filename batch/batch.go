// Package batch accumulates a frame's tile geometry into vertex streams.
//
// A Batch holds three independent streams: flat-color quads, line segments,
// and an ordered list of sprite runs. Sprite quads are grouped greedily: a
// sprite joins the last run when it uses the same texture, otherwise it
// starts a new run. Runs are never sorted or merged, so later sprites always
// draw over earlier ones.
package batch

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/tilerender"
	"github.com/gogpu/tilerender/gpucore"
)

// VertexStride is the encoded size of a Vertex in bytes.
const VertexStride = 32

// VerticesPerQuad is the number of vertices emitted per quad (two triangles).
const VerticesPerQuad = 6

// Vertex is one interleaved vertex: pixel position, texture coordinate and
// normalized color.
type Vertex struct {
	X, Y  float32
	U, V  float32
	Color [4]float32
}

// SpriteRun is a contiguous sequence of sprite quads sharing one texture.
type SpriteRun struct {
	Texture  gpucore.TextureID
	Vertices []Vertex
}

// Quads returns the number of sprite quads in the run.
func (r *SpriteRun) Quads() int {
	return len(r.Vertices) / VerticesPerQuad
}

// Region is the texture area a quad samples: (u0, v0) at the quad's
// top-left corner and (u1, v1) at its bottom-right corner. V grows upward,
// so a region over texture rows r0..r1 of an S-texel texture has
// v0 = 1 - r0/S and v1 = 1 - r1/S.
type Region [4]float32

var (
	// Flat quads sample the white texture at a single point.
	flatUV = Region{0, 0, 0, 0}

	// Sprite data has a top-left origin, so V is flipped.
	spriteUV = Region{0, 1, 1, 0}

	opaqueWhite = [4]float32{1, 1, 1, 1}
)

// Batch is one frame of accumulated geometry. The zero value is ready to use.
type Batch struct {
	colors []Vertex
	lines  []Vertex
	runs   []SpriteRun

	// spare keeps vertex slices of runs dropped by Reset for reuse.
	spare [][]Vertex
}

// New returns an empty batch.
func New() *Batch {
	return &Batch{}
}

// Reset empties the batch, keeping allocated storage.
func (b *Batch) Reset() {
	b.colors = b.colors[:0]
	b.lines = b.lines[:0]
	for i := range b.runs {
		b.spare = append(b.spare, b.runs[i].Vertices[:0])
		b.runs[i] = SpriteRun{}
	}
	b.runs = b.runs[:0]
}

// Empty reports whether nothing has been added since the last Reset.
func (b *Batch) Empty() bool {
	return len(b.colors) == 0 && len(b.lines) == 0 && len(b.runs) == 0
}

// AddColorRect appends a solid w×h quad at (x, y).
func (b *Batch) AddColorRect(x, y, w, h int, c tilerender.Color) {
	b.colors = appendQuad(b.colors, x, y, w, h, c.Normalized(), flatUV)
}

// AddLine appends a segment from (x0, y0) to (x1, y1).
func (b *Batch) AddLine(x0, y0, x1, y1 int, c tilerender.Color) {
	col := c.Normalized()
	b.lines = append(b.lines,
		Vertex{X: float32(x0), Y: float32(y0), Color: col},
		Vertex{X: float32(x1), Y: float32(y1), Color: col},
	)
}

// AddRectOutline appends the four edges of a w×h rectangle: top, right,
// bottom, left.
func (b *Batch) AddRectOutline(x, y, w, h int, c tilerender.Color) {
	x0, y0, x1, y1 := x, y, x+w, y+h
	b.AddLine(x0, y0, x1, y0, c)
	b.AddLine(x1, y0, x1, y1, c)
	b.AddLine(x1, y1, x0, y1, c)
	b.AddLine(x0, y1, x0, y0, c)
}

// AddSprite appends a w×h quad at (x, y) showing the whole of tex.
func (b *Batch) AddSprite(tex gpucore.TextureID, x, y, w, h int) {
	b.AddRegion(tex, x, y, w, h, spriteUV, opaqueWhite)
}

// AddRegion appends a w×h quad at (x, y) showing region of tex, multiplied
// by tint. Atlas sprites and tinted atlas fills use it.
func (b *Batch) AddRegion(tex gpucore.TextureID, x, y, w, h int, region Region, tint [4]float32) {
	if n := len(b.runs); n == 0 || b.runs[n-1].Texture != tex {
		b.runs = append(b.runs, SpriteRun{Texture: tex, Vertices: b.takeSpare()})
	}
	run := &b.runs[len(b.runs)-1]
	run.Vertices = appendQuad(run.Vertices, x, y, w, h, tint, region)
}

func (b *Batch) takeSpare() []Vertex {
	n := len(b.spare)
	if n == 0 {
		return nil
	}
	v := b.spare[n-1]
	b.spare = b.spare[:n-1]
	return v
}

// ColorVertices returns the flat-quad stream.
func (b *Batch) ColorVertices() []Vertex { return b.colors }

// LineVertices returns the line stream, two vertices per segment.
func (b *Batch) LineVertices() []Vertex { return b.lines }

// Runs returns the sprite runs in submission order.
func (b *Batch) Runs() []SpriteRun { return b.runs }

// Textures returns the texture of every run, in order. A texture appears
// once per run that uses it.
func (b *Batch) Textures() []gpucore.TextureID {
	ids := make([]gpucore.TextureID, len(b.runs))
	for i := range b.runs {
		ids[i] = b.runs[i].Texture
	}
	return ids
}

// VertexCount returns the total number of vertices in all streams.
func (b *Batch) VertexCount() int {
	n := len(b.colors) + len(b.lines)
	for i := range b.runs {
		n += len(b.runs[i].Vertices)
	}
	return n
}

// appendQuad emits two triangles: (x0,y0) (x1,y0) (x1,y1) and
// (x0,y0) (x1,y1) (x0,y1).
func appendQuad(out []Vertex, x, y, w, h int, col [4]float32, uv Region) []Vertex {
	x0, y0 := float32(x), float32(y)
	x1, y1 := float32(x+w), float32(y+h)
	u0, v0, u1, v1 := uv[0], uv[1], uv[2], uv[3]
	return append(out,
		Vertex{x0, y0, u0, v0, col},
		Vertex{x1, y0, u1, v0, col},
		Vertex{x1, y1, u1, v1, col},
		Vertex{x0, y0, u0, v0, col},
		Vertex{x1, y1, u1, v1, col},
		Vertex{x0, y1, u0, v1, col},
	)
}

// AppendBytes appends the little-endian encoding of vertices to dst.
func AppendBytes(dst []byte, vertices []Vertex) []byte {
	start := len(dst)
	dst = growBytes(dst, len(vertices)*VertexStride)
	buf := dst[start:]
	for i := range vertices {
		writeVertex(buf[i*VertexStride:], &vertices[i])
	}
	return dst
}

func growBytes(b []byte, n int) []byte {
	if cap(b)-len(b) < n {
		nb := make([]byte, len(b), len(b)+n)
		copy(nb, b)
		b = nb
	}
	return b[:len(b)+n]
}

func writeVertex(buf []byte, v *Vertex) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v.U))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(v.V))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(v.Color[0]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(v.Color[1]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(v.Color[2]))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(v.Color[3]))
}
