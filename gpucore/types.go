package gpucore

// Resource IDs
//
// These opaque IDs represent GPU resources. Each adapter maintains a mapping
// between IDs and backend resources. IDs are uint64 to accommodate various
// backend handle sizes.

// ProgramID is an opaque handle to a linked shader program.
type ProgramID uint64

// VertexArrayID is an opaque handle to a vertex layout binding.
type VertexArrayID uint64

// BufferID is an opaque handle to a vertex buffer.
type BufferID uint64

// TextureID is an opaque handle to a 2D texture.
type TextureID uint64

// InvalidID is the zero value, representing an unbound/null resource.
const InvalidID = 0

// Primitive selects how DrawArrays assembles vertices.
type Primitive uint8

// Primitive topologies.
const (
	// Triangles draws every three vertices as a triangle.
	Triangles Primitive = iota

	// Lines draws every two vertices as a line segment.
	Lines
)

// String returns the topology name.
func (p Primitive) String() string {
	switch p {
	case Triangles:
		return "triangles"
	case Lines:
		return "lines"
	}
	return "unknown"
}

// TextureFormat is the pixel layout of texture data handed to CreateTexture.
type TextureFormat uint8

// Texture formats.
const (
	// FormatBGRA8 is 8-bit B, G, R, A in byte order.
	FormatBGRA8 TextureFormat = iota

	// FormatRGBA8 is 8-bit R, G, B, A in byte order.
	FormatRGBA8
)

// BytesPerPixel returns the pixel size of the format.
func (f TextureFormat) BytesPerPixel() int {
	return 4
}

// Filter selects texture sampling.
type Filter uint8

// Sampling filters.
const (
	FilterNearest Filter = iota
	FilterLinear
)

// TextureDesc describes a texture to create.
type TextureDesc struct {
	Label  string
	Width  int
	Height int
	Format TextureFormat

	// Filter applies to both minification and magnification. Sprite
	// textures use FilterNearest to keep pixel art crisp. Addressing is
	// always clamp-to-edge.
	Filter Filter
}

// DataSize returns the number of bytes CreateTexture expects.
func (d TextureDesc) DataSize() int {
	return d.Width * d.Height * d.Format.BytesPerPixel()
}

// VertexFormat is the type of a vertex attribute.
type VertexFormat uint8

// Vertex attribute formats.
const (
	Float32x2 VertexFormat = iota
	Float32x4
)

// Size returns the attribute size in bytes.
func (f VertexFormat) Size() int {
	if f == Float32x4 {
		return 16
	}
	return 8
}

// VertexAttribute describes one interleaved attribute.
type VertexAttribute struct {
	Location int
	Format   VertexFormat
	Offset   int
}

// VertexLayout describes an interleaved vertex buffer.
type VertexLayout struct {
	Stride     int
	Attributes []VertexAttribute
}

// TileVertexLayout is the layout of batch.Vertex: position (vec2) at
// location 0, texture coordinate (vec2) at location 1, color (vec4) at
// location 2, 32 bytes per vertex.
var TileVertexLayout = VertexLayout{
	Stride: 32,
	Attributes: []VertexAttribute{
		{Location: 0, Format: Float32x2, Offset: 0},
		{Location: 1, Format: Float32x2, Offset: 8},
		{Location: 2, Format: Float32x4, Offset: 16},
	},
}
