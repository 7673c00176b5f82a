package gpucore

// Device is the graphics API surface used by the batched tile backend.
//
// Every method is called from the goroutine that owns the graphics context.
// Implementations need not be safe for concurrent use.
type Device interface {
	// Name returns the adapter identifier (e.g. "opengl", "wgpu").
	Name() string

	// === Pipeline ===

	// CreateProgram compiles and links the tile shader. The shader maps
	// pixel positions through the projection set with SetProjection and
	// outputs the vertex color multiplied by the bound texture's texel.
	CreateProgram() (ProgramID, error)

	// DestroyProgram releases a program.
	DestroyProgram(id ProgramID)

	// CreateVertexArray creates a vertex layout binding and the vertex
	// buffer it reads from.
	CreateVertexArray(layout VertexLayout) (VertexArrayID, BufferID, error)

	// DestroyVertexArray releases a vertex array and its buffer.
	DestroyVertexArray(vao VertexArrayID, vbo BufferID)

	// === Textures ===

	// CreateTexture creates a 2D texture and uploads pixels, which must hold
	// desc.DataSize() bytes in desc.Format.
	CreateTexture(desc TextureDesc, pixels []byte) (TextureID, error)

	// UpdateTexture replaces a width×height region of a texture at (x, y)
	// with pixels in the texture's format. Row 0 of pixels is the region's
	// top row.
	UpdateTexture(id TextureID, x, y, width, height int, pixels []byte) error

	// DestroyTextures releases textures. Unknown IDs are ignored.
	DestroyTextures(ids ...TextureID)

	// === Frame ===

	// SetViewport sets the target size in pixels.
	SetViewport(width, height int)

	// Clear clears the target to a normalized RGBA color.
	Clear(rgba [4]float32)

	// UseProgram binds a program; InvalidID unbinds.
	UseProgram(id ProgramID)

	// SetProjection sets the column-major pixel-to-clip-space matrix of the
	// bound program.
	SetProjection(m [16]float32)

	// BindVertexArray binds a vertex array; InvalidID unbinds.
	BindVertexArray(id VertexArrayID)

	// BindBuffer binds the vertex buffer; InvalidID unbinds.
	BindBuffer(id BufferID)

	// BufferData replaces the contents of the bound buffer.
	BufferData(data []byte)

	// BindTexture binds a texture to unit 0; InvalidID unbinds.
	BindTexture(id TextureID)

	// DrawArrays draws count vertices of the bound buffer starting at first.
	DrawArrays(mode Primitive, first, count int)

	// Submit ends the frame and hands recorded work to the GPU.
	Submit() error
}
