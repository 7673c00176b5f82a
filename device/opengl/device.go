//go:build !nogpu

// Package opengl implements gpucore.Device on OpenGL 3.3 core.
//
// The GL context must be current on the calling goroutine's OS thread for
// New and every Device method, and the goroutine must stay locked to that
// thread (runtime.LockOSThread).
package opengl

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/gogpu/tilerender"
	"github.com/gogpu/tilerender/gpucore"
)

//go:embed shaders/tile.vert
var vertexShaderSource string

//go:embed shaders/tile.frag
var fragmentShaderSource string

// OpenGL errors.
var (
	// ErrInit is returned when GL function pointers cannot be loaded.
	ErrInit = errors.New("opengl: init")

	// ErrShaderCompile is returned when a tile shader stage fails to compile.
	ErrShaderCompile = errors.New("opengl: shader compile failed")

	// ErrShaderLink is returned when the tile program fails to link.
	ErrShaderLink = errors.New("opengl: program link failed")

	// ErrTextureData is returned when pixel data does not match the
	// texture size.
	ErrTextureData = errors.New("opengl: texture data size mismatch")

	// ErrGL wraps a pending glGetError code.
	ErrGL = errors.New("opengl: GL error")
)

// maxErrorDrain bounds glGetError loops. A lost or non-current context may
// report an error forever.
const maxErrorDrain = 16

type programInfo struct {
	projection int32
	texture    int32
}

// Device is a gpucore.Device backed by the current OpenGL context.
type Device struct {
	programs map[gpucore.ProgramID]programInfo
	current  gpucore.ProgramID
	textures map[gpucore.TextureID]gpucore.TextureDesc

	// blendWasEnabled restores GL_BLEND when the program is unbound.
	blendWasEnabled bool
}

var _ gpucore.Device = (*Device)(nil)

// New loads GL function pointers for the current context.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}
	tilerender.Logger().Info("opengl: context ready",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)))
	return &Device{
		programs: make(map[gpucore.ProgramID]programInfo),
		textures: make(map[gpucore.TextureID]gpucore.TextureDesc),
	}, nil
}

// Name returns "opengl".
func (d *Device) Name() string { return "opengl" }

// CreateProgram compiles and links the tile shader.
func (d *Device) CreateProgram() (gpucore.ProgramID, error) {
	vs, err := compileShader(gl.VERTEX_SHADER, vertexShaderSource)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vs)
	fs, err := compileShader(gl.FRAGMENT_SHADER, fragmentShaderSource)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fs)

	program := gl.CreateProgram()
	gl.AttachShader(program, vs)
	gl.AttachShader(program, fs)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("%w: %s", ErrShaderLink, strings.TrimRight(log, "\x00"))
	}

	info := programInfo{
		projection: gl.GetUniformLocation(program, gl.Str("u_projection\x00")),
		texture:    gl.GetUniformLocation(program, gl.Str("u_texture\x00")),
	}
	gl.UseProgram(program)
	gl.Uniform1i(info.texture, 0)
	gl.UseProgram(0)

	id := gpucore.ProgramID(program)
	d.programs[id] = info
	return id, nil
}

func compileShader(shaderType uint32, source string) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%w (%s): %s", ErrShaderCompile, stageName(shaderType), strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}

func stageName(shaderType uint32) string {
	if shaderType == gl.VERTEX_SHADER {
		return "vertex"
	}
	return "fragment"
}

// DestroyProgram deletes a program.
func (d *Device) DestroyProgram(id gpucore.ProgramID) {
	if _, ok := d.programs[id]; !ok {
		return
	}
	delete(d.programs, id)
	gl.DeleteProgram(uint32(id))
}

// CreateVertexArray creates a VAO and a VBO configured for layout.
func (d *Device) CreateVertexArray(layout gpucore.VertexLayout) (gpucore.VertexArrayID, gpucore.BufferID, error) {
	var vao, vbo uint32
	gl.GenVertexArrays(1, &vao)
	gl.GenBuffers(1, &vbo)
	if vao == 0 || vbo == 0 {
		return 0, 0, fmt.Errorf("%w: 0x%x allocating vertex array", ErrGL, gl.GetError())
	}

	gl.BindVertexArray(vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	for _, attr := range layout.Attributes {
		loc := uint32(attr.Location) //nolint:gosec // attribute locations are small constants
		gl.EnableVertexAttribArray(loc)
		gl.VertexAttribPointer(loc, components(attr.Format), gl.FLOAT, false,
			int32(layout.Stride), gl.PtrOffset(attr.Offset)) //nolint:gosec // stride fits int32
	}
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	if err := glError("create vertex array"); err != nil {
		gl.DeleteBuffers(1, &vbo)
		gl.DeleteVertexArrays(1, &vao)
		return 0, 0, err
	}
	return gpucore.VertexArrayID(vao), gpucore.BufferID(vbo), nil
}

func components(f gpucore.VertexFormat) int32 {
	return int32(f.Size() / 4) //nolint:gosec // at most 4
}

// DestroyVertexArray deletes a VAO and its VBO.
func (d *Device) DestroyVertexArray(vao gpucore.VertexArrayID, vbo gpucore.BufferID) {
	if b := uint32(vbo); b != 0 {
		gl.DeleteBuffers(1, &b)
	}
	if a := uint32(vao); a != 0 {
		gl.DeleteVertexArrays(1, &a)
	}
}

// CreateTexture creates a clamp-to-edge 2D texture and uploads pixels.
// BGRA data is uploaded as-is with GL_BGRA as the source format.
func (d *Device) CreateTexture(desc gpucore.TextureDesc, pixels []byte) (gpucore.TextureID, error) {
	if desc.Width <= 0 || desc.Height <= 0 || len(pixels) != desc.DataSize() {
		return 0, fmt.Errorf("%w: %s %dx%d with %d bytes",
			ErrTextureData, desc.Label, desc.Width, desc.Height, len(pixels))
	}

	// Drop errors left by unrelated GL work so they are not blamed on us.
	drainErrors()

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	filter := textureFilter(desc.Filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 4)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8,
		int32(desc.Width), int32(desc.Height), 0, //nolint:gosec // sprite sizes fit int32
		sourceFormat(desc.Format), gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if err := glError("upload " + desc.Label); err != nil {
		gl.DeleteTextures(1, &tex)
		return 0, err
	}
	id := gpucore.TextureID(tex)
	d.textures[id] = desc
	return id, nil
}

// UpdateTexture replaces a sub-rectangle of a texture created by
// CreateTexture. Row 0 of pixels lands on texture row y.
func (d *Device) UpdateTexture(id gpucore.TextureID, x, y, width, height int, pixels []byte) error {
	desc, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: unknown texture %d", ErrTextureData, id)
	}
	if width <= 0 || height <= 0 || x < 0 || y < 0 ||
		x+width > desc.Width || y+height > desc.Height ||
		len(pixels) != width*height*desc.Format.BytesPerPixel() {
		return fmt.Errorf("%w: %s region %dx%d+%d+%d with %d bytes",
			ErrTextureData, desc.Label, width, height, x, y, len(pixels))
	}

	drainErrors()
	gl.BindTexture(gl.TEXTURE_2D, uint32(id))
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 4)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0,
		int32(x), int32(y), int32(width), int32(height), //nolint:gosec // texture sizes fit int32
		sourceFormat(desc.Format), gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return glError("update " + desc.Label)
}

func textureFilter(f gpucore.Filter) int32 {
	if f == gpucore.FilterLinear {
		return gl.LINEAR
	}
	return gl.NEAREST
}

func sourceFormat(f gpucore.TextureFormat) uint32 {
	if f == gpucore.FormatRGBA8 {
		return gl.RGBA
	}
	return gl.BGRA
}

// DestroyTextures deletes textures.
func (d *Device) DestroyTextures(ids ...gpucore.TextureID) {
	names := make([]uint32, 0, len(ids))
	for _, id := range ids {
		if id != gpucore.InvalidID {
			names = append(names, uint32(id))
			delete(d.textures, id)
		}
	}
	if len(names) > 0 {
		gl.DeleteTextures(int32(len(names)), &names[0]) //nolint:gosec // small count
	}
}

// SetViewport sets the GL viewport.
func (d *Device) SetViewport(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height)) //nolint:gosec // viewport sizes fit int32
}

// Clear clears the color buffer.
func (d *Device) Clear(rgba [4]float32) {
	gl.ClearColor(rgba[0], rgba[1], rgba[2], rgba[3])
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

// UseProgram binds a program and enables alpha blending while it is bound.
func (d *Device) UseProgram(id gpucore.ProgramID) {
	if id == gpucore.InvalidID {
		gl.UseProgram(0)
		if d.current != gpucore.InvalidID && !d.blendWasEnabled {
			gl.Disable(gl.BLEND)
		}
		d.current = gpucore.InvalidID
		return
	}
	if d.current == gpucore.InvalidID {
		d.blendWasEnabled = gl.IsEnabled(gl.BLEND)
	}
	d.current = id
	gl.UseProgram(uint32(id))
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
}

// SetProjection uploads the projection of the bound program.
func (d *Device) SetProjection(m [16]float32) {
	info, ok := d.programs[d.current]
	if !ok {
		return
	}
	gl.UniformMatrix4fv(info.projection, 1, false, &m[0])
}

// BindVertexArray binds a VAO.
func (d *Device) BindVertexArray(id gpucore.VertexArrayID) {
	gl.BindVertexArray(uint32(id))
}

// BindBuffer binds the array buffer.
func (d *Device) BindBuffer(id gpucore.BufferID) {
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(id))
}

// BufferData replaces the array buffer contents.
func (d *Device) BufferData(data []byte) {
	if len(data) == 0 {
		gl.BufferData(gl.ARRAY_BUFFER, 0, nil, gl.DYNAMIC_DRAW)
		return
	}
	gl.BufferData(gl.ARRAY_BUFFER, len(data), gl.Ptr(data), gl.DYNAMIC_DRAW)
}

// BindTexture binds a texture to unit 0.
func (d *Device) BindTexture(id gpucore.TextureID) {
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, uint32(id))
}

// DrawArrays draws from the bound buffer.
func (d *Device) DrawArrays(mode gpucore.Primitive, first, count int) {
	gl.DrawArrays(primitive(mode), int32(first), int32(count)) //nolint:gosec // vertex counts fit int32
}

func primitive(p gpucore.Primitive) uint32 {
	if p == gpucore.Lines {
		return gl.LINES
	}
	return gl.TRIANGLES
}

// Submit flushes the GL command stream and reports pending GL errors.
func (d *Device) Submit() error {
	gl.Flush()
	return glError("frame")
}

// glError drains glGetError and returns the first code, if any.
func glError(op string) error {
	code := gl.GetError()
	if code == gl.NO_ERROR {
		return nil
	}
	drainErrors()
	return fmt.Errorf("%w: 0x%04x during %s", ErrGL, code, op)
}

func drainErrors() { drain(gl.GetError) }

// drain reads error codes from next until it reports GL_NO_ERROR or
// maxErrorDrain codes were read. It returns the number of codes read.
func drain(next func() uint32) int {
	for n := range maxErrorDrain {
		if next() == gl.NO_ERROR {
			return n
		}
	}
	return maxErrorDrain
}
