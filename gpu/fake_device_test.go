//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/tilerender/gpucore"
)

// drawCall is one DrawArrays as seen by fakeDevice.
type drawCall struct {
	mode     gpucore.Primitive
	texture  gpucore.TextureID
	first    int
	count    int
	dataSize int
}

// textureUpdate is one UpdateTexture as seen by fakeDevice.
type textureUpdate struct {
	texture    gpucore.TextureID
	x, y, w, h int
}

// fakeDevice records every call of the gpucore.Device surface.
type fakeDevice struct {
	calls []string
	draws []drawCall

	nextID    uint64
	textures  map[gpucore.TextureID]gpucore.TextureDesc
	destroyed []gpucore.TextureID
	updates   []textureUpdate
	programs  int
	vaos      int

	boundTexture gpucore.TextureID
	boundProgram gpucore.ProgramID
	boundVAO     gpucore.VertexArrayID
	boundBuffer  gpucore.BufferID
	bufferSize   int
	projection   [16]float32
	clearColor   [4]float32
	submits      int

	failProgram     error
	failVertexArray error
	// failTexture fails CreateTexture for textures with these labels.
	failTexture map[string]error
	failSubmit  error
	failUpdate  error
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		textures:    make(map[gpucore.TextureID]gpucore.TextureDesc),
		failTexture: make(map[string]error),
	}
}

func (d *fakeDevice) id() uint64 {
	d.nextID++
	return d.nextID
}

func (d *fakeDevice) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) CreateProgram() (gpucore.ProgramID, error) {
	if d.failProgram != nil {
		return 0, d.failProgram
	}
	d.programs++
	return gpucore.ProgramID(d.id()), nil
}

func (d *fakeDevice) DestroyProgram(gpucore.ProgramID) {
	d.programs--
	d.record("DestroyProgram")
}

func (d *fakeDevice) CreateVertexArray(layout gpucore.VertexLayout) (gpucore.VertexArrayID, gpucore.BufferID, error) {
	if d.failVertexArray != nil {
		return 0, 0, d.failVertexArray
	}
	if layout.Stride != 32 {
		return 0, 0, errors.New("unexpected stride")
	}
	d.vaos++
	return gpucore.VertexArrayID(d.id()), gpucore.BufferID(d.id()), nil
}

func (d *fakeDevice) DestroyVertexArray(gpucore.VertexArrayID, gpucore.BufferID) {
	d.vaos--
	d.record("DestroyVertexArray")
}

func (d *fakeDevice) CreateTexture(desc gpucore.TextureDesc, pixels []byte) (gpucore.TextureID, error) {
	if err := d.failTexture[desc.Label]; err != nil {
		return 0, err
	}
	if len(pixels) != desc.DataSize() {
		return 0, errors.New("pixel size mismatch")
	}
	id := gpucore.TextureID(d.id())
	d.textures[id] = desc
	return id, nil
}

func (d *fakeDevice) UpdateTexture(id gpucore.TextureID, x, y, w, h int, pixels []byte) error {
	if d.failUpdate != nil {
		return d.failUpdate
	}
	desc, ok := d.textures[id]
	if !ok {
		return errors.New("unknown texture")
	}
	if x < 0 || y < 0 || x+w > desc.Width || y+h > desc.Height || len(pixels) != w*h*4 {
		return errors.New("region out of bounds")
	}
	d.updates = append(d.updates, textureUpdate{texture: id, x: x, y: y, w: w, h: h})
	return nil
}

func (d *fakeDevice) DestroyTextures(ids ...gpucore.TextureID) {
	for _, id := range ids {
		delete(d.textures, id)
		d.destroyed = append(d.destroyed, id)
	}
}

func (d *fakeDevice) SetViewport(int, int) {}

func (d *fakeDevice) Clear(rgba [4]float32) {
	d.clearColor = rgba
	d.record("Clear")
}

func (d *fakeDevice) UseProgram(id gpucore.ProgramID) {
	d.boundProgram = id
	d.record("UseProgram(%d)", id)
}

func (d *fakeDevice) SetProjection(m [16]float32) {
	d.projection = m
	d.record("SetProjection")
}

func (d *fakeDevice) BindVertexArray(id gpucore.VertexArrayID) {
	d.boundVAO = id
	d.record("BindVertexArray(%d)", id)
}

func (d *fakeDevice) BindBuffer(id gpucore.BufferID) {
	d.boundBuffer = id
	d.record("BindBuffer(%d)", id)
}

func (d *fakeDevice) BufferData(data []byte) {
	d.bufferSize = len(data)
	d.record("BufferData(%d)", len(data))
}

func (d *fakeDevice) BindTexture(id gpucore.TextureID) {
	d.boundTexture = id
	d.record("BindTexture(%d)", id)
}

func (d *fakeDevice) DrawArrays(mode gpucore.Primitive, first, count int) {
	d.draws = append(d.draws, drawCall{
		mode:     mode,
		texture:  d.boundTexture,
		first:    first,
		count:    count,
		dataSize: d.bufferSize,
	})
	d.record("DrawArrays(%s, %d, %d)", mode, first, count)
}

func (d *fakeDevice) Submit() error {
	d.submits++
	d.record("Submit")
	return d.failSubmit
}

var _ gpucore.Device = (*fakeDevice)(nil)
