package gpucore

import "testing"

func TestPrimitiveString(t *testing.T) {
	tests := []struct {
		p    Primitive
		want string
	}{
		{Triangles, "triangles"},
		{Lines, "lines"},
		{Primitive(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("Primitive(%d).String() = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestTextureDescDataSize(t *testing.T) {
	d := TextureDesc{Width: 32, Height: 16, Format: FormatBGRA8}
	if got := d.DataSize(); got != 32*16*4 {
		t.Errorf("DataSize = %d, want %d", got, 32*16*4)
	}
}

func TestTileVertexLayout(t *testing.T) {
	l := TileVertexLayout
	if l.Stride != 32 {
		t.Errorf("Stride = %d, want 32", l.Stride)
	}
	end := 0
	for i, a := range l.Attributes {
		if a.Location != i {
			t.Errorf("attribute %d at location %d", i, a.Location)
		}
		if a.Offset != end {
			t.Errorf("attribute %d offset = %d, want %d", i, a.Offset, end)
		}
		end = a.Offset + a.Format.Size()
	}
	if end != l.Stride {
		t.Errorf("attributes cover %d bytes, stride is %d", end, l.Stride)
	}
}
