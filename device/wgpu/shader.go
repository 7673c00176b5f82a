//go:build !nogpu

package wgpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

//go:embed shaders/tile.wgsl
var tileShaderWGSL string

// compileTileShader compiles the tile shader to SPIR-V words.
func compileTileShader() ([]uint32, error) {
	spirvBytes, err := naga.Compile(tileShaderWGSL)
	if err != nil {
		return nil, fmt.Errorf("compile tile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words.
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}
