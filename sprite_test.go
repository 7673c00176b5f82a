package tilerender

import (
	"errors"
	"testing"
)

func TestSpriteValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       Sprite
		wantErr bool
	}{
		{"ok", Sprite{ID: 1, Width: 2, Height: 2, Pixels: make([]byte, 16)}, false},
		{"short", Sprite{ID: 1, Width: 2, Height: 2, Pixels: make([]byte, 15)}, true},
		{"empty", Sprite{ID: 1}, true},
		{"negative", Sprite{ID: 1, Width: -1, Height: 4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSprite) {
				t.Errorf("Validate() error %v does not wrap ErrInvalidSprite", err)
			}
		})
	}
}
