package tilerender

import "errors"

// Common errors shared by backends.
var (
	// ErrNotInitialized is returned when a backend is used before Init.
	ErrNotInitialized = errors.New("tilerender: backend not initialized")

	// ErrClosed is returned when a backend is used after Close.
	ErrClosed = errors.New("tilerender: backend closed")

	// ErrInvalidSprite is returned when sprite pixel data does not match
	// its declared dimensions.
	ErrInvalidSprite = errors.New("tilerender: invalid sprite data")
)
