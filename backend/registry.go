package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/tilerender"
)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for backend selection (first that initializes wins).
	backendPriority = []string{GPU, Software}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get returns an uninitialized backend by name.
// Returns nil if the backend is not registered.
func Get(name string, cfg Config) tilerender.Backend {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if !ok {
		return nil
	}
	return factory(cfg)
}

// Open creates and initializes the first backend of names that succeeds.
// With no names the priority order (gpu, software) is used. A backend whose
// Init fails is closed, logged, and skipped.
func Open(cfg Config, names ...string) (tilerender.Backend, error) {
	if len(names) == 0 {
		names = backendPriority
	}

	var errs []error
	for _, name := range names {
		b := Get(name, cfg)
		if b == nil {
			continue
		}
		if err := b.Init(); err != nil {
			b.Close()
			tilerender.Logger().Warn("backend: init failed, trying next", "backend", name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		tilerender.Logger().Info("backend: selected", "backend", name)
		return b, nil
	}

	if len(errs) == 0 {
		return nil, ErrBackendNotAvailable
	}
	return nil, fmt.Errorf("%w: %w", ErrBackendNotAvailable, errors.Join(errs...))
}

// MustOpen is like Open but panics on error.
func MustOpen(cfg Config, names ...string) tilerender.Backend {
	b, err := Open(cfg, names...)
	if err != nil {
		panic(err)
	}
	return b
}
