package backend

import (
	"github.com/gogpu/tilerender"
	"github.com/gogpu/tilerender/software"
)

// init registers the software backend so a fallback is always available.
func init() {
	Register(Software, func(cfg Config) tilerender.Backend {
		opts := []software.Option{software.WithCacheCapacity(cfg.CacheCapacity)}
		if cfg.Target != nil {
			return software.New(cfg.Target, cfg.Lookup, opts...)
		}
		return software.NewSize(cfg.Width, cfg.Height, cfg.Lookup, opts...)
	})
}
