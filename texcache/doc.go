// Package texcache keeps GPU textures resident for recently drawn sprites.
//
// A Cache maps a sprite key to a texture handle with strict LRU eviction:
// after an insertion that takes the cache over capacity, exactly one least
// recently used entry is evicted and its handle released.
//
// Handles returned since the last EndFrame are pinned. When a pinned entry
// is evicted it leaves the cache at once, but its release waits until
// EndFrame, so geometry already batched against it stays valid until the
// frame has been submitted.
package texcache
