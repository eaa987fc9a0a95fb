package registry

import (
	"sync"

	"github.com/quillback/quillback/transit"
	"github.com/quillback/quillback/wire"
)

// MetadataRegistry maps the wire-level handle a producer writes into its
// record header back to the static log-site descriptor it refers to.
// Registration happens once per call site, typically at first-use from many
// producer threads concurrently; lookups happen on the backend goroutine
// only, so a RWMutex favors the read-heavy steady state.
type MetadataRegistry struct {
	mu   sync.RWMutex
	byID map[uint64]wire.Metadata
}

// NewMetadataRegistry creates an empty metadata registry.
func NewMetadataRegistry() *MetadataRegistry {
	return &MetadataRegistry{byID: make(map[uint64]wire.Metadata)}
}

// Register associates id with meta, typically called once per log call site
// the first time it executes.
func (r *MetadataRegistry) Register(id uint64, meta wire.Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id] = meta
}

// Lookup implements transit.MetadataLookup.
func (r *MetadataRegistry) Lookup(id uint64) (wire.Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	return m, ok
}

// DecoderRegistry maps a wire-level handle to the producer-supplied decoder
// function for that log site's argument payload.
type DecoderRegistry struct {
	mu   sync.RWMutex
	byID map[uint64]transit.DecoderFn
}

// NewDecoderRegistry creates an empty decoder registry.
func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{byID: make(map[uint64]transit.DecoderFn)}
}

// Register associates id with fn.
func (r *DecoderRegistry) Register(id uint64, fn transit.DecoderFn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id] = fn
}

// Lookup implements transit.DecoderLookup.
func (r *DecoderRegistry) Lookup(id uint64) (transit.DecoderFn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.byID[id]
	return fn, ok
}
