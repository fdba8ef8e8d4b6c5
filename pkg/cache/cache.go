// Package cache stores derived artifacts (canonical forests, layouts and
// rendered output) keyed by content hashes.
//
// Three backends are provided: [FileCache] for the CLI, [RedisCache] for
// shared server deployments and [NullCache] to disable caching. Keys are
// produced by a [Keyer] so that callers never build key strings by hand.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the stored bytes and true on a hit. A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// NullCache misses on every Get and drops every Set. The CLI uses it for
// --no-cache and the "none" backend.
type NullCache struct{}

// NewNullCache returns a [NullCache].
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullCache) Delete(context.Context, string) error { return nil }
func (NullCache) Close() error { return nil }

// Default TTLs per artifact kind.
const (
	TTLForest   = 7 * 24 * time.Hour
	TTLLayout   = 24 * time.Hour
	TTLArtifact = 24 * time.Hour
)

// =============================================================================
// Keys
// =============================================================================

// ForestKeyOpts are the inputs that change how a payload normalizes.
type ForestKeyOpts struct {
	Format   string `json:"format,omitempty"`
	Selector string `json:"selector,omitempty"`
}

// LayoutKeyOpts are the inputs that change a layout of one forest.
type LayoutKeyOpts struct {
	Mode       string  `json:"mode"`
	StateHash  string  `json:"state_hash"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
	ConfigHash string  `json:"config_hash,omitempty"`
}

// ArtifactKeyOpts are the inputs that change a rendered artifact.
type ArtifactKeyOpts struct {
	Format   string `json:"format"`
	Detailed bool   `json:"detailed,omitempty"`
	Title    string `json:"title,omitempty"`
}

// Keyer builds cache keys.
type Keyer interface {
	// ForestKey keys a canonical forest by the hash of its raw payload.
	ForestKey(payloadHash string, opts ForestKeyOpts) string

	// LayoutKey keys a layout by the hash of its forest.
	LayoutKey(forestHash string, opts LayoutKeyOpts) string

	// ArtifactKey keys rendered output by the layout it draws. layoutHash
	// must cover the forest and state as well as the placements.
	ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer hashes every key input into a fixed-length key.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ForestKey implements [Keyer].
func (DefaultKeyer) ForestKey(payloadHash string, opts ForestKeyOpts) string {
	return hashKey("forest", payloadHash, opts)
}

// LayoutKey implements [Keyer].
func (DefaultKeyer) LayoutKey(forestHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", forestHash, opts)
}

// ArtifactKey implements [Keyer].
func (DefaultKeyer) ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", layoutHash, opts)
}

var _ Keyer = DefaultKeyer{}
