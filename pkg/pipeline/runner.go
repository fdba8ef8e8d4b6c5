package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/sensortree/pkg/cache"
	"github.com/matzehuels/sensortree/pkg/connector"
	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/normalize"
	"github.com/matzehuels/sensortree/pkg/observability"
	"github.com/matzehuels/sensortree/pkg/tree"
	"github.com/matzehuels/sensortree/pkg/visibility"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use it to avoid duplicating caching logic.
//
// The Runner holds no pipeline results. Multiple goroutines can safely use
// the same Runner with different options; identical layout requests in
// flight at the same time are computed once.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// Entry lifetimes per stage. Zero uses the cache package defaults.
	ForestTTL   time.Duration
	LayoutTTL   time.Duration
	ArtifactTTL time.Duration

	group singleflight.Group
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete normalize → state → layout → connect → render
// pipeline with caching.
func (r *Runner) Execute(ctx context.Context, payload []byte, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{}

	// Stage 1: Normalize
	start := time.Now()
	f, shape, hit, err := r.NormalizeWithCacheInfo(ctx, payload, opts)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	result.Forest = f
	result.Shape = shape
	result.Stats.NormalizeTime = time.Since(start)
	result.Stats.Tree = tree.ComputeStats(f)
	result.CacheInfo.NormalizeHit = hit
	if result.ForestHash, err = cache.HashJSON(f); err != nil {
		return nil, fmt.Errorf("hash forest: %w", err)
	}

	r.Logger.Info("normalized forest",
		"shape", shape,
		"nodes", f.Len(),
		"roots", len(f.Roots()),
		"duration", result.Stats.NormalizeTime)

	// Stage 2: State
	st := ApplyState(f, opts)
	result.State = st
	result.Stats.Visible = len(st.VisibleNodes(f))

	// Stage 3: Layout
	start = time.Now()
	res, layoutKey, hit, err := r.layout(ctx, f, result.ForestHash, st, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Layout = res
	result.Stats.LayoutTime = time.Since(start)
	result.CacheInfo.LayoutHit = hit

	r.Logger.Info("computed layout",
		"mode", res.Mode,
		"placed", len(res.Nodes),
		"duration", result.Stats.LayoutTime)

	// Stage 4: Connect
	result.Curves = Connect(ctx, f, st, res, opts.Layout)

	// Stage 5: Render
	start = time.Now()
	artifacts, hit, err := r.render(ctx, f, st, res, result.Curves, layoutKey, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(start)
	result.CacheInfo.RenderHit = hit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// =============================================================================
// Normalize
// =============================================================================

type cachedForest struct {
	Shape  normalize.Shape `json:"shape"`
	Forest *tree.Forest    `json:"forest"`
}

// NormalizeWithCacheInfo builds the forest of payload with caching and
// returns cache hit info.
func (r *Runner) NormalizeWithCacheInfo(ctx context.Context, payload []byte, opts Options) (*tree.Forest, normalize.Shape, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForNormalize(); err != nil {
		return nil, normalize.ShapeUnknown, false, err
	}

	cacheKey := r.Keyer.ForestKey(cache.Hash(payload), opts.ForestKeyOpts())

	if !opts.Refresh {
		if data, ok := r.lookup(ctx, "forest", cacheKey); ok {
			var cached cachedForest
			if err := json.Unmarshal(data, &cached); err == nil && cached.Forest != nil {
				return cached.Forest, cached.Shape, true, nil
			}
		}
	}

	f, shape, err := Normalize(ctx, payload, opts)
	if err != nil {
		return nil, shape, false, err
	}

	if data, err := json.Marshal(cachedForest{Shape: shape, Forest: f}); err == nil {
		r.store(ctx, "forest", cacheKey, data, ttlOr(r.ForestTTL, cache.TTLForest))
	}
	return f, shape, false, nil
}

// Normalize is a convenience wrapper that calls NormalizeWithCacheInfo and
// discards the shape and cache hit info.
func (r *Runner) Normalize(ctx context.Context, payload []byte, opts Options) (*tree.Forest, error) {
	f, _, _, err := r.NormalizeWithCacheInfo(ctx, payload, opts)
	return f, err
}

// =============================================================================
// Layout
// =============================================================================

// LayoutWithCacheInfo computes the layout of f under st with caching and
// returns cache hit info.
func (r *Runner) LayoutWithCacheInfo(ctx context.Context, f *tree.Forest, st *visibility.State, opts Options) (layout.Result, bool, error) {
	forestHash, err := cache.HashJSON(f)
	if err != nil {
		return layout.Result{}, false, fmt.Errorf("hash forest: %w", err)
	}
	res, _, hit, err := r.layout(ctx, f, forestHash, st, opts)
	return res, hit, err
}

// Layout is a convenience wrapper that calls LayoutWithCacheInfo and
// discards the cache hit info.
func (r *Runner) Layout(ctx context.Context, f *tree.Forest, st *visibility.State, opts Options) (layout.Result, error) {
	res, _, err := r.LayoutWithCacheInfo(ctx, f, st, opts)
	return res, err
}

type layoutCall struct {
	res layout.Result
	hit bool
}

// layout returns the result together with its cache key, which also keys
// the artifacts rendered from it.
func (r *Runner) layout(ctx context.Context, f *tree.Forest, forestHash string, st *visibility.State, opts Options) (layout.Result, string, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForLayout(); err != nil {
		return layout.Result{}, "", false, err
	}

	keyOpts, err := opts.LayoutKeyOpts(st)
	if err != nil {
		return layout.Result{}, "", false, fmt.Errorf("layout key: %w", err)
	}
	cacheKey := r.Keyer.LayoutKey(forestHash, keyOpts)

	v, err, shared := r.group.Do(cacheKey, func() (any, error) {
		if data, ok := r.lookup(ctx, "layout", cacheKey); ok {
			var cached layout.Result
			if err := json.Unmarshal(data, &cached); err == nil {
				return layoutCall{res: cached, hit: true}, nil
			}
		}

		res := Layout(ctx, f, st, opts)
		if data, err := json.Marshal(res); err == nil {
			r.store(ctx, "layout", cacheKey, data, ttlOr(r.LayoutTTL, cache.TTLLayout))
		}
		return layoutCall{res: res}, nil
	})
	if err != nil {
		return layout.Result{}, "", false, err
	}
	if shared {
		opts.Logger.Debug("shared in-flight layout", "key", cacheKey)
	}
	call := v.(layoutCall)
	return call.res, cacheKey, call.hit, nil
}

// =============================================================================
// Render
// =============================================================================

// RenderWithCacheInfo produces the requested artifacts with caching and
// returns cache hit info. The hit is true only when every format came from
// the cache.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, f *tree.Forest, st *visibility.State, res layout.Result, curves []connector.Curve, opts Options) (map[string][]byte, bool, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, false, err
	}
	forestHash, err := cache.HashJSON(f)
	if err != nil {
		return nil, false, fmt.Errorf("hash forest: %w", err)
	}
	keyOpts, err := opts.LayoutKeyOpts(st)
	if err != nil {
		return nil, false, fmt.Errorf("layout key: %w", err)
	}
	return r.render(ctx, f, st, res, curves, r.Keyer.LayoutKey(forestHash, keyOpts), opts)
}

func (r *Runner) render(ctx context.Context, f *tree.Forest, st *visibility.State, res layout.Result, curves []connector.Curve, layoutKey string, opts Options) (map[string][]byte, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForRender(); err != nil {
		return nil, false, err
	}

	// Try to get all formats from cache
	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		data, ok := r.lookup(ctx, "artifact", r.Keyer.ArtifactKey(layoutKey, opts.ArtifactKeyOpts(format)))
		if !ok {
			break
		}
		artifacts[format] = data
	}
	if len(artifacts) == len(opts.Formats) {
		return artifacts, true, nil
	}

	rendered, err := Render(ctx, f, st, res, curves, opts)
	if err != nil {
		return nil, false, err
	}
	for format, data := range rendered {
		r.store(ctx, "artifact", r.Keyer.ArtifactKey(layoutKey, opts.ArtifactKeyOpts(format)), data, ttlOr(r.ArtifactTTL, cache.TTLArtifact))
	}
	return rendered, false, nil
}

// =============================================================================
// Helpers
// =============================================================================

// lookup reads a cache entry, retrying transient backend failures. Errors
// count as misses.
func (r *Runner) lookup(ctx context.Context, keyType, key string) ([]byte, bool) {
	var (
		data []byte
		hit  bool
	)
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		data, hit, err = r.Cache.Get(ctx, key)
		return err
	})
	if err != nil {
		r.Logger.Warn("cache lookup failed", "type", keyType, "err", err)
	}
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, keyType)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, keyType)
	return data, true
}

func (r *Runner) store(ctx context.Context, keyType, key string, data []byte, ttl time.Duration) {
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Warn("cache write failed", "type", keyType, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyType, len(data))
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func ttlOr(ttl, def time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return def
}
