package statemap

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrNotLoaded is returned by SourceCache reads before the first Load.
var ErrNotLoaded = eris.New("source tables not loaded")

// SourceCache holds the geometry and attribute tables, read once from their
// sources and shared read-only by every pipeline run. Reload replaces them
// explicitly; nothing invalidates them automatically.
type SourceCache struct {
	mu       sync.RWMutex
	loadMu   sync.Mutex // serialises loads so a source is never read twice concurrently
	cfg      *Config
	opts     []FetchOption
	regions  *RegionSet
	attrs    *AttributeTable
	moto     *AttributeTable
	loadedAt time.Time
}

// NewSourceCache creates an empty cache for the sources named in cfg.
func NewSourceCache(cfg *Config, opts ...FetchOption) *SourceCache {
	return &SourceCache{cfg: cfg, opts: opts}
}

// NewSourceCacheFrom creates a cache already populated with the given tables.
// Reload still reads from cfg.
func NewSourceCacheFrom(cfg *Config, regions *RegionSet, attrs *AttributeTable) *SourceCache {
	return &SourceCache{cfg: cfg, regions: regions, attrs: attrs, loadedAt: time.Now()}
}

// Load populates the cache if it is empty. It is a no-op afterwards.
func (c *SourceCache) Load(ctx context.Context) error {
	if c.IsLoaded() {
		return nil
	}
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if c.IsLoaded() {
		return nil
	}
	return c.loadLocked(ctx)
}

// Reload re-reads both sources and swaps them in. On failure the previous
// tables stay in place.
func (c *SourceCache) Reload(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	return c.loadLocked(ctx)
}

func (c *SourceCache) loadLocked(ctx context.Context) error {
	start := time.Now()

	regions, err := LoadRegions(ctx, c.cfg.Geometry, c.cfg.Join.IDWidth, c.opts...)
	if err != nil {
		return eris.Wrap(err, "load geometry")
	}
	attrs, err := LoadAttributes(ctx, c.cfg.Attributes.Source(), c.opts...)
	if err != nil {
		return eris.Wrap(err, "load attributes")
	}

	c.mu.Lock()
	c.regions = regions
	c.attrs = attrs
	c.moto = nil
	c.loadedAt = time.Now()
	c.mu.Unlock()

	zap.L().Info("source tables loaded",
		zap.String("component", "cache"),
		zap.Int("regions", regions.Len()),
		zap.Int("attributeRows", len(attrs.Rows)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Tables returns the cached geometry and attribute tables. Callers must not
// modify them.
func (c *SourceCache) Tables() (*RegionSet, *AttributeTable, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.regions == nil || c.attrs == nil {
		return nil, nil, ErrNotLoaded
	}
	return c.regions, c.attrs, nil
}

// MotoTable returns the regulatory status table, reading it on first use.
// It is dropped on Reload and read again on the next call.
func (c *SourceCache) MotoTable(ctx context.Context) (*AttributeTable, error) {
	c.mu.RLock()
	moto := c.moto
	c.mu.RUnlock()
	if moto != nil {
		return moto, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.RLock()
	moto = c.moto
	c.mu.RUnlock()
	if moto != nil {
		return moto, nil
	}

	moto, err := LoadAttributes(ctx, AttributeSource{
		Path:     c.cfg.Moto.Path,
		Format:   FormatCSV,
		Encoding: c.cfg.Moto.Encoding,
	}, c.opts...)
	if err != nil {
		return nil, eris.Wrap(err, "load moto status table")
	}

	c.mu.Lock()
	c.moto = moto
	c.mu.Unlock()
	return moto, nil
}

// IsLoaded reports whether Load or Reload has succeeded at least once.
func (c *SourceCache) IsLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.regions != nil && c.attrs != nil
}

// LoadedAt returns when the tables were last replaced.
func (c *SourceCache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Config returns the configuration the cache reads from.
func (c *SourceCache) Config() *Config {
	return c.cfg
}
