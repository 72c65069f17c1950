// Package evecache is the unified in-memory caching layer behind name
// resolution, ESI response caching and intelligence-analysis memoization.
// It is an optimization layer, never a source of truth: every operation
// against a missing instance degrades to a miss or a no-op instead of
// failing the caller.
package evecache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"

	"github.com/guarzo/evedmv-cache/config"
	"github.com/guarzo/evedmv-cache/internal/reaper"
	"github.com/guarzo/evedmv-cache/internal/store"
	"github.com/guarzo/evedmv-cache/internal/telemetry"
)

// Cache is the registry of named cache instances. It is constructed once
// at application start and passed by reference to all consumers; there
// is no ambient package-level registry.
type Cache struct {
	ctx       context.Context
	cls       context.CancelFunc
	cfg       *config.Config
	logger    *slog.Logger
	clk       clock.Clock
	sink      telemetry.Sink
	counters  *counters
	telemeter telemetry.Logger

	mu        sync.RWMutex
	instances map[string]*instance
}

type instance struct {
	name   string
	cfg    *config.InstanceCfg
	store  *store.Store
	reaper reaper.Reaper
	sf     *singleflight.Group // non-nil only when coalescing is on
}

// New creates the registry and starts every instance declared in cfg.
// A nil cfg yields an empty registry; a nil sink discards events; a nil
// logger falls back to slog.Default.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, sink Sink) *Cache {
	return newWithClock(ctx, cfg, logger, sink, clock.New())
}

func newWithClock(ctx context.Context, cfg *config.Config, logger *slog.Logger, sink Sink, clk clock.Clock) *Cache {
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.Adjust()
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = telemetry.NoOpSink{}
	}

	ctx, cancel := context.WithCancel(ctx)

	buffer := 0
	if cfg.Telemetry.Enabled() {
		buffer = cfg.Telemetry.EventBuffer
	}

	c := &Cache{
		ctx:       ctx,
		cls:       cancel,
		cfg:       cfg,
		logger:    logger,
		clk:       clk,
		sink:      telemetry.NewDispatcher(ctx, sink, buffer),
		counters:  newCounters(),
		instances: make(map[string]*instance),
	}

	for name, icfg := range cfg.Instances {
		c.Start(name, icfg)
	}

	if cfg.Telemetry.Enabled() && cfg.Telemetry.IsStatsLogEnabled {
		c.telemeter = telemetry.NewLogs(ctx, logger, c, cfg.Telemetry.StatsLogInterval)
	}

	return c
}

// Start brings up a named instance. Starting a name that is already
// running is a no-op, so eager config wiring and lazy call-site wiring
// can coexist.
func (c *Cache) Start(name string, icfg *config.InstanceCfg) {
	if icfg == nil {
		def := config.ClassHotData.Defaults()
		icfg = &def
	}
	cfg := *icfg
	cfg.Adjust()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, running := c.instances[name]; running {
		return
	}

	st := store.New(c.clk, cfg.MaxSize, func(evicted int) {
		c.counters.evicted.Add(int64(evicted))
		c.sink.OnEvict(name, evicted)
	})

	inst := &instance{name: name, cfg: &cfg, store: st}
	if cfg.Coalesce {
		inst.sf = &singleflight.Group{}
	}
	inst.reaper = reaper.New(c.ctx, name, cfg.CleanupInterval, c.logger, c.clk, st, func(purged int) {
		c.counters.swept.Add(int64(purged))
		c.sink.OnSweep(name, purged)
	})

	c.instances[name] = inst

	c.logger.Info("cache instance started",
		"instance", name,
		"class", string(cfg.Class),
		"ttl", cfg.TTL.String(),
		"max_size", cfg.MaxSize,
		"cleanup_interval", cfg.CleanupInterval.String(),
		"coalesce", cfg.Coalesce,
	)
}

// StartPreset starts a named instance from a cache-class preset with
// optional per-call overrides.
func (c *Cache) StartPreset(class config.Class, name string, overrides ...config.Override) {
	cfg := class.Defaults()
	for _, override := range overrides {
		override(&cfg)
	}
	c.Start(name, &cfg)
}

// Close stops every reaper and the telemetry workers. Entries are not
// flushed anywhere; use Snapshot first if warm-restart data is wanted.
func (c *Cache) Close() error {
	c.cls()
	return nil
}

// TelemetrySnapshot implements telemetry.StatsSource for the stats log.
func (c *Cache) TelemetrySnapshot() telemetry.Snapshot {
	hits, misses, evicted, swept := c.counters.snapshot()
	snap := telemetry.Snapshot{Hits: hits, Misses: misses, Evicted: evicted, SweepPurged: swept}

	c.mu.RLock()
	for _, inst := range c.instances {
		snap.Entries += inst.store.Len()
		snap.MemBytes += inst.store.Mem()
	}
	c.mu.RUnlock()

	return snap
}

func (c *Cache) instance(name string) (*instance, bool) {
	c.mu.RLock()
	inst, ok := c.instances[name]
	c.mu.RUnlock()
	return inst, ok
}
