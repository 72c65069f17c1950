// Package warm pre-populates cache instances at a bounded rate so cold
// starts do not stampede the upstream data sources.
package warm

import (
	"context"
	"log/slog"
	"time"

	"github.com/guarzo/evedmv-cache/internal/shared/rate"
)

// Getter is the slice of the cache façade the warmer needs.
type Getter interface {
	GetOrCompute(name, key string, compute func() (any, error), ttl time.Duration) (any, error)
}

// Loader produces the value for one key from the upstream source.
type Loader func(ctx context.Context, key string) (any, error)

type Warmer struct {
	logger *slog.Logger
	cache  Getter
	pacer  *rate.Pacer
}

func New(ctx context.Context, logger *slog.Logger, cache Getter, perSec int) *Warmer {
	return &Warmer{
		logger: logger,
		cache:  cache,
		pacer:  rate.NewPacer(ctx, perSec),
	}
}

// Warm replays keys through get-or-compute, paced by the warmer's rate.
// Keys already cached cost nothing; load failures are logged and skipped
// so one bad key never aborts the rest of the run. Returns the number of
// keys that ended up resident.
func (w *Warmer) Warm(ctx context.Context, instance string, keys []string, load Loader, ttl time.Duration) (warmed int, err error) {
	started := time.Now()

	for _, key := range keys {
		if !w.pacer.Wait(ctx) {
			return warmed, ctx.Err()
		}

		if _, lerr := w.cache.GetOrCompute(instance, key, func() (any, error) {
			return load(ctx, key)
		}, ttl); lerr != nil {
			w.logger.Warn("cache warm load failed", "instance", instance, "key", key, "error", lerr)
			continue
		}
		warmed++
	}

	w.logger.Info("cache warm finished",
		"instance", instance,
		"keys", len(keys),
		"warmed", warmed,
		"elapsed", time.Since(started).String(),
	)
	return warmed, nil
}
