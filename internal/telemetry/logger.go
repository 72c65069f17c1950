package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/guarzo/evedmv-cache/internal/shared/bytes"
)

// Snapshot is one observation of the whole cache layer.
type Snapshot struct {
	Hits        int64
	Misses      int64
	Evicted     int64
	SweepPurged int64
	Entries     int64
	MemBytes    int64
}

// StatsSource is implemented by the cache registry.
type StatsSource interface {
	TelemetrySnapshot() Snapshot
}

type Logger interface {
	Interval() time.Duration
	Close() error
}

// Logs periodically emits one stats line per interval with deltas since
// the previous line, so rates are readable straight from the log.
type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
	source   StatsSource
	interval time.Duration
}

func NewLogs(ctx context.Context, logger *slog.Logger, source StatsSource, interval time.Duration) *Logs {
	ctx, cancel := context.WithCancel(ctx)
	return (&Logs{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		source:   source,
		interval: interval,
	}).run()
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	return nil
}

func (l *Logs) run() *Logs {
	go l.loop()
	return l
}

func (l *Logs) loop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	prev := l.source.TelemetrySnapshot()

	for {
		select {
		case <-l.ctx.Done():
			return

		case <-ticker.C:
			cur := l.source.TelemetrySnapshot()

			l.logger.Info("cache_stats",
				"interval", l.interval.String(),
				"entries", cur.Entries,
				"memory", bytes.FmtMem(uint64(cur.MemBytes)),
				"hits", cur.Hits-prev.Hits,
				"misses", cur.Misses-prev.Misses,
				"evicted", cur.Evicted-prev.Evicted,
				"sweep_purged", cur.SweepPurged-prev.SweepPurged,
			)

			prev = cur
		}
	}
}
