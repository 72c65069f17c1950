// Package reaper runs the per-instance background sweep that purges
// expired entries regardless of whether they are ever read again.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

type Reaper interface {
	ReaperMetrics() (sweeps, purged int64)
	Close() error
}

// Sweeper is the slice of the store the reaper needs.
type Sweeper interface {
	Sweep() int
}

// SweepWorker re-arms itself unconditionally after every sweep: there is
// no external supervisor restarting a dead sweep timer, so the loop must
// outlive any transient failure and stop only with its context.
type SweepWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	name     string
	interval time.Duration
	logger   *slog.Logger
	clk      clock.Clock
	target   Sweeper
	counters *reaperCounters
	onSweep  func(purged int) // observability, may be nil
}

func New(
	ctx context.Context,
	name string,
	interval time.Duration,
	logger *slog.Logger,
	clk clock.Clock,
	target Sweeper,
	onSweep func(purged int),
) Reaper {
	if interval <= 0 {
		return &NoOpReaper{}
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&SweepWorker{
		ctx:      ctx,
		cancel:   cancel,
		name:     name,
		interval: interval,
		logger:   logger,
		clk:      clk,
		target:   target,
		counters: newReaperCounters(),
		onSweep:  onSweep,
	}).run()
}

func (w *SweepWorker) ReaperMetrics() (sweeps, purged int64) {
	return w.counters.snapshot()
}

func (w *SweepWorker) Close() error {
	w.cancel()
	return nil
}

func (w *SweepWorker) run() *SweepWorker {
	w.logger.Info("reaper is running", "instance", w.name, "interval", w.interval.String())

	go func() {
		defer w.logger.Info("reaper is stopped", "instance", w.name)

		ticker := w.clk.Ticker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.sweep()
			}
		}
	}()

	return w
}

func (w *SweepWorker) sweep() {
	// A torn-down instance makes Sweep a harmless zero; never die here.
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("reaper sweep panicked", "instance", w.name, "panic", r)
		}
	}()

	purged := w.target.Sweep()
	w.counters.sweeps.Add(1)
	if purged > 0 {
		w.counters.purged.Add(int64(purged))
	}
	if w.onSweep != nil {
		w.onSweep(purged)
	}
}
