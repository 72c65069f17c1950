package reaper

import "sync/atomic"

type reaperCounters struct {
	sweeps atomic.Int64 // completed sweep passes
	purged atomic.Int64 // expired entries removed across all sweeps
}

func newReaperCounters() *reaperCounters {
	return &reaperCounters{}
}

func (c *reaperCounters) snapshot() (sweeps, purged int64) {
	return c.sweeps.Load(), c.purged.Load()
}
