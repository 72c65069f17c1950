package reaper

// NoOpReaper is the Reaper used when the sweep is disabled.
// Expired entries then die only through lazy purge on read.
type NoOpReaper struct{}

// ReaperMetrics always returns zero values.
func (NoOpReaper) ReaperMetrics() (sweeps, purged int64) {
	return 0, 0
}

// Close does nothing and returns nil.
func (NoOpReaper) Close() error {
	return nil
}
