package config

import "time"

// TelemetryCfg configures observability around the cache layer.
// Events are advisory: a slow or absent sink never blocks an operation.
type TelemetryCfg struct {
	// IsStatsLogEnabled turns on the periodic stats log line
	// (entries, memory, hit/miss/eviction/sweep deltas per interval).
	IsStatsLogEnabled bool `yaml:"stats_log_enabled"`

	// StatsLogInterval is the period between stats log lines.
	StatsLogInterval time.Duration `yaml:"stats_log_interval"`

	// EventBuffer is the capacity of the fire-and-forget event queue.
	// Events beyond a full buffer are dropped, never waited on.
	EventBuffer int `yaml:"event_buffer"`
}

func (cfg *TelemetryCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *TelemetryCfg) Adjust() {
	if cfg.StatsLogInterval <= 0 {
		cfg.StatsLogInterval = 30 * time.Second
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 1024
	}
}
