package config

import "time"

// Class buckets cache instances by usage pattern. Each class carries
// tuned TTL/size/sweep defaults so call sites don't hand-pick them.
type Class string

const (
	// ClassHotData is for frequently read, frequently refreshed data
	// such as resolved character/corporation names.
	ClassHotData Class = "hot_data"

	// ClassAPIResponses is for upstream ESI responses: long-lived,
	// expensive to refetch, moderate cardinality.
	ClassAPIResponses Class = "api_responses"

	// ClassAnalysis is for derived intelligence results: expensive to
	// compute, so concurrent misses are coalesced into one computation.
	ClassAnalysis Class = "analysis"
)

// InstanceCfg configures one named cache instance.
type InstanceCfg struct {
	// Class selects the preset defaults applied by Adjust for any
	// zero-valued field below. Empty means ClassHotData.
	Class Class `yaml:"class"`

	// TTL is the default time-to-live for entries written without an
	// explicit one. Example: "5m".
	TTL time.Duration `yaml:"ttl"`

	// MaxSize bounds the entry count. When an insert meets the bound,
	// the entries closest to expiry are evicted to make room.
	MaxSize int `yaml:"max_size"`

	// CleanupInterval is the background sweep period for purging
	// expired entries that are never read again.
	// A negative value disables the sweep entirely.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// Coalesce collapses concurrent lookups of the same missing key
	// into a single computation. Off by default: redundant computation
	// of cheap idempotent lookups is acceptable, duplicate suppression
	// pays off only for expensive derivations.
	Coalesce bool `yaml:"coalesce"`
}

func (cfg *InstanceCfg) Enabled() bool {
	return cfg != nil
}

// Adjust fills zero-valued fields from the class defaults.
func (cfg *InstanceCfg) Adjust() {
	if cfg.Class == "" {
		cfg.Class = ClassHotData
	}
	def := cfg.Class.Defaults()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = def.MaxSize
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
}

// Defaults returns the preset for a class. Unknown classes fall back
// to the hot-data preset.
func (c Class) Defaults() InstanceCfg {
	switch c {
	case ClassAPIResponses:
		return InstanceCfg{Class: c, TTL: time.Hour, MaxSize: 10_000, CleanupInterval: 10 * time.Minute}
	case ClassAnalysis:
		return InstanceCfg{Class: c, TTL: 15 * time.Minute, MaxSize: 5_000, CleanupInterval: 5 * time.Minute, Coalesce: true}
	default:
		return InstanceCfg{Class: ClassHotData, TTL: 5 * time.Minute, MaxSize: 50_000, CleanupInterval: 2 * time.Minute}
	}
}

// Override mutates a preset-derived InstanceCfg at start time.
type Override func(*InstanceCfg)

func WithTTL(ttl time.Duration) Override {
	return func(cfg *InstanceCfg) { cfg.TTL = ttl }
}

func WithMaxSize(n int) Override {
	return func(cfg *InstanceCfg) { cfg.MaxSize = n }
}

func WithCleanupInterval(interval time.Duration) Override {
	return func(cfg *InstanceCfg) { cfg.CleanupInterval = interval }
}

func WithCoalescing(on bool) Override {
	return func(cfg *InstanceCfg) { cfg.Coalesce = on }
}
