package config

// PersistCfg configures snapshot persistence of cache instances.
// Snapshots keep only entries with remaining TTL; restored entries
// come back with their residual TTL, not a fresh one.
type PersistCfg struct {
	// Dir is the base directory for versioned snapshot directories.
	Dir string `yaml:"dir"`

	// KeepVersions bounds how many snapshot versions are retained per
	// instance. Zero keeps everything.
	KeepVersions int `yaml:"keep_versions"`
}

func (cfg *PersistCfg) Enabled() bool {
	return cfg != nil
}
