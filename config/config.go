package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config groups configuration of the whole caching layer.
// Each subsystem can be configured independently or disabled by setting it to nil.
type Config struct {
	// Instances declares the named cache instances to start eagerly.
	// Instances can also be started programmatically after construction.
	Instances map[string]*InstanceCfg `yaml:"instances"`

	// Telemetry configures the periodic stats log line and event dispatch.
	// If nil, telemetry is disabled and only the injected sink (if any) sees events.
	Telemetry *TelemetryCfg `yaml:"telemetry"`

	// Persist configures snapshot dump/load of instances across restarts.
	// If nil, persistence is disabled.
	Persist *PersistCfg `yaml:"persist"`
}

// Adjust normalizes the configuration in place: every declared instance
// gets the missing fields filled from its class defaults.
func (cfg *Config) Adjust() {
	for _, inst := range cfg.Instances {
		inst.Adjust()
	}
	if cfg.Telemetry.Enabled() {
		cfg.Telemetry.Adjust()
	}
}

// Load reads a YAML configuration file and normalizes it.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg *Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	cfg.Adjust()

	return cfg, nil
}
