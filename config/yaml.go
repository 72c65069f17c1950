package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// yaml.v3 has no native time.Duration support, so duration fields are
// decoded from strings like "90s" or "2h" by hand.

func (cfg *InstanceCfg) UnmarshalYAML(node *yaml.Node) error {
	type raw struct {
		Class           Class  `yaml:"class"`
		TTL             string `yaml:"ttl"`
		MaxSize         int    `yaml:"max_size"`
		CleanupInterval string `yaml:"cleanup_interval"`
		Coalesce        *bool  `yaml:"coalesce"`
	}
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}

	cfg.Class = r.Class
	cfg.MaxSize = r.MaxSize
	if r.Coalesce != nil {
		cfg.Coalesce = *r.Coalesce
	} else {
		// An omitted key means the class default, not "off": a plain
		// bool cannot tell absent from explicit false.
		cfg.Coalesce = r.Class.Defaults().Coalesce
	}

	var err error
	if cfg.TTL, err = parseDuration("ttl", r.TTL); err != nil {
		return err
	}
	if cfg.CleanupInterval, err = parseDuration("cleanup_interval", r.CleanupInterval); err != nil {
		return err
	}
	return nil
}

func (cfg *TelemetryCfg) UnmarshalYAML(node *yaml.Node) error {
	type raw struct {
		IsStatsLogEnabled bool   `yaml:"stats_log_enabled"`
		StatsLogInterval  string `yaml:"stats_log_interval"`
		EventBuffer       int    `yaml:"event_buffer"`
	}
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}

	cfg.IsStatsLogEnabled = r.IsStatsLogEnabled
	cfg.EventBuffer = r.EventBuffer

	var err error
	if cfg.StatsLogInterval, err = parseDuration("stats_log_interval", r.StatsLogInterval); err != nil {
		return err
	}
	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s duration %q: %w", field, value, err)
	}
	return d, nil
}
