package goSession

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape of a config file. Durations are strings in
// time.ParseDuration syntax; absent fields keep the base value.
type fileConfig struct {
	Session struct {
		Directory    *string `yaml:"directory"`
		RedisPrefix  *string `yaml:"redisPrefix"`
		DefaultTTL   *string `yaml:"defaultTTL"`
		MaxTTL       *string `yaml:"maxTTL"`
		Sliding      *bool   `yaml:"slidingExpiration"`
		MaxRetries   *int    `yaml:"maxUpdateRetries"`
		MaxPayload   *int    `yaml:"maxPayloadSize"`
		IDStrategy   *string `yaml:"idStrategy"`
	} `yaml:"session"`
	Reaper struct {
		GraceWindow *string `yaml:"graceWindow"`
		Interval    *string `yaml:"interval"`
	} `yaml:"reaper"`
	Audit struct {
		Enabled    *bool `yaml:"enabled"`
		BufferSize *int  `yaml:"bufferSize"`
		DropIfFull *bool `yaml:"dropIfFull"`
	} `yaml:"audit"`
	Metrics struct {
		Enabled           *bool `yaml:"enabled"`
		LatencyHistograms *bool `yaml:"latencyHistograms"`
	} `yaml:"metrics"`
}

// LoadFile applies a YAML config file on top of cfg and returns the result.
func LoadFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	if fc.Session.Directory != nil {
		cfg.Session.Directory = *fc.Session.Directory
	}
	if fc.Session.RedisPrefix != nil {
		cfg.Session.RedisPrefix = *fc.Session.RedisPrefix
	}
	if cfg.Session.DefaultTTL, err = applyDuration(fc.Session.DefaultTTL, cfg.Session.DefaultTTL); err != nil {
		return cfg, err
	}
	if cfg.Session.MaxTTL, err = applyDuration(fc.Session.MaxTTL, cfg.Session.MaxTTL); err != nil {
		return cfg, err
	}
	if fc.Session.Sliding != nil {
		cfg.Session.SlidingExpiration = *fc.Session.Sliding
	}
	if fc.Session.MaxRetries != nil {
		cfg.Session.MaxUpdateRetries = *fc.Session.MaxRetries
	}
	if fc.Session.MaxPayload != nil {
		cfg.Session.MaxPayloadSize = *fc.Session.MaxPayload
	}
	if fc.Session.IDStrategy != nil {
		switch *fc.Session.IDStrategy {
		case "token":
			cfg.Session.IDStrategy = IDToken
		case "uuid":
			cfg.Session.IDStrategy = IDUUID
		default:
			return cfg, fmt.Errorf("unknown idStrategy %q", *fc.Session.IDStrategy)
		}
	}

	if cfg.Reaper.GraceWindow, err = applyDuration(fc.Reaper.GraceWindow, cfg.Reaper.GraceWindow); err != nil {
		return cfg, err
	}
	if cfg.Reaper.Interval, err = applyDuration(fc.Reaper.Interval, cfg.Reaper.Interval); err != nil {
		return cfg, err
	}

	if fc.Audit.Enabled != nil {
		cfg.Audit.Enabled = *fc.Audit.Enabled
	}
	if fc.Audit.BufferSize != nil {
		cfg.Audit.BufferSize = *fc.Audit.BufferSize
	}
	if fc.Audit.DropIfFull != nil {
		cfg.Audit.DropIfFull = *fc.Audit.DropIfFull
	}
	if fc.Metrics.Enabled != nil {
		cfg.Metrics.Enabled = *fc.Metrics.Enabled
	}
	if fc.Metrics.LatencyHistograms != nil {
		cfg.Metrics.EnableLatencyHistograms = *fc.Metrics.LatencyHistograms
	}

	return cfg, nil
}

func applyDuration(v *string, fallback time.Duration) (time.Duration, error) {
	if v == nil {
		return fallback, nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fallback, fmt.Errorf("parse duration %q: %w", *v, err)
	}
	return d, nil
}
