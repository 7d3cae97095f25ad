package goSession

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variable names honored by [LoadEnv]. Deployment recipes that
// provision the sessions directory via container environment use these to
// avoid rebuilding for policy changes.
const (
	EnvSessionDir       = "SESSION_DIR"
	EnvSessionTTL       = "SESSION_TTL"
	EnvSessionMaxTTL    = "SESSION_MAX_TTL"
	EnvSessionRetries   = "SESSION_MAX_RETRIES"
	EnvSessionRedisPref = "SESSION_REDIS_PREFIX"
	EnvReapGrace        = "SESSION_REAP_GRACE"
	EnvReapInterval     = "SESSION_REAP_INTERVAL"
)

// LoadEnv applies environment overrides on top of cfg and returns the result.
// Unset variables leave the corresponding field untouched; malformed values
// fail loudly instead of silently keeping defaults.
func LoadEnv(cfg Config) (Config, error) {
	if v := os.Getenv(EnvSessionDir); v != "" {
		cfg.Session.Directory = v
	}
	if v := os.Getenv(EnvSessionRedisPref); v != "" {
		cfg.Session.RedisPrefix = v
	}

	var err error
	if cfg.Session.DefaultTTL, err = envDuration(EnvSessionTTL, cfg.Session.DefaultTTL); err != nil {
		return cfg, err
	}
	if cfg.Session.MaxTTL, err = envDuration(EnvSessionMaxTTL, cfg.Session.MaxTTL); err != nil {
		return cfg, err
	}
	if cfg.Reaper.GraceWindow, err = envDuration(EnvReapGrace, cfg.Reaper.GraceWindow); err != nil {
		return cfg, err
	}
	if cfg.Reaper.Interval, err = envDuration(EnvReapInterval, cfg.Reaper.Interval); err != nil {
		return cfg, err
	}

	if v := os.Getenv(EnvSessionRetries); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return cfg, fmt.Errorf("parse %s: %w", EnvSessionRetries, convErr)
		}
		cfg.Session.MaxUpdateRetries = n
	}

	return cfg, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("parse %s: %w", name, err)
	}
	return d, nil
}
