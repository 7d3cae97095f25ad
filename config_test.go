package goSession

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero default ttl", func(c *Config) { c.Session.DefaultTTL = 0 }},
		{"negative max ttl", func(c *Config) { c.Session.MaxTTL = -time.Second }},
		{"max ttl below default", func(c *Config) { c.Session.MaxTTL = time.Second }},
		{"zero retries", func(c *Config) { c.Session.MaxUpdateRetries = 0 }},
		{"negative payload cap", func(c *Config) { c.Session.MaxPayloadSize = -1 }},
		{"invalid id strategy", func(c *Config) { c.Session.IDStrategy = IDStrategyType(99) }},
		{"negative grace", func(c *Config) { c.Reaper.GraceWindow = -time.Second }},
		{"negative interval", func(c *Config) { c.Reaper.Interval = -time.Second }},
		{"audit without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }},
		{"bad signing method", func(c *Config) { c.Token.Enabled = true; c.Token.SigningMethod = "rs512" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvSessionDir, "/var/lib/sessions")
	t.Setenv(EnvSessionTTL, "45m")
	t.Setenv(EnvSessionMaxTTL, "2h")
	t.Setenv(EnvSessionRetries, "8")
	t.Setenv(EnvSessionRedisPref, "app")
	t.Setenv(EnvReapGrace, "90s")
	t.Setenv(EnvReapInterval, "10m")

	cfg, err := LoadEnv(DefaultConfig())
	if err != nil {
		t.Fatalf("load env: %v", err)
	}

	if cfg.Session.Directory != "/var/lib/sessions" {
		t.Fatalf("directory = %q", cfg.Session.Directory)
	}
	if cfg.Session.DefaultTTL != 45*time.Minute {
		t.Fatalf("default ttl = %v", cfg.Session.DefaultTTL)
	}
	if cfg.Session.MaxTTL != 2*time.Hour {
		t.Fatalf("max ttl = %v", cfg.Session.MaxTTL)
	}
	if cfg.Session.MaxUpdateRetries != 8 {
		t.Fatalf("retries = %d", cfg.Session.MaxUpdateRetries)
	}
	if cfg.Session.RedisPrefix != "app" {
		t.Fatalf("prefix = %q", cfg.Session.RedisPrefix)
	}
	if cfg.Reaper.GraceWindow != 90*time.Second {
		t.Fatalf("grace = %v", cfg.Reaper.GraceWindow)
	}
	if cfg.Reaper.Interval != 10*time.Minute {
		t.Fatalf("interval = %v", cfg.Reaper.Interval)
	}
}

func TestLoadEnvLeavesUnsetAlone(t *testing.T) {
	base := DefaultConfig()
	cfg, err := LoadEnv(base)
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if cfg.Session.DefaultTTL != base.Session.DefaultTTL {
		t.Fatalf("untouched ttl changed: %v", cfg.Session.DefaultTTL)
	}
}

func TestLoadEnvMalformedDuration(t *testing.T) {
	t.Setenv(EnvSessionTTL, "not-a-duration")
	if _, err := LoadEnv(DefaultConfig()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gosession.yaml")
	doc := `
session:
  directory: /srv/sessions
  defaultTTL: 20m
  slidingExpiration: true
  maxUpdateRetries: 7
  idStrategy: uuid
reaper:
  graceWindow: 2m
  interval: 1m
audit:
  enabled: true
  bufferSize: 64
metrics:
  latencyHistograms: true
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(DefaultConfig(), path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}

	if cfg.Session.Directory != "/srv/sessions" {
		t.Fatalf("directory = %q", cfg.Session.Directory)
	}
	if cfg.Session.DefaultTTL != 20*time.Minute {
		t.Fatalf("default ttl = %v", cfg.Session.DefaultTTL)
	}
	if !cfg.Session.SlidingExpiration {
		t.Fatal("sliding expiration not applied")
	}
	if cfg.Session.MaxUpdateRetries != 7 {
		t.Fatalf("retries = %d", cfg.Session.MaxUpdateRetries)
	}
	if cfg.Session.IDStrategy != IDUUID {
		t.Fatalf("id strategy = %v", cfg.Session.IDStrategy)
	}
	if cfg.Reaper.GraceWindow != 2*time.Minute {
		t.Fatalf("grace = %v", cfg.Reaper.GraceWindow)
	}
	if !cfg.Audit.Enabled || cfg.Audit.BufferSize != 64 {
		t.Fatalf("audit = %+v", cfg.Audit)
	}
	if !cfg.Metrics.EnableLatencyHistograms {
		t.Fatal("latency histograms not applied")
	}
	// Untouched fields keep their base values.
	if cfg.Session.RedisPrefix != "gs" {
		t.Fatalf("prefix changed: %q", cfg.Session.RedisPrefix)
	}
}

func TestLoadFileUnknownIDStrategy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("session:\n  idStrategy: snowflake\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(DefaultConfig(), path); err == nil {
		t.Fatal("expected unknown strategy error")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(DefaultConfig(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}
