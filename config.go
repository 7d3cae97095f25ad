package goSession

import (
	"errors"
	"time"
)

// Config defines the engine policy surface. Instances are cloned on Build and
// treated as immutable afterwards.
type Config struct {
	Session SessionConfig
	Reaper  ReaperConfig
	Token   TokenConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// IDStrategyType selects how fresh session ids are generated.
type IDStrategyType int

const (
	// IDToken generates compact 16-byte base64url tokens (default).
	IDToken IDStrategyType = iota
	// IDUUID generates UUIDv4 string ids.
	IDUUID
)

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls record lifecycle policy.
type SessionConfig struct {
	// Directory is the filesystem root for the file backend. Ignored when a
	// Redis client or explicit store is supplied to the Builder.
	Directory string

	// RedisPrefix namespaces keys for the Redis backend.
	RedisPrefix string

	// DefaultTTL applies when a create or renewal passes a non-positive TTL.
	DefaultTTL time.Duration

	// MaxTTL caps any requested TTL when > 0.
	MaxTTL time.Duration

	// SlidingExpiration renews the TTL on every successful read. Renewal is
	// a best-effort compare-and-swap touch; losing the race is not an error.
	SlidingExpiration bool

	// MaxUpdateRetries bounds the optimistic-concurrency retry loop.
	MaxUpdateRetries int

	// MaxPayloadSize caps the encoded payload blob in bytes when > 0.
	MaxPayloadSize int

	// IDStrategy selects the id generator.
	IDStrategy IDStrategyType
}

// ReaperConfig controls the expired-record sweep.
type ReaperConfig struct {
	// GraceWindow is how long past expiry a record survives before the
	// sweep deletes it. Lazy expiration already hides it from readers.
	GraceWindow time.Duration

	// Interval is the default cadence for [Engine.RunReaper].
	Interval time.Duration
}

// TokenConfig controls optional signed session handles.
type TokenConfig struct {
	Enabled       bool
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// AuditConfig controls the buffered lifecycle event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the lock-free counter set.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the policy constants shipped with the engine. All
// values are overridable; only their semantic role is fixed.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix:      "gs",
			DefaultTTL:       30 * time.Minute,
			MaxUpdateRetries: 5,
			MaxPayloadSize:   1 << 20,
			IDStrategy:       IDToken,
		},
		Reaper: ReaperConfig{
			GraceWindow: time.Minute,
			Interval:    5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot honor.
func (c *Config) Validate() error {
	if c.Session.DefaultTTL <= 0 {
		return errors.New("Session.DefaultTTL must be positive")
	}
	if c.Session.MaxTTL < 0 {
		return errors.New("Session.MaxTTL must not be negative")
	}
	if c.Session.MaxTTL > 0 && c.Session.MaxTTL < c.Session.DefaultTTL {
		return errors.New("Session.MaxTTL must not undercut DefaultTTL")
	}
	if c.Session.MaxUpdateRetries < 1 {
		return errors.New("Session.MaxUpdateRetries must be >= 1")
	}
	if c.Session.MaxPayloadSize < 0 {
		return errors.New("Session.MaxPayloadSize must not be negative")
	}
	switch c.Session.IDStrategy {
	case IDToken, IDUUID:
	default:
		return errors.New("Session.IDStrategy is invalid")
	}
	if c.Reaper.GraceWindow < 0 {
		return errors.New("Reaper.GraceWindow must not be negative")
	}
	if c.Reaper.Interval < 0 {
		return errors.New("Reaper.Interval must not be negative")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 1 {
		return errors.New("Audit.BufferSize must be >= 1 when audit is enabled")
	}
	if c.Token.Enabled {
		switch c.Token.SigningMethod {
		case "", "hs256", "ed25519":
		default:
			return errors.New("Token.SigningMethod is invalid")
		}
	}
	return nil
}

func cloneConfig(c Config) Config {
	out := c
	out.Token.PrivateKey = cloneBytes(c.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(c.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
