package goSession

import (
	"errors"
	"time"

	"github.com/MrEthical07/goSession/internal/keylock"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/token"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Construction is allocation-only until Build;
// no I/O happens before then except creating the session directory for the
// file backend.
type Builder struct {
	config Config

	store     session.Store
	redis     redis.UniversalClient
	directory string

	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithDirectory selects the filesystem backend rooted at dir.
func (b *Builder) WithDirectory(dir string) *Builder {
	b.directory = dir
	return b
}

// WithRedis selects the Redis backend on the given client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore injects an explicit [session.Store], taking precedence over
// WithDirectory and WithRedis. Useful for the in-memory backend and tests.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithAuditSink sets the destination for lifecycle audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the counter set.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithClock overrides the engine time source. Test hook for expiry and reap
// behavior; production engines keep time.Now.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Build validates the configuration, wires the selected store backend, and
// returns a ready engine. A builder can be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if cfg.Session.Directory == "" {
		cfg.Session.Directory = b.directory
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- STORE BACKEND --------
	store := b.store
	switch {
	case store != nil:
	case b.redis != nil:
		store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, cfg.Reaper.GraceWindow)
	case cfg.Session.Directory != "":
		fileStore, err := session.NewFileStore(cfg.Session.Directory)
		if err != nil {
			return nil, err
		}
		store = fileStore
	default:
		return nil, errors.New("session store required: set a directory, redis client, or explicit store")
	}

	engine := &Engine{
		config:  cfg,
		store:   store,
		guard:   keylock.New(),
		metrics: NewMetrics(cfg.Metrics),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		now:     b.clock,
	}
	if engine.now == nil {
		engine.now = time.Now
	}

	// -------- HANDLE TOKENS --------
	if cfg.Token.Enabled {
		method := token.SigningMethod(cfg.Token.SigningMethod)
		if method == "" {
			method = token.MethodHS256
		}
		tm, err := token.NewManager(token.Config{
			SigningMethod: method,
			PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
			PublicKey:     cloneBytes(cfg.Token.PublicKey),
			Issuer:        cfg.Token.Issuer,
			Audience:      cfg.Token.Audience,
			Leeway:        cfg.Token.Leeway,
		})
		if err != nil {
			return nil, err
		}
		engine.tokens = tm
	}

	b.built = true

	return engine, nil
}
