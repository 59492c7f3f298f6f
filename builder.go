package goLinkAuth

import (
	"errors"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/goLinkAuth/internal/audit"
	"github.com/MrEthical07/goLinkAuth/internal/rate"
	"github.com/MrEthical07/goLinkAuth/internal/stores"
	"github.com/MrEthical07/goLinkAuth/password"
	"github.com/MrEthical07/goLinkAuth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     CredentialStore
	mailer    Mailer
	issuer    SessionIssuer
	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing magic-link tokens and rate limits. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the identity store. Required.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithMailer sets the delivery transport for links and codes. Required.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithSessionIssuer replaces the default JWT issuer built from Config.Session.
func (b *Builder) WithSessionIssuer(issuer SessionIssuer) *Builder {
	b.issuer = issuer
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the operational logger. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for expiry decisions.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every collaborator.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	tmpl, err := newTemplates()
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		MinLength:   cfg.Password.MinLength,
	})
	if err != nil {
		return nil, err
	}

	issuer := b.issuer
	if issuer == nil {
		jwtIssuer, err := session.NewJWTIssuer(session.Config{
			TTL:           cfg.Session.TTL,
			SigningMethod: session.SigningMethod(cfg.Session.SigningMethod),
			PrivateKey:    cloneBytes(cfg.Session.PrivateKey),
			PublicKey:     cloneBytes(cfg.Session.PublicKey),
			Issuer:        cfg.Session.Issuer,
			Audience:      cfg.Session.Audience,
			Now:           clock,
		})
		if err != nil {
			return nil, err
		}
		issuer = jwtIssuer
	}

	engine := &Engine{
		config:    cfg,
		store:     b.store,
		mailer:    b.mailer,
		issuer:    issuer,
		links:     stores.NewMagicLinkStore(b.redis, cfg.MagicLink.RedisPrefix),
		templates: tmpl,
		hasher:    hasher,
		logger:    logger,
		clock:     clock,
	}
	engine.limiter = rate.New(b.redis, rate.Config{
		EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
		MaxAttempts:      cfg.RateLimit.MaxAttempts,
		AttemptWindow:    cfg.RateLimit.AttemptWindow,
		MaxSends:         cfg.RateLimit.MaxSends,
		SendWindow:       cfg.RateLimit.SendWindow,
	})
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
