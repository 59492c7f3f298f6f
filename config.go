package goLinkAuth

import (
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"time"
)

// Config is the full engine configuration. Start from [DefaultConfig] and override.
// A Config is copied at [Builder.Build] and treated as immutable afterwards.
type Config struct {
	OTP       OTPConfig
	MagicLink MagicLinkConfig
	Password  PasswordConfig
	Session   SessionConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Security  SecurityConfig
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls one-time code issuance. Codes are always six digits.
type OTPConfig struct {
	TTL time.Duration
}

/*
====================================
MAGIC LINK CONFIG
====================================
*/

// MagicLinkConfig controls link issuance. The delivered URL is BaseURL with a
// token query parameter appended.
type MagicLinkConfig struct {
	TTL         time.Duration
	BaseURL     string
	MaxAttempts int // secret mismatches tolerated per link before it is burned
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters for new hashes.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the default JWT session issuer. It is ignored when a
// custom issuer is supplied through [Builder.WithSessionIssuer].
type SessionConfig struct {
	TTL           time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
}

/*
====================================
EMAIL CONFIG
====================================
*/

// EmailConfig controls rendered messages.
type EmailConfig struct {
	From    string
	AppName string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig bounds failed credential attempts and outbound sends per email.
// A zero MaxAttempts or MaxSends disables that budget.
type RateLimitConfig struct {
	EnableIPThrottle bool
	MaxAttempts      int
	AttemptWindow    time.Duration
	MaxSends         int
	SendWindow       time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig toggles production hardening checks in [Config.Validate].
type SecurityConfig struct {
	ProductionMode bool
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		OTP: OTPConfig{
			TTL: 10 * time.Minute,
		},
		MagicLink: MagicLinkConfig{
			TTL:         24 * time.Hour,
			BaseURL:     "http://localhost:3000/api/auth/callback/email",
			MaxAttempts: 3,
			RedisPrefix: "mlk",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		Session: SessionConfig{
			TTL:           30 * 24 * time.Hour,
			SigningMethod: "ed25519",
			Issuer:        "goLinkAuth",
		},
		Email: EmailConfig{
			From:    "no-reply@localhost",
			AppName: "goLinkAuth",
		},
		RateLimit: RateLimitConfig{
			EnableIPThrottle: false,
			MaxAttempts:      5,
			AttemptWindow:    15 * time.Minute,
			MaxSends:         5,
			SendWindow:       15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.PrivateKey = cloneBytes(cfg.Session.PrivateKey)
	out.Session.PublicKey = cloneBytes(cfg.Session.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks internal consistency. Session keys are checked only when the
// default issuer is built, since a custom issuer makes them irrelevant.
func (c *Config) Validate() error {
	// OTP
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}

	// Magic link
	if c.MagicLink.TTL <= 0 {
		return errors.New("MagicLink TTL must be > 0")
	}
	if c.MagicLink.MaxAttempts <= 0 {
		return errors.New("MagicLink MaxAttempts must be > 0")
	}
	if strings.TrimSpace(c.MagicLink.RedisPrefix) == "" {
		return errors.New("MagicLink RedisPrefix must not be empty")
	}
	base, err := url.Parse(c.MagicLink.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return errors.New("MagicLink BaseURL must be an absolute URL")
	}

	// Password
	if c.Password.MinLength < 0 {
		return errors.New("Password MinLength must be >= 0")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.SigningMethod != "ed25519" && c.Session.SigningMethod != "hs256" {
		return errors.New("unsupported Session signing method")
	}

	// Email
	if _, err := mail.ParseAddress(c.Email.From); err != nil {
		return errors.New("Email From must be a valid address")
	}
	if strings.TrimSpace(c.Email.AppName) == "" {
		return errors.New("Email AppName must not be empty")
	}

	// Rate limiting
	if c.RateLimit.MaxAttempts < 0 || c.RateLimit.MaxSends < 0 {
		return errors.New("RateLimit budgets must be >= 0")
	}
	if c.RateLimit.MaxAttempts > 0 && c.RateLimit.AttemptWindow <= 0 {
		return errors.New("RateLimit AttemptWindow must be > 0 when MaxAttempts is set")
	}
	if c.RateLimit.MaxSends > 0 && c.RateLimit.SendWindow <= 0 {
		return errors.New("RateLimit SendWindow must be > 0 when MaxSends is set")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if base.Scheme != "https" {
			return errors.New("ProductionMode requires an https MagicLink BaseURL")
		}
		if c.RateLimit.MaxAttempts == 0 || c.RateLimit.MaxSends == 0 {
			return errors.New("ProductionMode requires rate limiting")
		}
	}

	return nil
}
