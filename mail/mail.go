package mail

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	goLinkAuth "github.com/MrEthical07/goLinkAuth"
)

// Provider names accepted by Config.Provider.
const (
	ProviderSMTP   = "smtp"
	ProviderResend = "resend"
	ProviderLog    = "log"
)

var (
	ErrUnknownProvider = errors.New("mail: unknown provider")
	ErrMissingConfig   = errors.New("mail: missing provider configuration")
)

type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

type ResendConfig struct {
	APIKey string `koanf:"api_key"`
}

type Config struct {
	Provider string       `koanf:"provider"`
	SMTP     SMTPConfig   `koanf:"smtp"`
	Resend   ResendConfig `koanf:"resend"`
}

// New returns the Mailer selected by cfg.Provider. An empty provider selects the
// log mailer.
func New(cfg Config, logger *slog.Logger) (goLinkAuth.Mailer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderSMTP:
		if cfg.SMTP.Host == "" || cfg.SMTP.Port <= 0 {
			return nil, fmt.Errorf("%w: smtp host and port are required", ErrMissingConfig)
		}
		return NewSMTPMailer(cfg.SMTP), nil
	case ProviderResend:
		if cfg.Resend.APIKey == "" {
			return nil, fmt.Errorf("%w: resend api key is required", ErrMissingConfig)
		}
		return NewResendMailer(cfg.Resend.APIKey), nil
	case ProviderLog, "":
		return NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
