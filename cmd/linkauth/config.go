package main

import (
	"strconv"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/MrEthical07/goLinkAuth/mail"
)

type cliConfig struct {
	RedisAddr    string      `koanf:"redis_addr"`
	PostgresDSN  string      `koanf:"postgres_dsn"`
	BaseURL      string      `koanf:"base_url"`
	From         string      `koanf:"from"`
	AppName      string      `koanf:"app_name"`
	SessionKey   string      `koanf:"session_key"`
	LogLevel     string      `koanf:"log_level"`
	Audit        bool        `koanf:"audit"`
	PrintMetrics bool        `koanf:"print_metrics"`
	Mail         mail.Config `koanf:"mail"`
}

// flagKeys maps persistent flag names to config keys. Flags not listed are not
// configuration.
var flagKeys = map[string]string{
	"redis-addr":    "redis_addr",
	"postgres-dsn":  "postgres_dsn",
	"base-url":      "base_url",
	"from":          "from",
	"app-name":      "app_name",
	"session-key":   "session_key",
	"log-level":     "log_level",
	"audit":         "audit",
	"print-metrics": "print_metrics",
	"mail-provider": "mail.provider",
}

func registerFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "YAML config file")
	fs.String("redis-addr", "", "redis address; empty starts an in-process redis")
	fs.String("postgres-dsn", "", "postgres DSN; empty keeps identities in memory")
	fs.String("base-url", "http://localhost:3000/api/auth/callback/email", "magic link callback URL")
	fs.String("from", "no-reply@localhost", "sender address")
	fs.String("app-name", "goLinkAuth", "application name used in emails")
	fs.String("session-key", "", "HS256 session signing key (>= 32 bytes); empty uses an ephemeral ed25519 key")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Bool("audit", false, "log audit events")
	fs.Bool("print-metrics", false, "print Prometheus metrics after the command")
	fs.String("mail-provider", mail.ProviderLog, "mail provider: log, smtp, resend")
}

func flagKey(f *pflag.Flag) (string, interface{}) {
	key, ok := flagKeys[f.Name]
	if !ok {
		return "", nil
	}
	if f.Value.Type() == "bool" {
		v, _ := strconv.ParseBool(f.Value.String())
		return key, v
	}
	return key, f.Value.String()
}

// loadConfig reads the optional YAML file and overlays flags. Flags left at their
// default do not override file values.
func loadConfig(fs *pflag.FlagSet) (cliConfig, error) {
	k := koanf.New(".")

	path, _ := fs.GetString("config")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cliConfig{}, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
	}
	if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagKey), nil); err != nil {
		return cliConfig{}, oops.Code("CONFIG_INVALID").With("operation", "load flags").Wrap(err)
	}

	var cfg cliConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return cliConfig{}, oops.Code("CONFIG_INVALID").With("operation", "decode").Wrap(err)
	}
	return cfg, nil
}
