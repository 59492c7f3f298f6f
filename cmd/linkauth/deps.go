package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"log/slog"
	"strings"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	goLinkAuth "github.com/MrEthical07/goLinkAuth"
	"github.com/MrEthical07/goLinkAuth/mail"
	promexport "github.com/MrEthical07/goLinkAuth/metrics/export/prometheus"
	"github.com/MrEthical07/goLinkAuth/store/memory"
	"github.com/MrEthical07/goLinkAuth/store/postgres"
)

type deps struct {
	engine    *goLinkAuth.Engine
	collector *promexport.Collector
	logger    *slog.Logger
	closers   []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// buildDeps is replaced in tests to share one engine across invocations.
var buildDeps = newDeps

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func newDeps(ctx context.Context, cfg cliConfig, errOut io.Writer) (*deps, error) {
	logger := newLogger(cfg.LogLevel, errOut)
	d := &deps{logger: logger}

	rdb, err := openRedis(cfg.RedisAddr, d, logger)
	if err != nil {
		d.Close()
		return nil, err
	}

	var store goLinkAuth.CredentialStore
	if cfg.PostgresDSN == "" {
		logger.Debug("using in-memory credential store")
		store = memory.New()
	} else {
		pool, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closers = append(d.closers, pool.Close)
		store = postgres.New(pool)
	}

	mailer, err := mail.New(cfg.Mail, logger)
	if err != nil {
		d.Close()
		return nil, oops.Code("CONFIG_INVALID").With("operation", "mailer").Wrap(err)
	}

	engineCfg, err := engineConfig(cfg)
	if err != nil {
		d.Close()
		return nil, err
	}

	b := goLinkAuth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithStore(store).
		WithMailer(mailer).
		WithLogger(logger).
		WithMetricsEnabled(cfg.PrintMetrics).
		WithLatencyHistograms(cfg.PrintMetrics)
	if cfg.Audit {
		b = b.WithAuditSink(goLinkAuth.NewSlogSink(logger.With("component", "audit")))
	}

	engine, err := b.Build()
	if err != nil {
		d.Close()
		return nil, oops.Code("CONFIG_INVALID").With("operation", "build engine").Wrap(err)
	}
	d.engine = engine
	d.closers = append(d.closers, engine.Close)
	d.collector = promexport.NewCollector(engine)
	return d, nil
}

func openRedis(addr string, d *deps, logger *slog.Logger) (redis.UniversalClient, error) {
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, oops.Code("REDIS_CONNECT").With("operation", "start miniredis").Wrap(err)
		}
		d.closers = append(d.closers, mr.Close)
		addr = mr.Addr()
		logger.Debug("using in-process redis", "addr", addr)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	d.closers = append(d.closers, func() { _ = client.Close() })
	return client, nil
}

func engineConfig(cfg cliConfig) (goLinkAuth.Config, error) {
	out := goLinkAuth.DefaultConfig()
	out.MagicLink.BaseURL = cfg.BaseURL
	out.Email.From = cfg.From
	out.Email.AppName = cfg.AppName
	out.Audit.Enabled = cfg.Audit

	if cfg.SessionKey != "" {
		out.Session.SigningMethod = "hs256"
		out.Session.PrivateKey = []byte(cfg.SessionKey)
		return out, nil
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return out, oops.Code("CONFIG_INVALID").With("operation", "generate session key").Wrap(err)
	}
	out.Session.SigningMethod = "ed25519"
	out.Session.PrivateKey = priv
	return out, nil
}

// writeMetrics renders the engine counters in the Prometheus text format.
func writeMetrics(w io.Writer, collector *promexport.Collector) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collector); err != nil {
		return oops.Code("METRICS").With("operation", "register").Wrap(err)
	}
	families, err := reg.Gather()
	if err != nil {
		return oops.Code("METRICS").With("operation", "gather").Wrap(err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return oops.Code("METRICS").With("operation", "encode").Wrap(err)
		}
	}
	return nil
}
