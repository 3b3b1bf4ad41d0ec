package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jrsteele09/go-dashboard-client/credentials"
	"github.com/jrsteele09/go-dashboard-client/dashboard"
	"github.com/jrsteele09/go-dashboard-client/internal/config"
	"github.com/jrsteele09/go-dashboard-client/internal/logging"
	"github.com/jrsteele09/go-dashboard-client/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// app is everything a command needs to talk to the API
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	kv       credentials.KV
	session  *session.Session
	client   *dashboard.Client
	registry *prometheus.Registry
}

func loadConfig(flags *rootFlags) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	level := cfg.GetLogLevel()
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	return cfg, logging.Setup(level, cfg.GetLogPretty()), nil
}

func newApp(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, logger, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	kv, err := openKV(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	s, err := session.New(credentials.NewStore(kv),
		session.WithConfig(cfg),
		session.WithLogger(logger),
		session.WithMetrics(registry),
		session.WithSessionEndedHandler(func() {
			logger.Warn().Msg("session ended, run `dashctl login` to sign in again")
		}),
	)
	if err != nil {
		closeKV(kv)
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		kv:       kv,
		session:  s,
		client:   dashboard.NewClient(s, dashboard.WithLogger(logger)),
		registry: registry,
	}, nil
}

// openKV picks the credential backend named in config
func openKV(ctx context.Context, cfg config.StorageConfig) (credentials.KV, error) {
	switch cfg.GetStorageBackend() {
	case config.StorageBackendMemory:
		return credentials.NewMemoryKV(), nil
	case config.StorageBackendFile, "":
		return credentials.NewFileKV(cfg.GetStoragePath())
	case config.StorageBackendRedis:
		return credentials.NewRedisKV(ctx, credentials.RedisOptions{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
			Prefix:   cfg.GetStorageKeyPrefix(),
		})
	default:
		return nil, fmt.Errorf("[dashctl openKV] unknown storage backend %q", cfg.GetStorageBackend())
	}
}

func closeKV(kv credentials.KV) {
	if c, ok := kv.(io.Closer); ok {
		_ = c.Close()
	}
}

// close logs the request counters gathered during the command and releases the store
func (a *app) close() {
	defer closeKV(a.kv)
	if a.logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	families, err := a.registry.Gather()
	if err != nil {
		a.logger.Debug().Err(err).Msg("gather metrics")
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			ev := a.logger.Debug().Str("metric", mf.GetName())
			for _, lp := range m.GetLabel() {
				ev = ev.Str(lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				ev = ev.Float64("value", m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				ev = ev.Float64("value", m.GetGauge().GetValue())
			}
			ev.Msg("session metric")
		}
	}
}

func jsonEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}
