package main

import (
	"context"
	"time"

	"termbridge/config"
	"termbridge/internal/relay"
	"termbridge/internal/terminal"
	"termbridge/internal/terminal/bybitterm"
	"termbridge/internal/terminal/simterm"
	"termbridge/pkg/storage"
	"termbridge/pkg/storage/memory"
	"termbridge/pkg/storage/postgres"

	"go.uber.org/zap"
)

const journalRetention = 30 * 24 * time.Hour

// newTerminal builds the configured driver. "none" yields a nil terminal.
func newTerminal(cfg *config.Config) (terminal.Terminal, error) {
	switch cfg.Terminal.Driver {
	case config.DriverSim:
		return simterm.FromConfig(cfg.Sim, cfg.Terminal.Credentials(cfg.App.Env))
	case config.DriverBybit:
		return bybitterm.FromConfig(cfg.Bybit)
	default:
		return nil, nil
	}
}

// newJournal opens the postgres session journal when enabled, else an in-memory one.
// The returned close func is never nil.
func newJournal(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Journal, func(), error) {
	if !cfg.Postgres.Enabled {
		return memory.NewJournal(), func() {}, nil
	}

	client, err := postgres.InitializeAndMigrateSessionRecord(cfg.Postgres, cfg.App.Env, cfg.App.Env == "dev")
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn("postgres close failed", zap.Error(err))
		}
	}

	if stale, err := client.OpenSessions(ctx); err != nil {
		log.Warn("listing open sessions failed", zap.Error(err))
	} else if len(stale) > 0 {
		log.Info("sessions left open by a previous run", zap.Int("count", len(stale)))
	}
	if err := client.DeleteClosedSessions(ctx, time.Now().Add(-journalRetention)); err != nil {
		log.Warn("pruning session journal failed", zap.Error(err))
	}
	log.Info("session journal ready", zap.Bool("healthy", client.IsHealthy(ctx)))
	return client, closeFn, nil
}

// newRelay dials redis when enabled. A nil relay disables tick mirroring.
func newRelay(ctx context.Context, cfg *config.Config, log *zap.Logger) (*relay.Redis, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	r, err := relay.Dial(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	log.Info("tick relay connected", zap.String("addr", cfg.Redis.Addr), zap.String("prefix", cfg.Redis.ChannelPrefix))
	return r, nil
}
