package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"termbridge/internal/api"
	"termbridge/internal/bridge"
	"termbridge/internal/hub"
	"termbridge/internal/metrics"
	"termbridge/internal/stream"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket bridge",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	term, err := newTerminal(cfg)
	if err != nil {
		log.Error("terminal driver setup failed", zap.String("driver", cfg.Terminal.Driver), zap.Error(err))
		return err
	}

	journal, closeJournal, err := newJournal(ctx, cfg, log.Named("journal"))
	if err != nil {
		log.Error("session journal setup failed", zap.Error(err))
		return err
	}
	defer closeJournal()

	var tickRelay hub.Relay
	r, err := newRelay(ctx, cfg, log)
	if err != nil {
		log.Error("tick relay setup failed", zap.Error(err))
		return err
	}
	if r != nil {
		defer r.Close()
		tickRelay = r
	}

	var m *metrics.Metrics
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsHandler = m.Handler()
	}

	svc := bridge.New(term, log, m, bridge.Options{
		Driver:       cfg.Terminal.Driver,
		PollInterval: cfg.Bridge.PollInterval(),
		Journal:      journal,
		Relay:        tickRelay,
	})
	svc.Start(ctx)
	defer svc.Stop()

	ws := stream.NewHandler(svc, cfg.Bridge.WS, log.Named("stream"))
	srv := &http.Server{
		Addr:              cfg.Bridge.Addr(),
		Handler:           api.NewServer(svc, ws, metricsHandler, cfg.Metrics.Path, log.Named("api")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("bridge listening",
			zap.String("addr", srv.Addr),
			zap.String("driver", cfg.Terminal.Driver),
			zap.Duration("poll_interval", svc.PollInterval()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error("http server failed", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", zap.Error(err))
	}
	log.Info("shutdown complete")
	return nil
}
