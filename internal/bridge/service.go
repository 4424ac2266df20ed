// Package bridge assembles the terminal gate, the resolver, the session hub
// and the poller into the single service the transports talk to.
package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"termbridge/internal/hub"
	"termbridge/internal/market"
	"termbridge/internal/memorystore"
	"termbridge/internal/metrics"
	"termbridge/internal/poller"
	"termbridge/internal/resolver"
	"termbridge/internal/terminal"
	"termbridge/pkg/storage"

	"go.uber.org/zap"
)

const (
	journalTimeout  = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

type Options struct {
	// Driver names the terminal driver, reported by /health.
	Driver       string
	PollInterval time.Duration
	Journal      storage.Journal
	Relay        hub.Relay
}

type Service struct {
	driver   string
	term     terminal.Terminal
	gate     *terminal.Gate
	resolver *resolver.Resolver
	catalog  *resolver.Catalog
	registry *hub.Registry
	bus      *hub.Bus
	poller   *poller.Poller
	ticks    *memorystore.TickStore
	journal  storage.Journal
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds the service around term. A nil term means no driver is
// configured: every terminal-backed call reports ErrUnavailable.
func New(term terminal.Terminal, logger *zap.Logger, m *metrics.Metrics, opts Options) *Service {
	gate := terminal.NewGate(term, logger.Named("gate"), m)
	registry := hub.NewRegistry(m)
	bus := hub.NewBus(registry, logger.Named("bus"), m)
	if opts.Relay != nil {
		bus.WithRelay(opts.Relay)
	}
	ticks := memorystore.NewTickStore()

	return &Service{
		driver:   opts.Driver,
		term:     term,
		gate:     gate,
		resolver: resolver.New(gate, logger.Named("resolver"), m),
		catalog:  resolver.NewCatalog(gate),
		registry: registry,
		bus:      bus,
		poller: poller.New(gate, registry, bus, ticks, logger.Named("poller"), m,
			poller.Options{Interval: opts.PollInterval}),
		ticks:   ticks,
		journal: opts.Journal,
		logger:  logger,
		metrics: m,
	}
}

// Start initializes the terminal once and launches the poller. A terminal
// that fails to initialize is logged; the poller keeps retrying.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	if s.HasTerminal() {
		if last, err := s.gate.Ready(ctx); err != nil {
			s.logger.Warn("terminal initialize failed", zap.Error(err), zap.Any("last_error", last))
		} else {
			s.logger.Info("terminal initialized", zap.String("driver", s.driver))
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go func() {
		defer close(done)
		if err := s.poller.Run(runCtx); err != nil {
			s.logger.Error("poller exited", zap.Error(err))
		}
	}()
}

// Stop halts the poller, if running, and shuts the terminal down. It is
// safe to call without Start and more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	ctx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := s.gate.Shutdown(ctx); err != nil {
		s.logger.Warn("terminal shutdown failed", zap.Error(err))
	}
}

func (s *Service) HasTerminal() bool           { return s.term != nil }
func (s *Service) Driver() string              { return s.driver }
func (s *Service) PollInterval() time.Duration { return s.poller.Interval() }
func (s *Service) Sessions() int               { return s.registry.Len() }

// LastTick returns the last-known tick for symbol from polling or quotes.
func (s *Service) LastTick(symbol string) (market.Tick, bool) {
	return s.ticks.Last(symbol)
}

func (s *Service) Resolve(ctx context.Context, requested string) (resolver.Result, error) {
	return s.resolver.Resolve(ctx, requested)
}

func (s *Service) ListSymbols(ctx context.Context, query string, limit int) ([]string, terminal.LastError, error) {
	return s.catalog.List(ctx, query, limit)
}

// GetQuote fetches the current tick for an exact symbol name. It refreshes the
// last-known tick cache but never moves the poller's sequence cursor.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*market.Tick, terminal.LastError, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, terminal.LastError{}, fmt.Errorf("empty symbol: %w", terminal.ErrSymbolNotFound)
	}

	var raw terminal.RawTick
	last, err := s.gate.Do(ctx, "quote", func(t terminal.Terminal) error {
		if err := terminal.EnsureVisible(t, symbol); err != nil {
			return fmt.Errorf("select %s: %w", symbol, err)
		}
		var err error
		raw, err = t.SymbolInfoTick(symbol)
		return err
	})
	if err != nil {
		return nil, last, err
	}

	tick := market.NewTick(symbol, raw, time.Now())
	s.ticks.Remember(tick)
	return &tick, last, nil
}

func (s *Service) Account(ctx context.Context) (terminal.Record, terminal.LastError, error) {
	var rec terminal.Record
	last, err := s.gate.Do(ctx, "account_info", func(t terminal.Terminal) error {
		var err error
		rec, err = t.AccountInfo()
		return err
	})
	return rec, last, err
}

// Positions lists open positions, optionally for one symbol.
func (s *Service) Positions(ctx context.Context, symbol string) ([]terminal.Record, terminal.LastError, error) {
	var recs []terminal.Record
	last, err := s.gate.Do(ctx, "positions_get", func(t terminal.Terminal) error {
		var err error
		recs, err = t.Positions(strings.TrimSpace(symbol))
		return err
	})
	return nonNil(recs), last, err
}

// Orders lists pending orders, optionally for one symbol.
func (s *Service) Orders(ctx context.Context, symbol string) ([]terminal.Record, terminal.LastError, error) {
	var recs []terminal.Record
	last, err := s.gate.Do(ctx, "orders_get", func(t terminal.Terminal) error {
		var err error
		recs, err = t.Orders(strings.TrimSpace(symbol))
		return err
	})
	return nonNil(recs), last, err
}

func nonNil(recs []terminal.Record) []terminal.Record {
	if recs == nil {
		return []terminal.Record{}
	}
	return recs
}
