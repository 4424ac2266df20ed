// Package poller runs the background scan that turns terminal ticks into
// scoped broadcasts.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"termbridge/internal/market"
	"termbridge/internal/memorystore"
	"termbridge/internal/metrics"
	"termbridge/internal/protocol"
	"termbridge/internal/terminal"

	"go.uber.org/zap"
)

const (
	DefaultInterval = 150 * time.Millisecond
	MinInterval     = 25 * time.Millisecond
	ErrorBackoff    = time.Second
)

// Interests reports the symbols someone currently wants.
type Interests interface {
	Union() []string
}

// Broadcaster delivers an event to the sessions interested in scope
// ("" for everyone).
type Broadcaster interface {
	Broadcast(event any, scope string)
}

type Options struct {
	Interval time.Duration
	// Backoff is the pause after a cycle that failed unexpectedly.
	Backoff time.Duration
}

type Poller struct {
	gate      *terminal.Gate
	interests Interests
	bus       Broadcaster
	store     *memorystore.TickStore
	logger    *zap.Logger
	metrics   *metrics.Metrics

	interval time.Duration
	backoff  time.Duration
}

func New(gate *terminal.Gate, interests Interests, bus Broadcaster, store *memorystore.TickStore,
	logger *zap.Logger, m *metrics.Metrics, opts Options) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if interval < MinInterval {
		interval = MinInterval
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = ErrorBackoff
	}
	return &Poller{
		gate:      gate,
		interests: interests,
		bus:       bus,
		store:     store,
		logger:    logger,
		metrics:   m,
		interval:  interval,
		backoff:   backoff,
	}
}

func (p *Poller) Interval() time.Duration { return p.interval }

// Run scans until ctx is cancelled. Cancellation is observed between symbols
// and while sleeping; a symbol already being polled is finished first.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", zap.Duration("interval", p.interval))
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return nil
		case <-timer.C:
		}

		wait := p.interval
		if err := p.safeCycle(ctx); err != nil {
			p.logger.Error("poll cycle failed", zap.Error(err))
			p.bus.Broadcast(protocol.NewError(err.Error(), nil), "")
			wait = p.backoff
		}
		timer.Reset(wait)
	}
}

func (p *Poller) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poll cycle panic: %v", r)
		}
	}()
	p.cycle(ctx)
	return nil
}

// cycle polls every subscribed symbol once.
func (p *Poller) cycle(ctx context.Context) {
	symbols := p.interests.Union()
	if len(symbols) == 0 {
		return
	}
	if _, err := p.gate.Ready(ctx); err != nil {
		p.logger.Debug("terminal not ready", zap.Error(err))
		return
	}
	p.metrics.PollCycle()

	work := context.WithoutCancel(ctx)
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return
		}
		if err := p.pollSymbol(work, symbol); err != nil {
			p.logger.Warn("symbol poll failed", zap.String("symbol", symbol), zap.Error(err))
			p.bus.Broadcast(protocol.NewError(err.Error(), nil), "")
		}
	}
}

// pollSymbol returns an error only for unexpected failures; expected ones
// (unknown symbol, no fresh tick) are handled here.
func (p *Poller) pollSymbol(ctx context.Context, symbol string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v", symbol, r)
		}
	}()

	last, err := p.gate.Do(ctx, "ensure_visible", func(t terminal.Terminal) error {
		return terminal.EnsureVisible(t, symbol)
	})
	if err != nil {
		if errors.Is(err, terminal.ErrTransientFault) {
			return err
		}
		p.bus.Broadcast(protocol.NewUnavailable(symbol, last), symbol)
		return nil
	}

	var raw terminal.RawTick
	_, err = p.gate.Do(ctx, "symbol_info_tick", func(t terminal.Terminal) error {
		var err error
		raw, err = t.SymbolInfoTick(symbol)
		return err
	})
	if err != nil {
		if errors.Is(err, terminal.ErrTransientFault) {
			return err
		}
		return nil
	}

	tick := market.NewTick(symbol, raw, time.Now())
	if !p.store.Advance(tick) {
		return nil
	}
	p.bus.Broadcast(tick, symbol)
	return nil
}
