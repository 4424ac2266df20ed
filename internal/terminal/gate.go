package terminal

import (
	"context"
	"errors"
	"time"

	"termbridge/internal/metrics"

	"go.uber.org/zap"
)

// Gate grants exclusive access to a Terminal. Waiters are served in arrival order,
// and every call is preceded by an Initialize so a dropped terminal is
// reconnected transparently.
type Gate struct {
	term    Terminal
	slot    chan struct{}
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewGate wraps term. A nil term yields a gate that always reports ErrUnavailable.
func NewGate(term Terminal, logger *zap.Logger, m *metrics.Metrics) *Gate {
	return &Gate{
		term:    term,
		slot:    make(chan struct{}, 1),
		logger:  logger,
		metrics: m,
	}
}

// Do runs fn with exclusive access to the terminal and returns fn's error along
// with the terminal's last native error, sampled while the terminal is still held.
func (g *Gate) Do(ctx context.Context, op string, fn func(Terminal) error) (last LastError, err error) {
	if g.term == nil {
		return NoDriver, &UnavailableError{Last: NoDriver}
	}
	if err := g.acquire(ctx); err != nil {
		return LastError{}, err
	}
	defer g.release()

	defer func() {
		if r := recover(); r != nil {
			err = &FaultError{Op: op, Value: r}
			last = g.lastError()
			g.logger.Error("terminal call panicked", zap.String("op", op), zap.Any("panic", r))
		}
		g.metrics.TerminalCall(op, outcome(err))
	}()

	if initErr := g.term.Initialize(); initErr != nil {
		last = g.term.LastError()
		return last, &UnavailableError{Last: last, Cause: initErr}
	}

	err = fn(g.term)
	return g.term.LastError(), err
}

// Ready confirms the terminal is initialized.
func (g *Gate) Ready(ctx context.Context) (LastError, error) {
	return g.Do(ctx, "initialize", func(Terminal) error { return nil })
}

// Shutdown disconnects the terminal once any in-flight call has finished.
func (g *Gate) Shutdown(ctx context.Context) error {
	if g.term == nil {
		return nil
	}
	if err := g.acquire(ctx); err != nil {
		return err
	}
	defer g.release()
	return g.term.Shutdown()
}

func (g *Gate) acquire(ctx context.Context) error {
	start := time.Now()
	select {
	case g.slot <- struct{}{}:
		g.metrics.ObserveGateWait(time.Since(start))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) release() { <-g.slot }

func (g *Gate) lastError() (last LastError) {
	defer func() {
		if r := recover(); r != nil {
			last = LastError{Message: "last error unavailable"}
		}
	}()
	return g.term.LastError()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrSymbolNotFound):
		return "not_found"
	case errors.Is(err, ErrNoTickData):
		return "no_data"
	case errors.Is(err, ErrTransientFault):
		return "fault"
	default:
		return "error"
	}
}

// EnsureVisible marks symbol as actively quoted, selecting it when needed.
// It must be called with the terminal held.
func EnsureVisible(t Terminal, symbol string) error {
	info, err := t.SymbolInfo(symbol)
	if err != nil {
		return err
	}
	if info.Visible {
		return nil
	}
	return t.SymbolSelect(symbol, true)
}
