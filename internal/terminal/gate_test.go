package terminal_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"termbridge/internal/terminal"
	"termbridge/internal/terminal/termtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGate(term terminal.Terminal) *terminal.Gate {
	return terminal.NewGate(term, zap.NewNop(), nil)
}

func TestGateSerializesCalls(t *testing.T) {
	fake := termtest.New(termtest.Symbol("EURUSD", "Forex\\EURUSD", true))
	fake.Feed("EURUSD", termtest.TickAt(1000, 1.1, 1.2))
	gate := newGate(fake)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gate.Do(context.Background(), "tick", func(t terminal.Terminal) error {
				if err := terminal.EnsureVisible(t, "EURUSD"); err != nil {
					return err
				}
				_, err := t.SymbolInfoTick("EURUSD")
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, fake.Overlapped(), "terminal calls overlapped")
}

func TestGateUnavailable(t *testing.T) {
	fake := termtest.New()
	fake.InitErr = errors.New("terminal not running")
	gate := newGate(fake)

	called := false
	last, err := gate.Do(context.Background(), "symbols_get", func(terminal.Terminal) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, terminal.Unavailable(err))
	var ue *terminal.UnavailableError
	require.ErrorAs(t, err, &ue)
	require.NotNil(t, last.Code)
	assert.Equal(t, terminal.CodeNoConnection, *last.Code)
	assert.Equal(t, last, ue.Last)
}

func TestGateNilTerminal(t *testing.T) {
	gate := newGate(nil)

	last, err := gate.Ready(context.Background())
	assert.True(t, terminal.Unavailable(err))
	assert.Equal(t, terminal.NoDriver, last)
	assert.NoError(t, gate.Shutdown(context.Background()))
}

func TestGateRecoversPanicAndReleases(t *testing.T) {
	fake := termtest.New()
	gate := newGate(fake)

	_, err := gate.Do(context.Background(), "boom", func(terminal.Terminal) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, terminal.ErrTransientFault)

	_, err = gate.Ready(context.Background())
	assert.NoError(t, err, "gate must be released after a panic")
}

func TestGateReturnsFnError(t *testing.T) {
	fake := termtest.New()
	gate := newGate(fake)

	last, err := gate.Do(context.Background(), "info", func(t terminal.Terminal) error {
		_, err := t.SymbolInfo("NOPE")
		return err
	})
	assert.ErrorIs(t, err, terminal.ErrSymbolNotFound)
	require.NotNil(t, last.Code)
	assert.Equal(t, terminal.CodeNotFound, *last.Code)
}

func TestGateWaitHonoursContext(t *testing.T) {
	gate := newGate(termtest.New())

	hold := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_, _ = gate.Do(context.Background(), "slow", func(terminal.Terminal) error {
			close(entered)
			<-hold
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := gate.Ready(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(hold)
	_, err = gate.Ready(context.Background())
	assert.NoError(t, err)
}

func TestEnsureVisibleSelectsHiddenSymbol(t *testing.T) {
	fake := termtest.New(termtest.Symbol("GBPUSD", "Forex\\GBPUSD", false))
	gate := newGate(fake)

	_, err := gate.Do(context.Background(), "ensure", func(t terminal.Terminal) error {
		return terminal.EnsureVisible(t, "GBPUSD")
	})
	require.NoError(t, err)
	assert.True(t, fake.Visible("GBPUSD"))
}

func TestShutdown(t *testing.T) {
	fake := termtest.New()
	gate := newGate(fake)

	require.NoError(t, gate.Shutdown(context.Background()))
	assert.True(t, fake.IsShutdown())
}
