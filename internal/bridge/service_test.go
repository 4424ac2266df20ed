package bridge_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"termbridge/internal/bridge"
	"termbridge/internal/hub/hubtest"
	"termbridge/internal/terminal"
	"termbridge/internal/terminal/termtest"
	"termbridge/pkg/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T, fake *termtest.Fake) (*bridge.Service, *memory.Journal) {
	t.Helper()
	journal := memory.NewJournal()
	svc := bridge.New(fake, zap.NewNop(), nil, bridge.Options{
		Driver:       "fake",
		PollInterval: 25 * time.Millisecond,
		Journal:      journal,
	})
	return svc, journal
}

func forexFake() *termtest.Fake {
	return termtest.New(
		termtest.Symbol("EURUSD", "Forex\\Majors\\EURUSD", true),
		termtest.Symbol("XAUUSD", "Metals\\XAUUSD", false),
	)
}

func TestGetQuote(t *testing.T) {
	fake := forexFake()
	fake.Feed("XAUUSD", termtest.TickAt(1_700_000_000_123, 2000.5, 2001.5))
	svc, _ := newService(t, fake)

	tick, last, err := svc.GetQuote(context.Background(), " XAUUSD ")
	require.NoError(t, err)
	require.NotNil(t, tick)
	assert.Equal(t, "XAUUSD", tick.Symbol)
	require.NotNil(t, tick.Mid)
	assert.InDelta(t, 2001.0, *tick.Mid, 1e-9)
	require.NotNil(t, last.Code)
	assert.True(t, fake.Visible("XAUUSD"))

	cached, ok := svc.LastTick("XAUUSD")
	require.True(t, ok)
	assert.Equal(t, tick.TimeMsc, cached.TimeMsc)
}

func TestGetQuoteFailures(t *testing.T) {
	svc, _ := newService(t, forexFake())

	_, _, err := svc.GetQuote(context.Background(), "")
	assert.ErrorIs(t, err, terminal.ErrSymbolNotFound)

	_, _, err = svc.GetQuote(context.Background(), "DOGE")
	assert.ErrorIs(t, err, terminal.ErrSymbolNotFound)

	_, last, err := svc.GetQuote(context.Background(), "EURUSD")
	assert.ErrorIs(t, err, terminal.ErrNoTickData)
	require.NotNil(t, last.Code)
}

func TestNoDriver(t *testing.T) {
	svc := bridge.New(nil, zap.NewNop(), nil, bridge.Options{Driver: "none"})

	assert.False(t, svc.HasTerminal())
	_, last, err := svc.GetQuote(context.Background(), "EURUSD")
	assert.True(t, terminal.Unavailable(err))
	assert.Equal(t, terminal.NoDriver, last)

	res, err := svc.Resolve(context.Background(), "EURUSD")
	assert.True(t, terminal.Unavailable(err))
	assert.Empty(t, res.Suggestions)

	svc.Start(context.Background())
	svc.Stop()
}

func TestTradeStateViews(t *testing.T) {
	fake := forexFake()
	fake.Account = terminal.Record{"login": 1234, "balance": 100.5}
	svc, _ := newService(t, fake)
	ctx := context.Background()

	acc, _, err := svc.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100.5, acc["balance"])

	positions, _, err := svc.Positions(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, []terminal.Record{}, positions)
	assert.Contains(t, fake.Calls(), "positions_get:EURUSD")

	orders, _, err := svc.Orders(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Contains(t, fake.Calls(), "orders_get:")
}

func TestAccountUnsupported(t *testing.T) {
	svc, _ := newService(t, forexFake())

	_, _, err := svc.Account(context.Background())
	assert.ErrorIs(t, err, terminal.ErrUnsupported)
}

func TestSessionJournal(t *testing.T) {
	svc, journal := newService(t, forexFake())

	conn := &hubtest.Conn{}
	s := svc.OpenSession(conn, "10.0.0.7:4444")
	assert.Equal(t, 1, svc.Sessions())
	svc.SetSubscriptions(s, []string{"EURUSD", "XAUUSD"})
	svc.RemoveSubscriptions(s, []string{"XAUUSD"})
	s.MarkReceived()

	entry, err := journal.Session(context.Background(), s.ID())
	require.NoError(t, err)
	assert.True(t, entry.Open())

	svc.CloseSession(s)
	assert.Equal(t, 0, svc.Sessions())

	entry, err = journal.Session(context.Background(), s.ID())
	require.NoError(t, err)
	assert.False(t, entry.Open())
	assert.Equal(t, []string{"EURUSD"}, entry.Subscriptions)
	assert.Equal(t, int64(1), entry.Received)
	assert.Equal(t, "10.0.0.7:4444", entry.Remote)
}

func TestStartPollsAndStopShutsDown(t *testing.T) {
	fake := forexFake()
	fake.Feed("EURUSD", termtest.TickAt(100, 1.1, 1.2), termtest.TickAt(200, 1.1, 1.3))
	svc, _ := newService(t, fake)

	conn := &hubtest.Conn{}
	s := svc.OpenSession(conn, "c")
	svc.AddSubscriptions(s, []string{"EURUSD"})

	svc.Start(context.Background())
	assert.Eventually(t, func() bool { return len(conn.OfType("tick")) == 2 }, 2*time.Second, 10*time.Millisecond)
	svc.Stop()

	assert.True(t, fake.IsShutdown())
	assert.False(t, fake.Overlapped())
	// stopping twice is harmless
	svc.Stop()
}

func TestStartToleratesTerminalDown(t *testing.T) {
	fake := forexFake()
	fake.InitErr = errors.New("not running")
	svc, _ := newService(t, fake)

	svc.Start(context.Background())
	defer svc.Stop()
	assert.Equal(t, 25*time.Millisecond, svc.PollInterval())
}

func TestStartThenStopImmediately(t *testing.T) {
	for i := 0; i < 200; i++ {
		fake := forexFake()
		fake.Feed("EURUSD", termtest.TickAt(100, 1.1, 1.2))
		svc, _ := newService(t, fake)
		conn := &hubtest.Conn{}
		svc.AddSubscriptions(svc.OpenSession(conn, "c"), []string{"EURUSD"})

		svc.Start(context.Background())
		svc.Stop()

		require.True(t, fake.IsShutdown(), "iteration %d", i)
		require.False(t, fake.Overlapped(), "iteration %d", i)
	}
}

func TestStopWithoutStartShutsDown(t *testing.T) {
	fake := forexFake()
	svc, _ := newService(t, fake)

	_, err := svc.Resolve(context.Background(), "eurusd")
	require.NoError(t, err)
	svc.Stop()

	assert.True(t, fake.IsShutdown())
}

func TestRestartAfterStop(t *testing.T) {
	fake := forexFake()
	fake.Feed("EURUSD", termtest.TickAt(100, 1.1, 1.2), termtest.TickAt(200, 1.1, 1.3))
	svc, _ := newService(t, fake)
	conn := &hubtest.Conn{}
	svc.AddSubscriptions(svc.OpenSession(conn, "c"), []string{"EURUSD"})

	svc.Start(context.Background())
	svc.Stop()
	svc.Start(context.Background())
	defer svc.Stop()

	// the poller reconnects the terminal and keeps delivering
	assert.Eventually(t, func() bool { return len(conn.OfType("tick")) == 2 }, 2*time.Second, 10*time.Millisecond)
}
