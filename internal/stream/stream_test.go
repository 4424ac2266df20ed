package stream_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"termbridge/config"
	"termbridge/internal/bridge"
	"termbridge/internal/stream"
	"termbridge/internal/terminal/termtest"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var wsCfg = config.WSConfig{
	WriteWait:      time.Second,
	PongWait:       time.Minute,
	PingPeriod:     50 * time.Second,
	SendBuffer:     64,
	MaxMessageSize: 64 * 1024,
}

func brokerFake() *termtest.Fake {
	return termtest.New(
		termtest.Symbol("EURUSD", "Forex\\Majors\\EURUSD", true),
		termtest.Symbol("EURUSd", "Forex\\Majors\\EURUSd", true),
		termtest.Symbol("EUR.USD", "Forex\\Majors\\EUR.USD", true),
		termtest.Symbol("GBPUSD", "Forex\\Majors\\GBPUSD", false),
		termtest.Symbol("XAUUSD.m", "Metals\\XAUUSD.m", false),
	)
}

func startServer(t *testing.T, svc *bridge.Service) string {
	t.Helper()
	srv := httptest.NewServer(stream.NewHandler(svc, wsCfg, zap.NewNop()))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newService(fake *termtest.Fake) *bridge.Service {
	if fake == nil {
		return bridge.New(nil, zap.NewNop(), nil, bridge.Options{Driver: "none"})
	}
	return bridge.New(fake, zap.NewNop(), nil, bridge.Options{Driver: "fake", PollInterval: 25 * time.Millisecond})
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, url string) *client {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(frame string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (c *client) next() map[string]any {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	var m map[string]any
	require.NoError(c.t, json.Unmarshal(data, &m))
	return m
}

// until reads frames until one of type typ arrives and returns it.
func (c *client) until(typ string) map[string]any {
	c.t.Helper()
	for {
		if m := c.next(); m["type"] == typ {
			return m
		}
	}
}

func connect(t *testing.T, svc *bridge.Service) *client {
	c := dial(t, startServer(t, svc))
	status := c.next()
	require.Equal(t, "status", status["type"])
	return c
}

func TestStatusOnConnect(t *testing.T) {
	c := dial(t, startServer(t, newService(brokerFake())))

	status := c.next()
	assert.Equal(t, "status", status["type"])
	assert.Equal(t, true, status["connected"])
	assert.Equal(t, float64(25), status["poll_interval_ms"])
}

func TestSubscribeResolvesTypedSymbol(t *testing.T) {
	c := connect(t, newService(brokerFake()))

	c.send(`{"type":"subscribe","symbols":["eurusd"],"request_id":"r1"}`)

	resolved := c.next()
	assert.Equal(t, "symbol_resolved", resolved["type"])
	assert.Equal(t, "eurusd", resolved["requested"])
	assert.Equal(t, "EURUSD", resolved["symbol"])
	assert.Equal(t, "r1", resolved["request_id"])

	subs := c.next()
	assert.Equal(t, "subscriptions", subs["type"])
	assert.Equal(t, []any{"EURUSD"}, subs["symbols"])
	assert.Equal(t, "r1", subs["request_id"])
}

func TestSetSubscriptionsReportsAndDrops(t *testing.T) {
	c := connect(t, newService(brokerFake()))

	c.send(`{"type":"set_subscriptions","symbols":["GBPUSD","DOGE"]}`)

	symErr := c.until("symbol_error")
	assert.Equal(t, "DOGE", symErr["symbol"])
	assert.Equal(t, "Symbol not found for this broker", symErr["message"])
	assert.Equal(t, []any{}, symErr["suggestions"])
	assert.NotNil(t, symErr["last_error"])

	subs := c.until("subscriptions")
	assert.Equal(t, []any{"GBPUSD"}, subs["symbols"])

	c.send(`{"type":"set_subscriptions","symbols":"xauusd"}`)
	resolved := c.until("symbol_resolved")
	assert.Equal(t, "XAUUSD.m", resolved["symbol"])
	subs = c.until("subscriptions")
	assert.Equal(t, []any{"XAUUSD.m"}, subs["symbols"])
}

func TestUnsubscribeByTypedName(t *testing.T) {
	c := connect(t, newService(brokerFake()))

	c.send(`{"type":"subscribe","symbols":["eurusd","GBPUSD"]}`)
	subs := c.until("subscriptions")
	assert.Equal(t, []any{"EURUSD", "GBPUSD"}, subs["symbols"])

	c.send(`{"type":"unsubscribe","symbols":["eurusd"]}`)
	subs = c.next()
	assert.Equal(t, "subscriptions", subs["type"])
	assert.Equal(t, []any{"GBPUSD"}, subs["symbols"])
}

func TestListSymbols(t *testing.T) {
	c := connect(t, newService(brokerFake()))

	c.send(`{"type":"list_symbols","query":"*","limit":3,"request_id":42}`)

	msg := c.next()
	assert.Equal(t, "symbols", msg["type"])
	assert.Equal(t, "*", msg["query"])
	assert.Equal(t, []any{"EUR.USD", "EURUSD", "EURUSd"}, msg["symbols"])
	assert.Equal(t, float64(42), msg["request_id"])
	assert.NotNil(t, msg["last_error"])
}

func TestListSymbolsLimitHandling(t *testing.T) {
	c := connect(t, newService(brokerFake()))

	// zero clamps to one name
	c.send(`{"type":"list_symbols","query":"*","limit":0}`)
	assert.Equal(t, []any{"EUR.USD"}, c.next()["symbols"])

	// an unparseable limit falls back to the default
	c.send(`{"type":"list_symbols","query":"*","limit":"lots"}`)
	assert.Len(t, c.next()["symbols"], 5)
}

func TestPingUnknownAndInvalid(t *testing.T) {
	c := connect(t, newService(brokerFake()))

	c.send(`{"type":"ping","request_id":"p"}`)
	pong := c.next()
	assert.Equal(t, "pong", pong["type"])
	assert.Equal(t, "p", pong["request_id"])
	assert.InDelta(t, float64(time.Now().UnixMilli()), pong["t"], 5000)

	c.send(`{"type":"dance"}`)
	msg := c.next()
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "Unknown message type: dance", msg["message"])

	c.send(`{not json`)
	msg = c.next()
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "Invalid JSON", msg["message"])

	// connection stays usable
	c.send(`{"type":"ping"}`)
	assert.Equal(t, "pong", c.next()["type"])
}

func TestTicksFlowAfterSubscribe(t *testing.T) {
	fake := brokerFake()
	fake.Feed("EURUSD", termtest.TickAt(100, 1.1, 1.2), termtest.TickAt(100, 1.1, 1.2), termtest.TickAt(150, 1.1, 1.25))
	svc := newService(fake)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	c := connect(t, svc)

	c.send(`{"type":"subscribe","symbols":["EURUSD"]}`)
	c.until("subscriptions")

	first := c.until("tick")
	second := c.until("tick")
	assert.Equal(t, "EURUSD", first["symbol"])
	assert.Equal(t, float64(100), first["time_msc"])
	assert.Equal(t, float64(150), second["time_msc"])
}

func TestSessionUnregisteredOnDisconnect(t *testing.T) {
	svc := newService(brokerFake())
	c := connect(t, svc)
	require.Equal(t, 1, svc.Sessions())

	require.NoError(t, c.conn.Close())
	assert.Eventually(t, func() bool { return svc.Sessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestNoTerminalClosesWithError(t *testing.T) {
	c := dial(t, startServer(t, newService(nil)))

	msg := c.next()
	assert.Equal(t, "error", msg["type"])

	_, _, err := c.conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseInternalServerErr, closeErr.Code)
}
