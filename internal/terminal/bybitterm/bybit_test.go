package bybitterm

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"termbridge/internal/terminal"
	"termbridge/pkg/bybit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const instrumentsBody = `{"retCode":0,"retMsg":"OK","time":1,"result":{"category":"linear","nextPageCursor":"","list":[
	{"symbol":"BTCUSDT","baseCoin":"BTC","quoteCoin":"USDT","status":"Trading","priceScale":"2"},
	{"symbol":"ETHUSDT","baseCoin":"ETH","quoteCoin":"USDT","status":"Trading","priceScale":"2"},
	{"symbol":"ETHPERP","baseCoin":"ETH","quoteCoin":"USDC","status":"Trading","priceScale":"3"},
	{"symbol":"NEWUSDT","baseCoin":"NEW","quoteCoin":"USDT","status":"PreLaunch","priceScale":"4"}]}}`

type exchange struct {
	instrumentCalls atomic.Int32
	down            atomic.Bool
}

func newExchange(t *testing.T) (*exchange, *bybit.RESTClient) {
	t.Helper()
	ex := &exchange{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ex.down.Load() {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		switch r.URL.Path {
		case "/v5/market/instruments-info":
			ex.instrumentCalls.Add(1)
			fmt.Fprint(w, instrumentsBody)
		case "/v5/market/tickers":
			if r.URL.Query().Get("symbol") == "ETHPERP" {
				fmt.Fprint(w, `{"retCode":10001,"retMsg":"symbol invalid","time":9,"result":{}}`)
				return
			}
			fmt.Fprintf(w, `{"retCode":0,"retMsg":"OK","time":1700000000123,"result":{"category":"linear",
				"list":[{"symbol":%q,"lastPrice":"64000.5","bid1Price":"64000.1","ask1Price":"64000.9","volume24h":"12.5"}]}}`,
				r.URL.Query().Get("symbol"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return ex, bybit.NewRESTClient(srv.URL, 2*time.Second)
}

func TestInitializeLoadsTradingInstruments(t *testing.T) {
	_, client := newExchange(t)
	term := New(client, Options{})

	require.NoError(t, term.Initialize())

	all, err := term.SymbolsGet("")
	require.NoError(t, err)
	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "ETHPERP"}, names)

	info, err := term.SymbolInfo("ETHPERP")
	require.NoError(t, err)
	assert.Equal(t, "Crypto\\linear\\USDC\\ETHPERP", info.Path)
	assert.Equal(t, 3, info.Digits)
	assert.False(t, info.Visible)
}

func TestInitializeCachesCatalog(t *testing.T) {
	ex, client := newExchange(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	term := New(client, Options{Clock: func() time.Time { return now }})

	require.NoError(t, term.Initialize())
	require.NoError(t, term.SymbolSelect("BTCUSDT", true))
	require.NoError(t, term.Initialize())
	assert.Equal(t, int32(1), ex.instrumentCalls.Load())

	now = now.Add(DefaultCatalogTTL)
	require.NoError(t, term.Initialize())
	assert.Equal(t, int32(2), ex.instrumentCalls.Load())

	// visibility survives a refresh
	info, err := term.SymbolInfo("BTCUSDT")
	require.NoError(t, err)
	assert.True(t, info.Visible)
}

func TestInitializeUnreachable(t *testing.T) {
	ex, client := newExchange(t)
	ex.down.Store(true)
	term := New(client, Options{})

	require.Error(t, term.Initialize())
	last := term.LastError()
	require.NotNil(t, last.Code)
	assert.Equal(t, terminal.CodeNoConnection, *last.Code)
}

func TestStaleCatalogServedWhileDown(t *testing.T) {
	ex, client := newExchange(t)
	now := time.Now()
	term := New(client, Options{Clock: func() time.Time { return now }})
	require.NoError(t, term.Initialize())

	ex.down.Store(true)
	now = now.Add(2 * DefaultCatalogTTL)
	require.NoError(t, term.Initialize())

	_, err := term.SymbolInfo("BTCUSDT")
	assert.NoError(t, err)
}

func TestSymbolsGetPatterns(t *testing.T) {
	_, client := newExchange(t)
	term := New(client, Options{})
	require.NoError(t, term.Initialize())

	found, err := term.SymbolsGet("ETH*")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = term.SymbolsGet("*USDT,!ETH*")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "BTCUSDT", found[0].Name)
}

func TestSymbolInfoTick(t *testing.T) {
	_, client := newExchange(t)
	term := New(client, Options{})
	require.NoError(t, term.Initialize())

	tick, err := term.SymbolInfoTick("BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, tick.TimeMsc)
	assert.Equal(t, int64(1700000000123), *tick.TimeMsc)
	assert.Equal(t, int64(1700000000), *tick.Time)
	assert.InDelta(t, 64000.1, *tick.Bid, 1e-9)
	assert.InDelta(t, 64000.9, *tick.Ask, 1e-9)
	assert.InDelta(t, 64000.5, *tick.Last, 1e-9)
	assert.InDelta(t, 12.5, *tick.Volume, 1e-9)
}

func TestSymbolInfoTickFailures(t *testing.T) {
	_, client := newExchange(t)
	term := New(client, Options{})
	require.NoError(t, term.Initialize())

	_, err := term.SymbolInfoTick("ETHPERP")
	assert.ErrorIs(t, err, terminal.ErrNoTickData)
	assert.Equal(t, "symbol invalid", term.LastError().Message)

	_, err = term.SymbolInfoTick("DOGEUSDT")
	assert.ErrorIs(t, err, terminal.ErrSymbolNotFound)
	assert.Equal(t, terminal.CodeNotFound, *term.LastError().Code)
}

func TestTradeStateUnsupported(t *testing.T) {
	_, client := newExchange(t)
	term := New(client, Options{})

	_, err := term.AccountInfo()
	assert.True(t, errors.Is(err, terminal.ErrUnsupported))
	_, err = term.Positions("")
	assert.ErrorIs(t, err, terminal.ErrUnsupported)
	_, err = term.Orders("BTCUSDT")
	assert.ErrorIs(t, err, terminal.ErrUnsupported)
	assert.Equal(t, terminal.CodeUnsupported, *term.LastError().Code)
}
