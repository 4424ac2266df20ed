// Package bybitterm presents Bybit's public v5 market data as a terminal:
// instruments form the symbol catalog and tickers become ticks.
package bybitterm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"termbridge/config"
	"termbridge/internal/terminal"
	"termbridge/pkg/bybit"
)

const DefaultCatalogTTL = 24 * time.Hour

type Options struct {
	Category   bybit.Category
	Timeout    time.Duration
	CatalogTTL time.Duration
	Clock      func() time.Time
}

type Terminal struct {
	mu sync.Mutex

	client *bybit.RESTClient
	opts   Options

	symbols  []terminal.SymbolInfo
	index    map[string]int
	loadedAt time.Time

	last terminal.LastError
}

var _ terminal.Terminal = (*Terminal)(nil)

func New(client *bybit.RESTClient, opts Options) *Terminal {
	if opts.Category == "" {
		opts.Category = bybit.CategoryLinear
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.CatalogTTL <= 0 {
		opts.CatalogTTL = DefaultCatalogTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Terminal{
		client: client,
		opts:   opts,
		index:  make(map[string]int),
		last:   terminal.NewLastError(terminal.CodeOK, "Success"),
	}
}

func FromConfig(cfg config.BybitConfig) (*Terminal, error) {
	category, err := bybit.ParseCategory(cfg.Category)
	if err != nil {
		return nil, err
	}
	client := bybit.NewRESTClient(cfg.REST.BaseURL, cfg.REST.Timeout)
	return New(client, Options{Category: category, Timeout: cfg.REST.Timeout}), nil
}

func (t *Terminal) fail(code int, msg string, err error) error {
	t.last = terminal.NewLastError(code, msg)
	return err
}

func (t *Terminal) ok() {
	t.last = terminal.NewLastError(terminal.CodeOK, "Success")
}

func (t *Terminal) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), t.opts.Timeout)
}

// Initialize loads the instrument catalog when it is missing or older than
// the catalog TTL. A failed refresh keeps serving the previous catalog.
func (t *Terminal) Initialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.opts.Clock()
	if len(t.symbols) > 0 && now.Sub(t.loadedAt) < t.opts.CatalogTTL {
		t.ok()
		return nil
	}

	ctx, cancel := t.ctx()
	defer cancel()
	instruments, err := t.client.GetInstruments(ctx, t.opts.Category)
	if err != nil {
		if len(t.symbols) > 0 {
			t.ok()
			return nil
		}
		return t.fail(terminal.CodeNoConnection, "instrument catalog unavailable: "+err.Error(), err)
	}

	visible := make(map[string]bool, len(t.symbols))
	for _, s := range t.symbols {
		visible[s.Name] = s.Visible
	}
	t.symbols = t.symbols[:0]
	t.index = make(map[string]int, len(instruments))
	for _, inst := range instruments {
		if inst.Status != "" && inst.Status != bybit.StatusTrading {
			continue
		}
		if _, dup := t.index[inst.Symbol]; dup {
			continue
		}
		t.index[inst.Symbol] = len(t.symbols)
		t.symbols = append(t.symbols, terminal.SymbolInfo{
			Name:    inst.Symbol,
			Path:    t.path(inst),
			Visible: visible[inst.Symbol],
			Digits:  digits(inst.PriceScale),
		})
	}
	t.loadedAt = now
	t.ok()
	return nil
}

// Shutdown keeps the catalog; there is no session to close.
func (t *Terminal) Shutdown() error { return nil }

func (t *Terminal) LastError() terminal.LastError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *Terminal) lookup(name string) (*terminal.SymbolInfo, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, t.fail(terminal.CodeNotFound, "Terminal: Not found", terminal.ErrSymbolNotFound)
	}
	return &t.symbols[i], nil
}

func (t *Terminal) SymbolInfo(name string) (terminal.SymbolInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, err := t.lookup(name)
	if err != nil {
		return terminal.SymbolInfo{}, err
	}
	t.ok()
	return *info, nil
}

// SymbolSelect only flips the local visibility flag.
func (t *Terminal) SymbolSelect(name string, enable bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, err := t.lookup(name)
	if err != nil {
		return err
	}
	info.Visible = enable
	t.ok()
	return nil
}

func (t *Terminal) SymbolsGet(group string) ([]terminal.SymbolInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]terminal.SymbolInfo, 0)
	for _, s := range t.symbols {
		if terminal.MatchGroup(group, s.Name) {
			out = append(out, s)
		}
	}
	t.ok()
	return out, nil
}

// SymbolInfoTick fetches the ticker. The exchange's response time is used as
// the tick time, so two identical snapshots carry distinct sequence numbers
// only when the server clock moved.
func (t *Terminal) SymbolInfoTick(name string) (terminal.RawTick, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.lookup(name); err != nil {
		return terminal.RawTick{}, err
	}

	ctx, cancel := t.ctx()
	defer cancel()
	ticker, serverTime, err := t.client.GetTicker(ctx, t.opts.Category, name)
	if err != nil {
		var apiErr *bybit.APIError
		if errors.As(err, &apiErr) {
			return terminal.RawTick{}, t.fail(terminal.CodeFail, apiErr.Msg, fmt.Errorf("%w: %v", terminal.ErrNoTickData, err))
		}
		return terminal.RawTick{}, t.fail(terminal.CodeNoConnection, err.Error(), fmt.Errorf("%w: %v", terminal.ErrNoTickData, err))
	}
	if serverTime <= 0 {
		serverTime = t.opts.Clock().UnixMilli()
	}

	sec := serverTime / 1000
	tick := terminal.RawTick{
		Time:    &sec,
		TimeMsc: &serverTime,
		Bid:     parsePrice(ticker.Bid1Price),
		Ask:     parsePrice(ticker.Ask1Price),
		Last:    parsePrice(ticker.LastPrice),
		Volume:  parsePrice(ticker.Volume24h),
	}
	tick.VolumeReal = tick.Volume
	t.ok()
	return tick, nil
}

func (t *Terminal) AccountInfo() (terminal.Record, error) {
	return nil, t.unsupported("account_info")
}

func (t *Terminal) Positions(string) ([]terminal.Record, error) {
	return nil, t.unsupported("positions_get")
}

func (t *Terminal) Orders(string) ([]terminal.Record, error) {
	return nil, t.unsupported("orders_get")
}

// unsupported covers private endpoints, which need API keys this driver does not hold.
func (t *Terminal) unsupported(op string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fail(terminal.CodeUnsupported, op+" requires an authenticated account", terminal.ErrUnsupported)
}

func (t *Terminal) path(inst bybit.InstrumentInfo) string {
	parts := []string{"Crypto", string(t.opts.Category)}
	if inst.QuoteCoin != "" {
		parts = append(parts, inst.QuoteCoin)
	}
	return strings.Join(append(parts, inst.Symbol), "\\")
}

func digits(priceScale string) int {
	n, err := strconv.Atoi(priceScale)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parsePrice(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
