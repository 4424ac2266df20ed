// Package simterm is an in-process terminal that serves a yaml catalog and
// quotes a deterministic random walk. It lets the bridge run without a broker.
package simterm

import (
	"errors"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"termbridge/config"
	"termbridge/internal/terminal"
)

const (
	DefaultStep = 100 * time.Millisecond
	volatility  = 0.0004
	balance     = 10_000.0
)

var ErrAuthFailed = errors.New("authorization failed")

type Options struct {
	// Step is the minimum spacing of two distinct ticks of one symbol.
	Step  time.Duration
	Seed  int64
	Clock func() time.Time
}

type walk struct {
	bucket int64
	mid    float64
	rng    *rand.Rand
}

// Terminal is not safe for concurrent use, matching the real thing; callers
// go through a terminal.Gate.
type Terminal struct {
	mu sync.Mutex

	creds   config.Credentials
	opts    Options
	symbols []Instrument
	index   map[string]int
	walks   map[string]*walk

	initialized bool
	last        terminal.LastError
}

var _ terminal.Terminal = (*Terminal)(nil)

func New(catalog *Catalog, creds config.Credentials, opts Options) *Terminal {
	if opts.Step <= 0 {
		opts.Step = DefaultStep
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	t := &Terminal{
		creds:   creds,
		opts:    opts,
		symbols: append([]Instrument(nil), catalog.Symbols...),
		index:   make(map[string]int, len(catalog.Symbols)),
		walks:   make(map[string]*walk),
		last:    terminal.NewLastError(terminal.CodeOK, "Success"),
	}
	for i, s := range t.symbols {
		t.index[s.Name] = i
	}
	return t
}

// FromConfig builds a simulator from the sim section, falling back to the built-in catalog.
func FromConfig(cfg config.SimConfig, creds config.Credentials) (*Terminal, error) {
	var (
		catalog *Catalog
		err     error
	)
	if cfg.CatalogFile != "" {
		catalog, err = LoadCatalog(cfg.CatalogFile)
	} else {
		catalog, err = DefaultCatalog()
	}
	if err != nil {
		return nil, err
	}
	return New(catalog, creds, Options{Step: cfg.Step, Seed: cfg.Seed}), nil
}

func (t *Terminal) fail(code int, msg string, err error) error {
	t.last = terminal.NewLastError(code, msg)
	return err
}

func (t *Terminal) ok() {
	t.last = terminal.NewLastError(terminal.CodeOK, "Success")
}

// Initialize accepts any login with a password; a login without one is rejected.
func (t *Terminal) Initialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.creds.Login != 0 && t.creds.Password == "" {
		return t.fail(terminal.CodeAuthFailed, "Authorization failed", ErrAuthFailed)
	}
	t.initialized = true
	t.ok()
	return nil
}

func (t *Terminal) Shutdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initialized = false
	return nil
}

func (t *Terminal) LastError() terminal.LastError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

var errNotInitialized = errors.New("terminal not initialized")

func (t *Terminal) ready() error {
	if !t.initialized {
		return t.fail(terminal.CodeNotInitialized, "IPC not initialized", errNotInitialized)
	}
	return nil
}

func (t *Terminal) lookup(name string) (*Instrument, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, t.fail(terminal.CodeNotFound, "Terminal: Not found", terminal.ErrSymbolNotFound)
	}
	return &t.symbols[i], nil
}

func (t *Terminal) SymbolInfo(name string) (terminal.SymbolInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ready(); err != nil {
		return terminal.SymbolInfo{}, err
	}
	inst, err := t.lookup(name)
	if err != nil {
		return terminal.SymbolInfo{}, err
	}
	t.ok()
	return inst.SymbolInfo, nil
}

func (t *Terminal) SymbolSelect(name string, enable bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ready(); err != nil {
		return err
	}
	inst, err := t.lookup(name)
	if err != nil {
		return err
	}
	inst.Visible = enable
	t.ok()
	return nil
}

func (t *Terminal) SymbolsGet(group string) ([]terminal.SymbolInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ready(); err != nil {
		return nil, err
	}
	out := make([]terminal.SymbolInfo, 0)
	for _, s := range t.symbols {
		if terminal.MatchGroup(group, s.Name) {
			out = append(out, s.SymbolInfo)
		}
	}
	t.ok()
	return out, nil
}

// SymbolInfoTick quotes a visible symbol. Within one step the same tick is
// returned; each new step moves the walk once.
func (t *Terminal) SymbolInfoTick(name string) (terminal.RawTick, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ready(); err != nil {
		return terminal.RawTick{}, err
	}
	inst, err := t.lookup(name)
	if err != nil {
		return terminal.RawTick{}, err
	}
	if !inst.Visible {
		return terminal.RawTick{}, t.fail(terminal.CodeFail, "Symbol not selected", terminal.ErrNoTickData)
	}

	step := t.opts.Step.Milliseconds()
	if step <= 0 {
		step = 1
	}
	bucket := t.opts.Clock().UnixMilli() / step

	w, ok := t.walks[name]
	if !ok {
		w = &walk{bucket: bucket, mid: inst.Price, rng: rand.New(rand.NewPCG(uint64(t.opts.Seed), symbolSeed(name)))}
		t.walks[name] = w
	} else if bucket > w.bucket {
		w.bucket = bucket
		w.mid *= 1 + (w.rng.Float64()-0.5)*2*volatility
	}

	pow := math.Pow10(inst.Digits)
	half := inst.Spread / 2
	bid := math.Round((w.mid-half)*pow) / pow
	ask := math.Round((w.mid+half)*pow) / pow
	msc := w.bucket * step
	sec := msc / 1000
	vol := 1.0
	flags := int64(6) // bid and ask changed

	t.ok()
	return terminal.RawTick{
		Time:       &sec,
		TimeMsc:    &msc,
		Bid:        &bid,
		Ask:        &ask,
		Volume:     &vol,
		VolumeReal: &vol,
		Flags:      &flags,
	}, nil
}

func (t *Terminal) AccountInfo() (terminal.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ready(); err != nil {
		return nil, err
	}
	t.ok()
	return terminal.Record{
		"login":       t.creds.Login,
		"server":      serverName(t.creds.Server),
		"currency":    "USD",
		"leverage":    100,
		"balance":     balance,
		"equity":      balance,
		"margin":      0.0,
		"margin_free": balance,
		"trade_mode":  "demo",
	}, nil
}

// Positions is always empty: the simulator does not trade.
func (t *Terminal) Positions(symbol string) ([]terminal.Record, error) {
	return t.emptyTradeState(symbol)
}

func (t *Terminal) Orders(symbol string) ([]terminal.Record, error) {
	return t.emptyTradeState(symbol)
}

func (t *Terminal) emptyTradeState(symbol string) ([]terminal.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ready(); err != nil {
		return nil, err
	}
	if symbol != "" {
		if _, err := t.lookup(symbol); err != nil {
			return nil, err
		}
	}
	t.ok()
	return []terminal.Record{}, nil
}

func symbolSeed(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToUpper(name)))
	return h.Sum64()
}

func serverName(s string) string {
	if s == "" {
		return "Simulator-Demo"
	}
	return s
}
