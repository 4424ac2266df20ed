// Package termtest provides a scriptable in-memory Terminal for tests.
package termtest

import (
	"sync"
	"sync/atomic"

	"termbridge/internal/terminal"
)

// Fake is a Terminal whose catalog and tick feed are set up by the test.
// It records calls and detects overlapping (reentrant) use.
type Fake struct {
	mu sync.Mutex

	symbols []terminal.SymbolInfo
	feeds   map[string][]terminal.RawTick
	current map[string]terminal.RawTick
	last    terminal.LastError

	// InitErr makes every Initialize fail.
	InitErr error
	// SelectErr makes SymbolSelect fail for a symbol.
	SelectErr map[string]error
	// PanicOn makes SymbolInfoTick panic for a symbol.
	PanicOn map[string]bool
	// Account is returned by AccountInfo.
	Account terminal.Record

	calls    []string
	inFlight atomic.Int32
	overlap  atomic.Bool
	shutdown bool
}

func New(symbols ...terminal.SymbolInfo) *Fake {
	return &Fake{
		symbols:   symbols,
		feeds:     make(map[string][]terminal.RawTick),
		current:   make(map[string]terminal.RawTick),
		SelectErr: make(map[string]error),
		PanicOn:   make(map[string]bool),
		last:      terminal.NewLastError(terminal.CodeOK, "Success"),
	}
}

// Symbol is shorthand for a catalog entry.
func Symbol(name, path string, visible bool) terminal.SymbolInfo {
	return terminal.SymbolInfo{Name: name, Path: path, Visible: visible, Digits: 5}
}

// Feed queues ticks for symbol; each SymbolInfoTick pops one and the last
// one keeps being returned once the queue is empty.
func (f *Fake) Feed(symbol string, ticks ...terminal.RawTick) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds[symbol] = append(f.feeds[symbol], ticks...)
}

// TickAt builds a tick with the given time_msc and prices.
func TickAt(msc int64, bid, ask float64) terminal.RawTick {
	sec := msc / 1000
	return terminal.RawTick{Time: &sec, TimeMsc: &msc, Bid: &bid, Ask: &ask}
}

// Calls returns the recorded call log.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Overlapped reports whether two calls were ever in flight at once.
func (f *Fake) Overlapped() bool { return f.overlap.Load() }

// Visible reports the visibility flag of a symbol.
func (f *Fake) Visible(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.symbols {
		if s.Name == name {
			return s.Visible
		}
	}
	return false
}

func (f *Fake) IsShutdown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdown
}

func (f *Fake) enter(call string) func() {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	return func() { f.inFlight.Add(-1) }
}

func (f *Fake) setLast(code int, msg string) {
	f.last = terminal.NewLastError(code, msg)
}

func (f *Fake) Initialize() error {
	defer f.enter("initialize")()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InitErr != nil {
		f.setLast(terminal.CodeNoConnection, "IPC initialize failed, terminal not found")
		return f.InitErr
	}
	f.shutdown = false
	f.setLast(terminal.CodeOK, "Success")
	return nil
}

func (f *Fake) Shutdown() error {
	defer f.enter("shutdown")()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdown = true
	return nil
}

func (f *Fake) LastError() terminal.LastError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *Fake) SymbolInfo(name string) (terminal.SymbolInfo, error) {
	defer f.enter("symbol_info:" + name)()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.symbols {
		if s.Name == name {
			f.setLast(terminal.CodeOK, "Success")
			return s, nil
		}
	}
	f.setLast(terminal.CodeNotFound, "Terminal: Not found")
	return terminal.SymbolInfo{}, terminal.ErrSymbolNotFound
}

func (f *Fake) SymbolSelect(name string, enable bool) error {
	defer f.enter("symbol_select:" + name)()
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.SelectErr[name]; err != nil {
		f.setLast(terminal.CodeFail, "Terminal: Call failed")
		return err
	}
	for i := range f.symbols {
		if f.symbols[i].Name == name {
			f.symbols[i].Visible = enable
			f.setLast(terminal.CodeOK, "Success")
			return nil
		}
	}
	f.setLast(terminal.CodeNotFound, "Terminal: Not found")
	return terminal.ErrSymbolNotFound
}

func (f *Fake) SymbolsGet(group string) ([]terminal.SymbolInfo, error) {
	defer f.enter("symbols_get:" + group)()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []terminal.SymbolInfo
	for _, s := range f.symbols {
		if terminal.MatchGroup(group, s.Name) {
			out = append(out, s)
		}
	}
	f.setLast(terminal.CodeOK, "Success")
	return out, nil
}

func (f *Fake) SymbolInfoTick(name string) (terminal.RawTick, error) {
	defer f.enter("symbol_info_tick:" + name)()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PanicOn[name] {
		panic("tick feed exploded for " + name)
	}
	if q := f.feeds[name]; len(q) > 0 {
		f.current[name] = q[0]
		f.feeds[name] = q[1:]
	}
	tick, ok := f.current[name]
	if !ok {
		f.setLast(terminal.CodeFail, "Terminal: No tick")
		return terminal.RawTick{}, terminal.ErrNoTickData
	}
	f.setLast(terminal.CodeOK, "Success")
	return tick, nil
}

func (f *Fake) AccountInfo() (terminal.Record, error) {
	defer f.enter("account_info")()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Account == nil {
		f.setLast(terminal.CodeFail, "Terminal: No account")
		return nil, terminal.ErrUnsupported
	}
	return f.Account, nil
}

func (f *Fake) Positions(symbol string) ([]terminal.Record, error) {
	defer f.enter("positions_get:" + symbol)()
	return []terminal.Record{}, nil
}

func (f *Fake) Orders(symbol string) ([]terminal.Record, error) {
	defer f.enter("orders_get:" + symbol)()
	return []terminal.Record{}, nil
}
