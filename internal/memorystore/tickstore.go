package memorystore

import (
	"sort"
	"sync"

	"termbridge/internal/market"
)

// TickStore holds, per symbol, the sequence cursor (last broadcast time_msc)
// and the last-known tick.
type TickStore struct {
	globalMu sync.RWMutex
	data     map[string]*symbolTicks
}

type symbolTicks struct {
	mu      sync.Mutex
	cursor  int64
	hasSeq  bool
	last    market.Tick
	hasLast bool
}

func NewTickStore() *TickStore {
	return &TickStore{
		data: make(map[string]*symbolTicks),
	}
}

func (s *TickStore) entry(symbol string) *symbolTicks {
	s.globalMu.RLock()
	st, ok := s.data[symbol]
	s.globalMu.RUnlock()
	if ok {
		return st
	}

	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	if st, ok = s.data[symbol]; !ok {
		st = &symbolTicks{}
		s.data[symbol] = st
	}
	return st
}

// Advance accepts tick only if its time_msc is strictly greater than the
// symbol's cursor. On acceptance the cursor and the cached tick move together.
func (s *TickStore) Advance(tick market.Tick) bool {
	seq, ok := tick.Seq()
	if !ok {
		return false
	}

	st := s.entry(tick.Symbol)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.hasSeq && seq <= st.cursor {
		return false
	}
	st.cursor, st.hasSeq = seq, true
	st.last, st.hasLast = tick, true
	return true
}

// Remember caches tick as the last-known value without touching the cursor.
func (s *TickStore) Remember(tick market.Tick) {
	st := s.entry(tick.Symbol)
	st.mu.Lock()
	st.last, st.hasLast = tick, true
	st.mu.Unlock()
}

// Cursor returns the last accepted time_msc for symbol.
func (s *TickStore) Cursor(symbol string) (int64, bool) {
	s.globalMu.RLock()
	st, ok := s.data[symbol]
	s.globalMu.RUnlock()
	if !ok {
		return 0, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cursor, st.hasSeq
}

// Last returns the last-known tick for symbol.
func (s *TickStore) Last(symbol string) (market.Tick, bool) {
	s.globalMu.RLock()
	st, ok := s.data[symbol]
	s.globalMu.RUnlock()
	if !ok {
		return market.Tick{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.last, st.hasLast
}

// Symbols lists the symbols with a cached tick, sorted.
func (s *TickStore) Symbols() []string {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	out := make([]string, 0, len(s.data))
	for sym, st := range s.data {
		st.mu.Lock()
		has := st.hasLast
		st.mu.Unlock()
		if has {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}
