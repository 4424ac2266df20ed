package memorystore

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"termbridge/internal/market"
	"termbridge/internal/terminal"

	"github.com/stretchr/testify/assert"
)

func tickAt(symbol string, msc int64) market.Tick {
	return market.NewTick(symbol, terminal.RawTick{TimeMsc: &msc}, time.Now())
}

func TestAdvanceDedup(t *testing.T) {
	s := NewTickStore()

	var accepted []int64
	for _, ts := range []int64{100, 100, 150, 90, 200} {
		if s.Advance(tickAt("EURUSD", ts)) {
			accepted = append(accepted, ts)
		}
	}

	assert.Equal(t, []int64{100, 150, 200}, accepted)
	cur, ok := s.Cursor("EURUSD")
	assert.True(t, ok)
	assert.Equal(t, int64(200), cur)
}

func TestAdvanceRejectsMissingSeq(t *testing.T) {
	s := NewTickStore()

	assert.False(t, s.Advance(market.NewTick("EURUSD", terminal.RawTick{}, time.Now())))
	_, ok := s.Cursor("EURUSD")
	assert.False(t, ok)
}

func TestCursorsArePerSymbol(t *testing.T) {
	s := NewTickStore()

	assert.True(t, s.Advance(tickAt("EURUSD", 500)))
	assert.True(t, s.Advance(tickAt("GBPUSD", 100)))
	assert.False(t, s.Advance(tickAt("EURUSD", 400)))

	last, ok := s.Last("GBPUSD")
	assert.True(t, ok)
	assert.Equal(t, "GBPUSD", last.Symbol)
}

func TestRememberKeepsCursor(t *testing.T) {
	s := NewTickStore()
	s.Advance(tickAt("EURUSD", 300))

	s.Remember(tickAt("EURUSD", 100))

	cur, _ := s.Cursor("EURUSD")
	assert.Equal(t, int64(300), cur)
	last, _ := s.Last("EURUSD")
	seq, _ := last.Seq()
	assert.Equal(t, int64(100), seq)
	assert.Equal(t, []string{"EURUSD"}, s.Symbols())
}

func TestAdvanceConcurrentSameTimestamp(t *testing.T) {
	s := NewTickStore()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for n := 0; n < 64; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Advance(tickAt("EURUSD", 1000)) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
