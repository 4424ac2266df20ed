package market

import (
	"math"
	"time"

	"termbridge/internal/terminal"
)

// Tick is an immutable price snapshot for one symbol. Optional fields are nil
// when the terminal did not report them and encode as JSON null.
type Tick struct {
	Type       string   `json:"type"` // always "tick"
	Symbol     string   `json:"symbol"`
	Time       *int64   `json:"time"`     // exchange time, seconds
	TimeMsc    *int64   `json:"time_msc"` // exchange time, milliseconds
	Bid        *float64 `json:"bid"`
	Ask        *float64 `json:"ask"`
	Mid        *float64 `json:"mid"`
	Last       *float64 `json:"last"`
	Volume     *float64 `json:"volume"`
	VolumeReal *float64 `json:"volume_real"`
	Flags      *int64   `json:"flags"`
	Spread     *float64 `json:"spread"`
	LocalTsMs  int64    `json:"local_ts_ms"` // receipt time, for latency measurement
}

// NewTick converts a raw terminal tick. mid and spread are only set when both
// bid and ask are present and finite.
func NewTick(symbol string, raw terminal.RawTick, received time.Time) Tick {
	t := Tick{
		Type:       "tick",
		Symbol:     symbol,
		Time:       copyInt(raw.Time),
		TimeMsc:    copyInt(raw.TimeMsc),
		Bid:        finite(raw.Bid),
		Ask:        finite(raw.Ask),
		Last:       finite(raw.Last),
		Volume:     finite(raw.Volume),
		VolumeReal: finite(raw.VolumeReal),
		Flags:      copyInt(raw.Flags),
		LocalTsMs:  received.UnixMilli(),
	}
	if t.Bid != nil && t.Ask != nil {
		mid := (*t.Bid + *t.Ask) / 2
		spread := *t.Ask - *t.Bid
		t.Mid, t.Spread = &mid, &spread
	}
	return t
}

// Seq returns the per-symbol sequence number (time_msc) and whether it is present.
func (t Tick) Seq() (int64, bool) {
	if t.TimeMsc == nil {
		return 0, false
	}
	return *t.TimeMsc, true
}

func finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	f := *v
	return &f
}

func copyInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
