package bybit

import (
	"encoding/json"
	"fmt"
)

// BybitResponse represents a generic response from Bybit's V5 REST API.
// This structure covers the standard response envelope used across all endpoints.
type BybitResponse struct {
	RetCode    int                    `json:"retCode"`    // 0 means success; non-zero indicates an error code
	RetMsg     string                 `json:"retMsg"`     // Human-readable message describing the result or error
	Result     json.RawMessage        `json:"result"`     // Delay decoding, the payload varies per endpoint
	RetExtInfo map[string]interface{} `json:"retExtInfo"` // Optional extra info (e.g. rate limits, error hints)
	Time       int64                  `json:"time"`       // Server timestamp (in milliseconds since epoch)
}

// APIError is a response whose retCode is not zero.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit error %d: %s", e.Code, e.Msg)
}

type InstrumentInfo struct {
	Symbol       string `json:"symbol"`    // e.g., "BTCUSDT"
	BaseCoin     string `json:"baseCoin"`  // e.g., "BTC"
	QuoteCoin    string `json:"quoteCoin"` // e.g., "USDT"
	Status       string `json:"status"`    // "Trading", "PreLaunch", ...
	ContractType string `json:"contractType"`
	PriceScale   string `json:"priceScale"` // decimal places of the price
	PriceFilter  struct {
		TickSize string `json:"tickSize"`
	} `json:"priceFilter"`
}

type InstrumentListResponse struct {
	Category       string           `json:"category"` // e.g., "linear", "spot"
	NextPageCursor string           `json:"nextPageCursor"`
	List           []InstrumentInfo `json:"list"`
}

// Ticker is one entry of /v5/market/tickers. Prices are decimal strings.
type Ticker struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	Bid1Price   string `json:"bid1Price"`
	Ask1Price   string `json:"ask1Price"`
	Volume24h   string `json:"volume24h"`
	Turnover24h string `json:"turnover24h"`
}

type TickerListResponse struct {
	Category string   `json:"category"`
	List     []Ticker `json:"list"`
}
