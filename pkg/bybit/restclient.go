package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const instrumentsPageLimit = 1000

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

// get performs a public GET and unwraps the v5 envelope into out.
// It returns the server time of the response in milliseconds.
func (c *RESTClient) get(ctx context.Context, path string, query url.Values, out any) (int64, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("bybit http %d: %s", resp.StatusCode, body)
	}

	var rawResp BybitResponse
	if err := json.NewDecoder(resp.Body).Decode(&rawResp); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if rawResp.RetCode != 0 {
		return rawResp.Time, &APIError{Code: rawResp.RetCode, Msg: rawResp.RetMsg}
	}

	if err := json.Unmarshal(rawResp.Result, out); err != nil {
		return rawResp.Time, fmt.Errorf("decode result: %w", err)
	}
	return rawResp.Time, nil
}

// GetInstruments lists every instrument of category, following the page cursor.
func (c *RESTClient) GetInstruments(ctx context.Context, category Category) ([]InstrumentInfo, error) {
	var all []InstrumentInfo
	cursor := ""
	for {
		query := url.Values{
			"category": {string(category)},
			"limit":    {fmt.Sprint(instrumentsPageLimit)},
		}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var page InstrumentListResponse
		if _, err := c.get(ctx, "/v5/market/instruments-info", query, &page); err != nil {
			return nil, err
		}
		all = append(all, page.List...)

		if page.NextPageCursor == "" || page.NextPageCursor == cursor || len(page.List) == 0 {
			return all, nil
		}
		cursor = page.NextPageCursor
	}
}

// GetTicker fetches the current ticker of one symbol together with the server time.
func (c *RESTClient) GetTicker(ctx context.Context, category Category, symbol string) (Ticker, int64, error) {
	query := url.Values{
		"category": {string(category)},
		"symbol":   {symbol},
	}
	var result TickerListResponse
	serverTime, err := c.get(ctx, "/v5/market/tickers", query, &result)
	if err != nil {
		return Ticker{}, serverTime, err
	}
	for _, t := range result.List {
		if t.Symbol == symbol {
			return t, serverTime, nil
		}
	}
	return Ticker{}, serverTime, fmt.Errorf("ticker %s missing from response", symbol)
}
