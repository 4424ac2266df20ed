// Package api serves the bridge's REST endpoints alongside the tick stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"termbridge/internal/market"
	"termbridge/internal/resolver"
	"termbridge/internal/terminal"

	"go.uber.org/zap"
)

// Service is the part of the bridge the REST handlers call.
type Service interface {
	HasTerminal() bool
	Driver() string
	Sessions() int

	Resolve(ctx context.Context, requested string) (resolver.Result, error)
	ListSymbols(ctx context.Context, query string, limit int) ([]string, terminal.LastError, error)
	GetQuote(ctx context.Context, symbol string) (*market.Tick, terminal.LastError, error)

	Account(ctx context.Context) (terminal.Record, terminal.LastError, error)
	Positions(ctx context.Context, symbol string) ([]terminal.Record, terminal.LastError, error)
	Orders(ctx context.Context, symbol string) ([]terminal.Record, terminal.LastError, error)
}

type Server struct {
	svc    Service
	logger *zap.Logger
	mux    *http.ServeMux
}

// NewServer registers the REST routes. stream serves /ws/ticks and metrics
// serves metricsPath; either may be nil.
func NewServer(svc Service, stream http.Handler, metrics http.Handler, metricsPath string, logger *zap.Logger) *Server {
	s := &Server{svc: svc, logger: logger, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /health", s.health)
	s.mux.HandleFunc("GET /symbols", s.symbols)
	s.mux.HandleFunc("GET /quote", s.quote)
	s.mux.HandleFunc("GET /quotes", s.quotes)
	s.mux.HandleFunc("GET /account", s.account)
	s.mux.HandleFunc("GET /positions", s.positions)
	s.mux.HandleFunc("GET /orders", s.orders)
	if stream != nil {
		s.mux.Handle("GET /ws/ticks", stream)
	}
	if metrics != nil {
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		s.mux.Handle("GET "+metricsPath, metrics)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// health is always 200 while the process is up.
func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.write(w, http.StatusOK, map[string]any{
		"ok": true,
		"terminal": map[string]any{
			"available": s.svc.HasTerminal(),
			"driver":    s.svc.Driver(),
		},
		"sessions": s.svc.Sessions(),
	})
}

// symbols never fails; a terminal error shows up as an empty list plus last_error.
func (s *Server) symbols(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(strings.TrimSpace(q.Get("limit")))
	if err != nil {
		limit = resolver.DefaultListLimit
	}
	names, last, err := s.svc.ListSymbols(r.Context(), q.Get("query"), limit)
	if err != nil {
		s.logger.Debug("symbol listing failed", zap.Error(err))
	}
	s.write(w, http.StatusOK, map[string]any{
		"ok":         true,
		"symbols":    names,
		"last_error": last,
	})
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		s.fail(w, http.StatusBadRequest, "Symbol is required", nil)
		return
	}
	res := s.lookup(r.Context(), symbol)
	status := http.StatusOK
	if !res.OK {
		status = http.StatusInternalServerError
		if res.Resolved == "" {
			status = http.StatusNotFound
		}
	}
	s.write(w, status, res)
}

func (s *Server) quotes(w http.ResponseWriter, r *http.Request) {
	var requested []string
	for _, part := range strings.Split(r.URL.Query().Get("symbols"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			requested = append(requested, part)
		}
	}
	if len(requested) == 0 {
		s.fail(w, http.StatusBadRequest, "Symbols are required", nil)
		return
	}

	results := make([]QuoteResult, 0, len(requested))
	for _, symbol := range requested {
		results = append(results, s.lookup(r.Context(), symbol))
	}
	s.write(w, http.StatusOK, map[string]any{"ok": true, "quotes": results})
}

// QuoteResult is the body of /quote and one entry of /quotes.
type QuoteResult struct {
	OK          bool               `json:"ok"`
	Error       string             `json:"error,omitempty"`
	Requested   string             `json:"requested"`
	Resolved    string             `json:"resolved,omitempty"`
	Suggestions *[]string          `json:"suggestions,omitempty"` // set only when resolution failed
	Quote       *market.Tick       `json:"quote,omitempty"`
	LastError   terminal.LastError `json:"last_error"`
}

// lookup resolves symbol and then fetches its quote, each through its own gate call.
func (s *Server) lookup(ctx context.Context, symbol string) QuoteResult {
	res, err := s.svc.Resolve(ctx, symbol)
	if err != nil || !res.Found() {
		suggestions := res.Suggestions
		if suggestions == nil {
			suggestions = []string{}
		}
		return QuoteResult{
			Error:       "Symbol not found",
			Requested:   symbol,
			Suggestions: &suggestions,
			LastError:   res.LastError,
		}
	}

	tick, last, err := s.svc.GetQuote(ctx, res.Symbol)
	if err != nil {
		s.logger.Debug("quote failed", zap.String("symbol", res.Symbol), zap.Error(err))
		return QuoteResult{
			Error:     "Quote unavailable",
			Requested: symbol,
			Resolved:  res.Symbol,
			LastError: last,
		}
	}
	return QuoteResult{
		OK:        true,
		Requested: symbol,
		Resolved:  res.Symbol,
		Quote:     tick,
		LastError: last,
	}
}

func (s *Server) account(w http.ResponseWriter, r *http.Request) {
	rec, last, err := s.svc.Account(r.Context())
	if err == nil && rec == nil {
		err = errors.New("empty account record")
	}
	if err != nil {
		s.terminalFailure(w, "No account info", last, err)
		return
	}
	s.write(w, http.StatusOK, map[string]any{"ok": true, "account": rec})
}

func (s *Server) positions(w http.ResponseWriter, r *http.Request) {
	recs, last, err := s.svc.Positions(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		s.terminalFailure(w, "Failed to fetch positions", last, err)
		return
	}
	s.write(w, http.StatusOK, map[string]any{"ok": true, "positions": recs})
}

func (s *Server) orders(w http.ResponseWriter, r *http.Request) {
	recs, last, err := s.svc.Orders(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		s.terminalFailure(w, "Failed to fetch orders", last, err)
		return
	}
	s.write(w, http.StatusOK, map[string]any{"ok": true, "orders": recs})
}

func (s *Server) terminalFailure(w http.ResponseWriter, msg string, last terminal.LastError, err error) {
	switch {
	case !s.svc.HasTerminal():
		msg = "Terminal driver not available"
	case terminal.Unavailable(err):
		msg = "Terminal not initialized"
	case errors.Is(err, terminal.ErrUnsupported):
		msg = "Not supported by terminal driver"
	}
	s.logger.Debug("terminal request failed", zap.String("error", msg), zap.Error(err))
	s.fail(w, http.StatusInternalServerError, msg, &last)
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string, last *terminal.LastError) {
	body := map[string]any{"ok": false, "error": msg}
	if last != nil {
		body["last_error"] = *last
	}
	s.write(w, status, body)
}

func (s *Server) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("write response failed", zap.Error(err))
	}
}
