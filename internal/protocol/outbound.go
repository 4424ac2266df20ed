package protocol

import (
	"encoding/json"
	"time"

	"termbridge/internal/terminal"
)

// Outbound message types.
const (
	TypeTick           = "tick"
	TypeSymbolError    = "symbol_error"
	TypeSymbolResolved = "symbol_resolved"
	TypeSymbols        = "symbols"
	TypeSubscriptions  = "subscriptions"
	TypeStatus         = "status"
	TypePong           = "pong"
	TypeError          = "error"
)

const (
	MsgSymbolNotFound    = "Symbol not found for this broker"
	MsgSymbolUnavailable = "Unknown or unavailable symbol"
	MsgInvalidJSON       = "Invalid JSON"
	MsgNoTerminal        = "Terminal driver not available"
	msgUnknownTypePrefix = "Unknown message type: "
)

type Status struct {
	Type           string `json:"type"`
	Connected      bool   `json:"connected"`
	PollIntervalMs int64  `json:"poll_interval_ms"`
}

func NewStatus(poll time.Duration) Status {
	return Status{Type: TypeStatus, Connected: true, PollIntervalMs: poll.Milliseconds()}
}

type Pong struct {
	Type      string          `json:"type"`
	T         int64           `json:"t"`
	RequestID json.RawMessage `json:"request_id,omitempty"`
}

func NewPong(now time.Time, requestID json.RawMessage) Pong {
	return Pong{Type: TypePong, T: now.UnixMilli(), RequestID: requestID}
}

type Symbols struct {
	Type      string             `json:"type"`
	Query     string             `json:"query"`
	Symbols   []string           `json:"symbols"`
	LastError terminal.LastError `json:"last_error"`
	RequestID json.RawMessage    `json:"request_id"`
}

func NewSymbols(query string, names []string, last terminal.LastError, requestID json.RawMessage) Symbols {
	if names == nil {
		names = []string{}
	}
	if requestID == nil {
		requestID = json.RawMessage("null")
	}
	return Symbols{Type: TypeSymbols, Query: query, Symbols: names, LastError: last, RequestID: requestID}
}

// SymbolError reports a symbol that could not be resolved or polled.
type SymbolError struct {
	Type        string             `json:"type"`
	Symbol      string             `json:"symbol"`
	Message     string             `json:"message"`
	Suggestions *[]string          `json:"suggestions,omitempty"` // always present on not-found errors
	LastError   terminal.LastError `json:"last_error"`
	RequestID   json.RawMessage    `json:"request_id,omitempty"`
}

// NewNotFound is sent when a requested symbol has no match.
func NewNotFound(symbol string, suggestions []string, last terminal.LastError, requestID json.RawMessage) SymbolError {
	if suggestions == nil {
		suggestions = []string{}
	}
	return SymbolError{
		Type:        TypeSymbolError,
		Symbol:      symbol,
		Message:     MsgSymbolNotFound,
		Suggestions: &suggestions,
		LastError:   last,
		RequestID:   requestID,
	}
}

// NewUnavailable is broadcast by the poller when a subscribed symbol cannot be selected.
func NewUnavailable(symbol string, last terminal.LastError) SymbolError {
	return SymbolError{Type: TypeSymbolError, Symbol: symbol, Message: MsgSymbolUnavailable, LastError: last}
}

type SymbolResolved struct {
	Type      string          `json:"type"`
	Requested string          `json:"requested"`
	Symbol    string          `json:"symbol"`
	RequestID json.RawMessage `json:"request_id,omitempty"`
}

func NewSymbolResolved(requested, symbol string, requestID json.RawMessage) SymbolResolved {
	return SymbolResolved{Type: TypeSymbolResolved, Requested: requested, Symbol: symbol, RequestID: requestID}
}

type Subscriptions struct {
	Type      string          `json:"type"`
	Symbols   []string        `json:"symbols"`
	RequestID json.RawMessage `json:"request_id,omitempty"`
}

func NewSubscriptions(symbols []string, requestID json.RawMessage) Subscriptions {
	if symbols == nil {
		symbols = []string{}
	}
	return Subscriptions{Type: TypeSubscriptions, Symbols: symbols, RequestID: requestID}
}

type Error struct {
	Type      string          `json:"type"`
	Message   string          `json:"message"`
	RequestID json.RawMessage `json:"request_id,omitempty"`
}

func NewError(message string, requestID json.RawMessage) Error {
	return Error{Type: TypeError, Message: message, RequestID: requestID}
}

func NewUnknownType(typ string, requestID json.RawMessage) Error {
	return NewError(msgUnknownTypePrefix+typ, requestID)
}
