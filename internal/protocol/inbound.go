// Package protocol defines the JSON frames exchanged on the tick stream.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies an inbound message.
type Kind int

const (
	KindUnknown Kind = iota
	KindSetSubscriptions
	KindSubscribe
	KindUnsubscribe
	KindListSymbols
	KindPing
)

var kinds = map[string]Kind{
	"set_subscriptions": KindSetSubscriptions,
	"subscribe":         KindSubscribe,
	"unsubscribe":       KindUnsubscribe,
	"list_symbols":      KindListSymbols,
	"ping":              KindPing,
}

// ErrInvalidJSON is returned for frames that are not a JSON object.
var ErrInvalidJSON = errors.New("invalid json")

// Request is one decoded client message.
type Request struct {
	Kind Kind
	// Type is the normalized "type" field, kept for error replies.
	Type    string
	Symbols []string
	Query   string
	// Limit is nil when absent or not a number.
	Limit *int
	// RequestID is echoed verbatim; nil when the client sent none.
	RequestID json.RawMessage
}

type wireRequest struct {
	Type      string          `json:"type"`
	Symbols   json.RawMessage `json:"symbols"`
	Query     *string         `json:"query"`
	Limit     json.RawMessage `json:"limit"`
	RequestID json.RawMessage `json:"request_id"`
}

// Decode parses a client frame. Malformed optional fields are tolerated; only
// a frame that is not a JSON object fails.
func Decode(data []byte) (Request, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Request{}, ErrInvalidJSON
	}
	var w wireRequest
	if err := json.Unmarshal(trimmed, &w); err != nil {
		// a well-formed object with an odd "type" still counts as a message
		var loose map[string]json.RawMessage
		if json.Unmarshal(trimmed, &loose) != nil {
			return Request{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		w = wireRequest{
			Symbols:   loose["symbols"],
			Limit:     loose["limit"],
			RequestID: loose["request_id"],
		}
		if q, ok := loose["query"]; ok {
			var s string
			if json.Unmarshal(q, &s) == nil {
				w.Query = &s
			}
		}
	}

	req := Request{
		Type:    strings.ToLower(strings.TrimSpace(w.Type)),
		Symbols: parseSymbols(w.Symbols),
		Limit:   parseLimit(w.Limit),
	}
	req.Kind = kinds[req.Type]
	if w.Query != nil {
		req.Query = strings.TrimSpace(*w.Query)
	}
	if len(w.RequestID) > 0 && !bytes.Equal(w.RequestID, []byte("null")) {
		req.RequestID = w.RequestID
	}
	return req, nil
}

// parseSymbols accepts a single string or a list. Entries are trimmed, blanks
// dropped and repeats removed in first-seen order.
func parseSymbols(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return uniqueTrimmed([]string{one})
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		var s string
		if err := json.Unmarshal(it, &s); err == nil {
			out = append(out, s)
			continue
		}
		if !bytes.Equal(it, []byte("null")) {
			out = append(out, string(it))
		}
	}
	return uniqueTrimmed(out)
}

func uniqueTrimmed(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// parseLimit accepts a number or a numeric string. Anything else, null
// included, yields nil.
func parseLimit(raw json.RawMessage) *int {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		n := truncate(f)
		return &n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return &n
		}
	}
	return nil
}

func truncate(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}
