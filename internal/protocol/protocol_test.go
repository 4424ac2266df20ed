package protocol_test

import (
	"encoding/json"
	"testing"
	"time"

	"termbridge/internal/protocol"
	"termbridge/internal/terminal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKinds(t *testing.T) {
	cases := map[string]protocol.Kind{
		`{"type":"set_subscriptions"}`: protocol.KindSetSubscriptions,
		`{"type":" Subscribe "}`:       protocol.KindSubscribe,
		`{"type":"unsubscribe"}`:       protocol.KindUnsubscribe,
		`{"type":"list_symbols"}`:      protocol.KindListSymbols,
		`{"type":"PING"}`:              protocol.KindPing,
		`{"type":"bogus"}`:             protocol.KindUnknown,
		`{}`:                           protocol.KindUnknown,
	}
	for frame, want := range cases {
		req, err := protocol.Decode([]byte(frame))
		require.NoError(t, err, frame)
		assert.Equal(t, want, req.Kind, frame)
	}
}

func TestDecodeSymbolsShapes(t *testing.T) {
	req, err := protocol.Decode([]byte(`{"type":"subscribe","symbols":" eurusd "}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"eurusd"}, req.Symbols)

	req, err = protocol.Decode([]byte(`{"type":"subscribe","symbols":["EURUSD"," ","EURUSD",42,null,"XAUUSD"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"EURUSD", "42", "XAUUSD"}, req.Symbols)

	req, err = protocol.Decode([]byte(`{"type":"subscribe","symbols":{"a":1}}`))
	require.NoError(t, err)
	assert.Empty(t, req.Symbols)
}

func TestDecodeLimitAndQuery(t *testing.T) {
	req, err := protocol.Decode([]byte(`{"type":"list_symbols","query":" eur ","limit":"3"}`))
	require.NoError(t, err)
	assert.Equal(t, "eur", req.Query)
	require.NotNil(t, req.Limit)
	assert.Equal(t, 3, *req.Limit)

	req, err = protocol.Decode([]byte(`{"type":"list_symbols","limit":7.9}`))
	require.NoError(t, err)
	require.NotNil(t, req.Limit)
	assert.Equal(t, 7, *req.Limit)

	req, err = protocol.Decode([]byte(`{"type":"list_symbols","limit":0}`))
	require.NoError(t, err)
	require.NotNil(t, req.Limit)
	assert.Equal(t, 0, *req.Limit)

	for _, frame := range []string{
		`{"type":"list_symbols","limit":"many"}`,
		`{"type":"list_symbols","limit":null}`,
		`{"type":"list_symbols","limit":true}`,
		`{"type":"list_symbols"}`,
	} {
		req, err = protocol.Decode([]byte(frame))
		require.NoError(t, err)
		assert.Nil(t, req.Limit, frame)
	}
}

func TestDecodeRequestID(t *testing.T) {
	req, err := protocol.Decode([]byte(`{"type":"ping","request_id":{"n":1}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(req.RequestID))

	req, err = protocol.Decode([]byte(`{"type":"ping","request_id":null}`))
	require.NoError(t, err)
	assert.Nil(t, req.RequestID)
}

func TestDecodeTolerantOfOddType(t *testing.T) {
	req, err := protocol.Decode([]byte(`{"type":5,"request_id":"r1"}`))
	require.NoError(t, err)
	assert.Equal(t, protocol.KindUnknown, req.Kind)
	assert.Equal(t, `"r1"`, string(req.RequestID))
}

func TestDecodeInvalid(t *testing.T) {
	for _, frame := range []string{``, `not json`, `[1,2]`, `"ping"`, `{"type":`} {
		_, err := protocol.Decode([]byte(frame))
		assert.ErrorIs(t, err, protocol.ErrInvalidJSON, frame)
	}
}

func TestOutboundShapes(t *testing.T) {
	code := terminal.CodeNotFound
	last := terminal.LastError{Code: &code, Message: "not found"}

	b, err := json.Marshal(protocol.NewNotFound("DOGE", nil, last, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"symbol_error","symbol":"DOGE","message":"Symbol not found for this broker",
		"suggestions":[],"last_error":{"code":-4,"message":"not found"}}`, string(b))

	b, err = json.Marshal(protocol.NewNotFound("XAU", []string{"XAUUSD"}, last, json.RawMessage(`"r9"`)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"symbol_error","symbol":"XAU","message":"Symbol not found for this broker",
		"suggestions":["XAUUSD"],"last_error":{"code":-4,"message":"not found"},"request_id":"r9"}`, string(b))

	// the poller's unavailable error carries no suggestions
	b, err = json.Marshal(protocol.NewUnavailable("XAUUSD", last))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"symbol_error","symbol":"XAUUSD","message":"Unknown or unavailable symbol",
		"last_error":{"code":-4,"message":"not found"}}`, string(b))

	b, err = json.Marshal(protocol.NewSymbols("", nil, last, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"symbols","query":"","symbols":[],"last_error":{"code":-4,"message":"not found"},
		"request_id":null}`, string(b))

	b, err = json.Marshal(protocol.NewUnknownType("bogus", json.RawMessage(`7`)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"Unknown message type: bogus","request_id":7}`, string(b))

	b, err = json.Marshal(protocol.NewStatus(150 * time.Millisecond))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"status","connected":true,"poll_interval_ms":150}`, string(b))
}
