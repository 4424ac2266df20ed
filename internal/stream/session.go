package stream

import (
	"context"
	"encoding/json"
	"time"

	"termbridge/internal/hub"
	"termbridge/internal/protocol"
	"termbridge/internal/resolver"

	"go.uber.org/zap"
)

// sessionHandler answers one client's messages. Messages are handled in
// arrival order on the connection's read goroutine.
type sessionHandler struct {
	backend Backend
	session *hub.Session
	conn    *wsConn
	logger  *zap.Logger
}

func (s *sessionHandler) handle(ctx context.Context, frame []byte) {
	req, err := protocol.Decode(frame)
	if err != nil {
		s.send(ctx, protocol.NewError(protocol.MsgInvalidJSON, nil))
		return
	}
	rid := req.RequestID

	switch req.Kind {
	case protocol.KindPing:
		s.send(ctx, protocol.NewPong(time.Now(), rid))

	case protocol.KindListSymbols:
		limit := resolver.DefaultListLimit
		if req.Limit != nil {
			limit = *req.Limit
		}
		names, last, err := s.backend.ListSymbols(ctx, req.Query, limit)
		if err != nil {
			s.logger.Debug("list symbols failed", zap.String("query", req.Query), zap.Error(err))
		}
		s.send(ctx, protocol.NewSymbols(req.Query, names, last, rid))

	case protocol.KindSetSubscriptions:
		resolved := s.resolveAll(ctx, req.Symbols, rid)
		s.send(ctx, protocol.NewSubscriptions(s.backend.SetSubscriptions(s.session, resolved), rid))

	case protocol.KindSubscribe:
		resolved := s.resolveAll(ctx, req.Symbols, rid)
		s.send(ctx, protocol.NewSubscriptions(s.backend.AddSubscriptions(s.session, resolved), rid))

	case protocol.KindUnsubscribe:
		var drop []string
		for _, requested := range req.Symbols {
			if res, err := s.backend.Resolve(ctx, requested); err == nil && res.Found() {
				drop = append(drop, res.Symbol)
			}
			drop = append(drop, requested)
		}
		s.send(ctx, protocol.NewSubscriptions(s.backend.RemoveSubscriptions(s.session, drop), rid))

	default:
		s.send(ctx, protocol.NewUnknownType(req.Type, rid))
	}
}

// resolveAll resolves every requested symbol. Failures are reported to the
// client and dropped; the rest are returned as canonical names.
func (s *sessionHandler) resolveAll(ctx context.Context, requested []string, rid json.RawMessage) []string {
	out := make([]string, 0, len(requested))
	for _, sym := range requested {
		res, err := s.backend.Resolve(ctx, sym)
		if err != nil || !res.Found() {
			s.send(ctx, protocol.NewNotFound(sym, res.Suggestions, res.LastError, rid))
			continue
		}
		out = append(out, res.Symbol)
		if res.Symbol != sym {
			s.send(ctx, protocol.NewSymbolResolved(sym, res.Symbol, rid))
		}
	}
	return out
}

func (s *sessionHandler) send(ctx context.Context, v any) {
	if err := s.conn.reply(ctx, v); err != nil {
		s.logger.Debug("reply dropped", zap.Error(err))
	}
}
