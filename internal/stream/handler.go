// Package stream serves the /ws/ticks websocket: one session per connection,
// fed by the hub and driven by the client's JSON messages.
package stream

import (
	"context"
	"net/http"
	"time"

	"termbridge/config"
	"termbridge/internal/hub"
	"termbridge/internal/protocol"
	"termbridge/internal/resolver"
	"termbridge/internal/terminal"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Backend is what a stream session needs from the bridge.
type Backend interface {
	HasTerminal() bool
	PollInterval() time.Duration

	OpenSession(conn hub.Conn, remote string) *hub.Session
	CloseSession(s *hub.Session)
	SetSubscriptions(s *hub.Session, symbols []string) []string
	AddSubscriptions(s *hub.Session, symbols []string) []string
	RemoveSubscriptions(s *hub.Session, symbols []string) []string

	Resolve(ctx context.Context, requested string) (resolver.Result, error)
	ListSymbols(ctx context.Context, query string, limit int) ([]string, terminal.LastError, error)
}

type Handler struct {
	backend  Backend
	upgrader websocket.Upgrader
	cfg      config.WSConfig
	logger   *zap.Logger
}

func NewHandler(backend Backend, cfg config.WSConfig, logger *zap.Logger) *Handler {
	return &Handler{
		backend: backend,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		cfg:    cfg,
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	if !h.backend.HasTerminal() {
		h.refuse(ws)
		return
	}

	conn := newWSConn(ws, h.cfg, h.logger)
	session := h.backend.OpenSession(conn, r.RemoteAddr)
	logger := h.logger.With(zap.String("session", session.ID()), zap.String("remote", r.RemoteAddr))
	logger.Info("stream session opened")

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.backend.CloseSession(session)
		logger.Info("stream session closed")
	}()

	go conn.writePump()
	_ = conn.reply(ctx, protocol.NewStatus(h.backend.PollInterval()))

	s := &sessionHandler{backend: h.backend, session: session, conn: conn, logger: logger}
	conn.readPump(func(frame []byte) {
		session.MarkReceived()
		s.handle(ctx, frame)
	})
}

// refuse tells the client no terminal is configured and closes with 1011.
func (h *Handler) refuse(ws *websocket.Conn) {
	defer ws.Close()
	deadline := time.Now().Add(h.cfg.WriteWait)
	_ = ws.SetWriteDeadline(deadline)
	if err := ws.WriteJSON(protocol.NewError(protocol.MsgNoTerminal, nil)); err != nil {
		return
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, protocol.MsgNoTerminal), deadline)
}
