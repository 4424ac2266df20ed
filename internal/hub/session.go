// Package hub tracks streaming sessions and their symbol interests and fans
// events out to them.
package hub

import (
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Conn delivers one encoded frame to a client. Send must not block for long.
type Conn interface {
	Send(payload []byte) error
}

// Session is one connected streaming client.
type Session struct {
	id       string
	remote   string
	conn     Conn
	openedAt time.Time

	// guarded by Registry.mu
	subs map[string]struct{}

	received atomic.Int64
	sent     atomic.Int64
}

func newSession(conn Conn, remote string) *Session {
	return &Session{
		id:       ulid.Make().String(),
		remote:   remote,
		conn:     conn,
		openedAt: time.Now().UTC(),
		subs:     make(map[string]struct{}),
	}
}

func (s *Session) ID() string          { return s.id }
func (s *Session) Remote() string      { return s.remote }
func (s *Session) OpenedAt() time.Time { return s.openedAt }

// Send writes payload to the client's connection.
func (s *Session) Send(payload []byte) error {
	if err := s.conn.Send(payload); err != nil {
		return err
	}
	s.sent.Add(1)
	return nil
}

// MarkReceived counts one inbound client message.
func (s *Session) MarkReceived() { s.received.Add(1) }

// Counts returns inbound and delivered frame counts.
func (s *Session) Counts() (received, sent int64) {
	return s.received.Load(), s.sent.Load()
}
