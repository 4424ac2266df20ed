// Package storage defines the session journal: one entry per streaming
// session, written when it opens and completed when it closes.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionEntry struct {
	ID            string
	Remote        string
	OpenedAt      time.Time
	ClosedAt      time.Time // zero while open
	Subscriptions []string  // interests at close
	Received      int64     // client messages
	Sent          int64     // frames delivered
}

// Open reports whether the session has not been closed yet.
func (e SessionEntry) Open() bool { return e.ClosedAt.IsZero() }

type Journal interface {
	SessionOpened(ctx context.Context, e SessionEntry) error
	SessionClosed(ctx context.Context, e SessionEntry) error
	Session(ctx context.Context, id string) (SessionEntry, error)
}
