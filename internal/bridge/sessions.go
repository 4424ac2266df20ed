package bridge

import (
	"context"
	"time"

	"termbridge/internal/hub"
	"termbridge/pkg/storage"

	"go.uber.org/zap"
)

// OpenSession registers a streaming client and records it in the journal.
func (s *Service) OpenSession(conn hub.Conn, remote string) *hub.Session {
	session := s.registry.Register(conn, remote)
	s.record("open", func(ctx context.Context) error {
		return s.journal.SessionOpened(ctx, storage.SessionEntry{
			ID:       session.ID(),
			Remote:   remote,
			OpenedAt: session.OpenedAt(),
		})
	})
	return session
}

// CloseSession drops the client's interests and completes its journal entry.
func (s *Service) CloseSession(session *hub.Session) {
	subs := s.registry.Subscriptions(session)
	s.registry.Unregister(session)
	received, sent := session.Counts()
	s.record("close", func(ctx context.Context) error {
		return s.journal.SessionClosed(ctx, storage.SessionEntry{
			ID:            session.ID(),
			Remote:        session.Remote(),
			OpenedAt:      session.OpenedAt(),
			ClosedAt:      time.Now().UTC(),
			Subscriptions: subs,
			Received:      received,
			Sent:          sent,
		})
	})
}

func (s *Service) SetSubscriptions(session *hub.Session, symbols []string) []string {
	return s.registry.Set(session, symbols)
}

func (s *Service) AddSubscriptions(session *hub.Session, symbols []string) []string {
	return s.registry.Add(session, symbols)
}

func (s *Service) RemoveSubscriptions(session *hub.Session, symbols []string) []string {
	return s.registry.Remove(session, symbols)
}

// record runs a journal write with a short timeout; failures are only logged.
func (s *Service) record(op string, write func(ctx context.Context) error) {
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := write(ctx); err != nil {
		s.logger.Warn("session journal write failed", zap.String("op", op), zap.Error(err))
	}
}
