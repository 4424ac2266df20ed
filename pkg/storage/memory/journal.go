// Package memory is an in-process session journal.
package memory

import (
	"context"
	"sort"
	"sync"

	"termbridge/pkg/storage"
)

type Journal struct {
	mu      sync.Mutex
	entries map[string]storage.SessionEntry
}

func NewJournal() *Journal {
	return &Journal{entries: make(map[string]storage.SessionEntry)}
}

func (j *Journal) SessionOpened(_ context.Context, e storage.SessionEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e.Subscriptions = append([]string(nil), e.Subscriptions...)
	j.entries[e.ID] = e
	return nil
}

// SessionClosed completes an entry; a session never seen as opened is recorded as-is.
func (j *Journal) SessionClosed(_ context.Context, e storage.SessionEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if prev, ok := j.entries[e.ID]; ok && e.OpenedAt.IsZero() {
		e.OpenedAt = prev.OpenedAt
	}
	e.Subscriptions = append([]string(nil), e.Subscriptions...)
	j.entries[e.ID] = e
	return nil
}

func (j *Journal) Session(_ context.Context, id string) (storage.SessionEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.entries[id]
	if !ok {
		return storage.SessionEntry{}, storage.ErrSessionNotFound
	}
	return e, nil
}

// Entries returns a copy of every entry ordered by open time.
func (j *Journal) Entries() []storage.SessionEntry {
	j.mu.Lock()
	out := make([]storage.SessionEntry, 0, len(j.entries))
	for _, e := range j.entries {
		out = append(out, e)
	}
	j.mu.Unlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].OpenedAt.Equal(out[b].OpenedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].OpenedAt.Before(out[b].OpenedAt)
	})
	return out
}
