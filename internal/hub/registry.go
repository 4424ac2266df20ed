package hub

import (
	"sort"
	"strings"
	"sync"

	"termbridge/internal/metrics"
)

// Registry holds every live session and its interest set.
type Registry struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	metrics  *metrics.Metrics
}

func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		sessions: make(map[*Session]struct{}),
		metrics:  m,
	}
}

// Register creates a session with an empty interest set.
func (r *Registry) Register(conn Conn, remote string) *Session {
	s := newSession(conn, remote)
	r.mu.Lock()
	r.sessions[s] = struct{}{}
	r.mu.Unlock()
	r.metrics.SessionOpened()
	return s
}

// Unregister drops the session and its interests. Unknown sessions are ignored.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	_, ok := r.sessions[s]
	delete(r.sessions, s)
	r.mu.Unlock()
	if ok {
		r.metrics.SessionClosed()
	}
}

// Set replaces the session's interests and returns the resulting sorted set.
func (r *Registry) Set(s *Session, symbols []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s]; !ok {
		return []string{}
	}
	s.subs = make(map[string]struct{}, len(symbols))
	for _, sym := range clean(symbols) {
		s.subs[sym] = struct{}{}
	}
	return sortedKeys(s.subs)
}

// Add merges symbols into the session's interests.
func (r *Registry) Add(s *Session, symbols []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s]; !ok {
		return []string{}
	}
	for _, sym := range clean(symbols) {
		s.subs[sym] = struct{}{}
	}
	return sortedKeys(s.subs)
}

// Remove subtracts symbols from the session's interests.
func (r *Registry) Remove(s *Session, symbols []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s]; !ok {
		return []string{}
	}
	for _, sym := range clean(symbols) {
		delete(s.subs, sym)
	}
	return sortedKeys(s.subs)
}

// Subscriptions returns the session's sorted interests.
func (r *Registry) Subscriptions(s *Session) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.sessions[s]; !ok {
		return []string{}
	}
	return sortedKeys(s.subs)
}

// Union returns the sorted union of every session's interests.
func (r *Registry) Union() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make(map[string]struct{})
	for s := range r.sessions {
		for sym := range s.subs {
			all[sym] = struct{}{}
		}
	}
	return sortedKeys(all)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// matching snapshots the sessions that should receive an event for scope.
// An empty scope matches every session.
func (r *Registry) matching(scope string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		if scope == "" {
			out = append(out, s)
			continue
		}
		if _, ok := s.subs[scope]; ok {
			out = append(out, s)
		}
	}
	return out
}

func clean(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if sym = strings.TrimSpace(sym); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
