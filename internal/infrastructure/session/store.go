// Package session holds the in-process session table. Keyed access uses one
// mutex per session under a table read lock, so requests for distinct
// sessions never block each other while same-session turns serialize whole
// retrieve/generate/append sequences.
package session

import (
	"sort"
	"sync"

	"github.com/lexgo/statute-consult/internal/core/domain"
)

type entry struct {
	mu  sync.Mutex
	ctx *domain.ConversationContext
}

type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// WithSession runs fn while holding the session's lock. When create is true
// an unknown id gets a fresh empty context (the lazy first-turn path);
// otherwise an unknown id is domain.ErrSessionNotFound. The context passed
// to fn must not be retained past the call.
func (s *Store) WithSession(sessionID string, create bool, fn func(*domain.ConversationContext) error) error {
	for {
		e, err := s.lookup(sessionID, create)
		if err != nil {
			return err
		}

		e.mu.Lock()
		// The entry may have been deleted or replaced between lookup and
		// lock; retry against the current table state.
		s.mu.RLock()
		current := s.entries[sessionID]
		s.mu.RUnlock()
		if current != e {
			e.mu.Unlock()
			continue
		}

		err = fn(e.ctx)
		e.mu.Unlock()
		return err
	}
}

func (s *Store) lookup(sessionID string, create bool) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}
	if !create {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "lookup session", errNoSession(sessionID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[sessionID]; ok {
		return e, nil
	}
	e = &entry{ctx: domain.NewConversationContext(sessionID)}
	s.entries[sessionID] = e
	return e, nil
}

// Reset replaces the session's context with an empty one carrying the same
// id. History is discarded, not archived.
func (s *Store) Reset(sessionID string) error {
	return s.WithSession(sessionID, false, func(ctx *domain.ConversationContext) error {
		*ctx = *domain.NewConversationContext(sessionID)
		return nil
	})
}

// Delete removes the session entirely; a later query with the same id starts
// from scratch.
func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[sessionID]; !ok {
		return domain.WrapError(domain.ErrSessionNotFound, "delete session", errNoSession(sessionID))
	}
	delete(s.entries, sessionID)
	return nil
}

// List returns a snapshot of all sessions, sorted by id for deterministic
// output.
func (s *Store) List() []domain.SessionInfo {
	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	out := make([]domain.SessionInfo, 0, len(ids))
	for _, id := range ids {
		_ = s.WithSession(id, false, func(ctx *domain.ConversationContext) error {
			out = append(out, domain.SessionInfo{
				SessionID:    ctx.SessionID,
				MessageCount: len(ctx.History),
				LastActivity: ctx.LastActivity(),
				CurrentTopic: ctx.CurrentTopic,
			})
			return nil
		})
	}
	return out
}

// Count reports the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

type errNoSession string

func (e errNoSession) Error() string { return "no session with id " + string(e) }
