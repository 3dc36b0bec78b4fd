package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quizsync-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore.
type SessionStore struct {
	now func() time.Time

	mu      sync.Mutex
	session domain.Session
	exists  bool
	feed    *feed[domain.Session]
}

func NewSessionStore() *SessionStore {
	return &SessionStore{now: time.Now, feed: newFeed[domain.Session]()}
}

func (s *SessionStore) SetSession(_ context.Context, session domain.Session) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.Version = s.session.Version + 1
	session.UpdatedAt = s.now()
	s.session = session
	s.exists = true
	s.feed.publish(session)
	return session, nil
}

func (s *SessionStore) UpdateSession(_ context.Context, expectedVersion int64, patch domain.SessionPatch) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists {
		return domain.Session{}, domain.ErrNoActiveSession
	}
	if s.session.Version != expectedVersion {
		return domain.Session{}, fmt.Errorf("%w: have %d, expected %d", domain.ErrStaleVersion, s.session.Version, expectedVersion)
	}
	updated := patch.Apply(s.session)
	updated.Version++
	updated.UpdatedAt = s.now()
	s.session = updated
	s.feed.publish(updated)
	return updated, nil
}

func (s *SessionStore) GetSession(_ context.Context) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists {
		return domain.Session{}, domain.ErrNoActiveSession
	}
	return s.session, nil
}

func (s *SessionStore) SubscribeSession(ctx context.Context) (<-chan domain.Session, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, cancel := s.feed.subscribe(ctx, s.session, s.exists)
	return ch, cancel, nil
}
