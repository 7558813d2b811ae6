package storage

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/captioner/internal/workflow"
)

// Session is one browser's caption workflow
type Session struct {
	ID         string
	CreatedAt  time.Time
	Controller *workflow.Controller

	lastSeen atomic.Int64
}

// LastSeen is the last time the session was created or fetched
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch(t time.Time) {
	s.lastSeen.Store(t.UnixNano())
}

type SessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

// Create stores a new session whose controller is built by newController
func (s *SessionStore) Create(newController func(id string) *workflow.Controller) *Session {
	id := uuid.NewString()
	session := &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		Controller: newController(id),
	}
	session.touch(session.CreatedAt)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return session
}

func (s *SessionStore) Get(sessionID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	if exists {
		session.touch(time.Now())
	}
	return session, exists
}

// List returns all sessions, oldest first
func (s *SessionStore) List() []*Session {
	s.mu.RLock()
	result := make([]*Session, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, v)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Delete removes the session and returns it so the caller can close it
func (s *SessionStore) Delete(sessionID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, exists := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return session, exists
}

// Expire removes sessions not seen since cutoff and returns them so the
// caller can close them.
func (s *SessionStore) Expire(cutoff time.Time) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []*Session
	for id, session := range s.sessions {
		if session.LastSeen().Before(cutoff) {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	return expired
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
