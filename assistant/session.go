package assistant

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"atlasassist/llm"
)

// Session holds the conversation history for one chat session. History
// lives in memory only and is lost on restart.
type Session struct {
	ID        string
	Posts     []llm.Post
	CreatedAt time.Time

	// mu serializes exchanges within the session so concurrent requests
	// can't interleave history.
	mu sync.Mutex
}

type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session with the given ID, creating it if it
// doesn't exist. An empty ID creates a fresh session with a generated ID.
func (s *SessionStore) GetOrCreate(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		session = &Session{
			ID:        id,
			CreatedAt: time.Now(),
		}
		s.sessions[id] = session
	}

	return session
}

func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	return session, ok
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
}
