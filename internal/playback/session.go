package playback

import (
	"sync"
	"time"
)

// SessionState is where a user's playback session is in the command cycle.
type SessionState int

const (
	Idle SessionState = iota
	Searching
	Resolved
	Commanding
	Active
	Paused
)

func (s SessionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Searching:
		return "searching"
	case Resolved:
		return "resolved"
	case Commanding:
		return "commanding"
	case Active:
		return "active"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// session is one user's state. Transitions are recorded under mu; I/O happens outside it.
type session struct {
	mu      sync.Mutex
	state   SessionState
	title   string
	updated time.Time
}

func (s *session) set(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.updated = time.Now()
}

func (s *session) setPlaying(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Active
	s.title = title
	s.updated = time.Now()
}

func (s *session) snapshot() (SessionState, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.title
}

// sessions maps user ids to their session.
type sessions struct {
	mu    sync.RWMutex
	users map[string]*session
}

func newSessions() *sessions {
	return &sessions{users: make(map[string]*session)}
}

func (s *sessions) get(userID string) *session {
	s.mu.RLock()
	sess, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.users[userID]; ok {
		return sess
	}
	sess = &session{state: Idle}
	s.users[userID] = sess
	return sess
}
