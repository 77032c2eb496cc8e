package exchange

import (
	"sync"
	"time"
)

// sessionLifetime is how long a session is requested for; renewMargin is
// how early the adapter rolls to a fresh one. Session age is measured on
// the local clock so a skewed venue clock cannot park us on a dead key.
const (
	sessionLifetime = time.Hour
	renewMargin     = 5 * time.Minute
)

type sessionState int

const (
	sessionNone sessionState = iota
	sessionCreating
	sessionLive
	sessionExpiring
)

func (s sessionState) String() string {
	switch s {
	case sessionNone:
		return "none"
	case sessionCreating:
		return "creating"
	case sessionLive:
		return "live"
	case sessionExpiring:
		return "expiring"
	default:
		return "unknown"
	}
}

// session tracks the current ephemeral key registration. All fields are
// guarded by mu; the adapter serializes actions, but renewal can race a
// status log.
type session struct {
	mu        sync.Mutex
	state     sessionState
	id        uint64
	createdAt time.Time
}

// usable reports whether the current session can sign an action: it must
// be live and younger than lifetime − margin.
func (s *session) usable(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != sessionLive {
		return false
	}
	if now.Sub(s.createdAt) >= sessionLifetime-renewMargin {
		s.state = sessionExpiring
		return false
	}
	return true
}

func (s *session) beginCreate() {
	s.mu.Lock()
	s.state = sessionCreating
	s.id = 0
	s.mu.Unlock()
}

func (s *session) activate(id uint64, now time.Time) {
	s.mu.Lock()
	s.state = sessionLive
	s.id = id
	s.createdAt = now
	s.mu.Unlock()
}

// invalidate drops the session after an expiry receipt or create failure.
func (s *session) invalidate() {
	s.mu.Lock()
	s.state = sessionNone
	s.id = 0
	s.mu.Unlock()
}

func (s *session) currentID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}
