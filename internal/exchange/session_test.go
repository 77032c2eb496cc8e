package exchange

import (
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	s := &session{}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if s.usable(now) {
		t.Error("empty session reports usable")
	}

	s.beginCreate()
	if s.usable(now) {
		t.Error("creating session reports usable")
	}

	s.activate(42, now)
	if !s.usable(now) {
		t.Error("fresh session not usable")
	}
	if s.currentID() != 42 {
		t.Errorf("currentID = %d, want 42", s.currentID())
	}

	// Still inside the renewal margin at 54 minutes.
	if !s.usable(now.Add(54 * time.Minute)) {
		t.Error("session expired before the renewal margin")
	}
	// At 55 minutes the 5-minute margin kicks in: renew early.
	if s.usable(now.Add(55 * time.Minute)) {
		t.Error("session usable inside the renewal margin")
	}
	if s.state != sessionExpiring {
		t.Errorf("state = %v, want expiring", s.state)
	}

	s.invalidate()
	if s.currentID() != 0 || s.state != sessionNone {
		t.Error("invalidate did not clear the session")
	}
}
