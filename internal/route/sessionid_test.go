package route

import "testing"

func TestNewSessionIdNonzero(t *testing.T) {
	for i := 0; i < 100; i++ {
		if id := newSessionId(); id == 0 {
			t.Fatal("newSessionId() returned zero")
		}
	}
}

func TestNewSessionIdDistinct(t *testing.T) {
	seen := make(map[SessionId]struct{})
	for i := 0; i < 50; i++ {
		seen[newSessionId()] = struct{}{}
	}
	if len(seen) < 45 {
		t.Errorf("newSessionId() produced too many collisions: %d distinct out of 50", len(seen))
	}
}
