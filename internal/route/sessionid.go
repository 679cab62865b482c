package route

import (
	"crypto/rand"
	"encoding/binary"
)

// newSessionId generates a random, nonzero 64-bit SessionId (§3: "64-bit,
// randomly chosen once per process per neighbor on session creation").
// Unlike the teacher's DiscriminatorAllocator, SyncRouteSession ids are
// scoped per neighbor with no cross-session uniqueness requirement (the
// wire protocol only ever compares a session id against the one previously
// observed from the same neighbor, §4.3), so no allocation registry is
// needed -- just a retry against the zero value.
func newSessionId() SessionId {
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			// crypto/rand failing is a fatal environment error; fall back
			// to a degenerate but still nonzero value rather than panic.
			return SessionId(1)
		}
		id := SessionId(binary.BigEndian.Uint64(buf[:]))
		if id != 0 {
			return id
		}
	}
}
