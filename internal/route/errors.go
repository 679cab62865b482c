package route

import "errors"

// Sentinel errors for the route package (§7).
var (
	// ErrDuplicatePeerId is returned when an inbound descriptor batch fails
	// the duplicate-id check (§4.1). The whole batch is rejected and the DB
	// is left untouched; the server answers the sender with AlreadyExists,
	// which the sender's ClientTransport turns into a *FatalError.
	ErrDuplicatePeerId = errors.New("duplicate peer id")

	// ErrStopped is returned by the client-side ClientTransport when the
	// neighbor's server answers Unavailable, i.e. it has no session manager
	// behind it (§7, "Stopped").
	ErrStopped = errors.New("route session manager stopped")

	// ErrUnknownPeer names a peer id the DB has never seen, ensured, or been
	// told about. No function in this package returns it; DB lookups report
	// a miss with a boolean instead.
	ErrUnknownPeer = errors.New("unknown peer id")

	// ErrSessionNotFound names a missed session lookup. No function in this
	// package returns it; PeerRouteService.Session reports a miss with a
	// boolean instead.
	ErrSessionNotFound = errors.New("sync session not found")

	// errExpiryNotGreaterThanRefresh guards the §3 invariant that expiry
	// must exceed the refresh interval.
	errExpiryNotGreaterThanRefresh = errors.New("tunables: expiry must exceed refresh interval")

	// errNonPositiveTunable guards against zero/negative durations that
	// would spin the housekeeping loops.
	errNonPositiveTunable = errors.New("tunables: all durations must be positive")
)

// FatalError wraps a condition that the spec requires to abort the routing
// core outright (§4.1, §7, §13(a)): a remote claims our own peer id with a
// version newer than ours. The caller (cmd/routed) treats this differently
// from ErrDuplicatePeerId: it is not recoverable by tearing down one
// session, because our own identity is compromised.
type FatalError struct {
	Peer PeerId
	Err  error
}

func (e *FatalError) Error() string {
	return "fatal: peer " + peerIDString(e.Peer) + ": " + e.Err.Error()
}

func (e *FatalError) Unwrap() error { return e.Err }
