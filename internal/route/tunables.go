package route

import "time"

// Tunables are the knobs named in spec §6. Defaults match the spec exactly;
// internal/config wires overrides from YAML/env so an operator can retune a
// congested or high-churn overlay without a rebuild.
type Tunables struct {
	// RefreshInterval is the self-descriptor refresh interval (§3): a
	// descriptor's version is bumped on refresh if its content changed or
	// LastUpdate is older than this.
	RefreshInterval time.Duration
	// Expiry is how long a descriptor/adjacency pair survives without an
	// update before SyncedRouteInfo.expire removes it. Must exceed
	// RefreshInterval so a live peer is never reaped (§3).
	Expiry time.Duration
	// RPCDeadline bounds every sync_route_info call (§6).
	RPCDeadline time.Duration
	// ClientBackoff is the pause after each client-side sync RPC, successful
	// or failed, before the loop considers sending again (§4.5).
	ClientBackoff time.Duration
	// IdleWake is how often an outbound sync loop wakes on its own when no
	// sync-now broadcast arrives (§4.5).
	IdleWake time.Duration
	// ExpirySweep is the period of the background expiry sweep (§4.5).
	ExpirySweep time.Duration
}

// DefaultTunables returns the values fixed by spec §6.
func DefaultTunables() Tunables {
	return Tunables{
		RefreshInterval: 3600 * time.Second,
		Expiry:          3660 * time.Second,
		RPCDeadline:     3 * time.Second,
		ClientBackoff:   50 * time.Millisecond,
		IdleWake:        1 * time.Second,
		ExpirySweep:     60 * time.Second,
	}
}

// Validate checks that expiry exceeds the refresh interval (§3) and that
// the RPC deadline, back-off, idle-wake and sweep periods are positive.
func (t Tunables) Validate() error {
	if t.Expiry <= t.RefreshInterval {
		return errExpiryNotGreaterThanRefresh
	}
	if t.RPCDeadline <= 0 || t.ClientBackoff <= 0 || t.IdleWake <= 0 || t.ExpirySweep <= 0 {
		return errNonPositiveTunable
	}
	return nil
}
