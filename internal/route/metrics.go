package route

// MetricsReporter is the optional metrics collaborator both PeerRouteService
// and RouteSessionManager report into. Shape grounded on
// internal/bfd/session.go's WithMetrics option: a small reporting interface
// with a no-op default so metrics wiring is never required to exercise the
// protocol logic. internal/routemetrics.Collector implements this interface.
type MetricsReporter interface {
	RegisterSession(peer string)
	UnregisterSession(peer string)
	SetDBSize(peers, adjacencies int)
	IncSyncTx(peer string)
	IncSyncRx(peer string)
	IncSyncErrors(peer string)
	ObserveRebuildLatency(policy string, seconds float64)
	RecordInitiatorElection(role string)
}

// noopMetrics discards every call. Used as the default MetricsReporter so
// PeerRouteService and RouteSessionManager never need a nil check.
type noopMetrics struct{}

func (noopMetrics) RegisterSession(string)                   {}
func (noopMetrics) UnregisterSession(string)                 {}
func (noopMetrics) SetDBSize(int, int)                       {}
func (noopMetrics) IncSyncTx(string)                         {}
func (noopMetrics) IncSyncRx(string)                         {}
func (noopMetrics) IncSyncErrors(string)                     {}
func (noopMetrics) ObserveRebuildLatency(string, float64)    {}
func (noopMetrics) RecordInitiatorElection(string)           {}
