package route

import (
	"sort"
	"strconv"
)

func peerIDString(p PeerId) string {
	return strconv.FormatUint(uint64(p), 10)
}

// sortedPeerIDs returns the keys of the given set in ascending order, giving
// every caller that needs deterministic iteration (bitmap label ordering,
// LeastHop path enumeration, diagnostics) the same stable order for a fixed
// input (§13(c)).
func sortedPeerIDs[M ~map[PeerId]V, V any](m M) []PeerId {
	out := make([]PeerId, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
