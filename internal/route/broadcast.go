package route

import "sync"

// syncNowBroadcast is an in-process wakeup channel that every outbound
// client loop selects on alongside its idle-wake timer (§4.5, "Sync-now
// broadcast" in the glossary). signal closes the current channel and hands
// out a fresh one, the standard Go broadcast-by-close-and-replace pattern:
// every waiter sees the close exactly once and the next wait gets a channel
// that has not fired yet.
type syncNowBroadcast struct {
	mu sync.Mutex
	ch chan struct{}
}

func newSyncNowBroadcast() *syncNowBroadcast {
	return &syncNowBroadcast{ch: make(chan struct{})}
}

// wait returns a channel that closes the next time signal is called.
func (b *syncNowBroadcast) wait() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch
}

// signal wakes every current waiter.
func (b *syncNowBroadcast) signal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	close(b.ch)
	b.ch = make(chan struct{})
}
