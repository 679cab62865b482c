package route

import "testing"

func TestSyncNowBroadcastWakesAllWaiters(t *testing.T) {
	b := newSyncNowBroadcast()

	w1 := b.wait()
	w2 := b.wait()

	select {
	case <-w1:
		t.Fatal("waiter fired before signal")
	default:
	}

	b.signal()

	select {
	case <-w1:
	default:
		t.Fatal("waiter 1 did not fire after signal")
	}
	select {
	case <-w2:
	default:
		t.Fatal("waiter 2 did not fire after signal")
	}

	// A waiter registered after the signal must not see the old close.
	w3 := b.wait()
	select {
	case <-w3:
		t.Fatal("a fresh wait channel must not already be closed")
	default:
	}
}
