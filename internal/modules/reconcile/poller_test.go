// README: Discovery poller tests: adoption and suppression while tracking.
package reconcile

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"hail/internal/logger"
)

type countingFetcher struct {
	calls atomic.Int32
	snap  *Payload
}

func (f *countingFetcher) CurrentOrder(ctx context.Context) (*Payload, error) {
	f.calls.Add(1)
	return f.snap, nil
}

func TestPollerAdoptsDiscoveredOrder(t *testing.T) {
	ctrl := newTestController(t, time.Minute)
	snap := offerPayload("p1")
	fetch := &countingFetcher{snap: &snap}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewPoller(ctrl, fetch, 5*time.Millisecond, logger.Nop()).Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for !ctrl.Tracking() {
		if time.Now().After(deadline) {
			t.Fatal("poller never adopted the discovered order")
		}
		time.Sleep(time.Millisecond)
	}
	if snap, ok := ctrl.Snapshot(); !ok || snap.ID != "p1" {
		t.Fatalf("adopted order = %+v, want p1", snap)
	}
}

func TestPollerSuppressedWhileTracking(t *testing.T) {
	ctrl := newTestController(t, time.Minute)
	ctrl.HandlePush(PushEvent{Name: EvNewOrder, Data: offerPayload("p2")})

	fetch := &countingFetcher{}
	ctx, cancel := context.WithCancel(context.Background())
	go NewPoller(ctrl, fetch, time.Millisecond, logger.Nop()).Run(ctx)

	time.Sleep(30 * time.Millisecond)
	cancel()
	if n := fetch.calls.Load(); n != 0 {
		t.Fatalf("poller fetched %d times while an order was tracked", n)
	}
}
