// README: Order book tests: dispatch ordering, role lookup, lock discipline.
package sim

import (
	"testing"
	"time"

	"hail/internal/modules/order"
	"hail/internal/types"
)

func bookWith(t *testing.T, orders ...*Order) *orderBook {
	t.Helper()
	b := newOrderBook()
	for _, o := range orders {
		b.add(o)
	}
	return b
}

func TestOldestPendingPicksLongestWaiting(t *testing.T) {
	now := time.Now().UTC()
	b := bookWith(t,
		&Order{ID: "late", Status: order.StatusPending, CreatedAt: now},
		&Order{ID: "early", Status: order.StatusPending, CreatedAt: now.Add(-time.Minute)},
		&Order{ID: "busy", Status: order.StatusAccepted, CreatedAt: now.Add(-time.Hour)},
	)
	if got := b.oldestPending(); got == nil || got.ID != "early" {
		t.Fatalf("oldestPending = %+v, want early", got)
	}
}

func TestOldestPendingEmptyBook(t *testing.T) {
	b := bookWith(t, &Order{ID: "done", Status: order.StatusCompleted})
	if got := b.oldestPending(); got != nil {
		t.Fatalf("oldestPending = %+v, want nil", got)
	}
}

func TestActiveForMatchesRole(t *testing.T) {
	b := bookWith(t,
		&Order{ID: "a", Status: order.StatusAccepted, PassengerID: "p1", DriverID: "d1"},
		&Order{ID: "b", Status: order.StatusPending, PassengerID: "p2"},
		&Order{ID: "c", Status: order.StatusCompleted, PassengerID: "p3", DriverID: "d3"},
	)

	if got := b.activeFor("d1", true); got == nil || got.ID != "a" {
		t.Fatalf("driver d1 active = %+v, want a", got)
	}
	if got := b.activeFor("p2", false); got == nil || got.ID != "b" {
		t.Fatalf("passenger p2 active = %+v, want b", got)
	}
	// a pending order has no driver side yet
	if got := b.activeFor("", true); got != nil {
		t.Fatalf("unassigned driver lookup = %+v, want nil", got)
	}
	// terminal orders are not active
	if got := b.activeFor("d3", true); got != nil {
		t.Fatalf("driver d3 active = %+v, want nil", got)
	}
}

func TestUpdateHonorsPrecondition(t *testing.T) {
	b := bookWith(t, &Order{ID: "o1", Status: order.StatusAssigned, DriverID: "d1"})

	ok := b.update("o1", func(o *Order) bool {
		if o.DriverID != "d2" {
			return false
		}
		o.Status = order.StatusAccepted
		return true
	})
	if ok {
		t.Fatal("update succeeded for the wrong driver")
	}
	if o, _ := b.get("o1"); o.Status != order.StatusAssigned {
		t.Fatalf("status mutated to %s despite failed precondition", o.Status)
	}

	if b.update("missing", func(*Order) bool { return true }) {
		t.Fatal("update succeeded for an unknown order")
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	ts := time.Now().UTC()
	b := bookWith(t, &Order{ID: "o1", Status: order.StatusAssigned, AssignedAt: &ts})

	snap, ok := b.snapshot(types.ID("o1"))
	if !ok {
		t.Fatal("snapshot missed an existing order")
	}
	b.update("o1", func(o *Order) bool {
		o.Status = order.StatusCancelled
		o.AssignedAt = nil
		return true
	})
	if snap.Status != order.StatusAssigned || snap.AssignedAt == nil {
		t.Fatal("snapshot shares state with the live order")
	}
}
