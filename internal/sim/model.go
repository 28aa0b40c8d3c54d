// README: In-memory order book for the simulated dispatch backend.
package sim

import (
	"sync"
	"time"

	"hail/internal/modules/order"
	"hail/internal/types"
)

// Order is the server-side record. The sim keeps no history: terminal
// orders stay only until both parties have seen them.
type Order struct {
	ID          types.ID
	PassengerID string
	DriverID    string
	Status      order.Status
	Pickup      types.Point
	Destination types.Point
	AssignedAt  *time.Time
	CreatedAt   time.Time
}

type orderBook struct {
	mu     sync.Mutex
	orders map[types.ID]*Order
}

func newOrderBook() *orderBook {
	return &orderBook{orders: make(map[types.ID]*Order)}
}

func (b *orderBook) add(o *Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[o.ID] = o
}

func (b *orderBook) get(id types.ID) (*Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	return o, ok
}

// oldestPending returns the longest-waiting unassigned order.
func (b *orderBook) oldestPending() *Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	var oldest *Order
	for _, o := range b.orders {
		if o.Status != order.StatusPending {
			continue
		}
		if oldest == nil || o.CreatedAt.Before(oldest.CreatedAt) {
			oldest = o
		}
	}
	return oldest
}

// activeFor returns the live order a user participates in, if any.
func (b *orderBook) activeFor(userID string, driver bool) *Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders {
		if order.Terminal(o.Status) || o.Status == order.StatusNone {
			continue
		}
		if driver && o.DriverID == userID && o.Status != order.StatusPending {
			return o
		}
		if !driver && o.PassengerID == userID {
			return o
		}
	}
	return nil
}

// snapshot returns a copy safe to marshal outside the lock.
func (b *orderBook) snapshot(id types.ID) (Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	cp := *o
	if o.AssignedAt != nil {
		ts := *o.AssignedAt
		cp.AssignedAt = &ts
	}
	return cp, true
}

// update runs fn under the book lock; fn returns false to signal the
// precondition no longer holds.
func (b *orderBook) update(id types.ID, fn func(*Order) bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return false
	}
	return fn(o)
}
