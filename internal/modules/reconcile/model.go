// README: Wire payloads for both channels and their normalization into candidate updates.
package reconcile

import (
	"time"

	"hail/internal/modules/order"
	"hail/internal/types"
)

// Push event names delivered over the push channel.
const (
	EvOrderCreated    = "order_created"
	EvNewOrder        = "new_order"
	EvOrderAssigned   = "order_assigned"
	EvOrderAccepted   = "order_accepted"
	EvOrderInProgress = "order_in_progress"
	EvOrderCompleted  = "order_completed"
	EvOrderCancelled  = "order_cancelled"
	EvOrderTimeout    = "order_timeout"
	EvQueueUpdated    = "queue_updated"
)

// Payload mirrors the fields shared by push events and poll snapshots.
// assigned_at arrives as an ISO-8601 string, with or without a zone.
type Payload struct {
	OrderID            types.ID `json:"order_id"`
	Status             string   `json:"status,omitempty"`
	PickupLat          *float64 `json:"pickup_lat,omitempty"`
	PickupLng          *float64 `json:"pickup_lng,omitempty"`
	DestinationLat     *float64 `json:"destination_lat,omitempty"`
	DestinationLng     *float64 `json:"destination_lng,omitempty"`
	PickupAddress      string   `json:"pickup_address,omitempty"`
	DestinationAddress string   `json:"destination_address,omitempty"`
	AssignedAt         string   `json:"assigned_at,omitempty"`

	// queue_updated side channel
	QueuePosition *int     `json:"queue_position,omitempty"`
	Count         *int     `json:"count,omitempty"`
	Queue         []string `json:"queue,omitempty"`
}

// PushEvent is one decoded frame from the push channel.
type PushEvent struct {
	Name string
	Data Payload
}

// Update is the canonical (orderId, status, payload) candidate every inbound
// message is reduced to before it reaches the state machine.
type Update struct {
	OrderID            types.ID
	Status             order.Status
	Pickup             *types.Point
	Destination        *types.Point
	PickupAddress      string
	DestinationAddress string
	AssignedAt         *time.Time
}

// QueueInfo is the non-order side channel surfaced to the presentation layer.
type QueueInfo struct {
	DriversOnline int
	QueuePosition *int
}

// View is the read-only contract exposed to the role presentation adapter.
type View struct {
	ID               types.ID
	Status           order.Status
	Pickup           string
	Destination      string
	RemainingSeconds int
	Online           bool
	QueuePosition    *int
}

// eventStatus maps a push event name to the lifecycle status it implies.
// new_order is the driver-side offer and implies the acceptance window.
var eventStatus = map[string]order.Status{
	EvOrderCreated:    order.StatusPending,
	EvNewOrder:        order.StatusAssigned,
	EvOrderAssigned:   order.StatusAssigned,
	EvOrderAccepted:   order.StatusAccepted,
	EvOrderInProgress: order.StatusInProgress,
	EvOrderCompleted:  order.StatusCompleted,
	EvOrderCancelled:  order.StatusCancelled,
	EvOrderTimeout:    order.StatusExpired,
}

// normalizePush translates a push event into a candidate update.
// queue_updated and unknown events carry no order transition.
func normalizePush(ev PushEvent) (Update, bool) {
	st, ok := eventStatus[ev.Name]
	if !ok || ev.Data.OrderID == "" {
		return Update{}, false
	}
	u := fromPayload(ev.Data)
	u.Status = st
	return u, true
}

// normalizePoll translates a poll snapshot into a candidate update.
func normalizePoll(snap Payload) (Update, bool) {
	if snap.OrderID == "" {
		return Update{}, false
	}
	st, ok := order.Parse(snap.Status)
	if !ok {
		// snapshots without an explicit status describe a fresh offer
		st = order.StatusAssigned
	}
	u := fromPayload(snap)
	u.Status = st
	return u, true
}

func fromPayload(p Payload) Update {
	u := Update{
		OrderID:            p.OrderID,
		PickupAddress:      p.PickupAddress,
		DestinationAddress: p.DestinationAddress,
	}
	if p.PickupLat != nil && p.PickupLng != nil {
		u.Pickup = &types.Point{Lat: *p.PickupLat, Lng: *p.PickupLng}
	}
	if p.DestinationLat != nil && p.DestinationLng != nil {
		u.Destination = &types.Point{Lat: *p.DestinationLat, Lng: *p.DestinationLng}
	}
	if ts, ok := parseTime(p.AssignedAt); ok {
		u.AssignedAt = &ts
	}
	return u
}

// parseTime accepts RFC3339 and the zoneless isoformat some backends emit.
func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
