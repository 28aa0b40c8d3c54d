// README: Order aggregate and lifecycle status definitions.
package order

import (
	"time"

	"hail/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

// Stop is one endpoint of the trip. Coordinates are immutable once set;
// only Address mutates as geocode resolutions arrive.
type Stop struct {
	Point    *types.Point
	Address  string
	Resolved bool
}

// DisplayAddress is what the presentation layer shows for a stop. Before a
// resolution lands the coordinate string stands in, so a failed or slow
// geocode never leaves the field empty.
func (s Stop) DisplayAddress() string {
	if s.Resolved {
		return s.Address
	}
	if s.Point != nil {
		return s.Point.String()
	}
	return s.Address
}

type Order struct {
	ID          types.ID
	Status      Status
	Pickup      Stop
	Destination Stop
	AssignedAt  *time.Time
}

// Parse validates a wire status string.
func Parse(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusNone, StatusPending, StatusAssigned, StatusAccepted,
		StatusInProgress, StatusCompleted, StatusCancelled, StatusExpired:
		return st, true
	}
	return "", false
}

// Terminal reports whether no further transition may leave st.
func Terminal(st Status) bool {
	return st == StatusCompleted || st == StatusCancelled || st == StatusExpired
}

// rank orders the forward lifecycle for the conflicting-update tie-break.
// Terminal overrides (cancelled/expired) are handled separately and carry
// no rank of their own.
var rank = map[Status]int{
	StatusNone:       0,
	StatusPending:    1,
	StatusAssigned:   2,
	StatusAccepted:   3,
	StatusInProgress: 4,
	StatusCompleted:  5,
}
