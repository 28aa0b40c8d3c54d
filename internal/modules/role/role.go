// README: Role-specific affordances: which controls are valid for a given status.
package role

import (
	"hail/internal/modules/action"
	"hail/internal/modules/order"
)

type Role string

const (
	Driver    Role = "driver"
	Passenger Role = "passenger"
)

// Allowed lists the action kinds a client of the given role may trigger in
// the given lifecycle state. The passenger cancel disappears once the
// driver has accepted; the driver decides within the acceptance window and
// then drives the trip forward.
func Allowed(r Role, st order.Status) []action.Kind {
	switch r {
	case Driver:
		switch st {
		case order.StatusAssigned:
			return []action.Kind{action.KindAccept, action.KindReject}
		case order.StatusAccepted:
			return []action.Kind{action.KindStart}
		case order.StatusInProgress:
			return []action.Kind{action.KindComplete}
		}
	case Passenger:
		switch st {
		case order.StatusPending, order.StatusAssigned:
			return []action.Kind{action.KindCancel}
		}
	}
	return nil
}

// CanToggleAvailability reports whether the availability control applies to
// the role at all.
func CanToggleAvailability(r Role) bool {
	return r == Driver
}
