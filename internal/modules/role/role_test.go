// README: Affordance table tests.
package role

import (
	"testing"

	"hail/internal/modules/action"
	"hail/internal/modules/order"
)

func has(kinds []action.Kind, k action.Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

func TestDriverAffordances(t *testing.T) {
	if kinds := Allowed(Driver, order.StatusAssigned); !has(kinds, action.KindAccept) || !has(kinds, action.KindReject) {
		t.Fatalf("assigned driver affordances = %v", kinds)
	}
	if kinds := Allowed(Driver, order.StatusAccepted); !has(kinds, action.KindStart) || len(kinds) != 1 {
		t.Fatalf("accepted driver affordances = %v", kinds)
	}
	if kinds := Allowed(Driver, order.StatusInProgress); !has(kinds, action.KindComplete) || len(kinds) != 1 {
		t.Fatalf("in_progress driver affordances = %v", kinds)
	}
	if kinds := Allowed(Driver, order.StatusCompleted); kinds != nil {
		t.Fatalf("terminal state must offer nothing, got %v", kinds)
	}
}

func TestPassengerCancelHiddenAfterAcceptance(t *testing.T) {
	for _, st := range []order.Status{order.StatusPending, order.StatusAssigned} {
		if kinds := Allowed(Passenger, st); !has(kinds, action.KindCancel) {
			t.Fatalf("passenger must be able to cancel in %s", st)
		}
	}
	for _, st := range []order.Status{order.StatusAccepted, order.StatusInProgress, order.StatusCompleted} {
		if kinds := Allowed(Passenger, st); kinds != nil {
			t.Fatalf("passenger affordances in %s = %v, want none", st, kinds)
		}
	}
}

func TestOnlyDriverTogglesAvailability(t *testing.T) {
	if !CanToggleAvailability(Driver) || CanToggleAvailability(Passenger) {
		t.Fatal("availability toggle is a driver control")
	}
}
