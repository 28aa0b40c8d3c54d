// README: Executor tests: optimistic apply, rollback, duplicate-submit guard.
package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"hail/internal/countdown"
	"hail/internal/logger"
	"hail/internal/modules/order"
	"hail/internal/modules/reconcile"
	"hail/internal/types"
)

type stubAPI struct {
	actionErr error
	availErr  error
	queuePos  *int
	gate      chan struct{}

	gotID   types.ID
	gotKind Kind
}

func (s *stubAPI) SubmitOrderAction(_ context.Context, id types.ID, kind Kind) error {
	if s.gate != nil {
		<-s.gate
	}
	s.gotID, s.gotKind = id, kind
	return s.actionErr
}

func (s *stubAPI) SetAvailability(_ context.Context, _ bool) (*int, error) {
	return s.queuePos, s.availErr
}

func f64(v float64) *float64 { return &v }

func assignedController(t *testing.T) *reconcile.Controller {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c := reconcile.NewController(ctx, reconcile.Deps{Log: logger.Nop(), AcceptWindow: time.Minute})
	c.HandlePush(reconcile.PushEvent{Name: reconcile.EvNewOrder, Data: reconcile.Payload{
		OrderID:    "o1",
		PickupLat:  f64(55.75),
		PickupLng:  f64(37.62),
		AssignedAt: time.Now().UTC().Format(time.RFC3339),
	}})
	return c
}

func TestSubmitAcceptOptimistic(t *testing.T) {
	ctrl := assignedController(t)
	api := &stubAPI{}
	ex := NewExecutor(ctrl, api, logger.Nop())

	if err := ex.Submit(context.Background(), KindAccept); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if api.gotID != "o1" || api.gotKind != KindAccept {
		t.Fatalf("api called with (%s, %s)", api.gotID, api.gotKind)
	}
	if st := ctrl.View().Status; st != order.StatusAccepted {
		t.Fatalf("status = %s, want accepted", st)
	}
	if ex.Busy(KindAccept) {
		t.Fatal("control still disabled after confirmation")
	}
}

func TestSubmitRollsBackOnRejection(t *testing.T) {
	ctrl := assignedController(t)
	before := ctrl.View()
	api := &stubAPI{actionErr: &RejectedError{Message: "order already taken"}}
	ex := NewExecutor(ctrl, api, logger.Nop())

	err := ex.Submit(context.Background(), KindAccept)
	if err == nil || err.Error() != "order already taken" {
		t.Fatalf("err = %v, want server message", err)
	}

	after := ctrl.View()
	if after.Status != before.Status {
		t.Fatalf("status = %s, want restored %s", after.Status, before.Status)
	}
	if snap, ok := ctrl.Snapshot(); !ok || snap.AssignedAt == nil {
		t.Fatal("assignedAt not restored")
	}
	if rem := after.RemainingSeconds; rem <= 0 || rem > 60 {
		t.Fatalf("countdown not re-armed after rollback: %d", rem)
	}
	if ex.Busy(KindAccept) {
		t.Fatal("control still disabled after rollback")
	}
}

func TestSubmitGenericMessageOnNetworkError(t *testing.T) {
	ctrl := assignedController(t)
	api := &stubAPI{actionErr: errors.New("dial tcp: connection refused")}
	ex := NewExecutor(ctrl, api, logger.Nop())

	err := ex.Submit(context.Background(), KindAccept)
	var rej *RejectedError
	if !errors.As(err, &rej) || rej.Message != "request failed, please try again" {
		t.Fatalf("err = %v, want generic message", err)
	}
	if st := ctrl.View().Status; st != order.StatusAssigned {
		t.Fatalf("status = %s, want assigned restored", st)
	}
}

func TestSubmitInvalidTransitionNeverCallsAPI(t *testing.T) {
	ctrl := assignedController(t)
	api := &stubAPI{}
	ex := NewExecutor(ctrl, api, logger.Nop())

	// cannot start a trip that was never accepted
	if err := ex.Submit(context.Background(), KindStart); !errors.Is(err, reconcile.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
	if api.gotKind != "" {
		t.Fatal("api called for an invalid local transition")
	}
}

func TestSubmitDuplicateGuard(t *testing.T) {
	ctrl := assignedController(t)
	gate := make(chan struct{})
	api := &stubAPI{gate: gate}
	ex := NewExecutor(ctrl, api, logger.Nop())

	done := make(chan error, 1)
	go func() { done <- ex.Submit(context.Background(), KindAccept) }()

	// wait for the first submission to take the slot
	deadline := time.After(time.Second)
	for !ex.Busy(KindAccept) {
		select {
		case <-deadline:
			t.Fatal("first submit never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := ex.Submit(context.Background(), KindAccept); !errors.Is(err, ErrBusy) {
		t.Fatalf("second submit: %v, want ErrBusy", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
}

// TestRollbackYieldsToChannelUpdate covers a cancellation that lands while
// the accept request is in flight: the failed request must not roll the
// order back over the newer terminal state.
func TestRollbackYieldsToChannelUpdate(t *testing.T) {
	ctrl := assignedController(t)
	gate := make(chan struct{})
	api := &stubAPI{gate: gate, actionErr: errors.New("dial tcp: connection refused")}
	ex := NewExecutor(ctrl, api, logger.Nop())

	done := make(chan error, 1)
	go func() { done <- ex.Submit(context.Background(), KindAccept) }()
	deadline := time.After(time.Second)
	for !ex.Busy(KindAccept) {
		select {
		case <-deadline:
			t.Fatal("submit never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	ctrl.HandlePush(reconcile.PushEvent{Name: reconcile.EvOrderCancelled, Data: reconcile.Payload{OrderID: "o1"}})
	close(gate)
	if err := <-done; err == nil {
		t.Fatal("failed request must still surface an error")
	}

	if st := ctrl.View().Status; st != order.StatusCancelled {
		t.Fatalf("rollback resurrected a cancelled order: %s", st)
	}
	if rem := ctrl.View().RemainingSeconds; rem != countdown.NoTimer {
		t.Fatalf("RemainingSeconds = %d, countdown restarted by rollback", rem)
	}
}

func TestAvailabilityConfirmSetsQueuePosition(t *testing.T) {
	ctrl := assignedController(t)
	pos := 2
	api := &stubAPI{queuePos: &pos}
	ex := NewExecutor(ctrl, api, logger.Nop())

	if err := ex.SetAvailability(context.Background(), true); err != nil {
		t.Fatalf("set availability: %v", err)
	}
	online, got := ctrl.Session()
	if !online || got == nil || *got != 2 {
		t.Fatalf("session = (%v, %v), want online at position 2", online, got)
	}
}

func TestAvailabilityRollbackRestoresQueuePosition(t *testing.T) {
	ctrl := assignedController(t)
	pos := 2
	ctrl.SetSession(true, &pos)
	api := &stubAPI{availErr: errors.New("service unavailable")}
	ex := NewExecutor(ctrl, api, logger.Nop())

	err := ex.SetAvailability(context.Background(), false)
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("err = %v, want surfaced message", err)
	}
	online, got := ctrl.Session()
	if !online || got == nil || *got != 2 {
		t.Fatalf("session = (%v, %v), want prior state restored", online, got)
	}
}
