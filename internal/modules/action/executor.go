// README: Optimistic action executor: apply locally, confirm or roll back.
package action

import (
	"context"
	"errors"
	"sync"

	"hail/internal/logger"
	"hail/internal/modules/order"
	"hail/internal/modules/reconcile"
	"hail/internal/types"
)

// Kind names one user-initiated order action.
type Kind string

const (
	KindAccept   Kind = "accept"
	KindReject   Kind = "reject"
	KindStart    Kind = "start"
	KindComplete Kind = "complete"
	KindCancel   Kind = "cancel"
)

// targets maps each action onto the forward transition it performs locally
// before the server confirms.
var targets = map[Kind]order.Status{
	KindAccept:   order.StatusAccepted,
	KindReject:   order.StatusCancelled,
	KindStart:    order.StatusInProgress,
	KindComplete: order.StatusCompleted,
	KindCancel:   order.StatusCancelled,
}

// API is the consumed action/availability endpoint surface. Endpoints are
// idempotent server-side, so a retried action never double-applies.
type API interface {
	SubmitOrderAction(ctx context.Context, id types.ID, kind Kind) error
	SetAvailability(ctx context.Context, online bool) (queuePosition *int, err error)
}

// RejectedError carries the single short message surfaced to the user when
// the server declines an action.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrBusy          = errors.New("action already in flight")
)

const genericMessage = "request failed, please try again"

// Executor performs user actions optimistically: the transition is applied
// and the triggering control disabled before the request leaves, then the
// result either confirms the new state or rolls everything back.
type Executor struct {
	ctrl *reconcile.Controller
	api  API
	log  logger.ILogger

	mu        sync.Mutex
	busy      map[Kind]bool
	availBusy bool
}

func NewExecutor(ctrl *reconcile.Controller, api API, log logger.ILogger) *Executor {
	return &Executor{ctrl: ctrl, api: api, log: log, busy: make(map[Kind]bool)}
}

// Busy reports whether kind has a request in flight; the presentation layer
// disables the matching control while true.
func (e *Executor) Busy(kind Kind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy[kind]
}

// Submit runs one optimistic order action. On failure the pre-action state
// is restored and the returned error carries the message to display.
func (e *Executor) Submit(ctx context.Context, kind Kind) error {
	target, ok := targets[kind]
	if !ok {
		return ErrUnknownAction
	}

	e.mu.Lock()
	if e.busy[kind] {
		e.mu.Unlock()
		return ErrBusy
	}
	e.busy[kind] = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.busy, kind)
		e.mu.Unlock()
	}()

	prev, err := e.ctrl.ApplyLocal(target)
	if err != nil {
		return err
	}

	if err := e.api.SubmitOrderAction(ctx, prev.ID, kind); err != nil {
		e.ctrl.Restore(prev, target)
		e.log.Warning("action rejected, rolled back",
			logger.String("action", string(kind)),
			logger.String("order_id", string(prev.ID)),
			logger.Error(err))
		return surface(err)
	}
	return nil
}

// SetAvailability toggles online/offline with the same optimistic pattern,
// restoring the previous queue position on rollback.
func (e *Executor) SetAvailability(ctx context.Context, online bool) error {
	e.mu.Lock()
	if e.availBusy {
		e.mu.Unlock()
		return ErrBusy
	}
	e.availBusy = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.availBusy = false
		e.mu.Unlock()
	}()

	prevOnline, prevPos := e.ctrl.Session()
	if prevOnline == online {
		return nil
	}
	e.ctrl.SetSession(online, nil)

	pos, err := e.api.SetAvailability(ctx, online)
	if err != nil {
		e.ctrl.SetSession(prevOnline, prevPos)
		e.log.Warning("availability toggle rejected, rolled back",
			logger.Bool("online", online), logger.Error(err))
		return surface(err)
	}
	e.ctrl.SetSession(online, pos)
	if !online {
		// only a confirmed offline hides the active order
		e.ctrl.Release()
	}
	return nil
}

// surface reduces any failure to the one short human message the
// presentation layer shows.
func surface(err error) error {
	var rej *RejectedError
	if errors.As(err, &rej) && rej.Message != "" {
		return rej
	}
	return &RejectedError{Message: genericMessage}
}
