// README: Dual-channel sync controller; the single writer to the order state machine.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"hail/internal/countdown"
	"hail/internal/logger"
	"hail/internal/modules/geocode"
	"hail/internal/modules/order"
	"hail/internal/types"
)

var (
	ErrNoOrder      = errors.New("no active order")
	ErrInvalidState = errors.New("invalid state transition")
)

// Controller merges push events, poll snapshots and local optimistic
// transitions into one monotonically-advancing order view. All state is
// guarded by one mutex so every read-check-write commits in a single
// critical section; timer operations and hooks run outside it.
type Controller struct {
	mu  sync.Mutex
	cur *order.Order

	online        bool
	queuePosition *int
	driversOnline int

	window   time.Duration
	timer    *countdown.Timer
	resolver *geocode.Resolver
	log      logger.ILogger

	ctx context.Context

	onChange func(View)
	onTick   func(remaining int)
	onQueue  func(QueueInfo)
}

type Deps struct {
	Resolver     *geocode.Resolver
	Log          logger.ILogger
	AcceptWindow time.Duration
}

func NewController(ctx context.Context, deps Deps) *Controller {
	c := &Controller{
		window:   deps.AcceptWindow,
		resolver: deps.Resolver,
		log:      deps.Log,
		ctx:      ctx,
	}
	if c.window <= 0 {
		c.window = 60 * time.Second
	}
	c.timer = countdown.New(c.handleTick, c.handleExpiry)
	return c
}

// Subscribe registers the presentation hooks. Call before the channels start.
func (c *Controller) Subscribe(onChange func(View), onTick func(int), onQueue func(QueueInfo)) {
	c.onChange = onChange
	c.onTick = onTick
	c.onQueue = onQueue
}

// timerOp defers countdown manipulation until the state mutex is released,
// because the countdown delivers its first tick synchronously.
type timerOp struct {
	start    bool
	cancel   bool
	deadline time.Time
}

func (c *Controller) runTimerOp(op timerOp) {
	if op.cancel {
		c.timer.Cancel()
	}
	if op.start {
		c.timer.Start(op.deadline)
	}
}

// HandlePush is the intake for the push channel.
func (c *Controller) HandlePush(ev PushEvent) {
	if ev.Name == EvQueueUpdated {
		c.handleQueue(ev.Data)
		return
	}
	u, ok := normalizePush(ev)
	if !ok {
		c.log.Warning("push event dropped", logger.String("event", ev.Name))
		return
	}
	c.apply(u)
}

// HandlePoll is the intake for poll snapshots; nil means "no order".
func (c *Controller) HandlePoll(snap *Payload) {
	if snap == nil {
		return
	}
	u, ok := normalizePoll(*snap)
	if !ok {
		return
	}
	c.apply(u)
}

// Tracking reports whether an active (non-terminal) order is followed.
// The poller uses it to suppress fallback discovery.
func (c *Controller) Tracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur != nil && !order.Terminal(c.cur.Status)
}

// apply runs the merge algorithm for one candidate update.
func (c *Controller) apply(u Update) {
	c.mu.Lock()
	var op timerOp

	switch {
	case c.cur == nil || (order.Terminal(c.cur.Status) && u.OrderID != c.cur.ID):
		// adoption requires a different order id; a same-id candidate
		// falls through to the tie-break, where a finished order wins
		if order.Terminal(u.Status) || u.Status == order.StatusNone {
			// nothing to adopt from an already-finished order
			c.mu.Unlock()
			return
		}
		op = c.adoptLocked(u)
	case u.OrderID != c.cur.ID:
		tracked := c.cur.ID
		c.mu.Unlock()
		c.log.Info("update for foreign order discarded",
			logger.String("order_id", string(u.OrderID)),
			logger.String("tracked", string(tracked)))
		return
	default:
		if !order.Supersedes(u.Status, c.cur.Status) {
			c.mu.Unlock()
			return
		}
		op = c.advanceLocked(u.Status, u.AssignedAt)
		c.mergePayloadLocked(u)
	}

	c.mu.Unlock()
	c.runTimerOp(op)
	c.notifyChange()
}

// adoptLocked replaces whatever terminal-or-absent order was tracked.
func (c *Controller) adoptLocked(u Update) timerOp {
	c.cur = &order.Order{
		ID:          u.OrderID,
		Status:      order.StatusNone,
		Pickup:      order.Stop{Point: u.Pickup, Address: u.PickupAddress},
		Destination: order.Stop{Point: u.Destination, Address: u.DestinationAddress},
	}
	op := c.advanceLocked(u.Status, u.AssignedAt)
	c.kickResolveLocked()
	return op
}

// advanceLocked commits a status change and maintains assignedAt plus the
// acceptance countdown on entry to and exit from assigned.
func (c *Controller) advanceLocked(to order.Status, assignedAt *time.Time) timerOp {
	from := c.cur.Status
	c.cur.Status = to

	if to == order.StatusAssigned {
		ts := time.Now()
		if assignedAt != nil {
			ts = *assignedAt
		}
		c.cur.AssignedAt = &ts
		return timerOp{start: true, deadline: ts.Add(c.window)}
	}
	if from == order.StatusAssigned {
		c.cur.AssignedAt = nil
		return timerOp{cancel: true}
	}
	return timerOp{}
}

// mergePayloadLocked fills endpoint data the tracked order is still missing.
// Coordinates are write-once; addresses only seed unresolved stops.
func (c *Controller) mergePayloadLocked(u Update) {
	mergeStop(&c.cur.Pickup, u.Pickup, u.PickupAddress)
	mergeStop(&c.cur.Destination, u.Destination, u.DestinationAddress)
	c.kickResolveLocked()
}

func mergeStop(s *order.Stop, pt *types.Point, addr string) {
	if s.Point == nil && pt != nil {
		s.Point = pt
	}
	if !s.Resolved && s.Address == "" && addr != "" {
		s.Address = addr
	}
}

// kickResolveLocked schedules reverse geocoding for stops that have
// coordinates but no resolution yet. Never blocks a transition.
func (c *Controller) kickResolveLocked() {
	if c.resolver == nil || c.cur == nil {
		return
	}
	id := c.cur.ID
	if pt := c.cur.Pickup.Point; pt != nil && !c.cur.Pickup.Resolved {
		c.resolver.Resolve(c.ctx, *pt, func(res geocode.Result) {
			c.applyAddress(id, true, res)
		})
	}
	if pt := c.cur.Destination.Point; pt != nil && !c.cur.Destination.Resolved {
		c.resolver.Resolve(c.ctx, *pt, func(res geocode.Result) {
			c.applyAddress(id, false, res)
		})
	}
}

// applyAddress lands an async geocode result. Results for an order that is
// no longer displayed are dropped (stale-callback guard).
func (c *Controller) applyAddress(id types.ID, pickup bool, res geocode.Result) {
	c.mu.Lock()
	if c.cur == nil || c.cur.ID != id {
		c.mu.Unlock()
		return
	}
	stop := &c.cur.Destination
	if pickup {
		stop = &c.cur.Pickup
	}
	stop.Address = res.Address
	stop.Resolved = true
	c.mu.Unlock()
	c.notifyChange()
}

// handleQueue is the queue_updated side channel; it never touches order state.
func (c *Controller) handleQueue(p Payload) {
	c.mu.Lock()
	if p.Count != nil {
		c.driversOnline = *p.Count
	} else if p.Queue != nil {
		c.driversOnline = len(p.Queue)
	}
	if p.QueuePosition != nil {
		c.queuePosition = p.QueuePosition
	}
	info := QueueInfo{DriversOnline: c.driversOnline, QueuePosition: c.queuePosition}
	c.mu.Unlock()
	if c.onQueue != nil {
		c.onQueue(info)
	}
}

// handleExpiry fires when the acceptance window runs out with no decision.
func (c *Controller) handleExpiry() {
	c.mu.Lock()
	if c.cur == nil || c.cur.Status != order.StatusAssigned {
		c.mu.Unlock()
		return
	}
	id := c.cur.ID
	c.cur.Status = order.StatusExpired
	c.cur.AssignedAt = nil
	c.mu.Unlock()
	c.log.Info("acceptance window expired", logger.String("order_id", string(id)))
	c.notifyChange()
}

func (c *Controller) handleTick(remaining int) {
	if c.onTick != nil {
		c.onTick(remaining)
	}
}

// ApplyLocal commits an optimistic user-initiated transition and returns a
// copy of the pre-action order for rollback. Check and commit happen in one
// critical section so a channel update cannot slip in between.
func (c *Controller) ApplyLocal(target order.Status) (order.Order, error) {
	c.mu.Lock()
	if c.cur == nil {
		c.mu.Unlock()
		return order.Order{}, ErrNoOrder
	}
	prev := *c.cur
	if !order.CanTransition(c.cur.Status, target) {
		c.mu.Unlock()
		return order.Order{}, ErrInvalidState
	}
	op := c.advanceLocked(target, nil)
	c.mu.Unlock()
	c.runTimerOp(op)
	c.notifyChange()
	return prev, nil
}

// Restore rolls the order back to a pre-action snapshot after a rejected
// optimistic transition. The rollback only lands while the order still sits
// in the optimistic target state: a channel update that arrived during the
// in-flight request (a cancellation, say) supersedes the rollback and is
// kept. The countdown is re-armed from the original deadline when the
// restored state is still inside the acceptance window.
func (c *Controller) Restore(prev order.Order, target order.Status) {
	c.mu.Lock()
	if c.cur == nil || c.cur.ID != prev.ID || c.cur.Status != target {
		c.mu.Unlock()
		return
	}
	restored := prev
	c.cur = &restored
	op := timerOp{cancel: true}
	if restored.Status == order.StatusAssigned && restored.AssignedAt != nil {
		op = timerOp{start: true, deadline: restored.AssignedAt.Add(c.window)}
	}
	c.mu.Unlock()
	c.runTimerOp(op)
	c.notifyChange()
}

// ClearTerminal resets the session to "no order" once the terminal outcome
// has been displayed; polling discovery resumes after this.
func (c *Controller) ClearTerminal() {
	c.mu.Lock()
	if c.cur == nil || !order.Terminal(c.cur.Status) {
		c.mu.Unlock()
		return
	}
	c.cur = nil
	c.mu.Unlock()
	c.notifyChange()
}

// SetSession records the availability state shown to the user. It never
// touches the tracked order, so an optimistic toggle stays reversible.
func (c *Controller) SetSession(online bool, queuePosition *int) {
	c.mu.Lock()
	c.online = online
	c.queuePosition = queuePosition
	info := QueueInfo{DriversOnline: c.driversOnline, QueuePosition: c.queuePosition}
	c.mu.Unlock()
	if c.onQueue != nil {
		c.onQueue(info)
	}
	c.notifyChange()
}

// Release drops the tracked order and its countdown: confirmed offline,
// role switch, or navigating away from an active order.
func (c *Controller) Release() {
	c.mu.Lock()
	c.cur = nil
	c.mu.Unlock()
	c.timer.Cancel()
	c.notifyChange()
}

// Session returns the current availability state for optimistic rollback.
func (c *Controller) Session() (online bool, queuePosition *int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online, c.queuePosition
}

// Snapshot returns a copy of the tracked order, if any.
func (c *Controller) Snapshot() (order.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return order.Order{}, false
	}
	return *c.cur, true
}

// View builds the read-only contract for the role presentation adapter.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		Status:           order.StatusNone,
		RemainingSeconds: c.timer.Remaining(),
		Online:           c.online,
		QueuePosition:    c.queuePosition,
	}
	if c.cur != nil {
		v.ID = c.cur.ID
		v.Status = c.cur.Status
		v.Pickup = c.cur.Pickup.DisplayAddress()
		v.Destination = c.cur.Destination.DisplayAddress()
	}
	return v
}

func (c *Controller) notifyChange() {
	if c.onChange != nil {
		c.onChange(c.View())
	}
}
