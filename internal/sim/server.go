// README: Simulated dispatch backend. REST in, websocket push out, redis queue.
package sim

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"hail/internal/logger"
	"hail/internal/modules/order"
	"hail/internal/modules/reconcile"
	"hail/internal/types"
)

const (
	roleDriver    = "driver"
	rolePassenger = "passenger"
)

// Server couples the order book, the driver queue and the push hub. One
// dispatcher goroutine hands pending orders to the head of the queue.
type Server struct {
	book   *orderBook
	queue  *DriverQueue
	hub    *Hub
	log    logger.ILogger
	window time.Duration

	mu     sync.Mutex
	timers map[types.ID]*time.Timer
}

func NewServer(rdb *redis.Client, log logger.ILogger, acceptWindow time.Duration) *Server {
	if acceptWindow <= 0 {
		acceptWindow = 60 * time.Second
	}
	return &Server{
		book:   newOrderBook(),
		queue:  NewDriverQueue(rdb),
		hub:    NewHub(log),
		log:    log,
		window: acceptWindow,
		timers: make(map[types.ID]*time.Timer),
	}
}

// Router wires the HTTP surface. Role is a path segment so the same
// handlers serve both sides of a ride.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api/:role")
	api.POST("/orders", s.createOrder)
	api.GET("/orders/current", s.currentOrder)
	api.POST("/orders/:id/:action", s.orderAction)
	api.POST("/online", s.goOnline)
	api.POST("/offline", s.goOffline)

	r.GET("/ws", func(c *gin.Context) {
		role := c.Query("role")
		userID := c.Query("user_id")
		if (role != roleDriver && role != rolePassenger) || userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role and user_id are required"})
			return
		}
		if err := s.hub.Attach(c.Writer, c.Request, role, userID); err != nil {
			s.log.Warning("websocket upgrade failed", logger.Error(err))
		}
	})

	return r
}

// RunDispatcher matches pending orders with queued drivers until ctx ends.
func (s *Server) RunDispatcher(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchOnce(ctx)
		}
	}
}

func (s *Server) dispatchOnce(ctx context.Context) {
	o := s.book.oldestPending()
	if o == nil {
		return
	}
	driverID, err := s.queue.Head(ctx)
	if err != nil {
		s.log.Warning("queue head", logger.Error(err))
		return
	}
	if driverID == "" {
		return
	}

	now := time.Now().UTC()
	ok := s.book.update(o.ID, func(o *Order) bool {
		if o.Status != order.StatusPending {
			return false
		}
		o.Status = order.StatusAssigned
		o.DriverID = driverID
		o.AssignedAt = &now
		return true
	})
	if !ok {
		return
	}
	// the assigned driver is busy until they decide
	if err := s.queue.Leave(ctx, driverID); err != nil {
		s.log.Warning("queue leave", logger.Error(err))
	}
	s.armTimeout(o.ID, driverID)

	snap := s.payload(o.ID)
	s.hub.Emit(roleDriver, driverID, reconcile.EvNewOrder, snap)
	s.hub.Emit(rolePassenger, o.PassengerID, reconcile.EvOrderAssigned, snap)
	s.broadcastQueue(ctx)
	s.log.Info("order assigned",
		logger.String("order_id", string(o.ID)), logger.String("driver_id", driverID))
}

// armTimeout starts the acceptance clock. On expiry the offer goes back
// to the pool and the driver to the end of the line.
func (s *Server) armTimeout(id types.ID, driverID string) {
	s.mu.Lock()
	if prev, ok := s.timers[id]; ok {
		prev.Stop()
	}
	s.timers[id] = time.AfterFunc(s.window, func() { s.expireOffer(id, driverID) })
	s.mu.Unlock()
}

func (s *Server) disarmTimeout(id types.ID) {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
}

func (s *Server) expireOffer(id types.ID, driverID string) {
	ok := s.book.update(id, func(o *Order) bool {
		if o.Status != order.StatusAssigned || o.DriverID != driverID {
			return false
		}
		o.Status = order.StatusPending
		o.DriverID = ""
		o.AssignedAt = nil
		return true
	})
	if !ok {
		return
	}
	ctx := context.Background()
	if err := s.queue.Rotate(ctx, driverID); err != nil {
		s.log.Warning("requeue driver", logger.Error(err))
	}
	s.hub.Emit(roleDriver, driverID, reconcile.EvOrderTimeout,
		reconcile.Payload{OrderID: id, Status: string(order.StatusExpired)})
	s.broadcastQueue(ctx)
	s.log.Info("offer timed out",
		logger.String("order_id", string(id)), logger.String("driver_id", driverID))
}

func (s *Server) createOrder(c *gin.Context) {
	if c.Param("role") != rolePassenger {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var req struct {
		UserID         string  `json:"user_id" binding:"required"`
		PickupLat      float64 `json:"pickup_lat"`
		PickupLng      float64 `json:"pickup_lng"`
		DestinationLat float64 `json:"destination_lat"`
		DestinationLng float64 `json:"destination_lng"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.book.activeFor(req.UserID, false) != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "you already have an active order"})
		return
	}

	o := &Order{
		ID:          types.ID(uuid.NewString()),
		PassengerID: req.UserID,
		Status:      order.StatusPending,
		Pickup:      types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		Destination: types.Point{Lat: req.DestinationLat, Lng: req.DestinationLng},
		CreatedAt:   time.Now().UTC(),
	}
	s.book.add(o)
	s.hub.Emit(rolePassenger, req.UserID, reconcile.EvOrderCreated, s.payload(o.ID))
	s.log.Info("order created", logger.String("order_id", string(o.ID)))
	c.JSON(http.StatusCreated, gin.H{"order_id": o.ID})
}

func (s *Server) currentOrder(c *gin.Context) {
	role := c.Param("role")
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	o := s.book.activeFor(userID, role == roleDriver)
	if o == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.payload(o.ID))
}

func (s *Server) orderAction(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := types.ID(c.Param("id"))
	o, ok := s.book.get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	switch c.Param("action") {
	case "accept":
		s.accept(c, o, req.UserID)
	case "reject":
		s.reject(c, o, req.UserID)
	case "start":
		s.advance(c, o, req.UserID, order.StatusAccepted, order.StatusInProgress, reconcile.EvOrderInProgress)
	case "complete":
		s.complete(c, o, req.UserID)
	case "cancel":
		s.cancel(c, o, req.UserID)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown action"})
	}
}

func (s *Server) accept(c *gin.Context, o *Order, userID string) {
	ok := s.book.update(o.ID, func(o *Order) bool {
		if o.Status != order.StatusAssigned || o.DriverID != userID {
			return false
		}
		o.Status = order.StatusAccepted
		return true
	})
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "order is no longer available"})
		return
	}
	s.disarmTimeout(o.ID)
	s.hub.Emit(rolePassenger, o.PassengerID, reconcile.EvOrderAccepted, s.payload(o.ID))
	s.log.Info("order accepted", logger.String("order_id", string(o.ID)))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) reject(c *gin.Context, o *Order, userID string) {
	ok := s.book.update(o.ID, func(o *Order) bool {
		if o.Status != order.StatusAssigned || o.DriverID != userID {
			return false
		}
		o.Status = order.StatusPending
		o.DriverID = ""
		o.AssignedAt = nil
		return true
	})
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "order is no longer available"})
		return
	}
	s.disarmTimeout(o.ID)
	ctx := c.Request.Context()
	if err := s.queue.Rotate(ctx, userID); err != nil {
		s.log.Warning("requeue driver", logger.Error(err))
	}
	s.broadcastQueue(ctx)
	s.log.Info("order rejected", logger.String("order_id", string(o.ID)))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// advance moves an order one step forward when the caller is its driver.
func (s *Server) advance(c *gin.Context, o *Order, userID string, from, to order.Status, event string) {
	ok := s.book.update(o.ID, func(o *Order) bool {
		if o.Status != from || o.DriverID != userID {
			return false
		}
		o.Status = to
		return true
	})
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "order is not in the right state"})
		return
	}
	s.hub.Emit(rolePassenger, o.PassengerID, event, s.payload(o.ID))
	s.log.Info("order advanced",
		logger.String("order_id", string(o.ID)), logger.String("status", string(to)))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) complete(c *gin.Context, o *Order, userID string) {
	ok := s.book.update(o.ID, func(o *Order) bool {
		if o.Status != order.StatusInProgress || o.DriverID != userID {
			return false
		}
		o.Status = order.StatusCompleted
		return true
	})
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "order is not in the right state"})
		return
	}
	s.hub.Emit(rolePassenger, o.PassengerID, reconcile.EvOrderCompleted, s.payload(o.ID))
	// the freed driver rejoins at the back of the line
	ctx := c.Request.Context()
	if err := s.queue.Rotate(ctx, userID); err != nil {
		s.log.Warning("requeue driver", logger.Error(err))
	}
	s.broadcastQueue(ctx)
	s.log.Info("order completed", logger.String("order_id", string(o.ID)))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) cancel(c *gin.Context, o *Order, userID string) {
	var wasDriver string
	ok := s.book.update(o.ID, func(o *Order) bool {
		if o.PassengerID != userID {
			return false
		}
		if o.Status != order.StatusPending && o.Status != order.StatusAssigned {
			return false
		}
		wasDriver = o.DriverID
		o.Status = order.StatusCancelled
		return true
	})
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "order can no longer be cancelled"})
		return
	}
	s.disarmTimeout(o.ID)
	ctx := c.Request.Context()
	if wasDriver != "" {
		s.hub.Emit(roleDriver, wasDriver, reconcile.EvOrderCancelled, s.payload(o.ID))
		if err := s.queue.Rotate(ctx, wasDriver); err != nil {
			s.log.Warning("requeue driver", logger.Error(err))
		}
		s.broadcastQueue(ctx)
	}
	s.log.Info("order cancelled", logger.String("order_id", string(o.ID)))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) goOnline(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if c.Param("role") != roleDriver {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	pos, err := s.queue.Join(ctx, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "queue unavailable"})
		return
	}
	s.broadcastQueue(ctx)
	s.log.Info("driver online", logger.String("driver_id", req.UserID), logger.Int("position", pos))
	c.JSON(http.StatusOK, gin.H{"status": "online", "queue_position": pos})
}

func (s *Server) goOffline(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if c.Param("role") != roleDriver {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if err := s.queue.Leave(ctx, req.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "queue unavailable"})
		return
	}
	s.broadcastQueue(ctx)
	s.log.Info("driver offline", logger.String("driver_id", req.UserID))
	c.JSON(http.StatusOK, gin.H{"status": "offline"})
}

// broadcastQueue pushes the current line to every driver, each with
// their own position.
func (s *Server) broadcastQueue(ctx context.Context) {
	members, err := s.queue.Members(ctx)
	if err != nil {
		s.log.Warning("queue members", logger.Error(err))
		return
	}
	count := len(members)
	s.hub.Broadcast(rolePassenger, reconcile.EvQueueUpdated, reconcile.Payload{Count: &count})
	for i, driverID := range members {
		pos := i + 1
		s.hub.Emit(roleDriver, driverID, reconcile.EvQueueUpdated,
			reconcile.Payload{Count: &count, QueuePosition: &pos, Queue: members})
	}
}

func (s *Server) payload(id types.ID) reconcile.Payload {
	o, ok := s.book.snapshot(id)
	if !ok {
		return reconcile.Payload{OrderID: id}
	}
	pLat, pLng := o.Pickup.Lat, o.Pickup.Lng
	dLat, dLng := o.Destination.Lat, o.Destination.Lng
	p := reconcile.Payload{
		OrderID:        o.ID,
		Status:         string(o.Status),
		PickupLat:      &pLat,
		PickupLng:      &pLng,
		DestinationLat: &dLat,
		DestinationLng: &dLng,
	}
	if o.AssignedAt != nil {
		p.AssignedAt = o.AssignedAt.Format(time.RFC3339)
	}
	return p
}
