// README: Push hub. One websocket per (role, user), JSON frames out.
package sim

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"hail/internal/logger"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type hubKey struct {
	role   string
	userID string
}

// Hub tracks connected clients and serialises writes per connection.
type Hub struct {
	mu    sync.Mutex
	conns map[hubKey]*hubConn
	log   logger.ILogger
}

type hubConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{conns: make(map[hubKey]*hubConn), log: log}
}

// Attach upgrades the request and registers the connection. It blocks
// reading (and discarding) client frames until the peer goes away.
func (h *Hub) Attach(w http.ResponseWriter, r *http.Request, role, userID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	key := hubKey{role: role, userID: userID}
	hc := &hubConn{conn: conn}

	h.mu.Lock()
	if prev, ok := h.conns[key]; ok {
		prev.conn.Close()
	}
	h.conns[key] = hc
	h.mu.Unlock()

	h.log.Info("client connected", logger.String("role", role), logger.String("user_id", userID))

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	if cur, ok := h.conns[key]; ok && cur == hc {
		delete(h.conns, key)
	}
	h.mu.Unlock()
	conn.Close()
	h.log.Info("client disconnected", logger.String("role", role), logger.String("user_id", userID))
	return nil
}

// Emit sends one event to one client. Absent clients are skipped; the
// poll endpoint covers them.
func (h *Hub) Emit(role, userID, event string, data any) {
	h.mu.Lock()
	hc, ok := h.conns[hubKey{role: role, userID: userID}]
	h.mu.Unlock()
	if !ok {
		return
	}
	h.send(hc, event, data)
}

// Broadcast sends one event to every connected client of a role.
func (h *Hub) Broadcast(role, event string, data any) {
	h.mu.Lock()
	targets := make([]*hubConn, 0, len(h.conns))
	for key, hc := range h.conns {
		if key.role == role {
			targets = append(targets, hc)
		}
	}
	h.mu.Unlock()
	for _, hc := range targets {
		h.send(hc, event, data)
	}
}

func (h *Hub) send(hc *hubConn, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.log.Error("marshal push payload", logger.Error(err), logger.String("event", event))
		return
	}
	hc.mu.Lock()
	err = hc.conn.WriteJSON(frame{Event: event, Data: raw})
	hc.mu.Unlock()
	if err != nil {
		h.log.Warning("push write failed", logger.Error(err), logger.String("event", event))
	}
}
