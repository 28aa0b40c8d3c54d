// README: Push channel client: a reconnecting websocket reader feeding the controller.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"hail/internal/logger"
	"hail/internal/modules/reconcile"
	"hail/internal/modules/role"
)

// Frame is one wire message on the push channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// PushClient keeps a websocket to the dispatch server open and hands every
// decoded event to the handler. Connection loss is never fatal: the client
// backs off and redials while the poller covers the gap.
type PushClient struct {
	url     string
	role    role.Role
	userID  string
	handler func(reconcile.PushEvent)
	log     logger.ILogger

	backoff time.Duration
}

func NewPushClient(url string, r role.Role, userID string, handler func(reconcile.PushEvent), log logger.ILogger) *PushClient {
	return &PushClient{
		url:     url,
		role:    r,
		userID:  userID,
		handler: handler,
		log:     log,
		backoff: 3 * time.Second,
	}
}

func (p *PushClient) Run(ctx context.Context) {
	for {
		if err := p.runOnce(ctx); err != nil {
			p.log.Warning("push channel lost, reconnecting", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.backoff):
		}
	}
}

func (p *PushClient) runOnce(ctx context.Context) error {
	url := fmt.Sprintf("%s?role=%s&user_id=%s", p.url, p.role, p.userID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.url, err)
	}
	defer conn.Close()
	p.log.Info("push channel connected", logger.String("role", string(p.role)))

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		var payload reconcile.Payload
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, &payload); err != nil {
				p.log.Warning("malformed push payload",
					logger.String("event", frame.Event), logger.Error(err))
				continue
			}
		}
		p.handler(reconcile.PushEvent{Name: frame.Event, Data: payload})
	}
}
