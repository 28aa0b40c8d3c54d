// README: REST client for the poll, action and availability endpoints.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"hail/internal/logger"
	"hail/internal/modules/action"
	"hail/internal/modules/reconcile"
	"hail/internal/modules/role"
	"hail/internal/types"
)

// Client talks to the dispatch API for one user session. It implements
// reconcile.Fetcher and action.API.
type Client struct {
	base   string
	role   role.Role
	userID string
	http   *http.Client
	log    logger.ILogger
}

func NewClient(base string, r role.Role, userID string, log logger.ILogger) *Client {
	return &Client{
		base:   base,
		role:   r,
		userID: userID,
		http:   &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// CurrentOrder fetches the poll snapshot; nil means no order is active.
func (c *Client) CurrentOrder(ctx context.Context) (*reconcile.Payload, error) {
	var snap reconcile.Payload
	url := fmt.Sprintf("%s/api/%s/orders/current?user_id=%s", c.base, c.role, c.userID)
	if err := c.do(ctx, http.MethodGet, url, nil, &snap); err != nil {
		return nil, err
	}
	if snap.OrderID == "" {
		return nil, nil
	}
	return &snap, nil
}

// SubmitOrderAction posts one idempotent action request. A declined action
// comes back as *action.RejectedError carrying the server's message.
func (c *Client) SubmitOrderAction(ctx context.Context, id types.ID, kind action.Kind) error {
	url := fmt.Sprintf("%s/api/%s/orders/%s/%s", c.base, c.role, id, kind)
	return c.do(ctx, http.MethodPost, url, map[string]string{"user_id": c.userID}, nil)
}

// SetAvailability toggles the driver online or offline and returns the
// queue position reported by the server, when any.
func (c *Client) SetAvailability(ctx context.Context, online bool) (*int, error) {
	endpoint := "offline"
	if online {
		endpoint = "online"
	}
	var resp struct {
		Status        string `json:"status"`
		QueuePosition *int   `json:"queue_position"`
	}
	url := fmt.Sprintf("%s/api/driver/%s", c.base, endpoint)
	if err := c.do(ctx, http.MethodPost, url, map[string]string{"user_id": c.userID}, &resp); err != nil {
		return nil, err
	}
	return resp.QueuePosition, nil
}

// CreateOrder submits a new passenger request and returns the assigned id.
func (c *Client) CreateOrder(ctx context.Context, pickup, destination types.Point) (types.ID, error) {
	body := map[string]any{
		"user_id":         c.userID,
		"pickup_lat":      pickup.Lat,
		"pickup_lng":      pickup.Lng,
		"destination_lat": destination.Lat,
		"destination_lng": destination.Lng,
	}
	var resp struct {
		OrderID types.ID `json:"order_id"`
	}
	url := fmt.Sprintf("%s/api/passenger/orders", c.base)
	if err := c.do(ctx, http.MethodPost, url, body, &resp); err != nil {
		return "", err
	}
	return resp.OrderID, nil
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error != "" {
			return &action.RejectedError{Message: e.Error}
		}
		return fmt.Errorf("request %s: status %d", url, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", url, err)
		}
	}
	return nil
}
