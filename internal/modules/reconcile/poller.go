// README: Fallback discovery poller; runs only while no order is tracked.
package reconcile

import (
	"context"
	"time"

	"hail/internal/logger"
)

// Fetcher is the consumed poll endpoint: a full current-order snapshot or
// nil for "no order".
type Fetcher interface {
	CurrentOrder(ctx context.Context) (*Payload, error)
}

// Poller periodically asks the server for the current order to catch
// deliveries the push channel missed. Once the controller tracks an active
// order, polling is suppressed until the client is back to "no order", so a
// stale snapshot can never fight a fresher push update.
type Poller struct {
	ctrl     *Controller
	fetch    Fetcher
	interval time.Duration
	log      logger.ILogger
}

func NewPoller(ctrl *Controller, fetch Fetcher, interval time.Duration, log logger.ILogger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{ctrl: ctrl, fetch: fetch, interval: interval, log: log}
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.ctrl.Tracking() {
				continue
			}
			snap, err := p.fetch.CurrentOrder(ctx)
			if err != nil {
				// transport failure is never fatal; retry next interval
				p.log.Warning("poll failed", logger.Error(err))
				continue
			}
			p.ctrl.HandlePoll(snap)
		}
	}
}
