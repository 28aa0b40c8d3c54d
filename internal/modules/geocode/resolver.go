// README: Async address resolution with a coordinate fallback; never blocks callers.
package geocode

import (
	"context"
	"time"

	"hail/internal/logger"
	"hail/internal/types"
)

// Geocoder is the consumed geocoding capability (maps.GeocodeService in
// production, a stub in tests).
type Geocoder interface {
	ReverseGeocode(ctx context.Context, pt types.Point) (string, error)
}

// Result delivers one finished resolution back to the caller.
type Result struct {
	Point   types.Point
	Address string
	// Failed is set when the address is the numeric fallback rather than
	// a geocoder answer. Cosmetic only; callers may still display it.
	Failed bool
}

type Resolver struct {
	geo     Geocoder
	log     logger.ILogger
	timeout time.Duration
}

func NewResolver(geo Geocoder, log logger.ILogger) *Resolver {
	return &Resolver{geo: geo, log: log, timeout: 10 * time.Second}
}

// Fallback is the fixed-precision coordinate string used when resolution
// fails: resolving (55.751244, 37.618423) offline yields exactly
// "55.751244, 37.618423".
func Fallback(pt types.Point) string {
	return pt.String()
}

// Resolve kicks off one asynchronous resolution and returns immediately.
// deliver is called exactly once, from a separate goroutine, with either
// the geocoded address or the numeric fallback. Resolving the same point
// twice is safe; the latest delivery simply overwrites the display.
func (r *Resolver) Resolve(ctx context.Context, pt types.Point, deliver func(Result)) {
	go func() {
		rctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		addr, err := r.geo.ReverseGeocode(rctx, pt)
		if err != nil || addr == "" {
			if err != nil {
				r.log.Warning("reverse geocode failed, using coordinate fallback",
					logger.String("point", pt.String()), logger.Error(err))
			}
			deliver(Result{Point: pt, Address: Fallback(pt), Failed: true})
			return
		}
		deliver(Result{Point: pt, Address: addr})
	}()
}
