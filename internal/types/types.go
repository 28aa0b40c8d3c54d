// README: Common value objects shared across modules.
package types

import "fmt"

// ID is an opaque server-assigned identifier.
type ID string

type Point struct {
	Lat float64
	Lng float64
}

// String renders the point with fixed 6-decimal precision, the format used
// as the display fallback when reverse geocoding is unavailable.
func (p Point) String() string {
	return fmt.Sprintf("%.6f, %.6f", p.Lat, p.Lng)
}
