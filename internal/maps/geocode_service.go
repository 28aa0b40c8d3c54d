// README: Reverse geocoding via the Google Maps API.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"hail/internal/types"
)

// GeocodeService handles interactions with the Google Geocoding API.
type GeocodeService struct {
	client *maps.Client
}

// NewGeocodeService creates a new GeocodeService with the given API Key.
func NewGeocodeService(apiKey string) (*GeocodeService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GeocodeService{client: client}, nil
}

// ReverseGeocode returns a human-readable address for the given point.
func (s *GeocodeService) ReverseGeocode(ctx context.Context, pt types.Point) (string, error) {
	r := &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: pt.Lat, Lng: pt.Lng},
	}
	results, err := s.client.ReverseGeocode(ctx, r)
	if err != nil {
		return "", fmt.Errorf("maps api error: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no address found for %s", pt)
	}
	return results[0].FormattedAddress, nil
}
