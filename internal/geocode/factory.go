package geocode

import (
	"fmt"
	"time"

	"mapory/internal/config"
	"mapory/internal/mapory"
)

// NewFromConfig creates a Geocoder based on the geocoder config type.
func NewFromConfig(cfg config.GeocoderConfig) (mapory.Geocoder, error) {
	switch cfg.Type {
	case "", "none":
		return Nop{}, nil
	case "nominatim":
		return NewNominatim(cfg.Endpoint, cfg.UserAgent, cfg.Language,
			time.Duration(cfg.TimeoutMS)*time.Millisecond), nil
	default:
		return nil, fmt.Errorf("unknown geocoder type: %s", cfg.Type)
	}
}
