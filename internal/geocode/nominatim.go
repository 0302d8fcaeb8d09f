// Package geocode resolves positions into place descriptions.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mapory/internal/mapory"
	"mapory/internal/model"
)

const (
	DefaultEndpoint  = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "mapory/1.0"
	defaultTimeout   = 10 * time.Second
)

// Nominatim reverse geocodes through a Nominatim server's /reverse endpoint.
type Nominatim struct {
	client    *http.Client
	endpoint  string
	userAgent string
	language  string
}

var _ mapory.Geocoder = (*Nominatim)(nil)

// NewNominatim creates a client. Empty arguments select the defaults.
func NewNominatim(endpoint, userAgent, language string, timeout time.Duration) *Nominatim {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Nominatim{
		client:    &http.Client{Timeout: timeout},
		endpoint:  endpoint,
		userAgent: userAgent,
		language:  language,
	}
}

type reverseResponse struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

func (n *Nominatim) ReverseGeocode(ctx context.Context, pos model.LatLng) (model.LocationDetails, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(pos.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(pos.Longitude, 'f', -1, 64))
	q.Set("addressdetails", "1")
	if n.language != "" {
		q.Set("accept-language", n.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return model.LocationDetails{}, fmt.Errorf("building reverse geocode request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return model.LocationDetails{}, fmt.Errorf("reverse geocoding %s: %w", pos, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.LocationDetails{}, fmt.Errorf("reverse geocoding %s: unexpected status %s", pos, resp.Status)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.LocationDetails{}, fmt.Errorf("decoding reverse geocode response: %w", err)
	}
	if body.Error != "" {
		return model.LocationDetails{}, fmt.Errorf("reverse geocoding %s: %s", pos, body.Error)
	}
	return body.details(), nil
}

func (r reverseResponse) details() model.LocationDetails {
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := r.Address[k]; v != "" {
				return v
			}
		}
		return ""
	}
	return model.LocationDetails{
		Address:      r.DisplayName,
		City:         first("state", "province", "city"),
		District:     first("county", "town", "city_district"),
		Neighborhood: first("suburb", "neighbourhood", "quarter"),
		Country:      first("country"),
		KnownName:    r.Name,
	}
}

// Nop returns empty details for every position.
type Nop struct{}

var _ mapory.Geocoder = Nop{}

func (Nop) ReverseGeocode(context.Context, model.LatLng) (model.LocationDetails, error) {
	return model.LocationDetails{}, nil
}
