package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mapory/internal/config"
	"mapory/internal/model"
)

func TestNominatim_ReverseGeocode(t *testing.T) {
	var gotQuery, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "Galata Tower",
			"display_name": "Galata Tower, Beyoglu, Istanbul, Turkey",
			"address": {
				"state": "Istanbul",
				"town": "Beyoglu",
				"neighbourhood": "Bereketzade",
				"country": "Turkey"
			}
		}`))
	}))
	defer srv.Close()

	g := NewNominatim(srv.URL, "mapory-test", "tr", 0)
	got, err := g.ReverseGeocode(context.Background(), model.LatLng{Latitude: 41.0256, Longitude: 28.9741})
	if err != nil {
		t.Fatalf("ReverseGeocode() error = %v", err)
	}

	want := model.LocationDetails{
		Address:      "Galata Tower, Beyoglu, Istanbul, Turkey",
		City:         "Istanbul",
		District:     "Beyoglu",
		Neighborhood: "Bereketzade",
		Country:      "Turkey",
		KnownName:    "Galata Tower",
	}
	if got != want {
		t.Errorf("ReverseGeocode() = %+v, want %+v", got, want)
	}
	if gotAgent != "mapory-test" {
		t.Errorf("User-Agent = %q, want mapory-test", gotAgent)
	}
	for _, part := range []string{"format=jsonv2", "lat=41.0256", "lon=28.9741", "accept-language=tr"} {
		if !strings.Contains(gotQuery, part) {
			t.Errorf("query %q missing %q", gotQuery, part)
		}
	}
}

func TestNominatim_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "down", http.StatusServiceUnavailable)
			},
		},
		{
			name: "unable to geocode",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewNominatim(srv.URL, "", "", 0).ReverseGeocode(context.Background(), model.LatLng{Latitude: 1, Longitude: 2})
			if err == nil {
				t.Error("ReverseGeocode() error = nil, want error")
			}
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		typ     string
		wantErr bool
	}{
		{typ: ""},
		{typ: "none"},
		{typ: "nominatim"},
		{typ: "google", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			g, err := NewFromConfig(config.GeocoderConfig{Type: tt.typ})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && g == nil {
				t.Error("NewFromConfig() returned nil geocoder")
			}
		})
	}
}
