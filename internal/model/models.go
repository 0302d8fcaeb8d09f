package model

import (
	"encoding/json"
	"fmt"
)

// LatLng is a WGS84 position in degrees.
// The zero value (0,0) means the position was never set.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether the position is the unset sentinel.
func (p LatLng) IsZero() bool {
	return p.Latitude == 0 && p.Longitude == 0
}

func (p LatLng) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude)
}

// LocationDetails is the reverse-geocoded description of a position.
// It is derived once when a location is saved and stored verbatim.
type LocationDetails struct {
	Address      string `json:"address"`
	City         string `json:"city"`
	District     string `json:"district"`
	Neighborhood string `json:"neighborhood"`
	Country      string `json:"country"`
	KnownName    string `json:"knownName"`
}

// Location is a single geotagged memory owned by one user.
// It is stored as a JSON document keyed by (user, ID).
type Location struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Date            string          `json:"date"`       // dd/MM/yyyy
	DateMillis      int64           `json:"dateMillis"` // Date at 00:00 UTC
	LatLng          LatLng          `json:"latLng"`
	Category        Category        `json:"category"`
	LocationDetails LocationDetails `json:"locationDetails"`
	Images          []string        `json:"images"`
	Videos          []string        `json:"videos"`
	Audios          []string        `json:"audios"`
	Notes           []string        `json:"notes"`
	VideoThumbnails []string        `json:"videoThumbnails"` // aligned with Videos, "" = no thumbnail
}

// HasPosition reports whether the location carries a real position.
func (l *Location) HasPosition() bool {
	return !l.LatLng.IsZero()
}

// MediaCount returns the total number of attached media references.
func (l *Location) MediaCount() int {
	return len(l.Images) + len(l.Videos) + len(l.Audios) + len(l.Notes)
}

// Encode serializes the location into its stored document form.
func (l *Location) Encode() ([]byte, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encoding location %s: %w", l.ID, err)
	}
	return data, nil
}

// DecodeLocation parses a stored document. Missing media lists decode as empty.
func DecodeLocation(data []byte) (*Location, error) {
	var l Location
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decoding location: %w", err)
	}
	if l.ID == "" {
		return nil, fmt.Errorf("decoding location: missing id")
	}
	for len(l.VideoThumbnails) < len(l.Videos) {
		l.VideoThumbnails = append(l.VideoThumbnails, "")
	}
	return &l, nil
}

// User is the profile record of an account.
type User struct {
	UserID       string `json:"userId" toml:"user_id"`
	Email        string `json:"email" toml:"email"`
	Username     string `json:"username" toml:"username"`
	ProfilePhoto string `json:"profilePhoto" toml:"profile_photo"`
	LatLng       LatLng `json:"latLng" toml:"-"`
}
