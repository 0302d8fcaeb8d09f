package mapory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mapory/internal/model"
)

// LocationStats summarizes a user's locations by date and category.
type LocationStats struct {
	Total      int
	ThisMonth  int // dated on or after the first of the current month
	ThisWeek   int // dated on or after Monday of the current week
	ByCategory map[model.Category]int
}

// Profile returns the user record or an error wrapping ErrNotFound.
func (s *Service) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.db.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return user, nil
}

// Stats counts the user's locations. Weeks start on Monday; all dates are UTC.
// Locations with an unparsable date only count towards Total.
func (s *Service) Stats(ctx context.Context, userID string) (LocationStats, error) {
	docs, err := s.db.QueryLocations(ctx, userID, LocationQuery{OrderBy: SortByID})
	if err != nil {
		return LocationStats{}, fmt.Errorf("querying locations: %w", err)
	}

	now := s.clock.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))

	stats := LocationStats{ByCategory: make(map[model.Category]int)}
	for _, loc := range decodeDocuments(docs, LocationFilter{categories: model.AllCategorySet()}, s.logger) {
		stats.Total++
		stats.ByCategory[loc.Category]++

		date, err := model.ParseDisplayDate(loc.Date)
		if err != nil {
			continue
		}
		if !date.Before(monthStart) {
			stats.ThisMonth++
		}
		if !date.Before(weekStart) {
			stats.ThisWeek++
		}
	}
	return stats, nil
}

// UpdateUsername sets a non-blank display name.
func (s *Service) UpdateUsername(ctx context.Context, userID, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	return s.db.UpdateUsername(ctx, userID, username)
}

// UploadProfilePhoto stores photo as the user's profile photo and returns its URL.
func (s *Service) UploadProfilePhoto(ctx context.Context, userID string, photo *MediaFile) (string, error) {
	url, err := s.put(ctx, ProfilePhotoKey(userID), photo)
	if err != nil {
		return "", fmt.Errorf("uploading profile photo: %w", err)
	}
	if err := s.db.UpdateProfilePhoto(ctx, userID, url); err != nil {
		return "", err
	}
	return url, nil
}

// UpdatePosition records the user's last known position.
func (s *Service) UpdatePosition(ctx context.Context, userID string, pos model.LatLng) error {
	if err := validatePosition(pos); err != nil {
		return err
	}
	return s.db.UpdateUserPosition(ctx, userID, pos)
}

func validatePosition(pos model.LatLng) error {
	if pos.Latitude < -90 || pos.Latitude > 90 || pos.Longitude < -180 || pos.Longitude > 180 {
		return fmt.Errorf("%w: %s out of range", ErrInvalidLocation, pos)
	}
	return nil
}
