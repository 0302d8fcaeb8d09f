package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mapory/internal/mapory"
	"mapory/internal/model"
)

// LocationInput is a location as entered on the command line. Media fields
// hold local file paths.
type LocationInput struct {
	ID          string
	Title       string
	Description string
	Date        string
	LatLng      model.LatLng
	Category    string

	Images []string
	Videos []string
	Audios []string
	Notes  []string

	RemoveMedia []string
}

// openedFiles tracks files opened for upload so they can be closed together.
type openedFiles []*os.File

func (o *openedFiles) open(paths []string) ([]*mapory.MediaFile, error) {
	var out []*mapory.MediaFile
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving path: %w", err)
		}
		f, err := os.Open(abs)
		if err != nil {
			return nil, fmt.Errorf("opening media file: %w", err)
		}
		*o = append(*o, f)

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", abs, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", abs)
		}
		out = append(out, &mapory.MediaFile{Name: abs, Size: info.Size(), Reader: f})
	}
	return out, nil
}

func (o openedFiles) close() {
	for _, f := range o {
		f.Close()
	}
}

func (in LocationInput) draft(files *openedFiles) (mapory.LocationDraft, error) {
	d := mapory.LocationDraft{
		ID:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date,
		LatLng:      in.LatLng,
		Category:    model.ParseCategory(in.Category),
		RemoveMedia: in.RemoveMedia,
	}
	var err error
	if d.Images, err = files.open(in.Images); err != nil {
		return d, err
	}
	if d.Videos, err = files.open(in.Videos); err != nil {
		return d, err
	}
	if d.Audios, err = files.open(in.Audios); err != nil {
		return d, err
	}
	if d.Notes, err = files.open(in.Notes); err != nil {
		return d, err
	}
	return d, nil
}

func (a *MaporyApp) userID() (string, error) {
	return a.auth.CurrentUserID()
}

// AddLocation creates a location for the signed-in user.
func (a *MaporyApp) AddLocation(ctx context.Context, in LocationInput) (*model.Location, error) {
	uid, err := a.userID()
	if err != nil {
		return nil, err
	}
	var files openedFiles
	defer files.close()

	draft, err := in.draft(&files)
	if err != nil {
		return nil, err
	}
	return a.service.AddLocation(ctx, uid, draft)
}

// UpdateLocation replaces the editable fields of location in.ID.
func (a *MaporyApp) UpdateLocation(ctx context.Context, in LocationInput) (*model.Location, error) {
	uid, err := a.userID()
	if err != nil {
		return nil, err
	}
	var files openedFiles
	defer files.close()

	draft, err := in.draft(&files)
	if err != nil {
		return nil, err
	}
	return a.service.UpdateLocation(ctx, uid, draft)
}

func (a *MaporyApp) GetLocation(ctx context.Context, id string) (*model.Location, error) {
	uid, err := a.userID()
	if err != nil {
		return nil, err
	}
	return a.service.GetLocation(ctx, uid, id)
}

func (a *MaporyApp) DeleteLocation(ctx context.Context, id string) error {
	uid, err := a.userID()
	if err != nil {
		return err
	}
	return a.service.DeleteLocation(ctx, uid, id)
}

// LatestLocation returns nil when the user has no locations.
func (a *MaporyApp) LatestLocation(ctx context.Context) (*model.Location, error) {
	uid, err := a.userID()
	if err != nil {
		return nil, err
	}
	return a.service.LatestLocation(ctx, uid)
}

func (a *MaporyApp) ListLocations(ctx context.Context, f mapory.MapFilter) ([]*model.Location, error) {
	uid, err := a.userID()
	if err != nil {
		return nil, err
	}
	return a.service.ListLocations(ctx, uid, f)
}

// NearbyLocations sorts the user's positioned locations by distance from
// center. When center is unset the user's last known position is used.
func (a *MaporyApp) NearbyLocations(ctx context.Context, f mapory.MapFilter, center model.LatLng, radiusMeters float64) ([]mapory.NearbyLocation, error) {
	uid, err := a.userID()
	if err != nil {
		return nil, err
	}
	if center.IsZero() {
		user, err := a.service.Profile(ctx, uid)
		if err != nil {
			return nil, err
		}
		if user.LatLng.IsZero() {
			return nil, fmt.Errorf("%w: no position given and no last known position", mapory.ErrInvalidLocation)
		}
		center = user.LatLng
	}
	return a.service.NearbyLocations(ctx, uid, f, center, radiusMeters)
}

// Feed creates a feed engine for the signed-in user with the configured page size.
func (a *MaporyApp) Feed() (*mapory.FeedEngine, error) {
	uid, err := a.userID()
	if err != nil {
		return nil, err
	}
	return a.service.NewFeed(uid, a.cfg.Feed.PageSize), nil
}

// ReadMedia streams one of the signed-in user's media objects to w.
func (a *MaporyApp) ReadMedia(ctx context.Context, url string, w io.Writer) error {
	uid, err := a.userID()
	if err != nil {
		return err
	}
	return a.service.ReadMedia(ctx, uid, url, w)
}

// Profile operations

func (a *MaporyApp) Stats(ctx context.Context) (mapory.LocationStats, error) {
	uid, err := a.userID()
	if err != nil {
		return mapory.LocationStats{}, err
	}
	return a.service.Stats(ctx, uid)
}

func (a *MaporyApp) UpdateUsername(ctx context.Context, username string) error {
	uid, err := a.userID()
	if err != nil {
		return err
	}
	return a.service.UpdateUsername(ctx, uid, username)
}

func (a *MaporyApp) UploadProfilePhoto(ctx context.Context, path string) (string, error) {
	uid, err := a.userID()
	if err != nil {
		return "", err
	}
	var files openedFiles
	defer files.close()

	photos, err := files.open([]string{path})
	if err != nil {
		return "", err
	}
	return a.service.UploadProfilePhoto(ctx, uid, photos[0])
}

func (a *MaporyApp) UpdatePosition(ctx context.Context, pos model.LatLng) error {
	uid, err := a.userID()
	if err != nil {
		return err
	}
	return a.service.UpdatePosition(ctx, uid, pos)
}
