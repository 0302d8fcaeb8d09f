package mapory

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"mapory/internal/model"
)

// LocationDraft carries user input for creating or editing a location.
// Media files are uploaded and their URLs appended to the location's lists.
type LocationDraft struct {
	ID          string // optional on create; epoch millis of now when empty
	Title       string
	Description string
	Date        string // dd/MM/yyyy; today when empty
	LatLng      model.LatLng
	Category    model.Category

	Images []*MediaFile
	Videos []*MediaFile
	Audios []*MediaFile
	Notes  []*MediaFile

	// RemoveMedia lists media URLs to drop on edit. Their objects are deleted.
	RemoveMedia []string
}

// MapFilter selects locations for the map view. The zero value selects everything.
type MapFilter struct {
	Categories model.CategorySet // 0 selects all categories
	Dates      DateRange
	SearchTerm string
}

// NearbyLocation is a location with its distance from a reference point.
type NearbyLocation struct {
	Location       *model.Location
	DistanceMeters float64
}

// AddLocation creates a location from draft: resolves location details,
// uploads media and writes the document.
func (s *Service) AddLocation(ctx context.Context, userID string, draft LocationDraft) (*model.Location, error) {
	loc := &model.Location{
		ID:       draft.ID,
		Category: draft.Category,
		LatLng:   draft.LatLng,
	}
	if loc.ID == "" {
		loc.ID = strconv.FormatInt(s.clock.Now().UnixMilli(), 10)
	}
	if err := s.applyDraft(loc, draft); err != nil {
		return nil, err
	}
	loc.LocationDetails = s.locationDetails(ctx, loc.LatLng)

	if err := s.uploadDraftMedia(ctx, userID, loc, draft); err != nil {
		return nil, err
	}
	if err := s.db.PutLocation(ctx, userID, loc); err != nil {
		return nil, fmt.Errorf("saving location: %w", err)
	}
	s.logger.Info("location added", "id", loc.ID, "media", loc.MediaCount())
	return loc, nil
}

// UpdateLocation edits the location draft.ID. Location details are resolved
// again only when the position changed. New media is appended after the
// existing items.
func (s *Service) UpdateLocation(ctx context.Context, userID string, draft LocationDraft) (*model.Location, error) {
	loc, err := s.GetLocation(ctx, userID, draft.ID)
	if err != nil {
		return nil, err
	}

	moved := loc.LatLng != draft.LatLng
	loc.LatLng = draft.LatLng
	loc.Category = draft.Category
	if err := s.applyDraft(loc, draft); err != nil {
		return nil, err
	}
	if moved {
		loc.LocationDetails = s.locationDetails(ctx, loc.LatLng)
	}

	dropped := dropMedia(loc, draft.RemoveMedia)
	if err := s.uploadDraftMedia(ctx, userID, loc, draft); err != nil {
		return nil, err
	}
	if err := s.db.PutLocation(ctx, userID, loc); err != nil {
		return nil, fmt.Errorf("saving location: %w", err)
	}
	s.deleteMedia(ctx, userID, loc.ID, dropped)
	s.logger.Info("location updated", "id", loc.ID, "moved", moved)
	return loc, nil
}

func (s *Service) applyDraft(loc *model.Location, draft LocationDraft) error {
	if err := validatePosition(draft.LatLng); err != nil {
		return err
	}
	date := strings.TrimSpace(draft.Date)
	if date == "" {
		date = model.FormatDisplayDate(s.clock.Now())
	}
	millis, err := model.DateMillis(date)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	loc.Title = strings.TrimSpace(draft.Title)
	loc.Description = strings.TrimSpace(draft.Description)
	loc.Date = date
	loc.DateMillis = millis
	return nil
}

// locationDetails reverse geocodes pos. Failures leave the details empty.
func (s *Service) locationDetails(ctx context.Context, pos model.LatLng) model.LocationDetails {
	if s.geocoder == nil || pos.IsZero() {
		return model.LocationDetails{}
	}
	details, err := s.geocoder.ReverseGeocode(ctx, pos)
	if err != nil {
		s.logger.Warn("reverse geocoding failed", "position", pos.String(), "error", err)
		return model.LocationDetails{}
	}
	return details
}

// uploadDraftMedia uploads every file in draft and appends the URLs to loc.
// Files that still fail after retries are skipped.
func (s *Service) uploadDraftMedia(ctx context.Context, userID string, loc *model.Location, draft LocationDraft) error {
	for _, g := range []struct {
		kind  MediaKind
		files []*MediaFile
		dst   *[]string
	}{
		{MediaImage, draft.Images, &loc.Images},
		{MediaAudio, draft.Audios, &loc.Audios},
		{MediaNote, draft.Notes, &loc.Notes},
	} {
		if len(g.files) == 0 {
			continue
		}
		next, err := s.nextMediaIndex(ctx, userID, loc.ID, g.kind)
		if err != nil {
			return err
		}
		for _, f := range g.files {
			key := MediaKey(userID, loc.ID, g.kind, next, path.Base(f.Name))
			url, err := s.put(ctx, key, f)
			if err != nil {
				s.logger.Error("media upload failed, skipping", "key", key, "error", err)
				continue
			}
			*g.dst = append(*g.dst, url)
			next++
		}
	}

	if len(draft.Videos) == 0 {
		return nil
	}
	next, err := s.nextMediaIndex(ctx, userID, loc.ID, MediaVideo)
	if err != nil {
		return err
	}
	for _, f := range draft.Videos {
		key := MediaKey(userID, loc.ID, MediaVideo, next, "")
		url, err := s.put(ctx, key, f)
		if err != nil {
			s.logger.Error("media upload failed, skipping", "key", key, "error", err)
			continue
		}
		loc.Videos = append(loc.Videos, url)
		loc.VideoThumbnails = append(loc.VideoThumbnails, s.uploadThumbnail(ctx, userID, loc.ID, next, f))
		next++
	}
	return ctx.Err()
}

// uploadThumbnail returns the thumbnail URL of the n-th video, or "" when
// none could be produced.
func (s *Service) uploadThumbnail(ctx context.Context, userID, locationID string, n int, video *MediaFile) string {
	if s.thumbnails == nil {
		return ""
	}
	thumb, err := s.thumbnails.Thumbnail(ctx, video)
	if err != nil {
		s.logger.Debug("no video thumbnail", "video", video.Name, "error", err)
		return ""
	}
	if c, ok := thumb.Reader.(io.Closer); ok {
		defer c.Close()
	}

	key := MediaKey(userID, locationID, MediaThumbnail, n, "")
	url, err := s.put(ctx, key, thumb)
	if err != nil {
		s.logger.Warn("thumbnail upload failed", "key", key, "error", err)
		return ""
	}
	return url
}

// nextMediaIndex returns the first free item number in a media folder.
func (s *Service) nextMediaIndex(ctx context.Context, userID, locationID string, kind MediaKind) (int, error) {
	keys, err := s.media.List(ctx, MediaFolder(userID, locationID, kind))
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", kind, err)
	}
	next := len(keys)
	for _, k := range keys {
		if n, ok := mediaIndex(k); ok && n >= next {
			next = n + 1
		}
	}
	return next, nil
}

// mediaIndex extracts N from ".../kind_N.ext".
func mediaIndex(key string) (int, bool) {
	base := path.Base(key)
	base = strings.TrimSuffix(base, path.Ext(base))
	i := strings.LastIndexByte(base, '_')
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(base[i+1:])
	return n, err == nil
}

// dropMedia removes urls from loc's lists and returns the references that
// were actually attached to loc. A removed video takes its thumbnail with it.
func dropMedia(loc *model.Location, urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(urls))
	for _, u := range urls {
		drop[u] = true
	}

	var dropped []string
	keep := func(list []string) []string {
		out := list[:0]
		for _, u := range list {
			if drop[u] {
				dropped = append(dropped, u)
				continue
			}
			out = append(out, u)
		}
		return out
	}
	loc.Images = keep(loc.Images)
	loc.Audios = keep(loc.Audios)
	loc.Notes = keep(loc.Notes)

	var videos, thumbs []string
	for i, v := range loc.Videos {
		thumb := ""
		if i < len(loc.VideoThumbnails) {
			thumb = loc.VideoThumbnails[i]
		}
		if drop[v] {
			dropped = append(dropped, v)
			if thumb != "" {
				dropped = append(dropped, thumb)
			}
			continue
		}
		videos = append(videos, v)
		thumbs = append(thumbs, thumb)
	}
	loc.Videos, loc.VideoThumbnails = videos, thumbs
	return dropped
}

// deleteMedia deletes the objects behind urls. Only objects stored under the
// location's own prefix are touched; anything else is logged and skipped.
func (s *Service) deleteMedia(ctx context.Context, userID, locationID string, urls []string) {
	prefix := LocationPrefix(userID, locationID)
	for _, u := range urls {
		key, err := s.media.Key(u)
		if err != nil || !strings.HasPrefix(key, prefix) {
			s.logger.Warn("not media of this location, skipping delete", "url", u)
			continue
		}
		if err := s.media.Delete(ctx, key); err != nil {
			s.logger.Warn("deleting removed media failed", "key", key, "error", err)
		}
	}
}

// GetLocation returns the location or an error wrapping ErrNotFound.
func (s *Service) GetLocation(ctx context.Context, userID, locationID string) (*model.Location, error) {
	loc, err := s.db.GetLocation(ctx, userID, locationID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, fmt.Errorf("location %s: %w", locationID, ErrNotFound)
	}
	return loc, nil
}

// DeleteLocation removes the document, then every media object stored for it.
func (s *Service) DeleteLocation(ctx context.Context, userID, locationID string) error {
	if err := s.db.DeleteLocation(ctx, userID, locationID); err != nil {
		return fmt.Errorf("deleting location %s: %w", locationID, err)
	}

	keys, err := s.media.List(ctx, LocationPrefix(userID, locationID))
	if err != nil {
		return fmt.Errorf("listing media of %s: %w", locationID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, key := range keys {
		g.Go(func() error {
			return s.media.Delete(gctx, key)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("deleting media of %s: %w", locationID, err)
	}
	s.logger.Info("location deleted", "id", locationID, "media", len(keys))
	return nil
}

// LatestLocation returns the most recently created location, or nil if the
// user has none.
func (s *Service) LatestLocation(ctx context.Context, userID string) (*model.Location, error) {
	docs, err := s.db.QueryLocations(ctx, userID, LocationQuery{OrderBy: SortByID})
	if err != nil {
		return nil, fmt.Errorf("querying latest location: %w", err)
	}
	for _, d := range docs {
		if loc, err := model.DecodeLocation(d.Data); err == nil {
			return loc, nil
		}
	}
	return nil, nil
}

// ListLocations returns every location matching f, newest first.
func (s *Service) ListLocations(ctx context.Context, userID string, f MapFilter) ([]*model.Location, error) {
	categories := f.Categories
	if categories == 0 {
		categories = model.AllCategorySet()
	}
	filter, err := NewLocationFilter(categories, f.SearchTerm, f.Dates)
	if err != nil {
		return nil, err
	}

	docs, err := s.db.QueryLocations(ctx, userID, LocationQuery{OrderBy: SortByID})
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	return decodeDocuments(docs, filter, s.logger), nil
}

// NearbyLocations returns the locations matching f that have a position,
// closest to center first. radiusMeters > 0 drops farther locations.
func (s *Service) NearbyLocations(ctx context.Context, userID string, f MapFilter, center model.LatLng, radiusMeters float64) ([]NearbyLocation, error) {
	locs, err := s.ListLocations(ctx, userID, f)
	if err != nil {
		return nil, err
	}

	var out []NearbyLocation
	for _, loc := range locs {
		if !loc.HasPosition() {
			continue
		}
		d := Distance(center, loc.LatLng)
		if radiusMeters > 0 && d > radiusMeters {
			continue
		}
		out = append(out, NearbyLocation{Location: loc, DistanceMeters: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	return out, nil
}
