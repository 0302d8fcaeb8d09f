package mapory

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// RetryFunc runs op, retrying failures. name identifies the operation in logs.
type RetryFunc func(ctx context.Context, name string, op func() error) error

// Service implements the location and profile operations of a signed-in user.
type Service struct {
	db         Database
	media      MediaStore
	geocoder   Geocoder
	thumbnails ThumbnailGenerator
	logger     Logger
	clock      Clock
	retry      RetryFunc
}

// NewService wires the service. A nil geocoder leaves location details
// empty, a nil thumbnail generator stores videos without thumbnails and a
// nil retry runs every upload once.
func NewService(db Database, media MediaStore, geocoder Geocoder, thumbnails ThumbnailGenerator,
	logger Logger, clock Clock, retry RetryFunc) *Service {
	if retry == nil {
		retry = func(_ context.Context, _ string, op func() error) error { return op() }
	}
	return &Service{
		db:         db,
		media:      media,
		geocoder:   geocoder,
		thumbnails: thumbnails,
		logger:     logger,
		clock:      clock,
		retry:      retry,
	}
}

// NewFeed creates a feed engine over userID's locations.
func (s *Service) NewFeed(userID string, pageSize int) *FeedEngine {
	return NewFeedEngine(s.db, userID, s.logger, pageSize)
}

// ReadMedia streams the object referenced by url to w. Objects that do not
// belong to userID are reported as ErrNotFound.
func (s *Service) ReadMedia(ctx context.Context, userID, url string, w io.Writer) error {
	key, err := s.media.Key(url)
	if err != nil {
		return err
	}
	if !ownsKey(userID, key) {
		return fmt.Errorf("media %s: %w", url, ErrNotFound)
	}
	return s.media.Get(ctx, key, w)
}

// ownsKey reports whether key lies in one of userID's media namespaces.
func ownsKey(userID, key string) bool {
	if userID == "" {
		return false
	}
	return strings.HasPrefix(key, "users/"+userID+"/") ||
		strings.HasPrefix(key, path.Dir(ProfilePhotoKey(userID))+"/")
}

// put uploads f under key. Seekable readers are rewound and retried;
// others get a single attempt.
func (s *Service) put(ctx context.Context, key string, f *MediaFile) (string, error) {
	seeker, ok := f.Reader.(io.Seeker)
	if !ok {
		return s.media.Put(ctx, key, f.Reader, f.Size)
	}

	var url string
	err := s.retry(ctx, "upload "+key, func() error {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return err
		}
		u, err := s.media.Put(ctx, key, f.Reader, f.Size)
		if err != nil {
			return err
		}
		url = u
		return nil
	})
	return url, err
}
