package mapory

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// MediaStore is a blob store for media objects addressed by slash-separated keys.
// Objects are streamed; implementations must not require the whole object in memory.
type MediaStore interface {
	// Put stores size bytes read from r under key and returns the object's URL.
	Put(ctx context.Context, key string, r io.Reader, size int64) (string, error)

	// Get writes the object stored under key to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// List returns the keys that start with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns the reference recorded in documents for key.
	URL(key string) string

	// Key maps a URL produced by this store back to its key.
	Key(url string) (string, error)

	// ValidateSetup verifies that the store is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}

// MediaKind is one of the per-location media folders.
type MediaKind string

const (
	MediaImage     MediaKind = "images"
	MediaVideo     MediaKind = "videos"
	MediaAudio     MediaKind = "audios"
	MediaNote      MediaKind = "notes"
	MediaThumbnail MediaKind = "thumbnails"
)

// MediaFile is a local file to upload.
type MediaFile struct {
	Name   string // original file name, used for the note extension and thumbnail lookup
	Size   int64
	Reader io.Reader
}

// LocationPrefix returns the key prefix under which all media of a location live.
func LocationPrefix(userID, locationID string) string {
	return fmt.Sprintf("users/%s/locations/%s/", userID, locationID)
}

// MediaFolder returns the key prefix of one media folder of a location.
func MediaFolder(userID, locationID string, kind MediaKind) string {
	return LocationPrefix(userID, locationID) + string(kind) + "/"
}

// MediaKey returns the object key of the n-th media item of the given kind.
// name is only consulted for notes, whose extension is preserved.
func MediaKey(userID, locationID string, kind MediaKind, n int, name string) string {
	folder := MediaFolder(userID, locationID, kind)
	switch kind {
	case MediaImage:
		return fmt.Sprintf("%simage_%d.jpg", folder, n)
	case MediaVideo:
		return fmt.Sprintf("%svideo_%d.mp4", folder, n)
	case MediaAudio:
		return fmt.Sprintf("%saudio_%d.mp3", folder, n)
	case MediaThumbnail:
		return fmt.Sprintf("%sthumb_%d.jpg", folder, n)
	default:
		ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
		if ext == "" {
			ext = "txt"
		}
		return fmt.Sprintf("%snote_%d.%s", folder, n, ext)
	}
}

// ProfilePhotoKey returns the object key of a user's profile photo.
func ProfilePhotoKey(userID string) string {
	return fmt.Sprintf("profilephotos/%s/profile.jpg", userID)
}
