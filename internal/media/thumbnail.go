package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mapory/internal/mapory"
)

// SidecarThumbnails finds a still image stored next to a video file:
// for "clip.mp4" it looks for "clip.jpg", "clip.jpeg" or "clip.png".
type SidecarThumbnails struct{}

var _ mapory.ThumbnailGenerator = SidecarThumbnails{}

// Thumbnail opens the sidecar image. The returned Reader is an *os.File the
// caller must close.
func (SidecarThumbnails) Thumbnail(_ context.Context, video *mapory.MediaFile) (*mapory.MediaFile, error) {
	if video.Name == "" {
		return nil, fmt.Errorf("video has no file name")
	}
	base := strings.TrimSuffix(video.Name, filepath.Ext(video.Name))
	for _, ext := range []string{".jpg", ".jpeg", ".png"} {
		f, err := os.Open(base + ext)
		if err != nil {
			continue
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("stat thumbnail: %w", err)
		}
		return &mapory.MediaFile{Name: f.Name(), Size: info.Size(), Reader: f}, nil
	}
	return nil, fmt.Errorf("no thumbnail found for %s", video.Name)
}
