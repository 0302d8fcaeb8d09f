package mapory

import (
	"context"

	"mapory/internal/model"
)

// Geocoder resolves a position into a human-readable place description.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, pos model.LatLng) (model.LocationDetails, error)
}

// ThumbnailGenerator produces a still image for a video before it is uploaded.
type ThumbnailGenerator interface {
	Thumbnail(ctx context.Context, video *MediaFile) (*MediaFile, error)
}
