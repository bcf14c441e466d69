package snapshot

import (
	"image"

	"github.com/disintegration/imaging"
)

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// extractTile returns the pixels of rect. The rectangle must lie inside the
// image bounds.
func extractTile(img image.Image, rect image.Rectangle) (image.Image, error) {
	bounds := img.Bounds()
	if rect.Empty() || !rect.In(bounds) {
		return nil, newError(KindCropFailed, nil, "tile %v outside image bounds %v", rect, bounds)
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(rect), nil
	}
	return imaging.Crop(img, rect), nil
}
