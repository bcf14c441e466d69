package raster

import (
	"image"

	"github.com/disintegration/imaging"
)

// Orientation describes how a bitmap is stored relative to its visual
// orientation. Values follow the EXIF orientation tag; the rotation names
// give the counter-clockwise turn that restores the visual orientation.
type Orientation int

const (
	OrientationNormal     Orientation = 1
	OrientationFlipH      Orientation = 2
	OrientationRotate180  Orientation = 3
	OrientationFlipV      Orientation = 4
	OrientationTranspose  Orientation = 5
	OrientationRotate270  Orientation = 6
	OrientationTransverse Orientation = 7
	OrientationRotate90   Orientation = 8
)

// Bitmap is a rendered page together with its stored orientation.
type Bitmap struct {
	Image       image.Image
	Orientation Orientation
}

// Bounds returns the bounds of the normalized bitmap.
func (b *Bitmap) Bounds() image.Rectangle {
	r := b.Image.Bounds()
	switch b.Orientation {
	case OrientationTranspose, OrientationRotate270, OrientationTransverse, OrientationRotate90:
		return image.Rect(0, 0, r.Dy(), r.Dx())
	default:
		return image.Rect(0, 0, r.Dx(), r.Dy())
	}
}

// Normalize returns an axis-aligned image in visual orientation with its
// origin at (0, 0).
func (b *Bitmap) Normalize() image.Image {
	img := b.Image
	switch b.Orientation {
	case OrientationFlipH:
		return imaging.FlipH(img)
	case OrientationRotate180:
		return imaging.Rotate180(img)
	case OrientationFlipV:
		return imaging.FlipV(img)
	case OrientationTranspose:
		return imaging.Transpose(img)
	case OrientationRotate270:
		return imaging.Rotate270(img)
	case OrientationTransverse:
		return imaging.Transverse(img)
	case OrientationRotate90:
		return imaging.Rotate90(img)
	}
	if img.Bounds().Min != (image.Point{}) {
		return imaging.Clone(img)
	}
	return img
}
