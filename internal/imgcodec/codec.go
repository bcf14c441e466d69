// Package imgcodec encodes rendered pages and tiles into still image formats.
package imgcodec

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// Format is an output image format.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	TIFF Format = "tiff"
)

// DefaultQuality matches a lossless-as-possible JPEG export.
const DefaultQuality = 100

// ParseFormat accepts a format name or file extension, with or without a
// leading dot. An empty name selects JPEG.
func ParseFormat(name string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".") {
	case "", "jpg", "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "tif", "tiff":
		return TIFF, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", name)
	}
}

// Extension returns the file extension for the format, including the dot.
func (f Format) Extension() string {
	switch f {
	case PNG:
		return ".png"
	case TIFF:
		return ".tiff"
	default:
		return ".jpg"
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case PNG:
		return "image/png"
	case TIFF:
		return "image/tiff"
	default:
		return "image/jpeg"
	}
}

func (f Format) imaging() imaging.Format {
	switch f {
	case PNG:
		return imaging.PNG
	case TIFF:
		return imaging.TIFF
	default:
		return imaging.JPEG
	}
}

// Encoder compresses images into one format.
type Encoder struct {
	Format  Format
	Quality int
}

// New creates an encoder. A quality outside 1..100 falls back to DefaultQuality.
func New(format Format, quality int) *Encoder {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Encoder{Format: format, Quality: quality}
}

// Encode compresses img and returns the encoded bytes.
func (e *Encoder) Encode(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("cannot encode empty image")
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, e.Format.imaging(), imaging.JPEGQuality(e.Quality)); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", e.Format, err)
	}
	return buf.Bytes(), nil
}

// Extension returns the file extension of the encoder format.
func (e *Encoder) Extension() string {
	return e.Format.Extension()
}
