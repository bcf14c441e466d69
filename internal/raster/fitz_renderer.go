package raster

import (
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

// FitzRenderer implements page rendering using go-fitz (requires CGo and MuPDF)
type FitzRenderer struct {
}

// NewFitzRenderer creates a new Fitz-based renderer
func NewFitzRenderer() (*FitzRenderer, error) {
	return &FitzRenderer{}, nil
}

// Render draws one page at the request DPI. MuPDF applies the page crop box
// and /Rotate itself, so the bitmap is already in visual orientation.
func (r *FitzRenderer) Render(ctx context.Context, req Request) (*Bitmap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := fitz.New(req.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	defer doc.Close()

	if n := doc.NumPage(); req.Page < 0 || req.Page >= n {
		return nil, fmt.Errorf("cannot render page %d in document with %d pages", req.Page, n)
	}

	img, err := doc.ImageDPI(req.Page, req.DPI())
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", req.Page, err)
	}

	// MuPDF rounds the pixel size its own way; snap to the planned size.
	if req.Size.X > 0 && req.Size.Y > 0 && img.Bounds().Size() != req.Size {
		return &Bitmap{
			Image:       imaging.Resize(img, req.Size.X, req.Size.Y, imaging.Lanczos),
			Orientation: OrientationNormal,
		}, nil
	}

	return &Bitmap{Image: img, Orientation: OrientationNormal}, nil
}

// Close cleans up resources (no-op for Fitz renderer as doc is closed per-render)
func (r *FitzRenderer) Close() error {
	return nil
}
