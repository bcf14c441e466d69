package raster

import (
	"context"
	"fmt"
	"image"
)

// PointsPerInch is the PDF user space unit density.
const PointsPerInch = 72.0

// Request describes a single full-page render.
type Request struct {
	// Path is a local PDF file.
	Path string
	// Page is the zero-based page index.
	Page int
	// Scale is pixels per page-space unit.
	Scale float64
	// Size is the bitmap size for Scale. Renderers return exactly this size
	// when it is set.
	Size image.Point
}

// DPI returns the resolution equivalent of the request scale.
func (r Request) DPI() float64 {
	return r.Scale * PointsPerInch
}

// Renderer draws PDF pages into pixel buffers.
type Renderer interface {
	// Render rasterizes one page of a document.
	Render(ctx context.Context, req Request) (*Bitmap, error)

	// Close cleans up any resources used by the renderer
	Close() error
}

// Backend names accepted by New.
const (
	BackendFitz   = "fitz"
	BackendPDFium = "pdfium"
)

// New creates a renderer for the named backend. The PDFium backend is the
// default since it runs without CGo.
func New(backend string) (Renderer, error) {
	switch backend {
	case "", BackendPDFium:
		return NewPDFiumRenderer()
	case BackendFitz:
		return NewFitzRenderer()
	default:
		return nil, fmt.Errorf("unknown renderer %q", backend)
	}
}
