package raster

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// PDFiumRenderer implements page rendering using go-pdfium with WebAssembly (pure Go, no CGo)
type PDFiumRenderer struct {
	mu       sync.Mutex
	pool     pdfium.Pool
	instance pdfium.Pdfium
}

// NewPDFiumRenderer creates a new PDFium-based renderer using WebAssembly
func NewPDFiumRenderer() (*PDFiumRenderer, error) {
	// One instance; requests are serialized by mu.
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	return &PDFiumRenderer{
		pool:     pool,
		instance: instance,
	}, nil
}

// Render draws one page into a bitmap of exactly req.Size pixels. PDFium
// applies the page rotation, so the bitmap is in visual orientation.
func (r *PDFiumRenderer) Render(ctx context.Context, req Request) (*Bitmap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Size.X <= 0 || req.Size.Y <= 0 {
		return nil, fmt.Errorf("invalid render size %v", req.Size)
	}

	pdfBytes, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to read PDF file: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.instance == nil {
		return nil, fmt.Errorf("renderer is closed")
	}

	doc, err := r.instance.OpenDocument(&requests.OpenDocument{
		File: &pdfBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	defer r.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: doc.Document,
	})

	pageCountResp, err := r.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to get page count: %w", err)
	}
	if req.Page < 0 || req.Page >= pageCountResp.PageCount {
		return nil, fmt.Errorf("cannot render page %d in document with %d pages", req.Page, pageCountResp.PageCount)
	}

	pageRender, err := r.instance.RenderPageInPixels(&requests.RenderPageInPixels{
		Width:  req.Size.X,
		Height: req.Size.Y,
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: doc.Document,
				Index:    req.Page,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", req.Page, err)
	}
	// The result image lives in WebAssembly memory until Cleanup, so copy it out.
	img := imaging.Clone(pageRender.Result.Image)
	pageRender.Cleanup()

	return &Bitmap{Image: img, Orientation: OrientationNormal}, nil
}

// Close cleans up resources used by the PDFium renderer
func (r *PDFiumRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
	r.instance = nil
	return nil
}
