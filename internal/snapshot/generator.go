// Package snapshot renders one PDF page into a single image or a grid of
// tiles and describes the written files.
package snapshot

import (
	"context"
	"image"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/kiesman99/pdfsnap/internal/imgcodec"
	"github.com/kiesman99/pdfsnap/internal/raster"
	"github.com/kiesman99/pdfsnap/internal/source"
	"github.com/kiesman99/pdfsnap/pkg/tile"
)

// DefaultMaxPixels caps the size of a full-page render.
const DefaultMaxPixels = 10000 * 10000

// DefaultMaxTiles caps the number of tiles one render may be split into.
const DefaultMaxTiles = 10000

// SourceResolver makes a document location available as a local file.
type SourceResolver interface {
	Resolve(ctx context.Context, location string) (*source.Document, error)
}

// Document exposes the page geometry of an open PDF.
type Document interface {
	PageCount() int
	PageBounds(page int) (tile.Bounds, error)
	Close() error
}

// DocumentOpener opens PDF files.
type DocumentOpener interface {
	Open(path string) (Document, error)
}

// OpenerFunc adapts a function to DocumentOpener.
type OpenerFunc func(path string) (Document, error)

func (f OpenerFunc) Open(path string) (Document, error) {
	return f(path)
}

// Encoder compresses images.
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
	Extension() string
}

// Store persists encoded images.
type Store interface {
	Write(path string, data []byte) error
}

// Config holds the collaborators of a Generator.
type Config struct {
	Source    SourceResolver
	Documents DocumentOpener
	Renderer  raster.Renderer
	Store     Store
	Paths     PathResolver
	// NewEncoder builds the encoder for a request. Defaults to imgcodec.New.
	NewEncoder func(format imgcodec.Format, quality int) Encoder
	// Workers bounds concurrent tile encoding. Defaults to runtime.NumCPU().
	Workers   int
	MaxPixels int
	MaxTiles  int
	Logger    *slog.Logger
}

// Generator turns render requests into written images.
type Generator struct {
	source     SourceResolver
	documents  DocumentOpener
	renderer   raster.Renderer
	store      Store
	paths      PathResolver
	newEncoder func(format imgcodec.Format, quality int) Encoder
	workers    int
	maxPixels  int
	maxTiles   int
	logger     *slog.Logger
}

// New creates a generator
func New(cfg Config) *Generator {
	g := &Generator{
		source:     cfg.Source,
		documents:  cfg.Documents,
		renderer:   cfg.Renderer,
		store:      cfg.Store,
		paths:      cfg.Paths,
		newEncoder: cfg.NewEncoder,
		workers:    cfg.Workers,
		maxPixels:  cfg.MaxPixels,
		maxTiles:   cfg.MaxTiles,
		logger:     cfg.Logger,
	}
	if g.newEncoder == nil {
		g.newEncoder = func(format imgcodec.Format, quality int) Encoder {
			return imgcodec.New(format, quality)
		}
	}
	if g.workers <= 0 {
		g.workers = runtime.NumCPU()
	}
	if g.maxPixels <= 0 {
		g.maxPixels = DefaultMaxPixels
	}
	if g.maxTiles <= 0 {
		g.maxTiles = DefaultMaxTiles
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Generate resolves opts and renders the requested page.
func (g *Generator) Generate(ctx context.Context, opts Options) (*Envelope, error) {
	cfg, err := opts.Resolve()
	if err != nil {
		return nil, err
	}
	return g.Render(ctx, cfg)
}

// Render renders one page as described by cfg. Nothing is written when the
// page does not exist.
func (g *Generator) Render(ctx context.Context, cfg RenderConfig) (*Envelope, error) {
	enc := g.newEncoder(cfg.Format, cfg.Quality)
	base, err := g.paths.Resolve(cfg, enc.Extension())
	if err != nil {
		return nil, err
	}

	src, err := g.source.Resolve(ctx, cfg.URL)
	if err != nil {
		return nil, newError(KindDocumentUnavailable, err, "Could not open document %s", cfg.URL)
	}
	defer src.Close()

	doc, err := g.documents.Open(src.Path)
	if err != nil {
		return nil, newError(KindDocumentUnavailable, err, "Could not open document %s", cfg.URL)
	}
	defer doc.Close()

	pages := doc.PageCount()
	if cfg.Page >= pages {
		return nil, newError(KindPageOutOfRange, nil, "Page number %d is invalid, file has %d pages", cfg.Page, pages)
	}

	bounds, err := doc.PageBounds(cfg.Page)
	if err != nil {
		return nil, newError(KindRenderFailed, err, "Could not read bounds of page %d", cfg.Page)
	}
	if !bounds.Valid() {
		return nil, newError(KindRenderFailed, nil, "Page %d has empty bounds %vx%v", cfg.Page, bounds.Width, bounds.Height)
	}

	scale := tile.EffectiveScale(bounds, cfg.Scale, cfg.MaxTileEdge, cfg.DisableSplit)
	extent := bounds.Scale(scale)

	var (
		grid  tile.Grid
		split bool
	)
	if tile.SplitRequested(cfg.MaxTileEdge, cfg.DisableSplit) {
		grid, split = tile.Plan(extent, cfg.MaxTileEdge)
		if !split {
			scale = tile.ClampScale(bounds, cfg.Scale, cfg.MaxTileEdge)
			extent = bounds.Scale(scale)
		}
	}

	if !extent.Within(g.maxPixels) {
		return nil, newError(KindConfigInvalid, nil, "requested image size too large: %vx%v", extent.Width, extent.Height)
	}
	size := extent.Pixels()
	if split && (grid.Len() > g.maxTiles || grid.Columns > size.X || grid.Rows > size.Y) {
		return nil, newError(KindConfigInvalid, nil, "requested %dx%d tiles for a %dx%d image", grid.Columns, grid.Rows, size.X, size.Y)
	}

	bmp, err := g.renderer.Render(ctx, raster.Request{
		Path:  src.Path,
		Page:  cfg.Page,
		Scale: scale,
		Size:  size,
	})
	if err != nil {
		return nil, newError(KindRenderFailed, err, "Could not render page %d", cfg.Page)
	}
	if bmp == nil || bmp.Image == nil {
		return nil, newError(KindRenderFailed, nil, "Renderer returned no image for page %d", cfg.Page)
	}
	img := bmp.Normalize()

	g.logger.Debug("rendered page",
		"url", cfg.URL,
		"page", cfg.Page,
		"scale", scale,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"split", split)

	if !split {
		return g.writeSingle(img, enc, base)
	}
	return g.writeTiles(cfg, img, enc, base, grid, extent)
}

func (g *Generator) writeSingle(img image.Image, enc Encoder, path string) (*Envelope, error) {
	data, err := enc.Encode(img)
	if err != nil {
		return nil, newError(KindEncodeFailed, err, "Could not encode image")
	}
	if err := g.store.Write(path, data); err != nil {
		return nil, newError(KindWriteFailed, err, "Could not write %s", path)
	}

	b := img.Bounds()
	g.logger.Info("wrote snapshot", "path", path, "width", b.Dx(), "height", b.Dy())
	return &Envelope{Single: &SingleImage{
		URI:    FileURI(path),
		Width:  b.Dx(),
		Height: b.Dy(),
	}}, nil
}

func (g *Generator) writeTiles(cfg RenderConfig, img image.Image, enc Encoder, base string, grid tile.Grid, extent tile.Extent) (*Envelope, error) {
	cells := grid.Cells(extent)
	outcomes := make([]tileOutcome, len(cells))
	origin := img.Bounds().Min

	var eg errgroup.Group
	eg.SetLimit(g.workers)
	for _, cell := range cells {
		eg.Go(func() error {
			outcomes[cell.Index] = g.writeTile(img, enc, base, cell, origin)
			return nil
		})
	}
	eg.Wait()

	tiled := aggregate(extent.Pixels(), outcomes)
	for _, f := range tiled.Failures {
		g.logger.Warn("tile failed", "index", f.Index, "code", f.Code, "error", f.Message)
	}
	g.logger.Info("wrote tiles",
		"base", base,
		"columns", grid.Columns,
		"rows", grid.Rows,
		"written", len(tiled.Images),
		"failed", len(tiled.Failures))

	if cfg.RequireTiles && len(tiled.Images) == 0 {
		return nil, newError(KindCropFailed, nil, "None of the %d tiles could be generated", len(cells))
	}
	return &Envelope{Tiled: tiled}, nil
}

func (g *Generator) writeTile(img image.Image, enc Encoder, base string, cell tile.Cell, origin image.Point) tileOutcome {
	sub, err := extractTile(img, cell.Rect.Add(origin))
	if err != nil {
		return tileOutcome{err: err}
	}
	data, err := enc.Encode(sub)
	if err != nil {
		return tileOutcome{err: newError(KindEncodeFailed, err, "Could not encode tile %d", cell.Index)}
	}
	path := TilePath(base, cell.Index)
	if err := g.store.Write(path, data); err != nil {
		return tileOutcome{err: newError(KindWriteFailed, err, "Could not write %s", path)}
	}
	return tileOutcome{image: &TileImage{
		URI:    FileURI(path),
		X:      cell.Rect.Min.X,
		Y:      cell.Rect.Min.Y,
		Width:  cell.Rect.Dx(),
		Height: cell.Rect.Dy(),
	}}
}
