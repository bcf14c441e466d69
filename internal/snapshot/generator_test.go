package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kiesman99/pdfsnap/internal/imgcodec"
	"github.com/kiesman99/pdfsnap/internal/raster"
	"github.com/kiesman99/pdfsnap/internal/source"
	"github.com/kiesman99/pdfsnap/pkg/tile"
)

type fakeSource struct {
	err error
}

func (s *fakeSource) Resolve(ctx context.Context, location string) (*source.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &source.Document{Path: location}, nil
}

type fakeDocument struct {
	pages  int
	bounds tile.Bounds
}

func (d *fakeDocument) PageCount() int { return d.pages }

func (d *fakeDocument) PageBounds(page int) (tile.Bounds, error) {
	return d.bounds, nil
}

func (d *fakeDocument) Close() error { return nil }

type fakeRenderer struct {
	mu       sync.Mutex
	requests []raster.Request
	// size overrides the requested bitmap size.
	size image.Point
	// transposed returns the bitmap stored sideways.
	transposed bool
	err        error
}

func (r *fakeRenderer) Render(ctx context.Context, req raster.Request) (*raster.Bitmap, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	size := req.Size
	if r.size != (image.Point{}) {
		size = r.size
	}
	if r.transposed {
		return &raster.Bitmap{
			Image:       image.NewNRGBA(image.Rect(0, 0, size.Y, size.X)),
			Orientation: raster.OrientationTranspose,
		}, nil
	}
	return &raster.Bitmap{
		Image:       image.NewNRGBA(image.Rect(0, 0, size.X, size.Y)),
		Orientation: raster.OrientationNormal,
	}, nil
}

func (r *fakeRenderer) Close() error { return nil }

type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
	fail  map[string]bool
}

func newMemStore() *memStore {
	return &memStore{files: map[string][]byte{}, fail: map[string]bool{}}
}

func (s *memStore) Write(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[path] {
		return errors.New("disk full")
	}
	s.files[path] = data
	return nil
}

// sizeEncoder encodes an image as its dimensions.
type sizeEncoder struct {
	fail bool
}

func (e sizeEncoder) Encode(img image.Image) ([]byte, error) {
	if e.fail {
		return nil, errors.New("encoder broken")
	}
	b := img.Bounds()
	return []byte(fmt.Sprintf("%dx%d", b.Dx(), b.Dy())), nil
}

func (e sizeEncoder) Extension() string { return ".jpg" }

type fixture struct {
	source   *fakeSource
	doc      *fakeDocument
	renderer *fakeRenderer
	store    *memStore
	encoder  sizeEncoder
}

func newFixture() *fixture {
	return &fixture{
		source:   &fakeSource{},
		doc:      &fakeDocument{pages: 3, bounds: tile.Bounds{Width: 600, Height: 800}},
		renderer: &fakeRenderer{},
		store:    newMemStore(),
	}
}

func (f *fixture) generator() *Generator {
	return New(Config{
		Source: f.source,
		Documents: OpenerFunc(func(path string) (Document, error) {
			return f.doc, nil
		}),
		Renderer: f.renderer,
		Store:    f.store,
		Paths: PathResolver{
			Dir:    "/out",
			Random: func() int64 { return 7 },
		},
		NewEncoder: func(imgcodec.Format, int) Encoder { return f.encoder },
		Workers:    4,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func ptr[T any](v T) *T { return &v }

func TestGenerate_ScenarioA_SingleImage(t *testing.T) {
	f := newFixture()

	env, err := f.generator().Generate(context.Background(), Options{
		URL:   "doc.pdf",
		Scale: ptr(1.0),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	want := &SingleImage{URI: "file:///out/pdfsnap-0-7.jpg", Width: 600, Height: 800}
	if diff := cmp.Diff(want, env.Single); diff != "" {
		t.Errorf("single image mismatch (-want +got):\n%s", diff)
	}
	if env.Tiled != nil {
		t.Error("Expected no tiled result")
	}
	if got := string(f.store.files["/out/pdfsnap-0-7.jpg"]); got != "600x800" {
		t.Errorf("Expected 600x800 image written, got %q", got)
	}
	if len(f.renderer.requests) != 1 || f.renderer.requests[0].Scale != 1 {
		t.Errorf("Expected one render at scale 1, got %+v", f.renderer.requests)
	}
}

func TestGenerate_ScenarioB_Tiles(t *testing.T) {
	f := newFixture()

	env, err := f.generator().Generate(context.Background(), Options{
		URL:   "doc.pdf",
		Scale: ptr(2.0),
		Max:   ptr(500.0),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if env.Single != nil {
		t.Fatal("Expected a tiled result")
	}

	tiled := env.Tiled
	if tiled.TotalWidth != 1200 || tiled.TotalHeight != 1600 {
		t.Errorf("Expected totals 1200x1600, got %dx%d", tiled.TotalWidth, tiled.TotalHeight)
	}
	if len(tiled.Images) != 12 {
		t.Fatalf("Expected 12 tiles, got %d", len(tiled.Images))
	}
	if len(tiled.Failures) != 0 {
		t.Errorf("Expected no failures, got %+v", tiled.Failures)
	}

	i := 0
	for col := 0; col < 3; col++ {
		for row := 0; row < 4; row++ {
			want := TileImage{
				URI:    fmt.Sprintf("file:///out/pdfsnap-0-7-split-%d.jpg", i),
				X:      col * 400,
				Y:      row * 400,
				Width:  400,
				Height: 400,
			}
			if diff := cmp.Diff(want, tiled.Images[i]); diff != "" {
				t.Errorf("tile %d mismatch (-want +got):\n%s", i, diff)
			}
			path := fmt.Sprintf("/out/pdfsnap-0-7-split-%d.jpg", i)
			if got := string(f.store.files[path]); got != "400x400" {
				t.Errorf("Expected 400x400 tile at %s, got %q", path, got)
			}
			i++
		}
	}

	if len(f.renderer.requests) != 1 {
		t.Fatalf("Expected the page to be rendered once, got %d", len(f.renderer.requests))
	}
	if got := f.renderer.requests[0].Size; got != image.Pt(1200, 1600) {
		t.Errorf("Expected render size 1200x1600, got %v", got)
	}
}

func TestGenerate_ScenarioC_DisableSplitClamps(t *testing.T) {
	f := newFixture()

	env, err := f.generator().Generate(context.Background(), Options{
		URL:          "doc.pdf",
		Scale:        ptr(2.0),
		Max:          ptr(500.0),
		DisableSplit: ptr(true),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if env.Single == nil {
		t.Fatal("Expected a single image")
	}
	if env.Single.Width != 375 || env.Single.Height != 500 {
		t.Errorf("Expected 375x500, got %dx%d", env.Single.Width, env.Single.Height)
	}
	if got := f.renderer.requests[0].Scale; got != 0.625 {
		t.Errorf("Expected effective scale 0.625, got %v", got)
	}
}

func TestGenerate_ScenarioD_PageOutOfRange(t *testing.T) {
	f := newFixture()

	_, err := f.generator().Generate(context.Background(), Options{
		URL:  "doc.pdf",
		Page: ptr(5),
	})
	if KindOf(err) != KindPageOutOfRange {
		t.Fatalf("Expected PAGE_OUT_OF_RANGE, got %v", err)
	}
	if len(f.store.files) != 0 {
		t.Errorf("Expected no files written, got %d", len(f.store.files))
	}
	if len(f.renderer.requests) != 0 {
		t.Error("Expected no render for a missing page")
	}
}

func TestGenerate_FitsInOneTile(t *testing.T) {
	f := newFixture()

	env, err := f.generator().Generate(context.Background(), Options{
		URL:   "doc.pdf",
		Scale: ptr(1.0),
		Max:   ptr(1000.0),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if env.Single == nil || env.Single.Width != 600 || env.Single.Height != 800 {
		t.Errorf("Expected single 600x800 image, got %+v", env)
	}
}

func TestGenerate_UnevenTiles(t *testing.T) {
	f := newFixture()
	f.doc.bounds = tile.Bounds{Width: 1001, Height: 10}

	env, err := f.generator().Generate(context.Background(), Options{
		URL:   "doc.pdf",
		Scale: ptr(1.0),
		Max:   ptr(500.0),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	total := 0
	next := 0
	for _, img := range env.Tiled.Images {
		if img.X != next {
			t.Errorf("Expected tile at x=%d, got %d", next, img.X)
		}
		next = img.X + img.Width
		total += img.Width
	}
	if len(env.Tiled.Images) != 3 || total != 1001 {
		t.Errorf("Expected 3 tiles covering 1001px, got %d tiles covering %d", len(env.Tiled.Images), total)
	}
}

func TestGenerate_NormalizesOrientation(t *testing.T) {
	f := newFixture()
	f.renderer.transposed = true

	env, err := f.generator().Generate(context.Background(), Options{
		URL:   "doc.pdf",
		Scale: ptr(1.0),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if env.Single.Width != 600 || env.Single.Height != 800 {
		t.Errorf("Expected upright 600x800, got %dx%d", env.Single.Width, env.Single.Height)
	}
}

func TestGenerate_PartialWriteFailure(t *testing.T) {
	f := newFixture()
	f.store.fail["/out/pdfsnap-0-7-split-3.jpg"] = true

	env, err := f.generator().Generate(context.Background(), Options{
		URL: "doc.pdf",
		Max: ptr(500.0),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(env.Tiled.Images) != 11 {
		t.Errorf("Expected 11 tiles, got %d", len(env.Tiled.Images))
	}
	if len(env.Tiled.Failures) != 1 {
		t.Fatalf("Expected one failure, got %+v", env.Tiled.Failures)
	}
	if got := env.Tiled.Failures[0]; got.Index != 3 || got.Code != KindWriteFailed {
		t.Errorf("Expected WRITE_FAILED for tile 3, got %+v", got)
	}
}

func TestGenerate_CropOutsideBitmap(t *testing.T) {
	f := newFixture()
	// One column short of the planned 1200px extent.
	f.renderer.size = image.Pt(800, 1600)

	env, err := f.generator().Generate(context.Background(), Options{
		URL: "doc.pdf",
		Max: ptr(500.0),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var indexes []int
	for _, failure := range env.Tiled.Failures {
		if failure.Code != KindCropFailed {
			t.Errorf("Expected CROP_FAILED, got %s", failure.Code)
		}
		indexes = append(indexes, failure.Index)
	}
	if diff := cmp.Diff([]int{8, 9, 10, 11}, indexes); diff != "" {
		t.Errorf("failed tiles mismatch (-want +got):\n%s", diff)
	}
	if len(env.Tiled.Images) != 8 {
		t.Errorf("Expected 8 tiles, got %d", len(env.Tiled.Images))
	}
}

func TestGenerate_NoTiles(t *testing.T) {
	f := newFixture()
	f.encoder.fail = true

	env, err := f.generator().Generate(context.Background(), Options{
		URL: "doc.pdf",
		Max: ptr(500.0),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(env.Tiled.Images) != 0 || len(env.Tiled.Failures) != 12 {
		t.Errorf("Expected 0 tiles and 12 failures, got %d and %d", len(env.Tiled.Images), len(env.Tiled.Failures))
	}
	for _, failure := range env.Tiled.Failures {
		if failure.Code != KindEncodeFailed {
			t.Errorf("Expected ENCODE_FAILED, got %s", failure.Code)
		}
	}

	_, err = f.generator().Generate(context.Background(), Options{
		URL:          "doc.pdf",
		Max:          ptr(500.0),
		RequireTiles: ptr(true),
	})
	if KindOf(err) != KindCropFailed {
		t.Errorf("Expected CROP_FAILED with requireTiles, got %v", err)
	}
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		opts  Options
		want  ErrorKind
	}{
		{
			name: "missing url",
			opts: Options{},
			want: KindConfigMissing,
		},
		{
			name:  "source unavailable",
			setup: func(f *fixture) { f.source.err = errors.New("not found") },
			opts:  Options{URL: "doc.pdf"},
			want:  KindDocumentUnavailable,
		},
		{
			name:  "render failure",
			setup: func(f *fixture) { f.renderer.err = errors.New("boom") },
			opts:  Options{URL: "doc.pdf"},
			want:  KindRenderFailed,
		},
		{
			name:  "empty bounds",
			setup: func(f *fixture) { f.doc.bounds = tile.Bounds{Width: 0, Height: 800} },
			opts:  Options{URL: "doc.pdf"},
			want:  KindRenderFailed,
		},
		{
			name:  "encode failure",
			setup: func(f *fixture) { f.encoder.fail = true },
			opts:  Options{URL: "doc.pdf"},
			want:  KindEncodeFailed,
		},
		{
			name:  "write failure",
			setup: func(f *fixture) { f.store.fail["/out/page.jpg"] = true },
			opts:  Options{URL: "doc.pdf", Output: "/out/page.jpg"},
			want:  KindWriteFailed,
		},
		{
			name: "invalid output",
			opts: Options{URL: "doc.pdf", Output: "https://example.com/page.jpg"},
			want: KindConfigInvalid,
		},
		{
			name: "too large",
			opts: Options{URL: "doc.pdf", Scale: ptr(100.0)},
			want: KindConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := f.generator().Generate(context.Background(), tt.opts)
			if got := KindOf(err); got != tt.want {
				t.Errorf("Expected %s, got %s (%v)", tt.want, got, err)
			}
		})
	}
}

func TestGenerate_RejectsOversizedRequests(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"huge scale", Options{URL: "doc.pdf", Scale: ptr(1e300)}},
		{"scale beyond int range", Options{URL: "doc.pdf", Scale: ptr(1e16)}},
		{"huge dpi", Options{URL: "doc.pdf", DPI: ptr(1e18)}},
		{"huge scale with tiles", Options{URL: "doc.pdf", Scale: ptr(1e16), Max: ptr(500.0)}},
		{"overflowing scale with tiles", Options{URL: "doc.pdf", Scale: ptr(1e300), Max: ptr(500.0)}},
		{"tiny max", Options{URL: "doc.pdf", Scale: ptr(2.0), Max: ptr(1e-6)}},
		{"max below one pixel", Options{URL: "doc.pdf", Scale: ptr(0.1), Max: ptr(0.5)}},
		{"too many tiles", Options{URL: "doc.pdf", Scale: ptr(1.0), Max: ptr(1.0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			env, err := f.generator().Generate(context.Background(), tt.opts)
			if got := KindOf(err); got != KindConfigInvalid {
				t.Fatalf("Expected %s, got %s (%v, %+v)", KindConfigInvalid, got, err, env)
			}
			if len(f.renderer.requests) != 0 {
				t.Errorf("Expected no render, got %+v", f.renderer.requests)
			}
			if len(f.store.files) != 0 {
				t.Errorf("Expected no files, got %d", len(f.store.files))
			}
		})
	}
}

func TestGenerate_TileLimit(t *testing.T) {
	f := newFixture()
	g := f.generator()
	g.maxTiles = 12

	env, err := g.Generate(context.Background(), Options{URL: "doc.pdf", Scale: ptr(2.0), Max: ptr(500.0)})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(env.Tiled.Images) != 12 {
		t.Errorf("Expected 12 tiles, got %d", len(env.Tiled.Images))
	}

	g.maxTiles = 11
	if _, err := g.Generate(context.Background(), Options{URL: "doc.pdf", Scale: ptr(2.0), Max: ptr(500.0)}); KindOf(err) != KindConfigInvalid {
		t.Errorf("Expected %s above the tile limit, got %v", KindConfigInvalid, err)
	}
}

func TestGenerate_DefaultEncoder(t *testing.T) {
	f := newFixture()
	f.doc.bounds = tile.Bounds{Width: 20, Height: 10}

	g := New(Config{
		Source:    f.source,
		Documents: OpenerFunc(func(string) (Document, error) { return f.doc, nil }),
		Renderer:  f.renderer,
		Store:     f.store,
		Paths:     PathResolver{Dir: "/out"},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	env, err := g.Generate(context.Background(), Options{URL: "doc.pdf", Output: "/out/page"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if env.Single.URI != "file:///out/page.jpg" {
		t.Errorf("Expected jpg extension to be added, got %s", env.Single.URI)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(f.store.files["/out/page.jpg"]))
	if err != nil {
		t.Fatalf("Expected a JPEG file: %v", err)
	}
	if cfg.Width != 40 || cfg.Height != 20 {
		t.Errorf("Expected 40x20 JPEG, got %dx%d", cfg.Width, cfg.Height)
	}
}
