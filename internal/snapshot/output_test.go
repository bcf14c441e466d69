package snapshot

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"testing"
)

func testResolver() PathResolver {
	return PathResolver{
		Dir:    "/docs",
		Prefix: "snap",
		Random: func() int64 { return 42 },
	}
}

func TestPathResolver_Resolve(t *testing.T) {
	rel, err := filepath.Abs("rel.png")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cfg  RenderConfig
		want string
	}{
		{"generated", RenderConfig{Page: 3}, "/docs/snap-3-42.jpg"},
		{"generated in output path", RenderConfig{OutputPath: "/out"}, "/out/snap-0-42.jpg"},
		{"file name in output path", RenderConfig{OutputPath: "/out", OutputFilename: "page.png"}, "/out/page.png"},
		{"absolute name ignores output path", RenderConfig{OutputPath: "/out", OutputFilename: "/tmp/page.png"}, "/tmp/page.png"},
		{"missing extension", RenderConfig{OutputFilename: "/tmp/page"}, "/tmp/page.jpg"},
		{"relative name", RenderConfig{OutputFilename: "rel.png"}, rel},
		{"file url", RenderConfig{OutputFilename: "file:///tmp/my%20page.jpg"}, "/tmp/my page.jpg"},
		{"directory", RenderConfig{OutputFilename: "/tmp/shots/", Page: 1}, "/tmp/shots/snap-1-42.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testResolver().Resolve(tt.cfg, ".jpg")
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestPathResolver_InvalidOutput(t *testing.T) {
	for _, name := range []string{"https://example.com/a.jpg", "s3://bucket/a.jpg", "file://", "a\x00b.jpg"} {
		_, err := testResolver().Resolve(RenderConfig{OutputFilename: name}, ".jpg")
		if KindOf(err) != KindConfigInvalid {
			t.Errorf("Output %q: expected CONFIG_INVALID, got %v", name, err)
		}
	}
}

func TestPathResolver_DefaultPrefix(t *testing.T) {
	got, err := PathResolver{Dir: "/docs", Random: func() int64 { return 1 }}.Resolve(RenderConfig{}, ".png")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/docs/pdfsnap-0-1.png" {
		t.Errorf("Expected default prefix, got %s", got)
	}
}

func TestTilePath(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		got := TilePath("foo.jpg", i)
		if want := fmt.Sprintf("foo-split-%d.jpg", i); got != want {
			t.Errorf("Expected %s, got %s", want, got)
		}
		if seen[got] {
			t.Errorf("Duplicate tile path %s", got)
		}
		seen[got] = true
	}

	if got := TilePath("/out/page.v2.png", 3); got != "/out/page.v2-split-3.png" {
		t.Errorf("Expected only the last extension to be replaced, got %s", got)
	}
}

func TestFileURI(t *testing.T) {
	if got := FileURI("/tmp/a b.jpg"); got != "file:///tmp/a%20b.jpg" {
		t.Errorf("Unexpected URI %s", got)
	}
}

func TestEnvelope_MarshalJSON(t *testing.T) {
	single, err := json.Marshal(Envelope{Single: &SingleImage{URI: "file:///a.jpg", Width: 3, Height: 4}})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(single); got != `{"uri":"file:///a.jpg","width":3,"height":4}` {
		t.Errorf("Unexpected single JSON %s", got)
	}

	tiled, err := json.Marshal(Envelope{Tiled: &TiledImage{
		TotalWidth:  8,
		TotalHeight: 4,
		Images: []TileImage{
			{URI: "file:///a-split-0.jpg", Width: 4, Height: 4},
			{URI: "file:///a-split-1.jpg", X: 4, Width: 4, Height: 4},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"totalWidth":8,"totalHeight":4,"images":[` +
		`{"uri":"file:///a-split-0.jpg","x":0,"y":0,"width":4,"height":4},` +
		`{"uri":"file:///a-split-1.jpg","x":4,"y":0,"width":4,"height":4}]}`
	if got := string(tiled); got != want {
		t.Errorf("Unexpected tiled JSON\n got %s\nwant %s", got, want)
	}

	if _, err := json.Marshal(Envelope{}); err == nil {
		t.Error("Expected error for empty envelope")
	}
}

func TestExtractTile(t *testing.T) {
	img := newTestImage(10, 10)

	sub, err := extractTile(img, rect(2, 3, 6, 9))
	if err != nil {
		t.Fatal(err)
	}
	if sub.Bounds().Dx() != 4 || sub.Bounds().Dy() != 6 {
		t.Errorf("Expected 4x6 tile, got %v", sub.Bounds())
	}

	if _, err := extractTile(img, rect(8, 0, 12, 4)); KindOf(err) != KindCropFailed {
		t.Errorf("Expected CROP_FAILED, got %v", err)
	}
	if _, err := extractTile(img, rect(2, 2, 2, 2)); KindOf(err) != KindCropFailed {
		t.Errorf("Expected CROP_FAILED for empty rect, got %v", err)
	}
}

// opaqueImage hides the SubImage method of the wrapped image.
type opaqueImage struct {
	image.Image
}

func TestExtractTile_WithoutSubImage(t *testing.T) {
	img := newTestImage(10, 10)
	img.Set(5, 5, color.NRGBA{R: 255, A: 255})

	sub, err := extractTile(opaqueImage{img}, rect(4, 4, 8, 8))
	if err != nil {
		t.Fatal(err)
	}
	if sub.Bounds() != rect(0, 0, 4, 4) {
		t.Errorf("Expected copied tile at origin, got %v", sub.Bounds())
	}
	if r, _, _, _ := sub.At(1, 1).RGBA(); r != 0xffff {
		t.Error("Expected marker pixel to be copied")
	}
}

func newTestImage(w, h int) *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

func rect(x0, y0, x1, y1 int) image.Rectangle {
	return image.Rect(x0, y0, x1, y1)
}
