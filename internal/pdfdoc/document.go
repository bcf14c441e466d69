// Package pdfdoc reads page geometry from PDF files.
package pdfdoc

import (
	"fmt"
	"math"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/kiesman99/pdfsnap/pkg/tile"
)

// letter is used when a page has no usable MediaBox.
var letter = Box{URx: 612, URy: 792}

// maxParentDepth bounds the /Parent walk for inherited attributes.
const maxParentDepth = 64

// Box is a PDF rectangle given by its lower-left and upper-right corners.
type Box struct {
	LLx, LLy, URx, URy float64
}

// Width returns the horizontal size of the box.
func (b Box) Width() float64 { return b.URx - b.LLx }

// Height returns the vertical size of the box.
func (b Box) Height() float64 { return b.URy - b.LLy }

// Empty reports whether the box has no area.
func (b Box) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// Intersect returns the largest box contained in both b and o.
func (b Box) Intersect(o Box) Box {
	return Box{
		LLx: math.Max(b.LLx, o.LLx),
		LLy: math.Max(b.LLy, o.LLy),
		URx: math.Min(b.URx, o.URx),
		URy: math.Min(b.URy, o.URy),
	}
}

// Page holds the geometry attributes of one page.
type Page struct {
	Index    int
	MediaBox Box
	CropBox  Box
	// Rotate is the clockwise display rotation in degrees (multiple of 90).
	Rotate int
}

// Bounds returns the visible page area in page space. For pages rotated by
// 90 or 270 degrees width and height are swapped, matching what renderers
// that honour /Rotate produce.
func (p Page) Bounds() tile.Bounds {
	box := p.CropBox
	b := tile.Bounds{X: box.LLx, Y: box.LLy, Width: box.Width(), Height: box.Height()}
	if p.Rotate%180 != 0 {
		b.Width, b.Height = b.Height, b.Width
	}
	return b
}

// Document is an open PDF file.
type Document struct {
	file   *os.File
	reader *pdf.Reader
	pages  int
}

// Open opens the PDF at path and reads its page count.
func Open(path string) (doc *Document, err error) {
	// The parser panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	return &Document{
		file:   f,
		reader: reader,
		pages:  reader.NumPage(),
	}, nil
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return d.pages
}

// Page reads the geometry of the page at the zero-based index.
func (d *Document) Page(index int) (page Page, err error) {
	if index < 0 || index >= d.pages {
		return Page{}, fmt.Errorf("page %d out of range, document has %d pages", index, d.pages)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page %d: %v", index, r)
		}
	}()

	v := d.reader.Page(index + 1).V
	if v.IsNull() {
		return Page{}, fmt.Errorf("page %d not found in page tree", index)
	}

	page = Page{Index: index, MediaBox: letter}
	if box, ok := toBox(inherited(v, "MediaBox")); ok && !box.Empty() {
		page.MediaBox = box
	}

	page.CropBox = page.MediaBox
	if box, ok := toBox(inherited(v, "CropBox")); ok {
		if clipped := box.Intersect(page.MediaBox); !clipped.Empty() {
			page.CropBox = clipped
		}
	}

	if rotate := inherited(v, "Rotate"); rotate.Kind() == pdf.Integer || rotate.Kind() == pdf.Real {
		page.Rotate = normalizeRotation(int(rotate.Float64()))
	}

	return page, nil
}

// PageBounds returns the visible bounds of the page at index.
func (d *Document) PageBounds(index int) (tile.Bounds, error) {
	page, err := d.Page(index)
	if err != nil {
		return tile.Bounds{}, err
	}
	return page.Bounds(), nil
}

// Close releases the underlying file.
func (d *Document) Close() error {
	return d.file.Close()
}

// inherited looks key up on the page and then on its ancestors.
func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; !v.IsNull() && depth < maxParentDepth; depth++ {
		if attr := v.Key(key); !attr.IsNull() {
			return attr
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

func toBox(v pdf.Value) (Box, bool) {
	if v.Kind() != pdf.Array || v.Len() != 4 {
		return Box{}, false
	}

	var n [4]float64
	for i := range n {
		item := v.Index(i)
		if item.Kind() != pdf.Integer && item.Kind() != pdf.Real {
			return Box{}, false
		}
		n[i] = item.Float64()
	}

	return Box{
		LLx: math.Min(n[0], n[2]),
		LLy: math.Min(n[1], n[3]),
		URx: math.Max(n[0], n[2]),
		URy: math.Max(n[1], n[3]),
	}, true
}

func normalizeRotation(degrees int) int {
	r := ((degrees % 360) + 360) % 360
	return r - r%90
}
