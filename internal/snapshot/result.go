package snapshot

import (
	"encoding/json"
	"errors"
	"image"
)

// SingleImage describes a page written as one file.
type SingleImage struct {
	URI    string `json:"uri"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// TileImage describes one written tile, positioned in rendered-pixel space.
type TileImage struct {
	URI    string `json:"uri"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// TileFailure records a tile that could not be produced.
type TileFailure struct {
	Index   int       `json:"index"`
	Code    ErrorKind `json:"code"`
	Message string    `json:"message"`
}

// TiledImage describes a page written as a grid of tiles.
type TiledImage struct {
	TotalWidth  int           `json:"totalWidth"`
	TotalHeight int           `json:"totalHeight"`
	Images      []TileImage   `json:"images"`
	Failures    []TileFailure `json:"failures,omitempty"`
}

// Envelope is the result of one snapshot. Exactly one of Single and Tiled is
// set.
type Envelope struct {
	Single *SingleImage
	Tiled  *TiledImage
}

// MarshalJSON writes the flat single or multi-tile shape.
func (e Envelope) MarshalJSON() ([]byte, error) {
	switch {
	case e.Single != nil:
		return json.Marshal(e.Single)
	case e.Tiled != nil:
		return json.Marshal(e.Tiled)
	default:
		return nil, errors.New("empty snapshot envelope")
	}
}

// tileOutcome is the result slot of one cell.
type tileOutcome struct {
	image *TileImage
	err   error
}

// aggregate assembles the multi-tile result from per-cell outcomes, keeping
// cell order.
func aggregate(size image.Point, outcomes []tileOutcome) *TiledImage {
	tiled := &TiledImage{
		TotalWidth:  size.X,
		TotalHeight: size.Y,
		Images:      make([]TileImage, 0, len(outcomes)),
	}
	for i, out := range outcomes {
		if out.err != nil {
			failure := TileFailure{Index: i, Code: KindOf(out.err), Message: out.err.Error()}
			if failure.Code == "" {
				failure.Code = KindCropFailed
			}
			tiled.Failures = append(tiled.Failures, failure)
			continue
		}
		if out.image != nil {
			tiled.Images = append(tiled.Images, *out.image)
		}
	}
	return tiled
}
