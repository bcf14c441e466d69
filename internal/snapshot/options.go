package snapshot

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/kiesman99/pdfsnap/internal/imgcodec"
	"github.com/kiesman99/pdfsnap/internal/raster"
)

// DefaultScale is the render scale used when neither scale nor dpi is given.
const DefaultScale = 2.0

// Options is the caller's option dictionary. Nil fields take their defaults.
type Options struct {
	URL            string   `json:"url"`
	Page           *int     `json:"page,omitempty"`
	Scale          *float64 `json:"scale,omitempty"`
	DPI            *float64 `json:"dpi,omitempty"`
	Max            *float64 `json:"max,omitempty"`
	DisableSplit   *bool    `json:"disableSplit,omitempty"`
	Output         string   `json:"output,omitempty"`
	OutputPath     string   `json:"outputPath,omitempty"`
	OutputFilename string   `json:"outputFilename,omitempty"`
	Format         string   `json:"format,omitempty"`
	Quality        *int     `json:"quality,omitempty"`
	RequireTiles   *bool    `json:"requireTiles,omitempty"`
}

// RenderConfig is a validated render request with all defaults applied.
type RenderConfig struct {
	URL          string
	Page         int
	Scale        float64
	MaxTileEdge  float64
	DisableSplit bool
	// OutputPath is the directory for OutputFilename, or for a generated
	// name when OutputFilename is empty.
	OutputPath string
	// OutputFilename is a file name, path or file:// URL.
	OutputFilename string
	Format         imgcodec.Format
	Quality        int
	RequireTiles   bool
}

// Resolve validates the options and applies defaults.
func (o Options) Resolve() (RenderConfig, error) {
	cfg := RenderConfig{
		URL:            strings.TrimSpace(o.URL),
		Scale:          DefaultScale,
		OutputPath:     strings.TrimSpace(o.OutputPath),
		OutputFilename: strings.TrimSpace(o.OutputFilename),
		Quality:        imgcodec.DefaultQuality,
	}

	if cfg.URL == "" {
		return RenderConfig{}, newError(KindConfigMissing, nil, "No url specified")
	}

	if o.Page != nil {
		if *o.Page < 0 {
			return RenderConfig{}, newError(KindConfigInvalid, nil, "page must not be negative, got %d", *o.Page)
		}
		cfg.Page = *o.Page
	}

	switch {
	case o.Scale != nil:
		if !positive(*o.Scale) {
			return RenderConfig{}, newError(KindConfigInvalid, nil, "scale must be positive, got %v", *o.Scale)
		}
		cfg.Scale = *o.Scale
	case o.DPI != nil:
		if !positive(*o.DPI) {
			return RenderConfig{}, newError(KindConfigInvalid, nil, "dpi must be positive, got %v", *o.DPI)
		}
		cfg.Scale = *o.DPI / raster.PointsPerInch
	}

	if o.Max != nil {
		if *o.Max < 0 || math.IsNaN(*o.Max) || math.IsInf(*o.Max, 0) {
			return RenderConfig{}, newError(KindConfigInvalid, nil, "max must not be negative, got %v", *o.Max)
		}
		if *o.Max > 0 && *o.Max < 1 {
			return RenderConfig{}, newError(KindConfigInvalid, nil, "max must be zero or at least one pixel, got %v", *o.Max)
		}
		cfg.MaxTileEdge = *o.Max
	}
	if o.DisableSplit != nil {
		cfg.DisableSplit = *o.DisableSplit
	}
	if o.RequireTiles != nil {
		cfg.RequireTiles = *o.RequireTiles
	}

	if output := strings.TrimSpace(o.Output); output != "" {
		if cfg.OutputPath != "" || cfg.OutputFilename != "" {
			return RenderConfig{}, newError(KindConfigInvalid, nil, "output cannot be combined with outputPath or outputFilename")
		}
		cfg.OutputFilename = output
	}

	format, err := resolveFormat(o.Format, cfg.OutputFilename)
	if err != nil {
		return RenderConfig{}, newError(KindConfigInvalid, err, "invalid format")
	}
	cfg.Format = format

	if o.Quality != nil {
		if *o.Quality < 1 || *o.Quality > 100 {
			return RenderConfig{}, newError(KindConfigInvalid, nil, "quality must be between 1 and 100, got %d", *o.Quality)
		}
		cfg.Quality = *o.Quality
	}

	return cfg, nil
}

// resolveFormat prefers an explicit format, then a recognised extension on
// the output name, then JPEG.
func resolveFormat(name, output string) (imgcodec.Format, error) {
	if strings.TrimSpace(name) != "" {
		return imgcodec.ParseFormat(name)
	}
	if ext := filepath.Ext(output); ext != "" {
		if format, err := imgcodec.ParseFormat(ext); err == nil {
			return format, nil
		}
	}
	return imgcodec.JPEG, nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
