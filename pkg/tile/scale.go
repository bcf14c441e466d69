package tile

import "math"

// EffectiveScale returns the scale actually applied to a page.
//
// On the single image path (disableSplit set, or no maximum edge) the scale
// is clamped so the longer rendered edge does not exceed maxEdge. When tiling
// is possible the requested scale is returned unchanged: maxEdge then limits
// the tile size, not the page size.
func EffectiveScale(b Bounds, scale, maxEdge float64, disableSplit bool) float64 {
	if SplitRequested(maxEdge, disableSplit) {
		return scale
	}
	return ClampScale(b, scale, maxEdge)
}

// ClampScale limits scale so that neither rendered edge exceeds maxEdge.
// A maxEdge of zero or less means no limit.
func ClampScale(b Bounds, scale, maxEdge float64) float64 {
	if maxEdge <= 0 || !b.Valid() {
		return scale
	}
	maxScale := math.Min(maxEdge/b.Width, maxEdge/b.Height)
	return math.Min(scale, maxScale)
}

// SplitRequested reports whether the tiling path applies to a request.
func SplitRequested(maxEdge float64, disableSplit bool) bool {
	return !disableSplit && maxEdge > 0
}
