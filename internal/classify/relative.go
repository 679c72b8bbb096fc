package classify

import "math"

// Three-band colors for scores normalized against the layer's own range.
var (
	BandLow  = RGBA{230, 30, 30, 180}
	BandMid  = RGBA{255, 165, 0, 180}
	BandHigh = RGBA{0, 180, 0, 180}
)

const (
	relativeLowCut  = 0.33
	relativeHighCut = 0.66
	relativeEpsilon = 1e-9
)

// Relative3 colors a score by its position between a global min and max.
// The bounds stay fixed for a layer so colors do not shift when filters narrow the view.
type Relative3 struct {
	Min float64
	Max float64
}

// Normalize maps v into [0, 1) relative to the bounds.
func (r Relative3) Normalize(v float64) float64 {
	return (v - r.Min) / (r.Max - r.Min + relativeEpsilon)
}

// Color returns red below 0.33, orange below 0.66 and green otherwise.
func (r Relative3) Color(v float64) RGBA {
	if math.IsNaN(v) {
		return Missing
	}
	norm := r.Normalize(v)
	switch {
	case norm < relativeLowCut:
		return BandLow
	case norm < relativeHighCut:
		return BandMid
	default:
		return BandHigh
	}
}

// Legend lists the three bands and the missing class.
func (r Relative3) Legend() []LegendEntry {
	return []LegendEntry{
		{Label: "low", Color: BandLow},
		{Label: "medium", Color: BandMid},
		{Label: "high", Color: BandHigh},
		{Label: "no score", Color: Missing},
	}
}
