package classify

import (
	"math"
	"sort"
)

// Sales classes.
const (
	ClassNone   = "none"
	ClassLow    = "low"
	ClassMedium = "medium"
	ClassHigh   = "high"
)

// Percentile returns the p-th percentile (0-100) of the non-NaN values using
// linear interpolation between the closest ranks. NaN when no values remain.
func Percentile(values []float64, p float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	return percentileSorted(clean, p)
}

func percentileSorted(sorted []float64, p float64) float64 {
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	h := float64(len(sorted)-1) * p / 100
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[i]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Percentile2 splits values into low, medium and high at two percentile cutpoints.
type Percentile2 struct {
	LowCut  float64 `json:"low_cut"`
	HighCut float64 `json:"high_cut"`
	ok      bool
}

// NewPercentile2 computes the cutpoints at percentiles lo and hi of values.
// With no usable values every input classifies as ClassNone.
func NewPercentile2(values []float64, lo, hi float64) Percentile2 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return Percentile2{LowCut: math.NaN(), HighCut: math.NaN()}
	}
	sort.Float64s(clean)
	return Percentile2{
		LowCut:  percentileSorted(clean, lo),
		HighCut: percentileSorted(clean, hi),
		ok:      true,
	}
}

// Valid reports whether cutpoints were computed.
func (p Percentile2) Valid() bool { return p.ok }

// Class returns ClassLow for v <= LowCut, ClassMedium for v <= HighCut, else ClassHigh.
func (p Percentile2) Class(v float64) string {
	if !p.ok || math.IsNaN(v) {
		return ClassNone
	}
	switch {
	case v <= p.LowCut:
		return ClassLow
	case v <= p.HighCut:
		return ClassMedium
	default:
		return ClassHigh
	}
}

// ClassColor maps a sales class to its fill color.
func ClassColor(class string) RGBA {
	switch class {
	case ClassLow:
		return BandLow
	case ClassMedium:
		return BandMid
	case ClassHigh:
		return BandHigh
	default:
		return Missing
	}
}

// Color returns the fill color for v.
func (p Percentile2) Color(v float64) RGBA {
	return ClassColor(p.Class(v))
}

// Legend lists the classes with their value ranges.
func (p Percentile2) Legend() []LegendEntry {
	if !p.ok {
		return []LegendEntry{{Label: "no data", Color: Missing}}
	}
	return []LegendEntry{
		{Label: ClassLow, Color: BandLow},
		{Label: ClassMedium, Color: BandMid},
		{Label: ClassHigh, Color: BandHigh},
		{Label: "no data", Color: Missing},
	}
}
