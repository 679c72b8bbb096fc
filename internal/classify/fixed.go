package classify

import (
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// NumBuckets is the number of classes in the fixed choropleth scheme.
const NumBuckets = 11

// DefaultBreaks are the lower bounds of buckets 1 through 10.
var DefaultBreaks = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}

// RdYlGn11 is the 11-class red-yellow-green ramp, low scores red.
var RdYlGn11 = []RGBA{
	{165, 0, 38, 180},
	{215, 48, 39, 180},
	{244, 109, 67, 180},
	{253, 174, 97, 180},
	{254, 224, 139, 180},
	{255, 255, 191, 180},
	{217, 239, 139, 180},
	{166, 217, 106, 180},
	{102, 189, 99, 180},
	{26, 152, 80, 180},
	{0, 104, 55, 180},
}

// Fixed11 buckets a score against fixed thresholds.
//
// Bucket 0 holds scores below breaks[0]; bucket i holds breaks[i-1] <= score < breaks[i];
// bucket 10 holds scores at or above breaks[9].
type Fixed11 struct {
	breaks  []float64
	colors  []RGBA
	missing RGBA
}

// NewFixed11 validates breaks and colors and returns a classifier.
func NewFixed11(breaks []float64, colors []RGBA) (*Fixed11, error) {
	if len(breaks) != NumBuckets-1 {
		return nil, eris.Errorf("classify: need %d breaks, got %d", NumBuckets-1, len(breaks))
	}
	if len(colors) != NumBuckets {
		return nil, eris.Errorf("classify: need %d colors, got %d", NumBuckets, len(colors))
	}
	for i, b := range breaks {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return nil, eris.Errorf("classify: break %d is not finite", i)
		}
		if i > 0 && b <= breaks[i-1] {
			return nil, eris.Errorf("classify: breaks must be strictly increasing (break %d = %g <= %g)", i, b, breaks[i-1])
		}
	}
	return &Fixed11{
		breaks:  append([]float64(nil), breaks...),
		colors:  append([]RGBA(nil), colors...),
		missing: Missing,
	}, nil
}

// DefaultFixed11 returns the scheme with DefaultBreaks and RdYlGn11.
func DefaultFixed11() *Fixed11 {
	f, err := NewFixed11(DefaultBreaks, RdYlGn11)
	if err != nil {
		panic(err)
	}
	return f
}

// Bucket returns the bucket index for v, or -1 when v is NaN.
func (f *Fixed11) Bucket(v float64) int {
	if math.IsNaN(v) {
		return -1
	}
	return sort.Search(len(f.breaks), func(i int) bool { return f.breaks[i] > v })
}

// Color returns the fill color for v.
func (f *Fixed11) Color(v float64) RGBA {
	b := f.Bucket(v)
	if b < 0 {
		return f.missing
	}
	return f.colors[b]
}

// Breaks returns a copy of the thresholds.
func (f *Fixed11) Breaks() []float64 {
	return append([]float64(nil), f.breaks...)
}

// Legend lists every bucket from lowest to highest, then the missing class.
func (f *Fixed11) Legend() []LegendEntry {
	out := make([]LegendEntry, 0, NumBuckets+1)
	last := len(f.breaks) - 1
	for i, c := range f.colors {
		var label string
		switch {
		case i == 0:
			label = fmt.Sprintf("< %.2f", f.breaks[0])
		case i > last:
			label = fmt.Sprintf(">= %.2f", f.breaks[last])
		default:
			label = fmt.Sprintf("%.2f to < %.2f", f.breaks[i-1], f.breaks[i])
		}
		out = append(out, LegendEntry{Label: label, Color: c})
	}
	return append(out, LegendEntry{Label: "no score", Color: f.missing})
}
