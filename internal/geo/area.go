// Package geo loads boundary layers and answers the spatial questions the dashboards ask.
package geo

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Sentinel errors returned by the loaders.
var (
	ErrMissingColumns = eris.New("geo: missing expected columns")
	ErrProjectedCRS   = eris.New("geo: layer uses a projected CRS; reproject to EPSG:4326 first")
)

// ColumnMap names the attribute columns holding the values a layer needs.
// Matching is case-insensitive. ProvinceCol is optional; a municipality layer
// leaves Barangay and Score empty.
type ColumnMap struct {
	Barangay    string
	CityMun     string
	Score       string
	ProvinceCol string
}

// Area is one boundary polygon with its standardized attributes.
type Area struct {
	ID       int                `json:"id"`
	Barangay string             `json:"barangay_name"`
	CityMun  string             `json:"citymun_name"`
	Province string             `json:"province,omitempty"`
	Score    float64            `json:"score"` // NaN when missing or unparseable
	Attrs    map[string]string  `json:"-"`
	Geom     *geom.MultiPolygon `json:"-"`
}

// HasScore reports whether the area carries a usable score.
func (a *Area) HasScore() bool {
	return !math.IsNaN(a.Score)
}

// Layer is a loaded boundary layer.
type Layer struct {
	Source string
	Areas  []Area
}

// CityMuns returns the sorted unique municipality names.
func (l *Layer) CityMuns() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range l.Areas {
		if !seen[a.CityMun] {
			seen[a.CityMun] = true
			out = append(out, a.CityMun)
		}
	}
	sort.Strings(out)
	return out
}

// ScoreBounds returns the min and max score ignoring NaN. ok is false when no
// area has a score.
func (l *Layer) ScoreBounds() (lo, hi float64, ok bool) {
	return ScoreBounds(l.Areas)
}

// ScoreBounds returns the min and max score of areas ignoring NaN.
func ScoreBounds(areas []Area) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, a := range areas {
		if !a.HasScore() {
			continue
		}
		ok = true
		lo = math.Min(lo, a.Score)
		hi = math.Max(hi, a.Score)
	}
	if !ok {
		return math.NaN(), math.NaN(), false
	}
	return lo, hi, true
}
