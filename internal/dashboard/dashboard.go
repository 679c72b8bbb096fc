// Package dashboard filters a scored boundary layer and assembles the map
// colors, municipality summary and barangay ranking for one view.
package dashboard

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-selection/internal/classify"
	"github.com/sells-group/site-selection/internal/geo"
	"github.com/sells-group/site-selection/internal/points"
)

// AllMunicipalities selects every city and municipality.
const AllMunicipalities = "All municipalities"

// ErrNoMatch is returned when no barangay passes the filters.
var ErrNoMatch = eris.New("No barangays match the current filters.")

// ErrBadFilter marks a filter that cannot be applied, such as an inverted range.
var ErrBadFilter = eris.New("invalid score filter")

// ParseBound parses a score bound. Only finite numbers are accepted.
func ParseBound(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Wrapf(ErrBadFilter, "score bound %q is not a finite number", raw)
	}
	return v, nil
}

// Filter narrows the layer to one municipality and an inclusive score range.
// Nil bounds default to the layer's score bounds.
type Filter struct {
	CityMun         string   `json:"citymun,omitempty"`
	MinScore        *float64 `json:"min_score,omitempty"`
	MaxScore        *float64 `json:"max_score,omitempty"`
	HideCompetitors bool     `json:"hide_competitors,omitempty"`
}

// AllCityMuns reports whether the filter spans every municipality.
func (f Filter) AllCityMuns() bool {
	c := strings.TrimSpace(f.CityMun)
	return c == "" || strings.EqualFold(c, AllMunicipalities)
}

// Label names the municipality selection for table titles.
func (f Filter) Label() string {
	if f.AllCityMuns() {
		return AllMunicipalities
	}
	return strings.TrimSpace(f.CityMun)
}

// Params flattens the filter for the run log.
func (f Filter) Params() map[string]string {
	m := map[string]string{"citymun": f.Label()}
	if f.MinScore != nil {
		m["min"] = strconv.FormatFloat(*f.MinScore, 'f', -1, 64)
	}
	if f.MaxScore != nil {
		m["max"] = strconv.FormatFloat(*f.MaxScore, 'f', -1, 64)
	}
	if f.HideCompetitors {
		m["hide_competitors"] = "true"
	}
	return m
}

// Range resolves the score range against the layer.
func (f Filter) Range(layer *geo.Layer) (lo, hi float64) {
	lo, hi, _ = layer.ScoreBounds()
	if f.MinScore != nil {
		lo = *f.MinScore
	}
	if f.MaxScore != nil {
		hi = *f.MaxScore
	}
	return lo, hi
}

// Validate rejects non-finite bounds and a range whose given min exceeds its
// given max. A single bound outside the layer range is valid and matches nothing.
func (f Filter) Validate() error {
	for _, b := range []*float64{f.MinScore, f.MaxScore} {
		if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0)) {
			return eris.Wrapf(ErrBadFilter, "dashboard: score bound %g is not finite", *b)
		}
	}
	if f.MinScore != nil && f.MaxScore != nil && *f.MinScore > *f.MaxScore {
		return eris.Wrapf(ErrBadFilter, "dashboard: min score %g is greater than max score %g", *f.MinScore, *f.MaxScore)
	}
	return nil
}

// Apply returns the areas matching the filter in layer order.
// Missing scores never pass a range.
func Apply(layer *geo.Layer, f Filter) ([]geo.Area, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	lo, hi := f.Range(layer)

	var out []geo.Area
	for _, a := range layer.Areas {
		if !f.AllCityMuns() && a.CityMun != strings.TrimSpace(f.CityMun) {
			continue
		}
		if !a.HasScore() || a.Score < lo || a.Score > hi {
			continue
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, ErrNoMatch
	}
	return out, nil
}

// MunicipalityRow aggregates the scores of one municipality.
// Mean, Min and Max are NaN when no barangay has a score.
type MunicipalityRow struct {
	CityMun string
	Count   int
	Mean    float64
	Min     float64
	Max     float64
}

// Summarize aggregates scores per municipality over the whole layer, or over
// the selected municipality only. Count is the number of scored barangays.
// Rows are sorted by mean descending; NaN means sort last, ties by name.
func Summarize(layer *geo.Layer, cityMun string) []MunicipalityRow {
	f := Filter{CityMun: cityMun}

	byName := make(map[string]*MunicipalityRow)
	sums := make(map[string]float64)
	for _, a := range layer.Areas {
		if !f.AllCityMuns() && a.CityMun != strings.TrimSpace(cityMun) {
			continue
		}
		row, ok := byName[a.CityMun]
		if !ok {
			row = &MunicipalityRow{CityMun: a.CityMun, Mean: math.NaN(), Min: math.NaN(), Max: math.NaN()}
			byName[a.CityMun] = row
		}
		if !a.HasScore() {
			continue
		}
		if row.Count == 0 || a.Score < row.Min {
			row.Min = a.Score
		}
		if row.Count == 0 || a.Score > row.Max {
			row.Max = a.Score
		}
		row.Count++
		sums[a.CityMun] += a.Score
	}

	rows := make([]MunicipalityRow, 0, len(byName))
	for name, row := range byName {
		if row.Count > 0 {
			row.Mean = sums[name] / float64(row.Count)
		}
		rows = append(rows, *row)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		an, bn := math.IsNaN(a.Mean), math.IsNaN(b.Mean)
		switch {
		case an != bn:
			return bn
		case !an && a.Mean != b.Mean:
			return a.Mean > b.Mean
		default:
			return a.CityMun < b.CityMun
		}
	})
	return rows
}

// RankRow is one barangay in the ranking table.
type RankRow struct {
	Rank        int
	AreaID      int
	Barangay    string
	CityMun     string
	Score       float64
	Competitors int
}

// Rank orders areas by score descending with a 1-based rank. Ties keep name
// order. competitors may be nil.
func Rank(areas []geo.Area, competitors map[int]int) []RankRow {
	sorted := make([]geo.Area, len(areas))
	copy(sorted, areas)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		an, bn := !a.HasScore(), !b.HasScore()
		switch {
		case an != bn:
			return bn
		case !an && a.Score != b.Score:
			return a.Score > b.Score
		case a.CityMun != b.CityMun:
			return a.CityMun < b.CityMun
		default:
			return a.Barangay < b.Barangay
		}
	})

	rows := make([]RankRow, len(sorted))
	for i, a := range sorted {
		rows[i] = RankRow{
			Rank:        i + 1,
			AreaID:      a.ID,
			Barangay:    a.Barangay,
			CityMun:     a.CityMun,
			Score:       a.Score,
			Competitors: competitors[a.ID],
		}
	}
	return rows
}

// ViewState positions the map camera.
type ViewState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
	Pitch     float64 `json:"pitch"`
	Bearing   float64 `json:"bearing"`
}

// Options tunes Build.
type Options struct {
	Zoom float64
}

// Result is everything one score dashboard view renders.
type Result struct {
	Filter      Filter
	ScoreMin    float64
	ScoreMax    float64
	Areas       []geo.Area
	Colors      []classify.RGBA // parallel to Areas
	View        ViewState
	Summary     []MunicipalityRow
	Ranking     []RankRow
	Competitors []points.Point
	Legend      []classify.LegendEntry
	Warnings    []string
}

// Build filters the layer and assembles the view. Competitors outside the
// filtered areas are still drawn; the per-barangay counts only cover matches.
func Build(layer *geo.Layer, competitors []points.Point, f Filter, cls classify.Classifier, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "dashboard"))

	areas, err := Apply(layer, f)
	if err != nil {
		if eris.Is(err, ErrNoMatch) {
			log.Warn("no barangays match filters", zap.String("citymun", f.Label()))
		}
		return nil, err
	}

	lng, lat, err := geo.Centroid(areas)
	if err != nil {
		return nil, eris.Wrap(err, "dashboard: view state")
	}
	zoom := opts.Zoom
	if zoom <= 0 {
		zoom = 11
	}

	colors := make([]classify.RGBA, len(areas))
	for i, a := range areas {
		colors[i] = cls.Color(a.Score)
	}

	var counts map[int]int
	shown := competitors
	if f.HideCompetitors {
		shown = nil
	} else if len(competitors) > 0 {
		counts = points.CountWithin(areas, competitors)
	}

	lo, hi := f.Range(layer)
	res := &Result{
		Filter:      f,
		ScoreMin:    lo,
		ScoreMax:    hi,
		Areas:       areas,
		Colors:      colors,
		View:        ViewState{Latitude: lat, Longitude: lng, Zoom: zoom},
		Summary:     Summarize(layer, f.CityMun),
		Ranking:     Rank(areas, counts),
		Competitors: shown,
		Legend:      cls.Legend(),
	}

	log.Info("dashboard built",
		zap.String("citymun", f.Label()),
		zap.Float64("min", lo),
		zap.Float64("max", hi),
		zap.Int("barangays", len(areas)),
		zap.Int("competitors", len(shown)),
	)
	return res, nil
}
