package sales

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-selection/internal/classify"
	"github.com/sells-group/site-selection/internal/dashboard"
	"github.com/sells-group/site-selection/internal/geo"
	"github.com/sells-group/site-selection/internal/points"
)

// Options configures Build.
type Options struct {
	Month          string  // YYYY-MM; empty aggregates every month
	LowPercentile  float64 // default 33
	HighPercentile float64 // default 66
	Zoom           float64
}

// Result is everything one sales dashboard view renders.
type Result struct {
	Month          string
	Months         []string
	Cutpoints      classify.Percentile2
	Municipalities []MunicipalitySales // sorted by total descending
	Areas          []geo.Area          // one per municipality polygon; Score holds the total
	Colors         []classify.RGBA     // parallel to Areas
	Branches       []BranchSales
	BranchPoints   []points.Point
	Trend          []MonthTotal
	Total          float64
	View           dashboard.ViewState
	Legend         []classify.LegendEntry
	Warnings       []string
}

// Build aggregates records for the selected month, classifies municipalities by
// percentile cutpoints, and joins them to municipality polygons by normalized
// name. Unknown months and unmatched names become warnings.
func Build(munis []geo.Municipality, records []Record, branches []points.Point, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "sales"))

	if opts.LowPercentile == 0 && opts.HighPercentile == 0 {
		opts.LowPercentile, opts.HighPercentile = 33, 66
	}
	if opts.LowPercentile < 0 || opts.HighPercentile > 100 || opts.LowPercentile >= opts.HighPercentile {
		return nil, eris.Errorf("sales: invalid percentiles %g/%g", opts.LowPercentile, opts.HighPercentile)
	}
	if len(munis) == 0 {
		return nil, eris.New("sales: no municipality polygons")
	}

	res := &Result{
		Month:  strings.TrimSpace(opts.Month),
		Months: Months(records),
		Trend:  Trend(records),
	}

	if res.Month != "" && !contains(res.Months, res.Month) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("No sales recorded for month %s", res.Month))
	}

	agg := Aggregate(records, res.Month)
	res.Cutpoints = Cutpoints(agg, opts.LowPercentile, opts.HighPercentile)
	Classify(agg, res.Cutpoints)
	res.Municipalities = agg
	res.Total = total(agg)
	res.Branches = RankBranches(records, res.Month)
	res.BranchPoints = branches
	res.Legend = res.Cutpoints.Legend()

	byKey := make(map[string]*MunicipalitySales, len(agg))
	for i := range agg {
		byKey[agg[i].Key] = &agg[i]
	}

	matched := make(map[string]bool)
	for i, m := range munis {
		key := geo.NormalizeName(m.Name)
		area := geo.Area{ID: i, CityMun: m.Name, Province: m.Province, Score: math.NaN(), Geom: m.Geom}
		color := classify.Missing
		if s, ok := byKey[key]; ok {
			area.Score = s.Total
			color = s.Color
			matched[key] = true
		}
		res.Areas = append(res.Areas, area)
		res.Colors = append(res.Colors, color)
	}

	var unmatched []string
	for _, m := range agg {
		if !matched[m.Key] {
			unmatched = append(unmatched, m.CityMun)
		}
	}
	if len(unmatched) > 0 {
		sort.Strings(unmatched)
		log.Warn("sales municipalities without a polygon", zap.Strings("citymun", unmatched))
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("No boundary found for: %s", strings.Join(unmatched, ", ")))
	}

	lng, lat, err := geo.Centroid(res.Areas)
	if err != nil {
		return nil, eris.Wrap(err, "sales: view state")
	}
	zoom := opts.Zoom
	if zoom <= 0 {
		zoom = 10
	}
	res.View = dashboard.ViewState{Latitude: lat, Longitude: lng, Zoom: zoom}

	log.Info("sales dashboard built",
		zap.String("month", res.Month),
		zap.Int("municipalities", len(agg)),
		zap.Int("matched", len(matched)),
		zap.Int("branches", len(res.Branches)),
	)
	return res, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
