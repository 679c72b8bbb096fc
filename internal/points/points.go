// Package points loads optional point layers (competitor outlets, own branches)
// from spreadsheets and relates them to boundary areas.
package points

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/site-selection/internal/fetcher"
	"github.com/sells-group/site-selection/internal/geo"
)

// Point is one located outlet.
type Point struct {
	Name     string            `json:"name"`
	Category string            `json:"category,omitempty"`
	CityMun  string            `json:"citymun,omitempty"`
	Province string            `json:"province,omitempty"`
	Lat      float64           `json:"latitude"`
	Lng      float64           `json:"longitude"`
	Attrs    map[string]string `json:"-"`
}

// ColumnMap names the sheet columns. Name, Lat and Lng are required.
type ColumnMap struct {
	Name     string
	Category string
	CityMun  string
	Province string
	Lat      string
	Lng      string
	Sheet    string
}

// TableReader reads a sheet into a header and rows.
type TableReader interface {
	ReadTable(ctx context.Context, src string, opts fetcher.TableOptions) (*fetcher.Table, error)
}

// Load reads the point layer at src. An empty src yields no points and no
// warning. Any failure yields nil points plus a warning; the caller renders
// without the layer.
func Load(ctx context.Context, src string, cols ColumnMap, r TableReader) ([]Point, []string) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}
	log := zap.L().With(zap.String("component", "points"), zap.String("source", src))

	tbl, err := r.ReadTable(ctx, src, fetcher.TableOptions{Sheet: cols.Sheet})
	if err != nil {
		log.Warn("point layer unavailable", zap.Error(err))
		return nil, []string{fmt.Sprintf("Could not load points from %s: %v", src, err)}
	}

	if missing := tbl.Missing(cols.Name, cols.Lat, cols.Lng); len(missing) > 0 {
		log.Warn("point layer missing columns", zap.Strings("missing", missing))
		return nil, []string{fmt.Sprintf("Point sheet %s is missing required columns: %s",
			src, strings.Join(missing, ", "))}
	}

	var (
		nameIdx = tbl.Index(cols.Name)
		catIdx  = tbl.Index(cols.Category)
		cityIdx = tbl.Index(cols.CityMun)
		provIdx = tbl.Index(cols.Province)
		latIdx  = tbl.Index(cols.Lat)
		lngIdx  = tbl.Index(cols.Lng)
	)

	pts := make([]Point, 0, len(tbl.Rows))
	dropped := 0
	for i := range tbl.Rows {
		lat, latOK := parseCoord(tbl.Cell(i, latIdx), 90)
		lng, lngOK := parseCoord(tbl.Cell(i, lngIdx), 180)
		if !latOK || !lngOK {
			dropped++
			continue
		}

		attrs := make(map[string]string, len(tbl.Header))
		for j, h := range tbl.Header {
			attrs[strings.TrimSpace(h)] = tbl.Cell(i, j)
		}

		pts = append(pts, Point{
			Name:     tbl.Cell(i, nameIdx),
			Category: tbl.Cell(i, catIdx),
			CityMun:  tbl.Cell(i, cityIdx),
			Province: tbl.Cell(i, provIdx),
			Lat:      lat,
			Lng:      lng,
			Attrs:    attrs,
		})
	}

	var warnings []string
	if dropped > 0 {
		log.Warn("dropped rows with invalid coordinates", zap.Int("dropped", dropped))
		warnings = append(warnings, fmt.Sprintf("Dropped %d rows without valid coordinates from %s", dropped, src))
	}
	log.Info("point layer loaded", zap.Int("points", len(pts)))
	return pts, warnings
}

// parseCoord parses a coordinate and rejects values outside [-limit, limit].
func parseCoord(s string, limit float64) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > limit {
		return 0, false
	}
	return v, true
}

// CountWithin counts points falling inside each area, keyed by area ID.
// Areas with no points are absent from the map.
func CountWithin(areas []geo.Area, pts []Point) map[int]int {
	counts := make(map[int]int)
	for _, p := range pts {
		if a := geo.Locate(areas, p.Lng, p.Lat); a != nil {
			counts[a.ID]++
		}
	}
	return counts
}

// ByCityMun counts points per normalized municipality name. Points without a
// municipality column value are located against the areas instead.
func ByCityMun(areas []geo.Area, pts []Point) map[string]int {
	counts := make(map[string]int)
	for _, p := range pts {
		name := p.CityMun
		if name == "" {
			if a := geo.Locate(areas, p.Lng, p.Lat); a != nil {
				name = a.CityMun
			}
		}
		if name == "" {
			continue
		}
		counts[geo.NormalizeName(name)]++
	}
	return counts
}
