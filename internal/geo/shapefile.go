package geo

import (
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LoadShapefile reads a polygon shapefile into a Layer.
func LoadShapefile(path string, cols ColumnMap) (*Layer, error) {
	log := zap.L().With(zap.String("component", "geo.shapefile"), zap.String("path", path))

	if err := checkPRJ(strings.TrimSuffix(path, shpExt(path)) + ".prj"); err != nil {
		return nil, err
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name -> index map.
	fields := reader.Fields()
	names := make([]string, len(fields))
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		names[i] = name
		fieldIdx[strings.ToLower(name)] = i
	}

	if missing := missingColumns(fieldIdx, cols); len(missing) > 0 {
		return nil, eris.Wrapf(ErrMissingColumns, "%s: %s", path, strings.Join(missing, ", "))
	}

	attr := func(col string) string {
		idx, ok := fieldIdx[strings.ToLower(col)]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	layer := &Layer{Source: path}
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		mp := polygonToMultiPolygon(polygonOf(shape))
		if mp == nil {
			skipped++
			continue
		}

		attrs := make(map[string]string, len(names))
		for i, n := range names {
			attrs[n] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}

		area := Area{
			ID:       len(layer.Areas),
			Barangay: attr(cols.Barangay),
			CityMun:  attr(cols.CityMun),
			Score:    ParseScore(attr(cols.Score)),
			Attrs:    attrs,
			Geom:     mp,
		}
		if cols.ProvinceCol != "" {
			area.Province = attr(cols.ProvinceCol)
		}
		layer.Areas = append(layer.Areas, area)
	}

	if skipped > 0 && len(layer.Areas) == 0 {
		log.Warn("geo: no shapefile record has polygon geometry", zap.Int("skipped", skipped))
	} else if skipped > 0 {
		log.Debug("geo: skipped shapefile records without polygon geometry", zap.Int("skipped", skipped))
	}
	log.Info("boundary layer loaded", zap.Int("areas", len(layer.Areas)))

	return layer, nil
}

// polygonOf returns the 2D rings of a polygon shape, dropping Z and M values.
// Other shape types yield nil.
func polygonOf(shape shp.Shape) *shp.Polygon {
	switch s := shape.(type) {
	case *shp.Polygon:
		return s
	case *shp.PolygonZ:
		if s == nil {
			return nil
		}
		return &shp.Polygon{Box: s.Box, NumParts: s.NumParts, NumPoints: s.NumPoints, Parts: s.Parts, Points: s.Points}
	case *shp.PolygonM:
		if s == nil {
			return nil
		}
		return &shp.Polygon{Box: s.Box, NumParts: s.NumParts, NumPoints: s.NumPoints, Parts: s.Parts, Points: s.Points}
	default:
		return nil
	}
}

// ParseScore coerces an attribute to a float. Blank or unparseable values become NaN.
func ParseScore(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// missingColumns reports configured columns absent from the layer. CityMun is
// always required; Barangay and Score only when named.
func missingColumns(fieldIdx map[string]int, cols ColumnMap) []string {
	var missing []string
	for i, c := range []string{cols.CityMun, cols.Barangay, cols.Score} {
		if i > 0 && c == "" {
			continue
		}
		if _, ok := fieldIdx[strings.ToLower(c)]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

func shpExt(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i:]
	}
	return ""
}

// checkPRJ rejects projected coordinate systems. A missing .prj is assumed WGS84.
func checkPRJ(prjPath string) error {
	data, err := os.ReadFile(prjPath)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Warn("geo: no .prj next to shapefile, assuming EPSG:4326", zap.String("path", prjPath))
			return nil
		}
		return eris.Wrapf(err, "geo: read %s", prjPath)
	}

	wkt := strings.ToUpper(strings.TrimSpace(string(data)))
	if strings.HasPrefix(wkt, "PROJCS") || strings.HasPrefix(wkt, "PROJCRS") {
		return eris.Wrapf(ErrProjectedCRS, "%s", prjPath)
	}
	if !strings.Contains(wkt, "WGS") && !strings.Contains(wkt, "4326") {
		zap.L().Warn("geo: geographic CRS is not WGS84, coordinates used as-is", zap.String("path", prjPath))
	}
	return nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Clockwise rings start a new polygon; counter-clockwise rings are holes of the
// preceding polygon.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var polys [][][]geom.Coord

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}
		if end-start < 4 {
			zap.L().Debug("geo: skipping degenerate ring", zap.Int32("part", i))
			continue
		}

		ring := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, geom.Coord{p.Points[j].X, p.Points[j].Y})
		}

		if signedArea(ring) > 0 && len(polys) > 0 {
			last := len(polys) - 1
			polys[last] = append(polys[last], ring)
			continue
		}
		polys = append(polys, [][]geom.Coord{ring})
	}

	if len(polys) == 0 {
		return nil
	}

	mp, err := geom.NewMultiPolygon(geom.XY).SetCoords(polys)
	if err != nil {
		zap.L().Debug("geo: skipping malformed polygon", zap.Error(err))
		return nil
	}
	return mp
}

// signedArea is positive for counter-clockwise rings.
func signedArea(ring []geom.Coord) float64 {
	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		sum += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return sum / 2
}
