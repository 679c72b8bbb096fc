package geo

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// LoadGeoJSON reads a GeoJSON FeatureCollection of Polygon/MultiPolygon features.
func LoadGeoJSON(path string, cols ColumnMap) (*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: read %s", path)
	}
	return ParseGeoJSON(path, data, cols)
}

// ParseGeoJSON decodes a FeatureCollection already in memory. source labels the layer.
func ParseGeoJSON(source string, data []byte, cols ColumnMap) (*Layer, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "geo: decode GeoJSON %s", source)
	}

	// Columns are checked against the union of property keys.
	keys := make(map[string]int)
	for _, f := range fc.Features {
		for k := range f.Properties {
			keys[strings.ToLower(k)] = 0
		}
	}
	if missing := missingColumns(keys, cols); len(missing) > 0 {
		return nil, eris.Wrapf(ErrMissingColumns, "%s: %s", source, strings.Join(missing, ", "))
	}

	layer := &Layer{Source: source}
	var skipped int

	for _, f := range fc.Features {
		mp := toMultiPolygon(f.Geometry)
		if mp == nil {
			skipped++
			continue
		}

		attrs := make(map[string]string, len(f.Properties))
		lower := make(map[string]string, len(f.Properties))
		for k, v := range f.Properties {
			s := propertyString(v)
			attrs[k] = s
			lower[strings.ToLower(k)] = s
		}

		area := Area{
			ID:       len(layer.Areas),
			Barangay: lower[strings.ToLower(cols.Barangay)],
			CityMun:  lower[strings.ToLower(cols.CityMun)],
			Score:    ParseScore(lower[strings.ToLower(cols.Score)]),
			Attrs:    attrs,
			Geom:     mp,
		}
		if cols.ProvinceCol != "" {
			area.Province = lower[strings.ToLower(cols.ProvinceCol)]
		}
		layer.Areas = append(layer.Areas, area)
	}

	if skipped > 0 {
		zap.L().Debug("geo: skipped GeoJSON features without polygon geometry",
			zap.String("source", source), zap.Int("skipped", skipped))
	}

	return layer, nil
}

func propertyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// toMultiPolygon normalizes Polygon/MultiPolygon geometries to an XY MultiPolygon.
func toMultiPolygon(g geom.T) *geom.MultiPolygon {
	var coords [][][]geom.Coord
	switch t := g.(type) {
	case *geom.Polygon:
		if t == nil || t.Empty() {
			return nil
		}
		coords = [][][]geom.Coord{t.Coords()}
	case *geom.MultiPolygon:
		if t == nil || t.Empty() {
			return nil
		}
		coords = t.Coords()
	default:
		return nil
	}

	for _, poly := range coords {
		for _, ring := range poly {
			for k, c := range ring {
				ring[k] = geom.Coord{c[0], c[1]}
			}
		}
	}

	mp, err := geom.NewMultiPolygon(geom.XY).SetCoords(coords)
	if err != nil {
		zap.L().Debug("geo: skipping malformed GeoJSON polygon", zap.Error(err))
		return nil
	}
	return mp
}
