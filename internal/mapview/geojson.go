package mapview

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/site-selection/internal/classify"
	"github.com/sells-group/site-selection/internal/geo"
)

// FeatureCollection converts areas to GeoJSON. colors is parallel to areas and
// lands in the fill_color property; props adds per-area properties.
// Areas without geometry are skipped.
func FeatureCollection(areas []geo.Area, colors []classify.RGBA, props func(i int) map[string]any) (*geojson.FeatureCollection, error) {
	if colors != nil && len(colors) != len(areas) {
		return nil, eris.Errorf("mapview: %d colors for %d areas", len(colors), len(areas))
	}

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(areas))}
	for i, a := range areas {
		if a.Geom == nil || a.Geom.Empty() {
			continue
		}
		p := map[string]any{}
		if props != nil {
			p = props(i)
		}
		if colors != nil {
			p["fill_color"] = colors[i]
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(a.ID),
			Geometry:   a.Geom,
			Properties: p,
		})
	}
	return fc, nil
}
