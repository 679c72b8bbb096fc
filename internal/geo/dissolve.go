package geo

import (
	"sort"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Municipality groups the barangay polygons of one city or municipality.
type Municipality struct {
	Name      string
	Province  string
	Barangays int
	Areas     []Area
	Geom      *geom.MultiPolygon // union of the member polygons
}

// DissolveByCityMun groups areas by municipality name, sorted by name.
func DissolveByCityMun(areas []Area) []Municipality {
	byName := make(map[string]*Municipality)
	var order []string

	for _, a := range areas {
		m, ok := byName[a.CityMun]
		if !ok {
			m = &Municipality{Name: a.CityMun, Province: a.Province}
			byName[a.CityMun] = m
			order = append(order, a.CityMun)
		}
		m.Barangays++
		m.Areas = append(m.Areas, a)
	}

	sort.Strings(order)
	out := make([]Municipality, 0, len(order))
	for _, name := range order {
		m := byName[name]
		mp, err := Union(m.Areas)
		if err != nil {
			zap.L().Warn("geo: dissolve municipality", zap.String("citymun", name), zap.Error(err))
		}
		m.Geom = mp
		out = append(out, *m)
	}
	return out
}

// MunicipalityLayer turns a municipality-level layer (one polygon per municipality)
// into Municipality groups keyed by CityMun.
func MunicipalityLayer(layer *Layer) []Municipality {
	out := DissolveByCityMun(layer.Areas)
	for i := range out {
		if out[i].Barangays > 1 {
			zap.L().Debug("geo: municipality layer has several polygons for one name",
				zap.String("citymun", out[i].Name), zap.Int("polygons", out[i].Barangays))
		}
		out[i].Barangays = 0
	}
	return out
}
