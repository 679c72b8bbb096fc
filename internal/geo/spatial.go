package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Union collects the polygons of every area into one MultiPolygon.
// Areas are assumed not to overlap, as adjacent administrative boundaries do not.
func Union(areas []Area) (*geom.MultiPolygon, error) {
	mp := geom.NewMultiPolygon(geom.XY)
	for _, a := range areas {
		if a.Geom == nil {
			continue
		}
		for i := 0; i < a.Geom.NumPolygons(); i++ {
			if err := mp.Push(a.Geom.Polygon(i)); err != nil {
				return nil, eris.Wrapf(err, "geo: union area %d", a.ID)
			}
		}
	}
	return mp, nil
}

// Centroid returns the area-weighted centroid (lng, lat) of the union of areas.
func Centroid(areas []Area) (lng, lat float64, err error) {
	mp, err := Union(areas)
	if err != nil {
		return 0, 0, err
	}
	if mp.NumPolygons() == 0 {
		return 0, 0, eris.New("geo: centroid of empty area set")
	}
	c, err := xy.Centroid(mp)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geo: centroid")
	}
	return c.X(), c.Y(), nil
}

// Bounds returns the bounding box of areas, or nil when there is no geometry.
func Bounds(areas []Area) *geom.Bounds {
	var b *geom.Bounds
	for _, a := range areas {
		if a.Geom == nil || a.Geom.Empty() {
			continue
		}
		if b == nil {
			b = geom.NewBounds(geom.XY)
		}
		b.Extend(a.Geom)
	}
	return b
}

// Contains reports whether the point lies inside any polygon of the area and
// outside that polygon's holes.
func Contains(a *Area, lng, lat float64) bool {
	if a.Geom == nil {
		return false
	}
	p := geom.Coord{lng, lat}
	for i := 0; i < a.Geom.NumPolygons(); i++ {
		poly := a.Geom.Polygon(i)
		if poly.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(geom.XY, p, poly.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for r := 1; r < poly.NumLinearRings(); r++ {
			if xy.IsPointInRing(geom.XY, p, poly.LinearRing(r).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// Locate returns the first area containing the point, or nil.
func Locate(areas []Area, lng, lat float64) *Area {
	for i := range areas {
		if Contains(&areas[i], lng, lat) {
			return &areas[i]
		}
	}
	return nil
}
