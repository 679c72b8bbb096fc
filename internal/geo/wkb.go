package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// SRID is the spatial reference all layers are stored in.
const SRID = 4326

// EncodeEWKB converts a MultiPolygon to EWKB bytes with SRID 4326.
// Returns nil, nil for a nil or empty geometry.
func EncodeEWKB(mp *geom.MultiPolygon) ([]byte, error) {
	if mp == nil || mp.Empty() {
		return nil, nil
	}

	g, err := geom.NewMultiPolygon(geom.XY).SetCoords(mp.Coords())
	if err != nil {
		return nil, eris.Wrap(err, "geo: copy geometry")
	}
	g.SetSRID(SRID)

	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode WKB")
	}
	return data, nil
}
