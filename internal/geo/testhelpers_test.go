package geo

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

type shpRecord struct {
	barangay string
	citymun  string
	score    float64 // NaN writes a blank value
	rings    [][]shp.Point
}

// square returns a clockwise closed ring with the given lower-left corner and size.
func square(x, y, size float64) []shp.Point {
	return []shp.Point{
		{X: x, Y: y},
		{X: x, Y: y + size},
		{X: x + size, Y: y + size},
		{X: x + size, Y: y},
		{X: x, Y: y},
	}
}

// ccwSquare returns a counter-clockwise ring, the orientation of a hole.
func ccwSquare(x, y, size float64) []shp.Point {
	return []shp.Point{
		{X: x, Y: y},
		{X: x + size, Y: y},
		{X: x + size, Y: y + size},
		{X: x, Y: y + size},
		{X: x, Y: y},
	}
}

func writeShapefile(t *testing.T, dir string, records []shpRecord) string {
	t.Helper()
	path := filepath.Join(dir, "barangays.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	w.SetFields([]shp.Field{
		shp.StringField("ADM4_EN", 50),
		shp.StringField("ADM3_EN", 50),
		shp.FloatField("mean_0", 16, 6),
	})

	for i, r := range records {
		poly := shp.Polygon(*shp.NewPolyLine(r.rings))
		w.Write(&poly)
		require.NoError(t, w.WriteAttribute(i, 0, r.barangay))
		require.NoError(t, w.WriteAttribute(i, 1, r.citymun))
		if math.IsNaN(r.score) {
			require.NoError(t, w.WriteAttribute(i, 2, ""))
		} else {
			require.NoError(t, w.WriteAttribute(i, 2, r.score))
		}
	}
	w.Close()
	// the writer names the attribute table "<stem>dbf"
	stem := strings.TrimSuffix(path, ".shp")
	require.NoError(t, os.Rename(stem+"dbf", stem+".dbf"))

	return path
}

func sampleRecords() []shpRecord {
	return []shpRecord{
		{barangay: "Poblacion", citymun: "Malolos", score: 0.82, rings: [][]shp.Point{square(120.80, 14.80, 0.01)}},
		{barangay: "Bulihan", citymun: "Malolos", score: 0.41, rings: [][]shp.Point{square(120.81, 14.80, 0.01)}},
		{barangay: "Tabe", citymun: "Guiguinto", score: math.NaN(), rings: [][]shp.Point{square(120.90, 14.80, 0.01)}},
	}
}

func defaultCols() ColumnMap {
	return ColumnMap{Barangay: "ADM4_EN", CityMun: "ADM3_EN", Score: "mean_0"}
}
