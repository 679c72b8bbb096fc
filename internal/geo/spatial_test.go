package geo

import (
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func areaFrom(id int, rings ...[]shp.Point) Area {
	pl := shp.NewPolyLine(rings)
	poly := shp.Polygon(*pl)
	return Area{ID: id, Geom: polygonToMultiPolygon(&poly)}
}

func TestCentroid(t *testing.T) {
	areas := []Area{
		areaFrom(0, square(0, 0, 2)),
		areaFrom(1, square(2, 0, 2)),
	}

	lng, lat, err := Centroid(areas)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, lng, 1e-9)
	assert.InDelta(t, 1.0, lat, 1e-9)
}

func TestCentroid_AreaWeighted(t *testing.T) {
	areas := []Area{
		areaFrom(0, square(0, 0, 3)), // area 9, centroid (1.5, 1.5)
		areaFrom(1, square(3, 0, 1)), // area 1, centroid (3.5, 0.5)
	}

	lng, lat, err := Centroid(areas)
	require.NoError(t, err)
	assert.InDelta(t, (9*1.5+1*3.5)/10, lng, 1e-9)
	assert.InDelta(t, (9*1.5+1*0.5)/10, lat, 1e-9)
}

func TestCentroid_Empty(t *testing.T) {
	_, _, err := Centroid(nil)
	require.Error(t, err)
}

func TestBounds(t *testing.T) {
	assert.Nil(t, Bounds(nil))

	b := Bounds([]Area{areaFrom(0, square(1, 2, 1)), areaFrom(1, square(5, -1, 2))})
	require.NotNil(t, b)
	assert.InDelta(t, 1, b.Min(0), 1e-12)
	assert.InDelta(t, -1, b.Min(1), 1e-12)
	assert.InDelta(t, 7, b.Max(0), 1e-12)
	assert.InDelta(t, 3, b.Max(1), 1e-12)
}

func TestContains(t *testing.T) {
	a := areaFrom(0, square(0, 0, 10), ccwSquare(4, 4, 2))

	assert.True(t, Contains(&a, 1, 1))
	assert.False(t, Contains(&a, 5, 5), "point inside the hole")
	assert.False(t, Contains(&a, 11, 1))
	assert.False(t, Contains(&Area{}, 1, 1))
}

func TestLocate(t *testing.T) {
	areas := []Area{areaFrom(0, square(0, 0, 1)), areaFrom(1, square(1, 0, 1))}

	found := Locate(areas, 1.5, 0.5)
	require.NotNil(t, found)
	assert.Equal(t, 1, found.ID)
	assert.Nil(t, Locate(areas, 5, 5))
}

func TestDissolveByCityMun(t *testing.T) {
	areas := []Area{
		{ID: 0, CityMun: "Malolos"},
		{ID: 1, CityMun: "Bocaue"},
		{ID: 2, CityMun: "Malolos"},
	}

	munis := DissolveByCityMun(areas)
	require.Len(t, munis, 2)
	assert.Equal(t, "Bocaue", munis[0].Name)
	assert.Equal(t, 1, munis[0].Barangays)
	assert.Equal(t, "Malolos", munis[1].Name)
	assert.Equal(t, 2, munis[1].Barangays)
	assert.Len(t, munis[1].Areas, 2)
	assert.NotNil(t, munis[1].Geom)
}

func TestEncodeEWKB(t *testing.T) {
	a := areaFrom(0, square(120.8, 14.8, 0.01))

	data, err := EncodeEWKB(a.Geom)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, byte(1), data[0], "NDR byte order")

	data, err = EncodeEWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, data)
}
