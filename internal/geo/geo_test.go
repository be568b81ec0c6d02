package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(t *testing.T) orb.Projection {
	t.Helper()
	projection, err := NewProjection("EPSG:4326")
	require.NoError(t, err)
	return projection
}

func TestParseEPSG(t *testing.T) {
	for name, want := range map[string]int{
		"EPSG:3857":                  3857,
		"urn:ogc:def:crs:EPSG::3857": 3857,
		"4326":                       4326,
		" EPSG:900913 ":              900913,
	} {
		got, err := ParseEPSG(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseEPSG("WGS84")
	assert.Error(t, err)
}

func TestNewProjectionUnsupported(t *testing.T) {
	for _, name := range []string{"EPSG:999999", "WGS84", ""} {
		_, err := NewProjection(name)
		assert.ErrorIs(t, err, ErrUnsupportedCRS, name)
	}
}

func TestPointFromGaussKruger(t *testing.T) {
	// Pulkovo 1942 / Gauss-Kruger zone 7, central meridian 39°E
	projection, err := NewProjection("EPSG:28407")
	require.NoError(t, err)

	p, err := PointCentroid(orb.Point{7500000, 6100000}, projection)
	require.NoError(t, err)
	assert.InDelta(t, 39, p.Lon(), 0.01)
	assert.InDelta(t, 55, p.Lat(), 0.1)
}

func TestPointCentroidRejectsNaN(t *testing.T) {
	broken := func(orb.Point) orb.Point { return orb.Point{nan, nan} }

	_, err := PointCentroid(orb.Point{1, 2}, broken)
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = PolygonCentroid(orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}}}, broken)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestPointFromMercator(t *testing.T) {
	projection, err := NewProjection("EPSG:3857")
	require.NoError(t, err)

	p, err := PointCentroid(orb.Point{4187591.89, 7509137.58}, projection)
	require.NoError(t, err)
	assert.InDelta(t, 37.617778, p.Lon(), 1e-5)
	assert.InDelta(t, 55.751667, p.Lat(), 1e-5)

	origin, err := PointCentroid(orb.Point{0, 0}, projection)
	require.NoError(t, err)
	assert.InDelta(t, 0, origin.Lon(), 1e-9)
	assert.InDelta(t, 0, origin.Lat(), 1e-9)
}

func TestPolygonCentroidClosesRing(t *testing.T) {
	polygon := orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}}}

	c, err := PolygonCentroid(polygon, identity(t))
	require.NoError(t, err)
	assert.InDelta(t, 1, c.X(), 1e-9)
	assert.InDelta(t, 1, c.Y(), 1e-9)

	// the source polygon is left untouched
	assert.Len(t, polygon[0], 4)
}

func TestPolygonCentroidUsesOuterRingOnly(t *testing.T) {
	polygon := orb.Polygon{
		{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}},
		{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}},
	}

	c, err := PolygonCentroid(polygon, identity(t))
	require.NoError(t, err)
	assert.InDelta(t, 2, c.X(), 1e-9)
	assert.InDelta(t, 2, c.Y(), 1e-9)
}

func TestPolygonCentroidInvalid(t *testing.T) {
	_, err := PolygonCentroid(orb.Polygon{{{0, 0}, {1, 1}}}, identity(t))
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = PolygonCentroid(orb.Polygon{}, identity(t))
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestMultiPolygonCentroidFlattensRings(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}

	single, err := MultiPolygonCentroid(orb.MultiPolygon{square}, identity(t))
	require.NoError(t, err)
	assert.InDelta(t, 1, single.X(), 1e-9)
	assert.InDelta(t, 1, single.Y(), 1e-9)

	doubled, err := MultiPolygonCentroid(orb.MultiPolygon{square, square}, identity(t))
	require.NoError(t, err)
	assert.InDelta(t, 1, doubled.X(), 1e-9)
	assert.InDelta(t, 1, doubled.Y(), 1e-9)
}
