package geometry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avikothari/plotsight/internal/models"
)

// square builds a closed square ring of the given side length in degrees,
// anchored at (minLon, minLat).
func square(minLon, minLat, side float64) models.Polygon {
	return models.Polygon{Coordinates: [][][2]float64{{
		{minLon, minLat},
		{minLon + side, minLat},
		{minLon + side, minLat + side},
		{minLon, minLat + side},
		{minLon, minLat},
	}}}
}

func TestFromPolygonToPolygonRoundTrip(t *testing.T) {
	poly := square(81.6, 21.2, 0.001)

	g, err := FromPolygon(poly)
	require.NoError(t, err)
	require.NotNil(t, g)

	back, err := ToPolygon(g)
	require.NoError(t, err)
	require.Len(t, back.Coordinates, 1)
	assert.Len(t, back.Coordinates[0], 5)
	assert.Equal(t, poly.Bounds(), back.Bounds())
}

func TestFromGeoJSON(t *testing.T) {
	raw := json.RawMessage(`{"type":"Polygon","coordinates":[[[0,0],[0.001,0],[0.001,0.001],[0,0.001],[0,0]]]}`)

	g, err := FromGeoJSON(raw)
	require.NoError(t, err)
	assert.True(t, g.IsValid())
	assert.InDelta(t, 1e-6, g.Area(), 1e-9)
}

func TestFromGeoJSON_Invalid(t *testing.T) {
	_, err := FromGeoJSON(json.RawMessage(`{"not":"geojson"}`))
	assert.Error(t, err)
}

func TestRepair_ValidPassthrough(t *testing.T) {
	g, err := FromPolygon(square(0, 0, 0.001))
	require.NoError(t, err)

	fixed, err := Repair(g)
	require.NoError(t, err)
	assert.Same(t, g, fixed)
}

func TestRepair_Bowtie(t *testing.T) {
	// Self-intersecting hourglass ring.
	bowtie := models.Polygon{Coordinates: [][][2]float64{{
		{0, 0},
		{0.001, 0.001},
		{0.001, 0},
		{0, 0.001},
		{0, 0},
	}}}
	g, err := FromPolygon(bowtie)
	require.NoError(t, err)

	fixed, err := Repair(g)
	require.NoError(t, err)
	assert.True(t, fixed.IsValid())
	assert.Greater(t, fixed.Area(), 0.0)
}

func TestLargestPolygon_MultiPolygon(t *testing.T) {
	raw := json.RawMessage(`{"type":"MultiPolygon","coordinates":[
		[[[0,0],[0.001,0],[0.001,0.001],[0,0.001],[0,0]]],
		[[[1,0],[1.0001,0],[1.0001,0.0001],[1,0.0001],[1,0]]]
	]}`)
	g, err := FromGeoJSON(raw)
	require.NoError(t, err)

	largest := LargestPolygon(g)
	require.NotNil(t, largest)
	// The first component is 100x larger; its bounds sit at the origin.
	b := largest.Bounds()
	assert.InDelta(t, 0.0, b.MinX, 1e-12)
	assert.InDelta(t, 0.001, b.MaxX, 1e-12)
}

func TestLargestPolygon_NonPolygonal(t *testing.T) {
	raw := json.RawMessage(`{"type":"LineString","coordinates":[[0,0],[1,1]]}`)
	g, err := FromGeoJSON(raw)
	require.NoError(t, err)

	assert.Nil(t, LargestPolygon(g))
	assert.Nil(t, LargestPolygon(nil))
}

func TestCentroid(t *testing.T) {
	g, err := FromPolygon(square(10, 20, 0.002))
	require.NoError(t, err)

	c := Centroid(g)
	assert.InDelta(t, 10.001, c[0], 1e-9)
	assert.InDelta(t, 20.001, c[1], 1e-9)
}

func TestAspectRatio(t *testing.T) {
	rect := models.Polygon{Coordinates: [][][2]float64{{
		{0, 0},
		{0.003, 0},
		{0.003, 0.001},
		{0, 0.001},
		{0, 0},
	}}}
	g, err := FromPolygon(rect)
	require.NoError(t, err)

	assert.InDelta(t, 3.0, AspectRatio(g), 1e-9)
}

func TestCompactness_Square(t *testing.T) {
	g, err := FromPolygon(square(0, 0, 0.001))
	require.NoError(t, err)

	// Isoperimetric quotient of a square is pi/4.
	assert.InDelta(t, math.Pi/4, Compactness(g), 1e-6)
}

func TestMetersToDegrees(t *testing.T) {
	assert.InDelta(t, 3e-5, MetersToDegrees(3.0), 1e-12)
}
