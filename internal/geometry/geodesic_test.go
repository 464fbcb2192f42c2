package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avikothari/plotsight/internal/models"
)

// A 0.001 degree square at the equator spans about 111.19 m per side, so
// roughly 12364 square meters and a 444.8 m perimeter.

func TestArea_SquareAtEquator(t *testing.T) {
	g, err := FromPolygon(square(0, 0, 0.001))
	require.NoError(t, err)

	assert.InDelta(t, 12364.0, Area(g), 130.0)
}

func TestArea_RingOrientationIrrelevant(t *testing.T) {
	cw := models.Polygon{Coordinates: [][][2]float64{{
		{0, 0},
		{0, 0.001},
		{0.001, 0.001},
		{0.001, 0},
		{0, 0},
	}}}
	g1, err := FromPolygon(square(0, 0, 0.001))
	require.NoError(t, err)
	g2, err := FromPolygon(cw)
	require.NoError(t, err)

	assert.InDelta(t, Area(g1), Area(g2), 1.0)
}

func TestArea_HoleSubtracted(t *testing.T) {
	withHole := models.Polygon{Coordinates: [][][2]float64{
		{
			{0, 0},
			{0.001, 0},
			{0.001, 0.001},
			{0, 0.001},
			{0, 0},
		},
		{
			{0.00025, 0.00025},
			{0.00075, 0.00025},
			{0.00075, 0.00075},
			{0.00025, 0.00075},
			{0.00025, 0.00025},
		},
	}}
	g, err := FromPolygon(withHole)
	require.NoError(t, err)

	// Hole covers a quarter of the outer square.
	assert.InDelta(t, 12364.0*0.75, Area(g), 130.0)
}

func TestArea_Unmeasurable(t *testing.T) {
	assert.Equal(t, 0.0, Area(nil))
}

func TestPerimeter_Square(t *testing.T) {
	g, err := FromPolygon(square(0, 0, 0.001))
	require.NoError(t, err)

	assert.InDelta(t, 444.8, Perimeter(g), 5.0)
}

func TestPerimeter_Unmeasurable(t *testing.T) {
	assert.Equal(t, 0.0, Perimeter(nil))
}
