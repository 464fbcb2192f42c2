package consolidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avikothari/plotsight/internal/logger"
	"github.com/avikothari/plotsight/internal/models"
)

func square(minLon, minLat, side float64) models.Polygon {
	return models.Polygon{Coordinates: [][][2]float64{{
		{minLon, minLat},
		{minLon + side, minLat},
		{minLon + side, minLat + side},
		{minLon, minLat + side},
		{minLon, minLat},
	}}}
}

func box(minLon, minLat, maxLon, maxLat float64) models.Polygon {
	return models.Polygon{Coordinates: [][][2]float64{{
		{minLon, minLat},
		{maxLon, minLat},
		{maxLon, maxLat},
		{minLon, maxLat},
		{minLon, minLat},
	}}}
}

func plot(label string, geom models.Polygon, areaSqm float64) models.Parcel {
	return models.Parcel{
		Label:    label,
		Category: models.CategoryPlot,
		Geometry: geom,
		AreaSqm:  areaSqm,
	}
}

func newTestConsolidator() *Consolidator {
	return New(DefaultOptions(), logger.Nop())
}

func TestMergeOverlapping_MergesAboveThreshold(t *testing.T) {
	c := newTestConsolidator()
	// Equal squares offset by half a side: intersection is 50% of the
	// smaller, well above the 30% merge threshold.
	parcels := []models.Parcel{
		plot("Plot 1", square(0, 0, 0.001), 12364),
		plot("Plot 2", square(0.0005, 0, 0.001), 12364),
	}

	out := c.MergeOverlapping(parcels)

	require.Len(t, out, 1)
	// The union spans 1.5 squares.
	assert.InDelta(t, 12364.0*1.5, out[0].AreaSqm, 300.0)
	b := out[0].Geometry.Bounds()
	assert.InDelta(t, 0.0, b[0], 1e-9)
	assert.InDelta(t, 0.0015, b[2], 1e-9)
}

func TestMergeOverlapping_KeepsBelowThreshold(t *testing.T) {
	c := newTestConsolidator()
	// Offset 0.9 of a side: only 10% of the smaller square overlaps.
	parcels := []models.Parcel{
		plot("Plot 1", square(0, 0, 0.001), 12364),
		plot("Plot 2", square(0.0009, 0, 0.001), 12364),
	}

	out := c.MergeOverlapping(parcels)
	assert.Len(t, out, 2)
}

func TestMergeOverlapping_ChainCollapses(t *testing.T) {
	c := newTestConsolidator()
	// Three overlapping squares in a row; the middle one bridges the ends.
	parcels := []models.Parcel{
		plot("Plot 1", square(0, 0, 0.001), 12364),
		plot("Plot 2", square(0.0005, 0, 0.001), 12364),
		plot("Plot 3", square(0.001, 0, 0.001), 12364),
	}

	out := c.MergeOverlapping(parcels)
	assert.Len(t, out, 1)
}

func TestMergeOverlapping_Disjoint(t *testing.T) {
	c := newTestConsolidator()
	parcels := []models.Parcel{
		plot("Plot 1", square(0, 0, 0.001), 12364),
		plot("Plot 2", square(0.005, 0, 0.001), 12364),
	}

	out := c.MergeOverlapping(parcels)
	assert.Equal(t, parcels, out)
}

func TestRemoveNested_DropsContained(t *testing.T) {
	c := newTestConsolidator()
	parcels := []models.Parcel{
		plot("Plot 1", square(0, 0, 0.001), 12364),
		// fully inside Plot 1
		plot("Plot 2", square(0.0002, 0.0002, 0.0003), 1113),
	}

	out := c.RemoveNested(parcels)

	require.Len(t, out, 1)
	assert.Equal(t, "Plot 1", out[0].Label)
}

func TestRemoveNested_CentroidRule(t *testing.T) {
	c := newTestConsolidator()
	// The small square overlaps the big one by 0.6 x 0.55 = 33% of itself,
	// below the 35% containment threshold but above the relaxed 20% one,
	// and its centroid sits inside the big square.
	parcels := []models.Parcel{
		plot("Plot 1", square(0, 0, 0.001), 12364),
		plot("Plot 2", box(-0.00008, -0.00009, 0.00012, 0.00011), 494),
	}

	out := c.RemoveNested(parcels)

	require.Len(t, out, 1)
	assert.Equal(t, "Plot 1", out[0].Label)
}

func TestRemoveNested_KeepsLowOverlapOutsideCentroid(t *testing.T) {
	c := newTestConsolidator()
	// Only 20% of the small square overlaps and its centroid is outside.
	parcels := []models.Parcel{
		plot("Plot 1", square(0, 0, 0.001), 12364),
		plot("Plot 2", box(-0.00016, 0.0002, 0.00004, 0.0004), 494),
	}

	out := c.RemoveNested(parcels)
	assert.Len(t, out, 2)
}

func TestRemoveNested_PreservesInputOrder(t *testing.T) {
	c := newTestConsolidator()
	parcels := []models.Parcel{
		plot("Plot 1", square(0.005, 0, 0.0005), 3091),
		plot("Plot 2", square(0, 0, 0.001), 12364),
		plot("Plot 3", square(0.01, 0, 0.0007), 6058),
	}

	out := c.RemoveNested(parcels)

	require.Len(t, out, 3)
	assert.Equal(t, "Plot 1", out[0].Label)
	assert.Equal(t, "Plot 2", out[1].Label)
	assert.Equal(t, "Plot 3", out[2].Label)
}

func TestFuseSmallClusters_FusesNearbyFragments(t *testing.T) {
	c := newTestConsolidator()
	// Two ~500 sqm fragments separated by 0.0001 degrees, inside the
	// 0.0003 degree proximity radius.
	parcels := []models.Parcel{
		plot("Plot 1", square(0, 0, 0.0002), 494),
		plot("Plot 2", square(0.0003, 0, 0.0002), 494),
	}

	out := c.FuseSmallClusters(parcels)

	require.Len(t, out, 1)
	assert.Equal(t, "Plot 1", out[0].Label)
}

func TestFuseSmallClusters_FarApartStaySeparate(t *testing.T) {
	c := newTestConsolidator()
	parcels := []models.Parcel{
		plot("Plot 1", square(0, 0, 0.0002), 494),
		plot("Plot 2", square(0.002, 0, 0.0002), 494),
	}

	out := c.FuseSmallClusters(parcels)
	assert.Len(t, out, 2)
}

func TestFuseSmallClusters_LargeParcelsUntouched(t *testing.T) {
	c := newTestConsolidator()
	parcels := []models.Parcel{
		plot("Plot 1", square(0, 0, 0.002), 49457),
		plot("Plot 2", square(0.0025, 0, 0.002), 49457),
		plot("Plot 3", square(0.005, 0, 0.0002), 494),
		plot("Plot 4", square(0.0053, 0, 0.0002), 494),
	}

	out := c.FuseSmallClusters(parcels)

	require.Len(t, out, 3)
	assert.Equal(t, "Plot 1", out[0].Label)
	assert.Equal(t, "Plot 2", out[1].Label)
	assert.Equal(t, "Plot 3", out[2].Label)
}

func TestFilterNoise(t *testing.T) {
	c := newTestConsolidator()

	// A long thin sliver: aspect ratio 50, compactness far below 0.08.
	sliver := box(0, 0, 0.005, 0.0001)

	parcels := []models.Parcel{
		plot("Plot 1", square(0, 0.01, 0.001), 12364),
		plot("Plot 2", square(0.002, 0.01, 0.00007), 60), // under the 80 sqm floor
		plot("Plot 3", sliver, 6182),
		{Label: "Road 1", Category: models.CategoryRoad, Geometry: sliver, AreaSqm: 6182},
	}

	out := c.FilterNoise(parcels)

	require.Len(t, out, 2)
	assert.Equal(t, "Plot 1", out[0].Label)
	assert.Equal(t, "Road 1", out[1].Label)
}

func TestFilterNoise_DisabledCategoriesPassThrough(t *testing.T) {
	c := newTestConsolidator()
	parcels := []models.Parcel{
		{Label: "Road 1", Category: models.CategoryRoad, Geometry: square(0, 0, 0.00005), AreaSqm: 30},
		{Label: "Boundary 1", Category: models.CategoryBoundary, Geometry: square(0.001, 0, 0.00005), AreaSqm: 30},
	}

	out := c.FilterNoise(parcels)
	assert.Len(t, out, 2)
}
