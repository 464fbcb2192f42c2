package imagery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testMeta covers [0, 0, 0.001, 0.001] with a 100x100 raster, so one pixel
// spans 0.00001 degrees.
func testMeta() TileMeta {
	return TileMeta{
		BBox:         [4]float64{0, 0, 0.001, 0.001},
		PixelSizeLon: 0.00001,
		PixelSizeLat: 0.00001,
		Width:        100,
		Height:       100,
	}
}

// fill paints every pixel of an image with one color.
func fill(im *Image, r, g, b uint8) *Image {
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			im.SetRGB(x, y, r, g, b)
		}
	}
	return im
}

func TestTileMetaValidate(t *testing.T) {
	assert.NoError(t, testMeta().Validate())

	bad := testMeta()
	bad.PixelSizeLon = 0
	assert.Error(t, bad.Validate())

	bad = testMeta()
	bad.BBox = [4]float64{0.001, 0, 0, 0.001}
	assert.Error(t, bad.Validate())
}

func TestLonLatToPixel_InvertedY(t *testing.T) {
	meta := testMeta()

	// Top-left geographic corner maps to pixel (0, 0).
	px, py := meta.LonLatToPixel(0, 0.001)
	assert.Equal(t, 0, px)
	assert.Equal(t, 0, py)

	// A point inside the bottom-right pixel maps to the last row and column.
	px, py = meta.LonLatToPixel(0.000995, 0.000005)
	assert.Equal(t, 99, px)
	assert.Equal(t, 99, py)
}

func TestPixelToLonLatRoundTrip(t *testing.T) {
	meta := testMeta()

	// Offset to the pixel center so truncation cannot flip the index.
	lon, lat := meta.PixelToLonLat(40, 25)
	px, py := meta.LonLatToPixel(lon+meta.PixelSizeLon/2, lat-meta.PixelSizeLat/2)
	assert.Equal(t, 40, px)
	assert.Equal(t, 25, py)
}

func TestCrop(t *testing.T) {
	img := fill(NewImage(100, 100), 10, 20, 30)
	meta := testMeta()

	crop := img.Crop(meta, [4]float64{0.000205, 0.000205, 0.000795, 0.000795})
	require.NotNil(t, crop)
	assert.Equal(t, 59, crop.Width)
	assert.Equal(t, 59, crop.Height)

	r, g, b := crop.RGB(0, 0)
	assert.Equal(t, uint8(10), r)
	assert.Equal(t, uint8(20), g)
	assert.Equal(t, uint8(30), b)
}

func TestCrop_ClampsToRaster(t *testing.T) {
	img := fill(NewImage(100, 100), 50, 50, 50)
	meta := testMeta()

	// Bounds extend well past the tile on every side.
	crop := img.Crop(meta, [4]float64{-0.001, -0.001, 0.002, 0.002})
	require.NotNil(t, crop)
	assert.Equal(t, 99, crop.Width)
	assert.Equal(t, 99, crop.Height)
}

func TestCrop_TooSmall(t *testing.T) {
	img := fill(NewImage(100, 100), 50, 50, 50)
	meta := testMeta()

	// A 4x4 pixel window is below the minimum analysis size.
	crop := img.Crop(meta, [4]float64{0.000505, 0.000505, 0.000545, 0.000545})
	assert.Nil(t, crop)
}

func TestCrop_OutsideRaster(t *testing.T) {
	img := fill(NewImage(100, 100), 50, 50, 50)
	meta := testMeta()

	crop := img.Crop(meta, [4]float64{0.005, 0.005, 0.006, 0.006})
	assert.Nil(t, crop)
}

func TestMeanRGB(t *testing.T) {
	img := NewImage(2, 1)
	img.SetRGB(0, 0, 0, 100, 200)
	img.SetRGB(1, 0, 100, 200, 0)

	r, g, b := img.MeanRGB()
	assert.InDelta(t, 50.0, r, 1e-9)
	assert.InDelta(t, 150.0, g, 1e-9)
	assert.InDelta(t, 100.0, b, 1e-9)
}

func TestExcessGreenFraction_Gray(t *testing.T) {
	// Uniform gray has zero excess green everywhere.
	img := fill(NewImage(10, 10), 128, 128, 128)
	assert.Equal(t, 0.0, img.ExcessGreenFraction(DefaultExGThreshold))
}

func TestExcessGreenFraction_AllVegetation(t *testing.T) {
	img := fill(NewImage(10, 10), 30, 180, 60)
	assert.Equal(t, 1.0, img.ExcessGreenFraction(DefaultExGThreshold))
}

func TestExcessGreenFraction_Mixed(t *testing.T) {
	img := fill(NewImage(10, 10), 128, 128, 128)
	// Paint the top half green.
	for y := 0; y < 5; y++ {
		for x := 0; x < 10; x++ {
			img.SetRGB(x, y, 30, 180, 60)
		}
	}
	assert.InDelta(t, 0.5, img.ExcessGreenFraction(DefaultExGThreshold), 1e-9)
}
