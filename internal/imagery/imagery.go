// Package imagery holds the in-memory RGB tile representation and the pixel
// arithmetic the classifier and green cover checks run on.
package imagery

import "fmt"

// DefaultExGThreshold marks a pixel as vegetation when its normalised excess
// green index exceeds it. Tuned for standard basemap imagery where vegetation
// is clearly green but not as vivid as drone captures.
const DefaultExGThreshold = 0.08

// minCropPixels is the smallest crop worth analysing. Tiny crops are noise.
const minCropPixels = 25

// Image is a row-major RGB raster, three bytes per pixel.
type Image struct {
	Pix    []uint8
	Width  int
	Height int
}

// NewImage allocates a zeroed RGB raster.
func NewImage(width, height int) *Image {
	return &Image{
		Pix:    make([]uint8, width*height*3),
		Width:  width,
		Height: height,
	}
}

// RGB returns the pixel at (x, y). Callers must stay in bounds.
func (im *Image) RGB(x, y int) (r, g, b uint8) {
	i := (y*im.Width + x) * 3
	return im.Pix[i], im.Pix[i+1], im.Pix[i+2]
}

// SetRGB writes the pixel at (x, y). Callers must stay in bounds.
func (im *Image) SetRGB(x, y int, r, g, b uint8) {
	i := (y*im.Width + x) * 3
	im.Pix[i], im.Pix[i+1], im.Pix[i+2] = r, g, b
}

// TileMeta georeferences an Image. BBox is [minLon, minLat, maxLon, maxLat];
// pixel row 0 sits at the top of the bounding box.
type TileMeta struct {
	BBox         [4]float64 `json:"bbox"`
	PixelSizeLon float64    `json:"pixel_size_lon"`
	PixelSizeLat float64    `json:"pixel_size_lat"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
}

// Validate checks that the metadata can georeference pixels.
func (m TileMeta) Validate() error {
	if m.PixelSizeLon <= 0 || m.PixelSizeLat <= 0 {
		return fmt.Errorf("non-positive pixel size")
	}
	if m.BBox[2] <= m.BBox[0] || m.BBox[3] <= m.BBox[1] {
		return fmt.Errorf("degenerate bbox")
	}
	return nil
}

// LonLatToPixel converts a geographic coordinate to pixel coordinates.
// The y axis is inverted: latitude decreases as rows increase.
func (m TileMeta) LonLatToPixel(lon, lat float64) (px, py int) {
	px = int((lon - m.BBox[0]) / m.PixelSizeLon)
	py = int((m.BBox[3] - lat) / m.PixelSizeLat)
	return px, py
}

// PixelToLonLat converts pixel coordinates to the geographic coordinate of
// that pixel's top-left corner.
func (m TileMeta) PixelToLonLat(px, py int) (lon, lat float64) {
	lon = m.BBox[0] + float64(px)*m.PixelSizeLon
	lat = m.BBox[3] - float64(py)*m.PixelSizeLat
	return lon, lat
}

// Crop returns the sub-image covering the geographic bounds
// [minLon, minLat, maxLon, maxLat], clamped to the raster. Returns nil when
// the clamped window is empty or below the minimum analysis size.
func (im *Image) Crop(meta TileMeta, bounds [4]float64) *Image {
	minPx, minPy := meta.LonLatToPixel(bounds[0], bounds[3])
	maxPx, maxPy := meta.LonLatToPixel(bounds[2], bounds[1])

	minPx = clamp(minPx, 0, im.Width-1)
	maxPx = clamp(maxPx, 0, im.Width-1)
	minPy = clamp(minPy, 0, im.Height-1)
	maxPy = clamp(maxPy, 0, im.Height-1)

	if maxPx <= minPx || maxPy <= minPy {
		return nil
	}
	w, h := maxPx-minPx, maxPy-minPy
	if w*h < minCropPixels {
		return nil
	}

	out := NewImage(w, h)
	for y := 0; y < h; y++ {
		src := ((minPy+y)*im.Width + minPx) * 3
		dst := y * w * 3
		copy(out.Pix[dst:dst+w*3], im.Pix[src:src+w*3])
	}
	return out
}

// MeanRGB returns the per-channel mean over the whole image.
func (im *Image) MeanRGB() (r, g, b float64) {
	n := im.Width * im.Height
	if n == 0 {
		return 0, 0, 0
	}
	var sr, sg, sb float64
	for i := 0; i < len(im.Pix); i += 3 {
		sr += float64(im.Pix[i])
		sg += float64(im.Pix[i+1])
		sb += float64(im.Pix[i+2])
	}
	return sr / float64(n), sg / float64(n), sb / float64(n)
}

// ExcessGreenFraction returns the fraction of pixels whose normalised excess
// green index (2G-R-B)/(R+G+B) exceeds the given threshold.
func (im *Image) ExcessGreenFraction(threshold float64) float64 {
	n := im.Width * im.Height
	if n == 0 {
		return 0
	}
	green := 0
	for i := 0; i < len(im.Pix); i += 3 {
		r := float64(im.Pix[i])
		g := float64(im.Pix[i+1])
		b := float64(im.Pix[i+2])
		exg := (2*g - r - b) / (r + g + b + 1e-6)
		if exg > threshold {
			green++
		}
	}
	return float64(green) / float64(n)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
