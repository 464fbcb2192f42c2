// Package geometry wraps the GEOS binding with the conversions and repair
// helpers the detection pipeline needs. Planar operations work in degree
// space; metric measurement lives in geodesic.go.
package geometry

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/twpayne/go-geos"

	"github.com/avikothari/plotsight/internal/models"
)

const (
	typeIDPolygon      = 3
	typeIDMultiPolygon = 6
)

// DegreesPerMeter converts a metric tolerance to the degree space the
// pipeline operates in. Approximate near the equator, good enough for the
// meter-scale tolerances used here.
const DegreesPerMeter = 1e-5

// MetersToDegrees converts a distance in meters to degrees of longitude at
// the equator.
func MetersToDegrees(m float64) float64 {
	return m * DegreesPerMeter
}

// FromGeoJSON parses a raw GeoJSON geometry into a GEOS geometry.
func FromGeoJSON(raw json.RawMessage) (*geos.Geom, error) {
	g, err := geos.NewGeomFromGeoJSON(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	return g, nil
}

// FromPolygon converts a typed polygon into a GEOS geometry. Rings are
// validated here because the GEOS constructor cannot report errors.
func FromPolygon(p models.Polygon) (*geos.Geom, error) {
	if p.IsEmpty() {
		return nil, fmt.Errorf("empty polygon")
	}
	rings := make([][][]float64, 0, len(p.Coordinates))
	for _, ring := range p.Coordinates {
		if len(ring) < 4 {
			return nil, fmt.Errorf("ring has %d points, need at least 4", len(ring))
		}
		if ring[0] != ring[len(ring)-1] {
			return nil, fmt.Errorf("ring is not closed")
		}
		coords := make([][]float64, 0, len(ring))
		for _, pt := range ring {
			coords = append(coords, []float64{pt[0], pt[1]})
		}
		rings = append(rings, coords)
	}
	g := geos.NewPolygon(rings)
	if g == nil {
		return nil, fmt.Errorf("build polygon from %d rings", len(p.Coordinates))
	}
	return g, nil
}

// ToPolygon converts a GEOS polygon back into the typed representation.
// MultiPolygons are reduced to their largest component first.
func ToPolygon(g *geos.Geom) (models.Polygon, error) {
	poly := LargestPolygon(g)
	if poly == nil || poly.IsEmpty() {
		return models.Polygon{}, fmt.Errorf("geometry has no polygonal component")
	}

	rings := make([][][2]float64, 0, 1+poly.NumInteriorRings())
	ext := ringCoords(poly.ExteriorRing())
	if len(ext) < 4 {
		return models.Polygon{}, fmt.Errorf("exterior ring has %d points", len(ext))
	}
	rings = append(rings, ext)

	for i := 0; i < poly.NumInteriorRings(); i++ {
		hole := ringCoords(poly.InteriorRing(i))
		if len(hole) >= 4 {
			rings = append(rings, hole)
		}
	}
	return models.Polygon{Coordinates: rings}, nil
}

func ringCoords(ring *geos.Geom) [][2]float64 {
	if ring == nil {
		return nil
	}
	seq := ring.CoordSeq()
	if seq == nil {
		return nil
	}
	n := seq.Size()
	coords := make([][2]float64, 0, n)
	for i := 0; i < n; i++ {
		coords = append(coords, [2]float64{seq.X(i), seq.Y(i)})
	}
	return coords
}

// Repair makes an invalid geometry valid and reduces the result to its
// largest polygonal part. Valid polygons pass through untouched.
func Repair(g *geos.Geom) (*geos.Geom, error) {
	if g == nil {
		return nil, fmt.Errorf("nil geometry")
	}
	if g.IsValid() && g.TypeID() == typeIDPolygon {
		return g, nil
	}

	fixed := g.MakeValidWithParams(geos.MakeValidLinework, geos.MakeValidDiscardCollapsed)
	if fixed == nil || fixed.IsEmpty() {
		return nil, fmt.Errorf("repair produced empty geometry")
	}
	poly := LargestPolygon(fixed)
	if poly == nil {
		return nil, fmt.Errorf("repair produced no polygonal part")
	}
	return poly, nil
}

// LargestPolygon returns the polygon with the greatest planar area from a
// polygon, multipolygon or collection. Returns nil when the geometry has no
// polygonal component.
func LargestPolygon(g *geos.Geom) *geos.Geom {
	if g == nil {
		return nil
	}
	switch g.TypeID() {
	case typeIDPolygon:
		return g
	case typeIDMultiPolygon:
	default:
		if g.NumGeometries() <= 1 {
			return nil
		}
	}

	var best *geos.Geom
	bestArea := -1.0
	for i := 0; i < g.NumGeometries(); i++ {
		part := g.Geometry(i)
		if part == nil || part.TypeID() != typeIDPolygon {
			continue
		}
		if a := part.Area(); a > bestArea {
			best, bestArea = part, a
		}
	}
	return best
}

// Centroid returns the centroid as a lon/lat pair. Falls back to the bounds
// center when GEOS cannot produce a centroid point.
func Centroid(g *geos.Geom) [2]float64 {
	if c := g.Centroid(); c != nil && !c.IsEmpty() {
		return [2]float64{c.X(), c.Y()}
	}
	b := g.Bounds()
	return [2]float64{(b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2}
}

// AspectRatio is the long-side to short-side ratio of the axis-aligned
// bounding box in degree space.
func AspectRatio(g *geos.Geom) float64 {
	b := g.Bounds()
	w := b.MaxX - b.MinX
	h := b.MaxY - b.MinY
	long, short := math.Max(w, h), math.Min(w, h)
	if short <= 0 {
		return math.Inf(1)
	}
	return long / short
}

// Compactness is the isoperimetric quotient 4*pi*A/P^2, computed in degree
// space. A circle scores 1.0; thin slivers approach 0.
func Compactness(g *geos.Geom) float64 {
	p := g.Length()
	if p <= 0 {
		return 0
	}
	return 4 * math.Pi * g.Area() / (p * p)
}
