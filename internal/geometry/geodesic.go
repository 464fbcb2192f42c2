package geometry

import (
	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geos"
)

// earthRadiusM is the mean Earth radius used for spherical measurement.
const earthRadiusM = 6371008.8

// Area returns the geodetic area of a polygon in square meters, computed by
// spherical excess on a mean-radius sphere. Hole areas are subtracted.
// Returns 0 when the geometry cannot be measured.
func Area(g *geos.Geom) float64 {
	poly := LargestPolygon(g)
	if poly == nil || poly.IsEmpty() {
		return 0
	}

	area := ringArea(poly.ExteriorRing())
	if area <= 0 {
		return 0
	}
	for i := 0; i < poly.NumInteriorRings(); i++ {
		area -= ringArea(poly.InteriorRing(i))
	}
	if area < 0 {
		return 0
	}
	return area
}

// Perimeter returns the geodetic length of the exterior ring in meters.
// Returns 0 when the geometry cannot be measured.
func Perimeter(g *geos.Geom) float64 {
	poly := LargestPolygon(g)
	if poly == nil || poly.IsEmpty() {
		return 0
	}
	coords := ringCoords(poly.ExteriorRing())
	if len(coords) < 2 {
		return 0
	}

	var total float64
	prev := s2.LatLngFromDegrees(coords[0][1], coords[0][0])
	for _, c := range coords[1:] {
		cur := s2.LatLngFromDegrees(c[1], c[0])
		total += prev.Distance(cur).Radians() * earthRadiusM
		prev = cur
	}
	return total
}

func ringArea(ring *geos.Geom) float64 {
	coords := ringCoords(ring)
	if len(coords) < 4 {
		return 0
	}

	// Drop the closing point, s2 loops are implicitly closed.
	pts := make([]s2.Point, 0, len(coords)-1)
	for _, c := range coords[:len(coords)-1] {
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(c[1], c[0])))
	}
	loop := s2.LoopFromPoints(pts)
	// Orientation of source rings is not guaranteed; normalize so the loop
	// encloses the smaller of the two spherical caps.
	loop.Normalize()
	return loop.Area() * earthRadiusM * earthRadiusM
}
