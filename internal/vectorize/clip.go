package vectorize

import (
	"github.com/avikothari/plotsight/internal/geometry"
	"github.com/avikothari/plotsight/internal/logger"
	"github.com/avikothari/plotsight/internal/models"
)

// ClipToBoundary intersects parcels with the area boundary. Parcels fully
// outside are dropped, parcels straddling the edge are clipped and
// re-measured. An unusable boundary leaves the input untouched.
func ClipToBoundary(parcels []models.Parcel, boundary models.Polygon, minAreaSqm float64, log *logger.Logger) []models.Parcel {
	if boundary.IsEmpty() {
		return parcels
	}
	bg, err := geometry.FromPolygon(boundary)
	if err == nil {
		bg, err = geometry.Repair(bg)
	}
	if err != nil {
		log.Warn("invalid boundary geometry, skipping clip", map[string]interface{}{"error": err.Error()})
		return parcels
	}

	clipped := make([]models.Parcel, 0, len(parcels))
	for _, p := range parcels {
		g, err := geometry.FromPolygon(p.Geometry)
		if err == nil {
			g, err = geometry.Repair(g)
		}
		if err != nil {
			log.Warn("skipping parcel during clip", map[string]interface{}{"label": p.Label, "error": err.Error()})
			continue
		}

		if !g.Intersects(bg) {
			continue
		}
		inter := g.Intersection(bg)
		if inter == nil || inter.IsEmpty() {
			continue
		}
		part := geometry.LargestPolygon(inter)
		if part == nil {
			continue
		}

		areaSqm := geometry.Area(part)
		if areaSqm < minAreaSqm {
			continue
		}
		poly, err := geometry.ToPolygon(part)
		if err != nil {
			continue
		}

		p.Geometry = poly
		p.AreaSqm = round2(areaSqm)
		p.AreaSqft = round2(models.SqmToSqft(areaSqm))
		p.PerimeterM = round2(geometry.Perimeter(part))
		p.Centroid = geometry.Centroid(part)
		clipped = append(clipped, p)
	}

	log.Info("clipped parcels to boundary", map[string]interface{}{
		"input": len(parcels), "retained": len(clipped),
	})
	return clipped
}
