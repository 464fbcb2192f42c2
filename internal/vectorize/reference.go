package vectorize

import (
	"fmt"

	"github.com/avikothari/plotsight/internal/geometry"
	"github.com/avikothari/plotsight/internal/imagery"
	"github.com/avikothari/plotsight/internal/models"
)

// referenceConfidence marks injected parcels as less trustworthy than ones
// the segmentation oracle found on its own.
const referenceConfidence = 0.7

// NormalizeReference runs the repair/smooth/measure/classify pipeline on an
// authoritative reference polygon and tags the result as injected rather
// than detected. Returns false when the geometry is unusable or falls below
// the minimum area.
func (n *Normalizer) NormalizeReference(ref models.ReferenceParcel, img *imagery.Image, meta *imagery.TileMeta) (models.Parcel, bool) {
	g, err := geometry.FromPolygon(ref.Geometry)
	if err == nil {
		g, err = geometry.Repair(g)
	}
	if err != nil {
		n.log.Warn("skipping unusable reference geometry", map[string]interface{}{"name": ref.Name, "error": err.Error()})
		return models.Parcel{}, false
	}

	simplified := n.Simplify(g)
	areaSqm := geometry.Area(simplified)
	if areaSqm < n.opts.MinAreaSqm {
		return models.Parcel{}, false
	}

	category := n.classify(simplified, areaSqm, img, meta)
	poly, err := geometry.ToPolygon(simplified)
	if err != nil {
		return models.Parcel{}, false
	}

	confidence := referenceConfidence
	return models.Parcel{
		Label:      fmt.Sprintf("%s (Ref: %s)", category.Label(), ref.Name),
		Category:   category,
		Geometry:   poly,
		AreaSqm:    round2(areaSqm),
		AreaSqft:   round2(models.SqmToSqft(areaSqm)),
		PerimeterM: round2(geometry.Perimeter(simplified)),
		Color:      category.Color(),
		Confidence: &confidence,
		Source:     models.SourceReferenceInjected,
		Centroid:   geometry.Centroid(simplified),
	}, true
}
