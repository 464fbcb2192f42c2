// Package vectorize turns raw segmentation masks into clean, classified and
// labeled parcel features.
package vectorize

import (
	"fmt"
	"math"
	"sort"

	"github.com/twpayne/go-geos"

	"github.com/avikothari/plotsight/internal/geometry"
	"github.com/avikothari/plotsight/internal/imagery"
	"github.com/avikothari/plotsight/internal/logger"
	"github.com/avikothari/plotsight/internal/models"
)

const (
	// Very elongated shapes above this area are roads regardless of color.
	roadAspectRatio = 5.0
	roadMinAreaSqm  = 50.0

	// Pavement signature: gray, low saturation, somewhat elongated.
	roadMaxSaturation  = 0.25
	roadMinBrightness  = 60.0
	roadMaxBrightness  = 190.0
	roadPavementAspect = 2.5
	bufferOpenQuadsegs = 8
	chaikinIterations  = 2
)

// Options tunes mask normalization.
type Options struct {
	// MinAreaSqm drops features below this geodetic area.
	MinAreaSqm float64
	// SimplifyToleranceM is the simplification tolerance in meters.
	SimplifyToleranceM float64
}

// Normalizer converts raw masks into measured, classified parcels.
type Normalizer struct {
	opts Options
	log  *logger.Logger
}

// New creates a Normalizer.
func New(opts Options, log *logger.Logger) *Normalizer {
	return &Normalizer{opts: opts, log: log}
}

// ProcessMasks repairs, smooths, measures, classifies and labels raw masks.
// Masks are handled largest first so label numbering follows visual
// prominence. When imagery is provided, classification uses pixel color in
// addition to shape; pass nil to classify on shape alone.
func (n *Normalizer) ProcessMasks(masks []models.RawMask, img *imagery.Image, meta *imagery.TileMeta) []models.Parcel {
	type measured struct {
		geom    *geos.Geom
		areaSqm float64
		mask    models.RawMask
	}

	prepared := make([]measured, 0, len(masks))
	for _, mask := range masks {
		g, err := geometry.FromPolygon(mask.Geometry)
		if err != nil {
			n.log.Warn("skipping unparseable mask", map[string]interface{}{"mask_id": mask.ID, "error": err.Error()})
			continue
		}
		g, err = geometry.Repair(g)
		if err != nil {
			n.log.Warn("skipping unrepairable mask", map[string]interface{}{"mask_id": mask.ID, "error": err.Error()})
			continue
		}
		prepared = append(prepared, measured{geom: g, areaSqm: geometry.Area(g), mask: mask})
	}

	sort.SliceStable(prepared, func(i, j int) bool {
		return prepared[i].areaSqm > prepared[j].areaSqm
	})

	parcels := make([]models.Parcel, 0, len(prepared))
	counters := map[models.Category]int{}

	for _, m := range prepared {
		if m.areaSqm < n.opts.MinAreaSqm {
			continue
		}

		simplified := n.Simplify(m.geom)

		category := n.classify(simplified, m.areaSqm, img, meta)
		counters[category]++

		poly, err := geometry.ToPolygon(simplified)
		if err != nil {
			n.log.Warn("dropping mask after simplification", map[string]interface{}{"mask_id": m.mask.ID, "error": err.Error()})
			continue
		}

		parcels = append(parcels, models.Parcel{
			Label:      fmt.Sprintf("%s %d", category.Label(), counters[category]),
			Category:   category,
			Geometry:   poly,
			AreaSqm:    round2(m.areaSqm),
			AreaSqft:   round2(models.SqmToSqft(m.areaSqm)),
			PerimeterM: round2(geometry.Perimeter(simplified)),
			Color:      category.Color(),
			Confidence: m.mask.Confidence,
			Source:     models.SourceDetected,
			Centroid:   geometry.Centroid(simplified),
		})
	}

	n.log.Info("processed masks", map[string]interface{}{
		"input": len(masks), "kept": len(parcels), "by_category": counters,
	})
	return parcels
}

// Simplify smooths a polygon in three steps: a morphological buffer open to
// shave pixel staircase edges, Chaikin corner cutting to round grid corners,
// then topology-preserving point reduction.
func (n *Normalizer) Simplify(g *geos.Geom) *geos.Geom {
	tolDeg := geometry.MetersToDegrees(n.opts.SimplifyToleranceM)

	bufDist := tolDeg * 0.5
	smoothed := g.Buffer(bufDist, bufferOpenQuadsegs).Buffer(-bufDist, bufferOpenQuadsegs)
	if smoothed == nil || smoothed.IsEmpty() {
		// buffer can collapse tiny polygons
		smoothed = g
	}
	if p := geometry.LargestPolygon(smoothed); p != nil {
		smoothed = p
	} else {
		smoothed = g
	}

	poly, err := geometry.ToPolygon(smoothed)
	if err != nil {
		return g
	}
	for i, ring := range poly.Coordinates {
		poly.Coordinates[i] = chaikin(ring, chaikinIterations)
	}
	rebuilt, err := geometry.FromPolygon(poly)
	if err != nil {
		return g
	}

	simplified := rebuilt.TopologyPreserveSimplify(tolDeg)
	if simplified == nil || simplified.IsEmpty() {
		return rebuilt
	}
	if !simplified.IsValid() {
		repaired, err := geometry.Repair(simplified)
		if err != nil {
			return rebuilt
		}
		simplified = repaired
	}
	if p := geometry.LargestPolygon(simplified); p != nil {
		return p
	}
	return rebuilt
}

// chaikin applies corner-cutting to a closed ring. Each iteration replaces
// every segment with points at 1/4 and 3/4 along it.
func chaikin(coords [][2]float64, iterations int) [][2]float64 {
	for iter := 0; iter < iterations; iter++ {
		if len(coords) < 3 {
			break
		}
		next := make([][2]float64, 0, 2*len(coords))
		for i := 0; i < len(coords)-1; i++ {
			p0, p1 := coords[i], coords[i+1]
			next = append(next,
				[2]float64{0.75*p0[0] + 0.25*p1[0], 0.75*p0[1] + 0.25*p1[1]},
				[2]float64{0.25*p0[0] + 0.75*p1[0], 0.25*p0[1] + 0.75*p1[1]},
			)
		}
		next = append(next, next[0])
		coords = next
	}
	return coords
}

func (n *Normalizer) classify(g *geos.Geom, areaSqm float64, img *imagery.Image, meta *imagery.TileMeta) models.Category {
	if img == nil || meta == nil {
		return classifyByShape(g, areaSqm)
	}

	poly, err := geometry.ToPolygon(g)
	if err != nil {
		return classifyByShape(g, areaSqm)
	}
	crop := img.Crop(*meta, poly.Bounds())
	if crop == nil {
		return classifyByShape(g, areaSqm)
	}

	aspect := geometry.AspectRatio(g)
	if aspect > roadAspectRatio && areaSqm > roadMinAreaSqm {
		return models.CategoryRoad
	}

	r, gr, b := crop.MeanRGB()
	brightness := (r + gr + b) / 3.0
	maxC := math.Max(r, math.Max(gr, b))
	minC := math.Min(r, math.Min(gr, b))
	saturation := (maxC - minC) / (maxC + 1e-6)

	if saturation < roadMaxSaturation && brightness > roadMinBrightness && brightness < roadMaxBrightness && aspect > roadPavementAspect {
		return models.CategoryRoad
	}
	return models.CategoryPlot
}

// classifyByShape is the shape-only fallback used without imagery. Only
// elongated features become roads; everything else is a plot.
func classifyByShape(g *geos.Geom, areaSqm float64) models.Category {
	if geometry.AspectRatio(g) > roadAspectRatio && areaSqm > roadMinAreaSqm {
		return models.CategoryRoad
	}
	return models.CategoryPlot
}

// RenumberLabels assigns clean sequential per-category numbers. Merge and
// clip passes leave gaps in the original numbering.
func RenumberLabels(parcels []models.Parcel) []models.Parcel {
	counters := map[models.Category]int{}
	for i := range parcels {
		cat := parcels[i].Category
		counters[cat]++
		parcels[i].Label = fmt.Sprintf("%s %d", cat.Label(), counters[cat])
	}
	return parcels
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
