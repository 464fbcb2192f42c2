// Package gapfill makes sure every authoritative reference parcel ends up
// represented in the detected set: it plans targeted re-queries of the
// segmentation oracle for missed parcels, filters the resulting masks, and
// as a last resort injects reference geometry directly.
package gapfill

import (
	"github.com/twpayne/go-geos"

	"github.com/avikothari/plotsight/internal/geometry"
	"github.com/avikothari/plotsight/internal/imagery"
	"github.com/avikothari/plotsight/internal/logger"
	"github.com/avikothari/plotsight/internal/models"
	"github.com/avikothari/plotsight/internal/oracle"
	"github.com/avikothari/plotsight/internal/vectorize"
)

const maxEdgeMidpoints = 4

// Options tunes gap-filling.
type Options struct {
	// InjectCoverageThreshold marks a reference parcel as already detected
	// when this fraction of it is covered by the detected set.
	InjectCoverageThreshold float64
	// PromptCoverageThreshold marks a reference parcel as already covered by
	// raw oracle masks, skipping the targeted re-query.
	PromptCoverageThreshold float64
	// PromptedOverlapThreshold drops a prompted mask when this fraction of it
	// overlaps the pre-existing mask union.
	PromptedOverlapThreshold float64
	// DropUnmatched removes detected plot parcels that barely overlap the
	// reference layer. Off by default; areas with sparse reference data
	// would lose genuine detections.
	DropUnmatched bool
}

// unmatchedOverlapThreshold keeps a detected plot when at least this
// fraction of it overlaps the reference union.
const unmatchedOverlapThreshold = 0.10

// DefaultOptions returns the tuned production thresholds.
func DefaultOptions() Options {
	return Options{
		InjectCoverageThreshold:  0.25,
		PromptCoverageThreshold:  0.30,
		PromptedOverlapThreshold: 0.60,
	}
}

// Filler plans oracle prompts and injects missed reference parcels.
type Filler struct {
	opts Options
	log  *logger.Logger
}

// New creates a Filler.
func New(opts Options, log *logger.Logger) *Filler {
	return &Filler{opts: opts, log: log}
}

// Coverage returns the fraction of ref covered by the union geometry.
// A nil or empty union means zero coverage; failed intersections count as
// uncovered rather than erroring.
func Coverage(ref, union *geos.Geom) float64 {
	if ref == nil || ref.Area() <= 0 {
		return 0
	}
	if union == nil || union.IsEmpty() {
		return 0
	}
	inter := ref.Intersection(union)
	if inter == nil {
		return 0
	}
	return inter.Area() / ref.Area()
}

func unionParcels(parcels []models.Parcel, log *logger.Logger) *geos.Geom {
	geoms := make([]*geos.Geom, 0, len(parcels))
	for _, p := range parcels {
		g, err := geometry.FromPolygon(p.Geometry)
		if err == nil {
			g, err = geometry.Repair(g)
		}
		if err != nil {
			log.Warn("excluding parcel from union", map[string]interface{}{"label": p.Label, "error": err.Error()})
			continue
		}
		geoms = append(geoms, g)
	}
	return unionAll(geoms)
}

func unionMasks(masks []models.RawMask, log *logger.Logger) *geos.Geom {
	geoms := make([]*geos.Geom, 0, len(masks))
	for _, m := range masks {
		g, err := geometry.FromPolygon(m.Geometry)
		if err == nil {
			g, err = geometry.Repair(g)
		}
		if err != nil {
			log.Warn("excluding mask from union", map[string]interface{}{"mask_id": m.ID, "error": err.Error()})
			continue
		}
		geoms = append(geoms, g)
	}
	return unionAll(geoms)
}

func unionRefs(refs []models.ReferenceParcel, log *logger.Logger) *geos.Geom {
	geoms := make([]*geos.Geom, 0, len(refs))
	for _, ref := range refs {
		g, err := geometry.FromPolygon(ref.Geometry)
		if err == nil {
			g, err = geometry.Repair(g)
		}
		if err != nil {
			log.Warn("excluding reference from union", map[string]interface{}{"name": ref.Name, "error": err.Error()})
			continue
		}
		geoms = append(geoms, g)
	}
	return unionAll(geoms)
}

func unionAll(geoms []*geos.Geom) *geos.Geom {
	var union *geos.Geom
	for _, g := range geoms {
		if union == nil {
			union = g
			continue
		}
		if u := union.Union(g); u != nil && !u.IsEmpty() {
			union = u
		}
	}
	return union
}

// PlanPrompts emits one targeted prompt set per reference parcel that the
// raw oracle masks barely cover. Each prompt carries the parcel centroid,
// up to four edge midpoints inside the image extent, and the bounding box
// clipped to the image. Reference parcels outside the image are skipped.
func (f *Filler) PlanPrompts(masks []models.RawMask, refs []models.ReferenceParcel, imageBBox [4]float64) []oracle.Prompt {
	if len(refs) == 0 {
		return nil
	}
	maskUnion := unionMasks(masks, f.log)

	prompts := make([]oracle.Prompt, 0)
	covered := 0
	for _, ref := range refs {
		g, err := geometry.FromPolygon(ref.Geometry)
		if err == nil {
			g, err = geometry.Repair(g)
		}
		if err != nil || g.Area() < 1e-10 {
			continue
		}

		b := g.Bounds()
		if b.MaxX < imageBBox[0] || b.MinX > imageBBox[2] ||
			b.MaxY < imageBBox[1] || b.MinY > imageBBox[3] {
			continue
		}

		if Coverage(g, maskUnion) >= f.opts.PromptCoverageThreshold {
			covered++
			continue
		}

		prompt := oracle.Prompt{ReferenceName: ref.Name}
		c := geometry.Centroid(g)
		if inBBox(c, imageBBox) {
			prompt.Points = append(prompt.Points, c)
		}
		for _, mid := range edgeMidpoints(g) {
			if inBBox(mid, imageBBox) {
				prompt.Points = append(prompt.Points, mid)
			}
		}

		box := [4]float64{
			maxf(b.MinX, imageBBox[0]),
			maxf(b.MinY, imageBBox[1]),
			minf(b.MaxX, imageBBox[2]),
			minf(b.MaxY, imageBBox[3]),
		}
		if box[2] > box[0] && box[3] > box[1] {
			prompt.Box = &box
		}

		if len(prompt.Points) > 0 || prompt.Box != nil {
			prompts = append(prompts, prompt)
		}
	}

	f.log.Info("planned targeted prompts", map[string]interface{}{
		"references": len(refs), "already_covered": covered, "prompts": len(prompts),
	})
	return prompts
}

// edgeMidpoints samples up to four edge midpoints around the exterior ring,
// spaced evenly so the hints spread along the whole boundary.
func edgeMidpoints(g *geos.Geom) [][2]float64 {
	poly, err := geometry.ToPolygon(g)
	if err != nil || len(poly.Coordinates) == 0 {
		return nil
	}
	ext := poly.Coordinates[0]
	nEdges := len(ext) - 1
	if nEdges < 1 {
		return nil
	}
	k := nEdges
	if k > maxEdgeMidpoints {
		k = maxEdgeMidpoints
	}

	mids := make([][2]float64, 0, k)
	for i := 0; i < k; i++ {
		idx := i * nEdges / k
		p0 := ext[idx]
		p1 := ext[(idx+1)%nEdges]
		mids = append(mids, [2]float64{(p0[0] + p1[0]) / 2, (p0[1] + p1[1]) / 2})
	}
	return mids
}

// FilterPromptedMasks drops prompted masks that mostly overlap the
// pre-existing mask union; those are sub-regions of parcels the automatic
// pass already found, not missed parcels. Masks whose geometry cannot be
// analysed are kept.
func (f *Filler) FilterPromptedMasks(existing, prompted []models.RawMask) []models.RawMask {
	if len(prompted) == 0 {
		return nil
	}
	existingUnion := unionMasks(existing, f.log)

	kept := make([]models.RawMask, 0, len(prompted))
	dropped := 0
	for _, m := range prompted {
		g, err := geometry.FromPolygon(m.Geometry)
		if err == nil {
			g, err = geometry.Repair(g)
		}
		if err != nil {
			kept = append(kept, m)
			continue
		}
		if g.Area() < 1e-10 {
			dropped++
			continue
		}
		if Coverage(g, existingUnion) >= f.opts.PromptedOverlapThreshold {
			dropped++
			continue
		}
		kept = append(kept, m)
	}

	if dropped > 0 {
		f.log.Info("filtered prompted masks", map[string]interface{}{
			"prompted": len(prompted), "dropped": dropped, "kept": len(kept),
		})
	}
	return kept
}

// InjectMissing appends reference parcels that the detected set barely
// covers, normalized through the standard pipeline and tagged as injected so
// operators know they were not independently detected.
func (f *Filler) InjectMissing(parcels []models.Parcel, refs []models.ReferenceParcel, normalizer *vectorize.Normalizer, img *imagery.Image, meta *imagery.TileMeta) []models.Parcel {
	if len(refs) == 0 {
		return parcels
	}
	detectedUnion := unionParcels(parcels, f.log)

	injected := 0
	out := parcels
	for _, ref := range refs {
		g, err := geometry.FromPolygon(ref.Geometry)
		if err == nil {
			g, err = geometry.Repair(g)
		}
		if err != nil || g.Area() < 1e-10 {
			continue
		}
		if Coverage(g, detectedUnion) >= f.opts.InjectCoverageThreshold {
			continue
		}

		parcel, ok := normalizer.NormalizeReference(ref, img, meta)
		if !ok {
			continue
		}
		out = append(out, parcel)
		injected++
	}

	if injected > 0 {
		f.log.Info("injected missed reference parcels", map[string]interface{}{
			"injected": injected, "references": len(refs),
		})
	}
	return out
}

// FilterUnmatched drops detected plot parcels whose overlap with the
// reference union falls below 10% of their own area. Roads, open areas and
// reference-injected parcels are always kept. A no-op when disabled or when
// no references exist.
func (f *Filler) FilterUnmatched(parcels []models.Parcel, refs []models.ReferenceParcel) []models.Parcel {
	if !f.opts.DropUnmatched || len(refs) == 0 {
		return parcels
	}
	refUnion := unionRefs(refs, f.log)
	if refUnion == nil || refUnion.IsEmpty() {
		return parcels
	}

	kept := make([]models.Parcel, 0, len(parcels))
	dropped := 0
	for _, p := range parcels {
		if p.Category != models.CategoryPlot || p.Source == models.SourceReferenceInjected {
			kept = append(kept, p)
			continue
		}
		g, err := geometry.FromPolygon(p.Geometry)
		if err == nil {
			g, err = geometry.Repair(g)
		}
		if err != nil {
			kept = append(kept, p)
			continue
		}
		if Coverage(g, refUnion) < unmatchedOverlapThreshold {
			dropped++
			continue
		}
		kept = append(kept, p)
	}

	if dropped > 0 {
		f.log.Info("dropped unmatched detected parcels", map[string]interface{}{
			"dropped": dropped, "kept": len(kept),
		})
	}
	return kept
}

func inBBox(p [2]float64, bbox [4]float64) bool {
	return p[0] >= bbox[0] && p[0] <= bbox[2] && p[1] >= bbox[1] && p[1] <= bbox[3]
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
