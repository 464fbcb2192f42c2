// Package consolidate deduplicates a batch of normalized parcels. Segmentation
// output routinely contains overlapping detections of the same plot, nested
// sub-detections and fragmented clusters; three sequential passes clean these
// up.
package consolidate

import (
	"math"
	"sort"

	"github.com/twpayne/go-geos"

	"github.com/avikothari/plotsight/internal/geometry"
	"github.com/avikothari/plotsight/internal/logger"
	"github.com/avikothari/plotsight/internal/models"
)

// Options tunes the consolidation passes.
type Options struct {
	// OverlapThreshold merges two parcels when intersection over the smaller
	// area exceeds it.
	OverlapThreshold float64
	// ContainmentThreshold drops a parcel when this fraction of it sits
	// inside a larger one.
	ContainmentThreshold float64
	// CentroidContainmentRatio is the relaxed containment threshold applied
	// when the smaller parcel's centroid lies inside the larger parcel.
	CentroidContainmentRatio float64
	// ClusterProximityDeg is the max gap between small fragments treated as
	// one cluster.
	ClusterProximityDeg float64
	// SmallAreaThresholdSqm separates cluster-fusion candidates from parcels
	// left untouched.
	SmallAreaThresholdSqm float64

	// Noise filter thresholds, applied to plots only.
	NoiseMinCompactness float64
	NoiseMinAreaSqm     float64
	NoiseMaxAspectRatio float64
}

// DefaultOptions returns the tuned production thresholds.
func DefaultOptions() Options {
	return Options{
		OverlapThreshold:         0.30,
		ContainmentThreshold:     0.35,
		CentroidContainmentRatio: 0.20,
		ClusterProximityDeg:      0.0003,
		SmallAreaThresholdSqm:    2000.0,
		NoiseMinCompactness:      0.08,
		NoiseMinAreaSqm:          80.0,
		NoiseMaxAspectRatio:      12.0,
	}
}

// Consolidator runs the merge, fusion and containment passes.
type Consolidator struct {
	opts Options
	log  *logger.Logger
}

// New creates a Consolidator.
func New(opts Options, log *logger.Logger) *Consolidator {
	return &Consolidator{opts: opts, log: log}
}

type entry struct {
	geom   *geos.Geom
	parcel models.Parcel
}

func (c *Consolidator) prepare(parcels []models.Parcel) []entry {
	entries := make([]entry, 0, len(parcels))
	for _, p := range parcels {
		g, err := geometry.FromPolygon(p.Geometry)
		if err == nil {
			g, err = geometry.Repair(g)
		}
		if err != nil {
			c.log.Warn("skipping parcel with bad geometry", map[string]interface{}{"label": p.Label, "error": err.Error()})
			continue
		}
		entries = append(entries, entry{geom: g, parcel: p})
	}
	return entries
}

// remeasure replaces a parcel's geometry and recomputes every derived
// measurement from it.
func remeasure(p models.Parcel, g *geos.Geom) (models.Parcel, bool) {
	poly, err := geometry.ToPolygon(g)
	if err != nil {
		return p, false
	}
	areaSqm := geometry.Area(g)
	p.Geometry = poly
	p.AreaSqm = round2(areaSqm)
	p.AreaSqft = round2(models.SqmToSqft(areaSqm))
	p.PerimeterM = round2(geometry.Perimeter(g))
	p.Centroid = geometry.Centroid(g)
	return p, true
}

// MergeOverlapping unions parcels that overlap significantly. Parcels are
// processed largest first; each absorbs every later parcel whose intersection
// over the smaller of the two areas exceeds the threshold. An absorbing
// parcel keeps growing within its own scan, so chains of overlaps collapse
// into one parcel in a single pass.
func (c *Consolidator) MergeOverlapping(parcels []models.Parcel) []models.Parcel {
	if len(parcels) < 2 {
		return parcels
	}

	entries := c.prepare(parcels)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].parcel.AreaSqm > entries[j].parcel.AreaSqm
	})

	used := make([]bool, len(entries))
	merged := make([]models.Parcel, 0, len(entries))

	for i := range entries {
		if used[i] {
			continue
		}
		current := entries[i].geom
		absorbed := 0

		for j := i + 1; j < len(entries); j++ {
			if used[j] {
				continue
			}
			other := entries[j].geom
			inter := current.Intersection(other)
			if inter == nil {
				continue
			}
			smaller := minf(current.Area(), other.Area())
			if smaller <= 0 {
				continue
			}
			if inter.Area()/smaller > c.opts.OverlapThreshold {
				if u := current.Union(other); u != nil && !u.IsEmpty() {
					current = u
					used[j] = true
					absorbed++
				}
			}
		}
		used[i] = true

		if absorbed == 0 {
			merged = append(merged, entries[i].parcel)
			continue
		}
		if p, ok := remeasure(entries[i].parcel, current); ok {
			merged = append(merged, p)
		} else {
			merged = append(merged, entries[i].parcel)
		}
	}

	if len(merged) != len(parcels) {
		c.log.Info("overlap merge", map[string]interface{}{
			"input": len(parcels), "output": len(merged),
		})
	}
	return merged
}

// FuseSmallClusters unions groups of small fragments that sit within the
// proximity distance of each other. Large parcels pass through untouched;
// singleton small parcels are kept as-is. A fused cluster inherits the first
// member's metadata with fresh measurements.
func (c *Consolidator) FuseSmallClusters(parcels []models.Parcel) []models.Parcel {
	if len(parcels) < 2 {
		return parcels
	}

	var large []models.Parcel
	var small []entry
	for _, p := range parcels {
		if p.AreaSqm >= c.opts.SmallAreaThresholdSqm {
			large = append(large, p)
			continue
		}
		g, err := geometry.FromPolygon(p.Geometry)
		if err == nil {
			g, err = geometry.Repair(g)
		}
		if err != nil {
			large = append(large, p)
			continue
		}
		small = append(small, entry{geom: g, parcel: p})
	}
	if len(small) < 2 {
		return parcels
	}

	ds := newDisjointSet(len(small))
	for i := range small {
		buffered := small[i].geom.Buffer(c.opts.ClusterProximityDeg, 8)
		if buffered == nil {
			continue
		}
		for j := i + 1; j < len(small); j++ {
			if buffered.Intersects(small[j].geom) {
				ds.union(i, j)
			}
		}
	}

	// Group members by root, preserving first-appearance order.
	order := make([]int, 0, len(small))
	clusters := map[int][]int{}
	for i := range small {
		root := ds.find(i)
		if _, ok := clusters[root]; !ok {
			order = append(order, root)
		}
		clusters[root] = append(clusters[root], i)
	}

	out := append([]models.Parcel{}, large...)
	fused := 0
	for _, root := range order {
		members := clusters[root]
		if len(members) == 1 {
			out = append(out, small[members[0]].parcel)
			continue
		}

		union := small[members[0]].geom
		for _, m := range members[1:] {
			if u := union.Union(small[m].geom); u != nil && !u.IsEmpty() {
				union = u
			}
		}
		part := geometry.LargestPolygon(union)
		if part == nil {
			// keep the biggest member when the union degenerates
			best := members[0]
			for _, m := range members[1:] {
				if small[m].geom.Area() > small[best].geom.Area() {
					best = m
				}
			}
			out = append(out, small[best].parcel)
			continue
		}
		if p, ok := remeasure(small[members[0]].parcel, part); ok {
			out = append(out, p)
			fused++
		} else {
			out = append(out, small[members[0]].parcel)
		}
	}

	if fused > 0 {
		c.log.Info("small-cluster fusion", map[string]interface{}{
			"small": len(small), "clusters_fused": fused,
		})
	}
	return out
}

// RemoveNested drops parcels that sit mostly inside a larger parcel. A parcel
// is dropped when the shared area covers the containment threshold of it, or
// the relaxed threshold when its centroid also lies inside the larger parcel.
// Dropped parcels take no further part in comparisons. Candidates are ordered
// by area with the input index as tiebreak so results are reproducible when
// areas tie.
func (c *Consolidator) RemoveNested(parcels []models.Parcel) []models.Parcel {
	if len(parcels) < 2 {
		return parcels
	}

	type item struct {
		geom *geos.Geom
		area float64
		idx  int
	}
	items := make([]item, 0, len(parcels))
	for idx, p := range parcels {
		g, err := geometry.FromPolygon(p.Geometry)
		if err == nil {
			g, err = geometry.Repair(g)
		}
		if err != nil {
			items = append(items, item{geom: nil, idx: idx})
			continue
		}
		items = append(items, item{geom: g, area: g.Area(), idx: idx})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].area != items[j].area {
			return items[i].area > items[j].area
		}
		return items[i].idx < items[j].idx
	})

	drop := map[int]bool{}
	for posJ := range items {
		smaller := items[posJ]
		if smaller.geom == nil || drop[smaller.idx] {
			continue
		}
		for posI := 0; posI < posJ; posI++ {
			larger := items[posI]
			if larger.geom == nil || drop[larger.idx] {
				continue
			}
			if !larger.geom.Intersects(smaller.geom) {
				continue
			}
			inter := larger.geom.Intersection(smaller.geom)
			if inter == nil {
				continue
			}
			ratio := inter.Area() / (smaller.area + 1e-12)
			if ratio >= c.opts.ContainmentThreshold {
				drop[smaller.idx] = true
				break
			}
			if centroid := smaller.geom.Centroid(); centroid != nil &&
				larger.geom.Contains(centroid) && ratio >= c.opts.CentroidContainmentRatio {
				drop[smaller.idx] = true
				break
			}
		}
	}

	kept := make([]models.Parcel, 0, len(parcels))
	for idx, p := range parcels {
		if !drop[idx] {
			kept = append(kept, p)
		}
	}
	if len(drop) > 0 {
		c.log.Info("containment filter", map[string]interface{}{
			"removed": len(drop), "retained": len(kept),
		})
	}
	return kept
}

// FilterNoise drops plot parcels with implausible shapes: slivers below the
// compactness floor, specks under the area floor, and extreme aspect ratios
// that are almost certainly road fragments. Roads and boundaries pass
// through.
func (c *Consolidator) FilterNoise(parcels []models.Parcel) []models.Parcel {
	kept := make([]models.Parcel, 0, len(parcels))
	dropped := 0
	for _, p := range parcels {
		if p.Category != models.CategoryPlot {
			kept = append(kept, p)
			continue
		}
		if p.AreaSqm < c.opts.NoiseMinAreaSqm {
			dropped++
			continue
		}

		g, err := geometry.FromPolygon(p.Geometry)
		if err == nil {
			g, err = geometry.Repair(g)
		}
		if err != nil {
			// unanalysable shapes are kept
			kept = append(kept, p)
			continue
		}
		if geometry.Compactness(g) < c.opts.NoiseMinCompactness {
			dropped++
			continue
		}
		if geometry.AspectRatio(g) > c.opts.NoiseMaxAspectRatio {
			dropped++
			continue
		}
		kept = append(kept, p)
	}

	if dropped > 0 {
		c.log.Info("noise filter", map[string]interface{}{
			"dropped": dropped, "retained": len(kept),
		})
	}
	return kept
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
