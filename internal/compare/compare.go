// Package compare matches detected parcels against authoritative reference
// polygons and classifies how each pair deviates.
package compare

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/twpayne/go-geos"

	"github.com/avikothari/plotsight/internal/geometry"
	"github.com/avikothari/plotsight/internal/logger"
	"github.com/avikothari/plotsight/internal/models"
)

// Ratio thresholds for classification. The caller-supplied tolerance does
// not shift these; it is carried for reporting only.
const (
	encroachmentCriticalRatio = 0.30
	encroachmentHighRatio     = 0.15
	boundaryMismatchRatio     = 0.05
	vacantRatio               = 0.70
	minMatchPct               = 50.0
)

// Metrics holds the geodetic area measurements a classification is derived
// from. Separated from geometry so boundary scenarios can be tested with
// literal numbers.
type Metrics struct {
	DetectedAreaSqm     float64
	BasemapAreaSqm      float64
	IntersectionAreaSqm float64
	EncroachmentAreaSqm float64
	VacantAreaSqm       float64
}

// MatchPercentage is the detected coverage of the reference polygon.
func (m Metrics) MatchPercentage() float64 {
	if m.BasemapAreaSqm <= 0 {
		return 0
	}
	return m.IntersectionAreaSqm / m.BasemapAreaSqm * 100
}

// deviationGeometry selects which discrepancy polygon a record carries.
type deviationGeometry int

const (
	geometryNone deviationGeometry = iota
	geometryEncroachment
	geometryVacant
	geometrySymmetricDifference
)

type classification struct {
	Type             models.DeviationType
	Severity         models.Severity
	DeviationAreaSqm float64
	Description      string
	Geometry         deviationGeometry
}

// classifyMetrics applies the ratio thresholds in order of severity.
// Encroachment beyond the reference boundary outranks vacancy, which
// outranks plain low overlap.
func classifyMetrics(m Metrics) classification {
	basemapArea := math.Max(m.BasemapAreaSqm, 1)
	encroachRatio := m.EncroachmentAreaSqm / basemapArea
	vacRatio := m.VacantAreaSqm / basemapArea
	matchPct := m.MatchPercentage()

	switch {
	case encroachRatio > encroachmentHighRatio:
		severity := models.SeverityHigh
		if encroachRatio > encroachmentCriticalRatio {
			severity = models.SeverityCritical
		}
		return classification{
			Type:             models.DeviationEncroachment,
			Severity:         severity,
			DeviationAreaSqm: round2(m.EncroachmentAreaSqm),
			Description: fmt.Sprintf(
				"Significant encroachment detected: %.1f sq.m (%.1f%%) extends beyond allotted boundary.",
				m.EncroachmentAreaSqm, encroachRatio*100),
			Geometry: geometryEncroachment,
		}

	case encroachRatio > boundaryMismatchRatio:
		return classification{
			Type:             models.DeviationBoundaryMismatch,
			Severity:         models.SeverityMedium,
			DeviationAreaSqm: round2(m.EncroachmentAreaSqm),
			Description: fmt.Sprintf(
				"Boundary mismatch: %.1f sq.m (%.1f%%) deviates from allotted boundary.",
				m.EncroachmentAreaSqm, encroachRatio*100),
			Geometry: geometryEncroachment,
		}

	case vacRatio > vacantRatio:
		return classification{
			Type:             models.DeviationVacant,
			Severity:         models.SeverityMedium,
			DeviationAreaSqm: round2(m.VacantAreaSqm),
			Description: fmt.Sprintf(
				"Plot appears largely vacant: %.1f sq.m (%.1f%%) of allotted area is unused.",
				m.VacantAreaSqm, vacRatio*100),
			Geometry: geometryVacant,
		}

	case matchPct < minMatchPct:
		return classification{
			Type:             models.DeviationUnauthorizedDevelopment,
			Severity:         models.SeverityHigh,
			DeviationAreaSqm: round2(m.EncroachmentAreaSqm),
			Description: fmt.Sprintf(
				"Low overlap with basemap (%.1f%%). Possible unauthorized development.", matchPct),
			Geometry: geometrySymmetricDifference,
		}

	default:
		return classification{
			Type:     models.DeviationCompliant,
			Severity: models.SeverityLow,
			Description: fmt.Sprintf(
				"Plot is compliant. %.1f%% overlap with allotted boundary.", matchPct),
		}
	}
}

// ClassifyDeviation compares one detected polygon against one reference
// polygon. Geometry failures produce a degraded ERROR record instead of an
// error so one bad pair never aborts a batch.
func ClassifyDeviation(detected, basemap *geos.Geom) models.DeviationRecord {
	detected = geometry.LargestPolygon(makeValid(detected))
	basemap = geometry.LargestPolygon(makeValid(basemap))
	if detected == nil || basemap == nil {
		return errorRecord("comparison failed: no polygonal geometry")
	}

	intersection := detected.Intersection(basemap)
	encroachment := detected.Difference(basemap)
	vacant := basemap.Difference(detected)
	if intersection == nil || encroachment == nil || vacant == nil {
		return errorRecord("comparison failed: overlay operation returned nothing")
	}

	m := Metrics{
		DetectedAreaSqm:     geometry.Area(detected),
		BasemapAreaSqm:      geometry.Area(basemap),
		IntersectionAreaSqm: geometry.Area(intersection),
		EncroachmentAreaSqm: geometry.Area(encroachment),
		VacantAreaSqm:       geometry.Area(vacant),
	}
	c := classifyMetrics(m)

	rec := models.DeviationRecord{
		DeviationType:    c.Type,
		Severity:         c.Severity,
		DeviationAreaSqm: c.DeviationAreaSqm,
		MatchPercentage:  round2(m.MatchPercentage()),
		Description:      c.Description,
		Details: models.DeviationDetails{
			DetectedAreaSqm:     round2(m.DetectedAreaSqm),
			BasemapAreaSqm:      round2(m.BasemapAreaSqm),
			IntersectionAreaSqm: round2(m.IntersectionAreaSqm),
			EncroachmentAreaSqm: round2(m.EncroachmentAreaSqm),
			VacantAreaSqm:       round2(m.VacantAreaSqm),
			MatchPercentage:     round2(m.MatchPercentage()),
		},
	}

	switch c.Geometry {
	case geometryEncroachment:
		rec.DeviationGeometry = toGeoJSON(encroachment)
	case geometryVacant:
		rec.DeviationGeometry = toGeoJSON(vacant)
	case geometrySymmetricDifference:
		rec.DeviationGeometry = toGeoJSON(detected.SymDifference(basemap))
	}
	return rec
}

func makeValid(g *geos.Geom) *geos.Geom {
	if g == nil {
		return nil
	}
	if g.IsValid() {
		return g
	}
	return g.MakeValidWithParams(geos.MakeValidLinework, geos.MakeValidDiscardCollapsed)
}

func toGeoJSON(g *geos.Geom) json.RawMessage {
	if g == nil || g.IsEmpty() {
		return nil
	}
	return json.RawMessage(g.ToGeoJSON(-1))
}

func errorRecord(description string) models.DeviationRecord {
	return models.DeviationRecord{
		DeviationType: models.DeviationError,
		Severity:      models.SeverityLow,
		Description:   description,
	}
}

// Comparer runs whole-batch comparisons.
type Comparer struct {
	log *logger.Logger
}

// New creates a Comparer.
func New(log *logger.Logger) *Comparer {
	return &Comparer{log: log}
}

// Compare matches every detected parcel to its best-overlapping reference
// parcel and classifies each match. Matching is greedy in input order: each
// detected parcel claims the unclaimed reference with the largest geodetic
// intersection area, and a claimed reference is off the table for later
// parcels. Unmatched entries on either side are reported, not dropped.
func (c *Comparer) Compare(detected []models.Parcel, refs []models.ReferenceParcel) models.ComparisonReport {
	report := models.ComparisonReport{
		Summary: models.ComparisonSummary{
			TotalDetected: len(detected),
			TotalBasemap:  len(refs),
		},
		Deviations:        []models.DeviationRecord{},
		UnmatchedDetected: []models.UnmatchedFeature{},
		UnmatchedBasemap:  []models.UnmatchedFeature{},
	}

	type prepared struct {
		geom   *geos.Geom
		parcel models.Parcel
	}
	detGeoms := make([]prepared, 0, len(detected))
	for _, p := range detected {
		g, err := geometry.FromPolygon(p.Geometry)
		if err == nil {
			g, err = geometry.Repair(g)
		}
		if err != nil {
			c.log.Warn("invalid detected geometry", map[string]interface{}{"label": p.Label, "error": err.Error()})
			continue
		}
		detGeoms = append(detGeoms, prepared{geom: g, parcel: p})
	}

	type preparedRef struct {
		geom *geos.Geom
		ref  models.ReferenceParcel
	}
	refGeoms := make([]preparedRef, 0, len(refs))
	for _, r := range refs {
		g, err := geometry.FromPolygon(r.Geometry)
		if err == nil {
			g, err = geometry.Repair(g)
		}
		if err != nil {
			c.log.Warn("invalid reference geometry", map[string]interface{}{"name": r.Name, "error": err.Error()})
			continue
		}
		refGeoms = append(refGeoms, preparedRef{geom: g, ref: r})
	}

	claimed := make([]bool, len(refGeoms))
	for _, det := range detGeoms {
		bestIdx := -1
		bestOverlap := 0.0
		for i, ref := range refGeoms {
			if claimed[i] {
				continue
			}
			if !det.geom.Intersects(ref.geom) {
				continue
			}
			inter := det.geom.Intersection(ref.geom)
			if inter == nil {
				continue
			}
			overlap := geometry.Area(inter)
			if overlap > bestOverlap {
				bestOverlap = overlap
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			report.UnmatchedDetected = append(report.UnmatchedDetected, models.UnmatchedFeature{
				Name:     det.parcel.Label,
				Geometry: det.parcel.Geometry,
				AreaSqm:  round2(geometry.Area(det.geom)),
			})
			report.Summary.UnmatchedDetected++
			continue
		}

		claimed[bestIdx] = true
		rec := ClassifyDeviation(det.geom, refGeoms[bestIdx].geom)
		rec.PlotLabel = det.parcel.Label
		rec.BasemapName = refGeoms[bestIdx].ref.Name
		report.Deviations = append(report.Deviations, rec)
		report.Summary.Tally(rec.DeviationType)
	}

	for i, ref := range refGeoms {
		if claimed[i] {
			continue
		}
		report.UnmatchedBasemap = append(report.UnmatchedBasemap, models.UnmatchedFeature{
			Name:     ref.ref.Name,
			Geometry: ref.ref.Geometry,
			AreaSqm:  round2(geometry.Area(ref.geom)),
		})
		report.Summary.UnmatchedBasemap++
	}

	c.log.Info("comparison complete", map[string]interface{}{"summary": report.Summary.String()})
	return report
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
