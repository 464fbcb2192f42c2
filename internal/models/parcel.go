package models

import (
	"encoding/json"
	"fmt"
)

// Category classifies a detected parcel feature.
type Category string

const (
	CategoryPlot     Category = "plot"
	CategoryRoad     Category = "road"
	CategoryBoundary Category = "boundary"
)

// Color returns the display color for a category. The mapping is fixed;
// unknown categories fall back to the plot color.
func (c Category) Color() string {
	switch c {
	case CategoryRoad:
		return "#64748b"
	case CategoryBoundary:
		return "#f97316"
	default:
		return "#ef4444"
	}
}

// Label returns the human-readable label prefix for a category.
func (c Category) Label() string {
	switch c {
	case CategoryRoad:
		return "Road"
	case CategoryBoundary:
		return "Boundary"
	default:
		return "Plot"
	}
}

// Source records how a parcel entered the detected set.
type Source string

const (
	// SourceDetected marks parcels produced by the segmentation oracle.
	SourceDetected Source = "detected"
	// SourceReferenceInjected marks parcels copied in from the authoritative
	// reference layer because detection missed them entirely.
	SourceReferenceInjected Source = "reference_injected"
)

// Parcel is the central entity of the pipeline: one classified, measured
// land-parcel polygon. Parcels are immutable value objects; pipeline passes
// that change geometry produce replacement Parcels with freshly computed
// measurements rather than mutating in place.
type Parcel struct {
	Label      string     `json:"label"`
	Category   Category   `json:"category"`
	Geometry   Polygon    `json:"geometry"`
	AreaSqm    float64    `json:"area_sqm"`
	AreaSqft   float64    `json:"area_sqft"`
	PerimeterM float64    `json:"perimeter_m"`
	Color      string     `json:"color"`
	Confidence *float64   `json:"confidence,omitempty"`
	Source     Source     `json:"source"`
	Centroid   [2]float64 `json:"centroid"`
}

// SqmToSqft converts square meters to square feet.
func SqmToSqft(sqm float64) float64 {
	return sqm * 10.7639
}

// RawMask is one polygon outline produced by the segmentation oracle,
// before any normalization.
type RawMask struct {
	ID         int      `json:"id"`
	Geometry   Polygon  `json:"geometry"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// DeviationType classifies how a detected parcel deviates from its
// authoritative reference polygon.
type DeviationType string

const (
	DeviationCompliant               DeviationType = "COMPLIANT"
	DeviationEncroachment            DeviationType = "ENCROACHMENT"
	DeviationBoundaryMismatch        DeviationType = "BOUNDARY_MISMATCH"
	DeviationVacant                  DeviationType = "VACANT"
	DeviationUnauthorizedDevelopment DeviationType = "UNAUTHORIZED_DEVELOPMENT"
	DeviationError                   DeviationType = "ERROR"
)

// Severity grades a deviation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// DeviationDetails carries the raw area measurements behind a classification.
type DeviationDetails struct {
	DetectedAreaSqm     float64 `json:"detected_area_sqm"`
	BasemapAreaSqm      float64 `json:"basemap_area_sqm"`
	IntersectionAreaSqm float64 `json:"intersection_area_sqm"`
	EncroachmentAreaSqm float64 `json:"encroachment_area_sqm"`
	VacantAreaSqm       float64 `json:"vacant_area_sqm"`
	MatchPercentage     float64 `json:"match_percentage"`
}

// DeviationRecord is the outcome of comparing one detected parcel against
// its best-matching reference parcel. A comparison run fully replaces the
// previous run's records for the same parcel set.
type DeviationRecord struct {
	PlotLabel         string           `json:"plot_label"`
	BasemapName       string           `json:"basemap_name,omitempty"`
	DeviationType     DeviationType    `json:"deviation_type"`
	Severity          Severity         `json:"severity"`
	DeviationAreaSqm  float64          `json:"deviation_area_sqm"`
	MatchPercentage   float64          `json:"match_percentage"`
	DeviationGeometry json.RawMessage  `json:"deviation_geometry,omitempty"`
	Description       string           `json:"description,omitempty"`
	Details           DeviationDetails `json:"details"`
}

// UnmatchedFeature describes a detected parcel or reference polygon that
// found no spatial counterpart during matching. Surfaced explicitly rather
// than silently dropped.
type UnmatchedFeature struct {
	Name     string  `json:"name"`
	Geometry Polygon `json:"geometry"`
	AreaSqm  float64 `json:"area_sqm"`
}

// ComparisonSummary tallies deviation outcomes across one comparison run.
type ComparisonSummary struct {
	TotalDetected     int `json:"total_detected"`
	TotalBasemap      int `json:"total_basemap"`
	Compliant         int `json:"compliant"`
	Encroachment      int `json:"encroachment"`
	BoundaryMismatch  int `json:"boundary_mismatch"`
	Vacant            int `json:"vacant"`
	Unauthorized      int `json:"unauthorized"`
	UnmatchedDetected int `json:"unmatched_detected"`
	UnmatchedBasemap  int `json:"unmatched_basemap"`
}

// ComparisonReport is the full output of one comparison run.
type ComparisonReport struct {
	Summary           ComparisonSummary  `json:"summary"`
	Deviations        []DeviationRecord  `json:"deviations"`
	UnmatchedDetected []UnmatchedFeature `json:"unmatched_detected"`
	UnmatchedBasemap  []UnmatchedFeature `json:"unmatched_basemap"`
}

// Tally increments the summary counter for a deviation type.
func (s *ComparisonSummary) Tally(t DeviationType) {
	switch t {
	case DeviationCompliant:
		s.Compliant++
	case DeviationEncroachment:
		s.Encroachment++
	case DeviationBoundaryMismatch:
		s.BoundaryMismatch++
	case DeviationVacant:
		s.Vacant++
	case DeviationUnauthorizedDevelopment:
		s.Unauthorized++
	}
}

// String implements fmt.Stringer for log output.
func (s ComparisonSummary) String() string {
	return fmt.Sprintf("compliant=%d encroachment=%d mismatch=%d vacant=%d unauthorized=%d unmatched=%d/%d",
		s.Compliant, s.Encroachment, s.BoundaryMismatch, s.Vacant, s.Unauthorized,
		s.UnmatchedDetected, s.UnmatchedBasemap)
}
