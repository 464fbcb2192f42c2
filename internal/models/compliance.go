package models

import "time"

// DataSource records whether an allotment record came from the cadastral
// authority or was synthesized deterministically for demo coverage.
type DataSource string

const (
	DataSourceAuthoritative DataSource = "authoritative"
	DataSourceSynthesized   DataSource = "synthesized"
)

// GreenCoverThreshold is the default minimum vegetation percentage for a
// parcel to pass the green cover check.
const GreenCoverThreshold = 20.0

// ConstructionDeadlineYears is the default grace period after allotment
// within which construction must begin.
const ConstructionDeadlineYears = 2

// AllotmentRecord holds the allotment facts for one named plot. Records with
// DataSourceSynthesized carry plausible generated values seeded from the
// area and plot names so re-runs are reproducible.
type AllotmentRecord struct {
	AreaName             string     `json:"area_name"`
	PlotName             string     `json:"plot_name"`
	Allottee             string     `json:"allottee,omitempty"`
	AllotmentDate        *time.Time `json:"allotment_date,omitempty"`
	ConstructionDeadline *time.Time `json:"construction_deadline,omitempty"`
	PlotAreaSqm          *float64   `json:"plot_area_sqm,omitempty"`
	Category             string     `json:"category,omitempty"`
	Status               string     `json:"status,omitempty"`
	ConstructionStarted  *bool      `json:"construction_started,omitempty"`
	DataSource           DataSource `json:"data_source"`
}

// ComplianceRecord is the outcome of all compliance checks for one parcel.
// Each sub-check is tri-state: nil means the check could not be evaluated.
// IsCompliant is the AND of the evaluated sub-checks, nil if none ran.
type ComplianceRecord struct {
	PlotLabel               string     `json:"plot_label"`
	MatchedPlotName         string     `json:"matched_plot_name,omitempty"`
	GreenCoverPct           *float64   `json:"green_cover_pct,omitempty"`
	GreenCoverThreshold     float64    `json:"green_cover_threshold"`
	IsGreenCompliant        *bool      `json:"is_green_compliant,omitempty"`
	AllotmentDate           *time.Time `json:"allotment_date,omitempty"`
	ConstructionDeadline    *time.Time `json:"construction_deadline,omitempty"`
	ConstructionStarted     *bool      `json:"construction_started,omitempty"`
	IsConstructionCompliant *bool      `json:"is_construction_compliant,omitempty"`
	IsCompliant             *bool      `json:"is_compliant,omitempty"`
	Violations              []string   `json:"violations"`
	DataSource              DataSource `json:"data_source"`
}

// CheckTally counts outcomes for one category of compliance check.
type CheckTally struct {
	Checked      int `json:"checked"`
	Compliant    int `json:"compliant"`
	NonCompliant int `json:"non_compliant"`
}

// ComplianceSummary aggregates per-parcel results for reporting.
type ComplianceSummary struct {
	TotalParcels         int        `json:"total_parcels"`
	GreenCover           CheckTally `json:"green_cover"`
	ConstructionTimeline CheckTally `json:"construction_timeline"`
	FullyCompliant       int        `json:"fully_compliant"`
	NonCompliant         int        `json:"non_compliant"`
	Unchecked            int        `json:"unchecked"`
	AuthoritativeRecords int        `json:"authoritative_records"`
	SynthesizedRecords   int        `json:"synthesized_records"`
}

// ComplianceReport is the full output of a compliance run over an area.
type ComplianceReport struct {
	AreaName string             `json:"area_name"`
	Results  []ComplianceRecord `json:"results"`
	Summary  ComplianceSummary  `json:"summary"`
}

// Summarize recomputes the summary from a result set.
func Summarize(results []ComplianceRecord) ComplianceSummary {
	s := ComplianceSummary{TotalParcels: len(results)}
	for _, r := range results {
		tallyBool(&s.GreenCover, r.IsGreenCompliant)
		tallyBool(&s.ConstructionTimeline, r.IsConstructionCompliant)

		switch {
		case r.IsCompliant == nil:
			s.Unchecked++
		case *r.IsCompliant:
			s.FullyCompliant++
		default:
			s.NonCompliant++
		}

		if r.DataSource == DataSourceAuthoritative {
			s.AuthoritativeRecords++
		} else {
			s.SynthesizedRecords++
		}
	}
	return s
}

func tallyBool(t *CheckTally, v *bool) {
	if v == nil {
		return
	}
	t.Checked++
	if *v {
		t.Compliant++
	} else {
		t.NonCompliant++
	}
}
