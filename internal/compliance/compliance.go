// Package compliance checks detected parcels against the two regulatory
// rules: minimum vegetative cover and the construction-start deadline tied
// to allotment dates.
package compliance

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/avikothari/plotsight/internal/imagery"
	"github.com/avikothari/plotsight/internal/logger"
	"github.com/avikothari/plotsight/internal/models"
)

// Options holds the regulatory thresholds the checks run against.
type Options struct {
	// ExGThreshold marks a pixel as vegetation when its excess green
	// index exceeds it.
	ExGThreshold float64
	// GreenCoverMinPct is the minimum vegetation percentage a parcel
	// needs to pass the green cover check.
	GreenCoverMinPct float64
	// DeadlineYears is the period after allotment within which
	// construction must begin.
	DeadlineYears int
}

// DefaultOptions returns the statutory defaults.
func DefaultOptions() Options {
	return Options{
		ExGThreshold:     imagery.DefaultExGThreshold,
		GreenCoverMinPct: models.GreenCoverThreshold,
		DeadlineYears:    models.ConstructionDeadlineYears,
	}
}

// Checker runs compliance checks over a parcel batch.
type Checker struct {
	opts Options
	log  *logger.Logger
	now  func() time.Time
}

// NewChecker creates a Checker.
func NewChecker(opts Options, log *logger.Logger) *Checker {
	return &Checker{opts: opts, log: log, now: time.Now}
}

// GreenCoverPct computes the vegetation percentage inside a parcel's
// bounding box using the excess green index. Returns nil when no usable
// crop can be taken, leaving the check unevaluated.
func GreenCoverPct(parcel models.Parcel, img *imagery.Image, meta *imagery.TileMeta, exgThreshold float64) *float64 {
	if img == nil || meta == nil || parcel.Geometry.IsEmpty() {
		return nil
	}
	crop := img.Crop(*meta, parcel.Geometry.Bounds())
	if crop == nil {
		return nil
	}
	pct := round2(crop.ExcessGreenFraction(exgThreshold) * 100)
	return &pct
}

// MatchAllotment finds the allotment record for a detected parcel label.
// Exact and substring matches on the record name come first; failing that,
// the label's trailing token (with surrounding parentheses stripped) is
// matched against record name suffixes, so "Plot 5" still finds "P-5".
func MatchAllotment(plotLabel string, records []models.AllotmentRecord) *models.AllotmentRecord {
	labelLower := strings.ToLower(strings.TrimSpace(plotLabel))

	for i := range records {
		recName := strings.ToLower(strings.TrimSpace(records[i].PlotName))
		if recName == "" {
			continue
		}
		if recName == labelLower ||
			strings.Contains(labelLower, recName) ||
			strings.Contains(recName, labelLower) {
			return &records[i]
		}
	}

	parts := strings.Fields(plotLabel)
	if len(parts) >= 2 {
		numPart := strings.Trim(parts[len(parts)-1], "()")
		for i := range records {
			recName := strings.TrimSpace(records[i].PlotName)
			if recName == numPart || strings.HasSuffix(recName, numPart) {
				return &records[i]
			}
		}
	}
	return nil
}

// CheckParcel evaluates both compliance rules for one parcel. Sub-checks
// that cannot be evaluated stay nil and are excluded from the overall
// verdict; when neither ran the verdict itself is nil.
func (c *Checker) CheckParcel(parcel models.Parcel, records []models.AllotmentRecord, img *imagery.Image, meta *imagery.TileMeta) models.ComplianceRecord {
	now := c.now()
	rec := models.ComplianceRecord{
		PlotLabel:           parcel.Label,
		GreenCoverThreshold: c.opts.GreenCoverMinPct,
		Violations:          []string{},
		DataSource:          models.DataSourceSynthesized,
	}

	if pct := GreenCoverPct(parcel, img, meta, c.opts.ExGThreshold); pct != nil {
		rec.GreenCoverPct = pct
		compliant := *pct >= c.opts.GreenCoverMinPct
		rec.IsGreenCompliant = &compliant
		if !compliant {
			rec.Violations = append(rec.Violations, fmt.Sprintf(
				"Green cover %.1f%% is below minimum %.1f%%",
				*pct, c.opts.GreenCoverMinPct))
		}
	}

	if allotment := MatchAllotment(parcel.Label, records); allotment != nil {
		rec.MatchedPlotName = allotment.PlotName
		rec.AllotmentDate = allotment.AllotmentDate
		rec.ConstructionDeadline = allotment.ConstructionDeadline
		rec.DataSource = allotment.DataSource

		started := constructionStartedFromStatus(allotment.Status)
		if started == nil {
			started = allotment.ConstructionStarted
		}
		rec.ConstructionStarted = started

		if deadline := allotment.ConstructionDeadline; deadline != nil {
			hasStarted := started != nil && *started
			switch {
			case now.After(*deadline) && !hasStarted:
				rec.IsConstructionCompliant = boolPtr(false)
				daysOverdue := int(now.Sub(*deadline).Hours() / 24)
				allotted := "N/A"
				if allotment.AllotmentDate != nil {
					allotted = allotment.AllotmentDate.Format("02 Jan 2006")
				}
				rec.Violations = append(rec.Violations, fmt.Sprintf(
					"Construction not started; %d days past %d-year deadline (allotted %s)",
					daysOverdue, c.opts.DeadlineYears, allotted))
			case hasStarted:
				rec.IsConstructionCompliant = boolPtr(true)
			default:
				// within the grace period regardless of start status
				rec.IsConstructionCompliant = boolPtr(true)
			}
		}
	}

	rec.IsCompliant = combine(rec.IsGreenCompliant, rec.IsConstructionCompliant)
	return rec
}

// combine ANDs the evaluated sub-checks, nil when none were evaluated.
func combine(checks ...*bool) *bool {
	var result *bool
	for _, c := range checks {
		if c == nil {
			continue
		}
		if result == nil {
			result = boolPtr(true)
		}
		if !*c {
			result = boolPtr(false)
		}
	}
	return result
}

// Run checks every plot parcel in the batch and aggregates a report. Roads
// and boundaries are skipped. A run fully replaces any previous results for
// the same area.
func (c *Checker) Run(areaName string, parcels []models.Parcel, records []models.AllotmentRecord, img *imagery.Image, meta *imagery.TileMeta) models.ComplianceReport {
	results := make([]models.ComplianceRecord, 0, len(parcels))
	for _, p := range parcels {
		if p.Category != models.CategoryPlot {
			continue
		}
		results = append(results, c.CheckParcel(p, records, img, meta))
	}

	report := models.ComplianceReport{
		AreaName: areaName,
		Results:  results,
		Summary:  models.Summarize(results),
	}
	c.log.Info("compliance run complete", map[string]interface{}{
		"area":            areaName,
		"parcels":         report.Summary.TotalParcels,
		"fully_compliant": report.Summary.FullyCompliant,
		"non_compliant":   report.Summary.NonCompliant,
	})
	return report
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
