package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avikothari/plotsight/internal/database"
	"github.com/avikothari/plotsight/internal/models"
	"github.com/jackc/pgx/v5"
)

// ResultRepository defines the interface for persisting pipeline outputs.
// Every Replace* call fully replaces the prior run's rows for the area;
// reruns never merge into stale results.
type ResultRepository interface {
	// ReplaceParcels replaces the detected parcel set for an area.
	ReplaceParcels(ctx context.Context, areaName string, parcels []models.Parcel) error

	// ListParcels returns the stored parcel set for an area.
	// Returns an empty slice if none are stored (not an error).
	ListParcels(ctx context.Context, areaName string) ([]models.Parcel, error)

	// ReplaceDeviations replaces the deviation records for an area.
	ReplaceDeviations(ctx context.Context, areaName string, report models.ComparisonReport) error

	// ReplaceCompliance replaces the compliance records for an area.
	ReplaceCompliance(ctx context.Context, areaName string, report models.ComplianceReport) error
}

// resultRepository is the concrete implementation of ResultRepository.
type resultRepository struct {
	db *database.Database
}

// NewResultRepository creates a new instance of ResultRepository.
func NewResultRepository(db *database.Database) ResultRepository {
	return &resultRepository{
		db: db,
	}
}

// ReplaceParcels deletes the area's stored parcels and inserts the new batch
// in one transaction so readers never observe a partial run.
func (r *resultRepository) ReplaceParcels(ctx context.Context, areaName string, parcels []models.Parcel) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM detected_parcels WHERE area_name = $1`, areaName); err != nil {
		return fmt.Errorf("failed to clear parcels for area %s: %w", areaName, err)
	}

	query := `
		INSERT INTO detected_parcels (
			area_name, label, category, geometry, area_sqm, area_sqft,
			perimeter_m, color, confidence, source, centroid_lon, centroid_lat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, p := range parcels {
		geomJSON, err := p.Geometry.Value()
		if err != nil {
			return fmt.Errorf("failed to encode geometry for parcel %s: %w", p.Label, err)
		}
		_, err = tx.Exec(ctx, query,
			areaName, p.Label, string(p.Category), geomJSON, p.AreaSqm, p.AreaSqft,
			p.PerimeterM, p.Color, p.Confidence, string(p.Source), p.Centroid[0], p.Centroid[1],
		)
		if err != nil {
			return fmt.Errorf("failed to insert parcel %s: %w", p.Label, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit parcel batch: %w", err)
	}
	return nil
}

// ListParcels returns the stored parcels for an area ordered by label.
func (r *resultRepository) ListParcels(ctx context.Context, areaName string) ([]models.Parcel, error) {
	query := `
		SELECT
			label, category, geometry, area_sqm, area_sqft,
			perimeter_m, color, confidence, source, centroid_lon, centroid_lat
		FROM detected_parcels
		WHERE area_name = $1
		ORDER BY label
	`

	rows, err := r.db.Pool.Query(ctx, query, areaName)
	if err != nil {
		return nil, fmt.Errorf("failed to query parcels for area %s: %w", areaName, err)
	}
	defer rows.Close()

	parcels := []models.Parcel{}
	for rows.Next() {
		var p models.Parcel
		var geomJSON []byte
		var category, source string

		err := rows.Scan(
			&p.Label, &category, &geomJSON, &p.AreaSqm, &p.AreaSqft,
			&p.PerimeterM, &p.Color, &p.Confidence, &source, &p.Centroid[0], &p.Centroid[1],
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parcel row: %w", err)
		}
		if err := p.Geometry.Scan(geomJSON); err != nil {
			return nil, fmt.Errorf("failed to parse geometry for parcel %s: %w", p.Label, err)
		}
		p.Category = models.Category(category)
		p.Source = models.Source(source)
		parcels = append(parcels, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parcel rows: %w", err)
	}
	return parcels, nil
}

// ReplaceDeviations replaces the area's deviation records with one run's
// output, unmatched entries included.
func (r *resultRepository) ReplaceDeviations(ctx context.Context, areaName string, report models.ComparisonReport) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM deviation_records WHERE area_name = $1`, areaName); err != nil {
		return fmt.Errorf("failed to clear deviations for area %s: %w", areaName, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM unmatched_features WHERE area_name = $1`, areaName); err != nil {
		return fmt.Errorf("failed to clear unmatched features for area %s: %w", areaName, err)
	}

	devQuery := `
		INSERT INTO deviation_records (
			area_name, plot_label, basemap_name, deviation_type, severity,
			deviation_area_sqm, match_percentage, deviation_geometry, description, details
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, d := range report.Deviations {
		details, err := json.Marshal(d.Details)
		if err != nil {
			return fmt.Errorf("failed to encode details for %s: %w", d.PlotLabel, err)
		}
		var geom interface{}
		if len(d.DeviationGeometry) > 0 {
			geom = string(d.DeviationGeometry)
		}
		_, err = tx.Exec(ctx, devQuery,
			areaName, d.PlotLabel, d.BasemapName, string(d.DeviationType), string(d.Severity),
			d.DeviationAreaSqm, d.MatchPercentage, geom, d.Description, details,
		)
		if err != nil {
			return fmt.Errorf("failed to insert deviation for %s: %w", d.PlotLabel, err)
		}
	}

	unmatchedQuery := `
		INSERT INTO unmatched_features (area_name, side, name, geometry, area_sqm)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, u := range report.UnmatchedDetected {
		if err := insertUnmatched(ctx, tx, unmatchedQuery, areaName, "detected", u); err != nil {
			return err
		}
	}
	for _, u := range report.UnmatchedBasemap {
		if err := insertUnmatched(ctx, tx, unmatchedQuery, areaName, "basemap", u); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit deviation batch: %w", err)
	}
	return nil
}

func insertUnmatched(ctx context.Context, tx pgx.Tx, query, areaName, side string, u models.UnmatchedFeature) error {
	geomJSON, err := u.Geometry.Value()
	if err != nil {
		return fmt.Errorf("failed to encode geometry for unmatched %s: %w", u.Name, err)
	}
	if _, err := tx.Exec(ctx, query, areaName, side, u.Name, geomJSON, u.AreaSqm); err != nil {
		return fmt.Errorf("failed to insert unmatched %s %s: %w", side, u.Name, err)
	}
	return nil
}

// ReplaceCompliance replaces the area's compliance records.
func (r *resultRepository) ReplaceCompliance(ctx context.Context, areaName string, report models.ComplianceReport) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM compliance_records WHERE area_name = $1`, areaName); err != nil {
		return fmt.Errorf("failed to clear compliance for area %s: %w", areaName, err)
	}

	query := `
		INSERT INTO compliance_records (
			area_name, plot_label, matched_plot_name, green_cover_pct,
			green_cover_threshold, is_green_compliant, allotment_date,
			construction_deadline, construction_started, is_construction_compliant,
			is_compliant, violations, data_source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	for _, rec := range report.Results {
		violations, err := json.Marshal(rec.Violations)
		if err != nil {
			return fmt.Errorf("failed to encode violations for %s: %w", rec.PlotLabel, err)
		}
		_, err = tx.Exec(ctx, query,
			areaName, rec.PlotLabel, rec.MatchedPlotName, rec.GreenCoverPct,
			rec.GreenCoverThreshold, rec.IsGreenCompliant, rec.AllotmentDate,
			rec.ConstructionDeadline, rec.ConstructionStarted, rec.IsConstructionCompliant,
			rec.IsCompliant, violations, string(rec.DataSource),
		)
		if err != nil {
			return fmt.Errorf("failed to insert compliance for %s: %w", rec.PlotLabel, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit compliance batch: %w", err)
	}
	return nil
}
