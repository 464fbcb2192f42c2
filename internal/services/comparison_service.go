package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/avikothari/plotsight/internal/compare"
	"github.com/avikothari/plotsight/internal/logger"
	"github.com/avikothari/plotsight/internal/models"
	"github.com/avikothari/plotsight/internal/repository"
)

var (
	ErrNoReferenceParcels = errors.New("no reference parcels to compare against")
	ErrNoDetectedParcels  = errors.New("no detected parcels to compare")
)

// ComparisonService defines the interface for detected-vs-basemap comparison.
type ComparisonService interface {
	// CompareParcels matches detected parcels against the reference basemap,
	// classifies each pair's deviation, and stores the report for the area.
	// Returns ErrNoDetectedParcels or ErrNoReferenceParcels when either side
	// is empty.
	CompareParcels(ctx context.Context, areaName string, detected []models.Parcel, refs []models.ReferenceParcel) (*models.ComparisonReport, error)
}

// comparisonService is the concrete implementation of ComparisonService.
type comparisonService struct {
	repo repository.ResultRepository
	log  *logger.Logger
}

// NewComparisonService creates a new instance of ComparisonService.
func NewComparisonService(repo repository.ResultRepository, log *logger.Logger) ComparisonService {
	return &comparisonService{
		repo: repo,
		log:  log,
	}
}

// CompareParcels runs greedy matching and deviation classification, then
// persists the full report.
func (s *comparisonService) CompareParcels(ctx context.Context, areaName string, detected []models.Parcel, refs []models.ReferenceParcel) (*models.ComparisonReport, error) {
	if areaName == "" {
		return nil, ErrAreaNameRequired
	}
	if len(detected) == 0 {
		return nil, ErrNoDetectedParcels
	}
	if len(refs) == 0 {
		return nil, ErrNoReferenceParcels
	}

	s.log.Info("Starting deviation comparison", map[string]interface{}{
		"area":       areaName,
		"detected":   len(detected),
		"references": len(refs),
	})

	report := compare.New(s.log).Compare(detected, refs)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceDeviations(ctx, areaName, report); err != nil {
		s.log.Error("Failed to store comparison report", err, map[string]interface{}{
			"area": areaName,
		})
		return nil, fmt.Errorf("failed to store comparison report: %w", err)
	}

	s.log.Info("Deviation comparison complete", map[string]interface{}{
		"area":               areaName,
		"deviations":         len(report.Deviations),
		"unmatched_detected": len(report.UnmatchedDetected),
		"unmatched_basemap":  len(report.UnmatchedBasemap),
	})
	return &report, nil
}
