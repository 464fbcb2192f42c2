package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avikothari/plotsight/internal/compliance"
	"github.com/avikothari/plotsight/internal/config"
	"github.com/avikothari/plotsight/internal/imagery"
	"github.com/avikothari/plotsight/internal/logger"
	"github.com/avikothari/plotsight/internal/models"
	"github.com/avikothari/plotsight/internal/repository"
)

var ErrNoParcelsToCheck = errors.New("no parcels to check")

// ComplianceInput carries one compliance run's inputs. Image and Meta are
// optional; without them the green cover check is skipped per parcel.
type ComplianceInput struct {
	AreaName   string
	Parcels    []models.Parcel
	References []models.ReferenceParcel
	Image      *imagery.Image
	Meta       *imagery.TileMeta
}

// ComplianceService defines the interface for regulatory compliance checks.
type ComplianceService interface {
	// CheckCompliance builds allotment records for the area, evaluates every
	// plot parcel against them, and stores the report.
	// Returns ErrAreaNameRequired or ErrNoParcelsToCheck on empty inputs.
	CheckCompliance(ctx context.Context, in ComplianceInput) (*models.ComplianceReport, error)
}

// complianceService is the concrete implementation of ComplianceService.
type complianceService struct {
	cfg  config.PipelineConfig
	repo repository.ResultRepository
	log  *logger.Logger
	now  func() time.Time
}

// NewComplianceService creates a new instance of ComplianceService.
func NewComplianceService(cfg config.PipelineConfig, repo repository.ResultRepository, log *logger.Logger) ComplianceService {
	return &complianceService{
		cfg:  cfg,
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// CheckCompliance evaluates green cover and construction timeline checks for
// every plot parcel in the area and persists the report.
func (s *complianceService) CheckCompliance(ctx context.Context, in ComplianceInput) (*models.ComplianceReport, error) {
	if in.AreaName == "" {
		return nil, ErrAreaNameRequired
	}
	if len(in.Parcels) == 0 {
		return nil, ErrNoParcelsToCheck
	}

	s.log.Info("Starting compliance checks", map[string]interface{}{
		"area":       in.AreaName,
		"parcels":    len(in.Parcels),
		"references": len(in.References),
	})

	opts := compliance.Options{
		ExGThreshold:     s.cfg.GreenExGThreshold,
		GreenCoverMinPct: s.cfg.GreenCoverMinPct,
		DeadlineYears:    s.cfg.ConstructionDeadlineYears,
	}
	records := compliance.BuildAllotmentRecords(in.AreaName, in.References, s.now(), opts.DeadlineYears, s.log)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	checker := compliance.NewChecker(opts, s.log)
	report := checker.Run(in.AreaName, in.Parcels, records, in.Image, in.Meta)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceCompliance(ctx, in.AreaName, report); err != nil {
		s.log.Error("Failed to store compliance report", err, map[string]interface{}{
			"area": in.AreaName,
		})
		return nil, fmt.Errorf("failed to store compliance report: %w", err)
	}

	s.log.Info("Compliance checks complete", map[string]interface{}{
		"area":            in.AreaName,
		"checked":         report.Summary.TotalParcels,
		"fully_compliant": report.Summary.FullyCompliant,
		"non_compliant":   report.Summary.NonCompliant,
	})
	return &report, nil
}
