package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/avikothari/plotsight/internal/config"
	"github.com/avikothari/plotsight/internal/consolidate"
	"github.com/avikothari/plotsight/internal/gapfill"
	"github.com/avikothari/plotsight/internal/imagery"
	"github.com/avikothari/plotsight/internal/logger"
	"github.com/avikothari/plotsight/internal/models"
	"github.com/avikothari/plotsight/internal/oracle"
	"github.com/avikothari/plotsight/internal/repository"
	"github.com/avikothari/plotsight/internal/vectorize"
)

// Service-level errors
var (
	ErrAreaNameRequired = errors.New("area name is required")
	ErrNoMaskSource     = errors.New("no masks provided and no segmenter configured")
	ErrInvalidTileMeta  = errors.New("invalid tile metadata")
)

// DetectionInput carries everything one detection run needs. Masks may be
// pre-acquired; when empty the configured segmenter is queried instead.
// Image and Meta are optional; without them classification falls back to
// shape heuristics and targeted re-queries are skipped.
type DetectionInput struct {
	AreaName   string
	Image      *imagery.Image
	Meta       *imagery.TileMeta
	Boundary   models.Polygon
	References []models.ReferenceParcel
	Masks      []models.RawMask
}

// DetectionService defines the interface for the parcel detection pipeline.
type DetectionService interface {
	// DetectParcels runs the full pipeline over one area and stores the
	// result, replacing any previous run for that area.
	// Returns ErrAreaNameRequired if the area name is empty.
	// Returns ErrNoMaskSource if there are no masks and no segmenter.
	// Returns ErrInvalidTileMeta if tile metadata is present but malformed.
	DetectParcels(ctx context.Context, in DetectionInput) ([]models.Parcel, error)

	// GetParcels returns the stored parcel set for an area.
	// Returns empty slice if no run has been stored (not an error).
	GetParcels(ctx context.Context, areaName string) ([]models.Parcel, error)
}

// detectionService is the concrete implementation of DetectionService.
type detectionService struct {
	cfg       config.PipelineConfig
	segmenter oracle.Segmenter
	repo      repository.ResultRepository
	log       *logger.Logger
}

// NewDetectionService creates a new instance of DetectionService. The
// segmenter may be nil when callers always supply pre-acquired masks.
func NewDetectionService(cfg config.PipelineConfig, segmenter oracle.Segmenter, repo repository.ResultRepository, log *logger.Logger) DetectionService {
	return &detectionService{
		cfg:       cfg,
		segmenter: segmenter,
		repo:      repo,
		log:       log,
	}
}

// DetectParcels runs mask acquisition, vectorization, consolidation, boundary
// clipping and reference gap-filling in order, checking for cancellation
// between passes.
func (s *detectionService) DetectParcels(ctx context.Context, in DetectionInput) ([]models.Parcel, error) {
	if in.AreaName == "" {
		return nil, ErrAreaNameRequired
	}
	if in.Meta != nil {
		if err := in.Meta.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTileMeta, err)
		}
	}

	masks, err := s.acquireMasks(ctx, in)
	if err != nil {
		return nil, err
	}

	s.log.Info("Starting parcel detection", map[string]interface{}{
		"area":       in.AreaName,
		"masks":      len(masks),
		"references": len(in.References),
	})

	normalizer := vectorize.New(vectorize.Options{
		MinAreaSqm:         s.cfg.MinParcelAreaSqm,
		SimplifyToleranceM: s.cfg.SimplifyToleranceM,
	}, s.log)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parcels := normalizer.ProcessMasks(masks, in.Image, in.Meta)

	opts := consolidate.DefaultOptions()
	opts.OverlapThreshold = s.cfg.OverlapMergeThreshold
	opts.ContainmentThreshold = s.cfg.ContainmentThreshold
	opts.ClusterProximityDeg = s.cfg.ClusterProximityDeg
	opts.SmallAreaThresholdSqm = s.cfg.ClusterSizeCutoffSqm
	opts.NoiseMinCompactness = s.cfg.NoiseMinCompactness
	opts.NoiseMinAreaSqm = s.cfg.NoiseMinAreaSqm
	opts.NoiseMaxAspectRatio = s.cfg.NoiseMaxAspectRatio
	consolidator := consolidate.New(opts, s.log)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parcels = consolidator.MergeOverlapping(parcels)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parcels = consolidator.FuseSmallClusters(parcels)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parcels = consolidator.RemoveNested(parcels)

	if s.cfg.EnableNoiseFilter {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parcels = consolidator.FilterNoise(parcels)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parcels = vectorize.ClipToBoundary(parcels, in.Boundary, s.cfg.MinParcelAreaSqm, s.log)

	if len(in.References) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		filler := gapfill.New(gapfill.Options{
			InjectCoverageThreshold:  s.cfg.InjectCoverageThreshold,
			PromptCoverageThreshold:  s.cfg.PromptCoverageThreshold,
			PromptedOverlapThreshold: s.cfg.PromptedOverlapThreshold,
			DropUnmatched:            s.cfg.DropUnmatchedDetected,
		}, s.log)
		parcels = filler.InjectMissing(parcels, in.References, normalizer, in.Image, in.Meta)
		parcels = filler.FilterUnmatched(parcels, in.References)
	}

	parcels = vectorize.RenumberLabels(parcels)

	if err := s.repo.ReplaceParcels(ctx, in.AreaName, parcels); err != nil {
		s.log.Error("Failed to store detection result", err, map[string]interface{}{
			"area": in.AreaName,
		})
		return nil, fmt.Errorf("failed to store detection result: %w", err)
	}

	s.log.Info("Parcel detection complete", map[string]interface{}{
		"area":    in.AreaName,
		"parcels": len(parcels),
	})
	return parcels, nil
}

// acquireMasks collects raw masks for the run. Pre-acquired masks are used as
// given; otherwise the segmenter runs the automatic pass, followed by a
// targeted pass for reference parcels the automatic masks barely cover.
// Failures in the targeted pass degrade to the automatic result.
func (s *detectionService) acquireMasks(ctx context.Context, in DetectionInput) ([]models.RawMask, error) {
	masks := in.Masks
	if len(masks) == 0 {
		if s.segmenter == nil {
			return nil, ErrNoMaskSource
		}
		var err error
		masks, err = s.segmenter.DetectAuto(ctx, in.Image, in.Meta)
		if err != nil {
			return nil, fmt.Errorf("automatic segmentation failed: %w", err)
		}
	}

	if s.segmenter == nil || in.Meta == nil || len(in.References) == 0 {
		return masks, nil
	}

	filler := gapfill.New(gapfill.Options{
		InjectCoverageThreshold:  s.cfg.InjectCoverageThreshold,
		PromptCoverageThreshold:  s.cfg.PromptCoverageThreshold,
		PromptedOverlapThreshold: s.cfg.PromptedOverlapThreshold,
	}, s.log)

	prompts := filler.PlanPrompts(masks, in.References, in.Meta.BBox)
	if len(prompts) == 0 {
		return masks, nil
	}

	prompted, err := s.segmenter.DetectPrompted(ctx, in.Image, in.Meta, prompts)
	if err != nil {
		s.log.Warn("Targeted segmentation failed, continuing with automatic masks", map[string]interface{}{
			"area":  in.AreaName,
			"error": err.Error(),
		})
		return masks, nil
	}
	return append(masks, filler.FilterPromptedMasks(masks, prompted)...), nil
}

// GetParcels returns the stored parcel set for an area.
func (s *detectionService) GetParcels(ctx context.Context, areaName string) ([]models.Parcel, error) {
	if areaName == "" {
		return nil, ErrAreaNameRequired
	}

	parcels, err := s.repo.ListParcels(ctx, areaName)
	if err != nil {
		s.log.Error("Failed to load stored parcels", err, map[string]interface{}{
			"area": areaName,
		})
		return nil, fmt.Errorf("failed to load stored parcels: %w", err)
	}
	return parcels, nil
}
