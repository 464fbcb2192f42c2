package handlers

import (
	"errors"
	"net/http"

	apierrors "github.com/avikothari/plotsight/internal/errors"
	"github.com/avikothari/plotsight/internal/imagery"
	"github.com/avikothari/plotsight/internal/middleware"
	"github.com/avikothari/plotsight/internal/models"
	"github.com/avikothari/plotsight/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// AreaHandler handles detection, comparison and compliance requests for an
// industrial area.
type AreaHandler struct {
	detection  services.DetectionService
	comparison services.ComparisonService
	compliance services.ComplianceService
}

// NewAreaHandler creates a new AreaHandler instance.
func NewAreaHandler(detection services.DetectionService, comparison services.ComparisonService, compliance services.ComplianceService) *AreaHandler {
	return &AreaHandler{
		detection:  detection,
		comparison: comparison,
		compliance: compliance,
	}
}

// MaskFeature is one raw segmentation mask in a detect request.
type MaskFeature struct {
	ID         int            `json:"id"`
	Geometry   models.Polygon `json:"geometry" binding:"required"`
	Confidence *float64       `json:"confidence,omitempty"`
}

// ReferenceFeature is one basemap feature with its raw attribute table.
type ReferenceFeature struct {
	Geometry   models.Polygon    `json:"geometry" binding:"required"`
	Properties map[string]string `json:"properties"`
}

// TileMetaRequest describes the georeferencing of the imagery the masks were
// derived from.
type TileMetaRequest struct {
	BBox         [4]float64 `json:"bbox" binding:"required"`
	PixelSizeLon float64    `json:"pixel_size_lon" binding:"required,gt=0"`
	PixelSizeLat float64    `json:"pixel_size_lat" binding:"required,gt=0"`
	Width        int        `json:"width" binding:"required,gt=0"`
	Height       int        `json:"height" binding:"required,gt=0"`
}

// DetectRequest is the body for POST /areas/:area/detect.
type DetectRequest struct {
	Masks      []MaskFeature      `json:"masks" binding:"required,min=1"`
	References []ReferenceFeature `json:"references"`
	Boundary   *models.Polygon    `json:"boundary,omitempty"`
	TileMeta   *TileMetaRequest   `json:"tile_meta,omitempty"`
}

// CompareRequest is the body for POST /areas/:area/compare.
type CompareRequest struct {
	References []ReferenceFeature `json:"references" binding:"required,min=1"`
}

// ComplianceRequest is the body for POST /areas/:area/compliance.
type ComplianceRequest struct {
	References []ReferenceFeature `json:"references"`
}

// ParcelsResponse wraps a parcel list.
type ParcelsResponse struct {
	AreaName string          `json:"area_name"`
	Parcels  []models.Parcel `json:"parcels"`
	Count    int             `json:"count"`
}

// Detect handles POST /api/v1/areas/:area/detect.
// Runs the detection pipeline on the posted masks and stores the result,
// replacing any previous run for the area.
func (h *AreaHandler) Detect(c *gin.Context) {
	areaName := c.Param("area")
	log := middleware.GetLogger(c)

	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	if log != nil {
		log.Info("Processing detect request", map[string]interface{}{
			"area":       areaName,
			"masks":      len(req.Masks),
			"references": len(req.References),
		})
	}

	in := services.DetectionInput{
		AreaName:   areaName,
		References: toReferenceParcels(req.References),
		Masks:      toRawMasks(req.Masks),
	}
	if req.Boundary != nil {
		in.Boundary = *req.Boundary
	}
	if req.TileMeta != nil {
		in.Meta = &imagery.TileMeta{
			BBox:         req.TileMeta.BBox,
			PixelSizeLon: req.TileMeta.PixelSizeLon,
			PixelSizeLat: req.TileMeta.PixelSizeLat,
			Width:        req.TileMeta.Width,
			Height:       req.TileMeta.Height,
		}
	}

	parcels, err := h.detection.DetectParcels(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, services.ErrAreaNameRequired) ||
			errors.Is(err, services.ErrNoMaskSource) ||
			errors.Is(err, services.ErrInvalidTileMeta) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Detection pipeline failed", err)
		return
	}

	c.JSON(http.StatusOK, ParcelsResponse{
		AreaName: areaName,
		Parcels:  parcels,
		Count:    len(parcels),
	})
}

// Parcels handles GET /api/v1/areas/:area/parcels.
// Returns the stored parcel set from the last detection run.
func (h *AreaHandler) Parcels(c *gin.Context) {
	areaName := c.Param("area")

	parcels, err := h.detection.GetParcels(c.Request.Context(), areaName)
	if err != nil {
		if errors.Is(err, services.ErrAreaNameRequired) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to load parcels", err)
		return
	}

	c.JSON(http.StatusOK, ParcelsResponse{
		AreaName: areaName,
		Parcels:  parcels,
		Count:    len(parcels),
	})
}

// Compare handles POST /api/v1/areas/:area/compare.
// Matches the stored parcel set against the posted basemap and stores the
// deviation report.
func (h *AreaHandler) Compare(c *gin.Context) {
	areaName := c.Param("area")
	log := middleware.GetLogger(c)

	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	detected, err := h.detection.GetParcels(c.Request.Context(), areaName)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to load parcels", err)
		return
	}

	if log != nil {
		log.Info("Processing compare request", map[string]interface{}{
			"area":       areaName,
			"detected":   len(detected),
			"references": len(req.References),
		})
	}

	report, err := h.comparison.CompareParcels(c.Request.Context(), areaName, detected, toReferenceParcels(req.References))
	if err != nil {
		if errors.Is(err, services.ErrNoDetectedParcels) {
			apierrors.NotFound(c, "No detected parcels stored for this area; run detection first")
			return
		}
		if errors.Is(err, services.ErrAreaNameRequired) || errors.Is(err, services.ErrNoReferenceParcels) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Comparison failed", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Compliance handles POST /api/v1/areas/:area/compliance.
// Evaluates compliance checks over the stored parcel set and stores the
// report.
func (h *AreaHandler) Compliance(c *gin.Context) {
	areaName := c.Param("area")
	log := middleware.GetLogger(c)

	var req ComplianceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	parcels, err := h.detection.GetParcels(c.Request.Context(), areaName)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to load parcels", err)
		return
	}

	if log != nil {
		log.Info("Processing compliance request", map[string]interface{}{
			"area":       areaName,
			"parcels":    len(parcels),
			"references": len(req.References),
		})
	}

	report, err := h.compliance.CheckCompliance(c.Request.Context(), services.ComplianceInput{
		AreaName:   areaName,
		Parcels:    parcels,
		References: toReferenceParcels(req.References),
	})
	if err != nil {
		if errors.Is(err, services.ErrNoParcelsToCheck) {
			apierrors.NotFound(c, "No detected parcels stored for this area; run detection first")
			return
		}
		if errors.Is(err, services.ErrAreaNameRequired) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Compliance checks failed", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// toRawMasks maps request mask features to the pipeline's input type,
// assigning sequential IDs where the client left them zero.
func toRawMasks(features []MaskFeature) []models.RawMask {
	masks := make([]models.RawMask, 0, len(features))
	for i, f := range features {
		id := f.ID
		if id == 0 {
			id = i + 1
		}
		masks = append(masks, models.RawMask{
			ID:         id,
			Geometry:   f.Geometry,
			Confidence: f.Confidence,
		})
	}
	return masks
}

// toReferenceParcels resolves each feature's attribute table into a typed
// reference parcel.
func toReferenceParcels(features []ReferenceFeature) []models.ReferenceParcel {
	refs := make([]models.ReferenceParcel, 0, len(features))
	for i, f := range features {
		refs = append(refs, models.NewReferenceParcel(f.Geometry, f.Properties, i+1))
	}
	return refs
}
