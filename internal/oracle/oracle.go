// Package oracle defines the contract with the external segmentation model.
// The pipeline only decides what to ask; running the model is someone else's
// job.
package oracle

import (
	"context"

	"github.com/avikothari/plotsight/internal/imagery"
	"github.com/avikothari/plotsight/internal/models"
)

// Prompt is one targeted segmentation request for a reference parcel the
// automatic pass missed. Points are lon/lat foreground hints (centroid plus
// edge midpoints); Box is the parcel's bounding box clipped to the image
// extent, nil when the clip is degenerate.
type Prompt struct {
	ReferenceName string
	Points        [][2]float64
	Box           *[4]float64
}

// Segmenter produces polygon masks from imagery. Implementations wrap an
// external model endpoint; both calls block until the model responds.
type Segmenter interface {
	// DetectAuto runs untargeted full-image segmentation.
	DetectAuto(ctx context.Context, img *imagery.Image, meta *imagery.TileMeta) ([]models.RawMask, error)

	// DetectPrompted runs one targeted segmentation per prompt.
	DetectPrompted(ctx context.Context, img *imagery.Image, meta *imagery.TileMeta, prompts []Prompt) ([]models.RawMask, error)
}
