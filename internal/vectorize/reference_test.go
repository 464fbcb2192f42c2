package vectorize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avikothari/plotsight/internal/logger"
	"github.com/avikothari/plotsight/internal/models"
)

func TestNormalizeReference(t *testing.T) {
	n := New(testOptions(), logger.Nop())
	ref := models.ReferenceParcel{Name: "P-12", Geometry: square(0, 0, 0.001)}

	p, ok := n.NormalizeReference(ref, nil, nil)

	require.True(t, ok)
	assert.Equal(t, "Plot (Ref: P-12)", p.Label)
	assert.Equal(t, models.CategoryPlot, p.Category)
	assert.Equal(t, models.SourceReferenceInjected, p.Source)
	require.NotNil(t, p.Confidence)
	assert.InDelta(t, 0.7, *p.Confidence, 1e-9)
	assert.Greater(t, p.AreaSqm, 0.0)
}

func TestNormalizeReference_TooSmall(t *testing.T) {
	n := New(testOptions(), logger.Nop())
	ref := models.ReferenceParcel{Name: "P-13", Geometry: square(0, 0, 0.00002)}

	_, ok := n.NormalizeReference(ref, nil, nil)
	assert.False(t, ok)
}

func TestNormalizeReference_BadGeometry(t *testing.T) {
	n := New(testOptions(), logger.Nop())
	ref := models.ReferenceParcel{Name: "P-14", Geometry: models.Polygon{}}

	_, ok := n.NormalizeReference(ref, nil, nil)
	assert.False(t, ok)
}
