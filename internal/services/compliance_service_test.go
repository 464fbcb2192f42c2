package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/avikothari/plotsight/internal/logger"
	"github.com/avikothari/plotsight/internal/models"
)

func TestCheckCompliance_EmptyAreaName(t *testing.T) {
	// Arrange
	mockRepo := new(MockResultRepository)
	service := NewComplianceService(testPipelineConfig(), mockRepo, logger.Nop())

	// Act
	report, err := service.CheckCompliance(context.Background(), ComplianceInput{
		Parcels: []models.Parcel{{Label: "Plot 1", Category: models.CategoryPlot}},
	})

	// Assert
	assert.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrAreaNameRequired)
	mockRepo.AssertNotCalled(t, "ReplaceCompliance")
}

func TestCheckCompliance_NoParcels(t *testing.T) {
	// Arrange
	mockRepo := new(MockResultRepository)
	service := NewComplianceService(testPipelineConfig(), mockRepo, logger.Nop())

	// Act
	report, err := service.CheckCompliance(context.Background(), ComplianceInput{
		AreaName: "siltara",
	})

	// Assert
	assert.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrNoParcelsToCheck)
	mockRepo.AssertNotCalled(t, "ReplaceCompliance")
}

func TestCheckCompliance_Success(t *testing.T) {
	// Arrange
	mockRepo := new(MockResultRepository)
	service := NewComplianceService(testPipelineConfig(), mockRepo, logger.Nop())

	ctx := context.Background()
	mockRepo.On("ReplaceCompliance", ctx, "siltara", mock.Anything).Return(nil)

	allotted := time.Now().AddDate(-3, 0, 0)
	in := ComplianceInput{
		AreaName: "siltara",
		Parcels: []models.Parcel{
			{Label: "Plot 1", Category: models.CategoryPlot, Geometry: testSquare(0, 0, 0.001)},
			{Label: "Road 1", Category: models.CategoryRoad},
		},
		References: []models.ReferenceParcel{{
			Name:          "P-1",
			Status:        "allotted - construction not started",
			Allottee:      "Shri Balaji Enterprises",
			AllotmentDate: &allotted,
		}},
	}

	// Act
	report, err := service.CheckCompliance(ctx, in)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "siltara", report.AreaName)
	assert.Equal(t, 1, report.Summary.TotalParcels)
	require.Len(t, report.Results, 1)

	rec := report.Results[0]
	assert.Equal(t, "Plot 1", rec.PlotLabel)
	assert.Equal(t, "P-1", rec.MatchedPlotName)
	require.NotNil(t, rec.IsConstructionCompliant)
	assert.False(t, *rec.IsConstructionCompliant)
	mockRepo.AssertExpectations(t)
}

func TestCheckCompliance_RepositoryError(t *testing.T) {
	// Arrange
	mockRepo := new(MockResultRepository)
	service := NewComplianceService(testPipelineConfig(), mockRepo, logger.Nop())

	ctx := context.Background()
	repoErr := errors.New("connection refused")
	mockRepo.On("ReplaceCompliance", ctx, "siltara", mock.Anything).Return(repoErr)

	// Act
	report, err := service.CheckCompliance(ctx, ComplianceInput{
		AreaName: "siltara",
		Parcels:  []models.Parcel{{Label: "Plot 1", Category: models.CategoryPlot}},
	})

	// Assert
	assert.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, repoErr)
	assert.Contains(t, err.Error(), "failed to store compliance report")
}
