package analyzedeal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"deal-analyzer/internal/common/config"
	apperrors "deal-analyzer/internal/common/errors"
	"deal-analyzer/internal/common/logger"
	"deal-analyzer/internal/common/observability"
	"deal-analyzer/internal/models"
	"deal-analyzer/internal/orchestrator"
	"deal-analyzer/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type stubAnalyzer struct {
	result models.AnalysisResult
	err    error
	got    models.AnalysisRequest
}

func (s *stubAnalyzer) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	s.got = req
	return s.result, s.err
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createOrchestrator() *orchestrator.Orchestrator {
	criteria := models.DefaultCriteria()
	criteria.CapRate.Minimum = 0.04
	res := resolver.New(resolver.NewStaticCriteriaSource(criteria), nil, nil, resolver.Options{}, logger.NewNoOpLogger())
	return orchestrator.New(orchestrator.Dependencies{
		Resolver:      res,
		Observability: observability.NewNoop(),
	}, orchestrator.Config{}, logger.NewNoOpLogger())
}

const scenarioVariables = `{
  "applicationId": "app-42",
  "property": {
    "address": "123 Main St",
    "state": "OH",
    "zipCode": "43004",
    "propertyType": "Single Family",
    "purchasePrice": 200000,
    "monthlyRent": 2200
  },
  "fundingSource": "conventional"
}`

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantErr   bool
		validate  func(t *testing.T, input *Input)
	}{
		{
			name:      "process variables with extras",
			variables: scenarioVariables,
			validate: func(t *testing.T, input *Input) {
				assert.Equal(t, "123 Main St", input.Property.Address)
				assert.Equal(t, 200000.0, input.Property.PurchasePrice)
				assert.Equal(t, "conventional", input.FundingSource)
			},
		},
		{
			name:      "short-term metrics",
			variables: `{"property":{"address":"9 Lake Rd","purchasePrice":300000},"strMetrics":{"adr":200,"occupancyRate":70},"mode":"short-term"}`,
			validate: func(t *testing.T, input *Input) {
				require.NotNil(t, input.STRMetrics)
				assert.Equal(t, models.ShortTermRental, input.Mode)
			},
		},
		{name: "missing property", variables: `{"fundingSource":"fha"}`, wantErr: true},
		{name: "wrong type", variables: `{"property":{"purchasePrice":"cheap"}}`, wantErr: true},
		{name: "not json", variables: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := ParseInput(tt.variables)
			if tt.wantErr {
				require.Error(t, err)
				stdErr := apperrors.AsStandardError(err)
				assert.Equal(t, apperrors.ErrCodeInvalidPayload, stdErr.Code)
				assert.Contains(t, stdErr.Details, ErrInvalidVariables.Error())
				assert.Equal(t, "DEAL_PAYLOAD_INVALID", apperrors.ConvertToBPMNError(stdErr).Code)
				return
			}
			require.NoError(t, err)
			tt.validate(t, input)
		})
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Scenario(t *testing.T) {
	h := NewHandler(createTestConfig(), createOrchestrator(), logger.NewTestLogger(t))

	input, err := ParseInput(scenarioVariables)
	require.NoError(t, err)

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.NotEmpty(t, output.AnalysisID)
	assert.Equal(t, output.AnalysisID, output.Analysis.ID)
	assert.True(t, output.MeetsCriteria)
	assert.InDelta(t, 1064.48, output.Analysis.Financing.MonthlyPayment, 0.01)
	assert.InDelta(t, output.Analysis.CashFlow.MonthlyCashFlow, output.MonthlyCashFlow, 1e-9)
	assert.False(t, output.Degraded)

	// The output is what the process receives.
	raw, err := json.Marshal(output)
	require.NoError(t, err)
	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &vars))
	assert.Equal(t, true, vars["meetsCriteria"])
	assert.Contains(t, vars, "analysis")
}

func TestHandler_Execute_Degraded(t *testing.T) {
	stub := &stubAnalyzer{result: models.AnalysisResult{
		ID:    "a-1",
		Flags: []models.Flag{{Code: models.FlagDependencyDegraded, Source: "rates"}},
	}}
	h := NewHandler(createTestConfig(), stub, logger.NewNoOpLogger())

	output, err := h.Execute(context.Background(), &Input{Property: models.PropertyFacts{Address: "1 A St"}})
	require.NoError(t, err)
	assert.True(t, output.Degraded)
	assert.Equal(t, "1 A St", stub.got.Property.Address)
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantCode      apperrors.ErrorCode
		wantBPMN      string
		wantRetryable bool
	}{
		{
			name:     "validation",
			err:      apperrors.NewValidationError("address is required", "property.address"),
			wantCode: apperrors.ErrCodeValidation,
			wantBPMN: "DEAL_VALIDATION_FAILED",
		},
		{
			name:          "deadline",
			err:           context.DeadlineExceeded,
			wantCode:      apperrors.ErrCodeDependencyTimeout,
			wantBPMN:      "DEPENDENCY_TIMEOUT",
			wantRetryable: true,
		},
		{
			name:     "unexpected",
			err:      errors.New("boom"),
			wantCode: apperrors.ErrCodeInternal,
			wantBPMN: string(apperrors.ErrCodeInternal),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(createTestConfig(), &stubAnalyzer{err: tt.err}, logger.NewNoOpLogger())

			_, err := h.Execute(context.Background(), &Input{})
			require.Error(t, err)

			stdErr := apperrors.AsStandardError(err)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			bpmn := apperrors.ConvertToBPMNError(stdErr)
			assert.Equal(t, tt.wantBPMN, bpmn.Code)
			assert.Equal(t, tt.wantRetryable, bpmn.Retryable)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 60*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
	assert.Equal(t, 15*time.Second, LoadConfig(config.WorkerConfig{Timeout: 15000}).Timeout)
}
