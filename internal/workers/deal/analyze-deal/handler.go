// internal/workers/deal/analyze-deal/handler.go
package analyzedeal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "deal-analyzer/internal/common/errors"
	"deal-analyzer/internal/common/logger"
	"deal-analyzer/internal/common/metrics"
	"deal-analyzer/internal/common/validation"
	"deal-analyzer/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "analyze-deal"
)

var (
	ErrInvalidVariables = errors.New("INVALID_VARIABLES")
)

// Analyzer runs one deal analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error)
}

type Handler struct {
	config   *Config
	analyzer Analyzer
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, analyzer Analyzer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		analyzer: analyzer,
		errors:   apperrors.NewErrorHandler(log),
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := ParseInput(job.Variables)
	if err != nil {
		h.fail(client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(client, job, err)
		return
	}

	metrics.AnalysisDuration.WithLabelValues("worker").Observe(time.Since(start).Seconds())
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.completeJob(client, job, output)
}

// ParseInput validates the job variables against the analysis request schema
// and decodes them.
func ParseInput(variables string) (*Input, error) {
	result, err := validation.ValidatePayload(validation.AnalysisRequestSchema, []byte(variables))
	if err != nil {
		return nil, apperrors.NewInvalidPayloadError(fmt.Sprintf("%v: %v", ErrInvalidVariables, err))
	}
	if !result.Valid {
		return nil, apperrors.NewInvalidPayloadError(fmt.Sprintf("%v: %s", ErrInvalidVariables, strings.Join(result.GetErrorMessages(), "; "))).
			WithMetadata("errors", result.GetErrorMessages())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidPayloadError(fmt.Sprintf("%v: %v", ErrInvalidVariables, err))
	}
	return &input, nil
}

// Execute runs the analysis. A context ending before the analysis finishes is
// reported as a retryable timeout.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.analyzer.Analyze(ctx, *input)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, apperrors.NewDependencyTimeoutError("analysis", h.config.Timeout)
		}
		return nil, err
	}

	h.logger.Info("deal analyzed", map[string]interface{}{
		"analysisId":    result.ID,
		"meetsCriteria": result.MeetsCriteria,
		"rateSource":    result.RateSource,
	})

	return &Output{
		AnalysisID:      result.ID,
		MeetsCriteria:   result.MeetsCriteria,
		MonthlyCashFlow: result.CashFlow.MonthlyCashFlow,
		CapRate:         result.CashFlow.CapRate.Float64(),
		CashOnCash:      result.CashFlow.CashOnCash.Float64(),
		Degraded:        models.HasFlag(result.Flags, models.FlagDependencyDegraded),
		Analysis:        result,
	}, nil
}

func (h *Handler) fail(client worker.JobClient, job entities.Job, err error) {
	stdErr := apperrors.AsStandardError(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, stdErr)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
	}
}
