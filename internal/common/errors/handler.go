// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler reports a failed analysis job back to the engine.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError fails the job while the engine still has retries and the
// code is transient. Everything else becomes a BPMN error so the process can
// route it (e.g. an invalid deal payload to a review task).
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := AsStandardError(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"bpmnErrorCode":    bpmnErr.Code,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"details":          stdErr.Details,
		"retries":          bpmnErr.Retries,
		"workflowInstance": job.ProcessInstanceKey,
	})

	vars := errorVariablesJSON(bpmnErr)

	if bpmnErr.Retries > 0 && job.Retries > 0 {
		cmd := client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(remainingRetries(job.Retries, bpmnErr.Retries)).
			ErrorMessage(bpmnErr.Message)
		if vars != "" {
			if withVars, err := cmd.VariablesFromString(vars); err == nil {
				_, _ = withVars.Send(ctx)
				return
			}
		}
		_, _ = cmd.Send(ctx)
		return
	}

	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)
	if vars != "" {
		if withVars, err := cmd.VariablesFromString(vars); err == nil {
			_, _ = withVars.Send(ctx)
			return
		}
	}
	_, _ = cmd.Send(ctx)
}

// remainingRetries consumes one engine retry and caps the rest at the
// code's recommendation.
func remainingRetries(engine int32, recommended int) int32 {
	left := engine - 1
	if left > int32(recommended) {
		left = int32(recommended)
	}
	if left < 0 {
		left = 0
	}
	return left
}

func errorVariablesJSON(bpmnErr *BPMNError) string {
	raw, err := json.Marshal(bpmnErr.ToErrorVariables())
	if err != nil {
		return ""
	}
	return string(raw)
}
