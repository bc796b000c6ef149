package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "deal-analyzer/internal/common/errors"
	"deal-analyzer/internal/common/validation"
	"deal-analyzer/internal/models"
)

const maxBodyBytes = 1 << 20

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the public form of err with its mapped status.
func writeError(w http.ResponseWriter, err *apperrors.StandardError) {
	writeJSON(w, apperrors.HTTPStatus(err.Code), err.ToResponse())
}

// decodeAnalysisRequest reads the body, validates it against the request
// schema and decodes it.
func decodeAnalysisRequest(w http.ResponseWriter, r *http.Request) (models.AnalysisRequest, *apperrors.StandardError) {
	var req models.AnalysisRequest

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return req, apperrors.NewInvalidPayloadError(fmt.Sprintf("read body: %v", err))
	}

	result, err := validation.ValidatePayload(validation.AnalysisRequestSchema, body)
	if err != nil {
		return req, apperrors.NewInvalidPayloadError(err.Error()).
			WithMetadata("errors", []string{"body is not valid JSON"})
	}
	if !result.Valid {
		return req, apperrors.NewInvalidPayloadError("schema validation failed").
			WithMetadata("errors", result.GetErrorMessages())
	}

	if err := json.Unmarshal(body, &req); err != nil {
		return req, apperrors.NewInvalidPayloadError(err.Error()).
			WithMetadata("errors", []string{err.Error()})
	}
	return req, nil
}
