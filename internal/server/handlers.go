package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"deal-analyzer/internal/common/config"
	apperrors "deal-analyzer/internal/common/errors"
	"deal-analyzer/internal/common/metrics"
	"deal-analyzer/internal/models"
)

const readinessTimeout = 2 * time.Second

// CriteriaResponse is the body of GET /v1/criteria.
type CriteriaResponse struct {
	Criteria models.CriteriaConfig `json:"criteria"`
	Source   string                `json:"source"`
	Flags    []models.Flag         `json:"flags,omitempty"`
}

// handleAnalyze runs a full analysis. Requests asking for an AI assessment
// are also charged to the strict tier.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, stdErr := decodeAnalysisRequest(w, r)
	if stdErr != nil {
		writeError(w, stdErr)
		return
	}
	if req.Score && !s.admit(w, r, config.TierStrict) {
		return
	}
	s.analyze(w, r, req)
}

// handlePreview runs the same analysis without external scoring.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, stdErr := decodeAnalysisRequest(w, r)
	if stdErr != nil {
		writeError(w, stdErr)
		return
	}
	req.Score = false
	s.analyze(w, r, req)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request, req models.AnalysisRequest) {
	start := time.Now()
	defer func() {
		metrics.AnalysisDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())
	}()

	result, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		writeError(w, analysisError(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func analysisError(err error) *apperrors.StandardError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewServiceUnavailableError(err.Error())
	}
	return apperrors.AsStandardError(err)
}

func (s *Server) handleCriteria(w http.ResponseWriter, r *http.Request) {
	res := s.analyzer.Criteria(r.Context())
	writeJSON(w, http.StatusOK, CriteriaResponse{
		Criteria: res.Criteria,
		Source:   res.Source,
		Flags:    res.Flags,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady reports 503 when any readiness check fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}

	body := map[string]interface{}{
		"status": "ready",
		"checks": checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	writeJSON(w, status, body)
}
