package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"deal-analyzer/internal/admission/ratelimit"
	"deal-analyzer/internal/common/auth"
	apperrors "deal-analyzer/internal/common/errors"
)

// Rate limit response headers.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}
		if ww.Status() >= http.StatusInternalServerError {
			s.logger.Error("Request failed", fields)
			return
		}
		s.logger.Debug("Request served", fields)
	})
}

// authenticate resolves a bearer token to a user id. Requests without a
// token pass through anonymously and are limited by client address.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := auth.BearerToken(header)
		if !ok {
			writeError(w, apperrors.NewUnauthorizedError("malformed authorization header"))
			return
		}

		info, err := s.auth.ValidateToken(r.Context(), token)
		if err != nil {
			stdErr := apperrors.AsStandardError(err)
			if stdErr.Code != apperrors.ErrCodeUnauthorized {
				s.logger.Warn("Token validation unavailable", map[string]interface{}{"error": err.Error()})
			}
			writeError(w, stdErr)
			return
		}

		next.ServeHTTP(w, r.WithContext(ratelimit.WithUserID(r.Context(), info.Sub)))
	})
}

// rateLimit admits the request against tier before the handler runs.
func (s *Server) rateLimit(tier string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.admit(w, r, tier) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// admit charges the request to tier and writes the rejection when it is over
// budget. No rate limit headers are set while the limiter is degraded. A
// later call for a tighter tier overwrites the headers of an earlier one.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, tier string) bool {
	if s.admission == nil {
		return true
	}

	res, err := s.admission.Admit(r.Context(), tier, ratelimit.ClientIdentity(r))
	if err != nil {
		s.logger.Error("Admission failed", map[string]interface{}{"tier": tier, "error": err.Error()})
		writeError(w, apperrors.NewInternalError(err))
		return false
	}

	if !res.Degraded {
		h := w.Header()
		h.Set(HeaderLimit, strconv.FormatInt(res.Limit, 10))
		h.Set(HeaderRemaining, strconv.FormatInt(res.Remaining, 10))
		h.Set(HeaderReset, strconv.FormatInt(res.Reset.Unix(), 10))
	}

	if !res.Allowed {
		retryAfter := res.RetryAfterSeconds()
		w.Header().Set(HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))
		writeError(w, apperrors.NewAdmissionRejectedError(tier, res.Limit, res.Reset, retryAfter))
		return false
	}
	return true
}
