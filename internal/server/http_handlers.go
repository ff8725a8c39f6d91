package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"time"

	careerErrors "careerlaunch/internal/errors"
)

// getHealthCheckTimeout returns the configured health check timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	if s.AppConfig == nil || s.AppConfig.Observability.HealthCheck.Timeout <= 0 {
		return 15 * time.Second
	}
	return s.AppConfig.Observability.HealthCheck.Timeout
}

// healthHandler provides a health check including AI model availability and breaker state
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "careerlaunch",
		"version": s.Version,
	}

	overallHealthy := true
	if s.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.getHealthCheckTimeout())
		defer cancel()

		modelInfo := s.Health.GetModelInfo(ctx)
		response["ai_model"] = modelInfo
		if modelInfo == nil || !modelInfo.Available {
			overallHealthy = false
		}

		breakers := s.Health.GetCircuitBreakerStats()
		response["circuit_breakers"] = breakers
		if healthy, ok := breakers["overall_healthy"].(bool); ok && !healthy {
			overallHealthy = false
		}
	}

	if s.KeyWatcher != nil {
		response["key_watcher"] = s.KeyWatcher.Status()
	}

	status := http.StatusOK
	if !overallHealthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statsHandler provides server statistics including sessions and rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "careerlaunch",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"auth_enabled":           len(s.APIKeys) > 0,
		},
		"history_enabled": s.History != nil,
	}

	if s.Sessions != nil {
		response["sessions"] = s.Sessions.GetStats()
	}
	if s.Health != nil {
		response["circuit_breakers"] = s.Health.GetCircuitBreakerStats()
	}

	// Add rate limiting stats if enabled
	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	// Add configuration info
	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("Failed to close request body: %v", err)
		}
	}()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	return nil
}

// statusForError maps the error taxonomy onto HTTP status codes
func statusForError(err error) int {
	var appErr *careerErrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}

	switch appErr.Type {
	case careerErrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case careerErrors.ErrorTypeLink:
		return http.StatusUnprocessableEntity
	case careerErrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case careerErrors.ErrorTypeConflict:
		if appErr.Code == careerErrors.ErrCodeTooManySessions {
			return http.StatusServiceUnavailable
		}
		return http.StatusConflict
	case careerErrors.ErrorTypeAIResponse:
		return http.StatusBadGateway
	case careerErrors.ErrorTypeAITransport:
		if appErr.Code == careerErrors.ErrCodeAITimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError writes an AppError with its mapped status. Server-side
// failures are logged and their detail is not echoed to the client.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	status := statusForError(err)

	var appErr *careerErrors.AppError
	if !errors.As(err, &appErr) {
		s.Logger.LogError(err, "Request failed")
		writeErrorResponse(w, "Internal server error", "", status)
		return
	}
	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed")
	}

	response := ErrorResponse{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Message: string(appErr.Type),
	}
	if fields, ok := appErr.Context["fields"].([]string); ok {
		response.Fields = fields
	}
	writeJSON(w, status, response)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// writeJSON writes v as a JSON body with the given status
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
