package server

import (
	"net/http"
	"strings"

	"careerlaunch/internal/observability"
)

// route is one entry of the API surface. Public routes skip rate limiting,
// authentication and the body size limit.
type route struct {
	pattern     string
	description string
	public      bool
	handler     http.HandlerFunc
}

// routes lists every endpoint the server registers
func (s *Server) routes(om *observability.ObservabilityManager) []route {
	return []route{
		{"GET /health", "Health check", true, s.healthHandler},
		{"GET /stats", "Server statistics", true, s.statsHandler},

		{"POST /api/v1/sessions", "Create a session", false, s.createSessionHandler},
		{"GET /api/v1/sessions/{id}", "Current run state", false, s.getSessionHandler},
		{"DELETE /api/v1/sessions/{id}", "Drop a session", false, s.deleteSessionHandler},
		{"POST /api/v1/sessions/{id}/submit", "Start optimization and job search", false, s.createSubmitHandler(om)},
		{"POST /api/v1/sessions/{id}/reset", "Abandon the current run", false, s.resetHandler},
		{"GET /api/v1/sessions/{id}/events", "Progress stream (SSE)", false, s.eventsHandler},
		{"GET /api/v1/sessions/{id}/export/{kind}", "Download resume or jobs as markdown", false, s.createExportHandler(om)},

		{"GET /api/v1/locations", "Countries and states", false, s.locationsHandler},
		{"GET /api/v1/history", "Recent runs", false, s.historyHandler},
	}
}

// setupRoutes registers the route table on a new mux
func (s *Server) setupRoutes(om *observability.ObservabilityManager) *http.ServeMux {
	mux := http.NewServeMux()

	rateLimit := s.rateLimitMiddleware()
	sizeLimit := s.requestSizeLimitMiddleware()

	for _, rt := range s.routes(om) {
		h := rt.handler
		if !rt.public {
			h = rateLimit(s.authMiddleware(sizeLimit(h)))
		}
		mux.HandleFunc(rt.pattern, h)
	}

	return mux
}

// authMiddleware provides API key authentication
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Skip authentication if no API keys are configured
		if len(s.APIKeys) == 0 {
			next(w, r)
			return
		}

		apiKey := requestAPIKey(r)
		if apiKey == "" {
			s.Logger.Info("Authentication failed: missing API key",
				"endpoint", r.Pattern,
				"client_ip", getClientIP(r))
			writeErrorResponse(w, "Missing API key", "X-API-Key header or Authorization Bearer token required", http.StatusUnauthorized)
			return
		}

		if !s.APIKeys[apiKey] {
			s.Logger.Info("Authentication failed: invalid API key",
				"endpoint", r.Pattern,
				"client_ip", getClientIP(r),
				"api_key_prefix", maskAPIKey(apiKey))
			writeErrorResponse(w, "Invalid API key", "Unauthorized access", http.StatusUnauthorized)
			return
		}

		s.Logger.Debug("API authentication successful",
			"endpoint", r.Pattern,
			"api_key_prefix", maskAPIKey(apiKey))

		next(w, r)
	}
}

// requestAPIKey reads the key from X-API-Key, falling back to a Bearer token
func requestAPIKey(r *http.Request) string {
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	return ""
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.MaxRequestSize > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
			}
			next(w, r)
		}
	}
}

// maskAPIKey masks an API key for logging (shows only first 8 characters)
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
