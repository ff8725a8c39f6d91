package server

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"careerlaunch/internal/observability"
	"careerlaunch/internal/utils"
)

// displayServerInfo prints the endpoint table and the protection settings
func (s *Server) displayServerInfo(om *observability.ObservabilityManager) {
	out := s.Out
	if out == nil {
		out = io.Discard
	}

	s.displayEndpoints(out, om)
	for _, line := range s.protectionSummary() {
		_, _ = fmt.Fprintln(out, line)
	}
}

func (s *Server) displayEndpoints(out io.Writer, om *observability.ObservabilityManager) {
	_, _ = fmt.Fprintln(out, "Available endpoints:")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, rt := range s.routes(om) {
		method, path, _ := strings.Cut(rt.pattern, " ")
		access := "protected"
		if rt.public {
			access = "public"
		}
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", method, path, access, rt.description)
	}
	_ = tw.Flush()
}

// protectionSummary describes authentication, body limits and rate limiting,
// with a warning line for each one that is off
func (s *Server) protectionSummary() []string {
	var lines []string

	if len(s.APIKeys) > 0 {
		lines = append(lines,
			fmt.Sprintf("API authentication: ENABLED (%d keys configured)", len(s.APIKeys)),
			"Send 'X-API-Key: <key>' or 'Authorization: Bearer <key>' on /api/v1 requests")
	} else {
		lines = append(lines,
			"API authentication: DISABLED (no API keys configured)",
			"WARNING: API endpoints are publicly accessible!")
	}

	if s.MaxRequestSize > 0 {
		lines = append(lines, fmt.Sprintf("Request size limit: %s", utils.FormatFileSize(s.MaxRequestSize)))
	} else {
		lines = append(lines, "Request size limit: DISABLED", "WARNING: No request size limits configured!")
	}

	if s.RateLimit != nil && s.RateLimit.Enabled {
		var scopes []string
		if s.RateLimit.ByAPIKey {
			scopes = append(scopes, "per API key")
		}
		if s.RateLimit.ByIP {
			scopes = append(scopes, "per client IP")
		}
		lines = append(lines, fmt.Sprintf("Rate limiting: ENABLED (%d requests/min, burst %d, %s)",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity, strings.Join(scopes, " then ")))
	} else {
		lines = append(lines, "Rate limiting: DISABLED", "WARNING: No rate limiting configured!")
	}

	if s.Sessions != nil {
		lines = append(lines, fmt.Sprintf("Sessions: max %d, idle TTL %s", s.Sessions.maxSessions, s.Sessions.ttl))
	}

	return lines
}
