package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	careerErrors "careerlaunch/internal/errors"
	"careerlaunch/internal/formatters"
	"careerlaunch/internal/observability"
	"careerlaunch/internal/types"
	"careerlaunch/internal/workflow"

	"go.opentelemetry.io/otel/attribute"
)

// SessionResponse is returned by every session endpoint
type SessionResponse struct {
	ID    string         `json:"id"`
	State workflow.State `json:"state"`
}

const sseKeepAlive = 15 * time.Second

// createSessionHandler starts a new idle session
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.Sessions.Create(r.Context())
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{ID: session.ID, State: session.Orchestrator.State()})
}

// getSessionHandler returns the current state snapshot
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.Sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{ID: session.ID, State: session.Orchestrator.State()})
}

// createSubmitHandler validates the input and starts a run
func (s *Server) createSubmitHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("careerlaunch.api")
		ctx, span := tracer.Start(ctx, "api.submit")
		defer span.End()

		session, err := s.Sessions.Get(r.PathValue("id"))
		if err != nil {
			span.RecordError(err)
			s.writeAppError(w, err)
			return
		}

		var input types.UserInput
		if err := parseJSONRequest(r, &input); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		span.SetAttributes(
			attribute.String("session.id", session.ID),
			attribute.String("input.job_description_type", string(input.JobDescriptionType)),
			attribute.Bool("input.has_document", input.HasDocument()),
			attribute.Int("input.resume_length", len(input.ResumeText)),
			attribute.String("input.tone", string(input.Tone)),
		)

		state, err := session.Orchestrator.Submit(ctx, input)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", string(careerErrors.TypeOf(err))))
			s.writeAppError(w, err)
			return
		}

		span.SetAttributes(attribute.String("run.id", state.RunID))
		writeJSON(w, http.StatusAccepted, SessionResponse{ID: session.ID, State: state})
	}
}

// resetHandler abandons the current run
func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.Sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{ID: session.ID, State: session.Orchestrator.Reset()})
}

// deleteSessionHandler resets and drops a session
func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// eventsHandler streams state snapshots as Server-Sent Events until the run
// finishes or the client goes away
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.Sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	// The stream outlives the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	updates, unsubscribe := session.Orchestrator.Subscribe(32)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case state, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, state); err != nil {
				s.Logger.Debug("Event stream closed", "session_id", session.ID, "error", err.Error())
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
			if state.Phase.IsTerminal() {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, state workflow.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: state\nid: %d-%d\ndata: %s\n\n", state.Generation, state.Progress, data)
	return err
}

// createExportHandler downloads a result region as a markdown file
func (s *Server) createExportHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := om.Tracer("careerlaunch.api").Start(r.Context(), "api.export")
		defer span.End()

		session, err := s.Sessions.Get(r.PathValue("id"))
		if err != nil {
			span.RecordError(err)
			s.writeAppError(w, err)
			return
		}

		kind := formatters.ExportKind(r.PathValue("kind"))
		span.SetAttributes(attribute.String("export.kind", string(kind)))

		export, err := formatters.BuildExport(kind, session.Orchestrator.State())
		if err != nil {
			span.RecordError(err)
			s.writeAppError(w, err)
			return
		}

		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(export.Content)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(export.Content); err != nil {
			s.Logger.LogError(err, "Failed to write export", "session_id", session.ID)
		}
	}
}

// locationsHandler returns the country catalogue, or one country's states
func (s *Server) locationsHandler(w http.ResponseWriter, r *http.Request) {
	if country := r.URL.Query().Get("country"); country != "" {
		states, ok := types.StatesOf(country)
		if !ok {
			writeErrorResponse(w, "Unknown country", fmt.Sprintf("%q is not in the location catalogue", country), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"country": country, "states": states})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"countries": types.Countries(),
		"states":    types.LocationCatalogue(),
	})
}

// historyHandler lists recent runs when history is enabled
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "runs": []any{}})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeErrorResponse(w, "Invalid limit", "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := s.History.List(r.Context(), limit)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "runs": records})
}
