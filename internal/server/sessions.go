package server

import (
	"context"
	"sync"
	"time"

	careerErrors "careerlaunch/internal/errors"
	"careerlaunch/internal/observability"
	"careerlaunch/internal/workflow"

	"github.com/google/uuid"
)

// Session is one client's workflow
type Session struct {
	ID           string
	Orchestrator *workflow.Orchestrator
	CreatedAt    time.Time

	lastSeen time.Time
}

// SessionRegistry owns the live sessions and evicts idle ones
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	newOrchestrator func() *workflow.Orchestrator
	ttl             time.Duration
	maxSessions     int
	metrics         *observability.Metrics
	logger          *careerErrors.Logger
}

// NewSessionRegistry creates a registry that builds one orchestrator per session
func NewSessionRegistry(newOrchestrator func() *workflow.Orchestrator, ttl time.Duration, maxSessions int, metrics *observability.Metrics, logger *careerErrors.Logger) *SessionRegistry {
	if logger == nil {
		logger = careerErrors.NewNopLogger()
	}
	return &SessionRegistry{
		sessions:        make(map[string]*Session),
		newOrchestrator: newOrchestrator,
		ttl:             ttl,
		maxSessions:     maxSessions,
		metrics:         metrics,
		logger:          logger,
	}
}

// Create starts a new idle session
func (r *SessionRegistry) Create(ctx context.Context) (*Session, error) {
	r.mu.Lock()
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		return nil, careerErrors.NewConflictError(careerErrors.ErrCodeTooManySessions, "Too many active sessions, try again later", nil).
			WithContext("max_sessions", r.maxSessions)
	}

	now := time.Now()
	session := &Session{
		ID:           uuid.NewString(),
		Orchestrator: r.newOrchestrator(),
		CreatedAt:    now,
		lastSeen:     now,
	}
	r.sessions[session.ID] = session
	r.mu.Unlock()

	r.metrics.AddActiveSessions(ctx, 1)
	r.logger.Debug("Session created", "session_id", session.ID)
	return session, nil
}

// Get returns a session and marks it as used
func (r *SessionRegistry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, careerErrors.NewNotFoundError(careerErrors.ErrCodeSessionNotFound, "Session not found", nil).
			WithContext("session_id", id)
	}
	session.lastSeen = time.Now()
	return session, nil
}

// Delete resets and drops a session
func (r *SessionRegistry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	session, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return careerErrors.NewNotFoundError(careerErrors.ErrCodeSessionNotFound, "Session not found", nil).
			WithContext("session_id", id)
	}
	session.Orchestrator.Close()
	r.metrics.AddActiveSessions(ctx, -1)
	return nil
}

// EvictIdle drops sessions unused for longer than the TTL. Sessions with an
// active run are kept.
func (r *SessionRegistry) EvictIdle(ctx context.Context, now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	var evicted []*Session
	for id, session := range r.sessions {
		if now.Sub(session.lastSeen) <= r.ttl || session.Orchestrator.State().Phase.IsActive() {
			continue
		}
		delete(r.sessions, id)
		evicted = append(evicted, session)
	}
	r.mu.Unlock()

	for _, session := range evicted {
		session.Orchestrator.Close()
	}
	if len(evicted) > 0 {
		r.metrics.AddActiveSessions(ctx, -int64(len(evicted)))
		r.logger.Info("Evicted idle sessions", "count", len(evicted))
	}
	return len(evicted)
}

// Run evicts idle sessions periodically until ctx is done, then closes every session
func (r *SessionRegistry) Run(ctx context.Context) {
	interval := r.ttl / 2
	if interval <= 0 || interval > time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			r.EvictIdle(ctx, now)
		case <-ctx.Done():
			r.CloseAll(context.WithoutCancel(ctx))
			return
		}
	}
}

// CloseAll resets and drops every session
func (r *SessionRegistry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, session := range sessions {
		session.Orchestrator.Close()
	}
	if len(sessions) > 0 {
		r.metrics.AddActiveSessions(ctx, -int64(len(sessions)))
	}
}

// Count returns the number of live sessions
func (r *SessionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// GetStats returns session statistics for the stats endpoint
func (r *SessionRegistry) GetStats() map[string]any {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	r.mu.Unlock()

	phases := make(map[string]int)
	for _, session := range sessions {
		phases[string(session.Orchestrator.State().Phase)]++
	}

	return map[string]any{
		"active":       len(sessions),
		"max_sessions": r.maxSessions,
		"ttl":          r.ttl.String(),
		"by_phase":     phases,
	}
}
