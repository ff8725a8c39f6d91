package workflow

import (
	stderrors "errors"
	"slices"
	"time"

	"careerlaunch/internal/errors"
	"careerlaunch/internal/types"
)

// Phase is the state tag of a workflow run
type Phase string

const (
	PhaseIdle          Phase = "Idle"
	PhaseOptimizing    Phase = "Optimizing"
	PhaseSearchingJobs Phase = "SearchingJobs"
	PhaseComplete      Phase = "Complete"
	PhaseFailed        Phase = "Failed"
)

// IsActive reports whether an AI call may be outstanding in this phase
func (p Phase) IsActive() bool {
	return p == PhaseOptimizing || p == PhaseSearchingJobs
}

// IsTerminal reports whether the run has finished
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// FailureMessage is the error text of a failed run unless the user can fix
// the cause themselves
const FailureMessage = "Failed to process request. Please check your API key or try again later."

// failureMessage picks the user-facing text for cause. An unreadable job link
// keeps its own message so the user knows to paste the description instead.
func failureMessage(cause error) string {
	var appErr *errors.AppError
	if stderrors.As(cause, &appErr) && appErr.Type == errors.ErrorTypeLink {
		return appErr.Message
	}
	return FailureMessage
}

// State is a snapshot of the orchestrator. Snapshots are copies.
type State struct {
	Phase        Phase                     `json:"phase"`
	Progress     int                       `json:"progress"`
	Error        string                    `json:"error,omitempty"`
	Optimization *types.OptimizationResult `json:"optimization,omitempty"`
	JobSearch    *types.JobSearchResponse  `json:"jobSearch,omitempty"`
	RunID        string                    `json:"runId,omitempty"`
	Generation   uint64                    `json:"generation"`
	StartedAt    time.Time                 `json:"startedAt,omitzero"`
	UpdatedAt    time.Time                 `json:"updatedAt,omitzero"`
}

func (s State) clone() State {
	out := s
	if s.Optimization != nil {
		opt := *s.Optimization
		opt.KeyImprovements = slices.Clone(opt.KeyImprovements)
		opt.MissingKeywords = slices.Clone(opt.MissingKeywords)
		out.Optimization = &opt
	}
	if s.JobSearch != nil {
		jobs := *s.JobSearch
		jobs.GroundingChunks = make([]types.GroundingChunk, len(s.JobSearch.GroundingChunks))
		for i, chunk := range s.JobSearch.GroundingChunks {
			if chunk.Web != nil {
				web := *chunk.Web
				chunk.Web = &web
			}
			jobs.GroundingChunks[i] = chunk
		}
		out.JobSearch = &jobs
	}
	return out
}

// RunSummary describes a run that reached Complete or Failed
type RunSummary struct {
	RunID      string
	Generation uint64
	Phase      Phase
	MatchScore int
	Location   string
	Tone       types.Tone
	Error      string // user-facing failure message, the cause is only logged
	JobCount   int
	StartedAt  time.Time
	FinishedAt time.Time
}
