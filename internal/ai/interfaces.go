package ai

import (
	"context"

	"careerlaunch/internal/types"

	"google.golang.org/genai"
)

// Gateway is the boundary between the workflow and the generative model
type Gateway interface {
	// OptimizeResume rewrites the resume for the target job. A link target is
	// resolved first and an unresolvable link fails before any generation call.
	OptimizeResume(ctx context.Context, input types.UserInput) (*types.OptimizationResult, error)
	// FindMatchingJobs searches the web for postings that match the resume near location
	FindMatchingJobs(ctx context.Context, resumeText, location string) (*types.JobSearchResponse, error)
}

// HealthReporter is implemented by gateways that can report model availability
type HealthReporter interface {
	GetModelInfo(ctx context.Context) *ModelInfo
	GetCircuitBreakerStats() map[string]any
}

// KeyUpdater is implemented by gateways whose credentials can be rotated at runtime
type KeyUpdater interface {
	UpdateAPIKey(apiKey string) error
}

// Resolver turns a job posting link into job description text. It returns ""
// when the link cannot be read and never fails.
type Resolver interface {
	Resolve(ctx context.Context, url string) string
}

// modelsAPI is the subset of *genai.Models the gateway calls
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}
