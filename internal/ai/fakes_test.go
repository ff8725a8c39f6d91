package ai

import (
	"context"
	"sync"
	"testing"
	"time"

	"careerlaunch/internal/config"
	"careerlaunch/internal/types"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type generateCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

// fakeModels stands in for *genai.Models
type fakeModels struct {
	mu       sync.Mutex
	calls    []generateCall
	respond  func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error)
	model    *genai.Model
	getErr   error
	getCalls int
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	call := generateCall{model: model, contents: contents, config: cfg}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	respond := f.respond
	f.mu.Unlock()

	if respond == nil {
		return textResponse(""), nil
	}
	return respond(ctx, call)
}

func (f *fakeModels) Get(ctx context.Context, model string, cfg *genai.GetModelConfig) (*genai.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.model != nil {
		return f.model, nil
	}
	return &genai.Model{Name: model}, nil
}

func (f *fakeModels) Calls() []generateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]generateCall(nil), f.calls...)
}

// isSearchCall reports whether the call carries the web search tool
func isSearchCall(call generateCall) bool {
	return call.config != nil && len(call.config.Tools) > 0 && call.config.Tools[0].GoogleSearch != nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     120,
			CandidatesTokenCount: 80,
			TotalTokenCount:      200,
		},
	}
}

// partTexts returns the text of every part of the single content, "" for inline data
func partTexts(t *testing.T, call generateCall) []string {
	t.Helper()
	require.Len(t, call.contents, 1)
	texts := make([]string, 0, len(call.contents[0].Parts))
	for _, part := range call.contents[0].Parts {
		texts = append(texts, part.Text)
	}
	return texts
}

func testConfig() *config.Config {
	timeout := 5 * time.Second
	retries := 2
	return &config.Config{AI: config.AIConfig{
		Provider:          "gemini",
		Model:             "gemini-2.5-flash",
		APIKey:            "test-key",
		Timeout:           timeout,
		MaxRetries:        retries,
		Temperature:       0,
		Seed:              1,
		ModelCheckTimeout: time.Second,
	}}
}

func newTestGateway(t *testing.T, cfg *config.Config, fake *fakeModels) *GeminiGateway {
	t.Helper()
	g, err := newGeminiGateway(cfg, GatewayOptions{}, func(ctx context.Context, apiKey string) (modelsAPI, error) {
		return fake, nil
	})
	require.NoError(t, err)
	g.retryBaseDelay = time.Millisecond
	return g
}

const validOptimizationJSON = `{
  "revisedResume": "# **JANE DOE**\n\n## **SUMMARY**\n\nPlatform engineer",
  "matchScore": 78,
  "keyImprovements": ["Added Kubernetes keywords", "Quantified impact"],
  "missingKeywords": ["Terraform"],
  "summary": "Better aligned with the platform role."
}`

func textInput() types.UserInput {
	return types.UserInput{
		ResumeText:         "Jane Doe, platform engineer with eight years of Go and Kubernetes.",
		JobDescription:     "Senior platform engineer, Go, Kubernetes, Terraform, on-call.",
		JobDescriptionType: types.JobDescriptionText,
		Tone:               types.ToneConcise,
		Country:            "Germany",
		State:              "Berlin",
	}
}
