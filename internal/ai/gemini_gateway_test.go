package ai

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"careerlaunch/internal/config"
	"careerlaunch/internal/errors"
	"careerlaunch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

func TestOptimizeResumeWithText(t *testing.T) {
	fake := &fakeModels{respond: func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error) {
		return textResponse(validOptimizationJSON), nil
	}}
	g := newTestGateway(t, testConfig(), fake)

	result, err := g.OptimizeResume(context.Background(), textInput())
	require.NoError(t, err)
	assert.Equal(t, 78, result.MatchScore)
	assert.Equal(t, []string{"Added Kubernetes keywords", "Quantified impact"}, result.KeyImprovements)
	assert.Equal(t, []string{"Terraform"}, result.MissingKeywords)
	assert.True(t, strings.HasPrefix(result.RevisedResume, "# **JANE DOE**"))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	call := calls[0]
	assert.Equal(t, "gemini-2.5-flash", call.model)

	texts := partTexts(t, call)
	require.Len(t, texts, 3)
	assert.Contains(t, texts[0], "You are an expert Career Coach and Resume Writer.")
	assert.True(t, strings.HasSuffix(texts[0], "**Desired Tone:** Concise"))
	assert.Equal(t, "Candidate Resume Text:\n"+textInput().ResumeText, texts[1])
	assert.Equal(t, "Target Job Description:\n"+textInput().JobDescription, texts[2])

	assert.Equal(t, "application/json", call.config.ResponseMIMEType)
	require.NotNil(t, call.config.ResponseSchema)
	assert.ElementsMatch(t, []string{"revisedResume", "matchScore", "keyImprovements", "missingKeywords", "summary"},
		call.config.ResponseSchema.Required)
	require.NotNil(t, call.config.Temperature)
	assert.Equal(t, float32(0), *call.config.Temperature)
	require.NotNil(t, call.config.Seed)
	assert.Equal(t, int32(1), *call.config.Seed)
	assert.Empty(t, call.config.Tools)
}

func TestOptimizeResumeWithDocument(t *testing.T) {
	fake := &fakeModels{respond: func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error) {
		return textResponse(validOptimizationJSON), nil
	}}
	g := newTestGateway(t, testConfig(), fake)

	input := textInput()
	input.ResumeText = ""
	input.ResumeFile = &types.ResumeDocument{Data: []byte("%PDF-1.4 resume"), MIMEType: "application/pdf", Name: "cv.pdf"}

	_, err := g.OptimizeResume(context.Background(), input)
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	parts := calls[0].contents[0].Parts
	require.Len(t, parts, 4)
	assert.Equal(t, "Candidate Resume Document:", parts[1].Text)
	require.NotNil(t, parts[2].InlineData)
	assert.Equal(t, "application/pdf", parts[2].InlineData.MIMEType)
	assert.Equal(t, []byte("%PDF-1.4 resume"), parts[2].InlineData.Data)
	assert.True(t, strings.HasPrefix(parts[3].Text, "Target Job Description:\n"))
}

func TestOptimizeResumeUnresolvableLinkMakesNoGenerationCall(t *testing.T) {
	tests := []struct {
		name    string
		respond func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error)
	}{
		{"short answer", func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error) {
			return textResponse("Job at Acme."), nil
		}},
		{"failure marker", func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error) {
			return textResponse("Could not retrieve the page. " + strings.Repeat("The link is private. ", 5)), nil
		}},
		{"transport failure", func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error) {
			return nil, &googleapi.Error{Code: http.StatusBadRequest}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeModels{respond: tt.respond}
			g := newTestGateway(t, testConfig(), fake)

			input := textInput()
			input.JobDescriptionType = types.JobDescriptionLink
			input.JobDescriptionLink = "https://jobs.example.com/123"

			_, err := g.OptimizeResume(context.Background(), input)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeLink))

			var appErr *errors.AppError
			require.True(t, stderrors.As(err, &appErr))
			assert.Equal(t, errors.ErrCodeLinkUnresolvable, appErr.Code)
			assert.Equal(t, LinkUnresolvableMessage, appErr.Message)

			calls := fake.Calls()
			require.Len(t, calls, 1, "only the resolver call is made")
			assert.True(t, isSearchCall(calls[0]))
			assert.Contains(t, partTexts(t, calls[0])[0], "Navigate to this URL: https://jobs.example.com/123 and find the job posting.")
		})
	}
}

func TestOptimizeResumeUsesResolvedLink(t *testing.T) {
	posting := "Senior Platform Engineer at Acme. Responsibilities: run Kubernetes. Requirements: Go, Terraform."
	fake := &fakeModels{respond: func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error) {
		if isSearchCall(call) {
			return textResponse(posting), nil
		}
		return textResponse(validOptimizationJSON), nil
	}}
	g := newTestGateway(t, testConfig(), fake)

	input := textInput()
	input.JobDescriptionType = types.JobDescriptionLink
	input.JobDescriptionLink = "https://jobs.example.com/123"

	_, err := g.OptimizeResume(context.Background(), input)
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	texts := partTexts(t, calls[1])
	assert.Equal(t, "Target Job Description:\n"+posting, texts[len(texts)-1])
}

func TestOptimizeResumeRejectsMalformedResponse(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		code   string
		fields []string
	}{
		{"empty", "", errors.ErrCodeAIEmptyResponse, nil},
		{"not json", "Here is your resume!", errors.ErrCodeAIResponseInvalid, nil},
		{"missing fields", `{"revisedResume": "# **A**", "matchScore": 50}`, errors.ErrCodeAIResponseInvalid,
			[]string{"keyImprovements", "missingKeywords", "summary"}},
		{"score out of range", strings.Replace(validOptimizationJSON, `"matchScore": 78`, `"matchScore": 150`, 1),
			errors.ErrCodeAIResponseInvalid, []string{"matchScore"}},
		{"wrong item type", strings.Replace(validOptimizationJSON, `["Terraform"]`, `[42]`, 1),
			errors.ErrCodeAIResponseInvalid, []string{"missingKeywords"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeModels{respond: func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error) {
				return textResponse(tt.body), nil
			}}
			g := newTestGateway(t, testConfig(), fake)

			_, err := g.OptimizeResume(context.Background(), textInput())
			require.Error(t, err)

			var appErr *errors.AppError
			require.True(t, stderrors.As(err, &appErr))
			assert.Equal(t, errors.ErrorTypeAIResponse, appErr.Type)
			assert.Equal(t, tt.code, appErr.Code)
			if tt.fields != nil {
				assert.Equal(t, tt.fields, appErr.Context["fields"])
			}
			assert.Len(t, fake.Calls(), 1, "response errors are not retried")
		})
	}
}

func TestFindMatchingJobs(t *testing.T) {
	resp := textResponse("**Here are the top 5 active job listings matching your profile in Berlin, Germany:**")
	resp.Candidates[0].GroundingMetadata = &genai.GroundingMetadata{
		GroundingChunks: []*genai.GroundingChunk{
			{Web: &genai.GroundingChunkWeb{URI: "https://www.linkedin.com/jobs/view/1", Title: "linkedin.com"}},
			{},
			{Web: &genai.GroundingChunkWeb{URI: "https://boards.greenhouse.io/acme/2", Title: "greenhouse.io"}},
		},
	}
	fake := &fakeModels{respond: func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error) {
		return resp, nil
	}}
	g := newTestGateway(t, testConfig(), fake)

	got, err := g.FindMatchingJobs(context.Background(), "# **JANE DOE**", "Berlin, Germany")
	require.NoError(t, err)
	assert.Equal(t, resp.Text(), got.Text)
	require.Len(t, got.GroundingChunks, 3)
	assert.Nil(t, got.GroundingChunks[1].Web)
	assert.Equal(t, []types.WebReference{
		{URI: "https://www.linkedin.com/jobs/view/1", Title: "linkedin.com"},
		{URI: "https://boards.greenhouse.io/acme/2", Title: "greenhouse.io"},
	}, got.WebReferences())

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.True(t, isSearchCall(calls[0]))
	assert.Nil(t, calls[0].config.ResponseSchema)
	texts := partTexts(t, calls[0])
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "You are an expert Tech Recruiter.")
	assert.Contains(t, texts[0], "**CRITICAL LOCATION RULES (MUST FOLLOW):**")
	assert.Contains(t, texts[0], `**User Target Location:** "Berlin, Germany".`)
	assert.Contains(t, texts[0], `**Explicitly use the location "Berlin, Germany" in your search queries.**`)
	assert.NotContains(t, texts[0], PlaceholderLocationRules)
	assert.Equal(t, "Optimized Resume Context:\n# **JANE DOE**", texts[1])
}

func TestFindMatchingJobsWithoutLocationInfersIt(t *testing.T) {
	fake := &fakeModels{respond: func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error) {
		return textResponse("**We found only 2 active jobs in Toronto that match your criteria.**"), nil
	}}
	g := newTestGateway(t, testConfig(), fake)

	got, err := g.FindMatchingJobs(context.Background(), "resume", "")
	require.NoError(t, err)
	assert.Empty(t, got.GroundingChunks)
	assert.NotNil(t, got.GroundingChunks)

	instruction := partTexts(t, fake.Calls()[0])[0]
	assert.Contains(t, instruction, "The user did not specify a location.")
	assert.NotContains(t, instruction, "MUST FOLLOW")
}

func TestFindMatchingJobsEmptyText(t *testing.T) {
	g := newTestGateway(t, testConfig(), &fakeModels{})

	_, err := g.FindMatchingJobs(context.Background(), "resume", "Canada")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAIResponse))
}

func TestTransportErrors(t *testing.T) {
	t.Run("retryable status is retried", func(t *testing.T) {
		attempts := 0
		fake := &fakeModels{respond: func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error) {
			attempts++
			if attempts < 3 {
				return nil, &googleapi.Error{Code: http.StatusServiceUnavailable}
			}
			return textResponse("listings"), nil
		}}
		g := newTestGateway(t, testConfig(), fake)

		_, err := g.FindMatchingJobs(context.Background(), "resume", "Canada")
		require.NoError(t, err)
		assert.Len(t, fake.Calls(), 3)
	})

	t.Run("retries are bounded", func(t *testing.T) {
		fake := &fakeModels{respond: func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error) {
			return nil, &googleapi.Error{Code: http.StatusTooManyRequests}
		}}
		g := newTestGateway(t, testConfig(), fake)

		_, err := g.FindMatchingJobs(context.Background(), "resume", "Canada")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeAITransport))
		assert.Len(t, fake.Calls(), 3, "one call plus two retries")
	})

	t.Run("client error is not retried", func(t *testing.T) {
		fake := &fakeModels{respond: func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error) {
			return nil, &googleapi.Error{Code: http.StatusUnauthorized}
		}}
		g := newTestGateway(t, testConfig(), fake)

		_, err := g.OptimizeResume(context.Background(), textInput())
		var appErr *errors.AppError
		require.True(t, stderrors.As(err, &appErr))
		assert.Equal(t, errors.ErrCodeAIServiceFailed, appErr.Code)
		assert.Len(t, fake.Calls(), 1)
	})

	t.Run("operation timeout", func(t *testing.T) {
		cfg := testConfig()
		timeout := 20 * time.Millisecond
		cfg.AI.SearchJobs.Timeout = &timeout
		fake := &fakeModels{respond: func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}
		g := newTestGateway(t, cfg, fake)

		_, err := g.FindMatchingJobs(context.Background(), "resume", "Canada")
		var appErr *errors.AppError
		require.True(t, stderrors.As(err, &appErr))
		assert.Equal(t, errors.ErrorTypeAITransport, appErr.Type)
		assert.Equal(t, errors.ErrCodeAITimeout, appErr.Code)
		assert.Len(t, fake.Calls(), 1)
	})
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cfg := testConfig()
	cfg.AI.MaxRetries = 0
	cfg.AI.SearchJobs.CircuitBreaker = config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MinRequests:      2,
		FailureThreshold: 0.5,
	}
	fake := &fakeModels{respond: func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error) {
		return nil, &googleapi.Error{Code: http.StatusInternalServerError}
	}}
	g := newTestGateway(t, cfg, fake)

	for i := 0; i < 2; i++ {
		_, err := g.FindMatchingJobs(context.Background(), "resume", "Canada")
		require.Error(t, err)
	}

	_, err := g.FindMatchingJobs(context.Background(), "resume", "Canada")
	var appErr *errors.AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, errors.ErrCodeAICircuitOpen, appErr.Code)
	assert.Len(t, fake.Calls(), 2, "an open breaker makes no call")

	stats := g.GetCircuitBreakerStats()
	assert.Equal(t, false, stats["overall_healthy"])
	assert.Equal(t, "open", stats[config.OperationSearchJobs].(map[string]any)["state"])
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"too many requests", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"bad gateway", &googleapi.Error{Code: http.StatusBadGateway}, true},
		{"gateway timeout", &googleapi.Error{Code: http.StatusGatewayTimeout}, true},
		{"bad request", &googleapi.Error{Code: http.StatusBadRequest}, false},
		{"gemini unavailable", genai.APIError{Code: http.StatusServiceUnavailable}, true},
		{"gemini forbidden", genai.APIError{Code: http.StatusForbidden}, false},
		{"deadline", context.DeadlineExceeded, false},
		{"cancelled", context.Canceled, false},
		{"plain", stderrors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

func TestBackoffIsCapped(t *testing.T) {
	g := &GeminiGateway{retryBaseDelay: time.Second}
	assert.GreaterOrEqual(t, g.backoff(1), time.Second)
	assert.Less(t, g.backoff(1), 1100*time.Millisecond)
	assert.Equal(t, maxBackoff, g.backoff(10))
}

func TestGetModelInfo(t *testing.T) {
	fake := &fakeModels{model: &genai.Model{Name: "models/gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash", Version: "001"}}
	g := newTestGateway(t, testConfig(), fake)

	info := g.GetModelInfo(context.Background())
	assert.True(t, info.Available)
	assert.Equal(t, "gemini-2.5-flash", info.Name)
	assert.Equal(t, "Gemini 2.5 Flash", info.DisplayName)

	fake.getErr = &googleapi.Error{Code: http.StatusNotFound}
	info = g.GetModelInfo(context.Background())
	assert.False(t, info.Available)
	assert.Contains(t, info.Error, "Failed to get model info")
}

func TestUpdateAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.AI.ResolveURL.APIKey = "resolver-own-key"

	clients := map[string]*fakeModels{}
	factory := func(ctx context.Context, apiKey string) (modelsAPI, error) {
		if clients[apiKey] == nil {
			clients[apiKey] = &fakeModels{respond: func(ctx context.Context, call generateCall) (*genai.GenerateContentResponse, error) {
				return textResponse("listings"), nil
			}}
		}
		return clients[apiKey], nil
	}
	g, err := newGeminiGateway(cfg, GatewayOptions{}, factory)
	require.NoError(t, err)

	require.Error(t, g.UpdateAPIKey(""))
	require.NoError(t, g.UpdateAPIKey("rotated-key"))

	_, err = g.FindMatchingJobs(context.Background(), "resume", "Canada")
	require.NoError(t, err)
	assert.Len(t, clients["rotated-key"].Calls(), 1)
	assert.Empty(t, clients["test-key"].Calls())

	assert.Equal(t, "resolver-own-key", g.operation(config.OperationResolveURL).cfg.APIKey)
	assert.Equal(t, "rotated-key", g.operation(config.OperationOptimize).cfg.APIKey)
}

func TestNewGatewayRequiresKey(t *testing.T) {
	cfg := testConfig()
	cfg.AI.APIKey = ""

	_, err := NewGateway(cfg, GatewayOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
