package ai

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"careerlaunch/internal/config"
	"careerlaunch/internal/errors"
	"careerlaunch/internal/observability"
	"careerlaunch/internal/types"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// LinkUnresolvableMessage is shown when a job posting link cannot be read
const LinkUnresolvableMessage = "Unable to read the job description from the provided link. The link might be expired, private, or blocking access. Please copy and paste the job text manually."

const (
	maxBackoff            = 30 * time.Second
	defaultRetryBaseDelay = time.Second
)

// modelsFactory creates the generation client for an API key
type modelsFactory func(ctx context.Context, apiKey string) (modelsAPI, error)

func newGenAIModels(ctx context.Context, apiKey string) (modelsAPI, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

// operationClient binds one gateway operation to its configuration and breaker
type operationClient struct {
	name     string
	spanName string
	cfg      config.OperationAIConfig
	models   modelsAPI
	breaker  *AICircuitBreaker
}

// GatewayOptions carries the optional collaborators of the gateway
type GatewayOptions struct {
	Prompts PromptSource
	Metrics *observability.Metrics
	Logger  *errors.Logger
}

// GeminiGateway implements Gateway on the Gemini API
type GeminiGateway struct {
	mu      sync.RWMutex
	ops     map[string]*operationClient
	apiKey  string
	factory modelsFactory

	modelBreaker      *ModelCircuitBreaker
	modelCheckTimeout time.Duration
	resolver          Resolver
	prompts           PromptSource
	metrics           *observability.Metrics
	logger            *errors.Logger
	tracer            trace.Tracer
	retryBaseDelay    time.Duration
}

// Ensure GeminiGateway implements the gateway contracts
var (
	_ Gateway        = (*GeminiGateway)(nil)
	_ HealthReporter = (*GeminiGateway)(nil)
	_ KeyUpdater     = (*GeminiGateway)(nil)
)

// NewGeminiGateway creates a gateway with one Gemini client per operation
func NewGeminiGateway(cfg *config.Config, opts GatewayOptions) (*GeminiGateway, error) {
	return newGeminiGateway(cfg, opts, newGenAIModels)
}

func newGeminiGateway(cfg *config.Config, opts GatewayOptions, factory modelsFactory) (*GeminiGateway, error) {
	logger := opts.Logger
	if logger == nil {
		logger = errors.NewNopLogger()
	}

	g := &GeminiGateway{
		ops:               make(map[string]*operationClient, len(config.Operations)),
		apiKey:            cfg.AI.APIKey,
		factory:           factory,
		modelCheckTimeout: cfg.AI.ModelCheckTimeout,
		prompts:           opts.Prompts,
		metrics:           opts.Metrics,
		logger:            logger,
		tracer:            otel.Tracer("careerlaunch.ai.gemini"),
		retryBaseDelay:    defaultRetryBaseDelay,
	}
	if g.modelCheckTimeout <= 0 {
		g.modelCheckTimeout = 10 * time.Second
	}

	spanNames := map[string]string{
		config.OperationOptimize:   "optimize_resume",
		config.OperationSearchJobs: "find_matching_jobs",
		config.OperationResolveURL: "resolve_url",
	}

	for _, name := range config.Operations {
		opCfg, err := cfg.GetOperationConfig(name)
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, err.Error(), err)
		}
		if opCfg.Provider != "gemini" {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("Unsupported AI provider for %s: %s", name, opCfg.Provider), nil)
		}

		models, err := factory(context.Background(), opCfg.APIKey)
		if err != nil {
			return nil, errors.NewAITransportError(errors.ErrCodeAIServiceFailed, "Failed to create Gemini client", err)
		}

		logger.Debug("Initializing AI operation",
			"operation", name,
			"model", opCfg.Model,
			"temperature", *opCfg.Temperature,
			"timeout", *opCfg.Timeout,
			"max_retries", *opCfg.MaxRetries)

		g.ops[name] = &operationClient{
			name:     name,
			spanName: spanNames[name],
			cfg:      opCfg,
			models:   models,
			breaker:  NewAICircuitBreaker(name, opCfg.CircuitBreaker, logger),
		}
	}

	optimizeCfg := g.ops[config.OperationOptimize].cfg
	g.modelBreaker = NewModelCircuitBreaker(config.OperationOptimize, optimizeCfg.CircuitBreaker, logger)

	var fetcher *PageFetcher
	if cfg.AI.Resolver.DirectFetch {
		fetcher = NewPageFetcher(cfg.AI.Resolver)
	}
	g.resolver = NewURLResolver(g.askForJobPosting, fetcher, logger)

	return g, nil
}

// operation returns the client of a named operation
func (g *GeminiGateway) operation(name string) *operationClient {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ops[name]
}

// OptimizeResume rewrites the resume for the target job
func (g *GeminiGateway) OptimizeResume(ctx context.Context, input types.UserInput) (*types.OptimizationResult, error) {
	input = input.Normalize()
	op := g.operation(config.OperationOptimize)

	ctx, span := g.startSpan(ctx, op,
		attribute.String("input.tone", string(input.Tone)),
		attribute.String("input.job_type", string(input.JobDescriptionType)),
		attribute.Bool("input.has_document", input.HasDocument()),
	)
	defer span.End()

	jobDescription := input.JobDescription
	if input.JobDescriptionType == types.JobDescriptionLink {
		jobDescription = g.resolver.Resolve(ctx, input.JobDescriptionLink)
		if jobDescription == "" {
			err := errors.NewLinkError(errors.ErrCodeLinkUnresolvable, LinkUnresolvableMessage, nil).
				WithContext("url", input.JobDescriptionLink)
			recordSpanError(span, err)
			return nil, err
		}
	}
	span.SetAttributes(attribute.Int("input.job_length", len(jobDescription)))

	contents := buildOptimizeContents(g.prompts, input, jobDescription)
	genCfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   optimizationResponseSchema,
		Temperature:      genai.Ptr(*op.cfg.Temperature),
		Seed:             genai.Ptr(*op.cfg.Seed),
	}

	resp, err := g.generate(ctx, op, contents, genCfg)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	result, err := parseOptimizationResult(resp.Text())
	if err != nil {
		recordSpanError(span, err)
		g.logger.LogError(err, "Rejected optimization response", "operation", op.name, "model", op.cfg.Model)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("output.resume_length", len(result.RevisedResume)),
		attribute.Int("output.match_score", result.MatchScore),
		attribute.Bool("success", true),
	)
	return result, nil
}

// FindMatchingJobs searches for postings that match the resume near location
func (g *GeminiGateway) FindMatchingJobs(ctx context.Context, resumeText, location string) (*types.JobSearchResponse, error) {
	op := g.operation(config.OperationSearchJobs)

	ctx, span := g.startSpan(ctx, op,
		attribute.Int("input.resume_length", len(resumeText)),
		attribute.String("input.location", location),
	)
	defer span.End()

	parts := []*genai.Part{
		genai.NewPartFromText(buildSearchJobsInstruction(g.prompts, location)),
		genai.NewPartFromText(resumeContextLabel + resumeText),
	}
	genCfg := &genai.GenerateContentConfig{
		Tools:       []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		Temperature: genai.Ptr(*op.cfg.Temperature),
	}

	resp, err := g.generate(ctx, op, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, genCfg)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		err := errors.NewAIResponseError(errors.ErrCodeAIEmptyResponse, "No response generated from AI", nil)
		recordSpanError(span, err)
		return nil, err
	}

	response := &types.JobSearchResponse{
		Text:            text,
		GroundingChunks: extractGroundingChunks(resp),
	}
	span.SetAttributes(
		attribute.Int("output.text_length", len(text)),
		attribute.Int("output.grounding_chunks", len(response.GroundingChunks)),
		attribute.Bool("success", true),
	)
	return response, nil
}

// askForJobPosting asks the model, with web search, to read a job posting link
func (g *GeminiGateway) askForJobPosting(ctx context.Context, url string) (string, error) {
	op := g.operation(config.OperationResolveURL)

	ctx, span := g.startSpan(ctx, op, attribute.String("input.url", url))
	defer span.End()

	genCfg := &genai.GenerateContentConfig{
		Tools:       []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		Temperature: genai.Ptr(*op.cfg.Temperature),
	}

	resp, err := g.generate(ctx, op, genai.Text(buildResolveURLInstruction(g.prompts, url)), genCfg)
	if err != nil {
		recordSpanError(span, err)
		return "", err
	}

	text := resp.Text()
	span.SetAttributes(attribute.Int("output.text_length", len(text)))
	return text, nil
}

// buildOptimizeContents assembles the instruction, resume and job description parts in order
func buildOptimizeContents(prompts PromptSource, input types.UserInput, jobDescription string) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(buildOptimizeInstruction(prompts, string(input.Tone)))}

	if input.HasDocument() {
		parts = append(parts,
			genai.NewPartFromText(resumeDocumentLabel),
			genai.NewPartFromBytes(input.ResumeFile.Data, input.ResumeFile.MIMEType),
		)
	} else {
		parts = append(parts, genai.NewPartFromText(resumeTextLabel+input.ResumeText))
	}

	parts = append(parts, genai.NewPartFromText(jobDescriptionLabel+jobDescription))
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// extractGroundingChunks copies the web citations of the first candidate. Chunks
// without a web reference are kept so indexes match the model's citations.
func extractGroundingChunks(resp *genai.GenerateContentResponse) []types.GroundingChunk {
	chunks := []types.GroundingChunk{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return chunks
	}
	metadata := resp.Candidates[0].GroundingMetadata
	if metadata == nil {
		return chunks
	}

	for _, chunk := range metadata.GroundingChunks {
		if chunk == nil {
			continue
		}
		var out types.GroundingChunk
		if chunk.Web != nil {
			out.Web = &types.WebReference{URI: chunk.Web.URI, Title: chunk.Web.Title}
		}
		chunks = append(chunks, out)
	}
	return chunks
}

// startSpan opens the operation span with the common model attributes
func (g *GeminiGateway) startSpan(ctx context.Context, op *operationClient, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := g.tracer.Start(ctx, "gemini."+op.spanName)
	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", op.cfg.Model),
		attribute.Float64("ai.temperature", float64(*op.cfg.Temperature)),
	)
	span.SetAttributes(attrs...)
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Bool("success", false))
}

// generate runs one generation call under the operation timeout, breaker and retry policy
func (g *GeminiGateway) generate(ctx context.Context, op *operationClient, contents []*genai.Content, genCfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if timeout := *op.cfg.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := op.breaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.executeWithRetry(ctx, op, func() (*genai.GenerateContentResponse, error) {
			return op.models.GenerateContent(ctx, op.cfg.Model, contents, genCfg)
		})
	})

	usage := extractTokenUsage(resp)
	g.metrics.RecordAIOperation(ctx, op.name, time.Since(start), usage, err)
	if usage != nil {
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}

	if err != nil {
		return nil, classifyTransportError(op.name, err)
	}
	return resp, nil
}

// classifyTransportError maps a failed call onto the AITransportError codes
func classifyTransportError(operation string, err error) error {
	switch {
	case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return errors.NewAITransportError(errors.ErrCodeAICircuitOpen,
			fmt.Sprintf("AI service for %s is temporarily unavailable", operation), err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewAITransportError(errors.ErrCodeAITimeout,
			fmt.Sprintf("AI request for %s timed out", operation), err)
	case stderrors.Is(err, context.Canceled):
		return errors.NewAITransportError(errors.ErrCodeAIServiceFailed,
			fmt.Sprintf("AI request for %s was cancelled", operation), err)
	default:
		return errors.NewAITransportError(errors.ErrCodeAIServiceFailed,
			fmt.Sprintf("Failed to generate content for %s", operation), err)
	}
}

// executeWithRetry executes an AI operation with retry logic and exponential backoff
func (g *GeminiGateway) executeWithRetry(ctx context.Context, op *operationClient, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	maxRetries := *op.cfg.MaxRetries
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying AI operation",
				"operation", op.name,
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(g.backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				g.logger.Info("AI operation succeeded after retry",
					"operation", op.name,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil || !isRetryableError(err) {
			g.logger.Debug("Error is not retryable, stopping retry attempts",
				"operation", op.name,
				"error", err.Error())
			break
		}
	}

	g.logger.LogError(lastErr, "AI operation failed",
		"operation", op.name,
		"model", op.cfg.Model)

	return nil, lastErr
}

// backoff returns the exponential delay with up to 10% jitter, capped at maxBackoff
func (g *GeminiGateway) backoff(attempt int) time.Duration {
	baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * g.retryBaseDelay
	jitter := time.Duration(0)
	if jitterMax := int64(float64(baseDelay) * 0.1); jitterMax > 0 {
		if jitterBig, err := rand.Int(rand.Reader, big.NewInt(jitterMax)); err == nil {
			jitter = time.Duration(jitterBig.Int64())
		}
	}
	return min(baseDelay+jitter, maxBackoff)
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// context errors satisfy net.Error but retrying them is pointless
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	if code, ok := httpStatusOf(err); ok {
		switch code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// httpStatusOf extracts the HTTP status from Gemini and Google API errors
func httpStatusOf(err error) (int, bool) {
	var genaiErr genai.APIError
	if stderrors.As(err, &genaiErr) {
		return genaiErr.Code, true
	}
	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	return 0, false
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *observability.TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &observability.TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}

// GetModelInfo checks the readiness and availability of the optimize model
func (g *GeminiGateway) GetModelInfo(ctx context.Context) *ModelInfo {
	op := g.operation(config.OperationOptimize)
	modelInfo := &ModelInfo{Name: op.cfg.Model}

	checkCtx, cancel := context.WithTimeout(ctx, g.modelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return op.models.Get(checkCtx, op.cfg.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", op.cfg.Model,
			"error", err.Error())
		return modelInfo
	}

	modelInfo.Available = true
	if model != nil {
		modelInfo.DisplayName = model.DisplayName
		modelInfo.Version = model.Version
	}

	g.logger.Debug("Model availability check successful",
		"model", op.cfg.Model,
		"display_name", modelInfo.DisplayName,
		"version", modelInfo.Version)

	return modelInfo
}

// GetCircuitBreakerStats returns statistics of every breaker and the overall health
func (g *GeminiGateway) GetCircuitBreakerStats() map[string]any {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := map[string]any{
		"model_operations": g.modelBreaker.GetStats(),
	}
	healthy := g.modelBreaker.IsHealthy()
	for name, op := range g.ops {
		stats[name] = op.breaker.GetStats()
		healthy = healthy && op.breaker.IsHealthy()
	}
	stats["overall_healthy"] = healthy
	return stats
}

// UpdateAPIKey rebuilds the clients of every operation that uses the global key.
// Operations configured with their own key keep it. Breaker state is preserved.
func (g *GeminiGateway) UpdateAPIKey(apiKey string) error {
	if apiKey == "" {
		return errors.NewConfigError(errors.ErrCodeMissingAPIKey, "API key must not be empty", nil)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if apiKey == g.apiKey {
		return nil
	}

	models, err := g.factory(context.Background(), apiKey)
	if err != nil {
		return errors.NewAITransportError(errors.ErrCodeAIServiceFailed, "Failed to create Gemini client", err)
	}

	updated := make(map[string]*operationClient, len(g.ops))
	for name, op := range g.ops {
		next := *op
		if op.cfg.APIKey == g.apiKey {
			next.cfg.APIKey = apiKey
			next.models = models
		}
		updated[name] = &next
	}

	g.ops = updated
	g.apiKey = apiKey
	g.logger.Info("Gemini API key updated", "operations", len(updated))
	return nil
}
