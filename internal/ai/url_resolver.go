package ai

import (
	"context"
	"strings"

	"careerlaunch/internal/errors"
)

// MinResolvedLength is the shortest text accepted as a job description from a link
const MinResolvedLength = 50

// failureMarker appears in model answers that could not read the page
const failureMarker = "Could not retrieve"

// URLResolver reads job posting links. It optionally fetches the page itself
// and falls back to asking the model with web search.
type URLResolver struct {
	ask     func(ctx context.Context, url string) (string, error)
	fetcher *PageFetcher
	logger  *errors.Logger
}

// NewURLResolver creates a resolver. ask performs the model call; fetcher may be nil.
func NewURLResolver(ask func(ctx context.Context, url string) (string, error), fetcher *PageFetcher, logger *errors.Logger) *URLResolver {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &URLResolver{ask: ask, fetcher: fetcher, logger: logger}
}

// Resolve returns the job description behind url, or "" when it cannot be read
func (r *URLResolver) Resolve(ctx context.Context, url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}

	if r.fetcher != nil {
		text, err := r.fetcher.Fetch(ctx, url)
		switch {
		case err != nil:
			r.logger.Debug("Direct fetch of job posting failed, asking the model", "url", url, "error", err.Error())
		case usableJobText(text):
			r.logger.Debug("Job posting read by direct fetch", "url", url, "length", len(text))
			return text
		default:
			r.logger.Debug("Direct fetch returned too little text, asking the model", "url", url, "length", len(text))
		}
	}

	text, err := r.ask(ctx, url)
	if err != nil {
		r.logger.LogError(err, "Failed to extract text from URL", "url", url)
		return ""
	}
	if !usableJobText(text) {
		r.logger.Warn("Job posting link could not be read", "url", url, "length", len(text))
		return ""
	}
	return text
}

func usableJobText(text string) bool {
	return len(text) >= MinResolvedLength && !strings.Contains(text, failureMarker)
}
