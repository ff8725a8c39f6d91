package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"careerlaunch/internal/history"
	"careerlaunch/internal/types"
	"careerlaunch/internal/workflow"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "OptimizationResult", &OptimizationTextFormatter{})
	registry.RegisterFormatter("markdown", "OptimizationResult", &OptimizationMarkdownFormatter{})
	registry.RegisterFormatter("text", "JobSearchResponse", &JobsTextFormatter{})
	registry.RegisterFormatter("markdown", "JobSearchResponse", &JobsMarkdownFormatter{})
	registry.RegisterFormatter("text", "RunReport", &ReportFormatter{format: "text"})
	registry.RegisterFormatter("markdown", "RunReport", &ReportFormatter{format: "markdown"})
	registry.RegisterFormatter("text", "RunHistory", &HistoryTextFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.OptimizationResult, *types.OptimizationResult:
		return "OptimizationResult"
	case types.JobSearchResponse, *types.JobSearchResponse:
		return "JobSearchResponse"
	case workflow.State:
		return "RunReport"
	case []history.RunRecord:
		return "RunHistory"
	default:
		return "any"
	}
}

func asOptimization(data any) (types.OptimizationResult, error) {
	switch v := data.(type) {
	case types.OptimizationResult:
		return v, nil
	case *types.OptimizationResult:
		if v != nil {
			return *v, nil
		}
	}
	return types.OptimizationResult{}, fmt.Errorf("expected OptimizationResult, got %T", data)
}

func asJobSearch(data any) (types.JobSearchResponse, error) {
	switch v := data.(type) {
	case types.JobSearchResponse:
		return v, nil
	case *types.JobSearchResponse:
		if v != nil {
			return *v, nil
		}
	}
	return types.JobSearchResponse{}, fmt.Errorf("expected JobSearchResponse, got %T", data)
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// OptimizationTextFormatter handles text formatting for optimization results
type OptimizationTextFormatter struct{}

func (otf *OptimizationTextFormatter) Format(data any) (string, error) {
	result, err := asOptimization(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== OPTIMIZED RESUME ===\n\n")
	output.WriteString(result.RevisedResume)
	output.WriteString("\n\n")

	output.WriteString("=== MATCH ANALYSIS ===\n")
	fmt.Fprintf(&output, "Match Score: %d/100\n\n", result.MatchScore)
	output.WriteString("Summary:\n")
	output.WriteString(result.Summary)
	output.WriteString("\n\n")

	if len(result.KeyImprovements) > 0 {
		output.WriteString("Key Improvements:\n")
		for i, improvement := range result.KeyImprovements {
			fmt.Fprintf(&output, "%d. %s\n", i+1, improvement)
		}
		output.WriteString("\n")
	}

	if len(result.MissingKeywords) > 0 {
		output.WriteString("Missing Keywords:\n")
		output.WriteString(strings.Join(result.MissingKeywords, ", "))
		output.WriteString("\n")
	}

	return output.String(), nil
}

func (otf *OptimizationTextFormatter) SupportedType() string {
	return "OptimizationResult"
}

// OptimizationMarkdownFormatter handles markdown formatting for optimization results
type OptimizationMarkdownFormatter struct{}

func (omf *OptimizationMarkdownFormatter) Format(data any) (string, error) {
	result, err := asOptimization(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString(result.RevisedResume)
	output.WriteString("\n\n---\n\n")

	output.WriteString("## Match Analysis\n\n")
	fmt.Fprintf(&output, "**Match Score:** %d/100\n\n", result.MatchScore)
	output.WriteString(result.Summary)
	output.WriteString("\n\n")

	if len(result.KeyImprovements) > 0 {
		output.WriteString("### Key Improvements\n\n")
		for _, improvement := range result.KeyImprovements {
			fmt.Fprintf(&output, "- %s\n", improvement)
		}
		output.WriteString("\n")
	}

	if len(result.MissingKeywords) > 0 {
		output.WriteString("### Missing Keywords\n\n")
		for _, keyword := range result.MissingKeywords {
			fmt.Fprintf(&output, "`%s` ", keyword)
		}
		output.WriteString("\n")
	}

	return output.String(), nil
}

func (omf *OptimizationMarkdownFormatter) SupportedType() string {
	return "OptimizationResult"
}

// JobsTextFormatter handles text formatting for job search responses
type JobsTextFormatter struct{}

func (jtf *JobsTextFormatter) Format(data any) (string, error) {
	jobs, err := asJobSearch(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== MATCHING JOBS ===\n\n")
	output.WriteString(jobs.Text)
	output.WriteString("\n")

	if refs := jobs.WebReferences(); len(refs) > 0 {
		output.WriteString("\n=== SOURCES ===\n")
		for i, ref := range refs {
			fmt.Fprintf(&output, "%d. %s (%s)\n", i+1, referenceLabel(ref), ref.URI)
		}
	}

	return output.String(), nil
}

func (jtf *JobsTextFormatter) SupportedType() string {
	return "JobSearchResponse"
}

// JobsMarkdownFormatter handles markdown formatting for job search responses
type JobsMarkdownFormatter struct{}

func (jmf *JobsMarkdownFormatter) Format(data any) (string, error) {
	jobs, err := asJobSearch(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# Matched Jobs\n\n")
	output.WriteString(jobs.Text)
	output.WriteString("\n")

	if refs := jobs.WebReferences(); len(refs) > 0 {
		output.WriteString("\n## Sources\n\n")
		for _, ref := range refs {
			fmt.Fprintf(&output, "- [%s](%s)\n", referenceLabel(ref), ref.URI)
		}
	}

	return output.String(), nil
}

func (jmf *JobsMarkdownFormatter) SupportedType() string {
	return "JobSearchResponse"
}

// referenceLabel prefers the page title and falls back to the host name
func referenceLabel(ref types.WebReference) string {
	if strings.TrimSpace(ref.Title) != "" {
		return ref.Title
	}
	return ref.Hostname()
}

// ReportFormatter renders a whole run: status line, optimization and jobs
type ReportFormatter struct {
	format string
}

func (rf *ReportFormatter) Format(data any) (string, error) {
	state, ok := data.(workflow.State)
	if !ok {
		return "", fmt.Errorf("expected workflow.State, got %T", data)
	}

	var optimization, jobs Formatter
	if rf.format == "markdown" {
		optimization, jobs = &OptimizationMarkdownFormatter{}, &JobsMarkdownFormatter{}
	} else {
		optimization, jobs = &OptimizationTextFormatter{}, &JobsTextFormatter{}
	}

	var output strings.Builder
	if state.Phase == workflow.PhaseFailed {
		fmt.Fprintf(&output, "Run %s failed: %s\n", state.RunID, state.Error)
	}

	if state.Optimization != nil {
		text, err := optimization.Format(state.Optimization)
		if err != nil {
			return "", err
		}
		output.WriteString(text)
	}
	if state.JobSearch != nil {
		text, err := jobs.Format(state.JobSearch)
		if err != nil {
			return "", err
		}
		output.WriteString("\n")
		output.WriteString(text)
	}

	return output.String(), nil
}

func (rf *ReportFormatter) SupportedType() string {
	return "RunReport"
}

// HistoryTextFormatter renders recorded runs as an aligned table
type HistoryTextFormatter struct{}

func (htf *HistoryTextFormatter) Format(data any) (string, error) {
	records, ok := data.([]history.RunRecord)
	if !ok {
		return "", fmt.Errorf("expected []history.RunRecord, got %T", data)
	}
	if len(records) == 0 {
		return "No runs recorded.\n", nil
	}

	var output strings.Builder
	w := tabwriter.NewWriter(&output, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FINISHED\tRUN\tPHASE\tSCORE\tJOBS\tTONE\tLOCATION")
	for _, rec := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			rec.FinishedAt.Local().Format("2006-01-02 15:04"), shortID(rec.ID), rec.Phase,
			rec.MatchScore, rec.JobCount, rec.Tone, rec.Location)
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return output.String(), nil
}

func (htf *HistoryTextFormatter) SupportedType() string {
	return "RunHistory"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
