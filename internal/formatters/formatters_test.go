package formatters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"careerlaunch/internal/errors"
	"careerlaunch/internal/history"
	"careerlaunch/internal/types"
	"careerlaunch/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() types.OptimizationResult {
	return types.OptimizationResult{
		RevisedResume:   "# **JANE DOE**\n\n## **SUMMARY**\n\nBackend engineer.",
		MatchScore:      78,
		KeyImprovements: []string{"Added quantified metrics", "Reordered skills"},
		MissingKeywords: []string{"Kubernetes", "Terraform"},
		Summary:         "Strong backend profile.",
	}
}

func sampleJobs() types.JobSearchResponse {
	return types.JobSearchResponse{
		Text: "**Here are the top 5 job matches based on your optimized resume:**\n\n### Platform Engineer",
		GroundingChunks: []types.GroundingChunk{
			{Web: &types.WebReference{URI: "https://jobs.example.ca/1", Title: "Platform Engineer"}},
			{Web: &types.WebReference{URI: "https://careers.acme.io/42"}},
			{},
		},
	}
}

func TestFormatOptimization(t *testing.T) {
	registry := NewFormatterRegistry()
	result := sampleResult()

	text, err := registry.Format(result, "text")
	require.NoError(t, err)
	assert.Contains(t, text, "=== OPTIMIZED RESUME ===")
	assert.Contains(t, text, "Match Score: 78/100")
	assert.Contains(t, text, "1. Added quantified metrics")
	assert.Contains(t, text, "Kubernetes, Terraform")

	md, err := registry.Format(&result, "markdown")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(md, "# **JANE DOE**"))
	assert.Contains(t, md, "**Match Score:** 78/100")
	assert.Contains(t, md, "- Reordered skills")
	assert.Contains(t, md, "`Kubernetes`")
}

func TestFormatJobs(t *testing.T) {
	registry := NewFormatterRegistry()

	text, err := registry.Format(sampleJobs(), "text")
	require.NoError(t, err)
	assert.Contains(t, text, "1. Platform Engineer (https://jobs.example.ca/1)")
	assert.Contains(t, text, "2. careers.acme.io (https://careers.acme.io/42)")
	assert.NotContains(t, text, "3.")

	md, err := registry.Format(sampleJobs(), "markdown")
	require.NoError(t, err)
	assert.Contains(t, md, "## Sources")
	assert.Contains(t, md, "- [careers.acme.io](https://careers.acme.io/42)")
}

func TestFormatJSON(t *testing.T) {
	registry := NewFormatterRegistry()

	out, err := registry.Format(sampleResult(), "json")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, float64(78), decoded["matchScore"])
	assert.Contains(t, decoded, "revisedResume")
}

func TestFormatReport(t *testing.T) {
	registry := NewFormatterRegistry()
	result, jobs := sampleResult(), sampleJobs()

	tests := []struct {
		name     string
		state    workflow.State
		format   string
		contains []string
		excludes []string
	}{
		{
			name:     "complete text",
			state:    workflow.State{Phase: workflow.PhaseComplete, Optimization: &result, JobSearch: &jobs},
			format:   "text",
			contains: []string{"=== OPTIMIZED RESUME ===", "=== MATCHING JOBS ==="},
			excludes: []string{"failed"},
		},
		{
			name:     "complete markdown",
			state:    workflow.State{Phase: workflow.PhaseComplete, Optimization: &result, JobSearch: &jobs},
			format:   "markdown",
			contains: []string{"## Match Analysis", "# Matched Jobs"},
		},
		{
			name:     "failed after optimization",
			state:    workflow.State{Phase: workflow.PhaseFailed, RunID: "abc", Error: workflow.FailureMessage, Optimization: &result},
			format:   "text",
			contains: []string{"Run abc failed: " + workflow.FailureMessage, "=== OPTIMIZED RESUME ==="},
			excludes: []string{"MATCHING JOBS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := registry.Format(tt.state, tt.format)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestFormatHistory(t *testing.T) {
	registry := NewFormatterRegistry()

	empty, err := registry.Format([]history.RunRecord{}, "text")
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded.\n", empty)

	out, err := registry.Format([]history.RunRecord{{
		ID:         "4f1c2a9e-0000-4000-8000-000000000000",
		Phase:      "Complete",
		MatchScore: 78,
		JobCount:   5,
		Tone:       "Professional",
		Location:   "Ontario, Canada",
		FinishedAt: time.Now(),
	}}, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "PHASE")
	assert.Contains(t, out, "4f1c2a9e ")
	assert.Contains(t, out, "Ontario, Canada")
}

func TestUnsupportedFormat(t *testing.T) {
	registry := NewFormatterRegistry()

	_, err := registry.Format(sampleResult(), "yaml")
	assert.Error(t, err)
	assert.Equal(t, []string{"json", "markdown", "text"}, registry.GetSupportedFormats())
}

func TestBuildExport(t *testing.T) {
	result, jobs := sampleResult(), sampleJobs()

	_, err := BuildExport(ExportResume, workflow.State{Phase: workflow.PhaseOptimizing})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	_, err = BuildExport(ExportJobs, workflow.State{Phase: workflow.PhaseSearchingJobs, Optimization: &result})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	_, err = BuildExport("pdf", workflow.State{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	state := workflow.State{Phase: workflow.PhaseComplete, Optimization: &result, JobSearch: &jobs}

	resume, err := BuildExport(ExportResume, state)
	require.NoError(t, err)
	assert.Equal(t, "Optimized-Resume.md", resume.Filename)
	assert.Equal(t, result.RevisedResume+"\n", string(resume.Content))

	matched, err := BuildExport(ExportJobs, state)
	require.NoError(t, err)
	assert.Equal(t, "Matched-Jobs.md", matched.Filename)
	assert.Contains(t, string(matched.Content), "### Platform Engineer")
}

func TestWriteExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")

	path, err := WriteExport(dir, Export{Filename: ResumeExportFilename, Content: []byte("# **JANE DOE**\n")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ResumeExportFilename), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# **JANE DOE**\n", string(data))
}
