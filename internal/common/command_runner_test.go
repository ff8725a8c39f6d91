package common

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"careerlaunch/internal/config"
	"careerlaunch/internal/errors"
	"careerlaunch/internal/types"
	"careerlaunch/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	block     chan struct{}
	searchErr error
}

func (g *fakeGateway) OptimizeResume(ctx context.Context, input types.UserInput) (*types.OptimizationResult, error) {
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &types.OptimizationResult{
		RevisedResume:   "# Revised",
		MatchScore:      75,
		KeyImprovements: []string{"Clearer summary"},
		Summary:         "Good match",
	}, nil
}

func (g *fakeGateway) FindMatchingJobs(ctx context.Context, resumeText, location string) (*types.JobSearchResponse, error) {
	if g.searchErr != nil {
		return nil, g.searchErr
	}
	return &types.JobSearchResponse{Text: "1. Platform Engineer"}, nil
}

func newTestOrchestrator(t *testing.T, gw *fakeGateway) *workflow.Orchestrator {
	t.Helper()
	o := workflow.NewOrchestrator(gw, workflow.Options{Timings: config.WorkflowConfig{
		StartProgress:   1,
		Optimize:        config.PhaseConfig{Interval: time.Millisecond, Step: 3, Ceiling: 45, Checkpoint: 50},
		SearchJobs:      config.PhaseConfig{Interval: time.Millisecond, Step: 3, Ceiling: 90, Checkpoint: 100},
		CompletionDelay: 5 * time.Millisecond,
	}})
	t.Cleanup(o.Close)
	return o
}

func testInput() types.UserInput {
	return types.UserInput{
		ResumeText:         "Experienced platform engineer with Go and Terraform",
		JobDescriptionType: types.JobDescriptionText,
		JobDescription:     "Platform engineer to run our Kubernetes estate",
		Tone:               types.ToneConcise,
		Country:            "United Kingdom",
	}
}

func TestRunWorkflowCompletes(t *testing.T) {
	o := newTestOrchestrator(t, &fakeGateway{})
	var progress bytes.Buffer

	state, err := RunWorkflow(context.Background(), o, testInput(), &progress, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.PhaseComplete, state.Phase)
	assert.Equal(t, 100, state.Progress)
	require.NotNil(t, state.Optimization)
	require.NotNil(t, state.JobSearch)

	out := progress.String()
	assert.Contains(t, out, "Done")
	assert.Contains(t, out, "100%")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestRunWorkflowReportsFailure(t *testing.T) {
	o := newTestOrchestrator(t, &fakeGateway{searchErr: errors.NewAITransportError(errors.ErrCodeAIServiceFailed, "down", nil)})

	state, err := RunWorkflow(context.Background(), o, testInput(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.PhaseFailed, state.Phase)
	assert.Equal(t, workflow.FailureMessage, state.Error)
	assert.NotNil(t, state.Optimization, "optimization survives a failed job search")
}

func TestRunWorkflowInvalidInput(t *testing.T) {
	o := newTestOrchestrator(t, &fakeGateway{})
	input := testInput()
	input.Tone = "Sarcastic"

	_, err := RunWorkflow(context.Background(), o, input, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestRunWorkflowCancelResets(t *testing.T) {
	gw := &fakeGateway{block: make(chan struct{})}
	defer close(gw.block)
	o := newTestOrchestrator(t, gw)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	state, err := RunWorkflow(ctx, o, testInput(), nil, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, workflow.PhaseIdle, state.Phase)
	assert.Equal(t, workflow.PhaseIdle, o.State().Phase)
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[..........]", progressBar(0, 10))
	assert.Equal(t, "[#####.....]", progressBar(50, 10))
	assert.Equal(t, "[##########]", progressBar(150, 10))
}

func TestLoadResumeFromTextFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resume.md")
	require.NoError(t, os.WriteFile(path, []byte("  # Jane Doe\nGo engineer  \n"), 0600))

	input := types.UserInput{ResumeFile: &types.ResumeDocument{Data: []byte("old")}}
	fp := NewFileProcessor(0, nil)
	require.NoError(t, fp.LoadResume(path, &input))
	assert.Equal(t, "# Jane Doe\nGo engineer", input.ResumeText)
	assert.Nil(t, input.ResumeFile)
}

func TestReadFileLimits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 100)), 0600))

	_, err := NewFileProcessor(10, nil).ReadFile(path)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	content, err := NewFileProcessor(0, nil).ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, content, 100)

	_, err = NewFileProcessor(0, nil).ReadFile(filepath.Join(dir, "missing.txt"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}

func TestHandleOutputAndExports(t *testing.T) {
	o := newTestOrchestrator(t, &fakeGateway{})
	state, err := RunWorkflow(context.Background(), o, testInput(), nil, nil)
	require.NoError(t, err)

	var stdout bytes.Buffer
	handler := NewOutputHandlerWithWriter(&stdout, nil)
	require.NoError(t, handler.HandleOutput(state, CommandConfig{OutputFormat: "markdown"}))
	assert.Contains(t, stdout.String(), "# Revised")
	assert.Contains(t, stdout.String(), "Platform Engineer")

	dir := t.TempDir()
	outFile := filepath.Join(dir, "out", "result.json")
	require.NoError(t, handler.HandleOutput(state, CommandConfig{OutputFormat: "json", OutputFile: outFile}))
	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"matchScore": 75`)

	paths, err := handler.HandleExports(state, CommandConfig{ExportDir: dir})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "Optimized-Resume.md"),
		filepath.Join(dir, "Matched-Jobs.md"),
	}, paths)

	err = handler.HandleOutput(state, CommandConfig{OutputFormat: "yaml"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
