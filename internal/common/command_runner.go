package common

import (
	"context"
	"fmt"
	"io"

	"careerlaunch/internal/errors"
	"careerlaunch/internal/types"
	"careerlaunch/internal/workflow"
)

// Runner is the part of the orchestrator a command drives
type Runner interface {
	Submit(ctx context.Context, input types.UserInput) (workflow.State, error)
	Subscribe(buffer int) (<-chan workflow.State, func())
	Reset() workflow.State
}

// RunWorkflow submits input, reports progress to progress (nil for none) and
// returns the terminal state. Cancelling ctx resets the run.
func RunWorkflow(ctx context.Context, runner Runner, input types.UserInput, progress io.Writer, logger *errors.Logger) (workflow.State, error) {
	if logger == nil {
		logger = errors.NewNopLogger()
	}

	updates, unsubscribe := runner.Subscribe(16)
	defer unsubscribe()

	state, err := runner.Submit(ctx, input)
	if err != nil {
		return state, err
	}
	logger.Info("Run started",
		"run_id", state.RunID,
		"tone", string(input.Tone),
		"location", input.Normalize().Location,
		"has_document", input.HasDocument())

	reporter := newProgressReporter(progress)
	for {
		select {
		case <-ctx.Done():
			reset := runner.Reset()
			reporter.finish()
			return reset, ctx.Err()
		case update, ok := <-updates:
			if !ok {
				reporter.finish()
				return state, errors.NewInternalError(errors.ErrCodeInvalidRequest, "Workflow closed before the run finished", nil)
			}
			// Snapshots from before this submission are ignored
			if update.Generation != state.Generation {
				continue
			}
			state = update
			reporter.report(state)
			if state.Phase.IsTerminal() {
				reporter.finish()
				return state, nil
			}
		}
	}
}

// progressReporter prints one line per phase change and a progress bar that
// redraws in place
type progressReporter struct {
	w         io.Writer
	lastPhase workflow.Phase
	drawn     bool
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{w: w}
}

func (p *progressReporter) report(state workflow.State) {
	if p.w == nil {
		return
	}
	if state.Phase != p.lastPhase {
		if p.drawn {
			_, _ = fmt.Fprintln(p.w)
		}
		p.lastPhase = state.Phase
	}
	_, _ = fmt.Fprintf(p.w, "\r%-16s %s %3d%%", phaseLabel(state.Phase), progressBar(state.Progress, 30), state.Progress)
	p.drawn = true
}

func (p *progressReporter) finish() {
	if p.w != nil && p.drawn {
		_, _ = fmt.Fprintln(p.w)
		p.drawn = false
	}
}

func phaseLabel(phase workflow.Phase) string {
	switch phase {
	case workflow.PhaseOptimizing:
		return "Optimizing"
	case workflow.PhaseSearchingJobs:
		return "Searching jobs"
	case workflow.PhaseComplete:
		return "Done"
	case workflow.PhaseFailed:
		return "Failed"
	default:
		return string(phase)
	}
}

func progressBar(progress, width int) string {
	progress = min(max(progress, 0), 100)
	filled := progress * width / 100
	bar := make([]byte, width)
	for i := range bar {
		if i < filled {
			bar[i] = '#'
		} else {
			bar[i] = '.'
		}
	}
	return "[" + string(bar) + "]"
}
