package workflow

import (
	"context"
	"sync"
	"time"

	"careerlaunch/internal/ai"
	"careerlaunch/internal/config"
	"careerlaunch/internal/errors"
	"careerlaunch/internal/observability"
	"careerlaunch/internal/types"

	"github.com/google/uuid"
)

// RunRecorder receives every run that reaches Complete or Failed
type RunRecorder interface {
	RecordRun(ctx context.Context, summary RunSummary) error
}

// Options configures an Orchestrator. Zero values are usable.
type Options struct {
	Timings  config.WorkflowConfig
	Recorder RunRecorder
	Metrics  *observability.Metrics
	Logger   *errors.Logger
}

// DefaultTimings returns the progress simulation used when no configuration is given
func DefaultTimings() config.WorkflowConfig {
	return config.WorkflowConfig{
		StartProgress:   1,
		Optimize:        config.PhaseConfig{Interval: 100 * time.Millisecond, Step: 1, Ceiling: 45, Checkpoint: 50},
		SearchJobs:      config.PhaseConfig{Interval: 150 * time.Millisecond, Step: 1, Ceiling: 90, Checkpoint: 100},
		CompletionDelay: 500 * time.Millisecond,
	}
}

// Orchestrator drives one workflow run at a time: optimize the resume, then
// search for matching jobs with the revised resume. Every asynchronous result
// carries the generation it was started under and is dropped when the
// generation has moved on.
type Orchestrator struct {
	gateway  ai.Gateway
	timings  config.WorkflowConfig
	recorder RunRecorder
	metrics  *observability.Metrics
	logger   *errors.Logger

	mu           sync.Mutex
	state        State
	input        types.UserInput
	generation   uint64
	cancel       context.CancelFunc
	ticker       *ProgressTicker
	completion   *time.Timer
	phaseStarted time.Time
	done         chan struct{}

	subscribers map[uint64]chan State
	nextSubID   uint64
}

// NewOrchestrator creates an idle orchestrator around gateway
func NewOrchestrator(gateway ai.Gateway, opts Options) *Orchestrator {
	timings := opts.Timings
	if timings == (config.WorkflowConfig{}) {
		timings = DefaultTimings()
	}
	logger := opts.Logger
	if logger == nil {
		logger = errors.NewNopLogger()
	}

	return &Orchestrator{
		gateway:     gateway,
		timings:     timings,
		recorder:    opts.Recorder,
		metrics:     opts.Metrics,
		logger:      logger,
		state:       State{Phase: PhaseIdle},
		subscribers: make(map[uint64]chan State),
	}
}

// Submit validates input and starts a run. It fails with an InputInvalid error
// when the input does not pass the submission gate and with a conflict error
// while another run is active. ctx only carries values into the run; the run
// itself ends on completion, failure or Reset.
func (o *Orchestrator) Submit(ctx context.Context, input types.UserInput) (State, error) {
	if err := input.Validate(); err != nil {
		return o.State(), err
	}
	input = input.Normalize()

	o.mu.Lock()
	if o.state.Phase.IsActive() {
		snap := o.state.clone()
		o.mu.Unlock()
		return snap, errors.NewConflictError(errors.ErrCodeRunInProgress, "A run is already in progress", nil).
			WithContext("run_id", snap.RunID)
	}

	o.generation++
	gen := o.generation
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	now := time.Now()

	o.cancel = cancel
	o.input = input
	o.done = make(chan struct{})
	o.phaseStarted = now
	o.state = State{
		Phase:      PhaseOptimizing,
		Progress:   o.timings.StartProgress,
		RunID:      uuid.NewString(),
		Generation: gen,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	o.startTickerLocked(gen, PhaseOptimizing, o.timings.Optimize)
	snap := o.publishLocked()
	o.mu.Unlock()

	o.logger.Info("Workflow run started", "run_id", snap.RunID, "generation", gen, "tone", input.Tone, "location", input.Location)
	o.metrics.RecordRunStarted(ctx, string(input.Tone))

	go o.run(runCtx, gen, input)
	return snap, nil
}

func (o *Orchestrator) run(ctx context.Context, gen uint64, input types.UserInput) {
	result, err := o.gateway.OptimizeResume(ctx, input)
	if err != nil {
		o.fail(ctx, gen, err)
		return
	}
	if !o.beginSearch(ctx, gen, result) {
		return
	}

	jobs, err := o.gateway.FindMatchingJobs(ctx, result.RevisedResume, input.Location)
	if err != nil {
		o.fail(ctx, gen, err)
		return
	}
	o.finishSearch(ctx, gen, jobs)
}

// beginSearch moves a run from Optimizing to SearchingJobs
func (o *Orchestrator) beginSearch(ctx context.Context, gen uint64, result *types.OptimizationResult) bool {
	o.mu.Lock()
	if gen != o.generation || o.state.Phase != PhaseOptimizing {
		o.mu.Unlock()
		o.logger.Debug("Discarding stale optimization result", "generation", gen)
		return false
	}

	stopped := o.detachTickerLocked()
	elapsed := time.Since(o.phaseStarted)
	o.phaseStarted = time.Now()
	o.state.Phase = PhaseSearchingJobs
	o.state.Progress = o.timings.Optimize.Checkpoint
	o.state.Optimization = result
	o.startTickerLocked(gen, PhaseSearchingJobs, o.timings.SearchJobs)
	snap := o.publishLocked()
	o.mu.Unlock()

	stopped.Stop()
	o.logger.Info("Resume optimized", "run_id", snap.RunID, "match_score", result.MatchScore)
	o.metrics.RecordPhaseDuration(ctx, string(PhaseOptimizing), elapsed, true)
	o.metrics.RecordMatchScore(ctx, result.MatchScore)
	return true
}

// finishSearch stores the job search result at full progress and schedules Complete
func (o *Orchestrator) finishSearch(ctx context.Context, gen uint64, jobs *types.JobSearchResponse) {
	o.mu.Lock()
	if gen != o.generation || o.state.Phase != PhaseSearchingJobs {
		o.mu.Unlock()
		o.logger.Debug("Discarding stale job search result", "generation", gen)
		return
	}

	stopped := o.detachTickerLocked()
	elapsed := time.Since(o.phaseStarted)
	o.state.Progress = o.timings.SearchJobs.Checkpoint
	o.state.JobSearch = jobs
	o.publishLocked()
	o.completion = time.AfterFunc(o.timings.CompletionDelay, func() { o.complete(ctx, gen) })
	o.mu.Unlock()

	stopped.Stop()
	o.metrics.RecordPhaseDuration(ctx, string(PhaseSearchingJobs), elapsed, true)
}

func (o *Orchestrator) complete(ctx context.Context, gen uint64) {
	o.mu.Lock()
	if gen != o.generation || o.state.Phase != PhaseSearchingJobs {
		o.mu.Unlock()
		return
	}

	o.completion = nil
	o.state.Phase = PhaseComplete
	snap := o.publishLocked()
	summary := o.summaryLocked(nil)
	o.endRunLocked()
	o.mu.Unlock()

	o.logger.Info("Workflow run complete", "run_id", snap.RunID, "jobs", summary.JobCount)
	o.metrics.RecordRunFinished(ctx, observability.OutcomeCompleted)
	o.record(ctx, summary)
}

func (o *Orchestrator) fail(ctx context.Context, gen uint64, cause error) {
	o.mu.Lock()
	if gen != o.generation || !o.state.Phase.IsActive() {
		o.mu.Unlock()
		o.logger.Debug("Discarding stale failure", "generation", gen, "error", cause.Error())
		return
	}

	stopped := o.detachTickerLocked()
	phase := o.state.Phase
	elapsed := time.Since(o.phaseStarted)
	o.state.Phase = PhaseFailed
	o.state.Error = failureMessage(cause)
	snap := o.publishLocked()
	summary := o.summaryLocked(cause)
	o.endRunLocked()
	o.mu.Unlock()

	stopped.Stop()
	o.logger.LogError(cause, "Workflow run failed", "run_id", snap.RunID, "phase", phase)
	o.metrics.RecordPhaseDuration(ctx, string(phase), elapsed, false)
	o.metrics.RecordRunFinished(ctx, observability.OutcomeFailed)
	o.record(ctx, summary)
}

// Reset abandons the current run, if any, and returns to Idle. In-flight AI
// calls are cancelled and their results ignored.
func (o *Orchestrator) Reset() State {
	o.mu.Lock()
	o.generation++
	stopped := o.detachTickerLocked()
	if o.completion != nil {
		o.completion.Stop()
		o.completion = nil
	}
	abandoned := o.state.RunID
	o.endRunLocked()
	o.input = types.UserInput{}
	o.state = State{Phase: PhaseIdle, Generation: o.generation, UpdatedAt: time.Now()}
	snap := o.publishLocked()
	o.mu.Unlock()

	stopped.Stop()
	if abandoned != "" {
		o.logger.Info("Workflow reset", "abandoned_run_id", abandoned)
	}
	o.metrics.RecordRunReset(context.Background())
	return snap
}

// State returns a copy of the current state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// Subscribe returns a channel that receives the current state followed by every
// later transition. Delivery never blocks the orchestrator: when the buffer is
// full the oldest pending snapshot is dropped, so the newest one always arrives.
func (o *Orchestrator) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)

	o.mu.Lock()
	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = ch
	ch <- o.state.clone()
	o.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if _, ok := o.subscribers[id]; ok {
				delete(o.subscribers, id)
				close(ch)
			}
		})
	}
	return ch, unsubscribe
}

// Wait blocks until the current run completes, fails or is reset. Without a
// run it returns the current state immediately.
func (o *Orchestrator) Wait(ctx context.Context) (State, error) {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()

	if done == nil {
		return o.State(), nil
	}
	select {
	case <-done:
		return o.State(), nil
	case <-ctx.Done():
		return o.State(), ctx.Err()
	}
}

// Close resets the orchestrator and closes every subscription
func (o *Orchestrator) Close() {
	o.Reset()

	o.mu.Lock()
	defer o.mu.Unlock()
	for id, ch := range o.subscribers {
		delete(o.subscribers, id)
		close(ch)
	}
}

func (o *Orchestrator) startTickerLocked(gen uint64, phase Phase, cfg config.PhaseConfig) {
	o.ticker = NewProgressTicker()
	o.ticker.Start(cfg.Interval, cfg.Step, cfg.Ceiling, o.advance(gen, phase))
}

// detachTickerLocked hands the running ticker to the caller, who must Stop it
// after releasing the lock since a pending tick may be waiting on it.
func (o *Orchestrator) detachTickerLocked() *ProgressTicker {
	t := o.ticker
	o.ticker = nil
	return t
}

func (o *Orchestrator) advance(gen uint64, phase Phase) AdvanceFunc {
	return func(step, ceiling int) bool {
		o.mu.Lock()
		defer o.mu.Unlock()

		if gen != o.generation || o.state.Phase != phase || o.state.Progress >= ceiling {
			return false
		}
		o.state.Progress = min(o.state.Progress+step, ceiling)
		o.publishLocked()
		return o.state.Progress < ceiling
	}
}

// endRunLocked releases the run context and wakes Wait callers
func (o *Orchestrator) endRunLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	if o.done != nil {
		close(o.done)
		o.done = nil
	}
}

func (o *Orchestrator) publishLocked() State {
	o.state.UpdatedAt = time.Now()
	snap := o.state.clone()
	for _, ch := range o.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
	return snap
}

func (o *Orchestrator) summaryLocked(cause error) RunSummary {
	summary := RunSummary{
		RunID:      o.state.RunID,
		Generation: o.state.Generation,
		Phase:      o.state.Phase,
		Location:   o.input.Location,
		Tone:       o.input.Tone,
		StartedAt:  o.state.StartedAt,
		FinishedAt: o.state.UpdatedAt,
	}
	if cause != nil {
		summary.Error = o.state.Error
	}
	if o.state.Optimization != nil {
		summary.MatchScore = o.state.Optimization.MatchScore
	}
	if o.state.JobSearch != nil {
		summary.JobCount = len(o.state.JobSearch.WebReferences())
	}
	return summary
}

func (o *Orchestrator) record(ctx context.Context, summary RunSummary) {
	if o.recorder == nil {
		return
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.recorder.RecordRun(recordCtx, summary); err != nil {
		o.logger.LogError(err, "Failed to record workflow run", "run_id", summary.RunID)
	}
}
