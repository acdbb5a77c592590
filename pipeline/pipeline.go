// Package pipeline executes a fixed sequence of named stages and records
// what happened to each. Stages run strictly one after another; the first
// failure aborts the run and the stages behind it are recorded as skipped.
// There is no DAG and no parallelism because the release workflow is a
// straight line by design.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the terminal state of a stage or run.
type Status string

const (
	// StatusPending indicates the stage has not started.
	StatusPending Status = "PENDING"

	// StatusRunning indicates the stage is in progress.
	StatusRunning Status = "RUNNING"

	// StatusSuccess indicates the stage completed without error.
	StatusSuccess Status = "SUCCESS"

	// StatusFailed indicates the stage returned an error.
	StatusFailed Status = "FAILED"

	// StatusSkipped indicates the stage did not run, either by its own
	// skip condition or because an earlier stage failed.
	StatusSkipped Status = "SKIPPED"

	// StatusCancelled indicates the run's context was cancelled while the
	// stage ran.
	StatusCancelled Status = "CANCELLED"
)

// String returns the status name.
func (s Status) String() string { return string(s) }

// ErrStageFailed is the sentinel wrapped by every stage failure, so
// callers can distinguish "a stage broke" from infrastructure errors.
var ErrStageFailed = errors.New("stage failed")

// Stage is one unit of the release workflow.
type Stage struct {
	// Name identifies the stage in reports and console output.
	Name string

	// Run does the work. Required.
	Run func(ctx context.Context) error

	// SkipWhen is consulted before Run; returning true skips the stage
	// and records the reason. Optional.
	SkipWhen func(ctx context.Context) (reason string, skip bool)

	// Timeout bounds the stage's execution when positive. The stage's
	// context is cancelled at the deadline.
	Timeout time.Duration
}

// StageResult records one stage's outcome.
type StageResult struct {
	Name     string
	Status   Status
	Reason   string
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Report is the record of one pipeline run.
type Report struct {
	// RunID uniquely identifies the run.
	RunID string

	Started  time.Time
	Finished time.Time
	Results  []StageResult

	// Err is the first stage failure, nil for a successful run.
	Err error
}

// Failed reports whether the run ended in failure.
func (r *Report) Failed() bool { return r.Err != nil }

// Duration returns the wall-clock time of the whole run.
func (r *Report) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Result returns the result recorded for the named stage.
func (r *Report) Result(name string) (StageResult, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return StageResult{}, false
}

// Runner executes stages in order.
type Runner struct {
	stages  []Stage
	onStart func(Stage)
	onEnd   func(StageResult)
	now     func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithObserver registers callbacks invoked as each stage starts and
// finishes. The binary uses this to drive console progress.
func WithObserver(onStart func(Stage), onEnd func(StageResult)) Option {
	return func(r *Runner) {
		r.onStart = onStart
		r.onEnd = onEnd
	}
}

// withClock substitutes the time source. Tests use this for stable
// durations.
func withClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a Runner over the given stages.
func NewRunner(stages []Stage, opts ...Option) *Runner {
	r := &Runner{
		stages: stages,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the stages sequentially and returns the report. The first
// stage error aborts the run; every stage behind it is recorded as
// skipped. A cancelled context marks the interrupted stage CANCELLED.
func (r *Runner) Run(ctx context.Context) *Report {
	report := &Report{
		RunID:   uuid.New().String(),
		Started: r.now(),
		Results: make([]StageResult, 0, len(r.stages)),
	}

	aborted := ""
	for _, stage := range r.stages {
		if aborted != "" {
			report.Results = append(report.Results, StageResult{
				Name:   stage.Name,
				Status: StatusSkipped,
				Reason: fmt.Sprintf("stage %q failed", aborted),
			})
			continue
		}

		result := r.runStage(ctx, stage)
		report.Results = append(report.Results, result)

		if result.Status == StatusFailed || result.Status == StatusCancelled {
			report.Err = result.Err
			aborted = stage.Name
		}
	}

	report.Finished = r.now()
	return report
}

func (r *Runner) runStage(ctx context.Context, stage Stage) StageResult {
	result := StageResult{
		Name:    stage.Name,
		Started: r.now(),
	}

	if stage.SkipWhen != nil {
		if reason, skip := stage.SkipWhen(ctx); skip {
			result.Status = StatusSkipped
			result.Reason = reason
			if r.onEnd != nil {
				r.onEnd(result)
			}
			return result
		}
	}

	if r.onStart != nil {
		r.onStart(stage)
	}

	stageCtx := ctx
	if stage.Timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, stage.Timeout)
		defer cancel()
	}

	err := stage.Run(stageCtx)
	result.Duration = r.now().Sub(result.Started)

	switch {
	case err == nil:
		result.Status = StatusSuccess
	case ctx.Err() != nil:
		result.Status = StatusCancelled
		result.Err = fmt.Errorf("stage %q cancelled: %w", stage.Name, ctx.Err())
	default:
		result.Status = StatusFailed
		result.Err = fmt.Errorf("stage %q: %w: %w", stage.Name, ErrStageFailed, err)
	}

	if r.onEnd != nil {
		r.onEnd(result)
	}
	return result
}
