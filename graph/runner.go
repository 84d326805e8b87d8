package graph

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"shorts-factory/store"
	"shorts-factory/types"
)

// Runner drives one State from the script step to a terminal step. It owns
// the state for the whole run and hands it to one stage at a time.
type Runner struct {
	stages   map[types.Step]Stage
	store    store.Store
	notifier Notifier
	retry    Retry
}

// Option configures a Runner.
type Option func(*Runner)

// WithNotifier sets the progress event sink.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithRetry overrides the script retry policy.
func WithRetry(rt Retry) Option {
	return func(r *Runner) { r.retry = rt }
}

var required = []types.Step{
	types.StepScript,
	types.StepCasting,
	types.StepImages,
	types.StepAudio,
	types.StepCompose,
}

// NewRunner wires stages by their Step. Every working step except publishing
// must be present; without a publisher, runs end after composing.
func NewRunner(st store.Store, stages []Stage, opts ...Option) (*Runner, error) {
	if st == nil {
		return nil, errors.New("runner: store is required")
	}
	r := &Runner{
		stages:   make(map[types.Step]Stage, len(stages)),
		store:    st,
		notifier: nopNotifier{},
		retry:    Retry{Max: DefaultMaxRetries},
	}
	for _, s := range stages {
		if s == nil {
			return nil, errors.New("runner: nil stage")
		}
		if _, dup := r.stages[s.Step()]; dup {
			return nil, fmt.Errorf("runner: duplicate stage for %s", s.Step())
		}
		r.stages[s.Step()] = s
	}
	for _, step := range required {
		if _, ok := r.stages[step]; !ok {
			return nil, fmt.Errorf("runner: no stage for %s", step)
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes the graph until a terminal step. The returned error is
// non-nil only for infrastructure faults; business failures end in
// StepFailed with s.FatalError set.
func (r *Runner) Run(ctx context.Context, s *types.State) (*types.State, error) {
	if s.Step == "" {
		s.Step = types.StepScript
	}
	log.Printf("🎬 [graph] Run starting for project %s (%s, images=%s)", s.ProjectID, s.Format, s.ImageMode)

	for !s.Step.Terminal() {
		if err := ctx.Err(); err != nil {
			r.fail(ctx, s, "pipeline cancelled: "+err.Error())
			break
		}

		step := s.Step
		stage, ok := r.stages[step]
		if !ok {
			// Publishing is optional.
			log.Printf("[graph] No stage for %s, finishing", step)
			r.transition(ctx, s, step, types.StepDone)
			continue
		}
		if err := s.Require(step); err != nil {
			r.fail(ctx, s, err.Error())
			return s, fmt.Errorf("%s: %w", step, err)
		}

		log.Printf("\n━━━ %s ━━━", step)
		r.setStatus(ctx, s.ProjectID, statusFor(step), "")

		var err error
		if step == types.StepScript {
			err = r.retry.Run(ctx, stage, s)
		} else {
			err = stage.Run(ctx, s)
		}
		if err != nil {
			r.fail(ctx, s, fmt.Sprintf("%s: %v", step, err))
			return s, fmt.Errorf("%s: %w", step, err)
		}

		next := Next(step, s)
		if next == types.StepFailed {
			r.fail(ctx, s, fatalReason(step, s))
			break
		}
		r.transition(ctx, s, step, next)
	}

	s.CompletedAt = time.Now().UTC()
	if s.Step == types.StepDone {
		s.Advance(1.0)
		r.notify(ctx, s, types.StatusCompleted, "")
		log.Printf("✅ [graph] Project %s done: %s", s.ProjectID, s.VideoPath)
	} else {
		log.Printf("❌ [graph] Project %s failed: %s", s.ProjectID, s.FatalError)
	}
	return s, nil
}

func (r *Runner) transition(ctx context.Context, s *types.State, from, to types.Step) {
	s.Step = to
	s.Version++
	log.Printf("[graph] %s -> %s (progress %.2f, v%d)", from, to, s.Progress, s.Version)
	r.notify(ctx, s, statusFor(to), "")
}

// fail moves the state to StepFailed, records the first fatal cause and
// marks the project failed.
func (r *Runner) fail(ctx context.Context, s *types.State, reason string) {
	from := s.Step
	if s.FatalError == "" {
		s.FatalError = reason
	}
	s.Step = types.StepFailed
	s.Version++
	log.Printf("[graph] %s -> %s: %s", from, types.StepFailed, reason)

	// The status write must land even when ctx is what ended the run.
	ctx = context.WithoutCancel(ctx)
	r.setStatus(ctx, s.ProjectID, types.StatusFailed, s.FatalError)
	r.notify(ctx, s, types.StatusFailed, s.FatalError)
}

func (r *Runner) setStatus(ctx context.Context, projectID string, status types.ProjectStatus, msg string) {
	if err := r.store.SetStatus(ctx, projectID, status, msg); err != nil {
		log.Printf("[graph] Warning: could not save status %s: %v", status, err)
	}
}

func (r *Runner) notify(ctx context.Context, s *types.State, status types.ProjectStatus, msg string) {
	r.notifier.Notify(ctx, Event{
		ProjectID: s.ProjectID,
		Step:      s.Step,
		Status:    status,
		Progress:  s.Progress,
		Version:   s.Version,
		Message:   msg,
		At:        time.Now().UTC(),
	})
}

func fatalReason(from types.Step, s *types.State) string {
	switch from {
	case types.StepScript:
		return fmt.Sprintf("script generation failed after %d attempts: %s", s.RetryCount, s.LastError())
	case types.StepAudio:
		return "audio generation produced no files: " + s.LastError()
	case types.StepCompose:
		if msg := s.LastError(); msg != "" {
			return msg
		}
		return "video composition failed"
	}
	return fmt.Sprintf("%s failed: %s", from, s.LastError())
}
