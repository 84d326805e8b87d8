// Package graph sequences the pipeline stages as an explicit state machine.
package graph

import (
	"context"
	"time"

	"shorts-factory/types"
)

// Stage performs one unit of pipeline work against the state it is handed.
// Business failures go to the state's error log; a returned error means the
// stage could not run at all and aborts the pipeline.
type Stage interface {
	Step() types.Step
	Run(ctx context.Context, s *types.State) error
}

// Event is emitted after every transition.
type Event struct {
	ProjectID string              `json:"project_id"`
	Step      types.Step          `json:"step"`
	Status    types.ProjectStatus `json:"status"`
	Progress  float64             `json:"progress"`
	Version   int                 `json:"version"`
	Message   string              `json:"message,omitempty"`
	At        time.Time           `json:"at"`
}

// Notifier receives progress events. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event)

func (f NotifierFunc) Notify(ctx context.Context, e Event) { f(ctx, e) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}

// statusFor is the project status recorded when a stage starts.
func statusFor(step types.Step) types.ProjectStatus {
	switch step {
	case types.StepScript:
		return types.StatusGeneratingScript
	case types.StepCasting:
		return types.StatusCasting
	case types.StepImages:
		return types.StatusGeneratingImages
	case types.StepAudio:
		return types.StatusGeneratingAudio
	case types.StepCompose:
		return types.StatusGeneratingVideo
	case types.StepPublish:
		return types.StatusUploading
	case types.StepDone:
		return types.StatusCompleted
	}
	return types.StatusFailed
}
