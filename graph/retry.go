package graph

import (
	"context"
	"log"

	"shorts-factory/types"
)

// DefaultMaxRetries bounds script generation attempts.
const DefaultMaxRetries = 3

// Retry re-invokes the script stage until it leaves a script in the state or
// the retry counter reaches Max. It never calls the stage more than Max times.
type Retry struct {
	Max int
}

func (r Retry) max() int {
	if r.Max < 1 {
		return DefaultMaxRetries
	}
	return r.Max
}

// Run drives stage under the retry policy.
func (r Retry) Run(ctx context.Context, stage Stage, s *types.State) error {
	max := r.max()
	for attempt := 1; ; attempt++ {
		if err := stage.Run(ctx, s); err != nil {
			return err
		}
		if AfterScript(s, max) != types.StepScript || attempt >= max {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("[graph] Retrying %s (attempt %d/%d): %s", stage.Step(), attempt+1, max, s.LastError())
	}
}
