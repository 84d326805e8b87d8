// Package script turns the topic prompt into a validated, versioned script.
package script

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"shorts-factory/store"
	"shorts-factory/types"
)

const (
	DefaultDuration = 3.0
	MinDuration     = 0.5
	MaxDuration     = 60.0

	progressDone = 0.2
)

// Draft is the unvalidated document a Generator returns. Pointer fields let
// validation tell a missing key from an empty one.
type Draft struct {
	Title  string       `json:"title,omitempty" jsonschema_description:"Short working title"`
	Scenes []DraftScene `json:"scenes" jsonschema_description:"Ordered scenes, one spoken line each"`
}

type DraftScene struct {
	Speaker  *string  `json:"speaker"`
	Line     *string  `json:"line"`
	Duration *float64 `json:"duration,omitempty" jsonschema_description:"Seconds to speak the line"`
}

// Generator produces a draft script for a prompt.
type Generator interface {
	GenerateScript(ctx context.Context, prompt string) (*Draft, error)
}

// Stage is the script-writing step.
type Stage struct {
	gen   Generator
	store store.Store
}

func New(gen Generator, st store.Store) *Stage {
	return &Stage{gen: gen, store: st}
}

func (s *Stage) Step() types.Step { return types.StepScript }

// Run makes one generation attempt. On failure it logs the error, bumps the
// retry counter and leaves the script unset.
func (s *Stage) Run(ctx context.Context, st *types.State) error {
	if s.gen == nil {
		return errors.New("script stage has no generator")
	}
	log.Printf("[script] Attempt %d for project %s: %.50q", st.RetryCount+1, st.ProjectID, st.Prompt)

	draft, err := s.gen.GenerateScript(ctx, st.Prompt)
	if err == nil {
		var script *types.Script
		script, err = Validate(draft)
		if err == nil {
			st.Script = script
			st.Advance(progressDone)
			s.save(ctx, st)
			log.Printf("[script] ✅ Script ready: %d scenes, %d speakers", len(script.Scenes), len(st.Speakers()))
			return nil
		}
	}

	msg := st.Fail("Script generation failed: %v", err)
	st.RetryCount++
	log.Printf("[script] %s (retry %d)", msg, st.RetryCount)
	return nil
}

func (s *Stage) save(ctx context.Context, st *types.State) {
	if s.store == nil {
		return
	}
	version, err := s.store.SaveScript(ctx, st.ProjectID, st.Script)
	if err != nil {
		log.Printf("[script] Warning: could not save script: %v", err)
		return
	}
	log.Printf("[script] Saved script version %d", version)
}

// Validate rejects drafts without scenes or with a scene missing its speaker
// or line, and normalises durations into [MinDuration, MaxDuration].
func Validate(d *Draft) (*types.Script, error) {
	if d == nil || len(d.Scenes) == 0 {
		return nil, errors.New("generated script missing 'scenes' field")
	}
	out := &types.Script{Title: strings.TrimSpace(d.Title), Scenes: make([]types.Scene, 0, len(d.Scenes))}
	for i, sc := range d.Scenes {
		if sc.Speaker == nil || sc.Line == nil {
			return nil, fmt.Errorf("scene %d missing required fields", i)
		}
		speaker := strings.TrimSpace(*sc.Speaker)
		line := strings.TrimSpace(*sc.Line)
		if speaker == "" || line == "" {
			return nil, fmt.Errorf("scene %d has an empty speaker or line", i)
		}
		out.Scenes = append(out.Scenes, types.Scene{
			Speaker:  speaker,
			Line:     line,
			Duration: clampDuration(sc.Duration),
		})
	}
	return out, nil
}

func clampDuration(d *float64) float64 {
	if d == nil || *d <= 0 {
		return DefaultDuration
	}
	switch {
	case *d < MinDuration:
		return MinDuration
	case *d > MaxDuration:
		return MaxDuration
	}
	return *d
}
