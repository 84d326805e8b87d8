package graph

import (
	"testing"

	"shorts-factory/types"
)

func TestNext(t *testing.T) {
	script := &types.Script{Scenes: []types.Scene{{Speaker: "A", Line: "x", Duration: 3}}}
	meta := &types.PublishMetadata{Title: "t"}

	tests := []struct {
		name  string
		from  types.Step
		state types.State
		want  types.Step
	}{
		{"script ok", types.StepScript, types.State{Script: script}, types.StepCasting},
		{"script missing after retries", types.StepScript, types.State{RetryCount: 3}, types.StepFailed},
		{"script missing, counter untouched", types.StepScript, types.State{}, types.StepFailed},
		{"casting always", types.StepCasting, types.State{}, types.StepImages},
		{"images always", types.StepImages, types.State{}, types.StepAudio},
		{"audio some", types.StepAudio, types.State{AudioFiles: []string{"a"}}, types.StepCompose},
		{"audio none", types.StepAudio, types.State{}, types.StepFailed},
		{"compose failed", types.StepCompose, types.State{AutoPublish: true, Metadata: meta}, types.StepFailed},
		{"compose no publish flag", types.StepCompose, types.State{VideoPath: "v.mp4", Metadata: meta}, types.StepDone},
		{"compose no metadata", types.StepCompose, types.State{VideoPath: "v.mp4", AutoPublish: true}, types.StepDone},
		{"compose publish", types.StepCompose, types.State{VideoPath: "v.mp4", AutoPublish: true, Metadata: meta}, types.StepPublish},
		{"publish always done", types.StepPublish, types.State{}, types.StepDone},
		{"unknown", types.Step("bogus"), types.State{}, types.StepFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.state
			if got := Next(tt.from, &s); got != tt.want {
				t.Errorf("Next(%s) = %s, want %s", tt.from, got, tt.want)
			}
		})
	}
}

func TestAfterScript(t *testing.T) {
	script := &types.Script{Scenes: []types.Scene{{Speaker: "A", Line: "x", Duration: 3}}}
	tests := []struct {
		name  string
		state types.State
		want  types.Step
	}{
		{"script ok", types.State{Script: script}, types.StepCasting},
		{"retries left", types.State{RetryCount: 2}, types.StepScript},
		{"retries spent", types.State{RetryCount: 3}, types.StepFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.state
			if got := AfterScript(&s, DefaultMaxRetries); got != tt.want {
				t.Errorf("AfterScript = %s, want %s", got, tt.want)
			}
		})
	}
}
