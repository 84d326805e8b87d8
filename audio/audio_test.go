package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"shorts-factory/casting"
	"shorts-factory/store"
	"shorts-factory/types"
)

type call struct {
	scene int
	text  string
	voice types.VoiceDescriptor
}

type fakeSynth struct {
	failScenes map[int]bool
	calls      []call
}

func (f *fakeSynth) Synthesize(_ context.Context, projectID string, scene int, text string, voice types.VoiceDescriptor) (string, error) {
	f.calls = append(f.calls, call{scene, text, voice})
	if f.failScenes[scene] {
		return "", errors.New("service unavailable")
	}
	return fmt.Sprintf("static/audio/%s/%d.mp3", projectID, scene), nil
}

func newState(t *testing.T, lines ...string) *types.State {
	t.Helper()
	st, err := types.NewState(types.Request{ProjectID: "p1", UserID: "u1", Prompt: "x"})
	if err != nil {
		t.Fatal(err)
	}
	st.Script = &types.Script{}
	speakers := []string{"Host", "Guest"}
	for i, l := range lines {
		st.Script.Scenes = append(st.Script.Scenes, types.Scene{Speaker: speakers[i%2], Line: l, Duration: 2})
	}
	st.Cast = types.Cast{
		"Host":  {VoiceID: "en-US-GuyNeural", Pitch: "+0Hz", Rate: "+0%"},
		"Guest": {VoiceID: "en-US-JennyNeural", Pitch: "+5Hz", Rate: "-10%"},
	}
	st.Advance(0.4)
	return st
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello  there", "Hello there"},
		{"line\none\ttwo", "line one two"},
		{"<speak>hi</speak>", "speakhi/speak"},
		{"salt & pepper", "salt and pepper"},
		{"bell\x07ring\x00", "bellring"},
		{"   ", "..."},
		{"<>", "..."},
		{"?!", "..."},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRunAllScenes(t *testing.T) {
	st := newState(t, "one", "two")
	synth := &fakeSynth{}
	mem := store.NewMemory()
	if err := New(synth, mem).Run(context.Background(), st); err != nil {
		t.Fatal(err)
	}
	if len(st.AudioFiles) != 2 || len(st.AudioSceneIndex) != 2 {
		t.Fatalf("files = %v, index = %v", st.AudioFiles, st.AudioSceneIndex)
	}
	if synth.calls[1].voice.Rate != "-10%" {
		t.Errorf("guest voice = %+v", synth.calls[1].voice)
	}
	if math.Abs(st.Progress-0.7) > 1e-9 {
		t.Errorf("progress = %v, want 0.7", st.Progress)
	}
	assets := mem.Assets("p1")
	if len(assets) != 2 || assets[1].Character != "Guest" || assets[1].Kind != "audio" {
		t.Errorf("assets = %+v", assets)
	}
}

func TestRunSkipsFailedScene(t *testing.T) {
	st := newState(t, "first", "second", "third")
	synth := &fakeSynth{failScenes: map[int]bool{1: true}}
	if err := New(synth, nil).Run(context.Background(), st); err != nil {
		t.Fatal(err)
	}
	if len(st.AudioFiles) != 2 {
		t.Errorf("files = %v", st.AudioFiles)
	}
	if len(st.AudioSceneIndex) != 2 || st.AudioSceneIndex[0] != 0 || st.AudioSceneIndex[1] != 2 {
		t.Errorf("index = %v, want [0 2]", st.AudioSceneIndex)
	}
	if len(st.Errors) != 1 || st.Errors[0] != "Audio generation failed for scene 1: service unavailable" {
		t.Errorf("errors = %v", st.Errors)
	}
	// progress counts processed scenes, not successes
	if math.Abs(st.Progress-0.7) > 1e-9 {
		t.Errorf("progress = %v", st.Progress)
	}
	if err := st.Require(types.StepCompose); err != nil {
		t.Errorf("compose precondition: %v", err)
	}
}

func TestRunTotalFailure(t *testing.T) {
	st := newState(t, "a", "b")
	synth := &fakeSynth{failScenes: map[int]bool{0: true, 1: true}}
	if err := New(synth, nil).Run(context.Background(), st); err != nil {
		t.Fatal(err)
	}
	if len(st.AudioFiles) != 0 || len(st.AudioSceneIndex) != 0 || len(st.Errors) != 2 {
		t.Errorf("files = %v, index = %v, errors = %v", st.AudioFiles, st.AudioSceneIndex, st.Errors)
	}
}

func TestRunMissingSpeakerUsesDefaultVoice(t *testing.T) {
	st := newState(t, "hello")
	st.Cast = types.Cast{}
	synth := &fakeSynth{}
	if err := New(synth, nil).Run(context.Background(), st); err != nil {
		t.Fatal(err)
	}
	if synth.calls[0].voice != casting.DefaultVoice {
		t.Errorf("voice = %+v", synth.calls[0].voice)
	}
}

func TestRunSanitizesText(t *testing.T) {
	st := newState(t, "  <b>Hi</b>\n")
	synth := &fakeSynth{}
	if err := New(synth, nil).Run(context.Background(), st); err != nil {
		t.Fatal(err)
	}
	if synth.calls[0].text != "bHi/b" {
		t.Errorf("text = %q", synth.calls[0].text)
	}
}

func TestRunWithoutSynthesizer(t *testing.T) {
	if err := New(nil, nil).Run(context.Background(), newState(t, "a")); err == nil {
		t.Error("expected error")
	}
}
