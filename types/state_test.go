package types

import (
	"errors"
	"testing"
)

func validRequest() Request {
	return Request{ProjectID: "p1", UserID: "u1", Prompt: "two friends talk about coffee"}
}

func TestNewStateDefaults(t *testing.T) {
	st, err := NewState(validRequest())
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if st.Format != FormatHorizontal {
		t.Errorf("format = %q, want horizontal", st.Format)
	}
	if st.ImageMode != ImagePerScene {
		t.Errorf("image mode = %q, want per_scene", st.ImageMode)
	}
	if st.ScenesPerImage != DefaultScenesPerImage {
		t.Errorf("scenes per image = %d, want %d", st.ScenesPerImage, DefaultScenesPerImage)
	}
	if st.Step != StepScript {
		t.Errorf("step = %q, want %q", st.Step, StepScript)
	}
	if st.Script != nil || st.Cast != nil || st.VideoPath != "" {
		t.Error("produced fields must start empty")
	}
	if len(st.Errors) != 0 || st.RetryCount != 0 || st.Progress != 0 {
		t.Error("error log, retry counter and progress must start at zero")
	}
}

func TestNewStateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"missing project", func(r *Request) { r.ProjectID = "" }},
		{"missing user", func(r *Request) { r.UserID = "" }},
		{"missing prompt", func(r *Request) { r.Prompt = "" }},
		{"bad format", func(r *Request) { r.Format = "square" }},
		{"bad image mode", func(r *Request) { r.ImageMode = "gallery" }},
		{"negative ratio", func(r *Request) { r.ScenesPerImage = -1 }},
		{"loud music", func(r *Request) { r.MusicVolume = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			if _, err := NewState(req); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAdvanceIsMonotonic(t *testing.T) {
	st, _ := NewState(validRequest())
	st.Advance(0.3)
	st.Advance(0.2)
	if st.Progress != 0.3 {
		t.Errorf("progress = %v, want 0.3", st.Progress)
	}
	st.Advance(4)
	if st.Progress != 1 {
		t.Errorf("progress = %v, want clamp to 1", st.Progress)
	}
}

func TestSpeakersFirstAppearanceOrder(t *testing.T) {
	st, _ := NewState(validRequest())
	st.Script = &Script{Scenes: []Scene{
		{Speaker: "Host", Line: "a"},
		{Speaker: "Guest", Line: "b"},
		{Speaker: "Host", Line: "c"},
		{Speaker: "Narrator", Line: "d"},
	}}
	got := st.Speakers()
	want := []string{"Host", "Guest", "Narrator"}
	if len(got) != len(want) {
		t.Fatalf("speakers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("speakers[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRequire(t *testing.T) {
	st, _ := NewState(validRequest())
	if err := st.Require(StepCasting); !errors.Is(err, ErrPrecondition) {
		t.Errorf("casting without script: err = %v", err)
	}

	st.Script = &Script{Scenes: []Scene{{Speaker: "A", Line: "x"}, {Speaker: "B", Line: "y"}}}
	if err := st.Require(StepAudio); err == nil {
		t.Error("audio without cast should fail")
	}
	st.Cast = Cast{"A": {VoiceID: "v"}, "B": {VoiceID: "w"}}
	if err := st.Require(StepAudio); err != nil {
		t.Errorf("audio: %v", err)
	}

	st.AudioFiles = []string{"a.mp3"}
	st.AudioSceneIndex = []int{0, 1}
	if err := st.Require(StepCompose); err == nil {
		t.Error("misaligned audio index should fail")
	}
	st.AudioSceneIndex = []int{5}
	if err := st.Require(StepCompose); err == nil {
		t.Error("out of range audio index should fail")
	}
	st.AudioSceneIndex = []int{1}
	if err := st.Require(StepCompose); err != nil {
		t.Errorf("compose: %v", err)
	}

	st.ImageFiles = []string{"i.png"}
	st.ImageSceneIndex = []int{0, NoImage}
	if err := st.Require(StepCompose); err != nil {
		t.Errorf("compose with sentinel image: %v", err)
	}
	st.ImageSceneIndex = []int{0, 3}
	if err := st.Require(StepCompose); err == nil {
		t.Error("image index beyond file list should fail")
	}

	if err := st.Require(StepPublish); err == nil {
		t.Error("publish without video should fail")
	}
}
