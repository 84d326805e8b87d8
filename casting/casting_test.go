package casting

import (
	"context"
	"errors"
	"testing"

	"shorts-factory/store"
	"shorts-factory/types"
)

type fakeSelector struct {
	out map[string]types.VoiceDescriptor
	err error
}

func (f fakeSelector) SelectVoices(context.Context, map[string][]string, Catalog) (map[string]types.VoiceDescriptor, error) {
	return f.out, f.err
}

func stateWith(t *testing.T, speakers ...string) *types.State {
	t.Helper()
	st, err := types.NewState(types.Request{ProjectID: "p1", UserID: "u1", Prompt: "x"})
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	st.Script = &types.Script{}
	for _, sp := range speakers {
		st.Script.Scenes = append(st.Script.Scenes, types.Scene{Speaker: sp, Line: "line by " + sp, Duration: 3})
	}
	return st
}

func TestAssignFallbackIsDeterministic(t *testing.T) {
	speakers := []string{"Host", "Guest", "Narrator", "Expert", "Kid"}
	first, _ := Assign(speakers, nil, DefaultCatalog(), DefaultFallback)
	for i := 0; i < 5; i++ {
		again, _ := Assign(speakers, map[string]types.VoiceDescriptor{}, DefaultCatalog(), DefaultFallback)
		for _, sp := range speakers {
			if again[sp] != first[sp] {
				t.Fatalf("run %d: %s = %+v, want %+v", i, sp, again[sp], first[sp])
			}
		}
	}
	if first["Host"].VoiceID != "en-US-ChristopherNeural" || first["Guest"].VoiceID != "en-US-MichelleNeural" {
		t.Errorf("fallback order not followed: %+v", first)
	}
	// The fifth speaker wraps to the first fallback voice, which is taken.
	if first["Kid"].VoiceID == first["Host"].VoiceID {
		t.Errorf("collision not resolved: Kid and Host both %s", first["Kid"].VoiceID)
	}
}

func TestAssignUnknownVoiceAndCollision(t *testing.T) {
	sug := map[string]types.VoiceDescriptor{
		"Host":  {VoiceID: "en-US-GuyNeural", Pitch: "-5Hz", Rate: "+10%"},
		"Guest": {VoiceID: "en-US-GuyNeural"},
		"Alien": {VoiceID: "xx-MARS-ZorgNeural"},
	}
	cast, notes := Assign([]string{"Host", "Guest", "Alien"}, sug, DefaultCatalog(), DefaultFallback)

	if cast["Host"].VoiceID != "en-US-GuyNeural" || cast["Host"].Pitch != "-5Hz" || cast["Host"].Rate != "+10%" {
		t.Errorf("Host = %+v", cast["Host"])
	}
	if cast["Guest"].VoiceID == "en-US-GuyNeural" {
		t.Error("Guest reused Host's voice")
	}
	if cast["Guest"].VoiceID != "en-US-AriaNeural" {
		t.Errorf("Guest = %s, want first unused catalog voice", cast["Guest"].VoiceID)
	}
	// fallback[2] is Guy, already Host's, so the catalog scan picks the next free voice.
	if cast["Alien"].VoiceID != "en-US-JennyNeural" {
		t.Errorf("Alien = %s, want en-US-JennyNeural", cast["Alien"].VoiceID)
	}
	if len(notes) != 1 {
		t.Errorf("notes = %v", notes)
	}
}

func TestNormalizeOffset(t *testing.T) {
	tests := []struct {
		in, want string
		pitch    bool
	}{
		{"+5Hz", "+5Hz", true},
		{"-80Hz", "-50Hz", true},
		{"-0Hz", "+0Hz", true},
		{"5Hz", "+0Hz", true},
		{"+5%", "+0Hz", true},
		{"", "+0Hz", true},
		{"+10%", "+10%", false},
		{"+120%", "+50%", false},
		{"fast", "+0%", false},
	}
	for _, tt := range tests {
		var got string
		if tt.pitch {
			got = NormalizeOffset(tt.in, pitchPattern, "Hz")
		} else {
			got = NormalizeOffset(tt.in, ratePattern, "%")
		}
		if got != tt.want {
			t.Errorf("NormalizeOffset(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompleteFillsGaps(t *testing.T) {
	cast := types.Cast{"Host": {VoiceID: "en-US-GuyNeural"}, "Guest": {}}
	filled := Complete(cast, []string{"Host", "Guest", "Narrator"})
	if len(filled) != 2 {
		t.Errorf("filled = %v", filled)
	}
	if cast["Narrator"] != DefaultVoice || cast["Guest"] != DefaultVoice {
		t.Errorf("cast = %+v", cast)
	}
	if cast["Host"].Pitch != DefaultPitch || cast["Host"].Rate != DefaultRate {
		t.Errorf("Host offsets not defaulted: %+v", cast["Host"])
	}
}

func TestStageCompletenessUnderSelectorFailure(t *testing.T) {
	tests := []struct {
		name     string
		selector Selector
		wantErrs int
	}{
		{"no selector", nil, 0},
		{"selector error", fakeSelector{err: errors.New("llm timeout")}, 1},
		{"selector empty", fakeSelector{out: map[string]types.VoiceDescriptor{}}, 0},
		{"selector partial", fakeSelector{out: map[string]types.VoiceDescriptor{"A": {VoiceID: "en-US-EmmaNeural"}}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := stateWith(t, "A", "B", "A", "C", "D", "B")
			mem := store.NewMemory()
			if err := New(tt.selector, mem).Run(context.Background(), st); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(st.Cast) != 4 {
				t.Fatalf("cast has %d keys, want 4", len(st.Cast))
			}
			for sp, v := range st.Cast {
				if v.VoiceID == "" || v.Pitch == "" || v.Rate == "" {
					t.Errorf("%s has incomplete voice %+v", sp, v)
				}
			}
			if len(st.Errors) != tt.wantErrs {
				t.Errorf("errors = %v", st.Errors)
			}
			if st.Progress != 0.3 {
				t.Errorf("progress = %v", st.Progress)
			}
		})
	}
}

func TestGroupLines(t *testing.T) {
	scenes := []types.Scene{
		{Speaker: "A", Line: "1"}, {Speaker: "A", Line: "2"}, {Speaker: "B", Line: "3"}, {Speaker: "A", Line: "4"},
	}
	got := GroupLines(scenes, 2)
	if len(got["A"]) != 2 || got["A"][1] != "2" || len(got["B"]) != 1 {
		t.Errorf("GroupLines = %v", got)
	}
}

type fakeCompleter struct{ reply string }

func (f fakeCompleter) Complete(context.Context, string, string) (string, error) { return f.reply, nil }

func (f fakeCompleter) CompleteJSON(context.Context, string, string, string, any) (string, error) {
	return f.reply, nil
}

func TestDirectorDropsUnknownSpeakers(t *testing.T) {
	d := NewDirector(fakeCompleter{reply: `{"assignments":[
		{"speaker":"Host","voice_id":"en-US-GuyNeural","pitch":"+0Hz","rate":"+5%"},
		{"speaker":"Ghost","voice_id":"en-US-AnaNeural","pitch":"+0Hz","rate":"+0%"}]}`})
	out, err := d.SelectVoices(context.Background(), map[string][]string{"Host": {"Welcome back"}}, DefaultCatalog())
	if err != nil {
		t.Fatalf("SelectVoices: %v", err)
	}
	if len(out) != 1 || out["Host"].Rate != "+5%" {
		t.Errorf("out = %+v", out)
	}
}

func TestDirectorMalformedReply(t *testing.T) {
	d := NewDirector(fakeCompleter{reply: "I think Host should sound like Guy"})
	if _, err := d.SelectVoices(context.Background(), map[string][]string{"Host": {"hi"}}, DefaultCatalog()); err == nil {
		t.Error("expected parse error")
	}
}
