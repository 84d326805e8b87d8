package script

import (
	"context"
	"errors"
	"testing"

	"shorts-factory/config"
	"shorts-factory/store"
	"shorts-factory/types"
)

func str(s string) *string { return &s }
func num(f float64) *float64 { return &f }

type fakeGenerator struct {
	draft *Draft
	err   error
	calls int
}

func (f *fakeGenerator) GenerateScript(context.Context, string) (*Draft, error) {
	f.calls++
	return f.draft, f.err
}

func newState(t *testing.T) *types.State {
	t.Helper()
	st, err := types.NewState(types.Request{ProjectID: "p1", UserID: "u1", Prompt: "coffee facts"})
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return st
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		draft   *Draft
		wantErr bool
		wantDur float64
	}{
		{"nil draft", nil, true, 0},
		{"no scenes", &Draft{}, true, 0},
		{"missing speaker", &Draft{Scenes: []DraftScene{{Line: str("hi")}}}, true, 0},
		{"missing line", &Draft{Scenes: []DraftScene{{Speaker: str("Host")}}}, true, 0},
		{"blank line", &Draft{Scenes: []DraftScene{{Speaker: str("Host"), Line: str("  ")}}}, true, 0},
		{"default duration", &Draft{Scenes: []DraftScene{{Speaker: str("Host"), Line: str("Hello")}}}, false, 3.0},
		{"kept duration", &Draft{Scenes: []DraftScene{{Speaker: str("Host"), Line: str("Hello"), Duration: num(4.5)}}}, false, 4.5},
		{"too short", &Draft{Scenes: []DraftScene{{Speaker: str("Host"), Line: str("Hello"), Duration: num(0.1)}}}, false, 0.5},
		{"too long", &Draft{Scenes: []DraftScene{{Speaker: str("Host"), Line: str("Hello"), Duration: num(90)}}}, false, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.draft)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got.Scenes[0].Duration != tt.wantDur {
				t.Errorf("duration = %v, want %v", got.Scenes[0].Duration, tt.wantDur)
			}
		})
	}
}

func TestStageSuccess(t *testing.T) {
	gen := &fakeGenerator{draft: &Draft{Scenes: []DraftScene{
		{Speaker: str("Host"), Line: str("Hello"), Duration: num(3)},
		{Speaker: str("Guest"), Line: str("Hi there")},
	}}}
	mem := store.NewMemory()
	st := newState(t)

	if err := New(gen, mem).Run(context.Background(), st); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Script == nil || len(st.Script.Scenes) != 2 {
		t.Fatalf("script = %+v", st.Script)
	}
	if st.Progress != 0.2 || st.RetryCount != 0 || len(st.Errors) != 0 {
		t.Errorf("progress = %v, retry = %d, errors = %v", st.Progress, st.RetryCount, st.Errors)
	}
	if len(mem.Scripts("p1")) != 1 {
		t.Error("script version not saved")
	}
}

func TestStageFailureIncrementsRetry(t *testing.T) {
	for _, gen := range []*fakeGenerator{
		{err: errors.New("rate limited")},
		{draft: &Draft{Scenes: []DraftScene{{Speaker: str("Host")}}}},
	} {
		st := newState(t)
		if err := New(gen, nil).Run(context.Background(), st); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if st.Script != nil {
			t.Error("script populated on failure")
		}
		if st.RetryCount != 1 || len(st.Errors) != 1 {
			t.Errorf("retry = %d, errors = %v", st.RetryCount, st.Errors)
		}
		if st.Progress != 0 {
			t.Errorf("progress advanced on failure: %v", st.Progress)
		}
	}
}

func TestStageWithoutGenerator(t *testing.T) {
	if err := New(nil, nil).Run(context.Background(), newState(t)); err == nil {
		t.Error("expected infrastructure error")
	}
}

type fakeCompleter struct {
	reply  string
	system string
	user   string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	return f.reply, nil
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _, system, user string, _ any) (string, error) {
	f.system, f.user = system, user
	return f.reply, nil
}

func TestWriterParsesModelReply(t *testing.T) {
	c := &fakeCompleter{reply: "```json\n{\"title\":\"Beans\",\"scenes\":[{\"speaker\":\"Host\",\"line\":\"Coffee is a fruit.\",\"duration\":2.5}]}\n```"}
	w := NewWriter(c, config.ScriptConfig{MinScenes: 4, MaxScenes: 8})

	d, err := w.GenerateScript(context.Background(), "coffee")
	if err != nil {
		t.Fatalf("GenerateScript: %v", err)
	}
	if d.Title != "Beans" || len(d.Scenes) != 1 || *d.Scenes[0].Speaker != "Host" {
		t.Errorf("draft = %+v", d)
	}
	if c.system == "" || c.user == "" {
		t.Error("prompts not sent")
	}
}
