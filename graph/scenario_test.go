package graph_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"shorts-factory/audio"
	"shorts-factory/casting"
	"shorts-factory/config"
	"shorts-factory/graph"
	"shorts-factory/images"
	"shorts-factory/render"
	"shorts-factory/script"
	"shorts-factory/store"
	"shorts-factory/types"
	"shorts-factory/upload"
)

type scriptedGen struct {
	draft *script.Draft
	err   error
	calls int
}

func (g *scriptedGen) GenerateScript(context.Context, string) (*script.Draft, error) {
	g.calls++
	return g.draft, g.err
}

func draftOf(scenes ...[2]string) *script.Draft {
	d := &script.Draft{}
	for _, s := range scenes {
		speaker, line, dur := s[0], s[1], 3.0
		d.Scenes = append(d.Scenes, script.DraftScene{Speaker: &speaker, Line: &line, Duration: &dur})
	}
	return d
}

type guySelector struct{ calls int }

func (s *guySelector) SelectVoices(_ context.Context, lines map[string][]string, _ casting.Catalog) (map[string]types.VoiceDescriptor, error) {
	s.calls++
	out := map[string]types.VoiceDescriptor{}
	for speaker := range lines {
		out[speaker] = types.VoiceDescriptor{VoiceID: "en-US-GuyNeural", Pitch: "+0Hz", Rate: "+0%"}
	}
	return out, nil
}

type noPrompts struct{}

func (noPrompts) GroupPrompts(_ context.Context, groups [][]types.Scene) ([]string, error) {
	return make([]string, len(groups)), nil
}
func (noPrompts) Summarize(context.Context, []types.Scene) (string, error) { return "summary", nil }

type noImages struct{ calls int }

func (n *noImages) Generate(_ context.Context, _ string, prompts []string, _ images.Size) ([]string, error) {
	n.calls++
	return make([]string, len(prompts)), nil
}

type staticResolver struct{ path string }

func (r staticResolver) Resolve(context.Context, string, string) (string, error) { return r.path, nil }

type fakeTTS struct {
	fail  map[int]bool
	calls int
}

func (f *fakeTTS) Synthesize(_ context.Context, _ string, scene int, _ string, _ types.VoiceDescriptor) (string, error) {
	f.calls++
	if f.fail[scene] {
		return "", errors.New("edge-tts exited 1")
	}
	return fmt.Sprintf("audio/%d.mp3", scene), nil
}

type captureMuxer struct {
	job   render.Job
	ass   string
	calls int
}

func (m *captureMuxer) Mux(_ context.Context, job render.Job) (string, error) {
	m.calls++
	m.job = job
	if job.CaptionsFile != "" {
		data, _ := os.ReadFile(job.CaptionsFile)
		m.ass = string(data)
	}
	return job.Output, nil
}

type harness struct {
	store    *store.Memory
	gen      *scriptedGen
	selector *guySelector
	synth    *noImages
	tts      *fakeTTS
	muxer    *captureMuxer
	runner   *graph.Runner
}

// newHarness wires the real stages around fakes. publisher, when set,
// builds the publish stage over the harness store.
func newHarness(t *testing.T, gen *scriptedGen, publisher func(st store.Store) graph.Stage) *harness {
	t.Helper()
	h := &harness{
		store:    store.NewMemory(),
		gen:      gen,
		selector: &guySelector{},
		synth:    &noImages{},
		tts:      &fakeTTS{fail: map[int]bool{}},
		muxer:    &captureMuxer{},
	}
	cfg := config.Default()
	stages := []graph.Stage{
		script.New(h.gen, h.store),
		casting.New(h.selector, h.store),
		images.New(noPrompts{}, h.synth, staticResolver{path: "static/bg.png"}, nil, h.store),
		audio.New(h.tts, h.store),
		render.NewComposer(h.muxer, h.store, cfg.Render, t.TempDir(), render.WithSubtitleStyle(cfg.Subtitles)),
	}
	if publisher != nil {
		stages = append(stages, publisher(h.store))
	}
	r, err := graph.NewRunner(h.store, stages)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	h.runner = r
	return h
}

func (h *harness) run(t *testing.T, req types.Request) *types.State {
	t.Helper()
	if req.ProjectID == "" {
		req.ProjectID = "p1"
	}
	if req.UserID == "" {
		req.UserID = "u1"
	}
	if req.Prompt == "" {
		req.Prompt = "facts about the ocean"
	}
	s, err := types.NewState(req)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	out, err := h.runner.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out
}

var (
	pitchRe = regexp.MustCompile(`^[+-]\d+Hz$`)
	rateRe  = regexp.MustCompile(`^[+-]\d+%$`)
)

func TestScenarioSingleSceneEndToEnd(t *testing.T) {
	h := newHarness(t, &scriptedGen{draft: draftOf([2]string{"Host", "Hello"})}, nil)
	s := h.run(t, types.Request{ImageMode: types.ImageNone})

	if s.Step != types.StepDone {
		t.Fatalf("step = %s (%s)", s.Step, s.FatalError)
	}
	v, ok := s.Cast["Host"]
	if !ok || !casting.DefaultCatalog().Has(v.VoiceID) {
		t.Errorf("Host cast = %+v", v)
	}
	if !pitchRe.MatchString(v.Pitch) || !rateRe.MatchString(v.Rate) {
		t.Errorf("voice offsets = %q %q", v.Pitch, v.Rate)
	}
	if len(s.AudioFiles) != 1 || len(s.AudioSceneIndex) != 1 || s.AudioSceneIndex[0] != 0 {
		t.Errorf("audio = %v %v", s.AudioFiles, s.AudioSceneIndex)
	}
	if s.VideoPath == "" {
		t.Error("video path is empty")
	}
	if len(s.Errors) != 0 {
		t.Errorf("errors = %v", s.Errors)
	}
	if s.Progress != 1.0 {
		t.Errorf("progress = %v", s.Progress)
	}
}

func TestScenarioScriptAlwaysFails(t *testing.T) {
	h := newHarness(t, &scriptedGen{err: errors.New("model overloaded")}, nil)
	s := h.run(t, types.Request{})

	if s.Step != types.StepFailed {
		t.Fatalf("step = %s", s.Step)
	}
	if s.Script != nil {
		t.Error("script should be unset")
	}
	if s.RetryCount != 3 || len(s.Errors) != 3 || h.gen.calls != 3 {
		t.Errorf("retries=%d errors=%d calls=%d", s.RetryCount, len(s.Errors), h.gen.calls)
	}
	if h.selector.calls != 0 || h.tts.calls != 0 || h.muxer.calls != 0 {
		t.Errorf("downstream ran: casting=%d audio=%d mux=%d", h.selector.calls, h.tts.calls, h.muxer.calls)
	}
	p, err := h.store.GetProject(context.Background(), "p1")
	if err != nil || p.Status != types.StatusFailed {
		t.Errorf("project = %+v, %v", p, err)
	}
}

func TestScenarioAudioSceneFailureIsSkipped(t *testing.T) {
	gen := &scriptedGen{draft: draftOf(
		[2]string{"Host", "whales sing"},
		[2]string{"Guest", "bees dance"},
		[2]string{"Host", "ants march"},
	)}
	h := newHarness(t, gen, nil)
	h.tts.fail[1] = true
	s := h.run(t, types.Request{ImageMode: types.ImageNone, Captions: true, Format: types.FormatVertical})

	if s.Step != types.StepDone {
		t.Fatalf("step = %s (%s)", s.Step, s.FatalError)
	}
	if len(s.AudioFiles) != 2 || s.AudioSceneIndex[0] != 0 || s.AudioSceneIndex[1] != 2 {
		t.Errorf("audio = %v %v", s.AudioFiles, s.AudioSceneIndex)
	}
	if len(h.muxer.job.Segments) != 2 || h.muxer.job.Segments[1].Line != "ants march" {
		t.Errorf("segments = %+v", h.muxer.job.Segments)
	}
	if !strings.Contains(h.muxer.ass, "WHALES SING") || !strings.Contains(h.muxer.ass, "ANTS MARCH") {
		t.Errorf("captions missing voiced scenes:\n%s", h.muxer.ass)
	}
	if strings.Contains(h.muxer.ass, "BEES") {
		t.Errorf("captions include the skipped scene:\n%s", h.muxer.ass)
	}
}

func TestScenarioUploadedBackgroundCoversEveryScene(t *testing.T) {
	gen := &scriptedGen{draft: draftOf(
		[2]string{"Host", "one"}, [2]string{"Host", "two"}, [2]string{"Host", "three"},
		[2]string{"Host", "four"}, [2]string{"Host", "five"},
	)}
	h := newHarness(t, gen, nil)
	s := h.run(t, types.Request{ImageMode: types.ImageUpload, BackgroundImage: "bg.png"})

	if s.Step != types.StepDone {
		t.Fatalf("step = %s (%s)", s.Step, s.FatalError)
	}
	if len(s.ImageFiles) != 1 {
		t.Fatalf("image files = %v", s.ImageFiles)
	}
	for i, v := range s.ImageSceneIndex {
		if v != 0 {
			t.Errorf("scene %d maps to image %d", i, v)
		}
	}
	if len(s.ImageSceneIndex) != 5 {
		t.Errorf("index = %v", s.ImageSceneIndex)
	}
	if h.synth.calls != 0 {
		t.Error("upload mode must not call the image model")
	}
	for _, seg := range h.muxer.job.Segments {
		if seg.Image != "static/bg.png" {
			t.Errorf("segment %d image = %q", seg.Scene, seg.Image)
		}
	}
}

type publishLog struct{ order []string }

type fakeRefresher struct {
	log *publishLog
	err error
}

func (f fakeRefresher) Refresh(context.Context, types.Connection) (upload.Token, error) {
	f.log.order = append(f.log.order, "refresh")
	if f.err != nil {
		return upload.Token{}, f.err
	}
	return upload.Token{AccessToken: "fresh", Expiry: time.Now().Add(time.Hour)}, nil
}

type fakeUploader struct {
	log   *publishLog
	token string
}

func (f *fakeUploader) Upload(_ context.Context, token, _ string, _ types.PublishMetadata) (string, error) {
	f.log.order = append(f.log.order, "upload")
	f.token = token
	return "vid42", nil
}

func publishHarness(t *testing.T, refreshErr error) (*harness, *publishLog, *fakeUploader) {
	t.Helper()
	pl := &publishLog{}
	up := &fakeUploader{log: pl}
	h := newHarness(t, &scriptedGen{draft: draftOf([2]string{"Host", "Hello"})}, func(st store.Store) graph.Stage {
		return upload.New(up, fakeRefresher{log: pl, err: refreshErr}, st)
	})

	expired := types.Connection{UserID: "u1", AccessToken: "stale", RefreshToken: "r1", ExpiresAt: time.Now().Add(-time.Hour)}
	if err := h.store.SaveConnection(context.Background(), expired); err != nil {
		t.Fatal(err)
	}
	return h, pl, up
}

func publishRequest() types.Request {
	return types.Request{
		ImageMode:   types.ImageNone,
		AutoPublish: true,
		Metadata:    &types.PublishMetadata{Title: "Ocean facts", Privacy: "private"},
	}
}

func TestScenarioExpiredCredentialRefreshedBeforeUpload(t *testing.T) {
	h, pl, up := publishHarness(t, nil)
	s := h.run(t, publishRequest())

	if got := strings.Join(pl.order, ","); got != "refresh,upload" {
		t.Fatalf("order = %s", got)
	}
	if up.token != "fresh" {
		t.Errorf("uploaded with %q", up.token)
	}
	if s.Step != types.StepDone || s.PublishedID != "vid42" {
		t.Errorf("step=%s published=%q", s.Step, s.PublishedID)
	}
	p, _ := h.store.GetProject(context.Background(), "p1")
	if p.Status != types.StatusPublished {
		t.Errorf("status = %s", p.Status)
	}
}

func TestScenarioRefreshAuthFailureKeepsProjectCompleted(t *testing.T) {
	authErr := fmt.Errorf("refresh token: %w", &oauth2.RetrieveError{
		Response:  &http.Response{StatusCode: http.StatusBadRequest},
		ErrorCode: "invalid_grant",
	})
	h, pl, _ := publishHarness(t, authErr)
	s := h.run(t, publishRequest())

	if got := strings.Join(pl.order, ","); got != "refresh" {
		t.Fatalf("order = %s, upload must not run", got)
	}
	if s.Step != types.StepDone {
		t.Errorf("step = %s", s.Step)
	}
	p, _ := h.store.GetProject(context.Background(), "p1")
	if p.Status != types.StatusCompleted || p.Message != "YouTube connection expired. Please reconnect." {
		t.Errorf("project = %s %q", p.Status, p.Message)
	}
	conn, ok := h.store.Connection("u1")
	if !ok || conn.Active {
		t.Errorf("connection should be deactivated: %+v", conn)
	}
	if !strings.HasPrefix(s.LastError(), "YouTube upload failed:") {
		t.Errorf("last error = %q", s.LastError())
	}
}

func TestScenarioCancelledRunFails(t *testing.T) {
	h := newHarness(t, &scriptedGen{draft: draftOf([2]string{"Host", "Hello"})}, nil)
	s, err := types.NewState(types.Request{ProjectID: "p1", UserID: "u1", Prompt: "x"})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := h.runner.Run(ctx, s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Step != types.StepFailed || !strings.Contains(out.FatalError, "cancelled") {
		t.Errorf("step=%s fatal=%q", out.Step, out.FatalError)
	}
	if h.gen.calls != 0 {
		t.Error("script stage ran after cancellation")
	}
}
