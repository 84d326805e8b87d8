// Package render composes the final video from the voiced scenes.
package render

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"

	"shorts-factory/config"
	"shorts-factory/pool"
	"shorts-factory/store"
	"shorts-factory/subtitles"
	"shorts-factory/types"
)

const progressDone = 0.9

// MetadataGenerator writes publish metadata for a finished script.
type MetadataGenerator interface {
	Generate(ctx context.Context, prompt string, script *types.Script) (*types.PublishMetadata, error)
}

// Composer is the video-composition step.
type Composer struct {
	muxer      Muxer
	prober     Prober
	encodes    *pool.Pool
	library    *Library
	transcribe subtitles.Transcriber
	meta       MetadataGenerator
	store      store.Store
	cfg        config.RenderConfig
	subs       config.SubtitlesConfig
	outputDir  string
}

// Option configures optional Composer collaborators.
type Option func(*Composer)

func WithProber(p Prober) Option { return func(c *Composer) { c.prober = p } }
func WithLibrary(l *Library) Option { return func(c *Composer) { c.library = l } }
func WithTranscriber(t subtitles.Transcriber) Option { return func(c *Composer) { c.transcribe = t } }
func WithMetadata(m MetadataGenerator) Option { return func(c *Composer) { c.meta = m } }
func WithSubtitleStyle(s config.SubtitlesConfig) Option { return func(c *Composer) { c.subs = s } }
func WithEncodePool(p *pool.Pool) Option { return func(c *Composer) { c.encodes = p } }

// NewComposer writes videos under <outputDir>/<project>/.
func NewComposer(m Muxer, st store.Store, cfg config.RenderConfig, outputDir string, opts ...Option) *Composer {
	c := &Composer{
		muxer:     m,
		store:     st,
		cfg:       cfg,
		subs:      config.Default().Subtitles,
		outputDir: outputDir,
	}
	for _, o := range opts {
		o(c)
	}
	if c.encodes == nil {
		c.encodes = pool.New("encodes", cfg.MaxConcurrentEncodes)
	}
	return c
}

func (c *Composer) Step() types.Step { return types.StepCompose }

// Run builds the video. A failed mux is recorded in the error log and leaves
// VideoPath empty, which ends the run as failed.
func (c *Composer) Run(ctx context.Context, st *types.State) error {
	if c.muxer == nil {
		return errors.New("composer has no muxer")
	}
	log.Printf("[render] Composing %d audio segments for %s", len(st.AudioFiles), st.ProjectID)

	dir := filepath.Join(c.outputDir, st.ProjectID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		st.Fail("Video composition failed: %v", err)
		return nil
	}

	job := Job{
		ProjectID:   st.ProjectID,
		Output:      filepath.Join(dir, "video.mp4"),
		Format:      st.Format,
		Segments:    c.segments(ctx, st),
		MusicVolume: st.MusicVolume,
	}
	if job.MusicVolume == 0 {
		job.MusicVolume = c.cfg.DefaultMusicVolume
	}
	job.BackgroundVideo = c.background(st, KindVideo, st.BackgroundVideo)
	job.Music = c.background(st, KindMusic, st.BackgroundMusic)

	if st.Captions {
		job.CaptionsFile = c.captions(ctx, st, job, dir)
	}

	path, err := pool.Submit(ctx, c.encodes, func(ctx context.Context) (string, error) {
		return c.muxer.Mux(ctx, job)
	})
	if err != nil {
		st.Fail("Video composition failed: %v", err)
		log.Printf("[render] ❌ %v", err)
		return nil
	}

	st.VideoPath = path
	c.persist(ctx, st, job)
	c.metadata(ctx, st)
	st.Advance(progressDone)
	log.Printf("[render] ✅ Final video ready: %s (%.1fs)", path, job.Total())
	return nil
}

// segments resolves each audio entry back to its scene through the index map.
func (c *Composer) segments(ctx context.Context, st *types.State) []Segment {
	scenes := st.Scenes()
	segs := make([]Segment, 0, len(st.AudioFiles))
	for k, file := range st.AudioFiles {
		sceneIdx := st.AudioSceneIndex[k]
		sc := scenes[sceneIdx]
		seg := Segment{
			Scene:    sceneIdx,
			Audio:    file,
			Speaker:  sc.Speaker,
			Line:     sc.Line,
			Duration: sc.Duration,
		}
		if sceneIdx < len(st.ImageSceneIndex) {
			if img := st.ImageSceneIndex[sceneIdx]; img != types.NoImage {
				seg.Image = st.ImageFiles[img]
			}
		}
		if c.prober != nil {
			if d, err := c.prober.Duration(ctx, file); err == nil && d > 0 {
				seg.Duration = d
			} else {
				log.Printf("[render] Warning: could not measure %s, using scene duration %.1fs", file, sc.Duration)
			}
		}
		segs = append(segs, seg)
	}
	return segs
}

// background resolves a user reference, or picks from the library when
// auto background is on. "" means none.
func (c *Composer) background(st *types.State, kind Kind, ref string) string {
	if c.library == nil {
		return ""
	}
	if ref != "" {
		path, err := c.library.Resolve(kind, ref)
		if err != nil {
			log.Printf("[render] Warning: %v, continuing without background %s", err, kind)
			return ""
		}
		return path
	}
	if !c.cfg.AutoBackground {
		return ""
	}
	path, ok := c.library.Pick(kind, st.ProjectID, Keywords(st.Prompt))
	if !ok {
		return ""
	}
	return path
}

func (c *Composer) captions(ctx context.Context, st *types.State, job Job, dir string) string {
	var segs []subtitles.Segment
	var at float64
	for _, s := range job.Segments {
		segs = append(segs, subtitles.Segment{Audio: s.Audio, Line: s.Line, Start: at, Duration: s.Duration})
		at += s.Duration
	}
	cues := subtitles.Build(ctx, segs, c.transcribe, subtitles.WordsPerCue(st.Format))
	if len(cues) == 0 {
		log.Println("[render] No caption text, continuing without captions")
		return ""
	}
	path := filepath.Join(dir, "captions.ass")
	if err := subtitles.WriteASS(path, cues, subtitles.StyleFor(c.subs, st.Format)); err != nil {
		log.Printf("[render] Warning: captions: %v, continuing without captions", err)
		return ""
	}
	log.Printf("[render] %d caption cues → %s", len(cues), path)
	return path
}

func (c *Composer) persist(ctx context.Context, st *types.State, job Job) {
	if c.store == nil {
		return
	}
	if err := c.store.SetVideo(ctx, st.ProjectID, st.VideoPath); err != nil {
		log.Printf("[render] Warning: could not save video path: %v", err)
	}
	a := types.Asset{Kind: "video", Path: st.VideoPath}
	if info, err := os.Stat(st.VideoPath); err == nil {
		a.SizeBytes = info.Size()
	}
	if err := c.store.SaveAsset(ctx, st.ProjectID, a); err != nil {
		log.Printf("[render] Warning: could not save video asset: %v", err)
	}
	if err := c.store.SetStatus(ctx, st.ProjectID, types.StatusCompleted, ""); err != nil {
		log.Printf("[render] Warning: could not set status: %v", err)
	}
}

// metadata fills in publish metadata when auto-publish was requested without any.
func (c *Composer) metadata(ctx context.Context, st *types.State) {
	if !st.AutoPublish || st.Metadata != nil || c.meta == nil {
		return
	}
	m, err := c.meta.Generate(ctx, st.Prompt, st.Script)
	if err != nil {
		st.Fail("Metadata generation failed: %v", err)
		return
	}
	st.Metadata = m
	log.Printf("[render] Metadata: %q", m.Title)
}
