package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"shorts-factory/audio"
	"shorts-factory/casting"
	"shorts-factory/config"
	"shorts-factory/graph"
	"shorts-factory/images"
	"shorts-factory/llm"
	"shorts-factory/metadata"
	"shorts-factory/pool"
	"shorts-factory/render"
	"shorts-factory/script"
	"shorts-factory/store"
	"shorts-factory/subtitles"
	"shorts-factory/upload"
)

// app holds the collaborators shared by every run in the process.
type app struct {
	cfg    *config.Config
	store  store.Store
	runner *graph.Runner
	close  func()
}

// loadConfig reads path, falling back to defaults plus environment when the
// file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	log.Printf("⚠️  %s not found, using defaults", path)
	cfg = config.Default()
	cfg.ApplyEnv()
	return cfg, nil
}

func openStore(cfg *config.Config) (store.Store, func(), error) {
	if cfg.Database.URL == "" {
		log.Println("⚠️  DATABASE_URL not set, continuing without persistence")
		return store.NewMemory(), func() {}, nil
	}
	var (
		cipher *store.Cipher
		err    error
	)
	if cfg.Database.EncryptionKey == "" {
		log.Println("⚠️  TOKEN_ENCRYPTION_KEY not set, stored tokens will not survive a restart")
		cipher, err = store.RandomCipher()
	} else {
		cipher, err = store.NewCipher(cfg.Database.EncryptionKey)
	}
	if err != nil {
		return nil, nil, err
	}
	db, err := store.Open(cfg.Database.URL, cipher)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}

// newApp wires every stage. The asset library watcher lives until ctx ends.
func newApp(ctx context.Context, cfg *config.Config, notifier graph.Notifier) (*app, error) {
	st, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	client, err := llm.New(cfg.LLM)
	if err != nil {
		closeStore()
		return nil, err
	}

	scriptStage := script.New(script.NewWriter(client, cfg.Script), st)

	castingStage := casting.New(casting.NewDirector(client), st,
		casting.WithCatalog(casting.DefaultCatalog().ForLocale(cfg.Casting.Locale)),
		casting.WithFallback(cfg.Casting.FallbackVoices),
	)

	imageStage := images.New(
		images.NewLLMPrompter(client),
		images.NewPollinations(cfg.Images, cfg.Paths.Static),
		images.NewReferences(cfg.Paths.Static),
		pool.New("images", cfg.Images.MaxConcurrent),
		st,
	).WithSummaryScenes(cfg.Images.SummaryScenes)

	tts := audio.NewEdgeTTS(cfg.Audio, cfg.Paths.Static)
	if !tts.Available() {
		log.Printf("⚠️  %s not found on PATH, audio generation will fail", cfg.Audio.Binary)
	}
	audioStage := audio.New(tts, st)

	ff := render.NewFFmpeg(cfg.Render)
	lib := render.NewLibrary(cfg.Paths)
	go func() {
		if err := lib.Watch(ctx); err != nil {
			log.Printf("[assets] Warning: %v, continuing without tag reloads", err)
		}
	}()
	opts := []render.Option{
		render.WithProber(ff),
		render.WithLibrary(lib),
		render.WithMetadata(metadata.New(client, cfg.Metadata)),
		render.WithSubtitleStyle(cfg.Subtitles),
		render.WithEncodePool(pool.New("encodes", cfg.Render.MaxConcurrentEncodes)),
	}
	if cfg.Subtitles.Engine == "whisper" {
		w := subtitles.NewWhisper(cfg.Subtitles)
		if w.Available() {
			opts = append(opts, render.WithTranscriber(w))
		} else {
			log.Printf("⚠️  %s not found, continuing with duration-timed captions", cfg.Subtitles.WhisperBin)
		}
	}
	composer := render.NewComposer(ff, st, cfg.Render, cfg.Paths.Output, opts...)

	stages := []graph.Stage{scriptStage, castingStage, imageStage, audioStage, composer}
	if cfg.Upload.ClientID != "" && cfg.Upload.ClientSecret != "" {
		publisher := upload.New(upload.NewYouTube(cfg.Upload), upload.NewOAuth(cfg.Upload), st).
			WithRefreshMargin(time.Duration(cfg.Upload.RefreshMarginSec) * time.Second)
		stages = append(stages, publisher)
	} else {
		log.Println("⚠️  YOUTUBE_CLIENT_ID/SECRET not set, continuing without publishing")
	}

	runner, err := graph.NewRunner(st, stages,
		graph.WithNotifier(notifier),
		graph.WithRetry(graph.Retry{Max: cfg.Script.MaxRetries}),
	)
	if err != nil {
		closeStore()
		return nil, err
	}
	return &app{cfg: cfg, store: st, runner: runner, close: closeStore}, nil
}
