package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"shorts-factory/config"
	"shorts-factory/queue"
	"shorts-factory/research"
	"shorts-factory/store"
	"shorts-factory/types"
)

const usage = `usage: shorts-factory <command> [flags]

commands:
  run       generate one video in the foreground
  worker    consume jobs from the Redis queue
  enqueue   push one job onto the Redis queue
  schedule  enqueue a researched topic on every cron tick
  connect   store a YouTube refresh token for a user`

func main() {
	// .env is for local runs; deployments set real env vars
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "run":
		err = cmdRun(ctx, args)
	case "worker":
		err = cmdWorker(ctx, args)
	case "enqueue":
		err = cmdEnqueue(ctx, args)
	case "schedule":
		err = cmdSchedule(ctx, args)
	case "connect":
		err = cmdConnect(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// requestFlags registers the per-run flags shared by run and enqueue.
type requestFlags struct {
	config   *string
	project  *string
	user     *string
	prompt   *string
	format   *string
	images   *string
	ratio    *int
	bgImage  *string
	bgVideo  *string
	music    *string
	volume   *float64
	captions *bool
	publish  *bool
	title    *string
	privacy  *string
}

func newRequestFlags(fs *flag.FlagSet) *requestFlags {
	return &requestFlags{
		config:   fs.String("config", "config.yaml", "path to config.yaml"),
		project:  fs.String("project", "", "project ID (default: random UUID)"),
		user:     fs.String("user", "local", "owner user ID"),
		prompt:   fs.String("prompt", "", "topic prompt for the script (required)"),
		format:   fs.String("format", string(types.FormatVertical), "vertical | horizontal"),
		images:   fs.String("images", string(types.ImagePerScene), "per_scene | single | upload | none"),
		ratio:    fs.Int("ratio", types.DefaultScenesPerImage, "scenes per generated image"),
		bgImage:  fs.String("bg-image", "", "background image for upload mode"),
		bgVideo:  fs.String("bg-video", "", "background video reference"),
		music:    fs.String("music", "", "background music reference"),
		volume:   fs.Float64("volume", -1, "music volume 0..1 (default from config)"),
		captions: fs.Bool("captions", true, "burn in captions"),
		publish:  fs.Bool("publish", false, "upload to YouTube when done"),
		title:    fs.String("title", "", "publish title; skips metadata generation"),
		privacy:  fs.String("privacy", "", "publish privacy when -title is set"),
	}
}

func (f *requestFlags) request(cfg *config.Config) types.Request {
	req := types.Request{
		ProjectID:       *f.project,
		UserID:          *f.user,
		Prompt:          strings.TrimSpace(*f.prompt),
		Format:          types.VideoFormat(*f.format),
		ImageMode:       types.ImageMode(*f.images),
		ScenesPerImage:  *f.ratio,
		BackgroundImage: *f.bgImage,
		BackgroundVideo: *f.bgVideo,
		BackgroundMusic: *f.music,
		MusicVolume:     *f.volume,
		Captions:        *f.captions,
		AutoPublish:     *f.publish,
	}
	if req.MusicVolume < 0 {
		req.MusicVolume = cfg.Render.DefaultMusicVolume
	}
	if *f.title != "" {
		req.Metadata = &types.PublishMetadata{
			Title:      *f.title,
			CategoryID: cfg.Metadata.CategoryID,
			Privacy:    *f.privacy,
		}
	}
	return req
}

func cmdRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	rf := newRequestFlags(fs)
	fs.Parse(args)

	cfg, err := loadConfig(*rf.config)
	if err != nil {
		return err
	}
	req := rf.request(cfg)
	if req.ProjectID == "" {
		req.ProjectID = uuid.NewString()
	}

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.close()

	s, err := a.runProject(ctx, req)
	if err != nil {
		return err
	}
	if s.Step != types.StepDone {
		return fmt.Errorf("pipeline failed: %s", s.FatalError)
	}
	return nil
}

func cmdWorker(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config.yaml")
	concurrency := fs.Int("concurrency", 0, "parallel pipelines (default from config)")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *concurrency > 0 {
		cfg.Queue.Concurrency = *concurrency
	}

	rdb, err := queue.NewClient(ctx, cfg.Queue.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	a, err := newApp(ctx, cfg, queue.NewPublisher(rdb, cfg.Queue))
	if err != nil {
		return err
	}
	defer a.close()

	w := queue.NewWorker(queue.New(rdb, cfg.Queue), cfg.Queue.Concurrency)
	return w.Listen(ctx, func(ctx context.Context, job queue.Job) error {
		s, err := a.runProject(ctx, job.Request)
		if err != nil {
			return err
		}
		if s.Step != types.StepDone {
			return errors.New(s.FatalError)
		}
		return nil
	})
}

func cmdEnqueue(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	rf := newRequestFlags(fs)
	fs.Parse(args)

	cfg, err := loadConfig(*rf.config)
	if err != nil {
		return err
	}
	req := rf.request(cfg)
	// fail fast instead of letting the worker reject it
	if _, err := types.NewState(withPlaceholderID(req)); err != nil {
		return err
	}

	rdb, err := queue.NewClient(ctx, cfg.Queue.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	job, err := queue.New(rdb, cfg.Queue).Enqueue(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(job.Request.ProjectID)
	return nil
}

func cmdSchedule(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config.yaml")
	once := fs.Bool("once", false, "enqueue one topic now and exit")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if cfg.Schedule.UserID == "" {
		return errors.New("schedule.user_id is required")
	}

	src, err := research.NewRedditSource(cfg.Research)
	if err != nil {
		return err
	}
	scraper, err := research.New(src, cfg.Research, cfg.Paths.UsedTopicsLog)
	if err != nil {
		return err
	}

	rdb, err := queue.NewClient(ctx, cfg.Queue.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()
	q := queue.New(rdb, cfg.Queue)

	tick := func() {
		topic, err := scraper.Next(ctx)
		if err != nil {
			log.Printf("[schedule] ❌ No topic this tick: %v", err)
			return
		}
		req := types.Request{
			UserID:         cfg.Schedule.UserID,
			Prompt:         topic.Prompt(),
			Format:         types.VideoFormat(cfg.Schedule.Format),
			ImageMode:      types.ImageMode(cfg.Schedule.ImageMode),
			ScenesPerImage: types.DefaultScenesPerImage,
			MusicVolume:    cfg.Render.DefaultMusicVolume,
			Captions:       true,
			AutoPublish:    cfg.Schedule.AutoPublish,
		}
		if _, err := q.Enqueue(ctx, req); err != nil {
			log.Printf("[schedule] ❌ Enqueue failed: %v", err)
		}
	}

	if *once {
		tick()
		return nil
	}
	if len(cfg.Schedule.Crons) == 0 {
		return errors.New("schedule.crons is empty")
	}

	c := cron.New()
	for _, spec := range cfg.Schedule.Crons {
		if _, err := c.AddFunc(spec, tick); err != nil {
			return fmt.Errorf("cron %q: %w", spec, err)
		}
		log.Printf("[schedule] Added %q", spec)
	}
	c.Start()
	log.Println("[schedule] Scheduler started")
	<-ctx.Done()
	<-c.Stop().Done()
	log.Println("[schedule] Scheduler stopped")
	return nil
}

func cmdConnect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("connect", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config.yaml")
	user := fs.String("user", "", "user ID")
	refresh := fs.String("refresh-token", "", "YouTube OAuth refresh token")
	fs.Parse(args)

	if *user == "" || *refresh == "" {
		return errors.New("-user and -refresh-token are required")
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("connect needs DATABASE_URL; an in-memory connection would be lost on exit")
	}
	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// no access token yet, so the first publish refreshes
	if err := st.SaveConnection(ctx, types.Connection{UserID: *user, RefreshToken: *refresh}); err != nil {
		return err
	}
	log.Printf("✅ Connection saved for %s", *user)
	return nil
}

// runProject records the project, runs the graph and saves the final state
// next to the video.
func (a *app) runProject(ctx context.Context, req types.Request) (*types.State, error) {
	s, err := types.NewState(req)
	if err != nil {
		return nil, err
	}
	if err := a.store.CreateProject(ctx, store.Project{
		ID:     req.ProjectID,
		UserID: req.UserID,
		Prompt: req.Prompt,
		Status: types.StatusDraft,
	}); err != nil {
		log.Printf("Warning: could not create project %s: %v", req.ProjectID, err)
	}

	log.Printf("🎬 Pipeline starting for project %s", req.ProjectID)
	log.Printf("📁 Output dir: %s", filepath.Join(a.cfg.Paths.Output, req.ProjectID))
	start := time.Now()

	s, err = a.runner.Run(ctx, s)
	saveState(s, filepath.Join(a.cfg.Paths.Output, req.ProjectID))
	if err != nil {
		return s, err
	}

	log.Println("\n━━━ Summary ━━━")
	log.Printf("Step: %s  Progress: %.0f%%  Took: %s", s.Step, s.Progress*100, time.Since(start).Round(time.Second))
	for _, e := range s.Errors {
		log.Printf("⚠️  %s", e)
	}
	if s.Step == types.StepDone {
		log.Printf("✅ Video: %s", s.VideoPath)
		if s.PublishedURL != "" {
			log.Printf("✅ Published: %s", s.PublishedURL)
		}
	}
	return s, nil
}

func withPlaceholderID(req types.Request) types.Request {
	if req.ProjectID == "" {
		req.ProjectID = "pending"
	}
	return req
}

func saveState(s *types.State, dir string) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: could not create %s: %v", dir, err)
		return
	}
	saveJSON(filepath.Join(dir, "pipeline_state.json"), s)
}

func saveJSON(path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("Warning: could not marshal JSON for %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("Warning: could not save %s: %v", path, err)
	}
}
