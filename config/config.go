package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Script    ScriptConfig    `yaml:"script"`
	Casting   CastingConfig   `yaml:"casting"`
	Images    ImagesConfig    `yaml:"images"`
	Audio     AudioConfig     `yaml:"audio"`
	Subtitles SubtitlesConfig `yaml:"subtitles"`
	Render    RenderConfig    `yaml:"render"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Upload    UploadConfig    `yaml:"upload"`
	Queue     QueueConfig     `yaml:"queue"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Research  ResearchConfig  `yaml:"research"`
	Database  DatabaseConfig  `yaml:"database"`
	Paths     PathsConfig     `yaml:"paths"`
}

type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	APIKey      string  `yaml:"-"` // GROQ_API_KEY
}

type ScriptConfig struct {
	MaxRetries  int     `yaml:"max_retries"`
	MinScenes   int     `yaml:"min_scenes"`
	MaxScenes   int     `yaml:"max_scenes"`
	Temperature float64 `yaml:"temperature"`
}

type CastingConfig struct {
	FallbackVoices []string `yaml:"fallback_voices"`
	DefaultVoice   string   `yaml:"default_voice"`
	Locale         string   `yaml:"locale"`
}

type ImagesConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Model         string `yaml:"model"`
	MaxRetries    int    `yaml:"max_retries"`
	TimeoutSec    int    `yaml:"timeout_sec"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	SummaryScenes int    `yaml:"summary_scenes"`
}

type AudioConfig struct {
	Binary       string `yaml:"binary"`
	OutputFormat string `yaml:"output_format"`
}

type SubtitlesConfig struct {
	Engine       string `yaml:"engine"` // whisper | duration
	WhisperBin   string `yaml:"whisper_bin"`
	WhisperModel string `yaml:"whisper_model"`
	Font         string `yaml:"font"`
	FontSize     int    `yaml:"font_size"`
	Color        string `yaml:"color"`
	OutlineColor string `yaml:"outline_color"`
	Outline      int    `yaml:"outline"`
	MarginBottom int    `yaml:"margin_bottom"`
}

type RenderConfig struct {
	FFmpegBin            string  `yaml:"ffmpeg_bin"`
	FFprobeBin           string  `yaml:"ffprobe_bin"`
	FPS                  int     `yaml:"fps"`
	BackgroundColor      string  `yaml:"background_color"`
	KenBurnsZoomFactor   float64 `yaml:"ken_burns_zoom_factor"`
	MaxConcurrentEncodes int     `yaml:"max_concurrent_encodes"`
	AutoBackground       bool    `yaml:"auto_background"`
	DefaultMusicVolume   float64 `yaml:"default_music_volume"`
}

type MetadataConfig struct {
	TitleMaxChars   int    `yaml:"title_max_chars"`
	TagsCount       int    `yaml:"tags_count"`
	CategoryID      string `yaml:"category_id"`
	Privacy         string `yaml:"privacy"`
	ScheduleUploads bool   `yaml:"schedule_uploads"` // publish at the next Tue/Fri 2PM New York
}

type UploadConfig struct {
	ClientID          string `yaml:"-"` // YOUTUBE_CLIENT_ID
	ClientSecret      string `yaml:"-"` // YOUTUBE_CLIENT_SECRET
	RefreshMarginSec  int    `yaml:"refresh_margin_sec"`
	NotifySubscribers bool   `yaml:"notify_subscribers"`
	MadeForKids       bool   `yaml:"made_for_kids"`
	DefaultLanguage   string `yaml:"default_language"`
}

type QueueConfig struct {
	RedisURL        string `yaml:"-"` // REDIS_URL
	Name            string `yaml:"name"`
	ProgressChannel string `yaml:"progress_channel"`
	Concurrency     int    `yaml:"concurrency"`
}

type ScheduleConfig struct {
	Crons       []string `yaml:"crons"`
	UserID      string   `yaml:"user_id"`
	Format      string   `yaml:"format"`
	ImageMode   string   `yaml:"image_mode"`
	AutoPublish bool     `yaml:"auto_publish"`
}

type ResearchConfig struct {
	Subreddits     []string `yaml:"subreddits"`
	Keywords       []string `yaml:"keywords"`
	MinScore       int      `yaml:"min_score"`
	MinComments    int      `yaml:"min_comments"`
	LookbackDays   int      `yaml:"lookback_days"`
	MaxPostsPerSub int      `yaml:"max_posts_per_sub"`
	Filter         string   `yaml:"filter"` // govaluate expression over score, comments, age_days, keyword_hits
	RedditClientID string   `yaml:"-"`
	RedditSecret   string   `yaml:"-"`
	RedditUsername string   `yaml:"-"`
	RedditPassword string   `yaml:"-"`
}

type DatabaseConfig struct {
	URL           string `yaml:"-"` // DATABASE_URL
	EncryptionKey string `yaml:"-"` // TOKEN_ENCRYPTION_KEY
}

type PathsConfig struct {
	Output        string `yaml:"output"`
	Static        string `yaml:"static"`
	AssetsVideo   string `yaml:"assets_video"`
	AssetsMusic   string `yaml:"assets_music"`
	VideoTags     string `yaml:"video_tags"`
	MusicTags     string `yaml:"music_tags"`
	ClipUsageLog  string `yaml:"clip_usage_log"`
	UsedTopicsLog string `yaml:"used_topics_log"`
}

// Default returns the configuration used when config.yaml leaves a field unset.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.7,
		},
		Script: ScriptConfig{MaxRetries: 3, MinScenes: 4, MaxScenes: 12, Temperature: 0.8},
		Casting: CastingConfig{
			FallbackVoices: []string{
				"en-US-ChristopherNeural",
				"en-US-MichelleNeural",
				"en-US-GuyNeural",
				"en-US-JennyNeural",
			},
			DefaultVoice: "en-US-AriaNeural",
			Locale:       "en-US",
		},
		Images: ImagesConfig{
			Endpoint:      "https://image.pollinations.ai/prompt/",
			Model:         "flux",
			MaxRetries:    3,
			TimeoutSec:    90,
			MaxConcurrent: 1,
			SummaryScenes: 3,
		},
		Audio: AudioConfig{Binary: "edge-tts", OutputFormat: "mp3"},
		Subtitles: SubtitlesConfig{
			Engine:       "duration",
			WhisperBin:   "whisper",
			WhisperModel: "base",
			Font:         "Impact",
			FontSize:     64,
			Color:        "&H00FFFFFF",
			OutlineColor: "&H00000000",
			Outline:      4,
			MarginBottom: 180,
		},
		Render: RenderConfig{
			FFmpegBin:            "ffmpeg",
			FFprobeBin:           "ffprobe",
			FPS:                  30,
			BackgroundColor:      "0x0f0f19",
			KenBurnsZoomFactor:   1.08,
			MaxConcurrentEncodes: 2,
			DefaultMusicVolume:   0.15,
		},
		Metadata: MetadataConfig{TitleMaxChars: 90, TagsCount: 10, CategoryID: "22", Privacy: "private"},
		Upload:   UploadConfig{RefreshMarginSec: 300, DefaultLanguage: "en"},
		Queue:    QueueConfig{Name: "shorts:jobs", ProgressChannel: "shorts:progress", Concurrency: 2},
		Schedule: ScheduleConfig{Format: "vertical", ImageMode: "per_scene"},
		Research: ResearchConfig{
			Subreddits:     []string{"todayilearned", "explainlikeimfive", "AskHistorians"},
			MinScore:       500,
			MinComments:    50,
			LookbackDays:   30,
			MaxPostsPerSub: 25,
			Filter:         "score >= min_score && comments >= min_comments",
			Keywords:       []string{
				"secret", "mystery", "discovered", "unknown", "forgotten",
				"invented", "accident", "history", "scientists", "actually",
			},
		},
		Paths: PathsConfig{
			Output:        "output",
			Static:        "static",
			AssetsVideo:   "assets/video",
			AssetsMusic:   "assets/music",
			VideoTags:     "assets/video/tags.json",
			MusicTags:     "assets/music/tags.json",
			ClipUsageLog:  "logs/clip_usage.json",
			UsedTopicsLog: "logs/used_topics.json",
		},
	}
}

// Load reads config.yaml over the defaults and then applies secrets from the environment
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv copies secrets and deployment overrides from the process environment.
func (c *Config) ApplyEnv() {
	setString(&c.LLM.APIKey, "GROQ_API_KEY")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.Upload.ClientID, "YOUTUBE_CLIENT_ID")
	setString(&c.Upload.ClientSecret, "YOUTUBE_CLIENT_SECRET")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.EncryptionKey, "TOKEN_ENCRYPTION_KEY")
	setString(&c.Queue.RedisURL, "REDIS_URL")
	setString(&c.Research.RedditClientID, "REDDIT_CLIENT_ID")
	setString(&c.Research.RedditSecret, "REDDIT_CLIENT_SECRET")
	setString(&c.Research.RedditUsername, "REDDIT_USERNAME")
	setString(&c.Research.RedditPassword, "REDDIT_PASSWORD")
	if v, err := strconv.Atoi(os.Getenv("WORKER_CONCURRENCY")); err == nil && v > 0 {
		c.Queue.Concurrency = v
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
