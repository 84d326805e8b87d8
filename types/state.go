package types

import (
	"errors"
	"fmt"
	"time"
)

// DefaultScenesPerImage is used when a per_scene request leaves the ratio unset.
const DefaultScenesPerImage = 2

// Request is everything a caller supplies to start one pipeline run
type Request struct {
	ProjectID       string           `json:"project_id"`
	UserID          string           `json:"user_id"`
	Prompt          string           `json:"prompt"`
	Format          VideoFormat      `json:"video_format"`
	ImageMode       ImageMode        `json:"image_mode"`
	ScenesPerImage  int              `json:"scenes_per_image"`
	BackgroundImage string           `json:"background_image,omitempty"`
	BackgroundVideo string           `json:"background_video,omitempty"`
	BackgroundMusic string           `json:"background_music,omitempty"`
	MusicVolume     float64          `json:"music_volume"`
	Captions        bool             `json:"captions"`
	AutoPublish     bool             `json:"auto_publish"`
	Metadata        *PublishMetadata `json:"metadata,omitempty"`
}

// State is the record threaded through every stage of one run. It is owned
// by exactly one goroutine at a time: the Runner hands it to a stage and
// takes it back when the stage returns.
type State struct {
	// Inputs, fixed by NewState.
	ProjectID       string      `json:"project_id"`
	UserID          string      `json:"user_id"`
	Prompt          string      `json:"script_prompt"`
	Format          VideoFormat `json:"video_format"`
	ImageMode       ImageMode   `json:"image_mode"`
	ScenesPerImage  int         `json:"scenes_per_image"`
	BackgroundImage string      `json:"background_image,omitempty"`
	BackgroundVideo string      `json:"background_video,omitempty"`
	BackgroundMusic string      `json:"background_music,omitempty"`
	MusicVolume     float64     `json:"music_volume"`
	Captions        bool        `json:"captions"`
	AutoPublish     bool        `json:"auto_publish"`

	// Produced by stages.
	Script          *Script          `json:"script,omitempty"`
	Cast            Cast             `json:"cast,omitempty"`
	ImageFiles      []string         `json:"image_files"`
	ImageSceneIndex []int            `json:"image_scene_index"`
	ImagePrompts    []string         `json:"image_prompts"`
	AudioFiles      []string         `json:"audio_files"`
	AudioSceneIndex []int            `json:"audio_scene_index"`
	VideoPath       string           `json:"video_path,omitempty"`
	Metadata        *PublishMetadata `json:"metadata,omitempty"`
	PublishedID     string           `json:"published_id,omitempty"`
	PublishedURL    string           `json:"published_url,omitempty"`

	Errors     []string `json:"errors"`
	FatalError string   `json:"error_message,omitempty"` // first cause of a failed run
	RetryCount int      `json:"retry_count"`
	Step       Step     `json:"current_step"`
	Progress   float64  `json:"progress"`
	Version    int      `json:"version"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// NewState validates req and returns a fresh state positioned at the script step.
func NewState(req Request) (*State, error) {
	if req.ProjectID == "" {
		return nil, errors.New("project id is required")
	}
	if req.UserID == "" {
		return nil, errors.New("user id is required")
	}
	if req.Prompt == "" {
		return nil, errors.New("script prompt is required")
	}

	switch req.Format {
	case "":
		req.Format = FormatHorizontal
	case FormatVertical, FormatHorizontal:
	default:
		return nil, fmt.Errorf("unknown video format %q", req.Format)
	}

	switch req.ImageMode {
	case "":
		req.ImageMode = ImagePerScene
	case ImagePerScene, ImageSingle, ImageUpload, ImageNone:
	default:
		return nil, fmt.Errorf("unknown image mode %q", req.ImageMode)
	}

	if req.ScenesPerImage < 0 {
		return nil, fmt.Errorf("scenes per image must be positive, got %d", req.ScenesPerImage)
	}
	if req.ScenesPerImage == 0 {
		req.ScenesPerImage = DefaultScenesPerImage
	}
	if req.MusicVolume < 0 || req.MusicVolume > 1 {
		return nil, fmt.Errorf("music volume must be within [0,1], got %.2f", req.MusicVolume)
	}

	return &State{
		ProjectID:       req.ProjectID,
		UserID:          req.UserID,
		Prompt:          req.Prompt,
		Format:          req.Format,
		ImageMode:       req.ImageMode,
		ScenesPerImage:  req.ScenesPerImage,
		BackgroundImage: req.BackgroundImage,
		BackgroundVideo: req.BackgroundVideo,
		BackgroundMusic: req.BackgroundMusic,
		MusicVolume:     req.MusicVolume,
		Captions:        req.Captions,
		AutoPublish:     req.AutoPublish,
		Metadata:        req.Metadata,
		ImageFiles:      []string{},
		ImageSceneIndex: []int{},
		ImagePrompts:    []string{},
		AudioFiles:      []string{},
		AudioSceneIndex: []int{},
		Errors:          []string{},
		Step:            StepScript,
		StartedAt:       time.Now().UTC(),
	}, nil
}

// Advance raises progress to p. Lower values are ignored so progress never
// moves backwards within a run.
func (s *State) Advance(p float64) {
	if p > 1 {
		p = 1
	}
	if p > s.Progress {
		s.Progress = p
	}
}

// Fail appends a message to the error log.
func (s *State) Fail(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	s.Errors = append(s.Errors, msg)
	return msg
}

// LastError returns the most recent error log entry, or "".
func (s *State) LastError() string {
	if len(s.Errors) == 0 {
		return ""
	}
	return s.Errors[len(s.Errors)-1]
}

// Scenes returns the script scenes, or nil before the script exists.
func (s *State) Scenes() []Scene {
	if s.Script == nil {
		return nil
	}
	return s.Script.Scenes
}

// Speakers returns the unique speakers in order of first appearance.
func (s *State) Speakers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, sc := range s.Scenes() {
		if !seen[sc.Speaker] {
			seen[sc.Speaker] = true
			out = append(out, sc.Speaker)
		}
	}
	return out
}
