package types

import "time"

// Step is a pipeline state. Working steps name the stage that runs next;
// StepDone and StepFailed are terminal.
type Step string

const (
	StepScript  Step = "script_writing"
	StepCasting Step = "casting"
	StepImages  Step = "image_generation"
	StepAudio   Step = "audio_generation"
	StepCompose Step = "composing"
	StepPublish Step = "publishing"
	StepDone    Step = "done"
	StepFailed  Step = "failed"
)

// Terminal reports whether no stage follows s.
func (s Step) Terminal() bool {
	return s == StepDone || s == StepFailed
}

// VideoFormat selects the output frame geometry.
type VideoFormat string

const (
	FormatVertical   VideoFormat = "vertical"   // 9:16 shorts
	FormatHorizontal VideoFormat = "horizontal" // 16:9
)

// ImageMode selects the image-generation strategy.
type ImageMode string

const (
	ImagePerScene ImageMode = "per_scene"
	ImageSingle   ImageMode = "single"
	ImageUpload   ImageMode = "upload"
	ImageNone     ImageMode = "none"
)

// ProjectStatus is the externally persisted workflow status.
type ProjectStatus string

const (
	StatusDraft            ProjectStatus = "draft"
	StatusGeneratingScript ProjectStatus = "generating_script"
	StatusCasting          ProjectStatus = "casting"
	StatusGeneratingImages ProjectStatus = "generating_images"
	StatusGeneratingAudio  ProjectStatus = "generating_audio"
	StatusGeneratingVideo  ProjectStatus = "generating_video"
	StatusCompleted        ProjectStatus = "completed"
	StatusUploading        ProjectStatus = "uploading"
	StatusPublished        ProjectStatus = "published"
	StatusFailed           ProjectStatus = "failed"
)

// NoImage marks a scene without a usable image in ImageSceneIndex.
const NoImage = -1

// Scene is one line of the script
type Scene struct {
	Speaker  string  `json:"speaker"`
	Line     string  `json:"line"`
	Duration float64 `json:"duration"` // seconds
}

// Script is the validated script document
type Script struct {
	Title  string  `json:"title,omitempty"`
	Scenes []Scene `json:"scenes"`
}

// VoiceDescriptor is a TTS voice with pitch/rate offsets in edge-tts notation
// ("+0Hz", "-5%").
type VoiceDescriptor struct {
	VoiceID string `json:"voice_id"`
	Pitch   string `json:"pitch"`
	Rate    string `json:"rate"`
}

// Cast maps speaker name to voice.
type Cast map[string]VoiceDescriptor

// Voice is one catalog entry offered to the casting director
type Voice struct {
	ID     string   `json:"voice_id"`
	Name   string   `json:"name"`
	Gender string   `json:"gender"`
	Locale string   `json:"locale"`
	Styles []string `json:"styles"`
}

// PublishMetadata holds the upload metadata for the video platform
type PublishMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"category_id"`
	Privacy     string   `json:"privacy"`              // public | private | unlisted
	PublishAt   string   `json:"publish_at,omitempty"` // RFC3339, private videos only
}

// Word is a transcribed word with timing in seconds
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Asset is a generated file recorded against a project
type Asset struct {
	Kind      string `json:"kind"` // audio | image | video
	Path      string `json:"path"`
	Scene     int    `json:"scene"`
	Character string `json:"character,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// Connection is a user's stored platform credential, decrypted.
type Connection struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	Active       bool      `json:"active"`
}

// NeedsRefresh reports whether the access token expires within the margin.
func (c *Connection) NeedsRefresh(now time.Time, margin time.Duration) bool {
	return c.AccessToken == "" || !c.ExpiresAt.After(now.Add(margin))
}
