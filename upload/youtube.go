package upload

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"shorts-factory/config"
	"shorts-factory/types"
)

// YouTube uploads through the Data API v3 with a user's access token.
type YouTube struct {
	cfg  config.UploadConfig
	opts []option.ClientOption
}

// NewYouTube accepts extra client options, e.g. option.WithEndpoint in tests.
func NewYouTube(cfg config.UploadConfig, opts ...option.ClientOption) *YouTube {
	return &YouTube{cfg: cfg, opts: opts}
}

// Upload sends file with meta and returns the new video ID.
func (y *YouTube) Upload(ctx context.Context, accessToken, file string, meta types.PublishMetadata) (string, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, y.opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("youtube service: %w", err)
	}

	privacy := meta.Privacy
	if privacy == "" {
		privacy = "private"
	}
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                meta.Title,
			Description:          meta.Description,
			Tags:                 meta.Tags,
			CategoryId:           meta.CategoryID,
			DefaultLanguage:      y.cfg.DefaultLanguage,
			DefaultAudioLanguage: y.cfg.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           privacy,
			SelfDeclaredMadeForKids: y.cfg.MadeForKids,
		},
	}
	// scheduling requires a private video
	if meta.PublishAt != "" && privacy == "private" {
		video.Status.PublishAt = meta.PublishAt
		log.Printf("[upload] Scheduled for: %s UTC", meta.PublishAt)
	}

	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()
	if fi, err := f.Stat(); err == nil {
		log.Printf("[upload] File size: %.1f MB", float64(fi.Size())/1024/1024)
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, video).
		NotifySubscribers(y.cfg.NotifySubscribers).
		Media(f)
	uploaded, err := call.Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload: %w", err)
	}
	return uploaded.Id, nil
}

// WatchURL is the public URL of a video ID.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// OAuth refreshes access tokens with the app's Google client credentials.
type OAuth struct {
	conf *oauth2.Config
}

func NewOAuth(cfg config.UploadConfig) *OAuth {
	return &OAuth{conf: &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
	}}
}

// WithEndpoint overrides the token endpoint.
func (o *OAuth) WithEndpoint(e oauth2.Endpoint) *OAuth {
	o.conf.Endpoint = e
	return o
}

// Refresh exchanges the connection's refresh token for a new access token.
func (o *OAuth) Refresh(ctx context.Context, conn types.Connection) (Token, error) {
	if conn.RefreshToken == "" {
		return Token{}, fmt.Errorf("connection for %s has no refresh token: %w", conn.UserID, ErrNoConnection)
	}
	expired := &oauth2.Token{RefreshToken: conn.RefreshToken, Expiry: time.Now().Add(-time.Hour)} // force refresh
	tok, err := o.conf.TokenSource(ctx, expired).Token()
	if err != nil {
		return Token{}, fmt.Errorf("refresh token: %w", err)
	}
	return Token{AccessToken: tok.AccessToken, Expiry: tok.Expiry}, nil
}
