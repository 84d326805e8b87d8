// Package upload publishes finished videos to YouTube.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"shorts-factory/store"
	"shorts-factory/types"
)

const (
	msgAuthExpired   = "YouTube connection expired. Please reconnect."
	msgQuotaExceeded = "YouTube quota exceeded. Will retry later."

	defaultRefreshMargin = 5 * time.Minute
)

// Token is a refreshed access token.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// Refresher exchanges a connection's refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, conn types.Connection) (Token, error)
}

// Uploader sends a video file and returns its platform ID.
type Uploader interface {
	Upload(ctx context.Context, accessToken, file string, meta types.PublishMetadata) (string, error)
}

// Publisher is the publish step. Every failure leaves the project completed,
// since the video itself is valid and can be published again later.
type Publisher struct {
	uploader  Uploader
	refresher Refresher
	store     store.Store
	margin    time.Duration
	now       func() time.Time
}

func New(u Uploader, r Refresher, st store.Store) *Publisher {
	return &Publisher{uploader: u, refresher: r, store: st, margin: defaultRefreshMargin, now: time.Now}
}

// WithRefreshMargin refreshes tokens that expire within d.
func (p *Publisher) WithRefreshMargin(d time.Duration) *Publisher {
	if d > 0 {
		p.margin = d
	}
	return p
}

func (p *Publisher) Step() types.Step { return types.StepPublish }

func (p *Publisher) Run(ctx context.Context, st *types.State) error {
	if p.uploader == nil || p.store == nil {
		return errors.New("publisher needs an uploader and a store")
	}
	log.Printf("[upload] Publishing %s for user %s", st.VideoPath, st.UserID)

	id, err := p.publish(ctx, st)
	if err != nil {
		p.handleFailure(ctx, st, err)
		return nil
	}

	st.PublishedID = id
	st.PublishedURL = WatchURL(id)
	if err := p.store.SetPublished(ctx, st.ProjectID, id, st.PublishedURL); err != nil {
		log.Printf("[upload] Warning: could not record publish: %v", err)
	}
	log.Printf("[upload] ✅ Uploaded: %s", st.PublishedURL)
	return nil
}

func (p *Publisher) publish(ctx context.Context, st *types.State) (string, error) {
	conn, err := p.store.ActiveConnection(ctx, st.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNoConnection
	}
	if err != nil {
		return "", fmt.Errorf("load connection: %w", err)
	}

	access := conn.AccessToken
	if conn.NeedsRefresh(p.now(), p.margin) {
		if p.refresher == nil {
			return "", errors.New("access token expired and no refresher is configured")
		}
		log.Printf("[upload] Refreshing YouTube token for %s", st.UserID)
		tok, err := p.refresher.Refresh(ctx, *conn)
		if err != nil {
			return "", err
		}
		access = tok.AccessToken
		if err := p.store.UpdateConnectionToken(ctx, st.UserID, tok.AccessToken, tok.Expiry); err != nil {
			log.Printf("[upload] Warning: could not save refreshed token: %v", err)
		}
	}

	return p.uploader.Upload(ctx, access, st.VideoPath, *st.Metadata)
}

// handleFailure applies the failure taxonomy.
func (p *Publisher) handleFailure(ctx context.Context, st *types.State, err error) {
	st.Fail("YouTube upload failed: %v", err)
	kind := Classify(err)
	log.Printf("[upload] ❌ Upload failed (%s): %v", kind, err)

	msg := err.Error()
	switch kind {
	case KindAuth:
		if derr := p.store.DeactivateConnection(ctx, st.UserID); derr != nil && !errors.Is(derr, store.ErrNotFound) {
			log.Printf("[upload] Warning: could not deactivate connection: %v", derr)
		}
		msg = msgAuthExpired
	case KindQuota:
		msg = msgQuotaExceeded
	}
	if serr := p.store.SetStatus(ctx, st.ProjectID, types.StatusCompleted, msg); serr != nil {
		log.Printf("[upload] Warning: could not set status: %v", serr)
	}
}
