// Package store persists project progress, generated artifacts and platform
// connections. Stages treat every call as best effort: a failed save is
// logged and never changes routing.
package store

import (
	"context"
	"errors"
	"time"

	"shorts-factory/types"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Project is the persisted view of one pipeline run.
type Project struct {
	ID           string
	UserID       string
	Title        string
	Prompt       string
	Status       types.ProjectStatus
	Message      string
	VideoPath    string
	PublishedID  string
	PublishedURL string
	UpdatedAt    time.Time
}

// Store is the persistence collaborator consumed by the stages and the runner.
type Store interface {
	CreateProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	SetStatus(ctx context.Context, projectID string, status types.ProjectStatus, message string) error
	SetVideo(ctx context.Context, projectID, path string) error
	SetPublished(ctx context.Context, projectID, contentID, url string) error

	// SaveScript stores a new script version and returns its number.
	SaveScript(ctx context.Context, projectID string, script *types.Script) (int, error)
	SaveCast(ctx context.Context, projectID string, cast types.Cast) error
	SaveAsset(ctx context.Context, projectID string, asset types.Asset) error

	SaveConnection(ctx context.Context, conn types.Connection) error
	ActiveConnection(ctx context.Context, userID string) (*types.Connection, error)
	UpdateConnectionToken(ctx context.Context, userID, accessToken string, expiresAt time.Time) error
	DeactivateConnection(ctx context.Context, userID string) error
}
