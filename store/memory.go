package store

import (
	"context"
	"sync"
	"time"

	"shorts-factory/types"
)

// StatusChange is one SetStatus call recorded by Memory.
type StatusChange struct {
	Status  types.ProjectStatus
	Message string
}

// Memory is an in-process Store for single runs without a database.
type Memory struct {
	mu          sync.Mutex
	projects    map[string]*Project
	history     map[string][]StatusChange
	scripts     map[string][]types.Script
	casts       map[string][]types.Cast
	assets      map[string][]types.Asset
	connections map[string]types.Connection
}

func NewMemory() *Memory {
	return &Memory{
		projects:    make(map[string]*Project),
		history:     make(map[string][]StatusChange),
		scripts:     make(map[string][]types.Script),
		casts:       make(map[string][]types.Cast),
		assets:      make(map[string][]types.Asset),
		connections: make(map[string]types.Connection),
	}
}

func (m *Memory) CreateProject(_ context.Context, p Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Status == "" {
		p.Status = types.StatusDraft
	}
	p.UpdatedAt = time.Now()
	m.projects[p.ID] = &p
	return nil
}

func (m *Memory) GetProject(_ context.Context, id string) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// project returns the row for id, creating a placeholder so callers that
// skip CreateProject still see their updates.
func (m *Memory) project(id string) *Project {
	p, ok := m.projects[id]
	if !ok {
		p = &Project{ID: id, Status: types.StatusDraft}
		m.projects[id] = p
	}
	p.UpdatedAt = time.Now()
	return p
}

func (m *Memory) SetStatus(_ context.Context, projectID string, status types.ProjectStatus, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.project(projectID)
	p.Status = status
	p.Message = message
	m.history[projectID] = append(m.history[projectID], StatusChange{Status: status, Message: message})
	return nil
}

// History returns every status change recorded for the project, oldest first.
func (m *Memory) History(projectID string) []StatusChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StatusChange(nil), m.history[projectID]...)
}

func (m *Memory) SetVideo(_ context.Context, projectID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.project(projectID).VideoPath = path
	return nil
}

func (m *Memory) SetPublished(_ context.Context, projectID, contentID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.project(projectID)
	p.Status = types.StatusPublished
	p.Message = ""
	p.PublishedID = contentID
	p.PublishedURL = url
	m.history[projectID] = append(m.history[projectID], StatusChange{Status: types.StatusPublished})
	return nil
}

func (m *Memory) SaveScript(_ context.Context, projectID string, script *types.Script) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[projectID] = append(m.scripts[projectID], *script)
	return len(m.scripts[projectID]), nil
}

// Scripts returns the stored script versions, version 1 first.
func (m *Memory) Scripts(projectID string) []types.Script {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Script(nil), m.scripts[projectID]...)
}

func (m *Memory) SaveCast(_ context.Context, projectID string, cast types.Cast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(types.Cast, len(cast))
	for k, v := range cast {
		cp[k] = v
	}
	m.casts[projectID] = append(m.casts[projectID], cp)
	return nil
}

func (m *Memory) SaveAsset(_ context.Context, projectID string, a types.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[projectID] = append(m.assets[projectID], a)
	return nil
}

// Assets returns the recorded assets for a project.
func (m *Memory) Assets(projectID string) []types.Asset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Asset(nil), m.assets[projectID]...)
}

func (m *Memory) SaveConnection(_ context.Context, conn types.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn.Active = true
	m.connections[conn.UserID] = conn
	return nil
}

func (m *Memory) ActiveConnection(_ context.Context, userID string) (*types.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.connections[userID]
	if !ok || !c.Active {
		return nil, ErrNotFound
	}
	return &c, nil
}

// Connection returns the stored connection regardless of its active flag.
func (m *Memory) Connection(userID string) (types.Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.connections[userID]
	return c, ok
}

func (m *Memory) UpdateConnectionToken(_ context.Context, userID, accessToken string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.connections[userID]
	if !ok {
		return ErrNotFound
	}
	c.AccessToken = accessToken
	c.ExpiresAt = expiresAt
	m.connections[userID] = c
	return nil
}

func (m *Memory) DeactivateConnection(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.connections[userID]
	if !ok {
		return ErrNotFound
	}
	c.Active = false
	m.connections[userID] = c
	return nil
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*DB)(nil)
)
