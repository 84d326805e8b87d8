package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shorts-factory/types"
)

// DB is the Postgres-backed Store.
type DB struct {
	db     *gorm.DB
	cipher *Cipher
}

// Open connects to dsn, migrates the schema and returns a DB.
func Open(dsn string, cipher *Cipher) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping: %w", err)
	}
	if err := db.AutoMigrate(&projectRow{}, &scriptRow{}, &castRow{}, &assetRow{}, &connectionRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Println("[store] Database connected")
	return New(db, cipher), nil
}

// New wraps an existing connection.
func New(db *gorm.DB, cipher *Cipher) *DB {
	return &DB{db: db, cipher: cipher}
}

// Close releases the connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *DB) CreateProject(ctx context.Context, p Project) error {
	status := p.Status
	if status == "" {
		status = types.StatusDraft
	}
	row := projectRow{
		ID:     p.ID,
		UserID: p.UserID,
		Title:  p.Title,
		Prompt: p.Prompt,
		Status: string(status),
	}
	return d.db.WithContext(ctx).Create(&row).Error
}

func (d *DB) GetProject(ctx context.Context, id string) (*Project, error) {
	var row projectRow
	err := d.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Project{
		ID:           row.ID,
		UserID:       row.UserID,
		Title:        row.Title,
		Prompt:       row.Prompt,
		Status:       types.ProjectStatus(row.Status),
		Message:      row.ErrorMessage,
		VideoPath:    row.VideoPath,
		PublishedID:  row.PublishedID,
		PublishedURL: row.PublishedURL,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

func (d *DB) SetStatus(ctx context.Context, projectID string, status types.ProjectStatus, message string) error {
	return d.updateProject(ctx, projectID, map[string]any{
		"status":        string(status),
		"error_message": message,
	})
}

func (d *DB) SetVideo(ctx context.Context, projectID, path string) error {
	return d.updateProject(ctx, projectID, map[string]any{"video_path": path})
}

func (d *DB) SetPublished(ctx context.Context, projectID, contentID, url string) error {
	return d.updateProject(ctx, projectID, map[string]any{
		"status":        string(types.StatusPublished),
		"published_id":  contentID,
		"published_url": url,
		"error_message": "",
	})
}

func (d *DB) updateProject(ctx context.Context, projectID string, fields map[string]any) error {
	res := d.db.WithContext(ctx).Model(&projectRow{}).Where("id = ?", projectID).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) SaveScript(ctx context.Context, projectID string, script *types.Script) (int, error) {
	content, err := json.Marshal(script)
	if err != nil {
		return 0, err
	}
	var version int
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest int
		if err := tx.Model(&scriptRow{}).Where("project_id = ?", projectID).
			Select("COALESCE(MAX(version), 0)").Scan(&latest).Error; err != nil {
			return err
		}
		version = latest + 1
		return tx.Create(&scriptRow{ProjectID: projectID, Version: version, Content: string(content)}).Error
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (d *DB) SaveCast(ctx context.Context, projectID string, cast types.Cast) error {
	content, err := json.Marshal(cast)
	if err != nil {
		return err
	}
	return d.db.WithContext(ctx).Create(&castRow{ProjectID: projectID, Assignments: string(content)}).Error
}

func (d *DB) SaveAsset(ctx context.Context, projectID string, a types.Asset) error {
	return d.db.WithContext(ctx).Create(&assetRow{
		ProjectID: projectID,
		Kind:      a.Kind,
		Path:      a.Path,
		Scene:     a.Scene,
		Character: a.Character,
		SizeBytes: a.SizeBytes,
	}).Error
}

// SaveConnection upserts the user's connection and marks it active.
func (d *DB) SaveConnection(ctx context.Context, conn types.Connection) error {
	access, err := d.cipher.Encrypt(conn.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := d.cipher.Encrypt(conn.RefreshToken)
	if err != nil {
		return err
	}
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row connectionRow
		err := tx.Where("user_id = ?", conn.UserID).First(&row).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		row.UserID = conn.UserID
		row.AccessToken = access
		row.RefreshToken = refresh
		row.TokenExpiresAt = conn.ExpiresAt
		row.IsActive = true
		return tx.Save(&row).Error
	})
}

func (d *DB) ActiveConnection(ctx context.Context, userID string) (*types.Connection, error) {
	var row connectionRow
	err := d.db.WithContext(ctx).Where("user_id = ? AND is_active = ?", userID, true).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	access, err := d.cipher.Decrypt(row.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	refresh, err := d.cipher.Decrypt(row.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return &types.Connection{
		UserID:       row.UserID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    row.TokenExpiresAt,
		Active:       row.IsActive,
	}, nil
}

func (d *DB) UpdateConnectionToken(ctx context.Context, userID, accessToken string, expiresAt time.Time) error {
	sealed, err := d.cipher.Encrypt(accessToken)
	if err != nil {
		return err
	}
	res := d.db.WithContext(ctx).Model(&connectionRow{}).Where("user_id = ?", userID).
		Updates(map[string]any{"access_token": sealed, "token_expires_at": expiresAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) DeactivateConnection(ctx context.Context, userID string) error {
	return d.db.WithContext(ctx).Model(&connectionRow{}).Where("user_id = ?", userID).
		Update("is_active", false).Error
}
