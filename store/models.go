package store

import (
	"time"
)

type projectRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	UserID       string `gorm:"not null;index;size:64"`
	Title        string `gorm:"size:255"`
	Prompt       string `gorm:"type:text"`
	Status       string `gorm:"not null;default:draft;size:32"`
	ErrorMessage string `gorm:"type:text"`
	VideoPath    string `gorm:"size:500"`
	PublishedID  string `gorm:"size:50"`
	PublishedURL string `gorm:"size:500"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (projectRow) TableName() string {
	return "projects"
}

type scriptRow struct {
	ID        uint   `gorm:"primaryKey"`
	ProjectID string `gorm:"not null;index;size:36"`
	Version   int    `gorm:"not null;default:1"`
	Content   string `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
}

func (scriptRow) TableName() string {
	return "scripts"
}

type castRow struct {
	ID          uint   `gorm:"primaryKey"`
	ProjectID   string `gorm:"not null;index;size:36"`
	Assignments string `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time
}

func (castRow) TableName() string {
	return "casts"
}

type assetRow struct {
	ID        uint   `gorm:"primaryKey"`
	ProjectID string `gorm:"not null;index;size:36"`
	Kind      string `gorm:"not null;size:16"`
	Path      string `gorm:"not null;size:500"`
	Scene     int
	Character string `gorm:"size:100"`
	SizeBytes int64
	CreatedAt time.Time
}

func (assetRow) TableName() string {
	return "assets"
}

// connectionRow holds sealed tokens only.
type connectionRow struct {
	ID             uint   `gorm:"primaryKey"`
	UserID         string `gorm:"not null;uniqueIndex;size:64"`
	AccessToken    string `gorm:"type:text"`
	RefreshToken   string `gorm:"type:text"`
	TokenExpiresAt time.Time
	IsActive       bool `gorm:"default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (connectionRow) TableName() string {
	return "youtube_connections"
}
