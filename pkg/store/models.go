package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models mapped onto the migration-managed tables.

type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	TenantID     string `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type PostModel struct {
	ID              string `gorm:"primaryKey"`
	OwnerID         string `gorm:"not null;index"`
	TenantID        string `gorm:"index"`
	Content         string `gorm:"not null"`
	Platforms       datatypes.JSON
	Status          string `gorm:"not null"`
	ScheduledFor    *time.Time
	MediaURLs       datatypes.JSON `gorm:"column:media_urls"`
	PlatformContent datatypes.JSON
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (PostModel) TableName() string { return "posts" }

type AccountModel struct {
	ID              string `gorm:"primaryKey"`
	OwnerID         string `gorm:"not null;uniqueIndex:idx_accounts_owner_platform"`
	Platform        string `gorm:"not null;uniqueIndex:idx_accounts_owner_platform"`
	TenantID        string `gorm:"index"`
	Username        string `gorm:"not null"`
	ProfileImageURL string
	Connected       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (AccountModel) TableName() string { return "accounts" }
