package store

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"postdeck/pkg/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// GormStore implements Store using GORM + Postgres. The schema, including
// the row-level security policies, is managed by the embedded migrations.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the database and applies pending migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func runMigrations(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	driver, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("no new migrations to apply")
			return nil
		}
		return fmt.Errorf("migration up failed: %w", err)
	}
	slog.Info("migrations applied")
	return nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "tenant_id", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// CreatePost inserts a new post row.
func (s *GormStore) CreatePost(p domain.Post) error {
	model, err := postToModel(p)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

// GetPost retrieves a post scoped by id and owner.
func (s *GormStore) GetPost(id, ownerID string) (domain.Post, bool, error) {
	var model PostModel
	if err := s.db.First(&model, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Post{}, false, nil
		}
		return domain.Post{}, false, err
	}
	return postFromModel(model), true, nil
}

// UpdatePost rewrites a post's mutable columns, scoped by id and owner.
// Returns false when no matching row exists.
func (s *GormStore) UpdatePost(p domain.Post) (bool, error) {
	platforms, err := json.Marshal(p.Platforms)
	if err != nil {
		return false, fmt.Errorf("encode platforms: %w", err)
	}
	mediaURLs, err := json.Marshal(p.MediaURLs)
	if err != nil {
		return false, fmt.Errorf("encode media urls: %w", err)
	}
	overrides, err := json.Marshal(p.PlatformContent)
	if err != nil {
		return false, fmt.Errorf("encode platform content: %w", err)
	}
	res := s.db.Model(&PostModel{}).
		Where("id = ? AND owner_id = ?", p.ID, p.OwnerID).
		Updates(map[string]any{
			"content":          p.Content,
			"platforms":        platforms,
			"status":           string(p.Status),
			"scheduled_for":    p.ScheduledFor,
			"media_urls":       mediaURLs,
			"platform_content": overrides,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeletePost removes a post scoped by id and owner.
func (s *GormStore) DeletePost(id, ownerID string) (bool, error) {
	res := s.db.Delete(&PostModel{}, "id = ? AND owner_id = ?", id, ownerID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListPostsByOwner returns the owner's posts ordered by creation time.
func (s *GormStore) ListPostsByOwner(ownerID string) ([]domain.Post, error) {
	var models []PostModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	posts := make([]domain.Post, 0, len(models))
	for _, m := range models {
		posts = append(posts, postFromModel(m))
	}
	return posts, nil
}

// UpsertAccount inserts or replaces the account for (owner, platform) and
// returns the canonical row, keeping the original id on replacement.
func (s *GormStore) UpsertAccount(a domain.SocialAccount) (domain.SocialAccount, error) {
	model := accountToModel(a)
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_id"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "profile_image_url", "connected", "tenant_id", "updated_at",
		}),
	}).Create(&model).Error
	if err != nil {
		return domain.SocialAccount{}, err
	}
	var saved AccountModel
	if err := s.db.First(&saved, "owner_id = ? AND platform = ?", a.OwnerID, string(a.Platform)).Error; err != nil {
		return domain.SocialAccount{}, err
	}
	return accountFromModel(saved), nil
}

// DeleteAccount removes an account scoped by id and owner.
func (s *GormStore) DeleteAccount(id, ownerID string) (bool, error) {
	res := s.db.Delete(&AccountModel{}, "id = ? AND owner_id = ?", id, ownerID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListAccountsByOwner returns the owner's connected accounts.
func (s *GormStore) ListAccountsByOwner(ownerID string) ([]domain.SocialAccount, error) {
	var models []AccountModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	accounts := make([]domain.SocialAccount, 0, len(models))
	for _, m := range models {
		accounts = append(accounts, accountFromModel(m))
	}
	return accounts, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		TenantID:     u.TenantID,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		TenantID:     m.TenantID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func postToModel(p domain.Post) (PostModel, error) {
	platforms, err := json.Marshal(p.Platforms)
	if err != nil {
		return PostModel{}, fmt.Errorf("encode platforms: %w", err)
	}
	mediaURLs, err := json.Marshal(p.MediaURLs)
	if err != nil {
		return PostModel{}, fmt.Errorf("encode media urls: %w", err)
	}
	overrides, err := json.Marshal(p.PlatformContent)
	if err != nil {
		return PostModel{}, fmt.Errorf("encode platform content: %w", err)
	}
	return PostModel{
		ID:              p.ID,
		OwnerID:         p.OwnerID,
		TenantID:        p.TenantID,
		Content:         p.Content,
		Platforms:       platforms,
		Status:          string(p.Status),
		ScheduledFor:    p.ScheduledFor,
		MediaURLs:       mediaURLs,
		PlatformContent: overrides,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}, nil
}

func postFromModel(m PostModel) domain.Post {
	var platforms []domain.Platform
	if len(m.Platforms) > 0 {
		_ = json.Unmarshal(m.Platforms, &platforms)
	}
	var mediaURLs []string
	if len(m.MediaURLs) > 0 {
		_ = json.Unmarshal(m.MediaURLs, &mediaURLs)
	}
	var overrides map[domain.Platform]string
	if len(m.PlatformContent) > 0 {
		_ = json.Unmarshal(m.PlatformContent, &overrides)
	}
	return domain.Post{
		ID:              m.ID,
		OwnerID:         m.OwnerID,
		TenantID:        m.TenantID,
		Content:         m.Content,
		Platforms:       platforms,
		Status:          domain.PostStatus(m.Status),
		ScheduledFor:    m.ScheduledFor,
		MediaURLs:       mediaURLs,
		PlatformContent: overrides,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func accountToModel(a domain.SocialAccount) AccountModel {
	return AccountModel{
		ID:              a.ID,
		OwnerID:         a.OwnerID,
		Platform:        string(a.Platform),
		TenantID:        a.TenantID,
		Username:        a.Username,
		ProfileImageURL: a.ProfileImageURL,
		Connected:       a.Connected,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func accountFromModel(m AccountModel) domain.SocialAccount {
	return domain.SocialAccount{
		ID:              m.ID,
		OwnerID:         m.OwnerID,
		Platform:        domain.Platform(m.Platform),
		TenantID:        m.TenantID,
		Username:        m.Username,
		ProfileImageURL: m.ProfileImageURL,
		Connected:       m.Connected,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
