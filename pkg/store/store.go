package store

import (
	"postdeck/pkg/domain"
)

// Store defines persistence operations for users, posts, and accounts.
// Post and account mutations are scoped by both record id and owner id so a
// stale or hostile caller can never touch another user's rows even before
// the database policy layer weighs in.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// posts
	CreatePost(domain.Post) error
	GetPost(id, ownerID string) (domain.Post, bool, error)
	UpdatePost(domain.Post) (bool, error)
	DeletePost(id, ownerID string) (bool, error)
	ListPostsByOwner(ownerID string) ([]domain.Post, error)

	// accounts; at most one row per (owner, platform)
	UpsertAccount(domain.SocialAccount) (domain.SocialAccount, error)
	DeleteAccount(id, ownerID string) (bool, error)
	ListAccountsByOwner(ownerID string) ([]domain.SocialAccount, error)
}

// SessionStore issues and validates session tokens.
type SessionStore interface {
	NewSession(user domain.User) (string, error)
	GetUserByToken(token string) (domain.User, bool, error)
	DeleteSession(token string) error
}
