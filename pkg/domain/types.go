package domain

import "time"

// Platform identifies a supported social network.
type Platform string

const (
	PlatformTwitter  Platform = "twitter"
	PlatformFacebook Platform = "facebook"
	PlatformLinkedIn Platform = "linkedin"
	PlatformReddit   Platform = "reddit"
)

// Platforms lists every supported platform in display order.
var Platforms = []Platform{PlatformTwitter, PlatformFacebook, PlatformLinkedIn, PlatformReddit}

// Valid reports whether the platform is one of the supported networks.
func (p Platform) Valid() bool {
	switch p {
	case PlatformTwitter, PlatformFacebook, PlatformLinkedIn, PlatformReddit:
		return true
	}
	return false
}

type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusScheduled PostStatus = "scheduled"
	StatusPublished PostStatus = "published"
	StatusFailed    PostStatus = "failed"
)

// Post is a composed social post. Status and ScheduledFor are not
// cross-validated: a draft may carry a schedule and a scheduled post may not.
type Post struct {
	ID              string              `json:"id"`
	OwnerID         string              `json:"ownerId"`
	TenantID        string              `json:"tenantId,omitempty"`
	Content         string              `json:"content"`
	Platforms       []Platform          `json:"platforms"`
	Status          PostStatus          `json:"status"`
	ScheduledFor    *time.Time          `json:"scheduledFor,omitempty"`
	MediaURLs       []string            `json:"mediaUrls,omitempty"`
	PlatformContent map[Platform]string `json:"platformContent,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// SocialAccount is a connected platform account. At most one exists per
// (owner, platform).
type SocialAccount struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"ownerId"`
	TenantID        string    `json:"tenantId,omitempty"`
	Platform        Platform  `json:"platform"`
	Username        string    `json:"username"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	Connected       bool      `json:"connected"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Notification is a transient user-facing message. It is removed by explicit
// dismissal or after a fixed delay, whichever comes first.
type Notification struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	ActionURL string    `json:"actionUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	TenantID     string    `json:"tenantId,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
