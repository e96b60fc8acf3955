package dashboard

import (
	"context"
	"errors"

	"postdeck/pkg/domain"
)

// Gateway is the remote backend the dashboard reads from and writes through.
// *apiclient.Client satisfies it; tests substitute fakes.
type Gateway interface {
	// Ready reports whether the gateway can reach a backend at all.
	Ready() bool

	ListPosts(ctx context.Context, ownerID string) ([]domain.Post, error)
	ListAccounts(ctx context.Context, ownerID string) ([]domain.SocialAccount, error)

	CreatePost(ctx context.Context, post domain.Post) (domain.Post, error)
	UpdatePost(ctx context.Context, post domain.Post) (domain.Post, error)
	DeletePost(ctx context.Context, id, ownerID string) error

	UpsertAccount(ctx context.Context, account domain.SocialAccount) (domain.SocialAccount, error)
	DeleteAccount(ctx context.Context, id, ownerID string) error
}

var (
	// ErrNotAuthenticated is returned by mutations when no user is set.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrGatewayUnavailable is returned when the gateway reports not ready.
	ErrGatewayUnavailable = errors.New("gateway unavailable")

	// ErrNoPlatforms is returned for posts without a valid target platform.
	ErrNoPlatforms = errors.New("post must target at least one platform")

	// ErrEmptyContent is returned for posts with blank content.
	ErrEmptyContent = errors.New("post content is empty")

	// ErrUnknownPlatform is returned for accounts on an unsupported platform.
	ErrUnknownPlatform = errors.New("unknown platform")
)
