package dashboard

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"postdeck/pkg/domain"
)

// Store holds the client-side dashboard state: the signed-in user, their
// posts and social accounts, and transient notifications. Every mutation
// goes through the gateway first and commits the canonical record the
// backend returned, so local state never runs ahead of the server.
type Store struct {
	gateway Gateway
	logger  *slog.Logger

	mu            sync.Mutex
	user          *domain.User
	posts         []domain.Post
	accounts      map[domain.Platform]domain.SocialAccount
	accountOrder  []domain.Platform
	notifications []domain.Notification

	notificationTTL time.Duration
	expiries        expiryHeap
	timer           *time.Timer
	closed          bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load and expiry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithNotificationTTL overrides how long notifications stay visible
// before auto-dismissal.
func WithNotificationTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.notificationTTL = ttl
		}
	}
}

// New constructs a Store backed by the given gateway.
func New(gateway Gateway, opts ...Option) *Store {
	s := &Store{
		gateway:         gateway,
		logger:          slog.Default(),
		accounts:        make(map[domain.Platform]domain.SocialAccount),
		notificationTTL: defaultNotificationTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close stops the notification expiry scheduler. The store must not be
// used after Close.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// SetUser replaces the signed-in user. Pass nil on sign-out.
func (s *Store) SetUser(user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		s.user = nil
		return
	}
	u := *user
	s.user = &u
}

// User returns a copy of the signed-in user, or nil.
func (s *Store) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// gatewayReady treats a nil gateway the same as an unreachable one.
func (s *Store) gatewayReady() bool {
	return s.gateway != nil && s.gateway.Ready()
}

// LoadInitialData replaces the post and account collections with the
// backend's records for the signed-in user. Without a user or a reachable
// gateway it resets both collections and succeeds. On any fetch failure it
// resets both collections and returns the error; the store never keeps a
// partial result.
func (s *Store) LoadInitialData(ctx context.Context) error {
	s.mu.Lock()
	if s.user == nil || !s.gatewayReady() {
		s.posts = nil
		s.resetAccountsLocked()
		s.mu.Unlock()
		return nil
	}
	ownerID := s.user.ID
	s.mu.Unlock()

	var (
		posts    []domain.Post
		accounts []domain.SocialAccount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		posts, err = s.gateway.ListPosts(gctx, ownerID)
		return err
	})
	g.Go(func() error {
		var err error
		accounts, err = s.gateway.ListAccounts(gctx, ownerID)
		return err
	})
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Warn("initial data load failed", "owner_id", ownerID, "error", err)
		s.posts = nil
		s.resetAccountsLocked()
		return err
	}
	if s.user == nil || s.user.ID != ownerID {
		// User changed while the fetch was in flight; the result is stale.
		return nil
	}
	s.posts = posts
	s.resetAccountsLocked()
	for _, account := range accounts {
		s.commitAccountLocked(account)
	}
	return nil
}

// AddPost creates a post through the gateway and appends the stored record.
func (s *Store) AddPost(ctx context.Context, post domain.Post) (domain.Post, error) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return domain.Post{}, ErrNotAuthenticated
	}
	if !s.gatewayReady() {
		s.mu.Unlock()
		return domain.Post{}, ErrGatewayUnavailable
	}
	post.OwnerID = s.user.ID
	post.TenantID = s.user.TenantID
	ownerID := s.user.ID
	s.mu.Unlock()

	if strings.TrimSpace(post.Content) == "" {
		return domain.Post{}, ErrEmptyContent
	}
	if len(post.Platforms) == 0 {
		return domain.Post{}, ErrNoPlatforms
	}
	for _, p := range post.Platforms {
		if !p.Valid() {
			return domain.Post{}, ErrNoPlatforms
		}
	}
	if post.Status == "" {
		post.Status = domain.StatusDraft
	}

	created, err := s.gateway.CreatePost(ctx, post)
	if err != nil {
		s.logger.Warn("create post failed", "owner_id", ownerID, "error", err)
		return domain.Post{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil && s.user.ID == ownerID {
		s.posts = append(s.posts, created)
	}
	return created, nil
}

// UpdatePost saves a changed post through the gateway and replaces the
// local record with the stored one.
func (s *Store) UpdatePost(ctx context.Context, post domain.Post) (domain.Post, error) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return domain.Post{}, ErrNotAuthenticated
	}
	if !s.gatewayReady() {
		s.mu.Unlock()
		return domain.Post{}, ErrGatewayUnavailable
	}
	post.OwnerID = s.user.ID
	post.TenantID = s.user.TenantID
	ownerID := s.user.ID
	s.mu.Unlock()

	updated, err := s.gateway.UpdatePost(ctx, post)
	if err != nil {
		s.logger.Warn("update post failed", "owner_id", ownerID, "post_id", post.ID, "error", err)
		return domain.Post{}, err
	}

	// Commit by identity match only; a record no longer held locally
	// stays absent.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.ID != ownerID {
		return updated, nil
	}
	for i := range s.posts {
		if s.posts[i].ID == updated.ID {
			s.posts[i] = updated
			break
		}
	}
	return updated, nil
}

// DeletePost removes a post through the gateway, then drops it locally.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	if !s.gatewayReady() {
		s.mu.Unlock()
		return ErrGatewayUnavailable
	}
	ownerID := s.user.ID
	s.mu.Unlock()

	if err := s.gateway.DeletePost(ctx, id, ownerID); err != nil {
		s.logger.Warn("delete post failed", "owner_id", ownerID, "post_id", id, "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == id {
			s.posts = append(s.posts[:i], s.posts[i+1:]...)
			break
		}
	}
	return nil
}

// AddAccount connects a social account through the gateway. Reconnecting a
// platform the user already has replaces that account in place rather than
// adding a duplicate entry.
func (s *Store) AddAccount(ctx context.Context, account domain.SocialAccount) (domain.SocialAccount, error) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return domain.SocialAccount{}, ErrNotAuthenticated
	}
	if !s.gatewayReady() {
		s.mu.Unlock()
		return domain.SocialAccount{}, ErrGatewayUnavailable
	}
	account.OwnerID = s.user.ID
	account.TenantID = s.user.TenantID
	ownerID := s.user.ID
	s.mu.Unlock()

	if !account.Platform.Valid() {
		return domain.SocialAccount{}, ErrUnknownPlatform
	}

	saved, err := s.gateway.UpsertAccount(ctx, account)
	if err != nil {
		s.logger.Warn("connect account failed", "owner_id", ownerID, "platform", string(account.Platform), "error", err)
		return domain.SocialAccount{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil && s.user.ID == ownerID {
		s.commitAccountLocked(saved)
	}
	return saved, nil
}

// RemoveAccount disconnects an account through the gateway, then drops it
// locally.
func (s *Store) RemoveAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	if !s.gatewayReady() {
		s.mu.Unlock()
		return ErrGatewayUnavailable
	}
	ownerID := s.user.ID
	s.mu.Unlock()

	if err := s.gateway.DeleteAccount(ctx, id, ownerID); err != nil {
		s.logger.Warn("disconnect account failed", "owner_id", ownerID, "account_id", id, "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for platform, account := range s.accounts {
		if account.ID == id {
			delete(s.accounts, platform)
			for i := range s.accountOrder {
				if s.accountOrder[i] == platform {
					s.accountOrder = append(s.accountOrder[:i], s.accountOrder[i+1:]...)
					break
				}
			}
			break
		}
	}
	return nil
}

// Posts returns a snapshot of the post collection.
func (s *Store) Posts() []domain.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Post, len(s.posts))
	copy(out, s.posts)
	return out
}

// Accounts returns a snapshot of connected accounts in insertion order.
func (s *Store) Accounts() []domain.SocialAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SocialAccount, 0, len(s.accountOrder))
	for _, platform := range s.accountOrder {
		out = append(out, s.accounts[platform])
	}
	return out
}

// TotalPostsCount reports the number of posts currently held.
func (s *Store) TotalPostsCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

// ConnectedAccountsCount reports how many accounts are marked connected.
func (s *Store) ConnectedAccountsCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, account := range s.accounts {
		if account.Connected {
			n++
		}
	}
	return n
}

// ScheduledPostsCount reports how many posts are in the scheduled state.
func (s *Store) ScheduledPostsCount() int {
	return s.countPostsByStatus(domain.StatusScheduled)
}

// PublishedPostsCount reports how many posts are in the published state.
func (s *Store) PublishedPostsCount() int {
	return s.countPostsByStatus(domain.StatusPublished)
}

func (s *Store) countPostsByStatus(status domain.PostStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.posts {
		if s.posts[i].Status == status {
			n++
		}
	}
	return n
}

// commitAccountLocked stores an account keyed by platform, preserving the
// original position when the platform was already connected.
func (s *Store) commitAccountLocked(account domain.SocialAccount) {
	if _, ok := s.accounts[account.Platform]; !ok {
		s.accountOrder = append(s.accountOrder, account.Platform)
	}
	s.accounts[account.Platform] = account
}

func (s *Store) resetAccountsLocked() {
	s.accounts = make(map[domain.Platform]domain.SocialAccount)
	s.accountOrder = nil
}
