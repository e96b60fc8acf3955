package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"postdeck/pkg/domain"
)

// fakeGateway records calls and serves canned responses.
type fakeGateway struct {
	ready    bool
	calls    atomic.Int64
	posts    []domain.Post
	accounts []domain.SocialAccount

	listPostsErr    error
	listAccountsErr error
	createErr       error
	upsertErr       error
}

func (f *fakeGateway) Ready() bool { return f.ready }

func (f *fakeGateway) ListPosts(ctx context.Context, ownerID string) ([]domain.Post, error) {
	f.calls.Add(1)
	if f.listPostsErr != nil {
		return nil, f.listPostsErr
	}
	return f.posts, nil
}

func (f *fakeGateway) ListAccounts(ctx context.Context, ownerID string) ([]domain.SocialAccount, error) {
	f.calls.Add(1)
	if f.listAccountsErr != nil {
		return nil, f.listAccountsErr
	}
	return f.accounts, nil
}

func (f *fakeGateway) CreatePost(ctx context.Context, post domain.Post) (domain.Post, error) {
	f.calls.Add(1)
	if f.createErr != nil {
		return domain.Post{}, f.createErr
	}
	post.ID = "post-created"
	post.CreatedAt = time.Now()
	return post, nil
}

func (f *fakeGateway) UpdatePost(ctx context.Context, post domain.Post) (domain.Post, error) {
	f.calls.Add(1)
	post.UpdatedAt = time.Now()
	return post, nil
}

func (f *fakeGateway) DeletePost(ctx context.Context, id, ownerID string) error {
	f.calls.Add(1)
	return nil
}

func (f *fakeGateway) UpsertAccount(ctx context.Context, account domain.SocialAccount) (domain.SocialAccount, error) {
	f.calls.Add(1)
	if f.upsertErr != nil {
		return domain.SocialAccount{}, f.upsertErr
	}
	if account.ID == "" {
		account.ID = "acct-" + string(account.Platform)
	}
	return account, nil
}

func (f *fakeGateway) DeleteAccount(ctx context.Context, id, ownerID string) error {
	f.calls.Add(1)
	return nil
}

func testUser() *domain.User {
	return &domain.User{ID: "user-1", Email: "a@b.test", TenantID: "tenant-1"}
}

func newTestStore(t *testing.T, gw Gateway, opts ...Option) *Store {
	t.Helper()
	s := New(gw, opts...)
	t.Cleanup(s.Close)
	return s
}

func TestAddPostRequiresUser(t *testing.T) {
	gw := &fakeGateway{ready: true}
	s := newTestStore(t, gw)

	_, err := s.AddPost(context.Background(), domain.Post{
		Content:   "hello",
		Platforms: []domain.Platform{domain.PlatformTwitter},
	})
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if gw.calls.Load() != 0 {
		t.Fatalf("expected no gateway calls, got %d", gw.calls.Load())
	}
	if got := s.TotalPostsCount(); got != 0 {
		t.Fatalf("expected no posts, got %d", got)
	}
}

func TestAddPostValidation(t *testing.T) {
	gw := &fakeGateway{ready: true}
	s := newTestStore(t, gw)
	s.SetUser(testUser())

	cases := []struct {
		name string
		post domain.Post
		want error
	}{
		{"blank content", domain.Post{Content: "   ", Platforms: []domain.Platform{domain.PlatformTwitter}}, ErrEmptyContent},
		{"no platforms", domain.Post{Content: "hello"}, ErrNoPlatforms},
		{"unknown platform", domain.Post{Content: "hello", Platforms: []domain.Platform{"myspace"}}, ErrNoPlatforms},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.AddPost(context.Background(), tc.post); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if gw.calls.Load() != 0 {
		t.Fatalf("expected no gateway calls for invalid posts, got %d", gw.calls.Load())
	}
}

func TestAddPostCommitsCanonicalRecord(t *testing.T) {
	gw := &fakeGateway{ready: true}
	s := newTestStore(t, gw)
	s.SetUser(testUser())

	created, err := s.AddPost(context.Background(), domain.Post{
		Content:   "launch day",
		Platforms: []domain.Platform{domain.PlatformTwitter, domain.PlatformLinkedIn},
	})
	if err != nil {
		t.Fatalf("AddPost: %v", err)
	}
	if created.ID != "post-created" {
		t.Fatalf("expected server-assigned id, got %q", created.ID)
	}
	if created.OwnerID != "user-1" || created.TenantID != "tenant-1" {
		t.Fatalf("expected owner and tenant tagged, got %+v", created)
	}
	posts := s.Posts()
	if len(posts) != 1 || posts[0].ID != "post-created" {
		t.Fatalf("expected committed post, got %+v", posts)
	}
}

func TestAddPostFailureLeavesStateUntouched(t *testing.T) {
	gw := &fakeGateway{ready: true, createErr: errors.New("db down")}
	s := newTestStore(t, gw)
	s.SetUser(testUser())

	_, err := s.AddPost(context.Background(), domain.Post{
		Content:   "hello",
		Platforms: []domain.Platform{domain.PlatformReddit},
	})
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if got := s.TotalPostsCount(); got != 0 {
		t.Fatalf("expected no local post after remote failure, got %d", got)
	}
}

func TestGatewayNotReadyRejectsMutations(t *testing.T) {
	gw := &fakeGateway{ready: false}
	s := newTestStore(t, gw)
	s.SetUser(testUser())

	_, err := s.AddPost(context.Background(), domain.Post{
		Content:   "hello",
		Platforms: []domain.Platform{domain.PlatformTwitter},
	})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	if err := s.DeletePost(context.Background(), "p1"); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestLoadInitialDataWithoutUserMakesNoCalls(t *testing.T) {
	gw := &fakeGateway{ready: true, posts: []domain.Post{{ID: "p1"}}}
	s := newTestStore(t, gw)

	if err := s.LoadInitialData(context.Background()); err != nil {
		t.Fatalf("LoadInitialData: %v", err)
	}
	if gw.calls.Load() != 0 {
		t.Fatalf("expected no gateway calls, got %d", gw.calls.Load())
	}
	if len(s.Posts()) != 0 || len(s.Accounts()) != 0 {
		t.Fatal("expected empty collections")
	}
}

func TestLoadInitialDataReplacesCollections(t *testing.T) {
	gw := &fakeGateway{
		ready: true,
		posts: []domain.Post{
			{ID: "p1", OwnerID: "user-1", Status: domain.StatusPublished},
			{ID: "p2", OwnerID: "user-1", Status: domain.StatusScheduled},
		},
		accounts: []domain.SocialAccount{
			{ID: "a1", OwnerID: "user-1", Platform: domain.PlatformTwitter, Connected: true},
		},
	}
	s := newTestStore(t, gw)
	s.SetUser(testUser())

	if err := s.LoadInitialData(context.Background()); err != nil {
		t.Fatalf("LoadInitialData: %v", err)
	}
	if got := s.TotalPostsCount(); got != 2 {
		t.Fatalf("expected 2 posts, got %d", got)
	}
	if got := s.ConnectedAccountsCount(); got != 1 {
		t.Fatalf("expected 1 connected account, got %d", got)
	}
	if got := s.ScheduledPostsCount(); got != 1 {
		t.Fatalf("expected 1 scheduled post, got %d", got)
	}
	if got := s.PublishedPostsCount(); got != 1 {
		t.Fatalf("expected 1 published post, got %d", got)
	}
}

func TestLoadInitialDataFailureResetsBothCollections(t *testing.T) {
	gw := &fakeGateway{
		ready: true,
		posts: []domain.Post{{ID: "p1"}, {ID: "p2"}},
		accounts: []domain.SocialAccount{
			{ID: "a1", Platform: domain.PlatformFacebook, Connected: true},
		},
	}

	var logged atomic.Bool
	handler := slog.NewTextHandler(logWriterFunc(func(p []byte) (int, error) {
		if strings.Contains(string(p), "initial data load failed") {
			logged.Store(true)
		}
		return len(p), nil
	}), nil)
	s := newTestStore(t, gw, WithLogger(slog.New(handler)))
	s.SetUser(testUser())

	if err := s.LoadInitialData(context.Background()); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if s.TotalPostsCount() != 2 || s.ConnectedAccountsCount() != 1 {
		t.Fatal("expected populated collections after first load")
	}

	gw.listAccountsErr = errors.New("boom")
	err := s.LoadInitialData(context.Background())
	if err == nil {
		t.Fatal("expected error from failed load")
	}
	if s.TotalPostsCount() != 0 || len(s.Accounts()) != 0 {
		t.Fatal("expected both collections reset after failed load")
	}
	if !logged.Load() {
		t.Fatal("expected load failure diagnostic to be logged")
	}
}

type logWriterFunc func(p []byte) (int, error)

func (f logWriterFunc) Write(p []byte) (int, error) { return f(p) }

func TestMutationFailureIsLogged(t *testing.T) {
	gw := &fakeGateway{ready: true, createErr: errors.New("db down")}

	var logged atomic.Bool
	handler := slog.NewTextHandler(logWriterFunc(func(p []byte) (int, error) {
		if strings.Contains(string(p), "create post failed") {
			logged.Store(true)
		}
		return len(p), nil
	}), nil)
	s := newTestStore(t, gw, WithLogger(slog.New(handler)))
	s.SetUser(testUser())

	_, err := s.AddPost(context.Background(), domain.Post{
		Content:   "hello",
		Platforms: []domain.Platform{domain.PlatformTwitter},
	})
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if !logged.Load() {
		t.Fatal("expected create failure diagnostic to be logged")
	}
	if s.TotalPostsCount() != 0 {
		t.Fatal("expected no local post after remote failure")
	}
}

func TestNilGatewayFailsClosed(t *testing.T) {
	s := newTestStore(t, nil)
	s.SetUser(testUser())

	_, err := s.AddPost(context.Background(), domain.Post{
		Content:   "hello",
		Platforms: []domain.Platform{domain.PlatformTwitter},
	})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	if err := s.DeletePost(context.Background(), "p1"); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}

	if err := s.LoadInitialData(context.Background()); err != nil {
		t.Fatalf("LoadInitialData: %v", err)
	}
	if len(s.Posts()) != 0 || len(s.Accounts()) != 0 {
		t.Fatal("expected empty collections")
	}
}

func TestAddAccountReplacesSamePlatformInPlace(t *testing.T) {
	gw := &fakeGateway{ready: true}
	s := newTestStore(t, gw)
	s.SetUser(testUser())

	if _, err := s.AddAccount(context.Background(), domain.SocialAccount{Platform: domain.PlatformTwitter, Username: "old"}); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}
	if _, err := s.AddAccount(context.Background(), domain.SocialAccount{Platform: domain.PlatformFacebook, Username: "fb"}); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}
	if _, err := s.AddAccount(context.Background(), domain.SocialAccount{Platform: domain.PlatformTwitter, Username: "new"}); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}

	accounts := s.Accounts()
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts after reconnect, got %d", len(accounts))
	}
	if accounts[0].Platform != domain.PlatformTwitter || accounts[0].Username != "new" {
		t.Fatalf("expected twitter replaced in place, got %+v", accounts)
	}
}

func TestAddAccountRejectsUnknownPlatform(t *testing.T) {
	gw := &fakeGateway{ready: true}
	s := newTestStore(t, gw)
	s.SetUser(testUser())

	_, err := s.AddAccount(context.Background(), domain.SocialAccount{Platform: "myspace"})
	if !errors.Is(err, ErrUnknownPlatform) {
		t.Fatalf("expected ErrUnknownPlatform, got %v", err)
	}
	if gw.calls.Load() != 0 {
		t.Fatalf("expected no gateway calls, got %d", gw.calls.Load())
	}
}

func TestRemoveAccountDropsLocalEntry(t *testing.T) {
	gw := &fakeGateway{ready: true}
	s := newTestStore(t, gw)
	s.SetUser(testUser())

	saved, err := s.AddAccount(context.Background(), domain.SocialAccount{Platform: domain.PlatformLinkedIn, Username: "li"})
	if err != nil {
		t.Fatalf("AddAccount: %v", err)
	}
	if err := s.RemoveAccount(context.Background(), saved.ID); err != nil {
		t.Fatalf("RemoveAccount: %v", err)
	}
	if len(s.Accounts()) != 0 {
		t.Fatal("expected account removed")
	}
}

func TestUpdateAndDeletePost(t *testing.T) {
	gw := &fakeGateway{ready: true}
	s := newTestStore(t, gw)
	s.SetUser(testUser())

	created, err := s.AddPost(context.Background(), domain.Post{
		Content:   "v1",
		Platforms: []domain.Platform{domain.PlatformTwitter},
	})
	if err != nil {
		t.Fatalf("AddPost: %v", err)
	}

	created.Content = "v2"
	updated, err := s.UpdatePost(context.Background(), created)
	if err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}
	if updated.Content != "v2" {
		t.Fatalf("expected updated content, got %q", updated.Content)
	}
	posts := s.Posts()
	if len(posts) != 1 || posts[0].Content != "v2" {
		t.Fatalf("expected in-place replacement, got %+v", posts)
	}

	if err := s.DeletePost(context.Background(), created.ID); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if s.TotalPostsCount() != 0 {
		t.Fatal("expected post removed")
	}
}

func TestUpdatePostUnknownIDDoesNotAppend(t *testing.T) {
	gw := &fakeGateway{ready: true}
	s := newTestStore(t, gw)
	s.SetUser(testUser())

	if _, err := s.AddPost(context.Background(), domain.Post{
		Content:   "held locally",
		Platforms: []domain.Platform{domain.PlatformTwitter},
	}); err != nil {
		t.Fatalf("AddPost: %v", err)
	}

	updated, err := s.UpdatePost(context.Background(), domain.Post{
		ID:        "post-elsewhere",
		Content:   "edited on another device",
		Platforms: []domain.Platform{domain.PlatformTwitter},
	})
	if err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}
	if updated.ID != "post-elsewhere" {
		t.Fatalf("expected remote record returned, got %+v", updated)
	}

	posts := s.Posts()
	if len(posts) != 1 || posts[0].ID == "post-elsewhere" {
		t.Fatalf("update without a local match must not insert, got %+v", posts)
	}
}
