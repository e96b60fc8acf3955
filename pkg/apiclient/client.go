package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"postdeck/pkg/domain"
	"postdeck/pkg/session"
)

// Client calls the dashboard API over HTTP. All mutating calls return the
// canonical record the server stored, so callers commit exactly what the
// backend holds.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Store
}

// APIError represents an API error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs an API client. The session store supplies the bearer
// token and receives tokens issued by sign-up and sign-in.
func NewClient(baseURL string, sess *session.Store) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		session:    sess,
	}
}

// Ready reports whether the client is configured to reach a backend.
func (c *Client) Ready() bool {
	return c.baseURL != ""
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.User, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/signup", payload, &resp); err != nil {
		return nil, err
	}
	if err := c.session.SetToken(resp.Token); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return &resp.User, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.User, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", payload, &resp); err != nil {
		return nil, err
	}
	if err := c.session.SetToken(resp.Token); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return &resp.User, nil
}

// SignOut revokes the session server-side and always clears the local token,
// even when the revoke call fails.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	if clearErr := c.session.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

// Restore resolves the persisted token back into a user. It returns
// (nil, nil) when there is no token to restore, and clears a token the
// server no longer accepts.
func (c *Client) Restore(ctx context.Context) (*domain.User, error) {
	if c.session.Token() == "" {
		return nil, nil
	}
	var user domain.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			_ = c.session.Clear()
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListPosts(ctx context.Context, ownerID string) ([]domain.Post, error) {
	var resp listPostsResponse
	path := "/api/posts?ownerId=" + url.QueryEscape(ownerID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) ListAccounts(ctx context.Context, ownerID string) ([]domain.SocialAccount, error) {
	var resp listAccountsResponse
	path := "/api/accounts?ownerId=" + url.QueryEscape(ownerID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) CreatePost(ctx context.Context, post domain.Post) (domain.Post, error) {
	var created domain.Post
	if err := c.doJSON(ctx, http.MethodPost, "/api/posts", post, &created); err != nil {
		return domain.Post{}, err
	}
	return created, nil
}

func (c *Client) UpdatePost(ctx context.Context, post domain.Post) (domain.Post, error) {
	var updated domain.Post
	path := fmt.Sprintf("/api/posts/%s?ownerId=%s", url.PathEscape(post.ID), url.QueryEscape(post.OwnerID))
	if err := c.doJSON(ctx, http.MethodPut, path, post, &updated); err != nil {
		return domain.Post{}, err
	}
	return updated, nil
}

func (c *Client) DeletePost(ctx context.Context, id, ownerID string) error {
	path := fmt.Sprintf("/api/posts/%s?ownerId=%s", url.PathEscape(id), url.QueryEscape(ownerID))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) UpsertAccount(ctx context.Context, account domain.SocialAccount) (domain.SocialAccount, error) {
	var saved domain.SocialAccount
	if err := c.doJSON(ctx, http.MethodPost, "/api/accounts", account, &saved); err != nil {
		return domain.SocialAccount{}, err
	}
	return saved, nil
}

func (c *Client) DeleteAccount(ctx context.Context, id, ownerID string) error {
	path := fmt.Sprintf("/api/accounts/%s?ownerId=%s", url.PathEscape(id), url.QueryEscape(ownerID))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	return nil
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type listPostsResponse struct {
	Items []domain.Post `json:"items"`
	Count int           `json:"count"`
}

type listAccountsResponse struct {
	Items []domain.SocialAccount `json:"items"`
	Count int                    `json:"count"`
}
