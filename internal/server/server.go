package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"postdeck/internal/ratelimit"
	"postdeck/internal/textutil"
	"postdeck/internal/util"
	"postdeck/pkg/auth"
	"postdeck/pkg/domain"
	"postdeck/pkg/storage"
	"postdeck/pkg/store"
)

const presignExpiry = 15 * time.Minute

// Config wires required dependencies for the HTTP server.
type Config struct {
	Store    store.Store
	Sessions store.SessionStore
	Media    storage.ObjectStore

	RedisAddr     string
	RedisPassword string

	SignupRateLimitPerMinute int
	LoginRateLimitPerMinute  int
}

// Server exposes the dashboard REST API.
type Server struct {
	store    store.Store
	sessions store.SessionStore
	media    storage.ObjectStore
	mux      *http.ServeMux

	signupLimiter *ratelimit.FixedWindowLimiter
	loginLimiter  *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	signupLimiter, err := ratelimit.NewRedisFixedWindowLimiter(
		cfg.RedisAddr, cfg.RedisPassword, "signup", cfg.SignupRateLimitPerMinute, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("signup rate limiter: %w", err)
	}
	loginLimiter, err := ratelimit.NewRedisFixedWindowLimiter(
		cfg.RedisAddr, cfg.RedisPassword, "login", cfg.LoginRateLimitPerMinute, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("login rate limiter: %w", err)
	}
	s := &Server{
		store:         cfg.Store,
		sessions:      cfg.Sessions,
		media:         cfg.Media,
		mux:           http.NewServeMux(),
		signupLimiter: signupLimiter,
		loginLimiter:  loginLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.Handle("/api/auth/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("/api/auth/me", s.authenticated(s.handleMe))

	// posts
	s.mux.Handle("/api/posts", s.authenticated(s.handlePosts))
	s.mux.Handle("/api/posts/", s.authenticated(s.handlePostByID))

	// accounts
	s.mux.Handle("/api/accounts", s.authenticated(s.handleAccounts))
	s.mux.Handle("/api/accounts/", s.authenticated(s.handleAccountByID))

	// media
	s.mux.Handle("/api/media/presign", s.authenticated(s.handleMediaPresign))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// authorize resolves the bearer token to the stored user record. The token
// claims alone are not trusted for anything beyond identifying the user.
func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	claims, ok, err := s.sessions.GetUserByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, ok, err := s.store.GetUserByID(claims.ID)
	if err != nil || !ok {
		return domain.User{}, false
	}
	return user, true
}

// auth handlers
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	exists, err := s.store.HasUserEmail(email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "signup failed")
		return
	}
	if exists {
		s.audit(r, "signup", "denied", "reason", "duplicate_email")
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "signup failed")
		return
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.SaveUser(user); err != nil {
		writeError(w, http.StatusInternalServerError, "signup failed")
		return
	}
	token, err := s.sessions.NewSession(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "signup failed")
		return
	}
	s.audit(r, "signup", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, ok, err := s.store.GetUserByEmail(email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if !ok || !auth.CheckPassword(req.Password, user.PasswordHash) {
		s.audit(r, "login", "denied", "email", email)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := s.sessions.NewSession(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	s.audit(r, "login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, _ := bearerToken(r)
	if err := s.sessions.DeleteSession(token); err != nil {
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	s.audit(r, "logout", "success", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// post handlers
func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		if !ownerMatches(w, r, user) {
			return
		}
		posts, err := s.store.ListPostsByOwner(user.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list posts")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": posts,
			"count": len(posts),
		})
	case http.MethodPost:
		var post domain.Post
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&post); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		sanitizePost(&post)
		if msg, ok := validatePost(post); !ok {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		now := time.Now().UTC()
		post.ID = uuid.NewString()
		post.OwnerID = user.ID
		post.TenantID = user.TenantID
		post.CreatedAt = now
		post.UpdatedAt = now
		if post.Status == "" {
			post.Status = domain.StatusDraft
		}
		if err := s.store.CreatePost(post); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create post")
			return
		}
		writeJSON(w, http.StatusCreated, post)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handlePostByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/posts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	if !ownerMatches(w, r, user) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		post, ok, err := s.store.GetPost(id, user.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load post")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeJSON(w, http.StatusOK, post)
	case http.MethodPut:
		var post domain.Post
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&post); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		sanitizePost(&post)
		if msg, ok := validatePost(post); !ok {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		post.ID = id
		post.OwnerID = user.ID
		post.TenantID = user.TenantID
		post.UpdatedAt = time.Now().UTC()
		updated, err := s.store.UpdatePost(post)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to update post")
			return
		}
		if !updated {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		stored, ok, err := s.store.GetPost(id, user.ID)
		if err != nil || !ok {
			writeError(w, http.StatusInternalServerError, "failed to load post")
			return
		}
		writeJSON(w, http.StatusOK, stored)
	case http.MethodDelete:
		deleted, err := s.store.DeletePost(id, user.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to delete post")
			return
		}
		if !deleted {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// account handlers
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		if !ownerMatches(w, r, user) {
			return
		}
		accounts, err := s.store.ListAccountsByOwner(user.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list accounts")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": accounts,
			"count": len(accounts),
		})
	case http.MethodPost:
		var account domain.SocialAccount
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&account); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if !account.Platform.Valid() {
			writeError(w, http.StatusBadRequest, "unknown platform")
			return
		}
		if strings.TrimSpace(account.Username) == "" {
			writeError(w, http.StatusBadRequest, "username is required")
			return
		}
		// IDs are always server-assigned; the upsert keeps the original
		// row id when the (owner, platform) pair already exists, so a
		// client-supplied id could only ever collide with foreign rows.
		now := time.Now().UTC()
		account.ID = uuid.NewString()
		account.CreatedAt = now
		account.OwnerID = user.ID
		account.TenantID = user.TenantID
		account.Connected = true
		account.UpdatedAt = now
		saved, err := s.store.UpsertAccount(account)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save account")
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAccountByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if !ownerMatches(w, r, user) {
		return
	}
	deleted, err := s.store.DeleteAccount(id, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// media handlers
func (s *Server) handleMediaPresign(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.media == nil {
		writeError(w, http.StatusServiceUnavailable, "media storage is not configured")
		return
	}
	var req presignRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" || strings.Contains(fileName, "/") {
		writeError(w, http.StatusBadRequest, "valid fileName is required")
		return
	}
	key := user.ID + "/" + uuid.NewString() + "/" + fileName
	uploadURL, err := s.media.PresignPut(r.Context(), key, presignExpiry)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to presign upload")
		return
	}
	downloadURL, err := s.media.PresignGet(r.Context(), key, presignExpiry)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to presign download")
		return
	}
	writeJSON(w, http.StatusOK, presignResponse{
		Key:            key,
		UploadURL:      uploadURL,
		DownloadURL:    downloadURL,
		ExpiresSeconds: int(presignExpiry.Seconds()),
	})
}

// ownerMatches rejects requests whose ownerId parameter names another user.
// An absent parameter defaults to the authenticated user.
func ownerMatches(w http.ResponseWriter, r *http.Request, user domain.User) bool {
	owner := r.URL.Query().Get("ownerId")
	if owner != "" && owner != user.ID {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

func sanitizePost(post *domain.Post) {
	post.Content = textutil.PlainText(post.Content)
	for platform, content := range post.PlatformContent {
		post.PlatformContent[platform] = textutil.PlainText(content)
	}
}

func validatePost(post domain.Post) (string, bool) {
	if strings.TrimSpace(post.Content) == "" {
		return "content is required", false
	}
	if len(post.Platforms) == 0 {
		return "at least one platform is required", false
	}
	for _, p := range post.Platforms {
		if !p.Valid() {
			return "unknown platform: " + string(p), false
		}
	}
	switch post.Status {
	case "", domain.StatusDraft, domain.StatusScheduled, domain.StatusPublished, domain.StatusFailed:
	default:
		return "unknown status: " + string(post.Status), false
	}
	return "", true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type presignRequest struct {
	FileName string `json:"fileName"`
}

type presignResponse struct {
	Key            string `json:"key"`
	UploadURL      string `json:"uploadUrl"`
	DownloadURL    string `json:"downloadUrl"`
	ExpiresSeconds int    `json:"expiresSeconds"`
}
