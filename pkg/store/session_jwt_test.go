package store

import (
	"testing"
	"time"

	"postdeck/pkg/domain"
)

func newTestSessionStore(t *testing.T, revoker TokenRevoker) *JWTSessionStore {
	t.Helper()
	s, err := NewJWTSessionStore("test-secret", time.Minute, revoker, JWTOptions{})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	return s
}

func TestJWTSessionRoundTripCarriesTenant(t *testing.T) {
	s := newTestSessionStore(t, nil)

	token, err := s.NewSession(domain.User{ID: "user-1", Email: "u@example.com", TenantID: "tenant-9"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	user, ok, err := s.GetUserByToken(token)
	if err != nil || !ok {
		t.Fatalf("get user by token: ok=%v err=%v", ok, err)
	}
	if user.ID != "user-1" || user.Email != "u@example.com" || user.TenantID != "tenant-9" {
		t.Fatalf("unexpected identity: %+v", user)
	}
}

func TestJWTSessionRejectsWrongSecret(t *testing.T) {
	s := newTestSessionStore(t, nil)
	token, err := s.NewSession(domain.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	other, err := NewJWTSessionStore("different-secret", time.Minute, nil, JWTOptions{})
	if err != nil {
		t.Fatalf("new other store: %v", err)
	}
	if _, ok, err := other.GetUserByToken(token); err == nil || ok {
		t.Fatalf("expected verification failure, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionDeleteRevokesToken(t *testing.T) {
	revoker := NewMemoryTokenRevoker()
	s := newTestSessionStore(t, revoker)

	token, err := s.NewSession(domain.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, err := s.GetUserByToken(token); err != nil || !ok {
		t.Fatalf("token should validate before logout: ok=%v err=%v", ok, err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := s.GetUserByToken(token); err == nil || ok {
		t.Fatalf("expected revoked token to fail, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionRequiresUserID(t *testing.T) {
	s := newTestSessionStore(t, nil)
	if _, err := s.NewSession(domain.User{}); err == nil {
		t.Fatalf("expected error for missing user id")
	}
}
