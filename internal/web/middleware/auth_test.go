package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coldreach/coldreach/internal/auth"
	"github.com/coldreach/coldreach/internal/models"
)

type stubUserStore struct {
	user *models.User
}

func (s *stubUserStore) CreateUser(_ context.Context, _, _, _ string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (s *stubUserStore) GetUserByEmail(_ context.Context, _ string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (s *stubUserStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	if s.user != nil && s.user.ID == id {
		return s.user, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubUserStore) ListUsers(_ context.Context) ([]models.User, error) { return nil, nil }

type stubSessionStore struct {
	session *models.Session
}

func (s *stubSessionStore) CreateSession(_ context.Context, _ string, _ int64, _ time.Time) (*models.Session, error) {
	return nil, sql.ErrNoRows
}

func (s *stubSessionStore) GetSessionByToken(_ context.Context, token string) (*models.Session, error) {
	if s.session != nil && s.session.Token == token {
		return s.session, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubSessionStore) DeleteSession(_ context.Context, _ string) error { return nil }
func (s *stubSessionStore) DeleteExpiredSessions(_ context.Context) error   { return nil }

func newAuthService() *auth.Service {
	user := &models.User{ID: 1, Email: "alex@example.com"}
	session := &models.Session{Token: "valid-token", UserID: 1, ExpiresAt: time.Now().Add(time.Hour)}
	return auth.NewService(&stubUserStore{user: user}, &stubSessionStore{session: session}, 24)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	handler := RequireAuth(newAuthService())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("handler should not be reached")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	handler := RequireAuth(newAuthService())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("handler should not be reached")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer wrong-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireAuth_ValidToken(t *testing.T) {
	var seen *models.User
	handler := RequireAuth(newAuthService())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if seen == nil || seen.ID != 1 {
		t.Error("user not stored in request context")
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := BearerToken(r); got != "" {
		t.Errorf("expected empty token, got %q", got)
	}
	r.Header.Set("Authorization", "Bearer abc123")
	if got := BearerToken(r); got != "abc123" {
		t.Errorf("token = %q, want abc123", got)
	}
	r.Header.Set("Authorization", "Basic abc123")
	if got := BearerToken(r); got != "" {
		t.Errorf("non-bearer scheme should yield empty token, got %q", got)
	}
}
