package sessions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ArticleManager/internal/db"
	"ArticleManager/internal/models"
)

const testSecret = "test-secret-please-ignore"

type fakeRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (f *fakeRevoker) Revoke(_ context.Context, id string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revoked == nil {
		f.revoked = make(map[string]time.Time)
	}
	f.revoked[id] = until
	return nil
}

func (f *fakeRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[id]
	return ok, nil
}

func newStoreWithAdmin(t *testing.T, email, password string) *db.Memory {
	t.Helper()
	store := db.NewMemory()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if _, err := store.UpsertAdmin(context.Background(), models.NormalizeEmail(email), hash); err != nil {
		t.Fatalf("UpsertAdmin: %v", err)
	}
	return store
}

// fakeAdmins — администраторы, которых можно удалить или разжаловать
// в обход приложения, как это делают прямо в базе.
type fakeAdmins struct {
	mu   sync.Mutex
	byID map[string]models.Administrator
}

func newFakeAdmins(ids ...string) *fakeAdmins {
	f := &fakeAdmins{byID: make(map[string]models.Administrator)}
	for _, id := range ids {
		f.byID[id] = models.Administrator{ID: id, Email: id + "@example.com", Role: models.RoleAdmin}
	}
	return f
}

func (f *fakeAdmins) FindAdminByEmail(_ context.Context, email string) (models.Administrator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.Email == email {
			return a, nil
		}
	}
	return models.Administrator{}, db.ErrNotFound
}

func (f *fakeAdmins) FindAdminByID(_ context.Context, id string) (models.Administrator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return models.Administrator{}, db.ErrNotFound
	}
	return a, nil
}

func (f *fakeAdmins) remove(id string) {
	f.mu.Lock()
	delete(f.byID, id)
	f.mu.Unlock()
}

func (f *fakeAdmins) setRole(id, role string) {
	f.mu.Lock()
	a := f.byID[id]
	a.Role = role
	f.byID[id] = a
	f.mu.Unlock()
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	store := newStoreWithAdmin(t, "admin@example.com", "correct-horse")
	auth, err := New(store, testSecret)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := map[string][2]string{
		"wrong password": {"admin@example.com", "battery-staple"},
		"unknown email":  {"nobody@example.com", "correct-horse"},
		"empty password": {"admin@example.com", ""},
		"empty email":    {"", "correct-horse"},
	}
	for name, c := range cases {
		if _, _, err := auth.Authenticate(context.Background(), c[0], c[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", name, err)
		}
	}
}

func TestAuthenticateNormalizesEmail(t *testing.T) {
	store := newStoreWithAdmin(t, "admin@example.com", "correct-horse")
	auth, err := New(store, testSecret)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s, token, err := auth.Authenticate(context.Background(), "  Admin@Example.COM ", "correct-horse")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}
	if s.Role != models.RoleAdmin || s.Subject == "" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if got := s.ExpiresAt.Sub(s.IssuedAt); got != TTL {
		t.Fatalf("expected ttl %v, got %v", TTL, got)
	}

	v, err := auth.Validate(context.Background(), token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.ID != s.ID || v.Subject != s.Subject {
		t.Fatalf("validated session mismatch: %+v vs %+v", v, s)
	}
}

func TestValidateExpiryBoundary(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := start
	auth, err := New(newFakeAdmins("admin-1"), testSecret, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, token, err := auth.Issue("admin-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = start.Add(TTL - time.Second)
	if _, err := auth.Validate(context.Background(), token); err != nil {
		t.Fatalf("expected token valid just before expiry, got %v", err)
	}

	now = start.Add(TTL)
	if _, err := auth.Validate(context.Background(), token); err != nil {
		t.Fatalf("expected token valid exactly at expiry, got %v", err)
	}

	now = start.Add(TTL + time.Second)
	if _, err := auth.Validate(context.Background(), token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestValidateRejectsForeignAndTamperedTokens(t *testing.T) {
	admins := newFakeAdmins("admin-1")
	auth, err := New(admins, testSecret)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	other, err := New(admins, "another-secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, token, err := other.Issue("admin-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := auth.Validate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign token, got %v", err)
	}

	_, own, err := auth.Issue("admin-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	tampered := own[:len(own)-2] + "xx"
	if tampered == own {
		tampered = own[:len(own)-2] + "yy"
	}
	if _, err := auth.Validate(context.Background(), tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
	if _, err := auth.Validate(context.Background(), ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestRevokeWithRevoker(t *testing.T) {
	rev := &fakeRevoker{}
	auth, err := New(newFakeAdmins("admin-1"), testSecret, WithRevoker(rev))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, token, err := auth.Issue("admin-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := auth.Validate(context.Background(), token); err != nil {
		t.Fatalf("Validate before revoke: %v", err)
	}
	if err := auth.Revoke(context.Background(), token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := auth.Validate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked token to be invalid, got %v", err)
	}
}

func TestRevokeWithoutRevokerIsNoop(t *testing.T) {
	auth, err := New(newFakeAdmins("admin-1"), testSecret)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, token, err := auth.Issue("admin-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := auth.Revoke(context.Background(), token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := auth.Validate(context.Background(), token); err != nil {
		t.Fatalf("token should outlive logout without revoker: %v", err)
	}
}

func TestRequireReadsTokenFromContext(t *testing.T) {
	auth, err := New(newFakeAdmins("admin-7"), testSecret)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := auth.Require(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without token, got %v", err)
	}

	_, token, err := auth.Issue("admin-7")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	s, err := auth.Require(ContextWithToken(context.Background(), token))
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if s.Subject != "admin-7" {
		t.Fatalf("unexpected subject %q", s.Subject)
	}

	_, err = auth.Require(ContextWithToken(context.Background(), "garbage"))
	if !errors.Is(err, ErrUnauthorized) || !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrUnauthorized wrapping ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsRemovedAdmin(t *testing.T) {
	admins := newFakeAdmins("admin-1")
	auth, err := New(admins, testSecret)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, token, err := auth.Issue("admin-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := auth.Validate(context.Background(), token); err != nil {
		t.Fatalf("Validate before removal: %v", err)
	}

	admins.remove("admin-1")
	if _, err := auth.Validate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for removed admin, got %v", err)
	}
	if _, err := auth.Require(ContextWithToken(context.Background(), token)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for removed admin, got %v", err)
	}
}

func TestValidateRejectsDemotedAdmin(t *testing.T) {
	admins := newFakeAdmins("admin-1")
	auth, err := New(admins, testSecret)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, token, err := auth.Issue("admin-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	admins.setRole("admin-1", "user")
	if _, err := auth.Validate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for demoted admin, got %v", err)
	}
}

func TestCookieAttributes(t *testing.T) {
	auth, err := New(db.NewMemory(), testSecret, WithSecureCookie(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c := auth.Cookie("tok")
	if c.Name != CookieName || c.Value != "tok" {
		t.Fatalf("unexpected cookie: %+v", c)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Fatalf("unexpected cookie flags: %+v", c)
	}
	if c.MaxAge != int(TTL/time.Second) {
		t.Fatalf("unexpected max-age %d", c.MaxAge)
	}

	cleared := auth.ClearCookie()
	if cleared.MaxAge >= 0 || cleared.Value != "" {
		t.Fatalf("clear cookie should expire immediately: %+v", cleared)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	if got := TokenFromRequest(req); got != "tok" {
		t.Fatalf("TokenFromRequest: got %q", got)
	}
}

func TestNewRequiresSecret(t *testing.T) {
	if _, err := New(db.NewMemory(), ""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestHashPassword(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Fatalf("expected error for short password")
	}
	hash, err := HashPassword("long-enough")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := VerifyPassword(hash, "long-enough"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "long-enougH"); err == nil {
		t.Fatalf("expected mismatch")
	}
	if err := VerifyPassword("", "long-enough"); err == nil {
		t.Fatalf("expected error for empty hash")
	}
}
