package sessions

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ArticleManager/internal/db"
	"ArticleManager/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	CookieName = "admin_session"
	// TTL — фиксированное окно жизни сессии, без продления.
	TTL = 4 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("sessions: invalid credentials")
	ErrInvalidToken       = errors.New("sessions: invalid token")
	ErrSessionExpired     = errors.New("sessions: session expired")
	// ErrUnauthorized — то, что видят сервисы при любой ошибке выше.
	ErrUnauthorized = errors.New("sessions: unauthorized")
)

// Session — подтверждение входа администратора. На сервере не хранится.
type Session struct {
	ID        string    `json:"jti"`
	Subject   string    `json:"sub"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// AdminLookup — откуда берём администраторов.
type AdminLookup interface {
	FindAdminByEmail(ctx context.Context, email string) (models.Administrator, error)
	FindAdminByID(ctx context.Context, id string) (models.Administrator, error)
}

// Revoker — необязательный список отозванных сессий.
type Revoker interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// Authenticator выдаёт и проверяет подписанные токены сессий.
type Authenticator struct {
	admins  AdminLookup
	codec   *securecookie.SecureCookie
	options sessions.Options
	now     func() time.Time
	revoker Revoker
}

type Option func(*Authenticator)

// WithClock подменяет часы (для тестов).
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// WithRevoker включает отзыв токенов при выходе.
func WithRevoker(r Revoker) Option {
	return func(a *Authenticator) { a.revoker = r }
}

// WithSecureCookie: кука только по HTTPS.
func WithSecureCookie(secure bool) Option {
	return func(a *Authenticator) { a.options.Secure = secure }
}

// New создаёт аутентификатор. Из секрета выводим два ключа: подпись и
// шифрование. Секрет должен совпадать на всех инстансах, иначе сессии
// не переживут балансировку.
func New(admins AdminLookup, secret string, opts ...Option) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("sessions: empty secret")
	}
	h := sha256.Sum256([]byte("auth:" + secret))
	e := sha256.Sum256([]byte("enc:" + secret))

	codec := securecookie.New(h[:], e[:])
	codec.SetSerializer(securecookie.JSONEncoder{})
	// срок проверяем сами по exp, чтобы различать «истёк» и «подделан»
	codec.MaxAge(0)

	a := &Authenticator{
		admins: admins,
		codec:  codec,
		options: sessions.Options{
			Path:     "/",
			MaxAge:   int(TTL / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate проверяет email и пароль и выдаёт токен.
// Какая именно часть не совпала — наружу не сообщаем.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (Session, string, error) {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, "", ErrInvalidCredentials
	}
	admin, err := a.admins.FindAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Session{}, "", ErrInvalidCredentials
		}
		return Session{}, "", fmt.Errorf("sessions: lookup admin: %w", err)
	}
	if admin.Role != models.RoleAdmin {
		return Session{}, "", ErrInvalidCredentials
	}
	if VerifyPassword(admin.PasswordHash, password) != nil {
		return Session{}, "", ErrInvalidCredentials
	}
	return a.Issue(admin.ID)
}

// Issue подписывает новую сессию для subject.
func (a *Authenticator) Issue(subject string) (Session, string, error) {
	now := a.now().UTC()
	s := Session{
		ID:        uuid.NewString(),
		Subject:   subject,
		Role:      models.RoleAdmin,
		IssuedAt:  now,
		ExpiresAt: now.Add(TTL),
	}
	token, err := a.codec.Encode(CookieName, s)
	if err != nil {
		return Session{}, "", fmt.Errorf("sessions: encode: %w", err)
	}
	return s, token, nil
}

// Validate проверяет подпись и срок. Ровно в момент exp токен ещё жив.
// Subject должен по-прежнему быть администратором в хранилище: удалённый
// или разжалованный админ теряет доступ сразу, а не через TTL.
func (a *Authenticator) Validate(ctx context.Context, token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrInvalidToken
	}
	var s Session
	if err := a.codec.Decode(CookieName, token, &s); err != nil {
		return Session{}, ErrInvalidToken
	}
	if s.Role != models.RoleAdmin || s.Subject == "" || s.ExpiresAt.IsZero() {
		return Session{}, ErrInvalidToken
	}
	if a.now().After(s.ExpiresAt) {
		return Session{}, ErrSessionExpired
	}
	if a.revoker != nil {
		revoked, err := a.revoker.IsRevoked(ctx, s.ID)
		if err != nil {
			return Session{}, fmt.Errorf("%w: revocation check: %v", ErrInvalidToken, err)
		}
		if revoked {
			return Session{}, ErrInvalidToken
		}
	}
	admin, err := a.admins.FindAdminByID(ctx, s.Subject)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, fmt.Errorf("%w: lookup admin: %v", ErrInvalidToken, err)
	}
	if admin.Role != models.RoleAdmin {
		return Session{}, ErrInvalidToken
	}
	return s, nil
}

// Revoke — выход. Без Revoker токен продолжает жить до exp: клиент просто
// теряет куку.
func (a *Authenticator) Revoke(ctx context.Context, token string) error {
	if a.revoker == nil {
		return nil
	}
	var s Session
	if err := a.codec.Decode(CookieName, token, &s); err != nil {
		return nil
	}
	if !a.now().Before(s.ExpiresAt) {
		return nil
	}
	return a.revoker.Revoke(ctx, s.ID, s.ExpiresAt)
}

// Require — проверка для сервисов: токен берётся из контекста запроса.
func (a *Authenticator) Require(ctx context.Context) (Session, error) {
	token, _ := TokenFromContext(ctx)
	s, err := a.Validate(ctx, token)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return s, nil
}

// Cookie собирает куку с токеном.
func (a *Authenticator) Cookie(token string) *http.Cookie {
	return sessions.NewCookie(CookieName, token, &a.options)
}

// ClearCookie — кука, которая удаляет сессию в браузере.
func (a *Authenticator) ClearCookie() *http.Cookie {
	opts := a.options
	opts.MaxAge = -1
	return sessions.NewCookie(CookieName, "", &opts)
}

// TokenFromRequest достаёт токен из куки.
func TokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
