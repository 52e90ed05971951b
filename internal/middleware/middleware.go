package middleware

import (
	"context"
	"net/http"

	"ArticleManager/internal/sessions"
)

// Validator проверяет токен сессии.
type Validator interface {
	Validate(ctx context.Context, token string) (sessions.Session, error)
}

// AdminOnly пускает дальше только с валидной сессией, иначе — на логин.
// Токен кладётся в контекст: сервисы перепроверяют его сами.
// Позволяет писать: g.Use(middleware.AdminOnly(auth))
func AdminOnly(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessions.TokenFromRequest(r)
			s, err := v.Validate(r.Context(), token)
			if err != nil {
				http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
				return
			}
			ctx := sessions.ContextWithToken(r.Context(), token)
			ctx = sessions.ContextWithSession(ctx, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
