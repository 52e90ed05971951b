package sessions

import "context"

type ctxKey int

const (
	tokenKey ctxKey = iota
	sessionKey
)

// ContextWithToken кладёт сырой токен в контекст запроса. Сервисы
// перепроверяют его сами на каждом вызове.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

func TokenFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tokenKey).(string)
	return v, ok && v != ""
}

// ContextWithSession — уже проверенная сессия, для шаблонов и логов.
func ContextWithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}
