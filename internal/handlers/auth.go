package handlers

import (
	"errors"
	"net/http"

	"ArticleManager/internal/sessions"
)

// ShowLoginPage — форма входа; уже вошедших отправляем в админку.
func (h *Handler) ShowLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Auth.Validate(r.Context(), sessions.TokenFromRequest(r)); err == nil {
		http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login.html", map[string]any{
		"Title": "Admin login",
		"Email": "",
	})
}

// HandleLogin проверяет email и пароль и ставит куку сессии.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.loginFailed(w, r, http.StatusBadRequest, "Malformed form.")
		return
	}

	email := r.PostForm.Get("email")
	s, token, err := h.Auth.Authenticate(r.Context(), email, r.PostForm.Get("password"))
	if errors.Is(err, sessions.ErrInvalidCredentials) {
		h.Log.Info("handlers: login rejected", "remote", r.RemoteAddr)
		h.loginFailed(w, r, http.StatusUnauthorized, "Invalid credentials.")
		return
	} else if err != nil {
		h.Log.Error("handlers: login failed", "err", err)
		h.loginFailed(w, r, http.StatusInternalServerError, "Login is temporarily unavailable.")
		return
	}

	http.SetCookie(w, h.Auth.Cookie(token))
	h.Log.Info("handlers: admin logged in", "admin", s.Subject, "session", s.ID)
	http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
}

func (h *Handler) loginFailed(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.render(w, r, status, "login.html", map[string]any{
		"Title": "Admin login",
		"Error": msg,
		"Email": r.PostForm.Get("email"),
	})
}

// HandleLogout удаляет куку (и отзывает токен, если есть Redis).
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessions.TokenFromRequest(r); token != "" {
		if err := h.Auth.Revoke(r.Context(), token); err != nil {
			h.Log.Error("handlers: revoke session", "err", err)
		}
	}
	http.SetCookie(w, h.Auth.ClearCookie())
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}
