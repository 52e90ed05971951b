package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"ArticleManager/internal/articles"
	mw "ArticleManager/internal/middleware"
	"ArticleManager/internal/sessions"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

// multipartMemory — сколько multipart держим в памяти; остальное уходит
// во временные файлы, так что большие PDF не раздувают процесс.
const multipartMemory = 1 << 20

// Deps — всё, что нужно хендлерам. Собирается в cmd.
type Deps struct {
	Submission *articles.Submission
	Review     *articles.Review
	Delivery   *articles.Delivery
	Auth       *sessions.Authenticator
	Log        *slog.Logger

	// Ready пингует хранилище для /ready; nil — маршрут не регистрируется.
	Ready Pinger
	// Metrics — хендлер /metrics; nil — маршрут не регистрируется.
	Metrics http.Handler
	// LoginLimiter ограничивает POST /admin/login; nil — без ограничения.
	LoginLimiter   *mw.RateLimiter
	MaxUploadBytes int64
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Deps
	pages map[string]*template.Template
}

var pageFiles = []string{
	"upload.html",
	"login.html",
	"dashboard.html",
	"view.html",
	"edit.html",
}

func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 25 << 20 // 25 MB
	}
	h := &Handler{Deps: d, pages: make(map[string]*template.Template, len(pageFiles))}
	funcs := template.FuncMap{
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.UTC().Format("Jan 02, 2006 15:04 UTC")
		},
	}
	for _, page := range pageFiles {
		h.pages[page] = template.Must(template.New(page).Funcs(funcs).
			ParseFS(templateFS, "templates/base.html", "templates/"+page))
	}
	return h
}

// Routes собирает роутер приложения.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// базовые middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(mw.Instrument)
	r.Use(mw.SecurityHeaders)
	r.Use(middleware.RedirectSlashes) // /path/ -> /path

	r.Get("/health", h.Health)
	if h.Ready != nil {
		r.Get("/ready", h.ReadyProbe)
	}
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics)
	}

	// PDF может качаться дольше общего таймаута
	r.With(mw.CORS).Get("/pdf/{fileID}", h.ServePDF)

	r.Group(func(g chi.Router) {
		g.Use(middleware.Timeout(30 * time.Second))

		g.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
		})

		// ---------- Публичная часть ----------
		g.Get("/upload", h.ShowUploadForm)
		g.Post("/upload-article", h.UploadArticle)
		g.With(mw.CORS).Get("/articles", h.ListArticles)

		// ---------- Аутентификация администратора ----------
		g.Get("/admin/login", h.ShowLoginPage)
		login := g.With()
		if h.LoginLimiter != nil {
			login = g.With(h.LoginLimiter.Middleware)
		}
		login.Post("/admin/login", h.HandleLogin)
		g.Get("/admin/logout", h.HandleLogout)
		g.Post("/admin/logout", h.HandleLogout)

		// ---------- Админка ----------
		g.Group(func(a chi.Router) {
			a.Use(mw.AdminOnly(h.Auth)) // доступ только с валидной сессией

			a.Get("/admin/dashboard", h.AdminDashboard)
			a.Post("/admin/upload-article", h.AdminUploadArticle)
			a.Get("/admin/view/{id}", h.AdminViewArticle)
			a.Get("/admin/edit/{id}", h.AdminEditForm)
			a.Post("/admin/edit/{id}", h.AdminEditArticle)
			a.Post("/admin/edit-article", h.AdminEditArticle)
			a.Post("/admin/approve-article", h.AdminApproveArticle)
			a.Post("/admin/delete-article", h.AdminDeleteArticle)
		})
	})

	return r
}

// Health отвечает пробам платформы.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyProbe: 503, пока хранилище не отвечает. Причину пишем только в лог.
func (h *Handler) ReadyProbe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.Ready.Ping(ctx); err != nil {
		h.Log.Warn("handlers: store not ready", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// render рисует страницу; .IsAdmin и .Year прокидываются во все шаблоны.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	_, isAdmin := sessions.SessionFromContext(r.Context())
	data["IsAdmin"] = isAdmin
	data["Year"] = time.Now().Year()

	tmpl, ok := h.pages[page]
	if !ok {
		h.Log.Error("handlers: unknown page", "page", page)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		h.Log.Error("handlers: render", "page", page, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"error": msg,
	})
}

// statusFor — единая таблица «ошибка → HTTP-код и текст для клиента».
func statusFor(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "Uploaded file is too large."
	case errors.Is(err, articles.ErrUnauthorized):
		return http.StatusUnauthorized, "Invalid session."
	case errors.Is(err, articles.ErrNotFound):
		return http.StatusNotFound, "Not found."
	}
	if ve, ok := articles.AsValidation(err); ok {
		return http.StatusBadRequest, ve.Message
	}
	return http.StatusInternalServerError, "Internal server error."
}

// apiError пишет JSON-ошибку; 5xx логируются с id запроса.
func (h *Handler) apiError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code >= 500 {
		h.Log.Error("handlers: request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	body := map[string]any{"error": msg}
	if ve, ok := articles.AsValidation(err); ok && ve.Field != "" {
		body["field"] = ve.Field
	}
	writeJSON(w, code, body)
}

// pageError делает то же для HTML-страниц админки.
func (h *Handler) pageError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code == http.StatusUnauthorized {
		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
		return
	}
	if code >= 500 {
		h.Log.Error("handlers: request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	http.Error(w, msg, code)
}
