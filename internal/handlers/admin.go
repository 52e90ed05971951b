package handlers

import (
	"errors"
	"net/http"
	"strings"

	"ArticleManager/internal/articles"
	"ArticleManager/internal/models"

	"github.com/go-chi/chi/v5"
)

// AdminDashboard — все заявки, новые сверху.
func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{}
	if r.URL.Query().Get("uploaded") == "1" {
		data["Message"] = "Article uploaded successfully."
	}
	h.renderDashboard(w, r, http.StatusOK, data)
}

func (h *Handler) renderDashboard(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	var filter models.ArticleFilter
	if s := models.Status(r.URL.Query().Get("status")); s.Valid() {
		filter.Status = s
	}
	list, err := h.Review.List(r.Context(), filter)
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	data["Title"] = "Dashboard"
	data["Articles"] = list
	data["Filter"] = string(filter.Status)
	h.render(w, r, status, "dashboard.html", data)
}

// AdminUploadArticle — подача из админки; статья тоже создаётся pending.
func (h *Handler) AdminUploadArticle(w http.ResponseWriter, r *http.Request) {
	u, err := h.parseUpload(w, r)
	if err != nil {
		code, msg := statusFor(err)
		if code == http.StatusInternalServerError {
			code, msg = http.StatusBadRequest, "Malformed upload form."
		}
		h.renderDashboard(w, r, code, map[string]any{"Error": msg})
		return
	}
	defer u.Close()

	if _, err := h.Submission.Submit(r.Context(), u.meta, u.pdf, articles.OriginAdmin); err != nil {
		if _, ok := articles.AsValidation(err); ok {
			_, msg := statusFor(err)
			h.renderDashboard(w, r, http.StatusBadRequest, map[string]any{"Error": msg})
			return
		}
		h.pageError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/dashboard?uploaded=1", http.StatusSeeOther)
}

// AdminViewArticle показывает карточку статьи.
func (h *Handler) AdminViewArticle(w http.ResponseWriter, r *http.Request) {
	a, err := h.Review.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "view.html", map[string]any{
		"Title":   a.Title,
		"Article": a,
	})
}

// AdminEditForm рисует форму правки.
func (h *Handler) AdminEditForm(w http.ResponseWriter, r *http.Request) {
	a, err := h.Review.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "edit.html", map[string]any{
		"Title":   "Edit: " + a.Title,
		"Article": a,
	})
}

// AdminEditArticle принимает правку: id из пути (/admin/edit/{id}) или из
// поля article_id (/admin/edit-article). Форма может быть multipart с новым
// pdf_file.
func (h *Handler) AdminEditArticle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		code, msg := statusFor(err)
		if code == http.StatusInternalServerError {
			code, msg = http.StatusBadRequest, "Malformed form."
		}
		http.Error(w, msg, code)
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		id = strings.TrimSpace(r.PostForm.Get("article_id"))
	}

	fields := models.ArticleFields{
		Title:    formText(r, "title"),
		Author:   formText(r, "author"),
		Abstract: formText(r, "abstract"),
		Body:     formText(r, "body"),
	}

	var pdf *articles.Upload
	file, hdr, ferr := r.FormFile("pdf_file")
	switch {
	case ferr == nil:
		defer file.Close()
		// пустое поле файла в форме — «PDF не меняем»
		if hdr.Size > 0 {
			pdf = &articles.Upload{Filename: hdr.Filename, Body: file}
		}
	case errors.Is(ferr, http.ErrMissingFile), errors.Is(ferr, http.ErrNotMultipart):
	default:
		http.Error(w, "Malformed form.", http.StatusBadRequest)
		return
	}

	if err := h.Review.Edit(r.Context(), id, fields, pdf); err != nil {
		if _, ok := articles.AsValidation(err); ok {
			h.renderEditError(w, r, id, fields, err)
			return
		}
		h.pageError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
}

// renderEditError показывает форму снова, с тем, что ввёл администратор.
func (h *Handler) renderEditError(w http.ResponseWriter, r *http.Request, id string, f models.ArticleFields, err error) {
	a, gerr := h.Review.Get(r.Context(), id)
	if gerr != nil {
		h.pageError(w, r, gerr)
		return
	}
	for dst, src := range map[*string]*string{&a.Title: f.Title, &a.Author: f.Author, &a.Abstract: f.Abstract, &a.Body: f.Body} {
		if src != nil {
			*dst = *src
		}
	}
	_, msg := statusFor(err)
	h.render(w, r, http.StatusBadRequest, "edit.html", map[string]any{
		"Title":   "Edit article",
		"Article": a,
		"Error":   msg,
	})
}

// AdminApproveArticle публикует статью.
func (h *Handler) AdminApproveArticle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Malformed form.", http.StatusBadRequest)
		return
	}
	if err := h.Review.Approve(r.Context(), strings.TrimSpace(r.PostForm.Get("article_id"))); err != nil {
		h.pageError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
}

// AdminDeleteArticle удаляет статью вместе с PDF.
func (h *Handler) AdminDeleteArticle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Malformed form.", http.StatusBadRequest)
		return
	}
	if err := h.Review.Delete(r.Context(), strings.TrimSpace(r.PostForm.Get("article_id"))); err != nil {
		h.pageError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
}
