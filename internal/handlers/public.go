package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"ArticleManager/internal/articles"

	"github.com/go-chi/chi/v5"
)

// ListArticles отдаёт опубликованные статьи в JSON.
func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	list, err := h.Delivery.ListApproved(r.Context())
	if err != nil {
		h.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ServePDF стримит PDF по его идентификатору.
func (h *Handler) ServePDF(w http.ResponseWriter, r *http.Request) {
	pdf, err := h.Delivery.StreamPDF(r.Context(), chi.URLParam(r, "fileID"))
	if errors.Is(err, articles.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "PDF not found.")
		return
	} else if err != nil {
		h.apiError(w, r, err)
		return
	}
	defer pdf.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": pdf.Name}))
	if pdf.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(pdf.Size, 10))
	}
	if !pdf.UploadedAt.IsZero() {
		w.Header().Set("Last-Modified", pdf.UploadedAt.UTC().Format(http.TimeFormat))
	}
	if _, err := io.Copy(w, pdf); err != nil {
		// заголовки уже ушли, остаётся только лог
		h.Log.Warn("handlers: pdf stream interrupted", "pdf_ref", chi.URLParam(r, "fileID"), "err", err)
	}
}
