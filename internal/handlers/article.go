package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"ArticleManager/internal/articles"
)

// upload — разобранная multipart-форма с рукописью.
type upload struct {
	meta articles.Metadata
	pdf  articles.Upload
	file multipart.File
	form *multipart.Form
}

// Close закрывает файл и удаляет временные файлы формы.
func (u *upload) Close() {
	if u.file != nil {
		_ = u.file.Close()
	}
	if u.form != nil {
		_ = u.form.RemoveAll()
	}
}

// parseUpload ограничивает тело, разбирает multipart и достаёт pdf_file.
// Отсутствующий файл — не ошибка разбора: его отвергнет сервис.
func (h *Handler) parseUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, err
	}
	u := &upload{
		form: r.MultipartForm,
		meta: articles.Metadata{
			Title:    r.PostFormValue("title"),
			Author:   r.PostFormValue("author"),
			Abstract: r.PostFormValue("abstract"),
			Body:     r.PostFormValue("body"),
		},
	}
	file, hdr, err := r.FormFile("pdf_file")
	switch {
	case err == nil:
		u.file = file
		u.pdf = articles.Upload{Filename: hdr.Filename, Body: file}
	case errors.Is(err, http.ErrMissingFile):
	default:
		u.Close()
		return nil, err
	}
	return u, nil
}

// ShowUploadForm рисует публичную форму подачи.
func (h *Handler) ShowUploadForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "upload.html", map[string]any{
		"Title": "Submit an article",
	})
}

// UploadArticle — публичная подача рукописи (JSON-ответ).
func (h *Handler) UploadArticle(w http.ResponseWriter, r *http.Request) {
	u, err := h.parseUpload(w, r)
	if err != nil {
		h.uploadParseError(w, r, err)
		return
	}
	defer u.Close()

	receipt, err := h.Submission.Submit(r.Context(), u.meta, u.pdf, articles.OriginPublic)
	if err != nil {
		h.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Article uploaded successfully.",
		"article_id":  receipt.ArticleID,
		"pdf_file_id": receipt.PDFRef,
	})
}

func (h *Handler) uploadParseError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.apiError(w, r, err)
		return
	}
	jsonError(w, http.StatusBadRequest, "Malformed upload form.")
}

// formText возвращает значение поля, если оно вообще пришло в форме.
func formText(r *http.Request, key string) *string {
	if _, ok := r.PostForm[key]; !ok {
		return nil
	}
	v := r.PostForm.Get(key)
	return &v
}
