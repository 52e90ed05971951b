package articles

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"ArticleManager/internal/models"
)

// Origin — через какую точку пришла рукопись. На сохранённую статью не влияет.
type Origin string

const (
	OriginPublic Origin = "public"
	OriginAdmin  Origin = "admin"
)

// Receipt — результат успешной подачи.
type Receipt struct {
	ArticleID string `json:"article_id"`
	PDFRef    string `json:"pdf_file_id"`
}

// Submission принимает новые рукописи.
type Submission struct {
	d Deps
}

func NewSubmission(d Deps) *Submission {
	return &Submission{d: d.withDefaults()}
}

// Submit проверяет файл и поля, кладёт PDF в хранилище и создаёт статью
// в статусе pending. Если запись статьи не удалась, PDF удаляется.
func (s *Submission) Submit(ctx context.Context, meta Metadata, pdf Upload, origin Origin) (Receipt, error) {
	if origin == OriginAdmin {
		if _, err := s.d.Guard.Require(ctx); err != nil {
			return Receipt{}, err
		}
	}

	body, err := sniffPDF(pdf.Body)
	if err != nil {
		countValidation(err)
		return Receipt{}, err
	}
	if err := validateMetadata(&meta); err != nil {
		countValidation(err)
		return Receipt{}, err
	}

	file, err := s.d.Store.PutPDF(ctx, pdfFilename(pdf.Filename), body)
	if err != nil {
		return Receipt{}, fmt.Errorf("articles: store pdf: %w", err)
	}

	a := models.Article{
		Title:     meta.Title,
		Author:    meta.Author,
		Abstract:  meta.Abstract,
		Body:      meta.Body,
		PDFRef:    file.Ref,
		Status:    models.StatusPending,
		CreatedAt: s.d.Now().UTC(),
	}
	id, err := s.d.Store.InsertArticle(ctx, a)
	if err != nil {
		dropPDF(ctx, s.d, file.Ref, "article insert failed")
		return Receipt{}, fmt.Errorf("articles: insert: %w", err)
	}

	submissions.WithLabelValues(string(origin)).Inc()
	s.d.Log.Info("articles: submitted", "article_id", id, "pdf_ref", file.Ref, "origin", origin, "bytes", file.Length)
	return Receipt{ArticleID: id, PDFRef: file.Ref}, nil
}

func pdfFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		return "article.pdf"
	}
	return name
}
