package articles

import (
	"context"
	"errors"
	"fmt"

	"ArticleManager/internal/db"
	"ArticleManager/internal/models"
)

// Review — действия администратора. Каждый метод сам перепроверяет сессию.
type Review struct {
	d Deps
}

func NewReview(d Deps) *Review {
	return &Review{d: d.withDefaults()}
}

// List — все статьи (или только с заданным статусом), новые сверху.
func (r *Review) List(ctx context.Context, f models.ArticleFilter) ([]models.Article, error) {
	if _, err := r.d.Guard.Require(ctx); err != nil {
		return nil, err
	}
	list, err := r.d.Store.ListArticles(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("articles: list: %w", err)
	}
	return list, nil
}

func (r *Review) Get(ctx context.Context, id string) (models.Article, error) {
	if _, err := r.d.Guard.Require(ctx); err != nil {
		return models.Article{}, err
	}
	return r.d.Store.GetArticle(ctx, id)
}

// Approve публикует статью. Повторный вызов ничего не меняет.
func (r *Review) Approve(ctx context.Context, id string) error {
	s, err := r.d.Guard.Require(ctx)
	if err != nil {
		return err
	}
	if err := r.d.Store.SetArticleStatus(ctx, id, models.StatusApproved); err != nil {
		return err
	}
	reviewActions.WithLabelValues("approve").Inc()
	r.d.Log.Info("articles: approved", "article_id", id, "admin", s.Subject)
	return nil
}

// Edit меняет переданные поля. Если пришёл новый PDF, статья
// перенаправляется на него, и только потом удаляется старый файл.
func (r *Review) Edit(ctx context.Context, id string, fields models.ArticleFields, pdf *Upload) error {
	s, err := r.d.Guard.Require(ctx)
	if err != nil {
		return err
	}
	if err := validateUpdate(&fields); err != nil {
		countValidation(err)
		return err
	}

	if pdf == nil {
		if err := r.d.Store.UpdateArticle(ctx, id, fields, ""); err != nil {
			return err
		}
		reviewActions.WithLabelValues("edit").Inc()
		r.d.Log.Info("articles: edited", "article_id", id, "admin", s.Subject)
		return nil
	}

	body, err := sniffPDF(pdf.Body)
	if err != nil {
		countValidation(err)
		return err
	}
	current, err := r.d.Store.GetArticle(ctx, id)
	if err != nil {
		return err
	}
	file, err := r.d.Store.PutPDF(ctx, pdfFilename(pdf.Filename), body)
	if err != nil {
		return fmt.Errorf("articles: store pdf: %w", err)
	}
	if err := r.d.Store.UpdateArticle(ctx, id, fields, file.Ref); err != nil {
		dropPDF(ctx, r.d, file.Ref, "article update failed")
		return err
	}
	if current.PDFRef != "" && current.PDFRef != file.Ref {
		dropPDF(ctx, r.d, current.PDFRef, "replaced")
	}

	reviewActions.WithLabelValues("edit").Inc()
	r.d.Log.Info("articles: edited", "article_id", id, "admin", s.Subject, "pdf_ref", file.Ref, "old_pdf_ref", current.PDFRef)
	return nil
}

// Delete удаляет сначала запись, потом файл: так PDF не пропадёт, пока на
// него ещё ссылается статья.
func (r *Review) Delete(ctx context.Context, id string) error {
	s, err := r.d.Guard.Require(ctx)
	if err != nil {
		return err
	}
	a, err := r.d.Store.DeleteArticle(ctx, id)
	if err != nil {
		return err
	}
	if a.PDFRef != "" {
		err := r.d.Store.DeletePDF(ctx, a.PDFRef)
		switch {
		case err == nil, errors.Is(err, db.ErrNotFound):
		default:
			// запись уже удалена, откатывать некуда
			orphanedPDFs.Inc()
			r.d.Log.Error("articles: orphaned pdf", "pdf_ref", a.PDFRef, "reason", "delete failed", "err", err)
		}
	}
	reviewActions.WithLabelValues("delete").Inc()
	r.d.Log.Info("articles: deleted", "article_id", id, "admin", s.Subject)
	return nil
}
