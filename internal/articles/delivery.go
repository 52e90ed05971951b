package articles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"ArticleManager/internal/models"
)

// Delivery — публичная выдача. Сессия не нужна.
type Delivery struct {
	d Deps
}

func NewDelivery(d Deps) *Delivery {
	return &Delivery{d: d.withDefaults()}
}

// ListApproved возвращает только опубликованные статьи, без body.
func (d *Delivery) ListApproved(ctx context.Context) ([]models.PublicArticle, error) {
	list, err := d.d.Store.ListArticles(ctx, models.ArticleFilter{Status: models.StatusApproved})
	if err != nil {
		return nil, fmt.Errorf("articles: list approved: %w", err)
	}
	out := make([]models.PublicArticle, 0, len(list))
	for _, a := range list {
		out = append(out, models.ArticleToPublic(a))
	}
	return out, nil
}

// PDF — открытый поток с файлом. Закрывает вызывающий.
type PDF struct {
	io.ReadCloser
	Name       string
	Size       int64
	UploadedAt time.Time
}

// StreamPDF отдаёт файл по ссылке. Статус статьи не проверяется: кто знает
// ref, тот может скачать и неопубликованную рукопись.
func (d *Delivery) StreamPDF(ctx context.Context, ref string) (*PDF, error) {
	rc, meta, err := d.d.Store.OpenPDF(ctx, ref)
	if err != nil {
		return nil, err
	}
	name := "article.pdf"
	a, err := d.d.Store.FindArticleByPDF(ctx, ref)
	switch {
	case err == nil:
		if t := strings.TrimSpace(a.Title); t != "" {
			name = t + ".pdf"
		}
	case errors.Is(err, ErrNotFound):
	default:
		d.d.Log.Warn("articles: pdf owner lookup failed", "pdf_ref", ref, "err", err)
	}
	return &PDF{ReadCloser: rc, Name: name, Size: meta.Length, UploadedAt: meta.UploadedAt}, nil
}
