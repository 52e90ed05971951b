package articles

import (
	"context"
	"io"
	"log/slog"
	"time"

	"ArticleManager/internal/models"
	"ArticleManager/internal/sessions"
)

// Store — то, что сервисам нужно от хранилища. db.Store ему удовлетворяет.
type Store interface {
	InsertArticle(ctx context.Context, a models.Article) (string, error)
	GetArticle(ctx context.Context, id string) (models.Article, error)
	FindArticleByPDF(ctx context.Context, ref string) (models.Article, error)
	ListArticles(ctx context.Context, f models.ArticleFilter) ([]models.Article, error)
	SetArticleStatus(ctx context.Context, id string, s models.Status) error
	UpdateArticle(ctx context.Context, id string, f models.ArticleFields, pdfRef string) error
	DeleteArticle(ctx context.Context, id string) (models.Article, error)

	PutPDF(ctx context.Context, filename string, r io.Reader) (models.PDFFile, error)
	OpenPDF(ctx context.Context, ref string) (io.ReadCloser, models.PDFFile, error)
	DeletePDF(ctx context.Context, ref string) error
}

// Guard перепроверяет сессию администратора из контекста.
type Guard interface {
	Require(ctx context.Context) (sessions.Session, error)
}

// Deps — общие зависимости сервисов, собираются один раз при старте.
type Deps struct {
	Store Store
	Guard Guard
	Log   *slog.Logger
	Now   func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Upload: загруженный PDF.
type Upload struct {
	Filename string
	Body     io.Reader
}

// dropPDF — компенсирующее удаление. Запускается и после отмены запроса,
// иначе файл останется без статьи.
func dropPDF(ctx context.Context, d Deps, ref, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := d.Store.DeletePDF(ctx, ref); err != nil {
		orphanedPDFs.Inc()
		d.Log.Error("articles: orphaned pdf", "pdf_ref", ref, "reason", reason, "err", err)
	}
}
