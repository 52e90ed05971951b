package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"ArticleManager/internal/models"
)

var (
	// ErrNotFound — запись или файл отсутствуют (в том числе если id кривой).
	ErrNotFound = errors.New("db: not found")
	// ErrUnsupported — схема DATABASE_URL не поддерживается.
	ErrUnsupported = errors.New("db: unsupported database url")
)

// ChunkSize — размер куска, которым PDF пишется в хранилище.
// Совпадает с размером чанка GridFS по умолчанию.
const ChunkSize = 255 << 10

// Store — хранилище документов (статьи, администраторы) и файлов (PDF).
type Store interface {
	InsertArticle(ctx context.Context, a models.Article) (string, error)
	GetArticle(ctx context.Context, id string) (models.Article, error)
	FindArticleByPDF(ctx context.Context, ref string) (models.Article, error)
	ListArticles(ctx context.Context, f models.ArticleFilter) ([]models.Article, error)
	SetArticleStatus(ctx context.Context, id string, s models.Status) error
	// UpdateArticle меняет заданные поля; pdfRef == "" — PDF не трогаем.
	UpdateArticle(ctx context.Context, id string, f models.ArticleFields, pdfRef string) error
	// DeleteArticle удаляет запись и возвращает её последнее состояние.
	DeleteArticle(ctx context.Context, id string) (models.Article, error)

	FindAdminByEmail(ctx context.Context, email string) (models.Administrator, error)
	FindAdminByID(ctx context.Context, id string) (models.Administrator, error)
	UpsertAdmin(ctx context.Context, email, passwordHash string) (string, error)

	PutPDF(ctx context.Context, filename string, r io.Reader) (models.PDFFile, error)
	OpenPDF(ctx context.Context, ref string) (io.ReadCloser, models.PDFFile, error)
	DeletePDF(ctx context.Context, ref string) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Config — параметры подключения.
type Config struct {
	URL    string // DATABASE_URL
	Name   string // DATABASE_NAME: база в MongoDB, схема в PostgreSQL
	Bucket string // PDF_BUCKET: GridFS bucket или префикс таблиц с PDF
}

// Open выбирает бэкенд по схеме URL и проверяет соединение.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (Store, error) {
	if log == nil {
		log = slog.Default()
	}
	switch {
	case strings.HasPrefix(cfg.URL, "mongodb://"), strings.HasPrefix(cfg.URL, "mongodb+srv://"):
		return OpenMongo(ctx, cfg, log)
	case strings.HasPrefix(cfg.URL, "memory:"):
		log.Warn("db: using in-memory store, data is lost on restart")
		return NewMemory(), nil
	case cfg.URL == "":
		return nil, fmt.Errorf("%w: empty", ErrUnsupported)
	default:
		return OpenPostgres(ctx, cfg, log)
	}
}

// ctxReader прерывает чтение, когда контекст отменён.
// Нужен там, где драйвер сам контекст не принимает.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// countingReader считает прочитанные байты.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
