package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ArticleManager/internal/models"

	"github.com/lib/pq"
	"github.com/xo/dburl"
)

// Postgres — хранилище поверх PostgreSQL. Статьи и администраторы — обычные
// таблицы, PDF режутся на куски по ChunkSize (как в GridFS).
type Postgres struct {
	db     *sql.DB
	log    *slog.Logger
	schema string

	articles string
	admins   string
	files    string
	chunks   string
}

var _ Store = (*Postgres)(nil)

// OpenPostgres подключается по DATABASE_URL, проверяет соединение и создаёт
// таблицы. cfg.Name — схема, cfg.Bucket — префикс таблиц с PDF.
func OpenPostgres(ctx context.Context, cfg Config, log *slog.Logger) (*Postgres, error) {
	u, err := dburl.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("db: parse url: %w", err)
	}
	if u.Driver != "postgres" {
		return nil, fmt.Errorf("%w: driver %q", ErrUnsupported, u.Driver)
	}

	sqlDB, err := sql.Open("postgres", u.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}

	// пул коннектов
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	// ping с таймаутом, чтобы не вешать старт
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	p := NewPostgres(sqlDB, cfg.Name, cfg.Bucket, log)
	if err := p.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	// в лог — только «куда», без пароля
	log.Info("db: connected", "backend", "postgres", "url", u.URL.Redacted(), "schema", cfg.Name)
	return p, nil
}

// NewPostgres оборачивает уже открытое соединение. Миграции не запускает.
func NewPostgres(sqlDB *sql.DB, schema, bucket string, log *slog.Logger) *Postgres {
	if log == nil {
		log = slog.Default()
	}
	table := func(name string) string {
		if schema == "" {
			return pq.QuoteIdentifier(name)
		}
		return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(name)
	}
	return &Postgres{
		db:       sqlDB,
		log:      log,
		schema:   schema,
		articles: table("articles"),
		admins:   table("administrators"),
		files:    table(bucket + "_files"),
		chunks:   table(bucket + "_chunks"),
	}
}

// Migrate создаёт схему и таблицы, если их ещё нет.
func (p *Postgres) Migrate(ctx context.Context) error {
	var stmts []string
	if p.schema != "" {
		stmts = append(stmts, `CREATE SCHEMA IF NOT EXISTS `+pq.QuoteIdentifier(p.schema))
	}
	stmts = append(stmts,
		`CREATE TABLE IF NOT EXISTS `+p.admins+` (
			id            BIGSERIAL PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL DEFAULT 'admin',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS `+p.articles+` (
			id         BIGSERIAL PRIMARY KEY,
			title      TEXT NOT NULL,
			author     TEXT NOT NULL,
			abstract   TEXT NOT NULL,
			body       TEXT NOT NULL,
			pdf_ref    UUID NOT NULL,
			status     TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS articles_status_created_idx ON `+p.articles+` (status, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS articles_pdf_ref_idx ON `+p.articles+` (pdf_ref)`,
		`CREATE TABLE IF NOT EXISTS `+p.files+` (
			id           UUID PRIMARY KEY,
			filename     TEXT NOT NULL,
			length       BIGINT NOT NULL DEFAULT 0,
			content_type TEXT NOT NULL,
			chunk_size   INTEGER NOT NULL,
			uploaded_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS `+p.chunks+` (
			file_id UUID NOT NULL REFERENCES `+p.files+` (id) ON DELETE CASCADE,
			n       INTEGER NOT NULL,
			data    BYTEA NOT NULL,
			PRIMARY KEY (file_id, n)
		)`,
	)
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("db: migrate: %w", err)
		}
	}
	return nil
}

const articleColumns = `id, title, author, abstract, body, pdf_ref, status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (models.Article, error) {
	var (
		a  models.Article
		id int64
	)
	if err := row.Scan(&id, &a.Title, &a.Author, &a.Abstract, &a.Body, &a.PDFRef, &a.Status, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Article{}, ErrNotFound
		}
		return models.Article{}, err
	}
	a.ID = strconv.FormatInt(id, 10)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

// parseID: некорректный id ведёт себя как отсутствующий.
func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func (p *Postgres) InsertArticle(ctx context.Context, a models.Article) (string, error) {
	var id int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO `+p.articles+` (title, author, abstract, body, pdf_ref, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		a.Title, a.Author, a.Abstract, a.Body, a.PDFRef, string(a.Status), a.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("db: insert article: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (p *Postgres) GetArticle(ctx context.Context, id string) (models.Article, error) {
	n, err := parseID(id)
	if err != nil {
		return models.Article{}, err
	}
	return scanArticle(p.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM `+p.articles+` WHERE id = $1`, n))
}

func (p *Postgres) FindArticleByPDF(ctx context.Context, ref string) (models.Article, error) {
	if _, err := parseRef(ref); err != nil {
		return models.Article{}, err
	}
	return scanArticle(p.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM `+p.articles+` WHERE pdf_ref = $1 LIMIT 1`, ref))
}

func (p *Postgres) ListArticles(ctx context.Context, f models.ArticleFilter) ([]models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM ` + p.articles
	var args []any
	if f.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db: list articles: %w", err)
	}
	defer rows.Close()

	list := make([]models.Article, 0, 64)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("db: scan article: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: list articles: %w", err)
	}
	return list, nil
}

func (p *Postgres) SetArticleStatus(ctx context.Context, id string, s models.Status) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE `+p.articles+` SET status = $1 WHERE id = $2`, string(s), n)
	if err != nil {
		return fmt.Errorf("db: set status: %w", err)
	}
	return requireAffected(res)
}

func (p *Postgres) UpdateArticle(ctx context.Context, id string, f models.ArticleFields, pdfRef string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}

	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	if f.Title != nil {
		add("title", *f.Title)
	}
	if f.Author != nil {
		add("author", *f.Author)
	}
	if f.Abstract != nil {
		add("abstract", *f.Abstract)
	}
	if f.Body != nil {
		add("body", *f.Body)
	}
	if pdfRef != "" {
		add("pdf_ref", pdfRef)
	}
	if len(sets) == 0 {
		// менять нечего, но NotFound всё равно должен сработать
		_, err := p.GetArticle(ctx, id)
		return err
	}

	args = append(args, n)
	res, err := p.db.ExecContext(ctx,
		`UPDATE `+p.articles+` SET `+strings.Join(sets, ", ")+` WHERE id = $`+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return fmt.Errorf("db: update article: %w", err)
	}
	return requireAffected(res)
}

func (p *Postgres) DeleteArticle(ctx context.Context, id string) (models.Article, error) {
	n, err := parseID(id)
	if err != nil {
		return models.Article{}, err
	}
	a, err := scanArticle(p.db.QueryRowContext(ctx,
		`DELETE FROM `+p.articles+` WHERE id = $1 RETURNING `+articleColumns, n))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return models.Article{}, fmt.Errorf("db: delete article: %w", err)
	}
	return a, err
}

func (p *Postgres) FindAdminByEmail(ctx context.Context, email string) (models.Administrator, error) {
	return p.findAdmin(ctx, `email = $1`, email)
}

func (p *Postgres) FindAdminByID(ctx context.Context, id string) (models.Administrator, error) {
	n, err := parseID(id)
	if err != nil {
		return models.Administrator{}, err
	}
	return p.findAdmin(ctx, `id = $1`, n)
}

func (p *Postgres) findAdmin(ctx context.Context, where string, arg any) (models.Administrator, error) {
	var (
		a  models.Administrator
		id int64
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role FROM `+p.admins+` WHERE `+where, arg).
		Scan(&id, &a.Email, &a.PasswordHash, &a.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Administrator{}, ErrNotFound
	} else if err != nil {
		return models.Administrator{}, fmt.Errorf("db: find admin: %w", err)
	}
	a.ID = strconv.FormatInt(id, 10)
	return a, nil
}

func (p *Postgres) UpsertAdmin(ctx context.Context, email, passwordHash string) (string, error) {
	var id int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO `+p.admins+` (email, password_hash, role) VALUES ($1, $2, 'admin')
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash, role = 'admin'
		RETURNING id`,
		email, passwordHash).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("db: upsert admin: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close(context.Context) error { return p.db.Close() }

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
