package db

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"ArticleManager/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return NewPostgres(sqlDB, "", "pdfs", nil), mock
}

func articleRow(id int64, status string, created time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "author", "abstract", "body", "pdf_ref", "status", "created_at"}).
		AddRow(id, "A", "B", "C", "D", "6f1c1f1e-3a4b-4c5d-8e9f-0a1b2c3d4e5f", status, created)
}

func TestPostgresMigrateWithSchema(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer sqlDB.Close()
	p := NewPostgres(sqlDB, "library", "pdfs", nil)

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "library"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "library"\."administrators"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "library"\."articles"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS articles_status_created_idx`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS articles_pdf_ref_idx`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "library"\."pdfs_files"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "library"\."pdfs_chunks"`).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := p.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresInsertArticle(t *testing.T) {
	p, mock := newMockPostgres(t)
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO "articles" \(title, author, abstract, body, pdf_ref, status, created_at\)`).
		WithArgs("A", "B", "C", "D", "ref-1", "pending", created).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := p.InsertArticle(context.Background(), models.Article{
		Title: "A", Author: "B", Abstract: "C", Body: "D",
		PDFRef: "ref-1", Status: models.StatusPending, CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("InsertArticle: %v", err)
	}
	if id != "42" {
		t.Fatalf("unexpected id %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSetStatusNotFound(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectExec(`UPDATE "articles" SET status = \$1 WHERE id = \$2`).
		WithArgs("approved", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := p.SetArticleStatus(context.Background(), "7", models.StatusApproved); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// кривой id до базы не доходит
	if err := p.SetArticleStatus(context.Background(), "not-a-number", models.StatusApproved); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for bad id, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresUpdateArticleBuildsSet(t *testing.T) {
	p, mock := newMockPostgres(t)
	title := "New"

	mock.ExpectExec(`UPDATE "articles" SET title = \$1, pdf_ref = \$2 WHERE id = \$3`).
		WithArgs("New", "ref-2", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := p.UpdateArticle(context.Background(), "5", models.ArticleFields{Title: &title}, "ref-2"); err != nil {
		t.Fatalf("UpdateArticle: %v", err)
	}

	// пустая правка всё равно проверяет, что статья есть
	mock.ExpectQuery(`SELECT .* FROM "articles" WHERE id = \$1`).
		WithArgs(int64(6)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author", "abstract", "body", "pdf_ref", "status", "created_at"}))
	if err := p.UpdateArticle(context.Background(), "6", models.ArticleFields{}, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresDeleteReturnsArticle(t *testing.T) {
	p, mock := newMockPostgres(t)
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`DELETE FROM "articles" WHERE id = \$1 RETURNING`).
		WithArgs(int64(3)).
		WillReturnRows(articleRow(3, "approved", created))

	a, err := p.DeleteArticle(context.Background(), "3")
	if err != nil {
		t.Fatalf("DeleteArticle: %v", err)
	}
	if a.ID != "3" || a.Status != models.StatusApproved || a.PDFRef == "" || !a.CreatedAt.Equal(created) {
		t.Fatalf("unexpected article: %+v", a)
	}

	mock.ExpectQuery(`DELETE FROM "articles" WHERE id = \$1 RETURNING`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author", "abstract", "body", "pdf_ref", "status", "created_at"}))
	if _, err := p.DeleteArticle(context.Background(), "4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresListApprovedOnly(t *testing.T) {
	p, mock := newMockPostgres(t)
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM "articles" WHERE status = \$1 ORDER BY created_at DESC, id DESC`).
		WithArgs("approved").
		WillReturnRows(articleRow(9, "approved", created))

	list, err := p.ListArticles(context.Background(), models.ArticleFilter{Status: models.StatusApproved})
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(list) != 1 || list[0].ID != "9" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresPutPDFWritesChunksInTx(t *testing.T) {
	p, mock := newMockPostgres(t)
	data := bytes.Repeat([]byte("x"), ChunkSize+10)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "pdfs_files"`).
		WithArgs(sqlmock.AnyArg(), "paper.pdf", "application/pdf", ChunkSize, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "pdfs_chunks"`).
		WithArgs(sqlmock.AnyArg(), 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "pdfs_chunks"`).
		WithArgs(sqlmock.AnyArg(), 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "pdfs_files" SET length = \$1 WHERE id = \$2`).
		WithArgs(int64(len(data)), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	meta, err := p.PutPDF(context.Background(), "paper.pdf", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("PutPDF: %v", err)
	}
	if meta.Length != int64(len(data)) || meta.Ref == "" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresPutPDFRollsBackOnChunkError(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "pdfs_files"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "pdfs_chunks"`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if _, err := p.PutPDF(context.Background(), "paper.pdf", bytes.NewReader([]byte("%PDF-1.4"))); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresOpenPDFStreamsChunks(t *testing.T) {
	p, mock := newMockPostgres(t)
	ref := "6f1c1f1e-3a4b-4c5d-8e9f-0a1b2c3d4e5f"
	uploaded := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT filename, length, content_type, chunk_size, uploaded_at FROM "pdfs_files" WHERE id = \$1`).
		WithArgs(ref).
		WillReturnRows(sqlmock.NewRows([]string{"filename", "length", "content_type", "chunk_size", "uploaded_at"}).
			AddRow("paper.pdf", int64(8), "application/pdf", int64(ChunkSize), uploaded))
	mock.ExpectQuery(`SELECT data FROM "pdfs_chunks" WHERE file_id = \$1 AND n = \$2`).
		WithArgs(ref, 0).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte("%PDF-1.4")))

	rc, meta, err := p.OpenPDF(context.Background(), ref)
	if err != nil {
		t.Fatalf("OpenPDF: %v", err)
	}
	defer rc.Close()
	if meta.Filename != "paper.pdf" || meta.Length != 8 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "%PDF-1.4" {
		t.Fatalf("unexpected content %q", got)
	}

	if _, _, err := p.OpenPDF(context.Background(), "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for bad ref, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresUpsertAdmin(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectQuery(`INSERT INTO "administrators" .* ON CONFLICT \(email\) DO UPDATE`).
		WithArgs("admin@example.com", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(`SELECT id, email, password_hash, role FROM "administrators" WHERE email = \$1`).
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role"}).
			AddRow(int64(1), "admin@example.com", "hash", "admin"))

	id, err := p.UpsertAdmin(context.Background(), "admin@example.com", "hash")
	if err != nil {
		t.Fatalf("UpsertAdmin: %v", err)
	}
	a, err := p.FindAdminByEmail(context.Background(), "admin@example.com")
	if err != nil {
		t.Fatalf("FindAdminByEmail: %v", err)
	}
	if a.ID != id || a.Role != models.RoleAdmin {
		t.Fatalf("unexpected admin: %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresFindAdminByID(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT id, email, password_hash, role FROM "administrators" WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role"}).
			AddRow(int64(3), "admin@example.com", "hash", "admin"))
	mock.ExpectQuery(`SELECT id, email, password_hash, role FROM "administrators" WHERE id = \$1`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role"}))

	a, err := p.FindAdminByID(context.Background(), "3")
	if err != nil {
		t.Fatalf("FindAdminByID: %v", err)
	}
	if a.ID != "3" || a.Email != "admin@example.com" {
		t.Fatalf("unexpected admin: %+v", a)
	}
	if _, err := p.FindAdminByID(context.Background(), "4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for removed admin, got %v", err)
	}
	if _, err := p.FindAdminByID(context.Background(), "not-a-number"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for bad id, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
