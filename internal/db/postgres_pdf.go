package db

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"ArticleManager/internal/models"

	"github.com/google/uuid"
)

func parseRef(ref string) (uuid.UUID, error) {
	id, err := uuid.Parse(ref)
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return id, nil
}

// PutPDF пишет файл кусками в одной транзакции: пока она не закоммичена,
// читатели файла не видят.
func (p *Postgres) PutPDF(ctx context.Context, filename string, r io.Reader) (models.PDFFile, error) {
	meta := models.PDFFile{
		Ref:         uuid.NewString(),
		Filename:    filename,
		ContentType: "application/pdf",
		UploadedAt:  time.Now().UTC(),
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.PDFFile{}, fmt.Errorf("db: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO `+p.files+` (id, filename, length, content_type, chunk_size, uploaded_at)
		VALUES ($1, $2, 0, $3, $4, $5)`,
		meta.Ref, meta.Filename, meta.ContentType, ChunkSize, meta.UploadedAt,
	); err != nil {
		return models.PDFFile{}, fmt.Errorf("db: insert pdf: %w", err)
	}

	buf := make([]byte, ChunkSize)
	for n := 0; ; n++ {
		read, rerr := io.ReadFull(r, buf)
		if read > 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO `+p.chunks+` (file_id, n, data) VALUES ($1, $2, $3)`,
				meta.Ref, n, buf[:read],
			); err != nil {
				return models.PDFFile{}, fmt.Errorf("db: insert chunk %d: %w", n, err)
			}
			meta.Length += int64(read)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return models.PDFFile{}, fmt.Errorf("db: read pdf: %w", rerr)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE `+p.files+` SET length = $1 WHERE id = $2`, meta.Length, meta.Ref,
	); err != nil {
		return models.PDFFile{}, fmt.Errorf("db: finalize pdf: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.PDFFile{}, fmt.Errorf("db: commit pdf: %w", err)
	}
	return meta, nil
}

// OpenPDF возвращает поток, который подтягивает куски по одному.
func (p *Postgres) OpenPDF(ctx context.Context, ref string) (io.ReadCloser, models.PDFFile, error) {
	if _, err := parseRef(ref); err != nil {
		return nil, models.PDFFile{}, err
	}

	meta := models.PDFFile{Ref: ref}
	var chunkSize int64
	err := p.db.QueryRowContext(ctx,
		`SELECT filename, length, content_type, chunk_size, uploaded_at FROM `+p.files+` WHERE id = $1`, ref,
	).Scan(&meta.Filename, &meta.Length, &meta.ContentType, &chunkSize, &meta.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.PDFFile{}, ErrNotFound
	} else if err != nil {
		return nil, models.PDFFile{}, fmt.Errorf("db: open pdf: %w", err)
	}

	var chunks int
	if chunkSize > 0 {
		chunks = int((meta.Length + chunkSize - 1) / chunkSize)
	}
	return &chunkReader{ctx: ctx, p: p, ref: ref, chunks: chunks}, meta, nil
}

func (p *Postgres) DeletePDF(ctx context.Context, ref string) error {
	if _, err := parseRef(ref); err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM `+p.files+` WHERE id = $1`, ref)
	if err != nil {
		return fmt.Errorf("db: delete pdf: %w", err)
	}
	return requireAffected(res)
}

type chunkReader struct {
	ctx    context.Context
	p      *Postgres
	ref    string
	next   int
	chunks int
	buf    bytes.Reader
}

func (c *chunkReader) Read(b []byte) (int, error) {
	for c.buf.Len() == 0 {
		if c.next >= c.chunks {
			return 0, io.EOF
		}
		var data []byte
		err := c.p.db.QueryRowContext(c.ctx,
			`SELECT data FROM `+c.p.chunks+` WHERE file_id = $1 AND n = $2`, c.ref, c.next,
		).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			// файл удалили, пока его читали
			return 0, io.ErrUnexpectedEOF
		} else if err != nil {
			return 0, fmt.Errorf("db: read chunk %d: %w", c.next, err)
		}
		c.next++
		c.buf.Reset(data)
	}
	return c.buf.Read(b)
}

func (c *chunkReader) Close() error { return nil }
