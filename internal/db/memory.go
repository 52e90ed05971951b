package db

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"ArticleManager/internal/models"

	"github.com/google/uuid"
)

// Memory — хранилище в памяти процесса: для тестов и локального запуска
// (DATABASE_URL=memory://).
type Memory struct {
	mu       sync.RWMutex
	seq      int64
	articles map[string]memArticle
	admins   map[string]models.Administrator // по email
	files    map[string]memFile
}

type memArticle struct {
	a   models.Article
	seq int64
}

type memFile struct {
	meta models.PDFFile
	data []byte
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		articles: make(map[string]memArticle),
		admins:   make(map[string]models.Administrator),
		files:    make(map[string]memFile),
	}
}

func (m *Memory) InsertArticle(_ context.Context, a models.Article) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	a.ID = strconv.FormatInt(m.seq, 10)
	m.articles[a.ID] = memArticle{a: a, seq: m.seq}
	return a.ID, nil
}

func (m *Memory) GetArticle(_ context.Context, id string) (models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.articles[id]
	if !ok {
		return models.Article{}, ErrNotFound
	}
	return rec.a, nil
}

func (m *Memory) FindArticleByPDF(_ context.Context, ref string) (models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.articles {
		if rec.a.PDFRef == ref {
			return rec.a, nil
		}
	}
	return models.Article{}, ErrNotFound
}

func (m *Memory) ListArticles(_ context.Context, f models.ArticleFilter) ([]models.Article, error) {
	m.mu.RLock()
	recs := make([]memArticle, 0, len(m.articles))
	for _, rec := range m.articles {
		if f.Status != "" && rec.a.Status != f.Status {
			continue
		}
		recs = append(recs, rec)
	}
	m.mu.RUnlock()

	// новые сверху; при равном времени — по порядку вставки
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].a.CreatedAt.Equal(recs[j].a.CreatedAt) {
			return recs[i].a.CreatedAt.After(recs[j].a.CreatedAt)
		}
		return recs[i].seq > recs[j].seq
	})
	out := make([]models.Article, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.a)
	}
	return out, nil
}

func (m *Memory) SetArticleStatus(_ context.Context, id string, s models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.articles[id]
	if !ok {
		return ErrNotFound
	}
	rec.a.Status = s
	m.articles[id] = rec
	return nil
}

func (m *Memory) UpdateArticle(_ context.Context, id string, f models.ArticleFields, pdfRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.articles[id]
	if !ok {
		return ErrNotFound
	}
	if f.Title != nil {
		rec.a.Title = *f.Title
	}
	if f.Author != nil {
		rec.a.Author = *f.Author
	}
	if f.Abstract != nil {
		rec.a.Abstract = *f.Abstract
	}
	if f.Body != nil {
		rec.a.Body = *f.Body
	}
	if pdfRef != "" {
		rec.a.PDFRef = pdfRef
	}
	m.articles[id] = rec
	return nil
}

func (m *Memory) DeleteArticle(_ context.Context, id string) (models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.articles[id]
	if !ok {
		return models.Article{}, ErrNotFound
	}
	delete(m.articles, id)
	return rec.a, nil
}

func (m *Memory) FindAdminByEmail(_ context.Context, email string) (models.Administrator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.admins[email]
	if !ok {
		return models.Administrator{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) FindAdminByID(_ context.Context, id string) (models.Administrator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.admins {
		if a.ID == id {
			return a, nil
		}
	}
	return models.Administrator{}, ErrNotFound
}

// RemoveAdmin убирает администратора; в рабочих бэкендах это делается
// прямо в базе.
func (m *Memory) RemoveAdmin(email string) {
	m.mu.Lock()
	delete(m.admins, email)
	m.mu.Unlock()
}

func (m *Memory) UpsertAdmin(_ context.Context, email, passwordHash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[email]
	if !ok {
		m.seq++
		a = models.Administrator{ID: "admin-" + strconv.FormatInt(m.seq, 10), Email: email}
	}
	a.PasswordHash = passwordHash
	a.Role = models.RoleAdmin
	m.admins[email] = a
	return a.ID, nil
}

func (m *Memory) PutPDF(ctx context.Context, filename string, r io.Reader) (models.PDFFile, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, ctxReader{ctx: ctx, r: r}); err != nil {
		return models.PDFFile{}, err
	}
	meta := models.PDFFile{
		Ref:         uuid.NewString(),
		Filename:    filename,
		Length:      int64(buf.Len()),
		ContentType: "application/pdf",
		UploadedAt:  time.Now().UTC(),
	}
	m.mu.Lock()
	m.files[meta.Ref] = memFile{meta: meta, data: buf.Bytes()}
	m.mu.Unlock()
	return meta, nil
}

func (m *Memory) OpenPDF(_ context.Context, ref string) (io.ReadCloser, models.PDFFile, error) {
	m.mu.RLock()
	f, ok := m.files[ref]
	m.mu.RUnlock()
	if !ok {
		return nil, models.PDFFile{}, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(f.data)), f.meta, nil
}

func (m *Memory) DeletePDF(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[ref]; !ok {
		return ErrNotFound
	}
	delete(m.files, ref)
	return nil
}

// PDFCount — сколько файлов лежит в хранилище. Для проверок на «сирот».
func (m *Memory) PDFCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

func (m *Memory) Ping(context.Context) error  { return nil }
func (m *Memory) Close(context.Context) error { return nil }
