package models

import "time"

// Status — стадия рукописи. Из pending можно перейти только в approved.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved
}

// Article — присланная рукопись.
// PDFRef — непрозрачный идентификатор PDF в хранилище файлов.
type Article struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Abstract  string    `json:"abstract"`
	Body      string    `json:"body"`
	PDFRef    string    `json:"pdf_file_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (a Article) Approved() bool { return a.Status == StatusApproved }

// ArticleFields — редактируемые текстовые поля статьи.
// nil означает «не менять».
type ArticleFields struct {
	Title    *string
	Author   *string
	Abstract *string
	Body     *string
}

// ArticleFilter — фильтр для списка в админке.
type ArticleFilter struct {
	Status Status // пусто — все статусы
}

// PublicArticle — то, что отдаём наружу в /articles (без body).
type PublicArticle struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Abstract  string    `json:"abstract"`
	PDFRef    string    `json:"pdf_file_id"`
	PDFURL    string    `json:"pdf_url"`
	CreatedAt time.Time `json:"created_at"`
}

func ArticleToPublic(a Article) PublicArticle {
	url := "#"
	if a.PDFRef != "" {
		url = "/pdf/" + a.PDFRef
	}
	return PublicArticle{
		ID:        a.ID,
		Title:     a.Title,
		Author:    a.Author,
		Abstract:  a.Abstract,
		PDFRef:    a.PDFRef,
		PDFURL:    url,
		CreatedAt: a.CreatedAt,
	}
}

// PDFFile — метаданные сохранённого PDF.
type PDFFile struct {
	Ref         string
	Filename    string
	Length      int64
	ContentType string
	UploadedAt  time.Time
}
