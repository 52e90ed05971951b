package articles

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"ArticleManager/internal/models"
)

// Metadata — текстовая часть новой рукописи.
type Metadata struct {
	Title    string
	Author   string
	Abstract string
	Body     string
}

// textField — одно обязательное текстовое поле. Порядок в textFields
// определяет, какое поле будет названо в ошибке первым.
type textField struct {
	name   string
	create func(*Metadata) *string
	update func(*models.ArticleFields) **string
}

var textFields = []textField{
	{"title", func(m *Metadata) *string { return &m.Title }, func(f *models.ArticleFields) **string { return &f.Title }},
	{"author", func(m *Metadata) *string { return &m.Author }, func(f *models.ArticleFields) **string { return &f.Author }},
	{"abstract", func(m *Metadata) *string { return &m.Abstract }, func(f *models.ArticleFields) **string { return &f.Abstract }},
	{"body", func(m *Metadata) *string { return &m.Body }, func(f *models.ArticleFields) **string { return &f.Body }},
}

// requireText обрезает пробелы и проверяет, что что-то осталось.
func requireText(name string, v *string) error {
	*v = strings.TrimSpace(*v)
	if *v == "" {
		return missingField(name)
	}
	return nil
}

// validateMetadata — для новой статьи все поля обязательны.
func validateMetadata(m *Metadata) error {
	for _, f := range textFields {
		if err := requireText(f.name, f.create(m)); err != nil {
			return err
		}
	}
	return nil
}

// validateUpdate — при правке проверяем только переданные поля,
// по тем же правилам.
func validateUpdate(u *models.ArticleFields) error {
	for _, f := range textFields {
		p := f.update(u)
		if *p == nil {
			continue
		}
		v := **p
		if err := requireText(f.name, &v); err != nil {
			return err
		}
		*p = &v
	}
	return nil
}

const (
	pdfMagic = "%PDF-"
	// сигнатура может стоять не в самом начале, Acrobat ищет её в первом килобайте
	pdfSniffLen = 1024
)

// pdfPreamble: перед сигнатурой допустимы пробелы или бинарный мусор
// (заголовки MacBinary и т.п.), но не обычный текст, иначе проходит
// любой текст или HTML, где просто упомянут %PDF-.
func pdfPreamble(p []byte) bool {
	if len(bytes.TrimSpace(p)) == 0 {
		return true
	}
	for _, c := range p {
		if (c < 0x20 && c != '\t' && c != '\n' && c != '\r') || c == 0x7f {
			return true
		}
	}
	return false
}

// sniffPDF проверяет содержимое по сигнатуре и возвращает reader, из
// которого ничего не потеряно.
func sniffPDF(r io.Reader) (io.Reader, error) {
	if r == nil {
		return nil, invalidFile("A PDF file is required.")
	}
	br := bufio.NewReaderSize(r, pdfSniffLen)
	head, err := br.Peek(pdfSniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("articles: read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, invalidFile("Uploaded file is empty.")
	}
	i := bytes.Index(head, []byte(pdfMagic))
	if i < 0 || !pdfPreamble(head[:i]) {
		return nil, invalidFile("Only PDF files are allowed.")
	}
	return br, nil
}
