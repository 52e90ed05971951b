package articles

import (
	"errors"
	"fmt"

	"ArticleManager/internal/db"
	"ArticleManager/internal/sessions"
)

var (
	ErrNotFound     = db.ErrNotFound
	ErrUnauthorized = sessions.ErrUnauthorized
)

// ValidationKind — вид ошибки валидации.
type ValidationKind string

const (
	MissingField ValidationKind = "missing_field"
	InvalidFile  ValidationKind = "invalid_file"
)

// ValidationError — ошибка входных данных; Field пуст для ошибок файла.
type ValidationError struct {
	Kind    ValidationKind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("articles: %s: %s", e.Field, e.Message)
	}
	return "articles: " + e.Message
}

func missingField(name string) error {
	return &ValidationError{Kind: MissingField, Field: name, Message: fmt.Sprintf("Field %q is required.", name)}
}

func invalidFile(msg string) error {
	return &ValidationError{Kind: InvalidFile, Field: "pdf_file", Message: msg}
}

// AsValidation оборачивает errors.As.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
