package sessions

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength — для новых паролей в cmd/seedadmin.
const MinPasswordLength = 8

// HashPassword хэширует пароль bcrypt'ом.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", errors.New("password too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword сравнивает пароль с сохранённым хэшем.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
