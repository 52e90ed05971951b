package models

import "strings"

const RoleAdmin = "admin"

// Administrator — запись администратора. Создаётся только через cmd/seedadmin.
// Пароль хранится в виде bcrypt-хэша.
type Administrator struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
}

// NormalizeEmail приводит логин к виду, в котором он хранится в БД.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
