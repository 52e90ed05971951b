package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Config — всё, что процесс читает из окружения. Собирается один раз при
// старте и дальше передаётся явно.
type Config struct {
	Host string
	Port string

	Database Database

	SessionSecret string
	CookieSecure  bool

	RedisAddr     string
	RedisPassword string

	MaxUploadBytes     int64
	LoginRatePerMinute int
}

// Database — подключение к хранилищу документов и файлов.
type Database struct {
	URL    string // DATABASE_URL: mongodb://, mongodb+srv://, postgres://, memory://
	Name   string // DATABASE_NAME
	Bucket string // PDF_BUCKET
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Load читает окружение процесса.
func Load() (Config, error) {
	return FromEnv(os.Getenv)
}

// LoadDatabase — только настройки хранилища (для cmd/seedadmin).
func LoadDatabase() (Database, error) {
	r := reader{getenv: os.Getenv}
	d := r.database()
	return d, r.err()
}

// FromEnv собирает конфиг; обязательные переменные без значения или с
// мусором возвращаются одной ошибкой со всем списком.
func FromEnv(getenv func(string) string) (Config, error) {
	r := reader{getenv: getenv}
	cfg := Config{
		Host:          r.optional("HOST", "127.0.0.1"),
		Port:          r.optional("PORT", "8080"),
		Database:      r.database(),
		SessionSecret: r.required("SESSION_SECRET"),
		CookieSecure:  r.requiredBool("SESSION_COOKIE_SECURE"),
		RedisAddr:     r.optional("REDIS_ADDR", ""),
		RedisPassword: r.optional("REDIS_PASSWORD", ""),

		MaxUploadBytes:     int64(r.positiveInt("MAX_UPLOAD_MB", 25)) << 20,
		LoginRatePerMinute: r.positiveInt("LOGIN_RATE_PER_MINUTE", 10),
	}
	return cfg, r.err()
}

type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) database() Database {
	return Database{
		URL:    r.required("DATABASE_URL"),
		Name:   r.required("DATABASE_NAME"),
		Bucket: r.required("PDF_BUCKET"),
	}
}

func (r *reader) required(key string) string {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		r.errs = append(r.errs, fmt.Errorf("%s is not set", key))
	}
	return v
}

func (r *reader) optional(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) requiredBool(key string) bool {
	v := r.required(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: want true or false, got %q", key, v))
	}
	return b
}

func (r *reader) positiveInt(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		r.errs = append(r.errs, fmt.Errorf("%s: want a positive integer, got %q", key, v))
		return def
	}
	return n
}

func (r *reader) err() error {
	if len(r.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(r.errs...))
}
