package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevoker хранит id отозванных сессий до их естественного exp.
type RedisRevoker struct {
	client *redis.Client
	prefix string
}

var _ Revoker = (*RedisRevoker)(nil)

// NewRedisRevoker подключается к Redis и проверяет соединение.
func NewRedisRevoker(ctx context.Context, addr, password string) (*RedisRevoker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisRevoker{client: client, prefix: "revoked-session:"}, nil
}

func (r *RedisRevoker) key(id string) string {
	return r.prefix + id
}

func (r *RedisRevoker) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.key(id), 1, ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisRevoker) Close() error {
	return r.client.Close()
}
