package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/redis/go-redis/v9"
)

type snapshot struct {
	Version   int               `json:"version"`
	Lines     []domain.CartLine `json:"lines"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{
		client: client,
		ttl:    90 * 24 * time.Hour,
	}
}

type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func (r *RedisRepository) Load(ctx context.Context, account string) ([]domain.CartLine, error) {
	data, err := r.client.Get(ctx, snapshotKey(account)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: unmarshal snapshot failed: %v", ErrUnsupportedSnapshot, err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSnapshot, s.Version)
	}

	return s.Lines, nil
}

// Save overwrites the snapshot and refreshes its TTL.
func (r *RedisRepository) Save(ctx context.Context, account string, lines []domain.CartLine) error {
	data, err := json.Marshal(snapshot{
		Version:   SnapshotVersion,
		Lines:     lines,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot failed: %w", err)
	}

	if err := r.client.Set(ctx, snapshotKey(account), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, account string) error {
	if err := r.client.Del(ctx, snapshotKey(account)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func snapshotKey(account string) string {
	return fmt.Sprintf("cart:%s", strings.ToLower(account))
}
