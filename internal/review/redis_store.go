// Package review parks migration impact reports that need a human decision.
// A report is stored under a short-lived token; the caller hands the token
// to the reviewer, who resolves or abandons it before the TTL runs out.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkwise/api/internal/migration"
	"checkwise/api/internal/util"
	"github.com/redis/go-redis/v9"
)

// parkedReport is the JSON envelope stored per review token.
type parkedReport struct {
	ChecklistID string                 `json:"checklist_id"`
	Report      migration.ImpactReport `json:"report"`
	CreatedAt   time.Time              `json:"created_at"`
}

// RedisStore implements review-token storage using Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-backed review store
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisStore{
		client: client,
		prefix: "review:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(token string) string {
	return s.prefix + token
}

// Park stores the report and returns the token a reviewer resolves it with.
func (s *RedisStore) Park(ctx context.Context, checklistID string, report migration.ImpactReport) (string, error) {
	data := parkedReport{
		ChecklistID: checklistID,
		Report:      report,
		CreatedAt:   time.Now(),
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal impact report: %w", err)
	}

	token := util.NewID("rev")
	if err := s.client.Set(ctx, s.key(token), jsonData, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("park impact report: %w", err)
	}
	return token, nil
}

// Lookup retrieves a parked report by token.
func (s *RedisStore) Lookup(ctx context.Context, token string) (migration.ImpactReport, error) {
	jsonData, err := s.client.Get(ctx, s.key(token)).Result()
	if err == redis.Nil {
		return migration.ImpactReport{}, fmt.Errorf("review token not found or expired")
	}
	if err != nil {
		return migration.ImpactReport{}, fmt.Errorf("lookup review token: %w", err)
	}

	var data parkedReport
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return migration.ImpactReport{}, fmt.Errorf("unmarshal impact report: %w", err)
	}
	return data.Report, nil
}

// Resolve deletes a parked report once a reviewer has acted on it.
func (s *RedisStore) Resolve(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("resolve review token: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
