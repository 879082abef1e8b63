package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aurafarma/backend-go/internal/config"
	"github.com/aurafarma/backend-go/internal/domain"
)

const (
	sessionKeyPrefix  = "session:snapshot"
	latestSessionKey  = "session:latest"
	scanBatchSize     = 100
	defaultSessionTTL = time.Hour
)

// SessionCache keeps hot analysis snapshots close to the API so the
// review loop does not hit Postgres on every focus change.
type SessionCache interface {
	Get(ctx context.Context, runID string) (*domain.Snapshot, bool, error)
	Set(ctx context.Context, snapshot *domain.Snapshot) error
	GetLatestID(ctx context.Context) (string, bool, error)
	Invalidate(ctx context.Context, runID string) error
	InvalidateAll(ctx context.Context) error
}

type redisSessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopSessionCache struct{}

func NewSessionCache(cfg config.CacheConfig) (SessionCache, error) {
	if !cfg.Enabled {
		return &noopSessionCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisSessionCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopSessionCache() SessionCache {
	return &noopSessionCache{}
}

func sessionKey(runID string) string {
	return fmt.Sprintf("%s:%s", sessionKeyPrefix, runID)
}

func (c *redisSessionCache) Get(ctx context.Context, runID string) (*domain.Snapshot, bool, error) {
	payload, err := c.client.Get(ctx, sessionKey(runID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, false, fmt.Errorf("decode session cache: %w", err)
	}
	return &snapshot, true, nil
}

func (c *redisSessionCache) Set(ctx context.Context, snapshot *domain.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode session cache: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, sessionKey(snapshot.Result.ID), payload, c.ttl)
	pipe.Set(ctx, latestSessionKey, snapshot.Result.ID, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisSessionCache) GetLatestID(ctx context.Context) (string, bool, error) {
	id, err := c.client.Get(ctx, latestSessionKey).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get failed: %w", err)
	}
	return id, true, nil
}

func (c *redisSessionCache) Invalidate(ctx context.Context, runID string) error {
	if err := c.client.Del(ctx, sessionKey(runID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *redisSessionCache) InvalidateAll(ctx context.Context) error {
	if err := deleteKeysWithPrefix(ctx, c.client, sessionKeyPrefix, scanBatchSize); err != nil {
		return err
	}
	if err := c.client.Del(ctx, latestSessionKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (n *noopSessionCache) Get(ctx context.Context, runID string) (*domain.Snapshot, bool, error) {
	return nil, false, nil
}

func (n *noopSessionCache) Set(ctx context.Context, snapshot *domain.Snapshot) error {
	return nil
}

func (n *noopSessionCache) GetLatestID(ctx context.Context) (string, bool, error) {
	return "", false, nil
}

func (n *noopSessionCache) Invalidate(ctx context.Context, runID string) error {
	return nil
}

func (n *noopSessionCache) InvalidateAll(ctx context.Context) error {
	return nil
}
