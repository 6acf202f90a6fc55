// Package cache keeps principal lookups out of the database on every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"payment-records/internal/config"
	"payment-records/internal/model"
	"payment-records/internal/repository"
)

// cachedPrincipal mirrors model.Principal without the password hash.
type cachedPrincipal struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// PrincipalCache is a read-through cache in front of a PrincipalRepository.
// Only GetByID is cached; every other call goes straight to the store.
// Entries may lag the users table by up to the TTL, so callers that decide
// on a principal's role must read the repository directly.
type PrincipalCache struct {
	repository.PrincipalRepository
	rdb *redis.Client
	ttl time.Duration
}

// NewPrincipalCache wraps repo. A nil client disables caching.
func NewPrincipalCache(repo repository.PrincipalRepository, rdb *redis.Client, ttl time.Duration) *PrincipalCache {
	return &PrincipalCache{
		PrincipalRepository: repo,
		rdb:                 rdb,
		ttl:                 ttl,
	}
}

// Connect returns a client for cfg, or nil when no address is configured or
// the server does not answer. The service runs uncached in both cases.
func Connect(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		slog.Warn("REDIS_ADDR is not set, principal caching is disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("could not connect to Redis, principal caching is disabled", "error", err)
		rdb.Close()
		return nil
	}

	slog.Info("connected to Redis", "addr", cfg.Addr)
	return rdb
}

func principalKey(id int64) string {
	return fmt.Sprintf("principal:%d", id)
}

func (c *PrincipalCache) GetByID(ctx context.Context, id int64) (*model.Principal, error) {
	if c.rdb == nil {
		return c.PrincipalRepository.GetByID(ctx, id)
	}

	key := principalKey(id)
	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cp cachedPrincipal
		if jsonErr := json.Unmarshal(data, &cp); jsonErr == nil {
			return &model.Principal{ID: cp.ID, Name: cp.Name, Email: cp.Email, Role: cp.Role}, nil
		}
		slog.Warn("failed to decode cached principal", "principal_id", id)
	case !errors.Is(err, redis.Nil):
		slog.Error("redis GET failed", "error", err, "principal_id", id)
	}

	p, err := c.PrincipalRepository.GetByID(ctx, id)
	if err != nil || p == nil {
		return p, err
	}

	payload, err := json.Marshal(cachedPrincipal{ID: p.ID, Name: p.Name, Email: p.Email, Role: p.Role})
	if err != nil {
		slog.Error("failed to encode principal for caching", "error", err, "principal_id", id)
		return p, nil
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		slog.Error("redis SET failed", "error", err, "principal_id", id)
	}

	return p, nil
}

// UpdateRole writes through to the store and drops the cached entry.
func (c *PrincipalCache) UpdateRole(ctx context.Context, id int64, role model.Role) error {
	if err := c.PrincipalRepository.UpdateRole(ctx, id, role); err != nil {
		return err
	}
	return c.Invalidate(ctx, id)
}

// Invalidate drops the cached entry for id.
func (c *PrincipalCache) Invalidate(ctx context.Context, id int64) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, principalKey(id)).Err()
}
