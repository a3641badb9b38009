package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/IDGHIM/TaskFlow/domain"
	"github.com/IDGHIM/TaskFlow/taskstore"
)

type snapshot struct {
	Tasks  []domain.Task `json:"tasks"`
	NextID int64         `json:"nextId"`
}

// Cache keeps task lists in Redis in front of an optional base persister.
// Without a base, Redis is the only store and entries never expire.
type Cache struct {
	base  taskstore.Persister
	redis *redis.Client
	ttl   time.Duration
}

// NewCache wraps base with a Redis cache. base may be nil.
func NewCache(base taskstore.Persister, client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		panic("storage.NewCache: redis client is nil")
	}
	if ttl < 0 || base == nil {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

// Load reads the cached snapshot first. With a base persister any cache
// failure falls back to the base. Without one, Redis errors are returned.
func (c *Cache) Load(ctx context.Context, owner string) (domain.State, bool, error) {
	st, ok, err := c.loadFromCache(ctx, owner)
	if ok {
		return st, true, nil
	}
	if c.base == nil {
		return domain.State{}, false, err
	}
	if err != nil {
		c.evict(ctx, owner)
	}

	st, found, err := c.base.Load(ctx, owner)
	if err != nil || !found {
		return st, found, err
	}
	_ = c.store(ctx, owner, st)
	return st, true, nil
}

// Save writes through to the base persister first. A failed cache write
// evicts the entry so the next Load falls back to the base.
func (c *Cache) Save(ctx context.Context, owner string, state domain.State) error {
	if c.base == nil {
		return c.store(ctx, owner, state)
	}
	if err := c.base.Save(ctx, owner, state); err != nil {
		c.evict(ctx, owner)
		return err
	}
	if err := c.store(ctx, owner, state); err != nil {
		c.evict(ctx, owner)
	}
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context, owner string) (domain.State, bool, error) {
	data, err := c.redis.Get(ctx, tasksCacheKey(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.State{}, false, nil
	}
	if err != nil {
		return domain.State{}, false, fmt.Errorf("redis get %s: %w", owner, err)
	}
	var snap snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return domain.State{}, false, fmt.Errorf("decode cached tasks %s: %w", owner, err)
	}
	return domain.NewState(snap.Tasks).WithNextID(snap.NextID), true, nil
}

func (c *Cache) store(ctx context.Context, owner string, state domain.State) error {
	data, err := sonic.Marshal(snapshot{Tasks: state.Tasks, NextID: state.NextID})
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, tasksCacheKey(owner), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, owner string) {
	_ = c.redis.Del(ctx, tasksCacheKey(owner)).Err()
}

func tasksCacheKey(owner string) string {
	return "tasks:" + owner
}

// RedisOptions parses either a redis:// URL or a connection string of the
// form "host:port,password=...,ssl=true".
func RedisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
