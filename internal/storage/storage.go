package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/naxeeb/news-aggregator-live/internal/logger"
	"github.com/naxeeb/news-aggregator-live/internal/processor"
)

const batchCacheKey = "news:aggregate:batch"

// Batch 一次完整聚合的结果，有效期内重复读取返回同一份数据
type Batch struct {
	Articles  []processor.Record `json:"articles"`
	CreatedAt time.Time          `json:"createdAt"`
	TTL       time.Duration      `json:"ttl"`
}

// ExpiresAt 批次失效时间
func (b *Batch) ExpiresAt() time.Time {
	return b.CreatedAt.Add(b.TTL)
}

// ValidAt now 早于失效时间即有效
func (b *Batch) ValidAt(now time.Time) bool {
	return b != nil && now.Before(b.ExpiresAt())
}

// Store 持有当前批次：读共享、写独占；Redis 可选，作为多实例共享的二级缓存
type Store struct {
	mu      sync.RWMutex
	current *Batch

	Redis *redis.Client
	log   logger.Logger
}

// NewStore redisAddr 为空时只用进程内缓存
func NewStore(redisAddr string, log logger.Logger) *Store {
	s := &Store{log: logger.Ensure(log)}
	if redisAddr == "" {
		return s
	}

	s.Redis = redis.NewClient(&redis.Options{Addr: redisAddr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Redis.Ping(ctx).Err(); err != nil {
		s.log.WarnObj("redis ping failed", "redis_error", map[string]any{
			"addr":  redisAddr,
			"error": err.Error(),
		})
	}
	return s
}

// Current 返回 now 时刻仍有效的批次；进程内未命中时尝试 Redis 并回填
func (s *Store) Current(ctx context.Context, now time.Time) (*Batch, bool) {
	s.mu.RLock()
	b := s.current
	s.mu.RUnlock()
	if b.ValidAt(now) {
		return b, true
	}

	if s.Redis == nil {
		return nil, false
	}

	remote, err := s.loadRemote(ctx)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.WarnObj("redis batch read failed", "redis_error", map[string]any{
				"error": err.Error(),
			})
		}
		return nil, false
	}
	if !remote.ValidAt(now) {
		return nil, false
	}

	s.mu.Lock()
	if s.current == nil || s.current.CreatedAt.Before(remote.CreatedAt) {
		s.current = remote
	}
	b = s.current
	s.mu.Unlock()
	return b, b.ValidAt(now)
}

// Save 整体替换当前批次，Redis 写失败只记录告警
func (s *Store) Save(ctx context.Context, b *Batch) {
	s.mu.Lock()
	s.current = b
	s.mu.Unlock()

	if s.Redis == nil {
		return
	}
	if err := s.saveRemote(ctx, b); err != nil {
		s.log.WarnObj("redis batch write failed", "redis_error", map[string]any{
			"error": err.Error(),
		})
	}
}

func (s *Store) loadRemote(ctx context.Context) (*Batch, error) {
	bs, err := s.Redis.Get(ctx, batchCacheKey).Bytes()
	if err != nil {
		return nil, err
	}
	var b Batch
	if err := json.Unmarshal(bs, &b); err != nil {
		return nil, fmt.Errorf("decode cached batch: %w", err)
	}
	return &b, nil
}

func (s *Store) saveRemote(ctx context.Context, b *Batch) error {
	ttl := time.Until(b.ExpiresAt())
	if ttl <= 0 {
		return nil
	}
	bs, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	return s.Redis.Set(ctx, batchCacheKey, bs, ttl).Err()
}

// Close 释放 Redis 连接
func (s *Store) Close() error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Close()
}
