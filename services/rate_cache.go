package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"plasprint_ai/logger"
	"plasprint_ai/models"
)

// RateCache 带 TTL 的汇率缓存。过期的值仍保留，作为所有来源失败时的兜底
type RateCache struct {
	mu    sync.Mutex
	store QuoteStore
	ttl   time.Duration
	now   func() time.Time
}

func NewRateCache(store QuoteStore, ttl time.Duration) *RateCache {
	if store == nil {
		store = NewMemoryQuoteStore()
	}
	return &RateCache{store: store, ttl: ttl, now: time.Now}
}

// Get 返回缓存的汇率；fresh 表示未超过 TTL，ok 表示存在任何值
func (c *RateCache) Get(ctx context.Context) (rate models.ExchangeRate, fresh bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate, ok, err := c.store.Load(ctx)
	if err != nil {
		logger.Warn("读取汇率缓存失败", "error", err)
		return models.ExchangeRate{}, false, false
	}
	if !ok {
		return models.ExchangeRate{}, false, false
	}
	fresh = !rate.FetchedAt.IsZero() && c.now().Sub(rate.FetchedAt) < c.ttl
	return rate, fresh, true
}

// Put 无视 TTL 覆盖缓存
func (c *RateCache) Put(ctx context.Context, value float64, source string) models.ExchangeRate {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate := models.ExchangeRate{Value: value, FetchedAt: c.now(), Source: source}
	if err := c.store.Save(ctx, rate); err != nil {
		logger.Warn("写入汇率缓存失败", "error", err)
	}
	return rate
}

// Invalidate 使缓存过期，下一次 Get 会触发刷新；旧值仍可作为兜底
func (c *RateCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate, ok, err := c.store.Load(ctx)
	if err != nil || !ok {
		return
	}
	rate.FetchedAt = time.Time{}
	if err := c.store.Save(ctx, rate); err != nil {
		logger.Warn("汇率缓存失效失败", "error", err)
	}
}

// MemoryQuoteStore 进程内汇率存储
type MemoryQuoteStore struct {
	mu    sync.RWMutex
	rate  models.ExchangeRate
	valid bool
}

func NewMemoryQuoteStore() *MemoryQuoteStore {
	return &MemoryQuoteStore{}
}

func (s *MemoryQuoteStore) Load(ctx context.Context) (models.ExchangeRate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rate, s.valid, nil
}

func (s *MemoryQuoteStore) Save(ctx context.Context, rate models.ExchangeRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = rate
	s.valid = true
	return nil
}

// RedisQuoteStore 多副本共享的汇率存储。键不设过期，新鲜度由 fetched_at 判断
type RedisQuoteStore struct {
	client *redis.Client
	key    string
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

func NewRedisQuoteStore(cfg RedisConfig) (*RedisQuoteStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisQuoteStore{client: client, key: cfg.Key}, nil
}

func (s *RedisQuoteStore) Load(ctx context.Context) (models.ExchangeRate, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.ExchangeRate{}, false, nil
	}
	if err != nil {
		return models.ExchangeRate{}, false, fmt.Errorf("redis get: %w", err)
	}
	var rate models.ExchangeRate
	if err := json.Unmarshal(raw, &rate); err != nil {
		return models.ExchangeRate{}, false, fmt.Errorf("decode cached rate: %w", err)
	}
	return rate, true, nil
}

func (s *RedisQuoteStore) Save(ctx context.Context, rate models.ExchangeRate) error {
	raw, err := json.Marshal(rate)
	if err != nil {
		return fmt.Errorf("encode rate: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close 关闭 Redis 连接
func (s *RedisQuoteStore) Close() error {
	return s.client.Close()
}
