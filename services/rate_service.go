package services

import (
	"context"
	"time"

	"plasprint_ai/config"
	"plasprint_ai/logger"
	"plasprint_ai/models"
)

// RateResolver 依次尝试各汇率来源，第一个成功的生效；全部失败时退回缓存旧值
type RateResolver struct {
	cache   *RateCache
	sources []RateSource
}

func NewRateResolver(cache *RateCache, sources ...RateSource) *RateResolver {
	return &RateResolver{cache: cache, sources: sources}
}

// NewRateResolverFromConfig 按配置组装：AwesomeAPI（429 重试）-> Yahoo -> 缓存
func NewRateResolverFromConfig(cfg *config.Config, store QuoteStore) *RateResolver {
	timeout := time.Duration(cfg.Rate.TimeoutSec) * time.Second
	primary := NewRetryOnRateLimit(
		NewAwesomeAPISource(cfg.Rate.PrimaryURL, timeout),
		cfg.Rate.MaxRetries,
		time.Duration(cfg.Rate.BackoffBaseMillis)*time.Millisecond,
	)
	secondary := NewYahooChartSource(cfg.Rate.SecondaryURL, timeout)
	cache := NewRateCache(store, time.Duration(cfg.Rate.TTLSec)*time.Second)
	return NewRateResolver(cache, primary, secondary)
}

// Rate 返回当前汇率；第二个返回值为 false 表示没有可用汇率，调用方应跳过换算
func (r *RateResolver) Rate(ctx context.Context) (models.ExchangeRate, bool) {
	if cached, fresh, ok := r.cache.Get(ctx); ok && fresh {
		logger.Debug("使用缓存汇率", "value", cached.Value, "source", cached.Source)
		return cached, true
	}

	for _, src := range r.sources {
		v, err := src.FetchRate(ctx)
		if err != nil {
			logger.Warn("汇率来源失败", "source", src.Name(), "error", err)
			continue
		}
		if v <= 0 {
			logger.Warn("汇率来源返回无效值", "source", src.Name(), "value", v)
			continue
		}
		rate := r.cache.Put(ctx, v, src.Name())
		logger.Info("汇率已刷新", "source", src.Name(), "value", v)
		return rate, true
	}

	if cached, _, ok := r.cache.Get(ctx); ok {
		logger.Warn("所有汇率来源失败，使用上次成功的汇率", "value", cached.Value, "fetched_at", cached.FetchedAt)
		cached.Stale = true
		return cached, true
	}

	logger.Error("没有可用汇率")
	return models.ExchangeRate{}, false
}

// CurrentRate 与 Rate 相同，没有汇率时返回 ErrRateUnavailable
func (r *RateResolver) CurrentRate(ctx context.Context) (models.ExchangeRate, error) {
	rate, ok := r.Rate(ctx)
	if !ok {
		return models.ExchangeRate{}, models.ErrRateUnavailable
	}
	return rate, nil
}

// Invalidate 强制下一次调用重新获取
func (r *RateResolver) Invalidate(ctx context.Context) {
	r.cache.Invalidate(ctx)
}
