package market

import (
	"context"
	"fmt"
	"time"

	"etfviz/internal/logger"
)

// SeriesCache 是 CachedSource 依赖的最小存储面，由 store 包实现。
type SeriesCache interface {
	Put(ctx context.Context, symbol, period string, ks []Candle, fetchedAt time.Time) error
	Get(ctx context.Context, symbol, period string) ([]Candle, time.Time, bool, error)
}

// CachedSource 在 Source 之上做读穿透缓存：命中且未过期直接返回，
// 过期则回源刷新；回源失败时退回旧数据而不是报错。
type CachedSource struct {
	src   Source
	cache SeriesCache
	ttl   time.Duration
}

func NewCachedSource(src Source, cache SeriesCache, ttl time.Duration) (*CachedSource, error) {
	if src == nil {
		return nil, fmt.Errorf("source 不能为空")
	}
	if cache == nil {
		return nil, fmt.Errorf("cache 不能为空")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CachedSource{src: src, cache: cache, ttl: ttl}, nil
}

func (s *CachedSource) Name() string { return s.src.Name() }

func (s *CachedSource) FetchHistory(ctx context.Context, symbol, period string) ([]Candle, error) {
	symbol = NormalizeSymbol(symbol)
	cached, fetchedAt, ok, err := s.cache.Get(ctx, symbol, period)
	if err != nil {
		logger.Warnf("[cache] 读取 %s@%s 失败: %v", symbol, period, err)
	}
	if ok && time.Since(fetchedAt) < s.ttl {
		logger.Debugf("[cache] 命中 %s@%s (%d 根)", symbol, period, len(cached))
		return cached, nil
	}

	fresh, err := s.src.FetchHistory(ctx, symbol, period)
	if err != nil {
		if ok && len(cached) > 0 {
			// 回源失败时宁可给旧数据，也不给空图。
			logger.Warnf("[cache] 回源 %s@%s 失败，使用过期缓存: %v", symbol, period, err)
			return cached, nil
		}
		return nil, err
	}
	if putErr := s.cache.Put(ctx, symbol, period, fresh, time.Now()); putErr != nil {
		logger.Warnf("[cache] 写入 %s@%s 失败: %v", symbol, period, putErr)
	}
	return fresh, nil
}

func (s *CachedSource) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	return s.src.FetchQuote(ctx, symbol)
}

func (s *CachedSource) Close() error { return s.src.Close() }
