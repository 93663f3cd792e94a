package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"etfviz/internal/market"
)

// SeriesStore 抽象：按 symbol+period 读写整段历史序列及其抓取时间。
type SeriesStore interface {
	// Put 全量替换指定 symbol+period 的序列。
	Put(ctx context.Context, symbol, period string, ks []market.Candle, fetchedAt time.Time) error
	// Get 返回序列拷贝、抓取时间与是否存在。
	Get(ctx context.Context, symbol, period string) ([]market.Candle, time.Time, bool, error)
	// Keys 返回已缓存的 symbol@period 列表（升序）。
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// MemorySeriesStore 内存实现
type MemorySeriesStore struct {
	mu   sync.RWMutex
	data map[string]entry
}

type entry struct {
	ks        []market.Candle
	fetchedAt time.Time
}

func NewMemorySeriesStore() *MemorySeriesStore {
	return &MemorySeriesStore{data: make(map[string]entry)}
}

func key(symbol, period string) string { return symbol + "@" + period }

func (s *MemorySeriesStore) Put(ctx context.Context, symbol, period string, ks []market.Candle, fetchedAt time.Time) error {
	if symbol == "" || period == "" {
		return errors.New("symbol/period 不能为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key(symbol, period)] = entry{ks: market.CloneSeries(ks), fetchedAt: fetchedAt}
	return nil
}

// Get 返回拷贝
func (s *MemorySeriesStore) Get(ctx context.Context, symbol, period string) ([]market.Candle, time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key(symbol, period)]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return market.CloneSeries(e.ks), e.fetchedAt, true, nil
}

func (s *MemorySeriesStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemorySeriesStore) Close() error { return nil }
