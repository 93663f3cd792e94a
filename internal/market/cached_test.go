package market

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeSource 记录调用次数并按预设返回,用于驱动缓存路径。
type fakeSource struct {
	calls int
	ks    []Candle
	err   error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchHistory(ctx context.Context, symbol, period string) ([]Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.ks, nil
}

func (f *fakeSource) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	return Quote{Symbol: symbol}, nil
}

func (f *fakeSource) Close() error { return nil }

// fakeCache 以 map 伪造 SeriesCache。
type fakeCache struct {
	data map[string][]Candle
	at   map[string]time.Time
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]Candle), at: make(map[string]time.Time)}
}

func (c *fakeCache) Put(_ context.Context, symbol, period string, ks []Candle, fetchedAt time.Time) error {
	k := symbol + "@" + period
	c.data[k] = CloneSeries(ks)
	c.at[k] = fetchedAt
	return nil
}

func (c *fakeCache) Get(_ context.Context, symbol, period string) ([]Candle, time.Time, bool, error) {
	k := symbol + "@" + period
	ks, ok := c.data[k]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return CloneSeries(ks), c.at[k], true, nil
}

func TestCachedSourceFetchAndHit(t *testing.T) {
	src := &fakeSource{ks: []Candle{mkCandle(1000, 10, 12, 9, 11, 100)}}
	cache := newFakeCache()
	cs, err := NewCachedSource(src, cache, time.Hour)
	if err != nil {
		t.Fatalf("NewCachedSource: %v", err)
	}

	ctx := context.Background()
	got, err := cs.FetchHistory(ctx, "aapl", "1y")
	if err != nil || len(got) != 1 {
		t.Fatalf("首次拉取失败: %v, 共 %d 根", err, len(got))
	}
	if src.calls != 1 {
		t.Fatalf("首次应回源一次, 实际 %d 次", src.calls)
	}

	// TTL 内应命中缓存,不再回源。
	if _, err := cs.FetchHistory(ctx, "AAPL", "1y"); err != nil {
		t.Fatalf("缓存命中路径报错: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("TTL 内不应回源, 实际 %d 次", src.calls)
	}
}

func TestCachedSourceRefreshWhenStale(t *testing.T) {
	src := &fakeSource{ks: []Candle{mkCandle(1000, 10, 12, 9, 11, 100)}}
	cache := newFakeCache()
	cs, _ := NewCachedSource(src, cache, time.Minute)

	ctx := context.Background()
	_ = cache.Put(ctx, "MSFT", "6mo", src.ks, time.Now().Add(-time.Hour))
	if _, err := cs.FetchHistory(ctx, "MSFT", "6mo"); err != nil {
		t.Fatalf("过期刷新报错: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("过期缓存应触发回源, 实际 %d 次", src.calls)
	}
}

func TestCachedSourceStaleFallback(t *testing.T) {
	src := &fakeSource{err: errors.New("upstream down")}
	cache := newFakeCache()
	cs, _ := NewCachedSource(src, cache, time.Minute)

	ctx := context.Background()
	stale := []Candle{mkCandle(1000, 10, 12, 9, 11, 100)}
	_ = cache.Put(ctx, "TSLA", "1y", stale, time.Now().Add(-time.Hour))

	got, err := cs.FetchHistory(ctx, "TSLA", "1y")
	if err != nil {
		t.Fatalf("有旧数据时回源失败不应报错: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("应返回过期缓存, 共 %d 根", len(got))
	}

	// 完全没有缓存时错误需要向上抛。
	if _, err := cs.FetchHistory(ctx, "NVDA", "1y"); err == nil {
		t.Fatalf("无缓存且回源失败应报错")
	}
}
