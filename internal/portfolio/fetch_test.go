package portfolio

import (
	"context"
	"errors"
	"sync"
	"testing"

	"etfviz/internal/market"
)

// mapSource 按 symbol 返回预设序列,缺失的 symbol 回错误。
type mapSource struct {
	mu    sync.Mutex
	calls int
	bars  map[string][]market.Candle
}

func (m *mapSource) Name() string { return "map" }

func (m *mapSource) FetchHistory(ctx context.Context, symbol, period string) ([]market.Candle, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	ks, ok := m.bars[symbol]
	if !ok {
		return nil, errors.New("upstream rejected " + symbol)
	}
	return ks, nil
}

func (m *mapSource) FetchQuote(ctx context.Context, symbol string) (market.Quote, error) {
	return market.Quote{Symbol: symbol}, nil
}

func (m *mapSource) Close() error { return nil }

func TestFetchAllOrderAndErrors(t *testing.T) {
	src := &mapSource{bars: map[string][]market.Candle{
		"AAPL": {bar(0, 10, 11)},
		"MSFT": {bar(0, 20, 21)},
		"EMPT": {},
	}}

	got := FetchAll(context.Background(), src, []string{"aapl", "BAD", " msft ", "EMPT"}, "6mo")
	if len(got) != 4 {
		t.Fatalf("结果数不符: %d", len(got))
	}

	// 结果顺序与入参一致,symbol 已规整为大写。
	for i, want := range []string{"AAPL", "BAD", "MSFT", "EMPT"} {
		if got[i].Ticker != want {
			t.Fatalf("第 %d 项 ticker %q, 期望 %q", i, got[i].Ticker, want)
		}
	}
	if got[0].Err != nil || len(got[0].Bars) != 1 {
		t.Fatalf("AAPL 应成功: %+v", got[0])
	}
	if got[1].Err == nil {
		t.Fatalf("BAD 应带回上游错误")
	}
	// 空序列视同无数据。
	if got[3].Err == nil {
		t.Fatalf("EMPT 应报 no data")
	}
	if src.calls != 4 {
		t.Fatalf("每个 ticker 回源一次, 实际 %d", src.calls)
	}
}

func TestFetchAllEmptyTicker(t *testing.T) {
	src := &mapSource{bars: map[string][]market.Candle{}}
	got := FetchAll(context.Background(), src, []string{"  "}, "1y")
	if len(got) != 1 || got[0].Err == nil {
		t.Fatalf("空白 ticker 应直接报错: %+v", got)
	}
	if src.calls != 0 {
		t.Fatalf("空白 ticker 不应回源")
	}
}
