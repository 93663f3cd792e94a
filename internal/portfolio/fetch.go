// Package portfolio 构建等权重组合：并发抓取成分股历史，按共同交易日
// 取均值，并产出组合统计与可注入图表的合成序列。
package portfolio

import (
	"context"
	"fmt"

	"etfviz/internal/logger"
	"etfviz/internal/market"

	"golang.org/x/sync/errgroup"
)

// MaxTickers 限制单次组合的成分股数量。
const MaxTickers = 20

const maxConcurrentFetches = 10

// NormalizeTickers 清洗成分股列表:去空白、转大写、丢弃空项。
// 错误文案对齐对外 API 返回。
func NormalizeTickers(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("At least one ticker is required")
	}
	if len(raw) > MaxTickers {
		return nil, fmt.Errorf("Maximum %d tickers allowed", MaxTickers)
	}
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if s := market.NormalizeSymbol(t); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("At least one ticker is required")
	}
	return out, nil
}

// StockData 是单个标的的抓取结果。抓取失败不会中断整批，
// 错误随结果带回，由上层决定如何呈现。
type StockData struct {
	Ticker string
	Bars   []market.Candle
	Err    error
}

// FetchAll 并发拉取全部成分股的历史序列，结果与入参顺序一致。
func FetchAll(ctx context.Context, src market.Source, tickers []string, period string) []StockData {
	results := make([]StockData, len(tickers))

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)
	for i, raw := range tickers {
		ticker := market.NormalizeSymbol(raw)
		g.Go(func() error {
			if ticker == "" {
				results[i] = StockData{Ticker: raw, Err: fmt.Errorf("empty ticker")}
				return nil
			}
			bars, err := src.FetchHistory(ctx, ticker, period)
			if err == nil && len(bars) == 0 {
				err = fmt.Errorf("No data found for %s", ticker)
			}
			if err != nil {
				logger.Warnf("[portfolio] 拉取 %s 失败: %v", ticker, err)
			}
			results[i] = StockData{Ticker: ticker, Bars: bars, Err: err}
			return nil
		})
	}
	g.Wait()
	return results
}
