package portfolio

import (
	"fmt"
	"math"
	"sort"
	"time"

	"etfviz/internal/market"
)

// tradingDaysPerYear 用于把日收益波动率年化。
const tradingDaysPerYear = 252

// Performance 是组合的时间序列与统计指标。
type Performance struct {
	Dates                       []string  `json:"dates"`
	Prices                      []float64 `json:"prices"`
	Returns                     []float64 `json:"returns"`
	TotalReturnPercent          float64   `json:"total_return_percent"`
	AnnualizedVolatilityPercent float64   `json:"annualized_volatility_percent"`
	NumDataPoints               int       `json:"num_data_points"`
}

// Result 是一次组合构建的完整产物。
type Result struct {
	Performance Performance
	// Series 是按组合均价合成的 K 线，供图表注入。
	Series []market.Candle
	// Stocks 保留每个成分股的抓取结果（含失败项）。
	Stocks []StockData
}

// Build 从成分股抓取结果构建等权重组合。
//
// 只取所有有效成分股都有数据的时间点；每个时间点的组合价格是成分股
// 收盘价的简单平均。全部成分股失败或没有共同时间点时返回错误。
func Build(stocks []StockData) (Result, error) {
	var valid []StockData
	for _, s := range stocks {
		if s.Err == nil {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return Result{}, fmt.Errorf("No valid stock data found")
	}

	// 每个标的建立 OpenTime 索引，然后取各家都有的时间点。
	indexes := make([]map[int64]market.Candle, len(valid))
	for i, s := range valid {
		idx := make(map[int64]market.Candle, len(s.Bars))
		for _, c := range s.Bars {
			idx[c.OpenTime] = c
		}
		indexes[i] = idx
	}

	var common []int64
	for ts := range indexes[0] {
		shared := true
		for _, idx := range indexes[1:] {
			if _, ok := idx[ts]; !ok {
				shared = false
				break
			}
		}
		if shared {
			common = append(common, ts)
		}
	}
	if len(common) == 0 {
		return Result{}, fmt.Errorf("No common dates found across all stocks")
	}
	sort.Slice(common, func(i, j int) bool { return common[i] < common[j] })

	perf := Performance{
		Dates:  make([]string, 0, len(common)),
		Prices: make([]float64, 0, len(common)),
	}
	series := make([]market.Candle, 0, len(common))
	for _, ts := range common {
		var sumClose, sumOpen, sumVolume float64
		var closeTime int64
		for _, idx := range indexes {
			c := idx[ts]
			sumClose += c.Close
			sumOpen += c.Open
			sumVolume += c.Volume
			if c.CloseTime > closeTime {
				closeTime = c.CloseTime
			}
		}
		n := float64(len(indexes))
		price := sumClose / n

		perf.Dates = append(perf.Dates, DateLabel(ts, closeTime))
		perf.Prices = append(perf.Prices, price)

		// 合成 K 线：开盘取上一根组合收盘（首根取成分股开盘均值）。
		open := sumOpen / n
		if len(series) > 0 {
			open = series[len(series)-1].Close
		}
		series = append(series, market.Candle{
			OpenTime:  ts,
			CloseTime: closeTime,
			Open:      open,
			High:      math.Max(open, price),
			Low:       math.Min(open, price),
			Close:     price,
			Volume:    sumVolume,
		})
	}

	perf.Returns = make([]float64, 0, len(perf.Prices))
	for i := 1; i < len(perf.Prices); i++ {
		prev := perf.Prices[i-1]
		perf.Returns = append(perf.Returns, (perf.Prices[i]-prev)/prev)
	}
	if n := len(perf.Prices); n > 1 {
		perf.TotalReturnPercent = round2((perf.Prices[n-1] - perf.Prices[0]) / perf.Prices[0] * 100)
	}
	if len(perf.Returns) > 1 {
		perf.AnnualizedVolatilityPercent = round2(stddev(perf.Returns) * math.Sqrt(tradingDaysPerYear) * 100)
	}
	perf.NumDataPoints = len(perf.Prices)

	return Result{Performance: perf, Series: series, Stocks: stocks}, nil
}

// DateLabel 把 K 线时间戳转成展示标签:日级只保留日期,日内带时分。
func DateLabel(openMs, closeMs int64) string {
	ts := time.UnixMilli(openMs).UTC()
	if closeMs-openMs < 24*60*60*1000-1 {
		return ts.Format("2006-01-02 15:04")
	}
	return ts.Format("2006-01-02")
}

// stddev 总体标准差。
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
