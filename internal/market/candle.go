package market

import (
	"fmt"
	"math"
)

// Candle 表示一根 OHLCV K 线，时间戳为毫秒。
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades,omitempty"`
}

// ValidateSeries 校验序列的基本约束：OpenTime 严格递增（不允许重复）、
// low ≤ open/close ≤ high、数值有限、volume 非负。空序列合法。
func ValidateSeries(ks []Candle) error {
	var prev int64 = math.MinInt64
	for i, c := range ks {
		if c.OpenTime <= prev {
			return fmt.Errorf("第 %d 根 K 线时间戳未递增: %d <= %d", i, c.OpenTime, prev)
		}
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("第 %d 根 K 线包含非法数值", i)
			}
		}
		if c.Low > c.Open || c.Low > c.Close || c.High < c.Open || c.High < c.Close {
			return fmt.Errorf("第 %d 根 K 线违反 low<=open/close<=high", i)
		}
		if c.Volume < 0 {
			return fmt.Errorf("第 %d 根 K 线 volume 为负", i)
		}
		prev = c.OpenTime
	}
	return nil
}

// CloneSeries 返回序列的浅拷贝，避免调用方共享底层数组。
func CloneSeries(ks []Candle) []Candle {
	if ks == nil {
		return nil
	}
	out := make([]Candle, len(ks))
	copy(out, ks)
	return out
}

// LastClose 取最后一根 K 线的收盘价，空序列返回 0。
func LastClose(ks []Candle) float64 {
	if len(ks) == 0 {
		return 0
	}
	return ks[len(ks)-1].Close
}
