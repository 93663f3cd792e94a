package market

import (
	"context"
	"fmt"
	"strings"
)

// ValidPeriods 是对外暴露的周期词表，与上游 API 的 range 语义一致。
var ValidPeriods = []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"}

// DefaultPeriod 在请求未指定周期时使用。
const DefaultPeriod = "1y"

// NormalizePeriod 统一大小写并校验周期合法性；空串回落到 DefaultPeriod。
func NormalizePeriod(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return DefaultPeriod, nil
	}
	for _, v := range ValidPeriods {
		if p == v {
			return p, nil
		}
	}
	return "", fmt.Errorf("Invalid period. Must be one of: %s", strings.Join(ValidPeriods, ", "))
}

// Quote 描述一个标的的基础信息，用于 ticker 查询接口。
type Quote struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Exchange  string  `json:"exchange"`
	Currency  string  `json:"currency"`
	MarketCap float64 `json:"market_cap"`
	LastPrice float64 `json:"last_price"`
}

// Source 统一对接外部行情供应商。实现方负责把 period 翻译成
// 自家 API 的区间/粒度组合，并按时间升序返回。
type Source interface {
	Name() string
	// FetchHistory 拉取指定 symbol 在 period 内的历史 K 线。
	FetchHistory(ctx context.Context, symbol, period string) ([]Candle, error)
	// FetchQuote 查询标的基础信息。
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
	// Close 释放底层资源。
	Close() error
}

// NormalizeSymbol 统一股票代码写法。
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
