package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"etfviz/internal/logger"
	"etfviz/internal/market"

	gobinance "github.com/adshao/go-binance/v2"
)

const maxKlineLimit = 1000

// Source 实现 market.Source，面向加密货币标的（如 BTCUSDT）。
type Source struct {
	cfg    Config
	client *gobinance.Client
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	gobinance.UseTestnet = final.UseTestnet
	client := gobinance.NewClient(final.APIKey, final.APISecret)
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{cfg: final, client: client}, nil
}

func (s *Source) Name() string { return "binance" }

// intervalForPeriod 把展示周期翻译成 Binance interval + limit。
func intervalForPeriod(period string) (string, int) {
	switch period {
	case "1d":
		return "15m", 96
	case "5d":
		return "1h", 120
	case "1mo":
		return "4h", 186
	case "3mo":
		return "1d", 90
	case "6mo":
		return "1d", 180
	case "1y":
		return "1d", 365
	case "2y":
		return "1w", 104
	case "5y":
		return "1w", 260
	case "10y":
		return "1M", 120
	case "ytd":
		days := int(time.Since(startOfYear(time.Now())).Hours()/24) + 1
		if days < 1 {
			days = 1
		}
		if days > maxKlineLimit {
			days = maxKlineLimit
		}
		return "1d", days
	default: // max
		return "1M", maxKlineLimit
	}
}

func startOfYear(now time.Time) time.Time {
	return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
}

func (s *Source) FetchHistory(ctx context.Context, symbol, period string) ([]market.Candle, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("binance source not initialized")
	}
	symbol = market.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	period, err := market.NormalizePeriod(period)
	if err != nil {
		return nil, err
	}
	interval, limit := intervalForPeriod(period)
	logger.Debugf("[binance] klines %s interval=%s limit=%d", symbol, interval, limit)

	raw, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines: %w", err)
	}
	out := make([]market.Candle, 0, len(raw))
	for _, k := range raw {
		if k == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  k.OpenTime,
			CloseTime: k.CloseTime,
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
			Trades:    k.TradeNum,
		})
	}
	return out, nil
}

func (s *Source) FetchQuote(ctx context.Context, symbol string) (market.Quote, error) {
	if s == nil || s.client == nil {
		return market.Quote{}, fmt.Errorf("binance source not initialized")
	}
	symbol = market.NormalizeSymbol(symbol)
	if symbol == "" {
		return market.Quote{}, fmt.Errorf("symbol is required")
	}
	stats, err := s.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return market.Quote{}, fmt.Errorf("binance ticker stats: %w", err)
	}
	for _, st := range stats {
		if st == nil {
			continue
		}
		if strings.EqualFold(st.Symbol, symbol) {
			return market.Quote{
				Symbol:    st.Symbol,
				Name:      st.Symbol,
				Exchange:  "Binance",
				Currency:  quoteAsset(st.Symbol),
				LastPrice: parseFloat(st.LastPrice),
			}, nil
		}
	}
	return market.Quote{}, fmt.Errorf("binance: no stats for %s", symbol)
}

func (s *Source) Close() error { return nil }

// quoteAsset 从交易对后缀推断计价币。
func quoteAsset(symbol string) string {
	for _, q := range []string{"USDT", "USDC", "BTC", "ETH", "BNB"} {
		if strings.HasSuffix(symbol, q) {
			return q
		}
	}
	return "USDT"
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
