package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"etfviz/internal/logger"
	"etfviz/internal/market"
)

// Config 描述 Yahoo Source 运行所需的参数。
type Config struct {
	BaseURL     string
	UserAgent   string
	ProxyURL    string
	HTTPTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BaseURL == "" {
		out.BaseURL = "https://query1.finance.yahoo.com"
	}
	if out.UserAgent == "" {
		out.UserAgent = "Mozilla/5.0"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	return out
}

// Source 实现 market.Source，走 Yahoo Finance 公开 chart/quote API。
type Source struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	transport := &http.Transport{}
	if final.ProxyURL != "" {
		u, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("解析代理地址失败: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &Source{
		cfg:        final,
		httpClient: &http.Client{Timeout: final.HTTPTimeout, Transport: transport},
	}, nil
}

func (s *Source) Name() string { return "yahoo" }

// chartResponse 是 chart API 的应答结构，数值列可能含 null。
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency string `json:"currency"`
				Symbol   string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []any `json:"open"`
					High   []any `json:"high"`
					Low    []any `json:"low"`
					Close  []any `json:"close"`
					Volume []any `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string  `json:"symbol"`
			ShortName          string  `json:"shortName"`
			LongName           string  `json:"longName"`
			FullExchangeName   string  `json:"fullExchangeName"`
			Currency           string  `json:"currency"`
			MarketCap          float64 `json:"marketCap"`
			RegularMarketPrice float64 `json:"regularMarketPrice"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

// intervalForPeriod 选择展示粒度：短周期用分钟线，长周期用日线。
func intervalForPeriod(period string) (interval string, spanMs int64) {
	switch period {
	case "1d":
		return "5m", 5 * 60 * 1000
	case "5d":
		return "30m", 30 * 60 * 1000
	default:
		return "1d", 24 * 60 * 60 * 1000
	}
}

func (s *Source) FetchHistory(ctx context.Context, symbol, period string) ([]market.Candle, error) {
	symbol = market.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	period, err := market.NormalizePeriod(period)
	if err != nil {
		return nil, err
	}
	interval, spanMs := intervalForPeriod(period)

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		s.cfg.BaseURL, url.PathEscape(symbol), interval, period)
	logger.Debugf("[yahoo] GET %s", u)
	body, err := s.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned for %s", symbol)
	}
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no quote block for %s", symbol)
	}
	quote := result.Indicators.Quote[0]

	out := make([]market.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o := toFloat(at(quote.Open, i))
		h := toFloat(at(quote.High, i))
		l := toFloat(at(quote.Low, i))
		c := toFloat(at(quote.Close, i))
		if o == 0 && h == 0 && l == 0 && c == 0 {
			// 节假日等空档返回 null，跳过。
			continue
		}
		openMs := ts * 1000
		out = append(out, market.Candle{
			OpenTime:  openMs,
			CloseTime: openMs + spanMs - 1,
			Open:      o,
			High:      h,
			Low:       l,
			Close:     c,
			Volume:    toFloat(at(quote.Volume, i)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	return out, nil
}

func (s *Source) FetchQuote(ctx context.Context, symbol string) (market.Quote, error) {
	symbol = market.NormalizeSymbol(symbol)
	if symbol == "" {
		return market.Quote{}, fmt.Errorf("symbol is required")
	}
	u := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", s.cfg.BaseURL, url.QueryEscape(symbol))
	logger.Debugf("[yahoo] GET %s", u)
	body, err := s.get(ctx, u)
	if err != nil {
		return market.Quote{}, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return market.Quote{}, fmt.Errorf("yahoo decode: %w", err)
	}
	if resp.QuoteResponse.Error != nil {
		return market.Quote{}, fmt.Errorf("yahoo api error: %s", resp.QuoteResponse.Error.Description)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return market.Quote{}, fmt.Errorf("yahoo: no quote for %s", symbol)
	}
	r := resp.QuoteResponse.Result[0]
	name := r.LongName
	if name == "" {
		name = r.ShortName
	}
	currency := r.Currency
	if currency == "" {
		currency = "USD"
	}
	return market.Quote{
		Symbol:    r.Symbol,
		Name:      name,
		Exchange:  r.FullExchangeName,
		Currency:  currency,
		MarketCap: r.MarketCap,
		LastPrice: r.RegularMarketPrice,
	}, nil
}

func (s *Source) Close() error { return nil }

func (s *Source) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func at(col []any, i int) any {
	if i < 0 || i >= len(col) {
		return nil
	}
	return col[i]
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
