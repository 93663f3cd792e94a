package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const chartBody = `{
  "chart": {
    "result": [{
      "meta": {"currency": "USD", "symbol": "AAPL"},
      "timestamp": [1700000000, 1700086400, 1700172800],
      "indicators": {"quote": [{
        "open":   [100.0, null, 102.0],
        "high":   [101.5, null, 103.0],
        "low":    [99.0,  null, 101.0],
        "close":  [101.0, null, 102.5],
        "volume": [120000, null, 98000]
      }]}
    }],
    "error": null
  }
}`

const quoteBody = `{
  "quoteResponse": {
    "result": [{
      "symbol": "AAPL",
      "shortName": "Apple Inc.",
      "longName": "Apple Inc.",
      "fullExchangeName": "NasdaqGS",
      "currency": "USD",
      "marketCap": 2900000000000,
      "regularMarketPrice": 189.71
    }],
    "error": null
  }
}`

func newTestSource(t *testing.T, handler http.HandlerFunc) (*Source, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, srv
}

func TestFetchHistorySkipsNullBars(t *testing.T) {
	var gotPath string
	s, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		w.Write([]byte(chartBody))
	})

	ks, err := s.FetchHistory(context.Background(), "aapl", "6mo")
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if !strings.Contains(gotPath, "/v8/finance/chart/AAPL") {
		t.Fatalf("请求路径错误: %s", gotPath)
	}
	if !strings.Contains(gotPath, "interval=1d") || !strings.Contains(gotPath, "range=6mo") {
		t.Fatalf("interval/range 参数错误: %s", gotPath)
	}
	// 中间的 null bar 应被跳过。
	if len(ks) != 2 {
		t.Fatalf("期望 2 根 K 线, 实际 %d", len(ks))
	}
	if ks[0].OpenTime != 1700000000000 || ks[1].OpenTime != 1700172800000 {
		t.Fatalf("时间戳转换错误: %d, %d", ks[0].OpenTime, ks[1].OpenTime)
	}
	if ks[0].OpenTime >= ks[0].CloseTime {
		t.Fatalf("CloseTime 应晚于 OpenTime")
	}
	if ks[1].Close != 102.5 || ks[1].Volume != 98000 {
		t.Fatalf("OHLCV 解析错误: %+v", ks[1])
	}
}

func TestFetchHistoryIntradayInterval(t *testing.T) {
	var gotQuery string
	s, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(chartBody))
	})
	if _, err := s.FetchHistory(context.Background(), "AAPL", "1d"); err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if !strings.Contains(gotQuery, "interval=5m") {
		t.Fatalf("1d 周期应使用 5m 粒度: %s", gotQuery)
	}
}

func TestFetchHistoryAPIError(t *testing.T) {
	s, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	})
	if _, err := s.FetchHistory(context.Background(), "BOGUS", "1y"); err == nil {
		t.Fatalf("API 错误应向上抛")
	}
}

func TestFetchHistoryRejectsBadPeriod(t *testing.T) {
	s, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("非法周期不应发请求")
	})
	if _, err := s.FetchHistory(context.Background(), "AAPL", "42h"); err == nil {
		t.Fatalf("非法周期应报错")
	}
}

func TestFetchQuote(t *testing.T) {
	s, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v7/finance/quote") {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(quoteBody))
	})
	q, err := s.FetchQuote(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("FetchQuote: %v", err)
	}
	if q.Name != "Apple Inc." || q.Exchange != "NasdaqGS" || q.Currency != "USD" {
		t.Fatalf("quote 解析错误: %+v", q)
	}
	if q.LastPrice != 189.71 {
		t.Fatalf("last_price 解析错误: %v", q.LastPrice)
	}
}
