package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"etfviz/internal/market"
	"etfviz/internal/preset"
	"etfviz/internal/widget"
)

const dayMs = 86_400_000

// fakeSource 按 symbol 返回预设日线,缺失的 symbol 报错。
type fakeSource struct {
	bars     map[string][]market.Candle
	quoteErr bool
}

func alignedBars(base float64) []market.Candle {
	out := make([]market.Candle, 0, 3)
	for i := 0; i < 3; i++ {
		ts := int64(i) * dayMs
		price := base + float64(i)
		out = append(out, market.Candle{
			OpenTime:  ts,
			CloseTime: ts + dayMs - 1,
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price + 0.5,
			Volume:    1000,
		})
	}
	return out
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchHistory(ctx context.Context, symbol, period string) ([]market.Candle, error) {
	ks, ok := f.bars[symbol]
	if !ok {
		return nil, errors.New("upstream rejected " + symbol)
	}
	return ks, nil
}

func (f *fakeSource) FetchQuote(ctx context.Context, symbol string) (market.Quote, error) {
	if f.quoteErr {
		return market.Quote{}, errors.New("quote unavailable")
	}
	return market.Quote{Symbol: symbol, Name: symbol + " Inc.", Exchange: "NMS", Currency: "USD", LastPrice: 101.5}, nil
}

func (f *fakeSource) Close() error { return nil }

func newTestServer(t *testing.T, flavor string) *Server {
	t.Helper()
	src := &fakeSource{bars: map[string][]market.Candle{
		"AAPL":  alignedBars(100),
		"GOOGL": alignedBars(150),
		"MSFT":  alignedBars(300),
		"TSLA":  alignedBars(200),
	}}
	s, err := NewServer(Config{
		Source:  src,
		Manager: widget.NewManager(widget.Params{Flavor: flavor}),
		Presets: preset.NewStore(filepath.Join(t.TempDir(), "presets.yaml")),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("解析响应失败: %v\n%s", err, w.Body.String())
	}
	return out
}

func TestHealthAndAPIRoot(t *testing.T) {
	s := newTestServer(t, widget.FlavorECharts)

	w := doRequest(t, s, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "healthy") {
		t.Fatalf("health 响应不符: %d %s", w.Code, w.Body.String())
	}

	w = doRequest(t, s, http.MethodGet, "/api", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ETF Visualizer API") {
		t.Fatalf("api 根响应不符: %d %s", w.Code, w.Body.String())
	}

	w = doRequest(t, s, http.MethodGet, "/api/periods", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ytd") {
		t.Fatalf("periods 响应不符: %d %s", w.Code, w.Body.String())
	}

	// 前端首页走嵌入资源。
	w = doRequest(t, s, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ETF Visualizer") {
		t.Fatalf("首页响应不符: %d", w.Code)
	}
}

func TestPortfolioFlow(t *testing.T) {
	s := newTestServer(t, widget.FlavorECharts)

	w := doRequest(t, s, http.MethodPost, "/api/portfolio", map[string]any{
		"tickers": []string{"aapl", " msft "},
		"period":  "6mo",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("构建组合失败: %d %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)

	perf, ok := resp["portfolio_data"].(map[string]any)
	if !ok || perf["num_data_points"].(float64) != 3 {
		t.Fatalf("portfolio_data 不符: %v", resp["portfolio_data"])
	}
	stocks := resp["individual_stocks"].([]any)
	if len(stocks) != 2 {
		t.Fatalf("成分股数不符: %d", len(stocks))
	}
	first := stocks[0].(map[string]any)
	if first["ticker"] != "AAPL" || first["data"] == nil {
		t.Fatalf("成分股载荷不符: %v", first)
	}

	chart, ok := resp["chart"].(map[string]any)
	if !ok {
		t.Fatalf("响应缺少 chart 会话: %v", resp)
	}
	id := chart["session_id"].(string)
	if id == "" || chart["widget"] != "echarts" {
		t.Fatalf("chart 会话不符: %v", chart)
	}

	// 会话数据可回读。
	w = doRequest(t, s, http.MethodGet, "/api/chart/"+id+"/bars", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("bars 读取失败: %d %s", w.Code, w.Body.String())
	}
	barsResp := decodeBody(t, w)
	if barsResp["count"].(float64) != 3 {
		t.Fatalf("bars 数量不符: %v", barsResp["count"])
	}

	// echarts 组件支持服务端渲染。
	w = doRequest(t, s, http.MethodGet, "/api/chart/"+id+"/view", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<html") {
		t.Fatalf("view 渲染失败: %d", w.Code)
	}

	// CSV 导出带下载头。
	w = doRequest(t, s, http.MethodGet, "/api/chart/"+id+"/export.csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("导出失败: %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("缺少下载头: %q", cd)
	}
	if !strings.HasPrefix(w.Body.String(), "Date,Open,High,Low,Close") {
		t.Fatalf("CSV 表头不符: %q", w.Body.String()[:40])
	}

	// 卸载后会话消失。
	w = doRequest(t, s, http.MethodDelete, "/api/chart/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("卸载失败: %d %s", w.Code, w.Body.String())
	}
	w = doRequest(t, s, http.MethodGet, "/api/chart/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("卸载后应 404, 实际 %d", w.Code)
	}
}

func TestPortfolioValidation(t *testing.T) {
	s := newTestServer(t, widget.FlavorECharts)

	w := doRequest(t, s, http.MethodPost, "/api/portfolio", map[string]any{"tickers": []string{}})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "At least one ticker") {
		t.Fatalf("空 tickers 校验不符: %d %s", w.Code, w.Body.String())
	}

	big := make([]string, 21)
	for i := range big {
		big[i] = "AAPL"
	}
	w = doRequest(t, s, http.MethodPost, "/api/portfolio", map[string]any{"tickers": big})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Maximum 20 tickers") {
		t.Fatalf("超量 tickers 校验不符: %d %s", w.Code, w.Body.String())
	}

	w = doRequest(t, s, http.MethodPost, "/api/portfolio", map[string]any{
		"tickers": []string{"AAPL"}, "period": "7w",
	})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Invalid period") {
		t.Fatalf("period 校验不符: %d %s", w.Code, w.Body.String())
	}

	// 全部成分股失败时报 400。
	w = doRequest(t, s, http.MethodPost, "/api/portfolio", map[string]any{
		"tickers": []string{"NOPE1", "NOPE2"}, "period": "1y",
	})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "No valid stock data") {
		t.Fatalf("全失败校验不符: %d %s", w.Code, w.Body.String())
	}
}

func TestExampleAndPresetPortfolio(t *testing.T) {
	s := newTestServer(t, widget.FlavorECharts)

	w := doRequest(t, s, http.MethodGet, "/api/portfolio/example", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("示例组合失败: %d %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	tickers := resp["tickers"].([]any)
	if len(tickers) != 4 || tickers[0] != "AAPL" {
		t.Fatalf("示例组合成分不符: %v", tickers)
	}
	if resp["period"] != "6mo" {
		t.Fatalf("示例组合周期不符: %v", resp["period"])
	}

	// 未知 preset 404。
	w = doRequest(t, s, http.MethodGet, "/api/portfolio/preset/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("未知 preset 应 404, 实际 %d", w.Code)
	}

	// 内置 example 也能按名字跑。
	w = doRequest(t, s, http.MethodGet, "/api/portfolio/preset/example", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("按名字跑 preset 失败: %d %s", w.Code, w.Body.String())
	}
}

func TestTickerEndpoint(t *testing.T) {
	s := newTestServer(t, widget.FlavorECharts)

	w := doRequest(t, s, http.MethodGet, "/api/ticker/aapl", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ticker 查询失败: %d %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["ticker"] != "AAPL" || resp["currency"] != "USD" {
		t.Fatalf("ticker 响应不符: %v", resp)
	}

	s.src.(*fakeSource).quoteErr = true
	w = doRequest(t, s, http.MethodGet, "/api/ticker/aapl", nil)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "not found") {
		t.Fatalf("quote 失败应 404: %d %s", w.Code, w.Body.String())
	}
}

func TestCreateChartEndpoint(t *testing.T) {
	s := newTestServer(t, widget.FlavorECharts)

	w := doRequest(t, s, http.MethodPost, "/api/chart", map[string]any{"symbol": "AAPL", "period": "1y"})
	if w.Code != http.StatusCreated {
		t.Fatalf("建会话失败: %d %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	sess := resp["session"].(map[string]any)
	if sess["symbol"] != "AAPL" || sess["bar_count"].(float64) != 3 {
		t.Fatalf("会话快照不符: %v", sess)
	}
	report := sess["report"].(map[string]any)
	if report["strategy"] != "bulk-replace" {
		t.Fatalf("注入策略不符: %v", report["strategy"])
	}

	// 缺 symbol 或上游失败都报 400。
	w = doRequest(t, s, http.MethodPost, "/api/chart", map[string]any{"period": "1y"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("缺 symbol 应 400, 实际 %d", w.Code)
	}
	w = doRequest(t, s, http.MethodPost, "/api/chart", map[string]any{"symbol": "NOPE"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("上游失败应 400, 实际 %d", w.Code)
	}

	// 会话列表可见。
	w = doRequest(t, s, http.MethodGet, "/api/charts", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "AAPL") {
		t.Fatalf("会话列表不符: %d %s", w.Code, w.Body.String())
	}
}

func TestChartViewNotRenderable(t *testing.T) {
	s := newTestServer(t, widget.FlavorPull)

	w := doRequest(t, s, http.MethodPost, "/api/chart", map[string]any{"symbol": "AAPL"})
	if w.Code != http.StatusCreated {
		t.Fatalf("建会话失败: %d %s", w.Code, w.Body.String())
	}
	id := decodeBody(t, w)["session"].(map[string]any)["session_id"].(string)

	// 拉取式组件没有服务端渲染面。
	w = doRequest(t, s, http.MethodGet, "/api/chart/"+id+"/view", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("pull 组件 view 应 409, 实际 %d", w.Code)
	}

	w = doRequest(t, s, http.MethodGet, "/api/chart/ghost/view", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("未知会话 view 应 404, 实际 %d", w.Code)
	}
}

func TestSnapshotDisabled(t *testing.T) {
	s := newTestServer(t, widget.FlavorECharts)

	// 未配置截图器时接口降级为 503。
	w := doRequest(t, s, http.MethodGet, "/api/chart/any/snapshot.png", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("截图未开启应 503, 实际 %d", w.Code)
	}
}
