// Package http 提供 Gin 接口:组合构建、行情查询、图表会话管理,
// 以及嵌入的前端页面。
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"etfviz/internal/export"
	"etfviz/internal/logger"
	"etfviz/internal/market"
	"etfviz/internal/portfolio"
	"etfviz/internal/preset"
	"etfviz/internal/snapshot"
	"etfviz/internal/transport/http/presetapi"
	"etfviz/internal/transport/http/ui"
	"etfviz/internal/widget"
)

// Server 持有路由与各业务依赖。
type Server struct {
	addr      string
	baseURL   string
	src       market.Source
	manager   *widget.Manager
	presets   *preset.Store
	capturer  *snapshot.Capturer
	router    *gin.Engine
	indexHTML []byte
}

type Config struct {
	Addr string
	// PublicBaseURL 是无头浏览器回访本服务用的地址,留空按 Addr 推导。
	PublicBaseURL string
	Source        market.Source
	Manager       *widget.Manager
	Presets       *preset.Store
	// Capturer 可以为 nil,截图接口会按未开启降级。
	Capturer *snapshot.Capturer
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Source == nil {
		return nil, errors.New("行情源不能为空")
	}
	if cfg.Manager == nil {
		return nil, errors.New("图表管理器不能为空")
	}
	if cfg.Presets == nil {
		return nil, errors.New("preset 存储不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8787"
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = deriveBaseURL(cfg.Addr)
	}

	staticFS, err := ui.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("加载前端静态资源失败: %w", err)
	}
	indexHTML, err := ui.Index()
	if err != nil {
		return nil, fmt.Errorf("加载前端首页失败: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.StaticFS("/static", staticFS)

	s := &Server{
		addr:      cfg.Addr,
		baseURL:   strings.TrimRight(cfg.PublicBaseURL, "/"),
		src:       cfg.Source,
		manager:   cfg.Manager,
		presets:   cfg.Presets,
		capturer:  cfg.Capturer,
		router:    router,
		indexHTML: indexHTML,
	}
	s.registerRoutes()
	return s, nil
}

// deriveBaseURL 从监听地址推导本机可访问的 URL,通配地址回落到环回。
func deriveBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://127.0.0.1:8787"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	api.GET("", s.handleAPIRoot)
	api.GET("/periods", s.handlePeriods)
	api.POST("/portfolio", s.handleCreatePortfolio)
	api.GET("/portfolio/example", s.handleExamplePortfolio)
	api.GET("/portfolio/preset/:name", s.handlePresetPortfolio)
	api.GET("/ticker/:symbol", s.handleTicker)

	presetapi.NewRouter(s.presets).Register(api.Group("/presets"))

	api.POST("/chart", s.handleCreateChart)
	api.GET("/charts", s.handleListCharts)
	chart := api.Group("/chart")
	chart.GET("/:id", s.handleChartInfo)
	chart.GET("/:id/bars", s.handleChartBars)
	chart.GET("/:id/view", s.handleChartView)
	chart.GET("/:id/export.csv", s.handleChartExport)
	chart.GET("/:id/snapshot.png", s.handleChartSnapshot)
	chart.DELETE("/:id", s.handleDeleteChart)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", s.indexHTML)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleAPIRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "ETF Visualizer API", "status": "running"})
}

func (s *Server) handlePeriods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"periods": market.ValidPeriods,
		"default": market.DefaultPeriod,
	})
}

func (s *Server) handleCreatePortfolio(c *gin.Context) {
	var req struct {
		Tickers []string `json:"tickers"`
		Period  string   `json:"period"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	s.buildPortfolio(c, req.Tickers, req.Period)
}

func (s *Server) handleExamplePortfolio(c *gin.Context) {
	e, err := s.presets.Get(preset.BuiltinName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.buildPortfolio(c, e.Tickers, e.Period)
}

func (s *Server) handlePresetPortfolio(c *gin.Context) {
	e, err := s.presets.Get(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.buildPortfolio(c, e.Tickers, e.Period)
}

// buildPortfolio 是组合接口的共同主体:校验、并发抓取、统计、
// 挂载图表会话,最后拼出响应。
func (s *Server) buildPortfolio(c *gin.Context, rawTickers []string, rawPeriod string) {
	tickers, err := portfolio.NormalizeTickers(rawTickers)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	period, err := market.NormalizePeriod(rawPeriod)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logger.Infof("[api] 构建组合: %v @ %s", tickers, period)
	stocks := portfolio.FetchAll(c.Request.Context(), s.src, tickers, period)
	res, err := portfolio.Build(stocks)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Debugf("[api] 组合统计:\n%s", portfolio.RenderSummaryTable(res))

	var chartSession any
	if sess, err := s.manager.Mount(portfolioLabel(tickers), period, res.Series); err != nil {
		logger.Errorf("[api] 挂载组合图表失败: %v", err)
	} else {
		chartSession = sess
	}

	c.JSON(http.StatusOK, gin.H{
		"tickers":           tickers,
		"portfolio_data":    res.Performance,
		"individual_stocks": stockPayloads(res.Stocks),
		"period":            period,
		"created_at":        time.Now().Format(time.RFC3339),
		"chart":             chartSession,
	})
}

// portfolioLabel 拼会话用的标的名,过长时截断。
func portfolioLabel(tickers []string) string {
	if len(tickers) <= 4 {
		return strings.Join(tickers, "+")
	}
	return fmt.Sprintf("%s+%d", strings.Join(tickers[:3], "+"), len(tickers)-3)
}

type stockColumns struct {
	Dates   []string  `json:"dates"`
	Prices  []float64 `json:"prices"`
	Volumes []float64 `json:"volumes"`
	Highs   []float64 `json:"highs"`
	Lows    []float64 `json:"lows"`
	Opens   []float64 `json:"opens"`
}

type stockPayload struct {
	Ticker string        `json:"ticker"`
	Data   *stockColumns `json:"data,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// stockPayloads 把每只成分股的 K 线转成按列组织的序列。
func stockPayloads(stocks []portfolio.StockData) []stockPayload {
	out := make([]stockPayload, 0, len(stocks))
	for _, s := range stocks {
		p := stockPayload{Ticker: s.Ticker}
		if s.Err != nil {
			p.Error = s.Err.Error()
			out = append(out, p)
			continue
		}
		cols := &stockColumns{
			Dates:   make([]string, 0, len(s.Bars)),
			Prices:  make([]float64, 0, len(s.Bars)),
			Volumes: make([]float64, 0, len(s.Bars)),
			Highs:   make([]float64, 0, len(s.Bars)),
			Lows:    make([]float64, 0, len(s.Bars)),
			Opens:   make([]float64, 0, len(s.Bars)),
		}
		for _, b := range s.Bars {
			cols.Dates = append(cols.Dates, portfolio.DateLabel(b.OpenTime, b.CloseTime))
			cols.Prices = append(cols.Prices, b.Close)
			cols.Volumes = append(cols.Volumes, b.Volume)
			cols.Highs = append(cols.Highs, b.High)
			cols.Lows = append(cols.Lows, b.Low)
			cols.Opens = append(cols.Opens, b.Open)
		}
		p.Data = cols
		out = append(out, p)
	}
	return out
}

func (s *Server) handleTicker(c *gin.Context) {
	symbol := market.NormalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 symbol"})
		return
	}
	q, err := s.src.FetchQuote(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Ticker %s not found: %v", symbol, err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ticker":     q.Symbol,
		"name":       q.Name,
		"exchange":   q.Exchange,
		"currency":   q.Currency,
		"market_cap": q.MarketCap,
		"last_price": q.LastPrice,
	})
}

func (s *Server) handleCreateChart(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol" binding:"required"`
		Period string `json:"period"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	symbol := market.NormalizeSymbol(req.Symbol)
	period, err := market.NormalizePeriod(req.Period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bars, err := s.src.FetchHistory(c.Request.Context(), symbol, period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := s.manager.Mount(symbol, period, bars)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": sess})
}

func (s *Server) handleListCharts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.manager.List()})
}

func (s *Server) handleChartInfo(c *gin.Context) {
	sess, ok := s.manager.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session 不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

func (s *Server) handleChartBars(c *gin.Context) {
	id := c.Param("id")
	sess, ok := s.manager.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session 不存在"})
		return
	}
	bars, err := s.manager.Bars(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": id,
		"symbol":     sess.Symbol,
		"period":     sess.Period,
		"count":      len(bars),
		"bars":       bars,
	})
}

func (s *Server) handleChartView(c *gin.Context) {
	var buf bytes.Buffer
	err := s.manager.Render(c.Param("id"), &buf)
	switch {
	case errors.Is(err, widget.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, widget.ErrNotRenderable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) handleChartExport(c *gin.Context) {
	id := c.Param("id")
	sess, ok := s.manager.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session 不存在"})
		return
	}
	bars, err := s.manager.Bars(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	data := export.BuildSeriesCSV(bars, export.CSVOptions{
		DateOnly:       export.DateOnlySpan(bars),
		PricePrecision: export.PrecisionAuto,
	})
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(sess.Symbol, sess.Period)+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(data))
}

func (s *Server) handleChartSnapshot(c *gin.Context) {
	if !s.capturer.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot 功能未开启"})
		return
	}
	id := c.Param("id")
	if _, ok := s.manager.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session 不存在"})
		return
	}
	png, err := s.capturer.Capture(c.Request.Context(), s.baseURL+"/api/chart/"+id+"/view")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) handleDeleteChart(c *gin.Context) {
	if err := s.manager.Unmount(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	logger.Infof("[http] 服务监听 %s", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
