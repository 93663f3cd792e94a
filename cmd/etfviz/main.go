package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"etfviz/internal/config"
	"etfviz/internal/gateway/binance"
	"etfviz/internal/gateway/yahoo"
	"etfviz/internal/logger"
	"etfviz/internal/market"
	"etfviz/internal/portfolio"
	"etfviz/internal/preset"
	"etfviz/internal/refresher"
	"etfviz/internal/snapshot"
	"etfviz/internal/store"
	httpserver "etfviz/internal/transport/http"
	"etfviz/internal/widget"
)

func main() {
	var (
		cfgPath    = flag.String("config", "", "TOML 配置文件路径(留空用默认配置)")
		preview    = flag.String("preview", "", "不起服务,构建一次组合并打印汇总表;逗号分隔 tickers")
		prevPeriod = flag.String("period", "", "preview 模式的周期(默认 1y)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)
	logger.Infof("[main] etfviz 启动")

	src, err := newSource(cfg)
	if err != nil {
		logger.Errorf("[main] 初始化行情源失败: %v", err)
		os.Exit(1)
	}

	seriesStore := newStore(cfg)
	cached, err := market.NewCachedSource(src, seriesStore, cfg.Source.CacheTTL)
	if err != nil {
		logger.Errorf("[main] 初始化缓存失败: %v", err)
		os.Exit(1)
	}
	logger.Infof("[main] 行情源: %s, 缓存 TTL %v", cached.Name(), cfg.Source.CacheTTL)

	if *preview != "" {
		code := runPreview(cached, *preview, *prevPeriod)
		src.Close()
		seriesStore.Close()
		os.Exit(code)
	}

	presets := preset.NewStore(cfg.Presets.Path)
	manager := widget.NewManager(widget.Params{
		Flavor:      cfg.Chart.Flavor,
		MaxSessions: cfg.Chart.MaxSessions,
	})
	logger.Infof("[main] 图表组件: %s", cfg.Chart.Flavor)

	var capturer *snapshot.Capturer
	if cfg.Snapshot.Enabled {
		capturer = snapshot.NewCapturer(snapshot.Config{
			Enabled:    true,
			ChromePath: cfg.Snapshot.ChromePath,
			Timeout:    cfg.Snapshot.Timeout,
			Width:      cfg.Snapshot.Width,
			Height:     cfg.Snapshot.Height,
		})
		logger.Infof("[main] 截图功能已开启")
	}

	srv, err := httpserver.NewServer(httpserver.Config{
		Addr:          cfg.Server.Listen,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		Source:        cached,
		Manager:       manager,
		Presets:       presets,
		Capturer:      capturer,
	})
	if err != nil {
		logger.Errorf("[main] 初始化 HTTP 服务失败: %v", err)
		os.Exit(1)
	}

	if cfg.Refresh.Enabled {
		ref, err := refresher.New(cached, presets, refresher.Params{
			Cron:       cfg.Refresh.Cron,
			RunOnStart: cfg.Refresh.RunOnStart,
			Timeout:    cfg.Refresh.Timeout,
		})
		if err != nil {
			logger.Errorf("[main] 初始化定时刷新失败: %v", err)
			os.Exit(1)
		}
		ref.Start()
		defer ref.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Infof("[main] 收到退出信号, 开始停机")
		cancel()
	}()

	err = srv.Start(ctx)

	manager.Close()
	src.Close()
	if cerr := seriesStore.Close(); cerr != nil {
		logger.Warnf("[main] 关闭存储失败: %v", cerr)
	}
	if err != nil {
		logger.Errorf("[main] HTTP 服务异常退出: %v", err)
		os.Exit(1)
	}
	logger.Infof("[main] etfviz 已退出")
}

// newSource 按配置实例化行情源。
func newSource(cfg *config.Config) (market.Source, error) {
	switch cfg.Source.Provider {
	case "binance":
		return binance.New(binance.Config{
			APIKey:      cfg.Source.Binance.APIKey,
			APISecret:   cfg.Source.Binance.APISecret,
			UseTestnet:  cfg.Source.Binance.Testnet,
			HTTPTimeout: cfg.Source.Binance.Timeout,
		})
	default:
		return yahoo.New(yahoo.Config{
			BaseURL:     cfg.Source.Yahoo.BaseURL,
			UserAgent:   cfg.Source.Yahoo.UserAgent,
			ProxyURL:    cfg.Source.Yahoo.ProxyURL,
			HTTPTimeout: cfg.Source.Yahoo.Timeout,
		})
	}
}

// newStore 按配置实例化序列存储。sqlite 打不开时退回内存存储,
// 服务照常可用,只是重启后缓存清零。
func newStore(cfg *config.Config) store.SeriesStore {
	if cfg.Store.Driver == "sqlite" {
		s, err := store.NewSQLiteSeriesStore(cfg.Store.Path)
		if err != nil {
			logger.Warnf("[main] 初始化 sqlite 存储失败, 退回内存存储: %v", err)
			return store.NewMemorySeriesStore()
		}
		logger.Infof("[main] K 线存储: sqlite (%s)", cfg.Store.Path)
		return s
	}
	logger.Infof("[main] K 线存储: memory")
	return store.NewMemorySeriesStore()
}

// runPreview 构建一次组合并把汇总表打到标准输出。
func runPreview(src market.Source, tickersCSV, rawPeriod string) int {
	tickers, err := portfolio.NormalizeTickers(strings.Split(tickersCSV, ","))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	period, err := market.NormalizePeriod(rawPeriod)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Infof("[preview] 构建组合: %v @ %s", tickers, period)
	stocks := portfolio.FetchAll(ctx, src, tickers, period)
	res, err := portfolio.Build(stocks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "构建组合失败: %v\n", err)
		return 1
	}
	fmt.Println(portfolio.RenderSummaryTable(res))
	return 0
}
