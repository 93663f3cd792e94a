// Package snapshot 用无头 Chrome 把图表页面截成 PNG。
// 机器上没有 Chrome 时该功能不可用,调用方应按配置开关降级。
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"etfviz/internal/logger"
)

// Config 控制截图行为。
type Config struct {
	Enabled bool
	// ChromePath 留空时由 chromedp 自行探测浏览器。
	ChromePath string
	Timeout    time.Duration
	Width      int
	Height     int
	// WaitSelector 截图前等待的元素,默认等 ECharts 的 canvas。
	WaitSelector string
	// SettleDelay 元素出现后再等一小段,让动画画完。
	SettleDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 720
	}
	if c.WaitSelector == "" {
		c.WaitSelector = "canvas"
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	return c
}

// Capturer 截图器,可安全地被多个请求复用。
type Capturer struct {
	cfg Config
}

func NewCapturer(cfg Config) *Capturer {
	return &Capturer{cfg: cfg.withDefaults()}
}

// Enabled 报告截图功能是否开启。
func (c *Capturer) Enabled() bool {
	return c != nil && c.cfg.Enabled
}

// Capture 打开 url 并截取整页 PNG。
func (c *Capturer) Capture(ctx context.Context, url string) ([]byte, error) {
	if c == nil || !c.cfg.Enabled {
		return nil, fmt.Errorf("snapshot 功能未开启")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(c.cfg.Width, c.cfg.Height),
	)
	if c.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ChromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	start := time.Now()
	var buf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(c.cfg.WaitSelector, chromedp.ByQuery),
		chromedp.Sleep(c.cfg.SettleDelay),
		// quality 100 时输出 PNG。
		chromedp.FullScreenshot(&buf, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("截图失败: %w", err)
	}
	logger.Debugf("[snapshot] %s 截图完成, %d 字节, 耗时 %v", url, len(buf), time.Since(start))
	return buf, nil
}
