package widget

import (
	"fmt"
	"io"
	"sync"
	"time"

	"etfviz/internal/market"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// EChartsWidget 只暴露整段替换入口，服务端渲染 K 线页面交给
// go-echarts 完成。
type EChartsWidget struct {
	mu     sync.RWMutex
	bars   []market.Candle
	symbol string
	period string
}

func NewEChartsWidget() *EChartsWidget { return &EChartsWidget{} }

func (w *EChartsWidget) Kind() string { return "echarts" }

// ReplaceBars 整段替换现有数据。
func (w *EChartsWidget) ReplaceBars(ks []market.Candle) error {
	if w == nil {
		return fmt.Errorf("echarts widget 未初始化")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bars = ks
	return nil
}

func (w *EChartsWidget) SetSymbol(symbol string) error {
	if w == nil {
		return fmt.Errorf("echarts widget 未初始化")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.symbol = symbol
	return nil
}

func (w *EChartsWidget) SetPeriod(period string) error {
	if w == nil {
		return fmt.Errorf("echarts widget 未初始化")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.period = period
	return nil
}

func (w *EChartsWidget) Bars() []market.Candle {
	if w == nil {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return market.CloneSeries(w.bars)
}

// Render 输出完整的图表 HTML 页面。
func (w *EChartsWidget) Render(out io.Writer) error {
	if w == nil {
		return fmt.Errorf("echarts widget 未初始化")
	}
	w.mu.RLock()
	bars := market.CloneSeries(w.bars)
	symbol := w.symbol
	period := w.period
	w.mu.RUnlock()

	kline := charts.NewKLine()
	title := symbol
	if title == "" {
		title = "chart"
	}
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "980px", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: period}),
		charts.WithXAxisOpts(opts.XAxis{SplitNumber: 20}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Start: 0, End: 100}),
	)

	x := make([]string, 0, len(bars))
	y := make([]opts.KlineData, 0, len(bars))
	for _, c := range bars {
		x = append(x, barLabel(c))
		// ECharts 蜡烛图取值顺序为 [open, close, low, high]。
		y = append(y, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
	}
	kline.SetXAxis(x).AddSeries("kline", y)
	return kline.Render(out)
}

func (w *EChartsWidget) Close() error { return nil }

// barLabel 按 K 线跨度选择坐标标签：日内含时分，日级只保留日期。
func barLabel(c market.Candle) string {
	ts := time.UnixMilli(c.OpenTime).UTC()
	if c.CloseTime-c.OpenTime < 24*60*60*1000-1 {
		return ts.Format("01-02 15:04")
	}
	return ts.Format("06-01-02")
}
