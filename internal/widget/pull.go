// Package widget 提供若干图表组件实现与会话生命周期管理。
//
// 不同“版本”的组件暴露不同的数据注入入口（注册回调 / 整段替换 /
// 直接赋值 / 通用加载），由配置决定挂载哪种，注入适配器只按入口
// 探测，不关心拿到的具体实现。
package widget

import (
	"fmt"
	"sync"

	"etfviz/internal/chart"
	"etfviz/internal/market"
)

// PullWidget 是拉取式组件：只暴露回调注册入口，持有回调后由组件
// 决定何时调用（这里是页面请求 bars 时）。
type PullWidget struct {
	mu     sync.RWMutex
	fn     chart.BarsRequestFunc
	symbol string
	period string
}

func NewPullWidget() *PullWidget { return &PullWidget{} }

func (w *PullWidget) Kind() string { return "pull" }

// OnBarsRequest 注册拉取回调，重复注册以最后一次为准。
func (w *PullWidget) OnBarsRequest(fn chart.BarsRequestFunc) error {
	if w == nil {
		return fmt.Errorf("pull widget 未初始化")
	}
	if fn == nil {
		return fmt.Errorf("回调不能为空")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fn = fn
	return nil
}

func (w *PullWidget) SetSymbol(symbol string) error {
	if w == nil {
		return fmt.Errorf("pull widget 未初始化")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.symbol = symbol
	return nil
}

func (w *PullWidget) SetPeriod(period string) error {
	if w == nil {
		return fmt.Errorf("pull widget 未初始化")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.period = period
	return nil
}

// Bars 代表组件侧发起的一次数据拉取；未注册回调时返回空。
func (w *PullWidget) Bars() []market.Candle {
	if w == nil {
		return nil
	}
	w.mu.RLock()
	fn := w.fn
	w.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn()
}

func (w *PullWidget) Symbol() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.symbol
}

func (w *PullWidget) Period() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.period
}

// Close 随组件销毁释放持有的回调。
func (w *PullWidget) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fn = nil
	return nil
}
