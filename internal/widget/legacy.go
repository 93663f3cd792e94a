package widget

import (
	"fmt"
	"sync"

	"etfviz/internal/market"
)

// LegacyWidget 模拟老版本组件：只有通用加载入口，没有 symbol/period
// 配置入口，数据集类型也不做约定。
type LegacyWidget struct {
	mu      sync.RWMutex
	dataset any
}

func NewLegacyWidget() *LegacyWidget { return &LegacyWidget{} }

func (w *LegacyWidget) Kind() string { return "legacy" }

// LoadDataset 接收任意数据集。
func (w *LegacyWidget) LoadDataset(data any) error {
	if w == nil {
		return fmt.Errorf("legacy widget 未初始化")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dataset = data
	return nil
}

// Bars 在数据集恰好是 K 线序列时返回它，否则为空。
func (w *LegacyWidget) Bars() []market.Candle {
	if w == nil {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if ks, ok := w.dataset.([]market.Candle); ok {
		return market.CloneSeries(ks)
	}
	return nil
}

func (w *LegacyWidget) Close() error { return nil }
