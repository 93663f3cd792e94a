package widget

import (
	"fmt"
	"sync"

	"etfviz/internal/market"
)

// BufferWidget 只暴露直接赋值入口，把序列存进内部缓冲。
type BufferWidget struct {
	mu     sync.RWMutex
	bars   []market.Candle
	symbol string
	period string
}

func NewBufferWidget() *BufferWidget { return &BufferWidget{} }

func (w *BufferWidget) Kind() string { return "buffer" }

// SetData 直接写入内部数据存储。
func (w *BufferWidget) SetData(ks []market.Candle) error {
	if w == nil {
		return fmt.Errorf("buffer widget 未初始化")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bars = ks
	return nil
}

func (w *BufferWidget) SetSymbol(symbol string) error {
	if w == nil {
		return fmt.Errorf("buffer widget 未初始化")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.symbol = symbol
	return nil
}

func (w *BufferWidget) SetPeriod(period string) error {
	if w == nil {
		return fmt.Errorf("buffer widget 未初始化")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.period = period
	return nil
}

func (w *BufferWidget) Bars() []market.Candle {
	if w == nil {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return market.CloneSeries(w.bars)
}

func (w *BufferWidget) Close() error { return nil }
