// Package chart 负责把历史 K 线序列注入外部图表组件。
//
// 图表组件是外部协作方，其数据注入入口随版本变化：某个版本可能只支持
// 注册回调拉取，另一个版本只认整段替换或直接赋值。这里不依赖反射去
// 枚举方法，而是把每种入口建模成一个单方法接口，按固定优先级逐个
// 探测，首个成功即停。
package chart

import "etfviz/internal/market"

// BarsRequestFunc 是拉取式回调：组件自行决定何时调用，调用时一次性
// 拿到完整序列。
type BarsRequestFunc func() []market.Candle

// DataRequestRegistrar 支持注册拉取回调的组件入口（最优先）。
type DataRequestRegistrar interface {
	OnBarsRequest(fn BarsRequestFunc) error
}

// BarsReplacer 支持整段替换现有数据的组件入口。
type BarsReplacer interface {
	ReplaceBars(ks []market.Candle) error
}

// DataAssigner 支持直接写入内部数据存储的组件入口。
type DataAssigner interface {
	SetData(ks []market.Candle) error
}

// DatasetLoader 兜底的通用加载入口。
type DatasetLoader interface {
	LoadDataset(data any) error
}

// SymbolSetter / PeriodSetter 是注入成功后的两个幂等配置入口，
// 允许缺失或失败，不影响注入结果。
type SymbolSetter interface {
	SetSymbol(symbol string) error
}

type PeriodSetter interface {
	SetPeriod(period string) error
}

// 策略名随注入结果对外暴露，属于稳定契约。
const (
	StrategyCallbackRegistration = "callback-registration"
	StrategyBulkReplace          = "bulk-replace"
	StrategyDirectAssignment     = "direct-assignment"
	StrategyGenericLoad          = "generic-load"
)
