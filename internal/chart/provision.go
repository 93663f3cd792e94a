package chart

import (
	"errors"
	"fmt"

	"etfviz/internal/logger"
	"etfviz/internal/market"
)

var (
	// ErrNilHandle 表示调用方传入了空的组件引用，注入直接中止。
	ErrNilHandle = errors.New("widget handle 为空")
	// ErrNotSupported 表示组件未暴露当前策略的入口。
	ErrNotSupported = errors.New("entry point not supported")
)

// Config 携带注入成功后要应用的两项显示配置。
type Config struct {
	Symbol string
	Period string
}

// Attempt 记录一次策略尝试的结果。
type Attempt struct {
	Strategy string `json:"strategy"`
	OK       bool   `json:"ok"`
	Reason   string `json:"reason,omitempty"`
}

// ConfigCall 记录一次注入后配置调用的结果。
type ConfigCall struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Report 是一次注入的完整结果。Strategy 为获胜策略名，全部失败时为空；
// Attempts 按尝试顺序记录每个策略的结果。
type Report struct {
	Strategy   string       `json:"strategy,omitempty"`
	Attempts   []Attempt    `json:"attempts"`
	PostConfig []ConfigCall `json:"post_config,omitempty"`
}

// Succeeded 报告是否有策略成功。
func (r Report) Succeeded() bool { return r.Strategy != "" }

// Failures 返回失败的尝试记录。
func (r Report) Failures() []Attempt {
	var out []Attempt
	for _, a := range r.Attempts {
		if !a.OK {
			out = append(out, a)
		}
	}
	return out
}

// Provision 把 series 注入 handle 指向的图表组件。
//
// 策略按固定优先级尝试：注册回调 > 整段替换 > 直接赋值 > 通用加载。
// 单个策略的失败（入口缺失、返回错误、panic）只导致落入下一个策略；
// 全部失败返回零值 Strategy 的 Report 而非错误，由调用方决定如何
// 处理（通常是保留空图表）。唯一会返回 error 的情况是 handle 为 nil。
//
// series 原样转交，包括空序列；本函数不做任何校验或拷贝，也绝不修改
// 传入的 K 线。注入同步完成；回调式组件之后何时来拉数据由组件自己
// 掌握，这里不等待。
func Provision(handle any, series []market.Candle, cfg Config) (Report, error) {
	if handle == nil {
		return Report{}, ErrNilHandle
	}

	strategies := []struct {
		name string
		run  func() error
	}{
		{StrategyCallbackRegistration, func() error {
			r, ok := handle.(DataRequestRegistrar)
			if !ok {
				return ErrNotSupported
			}
			return r.OnBarsRequest(func() []market.Candle { return series })
		}},
		{StrategyBulkReplace, func() error {
			r, ok := handle.(BarsReplacer)
			if !ok {
				return ErrNotSupported
			}
			return r.ReplaceBars(series)
		}},
		{StrategyDirectAssignment, func() error {
			r, ok := handle.(DataAssigner)
			if !ok {
				return ErrNotSupported
			}
			return r.SetData(series)
		}},
		{StrategyGenericLoad, func() error {
			r, ok := handle.(DatasetLoader)
			if !ok {
				return ErrNotSupported
			}
			return r.LoadDataset(series)
		}},
	}

	rep := Report{Attempts: make([]Attempt, 0, len(strategies))}
	for _, st := range strategies {
		if err := runSafely(st.run); err != nil {
			rep.Attempts = append(rep.Attempts, Attempt{Strategy: st.name, Reason: err.Error()})
			logger.Debugf("[chart] 策略 %s 失败: %v", st.name, err)
			continue
		}
		rep.Attempts = append(rep.Attempts, Attempt{Strategy: st.name, OK: true})
		rep.Strategy = st.name
		break
	}

	if !rep.Succeeded() {
		logger.Warnf("[chart] 全部 %d 个注入策略失败，图表将保持空白", len(strategies))
		return rep, nil
	}

	logger.Infof("[chart] ✓ 经 %s 注入 %d 根 K 线", rep.Strategy, len(series))
	rep.PostConfig = applyPostConfig(handle, cfg)
	return rep, nil
}

// runSafely 把协作方的 panic 收敛成普通失败，避免打穿调用方。
func runSafely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// applyPostConfig 依次应用 symbol 与 period 两个幂等配置调用。
// 两者各自允许缺失或失败，只记录不回滚。
func applyPostConfig(handle any, cfg Config) []ConfigCall {
	calls := []ConfigCall{
		runConfigCall("symbol", func() error {
			s, ok := handle.(SymbolSetter)
			if !ok {
				return ErrNotSupported
			}
			return s.SetSymbol(cfg.Symbol)
		}),
		runConfigCall("period", func() error {
			s, ok := handle.(PeriodSetter)
			if !ok {
				return ErrNotSupported
			}
			return s.SetPeriod(cfg.Period)
		}),
	}
	for _, c := range calls {
		if !c.OK {
			logger.Warnf("[chart] 注入后配置 %s 失败: %s", c.Name, c.Reason)
		}
	}
	return calls
}

func runConfigCall(name string, fn func() error) ConfigCall {
	if err := runSafely(fn); err != nil {
		return ConfigCall{Name: name, Reason: err.Error()}
	}
	return ConfigCall{Name: name, OK: true}
}
