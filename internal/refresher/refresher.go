// Package refresher 按 cron 周期把 preset 里出现的标的重新拉一遍,
// 让缓存保持温热。走的是带缓存的行情源:TTL 内的条目是空操作,
// 过期条目才会真正回源,所以刷新间隔配得比 TTL 短也不会打爆上游。
package refresher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"etfviz/internal/logger"
	"etfviz/internal/market"
	"etfviz/internal/preset"
)

// PresetLister 提供需要预热的组合模板。
type PresetLister interface {
	All() (map[string]preset.Entry, error)
}

// Params 控制刷新节奏。
type Params struct {
	// Cron 是 6 字段 cron 表达式(含秒)。
	Cron string
	// RunOnStart 启动后立刻先刷一轮。
	RunOnStart bool
	// Timeout 单轮刷新的总超时。
	Timeout time.Duration
}

func (p Params) withDefaults() Params {
	if p.Cron == "" {
		p.Cron = "0 0 * * * *"
	}
	if p.Timeout <= 0 {
		p.Timeout = 5 * time.Minute
	}
	return p
}

// Refresher 定时刷新器。
type Refresher struct {
	cron    *cron.Cron
	src     market.Source
	presets PresetLister
	params  Params

	mu      sync.Mutex
	running bool
}

func New(src market.Source, presets PresetLister, p Params) (*Refresher, error) {
	if src == nil {
		return nil, fmt.Errorf("行情源为空")
	}
	if presets == nil {
		return nil, fmt.Errorf("preset 存储为空")
	}
	p = p.withDefaults()

	r := &Refresher{
		cron:    cron.New(cron.WithSeconds()),
		src:     src,
		presets: presets,
		params:  p,
	}
	if _, err := r.cron.AddFunc(p.Cron, r.RunNow); err != nil {
		return nil, fmt.Errorf("注册刷新任务失败: %w", err)
	}
	return r, nil
}

// Start 启动定时刷新。
func (r *Refresher) Start() {
	r.cron.Start()
	logger.Infof("[refresher] 定时刷新已启动, cron=%s", r.params.Cron)
	if r.params.RunOnStart {
		go r.RunNow()
	}
}

// Stop 停止调度并等待进行中的一轮结束。
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
	logger.Infof("[refresher] 定时刷新已停止")
}

// RunNow 立刻刷一轮。上一轮还没结束时直接跳过。
func (r *Refresher) RunNow() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		logger.Warnf("[refresher] 上一轮刷新未结束, 跳过本轮")
		return
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.params.Timeout)
	defer cancel()

	entries, err := r.presets.All()
	if err != nil {
		logger.Errorf("[refresher] 读取 preset 失败: %v", err)
		return
	}

	// 同一 symbol@period 只刷一次。
	type pair struct{ symbol, period string }
	seen := make(map[pair]struct{})
	start := time.Now()
	var ok, fail int
	for _, e := range entries {
		period, err := market.NormalizePeriod(e.Period)
		if err != nil {
			continue
		}
		for _, sym := range e.Tickers {
			key := pair{sym, period}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if _, err := r.src.FetchHistory(ctx, sym, period); err != nil {
				fail++
				logger.Warnf("[refresher] 刷新 %s@%s 失败: %v", sym, period, err)
				continue
			}
			ok++
		}
	}
	logger.Infof("[refresher] 刷新完成: %d 成功, %d 失败, 耗时 %v", ok, fail, time.Since(start))
}
