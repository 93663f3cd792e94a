package widget

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"etfviz/internal/chart"
	"etfviz/internal/logger"
	"etfviz/internal/market"

	"github.com/google/uuid"
)

// 可挂载的组件风格。
const (
	FlavorPull    = "pull"
	FlavorECharts = "echarts"
	FlavorBuffer  = "buffer"
	FlavorLegacy  = "legacy"
)

var (
	ErrSessionNotFound = errors.New("session 不存在")
	// ErrNotRenderable 表示该组件不支持服务端渲染页面。
	ErrNotRenderable = errors.New("该组件不支持服务端渲染")
)

// Handle 是所有组件实现共有的生命周期面。数据注入入口不在这里：
// 那部分是版本相关的，由注入适配器自行探测。
type Handle interface {
	Kind() string
	Bars() []market.Candle
	Close() error
}

// renderer 由支持服务端渲染的组件实现。
type renderer interface {
	Render(out io.Writer) error
}

// Session 是一次挂载的快照，供 API 返回。
type Session struct {
	ID        string       `json:"session_id"`
	Symbol    string       `json:"symbol"`
	Period    string       `json:"period"`
	Widget    string       `json:"widget"`
	BarCount  int          `json:"bar_count"`
	Report    chart.Report `json:"report"`
	CreatedAt time.Time    `json:"created_at"`
}

type session struct {
	snap   Session
	handle Handle
}

// Params 控制 Manager 行为。
type Params struct {
	Flavor      string
	MaxSessions int
}

func (p *Params) withDefaults() Params {
	out := *p
	switch out.Flavor {
	case FlavorPull, FlavorECharts, FlavorBuffer, FlavorLegacy:
	default:
		out.Flavor = FlavorPull
	}
	if out.MaxSessions <= 0 {
		out.MaxSessions = 128
	}
	return out
}

// Manager 持有组件实例：挂载时创建并注入，卸载时销毁。
type Manager struct {
	mu       sync.RWMutex
	params   Params
	sessions map[string]*session
}

func NewManager(p Params) *Manager {
	return &Manager{
		params:   p.withDefaults(),
		sessions: make(map[string]*session),
	}
}

// newHandle 按配置的风格实例化组件。
func (m *Manager) newHandle() Handle {
	switch m.params.Flavor {
	case FlavorECharts:
		return NewEChartsWidget()
	case FlavorBuffer:
		return NewBufferWidget()
	case FlavorLegacy:
		return NewLegacyWidget()
	default:
		return NewPullWidget()
	}
}

// Mount 创建组件并注入序列，每次挂载恰好注入一次。
// 全部策略失败时会话仍然保留（空图表），由调用方通过 Report 感知。
func (m *Manager) Mount(symbol, period string, series []market.Candle) (Session, error) {
	if m == nil {
		return Session{}, fmt.Errorf("manager 未初始化")
	}
	h := m.newHandle()
	rep, err := chart.Provision(h, series, chart.Config{Symbol: symbol, Period: period})
	if err != nil {
		h.Close()
		return Session{}, fmt.Errorf("挂载 %s 失败: %w", symbol, err)
	}

	s := &session{
		snap: Session{
			ID:        uuid.NewString(),
			Symbol:    symbol,
			Period:    period,
			Widget:    h.Kind(),
			BarCount:  len(series),
			Report:    rep,
			CreatedAt: time.Now(),
		},
		handle: h,
	}
	if !rep.Succeeded() {
		logger.Warnf("[widget] 会话 %s (%s) 注入全部失败，保留空图表", s.snap.ID, symbol)
	} else {
		logger.Infof("[widget] 挂载 %s 会话 %s: %s via %s", symbol, s.snap.ID, h.Kind(), rep.Strategy)
	}

	m.mu.Lock()
	m.evictLocked()
	m.sessions[s.snap.ID] = s
	m.mu.Unlock()
	return s.snap, nil
}

// evictLocked 超过上限时按创建时间淘汰最老的会话。
func (m *Manager) evictLocked() {
	for len(m.sessions) >= m.params.MaxSessions {
		var oldest *session
		for _, s := range m.sessions {
			if oldest == nil || s.snap.CreatedAt.Before(oldest.snap.CreatedAt) {
				oldest = s
			}
		}
		if oldest == nil {
			return
		}
		oldest.handle.Close()
		delete(m.sessions, oldest.snap.ID)
		logger.Warnf("[widget] 会话数达到上限，淘汰 %s", oldest.snap.ID)
	}
}

// Get 返回会话快照。
func (m *Manager) Get(id string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	return s.snap, true
}

// Bars 从组件视角取数据：拉取式组件在这里才真正调用注册的回调。
func (m *Manager) Bars(id string) ([]market.Candle, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.handle.Bars(), nil
}

// Render 渲染会话的图表页面；组件不支持时返回 ErrNotRenderable。
func (m *Manager) Render(id string, out io.Writer) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	r, ok := s.handle.(renderer)
	if !ok {
		return ErrNotRenderable
	}
	return r.Render(out)
}

// Unmount 销毁组件并移除会话；组件销毁负责解除其持有的回调。
func (m *Manager) Unmount(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	if err := s.handle.Close(); err != nil {
		logger.Warnf("[widget] 销毁会话 %s 组件失败: %v", id, err)
	}
	logger.Infof("[widget] 卸载会话 %s", id)
	return nil
}

// List 返回全部会话快照，按创建时间倒序。
func (m *Manager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Close 卸载全部会话，进程退出时调用。
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.handle.Close()
		delete(m.sessions, id)
	}
}
