// Package preset 管理 presets.yaml 里保存的组合模板。写入走
// 临时文件加原子替换,替换前在 backups/ 下留一份带时间戳的备份。
package preset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"etfviz/internal/market"
	"etfviz/internal/portfolio"
)

// BuiltinName 是内置示例组合。文件里没有同名条目时始终可用,
// 用户定义同名条目则覆盖内置值。
const BuiltinName = "example"

const backupKeep = 10

// File 对应 presets.yaml 的整体结构。
type File struct {
	Presets map[string]Entry `yaml:"presets"`
}

// Entry 是一个组合模板。
type Entry struct {
	Tickers     []string `yaml:"tickers"`
	Period      string   `yaml:"period,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// Store 负责 presets.yaml 的读写。
type Store struct {
	path string
	mu   sync.RWMutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func builtinExample() Entry {
	return Entry{
		Tickers:     []string{"AAPL", "GOOGL", "MSFT", "TSLA"},
		Period:      "6mo",
		Description: "Large-cap tech sample portfolio",
	}
}

// load 读文件并叠加内置条目。文件不存在视为空文件。
func (s *Store) load() (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	if _, ok := cfg.Presets[BuiltinName]; !ok {
		cfg.Presets[BuiltinName] = builtinExample()
	}
	return cfg, nil
}

func (s *Store) readLocked() (*File, error) {
	var cfg File
	data, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("读取 presets.yaml 失败: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("解析 presets.yaml 失败: %w", err)
		}
	}
	if cfg.Presets == nil {
		cfg.Presets = make(map[string]Entry)
	}
	return &cfg, nil
}

// List 返回全部模板名,内置条目包含在内,按字典序排列。
func (s *Store) List() ([]string, error) {
	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cfg.Presets))
	for name := range cfg.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// All 返回全部模板。
func (s *Store) All() (map[string]Entry, error) {
	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	return cfg.Presets, nil
}

// Get 按名字取模板。
func (s *Store) Get(name string) (Entry, error) {
	cfg, err := s.load()
	if err != nil {
		return Entry{}, err
	}
	e, ok := cfg.Presets[strings.TrimSpace(name)]
	if !ok {
		return Entry{}, fmt.Errorf("preset '%s' 不存在", name)
	}
	return e, nil
}

// Save 新建或覆盖模板,写入前校验并规整内容。
func (s *Store) Save(name string, e Entry) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("preset 名不能为空")
	}
	tickers, err := portfolio.NormalizeTickers(e.Tickers)
	if err != nil {
		return err
	}
	period, err := market.NormalizePeriod(e.Period)
	if err != nil {
		return err
	}
	e.Tickers = tickers
	e.Period = period

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.readLocked()
	if err != nil {
		return err
	}
	cfg.Presets[name] = e
	return s.writeLocked(cfg)
}

// Delete 删除用户定义的模板。内置条目不落盘,删不掉。
func (s *Store) Delete(name string) error {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.readLocked()
	if err != nil {
		return err
	}
	if _, ok := cfg.Presets[name]; !ok {
		if name == BuiltinName {
			return fmt.Errorf("内置 preset '%s' 不可删除", name)
		}
		return fmt.Errorf("preset '%s' 不存在", name)
	}
	delete(cfg.Presets, name)
	return s.writeLocked(cfg)
}

// writeLocked 先备份旧文件,再经临时文件原子替换。
func (s *Store) writeLocked(cfg *File) error {
	if err := s.backup(); err != nil {
		return fmt.Errorf("备份失败: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化 presets 失败: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("替换 presets.yaml 失败: %w", err)
	}
	return nil
}

func (s *Store) backup() error {
	src, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer src.Close()

	backupDir := filepath.Join(filepath.Dir(s.path), "backups")
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return err
	}

	timestamp := time.Now().Format("20060102_150405")
	dst, err := os.Create(filepath.Join(backupDir, fmt.Sprintf("presets_%s.yaml", timestamp)))
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	s.cleanOldBackups(backupDir, backupKeep)
	return nil
}

func (s *Store) cleanOldBackups(dir string, keep int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var backups []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "presets_") && strings.HasSuffix(e.Name(), ".yaml") {
			backups = append(backups, filepath.Join(dir, e.Name()))
		}
	}
	if len(backups) <= keep {
		return
	}
	sort.Strings(backups)
	for i := 0; i < len(backups)-keep; i++ {
		os.Remove(backups[i])
	}
}
