// Package config 加载 TOML 配置文件并补默认值。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config 是整个服务的配置。
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Source   SourceConfig   `toml:"source"`
	Store    StoreConfig    `toml:"store"`
	Chart    ChartConfig    `toml:"chart"`
	Presets  PresetsConfig  `toml:"presets"`
	Refresh  RefreshConfig  `toml:"refresh"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`
	// PublicBaseURL 是无头浏览器访问本服务用的地址,留空按 Listen 推导。
	PublicBaseURL string `toml:"public_base_url"`
}

type SourceConfig struct {
	// Provider 可选 yahoo 或 binance。
	Provider string        `toml:"provider"`
	CacheTTL time.Duration `toml:"cache_ttl"`
	Yahoo    YahooConfig   `toml:"yahoo"`
	Binance  BinanceConfig `toml:"binance"`
}

type YahooConfig struct {
	BaseURL   string        `toml:"base_url"`
	UserAgent string        `toml:"user_agent"`
	ProxyURL  string        `toml:"proxy_url"`
	Timeout   time.Duration `toml:"timeout"`
}

type BinanceConfig struct {
	APIKey    string        `toml:"api_key"`
	APISecret string        `toml:"api_secret"`
	Testnet   bool          `toml:"testnet"`
	Timeout   time.Duration `toml:"timeout"`
}

type StoreConfig struct {
	// Driver 可选 memory 或 sqlite。
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

type ChartConfig struct {
	// Flavor 决定挂载哪种图表部件: pull、echarts、buffer、legacy。
	Flavor      string `toml:"flavor"`
	MaxSessions int    `toml:"max_sessions"`
}

type PresetsConfig struct {
	Path string `toml:"path"`
}

type RefreshConfig struct {
	Enabled    bool          `toml:"enabled"`
	Cron       string        `toml:"cron"`
	RunOnStart bool          `toml:"run_on_start"`
	Timeout    time.Duration `toml:"timeout"`
}

type SnapshotConfig struct {
	Enabled    bool          `toml:"enabled"`
	ChromePath string        `toml:"chrome_path"`
	Timeout    time.Duration `toml:"timeout"`
	Width      int           `toml:"width"`
	Height     int           `toml:"height"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Load 读取 TOML 配置。path 为空时返回纯默认配置;
// 显式给了路径但文件不存在按错误处理。
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8787"
	}
	if c.Source.Provider == "" {
		c.Source.Provider = "yahoo"
	}
	c.Source.Provider = strings.ToLower(strings.TrimSpace(c.Source.Provider))
	if c.Source.CacheTTL <= 0 {
		c.Source.CacheTTL = 15 * time.Minute
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		c.Store.Path = "data/etfviz.db"
	}
	if c.Chart.Flavor == "" {
		c.Chart.Flavor = "echarts"
	}
	c.Chart.Flavor = strings.ToLower(strings.TrimSpace(c.Chart.Flavor))
	if c.Chart.MaxSessions <= 0 {
		c.Chart.MaxSessions = 128
	}
	if c.Presets.Path == "" {
		c.Presets.Path = "presets.yaml"
	}
	if c.Refresh.Cron == "" {
		c.Refresh.Cron = "0 0 * * * *"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate 校验枚举类配置项。
func (c *Config) Validate() error {
	switch c.Source.Provider {
	case "yahoo", "binance":
	default:
		return fmt.Errorf("未知行情源: %s (可选 yahoo/binance)", c.Source.Provider)
	}
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("未知存储驱动: %s (可选 memory/sqlite)", c.Store.Driver)
	}
	switch c.Chart.Flavor {
	case "pull", "echarts", "buffer", "legacy":
	default:
		return fmt.Errorf("未知图表类型: %s (可选 pull/echarts/buffer/legacy)", c.Chart.Flavor)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("未知日志级别: %s", c.Log.Level)
	}
	return nil
}
