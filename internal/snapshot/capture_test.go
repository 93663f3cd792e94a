package snapshot

import (
	"context"
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Timeout != 30*time.Second || cfg.Width != 1280 || cfg.Height != 720 {
		t.Fatalf("默认值不符: %+v", cfg)
	}
	if cfg.WaitSelector != "canvas" {
		t.Fatalf("默认等待元素不符: %q", cfg.WaitSelector)
	}
}

func TestCaptureDisabled(t *testing.T) {
	c := NewCapturer(Config{Enabled: false})
	if c.Enabled() {
		t.Fatalf("未开启时 Enabled 应为假")
	}
	if _, err := c.Capture(context.Background(), "http://127.0.0.1/none"); err == nil {
		t.Fatalf("未开启时 Capture 应报错")
	}

	var nilCap *Capturer
	if nilCap.Enabled() {
		t.Fatalf("nil 截图器应视为未开启")
	}
}
