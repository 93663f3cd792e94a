package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level 表示日志级别。
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	current atomic.Int32
	std     = log.New(os.Stderr, "", log.LstdFlags)
)

func init() {
	current.Store(int32(LevelInfo))
}

// SetLevel 按名称设置全局级别，未知名称回落到 info。
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		current.Store(int32(LevelDebug))
	case "warn", "warning":
		current.Store(int32(LevelWarn))
	case "error":
		current.Store(int32(LevelError))
	default:
		current.Store(int32(LevelInfo))
	}
}

// SetOutput 重定向日志输出，主要供测试使用。
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

func enabled(l Level) bool {
	return int32(l) >= current.Load()
}

func output(prefix, format string, args ...any) {
	std.Output(3, prefix+" "+fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) {
	if enabled(LevelDebug) {
		output("DEBUG", format, args...)
	}
}

func Infof(format string, args ...any) {
	if enabled(LevelInfo) {
		output("INFO", format, args...)
	}
}

func Warnf(format string, args ...any) {
	if enabled(LevelWarn) {
		output("WARN", format, args...)
	}
}

func Errorf(format string, args ...any) {
	if enabled(LevelError) {
		output("ERROR", format, args...)
	}
}
