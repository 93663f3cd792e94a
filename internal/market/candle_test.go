package market

import (
	"math"
	"strings"
	"testing"
)

func mkCandle(openTime int64, o, h, l, c, v float64) Candle {
	return Candle{OpenTime: openTime, CloseTime: openTime + 86399999, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestValidateSeries(t *testing.T) {
	cases := []struct {
		name    string
		ks      []Candle
		wantErr bool
	}{
		{"空序列合法", nil, false},
		{"正常序列", []Candle{mkCandle(1000, 10, 12, 9, 11, 100), mkCandle(2000, 11, 13, 10, 12, 80)}, false},
		{"时间戳重复", []Candle{mkCandle(1000, 10, 12, 9, 11, 100), mkCandle(1000, 11, 13, 10, 12, 80)}, true},
		{"时间戳倒序", []Candle{mkCandle(2000, 10, 12, 9, 11, 100), mkCandle(1000, 11, 13, 10, 12, 80)}, true},
		{"high 低于 close", []Candle{mkCandle(1000, 10, 10.5, 9, 11, 100)}, true},
		{"low 高于 open", []Candle{mkCandle(1000, 10, 12, 10.5, 11, 100)}, true},
		{"NaN 值", []Candle{mkCandle(1000, math.NaN(), 12, 9, 11, 100)}, true},
		{"负成交量", []Candle{mkCandle(1000, 10, 12, 9, 11, -1)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSeries(tc.ks)
			if tc.wantErr && err == nil {
				t.Fatalf("期望校验失败，实际通过")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("期望校验通过，实际失败: %v", err)
			}
		})
	}
}

func TestCloneSeries(t *testing.T) {
	src := []Candle{mkCandle(1000, 10, 12, 9, 11, 100)}
	dst := CloneSeries(src)
	dst[0].Close = 99
	if src[0].Close == 99 {
		t.Fatalf("CloneSeries 未隔离底层数组")
	}
	if CloneSeries(nil) != nil {
		t.Fatalf("nil 输入应返回 nil")
	}
}

func TestNormalizePeriod(t *testing.T) {
	for _, p := range ValidPeriods {
		got, err := NormalizePeriod(strings.ToUpper(p))
		if err != nil || got != p {
			t.Fatalf("NormalizePeriod(%q) = %q, %v", p, got, err)
		}
	}
	if got, err := NormalizePeriod(""); err != nil || got != DefaultPeriod {
		t.Fatalf("空周期应回落到默认值, got %q, %v", got, err)
	}
	if _, err := NormalizePeriod("7w"); err == nil {
		t.Fatalf("非法周期应报错")
	}
}

func TestLastClose(t *testing.T) {
	if LastClose(nil) != 0 {
		t.Fatalf("空序列 LastClose 应为 0")
	}
	ks := []Candle{mkCandle(1000, 10, 12, 9, 11, 100), mkCandle(2000, 11, 13, 10, 12.5, 80)}
	if got := LastClose(ks); got != 12.5 {
		t.Fatalf("LastClose = %v, want 12.5", got)
	}
}
