// Package export 把 K 线序列导出为 CSV 下载。
package export

import (
	"math"
	"strconv"
	"strings"
	"time"

	"etfviz/internal/market"
)

// CSVOptions 控制时间格式与价格精度。
type CSVOptions struct {
	// DateOnly 为真时时间列只保留日期。
	DateOnly bool
	Location *time.Location
	// PricePrecision 取 PrecisionAuto 时按价格区间自动决定。
	PricePrecision int
}

const (
	// PrecisionAuto 根据序列价格区间自动决定精度。
	PrecisionAuto = math.MinInt32
	// PrecisionRaw 保留原始精度(等价于 strconv.FormatFloat(..., -1, 64))。
	PrecisionRaw = -1
)

// DateOnlySpan 判断序列是否日级及以上粒度,导出时据此省掉时分。
func DateOnlySpan(ks []market.Candle) bool {
	for _, c := range ks {
		if c.CloseTime-c.OpenTime < 24*60*60*1000-1 {
			return false
		}
	}
	return len(ks) > 0
}

// BuildSeriesCSV 生成带列头的 CSV 文本,空序列返回空串。
func BuildSeriesCSV(ks []market.Candle, opts CSVOptions) string {
	if len(ks) == 0 {
		return ""
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	precision := opts.PricePrecision
	if precision == PrecisionAuto {
		precision = autoPrecision(ks)
	}
	header := "Time"
	if opts.DateOnly {
		header = "Date"
	}
	var b strings.Builder
	b.WriteString(header + ",Open,High,Low,Close,Volume,Trades\n")
	for _, c := range ks {
		ts := time.UnixMilli(c.OpenTime).In(loc)
		label := ts.Format("2006-01-02 15:04")
		if opts.DateOnly {
			label = ts.Format("2006-01-02")
		}
		b.WriteString(label)
		b.WriteByte(',')
		b.WriteString(formatPrice(c.Open, precision))
		b.WriteByte(',')
		b.WriteString(formatPrice(c.High, precision))
		b.WriteByte(',')
		b.WriteString(formatPrice(c.Low, precision))
		b.WriteByte(',')
		b.WriteString(formatPrice(c.Close, precision))
		b.WriteByte(',')
		b.WriteString(formatPlainFloat(c.Volume))
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(c.Trades, 10))
		b.WriteByte('\n')
	}
	return b.String()
}

// Filename 拼下载文件名,非法字符替换成下划线。
func Filename(symbol, period string) string {
	clean := func(s string) string {
		var b strings.Builder
		for _, r := range s {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
				b.WriteRune(r)
			default:
				b.WriteByte('_')
			}
		}
		return b.String()
	}
	name := clean(symbol)
	if name == "" {
		name = "series"
	}
	if p := clean(period); p != "" {
		name += "_" + p
	}
	return name + ".csv"
}

func autoPrecision(ks []market.Candle) int {
	maxVal := 0.0
	for _, c := range ks {
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
			abs := math.Abs(v)
			if abs > maxVal {
				maxVal = abs
			}
		}
	}
	switch {
	case maxVal >= 1000:
		return 1
	case maxVal >= 100:
		return 2
	default:
		return PrecisionRaw
	}
}

func formatPrice(value float64, precision int) string {
	if precision == PrecisionRaw {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	s := strconv.FormatFloat(value, 'f', precision, 64)
	if precision > 0 {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

func formatPlainFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
