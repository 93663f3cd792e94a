package portfolio

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderSummaryTable 把一次组合构建渲染成文本表格，交互式预览与
// 日志里都会用到。
func RenderSummaryTable(res Result) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"TICKER", "BARS", "LAST CLOSE", "RETURN %", "STATUS"})

	for _, s := range res.Stocks {
		if s.Err != nil {
			t.AppendRow(table.Row{s.Ticker, 0, "-", "-", truncate(s.Err.Error(), 40)})
			continue
		}
		last := 0.0
		ret := "-"
		if n := len(s.Bars); n > 0 {
			last = s.Bars[n-1].Close
			if first := s.Bars[0].Close; first != 0 {
				ret = fmt.Sprintf("%+.2f", (last-first)/first*100)
			}
		}
		t.AppendRow(table.Row{s.Ticker, len(s.Bars), fmt.Sprintf("%.2f", last), ret, "ok"})
	}

	p := res.Performance
	t.AppendFooter(table.Row{
		"PORTFOLIO",
		p.NumDataPoints,
		lastPrice(p.Prices),
		fmt.Sprintf("%+.2f", p.TotalReturnPercent),
		fmt.Sprintf("vol %.2f%%", p.AnnualizedVolatilityPercent),
	})
	return t.Render()
}

func lastPrice(prices []float64) string {
	if len(prices) == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", prices[len(prices)-1])
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
