package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const chartHeight = "420px"

// RenderHTML writes f as a standalone HTML page with an interactive chart.
func RenderHTML(w io.Writer, f *Figure) error {
	if f == nil {
		return fmt.Errorf("nil figure")
	}
	if len(f.Labels) != len(f.Values) {
		return fmt.Errorf("figure %s has %d labels and %d values", f.ID, len(f.Labels), len(f.Values))
	}

	init := charts.WithInitializationOpts(opts.Initialization{
		PageTitle: f.Title,
		Width:     "100%",
		Height:    chartHeight,
	})
	title := charts.WithTitleOpts(opts.Title{Title: f.Title})

	switch f.Kind {
	case KindPie:
		pie := charts.NewPie()
		pie.SetGlobalOptions(init, title)
		items := make([]opts.PieData, len(f.Labels))
		for i, label := range f.Labels {
			items[i] = opts.PieData{Name: label, Value: f.Values[i]}
		}
		pie.AddSeries(f.YLabel, items)
		return pie.Render(w)

	case KindLine:
		line := charts.NewLine()
		line.SetGlobalOptions(init, title,
			charts.WithXAxisOpts(opts.XAxis{Name: f.XLabel}),
			charts.WithYAxisOpts(opts.YAxis{Name: f.YLabel}),
		)
		points := make([]opts.LineData, len(f.Values))
		for i, v := range f.Values {
			points[i] = opts.LineData{Value: v}
		}
		line.SetXAxis(f.Labels).AddSeries(f.YLabel, points)
		return line.Render(w)

	default:
		bar := charts.NewBar()
		bar.SetGlobalOptions(init, title,
			charts.WithXAxisOpts(opts.XAxis{Name: f.XLabel}),
			charts.WithYAxisOpts(opts.YAxis{Name: f.YLabel}),
		)
		bars := make([]opts.BarData, len(f.Values))
		for i, v := range f.Values {
			bars[i] = opts.BarData{Value: v}
		}
		bar.SetXAxis(f.Labels).AddSeries(f.YLabel, bars)
		return bar.Render(w)
	}
}
