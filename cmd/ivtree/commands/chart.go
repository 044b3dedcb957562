package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	chartWidth  = "100%"
	chartHeight = "500px"
)

// buildBenchChart plots the per-operation latency of every bench phase.
func buildBenchChart(result benchResult) *charts.Bar {
	names := make([]string, len(result.phases))
	data := make([]opts.BarData, len(result.phases))

	for i, phase := range result.phases {
		names[i] = phase.name
		perOp := phase.elapsed / time.Duration(max(phase.ops, 1))
		data[i] = opts.BarData{Value: perOp.Nanoseconds()}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "ivtree bench",
			Width:     chartWidth,
			Height:    chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Latency per operation",
			Subtitle: fmt.Sprintf("height %d, %d hits", result.height, result.hits),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ns/op"}),
	)
	bar.SetXAxis(names).AddSeries("ns/op", data)

	return bar
}

func renderBenchChart(w io.Writer, result benchResult) error {
	err := buildBenchChart(result).Render(w)
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}

	return nil
}

func writeBenchChart(path string, result benchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart file: %w", err)
	}

	err = renderBenchChart(f, result)

	closeErr := f.Close()
	if err != nil {
		return err
	}

	if closeErr != nil {
		return fmt.Errorf("closing chart file: %w", closeErr)
	}

	return nil
}
