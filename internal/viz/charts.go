package viz

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// CalibrationSeries is the per-iteration history of a staircase search.
type CalibrationSeries struct {
	Title     string
	Std       []float64
	Prob      []float64
	Reversals []bool
	Estimate  float64
}

var errNoData = errors.New("no data to plot")

func (s CalibrationSeries) validate() error {
	if len(s.Std) == 0 {
		return errNoData
	}
	if len(s.Prob) != len(s.Std) {
		return fmt.Errorf("std and prob lengths differ: %d vs %d", len(s.Std), len(s.Prob))
	}
	return nil
}

// CalibrationASCII plots std and p_fall per iteration for the terminal.
func CalibrationASCII(s CalibrationSeries, width, height int) (string, error) {
	if err := s.validate(); err != nil {
		return "", err
	}
	caption := fmt.Sprintf("%s: std estimate %.3f", s.Title, s.Estimate)
	return asciigraph.PlotMany([][]float64{s.Std, s.Prob},
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(3),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
		asciigraph.SeriesLegends("std", "p_fall"),
		asciigraph.Caption(caption),
	), nil
}

// CalibrationPNG writes a std/p_fall line chart to path.
func CalibrationPNG(path string, s CalibrationSeries) error {
	if err := s.validate(); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: use std = %.3f", s.Title, s.Estimate)
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Value"

	stdPts := make(plotter.XYs, len(s.Std))
	probPts := make(plotter.XYs, len(s.Prob))
	revPts := make(plotter.XYs, 0)
	for i := range s.Std {
		stdPts[i] = plotter.XY{X: float64(i), Y: s.Std[i]}
		probPts[i] = plotter.XY{X: float64(i), Y: s.Prob[i]}
		if i < len(s.Reversals) && s.Reversals[i] {
			revPts = append(revPts, plotter.XY{X: float64(i), Y: s.Std[i]})
		}
	}

	stdLine, err := plotter.NewLine(stdPts)
	if err != nil {
		return err
	}
	stdLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	stdLine.Width = vg.Points(1)

	probLine, err := plotter.NewLine(probPts)
	if err != nil {
		return err
	}
	probLine.Color = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	probLine.Width = vg.Points(1)

	p.Add(stdLine, probLine)
	p.Legend.Add("std", stdLine)
	p.Legend.Add("pFall", probLine)

	if len(revPts) > 0 {
		rev, err := plotter.NewScatter(revPts)
		if err != nil {
			return err
		}
		rev.Color = color.Black
		p.Add(rev)
		p.Legend.Add("reversal", rev)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// CalibrationHTML renders an interactive std/p_fall chart page to w.
// Reversal iterations are drawn with a larger marker on the std series.
func CalibrationHTML(w io.Writer, s CalibrationSeries) error {
	if err := s.validate(); err != nil {
		return err
	}

	x := make([]string, len(s.Std))
	stdData := make([]opts.LineData, len(s.Std))
	probData := make([]opts.LineData, len(s.Prob))
	for i := range s.Std {
		x[i] = strconv.Itoa(i + 1)
		stdData[i] = opts.LineData{Value: s.Std[i]}
		if i < len(s.Reversals) && s.Reversals[i] {
			stdData[i].Symbol = "diamond"
			stdData[i].SymbolSize = 10
		}
		probData[i] = opts.LineData{Value: s.Prob[i]}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Calibration", Width: "1000px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: s.Title, Subtitle: fmt.Sprintf("std estimate %.3f", s.Estimate)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "iteration", NameLocation: "middle", NameGap: 25}),
	)
	line.SetXAxis(x).
		AddSeries("std", stdData).
		AddSeries("p_fall", probData)

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}

// HeightsASCII plots one line per named series, such as block heights over
// the frames of a trajectory.
func HeightsASCII(names []string, series [][]float64, width, height int, caption string) (string, error) {
	if len(series) == 0 || len(series[0]) == 0 {
		return "", errNoData
	}
	colors := []asciigraph.AnsiColor{asciigraph.Red, asciigraph.Yellow, asciigraph.Magenta, asciigraph.Cyan, asciigraph.Blue, asciigraph.Green}
	cs := make([]asciigraph.AnsiColor, len(series))
	for i := range cs {
		cs[i] = colors[i%len(colors)]
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(cs...),
		asciigraph.SeriesLegends(names...),
		asciigraph.Caption(caption),
	), nil
}
