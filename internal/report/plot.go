package report

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/RMahshie/vthlab/internal/aggregate"
	"github.com/RMahshie/vthlab/internal/extraction"
	"github.com/RMahshie/vthlab/pkg/models"
)

const (
	plotWidth  = 7 * vg.Inch
	plotHeight = 4.5 * vg.Inch
)

type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// PlotVthVsTemperature draws mean Vth against temperature with one series
// per device index and std error bars. The format follows the file
// extension of path (png, svg, pdf).
func PlotVthVsTemperature(summaries []aggregate.Summary, device, method, path string) error {
	series := map[int]*errorPoints{}
	for _, s := range summaries {
		if s.Device != device || s.Method != method {
			continue
		}
		t, ok := models.ParseKelvin(s.Temperature)
		if !ok || math.IsNaN(s.Mean) {
			continue
		}
		std := s.Std
		if math.IsNaN(std) {
			std = 0
		}
		pts := series[s.DeviceIndex]
		if pts == nil {
			pts = &errorPoints{}
			series[s.DeviceIndex] = pts
		}
		pts.XYs = append(pts.XYs, plotter.XY{X: t, Y: s.Mean})
		pts.YErrors = append(pts.YErrors, struct{ Low, High float64 }{std, std})
	}
	if len(series) == 0 {
		return fmt.Errorf("no %s %s results to plot", device, method)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Vth vs temperature (%s, %s)", device, method)
	p.X.Label.Text = "Temperature (K)"
	p.Y.Label.Text = "Vth (V)"
	p.Add(plotter.NewGrid())

	indices := make([]int, 0, len(series))
	for idx := range series {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for i, idx := range indices {
		pts := series[idx]
		sort.Sort(byX{pts})

		line, scatter, err := plotter.NewLinePoints(pts.XYs)
		if err != nil {
			return fmt.Errorf("failed to build series: %w", err)
		}
		line.Color = plotutil.Color(i)
		scatter.Color = plotutil.Color(i)
		scatter.Shape = plotutil.Shape(i)

		bars, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return fmt.Errorf("failed to build error bars: %w", err)
		}
		bars.Color = plotutil.Color(i)

		p.Add(line, scatter, bars)
		p.Legend.Add(models.Record{Device: device, DeviceIndex: idx}.DeviceLabel(), line, scatter)
	}

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// byX sorts error points by temperature keeping errors aligned
type byX struct{ *errorPoints }

func (b byX) Len() int           { return len(b.XYs) }
func (b byX) Less(i, j int) bool { return b.XYs[i].X < b.XYs[j].X }
func (b byX) Swap(i, j int) {
	b.XYs[i], b.XYs[j] = b.XYs[j], b.XYs[i]
	b.YErrors[i], b.YErrors[j] = b.YErrors[j], b.YErrors[i]
}

// PlotTangent draws the transformed sweep, the tangent at the selected
// index and the resulting threshold on the extraction axis.
func PlotTangent(d *extraction.Diagnostics, title, path string) error {
	if len(d.X) == 0 {
		return fmt.Errorf("no samples to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Vg (V)"
	if d.Polarity == models.PMOS {
		p.X.Label.Text = "Vref - Vg (V)"
	}
	p.Y.Label.Text = "Id (A)"
	if d.Method == extraction.Sqrt {
		p.Y.Label.Text = "sqrt(Id) (A^0.5)"
	}
	p.Add(plotter.NewGrid())

	curve := make(plotter.XYs, len(d.X))
	for i := range d.X {
		curve[i] = plotter.XY{X: d.X[i], Y: d.Y[i]}
	}
	sort.Slice(curve, func(i, j int) bool { return curve[i].X < curve[j].X })
	line, scatter, err := plotter.NewLinePoints(curve)
	if err != nil {
		return fmt.Errorf("failed to build curve: %w", err)
	}
	line.Color = plotutil.Color(0)
	scatter.Color = plotutil.Color(0)
	p.Add(line, scatter)
	p.Legend.Add("measured", line, scatter)

	if !math.IsNaN(d.Vth) {
		// PMOS thresholds are reported negated from the reflected axis.
		axisVth := d.Vth
		if d.Polarity == models.PMOS {
			axisVth = -d.Vth
		}
		lo, hi := curve[0].X, curve[len(curve)-1].X
		lo = math.Min(lo, axisVth)
		tangent := plotter.XYs{
			{X: lo, Y: d.TangentAt(lo)},
			{X: hi, Y: d.TangentAt(hi)},
		}
		tl, err := plotter.NewLine(tangent)
		if err != nil {
			return fmt.Errorf("failed to build tangent: %w", err)
		}
		tl.Color = plotutil.Color(1)
		tl.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(tl)
		p.Legend.Add(fmt.Sprintf("tangent (gm=%s A/V)", num(d.Slope)), tl)

		marker, err := plotter.NewScatter(plotter.XYs{{X: axisVth, Y: 0}})
		if err != nil {
			return fmt.Errorf("failed to build marker: %w", err)
		}
		marker.Color = plotutil.Color(2)
		marker.Shape = plotutil.Shape(2)
		marker.Radius = vg.Points(4)
		p.Add(marker)
		p.Legend.Add(fmt.Sprintf("Vth=%s V", num(d.Vth)), marker)
	}

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
