// Package extraction computes MOSFET threshold voltage from a gate sweep by
// extrapolating the tangent at the point of maximum transconductance.
package extraction

import (
	"math"

	"github.com/RMahshie/vthlab/pkg/models"
)

const (
	minFloor      = 1e-10
	floorFraction = 1e-3
	minValid      = 5
	minSlope      = 1e-15
	minSamples    = 2
)

// Result is the outcome of one extraction. Vth and GmMax are NaN and Index
// is -1 when nothing could be computed.
type Result struct {
	Vth   float64
	GmMax float64
	Index int
}

// FailedResult is the result reported alongside an extraction error
func FailedResult() Result {
	return Result{Vth: math.NaN(), GmMax: math.NaN(), Index: -1}
}

// Outcome is a Result plus the algorithm that actually ran
type Outcome struct {
	Result
	Used Method
}

// Diagnostics exposes every intermediate of the tangent construction so a
// caller can draw the curve, its derivative and the tangent line.
type Diagnostics struct {
	Method    Method
	Polarity  models.Polarity
	X         []float64 // gate axis, reflected for PMOS
	Y         []float64 // transformed current
	Gm        []float64
	Dgm       []float64
	Valid     []bool
	Index     int
	Slope     float64
	Intercept float64
	Vth       float64 // signed
	GmMax     float64
}

// Result reduces the diagnostics to the reported triple
func (d *Diagnostics) Result() Result {
	return Result{Vth: d.Vth, GmMax: d.GmMax, Index: d.Index}
}

// TangentAt evaluates the tangent line at gate-axis position x
func (d *Diagnostics) TangentAt(x float64) float64 {
	return d.Slope*x + d.Intercept
}

// LinearExtrapolation extracts Vth from Id at maximum gm
func LinearExtrapolation(vg, id []float64, polarity models.Polarity, opts Options) (Result, error) {
	d, err := Diagnose(vg, id, polarity, Traditional, opts)
	if err != nil {
		return FailedResult(), err
	}
	return d.Result(), nil
}

// SquareRoot extracts Vth from sqrt(Id) at maximum d(sqrt(Id))/dVg
func SquareRoot(vg, id []float64, polarity models.Polarity, opts Options) (Result, error) {
	d, err := Diagnose(vg, id, polarity, Sqrt, opts)
	if err != nil {
		return FailedResult(), err
	}
	return d.Result(), nil
}

// Extract runs method on a sweep block. Hybrid resolves to Traditional or
// Sqrt from the block's drain bias.
func Extract(block models.SweepBlock, polarity models.Polarity, method Method, opts Options) (Outcome, error) {
	used := method
	if method == Hybrid {
		used = SelectForBias(block.DrainBias(), opts.HybridThreshold)
	}

	var (
		res Result
		err error
	)
	switch used {
	case Traditional:
		res, err = LinearExtrapolation(block.GateVoltages(), block.DrainCurrents(), polarity, opts)
	case Sqrt:
		res, err = SquareRoot(block.GateVoltages(), block.DrainCurrents(), polarity, opts)
	default:
		return Outcome{Result: FailedResult(), Used: method}, &ConfigError{Field: "method", Value: method.String()}
	}
	return Outcome{Result: res, Used: used}, err
}

// Diagnose runs the shared tangent construction for Traditional or Sqrt
func Diagnose(vg, id []float64, polarity models.Polarity, method Method, opts Options) (*Diagnostics, error) {
	if len(vg) != len(id) || len(vg) < minSamples {
		return nil, &ShapeError{VgLen: len(vg), IdLen: len(id), Min: minSamples}
	}
	if method != Traditional && method != Sqrt {
		return nil, &ConfigError{Field: "method", Value: method.String()}
	}
	if opts.Criterion != MaxGm && opts.Criterion != MaxDgm {
		return nil, &ConfigError{Field: "criterion", Value: opts.Criterion.String()}
	}

	x, y := transform(vg, id, polarity, opts.ReflectionVoltage)
	if method == Sqrt {
		for i := range y {
			y[i] = math.Sqrt(y[i])
		}
	}

	gm := Gradient(y, x)
	dgm := Gradient(gm, x)
	valid := aboveFloor(y, opts.Window)

	metric := gm
	if opts.Criterion == MaxDgm {
		metric = dgm
	}
	idx, ok := argmaxMasked(metric, valid)
	if !ok {
		return nil, ErrNoCandidate
	}

	d := &Diagnostics{
		Method:   method,
		Polarity: polarity,
		X:        x,
		Y:        y,
		Gm:       gm,
		Dgm:      dgm,
		Valid:    valid,
		Index:    idx,
	}

	// Tangent through (x[idx], y[idx]) with the local derivative as slope,
	// so the reported gm is exactly the slope of the drawn line.
	d.Slope = gm[idx]
	d.Intercept = y[idx] - d.Slope*x[idx]
	if !(math.Abs(d.Slope) >= minSlope) {
		d.Vth = math.NaN()
		d.GmMax = nanMax(gm)
		return d, nil
	}

	mag := -d.Intercept / d.Slope
	if polarity == models.PMOS {
		mag = -mag
	}
	d.Vth = mag
	d.GmMax = d.Slope
	return d, nil
}

// transform orients the sweep as a rising curve: PMOS uses |Id| on the
// reflected gate axis, NMOS clips negative leakage to zero.
func transform(vg, id []float64, polarity models.Polarity, ref float64) ([]float64, []float64) {
	x := make([]float64, len(vg))
	y := make([]float64, len(id))
	for i := range vg {
		if polarity == models.PMOS {
			x[i] = Reflect(vg[i], ref)
			y[i] = math.Abs(id[i])
		} else {
			x[i] = vg[i]
			y[i] = math.Max(id[i], 0)
		}
	}
	return x, y
}

// aboveFloor marks samples above the noise floor, or every sample when too
// few clear it.
func aboveFloor(y []float64, window int) []bool {
	floor := math.Max(minFloor, floorFraction*nanMax(y))
	valid := make([]bool, len(y))
	count := 0
	for i, v := range y {
		if v >= floor {
			valid[i] = true
			count++
		}
	}
	need := window
	if need < minValid {
		need = minValid
	}
	if count < need {
		for i := range valid {
			valid[i] = true
		}
	}
	return valid
}

// argmaxMasked returns the first index of the largest non-NaN metric among
// valid samples. Masked samples compete as -Inf; ok is false only when every
// entry is NaN.
func argmaxMasked(metric []float64, valid []bool) (int, bool) {
	best := -1
	bestVal := math.Inf(-1)
	for i, v := range metric {
		if !valid[i] {
			v = math.Inf(-1)
		} else if math.IsNaN(v) {
			continue
		}
		if best == -1 || v > bestVal {
			best, bestVal = i, v
		}
	}
	return best, best != -1
}

func nanMax(values []float64) float64 {
	m := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(m) || v > m {
			m = v
		}
	}
	return m
}
