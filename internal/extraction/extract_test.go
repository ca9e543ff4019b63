package extraction

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/vthlab/pkg/models"
)

var (
	sweepVg = []float64{0, 0.3, 0.6, 0.9}
	sweepId = []float64{0, 10e-12, 1e-6, 5e-6}
)

// squareLaw builds an NMOS-like sweep with a subthreshold tail below vt and
// k(vg-vt)^2 above it.
func squareLaw(n int, step, vt, k float64) ([]float64, []float64) {
	vg := make([]float64, n)
	id := make([]float64, n)
	for i := range vg {
		vg[i] = float64(i) * step
		if vg[i] > vt {
			id[i] = k * (vg[i] - vt) * (vg[i] - vt)
		} else {
			id[i] = 1e-12 * math.Exp((vg[i]-vt)/0.05)
		}
	}
	return vg, id
}

// mirror turns an NMOS sweep into the PMOS sweep measured against a rail at
// ref, ordered by ascending gate voltage as the parser delivers it.
func mirror(vg, id []float64, ref float64) ([]float64, []float64) {
	samples := make([]models.Sample, len(vg))
	for i := range vg {
		samples[i] = models.Sample{Vg: ref - vg[i], Id: -id[i]}
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].Vg < samples[j].Vg })

	pvg := make([]float64, len(samples))
	pid := make([]float64, len(samples))
	for i, s := range samples {
		pvg[i], pid[i] = s.Vg, s.Id
	}
	return pvg, pid
}

func TestLinearExtrapolation_EndToEnd(t *testing.T) {
	res, err := LinearExtrapolation(sweepVg, sweepId, models.NMOS, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Index)
	assert.InDelta(t, 0.525, res.Vth, 1e-9)
	assert.InDelta(t, 4e-6/0.3, res.GmMax, 1e-12)
	assert.Greater(t, res.Vth, 0.0)
	assert.Less(t, res.Vth, 0.9)
}

func TestSquareRoot_EndToEnd(t *testing.T) {
	res, err := SquareRoot(sweepVg, sweepId, models.NMOS, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Index)
	assert.Greater(t, res.Vth, 0.0)
	assert.Less(t, res.Vth, 0.9)
	assert.InDelta(t, 0.357, res.Vth, 1e-3)
}

func TestDiagnose_TangentMatchesGm(t *testing.T) {
	vg, id := squareLaw(41, 0.03, 0.45, 2e-4)

	for _, method := range []Method{Traditional, Sqrt} {
		for _, crit := range []Criterion{MaxGm, MaxDgm} {
			for _, pol := range []models.Polarity{models.NMOS, models.PMOS} {
				opts := DefaultOptions()
				opts.Criterion = crit
				x, y := vg, id
				if pol == models.PMOS {
					x, y = mirror(vg, id, opts.ReflectionVoltage)
				}

				d, err := Diagnose(x, y, pol, method, opts)
				require.NoError(t, err)

				name := method.String() + "/" + crit.String() + "/" + pol.String()
				assert.Equal(t, d.Gm[d.Index], d.Slope, name)
				assert.Equal(t, d.Slope, d.GmMax, name)
				assert.InDelta(t, d.Y[d.Index], d.TangentAt(d.X[d.Index]), 1e-15, name)

				onAxis := d.Vth
				if pol == models.PMOS {
					onAxis = -d.Vth
				}
				assert.InDelta(t, 0, d.TangentAt(onAxis), 1e-12, name)
			}
		}
	}
}

func TestExtract_PMOSMirrorsNMOS(t *testing.T) {
	vg, id := squareLaw(25, 0.05, 0.4, 1e-4)
	pvg, pid := mirror(vg, id, DefaultReflectionVoltage)
	require.True(t, sort.Float64sAreSorted(pvg))

	for _, method := range []Method{Traditional, Sqrt} {
		n, err := Diagnose(vg, id, models.NMOS, method, DefaultOptions())
		require.NoError(t, err)
		p, err := Diagnose(pvg, pid, models.PMOS, method, DefaultOptions())
		require.NoError(t, err)

		assert.Greater(t, n.Vth, 0.0, method.String())
		assert.Less(t, p.Vth, 0.0, method.String())
		assert.InDelta(t, n.Vth, -p.Vth, 1e-9, method.String())
		assert.InDelta(t, n.GmMax, p.GmMax, 1e-12, method.String())
	}
}

func TestExtract_ReflectionVoltageIsInjectable(t *testing.T) {
	vg, id := squareLaw(25, 0.05, 0.4, 1e-4)
	opts := DefaultOptions()
	opts.ReflectionVoltage = 1.8
	pvg, pid := mirror(vg, id, opts.ReflectionVoltage)

	n, err := LinearExtrapolation(vg, id, models.NMOS, opts)
	require.NoError(t, err)
	p, err := LinearExtrapolation(pvg, pid, models.PMOS, opts)
	require.NoError(t, err)

	assert.InDelta(t, n.Vth, -p.Vth, 1e-9)
}

func TestExtract_ConstantCurrent(t *testing.T) {
	vg := make([]float64, 10)
	id := make([]float64, 10)
	for i := range vg {
		vg[i] = float64(i) * 0.1
		id[i] = 1e-6
	}

	for _, method := range []Method{Traditional, Sqrt} {
		d, err := Diagnose(vg, id, models.NMOS, method, DefaultOptions())
		require.NoError(t, err)
		assert.True(t, math.IsNaN(d.Vth), method.String())
		assert.InDelta(t, 0.0, d.GmMax, 1e-12, method.String())
	}
}

func TestExtract_NegativeLeakageClipped(t *testing.T) {
	id := []float64{-3e-12, -1e-12, 1e-6, 5e-6}

	res, err := LinearExtrapolation(sweepVg, id, models.NMOS, DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 0.525, res.Vth, 1e-9)
}

func TestExtract_ShapeErrors(t *testing.T) {
	tests := []struct {
		name   string
		vg, id []float64
	}{
		{"length mismatch", []float64{0, 1, 2}, []float64{0, 1}},
		{"single sample", []float64{0}, []float64{1e-6}},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := LinearExtrapolation(tt.vg, tt.id, models.NMOS, DefaultOptions())
			var se *ShapeError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, len(tt.vg), se.VgLen)
			assert.Equal(t, len(tt.id), se.IdLen)
			assert.True(t, math.IsNaN(res.Vth))
			assert.Equal(t, -1, res.Index)
		})
	}
}

func TestExtract_ConfigErrors(t *testing.T) {
	_, err := Diagnose(sweepVg, sweepId, models.NMOS, Hybrid, DefaultOptions())
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "method", ce.Field)

	opts := DefaultOptions()
	opts.Criterion = Criterion(9)
	_, err = Diagnose(sweepVg, sweepId, models.NMOS, Traditional, opts)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "criterion", ce.Field)

	_, err = Extract(models.NewSweepBlock(0.1, nil), models.NMOS, Method(7), DefaultOptions())
	require.True(t, errors.As(err, &ce))
}

func TestExtract_AllNaN(t *testing.T) {
	nan := math.NaN()
	_, err := LinearExtrapolation([]float64{0, 1, 2}, []float64{nan, nan, nan}, models.NMOS, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestExtract_MaxDgmPicksCurvaturePeak(t *testing.T) {
	vg, id := squareLaw(41, 0.03, 0.45, 2e-4)
	opts := DefaultOptions()
	opts.Criterion = MaxDgm

	d, err := Diagnose(vg, id, models.NMOS, Traditional, opts)
	require.NoError(t, err)

	for i, v := range d.Dgm {
		if d.Valid[i] {
			assert.LessOrEqual(t, v, d.Dgm[d.Index])
		}
	}
	gm, err := Diagnose(vg, id, models.NMOS, Traditional, DefaultOptions())
	require.NoError(t, err)
	assert.Less(t, d.Index, gm.Index)
}

func TestExtract_Hybrid(t *testing.T) {
	samples := make([]models.Sample, len(sweepVg))
	for i := range sweepVg {
		samples[i] = models.Sample{Vg: sweepVg[i], Id: sweepId[i]}
	}

	tests := []struct {
		vd   float64
		want Method
	}{
		{0.1, Traditional},
		{0.49, Traditional},
		{0.5, Sqrt},
		{1.1, Sqrt},
		{-0.6, Sqrt},
		{-0.2, Traditional},
	}

	for _, tt := range tests {
		out, err := Extract(models.NewSweepBlock(tt.vd, samples), models.NMOS, Hybrid, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, tt.want, out.Used, "vd=%g", tt.vd)

		direct, err := Extract(models.NewSweepBlock(tt.vd, samples), models.NMOS, tt.want, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, direct.Result, out.Result)
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("SQRT")
	require.NoError(t, err)
	assert.Equal(t, Sqrt, m)

	_, err = ParseMethod("cubic")
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "cubic", ce.Value)

	ms, err := ParseMethods(nil)
	require.NoError(t, err)
	assert.Equal(t, []Method{Traditional}, ms)

	ms, err = ParseMethods([]string{"traditional", "hybrid"})
	require.NoError(t, err)
	assert.Equal(t, []Method{Traditional, Hybrid}, ms)
}

func TestParseCriterion(t *testing.T) {
	c, err := ParseCriterion("")
	require.NoError(t, err)
	assert.Equal(t, MaxGm, c)

	c, err = ParseCriterion("max-dgm")
	require.NoError(t, err)
	assert.Equal(t, MaxDgm, c)

	_, err = ParseCriterion("max-id")
	assert.Error(t, err)
}

func TestDefaultTarget(t *testing.T) {
	assert.Equal(t, 0.1, DefaultTarget(models.NMOS, Traditional))
	assert.Equal(t, 1.1, DefaultTarget(models.PMOS, Traditional))
	assert.Equal(t, 1.1, DefaultTarget(models.NMOS, Sqrt))
	assert.Equal(t, 0.0, DefaultTarget(models.PMOS, Sqrt))
}
