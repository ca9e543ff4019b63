package aggregate

import (
	"math"
	"sort"

	"github.com/RMahshie/vthlab/internal/extraction"
	"github.com/RMahshie/vthlab/pkg/models"
)

// Drain biases excluded from temperature coefficients: the NMOS zero-bias
// sweep and the PMOS sweep with the drain on the rail.
const (
	nmosMinDrainBias = 0.001
	pmosMaxDrainBias = 1.19
)

// Coefficient is dVth/dT at one temperature of a (device, method, Vd) series
type Coefficient struct {
	Device      string
	Method      string
	DrainBias   float64
	Temperature float64
	Vth         float64
	DvthDt      float64 // V/K
}

// Filter narrows the records fed to TemperatureCoefficients. Empty fields
// match everything.
type Filter struct {
	Device string
	Method string
}

type seriesKey struct {
	device    string
	method    string
	drainBias float64
}

// TemperatureCoefficients differentiates Vth against temperature for each
// (device, method, drain bias) series. Duplicate temperatures are averaged;
// series with fewer than two distinct temperatures are skipped, as are
// non-finite derivatives.
func TemperatureCoefficients(records []models.Record, f Filter) []Coefficient {
	series := map[seriesKey]map[float64][]float64{}
	for _, rec := range records {
		if !rec.OK() || rec.Device == "" {
			continue
		}
		if (f.Device != "" && rec.Device != f.Device) || (f.Method != "" && rec.Method != f.Method) {
			continue
		}
		if excludedBias(rec.Device, rec.DrainBias) {
			continue
		}
		t, ok := kelvinOf(rec.Temperature)
		if !ok {
			continue
		}
		k := seriesKey{rec.Device, rec.Method, rec.DrainBias}
		if series[k] == nil {
			series[k] = map[float64][]float64{}
		}
		series[k][t] = append(series[k][t], rec.VthVolts)
	}

	keys := make([]seriesKey, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.device != b.device {
			return a.device < b.device
		}
		if a.method != b.method {
			return a.method < b.method
		}
		return a.drainBias < b.drainBias
	})

	var out []Coefficient
	for _, k := range keys {
		temps, vth := averaged(series[k])
		if len(temps) < 2 {
			continue
		}
		deriv := extraction.Gradient(vth, temps)
		for i := range temps {
			if math.IsNaN(deriv[i]) || math.IsInf(deriv[i], 0) {
				continue
			}
			out = append(out, Coefficient{
				Device:      k.device,
				Method:      k.method,
				DrainBias:   k.drainBias,
				Temperature: temps[i],
				Vth:         vth[i],
				DvthDt:      deriv[i],
			})
		}
	}
	return out
}

func excludedBias(device string, vd float64) bool {
	switch device {
	case models.NMOS.String():
		return vd <= nmosMinDrainBias
	case models.PMOS.String():
		return vd >= pmosMaxDrainBias
	default:
		return false
	}
}

// averaged returns ascending temperatures with the mean Vth at each
func averaged(byTemp map[float64][]float64) ([]float64, []float64) {
	temps := make([]float64, 0, len(byTemp))
	for t := range byTemp {
		temps = append(temps, t)
	}
	sort.Float64s(temps)

	vth := make([]float64, len(temps))
	for i, t := range temps {
		vth[i], _ = meanStd(byTemp[t])
	}
	return temps, vth
}
