package aggregate

import (
	"math"
	"sort"
	"strings"
)

// DefaultCompareThreshold is the absolute agreement, in volts, required
// for a comparison to pass.
const DefaultCompareThreshold = 0.01

// Comparison status values.
const (
	StatusPass    = "PASS"
	StatusFail    = "FAIL"
	StatusMissing = "MISSING"
)

// Reference is an externally produced mean/std for one device label
type Reference struct {
	Temperature float64
	DeviceLabel string
	Avg         float64
	Std         float64
}

// Comparison pairs our summary with a reference row. Either side may be
// missing, in which case its values are NaN and Status is MISSING.
type Comparison struct {
	Temperature float64
	DeviceLabel string
	Method      string
	OursAvg     float64
	OursStd     float64
	RefAvg      float64
	RefStd      float64
	DeltaAvg    float64
	DeltaStd    float64
	Status      string
}

type refKey struct {
	temperature float64
	label       string
}

// Compare joins summaries with references on (temperature, device label).
// A pair fails when either |delta| exceeds threshold. Unmatched rows from
// both sides are kept. Rows are ordered by device label, then temperature,
// then method.
func Compare(summaries []Summary, refs []Reference, threshold float64) []Comparison {
	byKey := map[refKey]Reference{}
	for _, ref := range refs {
		byKey[refKey{ref.Temperature, normalizeLabel(ref.DeviceLabel)}] = ref
	}
	matched := map[refKey]bool{}

	var out []Comparison
	for _, s := range summaries {
		t, ok := kelvinOf(s.Temperature)
		if !ok {
			continue
		}
		k := refKey{t, s.DeviceLabel()}
		c := Comparison{
			Temperature: t,
			DeviceLabel: k.label,
			Method:      s.Method,
			OursAvg:     s.Mean,
			OursStd:     s.Std,
			RefAvg:      math.NaN(),
			RefStd:      math.NaN(),
		}
		if ref, ok := byKey[k]; ok {
			c.RefAvg, c.RefStd = ref.Avg, ref.Std
			matched[k] = true
		}
		out = append(out, finish(c, threshold))
	}

	for _, ref := range refs {
		k := refKey{ref.Temperature, normalizeLabel(ref.DeviceLabel)}
		if matched[k] {
			continue
		}
		out = append(out, finish(Comparison{
			Temperature: k.temperature,
			DeviceLabel: k.label,
			OursAvg:     math.NaN(),
			OursStd:     math.NaN(),
			RefAvg:      ref.Avg,
			RefStd:      ref.Std,
		}, threshold))
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DeviceLabel != b.DeviceLabel {
			return a.DeviceLabel < b.DeviceLabel
		}
		if a.Temperature != b.Temperature {
			return a.Temperature < b.Temperature
		}
		return a.Method < b.Method
	})
	return out
}

func finish(c Comparison, threshold float64) Comparison {
	c.DeltaAvg = c.OursAvg - c.RefAvg
	c.DeltaStd = c.OursStd - c.RefStd
	switch {
	case math.IsNaN(c.OursAvg) || math.IsNaN(c.RefAvg):
		c.Status = StatusMissing
	case math.Abs(c.DeltaAvg) > threshold:
		c.Status = StatusFail
	// A single-chip std is NaN on one side; only the mean is compared then.
	case !math.IsNaN(c.DeltaStd) && math.Abs(c.DeltaStd) > threshold:
		c.Status = StatusFail
	default:
		c.Status = StatusPass
	}
	return c
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func kelvinOf(token string) (float64, bool) {
	v := kelvinOrNaN(token)
	return v, !math.IsNaN(v)
}
