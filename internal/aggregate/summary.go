// Package aggregate reduces extraction records to per-device statistics,
// chip pivots, reference comparisons and temperature coefficients.
package aggregate

import (
	"math"
	"regexp"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/RMahshie/vthlab/pkg/models"
)

// Summary is the spread of Vth for one device position across chips
type Summary struct {
	Temperature string
	Device      string
	Method      string
	DeviceIndex int
	Count       int
	Mean        float64
	Std         float64 // sample standard deviation, NaN for a single value
	Min         float64
	Max         float64
}

// DeviceLabel returns the device name plus index, e.g. "pmos3"
func (s Summary) DeviceLabel() string {
	return models.Record{Device: s.Device, DeviceIndex: s.DeviceIndex}.DeviceLabel()
}

type summaryKey struct {
	temperature string
	device      string
	method      string
	index       int
}

// Summarize groups successful records by temperature, device, method and
// device index. Failed records are ignored. Groups come back sorted by key.
func Summarize(records []models.Record) []Summary {
	groups := map[summaryKey][]float64{}
	var keys []summaryKey
	for _, rec := range records {
		if !rec.OK() {
			continue
		}
		k := summaryKey{rec.Temperature, rec.Device, rec.Method, rec.DeviceIndex}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], rec.VthVolts)
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.temperature != b.temperature {
			return a.temperature < b.temperature
		}
		if a.device != b.device {
			return a.device < b.device
		}
		if a.method != b.method {
			return a.method < b.method
		}
		return a.index < b.index
	})

	out := make([]Summary, 0, len(keys))
	for _, k := range keys {
		vals := groups[k]
		mean, std := meanStd(vals)
		out = append(out, Summary{
			Temperature: k.temperature,
			Device:      k.device,
			Method:      k.method,
			DeviceIndex: k.index,
			Count:       len(vals),
			Mean:        mean,
			Std:         std,
			Min:         floats.Min(vals),
			Max:         floats.Max(vals),
		})
	}
	return out
}

// meanStd returns the mean and sample standard deviation, with NaN std for
// fewer than two values.
func meanStd(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return math.NaN(), math.NaN()
	}
	if len(vals) == 1 {
		return vals[0], math.NaN()
	}
	return stat.MeanStdDev(vals, nil)
}

// PivotRow is the chip-averaged Vth of one device label at one temperature
type PivotRow struct {
	Temperature string
	DeviceLabel string
	Method      string
	ByChip      map[string]float64
	Avg         float64
	Std         float64
}

type pivotKey struct {
	temperature string
	label       string
	method      string
}

// Pivot averages successful records per chip and summarises across chips.
// Rows are ordered nmos1..N then pmos1..N, each by ascending temperature.
// The returned chip names are sorted and name the ByChip columns.
func Pivot(records []models.Record) ([]PivotRow, []string) {
	type cell struct {
		sum float64
		n   int
	}
	cells := map[pivotKey]map[string]*cell{}
	chipSet := map[string]bool{}

	for _, rec := range records {
		if !rec.OK() {
			continue
		}
		k := pivotKey{rec.Temperature, rec.DeviceLabel(), rec.Method}
		if cells[k] == nil {
			cells[k] = map[string]*cell{}
		}
		c := cells[k][rec.Chip]
		if c == nil {
			c = &cell{}
			cells[k][rec.Chip] = c
		}
		c.sum += rec.VthVolts
		c.n++
		chipSet[rec.Chip] = true
	}

	chips := make([]string, 0, len(chipSet))
	for chip := range chipSet {
		chips = append(chips, chip)
	}
	sort.Strings(chips)

	rows := make([]PivotRow, 0, len(cells))
	for k, byChip := range cells {
		row := PivotRow{Temperature: k.temperature, DeviceLabel: k.label, Method: k.method, ByChip: map[string]float64{}}
		vals := make([]float64, 0, len(byChip))
		for _, chip := range chips {
			if c, ok := byChip[chip]; ok {
				v := c.sum / float64(c.n)
				row.ByChip[chip] = v
				vals = append(vals, v)
			}
		}
		row.Avg, row.Std = meanStd(vals)
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if oa, ob := deviceOrder(a.DeviceLabel), deviceOrder(b.DeviceLabel); oa != ob {
			return oa < ob
		}
		ta, tb := kelvinOrNaN(a.Temperature), kelvinOrNaN(b.Temperature)
		if lessNaNLast(ta, tb) || lessNaNLast(tb, ta) {
			return lessNaNLast(ta, tb)
		}
		if a.DeviceLabel != b.DeviceLabel {
			return a.DeviceLabel < b.DeviceLabel
		}
		return a.Method < b.Method
	})
	return rows, chips
}

var labelPattern = regexp.MustCompile(`^(nmos|pmos)(\d+)$`)

func deviceOrder(label string) int {
	m := labelPattern.FindStringSubmatch(label)
	if m == nil {
		return 10_000
	}
	n, _ := strconv.Atoi(m[2])
	if m[1] == "pmos" {
		return 1_000 + n
	}
	return n
}

func kelvinOrNaN(token string) float64 {
	if v, ok := models.ParseKelvin(token); ok {
		return v
	}
	return math.NaN()
}

// lessNaNLast orders numbers ascending with NaN after everything else
func lessNaNLast(a, b float64) bool {
	switch {
	case math.IsNaN(a):
		return false
	case math.IsNaN(b):
		return true
	default:
		return a < b
	}
}
