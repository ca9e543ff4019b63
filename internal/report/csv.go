// Package report writes extraction results as CSV, terminal tables and
// figures.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/RMahshie/vthlab/internal/aggregate"
	"github.com/RMahshie/vthlab/internal/batch"
	"github.com/RMahshie/vthlab/pkg/models"
)

// RecordColumns is the header of the per-file results CSV. The trailing
// used column names the algorithm a hybrid record actually ran.
var RecordColumns = []string{
	"file_path", "temperature", "device", "method", "vd_V", "vth_V",
	"gm_max_A_per_V", "gm_max_index", "num_points", "notes", "used",
}

// requiredRecordColumns are the columns ReadRecords cannot do without
var requiredRecordColumns = RecordColumns[:len(RecordColumns)-1]

// num formats a value with six significant digits; NaN is an empty cell
func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func parseNum(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// WriteRecords writes records in the results CSV layout
func WriteRecords(w io.Writer, records []models.Record) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.FilePath,
			r.Temperature,
			r.Device,
			r.Method,
			num(r.DrainBias),
			num(r.VthVolts),
			num(r.GmMax),
			strconv.Itoa(r.Index),
			strconv.Itoa(r.NumPoints),
			r.Notes,
			r.Used,
		})
	}
	return writeAll(w, RecordColumns, rows)
}

// ReadRecords parses a results CSV. Device index, chip and temperature are
// re-derived from file_path where the columns do not carry them. The used
// column is optional.
func ReadRecords(r io.Reader) ([]models.Record, error) {
	rows, err := readTable(r, requiredRecordColumns)
	if err != nil {
		return nil, err
	}

	records := make([]models.Record, 0, len(rows))
	for i, row := range rows {
		rec := models.Record{
			FilePath:    row["file_path"],
			Temperature: row["temperature"],
			Device:      row["device"],
			Method:      row["method"],
			Notes:       row["notes"],
			Used:        row["used"],
		}
		line := i + 2
		if rec.DrainBias, err = parseNum(row["vd_V"]); err != nil {
			return nil, fmt.Errorf("line %d: vd_V: %w", line, err)
		}
		if rec.VthVolts, err = parseNum(row["vth_V"]); err != nil {
			return nil, fmt.Errorf("line %d: vth_V: %w", line, err)
		}
		if rec.GmMax, err = parseNum(row["gm_max_A_per_V"]); err != nil {
			return nil, fmt.Errorf("line %d: gm_max_A_per_V: %w", line, err)
		}
		if rec.Index, err = atoiOr(row["gm_max_index"], -1); err != nil {
			return nil, fmt.Errorf("line %d: gm_max_index: %w", line, err)
		}
		if rec.NumPoints, err = atoiOr(row["num_points"], 0); err != nil {
			return nil, fmt.Errorf("line %d: num_points: %w", line, err)
		}
		rec.DeviceIndex, _ = batch.DeviceIndex(rec.FilePath)
		rec.Chip = batch.Chip(rec.FilePath)
		records = append(records, rec)
	}
	return records, nil
}

func atoiOr(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// readTable reads a CSV with a header row into column-keyed maps. Every
// required column must be present.
func readTable(r io.Reader, required []string) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	all, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("csv is empty")
	}

	header := map[string]int{}
	for i, name := range all[0] {
		header[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range required {
		if _, ok := header[name]; !ok {
			return nil, fmt.Errorf("csv is missing column %q", name)
		}
	}

	rows := make([]map[string]string, 0, len(all)-1)
	for _, fields := range all[1:] {
		row := make(map[string]string, len(header))
		for name, i := range header {
			if i < len(fields) {
				row[name] = fields[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteSummaries writes per-device statistics
func WriteSummaries(w io.Writer, summaries []aggregate.Summary) error {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.Temperature, s.Device, s.Method, indexCell(s.DeviceIndex), strconv.Itoa(s.Count),
			num(s.Mean), num(s.Std), num(s.Min), num(s.Max),
		})
	}
	return writeAll(w, []string{
		"temperature", "device", "method", "device_index", "count",
		"mean_vth_V", "std_vth_V", "min_vth_V", "max_vth_V",
	}, rows)
}

func indexCell(i int) string {
	if i <= 0 {
		return ""
	}
	return strconv.Itoa(i)
}

// WritePivot writes one column per chip followed by the cross-chip average
// and standard deviation.
func WritePivot(w io.Writer, rows []aggregate.PivotRow, chips []string) error {
	header := append([]string{"temperature", "device_label", "method"}, chips...)
	header = append(header, "avg_vth_V", "std_vth_V")

	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := []string{r.Temperature, r.DeviceLabel, r.Method}
		for _, chip := range chips {
			v, ok := r.ByChip[chip]
			if !ok {
				v = math.NaN()
			}
			line = append(line, num(v))
		}
		line = append(line, num(r.Avg), num(r.Std))
		out = append(out, line)
	}
	return writeAll(w, header, out)
}

// ReadReferences parses a reference CSV with columns temperature, device,
// avg and stdev. Temperatures may carry a trailing K.
func ReadReferences(r io.Reader) ([]aggregate.Reference, error) {
	rows, err := readTable(r, []string{"temperature", "device", "avg", "stdev"})
	if err != nil {
		return nil, err
	}
	refs := make([]aggregate.Reference, 0, len(rows))
	for i, row := range rows {
		t, ok := models.ParseKelvin(row["temperature"])
		if !ok {
			return nil, fmt.Errorf("line %d: invalid temperature %q", i+2, row["temperature"])
		}
		avg, err := parseNum(row["avg"])
		if err != nil {
			return nil, fmt.Errorf("line %d: avg: %w", i+2, err)
		}
		std, err := parseNum(row["stdev"])
		if err != nil {
			return nil, fmt.Errorf("line %d: stdev: %w", i+2, err)
		}
		refs = append(refs, aggregate.Reference{Temperature: t, DeviceLabel: row["device"], Avg: avg, Std: std})
	}
	return refs, nil
}

// WriteComparisons writes the reference comparison with its status column
func WriteComparisons(w io.Writer, rows []aggregate.Comparison) error {
	out := make([][]string, 0, len(rows))
	for _, c := range rows {
		out = append(out, []string{
			num(c.Temperature), c.DeviceLabel, c.Method,
			num(c.OursAvg), num(c.OursStd), num(c.RefAvg), num(c.RefStd),
			num(c.DeltaAvg), num(c.DeltaStd), c.Status,
		})
	}
	return writeAll(w, []string{
		"temperature", "device_label", "method", "avg_V", "std_V", "ref_avg_V", "ref_std_V",
		"delta_avg_V", "delta_std_V", "status",
	}, out)
}

// WriteCoefficients writes dVth/dT points
func WriteCoefficients(w io.Writer, rows []aggregate.Coefficient) error {
	out := make([][]string, 0, len(rows))
	for _, c := range rows {
		out = append(out, []string{c.Device, c.Method, num(c.DrainBias), num(c.Temperature), num(c.Vth), num(c.DvthDt)})
	}
	return writeAll(w, []string{"device", "method", "vds", "temperature", "vth", "dvth_dt"}, out)
}

// WriteVdsEffects writes the per-block algorithm comparison
func WriteVdsEffects(w io.Writer, rows []batch.VdsEffect) error {
	out := make([][]string, 0, len(rows))
	for _, e := range rows {
		out = append(out, []string{
			e.FilePath, e.Temperature, e.Device, indexCell(e.DeviceIndex), num(e.DrainBias),
			num(e.VthTraditional), num(e.VthSqrt), num(e.GmTraditional), num(e.GmSqrt),
			num(e.Diff), num(e.DiffPercent), strconv.Itoa(e.NumPoints),
		})
	}
	return writeAll(w, []string{
		"file_path", "temperature", "device", "device_index", "vd_V",
		"vth_traditional_V", "vth_sqrt_V", "gm_traditional_A_per_V", "gm_sqrt_A_per_V",
		"vth_diff_V", "vth_diff_percent", "num_points",
	}, out)
}

// WriteHybrid writes the hybrid comparison
func WriteHybrid(w io.Writer, rows []batch.HybridComparison) error {
	out := make([][]string, 0, len(rows))
	for _, h := range rows {
		out = append(out, []string{
			h.FilePath, h.Temperature, h.Device, indexCell(h.DeviceIndex), num(h.DrainBias),
			num(h.VthHybrid), num(h.VthTraditional), num(h.VthSqrt), num(h.GmHybrid), h.Used,
			num(h.HybridVsTrad), num(h.HybridVsSqrt), strconv.Itoa(h.NumPoints),
		})
	}
	return writeAll(w, []string{
		"file_path", "temperature", "device", "device_index", "vd_V",
		"vth_hybrid_V", "vth_traditional_V", "vth_sqrt_V", "gm_hybrid_A_per_V", "method_used",
		"vth_hybrid_vs_traditional_V", "vth_hybrid_vs_sqrt_V", "num_points",
	}, out)
}
