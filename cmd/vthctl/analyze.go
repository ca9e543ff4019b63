package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RMahshie/vthlab/internal/aggregate"
	"github.com/RMahshie/vthlab/internal/report"
	"github.com/RMahshie/vthlab/pkg/models"
)

var (
	summaryOut      string
	summaryPivotOut string

	compareRef       string
	compareThreshold float64
	compareOut       string

	dvdtDevice string
	dvdtMethod string
	dvdtOut    string

	plotDir    string
	plotFormat string
)

const recordSourceHelp = `Records come from the measurement paths given as arguments, from a results
CSV (--input), or from the latest run in the record store.`

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary [dir|file]...",
		Short: "Mean and spread of Vth per temperature, device and method",
		Long:  "Group successful records and report count, mean, std, min and max.\n\n" + recordSourceHelp,
		RunE:  runSummary,
	}
	addExtractionFlags(cmd)
	addSourceFlags(cmd)
	cmd.Flags().StringVarP(&summaryOut, "out", "o", "", "write the summary CSV here (\"-\" for stdout)")
	cmd.Flags().StringVar(&summaryPivotOut, "pivot-out", "", "write a per-chip pivot CSV here")
	return cmd
}

func runSummary(cmd *cobra.Command, args []string) error {
	records, err := loadRecords(cmd, args)
	if err != nil {
		return err
	}
	summaries := aggregate.Summarize(records)
	log.Info().Int("records", len(records)).Int("failed", failedCount(records)).Int("groups", len(summaries)).Msg("Summarized")

	if summaryPivotOut != "" {
		rows, chips := aggregate.Pivot(records)
		if err := writeOutput(cmd, summaryPivotOut, func(w io.Writer) error {
			return report.WritePivot(w, rows, chips)
		}); err != nil {
			return err
		}
	}
	if summaryOut != "" {
		return writeOutput(cmd, summaryOut, func(w io.Writer) error {
			return report.WriteSummaries(w, summaries)
		})
	}
	return report.Print(cmd.OutOrStdout(), report.SummaryTable(summaries))
}

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [dir|file]...",
		Short: "Compare summaries against a reference CSV",
		Long: `Join our per-device summaries with reference averages on temperature and
device label. A pair fails when either the mean or the std differs by more
than --threshold volts. Rows present on only one side are reported as MISSING.

` + recordSourceHelp,
		RunE: runCompare,
	}
	addExtractionFlags(cmd)
	addSourceFlags(cmd)
	cmd.Flags().StringVar(&compareRef, "ref", "", "reference CSV (temperature, device label, avg, std)")
	cmd.Flags().Float64Var(&compareThreshold, "threshold", 0.01, "pass/fail limit in volts")
	cmd.Flags().StringVarP(&compareOut, "out", "o", "", "write the comparison CSV here (\"-\" for stdout)")
	_ = cmd.MarkFlagRequired("ref")
	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	f, err := os.Open(compareRef)
	if err != nil {
		return fmt.Errorf("failed to open reference: %w", err)
	}
	defer f.Close()
	refs, err := report.ReadReferences(f)
	if err != nil {
		return fmt.Errorf("failed to read reference %s: %w", compareRef, err)
	}

	records, err := loadRecords(cmd, args)
	if err != nil {
		return err
	}
	rows := aggregate.Compare(aggregate.Summarize(records), refs, compareThreshold)

	counts := map[string]int{}
	for _, r := range rows {
		counts[r.Status]++
	}
	log.Info().
		Int("pass", counts[aggregate.StatusPass]).
		Int("fail", counts[aggregate.StatusFail]).
		Int("missing", counts[aggregate.StatusMissing]).
		Msg("Compared against reference")

	if compareOut != "" {
		return writeOutput(cmd, compareOut, func(w io.Writer) error {
			return report.WriteComparisons(w, rows)
		})
	}
	return report.Print(cmd.OutOrStdout(), report.ComparisonTable(rows))
}

func newDvdtCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dvdt [dir|file]...",
		Short: "Temperature coefficient dVth/dT per device, method and drain bias",
		Long:  "Differentiate mean Vth against temperature for each series.\n\n" + recordSourceHelp,
		RunE:  runDvdt,
	}
	addExtractionFlags(cmd)
	addSourceFlags(cmd)
	cmd.Flags().StringVar(&dvdtDevice, "device", "", "only this device (nmos or pmos)")
	cmd.Flags().StringVar(&dvdtMethod, "only-method", "", "only records produced by this method")
	cmd.Flags().StringVarP(&dvdtOut, "out", "o", "", "write the coefficient CSV here (\"-\" for stdout)")
	return cmd
}

func runDvdt(cmd *cobra.Command, args []string) error {
	records, err := loadRecords(cmd, args)
	if err != nil {
		return err
	}
	rows := aggregate.TemperatureCoefficients(records, aggregate.Filter{Device: dvdtDevice, Method: dvdtMethod})
	if len(rows) == 0 {
		log.Warn().Msg("No series with at least two temperatures")
	}
	if dvdtOut != "" {
		return writeOutput(cmd, dvdtOut, func(w io.Writer) error {
			return report.WriteCoefficients(w, rows)
		})
	}
	return report.Print(cmd.OutOrStdout(), report.CoefficientTable(rows))
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [dir|file]...",
		Short: "Plot mean Vth against temperature",
		Long:  "Write one figure per device and method, one series per device index.\n\n" + recordSourceHelp,
		RunE:  runPlot,
	}
	addExtractionFlags(cmd)
	addSourceFlags(cmd)
	cmd.Flags().StringVar(&plotDir, "dir", "plots", "output directory")
	cmd.Flags().StringVar(&plotFormat, "format", "png", "image format: png, svg or pdf")
	return cmd
}

func runPlot(cmd *cobra.Command, args []string) error {
	switch plotFormat {
	case "png", "svg", "pdf":
	default:
		return fmt.Errorf("unsupported plot format %q", plotFormat)
	}
	records, err := loadRecords(cmd, args)
	if err != nil {
		return err
	}
	summaries := aggregate.Summarize(records)

	type series struct{ device, method string }
	seen := map[series]bool{}
	var all []series
	for _, s := range summaries {
		k := series{s.Device, s.Method}
		if !seen[k] {
			seen[k] = true
			all = append(all, k)
		}
	}
	if len(all) == 0 {
		return fmt.Errorf("nothing to plot: no successful records")
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].device != all[j].device {
			return all[i].device < all[j].device
		}
		return all[i].method < all[j].method
	})

	if err := os.MkdirAll(plotDir, 0o755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}
	for _, s := range all {
		path := filepath.Join(plotDir, fmt.Sprintf("vth_vs_temp_%s_%s.%s", s.device, s.method, plotFormat))
		if err := report.PlotVthVsTemperature(summaries, s.device, s.method, path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("Wrote plot")
	}
	return nil
}

// failedCount reports how many records carry a failure note
func failedCount(records []models.Record) int {
	n := 0
	for _, r := range records {
		if r.Failed() {
			n++
		}
	}
	return n
}
