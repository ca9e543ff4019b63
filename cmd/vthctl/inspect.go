package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RMahshie/vthlab/internal/batch"
	"github.com/RMahshie/vthlab/internal/extraction"
	"github.com/RMahshie/vthlab/internal/measurement"
	"github.com/RMahshie/vthlab/internal/report"
	"github.com/RMahshie/vthlab/pkg/models"
)

var (
	inspectTolerance float64
	inspectPlotDir   string
	inspectDevice    string
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the blocks of one file and the tangent behind each threshold",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	addExtractionFlags(cmd)
	cmd.Flags().Float64Var(&inspectTolerance, "vd-tol", 0, "match tolerance for --vd (default from config)")
	cmd.Flags().StringVar(&inspectPlotDir, "plot-dir", "", "write a tangent figure per block and method here")
	cmd.Flags().StringVar(&inspectDevice, "device", "", "override the polarity inferred from the path")
	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	overrideIfChanged(cmd, "vd-tol", &s.cfg.Extraction.VdTolerance, inspectTolerance)

	path := args[0]
	info := batch.Describe(path)
	if inspectDevice != "" {
		if info.Polarity, err = models.ParsePolarity(inspectDevice); err != nil {
			return err
		}
	}

	blocks, stats, err := measurement.ParseFileWithStats(path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "%s: %s, %d lines, %d accepted, %d skipped\n\n",
		path, info.Polarity, stats.Lines, stats.Accepted, stats.Skipped); err != nil {
		return err
	}
	if err := report.Print(out, blockTable(blocks)); err != nil {
		return err
	}

	selected := measurement.Candidates(blocks, s.runner.IncludeZero)
	if s.runner.TargetVd != nil {
		selected = measurement.Match(blocks, *s.runner.TargetVd, s.cfg.Extraction.VdTolerance)
	}
	if len(selected) == 0 {
		return fmt.Errorf("no blocks to extract (%s)", models.NoteNoValidBlocks)
	}

	if inspectPlotDir != "" {
		if err := os.MkdirAll(inspectPlotDir, 0o755); err != nil {
			return fmt.Errorf("failed to create plot directory: %w", err)
		}
	}

	t := report.Table{Headers: []string{"Vd (V)", "method", "Vth (V)", "gm_max (A/V)", "idx", "valid", "error"}}
	for _, block := range selected {
		for _, method := range s.runner.Methods {
			used := method
			if method == extraction.Hybrid {
				used = extraction.SelectForBias(block.DrainBias(), s.runner.Options.HybridThreshold)
			}
			label, tag := method.String(), method.String()
			if used != method {
				label += "→" + used.String()
				tag += "-" + used.String()
			}

			d, err := extraction.Diagnose(block.GateVoltages(), block.DrainCurrents(), info.Polarity, used, s.runner.Options)
			if err != nil {
				t.Rows = append(t.Rows, []string{fmtNum(block.DrainBias()), label, "", "", "-1", "", err.Error()})
				continue
			}
			t.Rows = append(t.Rows, []string{
				fmtNum(block.DrainBias()), label, fmtNum(d.Vth), fmtNum(d.GmMax),
				strconv.Itoa(d.Index), strconv.Itoa(countValid(d.Valid)), "",
			})

			if inspectPlotDir != "" {
				name := fmt.Sprintf("%s_vd%s_%s.png", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
					fmtNum(block.DrainBias()), tag)
				title := fmt.Sprintf("%s Vd=%s V (%s)", info.Record().DeviceLabel(), fmtNum(block.DrainBias()), label)
				if err := report.PlotTangent(d, title, filepath.Join(inspectPlotDir, name)); err != nil {
					return err
				}
			}
		}
	}

	if _, err := fmt.Fprintln(out); err != nil {
		return err
	}
	return report.Print(out, t)
}

func blockTable(blocks []models.SweepBlock) report.Table {
	t := report.Table{Headers: []string{"Vd (V)", "points", "Vg min (V)", "Vg max (V)", "|Id| max (A)"}}
	for _, b := range blocks {
		vg := b.GateVoltages()
		peak := 0.0
		for _, id := range b.DrainCurrents() {
			if id < 0 {
				id = -id
			}
			peak = max(peak, id)
		}
		row := []string{fmtNum(b.DrainBias()), strconv.Itoa(b.NumPoints()), "", "", fmtNum(peak)}
		if len(vg) > 0 {
			row[2], row[3] = fmtNum(vg[0]), fmtNum(vg[len(vg)-1])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func countValid(valid []bool) int {
	n := 0
	for _, v := range valid {
		if v {
			n++
		}
	}
	return n
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
