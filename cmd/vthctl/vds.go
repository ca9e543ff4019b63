package main

import (
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RMahshie/vthlab/internal/batch"
	"github.com/RMahshie/vthlab/internal/report"
)

var (
	vdsOut    string
	hybridOut string
)

func newVdsEffectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vds-effect <dir|file>...",
		Short: "Compare linear and sqrt extraction on every drain bias block",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runVdsEffect,
	}
	addExtractionFlags(cmd)
	cmd.Flags().StringVarP(&vdsOut, "out", "o", "-", "write the CSV here (\"-\" for stdout)")
	return cmd
}

func runVdsEffect(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	paths, err := collectPaths(args, s.devicesOnly)
	if err != nil {
		return err
	}
	rows, err := batch.NewRunner(s.runner).VdsEffects(cmd.Context(), paths)
	if err != nil {
		return err
	}
	log.Info().Int("files", len(paths)).Int("blocks", len(rows)).Msg("Compared algorithms per drain bias")
	return writeOutput(cmd, vdsOut, func(w io.Writer) error {
		return report.WriteVdsEffects(w, rows)
	})
}

func newHybridCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hybrid <dir|file>...",
		Short: "Compare hybrid extraction with both fixed algorithms",
		Long: `For each file, take the block nearest the linear-region target and report
the hybrid threshold next to the linear extrapolation and sqrt thresholds.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runHybrid,
	}
	addExtractionFlags(cmd)
	cmd.Flags().StringVarP(&hybridOut, "out", "o", "-", "write the CSV here (\"-\" for stdout)")
	return cmd
}

func runHybrid(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	paths, err := collectPaths(args, s.devicesOnly)
	if err != nil {
		return err
	}
	rows, err := batch.NewRunner(s.runner).HybridComparisons(cmd.Context(), paths)
	if err != nil {
		return err
	}
	log.Info().Int("files", len(paths)).Int("rows", len(rows)).Msg("Compared hybrid extraction")
	return writeOutput(cmd, hybridOut, func(w io.Writer) error {
		return report.WriteHybrid(w, rows)
	})
}
