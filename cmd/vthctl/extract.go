package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RMahshie/vthlab/internal/batch"
	"github.com/RMahshie/vthlab/internal/report"
	"github.com/RMahshie/vthlab/internal/repository/sqlite"
	"github.com/RMahshie/vthlab/pkg/models"
)

var (
	extractOut  string
	extractSave bool
)

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <dir|file>...",
		Short: "Extract threshold voltages from measurement files",
		Long: `Extract threshold voltages from every measurement file under the given
directories. Polarity, device index, temperature and chip are inferred from
each file's path. A file that cannot be processed yields a record with a
parse_error, compute_error or no_valid_blocks note.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runExtract,
	}
	addExtractionFlags(cmd)
	cmd.Flags().StringVarP(&extractOut, "out", "o", "", "write results CSV here (\"-\" for stdout) instead of a table")
	cmd.Flags().BoolVar(&extractSave, "save", false, "store the run in the SQLite record store")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite record store used with --save")
	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	paths, err := collectPaths(args, s.devicesOnly)
	if err != nil {
		return err
	}

	log.Info().Int("files", len(paths)).Int("workers", s.runner.Workers).Msg("Extracting")
	records, err := batch.NewRunner(s.runner).Run(cmd.Context(), paths)
	if err != nil {
		return err
	}
	logOutcome(records)

	if extractSave {
		st, err := sqlite.Open(s.cfg.Batch.SQLitePath)
		if err != nil {
			return err
		}
		defer st.Close()
		id, err := st.SaveRun(cmd.Context(), args[0], records)
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		log.Info().Int64("run", id).Str("db", s.cfg.Batch.SQLitePath).Msg("Saved run")
	}

	if extractOut != "" {
		return writeOutput(cmd, extractOut, func(w io.Writer) error {
			return report.WriteRecords(w, records)
		})
	}
	return report.Print(cmd.OutOrStdout(), report.RecordsTable(records))
}

func logOutcome(records []models.Record) {
	ok, failed := 0, 0
	for _, r := range records {
		switch {
		case r.OK():
			ok++
		case r.Failed():
			failed++
		}
	}
	log.Info().Int("records", len(records)).Int("ok", ok).Int("failed", failed).Msg("Extraction finished")
}
