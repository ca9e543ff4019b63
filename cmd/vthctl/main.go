// Package main provides the vthctl command line tool for batch threshold
// voltage extraction and aggregation.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RMahshie/vthlab/internal/config"
)

var (
	configPath string
	verbose    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vthctl",
		Short:         "MOSFET threshold voltage extraction",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newSummaryCmd())
	rootCmd.AddCommand(newCompareCmd())
	rootCmd.AddCommand(newDvdtCmd())
	rootCmd.AddCommand(newPlotCmd())
	rootCmd.AddCommand(newVdsEffectCmd())
	rootCmd.AddCommand(newHybridCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func setupLogging(w io.Writer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: os.Getenv("NO_COLOR") != ""})
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the vthctl config file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a commented config file if none exists",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), configPath)
			return err
		},
	})
	return cmd
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat config: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(config.DefaultTemplate()), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), configPath)
	return err
}

// writeOutput writes to path, or to the command's stdout when path is "-"
func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(cmd.OutOrStdout())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("Wrote output")
	return nil
}

func applyStringsConfig(cmd *cobra.Command, name string, target, value *[]string) {
	if value == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatPtrConfig(cmd *cobra.Command, name string, target **float64, value *float64) {
	if value == nil || cmd.Flags().Changed(name) {
		return
	}
	v := *value
	*target = &v
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}
