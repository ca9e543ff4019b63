package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RMahshie/vthlab/internal/batch"
	"github.com/RMahshie/vthlab/internal/config"
	"github.com/RMahshie/vthlab/internal/extraction"
	"github.com/RMahshie/vthlab/internal/report"
	"github.com/RMahshie/vthlab/internal/repository/sqlite"
	"github.com/RMahshie/vthlab/pkg/models"
)

var (
	exMethods         []string
	exTargetVd        float64
	exAllVd           bool
	exCriterion       string
	exReflection      float64
	exWindow          int
	exHybridThreshold float64
	exIncludeZero     bool
	exDevicesOnly     bool
	exWorkers         int

	dbPath    string
	inputPath string
	runID     int64
)

// settings is the merged result of environment, config file and flags
type settings struct {
	cfg         *config.Config
	runner      batch.Config
	devicesOnly bool
}

func addExtractionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVarP(&exMethods, "method", "m", []string{"traditional"}, "algorithms: traditional, sqrt, hybrid")
	f.Float64Var(&exTargetVd, "vd", 0, "drain bias to select (default: per-method target)")
	f.BoolVar(&exAllVd, "all-vd", false, "extract every non-zero drain bias block")
	f.StringVar(&exCriterion, "criterion", "max-gm", "tangent point criterion: max-gm or max-dgm")
	f.Float64Var(&exReflection, "reflection-voltage", extraction.DefaultReflectionVoltage, "rail PMOS gate voltages are mirrored about")
	f.IntVar(&exWindow, "window", extraction.DefaultWindow, "minimum above-floor samples before masking")
	f.Float64Var(&exHybridThreshold, "hybrid-threshold", extraction.DefaultHybridThreshold, "|Vd| at which hybrid switches to sqrt")
	f.BoolVar(&exIncludeZero, "include-zero-vd", false, "allow 0 V drain bias blocks")
	f.BoolVar(&exDevicesOnly, "devices-only", false, "only 1-4.txt files under nmos/ or pmos/")
	f.IntVar(&exWorkers, "workers", 0, "parallel files (default: number of CPUs)")
}

func addSourceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&inputPath, "input", "i", "", "results CSV to read instead of extracting")
	f.StringVar(&dbPath, "db", "", "SQLite record store (default: "+config.DefaultDBPath()+")")
	f.Int64Var(&runID, "run", 0, "stored run to read (default: latest)")
}

func overrideIfChanged[T any](cmd *cobra.Command, name string, target *T, value T) {
	if cmd.Flags().Changed(name) {
		*target = value
	}
}

// resolveSettings layers defaults and environment, then the TOML file, then
// explicitly set flags.
func resolveSettings(cmd *cobra.Command) (settings, error) {
	cfg, err := config.Load()
	if err != nil {
		return settings{}, err
	}
	file, err := config.LoadFile(configPath)
	if err != nil {
		return settings{}, err
	}
	file.Apply(cfg)

	overrideIfChanged(cmd, "criterion", &cfg.Extraction.Criterion, exCriterion)
	overrideIfChanged(cmd, "reflection-voltage", &cfg.Extraction.ReflectionVoltage, exReflection)
	overrideIfChanged(cmd, "window", &cfg.Extraction.Window, exWindow)
	overrideIfChanged(cmd, "hybrid-threshold", &cfg.Extraction.HybridThreshold, exHybridThreshold)
	overrideIfChanged(cmd, "include-zero-vd", &cfg.Extraction.IncludeZero, exIncludeZero)
	overrideIfChanged(cmd, "workers", &cfg.Batch.Workers, exWorkers)
	overrideIfChanged(cmd, "db", &cfg.Batch.SQLitePath, dbPath)

	var target *float64
	if cmd.Flags().Changed("vd") {
		v := exTargetVd
		target = &v
	}
	applyFloatPtrConfig(cmd, "vd", &target, file.Extraction.TargetVd)
	applyStringsConfig(cmd, "method", &exMethods, file.Extraction.Methods)
	applyBoolConfig(cmd, "all-vd", &exAllVd, file.Extraction.AllVd)
	applyBoolConfig(cmd, "devices-only", &exDevicesOnly, file.Batch.DevicesOnly)

	methods, err := extraction.ParseMethods(exMethods)
	if err != nil {
		return settings{}, err
	}
	opts, err := cfg.Extraction.Options()
	if err != nil {
		return settings{}, err
	}

	return settings{
		cfg: cfg,
		runner: batch.Config{
			Methods:     methods,
			TargetVd:    target,
			AllVd:       exAllVd,
			IncludeZero: cfg.Extraction.IncludeZero,
			Options:     opts,
			Workers:     cfg.Batch.Workers,
		},
		devicesOnly: exDevicesOnly,
	}, nil
}

// collectPaths expands directories into their measurement files
func collectPaths(args []string, devicesOnly bool) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		found, err := batch.Discover(arg, devicesOnly)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", arg, err)
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no measurement files found")
	}
	return paths, nil
}

// loadRecords extracts from args when given, otherwise reads --input or
// the record store.
func loadRecords(cmd *cobra.Command, args []string) ([]models.Record, error) {
	s, err := resolveSettings(cmd)
	if err != nil {
		return nil, err
	}

	switch {
	case len(args) > 0:
		paths, err := collectPaths(args, s.devicesOnly)
		if err != nil {
			return nil, err
		}
		return batch.NewRunner(s.runner).Run(cmd.Context(), paths)

	case inputPath != "":
		f, err := os.Open(inputPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return report.ReadRecords(f)

	default:
		return storedRecords(cmd.Context(), s.cfg.Batch.SQLitePath, runID)
	}
}

func storedRecords(ctx context.Context, path string, id int64) ([]models.Record, error) {
	st, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if id == 0 {
		if id, err = st.LatestRun(ctx); err != nil {
			return nil, fmt.Errorf("%w (pass measurement paths or --input)", err)
		}
	}
	log.Debug().Int64("run", id).Str("db", path).Msg("Reading stored run")
	return st.Records(ctx, id)
}
