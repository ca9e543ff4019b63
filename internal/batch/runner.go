// Package batch runs threshold extraction over trees of measurement files.
package batch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/RMahshie/vthlab/internal/extraction"
	"github.com/RMahshie/vthlab/internal/measurement"
	"github.com/RMahshie/vthlab/pkg/models"
)

// Config controls block selection and extraction for a run
type Config struct {
	Methods []extraction.Method
	// TargetVd overrides the per-method default drain bias when set
	TargetVd *float64
	// AllVd extracts every non-zero block instead of the one nearest the target
	AllVd       bool
	IncludeZero bool
	Options     extraction.Options
	Workers     int
}

// Runner extracts records from measurement files
type Runner struct {
	cfg Config
}

// NewRunner creates a runner, filling in defaults for unset fields
func NewRunner(cfg Config) *Runner {
	if len(cfg.Methods) == 0 {
		cfg.Methods = []extraction.Method{extraction.Traditional}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Runner{cfg: cfg}
}

// Run processes every path on a bounded worker pool. Records come back in
// path order; a failing file contributes failure records and never stops
// the run. The only error is context cancellation.
func (r *Runner) Run(ctx context.Context, paths []string) ([]models.Record, error) {
	return fanOut(ctx, r.cfg.Workers, paths, r.ProcessFile)
}

// ProcessFile parses one file and extracts a record per requested method
func (r *Runner) ProcessFile(path string) []models.Record {
	info, blocks, err := load(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Failed to parse measurement file")
		note := fmt.Sprintf("%s: %v", models.NoteParseError, err)
		return []models.Record{failedRecord(info, note)}
	}
	return r.ProcessBlocks(info, blocks)
}

// ProcessReader parses measurement text for an already described file
func (r *Runner) ProcessReader(info FileInfo, rd io.Reader) []models.Record {
	blocks, stats, err := measurement.ParseWithStats(rd)
	if err != nil {
		log.Warn().Err(err).Str("file", info.Path).Msg("Failed to parse measurement text")
		note := fmt.Sprintf("%s: %v", models.NoteParseError, err)
		return []models.Record{failedRecord(info, note)}
	}
	logStats(info.Path, stats, len(blocks))
	return r.ProcessBlocks(info, blocks)
}

// ProcessBlocks extracts records from already parsed blocks
func (r *Runner) ProcessBlocks(info FileInfo, blocks []models.SweepBlock) []models.Record {
	candidates := measurement.Candidates(blocks, r.cfg.IncludeZero)
	if len(candidates) == 0 {
		return []models.Record{failedRecord(info, models.NoteNoValidBlocks)}
	}

	var records []models.Record
	for _, method := range r.cfg.Methods {
		if r.cfg.AllVd {
			for _, block := range candidates {
				records = append(records, r.extract(info, block, method))
			}
			continue
		}
		block, _ := measurement.Nearest(candidates, r.target(info.Polarity, method), true)
		records = append(records, r.extract(info, block, method))
	}
	return records
}

func (r *Runner) target(polarity models.Polarity, method extraction.Method) float64 {
	if r.cfg.TargetVd != nil {
		return *r.cfg.TargetVd
	}
	if method == extraction.Hybrid {
		method = extraction.Traditional
	}
	return extraction.DefaultTarget(polarity, method)
}

func (r *Runner) extract(info FileInfo, block models.SweepBlock, method extraction.Method) models.Record {
	rec := info.Record()
	rec.Method = method.String()
	rec.DrainBias = block.DrainBias()
	rec.NumPoints = block.NumPoints()

	out, err := extraction.Extract(block, info.Polarity, method, r.cfg.Options)
	rec.Used = out.Used.String()
	rec.VthVolts = out.Vth
	rec.GmMax = out.GmMax
	rec.Index = out.Index
	if err != nil {
		log.Warn().
			Err(err).
			Str("file", info.Path).
			Str("method", method.String()).
			Float64("vd", block.DrainBias()).
			Msg("Extraction failed")
		rec.Notes = fmt.Sprintf("%s: %v", models.NoteComputeError, err)
	}
	return rec
}

func failedRecord(info FileInfo, note string) models.Record {
	rec := models.FailedRecord(note)
	rec.FilePath = info.Path
	rec.Temperature = info.Temperature
	rec.Device = info.Polarity.String()
	rec.DeviceIndex = info.DeviceIndex
	rec.Chip = info.Chip
	return rec
}

func load(path string) (FileInfo, []models.SweepBlock, error) {
	info := Describe(path)
	blocks, stats, err := measurement.ParseFileWithStats(path)
	if err != nil {
		return info, nil, err
	}
	logStats(path, stats, len(blocks))
	return info, blocks, nil
}

func logStats(path string, stats measurement.Stats, blocks int) {
	log.Debug().
		Str("file", path).
		Int("lines", stats.Lines).
		Int("accepted", stats.Accepted).
		Int("skipped", stats.Skipped).
		Int("blocks", blocks).
		Msg("Parsed measurement file")
}

// fanOut applies fn to every path with at most workers in flight and
// concatenates the results in path order.
func fanOut[T any](ctx context.Context, workers int, paths []string, fn func(string) []T) ([]T, error) {
	results := make([][]T, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = fn(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch cancelled: %w", err)
	}

	var out []T
	for _, rs := range results {
		out = append(out, rs...)
	}
	return out, nil
}

// Discover returns the sorted *.txt files under root. With devicesOnly it
// keeps only 1.txt through 4.txt inside an nmos or pmos directory.
func Discover(root string, devicesOnly bool) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".txt") {
			return nil
		}
		if devicesOnly && !isDeviceFile(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func isDeviceFile(path string) bool {
	switch strings.ToLower(filepath.Base(path)) {
	case "1.txt", "2.txt", "3.txt", "4.txt":
	default:
		return false
	}
	lower := segments(path)
	return strings.Contains(lower, "/nmos/") || strings.Contains(lower, "/pmos/")
}
