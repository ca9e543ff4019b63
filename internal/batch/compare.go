package batch

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/vthlab/internal/extraction"
	"github.com/RMahshie/vthlab/internal/measurement"
	"github.com/RMahshie/vthlab/pkg/models"
)

// VdsEffect compares the two algorithms on one drain-bias block
type VdsEffect struct {
	FilePath       string
	Temperature    string
	Device         string
	DeviceIndex    int
	DrainBias      float64
	VthTraditional float64
	VthSqrt        float64
	GmTraditional  float64
	GmSqrt         float64
	Diff           float64 // sqrt minus traditional
	DiffPercent    float64 // Diff relative to |traditional|, NaN when traditional is 0
	NumPoints      int
}

// HybridComparison puts the hybrid result next to both fixed algorithms on
// the block nearest the linear-region target.
type HybridComparison struct {
	FilePath       string
	Temperature    string
	Device         string
	DeviceIndex    int
	DrainBias      float64
	VthHybrid      float64
	VthTraditional float64
	VthSqrt        float64
	GmHybrid       float64
	Used           string // "error" when the hybrid extraction failed
	HybridVsTrad   float64
	HybridVsSqrt   float64
	NumPoints      int
}

// VdsEffects runs both algorithms on every non-zero block of every file.
// Blocks where either algorithm produced no value are left out.
func (r *Runner) VdsEffects(ctx context.Context, paths []string) ([]VdsEffect, error) {
	return fanOut(ctx, r.cfg.Workers, paths, r.vdsEffectsForFile)
}

func (r *Runner) vdsEffectsForFile(path string) []VdsEffect {
	info, blocks, err := load(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Skipping unparseable file")
		return nil
	}
	return VdsEffectsForBlocks(info, blocks, r.cfg.Options)
}

// VdsEffectsForBlocks is VdsEffects for a single parsed file
func VdsEffectsForBlocks(info FileInfo, blocks []models.SweepBlock, opts extraction.Options) []VdsEffect {
	var rows []VdsEffect
	for _, block := range measurement.Candidates(blocks, false) {
		trad, _ := extraction.Extract(block, info.Polarity, extraction.Traditional, opts)
		sqrt, _ := extraction.Extract(block, info.Polarity, extraction.Sqrt, opts)
		if math.IsNaN(trad.Vth) || math.IsNaN(sqrt.Vth) {
			continue
		}

		diff := sqrt.Vth - trad.Vth
		pct := math.NaN()
		if trad.Vth != 0 {
			pct = diff / math.Abs(trad.Vth) * 100
		}
		rows = append(rows, VdsEffect{
			FilePath:       info.Path,
			Temperature:    info.Temperature,
			Device:         info.Polarity.String(),
			DeviceIndex:    info.DeviceIndex,
			DrainBias:      block.DrainBias(),
			VthTraditional: trad.Vth,
			VthSqrt:        sqrt.Vth,
			GmTraditional:  trad.GmMax,
			GmSqrt:         sqrt.GmMax,
			Diff:           diff,
			DiffPercent:    pct,
			NumPoints:      block.NumPoints(),
		})
	}
	return rows
}

// HybridComparisons compares hybrid extraction against both algorithms
func (r *Runner) HybridComparisons(ctx context.Context, paths []string) ([]HybridComparison, error) {
	return fanOut(ctx, r.cfg.Workers, paths, func(path string) []HybridComparison {
		info, blocks, err := load(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Skipping unparseable file")
			return nil
		}
		row, ok := CompareHybrid(info, blocks, r.cfg.Options)
		if !ok {
			return nil
		}
		return []HybridComparison{row}
	})
}

// CompareHybrid evaluates one file. ok is false when no non-zero block exists.
func CompareHybrid(info FileInfo, blocks []models.SweepBlock, opts extraction.Options) (HybridComparison, bool) {
	target := extraction.DefaultTarget(info.Polarity, extraction.Traditional)
	block, ok := measurement.Nearest(blocks, target, false)
	if !ok {
		return HybridComparison{}, false
	}

	hybrid, err := extraction.Extract(block, info.Polarity, extraction.Hybrid, opts)
	used := hybrid.Used.String()
	if err != nil {
		used = "error"
	}
	trad, _ := extraction.Extract(block, info.Polarity, extraction.Traditional, opts)
	sqrt, _ := extraction.Extract(block, info.Polarity, extraction.Sqrt, opts)

	return HybridComparison{
		FilePath:       info.Path,
		Temperature:    info.Temperature,
		Device:         info.Polarity.String(),
		DeviceIndex:    info.DeviceIndex,
		DrainBias:      block.DrainBias(),
		VthHybrid:      hybrid.Vth,
		VthTraditional: trad.Vth,
		VthSqrt:        sqrt.Vth,
		GmHybrid:       hybrid.GmMax,
		Used:           used,
		HybridVsTrad:   hybrid.Vth - trad.Vth,
		HybridVsSqrt:   hybrid.Vth - sqrt.Vth,
		NumPoints:      block.NumPoints(),
	}, true
}
