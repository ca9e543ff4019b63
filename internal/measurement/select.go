package measurement

import (
	"math"

	"github.com/RMahshie/vthlab/pkg/models"
)

// ZeroBiasEpsilon is the magnitude below which a block counts as Vd = 0.
const ZeroBiasEpsilon = 1e-12

// DefaultBiasTolerance is the caller-side tolerance used by Match.
const DefaultBiasTolerance = 0.01

// Candidates drops zero-bias blocks unless includeZero is set
func Candidates(blocks []models.SweepBlock, includeZero bool) []models.SweepBlock {
	out := make([]models.SweepBlock, 0, len(blocks))
	for _, b := range blocks {
		if includeZero || math.Abs(b.DrainBias()) > ZeroBiasEpsilon {
			out = append(out, b)
		}
	}
	return out
}

// Nearest returns the candidate block whose drain bias is closest to target.
// The first block wins ties. ok is false when no candidate exists.
func Nearest(blocks []models.SweepBlock, target float64, includeZero bool) (models.SweepBlock, bool) {
	candidates := Candidates(blocks, includeZero)
	if len(candidates) == 0 {
		return models.SweepBlock{}, false
	}
	best := candidates[0]
	bestDist := math.Abs(best.DrainBias() - target)
	for _, b := range candidates[1:] {
		if d := math.Abs(b.DrainBias() - target); d < bestDist {
			best, bestDist = b, d
		}
	}
	return best, true
}

// Match returns every block within tol of target. Grouping during parsing is
// exact; this looser lookup is only for selecting a block by a typed-in bias.
func Match(blocks []models.SweepBlock, target, tol float64) []models.SweepBlock {
	var out []models.SweepBlock
	for _, b := range blocks {
		if math.Abs(b.DrainBias()-target) < tol {
			out = append(out, b)
		}
	}
	return out
}
