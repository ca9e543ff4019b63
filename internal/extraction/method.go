package extraction

import (
	"math"
	"strings"

	"github.com/RMahshie/vthlab/pkg/models"
)

// Method selects the threshold extraction algorithm
type Method int

const (
	// Traditional is linear extrapolation of Id at maximum transconductance,
	// suited to linear-region sweeps.
	Traditional Method = iota
	// Sqrt is linear extrapolation of sqrt(Id), suited to saturation sweeps.
	Sqrt
	// Hybrid picks Traditional or Sqrt from the drain bias of the block.
	Hybrid
)

var methodNames = map[Method]string{
	Traditional: "traditional",
	Sqrt:        "sqrt",
	Hybrid:      "hybrid",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseMethod maps a method name (any case) to a Method
func ParseMethod(s string) (Method, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for m, name := range methodNames {
		if name == key {
			return m, nil
		}
	}
	return Traditional, &ConfigError{Field: "method", Value: s}
}

// ParseMethods parses a list of method names, defaulting to Traditional
func ParseMethods(names []string) ([]Method, error) {
	if len(names) == 0 {
		return []Method{Traditional}, nil
	}
	methods := make([]Method, 0, len(names))
	for _, name := range names {
		m, err := ParseMethod(name)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, nil
}

// Criterion selects which derivative is maximised to pick the tangent point
type Criterion int

const (
	MaxGm Criterion = iota
	MaxDgm
)

func (c Criterion) String() string {
	switch c {
	case MaxGm:
		return "max-gm"
	case MaxDgm:
		return "max-dgm"
	default:
		return "unknown"
	}
}

// ParseCriterion maps "max-gm" or "max-dgm" to a Criterion. Empty means max-gm.
func ParseCriterion(s string) (Criterion, error) {
	switch s {
	case "", "max-gm":
		return MaxGm, nil
	case "max-dgm":
		return MaxDgm, nil
	default:
		return MaxGm, &ConfigError{Field: "criterion", Value: s}
	}
}

// Default extraction settings.
const (
	DefaultWindow            = 7
	DefaultReflectionVoltage = 1.2
	DefaultHybridThreshold   = 0.5
)

// Options tunes an extraction. Use DefaultOptions as the starting point.
type Options struct {
	// Window is the minimum number of above-floor samples required before
	// the floor mask is applied (never fewer than 5).
	Window    int
	Criterion Criterion
	// ReflectionVoltage is the rail PMOS gate voltages are mirrored about.
	ReflectionVoltage float64
	// HybridThreshold is the |Vd| at which Hybrid switches to Sqrt.
	HybridThreshold float64
}

// DefaultOptions returns the settings used by the measurement setup
func DefaultOptions() Options {
	return Options{
		Window:            DefaultWindow,
		Criterion:         MaxGm,
		ReflectionVoltage: DefaultReflectionVoltage,
		HybridThreshold:   DefaultHybridThreshold,
	}
}

// Reflect mirrors a gate voltage about ref
func Reflect(v, ref float64) float64 {
	return ref - v
}

// SelectForBias returns Traditional below threshold and Sqrt at or above it
func SelectForBias(drainBias, threshold float64) Method {
	if math.Abs(drainBias) < threshold {
		return Traditional
	}
	return Sqrt
}

// DefaultTarget returns the drain bias a method is normally evaluated at.
// Linear-region extraction uses a small |Vds|; sqrt uses a saturated one.
// For PMOS the source sits on the reflection rail, so small |Vds| means a
// drain bias near the rail.
func DefaultTarget(polarity models.Polarity, method Method) float64 {
	switch {
	case method == Sqrt && polarity == models.PMOS:
		return 0.0
	case method == Sqrt:
		return 1.1
	case polarity == models.PMOS:
		return 1.1
	default:
		return 0.1
	}
}
