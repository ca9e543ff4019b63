package extraction

import (
	"errors"
	"fmt"
)

// ShapeError reports gate-voltage and current arrays that cannot be used
// together. It indicates a caller bug.
type ShapeError struct {
	VgLen int
	IdLen int
	Min   int
}

func (e *ShapeError) Error() string {
	if e.VgLen != e.IdLen {
		return fmt.Sprintf("vg and id must have equal length, got %d and %d", e.VgLen, e.IdLen)
	}
	return fmt.Sprintf("need at least %d samples, got %d", e.Min, e.VgLen)
}

// ConfigError reports an unknown method or selection criterion
type ConfigError struct {
	Field string
	Value string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("unknown %s: %q", e.Field, e.Value)
}

// ErrNoCandidate is returned when every eligible sample has a NaN metric
var ErrNoCandidate = errors.New("no finite candidate for index selection")
