package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradient_Uniform(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{0, 1, 4, 9}

	assert.Equal(t, []float64{1, 2, 4, 5}, Gradient(y, x))
}

func TestGradient_NonUniform(t *testing.T) {
	x := []float64{0, 1, 3}
	y := []float64{0, 1, 9}

	assert.InDeltaSlice(t, []float64{1, 2, 4}, Gradient(y, x), 1e-12)
}

func TestGradient_Linear(t *testing.T) {
	x := []float64{-1, -0.25, 0.5, 2, 2.1}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 3*v + 1
	}

	for _, g := range Gradient(y, x) {
		assert.InDelta(t, 3.0, g, 1e-12)
	}
}

func TestGradient_TwoPoints(t *testing.T) {
	assert.Equal(t, []float64{2, 2}, Gradient([]float64{1, 3}, []float64{0, 1}))
}

func TestGradient_TooShort(t *testing.T) {
	assert.Equal(t, []float64{0}, Gradient([]float64{5}, []float64{1}))
	assert.Empty(t, Gradient(nil, nil))
}
