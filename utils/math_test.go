package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPOW(t *testing.T) {
	for p := -10; p <= 10; p++ {
		assert.InDelta(t, math.Pow(1.3, float64(p)), POW(1.3, p), 1.e-12, "p = %d", p)
	}
	assert.Equal(t, 1., POW(0, 0))
	assert.Equal(t, 1., PowReal(0, 0))
	assert.Equal(t, 0.25, PowReal(0.5, 2))
	assert.InDelta(t, math.Sqrt(0.5), PowReal(0.5, 0.5), 1.e-15)
}
