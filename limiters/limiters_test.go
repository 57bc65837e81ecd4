package limiters

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKinds = []Kind{VanLeerT, MinmodT, SuperbeeT, UltrabeeT, DefaultT}

func TestNewKind(t *testing.T) {
	for name, kind := range LimiterNames {
		lk, err := NewKind(name)
		require.NoError(t, err)
		assert.Equal(t, kind, lk)
		assert.Equal(t, name, lk.String())
	}
	lk, err := NewKind("  Van_Leer ")
	require.NoError(t, err)
	assert.Equal(t, VanLeerT, lk)

	_, err = NewKind("bogus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownLimiter))

	_, err = Lookup[float64](Kind(42))
	assert.True(t, errors.Is(err, ErrUnknownLimiter))
}

func TestLimiterZeroOutsideMonotoneCone(t *testing.T) {
	pairs := [][2]float64{
		{1, -1}, {-2, 0.5}, {0, 1}, {1, 0}, {0, 0}, {-1e-12, 1e-12}, {3, -7},
	}
	for _, lk := range allKinds {
		f, err := Lookup[float64](lk)
		require.NoError(t, err)
		for _, p := range pairs {
			assert.Equal(t, 0., f(p[0], p[1], DefaultSmall), "%s(%v, %v)", lk, p[0], p[1])
		}
	}
}

func TestLimiterUnityOnUniformGradient(t *testing.T) {
	for _, lk := range allKinds {
		f, err := Lookup[float64](lk)
		require.NoError(t, err)
		for _, d := range []float64{1, -1, 0.25, 3.5, -40} {
			assert.InDelta(t, 1., f(d, d, DefaultSmall), 1.e-9, "%s at dq=dm=%v", lk, d)
		}
	}
}

func TestLimiterOrdering(t *testing.T) {
	var (
		eps = 1.e-9
	)
	for _, dm := range []float64{1, -2, 0.5} {
		for r := 0.05; r < 6; r += 0.05 {
			dq := r * dm
			mm := Minmod(dq, dm, DefaultSmall)
			vl := VanLeer(dq, dm, DefaultSmall)
			sb := Superbee(dq, dm, DefaultSmall)
			ub := Ultrabee(dq, dm, DefaultSmall)
			assert.LessOrEqual(t, mm, vl+eps, "r = %v", r)
			assert.LessOrEqual(t, vl, sb+eps, "r = %v", r)
			assert.LessOrEqual(t, sb, ub+eps, "r = %v", r)
			for _, phi := range []float64{mm, vl, sb, ub} {
				assert.True(t, phi >= 0 && phi <= 2+eps)
			}
		}
	}
}

func TestLimiterScenarios(t *testing.T) {
	{ // A: van Leer on equal differences
		assert.InDelta(t, 1., VanLeer(1., 1., 1.e-10), 1.e-9)
	}
	{ // B: minmod picks the smaller magnitude, normalized by |dm|
		phi := Minmod(2., 1., 1.e-10)
		assert.InDelta(t, 1., phi, 1.e-9)
		assert.InDelta(t, 0.5, Minmod(1., 2., 1.e-10), 1.e-9)
	}
	{ // Hand computed values
		assert.InDelta(t, 4./3., VanLeer(2., 1., 0.), 1.e-14)
		assert.InDelta(t, 2., Superbee(3., 1., 0.), 1.e-14)
		assert.InDelta(t, 1.5, Superbee(1.5, 1., 0.), 1.e-14)
		assert.InDelta(t, 2., Ultrabee(1.5, 1., 0.), 1.e-14)
		assert.InDelta(t, 8./9., Default(2., 1., 0.), 1.e-14)
	}
}

func TestLimiterRegularization(t *testing.T) {
	// dm == 0 must never divide by zero
	for _, lk := range allKinds {
		f, _ := Lookup[float64](lk)
		phi := f(1.e-20, 0, DefaultSmall)
		assert.False(t, math.IsNaN(phi) || math.IsInf(phi, 0), "%s", lk)
		assert.Equal(t, 0., phi)
	}
	// Tiny same-signed differences are damped by small rather than blowing up
	phi := Minmod(1.e-12, 1.e-12, DefaultSmall)
	assert.Less(t, phi, 0.02)
}

func TestLimiterGenericFloat32(t *testing.T) {
	f, err := Lookup[float32](VanLeerT)
	require.NoError(t, err)
	assert.InDelta(t, 1., float64(f(1, 1, 1.e-10)), 1.e-6)
	assert.Equal(t, float32(0), f(1, -1, 1.e-10))
}

func TestLimiterBatch(t *testing.T) {
	var (
		dq  = []float64{1, 2, -1, 0.5}
		dm  = []float64{1, 1, 1, 1}
		dst = make([]float64, 4)
	)
	f, err := Lookup[float64](MinmodT)
	require.NoError(t, err)
	f.Batch(dst, dq, dm, DefaultSmall)
	for i := range dst {
		assert.Equal(t, f(dq[i], dm[i], DefaultSmall), dst[i])
	}
	assert.Panics(t, func() { f.Batch(dst[:2], dq, dm, DefaultSmall) })
}
