package kernels

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gocvfem/InputParameters"
	"github.com/notargets/gocvfem/limiters"
	"github.com/notargets/gocvfem/master"
	"github.com/notargets/gocvfem/mesh"
)

const vof = "volume_of_fluid"

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func options(useLimiter, useMuscl bool, limiterType string, upw float64) *InputParameters.SolutionOptions {
	so := InputParameters.NewSolutionOptions()
	so.LimiterMap[vof] = useLimiter
	so.UseMusclMap[vof] = useMuscl
	so.LimiterTypeMap[vof] = limiterType
	so.UpwMap[vof] = upw
	return so
}

func newKernel(t *testing.T, so *InputParameters.SolutionOptions, source VdotSource) *VofScsUpwAdvElemKernel {
	k, err := NewVofScsUpwAdvElemKernel(so, vof, master.NewQuad4SCS(), source, quietLogger())
	require.NoError(t, err)
	return k
}

// unitElem fills ed with the unit square, nodal q and a uniform gradient
func unitElem(ed *ElemData, q []float64, grad [2]float64) {
	copy(ed.Coords, []float64{0, 0, 1, 0, 1, 1, 0, 1})
	copy(ed.Q, q)
	for ic := 0; ic < 4; ic++ {
		ed.DQdx[2*ic], ed.DQdx[2*ic+1] = grad[0], grad[1]
	}
}

func TestNewVofScsUpwAdvElemKernel(t *testing.T) {
	for name := range limiters.LimiterNames {
		k := newKernel(t, options(true, false, name, 1), StoredVolumeFlowRate)
		assert.Equal(t, name, k.LimiterType.String())
	}
	_, err := NewVofScsUpwAdvElemKernel(options(true, false, "bogus", 1), vof,
		master.NewQuad4SCS(), StoredVolumeFlowRate, quietLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, limiters.ErrUnknownLimiter))
	assert.True(t, errors.Is(err, InputParameters.ErrUnknownOption))

	_, err = NewVofScsUpwAdvElemKernel(options(false, true, "default", 1), vof,
		master.NewQuad4SCS(), VdotSource(9), quietLogger())
	assert.True(t, errors.Is(err, ErrUnknownVdotSource))

	vs, err := NewVdotSource(" Velocity")
	require.NoError(t, err)
	assert.Equal(t, VelocityDotArea, vs)
	_, err = NewVdotSource("pressure")
	assert.True(t, errors.Is(err, ErrUnknownVdotSource))
}

func TestUpwindScenarios(t *testing.T) {
	// Only ip 0 carries flow, between node 0 (q=0) and node 1 (q=1)
	for _, tc := range []struct {
		vdot, flux float64
	}{
		{1, 0},
		{-1, -1},
	} {
		var (
			k   = newKernel(t, options(false, false, "default", 1), StoredVolumeFlowRate)
			ed  = NewElemData(k.MasterElement())
			lhs = mat.NewDense(4, 4, nil)
			rhs = make([]float64, 4)
		)
		unitElem(ed, []float64{0, 1, 1, 0}, [2]float64{0, 0})
		copy(ed.Vdot, []float64{tc.vdot, 0, 0, 0})
		k.Execute(lhs, rhs, ed)
		qIpL, qIpR := ed.States()
		assert.Equal(t, 0., qIpL[0])
		assert.Equal(t, 1., qIpR[0])
		assert.Equal(t, -tc.flux, rhs[0], "vdot %v", tc.vdot)
		assert.Equal(t, tc.flux, rhs[1], "vdot %v", tc.vdot)
		assert.Equal(t, 0., rhs[2])
		assert.Equal(t, 0., rhs[3])
		// both upwind halves land in column il
		assert.Equal(t, 1., lhs.At(0, 0))
		assert.Equal(t, -1., lhs.At(1, 0))
		assert.Equal(t, 0., lhs.At(1, 1))
		assert.Equal(t, 0., lhs.At(0, 1))
	}
}

func TestZeroFlowIsZeroFlux(t *testing.T) {
	for _, useMuscl := range []bool{true, false} {
		var (
			k   = newKernel(t, options(true, useMuscl, "superbee", 1), StoredVolumeFlowRate)
			ed  = NewElemData(k.MasterElement())
			lhs = mat.NewDense(4, 4, nil)
			rhs = make([]float64, 4)
		)
		unitElem(ed, []float64{0.1, 0.9, 0.4, 0.7}, [2]float64{0.3, -0.2})
		k.Execute(lhs, rhs, ed)
		assert.Equal(t, []float64{0, 0, 0, 0}, rhs)
		assert.True(t, mat.Equal(lhs, mat.NewDense(4, 4, nil)))
	}
}

func TestStoredSourceIgnoresVelocity(t *testing.T) {
	var (
		k    = newKernel(t, options(true, true, "van_leer", 1), StoredVolumeFlowRate)
		ed   = NewElemData(k.MasterElement())
		lhs  = mat.NewDense(4, 4, nil)
		rhs  = make([]float64, 4)
		vdot = []float64{0.7, -0.4, 0.25, -1.1}
	)
	unitElem(ed, []float64{0.1, 0.9, 0.4, 0.7}, [2]float64{0.6, -0.3})
	copy(ed.Vdot, vdot)
	for i := range ed.Velocity {
		ed.Velocity[i] = math.NaN()
	}
	k.Execute(lhs, rhs, ed)
	assert.Equal(t, vdot, ed.Vdot)
	for i, r := range rhs {
		assert.False(t, math.IsNaN(r), "rhs %d", i)
	}
	assert.False(t, math.IsNaN(mat.Sum(lhs)))
}

func TestConservationAndUpwind(t *testing.T) {
	var (
		q    = []float64{0.1, 0.9, 0.4, 0.7}
		grad = [2]float64{0.6, -0.3}
		vdot = []float64{0.7, -0.4, 0.25, -1.1}
		lr   = master.NewQuad4SCS().Adjacent()
	)
	for name := range limiters.LimiterNames {
		for _, useMuscl := range []bool{true, false} {
			for _, useLimiter := range []bool{true, false} {
				k := newKernel(t, options(useLimiter, useMuscl, name, 0.8), StoredVolumeFlowRate)
				ed := NewElemData(k.MasterElement())
				unitElem(ed, q, grad)
				for ip := 0; ip < 4; ip++ {
					var (
						lhs = mat.NewDense(4, 4, nil)
						rhs = make([]float64, 4)
						il  = lr[2*ip]
						ir  = lr[2*ip+1]
					)
					for i := range ed.Vdot {
						ed.Vdot[i] = 0
					}
					ed.Vdot[ip] = vdot[ip]
					k.Execute(lhs, rhs, ed)
					assert.Equal(t, -rhs[il], rhs[ir])
					qIpL, qIpR := ed.States()
					if vdot[ip] > 0 {
						assert.Equal(t, vdot[ip]*qIpL[ip], rhs[ir])
					} else {
						assert.Equal(t, vdot[ip]*qIpR[ip], rhs[ir])
					}
					// upwind split: the column sums to zero, the diagonal is |vdot|
					assert.InDelta(t, abs(vdot[ip]), lhs.At(il, il), 1.e-15)
					assert.InDelta(t, 0., lhs.At(il, il)+lhs.At(ir, il), 1.e-15)
				}
			}
		}
	}
}

func TestReconstructionPaths(t *testing.T) {
	// q = x sampled on the unit square, ip 0 is at (0.5, 0.25)
	var (
		q    = []float64{0, 1, 1, 0}
		grad = [2]float64{1, 0}
	)
	run := func(so *InputParameters.SolutionOptions) (qIpL, qIpR float64) {
		k := newKernel(t, so, StoredVolumeFlowRate)
		ed := NewElemData(k.MasterElement())
		unitElem(ed, q, grad)
		k.Execute(mat.NewDense(4, 4, nil), make([]float64, 4), ed)
		l, r := ed.States()
		return l[0], r[0]
	}
	{ // legacy, full upwind factor, exact for linear data
		l, r := run(options(false, false, "default", 1))
		assert.InDelta(t, 0.5, l, 1.e-15)
		assert.InDelta(t, 0.5, r, 1.e-15)
	}
	{ // legacy, blended
		l, r := run(options(false, false, "default", 0.5))
		assert.InDelta(t, 0.25, l, 1.e-15)
		assert.InDelta(t, 0.75, r, 1.e-15)
	}
	{ // legacy limited: dqMl = 4*0.5 - 1 = dq, so every limiter is one
		for name := range limiters.LimiterNames {
			l, r := run(options(true, false, name, 1))
			assert.InDelta(t, 0.5, l, 1.e-9, name)
			assert.InDelta(t, 0.5, r, 1.e-9, name)
		}
	}
	{ // MUSCL halves the projected difference
		l, r := run(options(false, true, "default", 1))
		assert.InDelta(t, 0.25, l, 1.e-15)
		assert.InDelta(t, 0.75, r, 1.e-15)
	}
	{ // a gradient opposing the jump switches the legacy extrapolation off
		k := newKernel(t, options(true, false, "minmod", 1), StoredVolumeFlowRate)
		ed := NewElemData(k.MasterElement())
		unitElem(ed, q, [2]float64{-1, 0})
		k.Execute(mat.NewDense(4, 4, nil), make([]float64, 4), ed)
		l, r := ed.States()
		assert.Equal(t, 0., l[0])
		assert.Equal(t, 1., r[0])
	}
}

func TestFlatFieldStates(t *testing.T) {
	for name := range limiters.LimiterNames {
		for _, useMuscl := range []bool{true, false} {
			k := newKernel(t, options(true, useMuscl, name, 1), StoredVolumeFlowRate)
			ed := NewElemData(k.MasterElement())
			unitElem(ed, []float64{0.2, 0.2, 0.2, 0.2}, [2]float64{0, 0})
			k.Execute(mat.NewDense(4, 4, nil), make([]float64, 4), ed)
			l, r := ed.States()
			for ip := 0; ip < 4; ip++ {
				assert.Equal(t, 0.2, l[ip])
				assert.Equal(t, 0.2, r[ip])
			}
		}
	}
}

func TestVelocitySourceAndGather(t *testing.T) {
	var (
		m  = mesh.NewRectangularMesh(1, 1, 1, 1)
		fs = mesh.NewMeshFieldStore(m)
	)
	copy(fs.Register("coordinates", mesh.NodeRank, 2).Data, m.Coords)
	fs.Register(vof, mesh.NodeRank, 1).Fill(1)
	fs.Register("dvofdx", mesh.NodeRank, 2)
	vel := fs.Register("velocity", mesh.NodeRank, 2)
	for n := 0; n < m.NumNodes(); n++ {
		copy(vel.Entity(n), []float64{1, 0.5})
	}

	k := newKernel(t, options(false, false, "default", 1), VelocityDotArea)
	ef, err := k.Fields(fs)
	require.NoError(t, err)
	assert.Nil(t, ef.Vdot)

	var (
		ed  = NewElemData(k.MasterElement())
		lhs = mat.NewDense(4, 4, nil)
		rhs = make([]float64, 4)
	)
	ed.Gather(k.MasterElement(), 0, m.Elements[0][:], ef)
	k.Execute(lhs, rhs, ed)
	assert.InDeltaSlice(t, []float64{0.5, 0.25, 0.5, 0.25}, ed.Vdot, 1.e-15)
	// q = 1 everywhere: node 0 loses 0.5 + 0.25, node 2 gains it
	assert.InDeltaSlice(t, []float64{-0.75, 0.25, 0.75, -0.25}, rhs, 1.e-15)

	// stored source needs the element field
	ks := newKernel(t, options(false, false, "default", 1), StoredVolumeFlowRate)
	_, err = ks.Fields(fs)
	assert.True(t, errors.Is(err, mesh.ErrUnknownField))

	// relative velocity when the mesh moves
	so := options(false, false, "default", 1)
	so.MeshMotion = true
	km := newKernel(t, so, VelocityDotArea)
	_, err = km.Fields(fs)
	assert.True(t, errors.Is(err, mesh.ErrUnknownField))

	assert.Panics(t, func() { ed.Gather(k.MasterElement(), 0, []int{0, 1, 2}, ef) })
	assert.Panics(t, func() { k.Execute(mat.NewDense(3, 3, nil), rhs, ed) })
}
