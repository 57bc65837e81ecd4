package realm

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gocvfem/InputParameters"
	"github.com/notargets/gocvfem/kernels"
	"github.com/notargets/gocvfem/linsys"
	"github.com/notargets/gocvfem/mesh"
)

func newRealm(t *testing.T, nx, ny, degree int, mod func(ip *InputParameters.InputParameters)) *Realm {
	log := logrus.New()
	log.SetOutput(io.Discard)
	ip := InputParameters.NewInputParameters()
	ip.ParallelDegree = degree
	ip.InitialConditions.Velocity = []float64{1, 0.25}
	ip.InitialConditions.InterfaceX = 0.4
	if mod != nil {
		mod(ip)
	}
	r, err := NewRealm(mesh.NewRectangularMesh(nx, ny, 1, 1), ip, log)
	require.NoError(t, err)
	r.InitializeFields(ip.InitialConditions)
	return r
}

func TestGeometry(t *testing.T) {
	r := newRealm(t, 4, 3, 2, nil)
	assert.InDelta(t, 1., r.TotalVolume(), 1.e-14)
	// exposed areas of a closed boundary sum to zero
	var sum [2]float64
	area := r.Fields.MustGet("exposed_area_vector")
	for fi := range r.Mesh.Faces {
		a := area.Entity(fi)
		sum[0] += a[0] + a[2]
		sum[1] += a[1] + a[3]
	}
	assert.InDelta(t, 0., sum[0], 1.e-14)
	assert.InDelta(t, 0., sum[1], 1.e-14)
}

func TestScsVolumeFlowRate(t *testing.T) {
	r := newRealm(t, 1, 1, 1, nil)
	assert.InDeltaSlice(t, []float64{0.5, 0.125, 0.5, 0.125},
		r.Fields.MustGet("volume_flow_rate_scs").Entity(0), 1.e-15)
}

func TestParallelAssemblyMatchesSerial(t *testing.T) {
	assemble := func(degree int, source kernels.VdotSource) *linsys.System {
		r := newRealm(t, 5, 4, degree, func(ip *InputParameters.InputParameters) {
			so := ip.SolutionOptions
			so.LimiterMap[vofName] = true
			so.LimiterTypeMap[vofName] = "van_leer"
			so.UpwMap[vofName] = 0.8
		})
		sys := linsys.NewSystem(r.Mesh.NumNodes(), 1)
		require.NoError(t, r.AssembleVofAdvection(sys, source))
		return sys
	}
	for _, source := range []kernels.VdotSource{kernels.StoredVolumeFlowRate, kernels.VelocityDotArea} {
		serial := assemble(1, source)
		// interior advection only moves vof between nodes
		assert.InDelta(t, 0., floats.Sum(serial.RHS), 1.e-14)
		assert.True(t, floats.Norm(serial.RHS, 2) > 0)
		for _, degree := range []int{2, 3, 7, 64} {
			par := assemble(degree, source)
			assert.InDeltaSlice(t, serial.RHS, par.RHS, 1.e-14, "degree %d", degree)
			assert.True(t, mat.EqualApprox(serial.LHS, par.LHS, 1.e-14), "degree %d", degree)
		}
	}
}

func TestNodalGradientParallel(t *testing.T) {
	for _, degree := range []int{1, 3, 5} {
		r := newRealm(t, 4, 4, degree, nil)
		p := r.Fields.MustGet("pressure")
		for n := 0; n < r.Mesh.NumNodes(); n++ {
			x, y := r.Mesh.Coords[2*n], r.Mesh.Coords[2*n+1]
			p.Data[n] = 3*x + y
		}
		dpdx := r.Fields.MustGet("dpdx")
		r.ComputeNodalGradient(p, dpdx)
		for n := 0; n < r.Mesh.NumNodes(); n++ {
			assert.InDeltaSlice(t, []float64{3, 1}, dpdx.Entity(n), 1.e-12)
		}
	}
}

func TestOpenMdotReduction(t *testing.T) {
	for _, degree := range []int{1, 2, 4} {
		r := newRealm(t, 3, 4, degree, func(ip *InputParameters.InputParameters) {
			ip.InitialConditions.Velocity = []float64{2, 0}
			ip.InitialConditions.DensityPhaseOne = 3
			ip.InitialConditions.DensityPhaseTwo = 3
		})
		require.NoError(t, r.ComputeOpenMdot("right"))
		// rho*u*Ly
		assert.InDelta(t, 6., r.MdotAlgOpen, 1.e-13)
		require.NoError(t, r.ComputeOpenMdot("left"))
		assert.InDelta(t, 0., r.MdotAlgOpen, 1.e-13)
		r.ResetMdotAlgOpen()
		// a repeated part is counted once
		require.NoError(t, r.ComputeOpenMdot("right", "right"))
		assert.InDelta(t, 6., r.MdotAlgOpen, 1.e-13)
		r.ResetMdotAlgOpen()
		assert.Equal(t, 0., r.MdotAlgOpen)

		err := r.ComputeOpenMdot("outlet")
		assert.True(t, errors.Is(err, mesh.ErrUnknownPart))
	}
}

func TestPressureBoundaryAndShapes(t *testing.T) {
	r := newRealm(t, 2, 2, 2, func(ip *InputParameters.InputParameters) {
		ip.InitialConditions.Pressure = 2
	})
	sys := linsys.NewSystem(r.Mesh.NumNodes(), 2)
	require.NoError(t, r.AssemblePressureBoundary(sys, "right"))
	// p*A_x summed at the right side nodes is p*Ly
	var fx float64
	for n := 0; n < r.Mesh.NumNodes(); n++ {
		fx += sys.RHS[2*n]
	}
	assert.InDelta(t, 2., fx, 1.e-14)

	wrong := linsys.NewSystem(r.Mesh.NumNodes(), 2)
	err := r.AssembleVofAdvection(wrong, kernels.StoredVolumeFlowRate)
	assert.True(t, errors.Is(err, ErrSystemShape))
	err = r.AssemblePressureBoundary(linsys.NewSystem(3, 2), "right")
	assert.True(t, errors.Is(err, ErrSystemShape))
}

func TestStepAdvectsVof(t *testing.T) {
	r := newRealm(t, 8, 2, 3, func(ip *InputParameters.InputParameters) {
		ip.TimeStep = 0.02
		ip.InitialConditions.Velocity = []float64{1, 0}
	})
	before := r.VofInventory()
	for i := 0; i < 3; i++ {
		norm, err := r.Step(kernels.StoredVolumeFlowRate, "left", "right")
		require.NoError(t, err)
		assert.True(t, norm > 0)
		assert.True(t, r.SolveResidual < 1.e-10*norm, "residual %g", r.SolveResidual)
	}
	// unit vof enters through the left side at u*Ly per unit time
	assert.InDelta(t, before+3*0.02, r.VofInventory(), 1.e-3)
	// left is phase one entering, right phase two leaving
	assert.InDelta(t, -1+1.2e-3, r.MdotAlgOpen, 1.e-12)
}
