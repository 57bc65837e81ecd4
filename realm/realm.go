package realm

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gocvfem/InputParameters"
	"github.com/notargets/gocvfem/kernels"
	"github.com/notargets/gocvfem/linsys"
	"github.com/notargets/gocvfem/master"
	"github.com/notargets/gocvfem/mesh"
	"github.com/notargets/gocvfem/openbc"
	"github.com/notargets/gocvfem/png"
	"github.com/notargets/gocvfem/utils"
)

var ErrSystemShape = errors.New("linear system does not match the mesh")

const vofName = "volume_of_fluid"

/*
Realm owns a mesh, its fields and the algorithms that run over them. Element
loops are split into ParallelDegree buckets; each bucket runs on its own
goroutine with its own scratch and partial results, which are combined in
bucket order after the join.
*/
type Realm struct {
	Mesh           *mesh.Mesh
	Params         *InputParameters.InputParameters
	Opts           *InputParameters.SolutionOptions
	Fields         *mesh.FieldStore
	MeSCS          master.ScsMasterElement
	MeFC           master.FaceMasterElement
	ParallelDegree int
	ElementPart    *utils.PartitionMap
	FacePart       *utils.PartitionMap

	// MdotAlgOpen is the net mass flow through the open boundaries, summed over
	// every ComputeOpenMdot since the last ResetMdotAlgOpen.
	MdotAlgOpen   float64
	// SolveResidual is the norm of RHS - LHS*dq of the last Step's solve.
	SolveResidual float64

	log        logrus.FieldLogger
	advKernels map[kernels.VdotSource]*kernels.VofScsUpwAdvElemKernel
	openAlg    *openbc.MdotVofElemOpenAlgorithm
}

func NewRealm(m *mesh.Mesh, params *InputParameters.InputParameters, log logrus.FieldLogger) (r *Realm, err error) {
	if err = m.Validate(); err != nil {
		return
	}
	if params.SolutionOptions == nil {
		params.SolutionOptions = InputParameters.NewSolutionOptions()
	}
	r = &Realm{
		Mesh:           m,
		Params:         params,
		Opts:           params.SolutionOptions,
		Fields:         mesh.NewMeshFieldStore(m),
		MeSCS:          master.NewQuad4SCS(),
		MeFC:           master.NewEdge2Face(),
		ParallelDegree: params.ParallelDegree,
		advKernels:     make(map[kernels.VdotSource]*kernels.VofScsUpwAdvElemKernel),
	}
	if r.ParallelDegree < 1 {
		r.ParallelDegree = runtime.NumCPU()
	}
	r.log = log.WithField("realm", r.Opts.Name)
	r.ElementPart = utils.NewPartitionMap(r.ParallelDegree, m.NumElements())
	r.FacePart = utils.NewPartitionMap(r.ParallelDegree, m.NumFaces())
	r.registerFields()
	r.computeGeometry()
	r.openAlg = openbc.NewMdotVofElemOpenAlgorithm(r.Opts, r.MeSCS, r.MeFC, r.log)
	r.log.WithFields(logrus.Fields{
		"nodes":          m.NumNodes(),
		"elements":       m.NumElements(),
		"faces":          m.NumFaces(),
		"parallelDegree": r.ParallelDegree,
		"volume":         r.TotalVolume(),
	}).Info("realm initialized")
	return
}

func (r *Realm) registerFields() {
	var (
		fs    = r.Fields
		nDim  = r.Mesh.NDim
		numIp = r.MeSCS.NumIntPoints()
		numBp = r.MeFC.NumIntPoints()
	)
	copy(fs.Register("coordinates", mesh.NodeRank, nDim).Data, r.Mesh.Coords)
	for _, name := range []string{vofName, "pressure", "pressure_bc", "density",
		"interface_curvature", "surface_tension", "dual_nodal_volume"} {
		fs.Register(name, mesh.NodeRank, 1)
	}
	for _, name := range []string{"dvofdx", "dpdx", "velocity", r.Opts.VelocityName()} {
		fs.Register(name, mesh.NodeRank, nDim)
	}
	fs.Register("volume_flow_rate_scs", mesh.ElementRank, numIp)
	fs.Register("exposed_area_vector", mesh.SideRank, numBp*nDim)
	for _, name := range []string{"dynamic_pressure", "open_mass_flow_rate", "open_volume_flow_rate"} {
		fs.Register(name, mesh.SideRank, numBp)
	}
}

// computeGeometry fills the exposed area vectors and dual nodal volumes.
func (r *Realm) computeGeometry() {
	var (
		m      = r.Mesh
		area   = r.Fields.MustGet("exposed_area_vector")
		vol    = r.Fields.MustGet("dual_nodal_volume")
		coords = r.Fields.MustGet("coordinates")
		fc     = make([]float64, r.MeFC.NodesPerFace()*m.NDim)
		ec     = make([]float64, r.MeSCS.NodesPerElement()*m.NDim)
		scv    = make([]float64, r.MeSCS.NodesPerElement())
	)
	for fi, f := range m.Faces {
		coords.GatherNodes(f.Nodes[:], fc)
		r.MeFC.Determinant(fc, area.Entity(fi))
	}
	for k, conn := range m.Elements {
		m.ElementCoords(k, ec)
		r.MeSCS.ScvVolumes(ec, scv)
		for i, n := range conn {
			vol.Data[n] += scv[i]
		}
	}
}

// InitializeFields sets a two phase state split at x = InterfaceX, then
// computes the vof gradient and the sub-control surface volume flow.
func (r *Realm) InitializeFields(ic InputParameters.InitialConditions) {
	var (
		fs   = r.Fields
		m    = r.Mesh
		vof  = fs.MustGet(vofName)
		rho  = fs.MustGet("density")
		nDim = m.NDim
	)
	for n := 0; n < m.NumNodes(); n++ {
		if m.Coords[n*nDim] < ic.InterfaceX {
			vof.Data[n] = 1
		} else {
			vof.Data[n] = 0
		}
		rho.Data[n] = vof.Data[n]*ic.DensityPhaseOne + (1-vof.Data[n])*ic.DensityPhaseTwo
	}
	for _, name := range []string{"velocity", r.Opts.VelocityName()} {
		vel := fs.MustGet(name)
		for n := 0; n < m.NumNodes(); n++ {
			copy(vel.Entity(n), ic.Velocity)
		}
	}
	fs.MustGet("pressure").Fill(ic.Pressure)
	fs.MustGet("pressure_bc").Fill(ic.BoundaryPressure)
	fs.MustGet("surface_tension").Fill(ic.SurfaceTension)
	fs.MustGet("interface_curvature").Fill(ic.Curvature)
	fs.MustGet("dynamic_pressure").Fill(ic.DynamicPressure)
	fs.MustGet("dpdx").Fill(0)
	r.ComputeNodalGradient(vof, fs.MustGet("dvofdx"))
	r.ComputeScsVolumeFlowRate()
}

// ComputeNodalGradient fills grad with the projected nodal gradient of q.
func (r *Realm) ComputeNodalGradient(q, grad *mesh.Field) {
	var (
		shifted  = r.Opts.ShiftedGradOp(q.Name)
		partials = make([][]float64, r.ParallelDegree)
		area     = r.Fields.MustGet("exposed_area_vector")
		dualVol  = r.Fields.MustGet("dual_nodal_volume")
	)
	if r.ParallelDegree == 1 {
		png.ComputeLumped(r.Mesh, r.MeSCS, r.MeFC, shifted, q, area, dualVol, grad)
		return
	}
	r.ElementPart.Run(func(bn, kMin, kMax int) {
		var (
			g   = png.NewNodalGradient(r.MeSCS, r.MeFC, shifted)
			acc = make([]float64, len(grad.Data))
		)
		for k := kMin; k < kMax; k++ {
			g.Interior(r.Mesh, k, q, acc)
		}
		fMin, fMax := r.FacePart.GetBucketRange(bn)
		for fi := fMin; fi < fMax; fi++ {
			g.Boundary(r.Mesh, fi, q, area, acc)
		}
		partials[bn] = acc
	})
	acc := make([]float64, len(grad.Data))
	for _, p := range partials {
		floats.Add(acc, p)
	}
	png.Finalize(acc, dualVol, grad)
}

// ComputeScsVolumeFlowRate stores u_ip.A_ip for every sub-control surface.
func (r *Realm) ComputeScsVolumeFlowRate() {
	var (
		vel   = r.Fields.MustGet(r.Opts.VelocityName())
		vdot  = r.Fields.MustGet("volume_flow_rate_scs")
		npe   = r.MeSCS.NodesPerElement()
		numIp = r.MeSCS.NumIntPoints()
		nDim  = r.MeSCS.Dim()
		shape = r.MeSCS.ShapeFcn()
	)
	r.ElementPart.Run(func(bn, kMin, kMax int) {
		var (
			coords = make([]float64, npe*nDim)
			u      = make([]float64, npe*nDim)
			areav  = make([]float64, numIp*nDim)
		)
		for k := kMin; k < kMax; k++ {
			nodes := r.Mesh.Elements[k][:]
			r.Mesh.ElementCoords(k, coords)
			vel.GatherNodes(nodes, u)
			r.MeSCS.Determinant(coords, areav)
			v := vdot.Entity(k)
			for ip := 0; ip < numIp; ip++ {
				v[ip] = 0
				for j := 0; j < nDim; j++ {
					var uIp float64
					for ic := 0; ic < npe; ic++ {
						uIp += shape[ip*npe+ic] * u[ic*nDim+j]
					}
					v[ip] += uIp * areav[ip*nDim+j]
				}
			}
		}
	})
}

func (r *Realm) advectionKernel(source kernels.VdotSource) (k *kernels.VofScsUpwAdvElemKernel, err error) {
	var ok bool
	if k, ok = r.advKernels[source]; ok {
		return
	}
	if k, err = kernels.NewVofScsUpwAdvElemKernel(r.Opts, vofName, r.MeSCS, source, r.log); err != nil {
		return
	}
	r.advKernels[source] = k
	return
}

// AssembleVofAdvection adds the interior upwind advection of the vof to sys.
func (r *Realm) AssembleVofAdvection(sys *linsys.System, source kernels.VdotSource) (err error) {
	var (
		k        *kernels.VofScsUpwAdvElemKernel
		ef       *kernels.ElemFields
		partials = make([]*linsys.System, r.ParallelDegree)
		npe      = r.MeSCS.NodesPerElement()
	)
	if err = r.checkSystem(sys, 1); err != nil {
		return
	}
	if k, err = r.advectionKernel(source); err != nil {
		return
	}
	if ef, err = k.Fields(r.Fields); err != nil {
		return
	}
	r.ElementPart.Run(func(bn, kMin, kMax int) {
		var (
			partial = sys.NewPartial()
			ed      = kernels.NewElemData(r.MeSCS)
			lhs     = mat.NewDense(npe, npe, nil)
			rhs     = make([]float64, npe)
		)
		for kk := kMin; kk < kMax; kk++ {
			nodes := r.Mesh.Elements[kk][:]
			ed.Gather(r.MeSCS, kk, nodes, ef)
			lhs.Zero()
			for i := range rhs {
				rhs[i] = 0
			}
			k.Execute(lhs, rhs, ed)
			partial.SumInto(nodes, lhs, rhs)
		}
		partials[bn] = partial
	})
	sys.Merge(partials...)
	return
}

// ComputeOpenMdot fills the open boundary mass and volume flow on the faces of
// the named parts and adds their net mass flow to MdotAlgOpen.
func (r *Realm) ComputeOpenMdot(openParts ...string) (err error) {
	var (
		faces []int
		ff    *openbc.FaceFields
	)
	if faces, err = r.Mesh.PartFaces(openParts...); err != nil {
		return
	}
	if ff, err = r.openAlg.Fields(r.Fields); err != nil {
		return
	}
	var (
		pm            = utils.NewPartitionMap(r.ParallelDegree, len(faces))
		sums          = make([]float64, r.ParallelDegree)
		projTimeScale = r.Params.ProjectionTimeScale()
	)
	pm.Run(func(bn, kMin, kMax int) {
		fd := openbc.NewFaceData(r.MeSCS, r.MeFC)
		for i := kMin; i < kMax; i++ {
			var (
				fi = faces[i]
				f  = r.Mesh.Faces[fi]
			)
			fd.Gather(r.MeSCS, fi, f, r.Mesh.Elements[f.Element][:], ff)
			sums[bn] += r.openAlg.Execute(fd, projTimeScale,
				ff.VolumeFlowRate.Entity(fi), ff.MassFlowRate.Entity(fi))
		}
	})
	mdot := utils.SumReduce(sums)
	r.MdotAlgOpen += mdot
	r.log.WithFields(logrus.Fields{
		"parts": openParts,
		"mdot":  mdot,
		"total": r.MdotAlgOpen,
	}).Debug("open boundary mass flow")
	return
}

func (r *Realm) ResetMdotAlgOpen() { r.MdotAlgOpen = 0 }

// AssemblePressureBoundary adds the open boundary terms of the projected
// pressure gradient system, nDim dofs per node.
func (r *Realm) AssemblePressureBoundary(sys *linsys.System, openParts ...string) (err error) {
	var faces []int
	if err = r.checkSystem(sys, r.Mesh.NDim); err != nil {
		return
	}
	if faces, err = r.Mesh.PartFaces(openParts...); err != nil {
		return
	}
	png.AssemblePressureBoundary(r.Mesh, r.MeFC, faces,
		r.Fields.MustGet("pressure"), r.Fields.MustGet("dynamic_pressure"),
		r.Fields.MustGet("exposed_area_vector"), sys)
	return
}

// AssembleOpenOutflow upwinds the vof through the open faces using the open
// boundary volume flow. Outflow is implicit in the boundary node, inflow
// carries the current boundary node value.
func (r *Realm) AssembleOpenOutflow(sys *linsys.System, openParts ...string) (err error) {
	var (
		faces   []int
		vof     = r.Fields.MustGet(vofName)
		vdot    = r.Fields.MustGet("open_volume_flow_rate")
		ipNodes = r.MeFC.IpNodeMap()
		one     = mat.NewDense(1, 1, nil)
		rhs     = make([]float64, 1)
	)
	if err = r.checkSystem(sys, 1); err != nil {
		return
	}
	if faces, err = r.Mesh.PartFaces(openParts...); err != nil {
		return
	}
	for _, fi := range faces {
		f := r.Mesh.Faces[fi]
		for ip, v := range vdot.Entity(fi) {
			nn := f.Nodes[ipNodes[ip]]
			rhs[0] = -v * vof.Data[nn]
			one.Set(0, 0, 0)
			if v > 0 {
				one.Set(0, 0, v)
			}
			sys.SumInto([]int{nn}, one, rhs)
		}
	}
	return
}

// AssembleMass adds the backward Euler time term V/dt to the diagonal.
func (r *Realm) AssembleMass(sys *linsys.System, dt float64) (err error) {
	var (
		vol = r.Fields.MustGet("dual_nodal_volume")
		one = mat.NewDense(1, 1, nil)
		rhs = make([]float64, 1)
	)
	if err = r.checkSystem(sys, 1); err != nil {
		return
	}
	for n, v := range vol.Data {
		one.Set(0, 0, v/dt)
		sys.SumInto([]int{n}, one, rhs)
	}
	return
}

// Step advances the vof one linearized backward Euler step and returns the
// norm of the assembled right hand side.
func (r *Realm) Step(source kernels.VdotSource, openParts ...string) (rhsNorm float64, err error) {
	var (
		sys = linsys.NewSystem(r.Mesh.NumNodes(), 1)
		dq  []float64
		vof = r.Fields.MustGet(vofName)
	)
	r.ResetMdotAlgOpen()
	if len(openParts) != 0 {
		if err = r.ComputeOpenMdot(openParts...); err != nil {
			return
		}
		if err = r.AssembleOpenOutflow(sys, openParts...); err != nil {
			return
		}
	}
	if err = r.AssembleVofAdvection(sys, source); err != nil {
		return
	}
	if err = r.AssembleMass(sys, r.Params.TimeStep); err != nil {
		return
	}
	rhsNorm = floats.Norm(sys.RHS, 2)
	if dq, err = sys.Solve(); err != nil {
		return
	}
	_, r.SolveResidual = sys.Residual(dq)
	r.log.WithFields(logrus.Fields{
		"rhsNorm":  rhsNorm,
		"residual": r.SolveResidual,
	}).Debug("vof solve")
	floats.Add(vof.Data, dq)
	r.ComputeNodalGradient(vof, r.Fields.MustGet("dvofdx"))
	return
}

// VofInventory is the integral of the vof over the dual volumes.
func (r *Realm) VofInventory() float64 {
	return floats.Dot(r.Fields.MustGet(vofName).Data, r.Fields.MustGet("dual_nodal_volume").Data)
}

func (r *Realm) TotalVolume() float64 {
	return floats.Sum(r.Fields.MustGet("dual_nodal_volume").Data)
}

func (r *Realm) checkSystem(sys *linsys.System, numDof int) (err error) {
	if sys.NumNodes != r.Mesh.NumNodes() || sys.NumDof != numDof {
		err = fmt.Errorf("%w: system is %d nodes x %d dofs, need %d x %d",
			ErrSystemShape, sys.NumNodes, sys.NumDof, r.Mesh.NumNodes(), numDof)
	}
	return
}
