package png

import (
	"fmt"

	"github.com/notargets/gocvfem/linsys"
	"github.com/notargets/gocvfem/master"
	"github.com/notargets/gocvfem/mesh"
)

/*
NodalGradient accumulates the Green-Gauss projected nodal gradient of a
nodal scalar:

	G(n) = ( sum_scs +/- q_ip A_ip + sum_exposed q_bip A_bip ) / V(n)

Each worker owns one NodalGradient and its own accumulator, the accumulators
are summed before Finalize.
*/
type NodalGradient struct {
	UseShifted bool

	meSCS    master.ScsMasterElement
	meFC     master.FaceMasterElement
	coords   []float64
	q        []float64
	areav    []float64
	faceQ    []float64
	shape    []float64
	faceShap []float64
}

func NewNodalGradient(meSCS master.ScsMasterElement, meFC master.FaceMasterElement, useShifted bool) (g *NodalGradient) {
	g = &NodalGradient{
		UseShifted: useShifted,
		meSCS:      meSCS,
		meFC:       meFC,
		coords:     make([]float64, meSCS.NodesPerElement()*meSCS.Dim()),
		q:          make([]float64, meSCS.NodesPerElement()),
		areav:      make([]float64, meSCS.NumIntPoints()*meSCS.Dim()),
		faceQ:      make([]float64, meFC.NodesPerFace()),
		shape:      meSCS.ShapeFcn(),
		faceShap:   meFC.ShapeFcn(),
	}
	if useShifted {
		g.shape = meSCS.ShiftedShapeFcn()
		g.faceShap = meFC.ShiftedShapeFcn()
	}
	return
}

// Interior adds the sub-control surface terms of element k to acc, which has
// nDim values per node.
func (g *NodalGradient) Interior(m *mesh.Mesh, k int, q *mesh.Field, acc []float64) {
	var (
		nodes = m.Elements[k][:]
		npe   = g.meSCS.NodesPerElement()
		nDim  = g.meSCS.Dim()
		lrscv = g.meSCS.Adjacent()
	)
	if len(nodes) != npe {
		panic(fmt.Errorf("element %d has %d nodes, master element has %d", k, len(nodes), npe))
	}
	m.ElementCoords(k, g.coords)
	q.GatherNodes(nodes, g.q)
	g.meSCS.Determinant(g.coords, g.areav)
	for ip := 0; ip < g.meSCS.NumIntPoints(); ip++ {
		var (
			il, ir = nodes[lrscv[2*ip]], nodes[lrscv[2*ip+1]]
			qIp    float64
		)
		for ic := 0; ic < npe; ic++ {
			qIp += g.shape[ip*npe+ic] * g.q[ic]
		}
		for j := 0; j < nDim; j++ {
			fac := qIp * g.areav[ip*nDim+j]
			acc[il*nDim+j] += fac
			acc[ir*nDim+j] -= fac
		}
	}
}

// Boundary adds the exposed area terms of face fi to acc.
func (g *NodalGradient) Boundary(m *mesh.Mesh, fi int, q, exposedArea *mesh.Field, acc []float64) {
	var (
		face     = m.Faces[fi]
		npf      = g.meFC.NodesPerFace()
		nDim     = g.meSCS.Dim()
		ipNodes  = g.meFC.IpNodeMap()
		areaVec  = exposedArea.Entity(fi)
		faceNode = face.Nodes[:]
	)
	q.GatherNodes(faceNode, g.faceQ)
	for ip := 0; ip < g.meFC.NumIntPoints(); ip++ {
		var (
			nn   = faceNode[ipNodes[ip]]
			qBip float64
		)
		for ic := 0; ic < npf; ic++ {
			qBip += g.faceShap[ip*npf+ic] * g.faceQ[ic]
		}
		for j := 0; j < nDim; j++ {
			acc[nn*nDim+j] += qBip * areaVec[ip*nDim+j]
		}
	}
}

// Finalize divides the accumulated surface integrals by the dual volume.
func Finalize(acc []float64, dualVolume, grad *mesh.Field) {
	nDim := grad.NComp
	if len(acc) != len(grad.Data) {
		panic(fmt.Errorf("gradient accumulator has %d values, %s has %d", len(acc), grad.Name, len(grad.Data)))
	}
	for n, vol := range dualVolume.Data {
		for j := 0; j < nDim; j++ {
			grad.Data[n*nDim+j] = acc[n*nDim+j] / vol
		}
	}
}

// ComputeLumped is the serial projected nodal gradient of q over the whole mesh.
func ComputeLumped(m *mesh.Mesh, meSCS master.ScsMasterElement, meFC master.FaceMasterElement,
	useShifted bool, q, exposedArea, dualVolume, grad *mesh.Field) {
	var (
		g   = NewNodalGradient(meSCS, meFC, useShifted)
		acc = make([]float64, len(grad.Data))
	)
	for k := range m.Elements {
		g.Interior(m, k, q, acc)
	}
	for fi := range m.Faces {
		g.Boundary(m, fi, q, exposedArea, acc)
	}
	Finalize(acc, dualVolume, grad)
}

// PressureBoundary assembles the open boundary contribution to the pressure
// gradient projection, rhs(nn*nDim+i) += (pBip - dynP)*A_i at the ip's nearest
// node. The lhs contribution is zero.
type PressureBoundary struct {
	meFC  master.FaceMasterElement
	nDim  int
	faceP []float64
	rhs   []float64
}

func NewPressureBoundary(meFC master.FaceMasterElement, nDim int) *PressureBoundary {
	return &PressureBoundary{
		meFC:  meFC,
		nDim:  nDim,
		faceP: make([]float64, meFC.NodesPerFace()),
		rhs:   make([]float64, meFC.NodesPerFace()*nDim),
	}
}

func (pb *PressureBoundary) Assemble(m *mesh.Mesh, fi int, p, dynamicP, exposedArea *mesh.Field, sys *linsys.System) {
	var (
		face    = m.Faces[fi]
		npf     = pb.meFC.NodesPerFace()
		nDim    = pb.nDim
		shape   = pb.meFC.ShapeFcn()
		ipNodes = pb.meFC.IpNodeMap()
		areaVec = exposedArea.Entity(fi)
		dynP    = dynamicP.Entity(fi)
	)
	if sys.NumDof != nDim {
		panic(fmt.Errorf("pressure gradient system has %d dofs per node, need %d", sys.NumDof, nDim))
	}
	for i := range pb.rhs {
		pb.rhs[i] = 0
	}
	p.GatherNodes(face.Nodes[:], pb.faceP)
	for ip := 0; ip < pb.meFC.NumIntPoints(); ip++ {
		var (
			nnNdim = ipNodes[ip] * nDim
			pBip   = -dynP[ip]
		)
		for ic := 0; ic < npf; ic++ {
			pBip += shape[ip*npf+ic] * pb.faceP[ic]
		}
		for i := 0; i < nDim; i++ {
			pb.rhs[nnNdim+i] += pBip * areaVec[ip*nDim+i]
		}
	}
	sys.SumInto(face.Nodes[:], nil, pb.rhs)
}

// AssemblePressureBoundary runs PressureBoundary over faces serially.
func AssemblePressureBoundary(m *mesh.Mesh, meFC master.FaceMasterElement, faces []int,
	p, dynamicP, exposedArea *mesh.Field, sys *linsys.System) {
	pb := NewPressureBoundary(meFC, m.NDim)
	for _, fi := range faces {
		pb.Assemble(m, fi, p, dynamicP, exposedArea, sys)
	}
}
