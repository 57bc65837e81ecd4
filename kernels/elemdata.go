package kernels

import (
	"fmt"

	"github.com/notargets/gocvfem/master"
	"github.com/notargets/gocvfem/mesh"
)

// ElemFields are the field handles a kernel gathers from. Vdot is an element
// field with one value per ip, Velocity a nodal vector; either may be nil when
// the kernel's vdot source does not need it.
type ElemFields struct {
	Coords   *mesh.Field
	Q        *mesh.Field
	DQdx     *mesh.Field
	Vdot     *mesh.Field
	Velocity *mesh.Field
}

/*
ElemData is the per element scratch of one worker. Gathered arrays are node
major, Coords[ic*nDim+j]. The per ip slices are lanes: every limiter and
reconstruction call of an element runs over all ips at once.
*/
type ElemData struct {
	NodesPerElement, NumIp, NDim int

	Element  int
	Nodes    []int
	Coords   []float64
	Q        []float64
	DQdx     []float64
	Velocity []float64
	Vdot     []float64
	AreaV    []float64

	coordIp        []float64
	qL, qR         []float64
	dqL, dqR       []float64
	dq, dqMl, dqMr []float64
	limitL, limitR []float64
	qIpL, qIpR     []float64
}

func NewElemData(me master.ScsMasterElement) (ed *ElemData) {
	var (
		npe   = me.NodesPerElement()
		numIp = me.NumIntPoints()
		nDim  = me.Dim()
		lane  = func() []float64 { return make([]float64, numIp) }
	)
	ed = &ElemData{
		NodesPerElement: npe,
		NumIp:           numIp,
		NDim:            nDim,
		Coords:          make([]float64, npe*nDim),
		Q:               make([]float64, npe),
		DQdx:            make([]float64, npe*nDim),
		Velocity:        make([]float64, npe*nDim),
		Vdot:            make([]float64, numIp),
		AreaV:           make([]float64, numIp*nDim),
		coordIp:         make([]float64, numIp*nDim),
		qL:              lane(),
		qR:              lane(),
		dqL:             lane(),
		dqR:             lane(),
		dq:              lane(),
		dqMl:            lane(),
		dqMr:            lane(),
		limitL:          lane(),
		limitR:          lane(),
		qIpL:            lane(),
		qIpR:            lane(),
	}
	return
}

// Gather snapshots the fields of element k with connectivity nodes. Area
// vectors are computed only when vdot comes from the velocity.
func (ed *ElemData) Gather(me master.ScsMasterElement, k int, nodes []int, ef *ElemFields) {
	if len(nodes) != ed.NodesPerElement {
		panic(fmt.Errorf("element %d has %d nodes, master element has %d", k, len(nodes), ed.NodesPerElement))
	}
	ed.Element = k
	ed.Nodes = nodes
	ef.Coords.GatherNodes(nodes, ed.Coords)
	ef.Q.GatherNodes(nodes, ed.Q)
	ef.DQdx.GatherNodes(nodes, ed.DQdx)
	if ef.Vdot != nil {
		if ef.Vdot.NComp != ed.NumIp {
			panic(fmt.Errorf("%s has %d values per element, master element has %d ips",
				ef.Vdot.Name, ef.Vdot.NComp, ed.NumIp))
		}
		copy(ed.Vdot, ef.Vdot.Entity(k))
	}
	if ef.Velocity != nil {
		ef.Velocity.GatherNodes(nodes, ed.Velocity)
		me.Determinant(ed.Coords, ed.AreaV)
	}
}
