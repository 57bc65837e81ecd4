package master

// Edge2Face is the two node boundary face of a Quad4SCS with one ip per half
// edge. Shifted ips sit on the face nodes.
type Edge2Face struct {
	shapeFcn     []float64
	shiftedShape []float64
}

var edge2IpNodeMap = []int{0, 1}

func NewEdge2Face() (e *Edge2Face) {
	e = &Edge2Face{
		shapeFcn:     make([]float64, 4),
		shiftedShape: make([]float64, 4),
	}
	for ip, s := range []float64{-0.5, 0.5} {
		e.shapeFcn[ip*2+0] = 0.5 * (1 - s)
		e.shapeFcn[ip*2+1] = 0.5 * (1 + s)
	}
	for ip, s := range []float64{-1, 1} {
		e.shiftedShape[ip*2+0] = 0.5 * (1 - s)
		e.shiftedShape[ip*2+1] = 0.5 * (1 + s)
	}
	return
}

func (e *Edge2Face) NodesPerFace() int          { return 2 }
func (e *Edge2Face) NumIntPoints() int          { return 2 }
func (e *Edge2Face) IpNodeMap() []int           { return edge2IpNodeMap }
func (e *Edge2Face) ShapeFcn() []float64        { return e.shapeFcn }
func (e *Edge2Face) ShiftedShapeFcn() []float64 { return e.shiftedShape }

// Determinant gives the exposed area vector of each ip. With the face nodes
// ordered counter clockwise around the owning element the vector points out.
func (e *Edge2Face) Determinant(coords, areav []float64) {
	checkLen("coords", coords, 4)
	checkLen("areav", areav, 4)
	var (
		dx = coords[2] - coords[0]
		dy = coords[3] - coords[1]
	)
	for ip := 0; ip < 2; ip++ {
		areav[ip*2+0] = 0.5 * dy
		areav[ip*2+1] = -0.5 * dx
	}
}
