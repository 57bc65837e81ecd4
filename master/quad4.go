package master

import (
	"fmt"
)

/*
Quad4SCS is the bilinear quadrilateral with four sub-control surfaces, one
integration point each. Nodes are counter clockwise:

	3 ----- 2
	|   2   |
	|3     1|
	|   0   |
	0 ----- 1

Sub-control surface ip connects the edge midpoint with the element centroid.
The area vector points from the left node to the right node of lrscv.
*/
type Quad4SCS struct {
	ipParam        [4][2]float64
	shiftedIpParam [4][2]float64
	shapeFcn       []float64
	shiftedShape   []float64
}

var (
	quad4NodeParam = [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	quad4Lrscv     = []int{0, 1, 1, 2, 3, 2, 0, 3}
	quad4IpNodeMap = []int{0, 1, 2, 3}
	// start and end of each sub-control surface segment in parametric space
	quad4ScsSegment = [4][2][2]float64{
		{{0, -1}, {0, 0}},
		{{1, 0}, {0, 0}},
		{{0, 0}, {0, 1}},
		{{0, 0}, {-1, 0}},
	}
	quad4SideNodes = [4][]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}}
	quad4FaceIp    = [4][2][2]float64{
		{{-0.5, -1}, {0.5, -1}},
		{{1, -0.5}, {1, 0.5}},
		{{0.5, 1}, {-0.5, 1}},
		{{-1, 0.5}, {-1, -0.5}},
	}
	quad4ShiftedFaceIp = [4][2][2]float64{
		{{-1, -1}, {1, -1}},
		{{1, -1}, {1, 1}},
		{{1, 1}, {-1, 1}},
		{{-1, 1}, {-1, -1}},
	}
)

func NewQuad4SCS() (q *Quad4SCS) {
	q = &Quad4SCS{
		ipParam:        [4][2]float64{{0, -0.5}, {0.5, 0}, {0, 0.5}, {-0.5, 0}},
		shiftedIpParam: [4][2]float64{{0, -1}, {1, 0}, {0, 1}, {-1, 0}},
		shapeFcn:       make([]float64, 16),
		shiftedShape:   make([]float64, 16),
	}
	for ip := 0; ip < 4; ip++ {
		quad4Shape(q.ipParam[ip], q.shapeFcn[ip*4:ip*4+4])
		quad4Shape(q.shiftedIpParam[ip], q.shiftedShape[ip*4:ip*4+4])
	}
	return
}

func (q *Quad4SCS) NodesPerElement() int       { return 4 }
func (q *Quad4SCS) NumIntPoints() int          { return 4 }
func (q *Quad4SCS) Dim() int                   { return 2 }
func (q *Quad4SCS) NumFaces() int              { return 4 }
func (q *Quad4SCS) IpNodeMap() []int           { return quad4IpNodeMap }
func (q *Quad4SCS) Adjacent() []int            { return quad4Lrscv }
func (q *Quad4SCS) ShapeFcn() []float64        { return q.shapeFcn }
func (q *Quad4SCS) ShiftedShapeFcn() []float64 { return q.shiftedShape }

func (q *Quad4SCS) SideNodeOrdinals(ordinal int) []int {
	if ordinal < 0 || ordinal > 3 {
		panic(fmt.Errorf("quad4 face ordinal %d out of range", ordinal))
	}
	return quad4SideNodes[ordinal]
}

// Determinant fills the area vector of every sub-control surface.
func (q *Quad4SCS) Determinant(coords, areav []float64) {
	checkLen("coords", coords, 8)
	checkLen("areav", areav, 8)
	var (
		a, b [2]float64
	)
	for ip := 0; ip < 4; ip++ {
		a = quad4Map(coords, quad4ScsSegment[ip][0])
		b = quad4Map(coords, quad4ScsSegment[ip][1])
		// clockwise rotation of the segment
		areav[ip*2+0] = b[1] - a[1]
		areav[ip*2+1] = -(b[0] - a[0])
	}
}

// FaceGradOp evaluates the element gradient operator at the two ips of a face.
func (q *Quad4SCS) FaceGradOp(ordinal int, coords, dndx []float64) {
	checkLen("dndx", dndx, 16)
	q.SideNodeOrdinals(ordinal)
	for ip := 0; ip < 2; ip++ {
		quad4Grad(coords, quad4FaceIp[ordinal][ip], dndx[ip*8:ip*8+8])
	}
}

func (q *Quad4SCS) ShiftedFaceGradOp(ordinal int, coords, dndx []float64) {
	checkLen("dndx", dndx, 16)
	q.SideNodeOrdinals(ordinal)
	for ip := 0; ip < 2; ip++ {
		quad4Grad(coords, quad4ShiftedFaceIp[ordinal][ip], dndx[ip*8:ip*8+8])
	}
}

// ScvVolumes is the area of the sub-control volume around each node, bounded by
// the node, the two adjacent edge midpoints and the centroid.
func (q *Quad4SCS) ScvVolumes(coords, vol []float64) {
	checkLen("coords", coords, 8)
	checkLen("vol", vol, 4)
	var (
		c = quad4Map(coords, [2]float64{0, 0})
	)
	for n := 0; n < 4; n++ {
		var (
			np1   = (n + 1) % 4
			nm1   = (n + 3) % 4
			node  = [2]float64{coords[2*n], coords[2*n+1]}
			mNext = [2]float64{0.5 * (coords[2*n] + coords[2*np1]), 0.5 * (coords[2*n+1] + coords[2*np1+1])}
			mPrev = [2]float64{0.5 * (coords[2*n] + coords[2*nm1]), 0.5 * (coords[2*n+1] + coords[2*nm1+1])}
		)
		vol[n] = shoelace(node, mNext, c, mPrev)
	}
}

func quad4Shape(p [2]float64, N []float64) {
	for i := 0; i < 4; i++ {
		N[i] = 0.25 * (1 + p[0]*quad4NodeParam[i][0]) * (1 + p[1]*quad4NodeParam[i][1])
	}
}

func quad4Map(coords []float64, p [2]float64) (x [2]float64) {
	var N [4]float64
	quad4Shape(p, N[:])
	for i := 0; i < 4; i++ {
		x[0] += N[i] * coords[2*i]
		x[1] += N[i] * coords[2*i+1]
	}
	return
}

// quad4Grad writes dN_i/dx_j at parametric point p, packed as dndx[i*2+j].
func quad4Grad(coords []float64, p [2]float64, dndx []float64) {
	checkLen("coords", coords, 8)
	var (
		dndxi, dndeta [4]float64
		a, b, c, d    float64
	)
	for i := 0; i < 4; i++ {
		xi, eta := quad4NodeParam[i][0], quad4NodeParam[i][1]
		dndxi[i] = 0.25 * xi * (1 + p[1]*eta)
		dndeta[i] = 0.25 * eta * (1 + p[0]*xi)
		a += dndxi[i] * coords[2*i]
		b += dndxi[i] * coords[2*i+1]
		c += dndeta[i] * coords[2*i]
		d += dndeta[i] * coords[2*i+1]
	}
	det := a*d - b*c
	if det <= 0 {
		panic(fmt.Errorf("quad4 jacobian determinant %g is not positive, element is inverted or clockwise", det))
	}
	for i := 0; i < 4; i++ {
		dndx[i*2+0] = (d*dndxi[i] - b*dndeta[i]) / det
		dndx[i*2+1] = (-c*dndxi[i] + a*dndeta[i]) / det
	}
}

func shoelace(pts ...[2]float64) (area float64) {
	for i := range pts {
		j := (i + 1) % len(pts)
		area += pts[i][0]*pts[j][1] - pts[j][0]*pts[i][1]
	}
	area *= 0.5
	return
}
