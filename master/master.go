package master

import "fmt"

// ScsMasterElement describes the sub-control surfaces of a CVFEM element.
// Slices are packed ip-major: shape functions are numIp*npe, area vectors
// numIp*nDim and face gradient operators 2*npe*nDim.
type ScsMasterElement interface {
	NodesPerElement() int
	NumIntPoints() int
	Dim() int
	// IpNodeMap is the node nearest to each ip
	IpNodeMap() []int
	// Adjacent is the left/right node pair of each ip, packed as 2*numIp
	Adjacent() []int
	ShapeFcn() []float64
	ShiftedShapeFcn() []float64
	Determinant(coords, areav []float64)
	NumFaces() int
	SideNodeOrdinals(ordinal int) []int
	FaceGradOp(ordinal int, coords, dndx []float64)
	ShiftedFaceGradOp(ordinal int, coords, dndx []float64)
	ScvVolumes(coords, vol []float64)
}

// FaceMasterElement describes the integration points of a boundary face.
type FaceMasterElement interface {
	NodesPerFace() int
	NumIntPoints() int
	IpNodeMap() []int
	ShapeFcn() []float64
	ShiftedShapeFcn() []float64
	Determinant(coords, areav []float64)
}

func checkLen(name string, s []float64, want int) {
	if len(s) != want {
		panic(fmt.Errorf("%s has length %d, need %d", name, len(s), want))
	}
}
