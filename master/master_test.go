package master

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// A skewed but valid quad
var skewQuad = []float64{0, 0, 2, 0.2, 2.3, 1.7, -0.2, 1.2}

func TestQuad4ShapeFunctions(t *testing.T) {
	q := NewQuad4SCS()
	for _, N := range [][]float64{q.ShapeFcn(), q.ShiftedShapeFcn()} {
		for ip := 0; ip < 4; ip++ {
			var sum float64
			for i := 0; i < 4; i++ {
				sum += N[ip*4+i]
			}
			assert.InDelta(t, 1., sum, 1.e-15)
		}
	}
	// ip 0 sits between nodes 0 and 1, halfway to the centroid
	assert.InDeltaSlice(t, []float64{0.375, 0.375, 0.125, 0.125}, q.ShapeFcn()[0:4], 1.e-15)
	// shifted ip 1 is the midpoint of edge 1-2
	assert.InDeltaSlice(t, []float64{0, 0.5, 0.5, 0}, q.ShiftedShapeFcn()[4:8], 1.e-15)
}

func TestQuad4AreaVectors(t *testing.T) {
	var (
		q     = NewQuad4SCS()
		unit  = []float64{0, 0, 1, 0, 1, 1, 0, 1}
		areav = make([]float64, 8)
	)
	q.Determinant(unit, areav)
	// left to right along lrscv {0,1},{1,2},{3,2},{0,3}
	assert.InDeltaSlice(t, []float64{0.5, 0, 0, 0.5, 0.5, 0, 0, 0.5}, areav, 1.e-15)

	// Closed surface: the scv of every node has zero net area
	q.Determinant(skewQuad, areav)
	lr := q.Adjacent()
	var net [4][2]float64
	for ip := 0; ip < 4; ip++ {
		for j := 0; j < 2; j++ {
			net[lr[2*ip]][j] += areav[ip*2+j]
			net[lr[2*ip+1]][j] -= areav[ip*2+j]
		}
	}
	// add the exposed faces of each scv, outward
	e := NewEdge2Face()
	faceA := make([]float64, 4)
	for f := 0; f < 4; f++ {
		sn := q.SideNodeOrdinals(f)
		fc := []float64{skewQuad[2*sn[0]], skewQuad[2*sn[0]+1], skewQuad[2*sn[1]], skewQuad[2*sn[1]+1]}
		e.Determinant(fc, faceA)
		for ip := 0; ip < 2; ip++ {
			for j := 0; j < 2; j++ {
				net[sn[ip]][j] += faceA[ip*2+j]
			}
		}
	}
	for n := 0; n < 4; n++ {
		assert.InDelta(t, 0., net[n][0], 1.e-14)
		assert.InDelta(t, 0., net[n][1], 1.e-14)
	}
}

func TestQuad4FaceGradOpLinearExact(t *testing.T) {
	var (
		q   = NewQuad4SCS()
		lin = func(x, y float64) float64 { return 3*x - 2*y + 1 }
		phi = make([]float64, 4)
		fdx = make([]float64, 16)
	)
	for i := 0; i < 4; i++ {
		phi[i] = lin(skewQuad[2*i], skewQuad[2*i+1])
	}
	check := func(nIp int, d []float64) {
		for ip := 0; ip < nIp; ip++ {
			var g [2]float64
			for i := 0; i < 4; i++ {
				g[0] += d[ip*8+i*2] * phi[i]
				g[1] += d[ip*8+i*2+1] * phi[i]
			}
			assert.InDelta(t, 3., g[0], 1.e-12)
			assert.InDelta(t, -2., g[1], 1.e-12)
		}
	}
	for f := 0; f < 4; f++ {
		q.FaceGradOp(f, skewQuad, fdx)
		check(2, fdx)
		q.ShiftedFaceGradOp(f, skewQuad, fdx)
		check(2, fdx)
	}
	assert.Panics(t, func() {
		q.FaceGradOp(0, []float64{0, 0, 0, 1, 1, 1, 1, 0}, fdx) // clockwise
	})
	assert.Panics(t, func() { q.SideNodeOrdinals(4) })
}

func TestQuad4ScvVolumes(t *testing.T) {
	var (
		q   = NewQuad4SCS()
		vol = make([]float64, 4)
	)
	q.ScvVolumes([]float64{0, 0, 2, 0, 2, 1, 0, 1}, vol)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0.5, 0.5}, vol, 1.e-15)
	q.ScvVolumes(skewQuad, vol)
	var total float64
	for _, v := range vol {
		total += v
		assert.Greater(t, v, 0.)
	}
	assert.InDelta(t, shoelace([2]float64{0, 0}, [2]float64{2, 0.2},
		[2]float64{2.3, 1.7}, [2]float64{-0.2, 1.2}), total, 1.e-14)
}

func TestEdge2Face(t *testing.T) {
	var (
		e     = NewEdge2Face()
		areav = make([]float64, 4)
	)
	assert.Equal(t, []float64{0.75, 0.25, 0.25, 0.75}, e.ShapeFcn())
	assert.Equal(t, []float64{1, 0, 0, 1}, e.ShiftedShapeFcn())
	// bottom face of a unit square, outward is -y
	e.Determinant([]float64{0, 0, 1, 0}, areav)
	assert.Equal(t, []float64{0, -0.5, 0, -0.5}, areav)
	// right face, outward is +x
	e.Determinant([]float64{1, 0, 1, 1}, areav)
	assert.Equal(t, []float64{0.5, 0, 0.5, 0}, areav)
}
