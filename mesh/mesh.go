package mesh

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownPart = errors.New("unknown mesh part")

// Face is a boundary edge of an element. Nodes follow the counter clockwise
// order of the owning element, so the exposed area vector points out.
type Face struct {
	Element int
	Ordinal int
	Nodes   [2]int
	Part    string
}

// Mesh is a two dimensional unstructured mesh of counter clockwise quads.
type Mesh struct {
	NDim     int
	Coords   []float64 // NumNodes*NDim
	Elements [][4]int
	Faces    []Face
	Parts    map[string][]int // part name to face indices
}

var quadSides = [4][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}}

func (m *Mesh) NumNodes() int    { return len(m.Coords) / m.NDim }
func (m *Mesh) NumElements() int { return len(m.Elements) }
func (m *Mesh) NumFaces() int    { return len(m.Faces) }

func (m *Mesh) AddFace(element, ordinal int, part string) {
	var (
		conn = m.Elements[element]
		fi   = len(m.Faces)
	)
	m.Faces = append(m.Faces, Face{
		Element: element,
		Ordinal: ordinal,
		Nodes:   [2]int{conn[quadSides[ordinal][0]], conn[quadSides[ordinal][1]]},
		Part:    part,
	})
	if m.Parts == nil {
		m.Parts = make(map[string][]int)
	}
	m.Parts[part] = append(m.Parts[part], fi)
}

// PartFaces returns the face indices of the named parts, in part then face
// order. A face is listed once even when its part is named more than once.
func (m *Mesh) PartFaces(names ...string) (faces []int, err error) {
	var (
		seen = make(map[int]struct{})
	)
	for _, name := range names {
		pf, ok := m.Parts[name]
		if !ok {
			err = fmt.Errorf("%w: %s, have %v", ErrUnknownPart, name, m.PartNames())
			return
		}
		for _, fi := range pf {
			if _, dup := seen[fi]; dup {
				continue
			}
			seen[fi] = struct{}{}
			faces = append(faces, fi)
		}
	}
	return
}

func (m *Mesh) PartNames() (names []string) {
	for name := range m.Parts {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func (m *Mesh) ElementCoords(k int, dst []float64) {
	for i, n := range m.Elements[k] {
		dst[2*i] = m.Coords[2*n]
		dst[2*i+1] = m.Coords[2*n+1]
	}
}

// Validate checks that every quad is counter clockwise and every boundary
// face matches its owner.
func (m *Mesh) Validate() (err error) {
	if m.NDim != 2 {
		return fmt.Errorf("mesh dimension %d is not supported", m.NDim)
	}
	nn := m.NumNodes()
	for k, conn := range m.Elements {
		var area float64
		for i := 0; i < 4; i++ {
			a, b := conn[i], conn[(i+1)%4]
			if a < 0 || a >= nn {
				return fmt.Errorf("element %d references node %d, mesh has %d nodes", k, a, nn)
			}
			area += m.Coords[2*a]*m.Coords[2*b+1] - m.Coords[2*b]*m.Coords[2*a+1]
		}
		if area <= 0 {
			return fmt.Errorf("element %d is not counter clockwise, signed area %g", k, 0.5*area)
		}
	}
	for fi, f := range m.Faces {
		if f.Element < 0 || f.Element >= len(m.Elements) || f.Ordinal < 0 || f.Ordinal > 3 {
			return fmt.Errorf("face %d has element %d ordinal %d", fi, f.Element, f.Ordinal)
		}
		conn := m.Elements[f.Element]
		if conn[quadSides[f.Ordinal][0]] != f.Nodes[0] || conn[quadSides[f.Ordinal][1]] != f.Nodes[1] {
			return fmt.Errorf("face %d nodes %v do not match element %d ordinal %d",
				fi, f.Nodes, f.Element, f.Ordinal)
		}
	}
	return
}

// NewRectangularMesh builds nx by ny quads over [0,lx]x[0,ly] with the parts
// left, right, bottom and top.
func NewRectangularMesh(nx, ny int, lx, ly float64) (m *Mesh) {
	if nx < 1 || ny < 1 || lx <= 0 || ly <= 0 {
		panic(fmt.Errorf("invalid rectangular mesh %dx%d over %gx%g", nx, ny, lx, ly))
	}
	m = &Mesh{
		NDim:     2,
		Coords:   make([]float64, 2*(nx+1)*(ny+1)),
		Elements: make([][4]int, 0, nx*ny),
		Parts:    make(map[string][]int),
	}
	node := func(i, j int) int { return j*(nx+1) + i }
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			n := node(i, j)
			m.Coords[2*n] = lx * float64(i) / float64(nx)
			m.Coords[2*n+1] = ly * float64(j) / float64(ny)
		}
	}
	elem := func(i, j int) int { return j*nx + i }
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			m.Elements = append(m.Elements, [4]int{node(i, j), node(i+1, j), node(i+1, j+1), node(i, j+1)})
		}
	}
	for i := 0; i < nx; i++ {
		m.AddFace(elem(i, 0), 0, "bottom")
	}
	for j := 0; j < ny; j++ {
		m.AddFace(elem(nx-1, j), 1, "right")
	}
	for i := nx - 1; i >= 0; i-- {
		m.AddFace(elem(i, ny-1), 2, "top")
	}
	for j := ny - 1; j >= 0; j-- {
		m.AddFace(elem(0, j), 3, "left")
	}
	return
}
