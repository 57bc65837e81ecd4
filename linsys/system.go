package linsys

import (
	"errors"
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var ErrSingular = errors.New("singular linear system")

/*
System is the global linear system for NumDof unknowns per node. Row and
column of dof d at node n is n*NumDof+d. The LHS is accumulated as a DOK and
converted to CSR for products.

Parallel assembly gives each worker its own Partial, obtained from
NewPartial, and merges them into the System after the workers join.
*/
type System struct {
	NumNodes, NumDof int
	LHS              *sparse.DOK
	RHS              []float64
}

func NewSystem(numNodes, numDof int) (s *System) {
	n := numNodes * numDof
	s = &System{
		NumNodes: numNodes,
		NumDof:   numDof,
		LHS:      sparse.NewDOK(n, n),
		RHS:      make([]float64, n),
	}
	return
}

func (s *System) Size() int { return s.NumNodes * s.NumDof }

// NewPartial returns an empty system of the same shape.
func (s *System) NewPartial() *System {
	return NewSystem(s.NumNodes, s.NumDof)
}

// SumInto adds an element block. lhs is (len(nodes)*NumDof)^2 and rhs is
// len(nodes)*NumDof, both ordered node major. A nil lhs adds only the rhs.
func (s *System) SumInto(nodes []int, lhs mat.Matrix, rhs []float64) {
	var (
		nl = len(nodes) * s.NumDof
	)
	if len(rhs) != nl {
		panic(fmt.Errorf("rhs has %d rows, %d nodes need %d", len(rhs), len(nodes), nl))
	}
	if lhs != nil {
		if r, c := lhs.Dims(); r != nl || c != nl {
			panic(fmt.Errorf("lhs is %dx%d, %d nodes need %dx%d", r, c, len(nodes), nl, nl))
		}
	}
	for i := 0; i < nl; i++ {
		gi := s.globalRow(nodes, i)
		s.RHS[gi] += rhs[i]
		if lhs == nil {
			continue
		}
		for j := 0; j < nl; j++ {
			if v := lhs.At(i, j); v != 0 {
				gj := s.globalRow(nodes, j)
				s.LHS.Set(gi, gj, s.LHS.At(gi, gj)+v)
			}
		}
	}
}

func (s *System) globalRow(nodes []int, local int) int {
	return nodes[local/s.NumDof]*s.NumDof + local%s.NumDof
}

// Merge adds the partials to s in the order given.
func (s *System) Merge(partials ...*System) {
	for _, p := range partials {
		if p.Size() != s.Size() {
			panic(fmt.Errorf("partial of size %d merged into system of size %d", p.Size(), s.Size()))
		}
		floats.Add(s.RHS, p.RHS)
		p.LHS.DoNonZero(func(i, j int, v float64) {
			s.LHS.Set(i, j, s.LHS.At(i, j)+v)
		})
	}
}

func (s *System) Zero() {
	s.LHS = sparse.NewDOK(s.Size(), s.Size())
	for i := range s.RHS {
		s.RHS[i] = 0
	}
}

func (s *System) ToCSR() *sparse.CSR {
	return s.LHS.ToCSR()
}

// MulVec returns LHS*x.
func (s *System) MulVec(x []float64) (y []float64) {
	if len(x) != s.Size() {
		panic(fmt.Errorf("vector of length %d, system size %d", len(x), s.Size()))
	}
	y = make([]float64, s.Size())
	s.ToCSR().MulVecTo(y, false, x)
	return
}

// Residual returns RHS - LHS*x and its L2 norm.
func (s *System) Residual(x []float64) (r []float64, norm float64) {
	r = s.MulVec(x)
	floats.ScaleTo(r, -1, r)
	floats.Add(r, s.RHS)
	norm = floats.Norm(r, 2)
	return
}

// Solve factors the LHS densely and solves for the RHS. It is meant for the
// small systems of tests and model problems.
func (s *System) Solve() (x []float64, err error) {
	var (
		n  = s.Size()
		lu mat.LU
		xv mat.VecDense
	)
	lu.Factorize(s.LHS.ToDense())
	if cond := lu.Cond(); cond > 1.e14 || cond != cond {
		err = fmt.Errorf("%w: condition number %g", ErrSingular, cond)
		return
	}
	if err = lu.SolveVecTo(&xv, false, mat.NewVecDense(n, append([]float64(nil), s.RHS...))); err != nil {
		err = fmt.Errorf("%w: %w", ErrSingular, err)
		return
	}
	x = make([]float64, n)
	copy(x, xv.RawVector().Data)
	return
}
