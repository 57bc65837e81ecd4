package muscl

import (
	"fmt"

	"github.com/notargets/gocvfem/limiters"
)

/*
Reconstructor extrapolates a scalar from the two nodes adjacent to a
sub-control surface onto the surface itself:

	dq   = qR - qL
	qIpL = qL + 0.5 * phi(dqL, dq) * dqL
	qIpR = qR - 0.5 * phi(dqR, dq) * dqR

where dqL, dqR are the nodal gradients projected along the offsets from each
node to the integration point. The limiter is resolved once, when the
Reconstructor is built.
*/
type Reconstructor[T limiters.Real] struct {
	UseLimiter  bool
	LimiterType limiters.Kind
	Small       T
	limit       limiters.Func[T]
}

// NewReconstructor validates limiterType even when useLimiter is false, so a
// misspelled name is reported at setup instead of when limiting is switched on.
func NewReconstructor[T limiters.Real](useLimiter bool, limiterType string,
	small T) (r *Reconstructor[T], err error) {
	var (
		lk limiters.Kind
		f  limiters.Func[T]
	)
	if lk, err = limiters.NewKind(limiterType); err != nil {
		err = fmt.Errorf("muscl reconstructor: %w", err)
		return
	}
	if f, err = limiters.Lookup[T](lk); err != nil {
		return
	}
	r = &Reconstructor[T]{
		UseLimiter:  useLimiter,
		LimiterType: lk,
		Small:       small,
		limit:       f,
	}
	return
}

// Execute returns the left and right face states.
func (r *Reconstructor[T]) Execute(qL, qR, dqL, dqR T) (qIpL, qIpR T) {
	var (
		dq             = qR - qL
		limitL, limitR = T(1), T(1)
	)
	if r.UseLimiter {
		limitL = r.limit(dqL, dq, r.Small)
		limitR = r.limit(dqR, dq, r.Small)
	}
	qIpL = qL + 0.5*limitL*dqL
	qIpR = qR - 0.5*limitR*dqR
	return
}

// Batch runs Execute over packed lanes. All slices must have equal length.
func (r *Reconstructor[T]) Batch(qL, qR, dqL, dqR, qIpL, qIpR []T) {
	n := len(qL)
	if len(qR) != n || len(dqL) != n || len(dqR) != n || len(qIpL) != n || len(qIpR) != n {
		panic(fmt.Errorf("muscl batch lengths differ, expected %d lanes", n))
	}
	for i := 0; i < n; i++ {
		qIpL[i], qIpR[i] = r.Execute(qL[i], qR[i], dqL[i], dqR[i])
	}
}
