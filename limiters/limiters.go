package limiters

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultSmall regularizes the limiter denominators near zero differences.
const DefaultSmall = 1.e-10

// ErrUnknownLimiter is returned when a limiter name is not one of LimiterNames.
var ErrUnknownLimiter = errors.New("unknown limiter type")

// Real covers the numeric types the limiter family is evaluated in.
type Real interface {
	~float32 | ~float64
}

// Func maps a pair of differences to a limiter coefficient. dq is the
// difference being limited, dm the reference difference it is compared with.
type Func[T Real] func(dq, dm, small T) T

type Kind uint8

const (
	VanLeerT Kind = iota
	MinmodT
	SuperbeeT
	UltrabeeT
	DefaultT
)

var (
	LimiterNames = map[string]Kind{
		"van_leer": VanLeerT,
		"minmod":   MinmodT,
		"superbee": SuperbeeT,
		"ultrabee": UltrabeeT,
		"default":  DefaultT,
	}
	LimiterNamesRev = map[Kind]string{
		VanLeerT:  "van_leer",
		MinmodT:   "minmod",
		SuperbeeT: "superbee",
		UltrabeeT: "ultrabee",
		DefaultT:  "default",
	}
)

func (lk Kind) String() (txt string) {
	var ok bool
	if txt, ok = LimiterNamesRev[lk]; !ok {
		txt = fmt.Sprintf("Kind(%d)", uint8(lk))
	}
	return
}

// NewKind resolves a limiter by its configuration name. Names are matched
// after trimming, case-insensitively; anything else is a configuration error.
func NewKind(label string) (lk Kind, err error) {
	var ok bool
	label = strings.ToLower(strings.TrimSpace(label))
	if lk, ok = LimiterNames[label]; !ok {
		err = fmt.Errorf("%w: [%s]", ErrUnknownLimiter, label)
	}
	return
}

// Lookup returns the limiter function for a kind, instantiated for T.
func Lookup[T Real](lk Kind) (f Func[T], err error) {
	switch lk {
	case VanLeerT:
		f = VanLeer[T]
	case MinmodT:
		f = Minmod[T]
	case SuperbeeT:
		f = Superbee[T]
	case UltrabeeT:
		f = Ultrabee[T]
	case DefaultT:
		f = Default[T]
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownLimiter, lk)
	}
	return
}

// VanLeer is the smooth van Leer limiter, (r+|r|)/(1+|r|) with r = dq/dm.
func VanLeer[T Real](dq, dm, small T) (phi T) {
	var (
		prod = dm * dq
		aP   = abs(prod)
	)
	phi = (prod + aP) / (dm*dm + aP + small)
	return
}

// Minmod returns the smaller magnitude of the two differences, normalized by |dm|.
func Minmod[T Real](dq, dm, small T) (phi T) {
	if dq*dm <= 0 {
		return 0
	}
	phi = min(abs(dq), abs(dm)) / (abs(dm) + small)
	return
}

// Superbee is the largest of the two minmod combinations min(2r,1) and min(r,2).
func Superbee[T Real](dq, dm, small T) (phi T) {
	if dq*dm <= 0 {
		return 0
	}
	var (
		adq, adm = abs(dq), abs(dm)
	)
	phi = max(min(2*adq, adm), min(adq, 2*adm)) / (adm + small)
	return
}

// Ultrabee follows superbee below r = 1 and then rises with slope 2 until it
// saturates at 2, which keeps phi(1) = 1 while bounding the coefficient at 2.
func Ultrabee[T Real](dq, dm, small T) (phi T) {
	if dq*dm <= 0 {
		return 0
	}
	var (
		adq, adm = abs(dq), abs(dm)
	)
	phi = max(min(2*adq, adm), min(2*adq-adm, 2*adm)) / (adm + small)
	return
}

// Default is the van Leer form used by the legacy high order upwind path. The
// coefficient applies to the mean of the two differences, so dq and dm enter
// symmetrically.
func Default[T Real](dq, dm, small T) (phi T) {
	var (
		prod = dm * dq
		sum  = dm + dq
	)
	phi = 2 * (prod + abs(prod)) / (sum*sum + small)
	return
}

// Batch evaluates the limiter lane by lane: dst[i] = f(dq[i], dm[i], small).
func (f Func[T]) Batch(dst, dq, dm []T, small T) {
	if len(dq) != len(dst) || len(dm) != len(dst) {
		panic(fmt.Errorf("limiter batch lengths differ: dst %d, dq %d, dm %d",
			len(dst), len(dq), len(dm)))
	}
	for i := range dst {
		dst[i] = f(dq[i], dm[i], small)
	}
}

func abs[T Real](x T) T {
	if x < 0 {
		return -x
	}
	return x
}
