package kernels

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gocvfem/InputParameters"
	"github.com/notargets/gocvfem/limiters"
	"github.com/notargets/gocvfem/master"
	"github.com/notargets/gocvfem/mesh"
	"github.com/notargets/gocvfem/muscl"
)

var ErrUnknownVdotSource = errors.New("unknown vdot source")

// VdotSource selects where the volumetric flow through each sub-control
// surface comes from.
type VdotSource uint8

const (
	// StoredVolumeFlowRate reads the element field volume_flow_rate_scs,
	// which carries the pressure stabilization of the projection.
	StoredVolumeFlowRate VdotSource = iota
	// VelocityDotArea interpolates the velocity to the ip, without
	// pressure stabilization.
	VelocityDotArea
)

var (
	VdotSourceNames = map[string]VdotSource{
		"stored":   StoredVolumeFlowRate,
		"velocity": VelocityDotArea,
	}
	VdotSourcePrintNames = []string{"stored", "velocity"}
)

func (vs VdotSource) String() string {
	if int(vs) < len(VdotSourcePrintNames) {
		return VdotSourcePrintNames[vs]
	}
	return fmt.Sprintf("VdotSource(%d)", uint8(vs))
}

func NewVdotSource(label string) (vs VdotSource, err error) {
	var ok bool
	label = strings.ToLower(strings.TrimSpace(label))
	if vs, ok = VdotSourceNames[label]; !ok {
		err = fmt.Errorf("%w: [%s]", ErrUnknownVdotSource, label)
	}
	return
}

/*
VofScsUpwAdvElemKernel assembles the upwind advection of a volume fraction
across the sub-control surfaces of one element:

	rhs(il) -= vdot*qUpw,  rhs(ir) += vdot*qUpw

with qUpw the left state when vdot > 0 and the right state otherwise. Only the
first order upwind part is linearized into the lhs.
*/
type VofScsUpwAdvElemKernel struct {
	DofName      string
	Source       VdotSource
	VelocityName string
	HoUpwind     float64
	UseLimiter   bool
	UseMuscl     bool
	LimiterType  limiters.Kind
	KappaMuscl   float64
	Small        float64

	me          master.ScsMasterElement
	lrscv       []int
	shapeFcn    []float64
	limiterFunc limiters.Func[float64]
	muscl       *muscl.Reconstructor[float64]
}

func NewVofScsUpwAdvElemKernel(opts *InputParameters.SolutionOptions, dofName string,
	me master.ScsMasterElement, source VdotSource, log logrus.FieldLogger) (k *VofScsUpwAdvElemKernel, err error) {
	var (
		limiterName string
	)
	if limiterName, err = opts.LimiterType(dofName); err != nil {
		return
	}
	k = &VofScsUpwAdvElemKernel{
		DofName:      dofName,
		Source:       source,
		VelocityName: opts.VelocityName(),
		HoUpwind:     opts.UpwFactor(dofName),
		UseLimiter:   opts.PrimitiveUsesLimiter(dofName),
		UseMuscl:     opts.MusclUsage(dofName),
		KappaMuscl:   opts.KappaMusclFactor(dofName),
		Small:        limiters.DefaultSmall,
		me:           me,
		lrscv:        me.Adjacent(),
		shapeFcn:     me.ShapeFcn(),
	}
	if k.LimiterType, err = limiters.NewKind(limiterName); err != nil {
		return nil, fmt.Errorf("VofScsUpwAdvElemKernel: %w", err)
	}
	if k.limiterFunc, err = limiters.Lookup[float64](k.LimiterType); err != nil {
		return nil, err
	}
	if k.UseMuscl {
		if k.muscl, err = muscl.NewReconstructor[float64](k.UseLimiter, limiterName, k.Small); err != nil {
			return nil, err
		}
	}
	if source > VelocityDotArea {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVdotSource, source)
	}
	log = log.WithField("kernel", "VofScsUpwAdvElemKernel")
	log.WithFields(logrus.Fields{
		"dof":      dofName,
		"hoUpwind": k.HoUpwind,
		"limit":    k.UseLimiter,
		"vdot":     source,
	}).Info("hoUpwind/limit")
	if k.UseLimiter {
		log.WithField("limiterType", k.LimiterType).Info("limiter type")
	}
	if k.UseMuscl {
		log.WithField("kappaMuscl", k.KappaMuscl).Info("using MUSCL")
	}
	return
}

// Fields looks up the field handles this kernel gathers from.
func (k *VofScsUpwAdvElemKernel) Fields(fs *mesh.FieldStore) (ef *ElemFields, err error) {
	ef = &ElemFields{}
	if ef.Coords, err = fs.Get("coordinates"); err != nil {
		return
	}
	if ef.Q, err = fs.Get(k.DofName); err != nil {
		return
	}
	if ef.DQdx, err = fs.Get("dvofdx"); err != nil {
		return
	}
	switch k.Source {
	case StoredVolumeFlowRate:
		ef.Vdot, err = fs.Get("volume_flow_rate_scs")
	case VelocityDotArea:
		ef.Velocity, err = fs.Get(k.VelocityName)
	}
	return
}

func (k *VofScsUpwAdvElemKernel) MasterElement() master.ScsMasterElement { return k.me }

// Execute adds the element's contributions to lhs (npe x npe) and rhs (npe).
// Neither is zeroed here.
func (k *VofScsUpwAdvElemKernel) Execute(lhs *mat.Dense, rhs []float64, ed *ElemData) {
	var (
		npe, numIp, nDim = ed.NodesPerElement, ed.NumIp, ed.NDim
	)
	if r, c := lhs.Dims(); r != npe || c != npe || len(rhs) != npe {
		panic(fmt.Errorf("element blocks are %dx%d and %d, need %d nodes", r, c, len(rhs), npe))
	}
	for ip := 0; ip < numIp; ip++ {
		var (
			il, ir   = k.lrscv[2*ip], k.lrscv[2*ip+1]
			coordIp  = ed.coordIp[ip*nDim : (ip+1)*nDim]
			dqL, dqR float64
		)
		for j := range coordIp {
			coordIp[j] = 0
		}
		for j := 0; j < nDim; j++ {
			for ic := 0; ic < npe; ic++ {
				coordIp[j] += k.shapeFcn[ip*npe+ic] * ed.Coords[ic*nDim+j]
			}
		}
		if k.Source == VelocityDotArea {
			var uDotA float64
			for j := 0; j < nDim; j++ {
				var uIp float64
				for ic := 0; ic < npe; ic++ {
					uIp += k.shapeFcn[ip*npe+ic] * ed.Velocity[ic*nDim+j]
				}
				uDotA += uIp * ed.AreaV[ip*nDim+j]
			}
			ed.Vdot[ip] = uDotA
		}
		// left and right extrapolation
		for j := 0; j < nDim; j++ {
			dqL += (coordIp[j] - ed.Coords[il*nDim+j]) * ed.DQdx[il*nDim+j]
			dqR += (ed.Coords[ir*nDim+j] - coordIp[j]) * ed.DQdx[ir*nDim+j]
		}
		ed.qL[ip], ed.qR[ip] = ed.Q[il], ed.Q[ir]
		ed.dqL[ip], ed.dqR[ip] = dqL, dqR
	}

	if k.UseMuscl {
		k.muscl.Batch(ed.qL, ed.qR, ed.dqL, ed.dqR, ed.qIpL, ed.qIpR)
	} else {
		if k.UseLimiter {
			for ip := 0; ip < numIp; ip++ {
				ed.dq[ip] = ed.qR[ip] - ed.qL[ip]
				ed.dqMl[ip] = 2*2*ed.dqL[ip] - ed.dq[ip]
				ed.dqMr[ip] = 2*2*ed.dqR[ip] - ed.dq[ip]
			}
			k.limiterFunc.Batch(ed.limitL, ed.dqMl, ed.dq, k.Small)
			k.limiterFunc.Batch(ed.limitR, ed.dqMr, ed.dq, k.Small)
		} else {
			for ip := 0; ip < numIp; ip++ {
				ed.limitL[ip], ed.limitR[ip] = 1, 1
			}
		}
		for ip := 0; ip < numIp; ip++ {
			ed.qIpL[ip] = ed.qL[ip] + ed.dqL[ip]*k.HoUpwind*ed.limitL[ip]
			ed.qIpR[ip] = ed.qR[ip] - ed.dqR[ip]*k.HoUpwind*ed.limitR[ip]
		}
	}

	for ip := 0; ip < numIp; ip++ {
		var (
			il, ir = k.lrscv[2*ip], k.lrscv[2*ip+1]
			vdot   = ed.Vdot[ip]
			absV   = abs(vdot)
		)
		adv := vdot * upwind(vdot, ed.qIpL[ip], ed.qIpR[ip])
		rhs[il] -= adv
		rhs[ir] += adv

		// upwind; left node
		alhsfacL := 0.5 * (vdot + absV)
		lhs.Set(il, il, lhs.At(il, il)+alhsfacL)
		lhs.Set(ir, il, lhs.At(ir, il)-alhsfacL)

		// upwind; right node
		alhsfacR := 0.5 * (vdot - absV)
		lhs.Set(il, il, lhs.At(il, il)-alhsfacR)
		lhs.Set(ir, il, lhs.At(ir, il)+alhsfacR)
	}
}

// States returns the reconstructed left and right ip states of the last
// Execute on ed.
func (ed *ElemData) States() (qIpL, qIpR []float64) {
	return ed.qIpL, ed.qIpR
}

func upwind(vdot, qIpL, qIpR float64) float64 {
	if vdot > 0 {
		return qIpL
	}
	return qIpR
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
