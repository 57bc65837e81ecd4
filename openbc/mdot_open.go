package openbc

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/notargets/gocvfem/InputParameters"
	"github.com/notargets/gocvfem/master"
	"github.com/notargets/gocvfem/mesh"
	"github.com/notargets/gocvfem/utils"
)

// FaceFields are the handles gathered by MdotVofElemOpenAlgorithm. Side fields
// carry NumIp values (or NumIp*NDim for the area vector) per face.
type FaceFields struct {
	Coords         *mesh.Field
	Pressure       *mesh.Field
	PressureBc     *mesh.Field
	Density        *mesh.Field
	Curvature      *mesh.Field
	SurfaceTension *mesh.Field
	Vof            *mesh.Field
	Velocity       *mesh.Field
	Gpdx           *mesh.Field
	ExposedAreaVec *mesh.Field
	DynamicP       *mesh.Field
	MassFlowRate   *mesh.Field
	VolumeFlowRate *mesh.Field
}

// FaceData is the per worker scratch of one boundary face and its owning element.
type FaceData struct {
	NodesPerElement, NodesPerFace, NumIp, NDim int

	Face    int
	Ordinal int
	// element nodal
	Coords   []float64
	Pressure []float64
	Vof      []float64
	// face nodal
	FacePressure []float64
	BcPressure   []float64
	Density      []float64
	Kappa        []float64
	Sigma        []float64
	FaceVof      []float64
	Velocity     []float64
	Gpdx         []float64
	// face ip
	AreaV    []float64
	DynamicP []float64

	dndx      []float64
	faceNodes []int
}

func NewFaceData(meSCS master.ScsMasterElement, meFC master.FaceMasterElement) (fd *FaceData) {
	var (
		npe   = meSCS.NodesPerElement()
		npf   = meFC.NodesPerFace()
		numIp = meFC.NumIntPoints()
		nDim  = meSCS.Dim()
	)
	fd = &FaceData{
		NodesPerElement: npe,
		NodesPerFace:    npf,
		NumIp:           numIp,
		NDim:            nDim,
		Coords:          make([]float64, npe*nDim),
		Pressure:        make([]float64, npe),
		Vof:             make([]float64, npe),
		FacePressure:    make([]float64, npf),
		BcPressure:      make([]float64, npf),
		Density:         make([]float64, npf),
		Kappa:           make([]float64, npf),
		Sigma:           make([]float64, npf),
		FaceVof:         make([]float64, npf),
		Velocity:        make([]float64, npf*nDim),
		Gpdx:            make([]float64, npf*nDim),
		AreaV:           make([]float64, numIp*nDim),
		DynamicP:        make([]float64, numIp),
		dndx:            make([]float64, numIp*npe*nDim),
		faceNodes:       make([]int, npf),
	}
	return
}

// Gather snapshots face fi, owned by an element with connectivity elemNodes.
func (fd *FaceData) Gather(meSCS master.ScsMasterElement, fi int, face mesh.Face, elemNodes []int, ff *FaceFields) {
	if len(elemNodes) != fd.NodesPerElement {
		panic(fmt.Errorf("face %d: element %d has %d nodes, master element has %d",
			fi, face.Element, len(elemNodes), fd.NodesPerElement))
	}
	if len(face.Nodes) != fd.NodesPerFace {
		panic(fmt.Errorf("face %d has %d nodes, face master element has %d",
			fi, len(face.Nodes), fd.NodesPerFace))
	}
	ordinals := meSCS.SideNodeOrdinals(face.Ordinal)
	for ic, ord := range ordinals {
		if elemNodes[ord] != face.Nodes[ic] {
			panic(fmt.Errorf("face %d node %d does not match element %d side %d",
				fi, face.Nodes[ic], face.Element, face.Ordinal))
		}
	}
	fd.Face, fd.Ordinal = fi, face.Ordinal
	copy(fd.faceNodes, face.Nodes[:])

	ff.Pressure.GatherNodes(fd.faceNodes, fd.FacePressure)
	ff.PressureBc.GatherNodes(fd.faceNodes, fd.BcPressure)
	ff.Density.GatherNodes(fd.faceNodes, fd.Density)
	ff.Curvature.GatherNodes(fd.faceNodes, fd.Kappa)
	ff.SurfaceTension.GatherNodes(fd.faceNodes, fd.Sigma)
	ff.Vof.GatherNodes(fd.faceNodes, fd.FaceVof)
	ff.Velocity.GatherNodes(fd.faceNodes, fd.Velocity)
	ff.Gpdx.GatherNodes(fd.faceNodes, fd.Gpdx)

	ff.Coords.GatherNodes(elemNodes, fd.Coords)
	ff.Pressure.GatherNodes(elemNodes, fd.Pressure)
	ff.Vof.GatherNodes(elemNodes, fd.Vof)

	copy(fd.AreaV, ff.ExposedAreaVec.Entity(fi))
	copy(fd.DynamicP, ff.DynamicP.Entity(fi))
}

/*
MdotVofElemOpenAlgorithm computes the volume and mass flow through open
boundary faces. The pressure condition is imposed weakly by a penalty on
pBip - pbcBip, and the interface surface tension drives flow along the
volume fraction gradient:

	vdot = penalty*tau/rho*invL*(pBip - pbcBip)*|A|
	     + tau*sigmaKappa*dvof/dA/rho
	     + sum_j (u_j - tau*((dpdx_j - bw*rho*g_j)/rho - Gpdx_j))*A_j

with tau the projection time scale. sigmaKappa is localized to the interface
by c*vof^n*(1-vof)^m.
*/
type MdotVofElemOpenAlgorithm struct {
	ShiftMdot      bool
	ShiftedGradOp  bool
	PenaltyFac     float64
	BuoyancyWeight float64
	N, M, C        float64
	Gravity        [3]float64
	VelocityName   string

	meSCS         master.ScsMasterElement
	meFC          master.FaceMasterElement
	faceShapeFcn  []float64
	faceGradOpFcn func(ordinal int, coords, dndx []float64)
}

func NewMdotVofElemOpenAlgorithm(opts *InputParameters.SolutionOptions, meSCS master.ScsMasterElement,
	meFC master.FaceMasterElement, log logrus.FieldLogger) (a *MdotVofElemOpenAlgorithm) {
	a = &MdotVofElemOpenAlgorithm{
		ShiftMdot:     opts.CvfemShiftMdot,
		ShiftedGradOp: opts.ShiftedGradOp("pressure"),
		PenaltyFac:    2,
		N:             opts.LocalVofN,
		M:             opts.LocalVofM,
		C:             opts.LocalVofC,
		Gravity:       opts.Gravity,
		VelocityName:  opts.VelocityName(),
		meSCS:         meSCS,
		meFC:          meFC,
	}
	if opts.BuoyancyPressureStab {
		a.BuoyancyWeight = 1
	}
	if a.ShiftMdot {
		a.faceShapeFcn = meFC.ShiftedShapeFcn()
	} else {
		a.faceShapeFcn = meFC.ShapeFcn()
	}
	if a.ShiftedGradOp {
		a.faceGradOpFcn = meSCS.ShiftedFaceGradOp
	} else {
		a.faceGradOpFcn = meSCS.FaceGradOp
	}
	log.WithFields(logrus.Fields{
		"algorithm":      "MdotVofElemOpenAlgorithm",
		"shiftMdot":      a.ShiftMdot,
		"shiftedGradOp":  a.ShiftedGradOp,
		"buoyancyWeight": a.BuoyancyWeight,
		"local(n,m,c)":   [3]float64{a.N, a.M, a.C},
	}).Debug("open boundary mdot")
	return
}

func (a *MdotVofElemOpenAlgorithm) MasterElements() (master.ScsMasterElement, master.FaceMasterElement) {
	return a.meSCS, a.meFC
}

func (a *MdotVofElemOpenAlgorithm) Fields(fs *mesh.FieldStore) (ff *FaceFields, err error) {
	ff = &FaceFields{}
	for _, h := range []struct {
		dst  **mesh.Field
		name string
	}{
		{&ff.Coords, "coordinates"},
		{&ff.Pressure, "pressure"},
		{&ff.PressureBc, "pressure_bc"},
		{&ff.Density, "density"},
		{&ff.Curvature, "interface_curvature"},
		{&ff.SurfaceTension, "surface_tension"},
		{&ff.Vof, "volume_of_fluid"},
		{&ff.Velocity, a.VelocityName},
		{&ff.Gpdx, "dpdx"},
		{&ff.ExposedAreaVec, "exposed_area_vector"},
		{&ff.DynamicP, "dynamic_pressure"},
		{&ff.MassFlowRate, "open_mass_flow_rate"},
		{&ff.VolumeFlowRate, "open_volume_flow_rate"},
	} {
		if *h.dst, err = fs.Get(h.name); err != nil {
			return nil, fmt.Errorf("open boundary mdot: %w", err)
		}
	}
	return
}

// Execute fills vdot and mdot for every ip of the gathered face and returns
// the face's net mass flow. It touches nothing outside its arguments.
func (a *MdotVofElemOpenAlgorithm) Execute(fd *FaceData, projTimeScale float64, vdot, mdot []float64) (mdotSum float64) {
	var (
		npe, npf, numIp, nDim = fd.NodesPerElement, fd.NodesPerFace, fd.NumIp, fd.NDim
		faceNodeOrdinals      = a.meSCS.SideNodeOrdinals(fd.Ordinal)
		uBip                  [3]float64
		GpdxBip               [3]float64
		dpdxBip               [3]float64
	)
	if len(vdot) != numIp || len(mdot) != numIp {
		panic(fmt.Errorf("face %d: flow rate outputs have %d and %d values, need %d",
			fd.Face, len(vdot), len(mdot), numIp))
	}
	a.faceGradOpFcn(fd.Ordinal, fd.Coords, fd.dndx)

	for ip := 0; ip < numIp; ip++ {
		var (
			areaVec = fd.AreaV[ip*nDim : (ip+1)*nDim]
			aMag    float64
		)
		for j := 0; j < nDim; j++ {
			uBip[j], GpdxBip[j], dpdxBip[j] = 0, 0, 0
			aMag += areaVec[j] * areaVec[j]
		}
		aMag = math.Sqrt(aMag)

		// form L^-1
		var inverseLengthScale float64
		for ic := 0; ic < npf; ic++ {
			offSetDnDx := nDim*npe*ip + faceNodeOrdinals[ic]*nDim
			for j := 0; j < nDim; j++ {
				inverseLengthScale += fd.dndx[offSetDnDx+j] * areaVec[j]
			}
		}
		inverseLengthScale /= aMag

		var (
			pBip, rhoBip, sigmaKappaBip, vofBip float64
			pbcBip                              = -fd.DynamicP[ip]
		)
		for ic := 0; ic < npf; ic++ {
			r := a.faceShapeFcn[ip*npf+ic]
			pBip += r * fd.FacePressure[ic]
			pbcBip += r * fd.BcPressure[ic]
			rhoBip += r * fd.Density[ic]
			sigmaKappaBip += r * fd.Sigma[ic] * fd.Kappa[ic]
			vofBip += r * fd.FaceVof[ic]
			for j := 0; j < nDim; j++ {
				uBip[j] += r * fd.Velocity[ic*nDim+j]
				GpdxBip[j] += r * fd.Gpdx[ic*nDim+j]
			}
		}

		var dvofdaBip float64
		for ic := 0; ic < npe; ic++ {
			offSetDnDx := nDim*npe*ip + ic*nDim
			for j := 0; j < nDim; j++ {
				dxj := fd.dndx[offSetDnDx+j]
				dpdxBip[j] += dxj * fd.Pressure[ic]
				dvofdaBip += dxj * fd.Vof[ic] * areaVec[j]
			}
		}

		sigmaKappaBip *= a.C * utils.PowReal(vofBip, a.N) * utils.PowReal(1-vofBip, a.M)

		tvdot := a.PenaltyFac*projTimeScale/rhoBip*inverseLengthScale*(pBip-pbcBip)*aMag +
			projTimeScale*sigmaKappaBip*dvofdaBip/rhoBip
		for j := 0; j < nDim; j++ {
			tvdot += (uBip[j] - projTimeScale*((dpdxBip[j]-a.BuoyancyWeight*rhoBip*a.Gravity[j])/rhoBip-GpdxBip[j])) *
				areaVec[j]
		}
		vdot[ip] = tvdot
		mdot[ip] = rhoBip * tvdot
		mdotSum += mdot[ip]
	}
	return
}
