package InputParameters

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ghodss/yaml"
	"github.com/sirupsen/logrus"

	"github.com/notargets/gocvfem/limiters"
)

var (
	ErrUnknownOption      = errors.New("unknown solution option")
	ErrConflictingOptions = errors.New("conflicting options")
	ErrMissingOption      = errors.New("missing required option")
)

// Parameters obtained from the YAML input file
type InputParameters struct {
	Title             string            `json:"Title"`
	GridFile          string            `json:"GridFile"` // Gambit neutral file, quads
	Mesh              MeshParameters    `json:"Mesh"`     // Used when GridFile is empty
	TimeStep          float64           `json:"TimeStep"`
	Gamma1            float64           `json:"Gamma1"`
	ParallelDegree    int               `json:"ParallelDegree"`
	VdotSource        string            `json:"VdotSource"` // "stored" or "velocity"
	OpenBoundaries    []string          `json:"OpenBoundaries"`
	InitialConditions InitialConditions `json:"InitialConditions"`
	SolutionOptions   *SolutionOptions  `json:"-"`
}

type MeshParameters struct {
	Nx int     `json:"Nx"`
	Ny int     `json:"Ny"`
	Lx float64 `json:"Lx"`
	Ly float64 `json:"Ly"`
}

type InitialConditions struct {
	Velocity         []float64 `json:"Velocity"`
	InterfaceX       float64   `json:"InterfaceX"` // vof = 1 for x < InterfaceX
	Pressure         float64   `json:"Pressure"`
	DensityPhaseOne  float64   `json:"DensityPhaseOne"`
	DensityPhaseTwo  float64   `json:"DensityPhaseTwo"`
	SurfaceTension   float64   `json:"SurfaceTension"`
	Curvature        float64   `json:"Curvature"`
	DynamicPressure  float64   `json:"DynamicPressure"`
	BoundaryPressure float64   `json:"BoundaryPressure"`
}

func NewInputParameters() (ip *InputParameters) {
	ip = &InputParameters{
		Title:          "unnamed",
		TimeStep:       1.,
		Gamma1:         1.,
		VdotSource:     "stored",
		Mesh:           MeshParameters{Nx: 16, Ny: 16, Lx: 1, Ly: 1},
		OpenBoundaries: []string{"right"},
		InitialConditions: InitialConditions{
			Velocity:        []float64{1, 0},
			InterfaceX:      0.5,
			DensityPhaseOne: 1,
			DensityPhaseTwo: 1.2e-3,
		},
		SolutionOptions: NewSolutionOptions(),
	}
	return
}

func (ip *InputParameters) Parse(data []byte) (err error) {
	if err = yaml.Unmarshal(data, ip); err != nil {
		return
	}
	if ip.SolutionOptions, err = ParseSolutionOptions(data); err != nil {
		return
	}
	if ip.Gamma1 == 0 {
		err = fmt.Errorf("Gamma1 must be non zero: %w", ErrMissingOption)
	}
	return
}

func (ip *InputParameters) ProjectionTimeScale() float64 {
	return ip.TimeStep / ip.Gamma1
}

func (ip *InputParameters) Print(log logrus.FieldLogger) {
	log.WithFields(logrus.Fields{
		"title":          ip.Title,
		"gridFile":       ip.GridFile,
		"timeStep":       ip.TimeStep,
		"gamma1":         ip.Gamma1,
		"vdotSource":     ip.VdotSource,
		"openBoundaries": ip.OpenBoundaries,
	}).Info("input parameters")
	if ip.SolutionOptions != nil {
		ip.SolutionOptions.Print(log)
	}
}

// SolutionOptions holds the realm scoped user options. Per-dof maps fall back
// to the defaults when a dof is not named.
type SolutionOptions struct {
	Name                    string
	CvfemShiftMdot          bool
	CvfemReducedSensPoisson bool
	BalancedForce           bool
	BuoyancyPressureStab    bool
	LocalVofM               float64
	LocalVofN               float64
	LocalVofC               float64
	Gravity                 [3]float64
	MeshMotion              bool
	MeshMotionInfo          map[string]*MeshMotionInfo

	UpwMap           map[string]float64
	UseMusclMap      map[string]bool
	KappaMusclMap    map[string]float64
	LimiterMap       map[string]bool
	LimiterTypeMap   map[string]string
	ShiftedGradOpMap map[string]bool

	upwDefault           float64
	musclDefault         bool
	kappaMusclDefault    float64
	shiftedGradOpDefault bool
}

type MeshMotionInfo struct {
	Name                string
	Targets             []string
	Omega               float64
	SixDOF              bool
	CentroidCoordinates []float64
	ComputeCentroid     bool
}

func NewSolutionOptions() (so *SolutionOptions) {
	so = &SolutionOptions{
		LocalVofC:         1,
		MeshMotionInfo:    make(map[string]*MeshMotionInfo),
		UpwMap:            make(map[string]float64),
		UseMusclMap:       make(map[string]bool),
		KappaMusclMap:     make(map[string]float64),
		LimiterMap:        make(map[string]bool),
		LimiterTypeMap:    make(map[string]string),
		ShiftedGradOpMap:  make(map[string]bool),
		upwDefault:        1,
		kappaMusclDefault: -1,
	}
	return
}

type rawSolutionOptions struct {
	Name                 *string                      `json:"name"`
	ShiftCvfemMdot       *bool                        `json:"shift_cvfem_mdot"`
	ShiftCvfemPoisson    *bool                        `json:"shift_cvfem_poisson"`
	ReducedSensPoisson   *bool                        `json:"reduced_sens_cvfem_poisson"`
	LocalVofM            *float64                     `json:"local_vof_m"`
	LocalVofN            *float64                     `json:"local_vof_n"`
	LocalVofC            *float64                     `json:"local_vof_c"`
	BalancedForce        *bool                        `json:"activate_balanced_force_algorithm"`
	BuoyancyPressureStab *bool                        `json:"activate_buoyancy_pressure_stabilization"`
	Options              []map[string]json.RawMessage `json:"options"`
	MeshMotion           []rawMeshMotion              `json:"mesh_motion"`
}

type rawMeshMotion struct {
	Name                *string         `json:"name"`
	TargetName          json.RawMessage `json:"target_name"`
	Omega               *float64        `json:"omega"`
	IncludeSixDOF       bool            `json:"include_six_dof"`
	CentroidCoordinates []float64       `json:"centroid_coordinates"`
	ComputeCentroid     bool            `json:"compute_centroid"`
}

type userConstants struct {
	Gravity []float64 `json:"gravity"`
}

// ParseSolutionOptions reads a YAML document holding a solution_options block.
func ParseSolutionOptions(data []byte) (so *SolutionOptions, err error) {
	var (
		doc struct {
			SolutionOptions json.RawMessage `json:"solution_options"`
		}
	)
	if err = yaml.Unmarshal(data, &doc); err != nil {
		return
	}
	so = NewSolutionOptions()
	if len(doc.SolutionOptions) == 0 || string(doc.SolutionOptions) == "null" {
		return
	}
	err = so.Load(doc.SolutionOptions)
	return
}

// Load fills the options from the JSON form of a solution_options block.
// Every configuration error is reported here, before any kernel is built.
func (so *SolutionOptions) Load(data []byte) (err error) {
	var (
		raw rawSolutionOptions
	)
	if err = json.Unmarshal(data, &raw); err != nil {
		return
	}
	if raw.Name == nil {
		return fmt.Errorf("solution_options: name: %w", ErrMissingOption)
	}
	so.Name = *raw.Name
	if raw.ShiftCvfemPoisson != nil {
		return fmt.Errorf("%w: shift_cvfem_poisson is deprecated, use shifted_gradient_operator",
			ErrUnknownOption)
	}
	setBool(&so.CvfemShiftMdot, raw.ShiftCvfemMdot)
	setBool(&so.CvfemReducedSensPoisson, raw.ReducedSensPoisson)
	setFloat(&so.LocalVofM, raw.LocalVofM)
	setFloat(&so.LocalVofN, raw.LocalVofN)
	setFloat(&so.LocalVofC, raw.LocalVofC)
	setBool(&so.BalancedForce, raw.BalancedForce)
	// buoyancy stabilization defaults to on with the balanced force algorithm
	so.BuoyancyPressureStab = so.BalancedForce
	setBool(&so.BuoyancyPressureStab, raw.BuoyancyPressureStab)

	for _, option := range raw.Options {
		if err = so.loadOption(option); err != nil {
			return
		}
	}
	for _, mm := range raw.MeshMotion {
		if err = so.loadMeshMotion(mm); err != nil {
			return
		}
	}
	if so.ShiftedGradOp("pressure") {
		so.CvfemReducedSensPoisson = true
	}
	for dofName := range so.LimiterTypeMap {
		if _, err = so.LimiterType(dofName); err != nil {
			return
		}
	}
	return
}

func (so *SolutionOptions) loadOption(option map[string]json.RawMessage) (err error) {
	keys := make([]string, 0, len(option))
	for key := range option {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := option[key]
		switch key {
		case "upw_factor":
			err = json.Unmarshal(value, &so.UpwMap)
		case "muscl":
			err = json.Unmarshal(value, &so.UseMusclMap)
		case "kappa_muscl":
			err = json.Unmarshal(value, &so.KappaMusclMap)
		case "limiter":
			err = json.Unmarshal(value, &so.LimiterMap)
		case "limiter_type":
			err = json.Unmarshal(value, &so.LimiterTypeMap)
		case "shifted_gradient_operator":
			err = json.Unmarshal(value, &so.ShiftedGradOpMap)
		case "user_constants":
			var uc userConstants
			if err = json.Unmarshal(value, &uc); err != nil {
				break
			}
			if len(uc.Gravity) > 3 {
				err = fmt.Errorf("user_constants: gravity has %d components", len(uc.Gravity))
				break
			}
			copy(so.Gravity[:], uc.Gravity)
		default:
			err = fmt.Errorf("%w: %s", ErrUnknownOption, key)
		}
		if err != nil {
			err = fmt.Errorf("solution_options.options.%s: %w", key, err)
			return
		}
	}
	return
}

func (so *SolutionOptions) loadMeshMotion(mm rawMeshMotion) (err error) {
	var (
		info = &MeshMotionInfo{
			SixDOF:              mm.IncludeSixDOF,
			CentroidCoordinates: mm.CentroidCoordinates,
			ComputeCentroid:     mm.ComputeCentroid,
		}
	)
	if mm.Name == nil {
		return fmt.Errorf("mesh_motion: name: %w", ErrMissingOption)
	}
	info.Name = *mm.Name
	if !info.SixDOF {
		if mm.Omega == nil {
			return fmt.Errorf("mesh_motion %s: omega: %w", info.Name, ErrMissingOption)
		}
		info.Omega = *mm.Omega
	}
	if len(mm.TargetName) != 0 {
		var single string
		if err = json.Unmarshal(mm.TargetName, &single); err == nil {
			info.Targets = []string{single}
		} else if err = json.Unmarshal(mm.TargetName, &info.Targets); err != nil {
			return fmt.Errorf("mesh_motion %s: target_name: %w", info.Name, err)
		}
	}
	if len(info.CentroidCoordinates) != 0 && info.ComputeCentroid {
		return fmt.Errorf("mesh_motion %s: centroid_coordinates and compute_centroid: %w",
			info.Name, ErrConflictingOptions)
	}
	so.MeshMotion = true
	so.MeshMotionInfo[info.Name] = info
	return
}

func (so *SolutionOptions) UpwFactor(dofName string) (factor float64) {
	var ok bool
	if factor, ok = so.UpwMap[dofName]; !ok {
		factor = so.upwDefault
	}
	return
}

func (so *SolutionOptions) PrimitiveUsesLimiter(dofName string) bool {
	return so.LimiterMap[dofName]
}

// LimiterType returns the validated limiter name for a dof, "default" when
// none is configured.
func (so *SolutionOptions) LimiterType(dofName string) (limiterType string, err error) {
	var ok bool
	if limiterType, ok = so.LimiterTypeMap[dofName]; !ok {
		limiterType = "default"
	}
	if _, err = limiters.NewKind(limiterType); err != nil {
		err = fmt.Errorf("limiter_type for %s: %w: %w", dofName, ErrUnknownOption, err)
	}
	return
}

func (so *SolutionOptions) MusclUsage(dofName string) (useMuscl bool) {
	var ok bool
	if useMuscl, ok = so.UseMusclMap[dofName]; !ok {
		useMuscl = so.musclDefault
	}
	return
}

func (so *SolutionOptions) KappaMusclFactor(dofName string) (factor float64) {
	var ok bool
	if factor, ok = so.KappaMusclMap[dofName]; !ok {
		factor = so.kappaMusclDefault
	}
	return
}

func (so *SolutionOptions) ShiftedGradOp(dofName string) (shifted bool) {
	var ok bool
	if shifted, ok = so.ShiftedGradOpMap[dofName]; !ok {
		shifted = so.shiftedGradOpDefault
	}
	return
}

func (so *SolutionOptions) DoesMeshMove() bool {
	return so.MeshMotion
}

// VelocityName is the advecting velocity, relative to the mesh when it moves.
func (so *SolutionOptions) VelocityName() string {
	if so.DoesMeshMove() {
		return "velocity_rtm"
	}
	return "velocity"
}

func (so *SolutionOptions) Print(log logrus.FieldLogger) {
	log.WithFields(logrus.Fields{
		"name":                 so.Name,
		"shiftCvfemMdot":       so.CvfemShiftMdot,
		"reducedSensPoisson":   so.CvfemReducedSensPoisson,
		"buoyancyPressureStab": so.BuoyancyPressureStab,
		"localVof(m,n,c)":      [3]float64{so.LocalVofM, so.LocalVofN, so.LocalVofC},
		"gravity":              so.Gravity,
		"meshMotion":           so.MeshMotion,
	}).Info("solution options review")
	keys := make([]string, 0, len(so.ShiftedGradOpMap))
	for key := range so.ShiftedGradOpMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		log.WithField("dof", key).WithField("shifted", so.ShiftedGradOpMap[key]).
			Info("CVFEM gradient operator review")
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
