/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"time"

	perf "github.com/hodgesds/perf-utils"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gocvfem/InputParameters"
	"github.com/notargets/gocvfem/kernels"
	"github.com/notargets/gocvfem/mesh"
	"github.com/notargets/gocvfem/realm"
)

type ModelAdvect struct {
	ICFile, GridFile, WriteGrid string
	Steps, ParallelDegree       int
	Profile, Perf               bool
	ProfileDir                  string
}

type AdvectSummary struct {
	Nodes, Elements, Steps int
	InventoryStart         float64
	Inventory              float64
	MdotAlgOpen            float64
	RhsNorm                float64
	SolveResidual          float64
	Instructions           uint64
	Elapsed                time.Duration
}

// AdvectCmd represents the advect command
var AdvectCmd = &cobra.Command{
	Use:   "advect",
	Short: "Advance the volume of fluid with the upwind CVFEM advection operator",
	Long: `
Reads an input parameters file and a Gambit neutral grid (or builds a
rectangular grid), then takes linearized backward Euler steps of the volume of
fluid transport, reporting the open boundary mass flow at each step.

gocvfem advect -I input.yaml [-F grid.neu]`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			ip *InputParameters.InputParameters
			ma = &ModelAdvect{
				ICFile:         viper.GetString("inputConditionsFile"),
				GridFile:       viper.GetString("gridFile"),
				WriteGrid:      viper.GetString("writeGrid"),
				Steps:          viper.GetInt("steps"),
				ParallelDegree: viper.GetInt("parallelDegree"),
				Profile:        viper.GetBool("profile"),
				Perf:           viper.GetBool("perf"),
				ProfileDir:     viper.GetString("profileDir"),
			}
		)
		if ip, err = processAdvectInput(ma); err != nil {
			log.WithError(err).Error("reading input")
			return
		}
		if ma.Profile {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(ma.ProfileDir)).Stop()
		}
		_, err = RunAdvect(ma, ip, log)
		return
	},
}

func init() {
	rootCmd.AddCommand(AdvectCmd)
	AdvectCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file of input parameters and solution_options")
	AdvectCmd.Flags().StringP("gridFile", "F", "", "Grid file to read in Gambit (.neu) format, overrides GridFile")
	AdvectCmd.Flags().String("writeGrid", "", "write the grid used to this Gambit (.neu) file")
	AdvectCmd.Flags().IntP("steps", "n", 1, "number of time steps")
	AdvectCmd.Flags().IntP("parallelDegree", "p", 0, "worker goroutines, 0 uses the input file or the CPU count")
	AdvectCmd.Flags().Bool("profile", false, "write a CPU profile")
	AdvectCmd.Flags().String("profileDir", ".", "directory for the CPU profile")
	AdvectCmd.Flags().Bool("perf", false, "count CPU instructions of the stepping loop (linux perf events)")
	_ = viper.BindPFlags(AdvectCmd.Flags())
}

func processAdvectInput(ma *ModelAdvect) (ip *InputParameters.InputParameters, err error) {
	var data []byte
	ip = InputParameters.NewInputParameters()
	if len(ma.ICFile) != 0 {
		if data, err = os.ReadFile(ma.ICFile); err != nil {
			return
		}
		if err = ip.Parse(data); err != nil {
			err = fmt.Errorf("%s: %w", ma.ICFile, err)
			return
		}
	}
	if len(ma.GridFile) != 0 {
		ip.GridFile = ma.GridFile
	}
	if ma.ParallelDegree > 0 {
		ip.ParallelDegree = ma.ParallelDegree
	}
	return
}

func loadMesh(ip *InputParameters.InputParameters) (m *mesh.Mesh, err error) {
	if len(ip.GridFile) == 0 {
		mp := ip.Mesh
		m = mesh.NewRectangularMesh(mp.Nx, mp.Ny, mp.Lx, mp.Ly)
		return
	}
	var f *os.File
	if f, err = os.Open(ip.GridFile); err != nil {
		return
	}
	defer f.Close()
	if m, err = mesh.ReadGambit2D(f); err != nil {
		err = fmt.Errorf("%s: %w", ip.GridFile, err)
	}
	return
}

func writeMesh(fileName string, m *mesh.Mesh, title string) (err error) {
	var f *os.File
	if f, err = os.Create(fileName); err != nil {
		return
	}
	if err = mesh.WriteGambit2D(f, m, title); err != nil {
		f.Close()
		return
	}
	return f.Close()
}

func RunAdvect(ma *ModelAdvect, ip *InputParameters.InputParameters, log logrus.FieldLogger) (sum AdvectSummary, err error) {
	var (
		m      *mesh.Mesh
		r      *realm.Realm
		source kernels.VdotSource
		start  = time.Now()
	)
	ip.Print(log)
	if source, err = kernels.NewVdotSource(ip.VdotSource); err != nil {
		return
	}
	if m, err = loadMesh(ip); err != nil {
		return
	}
	if len(ma.WriteGrid) != 0 {
		if err = writeMesh(ma.WriteGrid, m, ip.Title); err != nil {
			return
		}
	}
	if r, err = realm.NewRealm(m, ip, log); err != nil {
		return
	}
	r.InitializeFields(ip.InitialConditions)
	sum.Nodes, sum.Elements = m.NumNodes(), m.NumElements()
	sum.InventoryStart = r.VofInventory()

	stepping := func() (err error) {
		for step := 0; step < ma.Steps; step++ {
			if sum.RhsNorm, err = r.Step(source, ip.OpenBoundaries...); err != nil {
				return
			}
			sum.Steps++
			log.WithFields(logrus.Fields{
				"step":      step + 1,
				"rhsNorm":   sum.RhsNorm,
				"residual":  r.SolveResidual,
				"mdotOpen":  r.MdotAlgOpen,
				"inventory": r.VofInventory(),
			}).Info("step")
		}
		return
	}
	if ma.Perf {
		var (
			ran bool
			pv  *perf.ProfileValue
		)
		pv, err = perf.CPUInstructions(func() error { ran = true; return stepping() })
		switch {
		case err == nil:
			sum.Instructions = pv.Value
		case !ran:
			log.WithError(err).Warn("perf events unavailable, stepping without instruction counts")
			err = stepping()
		}
	} else {
		err = stepping()
	}
	if err != nil {
		return
	}
	sum.Inventory = r.VofInventory()
	sum.MdotAlgOpen = r.MdotAlgOpen
	sum.SolveResidual = r.SolveResidual
	sum.Elapsed = time.Since(start)
	log.WithFields(logrus.Fields{
		"nodes":          sum.Nodes,
		"steps":          sum.Steps,
		"inventoryStart": sum.InventoryStart,
		"inventory":      sum.Inventory,
		"instructions":   sum.Instructions,
		"elapsed":        sum.Elapsed,
	}).Info("advect finished")
	return
}
