// Package plan loads treatment plan bundles and serves their clinical goals,
// structures, DVH curves and dose grids to the evaluators.
package plan

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/uncertainty-goals/internal/dosegrid"
	"github.com/sells-group/uncertainty-goals/internal/model"
)

// ErrNoDVH is returned when a dose has no DVH recorded for a structure.
var ErrNoDVH = eris.New("plan: no DVH for structure")

// Prescription is the plan's dose prescription.
type Prescription struct {
	NumberOfFractions   *int    `yaml:"number_of_fractions,omitempty" json:"number_of_fractions,omitempty"`
	DosePerFraction     float64 `yaml:"dose_per_fraction" json:"dose_per_fraction"`
	TreatmentPercentage float64 `yaml:"treatment_percentage" json:"treatment_percentage"`
}

// Fractions returns the number of fractions, 1 when unset.
func (p Prescription) Fractions() int {
	if p.NumberOfFractions == nil {
		return 1
	}
	return *p.NumberOfFractions
}

// TotalDose is the prescribed dose over all fractions in Gy.
func (p Prescription) TotalDose() float64 {
	return float64(p.Fractions()) * p.DosePerFraction
}

// Structure is a delineated volume of interest.
type Structure struct {
	ID       string  `yaml:"id" json:"id"`
	VolumeCC float64 `yaml:"volume_cc" json:"volume_cc"`
}

// StructureDVH is a cumulative DVH stored in Gy and cm³. Missing statistics
// are derived from the curve.
type StructureDVH struct {
	Curve    []model.DVHPoint `yaml:"curve" json:"curve"`
	MinDose  *float64         `yaml:"min_dose,omitempty" json:"min_dose,omitempty"`
	MaxDose  *float64         `yaml:"max_dose,omitempty" json:"max_dose,omitempty"`
	MeanDose *float64         `yaml:"mean_dose,omitempty" json:"mean_dose,omitempty"`
}

// Dose is one calculated dose distribution: per-structure DVHs and an
// optional grid file.
type Dose struct {
	DVH      map[string]StructureDVH `yaml:"dvh,omitempty" json:"dvh,omitempty"`
	GridFile string                  `yaml:"grid_file,omitempty" json:"grid_file,omitempty"`
}

// Calculated reports whether any dose data is present.
func (d *Dose) Calculated() bool {
	return d != nil && (len(d.DVH) > 0 || d.GridFile != "")
}

// Scenario is an uncertainty scenario. Dose is nil when it was not calculated.
type Scenario struct {
	Name string `yaml:"name" json:"name"`
	Dose *Dose  `yaml:"dose,omitempty" json:"dose,omitempty"`
}

// Bundle is a plan and everything needed to evaluate it.
type Bundle struct {
	PatientID          string               `yaml:"patient_id" json:"patient_id"`
	CourseID           string               `yaml:"course_id" json:"course_id"`
	PlanID             string               `yaml:"plan_id" json:"plan_id"`
	Prescription       Prescription         `yaml:"prescription" json:"prescription"`
	NormalizationValue float64              `yaml:"normalization_value" json:"normalization_value"`
	DoseValid          *bool                `yaml:"dose_valid,omitempty" json:"dose_valid,omitempty"`
	Structures         []Structure          `yaml:"structures" json:"structures"`
	ClinicalGoals      []model.ClinicalGoal `yaml:"clinical_goals" json:"clinical_goals"`
	Nominal            *Dose                `yaml:"nominal,omitempty" json:"nominal,omitempty"`
	Scenarios          []Scenario           `yaml:"scenarios" json:"scenarios"`

	// dir resolves relative grid file paths.
	dir string
}

// Load reads a YAML or JSON bundle from path.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "plan: read %s", path)
	}
	b, err := Decode(bytes.NewReader(data), filepath.Dir(path))
	if err != nil {
		return nil, eris.Wrapf(err, "plan: %s", path)
	}
	return b, nil
}

// Decode parses a bundle. Relative grid file paths resolve against dir.
func Decode(r io.Reader, dir string) (*Bundle, error) {
	var b Bundle
	if err := yaml.NewDecoder(r).Decode(&b); err != nil {
		return nil, eris.Wrap(err, "plan: decode bundle")
	}
	b.dir = dir
	return &b, nil
}

// Ref identifies the plan.
func (b *Bundle) Ref() model.PlanRef {
	return model.PlanRef{PatientID: b.PatientID, CourseID: b.CourseID, PlanID: b.PlanID}
}

// Goals returns the clinical goals in plan order.
func (b *Bundle) Goals() []model.ClinicalGoal {
	return b.ClinicalGoals
}

// Structure looks up a structure by id.
func (b *Bundle) Structure(id string) (Structure, bool) {
	for _, s := range b.Structures {
		if s.ID == id {
			return s, true
		}
	}
	return Structure{}, false
}

// HasStructure reports whether the structure set contains id.
func (b *Bundle) HasStructure(id string) bool {
	_, ok := b.Structure(id)
	return ok
}

// IsDoseValid reports whether the nominal dose can be evaluated.
func (b *Bundle) IsDoseValid() bool {
	if b.DoseValid != nil && !*b.DoseValid {
		return false
	}
	return b.Nominal.Calculated()
}

// NominalDose returns the nominal dose source.
func (b *Bundle) NominalDose() DoseSource {
	return &bundleDose{bundle: b, name: "Nominal", dose: b.Nominal}
}

// UncertaintyDoses returns every scenario in plan order, calculated or not.
func (b *Bundle) UncertaintyDoses() []DoseSource {
	out := make([]DoseSource, 0, len(b.Scenarios))
	for _, s := range b.Scenarios {
		out = append(out, &bundleDose{bundle: b, name: s.Name, dose: s.Dose})
	}
	return out
}

// NominalGrid returns the nominal dose grid, if the bundle references one.
func (b *Bundle) NominalGrid() (GridSource, bool) {
	d := &bundleDose{bundle: b, name: "Nominal", dose: b.Nominal}
	return d, d.HasGrid()
}

// ScenarioGrids returns the scenarios that have a dose grid, in plan order.
func (b *Bundle) ScenarioGrids() []GridSource {
	var out []GridSource
	for _, s := range b.Scenarios {
		if d := (&bundleDose{bundle: b, name: s.Name, dose: s.Dose}); d.HasGrid() {
			out = append(out, d)
		}
	}
	return out
}

// ResolvePath makes a grid file path absolute relative to the bundle.
func (b *Bundle) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || b.dir == "" {
		return p
	}
	return filepath.Join(b.dir, p)
}

// bundleDose adapts a bundle dose to DoseSource.
type bundleDose struct {
	bundle *Bundle
	name   string
	dose   *Dose
	ext    *model.Extents
}

func (d *bundleDose) Name() string { return d.name }

func (d *bundleDose) Calculated() bool { return d.dose.Calculated() }

func (d *bundleDose) HasGrid() bool { return d.dose != nil && d.dose.GridFile != "" }

func (d *bundleDose) DVH(_ context.Context, structureID string, req DVHRequest) (*model.DVHData, error) {
	if !d.dose.Calculated() {
		return nil, eris.Errorf("plan: dose %q is not calculated", d.name)
	}
	raw, ok := d.dose.DVH[structureID]
	if !ok || len(raw.Curve) == 0 {
		return nil, eris.Wrapf(ErrNoDVH, "plan: dose %q structure %q", d.name, structureID)
	}
	s, ok := d.bundle.Structure(structureID)
	if !ok {
		return nil, eris.Errorf("plan: structure %q not in structure set", structureID)
	}
	return present(raw, s, d.bundle.Prescription, req)
}

// Extents reads the grid geometry without loading voxels.
func (d *bundleDose) Extents() (model.Extents, error) {
	if d.ext != nil {
		return *d.ext, nil
	}
	if !d.HasGrid() {
		return model.Extents{}, eris.Errorf("plan: dose %q has no grid file", d.name)
	}
	h, err := dosegrid.ReadHeaderFile(d.bundle.ResolvePath(d.dose.GridFile))
	if err != nil {
		return model.Extents{}, err
	}
	d.ext = &h.Extents
	return h.Extents, nil
}

func (d *bundleDose) Load(_ context.Context) (*model.DoseGrid, error) {
	if !d.HasGrid() {
		return nil, eris.Errorf("plan: dose %q has no grid file", d.name)
	}
	return dosegrid.ReadFile(d.bundle.ResolvePath(d.dose.GridFile))
}
