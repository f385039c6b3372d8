package plan

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/uncertainty-goals/internal/model"
)

// DerivedKind names a plan created from the robust envelopes.
type DerivedKind string

const (
	DerivedMin DerivedKind = "min"
	DerivedMax DerivedKind = "max"
)

// DerivedPlan is the manifest of a plan whose dose is a min or max envelope.
// It carries the source plan's prescription and normalisation.
type DerivedPlan struct {
	PatientID          string        `yaml:"patient_id"`
	CourseID           string        `yaml:"course_id"`
	PlanID             string        `yaml:"plan_id"`
	SourcePlanID       string        `yaml:"source_plan_id"`
	Kind               DerivedKind   `yaml:"kind"`
	Prescription       Prescription  `yaml:"prescription"`
	NormalizationValue float64       `yaml:"normalization_value"`
	GridFile           string        `yaml:"grid_file"`
	Extents            model.Extents `yaml:"extents"`
	Scenarios          []string      `yaml:"scenarios"`
}

// NewDerivedPlan describes a min or max plan built from b. An unset number
// of fractions becomes 1.
func NewDerivedPlan(b *Bundle, kind DerivedKind, gridFile string, ext model.Extents, scenarios []string) DerivedPlan {
	fractions := b.Prescription.Fractions()
	rx := b.Prescription
	rx.NumberOfFractions = &fractions

	return DerivedPlan{
		PatientID:          b.PatientID,
		CourseID:           b.CourseID,
		PlanID:             DerivedPlanID(b.PlanID, kind),
		SourcePlanID:       b.PlanID,
		Kind:               kind,
		Prescription:       rx,
		NormalizationValue: b.NormalizationValue,
		GridFile:           gridFile,
		Extents:            ext,
		Scenarios:          scenarios,
	}
}

// DerivedPlanID names the derived plan after its source.
func DerivedPlanID(planID string, kind DerivedKind) string {
	return planID + "_" + string(kind)
}

// WriteManifest writes d as YAML to path.
func WriteManifest(path string, d DerivedPlan) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "plan: marshal manifest")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "plan: write manifest %s", path)
}

// ReadManifest reads a derived plan manifest.
func ReadManifest(path string) (DerivedPlan, error) {
	var d DerivedPlan
	data, err := os.ReadFile(path)
	if err != nil {
		return d, eris.Wrapf(err, "plan: read manifest %s", path)
	}
	return d, eris.Wrapf(yaml.Unmarshal(data, &d), "plan: decode manifest %s", path)
}
