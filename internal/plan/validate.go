package plan

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidPlan is returned when a plan cannot be evaluated.
var ErrInvalidPlan = eris.New("plan: invalid plan")

// Issues lists what is wrong with a plan. Errors block evaluation, warnings
// do not.
type Issues struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Err returns nil when there are no errors, otherwise ErrInvalidPlan wrapped
// with every error message.
func (i Issues) Err() error {
	if len(i.Errors) == 0 {
		return nil
	}
	return eris.Wrap(ErrInvalidPlan, strings.Join(i.Errors, "; "))
}

// Validate checks a bundle before goal evaluation. With requireGrids it also
// checks what min/max aggregation needs.
func Validate(b *Bundle, requireGrids bool) Issues {
	var is Issues
	if b == nil {
		is.Errors = append(is.Errors, "no plan loaded")
		return is
	}

	if b.PatientID == "" || b.PlanID == "" {
		is.Errors = append(is.Errors, "plan is missing patient_id or plan_id")
	}
	if !b.IsDoseValid() {
		is.Errors = append(is.Errors, "plan has no valid dose")
	}
	if len(b.ClinicalGoals) == 0 {
		is.Errors = append(is.Errors, "plan contains no clinical goals")
	}

	calculated := 0
	for _, s := range b.Scenarios {
		if s.Dose.Calculated() {
			calculated++
			if requireGrids && s.Dose.GridFile == "" {
				is.Warnings = append(is.Warnings, fmt.Sprintf("scenario %q has no dose grid and is left out of min/max doses", s.Name))
			}
			continue
		}
		is.Warnings = append(is.Warnings, fmt.Sprintf("scenario %q is not calculated", s.Name))
	}
	if calculated == 0 {
		is.Errors = append(is.Errors, "plan contains no calculated uncertainty scenarios")
	}

	for _, g := range b.ClinicalGoals {
		if !g.Scored() {
			is.Warnings = append(is.Warnings, fmt.Sprintf("goal %s %q has no nominal result and will be scored from the nominal DVH", g.StructureID, g.Label()))
		}
	}

	if requireGrids {
		if _, ok := b.NominalGrid(); !ok {
			is.Errors = append(is.Errors, "plan has no nominal dose grid")
		}
		if len(b.ScenarioGrids()) == 0 && calculated > 0 {
			is.Errors = append(is.Errors, "no uncertainty scenario has a dose grid")
		}
	}
	return is
}
