package model

import (
	"encoding/json"
	"math"
)

// UncertaintyGoal is one clinical goal scored against one dose distribution.
type UncertaintyGoal struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Result Verdict `json:"goalResult"`
}

type uncertaintyGoalJSON struct {
	Name   string   `json:"name"`
	Value  *float64 `json:"value"`
	Result Verdict  `json:"goalResult"`
}

// MarshalJSON writes an undefined (NaN) value as null; encoding/json rejects NaN.
func (u UncertaintyGoal) MarshalJSON() ([]byte, error) {
	out := uncertaintyGoalJSON{Name: u.Name, Result: u.Result}
	if !math.IsNaN(u.Value) && !math.IsInf(u.Value, 0) {
		v := u.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

func (u *UncertaintyGoal) UnmarshalJSON(b []byte) error {
	var in uncertaintyGoalJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	u.Name = in.Name
	u.Result = in.Result
	u.Value = math.NaN()
	if in.Value != nil {
		u.Value = *in.Value
	}
	return nil
}

// UncertaintyGoalList holds one clinical goal's results: nominal first, then
// each calculated scenario in plan order.
type UncertaintyGoalList struct {
	StructureID string            `json:"structureId"`
	Objective   string            `json:"objective"`
	Priority    Priority          `json:"priority"`
	Goals       []UncertaintyGoal `json:"uncertaintyGoals"`
}

// UncertaintyGoalListContainer is the full evaluation result for one plan.
type UncertaintyGoalListContainer struct {
	PatientID string                `json:"patientId"`
	CourseID  string                `json:"courseId"`
	PlanID    string                `json:"planId"`
	Lists     []UncertaintyGoalList `json:"uncertaintyGoalLists"`
}

// ScenarioNames returns the column names of the first goal list, which every
// list shares.
func (c *UncertaintyGoalListContainer) ScenarioNames() []string {
	if len(c.Lists) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.Lists[0].Goals))
	for _, g := range c.Lists[0].Goals {
		names = append(names, g.Name)
	}
	return names
}

// VerdictCounts tallies verdicts over every entry of every list.
func (c *UncertaintyGoalListContainer) VerdictCounts() map[Verdict]int {
	counts := make(map[Verdict]int)
	for _, l := range c.Lists {
		for _, g := range l.Goals {
			counts[g.Result]++
		}
	}
	return counts
}

// RobustSummary describes a completed min/max dose aggregation.
type RobustSummary struct {
	PlanID      string   `json:"plan_id"`
	MinPlanID   string   `json:"min_plan_id"`
	MaxPlanID   string   `json:"max_plan_id"`
	Extents     Extents  `json:"extents"`
	Scenarios   []string `json:"scenarios"`
	MinReplaced int64    `json:"min_replaced"`
	MaxReplaced int64    `json:"max_replaced"`
}
