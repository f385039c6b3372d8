package model

import "time"

// RunKind distinguishes the two computations a run can record.
type RunKind string

const (
	RunKindGoals  RunKind = "goals"
	RunKindRobust RunKind = "robust"
)

// RunStatus represents the current state of a run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// PlanRef identifies a plan within a patient's course.
type PlanRef struct {
	PatientID string `json:"patient_id" yaml:"patient_id"`
	CourseID  string `json:"course_id" yaml:"course_id"`
	PlanID    string `json:"plan_id" yaml:"plan_id"`
}

// Run is one recorded evaluation or aggregation.
type Run struct {
	ID        string     `json:"id"`
	Kind      RunKind    `json:"kind"`
	Plan      PlanRef    `json:"plan"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Goals  *UncertaintyGoalListContainer `json:"goals,omitempty"`
	Robust *RobustSummary                `json:"robust,omitempty"`
	Error  string                        `json:"error,omitempty"`
}
