package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// MeasureType identifies the DVH metric a clinical goal is defined on.
type MeasureType int

const (
	MeasureTypeUnknown        MeasureType = iota
	MeasureTypeDoseAtVolume               // DXXX: dose at relative volume
	MeasureTypeDoseAtVolumeCC             // DXXXcc: dose at absolute volume
	MeasureTypeVolumeAtDose               // VXXX: volume at relative dose
	MeasureTypeVolumeAtDoseGy             // VXXXGy: volume at absolute dose
	MeasureTypeDoseMax
	MeasureTypeDoseMin
	MeasureTypeDoseMean

	measureTypeCount
)

var measureTypeNames = [measureTypeCount]string{
	MeasureTypeUnknown:        "unknown",
	MeasureTypeDoseAtVolume:   "dose_at_volume",
	MeasureTypeDoseAtVolumeCC: "dose_at_volume_cc",
	MeasureTypeVolumeAtDose:   "volume_at_dose",
	MeasureTypeVolumeAtDoseGy: "volume_at_dose_gy",
	MeasureTypeDoseMax:        "dose_max",
	MeasureTypeDoseMin:        "dose_min",
	MeasureTypeDoseMean:       "dose_mean",
}

// Short forms used by treatment planning systems.
var measureTypeAliases = map[string]MeasureType{
	"dxxx":   MeasureTypeDoseAtVolume,
	"dxxxcc": MeasureTypeDoseAtVolumeCC,
	"vxxx":   MeasureTypeVolumeAtDose,
	"vxxxgy": MeasureTypeVolumeAtDoseGy,
	"dmax":   MeasureTypeDoseMax,
	"dmin":   MeasureTypeDoseMin,
	"dmean":  MeasureTypeDoseMean,
}

// MeasureTypes returns every known measure type, including MeasureTypeUnknown.
func MeasureTypes() []MeasureType {
	out := make([]MeasureType, 0, measureTypeCount)
	for m := MeasureTypeUnknown; m < measureTypeCount; m++ {
		out = append(out, m)
	}
	return out
}

func (m MeasureType) String() string {
	if m < 0 || m >= measureTypeCount {
		return fmt.Sprintf("MeasureType(%d)", int(m))
	}
	return measureTypeNames[m]
}

// ParseMeasureType maps a canonical name or a planning-system alias to a MeasureType.
func ParseMeasureType(s string) (MeasureType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, name := range measureTypeNames {
		if name == key {
			return MeasureType(i), nil
		}
	}
	if m, ok := measureTypeAliases[key]; ok {
		return m, nil
	}
	return MeasureTypeUnknown, eris.Errorf("model: unknown measure type %q", s)
}

func (m MeasureType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MeasureType) UnmarshalText(b []byte) error {
	v, err := ParseMeasureType(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Operator is the comparison an objective applies to its limit.
type Operator int

const (
	OperatorUnknown Operator = iota
	OperatorGreaterThan
	OperatorGreaterThanOrEqual
	OperatorLessThan
	OperatorLessThanOrEqual
	OperatorEquals
)

var operatorSymbols = map[Operator]string{
	OperatorUnknown:            "?",
	OperatorGreaterThan:        ">",
	OperatorGreaterThanOrEqual: ">=",
	OperatorLessThan:           "<",
	OperatorLessThanOrEqual:    "<=",
	OperatorEquals:             "=",
}

var operatorAliases = map[string]Operator{
	">":  OperatorGreaterThan,
	"gt": OperatorGreaterThan,
	">=": OperatorGreaterThanOrEqual,
	"≥":  OperatorGreaterThanOrEqual,
	"ge": OperatorGreaterThanOrEqual,
	"<":  OperatorLessThan,
	"lt": OperatorLessThan,
	"<=": OperatorLessThanOrEqual,
	"≤":  OperatorLessThanOrEqual,
	"le": OperatorLessThanOrEqual,
	"=":  OperatorEquals,
	"==": OperatorEquals,
	"eq": OperatorEquals,
}

func (o Operator) String() string {
	if s, ok := operatorSymbols[o]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// ParseOperator never fails: anything unrecognised becomes OperatorUnknown,
// which evaluates to VerdictNotAvailable.
func ParseOperator(s string) Operator {
	if o, ok := operatorAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return o
	}
	return OperatorUnknown
}

func (o Operator) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Operator) UnmarshalText(b []byte) error {
	*o = ParseOperator(string(b))
	return nil
}

// ObjectiveUnit says whether an objective's value or limit is relative (%) or absolute.
type ObjectiveUnit string

const (
	ObjectiveUnitRelative ObjectiveUnit = "relative"
	ObjectiveUnitAbsolute ObjectiveUnit = "absolute"
)

// Objective is the limit side of a clinical goal. Value is the measure
// parameter (the 95 in D95%), Limit is what the measured quantity is compared to.
type Objective struct {
	Value     float64       `json:"value" yaml:"value"`
	ValueUnit ObjectiveUnit `json:"value_unit" yaml:"value_unit"`
	Limit     float64       `json:"limit" yaml:"limit"`
	LimitUnit ObjectiveUnit `json:"limit_unit" yaml:"limit_unit"`
	Operator  Operator      `json:"operator" yaml:"operator"`
}

// Priority is the planning-system goal priority, 0 being most important.
type Priority int

const (
	PriorityMostImportant Priority = iota
	PriorityVeryImportant
	PriorityImportant
	PriorityLessImportant
	PriorityReportOnly
)

// String renders the priority the way planners read it (P1 is most important).
func (p Priority) String() string {
	return "P" + strconv.Itoa(int(p)+1)
}

// Verdict is the outcome of evaluating one clinical goal against one dose.
type Verdict string

const (
	VerdictPassed                    Verdict = "Passed"
	VerdictWithinVariationAcceptable Verdict = "WithinVariationAcceptable"
	VerdictFailed                    Verdict = "Failed"
	VerdictNotAvailable              Verdict = "NA"
)

// ClinicalGoal is a goal definition as read from the plan. ActualValue and
// Result hold the nominal evaluation when the planning system supplied one.
type ClinicalGoal struct {
	StructureID         string      `json:"structure_id" yaml:"structure_id"`
	MeasureType         MeasureType `json:"measure_type" yaml:"measure_type"`
	Objective           Objective   `json:"objective" yaml:"objective"`
	ObjectiveText       string      `json:"objective_text,omitempty" yaml:"objective_text,omitempty"`
	Priority            Priority    `json:"priority" yaml:"priority"`
	VariationAcceptable *float64    `json:"variation_acceptable,omitempty" yaml:"variation_acceptable,omitempty"`
	ActualValue         *float64    `json:"actual_value,omitempty" yaml:"actual_value,omitempty"`
	Result              Verdict     `json:"evaluation_result,omitempty" yaml:"evaluation_result,omitempty"`
}

// Scored reports whether the goal carries a nominal evaluation.
func (g ClinicalGoal) Scored() bool {
	return g.Result != "" && g.ActualValue != nil
}

// WithResult returns a scored copy of the goal; the receiver is left untouched.
func (g ClinicalGoal) WithResult(actual float64, verdict Verdict) ClinicalGoal {
	scored := g
	scored.ActualValue = &actual
	scored.Result = verdict
	return scored
}

// Label returns the planning system's objective text, or a rendering of the
// objective when none was supplied.
func (g ClinicalGoal) Label() string {
	if g.ObjectiveText != "" {
		return g.ObjectiveText
	}
	return FormatObjective(g.MeasureType, g.Objective)
}

// FormatObjective renders an objective in planning-system notation, e.g.
// "D95% >= 95 %" or "Dmax < 60 Gy". Absolute volumes are stored in mm³ and
// shown in cc.
func FormatObjective(m MeasureType, o Objective) string {
	doseUnit := func(u ObjectiveUnit) string {
		if u == ObjectiveUnitRelative {
			return "%"
		}
		return "Gy"
	}
	volume := func(v float64, u ObjectiveUnit) string {
		if u == ObjectiveUnitRelative {
			return formatNumber(v) + " %"
		}
		return formatNumber(v/1000) + " cc"
	}

	op := o.Operator.String()
	switch m {
	case MeasureTypeDoseAtVolume:
		return fmt.Sprintf("D%s%% %s %s %s", formatNumber(o.Value), op, formatNumber(o.Limit), doseUnit(o.LimitUnit))
	case MeasureTypeDoseAtVolumeCC:
		return fmt.Sprintf("D%scc %s %s %s", formatNumber(o.Value/1000), op, formatNumber(o.Limit), doseUnit(o.LimitUnit))
	case MeasureTypeVolumeAtDose:
		return fmt.Sprintf("V%s%% %s %s", formatNumber(o.Value), op, volume(o.Limit, o.LimitUnit))
	case MeasureTypeVolumeAtDoseGy:
		return fmt.Sprintf("V%sGy %s %s", formatNumber(o.Value), op, volume(o.Limit, o.LimitUnit))
	case MeasureTypeDoseMax:
		return fmt.Sprintf("Dmax %s %s %s", op, formatNumber(o.Limit), doseUnit(o.LimitUnit))
	case MeasureTypeDoseMin:
		return fmt.Sprintf("Dmin %s %s %s", op, formatNumber(o.Limit), doseUnit(o.LimitUnit))
	case MeasureTypeDoseMean:
		return fmt.Sprintf("Dmean %s %s %s", op, formatNumber(o.Limit), doseUnit(o.LimitUnit))
	default:
		return fmt.Sprintf("%s %s %s", m, op, formatNumber(o.Limit))
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
