package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseMeasureType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want MeasureType
	}{
		{"dose_at_volume", MeasureTypeDoseAtVolume},
		{"DXXX", MeasureTypeDoseAtVolume},
		{"DXXXcc", MeasureTypeDoseAtVolumeCC},
		{"vxxx", MeasureTypeVolumeAtDose},
		{"VXXXGy", MeasureTypeVolumeAtDoseGy},
		{" Dmax ", MeasureTypeDoseMax},
		{"dose_min", MeasureTypeDoseMin},
		{"Dmean", MeasureTypeDoseMean},
		{"unknown", MeasureTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMeasureType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseMeasureType("gradient")
	assert.Error(t, err)
}

func TestMeasureTypes_AllNamed(t *testing.T) {
	t.Parallel()

	all := MeasureTypes()
	assert.Len(t, all, int(measureTypeCount))
	for _, m := range all {
		assert.NotEmpty(t, measureTypeNames[m], "measure type %d has no name", int(m))
		back, err := ParseMeasureType(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, back)
	}
}

func TestParseOperator(t *testing.T) {
	t.Parallel()

	assert.Equal(t, OperatorGreaterThan, ParseOperator(">"))
	assert.Equal(t, OperatorGreaterThanOrEqual, ParseOperator(">="))
	assert.Equal(t, OperatorLessThan, ParseOperator("lt"))
	assert.Equal(t, OperatorLessThanOrEqual, ParseOperator("≤"))
	assert.Equal(t, OperatorEquals, ParseOperator("=="))
	assert.Equal(t, OperatorUnknown, ParseOperator("~"))
}

func TestPriorityString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "P1", PriorityMostImportant.String())
	assert.Equal(t, "P3", PriorityImportant.String())
	assert.Equal(t, "P5", PriorityReportOnly.String())
}

func TestClinicalGoal_WithResultLeavesDefinitionIntact(t *testing.T) {
	t.Parallel()

	variation := 45.0
	goal := ClinicalGoal{
		StructureID:         "PTV",
		MeasureType:         MeasureTypeDoseMax,
		Objective:           Objective{Limit: 50, LimitUnit: ObjectiveUnitAbsolute, Operator: OperatorGreaterThan},
		Priority:            PriorityVeryImportant,
		VariationAcceptable: &variation,
	}

	scored := goal.WithResult(55, VerdictPassed)

	assert.False(t, goal.Scored())
	assert.Nil(t, goal.ActualValue)
	assert.True(t, scored.Scored())
	assert.InDelta(t, 55, *scored.ActualValue, 1e-12)
	assert.Equal(t, goal.StructureID, scored.StructureID)
	assert.Equal(t, goal.Objective, scored.Objective)
	assert.Equal(t, goal.Priority, scored.Priority)
}

func TestFormatObjective(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		measure MeasureType
		obj     Objective
		want    string
	}{
		{"dmax absolute", MeasureTypeDoseMax,
			Objective{Limit: 60, LimitUnit: ObjectiveUnitAbsolute, Operator: OperatorLessThan}, "Dmax < 60 Gy"},
		{"d95 relative", MeasureTypeDoseAtVolume,
			Objective{Value: 95, ValueUnit: ObjectiveUnitRelative, Limit: 95, LimitUnit: ObjectiveUnitRelative, Operator: OperatorGreaterThanOrEqual}, "D95% >= 95 %"},
		{"d2cc", MeasureTypeDoseAtVolumeCC,
			Objective{Value: 2000, ValueUnit: ObjectiveUnitAbsolute, Limit: 54, LimitUnit: ObjectiveUnitAbsolute, Operator: OperatorLessThanOrEqual}, "D2cc <= 54 Gy"},
		{"v20gy cc", MeasureTypeVolumeAtDoseGy,
			Objective{Value: 20, ValueUnit: ObjectiveUnitAbsolute, Limit: 2000, LimitUnit: ObjectiveUnitAbsolute, Operator: OperatorLessThan}, "V20Gy < 2 cc"},
		{"v95 relative", MeasureTypeVolumeAtDose,
			Objective{Value: 95, ValueUnit: ObjectiveUnitRelative, Limit: 98.5, LimitUnit: ObjectiveUnitRelative, Operator: OperatorGreaterThan}, "V95% > 98.5 %"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatObjective(tt.measure, tt.obj))
		})
	}
}

func TestClinicalGoal_LabelPrefersPlanText(t *testing.T) {
	t.Parallel()

	g := ClinicalGoal{MeasureType: MeasureTypeDoseMean, Objective: Objective{Limit: 20, Operator: OperatorLessThan}}
	assert.Equal(t, "Dmean < 20 Gy", g.Label())

	g.ObjectiveText = "Mean < 20.00 Gy"
	assert.Equal(t, "Mean < 20.00 Gy", g.Label())
}

func TestClinicalGoal_DecodeYAML(t *testing.T) {
	t.Parallel()

	doc := `
structure_id: Rectum
measure_type: VXXXGy
objective:
  value: 60
  value_unit: absolute
  limit: 35
  limit_unit: relative
  operator: "<"
priority: 1
variation_acceptable: 40
`
	var g ClinicalGoal
	require.NoError(t, yaml.Unmarshal([]byte(doc), &g))

	assert.Equal(t, "Rectum", g.StructureID)
	assert.Equal(t, MeasureTypeVolumeAtDoseGy, g.MeasureType)
	assert.Equal(t, OperatorLessThan, g.Objective.Operator)
	assert.Equal(t, ObjectiveUnitRelative, g.Objective.LimitUnit)
	assert.Equal(t, PriorityVeryImportant, g.Priority)
	require.NotNil(t, g.VariationAcceptable)
	assert.InDelta(t, 40, *g.VariationAcceptable, 1e-12)
	assert.False(t, g.Scored())
}

func TestUncertaintyGoal_JSONNaNRoundTrip(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(UncertaintyGoal{Name: "Scenario 1", Value: math.NaN(), Result: VerdictNotAvailable})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Scenario 1","value":null,"goalResult":"NA"}`, string(b))

	var back UncertaintyGoal
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, math.IsNaN(back.Value))
	assert.Equal(t, VerdictNotAvailable, back.Result)

	b, err = json.Marshal(UncertaintyGoal{Name: "Nominal", Value: 58.25, Result: VerdictPassed})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Nominal","value":58.25,"goalResult":"Passed"}`, string(b))
}

func TestContainer_ScenarioNamesAndCounts(t *testing.T) {
	t.Parallel()

	c := &UncertaintyGoalListContainer{
		Lists: []UncertaintyGoalList{
			{StructureID: "PTV", Goals: []UncertaintyGoal{
				{Name: "Nominal", Result: VerdictPassed},
				{Name: "S1", Result: VerdictFailed},
			}},
			{StructureID: "Cord", Goals: []UncertaintyGoal{
				{Name: "Nominal", Result: VerdictPassed},
				{Name: "S1", Result: VerdictWithinVariationAcceptable},
			}},
		},
	}

	assert.Equal(t, []string{"Nominal", "S1"}, c.ScenarioNames())
	counts := c.VerdictCounts()
	assert.Equal(t, 2, counts[VerdictPassed])
	assert.Equal(t, 1, counts[VerdictFailed])
	assert.Equal(t, 1, counts[VerdictWithinVariationAcceptable])

	assert.Nil(t, (&UncertaintyGoalListContainer{}).ScenarioNames())
}
