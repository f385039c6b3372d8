// Package goal resolves how a clinical goal is measured and scores measured
// values against the goal's objective.
package goal

import (
	"github.com/sells-group/uncertainty-goals/internal/model"
)

// DirectRead names a DVH statistic that is read without interpolation.
type DirectRead int

const (
	DirectNone DirectRead = iota
	DirectMax
	DirectMin
	DirectMean
)

// Resolution is everything needed to obtain a goal's actual value from a dose.
type Resolution struct {
	NeedsInterpolation bool
	LookupIsDose       bool
	Direct             DirectRead
	DosePresentation   model.DosePresentation
	VolumePresentation model.VolumePresentation
	// LimitDivisor normalises the objective limit before comparison.
	LimitDivisor float64
}

// VolumeIsAbsolute reports whether the DVH volume axis is in cm³.
func (r Resolution) VolumeIsAbsolute() bool {
	return r.VolumePresentation == model.VolumePresentationAbsoluteCm3
}

type measureRule struct {
	interpolate  bool
	lookupIsDose bool
	direct       DirectRead
	dose         model.DosePresentation
	volume       model.VolumePresentation
	// absolute volume limits are stored in mm³ while the DVH reports cm³
	scaleAbsoluteLimit bool
}

// An empty presentation in a rule means "follow the objective's limit unit".
var measureRules = map[model.MeasureType]measureRule{
	model.MeasureTypeUnknown: {},
	model.MeasureTypeDoseAtVolume: {
		interpolate: true,
		volume:      model.VolumePresentationRelative,
	},
	model.MeasureTypeDoseAtVolumeCC: {
		interpolate: true,
		volume:      model.VolumePresentationAbsoluteCm3,
	},
	model.MeasureTypeVolumeAtDose: {
		interpolate:        true,
		lookupIsDose:       true,
		dose:               model.DosePresentationRelative,
		scaleAbsoluteLimit: true,
	},
	model.MeasureTypeVolumeAtDoseGy: {
		interpolate:        true,
		lookupIsDose:       true,
		dose:               model.DosePresentationAbsolute,
		scaleAbsoluteLimit: true,
	},
	model.MeasureTypeDoseMax:  {direct: DirectMax},
	model.MeasureTypeDoseMin:  {direct: DirectMin},
	model.MeasureTypeDoseMean: {direct: DirectMean},
}

// Resolve maps a goal's measure type and objective units to a Resolution.
// Unknown measure types resolve to no interpolation and no direct read, which
// leaves the actual value undefined.
func Resolve(g model.ClinicalGoal) Resolution {
	res := Resolution{
		DosePresentation:   model.DosePresentationAbsolute,
		VolumePresentation: model.VolumePresentationAbsoluteCm3,
		LimitDivisor:       1,
	}
	if g.Objective.LimitUnit == model.ObjectiveUnitRelative {
		res.DosePresentation = model.DosePresentationRelative
		res.VolumePresentation = model.VolumePresentationRelative
	}

	rule := measureRules[g.MeasureType]
	res.NeedsInterpolation = rule.interpolate
	res.LookupIsDose = rule.lookupIsDose
	res.Direct = rule.direct
	if rule.dose != "" {
		res.DosePresentation = rule.dose
	}
	if rule.volume != "" {
		res.VolumePresentation = rule.volume
	}
	if rule.scaleAbsoluteLimit && g.Objective.LimitUnit == model.ObjectiveUnitAbsolute {
		res.LimitDivisor = 1000
	}
	return res
}
