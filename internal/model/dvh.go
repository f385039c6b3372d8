package model

// DosePresentation selects relative (% of prescription) or absolute (Gy) dose.
type DosePresentation string

const (
	DosePresentationRelative DosePresentation = "relative"
	DosePresentationAbsolute DosePresentation = "absolute"
)

// VolumePresentation selects relative (% of structure) or absolute (cm³) volume.
type VolumePresentation string

const (
	VolumePresentationRelative    VolumePresentation = "relative"
	VolumePresentationAbsoluteCm3 VolumePresentation = "absolute_cm3"
)

// DVHPoint is one sample of a cumulative dose-volume histogram.
type DVHPoint struct {
	Dose   float64 `json:"dose" yaml:"dose"`
	Volume float64 `json:"volume" yaml:"volume"`
}

// DVHData is a cumulative DVH for one structure in one dose distribution,
// expressed in the presentations it was requested with. Curve is ordered by
// increasing dose.
type DVHData struct {
	Curve              []DVHPoint         `json:"curve"`
	MinDose            float64            `json:"min_dose"`
	MaxDose            float64            `json:"max_dose"`
	MeanDose           float64            `json:"mean_dose"`
	DosePresentation   DosePresentation   `json:"dose_presentation"`
	VolumePresentation VolumePresentation `json:"volume_presentation"`
	BinWidth           float64            `json:"bin_width"`
}
