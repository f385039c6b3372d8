package plan

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/uncertainty-goals/internal/model"
)

// DefaultBinWidth is the DVH bin width requested when none is configured.
const DefaultBinWidth = 0.01

// DVHRequest selects the units a DVH is returned in.
type DVHRequest struct {
	Dose     model.DosePresentation
	Volume   model.VolumePresentation
	BinWidth float64
}

// DoseSource is a dose distribution that can answer DVH requests.
type DoseSource interface {
	Name() string
	Calculated() bool
	DVH(ctx context.Context, structureID string, req DVHRequest) (*model.DVHData, error)
}

// GridSource is a dose distribution backed by a voxel grid.
type GridSource interface {
	Name() string
	Extents() (model.Extents, error)
	Load(ctx context.Context) (*model.DoseGrid, error)
}

// Provider is everything goal evaluation reads from a plan.
type Provider interface {
	Ref() model.PlanRef
	Goals() []model.ClinicalGoal
	HasStructure(id string) bool
	NominalDose() DoseSource
	UncertaintyDoses() []DoseSource
}

// present converts a stored Gy/cm³ DVH into the requested presentation.
// Relative dose is a percentage of the total prescribed dose, relative volume
// a percentage of the structure volume.
func present(raw StructureDVH, s Structure, rx Prescription, req DVHRequest) (*model.DVHData, error) {
	doseScale := 1.0
	dosePres := model.DosePresentationAbsolute
	if req.Dose == model.DosePresentationRelative {
		total := rx.TotalDose()
		if total <= 0 {
			return nil, eris.Errorf("plan: relative dose needs a prescription, total dose is %g Gy", total)
		}
		doseScale = 100 / total
		dosePres = model.DosePresentationRelative
	}

	volScale := 1.0
	volPres := model.VolumePresentationAbsoluteCm3
	if req.Volume == model.VolumePresentationRelative {
		if s.VolumeCC <= 0 {
			return nil, eris.Errorf("plan: relative volume needs a structure volume, %q has %g cc", s.ID, s.VolumeCC)
		}
		volScale = 100 / s.VolumeCC
		volPres = model.VolumePresentationRelative
	}

	curve := make([]model.DVHPoint, len(raw.Curve))
	for i, p := range raw.Curve {
		curve[i] = model.DVHPoint{Dose: p.Dose * doseScale, Volume: p.Volume * volScale}
	}

	minDose, maxDose, meanDose := curveStats(raw.Curve)
	if raw.MinDose != nil {
		minDose = *raw.MinDose
	}
	if raw.MaxDose != nil {
		maxDose = *raw.MaxDose
	}
	if raw.MeanDose != nil {
		meanDose = *raw.MeanDose
	}

	binWidth := req.BinWidth
	if binWidth <= 0 {
		binWidth = DefaultBinWidth
	}

	return &model.DVHData{
		Curve:              curve,
		MinDose:            minDose * doseScale,
		MaxDose:            maxDose * doseScale,
		MeanDose:           meanDose * doseScale,
		DosePresentation:   dosePres,
		VolumePresentation: volPres,
		BinWidth:           binWidth,
	}, nil
}

// curveStats derives dose statistics from a cumulative curve: min is the
// highest dose still covering the whole volume, max the highest dose with any
// volume left, mean the area under the curve over the total volume.
func curveStats(curve []model.DVHPoint) (minDose, maxDose, meanDose float64) {
	if len(curve) == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	total := curve[0].Volume
	minDose, maxDose = curve[0].Dose, curve[0].Dose
	area := curve[0].Dose * total
	for i := 1; i < len(curve); i++ {
		p, prev := curve[i], curve[i-1]
		if p.Volume >= total {
			minDose = p.Dose
		}
		if p.Volume > 0 {
			maxDose = p.Dose
		}
		area += (p.Dose - prev.Dose) * (p.Volume + prev.Volume) / 2
	}
	if total <= 0 {
		return minDose, maxDose, math.NaN()
	}
	return minDose, maxDose, area / total
}
