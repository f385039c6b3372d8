// Package scenario scores every clinical goal of a plan against the nominal
// dose and each calculated uncertainty scenario.
package scenario

import (
	"context"
	"errors"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/uncertainty-goals/internal/dvh"
	"github.com/sells-group/uncertainty-goals/internal/goal"
	"github.com/sells-group/uncertainty-goals/internal/model"
	"github.com/sells-group/uncertainty-goals/internal/plan"
)

// ErrStructureNotFound is returned when a clinical goal names a structure the
// plan's structure set does not contain.
var ErrStructureNotFound = eris.New("scenario: structure not found")

// DefaultNominalLabel names the nominal entry of every goal list.
const DefaultNominalLabel = "Nominal"

// Options configures an Evaluator.
type Options struct {
	Workers      int
	BinWidth     float64
	NominalLabel string
	Undefined    goal.UndefinedPolicy
}

// Evaluator builds uncertainty goal lists for a plan.
type Evaluator struct {
	scorer       *goal.Evaluator
	workers      int
	binWidth     float64
	nominalLabel string
}

// New creates an Evaluator.
func New(opts Options) *Evaluator {
	e := &Evaluator{
		scorer:       goal.NewEvaluator(opts.Undefined),
		workers:      opts.Workers,
		binWidth:     opts.BinWidth,
		nominalLabel: opts.NominalLabel,
	}
	if e.workers < 1 {
		e.workers = 1
	}
	if e.binWidth <= 0 {
		e.binWidth = plan.DefaultBinWidth
	}
	if e.nominalLabel == "" {
		e.nominalLabel = DefaultNominalLabel
	}
	return e
}

// Evaluate scores every goal of p, in plan order, against the nominal dose
// and then every calculated scenario in plan order. Scenarios without a
// calculated dose are skipped. A goal whose structure is missing aborts the
// whole evaluation before anything is scored.
func (e *Evaluator) Evaluate(ctx context.Context, p plan.Provider) (*model.UncertaintyGoalListContainer, error) {
	ref := p.Ref()
	goals := p.Goals()

	for _, g := range goals {
		if !p.HasStructure(g.StructureID) {
			return nil, eris.Wrapf(ErrStructureNotFound,
				"scenario: structure %q for goal %q", g.StructureID, g.Label())
		}
	}

	var doses []plan.DoseSource
	for _, d := range p.UncertaintyDoses() {
		if !d.Calculated() {
			zap.L().Debug("scenario: skipping uncalculated scenario", zap.String("scenario", d.Name()))
			continue
		}
		doses = append(doses, d)
	}

	zap.L().Info("scenario: evaluating plan",
		zap.String("patient_id", ref.PatientID),
		zap.String("plan_id", ref.PlanID),
		zap.Int("goals", len(goals)),
		zap.Int("scenarios", len(doses)),
	)

	lists := make([]model.UncertaintyGoalList, len(goals))
	for i, g := range goals {
		lists[i] = model.UncertaintyGoalList{
			StructureID: g.StructureID,
			Objective:   g.Label(),
			Priority:    g.Priority,
			Goals:       make([]model.UncertaintyGoal, 1+len(doses)),
		}
	}

	// Every job writes only its own slot, so output order is enumeration
	// order whatever order jobs finish in.
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)
	for i, g := range goals {
		slots := lists[i].Goals
		eg.Go(func() error {
			entry, err := e.nominal(gctx, p.NominalDose(), g)
			if err != nil {
				return err
			}
			slots[0] = entry
			return nil
		})
		for j, d := range doses {
			eg.Go(func() error {
				entry, err := e.score(gctx, d, d.Name(), g)
				if err != nil {
					return err
				}
				slots[j+1] = entry
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &model.UncertaintyGoalListContainer{
		PatientID: ref.PatientID,
		CourseID:  ref.CourseID,
		PlanID:    ref.PlanID,
		Lists:     lists,
	}, nil
}

// nominal reports the planning system's own result when the goal carries
// one, and scores the nominal dose otherwise.
func (e *Evaluator) nominal(ctx context.Context, src plan.DoseSource, g model.ClinicalGoal) (model.UncertaintyGoal, error) {
	if g.Scored() {
		return model.UncertaintyGoal{Name: e.nominalLabel, Value: *g.ActualValue, Result: g.Result}, nil
	}
	return e.score(ctx, src, e.nominalLabel, g)
}

func (e *Evaluator) score(ctx context.Context, src plan.DoseSource, name string, g model.ClinicalGoal) (model.UncertaintyGoal, error) {
	actual, err := e.Measure(ctx, src, g)
	if err != nil {
		return model.UncertaintyGoal{}, eris.Wrapf(err, "scenario: %s goal %s %q", name, g.StructureID, g.Label())
	}
	scored := g.WithResult(actual, e.scorer.EvaluateGoal(g, actual))

	zap.L().Debug("scenario: goal scored",
		zap.String("scenario", name),
		zap.String("structure_id", g.StructureID),
		zap.String("objective", g.Label()),
		zap.Float64("actual", actual),
		zap.String("result", string(scored.Result)),
	)
	return model.UncertaintyGoal{Name: name, Value: *scored.ActualValue, Result: scored.Result}, nil
}

// Measure reads the goal's actual value off src's DVH. Undefined values,
// including a structure with no DVH in this dose, are NaN.
func (e *Evaluator) Measure(ctx context.Context, src plan.DoseSource, g model.ClinicalGoal) (float64, error) {
	res := goal.Resolve(g)
	if !res.NeedsInterpolation && res.Direct == goal.DirectNone {
		return math.NaN(), nil
	}

	data, err := src.DVH(ctx, g.StructureID, plan.DVHRequest{
		Dose:     res.DosePresentation,
		Volume:   res.VolumePresentation,
		BinWidth: e.binWidth,
	})
	if errors.Is(err, plan.ErrNoDVH) {
		zap.L().Warn("scenario: no DVH, value undefined",
			zap.String("scenario", src.Name()),
			zap.String("structure_id", g.StructureID),
		)
		return math.NaN(), nil
	}
	if err != nil {
		return math.NaN(), err
	}

	switch res.Direct {
	case goal.DirectMax:
		return data.MaxDose, nil
	case goal.DirectMin:
		return data.MinDose, nil
	case goal.DirectMean:
		return data.MeanDose, nil
	}
	return dvh.Interpolate(data.Curve, g.Objective.Value, res.LookupIsDose, res.VolumeIsAbsolute())
}
