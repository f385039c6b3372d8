// Package robust derives per-voxel minimum and maximum dose envelopes over a
// nominal dose grid and its uncertainty scenarios.
package robust

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/uncertainty-goals/internal/model"
)

// ErrExtentMismatch is returned when a scenario grid does not share the
// nominal grid's geometry.
var ErrExtentMismatch = eris.New("robust: dose grid extents differ")

// Grid is a scenario dose grid whose geometry is known before its voxels are
// loaded.
type Grid interface {
	Name() string
	Extents() (model.Extents, error)
	Load(ctx context.Context) (*model.DoseGrid, error)
}

type memGrid struct {
	name string
	grid *model.DoseGrid
}

// InMemory adapts an already loaded grid.
func InMemory(name string, g *model.DoseGrid) Grid {
	return memGrid{name: name, grid: g}
}

func (m memGrid) Name() string                                  { return m.name }
func (m memGrid) Extents() (model.Extents, error)               { return m.grid.Extents, nil }
func (m memGrid) Load(context.Context) (*model.DoseGrid, error) { return m.grid, nil }

// Result holds the two envelopes and how often each voxel was replaced.
// The counters are diagnostic only.
type Result struct {
	Min         *model.DoseGrid
	Max         *model.DoseGrid
	Scenarios   []string
	MinReplaced int64
	MaxReplaced int64
}

// Aggregator computes min/max envelopes. Scenarios are applied one after the
// other; within a scenario, planes are split across workers.
type Aggregator struct {
	workers int
}

// New creates an Aggregator using up to workers goroutines per scenario pass.
func New(workers int) *Aggregator {
	if workers < 1 {
		workers = 1
	}
	return &Aggregator{workers: workers}
}

// Aggregate returns the per-voxel extremes over nominal and every scenario.
// All scenario extents are checked against the nominal before any voxel is
// read, so a mismatch never leaves a partial result.
func (a *Aggregator) Aggregate(ctx context.Context, nominal *model.DoseGrid, scenarios []Grid) (*Result, error) {
	if nominal == nil {
		return nil, eris.New("robust: nominal dose grid is required")
	}
	ext := nominal.Extents
	if !ext.Valid() {
		return nil, eris.Errorf("robust: invalid nominal extents (%s)", ext)
	}
	for _, s := range scenarios {
		got, err := s.Extents()
		if err != nil {
			return nil, eris.Wrapf(err, "robust: read extents of scenario %q", s.Name())
		}
		if got != ext {
			return nil, eris.Wrapf(ErrExtentMismatch,
				"robust: scenario %q has extents (%s), nominal has (%s)", s.Name(), got, ext)
		}
	}

	res := &Result{
		Min:       nominal.Clone(),
		Max:       nominal.Clone(),
		Scenarios: make([]string, 0, len(scenarios)),
	}

	for _, s := range scenarios {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "robust: aggregate")
		}
		grid, err := s.Load(ctx)
		if err != nil {
			return nil, eris.Wrapf(err, "robust: load scenario %q", s.Name())
		}
		if grid.Extents != ext {
			return nil, eris.Wrapf(ErrExtentMismatch,
				"robust: scenario %q loaded with extents (%s), nominal has (%s)", s.Name(), grid.Extents, ext)
		}

		minN, maxN, err := a.pass(ctx, res.Min, res.Max, grid)
		if err != nil {
			return nil, eris.Wrapf(err, "robust: scenario %q", s.Name())
		}
		res.MinReplaced += minN
		res.MaxReplaced += maxN
		res.Scenarios = append(res.Scenarios, s.Name())

		zap.L().Debug("robust: scenario applied",
			zap.String("scenario", s.Name()),
			zap.Int64("min_replaced", minN),
			zap.Int64("max_replaced", maxN),
		)
	}

	return res, nil
}

// pass folds one scenario into the envelopes. Each partition owns a disjoint
// plane range and its own counters.
func (a *Aggregator) pass(ctx context.Context, lo, hi, scen *model.DoseGrid) (int64, int64, error) {
	planes := scen.Extents.Z
	parts := min(a.workers, planes)
	chunk := (planes + parts - 1) / parts

	minCounts := make([]int64, parts)
	maxCounts := make([]int64, parts)

	g, gctx := errgroup.WithContext(ctx)
	for p := range parts {
		first, last := p*chunk, min(planes, (p+1)*chunk)
		g.Go(func() error {
			for z := first; z < last; z++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				minN, maxN := reducePlane(lo.Plane(z), hi.Plane(z), scen.Plane(z))
				minCounts[p] += minN
				maxCounts[p] += maxN
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	var minN, maxN int64
	for p := range parts {
		minN += minCounts[p]
		maxN += maxCounts[p]
	}
	return minN, maxN, nil
}

func reducePlane(lo, hi, scen []int32) (minN, maxN int64) {
	for i, v := range scen {
		if v < lo[i] {
			lo[i] = v
			minN++
		}
		if v > hi[i] {
			hi[i] = v
			maxN++
		}
	}
	return minN, maxN
}
