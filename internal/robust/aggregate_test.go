package robust

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/uncertainty-goals/internal/model"
)

func TestAggregate_SingleVoxelExtremes(t *testing.T) {
	t.Parallel()

	ext := model.Extents{X: 4, Y: 3, Z: 2}
	nominal := model.NewDoseGrid(ext)

	hot := model.NewDoseGrid(ext)
	hot.SetVoxel(0, 0, 0, 10)
	cold := model.NewDoseGrid(ext)
	cold.SetVoxel(0, 0, 0, -5)

	res, err := New(2).Aggregate(context.Background(), nominal, []Grid{
		InMemory("Scenario1", hot),
		InMemory("Scenario2", cold),
	})
	require.NoError(t, err)

	assert.Equal(t, int32(10), res.Max.Voxel(0, 0, 0))
	assert.Equal(t, int32(-5), res.Min.Voxel(0, 0, 0))
	for i, v := range res.Max.Voxels()[1:] {
		assert.Zero(t, v, "max voxel %d", i+1)
	}
	for i, v := range res.Min.Voxels()[1:] {
		assert.Zero(t, v, "min voxel %d", i+1)
	}
	assert.Equal(t, int64(1), res.MinReplaced)
	assert.Equal(t, int64(1), res.MaxReplaced)
	assert.Equal(t, []string{"Scenario1", "Scenario2"}, res.Scenarios)

	// inputs are untouched
	assert.Equal(t, make([]int32, ext.Len()), nominal.Voxels())
}

func TestAggregate_YExtentMismatch(t *testing.T) {
	t.Parallel()

	nominal := model.NewDoseGrid(model.Extents{X: 4, Y: 3, Z: 2})
	good := model.NewDoseGrid(model.Extents{X: 4, Y: 3, Z: 2})
	good.SetVoxel(1, 1, 1, 99)
	bad := model.NewDoseGrid(model.Extents{X: 4, Y: 5, Z: 2})

	loads := 0
	counting := countingGrid{Grid: InMemory("Scenario1", good), loads: &loads}

	res, err := New(1).Aggregate(context.Background(), nominal, []Grid{counting, InMemory("Scenario2", bad)})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrExtentMismatch))
	assert.Contains(t, err.Error(), "4, 5, 2")
	assert.Contains(t, err.Error(), "4, 3, 2")
	assert.Zero(t, loads, "no scenario may be aggregated before every extent is checked")
}

func TestAggregate_MatchesSequentialScan(t *testing.T) {
	t.Parallel()

	ext := model.Extents{X: 5, Y: 4, Z: 7}
	nominal := model.NewDoseGrid(ext)
	for i := range nominal.Voxels() {
		nominal.Voxels()[i] = int32(i % 11)
	}

	var scenarios []Grid
	var grids []*model.DoseGrid
	for s := range 4 {
		g := model.NewDoseGrid(ext)
		for i := range g.Voxels() {
			g.Voxels()[i] = int32((i*(s+3))%17 - 6)
		}
		grids = append(grids, g)
		scenarios = append(scenarios, InMemory("s", g))
	}

	wantMin := nominal.Clone()
	wantMax := nominal.Clone()
	for _, g := range grids {
		for i, v := range g.Voxels() {
			wantMin.Voxels()[i] = min(wantMin.Voxels()[i], v)
			wantMax.Voxels()[i] = max(wantMax.Voxels()[i], v)
		}
	}

	for _, workers := range []int{0, 1, 3, 7, 16} {
		res, err := New(workers).Aggregate(context.Background(), nominal, scenarios)
		require.NoError(t, err)
		assert.Equal(t, wantMin.Voxels(), res.Min.Voxels(), "workers=%d", workers)
		assert.Equal(t, wantMax.Voxels(), res.Max.Voxels(), "workers=%d", workers)
	}

	single, err := New(1).Aggregate(context.Background(), nominal, scenarios)
	require.NoError(t, err)
	parallel, err := New(4).Aggregate(context.Background(), nominal, scenarios)
	require.NoError(t, err)
	assert.Equal(t, single.MinReplaced, parallel.MinReplaced)
	assert.Equal(t, single.MaxReplaced, parallel.MaxReplaced)
}

func TestAggregate_NoScenarios(t *testing.T) {
	t.Parallel()

	nominal := model.NewDoseGrid(model.Extents{X: 1, Y: 1, Z: 1})
	nominal.SetVoxel(0, 0, 0, 7)

	res, err := New(1).Aggregate(context.Background(), nominal, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(7), res.Min.Voxel(0, 0, 0))
	assert.Equal(t, int32(7), res.Max.Voxel(0, 0, 0))
	assert.Zero(t, res.MinReplaced)
	assert.Zero(t, res.MaxReplaced)
}

func TestAggregate_Errors(t *testing.T) {
	t.Parallel()

	_, err := New(1).Aggregate(context.Background(), nil, nil)
	assert.Error(t, err)

	_, err = New(1).Aggregate(context.Background(), model.NewDoseGrid(model.Extents{}), nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ext := model.Extents{X: 1, Y: 1, Z: 1}
	_, err = New(1).Aggregate(ctx, model.NewDoseGrid(ext), []Grid{InMemory("s", model.NewDoseGrid(ext))})
	assert.ErrorIs(t, err, context.Canceled)
}

type countingGrid struct {
	Grid
	loads *int
}

func (c countingGrid) Load(ctx context.Context) (*model.DoseGrid, error) {
	*c.loads++
	return c.Grid.Load(ctx)
}
