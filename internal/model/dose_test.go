package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoseGrid_VoxelAddressing(t *testing.T) {
	t.Parallel()

	g := NewDoseGrid(Extents{X: 3, Y: 2, Z: 2})
	g.SetVoxel(2, 1, 1, 42)

	assert.Equal(t, int32(42), g.Voxel(2, 1, 1))
	assert.Equal(t, int32(42), g.Plane(1)[1*3+2])
	assert.Len(t, g.Plane(0), 6)
	for _, v := range g.Plane(0) {
		assert.Zero(t, v)
	}
}

func TestDoseGrid_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	g := NewDoseGrid(Extents{X: 2, Y: 2, Z: 1})
	g.Origin = [3]float64{-10, -20, 5}
	g.SetVoxel(0, 0, 0, 7)

	c := g.Clone()
	c.SetVoxel(0, 0, 0, 9)

	assert.Equal(t, int32(7), g.Voxel(0, 0, 0))
	assert.Equal(t, int32(9), c.Voxel(0, 0, 0))
	assert.Equal(t, g.Origin, c.Origin)
	assert.Equal(t, g.Extents, c.Extents)
}

func TestNewDoseGridFromVoxels(t *testing.T) {
	t.Parallel()

	_, err := NewDoseGridFromVoxels(Extents{X: 2, Y: 2, Z: 2}, make([]int32, 7))
	require.Error(t, err)

	g, err := NewDoseGridFromVoxels(Extents{X: 2, Y: 1, Z: 2}, []int32{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 4}, g.Plane(1))
}

func TestExtents(t *testing.T) {
	t.Parallel()

	e := Extents{X: 4, Y: 3, Z: 2}
	assert.Equal(t, 12, e.PlaneLen())
	assert.Equal(t, 24, e.Len())
	assert.True(t, e.Valid())
	assert.False(t, Extents{X: 4, Y: 0, Z: 2}.Valid())
	assert.False(t, Extents{X: 1 << 30, Y: 1 << 30, Z: 1 << 30}.Valid(), "product overflows")
	assert.False(t, Extents{X: 1 << 15, Y: 1 << 15, Z: 1}.Valid(), "over MaxVoxels")
	assert.True(t, Extents{X: 1 << 14, Y: 1 << 14, Z: 1}.Valid())
	assert.Equal(t, "4, 3, 2", e.String())
}
