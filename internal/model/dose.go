package model

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Extents is the voxel matrix size of a dose grid.
type Extents struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

func (e Extents) String() string {
	return fmt.Sprintf("%d, %d, %d", e.X, e.Y, e.Z)
}

// PlaneLen is the number of voxels in one Z plane.
func (e Extents) PlaneLen() int {
	return e.X * e.Y
}

// Len is the total number of voxels.
func (e Extents) Len() int {
	return e.X * e.Y * e.Z
}

// MaxVoxels caps the voxel count of a single grid (1 GiB of int32 voxels).
const MaxVoxels = 1 << 28

// Valid reports whether every dimension is positive and the grid holds at
// most MaxVoxels voxels.
func (e Extents) Valid() bool {
	if e.X <= 0 || e.Y <= 0 || e.Z <= 0 {
		return false
	}
	return e.X <= MaxVoxels/e.Y && e.PlaneLen() <= MaxVoxels/e.Z
}

// DoseGrid is a 3-D matrix of raw integer dose voxels, stored plane by plane.
// Within a plane voxel (x, y) lives at index y*X + x.
type DoseGrid struct {
	Extents    Extents    `json:"extents"`
	Origin     [3]float64 `json:"origin"`
	Resolution [3]float64 `json:"resolution"`

	voxels []int32
}

// NewDoseGrid allocates a zero-filled grid.
func NewDoseGrid(ext Extents) *DoseGrid {
	return &DoseGrid{Extents: ext, voxels: make([]int32, ext.Len())}
}

// NewDoseGridFromVoxels wraps an existing voxel buffer; the grid takes ownership.
func NewDoseGridFromVoxels(ext Extents, voxels []int32) (*DoseGrid, error) {
	if len(voxels) != ext.Len() {
		return nil, eris.Errorf("model: dose grid %s needs %d voxels, got %d", ext, ext.Len(), len(voxels))
	}
	return &DoseGrid{Extents: ext, voxels: voxels}, nil
}

// Plane returns the voxels of plane z. The slice aliases the grid.
func (g *DoseGrid) Plane(z int) []int32 {
	n := g.Extents.PlaneLen()
	return g.voxels[z*n : (z+1)*n : (z+1)*n]
}

// Voxel returns the value at (x, y, z).
func (g *DoseGrid) Voxel(x, y, z int) int32 {
	return g.voxels[g.index(x, y, z)]
}

// SetVoxel sets the value at (x, y, z).
func (g *DoseGrid) SetVoxel(x, y, z int, v int32) {
	g.voxels[g.index(x, y, z)] = v
}

// Voxels exposes the backing buffer, plane-major.
func (g *DoseGrid) Voxels() []int32 {
	return g.voxels
}

// Clone returns a deep copy sharing no voxel storage with g.
func (g *DoseGrid) Clone() *DoseGrid {
	c := *g
	c.voxels = make([]int32, len(g.voxels))
	copy(c.voxels, g.voxels)
	return &c
}

func (g *DoseGrid) index(x, y, z int) int {
	return z*g.Extents.PlaneLen() + y*g.Extents.X + x
}
