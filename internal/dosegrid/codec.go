// Package dosegrid reads and writes dose grid files.
//
// A file is a fixed little-endian header followed by every voxel as an int32,
// plane by plane. The header alone is enough to check grid geometry, so
// callers can validate many grids without loading their voxels.
package dosegrid

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/uncertainty-goals/internal/model"
)

// Version is the file format version written by Write.
const Version uint16 = 1

var magic = [4]byte{'U', 'G', 'D', 'G'}

// headerSize is the encoded size of rawHeader in bytes.
const headerSize = 68

var (
	// ErrBadMagic is returned when a file is not a dose grid file.
	ErrBadMagic = eris.New("dosegrid: bad magic")
	// ErrUnsupportedVersion is returned for files written by a newer format.
	ErrUnsupportedVersion = eris.New("dosegrid: unsupported version")
	// ErrSizeMismatch is returned when a file's length disagrees with its header.
	ErrSizeMismatch = eris.New("dosegrid: size mismatch")
)

// Header describes a grid's geometry.
type Header struct {
	Version    uint16
	Extents    model.Extents
	Origin     [3]float64
	Resolution [3]float64
}

type rawHeader struct {
	Magic      [4]byte
	Version    uint16
	_          uint16
	X, Y, Z    int32
	Origin     [3]float64
	Resolution [3]float64
}

// ReadHeader reads only the header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var raw rawHeader
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return Header{}, eris.Wrap(err, "dosegrid: read header")
	}
	if raw.Magic != magic {
		return Header{}, ErrBadMagic
	}
	if raw.Version == 0 || raw.Version > Version {
		return Header{}, eris.Wrapf(ErrUnsupportedVersion, "dosegrid: version %d", raw.Version)
	}
	h := Header{
		Version:    raw.Version,
		Extents:    model.Extents{X: int(raw.X), Y: int(raw.Y), Z: int(raw.Z)},
		Origin:     raw.Origin,
		Resolution: raw.Resolution,
	}
	if !h.Extents.Valid() {
		return Header{}, eris.Errorf("dosegrid: invalid extents %s", h.Extents)
	}
	return h, nil
}

// Read reads a full grid from r.
func Read(r io.Reader) (*model.DoseGrid, error) {
	br := bufio.NewReader(r)
	h, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}

	g := model.NewDoseGrid(h.Extents)
	g.Origin = h.Origin
	g.Resolution = h.Resolution
	for z := range h.Extents.Z {
		if err := binary.Read(br, binary.LittleEndian, g.Plane(z)); err != nil {
			return nil, eris.Wrapf(err, "dosegrid: read plane %d", z)
		}
	}
	return g, nil
}

// Write writes g to w.
func Write(w io.Writer, g *model.DoseGrid) error {
	if !g.Extents.Valid() {
		return eris.Errorf("dosegrid: invalid extents %s", g.Extents)
	}
	bw := bufio.NewWriter(w)
	raw := rawHeader{
		Magic:      magic,
		Version:    Version,
		X:          int32(g.Extents.X),
		Y:          int32(g.Extents.Y),
		Z:          int32(g.Extents.Z),
		Origin:     g.Origin,
		Resolution: g.Resolution,
	}
	if err := binary.Write(bw, binary.LittleEndian, &raw); err != nil {
		return eris.Wrap(err, "dosegrid: write header")
	}
	for z := range g.Extents.Z {
		if err := binary.Write(bw, binary.LittleEndian, g.Plane(z)); err != nil {
			return eris.Wrapf(err, "dosegrid: write plane %d", z)
		}
	}
	return eris.Wrap(bw.Flush(), "dosegrid: flush")
}

// ReadHeaderFile reads the header of the grid file at path.
func ReadHeaderFile(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, eris.Wrapf(err, "dosegrid: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	h, err := ReadHeader(f)
	return h, eris.Wrapf(err, "dosegrid: %s", path)
}

// ReadFile loads the grid file at path.
func ReadFile(path string) (*model.DoseGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dosegrid: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	h, err := ReadHeader(f)
	if err != nil {
		return nil, eris.Wrapf(err, "dosegrid: %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, eris.Wrapf(err, "dosegrid: stat %s", path)
	}
	if want := FileSize(h.Extents); info.Size() != want {
		return nil, eris.Wrapf(ErrSizeMismatch, "dosegrid: %s is %d bytes, extents %s need %d", path, info.Size(), h.Extents, want)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, eris.Wrapf(err, "dosegrid: seek %s", path)
	}

	g, err := Read(f)
	if err != nil {
		return nil, eris.Wrapf(err, "dosegrid: %s", path)
	}
	return g, nil
}

// FileSize is the encoded length of a grid with the given extents.
func FileSize(ext model.Extents) int64 {
	return headerSize + 4*int64(ext.Len())
}

// WriteFile writes g to path, replacing any existing file.
func WriteFile(path string, g *model.DoseGrid) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "dosegrid: create %s", path)
	}
	if err := Write(f, g); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "dosegrid: close %s", path)
}
