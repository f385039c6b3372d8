// Package dvh reads values off cumulative dose-volume histograms.
package dvh

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/uncertainty-goals/internal/model"
)

// ErrEmptyCurve is returned when there is no sample to interpolate from.
var ErrEmptyCurve = eris.New("dvh: empty curve")

// absoluteVolumeScale converts absolute-volume targets (mm³) to the curve's cm³.
const absoluteVolumeScale = 1000.0

// Interpolate returns the value on the result axis of curve at target on the
// lookup axis. By default the lookup axis is volume and the result is dose;
// with lookupIsDose the axes are swapped and the curve walked in reverse so the
// lookup axis is still decreasing.
//
// No extrapolation is done: a target above the first lookup value or below
// the last one yields NaN. A plateau of equal lookup values resolves to its
// last sample.
func Interpolate(curve []model.DVHPoint, target float64, lookupIsDose, volumeIsAbsolute bool) (float64, error) {
	n := len(curve)
	if n == 0 {
		return math.NaN(), ErrEmptyCurve
	}

	x := func(i int) float64 { return curve[i].Volume }
	y := func(i int) float64 { return curve[i].Dose }
	if lookupIsDose {
		x = func(i int) float64 { return curve[n-1-i].Dose }
		y = func(i int) float64 { return curve[n-1-i].Volume }
	} else if volumeIsAbsolute {
		target /= absoluteVolumeScale
	}

	if math.IsNaN(target) || x(0) < target {
		return math.NaN(), nil
	}

	// The first sample strictly below target closes the bracketing segment,
	// so x(i-1) >= target > x(i) and the denominator is never zero.
	for i := 1; i < n; i++ {
		if x(i) < target {
			frac := (target - x(i-1)) / (x(i) - x(i-1))
			return y(i-1) + frac*(y(i)-y(i-1)), nil
		}
	}

	if x(n-1) == target {
		return y(n - 1), nil
	}
	return math.NaN(), nil
}
