// Package intensity converts raw review scores into display intensities.
//
// A raw score is a 1-5 rating. Its display intensity is the affine map
// taking 1 to 0 and 5 to 1: (raw - 1) / 4. Every consumer that styles
// scored elements must use this exact map so that colors agree across
// integrations.
package intensity

import (
	"fmt"
	"math"
)

// Score bounds.
const (
	MinRaw = 1.0
	MaxRaw = 5.0

	MinIntensity = 0.0
	MaxIntensity = 1.0
)

// UnscoredColor is the host page's default text color. A scored element
// must never render with it.
const UnscoredColor = "rgba(68, 68, 68, 1)"

// Normalize returns the display intensity for raw.
func Normalize(raw float64) (float64, error) {
	if math.IsNaN(raw) || raw < MinRaw || raw > MaxRaw {
		return 0, fmt.Errorf("%w: raw score %v not in [%v, %v]", ErrOutOfRange, raw, MinRaw, MaxRaw)
	}
	return (raw - MinRaw) / (MaxRaw - MinRaw), nil
}

// MustNormalize is Normalize for inputs already known to be in range.
func MustNormalize(raw float64) float64 {
	i, err := Normalize(raw)
	if err != nil {
		panic(err)
	}
	return i
}

// Denormalize maps an intensity back onto the raw scale.
func Denormalize(i float64) (float64, error) {
	if math.IsNaN(i) || i < MinIntensity || i > MaxIntensity {
		return 0, fmt.Errorf("%w: intensity %v not in [%v, %v]", ErrOutOfRange, i, MinIntensity, MaxIntensity)
	}
	return MinRaw + i*(MaxRaw-MinRaw), nil
}

// Color renders an intensity as a red-to-green CSS color. The blue channel
// is always zero, so the result never matches UnscoredColor. Out of range
// intensities are clamped; NaN maps to MinIntensity.
func Color(i float64) string {
	if math.IsNaN(i) {
		i = MinIntensity
	}
	i = math.Max(MinIntensity, math.Min(MaxIntensity, i))
	r := int(math.Round(200 * (1 - i)))
	g := int(math.Round(160 * i))
	return fmt.Sprintf("rgb(%d, %d, 0)", r, g)
}
