package intensity_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/critreview/internal/domain/intensity"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalize(t *testing.T) {
	Convey("Given the affine normalization", t, func() {
		Convey("Then the anchor points map exactly", func() {
			So(intensity.MustNormalize(1), ShouldEqual, 0)
			So(intensity.MustNormalize(5), ShouldEqual, 1)
			So(intensity.MustNormalize(3), ShouldEqual, 0.5)
		})

		Convey("Then every raw score in range maps to (r-1)/4", func() {
			for r := 1.0; r <= 5.0; r += 0.1 {
				got, err := intensity.Normalize(r)
				So(err, ShouldBeNil)
				So(got, ShouldAlmostEqual, (r-1)/4, 1e-12)
				So(got, ShouldBeBetweenOrEqual, 0, 1)
			}
		})

		Convey("Then it is strictly monotonic on one-decimal scores", func() {
			prev := -1.0
			for tenth := 10; tenth <= 50; tenth++ {
				got := intensity.MustNormalize(float64(tenth) / 10)
				So(got, ShouldBeGreaterThan, prev)
				prev = got
			}
		})

		Convey("Then Denormalize inverts it", func() {
			for _, r := range []float64{1, 1.7, 2.5, 3.3, 4.9, 5} {
				back, err := intensity.Denormalize(intensity.MustNormalize(r))
				So(err, ShouldBeNil)
				So(back, ShouldAlmostEqual, r, 1e-12)
			}
		})

		Convey("When the raw score is out of range", func() {
			for _, r := range []float64{0.99, 5.01, -3, math.NaN(), math.Inf(1)} {
				_, err := intensity.Normalize(r)
				So(errors.Is(err, intensity.ErrOutOfRange), ShouldBeTrue)
			}

			Convey("Then MustNormalize panics", func() {
				So(func() { intensity.MustNormalize(0) }, ShouldPanic)
			})
		})

		Convey("When the intensity is out of range", func() {
			_, err := intensity.Denormalize(1.5)
			So(errors.Is(err, intensity.ErrOutOfRange), ShouldBeTrue)
		})
	})
}

func TestColor(t *testing.T) {
	Convey("Given intensities across the range", t, func() {
		Convey("Then the color never matches the unscored default", func() {
			for i := 0.0; i <= 1.0; i += 0.05 {
				So(intensity.Color(i), ShouldNotEqual, intensity.UnscoredColor)
				So(intensity.Color(i), ShouldNotEqual, "rgb(68, 68, 68)")
			}
		})

		Convey("Then the endpoints are red and green", func() {
			So(intensity.Color(0), ShouldEqual, "rgb(200, 0, 0)")
			So(intensity.Color(1), ShouldEqual, "rgb(0, 160, 0)")
		})

		Convey("Then out-of-range input is clamped", func() {
			So(intensity.Color(-1), ShouldEqual, intensity.Color(0))
			So(intensity.Color(2), ShouldEqual, intensity.Color(1))
		})

		Convey("Then NaN renders as the low end of the ramp", func() {
			So(intensity.Color(math.NaN()), ShouldEqual, "rgb(200, 0, 0)")
			So(intensity.Color(math.Inf(1)), ShouldEqual, intensity.Color(1))
		})
	})
}
