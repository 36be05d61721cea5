package model_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/critreview/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestScoreMapDecode(t *testing.T) {
	convey.Convey("Given a score snapshot body", t, func() {
		body := `{"CSCI0170":{"course":4.6,"prof":"4.2"},"MATH0100-S01":3.9}`

		convey.Convey("When decoding it as a ScoreMap", func() {
			var m model.ScoreMap
			err := json.Unmarshal([]byte(body), &m)

			convey.Convey("Then every key is present with its raw payload", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(m, convey.ShouldHaveLength, 2)
				convey.So(string(m["CSCI0170"]), convey.ShouldEqual, `{"course":4.6,"prof":"4.2"}`)
			})

			convey.Convey("And re-encoding preserves the payloads", func() {
				out, err := json.Marshal(m)
				convey.So(err, convey.ShouldBeNil)

				var back model.ScoreMap
				convey.So(json.Unmarshal(out, &back), convey.ShouldBeNil)
				convey.So(back, convey.ShouldResemble, m)
			})
		})
	})
}

func TestScoresNumber(t *testing.T) {
	convey.Convey("Given opaque score records", t, func() {
		obj := model.Scores(`{"course":4.6,"prof":"4.2","label":"n/a","lab":null}`)
		bare := model.Scores(`3.9`)

		convey.Convey("Then named numeric fields resolve", func() {
			v, ok := obj.Number("course")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(v, convey.ShouldEqual, 4.6)
		})

		convey.Convey("Then numeric strings resolve", func() {
			v, ok := obj.Number("prof")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(v, convey.ShouldEqual, 4.2)
		})

		convey.Convey("Then non-numeric or missing fields do not", func() {
			_, ok := obj.Number("label")
			convey.So(ok, convey.ShouldBeFalse)
			_, ok = obj.Number("missing")
			convey.So(ok, convey.ShouldBeFalse)
			_, ok = obj.Number("lab")
			convey.So(ok, convey.ShouldBeFalse)
			_, ok = bare.Number("course")
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("Then a bare number resolves with an empty field", func() {
			v, ok := bare.Number("")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(v, convey.ShouldEqual, 3.9)
		})
	})
}
