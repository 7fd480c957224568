package completeness_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/readiness/internal/domain/completeness"
	"github.com/okian/readiness/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var from = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestCompute(t *testing.T) {
	Convey("Given wellness records on some days", t, func() {
		metrics := []model.MetricRecord{
			{PlayerID: "p1", Date: from, Family: model.FamilyWellness, Key: "sleep_hours", Value: 7},
			{PlayerID: "p1", Date: from, Family: model.FamilyWellness, Key: "mood", Value: 6},
			{PlayerID: "p1", Date: from.AddDate(0, 0, 4), Family: model.FamilyWellness, Key: "mood", Value: 6},
			{PlayerID: "p1", Date: from.AddDate(0, 0, 2), Family: model.FamilyAutonomic, Key: "hrv_rmssd", Value: 60},
			{PlayerID: "p1", Date: from.AddDate(0, 0, 20), Family: model.FamilyWellness, Key: "mood", Value: 6},
		}
		r, err := completeness.Compute("p1", model.FamilyWellness, from, from.AddDate(0, 0, 9), metrics, nil)
		So(err, ShouldBeNil)

		Convey("Then distinct in-range days of the family are counted", func() {
			So(r.DaysWithData, ShouldEqual, 2)
			So(r.TotalDays, ShouldEqual, 10)
			So(r.CompletenessPct, ShouldEqual, 20)
			So(r.DateFrom, ShouldEqual, "2024-03-01")
			So(r.DateTo, ShouldEqual, "2024-03-10")
		})
	})

	Convey("Given a player without sessions", t, func() {
		r, err := completeness.Compute("p1", model.FamilyTraining, from, from.AddDate(0, 0, 27), nil, nil)
		So(err, ShouldBeNil)
		So(r.DaysWithData, ShouldEqual, 0)
		So(r.CompletenessPct, ShouldEqual, 0)
		So(r.TotalDays, ShouldEqual, 28)
	})

	Convey("Given sessions for the training family", t, func() {
		sessions := []model.SessionRecord{
			{PlayerID: "p1", Date: from, DurationMinutes: 60, PerceivedExertion: 5},
			{PlayerID: "p1", Date: from.AddDate(0, 0, 1), DurationMinutes: 60, PerceivedExertion: 5},
		}
		metrics := []model.MetricRecord{
			{PlayerID: "p1", Date: from.AddDate(0, 0, 1), Family: model.FamilyTraining, Key: "distance_km", Value: 5},
			{PlayerID: "p1", Date: from.AddDate(0, 0, 3), Family: model.FamilyTraining, Key: "distance_km", Value: 5},
		}
		r, err := completeness.Compute("p1", model.FamilyTraining, from, from.AddDate(0, 0, 3), metrics, sessions)
		So(err, ShouldBeNil)
		So(r.DaysWithData, ShouldEqual, 3)
		So(r.CompletenessPct, ShouldEqual, 75)
	})

	Convey("Given an invalid request", t, func() {
		_, err := completeness.Compute("p1", model.FamilyWellness, from.AddDate(0, 0, 1), from, nil, nil)
		So(errors.Is(err, model.ErrInvalidRange), ShouldBeTrue)

		_, err = completeness.Compute("p1", "diet", from, from, nil, nil)
		So(errors.Is(err, model.ErrInvalidFamily), ShouldBeTrue)
	})
}
