package registry_test

import (
	"errors"
	"testing"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/registry"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistry(t *testing.T) {
	Convey("Given the default registry", t, func() {
		r := registry.Default()

		Convey("Then it holds every default entry", func() {
			So(r.Len(), ShouldEqual, len(registry.Defaults()))
		})

		Convey("Then policies resolve per metric", func() {
			So(r.PolicyFor("training.distance_km"), ShouldEqual, registry.PolicySum)
			So(r.PolicyFor("body.weight_kg"), ShouldEqual, registry.PolicyLast)
			So(r.PolicyFor("wellness.sleep_hours"), ShouldEqual, registry.PolicyMean)
		})

		Convey("Then unknown metrics fall back to mean", func() {
			So(r.PolicyFor("wellness.unheard_of"), ShouldEqual, registry.PolicyMean)
		})

		Convey("Then inverted metrics normalize downwards", func() {
			e, ok := r.Lookup(model.FamilyWellness, registry.KeyFatigue)
			So(ok, ShouldBeTrue)
			s, ok := e.Normalize(1)
			So(ok, ShouldBeTrue)
			So(s, ShouldEqual, 100)
			s, _ = e.Normalize(10)
			So(s, ShouldEqual, 0)
		})

		Convey("Then normalization clips to [0,100]", func() {
			e, _ := r.Lookup(model.FamilyWellness, registry.KeySleepHours)
			s, _ := e.Normalize(12)
			So(s, ShouldEqual, 100)
			s, _ = e.Normalize(-1)
			So(s, ShouldEqual, 0)
		})

		Convey("Then unbounded entries do not normalize", func() {
			e, _ := r.Lookup(model.FamilyBody, "weight_kg")
			_, ok := e.Normalize(80)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given custom entries", t, func() {
		Convey("When a later entry overrides a default", func() {
			entries := append(registry.Defaults(), registry.Entry{
				Family: model.FamilyTraining, Key: "distance_km", Policy: registry.PolicyMean,
			})
			r, err := registry.New(entries...)
			So(err, ShouldBeNil)
			So(r.PolicyFor("training.distance_km"), ShouldEqual, registry.PolicyMean)
		})

		Convey("When the policy is unknown", func() {
			_, err := registry.New(registry.Entry{Family: model.FamilyBody, Key: "x", Policy: "median"})
			So(errors.Is(err, registry.ErrInvalidEntry), ShouldBeTrue)
		})

		Convey("When bounds are inverted", func() {
			_, err := registry.New(registry.Entry{Family: model.FamilyBody, Key: "x", Policy: registry.PolicyMean, Low: 5, High: 1})
			So(errors.Is(err, registry.ErrInvalidEntry), ShouldBeTrue)
		})

		Convey("When the family is unknown", func() {
			_, err := registry.New(registry.Entry{Family: "diet", Key: "kcal", Policy: registry.PolicySum})
			So(errors.Is(err, registry.ErrInvalidEntry), ShouldBeTrue)
		})
	})
}
