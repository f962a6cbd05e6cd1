package onboard

import (
	"context"
	"testing"
	"time"

	"github.com/CodedInternet/rovcontrol/onboard/hardware"
	. "github.com/smartystreets/goconvey/convey"
)

func TestArmESCs(t *testing.T) {
	Convey("arming on hardware", t, func() {
		config := testConfig()
		store := NewStateStore(config.MotorIDs(), 0)
		store.Set("2", 180)
		trace := NewTraceOutput(&fakeOutput{}, 0)

		err := ArmESCs(context.Background(), config, trace, store)
		So(err, ShouldBeNil)

		Convey("every motor ends at neutral", func() {
			for _, angle := range store.Snapshot() {
				So(angle, ShouldEqual, config.Calibration.Neutral)
			}
		})

		Convey("each channel sees arm, off, neutral in order", func() {
			for _, id := range config.MotorIDs() {
				writes := trace.Writes(config.Motors[id].Channel)
				So(len(writes), ShouldEqual, 3)

				So(writes[0].Raw, ShouldBeFalse)
				So(writes[0].Angle, ShouldEqual, config.Calibration.Arming)

				So(writes[1].Raw, ShouldBeTrue)
				So(writes[1].Duty, ShouldEqual, 0)

				So(writes[2].Raw, ShouldBeFalse)
				So(writes[2].Angle, ShouldEqual, config.Calibration.Neutral)
			}
		})

		Convey("all channels are armed before any is switched off", func() {
			writes := trace.Writes(-1)
			So(len(writes), ShouldEqual, 12)
			for i, w := range writes {
				switch {
				case i < 4:
					So(w.Angle, ShouldEqual, config.Calibration.Arming)
				case i < 8:
					So(w.Raw, ShouldBeTrue)
				default:
					So(w.Angle, ShouldEqual, config.Calibration.Neutral)
				}
			}
		})
	})

	Convey("holds are honoured on hardware", t, func() {
		config := testConfig()
		config.Arming = ArmingConfig{ArmHold: 30 * time.Millisecond, OffHold: 10 * time.Millisecond, NeutralHold: 20 * time.Millisecond}
		store := NewStateStore(config.MotorIDs(), 0)

		start := time.Now()
		So(ArmESCs(context.Background(), config, &fakeOutput{}, store), ShouldBeNil)
		So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 60*time.Millisecond)
	})

	Convey("simulation skips the holds but still arms", t, func() {
		config := DefaultConfig()
		store := NewStateStore(config.MotorIDs(), 0)

		start := time.Now()
		err := ArmESCs(context.Background(), config, hardware.NewSimulated(config.PulseRange()), store)
		So(err, ShouldBeNil)
		So(time.Since(start), ShouldBeLessThan, time.Second)
		So(store.Get("1"), ShouldEqual, 120)
	})

	Convey("cancelling during a hold aborts before neutral is recorded", t, func() {
		config := DefaultConfig()
		store := NewStateStore(config.MotorIDs(), 0)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := ArmESCs(ctx, config, &fakeOutput{}, store)
		So(err, ShouldEqual, context.DeadlineExceeded)
		So(store.Get("1"), ShouldEqual, 0)
	})
}
