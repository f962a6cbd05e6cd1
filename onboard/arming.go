package onboard

import (
	"context"
	"time"

	"github.com/CodedInternet/rovcontrol/onboard/hardware"
	log "github.com/sirupsen/logrus"
)

// ArmESCs brings every ESC from unarmed to armed at neutral:
// arming pulse, electrical off, neutral pulse, each followed by its hold.
// Holds are skipped when the output is simulated.
func ArmESCs(ctx context.Context, config VehicleConfig, out hardware.Output, store *StateStore) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cal := config.Calibration
	ids := config.MotorIDs()

	hold := func(d time.Duration) error {
		if !out.Hardware() {
			return nil
		}
		if !wait(ctx, d) {
			return ctx.Err()
		}
		return nil
	}

	if !out.Hardware() {
		log.Info("SIMULATION: ESC initialization holds skipped, hardware not present")
	}

	log.Info("--- ESC Initialization Sequence ---")

	log.Infof("STEP 1: Setting all motors to ARMING_ANGLE (%v°). ESCs should arm/beep now.", cal.Arming)
	for _, id := range ids {
		out.SetAngle(config.Motors[id].Channel, cal.Arming)
	}
	if err := hold(config.Arming.ArmHold); err != nil {
		return err
	}

	log.Infof("STEP 2: Safety Minimum (0 duty cycle) for %v", config.Arming.OffHold)
	for _, id := range ids {
		out.SetDuty(config.Motors[id].Channel, 0)
	}
	if err := hold(config.Arming.OffHold); err != nil {
		return err
	}

	log.Infof("STEP 3: Moving to NEUTRAL_ANGLE (%v°). Motors should be stopped and armed.", cal.Neutral)
	for _, id := range ids {
		out.SetAngle(config.Motors[id].Channel, cal.Neutral)
	}
	if err := hold(config.Arming.NeutralHold); err != nil {
		return err
	}

	store.SetAll(cal.Neutral)
	log.Infof("ESCs initialized and armed at neutral (%v°) - motors stopped.", cal.Neutral)
	return nil
}
