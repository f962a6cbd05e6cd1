package onboard

import (
	"context"
	"math"
	"time"

	"github.com/CodedInternet/rovcontrol/onboard/hardware"
	log "github.com/sirupsen/logrus"

	deverrors "github.com/CodedInternet/rovcontrol/onboard/errors"
)

// Sequencer moves a motor from its recorded angle to a target without ever jumping between
// two running pulses and without jumping straight from neutral to a running pulse.
type Sequencer struct {
	cal    Calibration
	ramp   RampConfig
	motors map[string]MotorConfig
	store  *StateStore
	out    hardware.Output
}

func NewSequencer(config VehicleConfig, store *StateStore, out hardware.Output) *Sequencer {
	return &Sequencer{
		cal:    config.Calibration,
		ramp:   config.Ramp,
		motors: config.Motors,
		store:  store,
		out:    out,
	}
}

// Transition runs the interlock, the soft start ramp and the final commit for one motor.
// It returns ctx.Err() if the context ends at one of its waits; the store and the output
// then both hold the last angle written.
func (s *Sequencer) Transition(ctx context.Context, id string, target float64) error {
	m, ok := s.motors[id]
	if !ok {
		return deverrors.MotorIDError{ID: id}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logger := log.WithField("motor", id)
	neutral := s.cal.Neutral
	target = s.cal.Clamp(target)
	current := s.store.Get(id)

	if current == target {
		logger.Infof("Motor %s: Already at target angle %v°", id, target)
		return nil
	}
	logger.Infof("Motor %s: Changing speed/direction from %v° to %v°", id, current, target)

	if current != neutral && target != neutral {
		logger.Infof("Motor %s: Intermediate Stop (%v°) for %v to ensure safe reversal", id, neutral, s.ramp.InterlockDelay)
		s.write(id, m.Channel, neutral)
		if !wait(ctx, s.ramp.InterlockDelay) {
			return ctx.Err()
		}
		current = neutral
	}

	if current == neutral && target != neutral {
		logger.Infof("Motor %s: Starting smooth speed transition to %v°", id, target)

		step := (target - neutral) / float64(s.ramp.Steps)
		angle := neutral
		for i := 1; i <= s.ramp.Steps; i++ {
			angle += step

			// never overshoot the target
			next := math.Min(target, angle)
			if step < 0 {
				next = math.Max(target, angle)
			}

			s.write(id, m.Channel, next)
			if !wait(ctx, s.ramp.StepDelay) {
				return ctx.Err()
			}
		}
	}

	s.write(id, m.Channel, target)
	logger.Infof("Motor %s holding at %v°", id, target)
	return nil
}

func (s *Sequencer) write(id string, channel int, angle float64) {
	s.out.SetAngle(channel, angle)
	s.store.Set(id, angle)
}

// wait sleeps for d, returning false early if ctx ends first.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
