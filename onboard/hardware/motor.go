package hardware

import (
	"math"
	"time"
)

const (
	MAX_ANGLE  = 180.0
	FULL_SCALE = 65535

	DEFAULT_MIN_US    = 1000
	DEFAULT_MAX_US    = 2000
	DEFAULT_FREQUENCY = 50
)

// Output drives the PWM channels an ESC is wired to.
// Implementations never report write failures to the caller; they log and carry on so a
// sequence that is heading towards a safe pulse is never aborted half way.
type Output interface {
	SetAngle(channel int, angle float64)
	SetDuty(channel int, duty uint16)
	Hardware() bool
	Close() error
}

// PulseRange maps the 0-180 logical angle onto an ESC pulse width.
type PulseRange struct {
	MinUS     float64
	MaxUS     float64
	Frequency float64
}

func DefaultPulseRange() PulseRange {
	return PulseRange{
		MinUS:     DEFAULT_MIN_US,
		MaxUS:     DEFAULT_MAX_US,
		Frequency: DEFAULT_FREQUENCY,
	}
}

func (p PulseRange) frame() time.Duration {
	if p.Frequency <= 0 {
		return time.Second / DEFAULT_FREQUENCY
	}
	return time.Duration(float64(time.Second) / p.Frequency)
}

// PulseWidth returns the pulse width in microseconds for an angle.
func (p PulseRange) PulseWidth(angle float64) float64 {
	angle = math.Max(0, math.Min(MAX_ANGLE, angle))
	return p.MinUS + (angle/MAX_ANGLE)*(p.MaxUS-p.MinUS)
}

// AngleToDuty converts an angle into a 16 bit duty value against the PWM frame.
func (p PulseRange) AngleToDuty(angle float64) uint16 {
	frameUS := float64(p.frame()) / float64(time.Microsecond)
	duty := math.Round(p.PulseWidth(angle) / frameUS * FULL_SCALE)
	if duty > FULL_SCALE {
		duty = FULL_SCALE
	}
	return uint16(duty)
}
