package onboard

import (
	"sync"
	"time"

	"github.com/CodedInternet/rovcontrol/onboard/hardware"
)

const TRACE_DEPTH = 256

// Write is one PWM write as seen by the output. Raw writes have Raw set and no angle.
type Write struct {
	Channel int
	Angle   float64
	Duty    uint16
	Raw     bool
	At      time.Time
}

// TraceOutput passes writes through to another output and remembers the most recent ones.
type TraceOutput struct {
	hardware.Output

	lock   sync.Mutex
	writes []Write
	depth  int
}

func NewTraceOutput(out hardware.Output, depth int) *TraceOutput {
	if depth <= 0 {
		depth = TRACE_DEPTH
	}
	return &TraceOutput{Output: out, depth: depth}
}

// NewSimulatedVehicle builds a vehicle on a traced simulated output.
func NewSimulatedVehicle(config VehicleConfig, preempt bool) (*Vehicle, *TraceOutput) {
	trace := NewTraceOutput(hardware.NewSimulated(config.PulseRange()), TRACE_DEPTH)
	return NewVehicle(config, trace, preempt), trace
}

func (t *TraceOutput) SetAngle(channel int, angle float64) {
	t.Output.SetAngle(channel, angle)
	t.record(Write{Channel: channel, Angle: angle, At: time.Now()})
}

func (t *TraceOutput) SetDuty(channel int, duty uint16) {
	t.Output.SetDuty(channel, duty)
	t.record(Write{Channel: channel, Duty: duty, Raw: true, At: time.Now()})
}

func (t *TraceOutput) record(w Write) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.writes = append(t.writes, w)
	if len(t.writes) > t.depth {
		t.writes = t.writes[len(t.writes)-t.depth:]
	}
}

// Writes returns the remembered writes for a channel, oldest first. A negative channel
// returns every write.
func (t *TraceOutput) Writes(channel int) []Write {
	t.lock.Lock()
	defer t.lock.Unlock()

	out := make([]Write, 0, len(t.writes))
	for _, w := range t.writes {
		if channel < 0 || w.Channel == channel {
			out = append(out, w)
		}
	}
	return out
}

// Angles returns the angles written to a channel, skipping raw duty writes.
func (t *TraceOutput) Angles(channel int) []float64 {
	var angles []float64
	for _, w := range t.Writes(channel) {
		if !w.Raw {
			angles = append(angles, w.Angle)
		}
	}
	return angles
}

func (t *TraceOutput) Reset() {
	t.lock.Lock()
	t.writes = nil
	t.lock.Unlock()
}
