package hardware

import (
	log "github.com/sirupsen/logrus"
)

// Simulated stands in for the driver chip when it is absent. It only logs.
type Simulated struct {
	pulse PulseRange
}

func NewSimulated(pulse PulseRange) *Simulated {
	return &Simulated{pulse: pulse}
}

func (s *Simulated) SetAngle(channel int, angle float64) {
	log.WithFields(log.Fields{
		"channel": channel,
		"duty":    s.pulse.AngleToDuty(angle),
	}).Infof("SIMULATION: Setting Ch %d to %v°", channel, angle)
}

func (s *Simulated) SetDuty(channel int, duty uint16) {
	log.WithField("channel", channel).Infof("SIMULATION: Setting Ch %d duty to %d", channel, duty)
}

func (s *Simulated) Hardware() bool {
	return false
}

func (s *Simulated) Close() error {
	log.Info("Cleanup skipped (PCA not initialized).")
	return nil
}
