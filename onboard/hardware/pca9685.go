package hardware

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3/sysfs"
)

const (
	DEFAULT_I2C_BUS     = 1
	DEFAULT_I2C_ADDRESS = 0x40
	PCA_CHANNELS        = 16
)

type I2CConfig struct {
	Bus       int    `yaml:"bus"`
	Address   uint16 `yaml:"address"`
	Frequency int    `yaml:"frequency"`
}

// PCA9685 writes duty cycles to a PCA9685 driver chip.
type PCA9685 struct {
	bus    i2c.BusCloser
	dev    *pca9685.Dev
	pulse  PulseRange
	lock   sync.Mutex
	closed bool
}

// NewPCA9685 configures the chip on an already opened bus. The bus is owned by the
// returned driver and closed with it.
func NewPCA9685(bus i2c.BusCloser, address uint16, pulse PulseRange) (p *PCA9685, err error) {
	dev, err := pca9685.NewI2C(bus, address)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to initialise PCA9685 at %#02x", address)
	}

	freq := pulse.Frequency
	if freq <= 0 {
		freq = DEFAULT_FREQUENCY
	}
	if err = dev.SetPwmFreq(physic.Frequency(freq) * physic.Hertz); err != nil {
		return nil, errors.Wrap(err, "unable to set PWM frequency")
	}
	if err = dev.SetAllPwm(0, 0); err != nil {
		return nil, errors.Wrap(err, "unable to clear PWM outputs")
	}

	return &PCA9685{
		bus:   bus,
		dev:   dev,
		pulse: pulse,
	}, nil
}

func (p *PCA9685) SetAngle(channel int, angle float64) {
	duty := p.pulse.AngleToDuty(angle)
	log.WithFields(log.Fields{"channel": channel, "angle": angle, "duty": duty}).Debug("pwm write")
	p.SetDuty(channel, duty)
}

// SetDuty writes a 16 bit duty value. The chip only has 12 bits of resolution.
func (p *PCA9685) SetDuty(channel int, duty uint16) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.closed {
		log.WithField("channel", channel).Debug("pwm write dropped, driver released")
		return
	}

	if err := p.dev.SetPwm(channel, 0, gpio.Duty(duty>>4)); err != nil {
		log.WithError(err).WithField("channel", channel).Error("Error setting PWM")
	}
}

func (p *PCA9685) Hardware() bool {
	return true
}

func (p *PCA9685) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return multierr.Combine(p.dev.SetAllPwm(0, 0), p.bus.Close())
}

// Open returns the PCA9685 on the configured sysfs bus, or a simulated output when the
// bus or the chip cannot be reached.
func Open(cfg I2CConfig, pulse PulseRange) Output {
	bus, err := sysfs.NewI2C(cfg.Bus)
	if err != nil {
		log.WithError(err).Warnf("Hardware Error: unable to open I2C bus %d, running in simulation mode", cfg.Bus)
		return NewSimulated(pulse)
	}

	out, err := NewPCA9685(bus, cfg.Address, pulse)
	if err != nil {
		bus.Close()
		log.WithError(err).Warnf("Hardware Error: could not initialize PCA9685 (Address: %#02x), running in simulation mode", cfg.Address)
		return NewSimulated(pulse)
	}

	log.Infof("PCA9685 initialized successfully on bus %d at %#02x", cfg.Bus, cfg.Address)
	return out
}
