package onboard

import (
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"time"

	"github.com/CodedInternet/rovcontrol/onboard/hardware"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const CONFIG_VERSION = 1

type Polarity string

const (
	PolarityNormal   Polarity = "normal"
	PolarityInverted Polarity = "inverted"
)

type VehicleConfig struct {
	Version        int                    `yaml:"version"`
	I2C            hardware.I2CConfig     `yaml:"i2c"`
	Pulse          PulseConfig            `yaml:"pulse"`
	Calibration    Calibration            `yaml:"calibration"`
	Ramp           RampConfig             `yaml:"ramp"`
	Arming         ArmingConfig           `yaml:"arming"`
	StatusInterval time.Duration          `yaml:"status_interval"`
	Motors         map[string]MotorConfig `yaml:"motors"`
}

type MotorConfig struct {
	Channel  int      `yaml:"channel"`
	Polarity Polarity `yaml:"polarity"`
}

type PulseConfig struct {
	MinUS float64 `yaml:"min_us"`
	MaxUS float64 `yaml:"max_us"`
}

// Calibration holds the angles the ESCs were calibrated against. Read only once loaded.
type Calibration struct {
	Arming  float64 `yaml:"arming" json:"ARMING_PULSE"`
	Neutral float64 `yaml:"neutral" json:"NEUTRAL_ANGLE"`
	Forward float64 `yaml:"forward" json:"FORWARD_ANGLE"`
	Reverse float64 `yaml:"reverse" json:"REVERSE_ANGLE"`
}

type RampConfig struct {
	Steps          int           `yaml:"steps"`
	StepDelay      time.Duration `yaml:"step_delay"`
	InterlockDelay time.Duration `yaml:"interlock_delay"`
}

type ArmingConfig struct {
	ArmHold     time.Duration `yaml:"arm_hold"`
	OffHold     time.Duration `yaml:"off_hold"`
	NeutralHold time.Duration `yaml:"neutral_hold"`
}

func DefaultConfig() VehicleConfig {
	return VehicleConfig{
		Version: CONFIG_VERSION,
		I2C: hardware.I2CConfig{
			Bus:       hardware.DEFAULT_I2C_BUS,
			Address:   hardware.DEFAULT_I2C_ADDRESS,
			Frequency: hardware.DEFAULT_FREQUENCY,
		},
		Pulse: PulseConfig{
			MinUS: hardware.DEFAULT_MIN_US,
			MaxUS: hardware.DEFAULT_MAX_US,
		},
		Calibration: Calibration{
			Arming:  120,
			Neutral: 120,
			Forward: 180,
			Reverse: 60,
		},
		Ramp: RampConfig{
			Steps:          15,
			StepDelay:      20 * time.Millisecond,
			InterlockDelay: 100 * time.Millisecond,
		},
		Arming: ArmingConfig{
			ArmHold:     3 * time.Second,
			OffHold:     time.Second,
			NeutralHold: 2 * time.Second,
		},
		StatusInterval: 250 * time.Millisecond,
		Motors: map[string]MotorConfig{
			"1": {Channel: 12, Polarity: PolarityNormal},
			"2": {Channel: 13, Polarity: PolarityInverted},
			"3": {Channel: 14, Polarity: PolarityNormal},
			"4": {Channel: 15, Polarity: PolarityInverted},
		},
	}
}

// LoadConfig reads the vehicle config. A missing file yields the defaults.
func LoadConfig(filename string) (config VehicleConfig, err error) {
	raw, err := ioutil.ReadFile(filename)
	if os.IsNotExist(err) {
		log.Warnf("config %s not found, using built in defaults", filename)
		return DefaultConfig(), nil
	}
	if err != nil {
		return config, errors.Wrap(err, "unable to read config")
	}

	return ParseConfig(raw)
}

// ParseConfig overlays the yaml document on top of the defaults. A motors section replaces
// the default motor table entirely.
func ParseConfig(raw []byte) (config VehicleConfig, err error) {
	config = DefaultConfig()
	config.Motors = nil

	if err = yaml.Unmarshal(raw, &config); err != nil {
		return config, errors.Wrap(err, "unable to unmarshal yaml")
	}
	if len(config.Motors) == 0 {
		config.Motors = DefaultConfig().Motors
	}

	return config, config.Validate()
}

func (c VehicleConfig) Validate() error {
	if c.Version != CONFIG_VERSION {
		return fmt.Errorf("unable to work with version %d", c.Version)
	}

	channels := make(map[int]string, len(c.Motors))
	for id, m := range c.Motors {
		if m.Channel < 0 || m.Channel >= hardware.PCA_CHANNELS {
			return fmt.Errorf("motor %s: channel %d out of range", id, m.Channel)
		}
		if other, ok := channels[m.Channel]; ok {
			return fmt.Errorf("motor %s: channel %d already used by motor %s", id, m.Channel, other)
		}
		channels[m.Channel] = id

		switch m.Polarity {
		case PolarityNormal, PolarityInverted:
		default:
			return fmt.Errorf("motor %s: unknown polarity %q", id, m.Polarity)
		}
	}

	cal := c.Calibration
	if cal.Reverse > cal.Forward {
		return fmt.Errorf("reverse angle %v is above forward angle %v", cal.Reverse, cal.Forward)
	}
	if cal.Neutral < cal.Reverse || cal.Neutral > cal.Forward {
		return fmt.Errorf("neutral angle %v outside [%v, %v]", cal.Neutral, cal.Reverse, cal.Forward)
	}
	if c.Ramp.Steps < 1 {
		return errors.New("ramp steps must be at least 1")
	}
	if c.Pulse.MinUS >= c.Pulse.MaxUS {
		return fmt.Errorf("pulse min %vus must be below max %vus", c.Pulse.MinUS, c.Pulse.MaxUS)
	}

	return nil
}

// MotorIDs returns the configured motor identifiers in a stable order.
func (c VehicleConfig) MotorIDs() []string {
	ids := make([]string, 0, len(c.Motors))
	for id := range c.Motors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c VehicleConfig) PulseRange() hardware.PulseRange {
	return hardware.PulseRange{
		MinUS:     c.Pulse.MinUS,
		MaxUS:     c.Pulse.MaxUS,
		Frequency: float64(c.I2C.Frequency),
	}
}

// Clamp bounds an angle to the calibrated reverse/forward range.
func (cal Calibration) Clamp(angle float64) float64 {
	if angle < cal.Reverse {
		return cal.Reverse
	}
	if angle > cal.Forward {
		return cal.Forward
	}
	return angle
}
