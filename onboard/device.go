package onboard

import (
	"context"
	"strings"
	"sync"

	"github.com/CodedInternet/rovcontrol/onboard/hardware"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	deverrors "github.com/CodedInternet/rovcontrol/onboard/errors"
)

const (
	API_VERSION = "1.1.0"

	ACTION_FORWARD = "forward"
	ACTION_REVERSE = "reverse"
	ACTION_STOP    = "stop"
)

var (
	ErrClosed = errors.New("vehicle has been shut down")
)

// Command is an accepted request to move one motor to a target angle.
type Command struct {
	ID     uuid.UUID
	Motor  string
	Action string
	Target float64
}

type Status struct {
	Status              string             `json:"status"`
	MotorStates         map[string]float64 `json:"motor_states"`
	Calibration         Calibration        `json:"calibration_constants"`
	HardwareInitialized bool               `json:"hardware_initialized"`
	Version             string             `json:"version"`
}

// Vehicle owns the motor state, the PWM output and every in-flight transition.
type Vehicle struct {
	config  VehicleConfig
	out     hardware.Output
	store   *StateStore
	seq     *Sequencer
	slots   map[string]*opSlot
	preempt bool

	ctx    context.Context
	cancel context.CancelFunc

	lock     sync.Mutex
	closed   bool
	inflight sync.WaitGroup

	// held for writing while arming, for reading by transitions without a slot
	arming sync.RWMutex

	closeOnce sync.Once
	closeErr  error
}

// NewVehicle builds the vehicle around an output. With preempt set a new command for a
// motor cancels that motor's in-flight transition; without it every command runs
// independently to completion.
func NewVehicle(config VehicleConfig, out hardware.Output, preempt bool) *Vehicle {
	ids := config.MotorIDs()
	store := NewStateStore(ids, config.Calibration.Neutral)

	v := &Vehicle{
		config:  config,
		out:     out,
		store:   store,
		seq:     NewSequencer(config, store, out),
		slots:   make(map[string]*opSlot, len(ids)),
		preempt: preempt,
	}
	for _, id := range ids {
		v.slots[id] = new(opSlot)
	}
	v.ctx, v.cancel = context.WithCancel(context.Background())

	return v
}

func (v *Vehicle) Config() VehicleConfig {
	return v.config
}

func (v *Vehicle) Hardware() bool {
	return v.out.Hardware()
}

// Arm runs the ESC arming sequence. Running transitions are cancelled first and no command
// starts until arming has finished. Close cuts arming short.
func (v *Vehicle) Arm(ctx context.Context) error {
	v.lock.Lock()
	if v.closed {
		v.lock.Unlock()
		return ErrClosed
	}
	v.inflight.Add(1)
	v.lock.Unlock()
	defer v.inflight.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(v.ctx, cancel)
	defer stop()

	ids := v.config.MotorIDs()
	dones := make([]func(), 0, len(ids))
	defer func() {
		for _, done := range dones {
			done()
		}
	}()

	for _, id := range ids {
		_, done := v.slots[id].begin(v.ctx)
		dones = append(dones, done)
	}

	v.arming.Lock()
	defer v.arming.Unlock()

	return ArmESCs(ctx, v.config, v.out, v.store)
}

// TargetAngle maps an action onto the angle for a motor using its polarity.
func (v *Vehicle) TargetAngle(id, action string) (float64, error) {
	m, ok := v.config.Motors[id]
	if !ok {
		return 0, deverrors.MotorIDError{ID: id, Available: v.config.MotorIDs()}
	}

	cal := v.config.Calibration
	inverted := m.Polarity == PolarityInverted

	switch strings.ToLower(action) {
	case ACTION_FORWARD:
		if inverted {
			return cal.Reverse, nil
		}
		return cal.Forward, nil

	case ACTION_REVERSE:
		if inverted {
			return cal.Forward, nil
		}
		return cal.Reverse, nil

	case ACTION_STOP:
		return cal.Neutral, nil

	default:
		return 0, deverrors.ActionError{Action: action}
	}
}

// Command validates the request and starts the transition in the background. It returns as
// soon as the transition has been handed off.
func (v *Vehicle) Command(id, action string) (cmd Command, err error) {
	target, err := v.TargetAngle(id, action)
	if err != nil {
		return
	}

	return v.launch(id, strings.ToLower(action), target)
}

// StopAll sends every motor to neutral, each independently.
func (v *Vehicle) StopAll() (cmds []Command, err error) {
	for _, id := range v.config.MotorIDs() {
		cmd, err := v.launch(id, ACTION_STOP, v.config.Calibration.Neutral)
		if err != nil {
			return cmds, err
		}
		cmds = append(cmds, cmd)
	}
	return
}

func (v *Vehicle) launch(id, action string, target float64) (cmd Command, err error) {
	cmd = Command{
		ID:     uuid.New(),
		Motor:  id,
		Action: action,
		Target: target,
	}

	v.lock.Lock()
	defer v.lock.Unlock()
	if v.closed {
		return cmd, ErrClosed
	}

	v.inflight.Add(1)
	go func() {
		defer v.inflight.Done()

		err := v.Transition(v.ctx, id, target)
		logger := log.WithFields(log.Fields{"motor": id, "command": cmd.ID})
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			logger.Info("transition preempted")
		default:
			logger.WithError(err).Error("transition failed")
		}
	}()

	return cmd, nil
}

// Transition runs a transition for a motor and blocks until it has finished.
func (v *Vehicle) Transition(ctx context.Context, id string, target float64) error {
	slot, ok := v.slots[id]
	if !ok {
		return deverrors.MotorIDError{ID: id, Available: v.config.MotorIDs()}
	}

	if v.preempt {
		var done func()
		ctx, done = slot.begin(ctx)
		defer done()
	} else {
		v.arming.RLock()
		defer v.arming.RUnlock()
	}

	return v.seq.Transition(ctx, id, target)
}

// Busy reports whether a motor has a transition running. Always false without preemption.
func (v *Vehicle) Busy(id string) bool {
	slot, ok := v.slots[id]
	return ok && slot.running()
}

func (v *Vehicle) Angle(id string) float64 {
	return v.store.Get(id)
}

func (v *Vehicle) Snapshot() Status {
	return Status{
		Status:              "running",
		MotorStates:         v.store.Snapshot(),
		Calibration:         v.config.Calibration,
		HardwareInitialized: v.out.Hardware(),
		Version:             API_VERSION,
	}
}

// Wait blocks until every launched transition has returned.
func (v *Vehicle) Wait() {
	v.inflight.Wait()
}

// Close stops every transition and any arming in progress, drives every channel to zero
// output and releases the output. Only the first call does anything.
func (v *Vehicle) Close() error {
	v.closeOnce.Do(func() {
		log.Info("Stopping all motors and cleaning up...")

		v.lock.Lock()
		v.closed = true
		v.lock.Unlock()

		v.cancel()
		v.inflight.Wait()

		for _, id := range v.config.MotorIDs() {
			v.out.SetDuty(v.config.Motors[id].Channel, 0)
		}

		if err := v.out.Close(); err != nil {
			v.closeErr = errors.Wrap(err, "error de-initializing PWM output")
			log.WithError(err).Error("Error de-initializing PCA9685")
		}
		log.Info("Done.")
	})

	return v.closeErr
}
