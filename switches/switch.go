package switches

import (
	"context"
	"sort"
	"time"

	"github.com/CodedInternet/rovcontrol/comms"
	log "github.com/sirupsen/logrus"
)

const (
	DEFAULT_DEBOUNCE = 20 * time.Millisecond
	DEFAULT_POLL     = 50 * time.Millisecond
)

// Position of a three way toggle switch.
type Position string

const (
	POSITION_UP     Position = "UP"
	POSITION_DOWN   Position = "DOWN"
	POSITION_CENTER Position = "CENTER"
)

// Classify reads a switch wired to two active low inputs. Both or neither pulled low is
// treated as centre.
func Classify(up, down int) Position {
	switch {
	case up == 0 && down == 1:
		return POSITION_UP
	case up == 1 && down == 0:
		return POSITION_DOWN
	default:
		return POSITION_CENTER
	}
}

// Action is the motor command a switch position asks for.
func (p Position) Action() string {
	switch p {
	case POSITION_UP:
		return "forward"
	case POSITION_DOWN:
		return "reverse"
	default:
		return "stop"
	}
}

// Pins are the GPIO offsets a switch is wired to.
type Pins struct {
	Up, Down int
}

type Levels struct {
	Up, Down int
}

// DefaultPins is the wiring of the control box, keyed by motor.
func DefaultPins() map[string]Pins {
	return map[string]Pins{
		"4": {2, 3},
		"2": {4, 17},
		"1": {27, 22},
		"3": {10, 9},
	}
}

type Reader interface {
	Levels() (map[string]Levels, error)
}

type Sender interface {
	Motor(ctx context.Context, id, action string) (comms.CommandResponse, error)
}

// Poller watches the switches and forwards position changes to the motor server.
type Poller struct {
	reader   Reader
	sender   Sender
	debounce time.Duration
	interval time.Duration
	now      func() time.Time

	last   map[string]Position
	lastAt map[string]time.Time
}

func NewPoller(reader Reader, sender Sender, debounce, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DEFAULT_POLL
	}
	return &Poller{
		reader:   reader,
		sender:   sender,
		debounce: debounce,
		interval: interval,
		now:      time.Now,
		last:     make(map[string]Position),
		lastAt:   make(map[string]time.Time),
	}
}

// Poll reads every switch once. A switch is forwarded when its position differs from the
// last one forwarded and the debounce interval has passed since then. Send failures are
// logged and still count as forwarded.
func (p *Poller) Poll(ctx context.Context) error {
	levels, err := p.reader.Levels()
	if err != nil {
		return err
	}
	now := p.now()

	ids := make([]string, 0, len(levels))
	for id := range levels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		position := Classify(levels[id].Up, levels[id].Down)

		last, seen := p.last[id]
		if seen && position == last {
			continue
		}
		if seen && now.Sub(p.lastAt[id]) <= p.debounce {
			continue
		}

		p.send(ctx, id, position.Action())
		p.last[id] = position
		p.lastAt[id] = now
	}

	return nil
}

func (p *Poller) send(ctx context.Context, id, action string) {
	logger := log.WithFields(log.Fields{"motor": id, "action": action})

	resp, err := p.sender.Motor(ctx, id, action)
	switch {
	case err == nil:
		logger.Infof("Motor %s → %s: %s", id, action, resp.Message)
	case comms.IsTimeout(err):
		logger.WithError(err).Error("request timed out (server busy?)")
	case comms.IsHTTP(err):
		logger.WithError(err).Error("motor server rejected the command")
	default:
		logger.WithError(err).Error("could not connect to motor server, is it running?")
	}
}

// Run polls until ctx is cancelled. Read errors are logged and polling carries on.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Poll(ctx); err != nil {
			log.WithError(err).Error("unable to read switches")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
