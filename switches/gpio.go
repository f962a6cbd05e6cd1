package switches

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

const CONSUMER = "rov-switches"

// GPIOReader reads the switches from a GPIO character device, with the inputs pulled up.
type GPIOReader struct {
	lines  *gpiocdev.Lines
	ids    []string
	values []int
}

func OpenGPIO(chip string, pins map[string]Pins) (*GPIOReader, error) {
	ids := make([]string, 0, len(pins))
	for id := range pins {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	offsets := make([]int, 0, 2*len(ids))
	for _, id := range ids {
		offsets = append(offsets, pins[id].Up, pins[id].Down)
	}

	lines, err := gpiocdev.RequestLines(chip, offsets,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithConsumer(CONSUMER))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to request lines %v on %s", offsets, chip)
	}

	return &GPIOReader{
		lines:  lines,
		ids:    ids,
		values: make([]int, len(offsets)),
	}, nil
}

func (g *GPIOReader) Levels() (map[string]Levels, error) {
	if err := g.lines.Values(g.values); err != nil {
		return nil, errors.Wrap(err, "unable to read switch lines")
	}

	levels := make(map[string]Levels, len(g.ids))
	for i, id := range g.ids {
		levels[id] = Levels{Up: g.values[2*i], Down: g.values[2*i+1]}
	}
	return levels, nil
}

func (g *GPIOReader) Close() error {
	return g.lines.Close()
}
