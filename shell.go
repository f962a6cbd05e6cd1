package main

import (
	"context"
	"sort"
	"strconv"

	"github.com/CodedInternet/rovcontrol/onboard"
	"github.com/abiosoft/ishell/v2"
	"github.com/pkg/errors"
)

// NewShell builds the bench console. Every command goes through the same vehicle the HTTP
// server drives.
func NewShell(vehicle *onboard.Vehicle, trace *onboard.TraceOutput) *ishell.Shell {
	motorIDs := func([]string) []string {
		return vehicle.Config().MotorIDs()
	}

	shell := ishell.New()
	shell.Println("ROV motor control shell")
	shell.ShowPrompt(true)

	shell.AddCmd(&ishell.Cmd{
		Name:      "motor",
		Completer: motorIDs,
		Help:      "motor <id> <forward|reverse|stop>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(errors.New("usage: motor <id> <forward|reverse|stop>"))
				return
			}

			cmd, err := vehicle.Command(c.Args[0], c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("Motor %s -> %v° (%s)\n", cmd.Motor, cmd.Target, cmd.ID)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "stop",
		Help: "stop every motor",
		Func: func(c *ishell.Context) {
			cmds, err := vehicle.StopAll()
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("Stopping %d motors\n", len(cmds))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "show the last angle written to each motor",
		Func: func(c *ishell.Context) {
			status := vehicle.Snapshot()
			c.Printf("hardware: %v version: %s\n", status.HardwareInitialized, status.Version)

			ids := make([]string, 0, len(status.MotorStates))
			for id := range status.MotorStates {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				busy := ""
				if vehicle.Busy(id) {
					busy = " (moving)"
				}
				c.Printf("  motor %s: %v°%s\n", id, status.MotorStates[id], busy)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "arm",
		Help: "re-run the ESC arming sequence",
		Func: func(c *ishell.Context) {
			c.ProgressBar().Indeterminate(true)
			c.ProgressBar().Start()
			err := vehicle.Arm(context.Background())
			c.ProgressBar().Stop()

			if err != nil {
				c.Err(err)
				return
			}
			c.Println("ESCs armed")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "trace",
		Completer: motorIDs,
		Help:      "trace [motor id] - recent PWM writes",
		Func: func(c *ishell.Context) {
			channel := -1
			if len(c.Args) >= 1 {
				m, ok := vehicle.Config().Motors[c.Args[0]]
				if !ok {
					c.Err(errors.Errorf("unknown motor %s", c.Args[0]))
					return
				}
				channel = m.Channel
			}

			for _, w := range trace.Writes(channel) {
				value := strconv.FormatFloat(w.Angle, 'f', 1, 64) + "°"
				if w.Raw {
					value = "duty " + strconv.Itoa(int(w.Duty))
				}
				c.Printf("%s ch%-2d %s\n", w.At.Format("15:04:05.000"), w.Channel, value)
			}
		},
	})

	return shell
}
