package main

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/CodedInternet/rovcontrol/comms"
	"github.com/CodedInternet/rovcontrol/onboard"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	deverrors "github.com/CodedInternet/rovcontrol/onboard/errors"
)

var (
	ErrNoJSON      = errors.New("No JSON data provided")
	ErrInvalidJSON = errors.New("Invalid JSON format")
)

// MotorAPI serves the motor control surface for a single vehicle.
type MotorAPI struct {
	vehicle *onboard.Vehicle

	done     chan struct{}
	doneOnce sync.Once
}

func NewMotorAPI(vehicle *onboard.Vehicle) *MotorAPI {
	return &MotorAPI{
		vehicle: vehicle,
		done:    make(chan struct{}),
	}
}

// Done is closed once a client has asked the server to shut down.
func (api *MotorAPI) Done() <-chan struct{} {
	return api.done
}

func (api *MotorAPI) requestShutdown() {
	api.doneOnce.Do(func() { close(api.done) })
}

func (api *MotorAPI) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Post("/motor/{id}", api.MotorCommand)
		r.Post("/stop_all", api.StopAll)
		r.Get("/status", api.Status)
		r.Post("/shutdown", api.Shutdown)
		r.Post("/arm", api.Arm)
	})

	r.Get("/ws/status", api.StatusStream)
}

//---
// Views
//---

// MotorCommand validates a motor command and starts its transition. It responds before the
// motor has reached its target.
func (api *MotorAPI) MotorCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	config := api.vehicle.Config()
	if _, ok := config.Motors[id]; !ok {
		render.Render(w, r, ErrInvalidRequest(deverrors.MotorIDError{ID: id, Available: config.MotorIDs()}))
		return
	}

	data := &comms.MotorRequest{}
	if err := render.Bind(r, data); err != nil {
		if errors.Cause(err) == io.EOF {
			render.Render(w, r, ErrInvalidRequest(ErrNoJSON))
		} else {
			render.Render(w, r, ErrInvalidRequest(ErrInvalidJSON))
		}
		return
	}

	log.Infof(">>> Motor %s: Action '%s'", id, data.Action)

	cmd, err := api.vehicle.Command(id, data.Action)
	if err != nil {
		api.renderCommandError(w, r, err)
		return
	}

	render.JSON(w, r, comms.CommandResponse{
		Status:    comms.STATUS_ACCEPTED,
		Motor:     cmd.Motor,
		Action:    cmd.Action,
		Message:   fmt.Sprintf("Speed transition for %s started asynchronously.", cmd.Action),
		CommandID: cmd.ID.String(),
	})
}

func (api *MotorAPI) StopAll(w http.ResponseWriter, r *http.Request) {
	log.Info(">>> STOP ALL COMMAND RECEIVED")

	cmds, err := api.vehicle.StopAll()
	if err != nil {
		api.renderCommandError(w, r, err)
		return
	}

	ids := make([]string, len(cmds))
	for i, cmd := range cmds {
		ids[i] = cmd.ID.String()
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, comms.StopAllResponse{
		Status:     comms.STATUS_ACCEPTED,
		Message:    "All motors commanded to stop (asynchronously).",
		CommandIDs: ids,
	})
}

func (api *MotorAPI) Status(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.vehicle.Snapshot())
}

// Shutdown answers and then hands over to the process cleanup, which stops every motor.
func (api *MotorAPI) Shutdown(w http.ResponseWriter, r *http.Request) {
	log.Info(">>> SHUTDOWN COMMAND RECEIVED")

	render.JSON(w, r, comms.CommandResponse{
		Status:  comms.STATUS_OK,
		Message: "System is shutting down.",
	})
	api.requestShutdown()
}

// Arm re-runs the ESC arming sequence and only answers once it has finished.
func (api *MotorAPI) Arm(w http.ResponseWriter, r *http.Request) {
	log.Info(">>> ARM COMMAND RECEIVED")

	if err := api.vehicle.Arm(r.Context()); err != nil {
		render.Render(w, r, ErrRender(errors.Wrap(err, "arming failed")))
		return
	}

	render.JSON(w, r, comms.CommandResponse{
		Status:  comms.STATUS_ARMED,
		Message: "ESCs armed at neutral.",
	})
}

func (api *MotorAPI) renderCommandError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case deverrors.IsValidation(err):
		render.Render(w, r, ErrInvalidRequest(err))
	case errors.Cause(err) == onboard.ErrClosed:
		render.Render(w, r, ErrUnavailable(err))
	default:
		render.Render(w, r, ErrRender(err))
	}
}
