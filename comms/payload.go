package comms

import (
	"net/http"
	"strings"
)

const (
	STATUS_ACCEPTED = "command_accepted"
	STATUS_ERROR    = "error"
	STATUS_OK       = "ok"
	STATUS_ARMED    = "armed"
	STATUS_RUNNING  = "running"
)

// MotorRequest is the body of POST /motor/{id}.
type MotorRequest struct {
	Action string `json:"action"`
}

func (m *MotorRequest) Bind(r *http.Request) error {
	m.Action = strings.ToLower(strings.TrimSpace(m.Action))
	return nil
}

// CommandResponse acknowledges an accepted command. The transition itself runs after the
// response has been sent.
type CommandResponse struct {
	Status    string `json:"status"`
	Motor     string `json:"motor,omitempty"`
	Action    string `json:"action,omitempty"`
	Message   string `json:"message"`
	CommandID string `json:"command_id,omitempty"`
}

type StopAllResponse struct {
	Status     string   `json:"status"`
	Message    string   `json:"message"`
	CommandIDs []string `json:"command_ids,omitempty"`
}

type StatusPayload struct {
	Status              string             `json:"status"`
	MotorStates         map[string]float64 `json:"motor_states"`
	Calibration         map[string]float64 `json:"calibration_constants"`
	HardwareInitialized bool               `json:"hardware_initialized"`
	Version             string             `json:"version"`
}

type ErrorPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
