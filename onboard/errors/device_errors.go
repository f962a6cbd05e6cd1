package errors

import (
	"fmt"
	"strings"
)

type MotorIDError struct {
	ID        string
	Available []string
}

func (err MotorIDError) Error() string {
	return fmt.Sprintf("Invalid motor number: %s. Available: [%s]", err.ID, strings.Join(err.Available, ", "))
}

type ActionError struct {
	Action string
}

func (err ActionError) Error() string {
	if len(err.Action) == 0 {
		return "Invalid action. Use 'forward', 'reverse', or 'stop'."
	}

	return fmt.Sprintf("Invalid action '%s'. Use 'forward', 'reverse', or 'stop'.", err.Action)
}

// IsValidation reports whether err is a caller mistake rather than a device fault.
func IsValidation(err error) bool {
	switch err.(type) {
	case MotorIDError, *MotorIDError, ActionError, *ActionError:
		return true
	}
	return false
}
