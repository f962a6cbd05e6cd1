package main

import (
	"net/http"

	"github.com/CodedInternet/rovcontrol/comms"
	"github.com/go-chi/render"
)

//---
// Error payloads
//---

// ErrResponse renders as {"status":"error","message":...} with the chosen status code.
type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	comms.ErrorPayload
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func newErrResponse(code int, err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: code,
		ErrorPayload: comms.ErrorPayload{
			Status:  comms.STATUS_ERROR,
			Message: err.Error(),
		},
	}
}

func ErrInvalidRequest(err error) render.Renderer {
	return newErrResponse(http.StatusBadRequest, err)
}

func ErrUnavailable(err error) render.Renderer {
	return newErrResponse(http.StatusServiceUnavailable, err)
}

func ErrRender(err error) render.Renderer {
	return newErrResponse(http.StatusInternalServerError, err)
}

var (
	ErrNotFound = &ErrResponse{
		HTTPStatusCode: http.StatusNotFound,
		ErrorPayload:   comms.ErrorPayload{Status: comms.STATUS_ERROR, Message: "Resource not found."},
	}
	ErrMethodNotAllowed = &ErrResponse{
		HTTPStatusCode: http.StatusMethodNotAllowed,
		ErrorPayload:   comms.ErrorPayload{Status: comms.STATUS_ERROR, Message: "Method not allowed."},
	}
)
