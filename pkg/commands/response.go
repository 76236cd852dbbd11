package commands

import (
	"context"
	"errors"
)

// Status is a JSON wire protocol status code.
type Status int

// Status codes reported in Response.Status.
const (
	StatusSuccess               Status = 0
	StatusNoSuchElement         Status = 7
	StatusNoSuchFrame           Status = 8
	StatusUnknownCommand        Status = 9
	StatusStaleElementReference Status = 10
	StatusUnknownError          Status = 13
	StatusJavaScriptError       Status = 17
	StatusTimeout               Status = 21
	StatusUnexpectedAlertOpen   Status = 26
	StatusNoAlertOpen           Status = 27
	StatusScriptTimeout         Status = 28
	StatusInvalidSelector       Status = 32
	StatusInvalidArgument       Status = 61
)

// Sentinel errors returned by handlers. The dispatcher maps them to status codes.
var (
	ErrNoSuchElement         = errors.New("no such element")
	ErrNoSuchFrame           = errors.New("no such frame")
	ErrUnknownCommand        = errors.New("unknown command")
	ErrStaleElementReference = errors.New("stale element reference")
	ErrJavaScript            = errors.New("javascript error")
	ErrUnexpectedAlertOpen   = errors.New("unexpected alert open")
	ErrNoAlertOpen           = errors.New("no alert open")
	ErrInvalidSelector       = errors.New("invalid selector")
	ErrScriptTimeout         = errors.New("script timeout")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrNavigationDenied      = errors.New("navigation denied")
)

// Response is the result of one command.
type Response struct {
	Status Status `json:"status"`
	Value  any    `json:"value"`
}

// Success wraps a successful command result.
func Success(value any) *Response {
	return &Response{Status: StatusSuccess, Value: value}
}

// ErrorResponse converts err to a failed Response carrying the error message.
func ErrorResponse(err error) *Response {
	return &Response{
		Status: StatusForError(err),
		Value:  map[string]any{"message": err.Error()},
	}
}

// StatusForError maps a handler error to its status code. Unrecognized errors are StatusUnknownError.
func StatusForError(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrNoSuchElement):
		return StatusNoSuchElement
	case errors.Is(err, ErrNoSuchFrame):
		return StatusNoSuchFrame
	case errors.Is(err, ErrUnknownCommand):
		return StatusUnknownCommand
	case errors.Is(err, ErrStaleElementReference):
		return StatusStaleElementReference
	case errors.Is(err, ErrJavaScript):
		return StatusJavaScriptError
	case errors.Is(err, ErrUnexpectedAlertOpen):
		return StatusUnexpectedAlertOpen
	case errors.Is(err, ErrNoAlertOpen):
		return StatusNoAlertOpen
	case errors.Is(err, ErrScriptTimeout):
		return StatusScriptTimeout
	case errors.Is(err, ErrInvalidSelector):
		return StatusInvalidSelector
	case errors.Is(err, ErrInvalidArgument):
		return StatusInvalidArgument
	case errors.Is(err, ErrNavigationDenied):
		// The wire protocol has no code for a refused URL.
		return StatusUnknownError
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusUnknownError
	}
}
