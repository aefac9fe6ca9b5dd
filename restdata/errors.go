// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/diffeo/go-gridrest/grid"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// ErrUnsupportedMediaType is returned from Decode() if the provided
// Content-Type: is unrecognized.  This translates directly into the
// equivalent HTTP 415 error.
type ErrUnsupportedMediaType struct {
	Type string
}

func (e ErrUnsupportedMediaType) Error() string {
	return fmt.Sprintf("Unsupported media type %q", e.Type)
}

// HTTPStatus returns a fixed 415 Unsupported Media Type error code.
func (e ErrUnsupportedMediaType) HTTPStatus() int {
	return http.StatusUnsupportedMediaType
}

// ErrNotAcceptable is returned when no representation matches the
// client's Accept: header.
type ErrNotAcceptable struct {
	Accept string
}

func (e ErrNotAcceptable) Error() string {
	if e.Accept == "" {
		return "No acceptable representation for response"
	}
	return fmt.Sprintf("No acceptable representation for %q", e.Accept)
}

// HTTPStatus returns a fixed 406 Not Acceptable error code.
func (e ErrNotAcceptable) HTTPStatus() int {
	return http.StatusNotAcceptable
}

// ErrNotFound is a wrapper error that indicates that, due to the
// embedded error, a REST service should return a 404 Not Found error.
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrNotFound) HTTPStatus() int {
	return http.StatusNotFound
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrBadRequest is returned as an error when there is an error decoding
// HTTP headers or the request body.
type ErrBadRequest struct {
	Err error
}

func (e ErrBadRequest) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e ErrBadRequest) HTTPStatus() int {
	return http.StatusBadRequest
}

func (e ErrBadRequest) Unwrap() error {
	return e.Err
}

// ErrConflict wraps an error that means the request conflicts with
// the current state of a resource.
type ErrConflict struct {
	Err error
}

func (e ErrConflict) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 409 Conflict HTTP status code.
func (e ErrConflict) HTTPStatus() int {
	return http.StatusConflict
}

func (e ErrConflict) Unwrap() error {
	return e.Err
}

// ErrPreconditionFailed is returned when a conditional request's
// preconditions do not hold.
type ErrPreconditionFailed struct {
	Header string
}

func (e ErrPreconditionFailed) Error() string {
	if e.Header == "" {
		return "Precondition failed"
	}
	return fmt.Sprintf("Precondition %v failed", e.Header)
}

// HTTPStatus returns a fixed 412 Precondition Failed HTTP status code.
func (e ErrPreconditionFailed) HTTPStatus() int {
	return http.StatusPreconditionFailed
}

// ErrMethodNotAllowed is returned when a path exists but does not
// accept the request method.  Allowed lists the methods it does
// accept.
type ErrMethodNotAllowed struct {
	Method  string
	Allowed []string
}

func (e ErrMethodNotAllowed) Error() string {
	return fmt.Sprintf("Method %v not allowed", e.Method)
}

// HTTPStatus returns a fixed 405 Method Not Allowed HTTP status code.
func (e ErrMethodNotAllowed) HTTPStatus() int {
	return http.StatusMethodNotAllowed
}

// ErrNotImplemented is returned when the engine lacks the service a
// resource needs.
type ErrNotImplemented struct {
	Text string
}

func (e ErrNotImplemented) Error() string {
	if e.Text == "" {
		return "Not implemented"
	}
	return e.Text
}

// HTTPStatus returns a fixed 501 Not Implemented HTTP status code.
func (e ErrNotImplemented) HTTPStatus() int {
	return http.StatusNotImplemented
}

// ErrServer is an error reported by a server that does not fit any
// more specific type.
type ErrServer struct {
	Status  int
	Message string
	Cause   string
}

func (e ErrServer) Error() string {
	return e.Message
}

// HTTPStatus returns the status the server reported.
func (e ErrServer) HTTPStatus() int {
	return e.Status
}

// Status picks the HTTP status code for an error.  Errors that carry
// their own status keep it; well-known engine errors are remapped;
// anything else is a 500.
func Status(err error) int {
	var withStatus ErrorStatus
	if errors.As(err, &withStatus) {
		return withStatus.HTTPStatus()
	}
	if errors.Is(err, grid.ErrNoKey) {
		return http.StatusBadRequest
	}
	switch {
	case errors.As(err, new(grid.ErrForbidden)):
		return http.StatusForbidden
	case errors.As(err, new(grid.ErrNoSuchCache)),
		errors.As(err, new(grid.ErrNoSuchCounter)),
		errors.As(err, new(grid.ErrNoSuchTask)):
		return http.StatusNotFound
	case errors.As(err, new(grid.ErrOperationExists)),
		errors.As(err, new(grid.ErrCacheExists)):
		return http.StatusConflict
	case errors.As(err, new(grid.ErrBadQuery)),
		errors.As(err, new(grid.ErrNotIndexed)),
		errors.As(err, new(grid.ErrNoSuchRole)),
		errors.As(err, new(grid.ErrCounterBounds)),
		errors.As(err, new(grid.ErrCounterUnsupported)),
		errors.As(err, new(grid.ErrBadMediaType)):
		return http.StatusBadRequest
	case errors.As(err, new(grid.ErrUnsupportedConversion)):
		return http.StatusUnsupportedMediaType
	}
	return http.StatusInternalServerError
}

// FromError populates an ErrorResponse from an error value, which
// should be reported with the given status.  Authorization failures
// carry no detail.  Server errors report the innermost cause as the
// message and the full error chain as the cause.
func (e *ErrorResponse) FromError(status int, err error) {
	var server ErrServer
	if errors.As(err, &server) && status != http.StatusForbidden {
		e.Message = server.Message
		e.Cause = server.Cause
		return
	}
	switch {
	case status == http.StatusForbidden:
		e.Message = "Forbidden"
	case status >= http.StatusInternalServerError:
		e.Message = grid.RootCause(err).Error()
		if full := err.Error(); full != e.Message {
			e.Cause = full
		}
	default:
		e.Message = err.Error()
		if root := grid.RootCause(err); root != err {
			if msg := root.Error(); msg != e.Message {
				e.Cause = msg
			}
		}
	}
}

// ToError converts e, received with an HTTP status, back to an error.
// The typed errors of this package are used where the status names
// one.
func (e *ErrorResponse) ToError(status int) error {
	err := errors.New(e.Message)
	switch status {
	case http.StatusBadRequest:
		return ErrBadRequest{Err: err}
	case http.StatusForbidden:
		return grid.ErrForbidden{}
	case http.StatusNotFound:
		return ErrNotFound{Err: err}
	case http.StatusNotAcceptable:
		return ErrNotAcceptable{}
	case http.StatusConflict:
		return ErrConflict{Err: err}
	case http.StatusPreconditionFailed:
		return ErrPreconditionFailed{}
	case http.StatusNotImplemented:
		return ErrNotImplemented{Text: e.Message}
	}
	return ErrServer{Status: status, Message: e.Message, Cause: e.Cause}
}

// FromPanic populates an error response based on a panic.  Typical use
// is:
//
//     defer func() {
//         if obj := recover(); obj != nil {
//             resp := restdata.ErrorResponse{}
//             resp.FromPanic(obj)
//             // write resp out as makes sense
//         }
//    }
func (e *ErrorResponse) FromPanic(obj interface{}) {
	if recoveredError, isError := obj.(error); isError {
		e.Message = recoveredError.Error()
	} else {
		e.Message = fmt.Sprintf("%+v", obj)
	}
	e.Cause = "panic"
	var stack [4096]byte
	len := runtime.Stack(stack[:], false)
	e.Stack = string(stack[:len])
}
