// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains the response side of the REST framework: the
// Response value handlers produce, and the writer that turns it (or
// an error) into exactly one HTTP response.

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

// Response is the successful outcome of a handler.  At most one of
// Body, Value, and Stream should be set.
type Response struct {
	// Status is the HTTP status code.  Zero means 200 if there
	// is a body and 204 otherwise.
	Status int

	// Header holds extra response headers.
	Header http.Header

	// Body is a literal response body in ContentType.
	Body        []byte
	ContentType string

	// Value is encoded in a negotiated structured type (JSON,
	// YAML, or text).
	Value interface{}

	// Stream writes the body itself, after the status line has
	// been sent.  It is used for file downloads and event
	// streams.
	Stream func(w http.ResponseWriter) error
}

// hasBody returns true if the response carries any content.
func (r *Response) hasBody() bool {
	return r.Body != nil || r.Value != nil || r.Stream != nil
}

// ok returns a 200 response carrying a structured value.
func ok(value interface{}) *Response {
	return &Response{Status: http.StatusOK, Value: value}
}

// noContent returns an empty 204 response.
func noContent() *Response {
	return &Response{Status: http.StatusNoContent}
}

// withStatus returns an empty response with a specific status.
func withStatus(status int) *Response {
	return &Response{Status: status}
}

// rawBody returns a 200 response with a literal body.
func rawBody(contentType string, body []byte) *Response {
	if body == nil {
		body = []byte{}
	}
	return &Response{Status: http.StatusOK, ContentType: contentType, Body: body}
}

// setHeader sets a header on r, creating the header map if needed,
// and returns r.
func (r *Response) setHeader(name, value string) *Response {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(name, value)
	return r
}

// structuredTypes are the representations a Value can be sent in.
var structuredTypes = []grid.MediaType{
	grid.JSONType,
	grid.YAMLType,
	grid.TextPlainType,
}

// responder writes the single response to one request.
type responder struct {
	w       http.ResponseWriter
	method  string
	accept  []grid.MediaType
	log     logrus.FieldLogger
	written int32
	status  int
}

// claim returns true exactly once.
func (r *responder) claim() bool {
	return atomic.CompareAndSwapInt32(&r.written, 0, 1)
}

// Status returns the status code that was written, or 0.
func (r *responder) Status() int {
	return r.status
}

// writeHeader copies extra headers and sends the status line.
func (r *responder) writeHeader(extra http.Header, status int) {
	h := r.w.Header()
	for name, values := range extra {
		h[name] = values
	}
	r.status = status
	r.w.WriteHeader(status)
}

// Respond writes a successful response.  Returns false if a response
// had already been written.
func (r *responder) Respond(resp *Response) bool {
	if !r.claim() {
		return false
	}
	if resp == nil {
		resp = noContent()
	}
	status := resp.Status
	if status == 0 {
		if resp.hasBody() {
			status = http.StatusOK
		} else {
			status = http.StatusNoContent
		}
	}
	head := r.method == http.MethodHead

	switch {
	case resp.Stream != nil:
		r.writeHeader(resp.Header, status)
		if head {
			return true
		}
		if err := resp.Stream(r.w); err != nil {
			// The status line is gone; all we can do is
			// note it
			r.log.WithError(err).Warn("error streaming response")
		}
		return true

	case resp.Value != nil:
		mediaType, err := NegotiateFixed(r.accept, structuredTypes...)
		if err != nil {
			r.writeError(err)
			return true
		}
		var buf bytes.Buffer
		if err := restdata.Encode(mediaType.Base(), &buf, resp.Value); err != nil {
			r.writeError(err)
			return true
		}
		r.w.Header().Set("Content-Type", mediaType.String())
		r.writeHeader(resp.Header, status)
		if !head {
			_, _ = r.w.Write(buf.Bytes())
		}
		return true

	case resp.Body != nil:
		if resp.ContentType != "" {
			r.w.Header().Set("Content-Type", resp.ContentType)
		}
		r.writeHeader(resp.Header, status)
		if !head {
			_, _ = r.w.Write(resp.Body)
		}
		return true
	}

	r.writeHeader(resp.Header, status)
	return true
}

// Error writes an error response.  Returns false if a response had
// already been written.
func (r *responder) Error(err error) bool {
	if !r.claim() {
		return false
	}
	r.writeError(err)
	return true
}

// writeError maps err to a status and an ErrorResponse body.  The
// body is JSON unless the client only accepts text.
func (r *responder) writeError(err error) {
	status := restdata.Status(err)
	var notAllowed restdata.ErrMethodNotAllowed
	if errors.As(err, &notAllowed) && len(notAllowed.Allowed) > 0 {
		r.w.Header().Set("Allow", strings.Join(notAllowed.Allowed, ", "))
	}
	if status >= http.StatusInternalServerError {
		r.log.WithError(err).WithField("status", status).Warn("request failed")
	}

	body := restdata.ErrorResponse{}
	body.FromError(status, err)
	var buf bytes.Buffer
	mediaType, negErr := NegotiateFixed(r.accept, grid.JSONType, grid.TextPlainType)
	if negErr != nil || mediaType.Is(grid.JSONType) {
		mediaType = grid.JSONType
		if encErr := restdata.Encode(restdata.JSONMediaType, &buf, body); encErr != nil {
			buf.Reset()
			mediaType = grid.TextPlainType
		}
	}
	if mediaType.Is(grid.TextPlainType) {
		buf.WriteString(body.Message)
	}
	r.w.Header().Set("Content-Type", mediaType.String())
	r.status = status
	r.w.WriteHeader(status)
	if r.method != http.MethodHead {
		_, _ = r.w.Write(buf.Bytes())
	}
}
