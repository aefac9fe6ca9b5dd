// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

// AnonymousPrincipal is the principal of requests without
// credentials.
const AnonymousPrincipal = "anonymous"

// Request holds everything a handler knows about one HTTP request.
// It is built once by the dispatcher and not changed afterwards.
type Request struct {
	Method string
	Path   string

	// Vars holds the decoded path variables; VarNames lists them
	// in path order.
	Vars     map[string]string
	VarNames []string

	Query  url.Values
	Header http.Header

	// Accept is the parsed Accept: header, best first.
	Accept []grid.MediaType

	// Principal is the authenticated user, or AnonymousPrincipal.
	Principal string

	// Route is the matched route.
	Route *Route

	// Body is the unread request body.
	Body io.Reader

	// HTTP is the underlying request, for handlers that need
	// multipart parsing.
	HTTP *http.Request

	ctx context.Context
}

// newRequest builds a Request from an HTTP request and its route
// match.
func newRequest(req *http.Request, match *Match, accept []grid.MediaType) *Request {
	principal := AnonymousPrincipal
	if user, _, ok := req.BasicAuth(); ok && user != "" {
		principal = user
	}
	return &Request{
		Method:    req.Method,
		Path:      req.URL.Path,
		Vars:      match.Vars,
		VarNames:  match.Names,
		Query:     req.URL.Query(),
		Header:    req.Header,
		Accept:    accept,
		Principal: principal,
		Route:     match.Route,
		Body:      req.Body,
		HTTP:      req,
		ctx:       req.Context(),
	}
}

// Context returns the request's context, which is canceled if the
// client goes away.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// Var returns a path variable.
func (r *Request) Var(name string) string {
	return r.Vars[name]
}

// IsHead returns true for HEAD requests.
func (r *Request) IsHead() bool {
	return r.Method == http.MethodHead
}

// BoolParam looks at the query parameters for a parameter named
// name.  If it has a normally-truthy value (1, on, false, no, ...)
// then return that value.  Otherwise (empty string, foo, ...) return
// def.
func (r *Request) BoolParam(name string, def bool) bool {
	switch strings.ToLower(r.Query.Get(name)) {
	case "0", "f", "n", "false", "off", "no":
		return false
	case "1", "t", "y", "true", "on", "yes":
		return true
	default:
		return def
	}
}

// IntParam returns an integer query parameter, or def if it is
// absent.  A present but malformed value is a bad request naming the
// parameter.
func (r *Request) IntParam(name string, def int) (int, error) {
	s := r.Query.Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, restdata.ErrBadRequest{Err: fmt.Errorf("Invalid %v parameter %q", name, s)}
	}
	return v, nil
}

// IntHeader returns an integer header, or def if it is absent.
func (r *Request) IntHeader(name string, def int64) (int64, error) {
	s := r.Header.Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, restdata.ErrBadRequest{Err: fmt.Errorf("Invalid %v header %q", name, s)}
	}
	return v, nil
}

// ContentType returns the parsed Content-Type: header, or def if
// there is none.
func (r *Request) ContentType(def grid.MediaType) (grid.MediaType, error) {
	s := r.Header.Get("Content-Type")
	if s == "" {
		return def, nil
	}
	mt, err := grid.ParseMediaType(s)
	if err != nil {
		return mt, restdata.ErrBadRequest{Err: err}
	}
	return mt, nil
}

// ReadBody reads the entire request body.
func (r *Request) ReadBody() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	return ioutil.ReadAll(r.Body)
}

// Decode decodes a structured request body into out.  An empty body
// leaves out unchanged.
func (r *Request) Decode(out interface{}) error {
	if r.Body == nil {
		return nil
	}
	return restdata.Decode(r.Header.Get("Content-Type"), r.Body, out)
}
