// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains the route table.  Routes are plain records;
// the table indexes them in a trie keyed by path segment, so that
// matching costs one map lookup per path segment no matter how many
// routes there are.

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

// HandlerFunc handles a resolved request.  It must not block: slow
// work goes through the server's executor, and the returned future
// completes with the response.
type HandlerFunc func(req *Request) *Future

// RouteParam documents a query or header parameter of a route.
type RouteParam struct {
	Name        string
	In          string
	Description string
	Required    bool
}

// Route describes one REST endpoint.
type Route struct {
	// Methods lists the HTTP methods this route answers.
	Methods []string

	// Path is the path template, with {name} segments for path
	// variables, relative to the API root.
	Path string

	// Action, if non-empty, is the value of the "action" query
	// parameter this route requires.
	Action string

	// Handler is called for matching requests.
	Handler HandlerFunc

	// Permission is required of the caller, unless Anonymous is
	// set.  PermissionNone requires nothing.
	Permission grid.Permission

	// AuditContext, if set, causes every call to be written to
	// the audit log under this name.
	AuditContext string

	// Anonymous routes are never authorized.
	Anonymous bool

	// Deprecated routes still work but are marked as such in the
	// API description.
	Deprecated bool

	// Name is a human-readable description.
	Name string

	// OperationID identifies the route in the API description
	// and in metrics.
	OperationID string

	// Parameters documents query and header parameters.
	Parameters []RouteParam

	// Responses documents the status codes this route returns.
	Responses map[int]string
}

// DuplicateRouteError is returned by Table.Register when a route
// would answer a request some other route already answers.
type DuplicateRouteError struct {
	Method   string
	Path     string
	Existing string
	Action   string
}

func (e *DuplicateRouteError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("duplicate route %v %v (already registered as %v)",
			e.Method, e.Path, e.Existing)
	}
	return fmt.Sprintf("duplicate route %v %v action %q (already registered as %v)",
		e.Method, e.Path, e.Action, e.Existing)
}

// ErrRouteNotFound is returned by Table.Match if no route has the
// requested path.
var ErrRouteNotFound = restdata.ErrNotFound{Err: errors.New("Resource not found")}

// Match is the result of a successful Table.Match.
type Match struct {
	Route *Route

	// Vars maps path variable names to their decoded values.
	Vars map[string]string

	// Names lists the path variable names in path order.
	Names []string
}

// endpointKey identifies one endpoint at a path.
type endpointKey struct {
	Method string
	Action string
}

type endpoint struct {
	route *Route
	vars  []string
}

type node struct {
	literals  map[string]*node
	variable  *node
	endpoints map[endpointKey]endpoint
}

func newNode() *node {
	return &node{literals: make(map[string]*node)}
}

// Table maps requests to routes.  Build it completely before serving
// any requests; it is not safe to Register concurrently with Match.
type Table struct {
	root   *node
	routes []*Route
}

// NewTable creates an empty route table.
func NewTable() *Table {
	return &Table{root: newNode()}
}

// splitPath splits a path into its non-empty segments.
func splitPath(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

// parseTemplate splits a path template into segments, returning the
// variable names in order.  Variable segments are returned as "{}".
func parseTemplate(path string) (segments, vars []string, err error) {
	seen := make(map[string]bool)
	for _, segment := range splitPath(path) {
		open := strings.Count(segment, "{")
		close := strings.Count(segment, "}")
		if open == 0 && close == 0 {
			segments = append(segments, segment)
			continue
		}
		if open != 1 || close != 1 || segment[0] != '{' || segment[len(segment)-1] != '}' {
			return nil, nil, fmt.Errorf("malformed path template %q", path)
		}
		name := segment[1 : len(segment)-1]
		if name == "" {
			return nil, nil, fmt.Errorf("empty variable in path template %q", path)
		}
		if seen[name] {
			return nil, nil, fmt.Errorf("variable %q repeated in path template %q", name, path)
		}
		seen[name] = true
		segments = append(segments, "{}")
		vars = append(vars, name)
	}
	return segments, vars, nil
}

// Register adds a route to the table.  It fails if the route is
// malformed or if any of its methods collides with an existing
// route at the same path and action.  On failure the table is
// unchanged.
func (t *Table) Register(route *Route) error {
	if len(route.Methods) == 0 {
		return fmt.Errorf("route %v has no methods", route.Path)
	}
	if route.Handler == nil {
		return fmt.Errorf("route %v has no handler", route.Path)
	}
	segments, vars, err := parseTemplate(route.Path)
	if err != nil {
		return err
	}

	n := t.root
	for _, segment := range segments {
		var next *node
		if segment == "{}" {
			if n.variable == nil {
				n.variable = newNode()
			}
			next = n.variable
		} else {
			next = n.literals[segment]
			if next == nil {
				next = newNode()
				n.literals[segment] = next
			}
		}
		n = next
	}
	if n.endpoints == nil {
		n.endpoints = make(map[endpointKey]endpoint)
	}
	for _, method := range route.Methods {
		key := endpointKey{Method: method, Action: route.Action}
		if existing, present := n.endpoints[key]; present {
			return &DuplicateRouteError{
				Method:   method,
				Path:     route.Path,
				Existing: existing.route.Path,
				Action:   route.Action,
			}
		}
	}
	for _, method := range route.Methods {
		key := endpointKey{Method: method, Action: route.Action}
		n.endpoints[key] = endpoint{route: route, vars: vars}
	}
	t.routes = append(t.routes, route)
	return nil
}

// Routes returns the registered routes in registration order.
func (t *Table) Routes() []*Route {
	return append([]*Route(nil), t.routes...)
}

// find walks the trie from n.  Literal children are preferred; the
// variable child is only tried if the literal subtree has no
// endpoints at the full path depth.
func find(n *node, segments []string, values []string) (*node, []string) {
	if len(segments) == 0 {
		if len(n.endpoints) == 0 {
			return nil, nil
		}
		return n, values
	}
	if next := n.literals[segments[0]]; next != nil {
		if found, vals := find(next, segments[1:], values); found != nil {
			return found, vals
		}
	}
	if n.variable != nil {
		return find(n.variable, segments[1:], append(values, segments[0]))
	}
	return nil, nil
}

// Match finds the route for a request.  path is the escaped request
// path; each segment is unescaped separately, so variables may
// contain "%2F".  A request for a known path with the wrong method
// returns restdata.ErrMethodNotAllowed; a known path and method with
// an unknown action returns restdata.ErrBadRequest.  HEAD requests
// are served by GET routes if there is no HEAD route.
func (t *Table) Match(method, path, action string) (*Match, error) {
	raw := splitPath(path)
	segments := make([]string, len(raw))
	for i, segment := range raw {
		decoded, err := url.PathUnescape(segment)
		if err != nil {
			return nil, restdata.ErrBadRequest{Err: err}
		}
		segments[i] = decoded
	}

	n, values := find(t.root, segments, nil)
	if n == nil {
		return nil, ErrRouteNotFound
	}

	ep, present := n.endpoints[endpointKey{Method: method, Action: action}]
	if !present && method == http.MethodHead {
		ep, present = n.endpoints[endpointKey{Method: http.MethodGet, Action: action}]
	}
	if !present {
		allowed := make(map[string]bool)
		knownMethod := false
		for key := range n.endpoints {
			allowed[key.Method] = true
			if key.Method == method || (method == http.MethodHead && key.Method == http.MethodGet) {
				knownMethod = true
			}
		}
		if !knownMethod {
			if allowed[http.MethodGet] {
				allowed[http.MethodHead] = true
			}
			methods := make([]string, 0, len(allowed))
			for m := range allowed {
				methods = append(methods, m)
			}
			sort.Strings(methods)
			return nil, restdata.ErrMethodNotAllowed{Method: method, Allowed: methods}
		}
		if action == "" {
			return nil, restdata.ErrBadRequest{Err: errors.New("Missing action parameter")}
		}
		return nil, restdata.ErrBadRequest{Err: fmt.Errorf("Unknown action %q", action)}
	}

	match := &Match{
		Route: ep.route,
		Vars:  make(map[string]string, len(ep.vars)),
		Names: ep.vars,
	}
	for i, name := range ep.vars {
		match.Vars[name] = values[i]
	}
	return match, nil
}
