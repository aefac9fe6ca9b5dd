// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import "strings"

// route builds the Route for r at a path.
func (r resource) route(path, action, operationID string) *Route {
	return &Route{
		Methods:      r.methods,
		Path:         path,
		Action:       action,
		Handler:      r.handler,
		Permission:   r.permission,
		AuditContext: r.audit,
		Anonymous:    r.anonymous,
		Name:         r.name,
		OperationID:  operationID,
		Parameters:   r.params,
		Responses:    r.responses,
	}
}

// routesV2 returns the /v2 routes.  /v2 is superseded by /v3, so
// every route is marked deprecated.
func (api *restAPI) routesV2() []*Route {
	var routes []*Route
	for _, r := range api.resources() {
		if r.v2Path == "" {
			continue
		}
		route := r.route("/v2"+r.v2Path, r.v2Action, "v2"+strings.ToUpper(r.id[:1])+r.id[1:])
		route.Deprecated = true
		routes = append(routes, route)
	}
	return routes
}

// routesV3 returns the /v3 routes.
func (api *restAPI) routesV3() []*Route {
	var routes []*Route
	for _, r := range api.resources() {
		if r.v3Path == "" {
			continue
		}
		routes = append(routes, r.route("/v3"+r.v3Path, "", r.id))
	}
	return routes
}
