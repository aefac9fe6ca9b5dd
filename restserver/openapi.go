// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/go-openapi/spec"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

// OpenAPI builds a Swagger 2.0 description of every route in the
// table.  Routes selected by an action parameter are described under
// "path?action=name".
func (t *Table) OpenAPI() *spec.Swagger {
	swagger := &spec.Swagger{
		SwaggerProps: spec.SwaggerProps{
			Swagger: "2.0",
			Info: &spec.Info{
				InfoProps: spec.InfoProps{
					Title:       "Data grid REST API",
					Description: "Management and data access for a data grid",
					Version:     restdata.Version,
				},
			},
			Consumes: []string{grid.MediaJSON, grid.MediaYAML},
			Produces: []string{grid.MediaJSON, grid.MediaYAML, grid.MediaTextPlain},
			Paths:    &spec.Paths{Paths: make(map[string]spec.PathItem)},
		},
	}
	for _, route := range t.routes {
		key := route.Path
		if route.Action != "" {
			key += "?action=" + route.Action
		}
		item := swagger.Paths.Paths[key]
		for _, method := range route.Methods {
			if op := refMethodOp(&item, method); op != nil {
				*op = routeOperation(route)
			}
		}
		swagger.Paths.Paths[key] = item
	}
	return swagger
}

// refMethodOp returns a pointer to the operation field for an HTTP
// method, or nil for methods Swagger does not describe.
func refMethodOp(item *spec.PathItem, method string) **spec.Operation {
	switch method {
	case http.MethodGet:
		return &item.Get
	case http.MethodPost:
		return &item.Post
	case http.MethodDelete:
		return &item.Delete
	case http.MethodPut:
		return &item.Put
	case http.MethodHead:
		return &item.Head
	}
	return nil
}

// routeTag groups routes by the first path segment after the
// version, e.g. "caches".
func routeTag(path string) string {
	segments := splitPath(path)
	if len(segments) < 2 {
		return "root"
	}
	return segments[1]
}

func routeOperation(route *Route) *spec.Operation {
	op := &spec.Operation{
		OperationProps: spec.OperationProps{
			ID:         route.OperationID,
			Summary:    route.Name,
			Tags:       []string{routeTag(route.Path)},
			Deprecated: route.Deprecated,
			Responses: &spec.Responses{
				ResponsesProps: spec.ResponsesProps{
					StatusCodeResponses: make(map[int]spec.Response),
				},
			},
		},
	}

	_, vars, _ := parseTemplate(route.Path)
	for _, name := range vars {
		op.Parameters = append(op.Parameters, *spec.PathParam(name).Typed("string", ""))
	}
	for _, param := range route.Parameters {
		p := spec.Parameter{
			ParamProps: spec.ParamProps{
				Name:        param.Name,
				In:          param.In,
				Description: param.Description,
				Required:    param.Required,
			},
		}
		p.Type = "string"
		op.Parameters = append(op.Parameters, p)
	}

	responses := route.Responses
	if len(responses) == 0 {
		responses = map[int]string{http.StatusOK: "OK"}
	}
	for code, description := range responses {
		op.Responses.StatusCodeResponses[code] = *spec.NewResponse().WithDescription(description)
	}

	if !route.Anonymous && route.Permission != grid.PermissionNone {
		perms := route.Permission.Names()
		sort.Strings(perms)
		op.AddExtension("x-permission", strings.Join(perms, ","))
	}
	return op
}

// openAPI serves the API description.
func (api *restAPI) openAPI(req *Request) (*Response, error) {
	if _, err := NegotiateFixed(req.Accept, grid.JSONType); err != nil {
		return nil, err
	}
	api.openAPIOnce.Do(func() {
		api.openAPIDoc, api.openAPIErr = json.Marshal(api.table.OpenAPI())
	})
	if api.openAPIErr != nil {
		return nil, api.openAPIErr
	}
	return rawBody(grid.MediaJSON, api.openAPIDoc), nil
}
