// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

// Options configures the REST server.  The zero value is usable.
type Options struct {
	// Logger receives error, request, and audit logs.  nil
	// means logrus.StandardLogger().
	Logger *logrus.Logger

	// Workers bounds the number of handlers doing blocking work
	// at once.  Zero means DefaultWorkers().
	Workers int

	// Clock is the time source for conditional requests.  nil
	// means the real clock.
	Clock clock.Clock

	// Registerer, if non-nil, receives the server's Prometheus
	// collectors.
	Registerer prometheus.Registerer

	// TempDir holds uploaded restore archives.  Empty means the
	// system default.
	TempDir string
}

// NewRouter creates a new HTTP handler that processes all REST
// requests.  All resources are under the URL path root, e.g.
// /v3/caches/foo.  For more control over this setup, create a
// mux.Router and call PopulateRouter instead.
func NewRouter(services *grid.Services, opts Options) (http.Handler, error) {
	r := mux.NewRouter().SkipClean(true).UseEncodedPath()
	if err := PopulateRouter(r, services, opts); err != nil {
		return nil, err
	}
	return r, nil
}

// PopulateRouter adds the /v2 and /v3 REST APIs to an existing
// github.com/gorilla/mux router object.  This can be used, for
// instance, to place the interface under a subpath:
//
//     r := mux.NewRouter()
//     s := r.PathPrefix("/rest").Subrouter()
//     err := restserver.PopulateRouter(s, services, restserver.Options{})
//
// Since cache keys may contain encoded slashes, r should normally
// have path cleaning disabled.  It fails only if the route tables
// are inconsistent or the metrics cannot be registered.
func PopulateRouter(r *mux.Router, services *grid.Services, opts Options) error {
	api, err := newRestAPI(services, opts)
	if err != nil {
		return err
	}
	for _, version := range []string{"/v2", "/v3"} {
		route := r.PathPrefix(version)
		route.Handler(api.mount(route, version))
	}
	return nil
}

// restAPI holds the persistent state for the REST API.
type restAPI struct {
	services *grid.Services
	table    *Table
	executor *Executor
	metrics  *metrics
	clock    clock.Clock
	log      *logrus.Logger
	tempDir  string

	openAPIOnce sync.Once
	openAPIDoc  []byte
	openAPIErr  error
}

func newRestAPI(services *grid.Services, opts Options) (*restAPI, error) {
	if services == nil {
		services = &grid.Services{}
	}
	api := &restAPI{
		services: services,
		table:    NewTable(),
		executor: NewExecutor(opts.Workers),
		clock:    opts.Clock,
		log:      opts.Logger,
		tempDir:  opts.TempDir,
	}
	if api.clock == nil {
		api.clock = clock.New()
	}
	if api.log == nil {
		api.log = logrus.StandardLogger()
	}
	var err error
	api.metrics, err = newMetrics(opts.Registerer)
	if err != nil {
		return nil, err
	}
	api.executor.onChange = func(n int64) {
		api.metrics.inFlight.Set(float64(n))
	}
	for _, routes := range [][]*Route{api.routesV2(), api.routesV3()} {
		for _, route := range routes {
			if err := api.table.Register(route); err != nil {
				return nil, err
			}
		}
	}
	return api, nil
}

// mount returns the handler for one API version.  route is the mux
// route it is installed on, whose template is the path prefix to
// strip; version is put back in its place.
func (api *restAPI) mount(route *mux.Route, version string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path := req.URL.EscapedPath()
		if prefix, err := route.GetPathTemplate(); err == nil {
			path = version + strings.TrimPrefix(path, prefix)
		}
		// Only /v2 selects operations with a query parameter
		action := ""
		if version == "/v2" {
			action = req.URL.Query().Get("action")
		}
		api.serve(w, req, path, action)
	})
}

// serve dispatches one request: negotiate, match, authorize, run
// the handler, and write exactly one response.
func (api *restAPI) serve(w http.ResponseWriter, req *http.Request, path, action string) {
	start := time.Now()
	rw := &responder{
		w:      w,
		method: req.Method,
		accept: []grid.MediaType{grid.AnyType},
		log:    api.log,
	}
	operation := "unmatched"
	var request *Request

	defer func() {
		if recovered := recover(); recovered != nil {
			response := restdata.ErrorResponse{}
			response.FromPanic(recovered)
			api.log.WithFields(logrus.Fields{
				"method": req.Method,
				"path":   path,
				"panic":  response.Message,
			}).Error("panic in handler")
			if rw.claim() {
				w.Header().Set("Content-Type", restdata.JSONMediaType)
				rw.status = http.StatusInternalServerError
				w.WriteHeader(http.StatusInternalServerError)
				_ = restdata.Encode(restdata.JSONMediaType, w, response)
			}
		}
		api.metrics.observe(operation, rw.Status(), time.Since(start))
		api.log.WithFields(logrus.Fields{
			"method":    req.Method,
			"path":      path,
			"operation": operation,
			"status":    rw.Status(),
		}).Debug("request")
		if request != nil {
			api.audit(request, rw.Status())
		}
	}()

	accept, err := ParseAccept(req.Header.Get("Accept"))
	if err != nil {
		rw.Error(err)
		return
	}
	rw.accept = accept

	match, err := api.table.Match(req.Method, path, action)
	if err != nil {
		rw.Error(err)
		return
	}
	operation = match.Route.OperationID
	request = newRequest(req, match, accept)

	if err := api.authorize(request); err != nil {
		rw.Error(err)
		return
	}

	resp, err := match.Route.Handler(request).Await(req.Context())
	if err != nil && req.Context().Err() != nil {
		// The client went away; there is nobody to answer
		return
	}
	if err != nil {
		rw.Error(err)
		return
	}
	rw.Respond(resp)
}

// authorize checks the caller's permission for the matched route.
func (api *restAPI) authorize(req *Request) error {
	security := api.services.Security
	if security == nil || req.Route.Anonymous || req.Route.Permission == grid.PermissionNone {
		return nil
	}
	return security.Authorize(req.Principal, req.Route.Permission)
}

// audit writes an audit log line for routes that want one.
func (api *restAPI) audit(req *Request, status int) {
	if req.Route.AuditContext == "" {
		return
	}
	fields := logrus.Fields{
		"subject": req.Principal,
		"context": req.Route.AuditContext,
		"route":   req.Route.Name,
		"status":  status,
	}
	for name, value := range req.Vars {
		fields[name] = value
	}
	api.log.WithFields(fields).Info("audit")
}

// blocking adapts a function that does blocking engine work into a
// HandlerFunc that runs it on the executor.
func (api *restAPI) blocking(fn func(req *Request) (*Response, error)) HandlerFunc {
	return func(req *Request) *Future {
		return api.executor.Submit(req.Context(), func(ctx context.Context) (*Response, error) {
			return fn(req)
		})
	}
}

// immediate adapts a function that never blocks into a HandlerFunc.
func immediate(fn func(req *Request) (*Response, error)) HandlerFunc {
	return func(req *Request) *Future {
		resp, err := fn(req)
		if err != nil {
			return Failed(err)
		}
		return Completed(resp)
	}
}
