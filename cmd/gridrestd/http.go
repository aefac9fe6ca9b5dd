// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restserver"
)

// restPrefix is where the REST API is mounted.
const restPrefix = "/rest"

// HTTP serves the REST API and metrics.
type HTTP struct {
	Services *grid.Services
	Options  restserver.Options

	// RequestLog, if non-nil, gets a line for every request.
	RequestLog *logrus.Logger
}

// Handler builds the complete HTTP handler stack.
func (h *HTTP) Handler() (http.Handler, error) {
	r := mux.NewRouter().SkipClean(true).UseEncodedPath()
	err := restserver.PopulateRouter(r.PathPrefix(restPrefix).Subrouter(), h.Services, h.Options)
	if err != nil {
		return nil, err
	}
	r.Handle("/metrics", promhttp.Handler())

	log := h.Options.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	n := negroni.New()
	recovery := negroni.NewRecovery()
	recovery.Logger = log
	recovery.PrintStack = false
	n.Use(recovery)
	if h.RequestLog != nil {
		logger := negroni.NewLogger()
		logger.ALogger = h.RequestLog
		n.Use(logger)
	}
	n.UseHandler(r)
	return n, nil
}

// Serve runs an HTTP server on the specified local address.  This
// serves connections until the listener fails, and probably wants
// to be run in a goroutine.
func (h *HTTP) Serve(laddr string) error {
	handler, err := h.Handler()
	if err != nil {
		return err
	}
	return http.ListenAndServe(laddr, handler)
}
