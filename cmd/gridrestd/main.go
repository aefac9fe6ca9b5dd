// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package gridrestd serves the REST management interface over a grid
// engine.  The engine is selected with -backend; with the default
// in-memory engine all data is lost when the process exits.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-gridrest/backend"
	"github.com/diffeo/go-gridrest/restserver"
)

func main() {
	var err error

	httpBind := flag.String("http", ":11222",
		"[ip]:port for HTTP REST interface")
	storage := backend.Backend{Implementation: "memory", Address: ""}
	flag.Var(&storage, "backend", "impl[:address] of the storage backend")
	config := flag.String("config", "", "global configuration YAML file")
	logRequests := flag.Bool("log-requests", false, "log all requests")
	backupDir := flag.String("backup-dir", "", "directory for backup archives")
	workers := flag.Int("workers", 0, "concurrent request handlers (0 for default)")
	flag.Parse()

	var gConfig Config
	if *config != "" {
		var raw map[string]interface{}
		raw, err = loadConfigYaml(*config)
		if err == nil {
			gConfig, err = decodeConfig(raw)
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"err": err,
			}).Fatal("Could not load YAML configuration")
			return
		}
	}
	if *backupDir != "" {
		gConfig.BackupDir = *backupDir
	}
	if *workers != 0 {
		gConfig.Workers = *workers
	}

	services, err := storage.Services(backend.Options{
		NodeName:    gConfig.Node.Name,
		NodeAddress: gConfig.Node.Address,
		BackupDir:   gConfig.BackupDir,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"err":     err,
			"backend": storage.String(),
		}).Fatal("Could not create grid backend")
		return
	}
	services.Tasks = builtinTasks(services.Grid)
	if gConfig.secured() {
		services.Security, err = gConfig.security()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"err": err,
			}).Fatal("Could not configure security")
			return
		}
	}
	if err = gConfig.createCaches(services.Grid); err != nil {
		logrus.WithFields(logrus.Fields{
			"err": err,
		}).Fatal("Could not create caches")
		return
	}

	var reqLogger *logrus.Logger
	if *logRequests {
		stdlog := logrus.StandardLogger()
		reqLogger = &logrus.Logger{
			Out:       stdlog.Out,
			Formatter: stdlog.Formatter,
			Hooks:     stdlog.Hooks,
			Level:     logrus.DebugLevel,
		}
	}

	go observe(context.Background(), services.Grid, 30*time.Second, logrus.StandardLogger())

	server := HTTP{
		Services: services,
		Options: restserver.Options{
			Logger:     logrus.StandardLogger(),
			Workers:    gConfig.Workers,
			Registerer: prometheus.DefaultRegisterer,
		},
		RequestLog: reqLogger,
	}
	logrus.WithFields(logrus.Fields{
		"http":    *httpBind,
		"backend": storage.String(),
		"node":    services.Grid.NodeName(),
	}).Info("Starting")
	err = server.Serve(*httpBind)
	logrus.WithFields(logrus.Fields{
		"err": err,
	}).Fatal("HTTP server failed")
}
