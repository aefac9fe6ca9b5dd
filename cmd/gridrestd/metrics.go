// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-gridrest/grid"
)

var cacheEntries = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "diffeo",
		Subsystem: "gridrest",
		Name:      "cache_entries",
		Help:      "Number of live entries in each cache",
	},
	[]string{
		"cache",
	},
)

func init() {
	prometheus.MustRegister(cacheEntries)
}

// observe periodically publishes cache sizes until ctx is done.
func observe(ctx context.Context, g grid.Grid, interval time.Duration, log *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		sizes, err := cacheSizes(g)
		if err != nil {
			log.WithError(err).Warn("could not collect cache sizes")
		}
		cacheEntries.Reset()
		for name, size := range sizes {
			cacheEntries.With(prometheus.Labels{
				"cache": name,
			}).Set(float64(size))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
