// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

// eventBuffer is the number of configuration events held for a slow
// listener before further events are dropped.
const eventBuffer = 64

func (api *restAPI) containerInfo(req *Request) (*Response, error) {
	g, err := api.engine()
	if err != nil {
		return nil, err
	}
	names, err := g.CacheNames()
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return ok(restdata.Container{
		Version:     restdata.Version,
		NodeName:    g.NodeName(),
		NodeAddress: g.NodeAddress(),
		CacheNames:  names,
	}), nil
}

// health answers without touching the engine beyond its identity,
// so it stays cheap enough for load-balancer probes.
func (api *restAPI) health(req *Request) (*Response, error) {
	g, err := api.engine()
	if err != nil {
		return nil, err
	}
	return ok(restdata.Health{
		Status:        restdata.Healthy,
		NodeName:      g.NodeName(),
		NumberOfNodes: 1,
	}), nil
}

// writeEvent writes one server-sent event.
func writeEvent(w http.ResponseWriter, event grid.ConfigEvent) error {
	repr := restdata.ConfigEvent{}
	repr.FromEvent(event)
	var data bytes.Buffer
	if err := restdata.Encode(restdata.JSONMediaType, &data, repr); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, bytes.TrimSpace(data.Bytes()))
	return err
}

// listenConfig streams cache configuration changes as server-sent
// events until the client disconnects.  With includeCurrentState,
// every existing cache is first reported as created.
func (api *restAPI) listenConfig(req *Request) (*Response, error) {
	g, err := api.engine()
	if err != nil {
		return nil, err
	}
	includeCurrent := req.BoolParam("includeCurrentState", false)
	ctx := req.Context()
	resp := &Response{
		Status: http.StatusOK,
		Header: http.Header{
			"Content-Type":  []string{"text/event-stream"},
			"Cache-Control": []string{"no-cache"},
		},
	}
	resp.Stream = func(w http.ResponseWriter) error {
		flusher, _ := w.(http.Flusher)
		flush := func() {
			if flusher != nil {
				flusher.Flush()
			}
		}

		// Subscribing before the first flush means a client
		// that has seen the response headers sees every later
		// change
		sub := g.SubscribeConfig(eventBuffer)
		defer sub.Close()

		if includeCurrent {
			names, err := g.CacheNames()
			if err != nil {
				return err
			}
			for _, name := range names {
				cache, err := g.Cache(name)
				if err != nil {
					continue
				}
				config, err := cache.Config()
				if err != nil {
					continue
				}
				err = writeEvent(w, grid.ConfigEvent{Kind: grid.CacheCreated, Name: name, Config: config})
				if err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprint(w, ": listening\n\n"); err != nil {
			return err
		}
		flush()

		for {
			select {
			case <-ctx.Done():
				return nil
			case event, open := <-sub.Events():
				if !open {
					return nil
				}
				if err := writeEvent(w, event); err != nil {
					return err
				}
				flush()
			}
		}
	}
	return resp, nil
}
