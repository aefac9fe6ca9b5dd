// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

func (api *restAPI) counters() (grid.CounterManager, error) {
	if api.services.Counters == nil {
		return nil, restdata.ErrNotImplemented{Text: "Counters are not supported"}
	}
	return api.services.Counters, nil
}

// counter looks up the counter named by the request path.
func (api *restAPI) counter(req *Request) (grid.Counter, error) {
	counters, err := api.counters()
	if err != nil {
		return nil, err
	}
	return counters.Counter(req.Var("counterName"))
}

// int64Param reads a required integer query parameter.
func int64Param(req *Request, name string) (int64, error) {
	s := req.Query.Get(name)
	if s == "" {
		return 0, restdata.ErrBadRequest{Err: fmt.Errorf("Missing %v parameter", name)}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, restdata.ErrBadRequest{Err: fmt.Errorf("Invalid %v parameter %q", name, s)}
	}
	return v, nil
}

func (api *restAPI) listCounters(req *Request) (*Response, error) {
	counters, err := api.counters()
	if err != nil {
		return nil, err
	}
	names, err := counters.CounterNames()
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return ok(names), nil
}

// createCounter defines a counter.  Defining a counter that already
// exists is not an error, but changes nothing and returns 304.
func (api *restAPI) createCounter(req *Request) (*Response, error) {
	counters, err := api.counters()
	if err != nil {
		return nil, err
	}
	repr := restdata.Counter{}
	if err := req.Decode(&repr); err != nil {
		return nil, err
	}
	config, err := repr.ToConfig()
	if err != nil {
		return nil, err
	}
	created, err := counters.DefineCounter(req.Var("counterName"), config)
	if err != nil {
		return nil, err
	}
	if !created {
		return withStatus(http.StatusNotModified), nil
	}
	return noContent(), nil
}

func (api *restAPI) deleteCounter(req *Request) (*Response, error) {
	counters, err := api.counters()
	if err != nil {
		return nil, err
	}
	if err := counters.RemoveCounter(req.Var("counterName")); err != nil {
		return nil, err
	}
	return noContent(), nil
}

func (api *restAPI) counterValue(req *Request) (*Response, error) {
	counter, err := api.counter(req)
	if err != nil {
		return nil, err
	}
	value, err := counter.Value()
	if err != nil {
		return nil, err
	}
	return ok(value), nil
}

func (api *restAPI) counterConfig(req *Request) (*Response, error) {
	counters, err := api.counters()
	if err != nil {
		return nil, err
	}
	config, err := counters.CounterConfig(req.Var("counterName"))
	if err != nil {
		return nil, err
	}
	repr := restdata.Counter{}
	repr.FromConfig(config)
	return ok(repr), nil
}

// counterAdd returns a handler adding a fixed delta, or the "delta"
// query parameter if delta is nil.
func (api *restAPI) counterAdd(delta *int64) func(*Request) (*Response, error) {
	return func(req *Request) (*Response, error) {
		counter, err := api.counter(req)
		if err != nil {
			return nil, err
		}
		var d int64
		if delta != nil {
			d = *delta
		} else if d, err = int64Param(req, "delta"); err != nil {
			return nil, err
		}
		value, err := counter.Add(d)
		if err != nil {
			return nil, err
		}
		return ok(value), nil
	}
}

func (api *restAPI) counterReset(req *Request) (*Response, error) {
	counter, err := api.counter(req)
	if err != nil {
		return nil, err
	}
	if err := counter.Reset(); err != nil {
		return nil, err
	}
	return noContent(), nil
}

func (api *restAPI) counterCompareAndSet(req *Request) (*Response, error) {
	counter, err := api.counter(req)
	if err != nil {
		return nil, err
	}
	expect, err := int64Param(req, "expect")
	if err != nil {
		return nil, err
	}
	update, err := int64Param(req, "update")
	if err != nil {
		return nil, err
	}
	swapped, err := counter.CompareAndSet(expect, update)
	if err != nil {
		return nil, err
	}
	return ok(swapped), nil
}
