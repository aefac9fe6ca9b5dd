// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"net/http"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

func (api *restAPI) query() (grid.QueryEngine, error) {
	if api.services.Query == nil {
		return nil, restdata.ErrNotImplemented{Text: "Search is not supported"}
	}
	return api.services.Query, nil
}

// searchRequest collects a query from the query string (GET) or the
// request body (POST).
func searchRequest(req *Request) (restdata.SearchRequest, error) {
	search := restdata.SearchRequest{}
	if req.Method == http.MethodPost {
		if err := req.Decode(&search); err != nil {
			return search, err
		}
	} else {
		var err error
		search.Query = req.Query.Get("query")
		if search.Offset, err = req.IntParam("offset", 0); err != nil {
			return search, err
		}
		if search.MaxResults, err = req.IntParam("max_results", 0); err != nil {
			return search, err
		}
		if search.HitCountAccuracy, err = req.IntParam("hit_count_accuracy", 0); err != nil {
			return search, err
		}
	}
	if search.Query == "" {
		return search, restdata.ErrBadRequest{Err: errors.New("Missing query")}
	}
	if search.Offset < 0 || search.MaxResults < 0 {
		return search, restdata.ErrBadRequest{Err: errors.New("Offset and max_results must not be negative")}
	}
	return search, nil
}

func (api *restAPI) search(req *Request) (*Response, error) {
	engine, err := api.query()
	if err != nil {
		return nil, err
	}
	search, err := searchRequest(req)
	if err != nil {
		return nil, err
	}
	if _, err := api.cache(req); err != nil {
		return nil, err
	}
	result, err := engine.Query(req.Var("cacheName"), grid.Query{
		Text:             search.Query,
		Offset:           search.Offset,
		MaxResults:       search.MaxResults,
		HitCountAccuracy: search.HitCountAccuracy,
	})
	if err != nil {
		return nil, err
	}
	repr := restdata.SearchResult{}
	repr.FromResult(result)
	return ok(repr), nil
}

// reindex rebuilds a cache's index.  With mode=async it answers 202
// as soon as the rebuild starts; otherwise the response waits for it
// without holding an executor worker.
func (api *restAPI) reindex(req *Request) *Future {
	engine, err := api.query()
	if err != nil {
		return Failed(err)
	}
	done, err := engine.Reindex(req.Var("cacheName"))
	if err != nil {
		return Failed(err)
	}
	if req.Query.Get("mode") == "async" {
		go func() {
			if err := <-done; err != nil {
				api.log.WithError(err).WithField("cache", req.Var("cacheName")).Warn("reindex failed")
			}
		}()
		return Completed(withStatus(http.StatusAccepted))
	}
	return FromChannel(done, noContent)
}

func (api *restAPI) clearIndex(req *Request) (*Response, error) {
	engine, err := api.query()
	if err != nil {
		return nil, err
	}
	if err := engine.ClearIndex(req.Var("cacheName")); err != nil {
		return nil, err
	}
	return noContent(), nil
}
