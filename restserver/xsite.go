// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

func (api *restAPI) xsite(req *Request) (grid.XSiteAdmin, string, error) {
	if api.services.XSite == nil {
		return nil, "", restdata.ErrNotImplemented{Text: "Cross-site replication is not configured"}
	}
	return api.services.XSite, req.Var("cacheName"), nil
}

func (api *restAPI) siteStatus(req *Request) (*Response, error) {
	xsite, cache, err := api.xsite(req)
	if err != nil {
		return nil, err
	}
	status, err := xsite.SiteStatus(cache)
	if err != nil {
		return nil, err
	}
	return ok(status), nil
}

func (api *restAPI) pushStateStatus(req *Request) (*Response, error) {
	xsite, cache, err := api.xsite(req)
	if err != nil {
		return nil, err
	}
	status, err := xsite.PushStateStatus(cache)
	if err != nil {
		return nil, err
	}
	return ok(status), nil
}

// siteOperation returns a handler running one cross-site operation.
// Any result but grid.XSiteSuccess is a server error whose message
// is the result.
func (api *restAPI) siteOperation(op func(grid.XSiteAdmin, string, string) (string, error)) func(*Request) (*Response, error) {
	return func(req *Request) (*Response, error) {
		xsite, cache, err := api.xsite(req)
		if err != nil {
			return nil, err
		}
		result, err := op(xsite, cache, req.Var("site"))
		if err != nil {
			return nil, err
		}
		if result != grid.XSiteSuccess {
			return nil, restdata.ErrServer{Status: http.StatusInternalServerError, Message: result}
		}
		return noContent(), nil
	}
}

func takeOffline(x grid.XSiteAdmin, cache, site string) (string, error) {
	return x.TakeSiteOffline(cache, site)
}

func bringOnline(x grid.XSiteAdmin, cache, site string) (string, error) {
	return x.BringSiteOnline(cache, site)
}

func pushState(x grid.XSiteAdmin, cache, site string) (string, error) {
	return x.PushState(cache, site)
}

func cancelPushState(x grid.XSiteAdmin, cache, site string) (string, error) {
	return x.CancelPushState(cache, site)
}
