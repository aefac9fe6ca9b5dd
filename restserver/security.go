// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

func (api *restAPI) security() (grid.Security, error) {
	if api.services.Security == nil {
		return nil, restdata.ErrNotImplemented{Text: "Authorization is not enabled"}
	}
	return api.services.Security, nil
}

// userACL describes the caller's own roles and permissions.
func (api *restAPI) userACL(req *Request) (*Response, error) {
	security, err := api.security()
	if err != nil {
		return nil, err
	}
	roles, err := security.Roles(req.Principal)
	if err != nil {
		return nil, err
	}
	perms, err := security.Permissions(req.Principal)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []string{}
	}
	return ok(restdata.ACL{
		Subject:     req.Principal,
		Roles:       roles,
		Permissions: perms.Names(),
	}), nil
}

func (api *restAPI) principalRoles(req *Request) (*Response, error) {
	security, err := api.security()
	if err != nil {
		return nil, err
	}
	roles, err := security.Roles(req.Var("principal"))
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []string{}
	}
	return ok(roles), nil
}

// changeRoles returns a handler that grants or denies the roles
// named by "role" query parameters.
func (api *restAPI) changeRoles(grant bool) func(*Request) (*Response, error) {
	return func(req *Request) (*Response, error) {
		security, err := api.security()
		if err != nil {
			return nil, err
		}
		roles := req.Query["role"]
		if len(roles) == 0 {
			return nil, restdata.ErrBadRequest{Err: errors.New("Missing role parameter")}
		}
		principal := req.Var("principal")
		if grant {
			err = security.Grant(principal, roles)
		} else {
			err = security.Deny(principal, roles)
		}
		if err != nil {
			return nil, err
		}
		return noContent(), nil
	}
}
