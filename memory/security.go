// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"sort"
	"sync"

	"github.com/diffeo/go-gridrest/grid"
)

// DefaultRoles are the roles a new Security starts with.
var DefaultRoles = map[string]grid.Permission{
	"admin":       grid.PermissionAll,
	"deployer":    grid.PermissionRead | grid.PermissionWrite | grid.PermissionExec | grid.PermissionBulk | grid.PermissionMonitor | grid.PermissionCreate,
	"application": grid.PermissionRead | grid.PermissionWrite | grid.PermissionExec | grid.PermissionBulk | grid.PermissionMonitor,
	"observer":    grid.PermissionRead | grid.PermissionBulk | grid.PermissionMonitor,
	"monitor":     grid.PermissionMonitor,
}

// Security is an in-memory role mapper.  It implements grid.Security.
type Security struct {
	lock       sync.RWMutex
	roles      map[string]grid.Permission
	principals map[string]map[string]struct{}
}

// NewSecurity creates a role mapper with DefaultRoles and no
// principals.
func NewSecurity() *Security {
	s := &Security{
		roles:      make(map[string]grid.Permission),
		principals: make(map[string]map[string]struct{}),
	}
	for name, perm := range DefaultRoles {
		s.roles[name] = perm
	}
	return s
}

// DefineRole adds or replaces a role.
func (s *Security) DefineRole(name string, perm grid.Permission) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.roles[name] = perm
}

// Authorize checks that principal holds every permission in perm.
func (s *Security) Authorize(principal string, perm grid.Permission) error {
	if perm == grid.PermissionNone {
		return nil
	}
	have, err := s.Permissions(principal)
	if err != nil {
		return err
	}
	if !have.Implies(perm) {
		return grid.ErrForbidden{Principal: principal, Permission: perm}
	}
	return nil
}

// Permissions returns the union of the principal's role permissions.
func (s *Security) Permissions(principal string) (grid.Permission, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var perm grid.Permission
	for role := range s.principals[principal] {
		perm |= s.roles[role]
	}
	return perm, nil
}

// Roles returns the principal's roles, sorted.
func (s *Security) Roles(principal string) ([]string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	roles := []string{}
	for role := range s.principals[principal] {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles, nil
}

// Grant adds roles to a principal.  Every role must be defined.
func (s *Security) Grant(principal string, roles []string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, role := range roles {
		if _, defined := s.roles[role]; !defined {
			return grid.ErrNoSuchRole{Name: role}
		}
	}
	held := s.principals[principal]
	if held == nil {
		held = make(map[string]struct{})
		s.principals[principal] = held
	}
	for _, role := range roles {
		held[role] = struct{}{}
	}
	return nil
}

// Deny removes roles from a principal.  Roles the principal does not
// hold are ignored.
func (s *Security) Deny(principal string, roles []string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	held := s.principals[principal]
	for _, role := range roles {
		delete(held, role)
	}
	if len(held) == 0 {
		delete(s.principals, principal)
	}
	return nil
}
