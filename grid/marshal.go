// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package grid

import (
	"fmt"
	"strings"
)

// String returns the wire name of an operation status.
func (status OperationStatus) String() string {
	b, err := status.MarshalText()
	if err != nil {
		return fmt.Sprintf("OperationStatus(%d)", int(status))
	}
	return string(b)
}

// MarshalText returns a string representing an operation status.
func (status OperationStatus) MarshalText() ([]byte, error) {
	switch status {
	case OperationNotFound:
		return []byte("NOT_FOUND"), nil
	case OperationInProgress:
		return []byte("IN_PROGRESS"), nil
	case OperationComplete:
		return []byte("COMPLETE"), nil
	case OperationFailed:
		return []byte("FAILED"), nil
	default:
		return nil, fmt.Errorf("invalid status (marshal, %+v)", int(status))
	}
}

// UnmarshalText populates an operation status from a string.
func (status *OperationStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "NOT_FOUND":
		*status = OperationNotFound
	case "IN_PROGRESS":
		*status = OperationInProgress
	case "COMPLETE":
		*status = OperationComplete
	case "FAILED":
		*status = OperationFailed
	default:
		return fmt.Errorf("invalid status (unmarshal, %+v)", string(text))
	}
	return nil
}

// MarshalText returns a string representing a counter type.
func (t CounterType) MarshalText() ([]byte, error) {
	switch t {
	case StrongCounter:
		return []byte("strong"), nil
	case WeakCounter:
		return []byte("weak"), nil
	default:
		return nil, fmt.Errorf("invalid counter type (marshal, %+v)", int(t))
	}
}

// UnmarshalText populates a counter type from a string.
func (t *CounterType) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "strong", "strong-counter":
		*t = StrongCounter
	case "weak", "weak-counter":
		*t = WeakCounter
	default:
		return fmt.Errorf("invalid counter type (unmarshal, %+v)", string(text))
	}
	return nil
}

var permissionNames = []struct {
	Permission Permission
	Name       string
}{
	{PermissionRead, "READ"},
	{PermissionWrite, "WRITE"},
	{PermissionExec, "EXEC"},
	{PermissionCreate, "CREATE"},
	{PermissionMonitor, "MONITOR"},
	{PermissionBulk, "BULK"},
	{PermissionAdmin, "ADMIN"},
}

// Names returns the names of the individual permissions in p.
func (p Permission) Names() []string {
	if p == PermissionAll {
		return []string{"ALL"}
	}
	names := []string{}
	for _, pn := range permissionNames {
		if p&pn.Permission != 0 {
			names = append(names, pn.Name)
		}
	}
	return names
}

// String renders a permission set as names joined by "|".
func (p Permission) String() string {
	if p == PermissionNone {
		return "NONE"
	}
	return strings.Join(p.Names(), "|")
}

// ParsePermission parses a single permission name, "ALL" or "NONE".
func ParsePermission(name string) (Permission, error) {
	switch strings.ToUpper(name) {
	case "ALL":
		return PermissionAll, nil
	case "NONE":
		return PermissionNone, nil
	}
	for _, pn := range permissionNames {
		if strings.EqualFold(pn.Name, name) {
			return pn.Permission, nil
		}
	}
	return PermissionNone, fmt.Errorf("invalid permission %q", name)
}
