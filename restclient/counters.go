// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"net/http"
	"strconv"

	"github.com/diffeo/go-gridrest/restdata"
)

func counterVars(name string, more ...string) map[string]interface{} {
	vars := map[string]interface{}{"counterName": name}
	for i := 0; i+1 < len(more); i += 2 {
		vars[more[i]] = more[i+1]
	}
	return vars
}

// CounterNames lists the server's counters.
func (c *Client) CounterNames() (names []string, err error) {
	err = c.GetFrom("v3/counters", map[string]interface{}{}, &names)
	return
}

// DefineCounter creates a counter.  Returns false if a counter with
// this name already existed, in which case nothing changed.
func (c *Client) DefineCounter(name string, def restdata.Counter) (bool, error) {
	status, err := c.PostTo("v3/counters/{counterName}", counterVars(name), def, nil)
	if err != nil {
		return false, err
	}
	return status != http.StatusNotModified, nil
}

// CounterConfig returns a counter's definition.
func (c *Client) CounterConfig(name string) (def restdata.Counter, err error) {
	err = c.GetFrom("v3/counters/{counterName}/config", counterVars(name), &def)
	return
}

// CounterValue returns a counter's current value.
func (c *Client) CounterValue(name string) (value int64, err error) {
	err = c.GetFrom("v3/counters/{counterName}", counterVars(name), &value)
	return
}

// AddCounter adds delta to a counter and returns the new value.
// Weak counters return 0.
func (c *Client) AddCounter(name string, delta int64) (value int64, err error) {
	_, err = c.PostTo("v3/counters/{counterName}/_add{?delta}",
		counterVars(name, "delta", strconv.FormatInt(delta, 10)), nil, &value)
	return
}

// IncrementCounter adds one to a counter.
func (c *Client) IncrementCounter(name string) (value int64, err error) {
	_, err = c.PostTo("v3/counters/{counterName}/_increment", counterVars(name), nil, &value)
	return
}

// DecrementCounter subtracts one from a counter.
func (c *Client) DecrementCounter(name string) (value int64, err error) {
	_, err = c.PostTo("v3/counters/{counterName}/_decrement", counterVars(name), nil, &value)
	return
}

// CompareAndSetCounter sets a strong counter to update if its value
// is expect.
func (c *Client) CompareAndSetCounter(name string, expect, update int64) (swapped bool, err error) {
	_, err = c.PostTo("v3/counters/{counterName}/_compareAndSet{?expect,update}", counterVars(name,
		"expect", strconv.FormatInt(expect, 10),
		"update", strconv.FormatInt(update, 10)), nil, &swapped)
	return
}

// ResetCounter returns a counter to its initial value.
func (c *Client) ResetCounter(name string) error {
	_, err := c.PostTo("v3/counters/{counterName}/_reset", counterVars(name), nil, nil)
	return err
}

// RemoveCounter deletes a counter.
func (c *Client) RemoveCounter(name string) error {
	_, err := c.DeleteAt("v3/counters/{counterName}", counterVars(name))
	return err
}
