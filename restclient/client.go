// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restclient provides an HTTP client for the REST API served
// by the "restserver" package.
//
// The daemon in github.com/diffeo/go-gridrest/cmd/gridrestd runs a
// compatible REST server.  Call New() with the base URL of that
// service, including any path prefix; for instance,
//
//     c, err := restclient.New("http://localhost:11222/rest/")
package restclient

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/diffeo/go-gridrest/restdata"
)

// Client talks to one REST server through its /v3 API.
type Client struct {
	resource
}

// New creates a client for the server at baseURL, and checks that the
// server is healthy.
func New(baseURL string) (*Client, error) {
	return NewWithHTTPClient(baseURL, nil)
}

// NewWithHTTPClient creates a client that sends its requests through
// httpClient, which may be nil to use http.DefaultClient.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{resource: resource{URL: u, HTTP: httpClient}}
	if _, err := c.Health(); err != nil {
		return nil, err
	}
	return c, nil
}

// Health fetches the server's health check.
func (c *Client) Health() (health restdata.Health, err error) {
	err = c.GetFrom("v3/container/health", map[string]interface{}{}, &health)
	return
}

// Container describes the server's cache container.
func (c *Client) Container() (container restdata.Container, err error) {
	err = c.GetFrom("v3/container", map[string]interface{}{}, &container)
	return
}

// ACL describes the calling user's access.
func (c *Client) ACL() (acl restdata.ACL, err error) {
	err = c.GetFrom("v3/security/user/acl", map[string]interface{}{}, &acl)
	return
}

// Tasks lists the tasks the server can run.
func (c *Client) Tasks() (tasks []restdata.Task, err error) {
	err = c.GetFrom("v3/tasks", map[string]interface{}{}, &tasks)
	return
}

// ExecTask runs a task and returns its decoded result, which is nil
// if the task returned nothing.
func (c *Client) ExecTask(name string, params map[string]string) (result interface{}, err error) {
	u, err := c.Template("v3/tasks/{taskName}/_exec", map[string]interface{}{"taskName": name})
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		query := url.Values{}
		for k, v := range params {
			query.Set("param."+k, v)
		}
		u.RawQuery = query.Encode()
	}
	_, err = c.Do(http.MethodPost, u, nil, &result)
	return
}
