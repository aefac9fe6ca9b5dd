// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

// This file provides generic REST client code.

import (
	"bytes"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/jtacoma/uritemplates"
	"github.com/ugorji/go/codec"

	"github.com/diffeo/go-gridrest/restdata"
)

// resource is any object that has a URL.
type resource struct {
	URL  *url.URL
	HTTP *http.Client
}

// Template expands a URI template and resolves it relative to the
// resource's URL.  String values are percent-encoded, so a value
// containing "/" stays a single path segment.  Empty strings are
// dropped, so optional "{?name}" expressions disappear.
func (r *resource) Template(template string, vars map[string]interface{}) (*url.URL, error) {
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return nil, err
	}
	for k, v := range vars {
		if s, isString := v.(string); isString && s == "" {
			delete(vars, k)
		}
	}
	expanded, err := tmpl.Expand(vars)
	if err != nil {
		return nil, err
	}
	return r.URL.Parse(expanded)
}

func (r *resource) client() *http.Client {
	if r.HTTP != nil {
		return r.HTTP
	}
	return http.DefaultClient
}

// send performs an HTTP request and checks its status.  On success
// the caller must close the response body.
func (r *resource) send(req *http.Request) (*http.Response, error) {
	resp, err := r.client().Do(req)
	if err != nil {
		return nil, err
	}
	if err = checkHTTPStatus(resp); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// Do performs some HTTP action.  If in is non-nil, the request data is
// serialized and sent as the body of, for instance, a POST request.
// If out is non-nil, the response data (if any) is deserialized into
// this object, which must be of pointer type.  Returns the HTTP
// status code of a successful response.
func (r *resource) Do(method string, url *url.URL, in, out interface{}) (status int, err error) {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err = codec.NewEncoder(&buf, &codec.JsonHandle{}).Encode(in); err != nil {
			return 0, err
		}
		body = &buf
	}

	req, err := http.NewRequest(method, url.String(), body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", restdata.JSONMediaType)
	}
	req.Header.Set("Accept", restdata.JSONMediaType)

	resp, err := r.send(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = firstError(err, resp.Body.Close())
	}()

	if out != nil && resp.StatusCode == http.StatusOK {
		contentType := resp.Header.Get("Content-Type")
		err = restdata.Decode(contentType, resp.Body, out)
	}
	return resp.StatusCode, err
}

// GetFrom retrieves a resource from some other URL.  template is
// interpreted as a URI template, modified by vars, and the result
// taken relative to the resource's URL.  The result is stored in
// out, which must be of pointer type.
func (r *resource) GetFrom(template string, vars map[string]interface{}, out interface{}) error {
	url, err := r.Template(template, vars)
	if err == nil {
		_, err = r.Do(http.MethodGet, url, nil, out)
	}
	return err
}

// PutTo updates a resource at some other URL.
func (r *resource) PutTo(template string, vars map[string]interface{}, in, out interface{}) error {
	url, err := r.Template(template, vars)
	if err == nil {
		_, err = r.Do(http.MethodPut, url, in, out)
	}
	return err
}

// PostTo submits data to a service at some other URL and returns the
// response status.
func (r *resource) PostTo(template string, vars map[string]interface{}, in, out interface{}) (int, error) {
	url, err := r.Template(template, vars)
	if err != nil {
		return 0, err
	}
	return r.Do(http.MethodPost, url, in, out)
}

// DeleteAt deletes the resource at some other URL and returns the
// response status.
func (r *resource) DeleteAt(template string, vars map[string]interface{}) (int, error) {
	url, err := r.Template(template, vars)
	if err != nil {
		return 0, err
	}
	return r.Do(http.MethodDelete, url, nil, nil)
}

// HeadAt returns the status of a HEAD request.  Unlike the other
// methods, no status is an error.
func (r *resource) HeadAt(template string, vars map[string]interface{}) (int, error) {
	url, err := r.Template(template, vars)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(http.MethodHead, url.String(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, resp.Body.Close()
}

// ErrorHTTP is a catch-all error for non-successes returned from the
// REST endpoint.
type ErrorHTTP struct {
	// Response holds a pointer to the failing HTTP response.
	Response *http.Response

	// Body holds the contents of the message body, presumed to
	// be text.
	Body string
}

func (e ErrorHTTP) Error() string {
	if e.Body != "" {
		return e.Response.Status + ": " + strings.TrimSpace(e.Body)
	}
	return e.Response.Status
}

// HTTPStatus returns the status code of the failing response.
func (e ErrorHTTP) HTTPStatus() int {
	return e.Response.StatusCode
}

// checkHTTPStatus examines an HTTP response and returns an error if
// it is not successful.  304 Not Modified counts as success.
func checkHTTPStatus(resp *http.Response) error {
	if resp.StatusCode/100 == 2 || resp.StatusCode == http.StatusNotModified {
		return nil
	}

	// Always collect the entire body; we will need it as a fallback
	// and can only parse it once.
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Take a shot at decoding it as a better error
	var errResp restdata.ErrorResponse
	contentType := resp.Header.Get("Content-Type")
	if err := restdata.Decode(contentType, bytes.NewReader(body), &errResp); err == nil {
		if errResp.Message == "" {
			errResp.Message = http.StatusText(resp.StatusCode)
		}
		return errResp.ToError(resp.StatusCode)
	}

	return ErrorHTTP{Response: resp, Body: string(body)}
}

func firstError(e1, e2 error) error {
	if e1 != nil {
		return e1
	}
	return e2
}
