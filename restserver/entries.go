// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

// Entry request and response headers.
const (
	headerTimeToLive     = "timeToLiveSeconds"
	headerMaxIdle        = "maxIdleTimeSeconds"
	headerKeyContentType = "Key-Content-Type"
	headerPerformAsync   = "performAsync"
	headerPrimaryOwner   = "Cluster-Primary-Owner"
	headerNodeName       = "Cluster-Node-Name"
	headerServerAddress  = "Cluster-Server-Address"
)

// cache looks up the cache named by the request path.
func (api *restAPI) cache(req *Request) (grid.Cache, error) {
	if api.services.Grid == nil {
		return nil, restdata.ErrNotImplemented{Text: "No grid engine"}
	}
	return api.services.Grid.Cache(req.Var("cacheName"))
}

// entryKey returns the requested key, after checking that any
// Key-Content-Type: header is well-formed.
func entryKey(req *Request) (string, error) {
	if kct := req.Header.Get(headerKeyContentType); kct != "" {
		if _, err := grid.ParseMediaType(kct); err != nil {
			return "", restdata.ErrBadRequest{Err: err}
		}
	}
	key := req.Var("cacheKey")
	if key == "" {
		return "", grid.ErrNoKey
	}
	return key, nil
}

func errNoEntry(cache, key string) error {
	return restdata.ErrNotFound{Err: fmt.Errorf("Key %q not found in cache %v", key, cache)}
}

// getEntry answers GET and HEAD of a single entry.
func (api *restAPI) getEntry(req *Request) (*Response, error) {
	cache, err := api.cache(req)
	if err != nil {
		return nil, err
	}
	key, err := entryKey(req)
	if err != nil {
		return nil, err
	}
	entry, err := cache.Get(key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, errNoEntry(cache.Name(), key)
	}
	mediaType, err := Negotiate(req.Accept, entry.MediaType, api.services.Encoding)
	if err != nil {
		return nil, err
	}

	now := api.clock.Now()
	cc, err := NewConditionalContext(req.Header, entry, now)
	if err != nil {
		return nil, err
	}
	switch cc.Evaluate() {
	case StaleOmit:
		return nil, errNoEntry(cache.Name(), key)
	case NotModified:
		return withStatus(http.StatusNotModified).setHeader("ETag", quote(cc.ETag)), nil
	case PreconditionFailed:
		return nil, restdata.ErrPreconditionFailed{}
	}

	value := entry.Value
	if mediaType.MatchesAll() {
		mediaType = entry.MediaType
	} else if !mediaType.Is(entry.MediaType) {
		if api.services.Encoding == nil {
			return nil, restdata.ErrNotAcceptable{Accept: acceptString(req.Accept)}
		}
		value, err = api.services.Encoding.Transcode(entry.Value, entry.MediaType, mediaType)
		if errors.As(err, new(grid.ErrUnsupportedConversion)) {
			return nil, restdata.ErrNotAcceptable{Accept: acceptString(req.Accept)}
		}
		if err != nil {
			return nil, err
		}
	}

	resp := rawBody(mediaType.String(), value)
	resp.Header = make(http.Header)
	entryHeaders(resp.Header, entry, cc.ETag, now)
	if req.BoolParam("extended", false) {
		g := api.services.Grid
		resp.Header.Set(headerPrimaryOwner, g.NodeName())
		resp.Header.Set(headerNodeName, g.NodeName())
		if addr := g.NodeAddress(); addr != "" {
			resp.Header.Set(headerServerAddress, addr)
		}
	}
	return resp, nil
}

// lifetimeHeader reads a lifetime header in seconds.  Absent and
// zero mean the cache default; negative means immortal.
func lifetimeHeader(req *Request, name string) (time.Duration, error) {
	seconds, err := req.IntHeader(name, 0)
	if err != nil {
		return 0, err
	}
	if seconds < 0 {
		return -1, nil
	}
	return time.Duration(seconds) * time.Second, nil
}

// writeValue works out the bytes and options to store for a PUT or
// POST body.  Values are converted to the cache's storage type; a
// cache of unknown type stores the body as sent.
func (api *restAPI) writeValue(req *Request, cache grid.Cache) ([]byte, grid.WriteOptions, error) {
	var options grid.WriteOptions
	config, err := cache.Config()
	if err != nil {
		return nil, options, err
	}
	storage := config.Encoding
	if storage.IsZero() {
		storage = grid.UnknownType
	}

	def := storage
	if storage.Is(grid.UnknownType) {
		def = grid.OctetStreamType
	}
	contentType, err := req.ContentType(def)
	if err != nil {
		return nil, options, err
	}
	value, err := req.ReadBody()
	if err != nil {
		return nil, options, err
	}
	if value == nil {
		value = []byte{}
	}

	options.MediaType = contentType
	if !storage.Is(grid.UnknownType) && !storage.Is(contentType) {
		if api.services.Encoding == nil {
			return nil, options, restdata.ErrUnsupportedMediaType{Type: contentType.String()}
		}
		value, err = api.services.Encoding.Transcode(value, contentType, storage)
		if errors.As(err, new(grid.ErrUnsupportedConversion)) {
			return nil, options, restdata.ErrUnsupportedMediaType{Type: contentType.String()}
		}
		if err != nil {
			return nil, options, restdata.ErrBadRequest{Err: err}
		}
		options.MediaType = storage
	}

	if options.Lifespan, err = lifetimeHeader(req, headerTimeToLive); err != nil {
		return nil, options, err
	}
	if options.MaxIdle, err = lifetimeHeader(req, headerMaxIdle); err != nil {
		return nil, options, err
	}
	return value, options, nil
}

// writeConditions builds the conditional context for a write.  Only
// the entity-tag and If-Unmodified-Since preconditions apply.
func writeConditions(req *Request, entry *grid.Entry, now time.Time) (ConditionalContext, error) {
	cc, err := NewConditionalContext(req.Header, entry, now)
	cc.IfModifiedSince = nil
	cc.MinFresh = nil
	return cc, err
}

// storedResponse is the reply to a successful write.
func storedResponse(options grid.WriteOptions, value []byte) *Response {
	return noContent().setHeader("ETag", quote(ETag(options.MediaType, value)))
}

// putEntry answers PUT, creating or replacing an entry.
func (api *restAPI) putEntry(req *Request) (*Response, error) {
	return api.writeEntry(req, false)
}

// postEntry answers POST, which only creates entries.
func (api *restAPI) postEntry(req *Request) (*Response, error) {
	return api.writeEntry(req, true)
}

func (api *restAPI) writeEntry(req *Request, create bool) (*Response, error) {
	cache, err := api.cache(req)
	if err != nil {
		return nil, err
	}
	key, err := entryKey(req)
	if err != nil {
		return nil, err
	}
	existing, err := cache.Get(key)
	if err != nil {
		return nil, err
	}
	if create && existing != nil {
		return nil, restdata.ErrConflict{Err: fmt.Errorf("An entry for key %q already exists", key)}
	}

	var cc ConditionalContext
	if existing != nil {
		cc, err = writeConditions(req, existing, api.clock.Now())
		if err != nil {
			return nil, err
		}
		switch cc.Evaluate() {
		case NotModified:
			return withStatus(http.StatusNotModified).setHeader("ETag", quote(cc.ETag)), nil
		case PreconditionFailed:
			return nil, restdata.ErrPreconditionFailed{}
		}
	} else if parseTags(req.Header, "If-Match") != nil {
		return nil, restdata.ErrPreconditionFailed{Header: "If-Match"}
	}

	value, options, err := api.writeValue(req, cache)
	if err != nil {
		return nil, err
	}

	switch {
	case create:
		stored, err := cache.PutIfAbsent(key, value, options)
		if err != nil {
			return nil, err
		}
		if !stored {
			return nil, restdata.ErrConflict{Err: fmt.Errorf("An entry for key %q already exists", key)}
		}
	case existing != nil && cc.IfMatch != nil:
		replaced, err := cache.Replace(key, existing.Value, value, options)
		if err != nil {
			return nil, err
		}
		if !replaced {
			return nil, restdata.ErrPreconditionFailed{Header: "If-Match"}
		}
	case req.Header.Get(headerPerformAsync) == "true":
		// The write outlives the request, so it does not use the
		// request's context
		future := api.executor.Submit(context.Background(), func(context.Context) (*Response, error) {
			return nil, cache.Put(key, value, options)
		})
		future.Then(func(_ *Response, err error) (*Response, error) {
			if err != nil {
				api.log.WithError(err).WithFields(logrus.Fields{
					"cache": cache.Name(),
					"key":   key,
				}).Warn("asynchronous put failed")
			}
			return nil, err
		})
		return &Response{Status: http.StatusOK}, nil
	default:
		if err := cache.Put(key, value, options); err != nil {
			return nil, err
		}
	}
	return storedResponse(options, value), nil
}

// deleteEntry answers DELETE of a single entry.
func (api *restAPI) deleteEntry(req *Request) (*Response, error) {
	cache, err := api.cache(req)
	if err != nil {
		return nil, err
	}
	key, err := entryKey(req)
	if err != nil {
		return nil, err
	}
	existing, err := cache.Get(key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errNoEntry(cache.Name(), key)
	}
	cc, err := writeConditions(req, existing, api.clock.Now())
	if err != nil {
		return nil, err
	}
	// A matching If-None-Match is a failed precondition for
	// anything but GET and HEAD
	if cc.Evaluate() != ServeFull {
		return nil, restdata.ErrPreconditionFailed{}
	}
	removed, err := cache.Remove(key)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, errNoEntry(cache.Name(), key)
	}
	return noContent(), nil
}
