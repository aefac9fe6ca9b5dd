// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains conditional request evaluation (RFC 7232) for
// cache entries.
//
// ETags are a MurmurHash3 of the stored value.  This is not a
// cryptographic hash, and two different values that collide will
// produce a spurious 304 Not Modified.  Changing the hash would
// change every ETag clients have cached, so it stays.

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

// Decision is the outcome of evaluating a conditional request.
type Decision int

const (
	// ServeFull means the request proceeds normally.
	ServeFull Decision = iota

	// NotModified means the client's copy is current (304).
	NotModified

	// PreconditionFailed means a precondition did not hold (412).
	PreconditionFailed

	// StaleOmit means the entry will not stay fresh as long as
	// the client requires, and is treated as absent.
	StaleOmit
)

func (d Decision) String() string {
	switch d {
	case ServeFull:
		return "ServeFull"
	case NotModified:
		return "NotModified"
	case PreconditionFailed:
		return "PreconditionFailed"
	case StaleOmit:
		return "StaleOmit"
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// ETag computes the entity tag of a value stored in a media type.
// It does not include the surrounding quotes.
func ETag(mediaType grid.MediaType, value []byte) string {
	h1, _ := murmur3.Sum128(value)
	return mediaType.Base() + "-" + strconv.FormatUint(h1, 10)
}

// ConditionalContext holds everything needed to evaluate a
// conditional request against one entry.
type ConditionalContext struct {
	ETag         string
	LastModified time.Time

	// Expiry is when the entry expires; HasExpiry is false for
	// immortal entries.
	Expiry    time.Time
	HasExpiry bool
	Now       time.Time

	// IfNoneMatch and IfMatch hold the client's tags, unquoted.
	// nil means the header was absent.
	IfNoneMatch []string
	IfMatch     []string

	IfModifiedSince   *time.Time
	IfUnmodifiedSince *time.Time

	// MinFresh is the Cache-Control min-fresh value in seconds,
	// or nil.
	MinFresh *int64
}

// parseTags splits an If-Match or If-None-Match header into tags,
// dropping quotes and weakness markers.  Returns nil if the header is
// absent.
func parseTags(header http.Header, name string) []string {
	values, present := header[http.CanonicalHeaderKey(name)]
	if !present {
		return nil
	}
	tags := []string{}
	for _, value := range values {
		for _, tag := range strings.Split(value, ",") {
			tag = strings.TrimSpace(tag)
			tag = strings.TrimPrefix(tag, "W/")
			tag = strings.Trim(tag, `"`)
			if tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// parseDate parses an HTTP date header.  Malformed dates are ignored,
// as RFC 7232 requires.
func parseDate(header http.Header, name string) *time.Time {
	value := header.Get(name)
	if value == "" {
		return nil
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return nil
	}
	return &t
}

// parseMinFresh extracts min-fresh from Cache-Control.
func parseMinFresh(header http.Header) (*int64, error) {
	for _, value := range header[http.CanonicalHeaderKey("Cache-Control")] {
		for _, directive := range strings.Split(value, ",") {
			directive = strings.TrimSpace(directive)
			parts := strings.SplitN(directive, "=", 2)
			if !strings.EqualFold(parts[0], "min-fresh") {
				continue
			}
			if len(parts) != 2 {
				return nil, restdata.ErrBadRequest{Err: fmt.Errorf("Invalid Cache-Control directive %q", directive)}
			}
			seconds, err := strconv.ParseInt(strings.Trim(parts[1], `"`), 10, 64)
			if err != nil || seconds < 0 {
				return nil, restdata.ErrBadRequest{Err: fmt.Errorf("Invalid Cache-Control directive %q", directive)}
			}
			return &seconds, nil
		}
	}
	return nil, nil
}

// NewConditionalContext builds the context for evaluating a request
// with the given headers against entry at time now.
func NewConditionalContext(header http.Header, entry *grid.Entry, now time.Time) (ConditionalContext, error) {
	expiry, mortal := entry.Expiry()
	cc := ConditionalContext{
		ETag:              ETag(entry.MediaType, entry.Value),
		LastModified:      entry.Created.Truncate(time.Second),
		Expiry:            expiry,
		HasExpiry:         mortal,
		Now:               now,
		IfNoneMatch:       parseTags(header, "If-None-Match"),
		IfMatch:           parseTags(header, "If-Match"),
		IfModifiedSince:   parseDate(header, "If-Modified-Since"),
		IfUnmodifiedSince: parseDate(header, "If-Unmodified-Since"),
	}
	var err error
	cc.MinFresh, err = parseMinFresh(header)
	return cc, err
}

// matchesTag returns true if tags includes etag or "*".
func matchesTag(tags []string, etag string) bool {
	for _, tag := range tags {
		if tag == "*" || tag == etag {
			return true
		}
	}
	return false
}

// Evaluate decides how to answer the request.  The first rule that
// applies wins:
//
//  1. min-fresh is set and the entry is immortal or expires sooner:
//     StaleOmit
//  2. If-None-Match matches: NotModified
//  3. If-Match is present and does not match: PreconditionFailed
//  4. If-Unmodified-Since is before the last modification:
//     PreconditionFailed
//  5. If-Modified-Since is not before the last modification:
//     NotModified
//  6. ServeFull
func (cc ConditionalContext) Evaluate() Decision {
	if cc.MinFresh != nil {
		// Compare whole seconds; min-fresh may not fit in a Duration
		remaining := int64(cc.Expiry.Sub(cc.Now) / time.Second)
		if !cc.HasExpiry || remaining < *cc.MinFresh {
			return StaleOmit
		}
	}
	if cc.IfNoneMatch != nil && matchesTag(cc.IfNoneMatch, cc.ETag) {
		return NotModified
	}
	if cc.IfMatch != nil && !matchesTag(cc.IfMatch, cc.ETag) {
		return PreconditionFailed
	}
	if cc.IfUnmodifiedSince != nil && cc.LastModified.After(*cc.IfUnmodifiedSince) {
		return PreconditionFailed
	}
	if cc.IfModifiedSince != nil && !cc.LastModified.After(*cc.IfModifiedSince) {
		return NotModified
	}
	return ServeFull
}

// quote wraps an entity tag in quotes for the wire.
func quote(etag string) string {
	return `"` + etag + `"`
}

// entryHeaders sets the caching headers of an entry response.
func entryHeaders(h http.Header, entry *grid.Entry, etag string, now time.Time) {
	h.Set("ETag", quote(etag))
	h.Set("Last-Modified", entry.Created.UTC().Format(http.TimeFormat))
	if expiry, mortal := entry.Expiry(); mortal {
		h.Set("Expires", expiry.UTC().Format(http.TimeFormat))
		if maxAge := int64(expiry.Sub(now) / time.Second); maxAge > 0 {
			h.Set("Cache-Control", "max-age="+strconv.FormatInt(maxAge, 10))
		} else {
			h.Set("Cache-Control", "no-cache")
		}
	}
	if entry.Lifespan > 0 {
		h.Set(headerTimeToLive, strconv.FormatInt(int64(entry.Lifespan/time.Second), 10))
	}
	if entry.MaxIdle > 0 {
		h.Set(headerMaxIdle, strconv.FormatInt(int64(entry.MaxIdle/time.Second), 10))
	}
}
