// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restserver publishes a data grid as a REST service.  The
// restclient package is a matching client.
//
// The representations of resources are defined in the restdata
// package.  Two versions of the API are served from one set of
// handlers: /v2, which selects operations on a resource with an
// "action" query parameter, and /v3, which gives each operation its
// own path.  GET /v3/openapi describes every route.
//
// HTTP Considerations
//
// Cache entries are returned in the media type the client asks for
// with the Accept: header, converted from the cache's storage type by
// the engine's encoding registry.  Every other resource is available
// as JSON, YAML, or (for simple values) plain text.
//
// Entry reads and writes support conditional requests: entity tags
// with If-Match and If-None-Match, and dates with If-Modified-Since
// and If-Unmodified-Since.  A read with Cache-Control: min-fresh=N
// treats an entry that will expire within N seconds as absent.
//
// Backups and restores are long-running.  Creating one answers 202
// Accepted; the client then polls the resource until it answers
// with the result.
//
// Errors
//
// Errors are returned with an appropriate HTTP status and a body
//
//     {"message": "...", "cause": "..."}
//
// or just the message if the client does not accept JSON.
//
// Authorization
//
// If the engine has a security service, the user named by HTTP
// basic authentication (or "anonymous") must hold the permission
// each route requires.  This package does not check passwords.
package restserver
