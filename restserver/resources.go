// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file lists every REST operation once.  Both API versions are
// built from this list: /v2 selects most operations on a resource
// with an "action" query parameter, while /v3 gives them their own
// path segment, conventionally starting with "_".

import (
	"net/http"

	"github.com/diffeo/go-gridrest/grid"
)

// resource describes one operation in both API versions.
type resource struct {
	methods []string

	// v2Path and v2Action locate the operation in /v2; an empty
	// v2Path leaves it out of /v2.
	v2Path   string
	v2Action string

	// v3Path locates the operation in /v3; empty leaves it out.
	v3Path string

	handler    HandlerFunc
	permission grid.Permission
	audit      string
	anonymous  bool
	name       string
	id         string
	params     []RouteParam
	responses  map[int]string
}

var (
	get     = []string{http.MethodGet}
	getHead = []string{http.MethodGet, http.MethodHead}
	post    = []string{http.MethodPost}
	put     = []string{http.MethodPut}
	del     = []string{http.MethodDelete}
	head    = []string{http.MethodHead}
	getPost = []string{http.MethodGet, http.MethodPost}
)

func queryParam(name, description string) RouteParam {
	return RouteParam{Name: name, In: "query", Description: description}
}

func headerParam(name, description string) RouteParam {
	return RouteParam{Name: name, In: "header", Description: description}
}

var (
	entryParams = []RouteParam{
		headerParam(headerKeyContentType, "media type of the key"),
		headerParam(headerTimeToLive, "lifespan in seconds; 0 uses the cache default, negative is immortal"),
		headerParam(headerMaxIdle, "maximum idle time in seconds; 0 uses the cache default, negative is immortal"),
		headerParam(headerPerformAsync, "if true, answer before the write completes"),
		headerParam("If-Match", "entity tags the current entry must match"),
		headerParam("If-None-Match", "entity tags the current entry must not match"),
		headerParam("If-Unmodified-Since", "time the entry must not have changed since"),
	}
	searchParams = []RouteParam{
		queryParam("query", "query text"),
		queryParam("offset", "index of the first hit to return"),
		queryParam("max_results", "maximum number of hits to return"),
		queryParam("hit_count_accuracy", "hit count past which the count may be estimated"),
	}
	lroResponses = map[int]string{
		http.StatusAccepted: "In progress",
		http.StatusNotFound: "No such operation",
	}
)

func (api *restAPI) resources() []resource {
	backups := lroProtocol{api: api, kind: backupOperation}
	restores := lroProtocol{api: api, kind: restoreOperation}
	one, minusOne := int64(1), int64(-1)

	return []resource{
		// Caches
		{
			methods: get, v2Path: "/caches", v3Path: "/caches",
			handler: api.blocking(api.listCaches),
			name:    "List caches", id: "listCaches",
		},
		{
			methods: []string{http.MethodPost, http.MethodPut},
			v2Path:  "/caches/{cacheName}", v3Path: "/caches/{cacheName}",
			handler:    api.blocking(api.createCache),
			permission: grid.PermissionCreate, audit: "cache",
			name: "Create a cache", id: "createCache",
			params: []RouteParam{queryParam("template", "template to base the cache on")},
			responses: map[int]string{
				http.StatusNoContent: "Created",
				http.StatusConflict:  "Cache already exists",
			},
		},
		{
			methods: del, v2Path: "/caches/{cacheName}", v3Path: "/caches/{cacheName}",
			handler:    api.blocking(api.deleteCache),
			permission: grid.PermissionCreate, audit: "cache",
			name: "Remove a cache", id: "deleteCache",
		},
		{
			methods: head, v2Path: "/caches/{cacheName}", v3Path: "/caches/{cacheName}",
			handler: api.blocking(api.cacheExists),
			name:    "Check that a cache exists", id: "cacheExists",
			responses: map[int]string{
				http.StatusNoContent: "Exists",
				http.StatusNotFound:  "Does not exist",
			},
		},
		{
			methods: post, v2Path: "/caches/{cacheName}", v2Action: "clear",
			v3Path:     "/caches/{cacheName}/_clear",
			handler:    api.blocking(api.clearCache),
			permission: grid.PermissionBulk | grid.PermissionWrite,
			name:       "Remove every entry", id: "clearCache",
		},
		{
			methods: get, v2Path: "/caches/{cacheName}", v2Action: "size",
			v3Path:     "/caches/{cacheName}/_size",
			handler:    api.blocking(api.cacheSize),
			permission: grid.PermissionBulk,
			name:       "Count entries", id: "cacheSize",
		},
		{
			methods: get, v2Path: "/caches/{cacheName}", v2Action: "keys",
			v3Path:     "/caches/{cacheName}/keys",
			handler:    api.blocking(api.cacheKeys),
			permission: grid.PermissionBulk,
			name:       "List keys", id: "cacheKeys",
			params: []RouteParam{queryParam("limit", "maximum number of keys")},
		},
		{
			methods: get, v2Path: "/caches/{cacheName}", v2Action: "entries",
			v3Path:     "/caches/{cacheName}/entries",
			handler:    api.blocking(api.cacheEntries),
			permission: grid.PermissionBulk,
			name:       "List entries", id: "cacheEntries",
			params: []RouteParam{queryParam("limit", "maximum number of entries")},
		},
		{
			methods: get, v2Path: "/caches/{cacheName}", v2Action: "config",
			v3Path:     "/caches/{cacheName}/config",
			handler:    api.blocking(api.cacheConfig),
			permission: grid.PermissionMonitor,
			name:       "Get the cache configuration", id: "cacheConfig",
		},
		{
			methods: get, v2Path: "/caches/{cacheName}", v2Action: "stats",
			v3Path:     "/caches/{cacheName}/_stats",
			handler:    api.blocking(api.cacheStats),
			permission: grid.PermissionMonitor,
			name:       "Get cache statistics", id: "cacheStats",
		},
		{
			methods: post, v2Path: "/caches/{cacheName}", v2Action: "stats-reset",
			v3Path:     "/caches/{cacheName}/_stats-reset",
			handler:    api.blocking(api.resetStats),
			permission: grid.PermissionAdmin,
			name:       "Reset cache statistics", id: "resetStats",
		},

		// Search
		{
			methods: getPost, v2Path: "/caches/{cacheName}", v2Action: "search",
			v3Path:     "/caches/{cacheName}/_search",
			handler:    api.blocking(api.search),
			permission: grid.PermissionBulk,
			name:       "Search a cache", id: "search",
			params: searchParams,
		},
		{
			methods: post, v2Path: "/caches/{cacheName}/search/indexes", v2Action: "reindex",
			v3Path:     "/caches/{cacheName}/search/indexes/_reindex",
			handler:    api.reindex,
			permission: grid.PermissionAdmin, audit: "cache",
			name: "Rebuild the search index", id: "reindex",
			params: []RouteParam{queryParam("mode", `"async" to answer without waiting`)},
			responses: map[int]string{
				http.StatusNoContent: "Rebuilt",
				http.StatusAccepted:  "Started",
			},
		},
		{
			methods: post, v2Path: "/caches/{cacheName}/search/indexes", v2Action: "clear",
			v3Path:     "/caches/{cacheName}/search/indexes/_clear",
			handler:    api.blocking(api.clearIndex),
			permission: grid.PermissionAdmin, audit: "cache",
			name: "Clear the search index", id: "clearIndex",
		},

		// Entries
		{
			methods: getHead, v2Path: "/caches/{cacheName}/{cacheKey}",
			v3Path:     "/caches/{cacheName}/entries/{cacheKey}",
			handler:    api.blocking(api.getEntry),
			permission: grid.PermissionRead,
			name:       "Get an entry", id: "getEntry",
			params: []RouteParam{
				queryParam("extended", "if true, add cluster headers"),
				headerParam("If-None-Match", "entity tags of copies the client has"),
				headerParam("If-Modified-Since", "time of the copy the client has"),
				headerParam("Cache-Control", "min-fresh=N hides entries expiring within N seconds"),
			},
			responses: map[int]string{
				http.StatusOK:            "OK",
				http.StatusNotModified:   "Not modified",
				http.StatusNotFound:      "No such entry",
				http.StatusNotAcceptable: "No acceptable representation",
			},
		},
		{
			methods: put, v2Path: "/caches/{cacheName}/{cacheKey}",
			v3Path:     "/caches/{cacheName}/entries/{cacheKey}",
			handler:    api.blocking(api.putEntry),
			permission: grid.PermissionWrite,
			name:       "Create or replace an entry", id: "putEntry",
			params: entryParams,
			responses: map[int]string{
				http.StatusNoContent:          "Stored",
				http.StatusNotModified:        "Not modified",
				http.StatusPreconditionFailed: "Precondition failed",
			},
		},
		{
			methods: post, v2Path: "/caches/{cacheName}/{cacheKey}",
			v3Path:     "/caches/{cacheName}/entries/{cacheKey}",
			handler:    api.blocking(api.postEntry),
			permission: grid.PermissionWrite,
			name:       "Create an entry", id: "postEntry",
			params: entryParams,
			responses: map[int]string{
				http.StatusNoContent: "Stored",
				http.StatusConflict:  "Entry exists",
			},
		},
		{
			methods: del, v2Path: "/caches/{cacheName}/{cacheKey}",
			v3Path:     "/caches/{cacheName}/entries/{cacheKey}",
			handler:    api.blocking(api.deleteEntry),
			permission: grid.PermissionWrite,
			name:       "Remove an entry", id: "deleteEntry",
		},

		// Cross-site replication
		{
			methods: get, v2Path: "/caches/{cacheName}/x-site/backups",
			v3Path:     "/caches/{cacheName}/x-site/backups",
			handler:    api.blocking(api.siteStatus),
			permission: grid.PermissionAdmin,
			name:       "Get backup site status", id: "siteStatus",
		},
		{
			methods: get, v2Path: "/caches/{cacheName}/x-site/backups", v2Action: "push-state-status",
			v3Path:     "/caches/{cacheName}/x-site/push-state-status",
			handler:    api.blocking(api.pushStateStatus),
			permission: grid.PermissionAdmin,
			name:       "Get state push status", id: "pushStateStatus",
		},
		{
			methods: post, v2Path: "/caches/{cacheName}/x-site/backups/{site}", v2Action: "take-offline",
			v3Path:     "/caches/{cacheName}/x-site/backups/{site}/_take-offline",
			handler:    api.blocking(api.siteOperation(takeOffline)),
			permission: grid.PermissionAdmin, audit: "cache",
			name: "Take a backup site offline", id: "takeSiteOffline",
		},
		{
			methods: post, v2Path: "/caches/{cacheName}/x-site/backups/{site}", v2Action: "bring-online",
			v3Path:     "/caches/{cacheName}/x-site/backups/{site}/_bring-online",
			handler:    api.blocking(api.siteOperation(bringOnline)),
			permission: grid.PermissionAdmin, audit: "cache",
			name: "Bring a backup site online", id: "bringSiteOnline",
		},
		{
			methods: post, v2Path: "/caches/{cacheName}/x-site/backups/{site}", v2Action: "start-push-state",
			v3Path:     "/caches/{cacheName}/x-site/backups/{site}/_start-push-state",
			handler:    api.blocking(api.siteOperation(pushState)),
			permission: grid.PermissionAdmin, audit: "cache",
			name: "Push state to a backup site", id: "pushState",
		},
		{
			methods: post, v2Path: "/caches/{cacheName}/x-site/backups/{site}", v2Action: "cancel-push-state",
			v3Path:     "/caches/{cacheName}/x-site/backups/{site}/_cancel-push-state",
			handler:    api.blocking(api.siteOperation(cancelPushState)),
			permission: grid.PermissionAdmin, audit: "cache",
			name: "Cancel a state push", id: "cancelPushState",
		},

		// Counters
		{
			methods: get, v2Path: "/counters", v3Path: "/counters",
			handler:    api.blocking(api.listCounters),
			permission: grid.PermissionRead,
			name:       "List counters", id: "listCounters",
		},
		{
			methods: post, v2Path: "/counters/{counterName}", v3Path: "/counters/{counterName}",
			handler:    api.blocking(api.createCounter),
			permission: grid.PermissionCreate,
			name:       "Define a counter", id: "createCounter",
			responses: map[int]string{
				http.StatusNoContent:   "Created",
				http.StatusNotModified: "Already defined",
			},
		},
		{
			methods: get, v2Path: "/counters/{counterName}", v3Path: "/counters/{counterName}",
			handler:    api.blocking(api.counterValue),
			permission: grid.PermissionRead,
			name:       "Get a counter value", id: "counterValue",
		},
		{
			methods: get, v2Path: "/counters/{counterName}", v2Action: "config",
			v3Path:     "/counters/{counterName}/config",
			handler:    api.blocking(api.counterConfig),
			permission: grid.PermissionRead,
			name:       "Get a counter definition", id: "counterConfig",
		},
		{
			methods: del, v2Path: "/counters/{counterName}", v3Path: "/counters/{counterName}",
			handler:    api.blocking(api.deleteCounter),
			permission: grid.PermissionCreate,
			name:       "Remove a counter", id: "deleteCounter",
		},
		{
			methods: post, v2Path: "/counters/{counterName}", v2Action: "increment",
			v3Path:     "/counters/{counterName}/_increment",
			handler:    api.blocking(api.counterAdd(&one)),
			permission: grid.PermissionWrite,
			name:       "Increment a counter", id: "incrementCounter",
		},
		{
			methods: post, v2Path: "/counters/{counterName}", v2Action: "decrement",
			v3Path:     "/counters/{counterName}/_decrement",
			handler:    api.blocking(api.counterAdd(&minusOne)),
			permission: grid.PermissionWrite,
			name:       "Decrement a counter", id: "decrementCounter",
		},
		{
			methods: post, v2Path: "/counters/{counterName}", v2Action: "add",
			v3Path:     "/counters/{counterName}/_add",
			handler:    api.blocking(api.counterAdd(nil)),
			permission: grid.PermissionWrite,
			name:       "Add to a counter", id: "addCounter",
			params: []RouteParam{queryParam("delta", "amount to add")},
		},
		{
			methods: post, v2Path: "/counters/{counterName}", v2Action: "reset",
			v3Path:     "/counters/{counterName}/_reset",
			handler:    api.blocking(api.counterReset),
			permission: grid.PermissionWrite,
			name:       "Reset a counter", id: "resetCounter",
		},
		{
			methods: post, v2Path: "/counters/{counterName}", v2Action: "compareAndSet",
			v3Path:     "/counters/{counterName}/_compareAndSet",
			handler:    api.blocking(api.counterCompareAndSet),
			permission: grid.PermissionWrite,
			name:       "Compare and set a counter", id: "compareAndSetCounter",
			params: []RouteParam{
				queryParam("expect", "expected current value"),
				queryParam("update", "new value"),
			},
		},

		// Tasks
		{
			methods: get, v2Path: "/tasks", v3Path: "/tasks",
			handler:    api.blocking(api.listTasks),
			permission: grid.PermissionExec,
			name:       "List tasks", id: "listTasks",
		},
		{
			methods: post, v2Path: "/tasks/{taskName}", v2Action: "exec",
			v3Path:     "/tasks/{taskName}/_exec",
			handler:    api.blocking(api.execTask),
			permission: grid.PermissionExec, audit: "task",
			name: "Run a task", id: "execTask",
			params: []RouteParam{queryParam("param.NAME", "task parameter NAME")},
		},

		// Container
		{
			methods: get, v2Path: "/container", v3Path: "/container",
			handler:    api.blocking(api.containerInfo),
			permission: grid.PermissionMonitor,
			name:       "Describe the container", id: "containerInfo",
		},
		{
			methods: get, v2Path: "/container/health", v3Path: "/container/health",
			handler:   immediate(api.health),
			anonymous: true,
			name:      "Check server health", id: "health",
		},
		{
			methods: get, v2Path: "/container/config", v2Action: "listen",
			v3Path:     "/container/config/_listen",
			handler:    immediate(api.listenConfig),
			permission: grid.PermissionAdmin,
			name:       "Stream configuration changes", id: "listenConfig",
			params: []RouteParam{queryParam("includeCurrentState", "if true, first report every existing cache")},
		},
		{
			methods: get, v2Path: "/container/backups", v3Path: "/container/backups",
			handler:    api.blocking(backups.list),
			permission: grid.PermissionAdmin,
			name:       "List backups", id: "listBackups",
		},
		{
			methods: post, v2Path: "/container/backups/{backupName}", v3Path: "/container/backups/{backupName}",
			handler:    api.blocking(backups.create),
			permission: grid.PermissionAdmin, audit: "container",
			name: "Start a backup", id: "createBackup",
			responses: map[int]string{
				http.StatusAccepted: "Started",
				http.StatusConflict: "Backup already exists",
			},
		},
		{
			methods: getHead, v2Path: "/container/backups/{backupName}", v3Path: "/container/backups/{backupName}",
			handler:    api.blocking(backups.poll),
			permission: grid.PermissionAdmin,
			name:       "Get backup status or download it", id: "getBackup",
			responses: map[int]string{
				http.StatusOK:                  "Complete; the body is the archive",
				http.StatusAccepted:            "In progress",
				http.StatusNotFound:            "No such backup",
				http.StatusInternalServerError: "Failed",
			},
		},
		{
			methods: del, v2Path: "/container/backups/{backupName}", v3Path: "/container/backups/{backupName}",
			handler:    api.blocking(backups.remove),
			permission: grid.PermissionAdmin, audit: "container",
			name: "Remove a backup", id: "deleteBackup",
			responses: lroResponses,
		},
		{
			methods: get, v2Path: "/container/restores", v3Path: "/container/restores",
			handler:    api.blocking(restores.list),
			permission: grid.PermissionAdmin,
			name:       "List restores", id: "listRestores",
		},
		{
			methods: post, v2Path: "/container/restores/{restoreName}", v3Path: "/container/restores/{restoreName}",
			handler:    api.blocking(restores.create),
			permission: grid.PermissionAdmin, audit: "container",
			name: "Start a restore", id: "createRestore",
			responses: map[int]string{
				http.StatusAccepted: "Started",
				http.StatusConflict: "Restore already exists",
			},
		},
		{
			methods: head, v2Path: "/container/restores/{restoreName}", v3Path: "/container/restores/{restoreName}",
			handler:    api.blocking(restores.poll),
			permission: grid.PermissionAdmin,
			name:       "Get restore status", id: "getRestore",
			responses: map[int]string{
				http.StatusCreated:             "Complete",
				http.StatusAccepted:            "In progress",
				http.StatusNotFound:            "No such restore",
				http.StatusInternalServerError: "Failed",
			},
		},
		{
			methods: del, v2Path: "/container/restores/{restoreName}", v3Path: "/container/restores/{restoreName}",
			handler:    api.blocking(restores.remove),
			permission: grid.PermissionAdmin, audit: "container",
			name: "Remove a restore", id: "deleteRestore",
			responses: lroResponses,
		},

		// Security
		{
			methods: get, v2Path: "/security/user/acl", v3Path: "/security/user/acl",
			handler: api.blocking(api.userACL),
			name:    "Describe the caller's access", id: "userACL",
		},
		{
			methods: get, v2Path: "/security/roles/{principal}", v3Path: "/security/roles/{principal}",
			handler:    api.blocking(api.principalRoles),
			permission: grid.PermissionAdmin,
			name:       "List a principal's roles", id: "principalRoles",
		},
		{
			methods: put, v2Path: "/security/roles/{principal}", v2Action: "grant",
			v3Path:     "/security/roles/{principal}/_grant",
			handler:    api.blocking(api.changeRoles(true)),
			permission: grid.PermissionAdmin, audit: "security",
			name: "Grant roles", id: "grantRoles",
			params: []RouteParam{queryParam("role", "role to grant; may repeat")},
		},
		{
			methods: put, v2Path: "/security/roles/{principal}", v2Action: "deny",
			v3Path:     "/security/roles/{principal}/_deny",
			handler:    api.blocking(api.changeRoles(false)),
			permission: grid.PermissionAdmin, audit: "security",
			name: "Deny roles", id: "denyRoles",
			params: []RouteParam{queryParam("role", "role to deny; may repeat")},
		},

		// API description
		{
			methods: get, v3Path: "/openapi",
			handler:   immediate(api.openAPI),
			anonymous: true,
			name:      "Describe this API", id: "openAPI",
		},
	}
}
