// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"fmt"
	"sync"

	"github.com/diffeo/go-gridrest/grid"
)

// Push state transfer statuses.
const (
	pushSending   = "SENDING"
	pushOK        = "OK"
	pushCancelled = "CANCELED"
)

// NewXSiteAdmin creates a cross-site administrator for the backup
// sites configured on g's caches.  There is no actual remote site;
// this only tracks the state a real implementation would report.
// A state push completes as soon as it is started unless holdPush is
// set, in which case it stays in progress until cancelled.
func NewXSiteAdmin(g grid.Grid, holdPush bool) grid.XSiteAdmin {
	return &xsiteAdmin{
		grid:     g,
		holdPush: holdPush,
		offline:  make(map[siteKey]bool),
		pushes:   make(map[siteKey]string),
	}
}

type siteKey struct {
	Cache string
	Site  string
}

type xsiteAdmin struct {
	grid     grid.Grid
	holdPush bool
	lock     sync.Mutex
	offline  map[siteKey]bool
	pushes   map[siteKey]string
}

// sites returns the configured sites of a cache.
func (x *xsiteAdmin) sites(cacheName string) ([]string, error) {
	cache, err := x.grid.Cache(cacheName)
	if err != nil {
		return nil, err
	}
	config, err := cache.Config()
	if err != nil {
		return nil, err
	}
	return config.Sites, nil
}

// withSite checks that site is configured on cacheName, and runs f
// under the lock if so.  An unknown site is an operation failure,
// not an error.
func (x *xsiteAdmin) withSite(cacheName, site string, f func(siteKey) string) (string, error) {
	sites, err := x.sites(cacheName)
	if err != nil {
		return "", err
	}
	for _, s := range sites {
		if s == site {
			x.lock.Lock()
			defer x.lock.Unlock()
			return f(siteKey{Cache: cacheName, Site: site}), nil
		}
	}
	return fmt.Sprintf("Incorrect site name: %v", site), nil
}

func (x *xsiteAdmin) SiteStatus(cacheName string) (map[string]string, error) {
	sites, err := x.sites(cacheName)
	if err != nil {
		return nil, err
	}
	x.lock.Lock()
	defer x.lock.Unlock()
	result := make(map[string]string)
	for _, site := range sites {
		if x.offline[siteKey{Cache: cacheName, Site: site}] {
			result[site] = grid.SiteOffline
		} else {
			result[site] = grid.SiteOnline
		}
	}
	return result, nil
}

func (x *xsiteAdmin) TakeSiteOffline(cacheName, site string) (string, error) {
	return x.withSite(cacheName, site, func(key siteKey) string {
		if x.offline[key] {
			return fmt.Sprintf("Site %v is already offline", site)
		}
		x.offline[key] = true
		if x.pushes[key] == pushSending {
			x.pushes[key] = pushCancelled
		}
		return grid.XSiteSuccess
	})
}

func (x *xsiteAdmin) BringSiteOnline(cacheName, site string) (string, error) {
	return x.withSite(cacheName, site, func(key siteKey) string {
		if !x.offline[key] {
			return fmt.Sprintf("Site %v is already online", site)
		}
		delete(x.offline, key)
		return grid.XSiteSuccess
	})
}

func (x *xsiteAdmin) PushState(cacheName, site string) (string, error) {
	return x.withSite(cacheName, site, func(key siteKey) string {
		if x.offline[key] {
			return fmt.Sprintf("Site %v is offline", site)
		}
		if x.pushes[key] == pushSending {
			return fmt.Sprintf("State transfer to %v already in progress", site)
		}
		if x.holdPush {
			x.pushes[key] = pushSending
		} else {
			x.pushes[key] = pushOK
		}
		return grid.XSiteSuccess
	})
}

func (x *xsiteAdmin) CancelPushState(cacheName, site string) (string, error) {
	return x.withSite(cacheName, site, func(key siteKey) string {
		if x.pushes[key] != pushSending {
			return fmt.Sprintf("No state transfer in progress to %v", site)
		}
		x.pushes[key] = pushCancelled
		return grid.XSiteSuccess
	})
}

func (x *xsiteAdmin) PushStateStatus(cacheName string) (map[string]string, error) {
	sites, err := x.sites(cacheName)
	if err != nil {
		return nil, err
	}
	x.lock.Lock()
	defer x.lock.Unlock()
	result := make(map[string]string)
	for _, site := range sites {
		if status, present := x.pushes[siteKey{Cache: cacheName, Site: site}]; present {
			result[site] = status
		}
	}
	return result, nil
}
