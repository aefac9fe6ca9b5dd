// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

// SiteStatus returns the status of each backup site of the cache.
func (c *Cache) SiteStatus() (status map[string]string, err error) {
	err = c.GetFrom("v3/caches/{cacheName}/x-site/backups", c.vars(), &status)
	return
}

// PushStateStatus returns the state transfer status of each backup
// site.
func (c *Cache) PushStateStatus() (status map[string]string, err error) {
	err = c.GetFrom("v3/caches/{cacheName}/x-site/push-state-status", c.vars(), &status)
	return
}

func (c *Cache) siteAction(site, action string) error {
	_, err := c.PostTo("v3/caches/{cacheName}/x-site/backups/{site}/_"+action, c.vars("site", site), nil, nil)
	return err
}

// TakeSiteOffline stops replicating to site.
func (c *Cache) TakeSiteOffline(site string) error {
	return c.siteAction(site, "take-offline")
}

// BringSiteOnline resumes replicating to site.
func (c *Cache) BringSiteOnline(site string) error {
	return c.siteAction(site, "bring-online")
}

// PushState starts transferring the cache's state to site.
func (c *Cache) PushState(site string) error {
	return c.siteAction(site, "start-push-state")
}

// CancelPushState stops a state transfer to site.
func (c *Cache) CancelPushState(site string) error {
	return c.siteAction(site, "cancel-push-state")
}
