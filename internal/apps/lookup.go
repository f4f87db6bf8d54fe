// If you are AI: This file provides catalog lookups and snapshots.

package apps

import (
	"strings"
)

// Apps returns a snapshot of the catalog.
func (c *Catalog) Apps() []App {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]App(nil), c.apps...)
}

// Env returns a copy of the expanded catalog environment.
func (c *Catalog) Env() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]string, len(c.env))
	for k, v := range c.env {
		out[k] = v
	}
	return out
}

// FindByID looks an app up by its stable id.
func (c *Catalog) FindByID(id string) (App, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, app := range c.apps {
		if app.ID == id {
			return app, true
		}
	}
	return App{}, false
}

// FindByUUID looks an app up by UUID, case-insensitively.
func (c *Catalog) FindByUUID(id string) (App, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, app := range c.apps {
		if strings.EqualFold(app.UUID, id) {
			return app, true
		}
	}
	return App{}, false
}

// InputOnlyAppID returns the id of the synthetic remote-input entry,
// or the empty string when input-only mode is disabled.
func (c *Catalog) InputOnlyAppID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inputOnlyAppID
}

// TerminateAppID returns the id of the synthetic terminate entry.
func (c *Catalog) TerminateAppID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.terminateAppID
}

// ImagePath resolves the asset path streamed for an app id.
func (c *Catalog) ImagePath(id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, app := range c.apps {
		if app.ID == id {
			return resolveImagePath(c.assetsDir, app.ImagePath)
		}
	}
	return resolveImagePath(c.assetsDir, "")
}

