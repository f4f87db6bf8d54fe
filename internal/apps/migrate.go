// If you are AI: This file migrates legacy apps.json formats and parses apps.
// v1 stored booleans and integers as strings; v2 uses native types.

package apps

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"glint/internal/fileio"
)

// currentVersion is the latest apps.json format.
const currentVersion = 2

// appsFile is the persisted shape of apps.json. Apps stay as raw maps until
// parseApps so migrations can rewrite arbitrary keys.
type appsFile struct {
	Version int                      `json:"version"`
	Env     map[string]string        `json:"env,omitempty"`
	Apps    []map[string]interface{} `json:"apps"`
}

// readAppsFile decodes apps.json into its raw tree form.
func readAppsFile(path string) (*appsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var tree appsFile
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &tree, nil
}

// writeAppsFile persists the tree atomically.
func writeAppsFile(path string, tree *appsFile) error {
	return fileio.WriteJSON(path, tree)
}

// booleanKeys and integerKeys list the fields v1 stored as strings.
var booleanKeys = []string{
	"allow-client-commands",
	"exclude-global-prep-cmd",
	"elevated",
	"auto-detach",
	"wait-all",
	"use-app-identity",
	"per-client-app-identity",
	"virtual-display",
}

var integerKeys = []string{
	"exit-timeout",
	"scale-factor",
}

// migrate brings tree up to currentVersion. Returns true when anything changed.
func migrate(tree *appsFile) (bool, error) {
	if tree.Version >= currentVersion {
		return false, nil
	}

	for _, app := range tree.Apps {
		// Assign UUIDs to entries missing one.
		if s, _ := app["uuid"].(string); s == "" {
			app["uuid"] = uuid.NewString()
		}
		// Drop keys older versions accumulated.
		delete(app, "launching")
		delete(app, "index")

		// Truncate stale name-collision suffixes like " (2)".
		if name, ok := app["name"].(string); ok {
			if pos := strings.Index(name, " ("); pos >= 0 && strings.HasSuffix(name, ")") {
				if _, err := strconv.Atoi(strings.TrimSuffix(name[pos+2:], ")")); err == nil {
					app["name"] = name[:pos]
				}
			}
		}

		for _, key := range booleanKeys {
			if v, ok := app[key]; ok {
				app[key] = coerceBool(v)
			}
		}
		for _, key := range integerKeys {
			if s, ok := app[key].(string); ok {
				n, err := strconv.Atoi(s)
				if err != nil {
					return false, fmt.Errorf("migrate %q: %w", key, err)
				}
				app[key] = n
			}
		}

		// prep-cmd entries carry their own elevated flag.
		if prep, ok := app["prep-cmd"].([]interface{}); ok {
			for _, entry := range prep {
				if m, ok := entry.(map[string]interface{}); ok {
					if s, ok := m["elevated"].(string); ok {
						m["elevated"] = s == "true"
					}
				}
			}
		}
	}

	tree.Version = currentVersion
	return true, nil
}

// coerceBool interprets the value shapes legacy files used for booleans.
func coerceBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(t) {
		case "true", "on", "yes":
			return true
		}
		return false
	case float64:
		return t != 0
	case []interface{}:
		if len(t) == 0 {
			return false
		}
		if s, ok := t[0].(string); ok {
			switch strings.ToLower(s) {
			case "true", "on", "yes":
				return true
			}
		}
		return false
	case nil:
		return false
	case map[string]interface{}:
		return len(t) != 0
	}
	return false
}

// parseApps converts the raw app maps into typed entries, expanding env
// references and computing stable ids.
func parseApps(tree *appsFile, env map[string]string, assetsDir string) ([]App, error) {
	ids := map[string]bool{}
	apps := make([]App, 0, len(tree.Apps))

	for i, node := range tree.Apps {
		raw, err := json.Marshal(node)
		if err != nil {
			return nil, fmt.Errorf("app %d: %w", i, err)
		}

		// Defaults applied before the entry's own fields land.
		app := App{
			AutoDetach:          true,
			WaitAll:             true,
			ExitTimeoutSeconds:  5,
			ScaleFactor:         100,
			AllowClientCommands: true,
		}
		if err := json.Unmarshal(raw, &app); err != nil {
			return nil, fmt.Errorf("app %d: %w", i, err)
		}
		if app.UUID == "" {
			return nil, fmt.Errorf("app %d: missing uuid", i)
		}
		if app.ScaleFactor == 0 {
			app.ScaleFactor = 100
		}

		app.Idx = i
		app.Name = expandEnv(app.Name, env)
		app.Cmd = expandEnv(app.Cmd, env)
		app.WorkingDir = expandEnv(app.WorkingDir, env)
		app.Output = expandEnv(app.Output, env)
		app.ImagePath = expandEnv(app.ImagePath, env)
		for j := range app.PrepCmds {
			app.PrepCmds[j].Do = expandEnv(app.PrepCmds[j].Do, env)
			app.PrepCmds[j].Undo = expandEnv(app.PrepCmds[j].Undo, env)
		}
		for j := range app.DetachedCmds {
			app.DetachedCmds[j] = expandEnv(app.DetachedCmds[j], env)
		}

		plain, indexed := CalculateAppID(app.Name, resolveImagePath(assetsDir, app.ImagePath), i)
		if !ids[plain] {
			app.ID = plain
		} else {
			app.ID = indexed
		}
		ids[app.ID] = true

		apps = append(apps, app)
	}
	return apps, nil
}

// Save replaces the app with the same UUID if present, otherwise appends,
// then rewrites the file. A missing UUID on the incoming app gets one.
func Save(path string, incoming map[string]interface{}) error {
	tree, err := readAppsFile(path)
	if err != nil {
		tree = &appsFile{Version: currentVersion}
	}

	newUUID, _ := incoming["uuid"].(string)
	if newUUID == "" {
		newUUID = uuid.NewString()
		incoming["uuid"] = newUUID
	}
	delete(incoming, "launching")
	delete(incoming, "index")

	replaced := false
	for i, app := range tree.Apps {
		if s, _ := app["uuid"].(string); s == newUUID {
			tree.Apps[i] = incoming
			replaced = true
			break
		}
	}
	if !replaced {
		tree.Apps = append(tree.Apps, incoming)
	}

	return writeAppsFile(path, tree)
}

// Delete removes the app with the given UUID from the file.
// Returns false when no entry matched.
func Delete(path, appUUID string) (bool, error) {
	tree, err := readAppsFile(path)
	if err != nil {
		return false, err
	}

	kept := tree.Apps[:0]
	removed := false
	for _, app := range tree.Apps {
		if s, _ := app["uuid"].(string); strings.EqualFold(s, appUUID) {
			removed = true
			continue
		}
		kept = append(kept, app)
	}
	tree.Apps = kept

	if !removed {
		return false, nil
	}
	return true, writeAppsFile(path, tree)
}

// Reorder rewrites the apps array in the given UUID order. UUIDs absent
// from the order keep their relative position at the tail.
func Reorder(path string, order []string) error {
	tree, err := readAppsFile(path)
	if err != nil {
		return err
	}

	index := map[string]map[string]interface{}{}
	for _, app := range tree.Apps {
		if s, _ := app["uuid"].(string); s != "" {
			index[s] = app
		}
	}

	reordered := make([]map[string]interface{}, 0, len(tree.Apps))
	taken := map[string]bool{}
	for _, id := range order {
		if app, ok := index[id]; ok && !taken[id] {
			reordered = append(reordered, app)
			taken[id] = true
		}
	}
	for _, app := range tree.Apps {
		if s, _ := app["uuid"].(string); !taken[s] {
			reordered = append(reordered, app)
			taken[s] = true
		}
	}

	tree.Apps = reordered
	return writeAppsFile(path, tree)
}
