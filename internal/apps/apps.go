// If you are AI: This file defines the application catalog and its loader.
// Apps come from apps.json; reserved entries are synthesised at load time.

package apps

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"glint/internal/config"
)

// Reserved app UUIDs. Clients hard-code these, so they are protocol constants.
const (
	VirtualDisplayUUID  = "8902CB19-674A-403D-A587-41B092E900BA"
	FallbackDesktopUUID = "EAAC6159-089A-46A9-9E24-6436885F6610"
	RemoteInputUUID     = "8CB5C136-DA67-4F99-B4A1-F9CD35005CF4"
	TerminateAppUUID    = "E16CBE1B-295D-4632-9A76-EC4180C857D3"
)

// PrepCmd is a do/undo command pair run around an app launch.
type PrepCmd struct {
	Do       string `json:"do"`
	Undo     string `json:"undo"`
	Elevated bool   `json:"elevated,omitempty"`
}

// App is a launchable catalog entry.
type App struct {
	ID   string `json:"-"`
	Idx  int    `json:"-"`
	UUID string `json:"uuid"`
	Name string `json:"name"`

	Cmd        string `json:"cmd,omitempty"`
	WorkingDir string `json:"working-dir,omitempty"`
	Output     string `json:"output,omitempty"`
	ImagePath  string `json:"image-path,omitempty"`

	PrepCmds     []PrepCmd `json:"prep-cmd,omitempty"`
	DetachedCmds []string  `json:"detached,omitempty"`

	ExcludeGlobalPrep    bool   `json:"exclude-global-prep-cmd,omitempty"`
	Elevated             bool   `json:"elevated,omitempty"`
	AutoDetach           bool   `json:"auto-detach,omitempty"`
	WaitAll              bool   `json:"wait-all,omitempty"`
	ExitTimeoutSeconds   int    `json:"exit-timeout,omitempty"`
	VirtualDisplay       bool   `json:"virtual-display,omitempty"`
	ScaleFactor          int    `json:"scale-factor,omitempty"`
	UseAppIdentity       bool   `json:"use-app-identity,omitempty"`
	PerClientAppIdentity bool   `json:"per-client-app-identity,omitempty"`
	AllowClientCommands  bool   `json:"allow-client-commands,omitempty"`
	Gamepad              string `json:"gamepad,omitempty"`
}

// Catalog holds the parsed app list plus the synthesised reserved entries.
// Reload replaces the whole value; readers take snapshots.
type Catalog struct {
	mu   sync.RWMutex
	apps []App
	env  map[string]string

	inputOnlyAppID string
	terminateAppID string

	assetsDir string
	logger    *zap.Logger
}

// Options controls which reserved entries the catalog synthesises.
type Options struct {
	VirtualDisplayReady bool
	EnableInputOnlyMode bool
	GlobalPrepCmds      []config.PrepCmd
}

// NewCatalog creates an empty catalog rooted at the given assets directory.
func NewCatalog(assetsDir string, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		assetsDir: assetsDir,
		logger:    logger.Named("apps"),
	}
}

// Load parses the apps file, migrating legacy formats in place.
// Parse failures trigger up to three re-migrations from version 0 before
// the catalog falls back to a synthetic desktop entry.
func (c *Catalog) Load(path string, opts Options) error {
	tree, readErr := readAppsFile(path)
	if readErr != nil {
		c.logger.Warn("couldn't read apps file", zap.String("path", path), zap.Error(readErr))
		tree = &appsFile{Version: currentVersion}
	}

	env := expandEnvMap(tree.Env)

	var apps []App
	// One initial parse plus up to three re-migrations from version 0.
	const maxParseAttempts = 4
	failCount := 0
	if readErr != nil {
		// Nothing to parse; go straight to the fallback entry below.
		failCount = maxParseAttempts
	}
	for failCount < maxParseAttempts {
		migrated, err := migrate(tree)
		if err != nil {
			c.logger.Error("migration failed", zap.Error(err))
			failCount = maxParseAttempts
			break
		}
		if migrated && readErr == nil {
			if err := writeAppsFile(path, tree); err != nil {
				c.logger.Warn("couldn't persist migrated apps file", zap.Error(err))
			}
		}

		apps, err = parseApps(tree, env, c.assetsDir)
		if err == nil {
			break
		}

		failCount++
		if failCount >= maxParseAttempts {
			c.logger.Warn("couldn't parse apps file, apps will not be loaded", zap.Error(err))
			apps = nil
			break
		}
		c.logger.Warn("app list invalid, re-migrating from scratch",
			zap.Int("attempt", failCount), zap.Error(err))
		tree.Version = 0
	}

	if failCount >= maxParseAttempts {
		c.logger.Warn("no applications configured, adding fallback desktop entry")
		apps = appendReserved(apps, c.assetsDir, App{
			UUID:       FallbackDesktopUUID,
			Name:       "Desktop (fallback)",
			ImagePath:  "desktop-alt.png",
			AutoDetach: true,
		})
	}

	if opts.VirtualDisplayReady {
		apps = appendReserved(apps, c.assetsDir, App{
			UUID:           VirtualDisplayUUID,
			Name:           "Virtual Display",
			ImagePath:      "virtual_desktop.png",
			VirtualDisplay: true,
			AutoDetach:     true,
		})
	}

	inputOnlyID, terminateID := "", ""
	if opts.EnableInputOnlyMode {
		apps = appendReserved(apps, c.assetsDir, App{
			UUID:       RemoteInputUUID,
			Name:       "Remote Input",
			ImagePath:  "input_only.png",
			AutoDetach: true,
			WaitAll:    true,
		})
		inputOnlyID = apps[len(apps)-1].ID

		apps = appendReserved(apps, c.assetsDir, App{
			UUID:       TerminateAppUUID,
			Name:       "Terminate",
			ImagePath:  "terminate.png",
			AutoDetach: true,
			WaitAll:    true,
		})
		terminateID = apps[len(apps)-1].ID
	}

	// Prepend global prep commands to every app that doesn't opt out.
	if len(opts.GlobalPrepCmds) > 0 {
		for i := range apps {
			if apps[i].ExcludeGlobalPrep {
				continue
			}
			global := make([]PrepCmd, 0, len(opts.GlobalPrepCmds)+len(apps[i].PrepCmds))
			for _, cmd := range opts.GlobalPrepCmds {
				global = append(global, PrepCmd{
					Do:       expandEnv(cmd.Do, env),
					Undo:     expandEnv(cmd.Undo, env),
					Elevated: cmd.Elevated,
				})
			}
			apps[i].PrepCmds = append(global, apps[i].PrepCmds...)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.apps = apps
	c.env = env
	c.inputOnlyAppID = inputOnlyID
	c.terminateAppID = terminateID
	return nil
}

// appendReserved assigns an index and stable id to a synthesised entry.
func appendReserved(apps []App, assetsDir string, app App) []App {
	ids := map[string]bool{}
	for _, a := range apps {
		ids[a.ID] = true
	}

	app.Idx = len(apps)
	app.ExitTimeoutSeconds = 5
	app.ScaleFactor = 100

	plain, indexed := CalculateAppID(app.Name, resolveImagePath(assetsDir, app.ImagePath), app.Idx)
	if !ids[plain] {
		app.ID = plain
	} else {
		app.ID = indexed
	}
	return append(apps, app)
}

// expandEnvMap expands $(VAR) references in catalog env values against the
// process environment, returning the merged map.
func expandEnvMap(raw map[string]string) map[string]string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	for k, v := range raw {
		env[k] = expandEnv(v, env)
	}
	return env
}

// expandEnv substitutes $(VAR) references and collapses $$ to $.
func expandEnv(value string, env map[string]string) string {
	var b strings.Builder
	for i := 0; i < len(value); {
		if value[i] != '$' || i+1 >= len(value) {
			b.WriteByte(value[i])
			i++
			continue
		}

		switch value[i+1] {
		case '(':
			end := strings.IndexByte(value[i+2:], ')')
			if end < 0 {
				// Unterminated reference, keep the tail verbatim.
				b.WriteString(value[i:])
				return b.String()
			}
			b.WriteString(env[value[i+2:i+2+end]])
			i += 2 + end + 1
		case '$':
			b.WriteByte('$')
			i += 2
		default:
			b.WriteByte(value[i])
			i++
		}
	}
	return b.String()
}
