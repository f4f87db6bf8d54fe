// If you are AI: This file defines the launch orchestrator and its state.
// Every acquired resource gets a compensating undo run on all exit paths.

package launcher

import (
	"errors"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"glint/internal/apps"
	"glint/internal/config"
	"glint/internal/platform"
	"glint/internal/session"
)

// Errors the control plane maps onto wire status codes.
var (
	// ErrEncoderInit means video capture/encoding could not initialise (503).
	ErrEncoderInit = errors.New("launcher: failed to initialize video capture/encoding")

	// ErrCommandFailed means a prep or app command failed to run.
	ErrCommandFailed = errors.New("launcher: command failed")
)

// autoDetachWindow is how soon after launch a clean exit is treated as a
// detached launcher process rather than the app quitting.
const autoDetachWindow = 5 * time.Second

// Launcher prepares the environment for a session, spawns the app process
// group and reverts everything on termination.
// The active-app fields are single-writer: Execute and Terminate run on the
// thread driving the session. RunningUUID only reads; Running also finishes
// an app whose process has exited (auto-detach or Terminate).
type Launcher struct {
	cfg      *config.Config
	catalog  *apps.Catalog
	vdisplay *platform.VDisplayManager
	prober   platform.EncoderProber
	display  platform.DisplayDevice

	// sessionCount reports live streaming sessions; encoder probing and
	// display reconfiguration only happen when no session is active.
	sessionCount func() int

	logger *zap.Logger

	mu sync.Mutex

	app       apps.App
	appID     int
	appName   string
	launch    *session.LaunchSession
	placebo   bool
	allowCmds bool

	proc       *procHandle
	launchTime time.Time
	env        []string
	outputFile *os.File
	prepDone   int

	initialDisplay     string
	currentOutput      string
	displayName        string
	modeChangedDisplay string
	initialHDR         bool
	virtualDisplay     bool
	displayGUID        [16]byte

	gamepadOverride string
}

// New creates a launcher wired to its platform collaborators.
func New(cfg *config.Config, catalog *apps.Catalog, vdisplay *platform.VDisplayManager,
	prober platform.EncoderProber, display platform.DisplayDevice,
	sessionCount func() int, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sessionCount == nil {
		sessionCount = func() int { return 0 }
	}
	return &Launcher{
		cfg:           cfg,
		catalog:       catalog,
		vdisplay:      vdisplay,
		prober:        prober,
		display:       display,
		sessionCount:  sessionCount,
		currentOutput: cfg.OutputName,
		logger:        logger.Named("launcher"),
	}
}

// OutputName returns the display the capture pipeline should target.
func (l *Launcher) OutputName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentOutput
}

// AllowClientCommands reports whether the running app accepts client commands.
func (l *Launcher) AllowClientCommands() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowCmds
}

// UsingVirtualDisplay reports whether the current session created a
// virtual display.
func (l *Launcher) UsingVirtualDisplay() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.virtualDisplay
}

// LaunchInputOnly marks the input-only placeholder as the running app
// without spawning anything.
func (l *Launcher) LaunchInputOnly() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.appID = atoiSafe(l.catalog.InputOnlyAppID())
	l.appName = "Remote Input"
	l.allowCmds = false
	l.placebo = true
	l.logger.Info("input-only session active")
}

// atoiSafe parses an app id string, returning 0 for anything unparseable.
func atoiSafe(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

