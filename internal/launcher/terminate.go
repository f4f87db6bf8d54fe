// If you are AI: This file tracks the running app and tears it down.
// The revert path runs on every exit: success, failure or crash of the app.

package launcher

import (
	"time"

	"go.uber.org/zap"

	"glint/internal/apps"
)

// Running returns the current app id while the app is alive, or 0.
// An auto-detach app that exited cleanly within five seconds of launch is
// treated as a detached launcher and reported as still running.
func (l *Launcher) Running() int {
	l.mu.Lock()

	switch {
	case l.appID == 0:
		l.mu.Unlock()
		return 0
	case l.placebo:
		id := l.appID
		l.mu.Unlock()
		return id
	case l.app.WaitAll && l.proc != nil && l.proc.groupRunning():
		id := l.appID
		l.mu.Unlock()
		return id
	case l.proc != nil && l.proc.running():
		id := l.appID
		l.mu.Unlock()
		return id
	case l.app.AutoDetach && l.proc != nil &&
		time.Since(l.launchTime) < autoDetachWindow && l.proc.code() == 0:
		l.logger.Info("app exited cleanly right after launch, treating as detached")
		l.placebo = true
		id := l.appID
		l.mu.Unlock()
		return id
	}

	hadProcess := l.proc != nil
	l.mu.Unlock()

	// The app is gone; run the cleanup path now.
	if hadProcess {
		l.Terminate(false, true)
	}
	return 0
}

// RunningUUID returns the UUID of the running app, or the empty string.
func (l *Launcher) RunningUUID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appID == 0 {
		return ""
	}
	return l.app.UUID
}

// RunningName returns the name of the last launched app.
func (l *Launcher) RunningName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appName
}

// Terminate stops the app process group, reverts the display and input
// state and clears the session fields. With immediate set the process group
// is assumed dead and only the revert work runs.
func (l *Launcher) Terminate(immediate, needsRefresh bool) {
	l.mu.Lock()
	l.terminateLocked(immediate, needsRefresh)
	l.mu.Unlock()
}

// terminateLocked does the Terminate work with the launcher lock held.
func (l *Launcher) terminateLocked(immediate, needsRefresh bool) {
	l.placebo = false

	if !immediate && l.proc != nil {
		timeout := time.Duration(l.app.ExitTimeoutSeconds) * time.Second
		if l.app.ExitTimeoutSeconds == 0 {
			timeout = time.Duration(l.cfg.ExitTimeoutSeconds) * time.Second
		}
		l.proc.terminateGroup(timeout)
	}
	l.proc = nil

	l.runUndoCommandsLocked()

	if l.outputFile != nil {
		l.outputFile.Close()
		l.outputFile = nil
	}

	hasRun := l.appID > 0

	// Revert HDR on the display that was touched.
	if hasRun && l.modeChangedDisplay != "" {
		if l.vdisplay.SetHDR(l.modeChangedDisplay, l.initialHDR) {
			l.logger.Info("HDR reverted", zap.String("display", l.modeChangedDisplay))
		}
	}

	usedVirtual := l.vdisplay.Ready() && l.launch != nil && l.launch.VirtualDisplay
	if usedVirtual {
		if l.vdisplay.Remove(l.displayGUID) {
			l.logger.Info("virtual display removed")
		} else if l.virtualDisplay {
			l.logger.Warn("virtual display removal failed")
		}
	}

	if hasRun && l.appName != "" {
		if usedVirtual {
			l.display.ResetPersistence()
		} else {
			l.display.Revert()
		}
	}

	// Restore the configured output. The very first terminate runs before
	// anything was launched; snapshot instead of clobbering with empty.
	if !hasRun && l.initialDisplay == "" {
		l.initialDisplay = l.currentOutput
	} else {
		l.currentOutput = l.initialDisplay
	}

	l.appID = 0
	l.appName = ""
	l.app = apps.App{}
	l.launch = nil
	l.displayName = ""
	l.initialDisplay = ""
	l.modeChangedDisplay = ""
	l.virtualDisplay = false
	l.allowCmds = false
	l.gamepadOverride = ""

	if needsRefresh {
		if err := l.catalog.Load(l.cfg.FileApps, apps.Options{
			VirtualDisplayReady: l.vdisplay.Ready(),
			EnableInputOnlyMode: l.cfg.EnableInputOnlyMode,
			GlobalPrepCmds:      l.cfg.GlobalPrepCmds,
		}); err != nil {
			l.logger.Warn("couldn't refresh app catalog", zap.Error(err))
		}
	}
}

