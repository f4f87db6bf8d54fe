// If you are AI: This file runs the launch sequence for one session.
// Prep commands, detached commands and the app process group start here.

package launcher

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"glint/internal/apps"
	"glint/internal/session"
)

// Execute launches app for the given session. On any later failure the
// compensating actions recorded so far run in reverse before returning.
func (l *Launcher) Execute(app apps.App, launch *session.LaunchSession) error {
	// Ensure a clean slate; replacing the input-only placeholder needs a
	// moment for its session teardown to settle.
	runningID := l.Running()
	wasInputOnly := runningID != 0 && runningID == atoiSafe(l.catalog.InputOnlyAppID())
	l.Terminate(false, false)
	if wasInputOnly {
		time.Sleep(time.Second)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.app = app
	l.appID = atoiSafe(app.ID)
	l.appName = app.Name
	l.launch = launch
	l.allowCmds = app.AllowClientCommands

	clientWidth := launch.Width
	if clientWidth == 0 {
		clientWidth = 1920
	}
	clientHeight := launch.Height
	if clientHeight == 0 {
		clientHeight = 1080
	}

	scale := launch.ScaleFactor
	if app.ScaleFactor != 100 && app.ScaleFactor != 0 {
		scale = app.ScaleFactor
	}
	renderWidth, renderHeight := clientWidth, clientHeight
	if scale != 0 && scale != 100 {
		renderWidth = clientWidth * scale / 100
		renderHeight = clientHeight * scale / 100
		// Odd resolutions upset most capture pipelines.
		renderWidth &^= 1
		renderHeight &^= 1
	}
	launch.Width = renderWidth
	launch.Height = renderHeight

	l.initialDisplay = l.currentOutput
	savedOutput := l.currentOutput

	// Fail guard: whatever happens below, a failed launch restores the
	// output, reverts the display and tears down everything acquired.
	var fg undoStack
	fg.Push(func() {
		l.terminateLocked(false, false)
		l.display.Revert()
		l.currentOutput = savedOutput
	})
	defer fg.Drain()

	if app.Gamepad != "" {
		l.gamepadOverride = app.Gamepad
	}

	if err := l.prepareDisplayLocked(launch, renderWidth, renderHeight); err != nil {
		return err
	}

	// Re-probe before streaming: the active GPU may have changed since the
	// last session through hotplugging or the display work above.
	if l.sessionCount() == 0 {
		if err := l.prober.Probe(); err != nil {
			return fmt.Errorf("%w: %v", ErrEncoderInit, err)
		}
	}

	l.env = buildSessionEnv(l.cfg, l.catalog.Env(), app, launch, renderWidth, renderHeight, scale)

	if app.Output != "" && app.Output != "null" {
		f, err := os.OpenFile(app.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			l.logger.Warn("couldn't open app output file", zap.String("path", app.Output), zap.Error(err))
		} else {
			l.outputFile = f
		}
	}

	if err := l.runPrepCommandsLocked(app); err != nil {
		return err
	}

	for _, cmdline := range app.DetachedCmds {
		dir := app.WorkingDir
		if dir == "" {
			dir = findWorkingDirectory(cmdline)
		}
		l.logger.Info("spawning detached command", zap.String("cmd", cmdline))
		if _, err := runCommand(cmdline, dir, l.env, l.outputFile, false); err != nil {
			l.logger.Warn("couldn't spawn detached command", zap.String("cmd", cmdline), zap.Error(err))
		}
	}

	if app.Cmd == "" {
		l.logger.Info("no command configured, showing desktop")
		l.placebo = true
	} else {
		dir := app.WorkingDir
		if dir == "" {
			dir = findWorkingDirectory(app.Cmd)
		}
		l.logger.Info("executing app", zap.String("cmd", app.Cmd), zap.String("working_dir", dir))
		proc, err := runCommand(app.Cmd, dir, l.env, l.outputFile, true)
		if err != nil {
			l.logger.Warn("couldn't run app command", zap.Error(err))
			return fmt.Errorf("%w: %v", ErrCommandFailed, err)
		}
		l.proc = proc
	}

	l.launchTime = time.Now()
	l.startHDRWatchLocked(launch.EnableHDR)

	fg.Disarm()
	return nil
}

// runPrepCommandsLocked executes the do commands in order, recording how far
// it got so the undo pass can mirror it exactly.
func (l *Launcher) runPrepCommandsLocked(app apps.App) error {
	l.prepDone = 0
	for _, cmd := range app.PrepCmds {
		// An empty do still advances the undo window: its undo runs if a
		// later command fails.
		if cmd.Do == "" {
			l.prepDone++
			continue
		}

		dir := app.WorkingDir
		if dir == "" {
			dir = findWorkingDirectory(cmd.Do)
		}
		l.logger.Info("executing do command", zap.String("cmd", cmd.Do), zap.Bool("elevated", cmd.Elevated))

		proc, err := runCommand(cmd.Do, dir, l.env, l.outputFile, false)
		if err != nil {
			l.logger.Error("couldn't run do command", zap.String("cmd", cmd.Do), zap.Error(err))
			// Desktop launches tolerate permission errors so a freshly
			// booted host can still be reached before anyone logs in.
			if app.Cmd == "" && errors.Is(err, os.ErrPermission) {
				l.prepDone++
				continue
			}
			return fmt.Errorf("%w: %s", ErrCommandFailed, cmd.Do)
		}

		if code := proc.waitExit(); code != 0 {
			l.logger.Error("do command failed", zap.String("cmd", cmd.Do), zap.Int("code", code))
			return fmt.Errorf("%w: %s exited with %d", ErrCommandFailed, cmd.Do, code)
		}
		l.prepDone++
	}
	return nil
}

// runUndoCommandsLocked runs the undo half of every prep command that
// executed, in reverse order. Failures are logged and ignored: the revert
// path must always finish.
func (l *Launcher) runUndoCommandsLocked() {
	for i := l.prepDone - 1; i >= 0; i-- {
		cmd := l.app.PrepCmds[i]
		if cmd.Undo == "" {
			continue
		}

		dir := l.app.WorkingDir
		if dir == "" {
			dir = findWorkingDirectory(cmd.Undo)
		}
		l.logger.Info("executing undo command", zap.String("cmd", cmd.Undo))

		proc, err := runCommand(cmd.Undo, dir, l.env, l.outputFile, false)
		if err != nil {
			l.logger.Warn("couldn't run undo command", zap.String("cmd", cmd.Undo), zap.Error(err))
			continue
		}
		if code := proc.waitExit(); code != 0 {
			l.logger.Warn("undo command failed", zap.String("cmd", cmd.Undo), zap.Int("code", code))
		}
	}
	l.prepDone = 0
}

