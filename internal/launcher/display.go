// If you are AI: This file handles display preparation for launches.
// Virtual display creation, device identity, HDR state and resume reconfiguration.

package launcher

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"glint/internal/config"
	"glint/internal/platform"
	"glint/internal/session"
)

// prepareDisplayLocked creates the virtual display when required and applies
// the session's display configuration.
func (l *Launcher) prepareDisplayLocked(launch *session.LaunchSession, renderWidth, renderHeight int) error {
	needVirtual := l.cfg.HeadlessMode ||
		launch.VirtualDisplay ||
		l.app.VirtualDisplay ||
		!l.prober.AllowProbing()

	if needVirtual {
		if !l.vdisplay.Ready() {
			if err := l.vdisplay.Init(); err != nil {
				l.logger.Warn("virtual display driver unavailable", zap.Error(err))
			}
		}

		if l.vdisplay.Ready() {
			deviceName, deviceUUID := l.deviceIdentityLocked(launch)
			l.displayGUID = guidFromUUID(deviceUUID)
			launch.DisplayGUID = l.displayGUID

			fps := launch.FPSMilli
			if fps == 0 {
				fps = 60000
			}
			if fps < 1000 {
				fps *= 1000
			}

			name, err := l.vdisplay.Create(deviceUUID, deviceName, renderWidth, renderHeight, fps, l.displayGUID)

			// The display may exist even when the name didn't come back;
			// track it so termination removes it either way.
			launch.VirtualDisplay = true

			if err != nil || name == "" {
				l.logger.Warn("virtual display creation failed", zap.Error(err))
			} else {
				l.logger.Info("virtual display created", zap.String("name", name))

				if launch.Width != 0 && launch.Height != 0 && launch.FPSMilli != 0 {
					targetFPS := fps
					if l.cfg.DoubleRefreshRate {
						targetFPS *= 2
					}
					if err := l.vdisplay.SetMode(name, renderWidth, renderHeight, targetFPS); err != nil {
						l.logger.Warn("couldn't apply display mode", zap.Error(err))
					}
				}

				l.virtualDisplay = true
				l.displayName = name
				// Capture must target the new display regardless of what
				// the operator configured.
				l.currentOutput = name
			}
		} else {
			launch.VirtualDisplay = false
		}
	}

	err := l.display.Configure(platform.DisplaySettings{
		OutputName: l.currentOutput,
		Width:      launch.Width,
		Height:     launch.Height,
		FPSMilli:   launch.FPSMilli,
		EnableHDR:  launch.EnableHDR,
	})
	if err != nil {
		l.logger.Warn("display configuration failed", zap.Error(err))
	}

	// Virtual displays vanish with the session; keeping restore state for
	// them would revert the host to a display that no longer exists.
	if l.virtualDisplay {
		l.display.ResetPersistence()
	}
	return nil
}

// deviceIdentityLocked picks the virtual display's identity: app-scoped,
// app-scoped mixed with the client, or client-scoped.
func (l *Launcher) deviceIdentityLocked(launch *session.LaunchSession) (name, id string) {
	if l.app.UseAppIdentity {
		if l.app.PerClientAppIdentity {
			return l.app.Name, xorUUIDs(launch.UniqueID, l.app.UUID)
		}
		return l.app.Name, l.app.UUID
	}
	return launch.DeviceName, launch.UniqueID
}

// startHDRWatchLocked records and optionally toggles the streamed display's
// HDR state once the display settles. Display changes right after creation
// are flaky, so the watcher retries with backoff.
func (l *Launcher) startHDRWatchLocked(enableHDR bool) {
	hdrOption := l.cfg.HDROption
	go func() {
		interval := 200 * time.Millisecond
		var display string
		for {
			l.mu.Lock()
			display = l.displayName
			if display == "" && !l.virtualDisplay {
				display = l.currentOutput
			}
			l.mu.Unlock()
			if display != "" {
				break
			}
			if interval > 2*time.Second {
				l.logger.Warn("no streaming display in time, HDR will not be toggled")
				return
			}
			time.Sleep(interval)
			interval *= 2
		}

		initial := l.vdisplay.GetHDR(display)

		l.mu.Lock()
		l.initialHDR = initial
		l.modeChangedDisplay = display
		l.mu.Unlock()

		if hdrOption == config.HDROptionAutomatic {
			if !l.vdisplay.SetHDR(display, false) {
				return
			}
			if enableHDR {
				if l.vdisplay.SetHDR(display, true) {
					l.logger.Info("HDR enabled", zap.String("display", display))
				} else {
					l.logger.Warn("HDR enable failed", zap.String("display", display))
				}
			}
		} else if initial {
			// Toggling refreshes the display's HDR metadata for capture.
			if l.vdisplay.SetHDR(display, false) && l.vdisplay.SetHDR(display, true) {
				l.logger.Info("HDR toggled", zap.String("display", display))
			}
		}
	}()
}

// PrepareResume reconfigures the display for a session that rejoins the
// running app and re-probes encoders. Called only when no other session is
// active; a probe failure maps to 503 at the control plane.
func (l *Launcher) PrepareResume(launch *session.LaunchSession) error {
	l.mu.Lock()
	output := l.currentOutput
	l.mu.Unlock()

	if err := l.display.Configure(platform.DisplaySettings{
		OutputName: output,
		Width:      launch.Width,
		Height:     launch.Height,
		FPSMilli:   launch.FPSMilli,
		EnableHDR:  launch.EnableHDR,
	}); err != nil {
		l.logger.Warn("display configuration failed", zap.Error(err))
	}

	if err := l.prober.Probe(); err != nil {
		return fmt.Errorf("%w: %v", ErrEncoderInit, err)
	}
	return nil
}

// RevertDisplay restores the display-device collaborator's configuration.
func (l *Launcher) RevertDisplay() {
	l.display.Revert()
}

// guidFromUUID derives the 16-byte display GUID from a UUID string.
func guidFromUUID(s string) [16]byte {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return [16]byte{}
	}
	return parsed
}

// xorUUIDs mixes the client and app UUIDs so each client gets a distinct
// per-app display identity.
func xorUUIDs(a, b string) string {
	ua, errA := uuid.Parse(a)
	ub, errB := uuid.Parse(b)
	if errA != nil || errB != nil {
		return a
	}
	var mixed uuid.UUID
	for i := range mixed {
		mixed[i] = ua[i] ^ ub[i]
	}
	return mixed.String()
}
