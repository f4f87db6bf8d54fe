// If you are AI: This file implements the launch, resume and cancel endpoints.
// Launch arbitration: the first client to take the active-app slot wins.

package gamestream

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"glint/internal/apps"
	"glint/internal/launcher"
	"glint/internal/perm"
)

// encoderInitMessage is the operator-facing text for a failed encoder probe.
const encoderInitMessage = "Failed to initialize video capture/encoding. Is a display connected and turned on?"

// handleLaunch starts an app, joins the running one, or terminates it via
// the reserved terminate entry.
func (s *Service) handleLaunch(w http.ResponseWriter, r *http.Request) {
	peer := peerFrom(r)
	q := r.URL.Query()

	appIDStr := q.Get("appid")
	appUUID := q.Get("appuuid")
	appID := atoiSafe(appIDStr)

	currentApp := s.launcher.Running()
	currentUUID := s.launcher.RunningUUID()
	inputOnlyID := atoiSafe(s.catalog.InputOnlyAppID())
	terminateID := atoiSafe(s.catalog.TerminateAppID())
	isInputOnly := s.cfg.EnableInputOnlyMode &&
		(appID == inputOnlyID || strings.EqualFold(appUUID, apps.RemoteInputUUID))

	// Clients holding only the view permission may join the current app's
	// session; launching something new needs the launch permission.
	required := perm.Mask(perm.Launch)
	isTerminate := strings.EqualFold(appUUID, apps.TerminateAppUUID) || (terminateID != 0 && appID == terminateID)
	if currentApp > 0 && !isTerminate &&
		(isInputOnly || appID == currentApp || (appUUID != "" && strings.EqualFold(appUUID, currentUUID))) {
		required = perm.AllowView
	}

	if !peer.Perm.HasAny(required) {
		s.logger.Debug("launch permission denied", zap.String("device", peer.Name))
		s.writeXML(w, http.StatusOK, &Root{StatusCode: 403, StatusMessage: "Permission denied", Resume: intp(0)})
		return
	}

	if q.Get("rikey") == "" || q.Get("rikeyid") == "" || q.Get("localAudioPlayMode") == "" ||
		(appIDStr == "" && appUUID == "") {
		s.writeXML(w, http.StatusOK, &Root{StatusCode: 400, StatusMessage: "Missing a required launch parameter", Resume: intp(0)})
		return
	}

	if !isInputOnly {
		// The reserved terminate entry stops the running app.
		if isTerminate {
			s.sessions.TerminateAll()
			s.launcher.Terminate(false, false)
			s.writeXML(w, http.StatusOK, &Root{StatusCode: 410, StatusMessage: "App terminated.", Resume: intp(0)})
			return
		}

		if currentApp > 0 && currentApp != inputOnlyID &&
			((appID > 0 && appID != currentApp) || (appUUID != "" && !strings.EqualFold(appUUID, currentUUID))) {
			s.writeXML(w, http.StatusOK, &Root{StatusCode: 400, StatusMessage: "An app is already running on this host", Resume: intp(0)})
			return
		}
	}

	hostAudio := q.Get("localAudioPlayMode") == "1"
	s.mu.Lock()
	s.hostAudio = hostAudio
	s.mu.Unlock()

	ls, err := s.makeLaunchSession(q, peer, hostAudio, isInputOnly)
	if err != nil {
		s.writeError(w, 400, err.Error())
		return
	}
	if s.rejectUnencrypted(w, ls) {
		return
	}

	noActiveSessions := s.sessions.Count() == 0
	isResume := false

	switch {
	case isInputOnly:
		s.logger.Info("launching input-only session")
		ls.ClientDoCmds = nil
		ls.ClientUndoCmds = nil

		// Probe encoders once if this is the first session; a failure only
		// matters when real streaming starts.
		if noActiveSessions && !s.launcher.UsingVirtualDisplay() {
			_ = s.launcher.PrepareResume(ls)
			if currentApp == 0 {
				s.launcher.LaunchInputOnly()
			}
		}

	case currentApp > 0 && (appID == currentApp || (appUUID != "" && strings.EqualFold(appUUID, currentUUID))):
		// Same app: this is a resume through the launch path. Prep commands
		// are not re-run.
		isResume = true
		s.logger.Debug("resuming current app from launch path",
			zap.String("app", s.launcher.RunningName()))

		if !s.launcher.AllowClientCommands() || !peer.AllowClientCommands {
			ls.ClientDoCmds = nil
			ls.ClientUndoCmds = nil
		}
		if currentApp == inputOnlyID && inputOnlyID != 0 {
			ls.InputOnly = true
		}

		if noActiveSessions && !s.launcher.UsingVirtualDisplay() {
			if err := s.launcher.PrepareResume(ls); err != nil {
				s.writeXML(w, http.StatusOK, &Root{StatusCode: 503, StatusMessage: encoderInitMessage, Resume: intp(0)})
				return
			}
		}

	default:
		app, ok := s.findApp(appIDStr, appUUID)
		if !ok {
			s.logger.Error("requested app not found",
				zap.String("appid", appIDStr), zap.String("appuuid", appUUID))
			s.writeXML(w, http.StatusOK, &Root{StatusCode: 404, StatusMessage: "Cannot find requested application", GameSession: intp(0)})
			return
		}

		if !app.AllowClientCommands {
			ls.ClientDoCmds = nil
			ls.ClientUndoCmds = nil
		}

		if err := s.launcher.Execute(app, ls); err != nil {
			if errors.Is(err, launcher.ErrEncoderInit) {
				s.writeXML(w, http.StatusOK, &Root{StatusCode: 503, StatusMessage: encoderInitMessage, GameSession: intp(0)})
			} else {
				s.writeXML(w, http.StatusOK, &Root{StatusCode: 500, StatusMessage: "Failed to start the specified application", GameSession: intp(0)})
			}
			return
		}
	}

	s.sessions.Alloc(ls)

	body := &Root{
		StatusCode:  200,
		SessionURL0: s.sessionURL(r, ls),
		GameSession: intp(1),
	}
	if isResume {
		body.Resume = intp(1)
	}
	s.writeXML(w, http.StatusOK, body)
}

// handleResume rejoins the running app.
func (s *Service) handleResume(w http.ResponseWriter, r *http.Request) {
	peer := peerFrom(r)

	if !peer.Perm.HasAny(perm.AllowView) {
		s.logger.Debug("resume permission denied", zap.String("device", peer.Name))
		s.writeXML(w, http.StatusOK, &Root{StatusCode: 403, StatusMessage: "Permission denied", Resume: intp(0)})
		return
	}

	currentApp := s.launcher.Running()
	if currentApp == 0 {
		s.writeXML(w, http.StatusOK, &Root{StatusCode: 503, StatusMessage: "No running app to resume", Resume: intp(0)})
		return
	}

	q := r.URL.Query()
	if q.Get("rikey") == "" || q.Get("rikeyid") == "" {
		s.writeXML(w, http.StatusOK, &Root{StatusCode: 400, StatusMessage: "Missing a required resume parameter", Resume: intp(0)})
		return
	}

	// Newer clients send localAudioPlayMode on resume too; honour it only
	// when no active session could be disturbed by the change.
	noActiveSessions := s.sessions.Count() == 0
	s.mu.Lock()
	if noActiveSessions && q.Has("localAudioPlayMode") {
		s.hostAudio = q.Get("localAudioPlayMode") == "1"
	}
	hostAudio := s.hostAudio
	s.mu.Unlock()

	ls, err := s.makeLaunchSession(q, peer, hostAudio, false)
	if err != nil {
		s.writeError(w, 400, err.Error())
		return
	}

	if !s.launcher.AllowClientCommands() || !peer.AllowClientCommands {
		ls.ClientDoCmds = nil
		ls.ClientUndoCmds = nil
	}
	if inputOnlyID := atoiSafe(s.catalog.InputOnlyAppID()); s.cfg.EnableInputOnlyMode && currentApp == inputOnlyID && inputOnlyID != 0 {
		ls.InputOnly = true
	}

	if noActiveSessions && !s.launcher.UsingVirtualDisplay() {
		// Reconfigure the display and re-probe before streaming: the GPU
		// topology may have changed since the app launched.
		if err := s.launcher.PrepareResume(ls); err != nil {
			s.writeXML(w, http.StatusOK, &Root{StatusCode: 503, StatusMessage: encoderInitMessage, Resume: intp(0)})
			return
		}
	}

	if s.rejectUnencrypted(w, ls) {
		return
	}

	s.sessions.Alloc(ls)
	s.writeXML(w, http.StatusOK, &Root{
		StatusCode:  200,
		SessionURL0: s.sessionURL(r, ls),
		Resume:      intp(1),
	})
}

// handleCancel terminates the running app and reverts the display.
func (s *Service) handleCancel(w http.ResponseWriter, r *http.Request) {
	peer := peerFrom(r)

	if !peer.Perm.Has(perm.Launch) {
		s.logger.Debug("cancel permission denied", zap.String("device", peer.Name))
		s.writeXML(w, http.StatusOK, &Root{StatusCode: 403, StatusMessage: "Permission denied", Resume: intp(0)})
		return
	}

	s.sessions.TerminateAll()
	if s.launcher.Running() > 0 {
		s.launcher.Terminate(false, false)
	}

	// The display is reverted even when no app was running; cancel is the
	// client's way of forcing the host back to its resting configuration.
	s.launcher.RevertDisplay()

	s.writeXML(w, http.StatusOK, &Root{StatusCode: 200, Cancel: intp(1)})
}

