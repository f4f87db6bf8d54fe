// If you are AI: This file implements config, credentials and process control.

package admin

import (
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"glint/internal/identity"
)

// handleLogs streams the host log file to the UI.
func (s *Service) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	data, err := os.ReadFile(s.cfg.LogPath)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "no log file")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(data)
}

// handleGetConfig returns the effective configuration.
func (s *Service) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"config":   s.cfg,
		"platform": "linux",
	})
}

// handleSaveConfig applies and persists configuration changes.
func (s *Service) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	var incoming map[string]string
	if !s.decodeBody(w, r, &incoming) {
		return
	}

	// Validate against a copy first; a bad value must not corrupt the
	// running configuration.
	updated := *s.cfg
	for key, value := range incoming {
		if err := updated.Set(key, value); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := updated.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	*s.cfg = updated
	if err := s.cfg.Save(s.cfg.Path); err != nil {
		s.writeError(w, http.StatusInternalServerError, "couldn't persist config")
		return
	}
	s.events.Publish("config_changed", nil)
	s.writeOK(w)
}

// handleSavePassword rewrites the credentials file and invalidates every
// session cookie. First-run setup skips the current-password check.
func (s *Service) handleSavePassword(w http.ResponseWriter, r *http.Request) {
	creds := s.credentials()
	if creds.Configured() {
		if !s.authenticate(w, r) {
			return
		}
	} else if !s.checkOrigin(w, r) {
		return
	}

	var req struct {
		CurrentUsername    string `json:"currentUsername"`
		CurrentPassword    string `json:"currentPassword"`
		NewUsername        string `json:"newUsername"`
		NewPassword        string `json:"newPassword"`
		ConfirmNewPassword string `json:"confirmNewPassword"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.NewPassword == "" || req.NewPassword != req.ConfirmNewPassword {
		s.writeError(w, http.StatusBadRequest, "password missing or confirmation mismatch")
		return
	}
	if creds.Configured() && !creds.Check(req.CurrentUsername, req.CurrentPassword) {
		s.writeError(w, http.StatusBadRequest, "Invalid Current Credentials")
		return
	}

	username := req.NewUsername
	if username == "" {
		username = creds.Username
	}

	updated, err := identity.SaveCredentials(s.cfg.FileCredentials, username, req.NewPassword)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "couldn't persist credentials")
		return
	}
	s.setCredentials(updated)
	s.cookies.invalidate()
	s.writeOK(w)
}

// handleUploadCover stores a cover image for an app.
func (s *Service) handleUploadCover(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	var req struct {
		Key  string `json:"key"`
		Data string `json:"data"` // base64 PNG payload
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Key == "" || strings.ContainsAny(req.Key, "/\\") {
		s.writeError(w, http.StatusBadRequest, "invalid cover key")
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid image payload")
		return
	}

	if err := os.MkdirAll(s.cfg.CoverPath, 0o755); err != nil {
		s.writeError(w, http.StatusInternalServerError, "couldn't create cover directory")
		return
	}
	path := filepath.Join(s.cfg.CoverPath, req.Key+".png")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		s.writeError(w, http.StatusInternalServerError, "couldn't store cover")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": true, "path": path})
}

// handleResetDisplayPersistence drops stored display restore state.
func (s *Service) handleResetDisplayPersistence(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}
	s.display.ResetPersistence()
	s.writeOK(w)
}

// handleRestart asks the process supervisor for a restart.
func (s *Service) handleRestart(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}
	s.writeOK(w)
	if s.Restart != nil {
		go s.Restart()
	}
}

// handleQuit shuts the host down without respawn.
func (s *Service) handleQuit(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}
	s.writeOK(w)
	if s.Quit != nil {
		go s.Quit()
	}
}

