// If you are AI: This file implements the app-management admin handlers.

package admin

import (
	"net/http"

	"go.uber.org/zap"

	"glint/internal/apps"
	"glint/internal/config"
	"glint/internal/perm"
	"glint/internal/session"
)

// handleGetApps returns the catalog as the UI edits it.
func (s *Service) handleGetApps(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"apps": s.catalog.Apps()})
}

// handleSaveApp inserts or replaces one app entry and reloads the catalog.
func (s *Service) handleSaveApp(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	var app map[string]interface{}
	if !s.decodeBody(w, r, &app) {
		return
	}
	if name, _ := app["name"].(string); name == "" {
		s.writeError(w, http.StatusBadRequest, "app name is required")
		return
	}

	if err := apps.Save(s.cfg.FileApps, app); err != nil {
		s.logger.Error("couldn't save app", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "couldn't save app")
		return
	}
	s.reloadCatalog()
	s.events.Publish("apps_changed", nil)
	s.writeOK(w)
}

// handleDeleteApp removes an app by UUID.
func (s *Service) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	var req struct {
		UUID string `json:"uuid"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	removed, err := apps.Delete(s.cfg.FileApps, req.UUID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "couldn't delete app")
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "no app with that uuid")
		return
	}
	s.reloadCatalog()
	s.events.Publish("apps_changed", nil)
	s.writeOK(w)
}

// handleReorderApps rewrites the catalog order.
func (s *Service) handleReorderApps(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	var req struct {
		Order []string `json:"order"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := apps.Reorder(s.cfg.FileApps, req.Order); err != nil {
		s.writeError(w, http.StatusInternalServerError, "couldn't reorder apps")
		return
	}
	s.reloadCatalog()
	s.events.Publish("apps_changed", nil)
	s.writeOK(w)
}

// handleLaunchApp starts an app from the UI without a remote client.
func (s *Service) handleLaunchApp(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	var req struct {
		UUID string `json:"uuid"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	app, ok := s.catalog.FindByUUID(req.UUID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no app with that uuid")
		return
	}

	// Host-initiated launches carry the host's own identity and no stream
	// keys; the stream starts when a client later resumes.
	width, height, fpsMilli, err := config.ParseMode(s.cfg.FallbackMode)
	if err != nil {
		width, height, fpsMilli = 1920, 1080, 60000
	}
	ls := &session.LaunchSession{
		ID:         s.sessions.NextLaunchID(),
		DeviceName: s.cfg.HostName,
		UniqueID:   s.clients.UniqueID(),
		Perm:       perm.All,
		Width:      width,
		Height:     height,
		FPSMilli:   fpsMilli,
		HostAudio:  true,
	}

	if err := s.launcher.Execute(app, ls); err != nil {
		s.logger.Error("admin launch failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "couldn't launch app")
		return
	}
	s.events.Publish("app_started", map[string]string{"name": app.Name, "uuid": app.UUID})
	s.writeOK(w)
}

// handleCloseApp terminates the running app.
func (s *Service) handleCloseApp(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	s.sessions.TerminateAll()
	s.launcher.Terminate(false, false)
	s.events.Publish("app_stopped", nil)
	s.writeOK(w)
}

// reloadCatalog re-reads the apps file after a mutation.
func (s *Service) reloadCatalog() {
	if err := s.catalog.Load(s.cfg.FileApps, apps.Options{
		EnableInputOnlyMode: s.cfg.EnableInputOnlyMode,
		GlobalPrepCmds:      s.cfg.GlobalPrepCmds,
	}); err != nil {
		s.logger.Warn("couldn't reload catalog", zap.Error(err))
	}
}
