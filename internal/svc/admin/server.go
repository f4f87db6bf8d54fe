// If you are AI: This file wires the admin API service and its route table.
// All endpoints speak JSON and sit behind cookie auth and origin checks.

package admin

import (
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"glint/internal/apps"
	"glint/internal/config"
	"glint/internal/identity"
	"glint/internal/launcher"
	"glint/internal/pairing"
	"glint/internal/platform"
	"glint/internal/session"
)

// ControlFunc is invoked for process-level actions requested by the UI.
type ControlFunc func()

// Service is the authenticated administrative API.
type Service struct {
	cfg      *config.Config
	clients  *identity.Registry
	sessions *session.Registry
	engine   *pairing.Engine
	catalog  *apps.Catalog
	launcher *launcher.Launcher
	display  platform.DisplayDevice

	credsMu sync.Mutex
	creds   identity.Credentials

	cookies cookieState
	events  *EventHub

	// Restart and Quit are supplied by the process entry point.
	Restart ControlFunc
	Quit    ControlFunc

	logger *zap.Logger
}

// Deps bundles the admin service collaborators.
type Deps struct {
	Config   *config.Config
	Clients  *identity.Registry
	Sessions *session.Registry
	Engine   *pairing.Engine
	Catalog  *apps.Catalog
	Launcher *launcher.Launcher
	Display  platform.DisplayDevice
	Creds    identity.Credentials
	Logger   *zap.Logger
}

// New creates the admin service.
func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Display == nil {
		deps.Display = platform.NopDisplayDevice{}
	}
	return &Service{
		cfg:      deps.Config,
		clients:  deps.Clients,
		sessions: deps.Sessions,
		engine:   deps.Engine,
		catalog:  deps.Catalog,
		launcher: deps.Launcher,
		display:  deps.Display,
		creds:    deps.Creds,
		events:   NewEventHub(logger),
		logger:   logger.Named("admin"),
	}
}

// Events exposes the event hub so other components can publish.
func (s *Service) Events() *EventHub {
	return s.events
}

// credentials returns the current admin credentials snapshot.
func (s *Service) credentials() identity.Credentials {
	s.credsMu.Lock()
	defer s.credsMu.Unlock()
	return s.creds
}

// setCredentials swaps the credentials snapshot after a password change.
func (s *Service) setCredentials(creds identity.Credentials) {
	s.credsMu.Lock()
	s.creds = creds
	s.credsMu.Unlock()
}

// Routes builds the admin route table.
func (s *Service) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/pin", s.handlePin)
	mux.HandleFunc("GET /api/otp", s.handleOTP)

	mux.HandleFunc("GET /api/apps", s.handleGetApps)
	mux.HandleFunc("POST /api/apps", s.handleSaveApp)
	mux.HandleFunc("POST /api/apps/delete", s.handleDeleteApp)
	mux.HandleFunc("POST /api/apps/reorder", s.handleReorderApps)
	mux.HandleFunc("POST /api/apps/launch", s.handleLaunchApp)
	mux.HandleFunc("POST /api/apps/close", s.handleCloseApp)

	mux.HandleFunc("GET /api/clients/list", s.handleListClients)
	mux.HandleFunc("POST /api/clients/update", s.handleUpdateClient)
	mux.HandleFunc("POST /api/clients/unpair", s.handleUnpair)
	mux.HandleFunc("POST /api/clients/unpair-all", s.handleUnpairAll)
	mux.HandleFunc("POST /api/clients/disconnect", s.handleDisconnect)

	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.handleSaveConfig)
	mux.HandleFunc("POST /api/password", s.handleSavePassword)
	mux.HandleFunc("POST /api/covers/upload", s.handleUploadCover)

	mux.HandleFunc("POST /api/reset-display-device-persistence", s.handleResetDisplayPersistence)
	mux.HandleFunc("POST /api/restart", s.handleRestart)
	mux.HandleFunc("POST /api/quit", s.handleQuit)

	mux.HandleFunc("GET /api/events", s.handleEvents)

	return mux
}

// writeJSON writes a JSON response.
func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{"status": false, "error": message})
}

// writeOK writes the standard success envelope.
func (s *Service) writeOK(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": true})
}

// decodeBody parses a JSON request body into v. Mutating calls must carry
// the right content type.
func (s *Service) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && ct != "application/json" {
		s.writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
