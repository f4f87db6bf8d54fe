// If you are AI: This file implements the client-management admin handlers.
// Permission changes propagate into live sessions before they persist.

package admin

import (
	"net/http"

	"glint/internal/identity"
	"glint/internal/perm"
)

// clientInfo is one row of the clients list.
type clientInfo struct {
	identity.PairedClient
	Connected bool `json:"connected"`
}

// handleListClients returns the paired clients with live-connection flags.
func (s *Service) handleListClients(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	connected := map[string]bool{}
	for _, id := range s.sessions.AllUUIDs() {
		connected[id] = true
	}

	list := s.clients.List()
	out := make([]clientInfo, 0, len(list))
	for _, client := range list {
		client.Cert = "" // the UI has no use for certificate bodies
		out = append(out, clientInfo{PairedClient: client, Connected: connected[client.UUID]})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"named_certs": out})
}

// handleUpdateClient rewrites a client's settings and propagates permission
// changes into any live session.
func (s *Service) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	var req struct {
		UUID                    string                  `json:"uuid"`
		Name                    string                  `json:"name"`
		DisplayMode             string                  `json:"display_mode"`
		Perm                    uint32                  `json:"perm"`
		Do                      []identity.CommandEntry `json:"do"`
		Undo                    []identity.CommandEntry `json:"undo"`
		EnableLegacyOrdering    bool                    `json:"enable_legacy_ordering"`
		AllowClientCommands     bool                    `json:"allow_client_commands"`
		AlwaysUseVirtualDisplay bool                    `json:"always_use_virtual_display"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	mask := perm.Mask(req.Perm).Clamp()

	// The live session sees the change first so a revoked view permission
	// disconnects the device immediately.
	s.sessions.UpdateInfo(req.UUID, req.Name, mask)

	ok, err := s.clients.Update(req.UUID, req.Name, req.DisplayMode, mask,
		req.Do, req.Undo, req.EnableLegacyOrdering, req.AllowClientCommands, req.AlwaysUseVirtualDisplay)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "couldn't persist client")
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "no client with that uuid")
		return
	}
	s.events.Publish("clients_changed", nil)
	s.writeOK(w)
}

// handleUnpair removes one client, stops its session and, when the registry
// empties, terminates the running app.
func (s *Service) handleUnpair(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	var req struct {
		UUID string `json:"uuid"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	removed, err := s.clients.Unpair(req.UUID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "couldn't persist registry")
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "no client with that uuid")
		return
	}

	s.sessions.StopByUUID(req.UUID, true)
	if s.clients.Empty() {
		s.launcher.Terminate(false, false)
	}
	s.events.Publish("clients_changed", nil)
	s.writeOK(w)
}

// handleUnpairAll wipes the registry and stops everything.
func (s *Service) handleUnpairAll(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	if err := s.clients.UnpairAll(); err != nil {
		s.writeError(w, http.StatusInternalServerError, "couldn't persist registry")
		return
	}
	s.sessions.TerminateAll()
	s.launcher.Terminate(false, false)
	s.events.Publish("clients_changed", nil)
	s.writeOK(w)
}

// handleDisconnect gracefully stops one client's live session.
func (s *Service) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	var req struct {
		UUID string `json:"uuid"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	if !s.sessions.StopByUUID(req.UUID, true) {
		s.writeError(w, http.StatusNotFound, "no live session for that client")
		return
	}
	s.events.Publish("client_disconnected", map[string]string{"uuid": req.UUID})
	s.writeOK(w)
}

