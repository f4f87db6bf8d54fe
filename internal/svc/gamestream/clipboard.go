// If you are AI: This file implements the clipboard actions endpoint.
// Access needs a live stream plus the matching clipboard permission.

package gamestream

import (
	"io"
	"net/http"

	"glint/internal/perm"
)

// handleGetClipboard reads the host clipboard for a connected, permitted peer.
func (s *Service) handleGetClipboard(w http.ResponseWriter, r *http.Request) {
	peer := peerFrom(r)

	if !peer.Perm.HasAny(perm.AllowView) || !peer.Perm.Has(perm.ClipboardRead) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.URL.Query().Get("type") != "text" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if s.sessions.Lookup(peer.UUID) == nil {
		// Clipboard access needs a live stream, not just pairing.
		w.WriteHeader(http.StatusForbidden)
		return
	}

	content, err := s.clipboard.Get()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Write([]byte(content))
}

// handleSetClipboard writes the host clipboard for a connected, permitted peer.
func (s *Service) handleSetClipboard(w http.ResponseWriter, r *http.Request) {
	peer := peerFrom(r)

	if !peer.Perm.HasAny(perm.AllowView) || !peer.Perm.Has(perm.ClipboardSet) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.URL.Query().Get("type") != "text" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if s.sessions.Lookup(peer.UUID) == nil {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	content, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.clipboard.Set(string(content)); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

