// If you are AI: This file implements login, PIN and OTP admin handlers.

package admin

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// handleLogin checks credentials and mints the session cookie.
func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(w, r) {
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	creds := s.credentials()
	if !creds.Check(req.Username, req.Password) {
		s.logger.Warn("login failed", zap.String("username", req.Username))
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	raw := s.cookies.set(creds.Salt)
	http.SetCookie(w, &http.Cookie{
		Name:     "auth",
		Value:    raw,
		Path:     "/",
		MaxAge:   int(SessionExpire.Seconds()),
		Secure:   true,
		HttpOnly: true,
	})
	s.writeOK(w)
}

// handlePin forwards a pairing PIN typed into the UI.
func (s *Service) handlePin(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	var req struct {
		Pin  string `json:"pin"`
		Name string `json:"name"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	if len(req.Pin) != 4 || strings.Trim(req.Pin, "0123456789") != "" {
		s.writeError(w, http.StatusBadRequest, "pin must be 4 digits")
		return
	}

	if !s.engine.SubmitPin(req.Pin, req.Name) {
		s.writeError(w, http.StatusBadRequest, "no pairing session waiting for a pin")
		return
	}
	s.events.Publish("pin_submitted", nil)
	s.writeOK(w)
}

// handleOTP issues a one-time pairing PIN.
func (s *Service) handleOTP(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	passphrase := r.URL.Query().Get("passphrase")
	deviceName := r.URL.Query().Get("deviceName")

	pin, err := s.engine.RequestOTP(passphrase, deviceName)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": true, "otp": pin})
}

