// If you are AI: This file builds launch sessions from request parameters.
// The stored client settings override what the request asks for.

package gamestream

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"glint/internal/apps"
	"glint/internal/config"
	"glint/internal/identity"
	"glint/internal/session"
)

// makeLaunchSession builds the per-stream state from the request parameters
// and the paired client's stored settings.
func (s *Service) makeLaunchSession(q url.Values, client *identity.PairedClient, hostAudio, inputOnly bool) (*session.LaunchSession, error) {
	ls := &session.LaunchSession{
		ID:        s.sessions.NextLaunchID(),
		UniqueID:  client.UUID,
		Perm:      client.Perm,
		HostAudio: hostAudio,
		InputOnly: inputOnly,
	}

	ls.DeviceName = client.Name
	if ls.DeviceName == "" {
		ls.DeviceName = "ApolloDisplay"
	}

	rikeyID, _ := strconv.ParseUint(q.Get("rikeyid"), 10, 32)
	corever, _ := strconv.Atoi(q.Get("corever"))
	if err := ls.SetStreamKeys(q.Get("rikey"), uint32(rikeyID), corever); err != nil {
		return nil, fmt.Errorf("invalid rikey: %w", err)
	}

	// The client's stored display mode overrides the requested one.
	mode := client.DisplayMode
	if mode == "" {
		mode = q.Get("mode")
		if mode == "" {
			mode = s.cfg.FallbackMode
		}
		s.logger.Info("display mode requested",
			zap.String("device", client.Name), zap.String("mode", mode))
	} else {
		s.logger.Info("display mode overridden",
			zap.String("device", client.Name), zap.String("mode", mode))
	}

	width, height, fpsMilli, err := config.ParseMode(mode)
	if err != nil {
		width, height, fpsMilli = 1920, 1080, 60000
	}
	ls.Width = width
	ls.Height = height
	ls.FPSMilli = fpsMilli

	ls.EnableSOPS = q.Get("sops") == "1"
	ls.SurroundInfo = atoiDefault(q.Get("surroundAudioInfo"), 196610)
	ls.SurroundParams = q.Get("surroundParams")
	ls.GCMap = atoiDefault(q.Get("gcmap"), 0)
	ls.EnableHDR = q.Get("hdrMode") == "1"
	ls.VirtualDisplay = q.Get("virtualDisplay") == "1" || client.AlwaysUseVirtualDisplay
	ls.ScaleFactor = atoiDefault(q.Get("scaleFactor"), 100)

	ls.ClientDoCmds = client.DoCmds
	ls.ClientUndoCmds = client.UndoCmds
	return ls, nil
}

// sessionURL builds sessionUrl0 from the negotiated scheme and the local
// endpoint the request arrived on.
func (s *Service) sessionURL(r *http.Request, ls *session.LaunchSession) string {
	host := localIPForResponse(r)
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s%s:%d", ls.RTSPURLScheme, host, s.cfg.RTSPPort())
}

// rejectUnencrypted enforces the encryption-mandatory deployment mode.
func (s *Service) rejectUnencrypted(w http.ResponseWriter, ls *session.LaunchSession) bool {
	if ls.Encrypted() || s.cfg.EncryptionMode != config.EncryptionMandatory {
		return false
	}

	s.logger.Error("rejecting client that cannot comply with mandatory encryption")
	s.writeXML(w, http.StatusOK, &Root{
		StatusCode:    403,
		StatusMessage: "Encryption is mandatory for this host but unsupported by the client",
		GameSession:   intp(0),
	})
	return true
}

// findApp resolves an app by id or UUID.
func (s *Service) findApp(appID, appUUID string) (apps.App, bool) {
	if appUUID != "" {
		if app, ok := s.catalog.FindByUUID(appUUID); ok {
			return app, true
		}
	}
	if appID != "" && appID != "0" {
		if app, ok := s.catalog.FindByID(appID); ok {
			return app, true
		}
	}
	return apps.App{}, false
}

// atoiDefault parses an int query parameter with a fallback.
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
