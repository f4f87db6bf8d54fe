// If you are AI: This file implements the serverinfo, pair, applist and
// appasset handlers of the gamestream control plane.

package gamestream

import (
	"io"
	"net"
	"net/http"
	"os"
	"strconv"

	"go.uber.org/zap"

	"glint/internal/perm"
	"glint/internal/zwpad"
)

// handleServerInfo reports host capabilities. Paired clients on TLS get the
// real MAC, their permission mask and the current game; anonymous requests
// get placeholders.
func (s *Service) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	peer := peerFrom(r)

	body := &Root{
		StatusCode:        200,
		Hostname:          s.cfg.HostName,
		AppVersion:        AppVersion,
		GfeVersion:        GfeVersion,
		UniqueID:          s.clients.UniqueID(),
		HTTPSPort:         intp(s.cfg.HTTPSPort()),
		ExternalPort:      intp(s.cfg.HTTPPort()),
		MaxLumaPixelsHEVC: maxLumaPixelsHEVC,
		LocalIP:           localIPForResponse(r),
		CodecModeSupport:  u32p(uint32(SCMH264 | SCMHEVC | SCMHEVCMain10)),
	}

	if peer != nil {
		body.MAC = s.resolveMAC(remoteAddr(r))
		body.Permission = strconv.FormatUint(uint64(peer.Perm), 10)

		if peer.Perm.Has(perm.ServerCmd) {
			for name := range s.cfg.ServerCmds {
				body.ServerCommands = append(body.ServerCommands, name)
			}
		}

		body.VirtualDisplayCapable = boolp(true)
		if peer.Perm.HasAny(perm.AllActions) {
			body.VirtualDisplayReady = boolp(s.vdisplayReady())
		} else {
			body.VirtualDisplayReady = boolp(true)
		}

		pairStatus := 0
		if r.URL.Query().Get("uniqueid") != "" {
			pairStatus = 1
		}
		body.PairStatus = intp(pairStatus)

		currentApp := s.launcher.Running()
		// Under input-only mode the only resumable app is the placeholder.
		if s.cfg.EnableInputOnlyMode && currentApp != atoiSafe(s.catalog.InputOnlyAppID()) {
			currentApp = 0
		}
		body.CurrentGame = intp(currentApp)
		body.CurrentGameUUID = strp(s.launcher.RunningUUID())
		if currentApp > 0 {
			body.State = "SUNSHINE_SERVER_BUSY"
		} else {
			body.State = "SUNSHINE_SERVER_FREE"
		}
	} else {
		body.MAC = "00:00:00:00:00:00"
		body.Permission = "0"
		body.PairStatus = intp(0)
		body.CurrentGame = intp(0)
		body.CurrentGameUUID = strp("")
		body.State = "SUNSHINE_SERVER_FREE"
	}

	s.writeXML(w, http.StatusOK, body)
}

// handlePair dispatches one phase of the pairing machine from its query
// parameters.
func (s *Service) handlePair(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.EnablePairing {
		s.writeError(w, 403, "Pairing is disabled for this instance")
		return
	}

	q := r.URL.Query()
	uniqueID := q.Get("uniqueid")
	if uniqueID == "" {
		s.writeError(w, 400, "Missing uniqueid parameter")
		return
	}

	switch {
	case q.Get("phrase") == "getservercert":
		res, pending := s.engine.GetServerCert(
			uniqueID,
			q.Get("devicename"),
			q.Get("salt"),
			q.Get("clientcert"),
			q.Get("otpauth"),
		)
		if pending != nil {
			// Hold the response open until the operator supplies a PIN.
			select {
			case res = <-pending:
			case <-r.Context().Done():
				return
			}
		}
		s.writeXML(w, http.StatusOK, pairEnvelope(res.StatusCode, res.StatusMessage, res.Paired, res.PlainCert, "", ""))

	case q.Get("phrase") == "pairchallenge":
		s.writeXML(w, http.StatusOK, &Root{StatusCode: 200, Paired: intp(1)})

	case q.Has("clientchallenge"):
		res := s.engine.ClientChallenge(uniqueID, q.Get("clientchallenge"))
		s.writeXML(w, http.StatusOK, pairEnvelope(res.StatusCode, res.StatusMessage, res.Paired, "", res.ChallengeResponse, ""))

	case q.Has("serverchallengeresp"):
		res := s.engine.ServerChallengeResp(uniqueID, q.Get("serverchallengeresp"))
		s.writeXML(w, http.StatusOK, pairEnvelope(res.StatusCode, res.StatusMessage, res.Paired, "", "", res.PairingSecret))

	case q.Has("clientpairingsecret"):
		res := s.engine.ClientPairingSecret(uniqueID, q.Get("clientpairingsecret"))
		s.writeXML(w, http.StatusOK, pairEnvelope(res.StatusCode, res.StatusMessage, res.Paired, "", "", ""))

	default:
		s.writeError(w, 404, "Invalid pairing request")
	}
}

// handleAppList returns the catalog filtered by the client's permissions
// and the input-only visibility rules.
func (s *Service) handleAppList(w http.ResponseWriter, r *http.Request) {
	peer := peerFrom(r)

	body := &Root{StatusCode: 200}

	if !peer.Perm.HasAny(perm.AllActions) {
		s.logger.Debug("list permission denied", zap.String("device", peer.Name))
		body.Apps = []AppEntry{{
			IsHdrSupported: 0,
			AppTitle:       "Permission Denied",
			UUID:           "",
			IDX:            0,
			ID:             "114514",
		}}
		s.writeXML(w, http.StatusOK, body)
		return
	}

	currentApp := s.launcher.Running()
	inputOnlyID := atoiSafe(s.catalog.InputOnlyAppID())
	terminateID := atoiSafe(s.catalog.TerminateAppID())
	hideInactive := s.cfg.EnableInputOnlyMode && currentApp > 0 && currentApp != inputOnlyID

	list := s.catalog.Apps()

	legacyOrdering := s.cfg.LegacyOrdering && peer.EnableLegacyOrdering
	padBits := 0
	if legacyOrdering {
		padBits = zwpad.PadWidthForCount(len(list))
	}

	for i, app := range list {
		id := atoiSafe(app.ID)
		if hideInactive {
			if id != currentApp && id != inputOnlyID && id != terminateID {
				continue
			}
		} else if terminateID != 0 && id == terminateID {
			continue
		}

		title := app.Name
		if legacyOrdering {
			title = zwpad.PadForOrdering(title, padBits, i)
		}

		body.Apps = append(body.Apps, AppEntry{
			IsHdrSupported: 1,
			AppTitle:       title,
			UUID:           app.UUID,
			IDX:            app.Idx,
			ID:             app.ID,
		})
	}

	s.writeXML(w, http.StatusOK, body)
}

// handleAppAsset streams an app's cover image.
func (s *Service) handleAppAsset(w http.ResponseWriter, r *http.Request) {
	peer := peerFrom(r)

	if !peer.Perm.HasAny(perm.AllActions) {
		s.logger.Debug("asset permission denied", zap.String("device", peer.Name))
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	appID := r.URL.Query().Get("appid")
	path := s.catalog.ImagePath(appID)

	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn("couldn't open app image", zap.String("path", path), zap.Error(err))
		w.WriteHeader(http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}

// remoteAddr strips the port from the request's remote address.
func remoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// localIPForResponse picks the LocalIP value. Clients track IPv4 separately,
// so IPv6 local endpoints report the loopback placeholder they know to ignore.
func localIPForResponse(r *http.Request) string {
	addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr)
	if !ok {
		return "127.0.0.1"
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "127.0.0.1"
	}
	ip := net.ParseIP(host)
	if ip == nil || (ip.To4() == nil && !ip.IsLoopback()) {
		return "127.0.0.1"
	}
	return host
}

// atoiSafe parses an app id string, returning 0 for anything unparseable.
func atoiSafe(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
