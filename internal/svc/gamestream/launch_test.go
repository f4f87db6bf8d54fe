// If you are AI: This file contains unit tests for launch, resume, cancel
// and the clipboard actions.

package gamestream

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"glint/internal/apps"
	"glint/internal/config"
	"glint/internal/perm"
	"glint/internal/session"
)

func TestLaunchStartsSession(t *testing.T) {
	h := newTestHost(t)
	_, cert := h.pairClient(t, "Phone", perm.All)

	_, body := h.doTLS(t, "GET", "/launch?"+launchQuery("aaaaaaaa-1111-2222-3333-444444444444", 0), cert)

	if body.StatusCode != 200 {
		t.Fatalf("launch = %+v", body)
	}
	if body.GameSession == nil || *body.GameSession != 1 {
		t.Error("gamesession != 1")
	}
	if !strings.HasPrefix(body.SessionURL0, "rtsp://") {
		t.Errorf("sessionUrl0 = %q", body.SessionURL0)
	}
	if !strings.HasSuffix(body.SessionURL0, ":48010") {
		t.Errorf("sessionUrl0 = %q, want RTSP port 48010", body.SessionURL0)
	}
	if h.sessions.Count() != 1 {
		t.Errorf("session count = %d", h.sessions.Count())
	}
	if h.launcher.Running() == 0 {
		t.Error("launcher reports nothing running")
	}
}

func TestLaunchConflictAndResumeViaLaunch(t *testing.T) {
	h := newTestHost(t)
	_, cert := h.pairClient(t, "Phone", perm.All)

	if _, body := h.doTLS(t, "GET", "/launch?"+launchQuery("aaaaaaaa-1111-2222-3333-444444444444", 0), cert); body.StatusCode != 200 {
		t.Fatalf("first launch = %+v", body)
	}

	// Launching a different app while one runs conflicts.
	_, conflict := h.doTLS(t, "GET", "/launch?"+launchQuery("bbbbbbbb-1111-2222-3333-444444444444", 0), cert)
	if conflict.StatusCode != 400 {
		t.Errorf("conflict status = %d, want 400", conflict.StatusCode)
	}
	if !strings.Contains(conflict.StatusMessage, "already running") {
		t.Errorf("conflict message = %q", conflict.StatusMessage)
	}

	// Launching the same app again is a resume.
	_, resume := h.doTLS(t, "GET", "/launch?"+launchQuery("aaaaaaaa-1111-2222-3333-444444444444", 0), cert)
	if resume.StatusCode != 200 {
		t.Fatalf("same-app launch = %+v", resume)
	}
	if resume.Resume == nil || *resume.Resume != 1 {
		t.Error("same-app launch should report resume=1")
	}
}

func TestLaunchMissingParams(t *testing.T) {
	h := newTestHost(t)
	_, cert := h.pairClient(t, "Phone", perm.All)

	_, body := h.doTLS(t, "GET", "/launch?appuuid=aaaaaaaa-1111-2222-3333-444444444444", cert)
	if body.StatusCode != 400 {
		t.Errorf("status = %d, want 400", body.StatusCode)
	}
}

func TestLaunchPermissionDenied(t *testing.T) {
	h := newTestHost(t)
	_, cert := h.pairClient(t, "Viewer", perm.Default)

	_, body := h.doTLS(t, "GET", "/launch?"+launchQuery("aaaaaaaa-1111-2222-3333-444444444444", 0), cert)
	if body.StatusCode != 403 {
		t.Errorf("status = %d, want 403", body.StatusCode)
	}
}

func TestEncryptionMandatoryRejectsLegacyClient(t *testing.T) {
	h := newTestHost(t)
	h.cfg.EncryptionMode = config.EncryptionMandatory
	_, cert := h.pairClient(t, "Phone", perm.All)

	_, body := h.doTLS(t, "GET", "/launch?"+launchQuery("aaaaaaaa-1111-2222-3333-444444444444", 0), cert)
	if body.StatusCode != 403 {
		t.Errorf("status = %d, want 403", body.StatusCode)
	}
	if body.GameSession == nil || *body.GameSession != 0 {
		t.Error("gamesession should be 0")
	}

	// A GCM-capable client passes and gets the encrypted scheme.
	_, ok := h.doTLS(t, "GET", "/launch?"+launchQuery("aaaaaaaa-1111-2222-3333-444444444444", 1), cert)
	if ok.StatusCode != 200 {
		t.Fatalf("corever=1 launch = %+v", ok)
	}
	if !strings.HasPrefix(ok.SessionURL0, "rtspenc://") {
		t.Errorf("sessionUrl0 = %q, want rtspenc scheme", ok.SessionURL0)
	}
}

func TestTerminateAppUUID(t *testing.T) {
	h := newTestHost(t)
	_, cert := h.pairClient(t, "Phone", perm.All)

	if _, body := h.doTLS(t, "GET", "/launch?"+launchQuery("aaaaaaaa-1111-2222-3333-444444444444", 0), cert); body.StatusCode != 200 {
		t.Fatalf("launch = %+v", body)
	}

	_, body := h.doTLS(t, "GET", "/launch?"+launchQuery(apps.TerminateAppUUID, 0), cert)
	if body.StatusCode != 410 {
		t.Errorf("terminate status = %d, want 410", body.StatusCode)
	}
	if h.launcher.Running() != 0 {
		t.Error("app still running after terminate request")
	}
}

func TestResumeWithoutRunningApp(t *testing.T) {
	h := newTestHost(t)
	_, cert := h.pairClient(t, "Phone", perm.All)

	_, body := h.doTLS(t, "GET", "/resume?rikey=000102030405060708090a0b0c0d0e0f&rikeyid=1", cert)
	if body.StatusCode != 503 {
		t.Errorf("status = %d, want 503", body.StatusCode)
	}
}

func TestResumeRunningApp(t *testing.T) {
	h := newTestHost(t)
	_, cert := h.pairClient(t, "Phone", perm.All)

	if _, body := h.doTLS(t, "GET", "/launch?"+launchQuery("aaaaaaaa-1111-2222-3333-444444444444", 0), cert); body.StatusCode != 200 {
		t.Fatalf("launch = %+v", body)
	}
	h.sessions.TerminateAll()

	_, body := h.doTLS(t, "GET", "/resume?rikey=000102030405060708090a0b0c0d0e0f&rikeyid=1", cert)
	if body.StatusCode != 200 {
		t.Fatalf("resume = %+v", body)
	}
	if body.Resume == nil || *body.Resume != 1 {
		t.Error("resume != 1")
	}
	if h.sessions.Count() != 1 {
		t.Errorf("session count = %d", h.sessions.Count())
	}
}

func TestCancel(t *testing.T) {
	h := newTestHost(t)
	_, cert := h.pairClient(t, "Phone", perm.All)

	if _, body := h.doTLS(t, "GET", "/launch?"+launchQuery("aaaaaaaa-1111-2222-3333-444444444444", 0), cert); body.StatusCode != 200 {
		t.Fatalf("launch = %+v", body)
	}

	_, body := h.doTLS(t, "GET", "/cancel", cert)
	if body.StatusCode != 200 || body.Cancel == nil || *body.Cancel != 1 {
		t.Errorf("cancel = %+v", body)
	}
	if h.sessions.Count() != 0 {
		t.Error("sessions survived cancel")
	}
	if h.launcher.Running() != 0 {
		t.Error("app survived cancel")
	}
}

func TestClipboardRequiresSessionAndPermission(t *testing.T) {
	h := newTestHost(t)
	client, cert := h.pairClient(t, "Phone", perm.All)

	// No live session yet: forbidden.
	w, _ := h.doTLSRaw(t, "GET", "/actions/clipboard?type=text", cert)
	if w.Code != http.StatusForbidden {
		t.Errorf("status without session = %d, want 403", w.Code)
	}

	// With a live session the read succeeds.
	ls := &session.LaunchSession{ID: 1, UniqueID: client.UUID, DeviceName: client.Name, Perm: client.Perm}
	ls.SetStreamKeys("000102030405060708090a0b0c0d0e0f", 1, 0)
	h.sessions.Alloc(ls)

	w, _ = h.doTLSRaw(t, "GET", "/actions/clipboard?type=text", cert)
	if w.Code != http.StatusOK {
		t.Errorf("status with session = %d, want 200", w.Code)
	}

	// Unsupported clipboard type.
	w, _ = h.doTLSRaw(t, "GET", "/actions/clipboard?type=image", cert)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status for image type = %d, want 400", w.Code)
	}

	// A client without the clipboard permission is rejected outright.
	_, limitedCert := h.pairClient(t, "Limited", perm.Default)
	w, _ = h.doTLSRaw(t, "GET", "/actions/clipboard?type=text", limitedCert)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status without permission = %d, want 401", w.Code)
	}
}

// doTLSRaw performs a TLS-route request without decoding the body as XML.
func (h *testHost) doTLSRaw(t *testing.T, method, target string, cert *x509.Certificate) (*httptest.ResponseRecorder, string) {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	req.TLS = &tls.ConnectionState{PeerCertificates: []*x509.Certificate{cert}}
	w := httptest.NewRecorder()
	h.tls.ServeHTTP(w, req)
	return w, w.Body.String()
}
