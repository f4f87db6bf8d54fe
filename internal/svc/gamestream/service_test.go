// If you are AI: This file contains unit tests for serverinfo, pairing and applist.

package gamestream

import (
	"encoding/hex"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"strings"

	"glint/internal/crypto"
	"glint/internal/perm"
)

func TestServerInfoAnonymous(t *testing.T) {
	h := newTestHost(t)

	req := httptest.NewRequest("GET", "/serverinfo", nil)
	w := httptest.NewRecorder()
	h.plain.ServeHTTP(w, req)

	var body Root
	if err := xml.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.StatusCode != 200 {
		t.Errorf("status_code = %d", body.StatusCode)
	}
	if body.MAC != "00:00:00:00:00:00" {
		t.Errorf("anonymous MAC = %q, want placeholder", body.MAC)
	}
	if body.Permission != "0" {
		t.Errorf("anonymous Permission = %q", body.Permission)
	}
	if body.State != "SUNSHINE_SERVER_FREE" {
		t.Errorf("state = %q", body.State)
	}
	if body.HTTPSPort == nil || *body.HTTPSPort != h.cfg.HTTPSPort() {
		t.Error("HttpsPort missing or wrong")
	}
}

func TestServerInfoAuthenticated(t *testing.T) {
	h := newTestHost(t)
	_, cert := h.pairClient(t, "Phone", perm.All)

	_, body := h.doTLS(t, "GET", "/serverinfo?uniqueid=abc", cert)

	if body.Permission == "0" || body.Permission == "" {
		t.Errorf("Permission = %q, want the client mask", body.Permission)
	}
	if body.PairStatus == nil || *body.PairStatus != 1 {
		t.Error("PairStatus should be 1 with a uniqueid over TLS")
	}
	if body.CurrentGame == nil || *body.CurrentGame != 0 {
		t.Error("currentgame should be 0 with nothing running")
	}
}

func TestUnknownCertRejected(t *testing.T) {
	h := newTestHost(t)
	h.pairClient(t, "Phone", perm.All)

	strangerCreds, _ := crypto.GenCreds("stranger", 2048)
	strangerCert, _ := crypto.ParseCert([]byte(strangerCreds.CertPEM))

	w, body := h.doTLS(t, "GET", "/applist", strangerCert)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("HTTP status = %d, want 401", w.Code)
	}
	if body.StatusCode != 401 {
		t.Errorf("status_code = %d, want 401", body.StatusCode)
	}
}

func TestAppListPermissions(t *testing.T) {
	h := newTestHost(t)
	_, okCert := h.pairClient(t, "Allowed", perm.All)
	_, noCert := h.pairClient(t, "Denied", perm.Mask(perm.InputMouse))

	_, body := h.doTLS(t, "GET", "/applist", okCert)
	if len(body.Apps) != 2 {
		t.Errorf("apps = %d, want 2", len(body.Apps))
	}
	// Legacy ordering pads titles with zero-width characters.
	if !strings.HasSuffix(body.Apps[0].AppTitle, "Alpha") {
		t.Errorf("first app title = %q", body.Apps[0].AppTitle)
	}

	_, denied := h.doTLS(t, "GET", "/applist", noCert)
	if len(denied.Apps) != 1 || denied.Apps[0].AppTitle != "Permission Denied" {
		t.Errorf("denied list = %+v", denied.Apps)
	}
}

func TestPairOverHTTP(t *testing.T) {
	h := newTestHost(t)

	creds, _ := crypto.GenCreds("moonlight", 2048)
	certHex := hex.EncodeToString([]byte(creds.CertPEM))

	// Kick off phase one; the handler suspends until the PIN arrives.
	done := make(chan Root, 1)
	go func() {
		v := url.Values{}
		v.Set("uniqueid", "pair-client")
		v.Set("phrase", "getservercert")
		v.Set("devicename", "Phone")
		v.Set("salt", "000102030405060708090a0b0c0d0e0f")
		v.Set("clientcert", certHex)

		req := httptest.NewRequest("GET", "/pair?"+v.Encode(), nil)
		w := httptest.NewRecorder()
		h.plain.ServeHTTP(w, req)

		var body Root
		xml.Unmarshal(w.Body.Bytes(), &body)
		done <- body
	}()

	// Wait until the engine has a pending session, then feed the PIN.
	deadline := time.Now().Add(2 * time.Second)
	for !h.engine.HasPending() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !h.engine.SubmitPin("1234", "") {
		t.Fatal("no pending pairing session")
	}

	body := <-done
	if body.StatusCode != 200 || body.Paired == nil || *body.Paired != 1 {
		t.Fatalf("phase 1 = %+v", body)
	}
	if body.PlainCert == "" {
		t.Error("plaincert missing")
	}
}

func TestPairChallengeProbe(t *testing.T) {
	h := newTestHost(t)

	req := httptest.NewRequest("GET", "/pair?uniqueid=x&phrase=pairchallenge", nil)
	w := httptest.NewRecorder()
	h.plain.ServeHTTP(w, req)

	var body Root
	xml.Unmarshal(w.Body.Bytes(), &body)
	if body.StatusCode != 200 || body.Paired == nil || *body.Paired != 1 {
		t.Errorf("pairchallenge = %+v", body)
	}
}

func TestPairingDisabled(t *testing.T) {
	h := newTestHost(t)
	h.cfg.EnablePairing = false

	req := httptest.NewRequest("GET", "/pair?uniqueid=x&phrase=getservercert", nil)
	w := httptest.NewRecorder()
	h.plain.ServeHTTP(w, req)

	var body Root
	xml.Unmarshal(w.Body.Bytes(), &body)
	if body.StatusCode != 403 {
		t.Errorf("status = %d, want 403", body.StatusCode)
	}
}

