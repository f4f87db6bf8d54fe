// If you are AI: This file provides the wired test host for control-plane tests.
// TLS identity is injected by faking the request's connection state.

package gamestream

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"glint/internal/apps"
	"glint/internal/config"
	"glint/internal/crypto"
	"glint/internal/identity"
	"glint/internal/launcher"
	"glint/internal/pairing"
	"glint/internal/perm"
	"glint/internal/platform"
	"glint/internal/session"
)

// testHost bundles a fully wired service with handles for manipulation.
type testHost struct {
	svc      *Service
	cfg      *config.Config
	clients  *identity.Registry
	engine   *pairing.Engine
	catalog  *apps.Catalog
	launcher *launcher.Launcher
	sessions *session.Registry

	plain http.Handler
	tls   http.Handler
}

func newTestHost(t *testing.T) *testHost {
	t.Helper()

	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "absent.conf"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.FileApps = filepath.Join(dir, "apps.json")
	cfg.FileState = filepath.Join(dir, "state.json")

	creds, err := crypto.GenCreds(cfg.HostName, 2048)
	if err != nil {
		t.Fatalf("GenCreds: %v", err)
	}

	clients := identity.NewRegistry(cfg.FileState, true, nil)
	if err := clients.Load(); err != nil {
		t.Fatalf("registry: %v", err)
	}

	host, err := identity.NewHost(clients.UniqueID(), creds.CertPEM, creds.KeyPEM)
	if err != nil {
		t.Fatalf("host: %v", err)
	}

	appsJSON := `{"version": 2, "apps": [
		{"uuid": "aaaaaaaa-1111-2222-3333-444444444444", "name": "Alpha"},
		{"uuid": "bbbbbbbb-1111-2222-3333-444444444444", "name": "Beta"}
	]}`
	if err := os.WriteFile(cfg.FileApps, []byte(appsJSON), 0o644); err != nil {
		t.Fatalf("write apps: %v", err)
	}

	catalog := apps.NewCatalog(dir, nil)
	if err := catalog.Load(cfg.FileApps, apps.Options{}); err != nil {
		t.Fatalf("catalog: %v", err)
	}

	sessions := session.NewRegistry(session.Config{}, nil)
	manager := platform.NewVDisplayManager(nil, time.Minute, nil)
	l := launcher.New(cfg, catalog, manager, platform.NopProber{}, platform.NopDisplayDevice{}, sessions.Count, nil)
	engine := pairing.NewEngine(host, clients, nil)

	svc := New(Deps{
		Config:   cfg,
		Host:     host,
		Clients:  clients,
		Engine:   engine,
		Catalog:  catalog,
		Launcher: l,
		Sessions: sessions,
	})

	t.Cleanup(sessions.TerminateAll)
	t.Cleanup(func() { l.Terminate(false, false) })

	return &testHost{
		svc:      svc,
		cfg:      cfg,
		clients:  clients,
		engine:   engine,
		catalog:  catalog,
		launcher: l,
		sessions: sessions,
		plain:    svc.PlainRoutes(),
		tls:      svc.TLSRoutes(),
	}
}

// pairClient inserts a paired client directly and returns it with its cert.
func (h *testHost) pairClient(t *testing.T, name string, mask perm.Mask) (identity.PairedClient, *x509.Certificate) {
	t.Helper()

	creds, err := crypto.GenCreds(name, 2048)
	if err != nil {
		t.Fatalf("GenCreds: %v", err)
	}
	added, err := h.clients.Add(name, creds.CertPEM)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if mask != added.Perm {
		if _, err := h.clients.Update(added.UUID, added.Name, "", mask, nil, nil, true, true, false); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	stored, _ := h.clients.Find(added.UUID)
	cert, _ := crypto.ParseCert([]byte(creds.CertPEM))
	return stored, cert
}

// doTLS performs a request against the TLS route table with a peer cert.
func (h *testHost) doTLS(t *testing.T, method, target string, cert *x509.Certificate) (*httptest.ResponseRecorder, Root) {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	req.TLS = &tls.ConnectionState{PeerCertificates: []*x509.Certificate{cert}}
	w := httptest.NewRecorder()
	h.tls.ServeHTTP(w, req)

	var body Root
	if err := xml.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
	return w, body
}

func launchQuery(appUUID string, corever int) string {
	v := url.Values{}
	v.Set("rikey", "000102030405060708090a0b0c0d0e0f")
	v.Set("rikeyid", "1")
	v.Set("localAudioPlayMode", "0")
	v.Set("appuuid", appUUID)
	v.Set("mode", "1920x1080x60")
	if corever > 0 {
		v.Set("corever", "1")
	}
	return v.Encode()
}

