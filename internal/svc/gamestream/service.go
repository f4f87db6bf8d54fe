// If you are AI: This file wires the gamestream control plane service.
// Each listener gets its own route table over shared handlers; the plain one
// serves only serverinfo and pairing, without a peer identity.

package gamestream

import (
	"context"
	"crypto/tls"
	"crypto/x509"
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

// Wire protocol constants reported by serverinfo.
const (
	AppVersion = "0.4.3.0"
	GfeVersion = "3.23.0.74"

	// Codec mode flags.
	SCMH264      = 0x0001
	SCMHEVC      = 0x0100
	SCMHEVCMain10 = 0x0200

	// maxLumaPixelsHEVC is the value clients expect when HEVC is available.
	maxLumaPixelsHEVC = "1869449984"
)

// peerKey carries the authenticated client through the request context.
type peerKey struct{}

// Service is the gamestream control plane shared by both listeners.
type Service struct {
	cfg      *config.Config
	host     *identity.Host
	clients  *identity.Registry
	engine   *pairing.Engine
	catalog  *apps.Catalog
	launcher *launcher.Launcher
	sessions *session.Registry

	clipboard platform.Clipboard
	resolveMAC platform.MACResolver
	vdisplayReady func() bool

	// hostAudio persists the last localAudioPlayMode; resume requests
	// don't always carry the parameter.
	mu        sync.Mutex
	hostAudio bool

	logger *zap.Logger
}

// Deps bundles the service's collaborators.
type Deps struct {
	Config        *config.Config
	Host          *identity.Host
	Clients       *identity.Registry
	Engine        *pairing.Engine
	Catalog       *apps.Catalog
	Launcher      *launcher.Launcher
	Sessions      *session.Registry
	Clipboard     platform.Clipboard
	ResolveMAC    platform.MACResolver
	VDisplayReady func() bool
	Logger        *zap.Logger
}

// New creates the gamestream service.
func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clipboard == nil {
		deps.Clipboard = &platform.MemClipboard{}
	}
	if deps.ResolveMAC == nil {
		deps.ResolveMAC = func(string) string { return "00:00:00:00:00:00" }
	}
	if deps.VDisplayReady == nil {
		deps.VDisplayReady = func() bool { return false }
	}
	return &Service{
		cfg:           deps.Config,
		host:          deps.Host,
		clients:       deps.Clients,
		engine:        deps.Engine,
		catalog:       deps.Catalog,
		launcher:      deps.Launcher,
		sessions:      deps.Sessions,
		clipboard:     deps.Clipboard,
		resolveMAC:    deps.ResolveMAC,
		vdisplayReady: deps.VDisplayReady,
		logger:        logger.Named("gamestream"),
	}
}

// peerFrom returns the authenticated client for the request, nil when the
// request arrived on the plain listener.
func peerFrom(r *http.Request) *identity.PairedClient {
	peer, _ := r.Context().Value(peerKey{}).(*identity.PairedClient)
	return peer
}

// PlainRoutes serves the anonymous listener: serverinfo and the pair flow.
func (s *Service) PlainRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /serverinfo", s.handleServerInfo)
	mux.HandleFunc("GET /pair", s.handlePair)
	mux.HandleFunc("/", s.handleNotFound)
	return mux
}

// TLSRoutes serves the mutual-TLS listener with the full route table.
// Requests reach the handlers annotated with the verified paired client.
func (s *Service) TLSRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /serverinfo", s.handleServerInfo)
	mux.HandleFunc("GET /pair", s.handlePair)
	mux.HandleFunc("GET /applist", s.handleAppList)
	mux.HandleFunc("GET /appasset", s.handleAppAsset)
	mux.HandleFunc("GET /launch", s.handleLaunch)
	mux.HandleFunc("GET /resume", s.handleResume)
	mux.HandleFunc("GET /cancel", s.handleCancel)
	mux.HandleFunc("GET /actions/clipboard", s.handleGetClipboard)
	mux.HandleFunc("POST /actions/clipboard", s.handleSetClipboard)
	mux.HandleFunc("/", s.handleNotFound)
	return s.verifyPeer(mux)
}

// verifyPeer resolves the TLS peer certificate to a paired client and
// annotates the request. Unknown certificates get a diagnostic 401.
func (s *Service) verifyPeer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			s.unauthorized(w, r)
			return
		}

		client, err := s.clients.VerifyPeer(r.TLS.PeerCertificates[0])
		if err != nil {
			s.logger.Debug("peer certificate denied",
				zap.String("subject", r.TLS.PeerCertificates[0].Subject.CommonName))
			s.unauthorized(w, r)
			return
		}

		s.logger.Debug("peer verified", zap.String("device", client.Name))
		ctx := context.WithValue(r.Context(), peerKey{}, &client)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// unauthorized answers an unverified peer with diagnostic XML.
func (s *Service) unauthorized(w http.ResponseWriter, r *http.Request) {
	s.writeXML(w, http.StatusUnauthorized, &Root{
		StatusCode:    401,
		Query:         r.URL.Path,
		StatusMessage: "The client is not authorized. Certificate verification failed.",
	})
}

// handleNotFound answers unknown routes in protocol shape.
func (s *Service) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeXML(w, http.StatusNotFound, &Root{StatusCode: 404})
}

// TLSConfig builds the mutual-TLS listener configuration. Any client
// certificate is accepted at the handshake; verification against the
// paired-client registry happens per request so the server can answer
// unknown peers with a diagnostic body instead of a TLS alert.
func (s *Service) TLSConfig() (*tls.Config, error) {
	cert, err := tls.X509KeyPair([]byte(s.host.CertPEM), []byte(s.host.KeyPEM))
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAnyClientCert,
		// Paired-client certs are self-signed; chain building is meaningless.
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return nil
		},
	}, nil
}
