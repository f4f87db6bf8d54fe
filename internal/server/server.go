// If you are AI: This file assembles the host's listeners and their lifecycle.
// Plain and TLS gamestream listeners share routes; the admin API is separate.

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"glint/internal/config"
	"glint/internal/svc/admin"
	"glint/internal/svc/gamestream"
)

// Server owns the three HTTP listeners of the host.
type Server struct {
	cfg *config.Config

	plainServer *http.Server
	tlsServer   *http.Server
	adminServer *http.Server

	logger *zap.Logger
}

// New wires the listeners from the two services. The gamestream TLS
// listener performs mutual TLS; the admin listener uses plain server TLS
// with cookie auth on top.
func New(cfg *config.Config, gs *gamestream.Service, adm *admin.Service, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tlsConfig, err := gs.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("gamestream tls: %w", err)
	}

	adminTLS := tlsConfig.Clone()
	adminTLS.ClientAuth = tls.NoClientCert
	adminTLS.VerifyPeerCertificate = nil

	return &Server{
		cfg: cfg,
		plainServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.HTTPPort()),
			Handler: gs.PlainRoutes(),
		},
		tlsServer: &http.Server{
			Addr:      fmt.Sprintf(":%d", cfg.HTTPSPort()),
			Handler:   gs.TLSRoutes(),
			TLSConfig: tlsConfig,
		},
		adminServer: &http.Server{
			Addr:      fmt.Sprintf(":%d", cfg.AdminPort()),
			Handler:   adm.Routes(),
			TLSConfig: adminTLS,
		},
		logger: logger.Named("server"),
	}, nil
}

// Start brings up all three listeners and blocks until the first one fails
// or Shutdown is called. A clean shutdown returns nil.
func (s *Server) Start() error {
	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	serve := func(name string, run func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Info("listener starting", zap.String("name", name))
			if err := run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s listener: %w", name, err)
			}
		}()
	}

	serve("gamestream-http", func() error {
		return s.plainServer.ListenAndServe()
	})
	serve("gamestream-https", func() error {
		ln, err := net.Listen("tcp", s.tlsServer.Addr)
		if err != nil {
			return err
		}
		return s.tlsServer.Serve(tls.NewListener(ln, s.tlsServer.TLSConfig))
	})
	serve("admin", func() error {
		ln, err := net.Listen("tcp", s.adminServer.Addr)
		if err != nil {
			return err
		}
		return s.adminServer.Serve(tls.NewListener(ln, s.adminServer.TLSConfig))
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case err := <-errCh:
		// One listener failed; take the others down too.
		sCtx, cancel := context.WithCancel(context.Background())
		cancel()
		s.Shutdown(sCtx)
		return err
	case <-done:
		return nil
	}
}

// Shutdown gracefully stops all listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, srv := range []*http.Server{s.plainServer, s.tlsServer, s.adminServer} {
		if err := srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
