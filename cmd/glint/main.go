// If you are AI: This is the main entrypoint for the glint gamestream host.
// It wires configuration, identity, services and listeners, then runs until
// a signal or an admin request shuts it down.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"glint/internal/apps"
	"glint/internal/config"
	"glint/internal/identity"
	"glint/internal/launcher"
	"glint/internal/pairing"
	"glint/internal/platform"
	"glint/internal/server"
	"glint/internal/session"
	"glint/internal/svc/admin"
	"glint/internal/svc/gamestream"
)

var version = "dev"

// vdisplayPingTimeout is the driver liveness window watched by the manager.
const vdisplayPingTimeout = 15 * time.Second

// main parses flags and hands control to run.
func main() {
	var (
		configPath string
		assetsDir  string
		freshState bool
	)

	root := &cobra.Command{
		Use:     "glint",
		Short:   "glint is a self-hosted gamestream server",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := run(configPath, assetsDir, freshState)
			if err != nil {
				return err
			}
			if code != server.ExitClean {
				os.Exit(code)
			}
			return nil
		},
	}

	root.Flags().StringVar(&configPath, "config", "glint.conf", "path to the configuration file")
	root.Flags().StringVar(&assetsDir, "assets", "assets", "path to the bundled asset directory")
	root.Flags().BoolVar(&freshState, "fresh-state", false, "don't persist pairing state to disk")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run builds and operates the host, returning the process exit code.
func run(configPath, assetsDir string, freshState bool) (int, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return 1, fmt.Errorf("load config: %w", err)
	}
	cfg.FreshState = freshState
	if err := cfg.Validate(); err != nil {
		return 1, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := buildLogger(cfg.LogLevel, cfg.LogPath)
	if err != nil {
		return 1, fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("glint starting", zap.String("version", version), zap.Int("port", cfg.Port))

	// Host identity: certificate, key and the paired-client registry.
	certPEM, keyPEM, err := identity.LoadOrCreateCreds(cfg.CertFile, cfg.KeyFile, cfg.HostName)
	if err != nil {
		return 1, err
	}

	clients := identity.NewRegistry(cfg.FileState, !freshState, logger)
	if err := clients.Load(); err != nil {
		return 1, fmt.Errorf("load state: %w", err)
	}

	host, err := identity.NewHost(clients.UniqueID(), certPEM, keyPEM)
	if err != nil {
		return 1, err
	}

	creds, err := identity.LoadCredentials(cfg.FileCredentials)
	if err != nil {
		return 1, fmt.Errorf("load credentials: %w", err)
	}

	// Platform collaborators. Real encoder, display and virtual-display
	// implementations register themselves per platform; the defaults keep
	// headless development hosts functional.
	vdisplay := platform.NewVDisplayManager(nil, vdisplayPingTimeout, logger)
	prober := platform.EncoderProber(platform.NopProber{})
	displayDevice := platform.DisplayDevice(platform.NopDisplayDevice{})

	catalog := apps.NewCatalog(assetsDir, logger)
	if err := catalog.Load(cfg.FileApps, apps.Options{
		VirtualDisplayReady: vdisplay.Ready(),
		EnableInputOnlyMode: cfg.EnableInputOnlyMode,
		GlobalPrepCmds:      cfg.GlobalPrepCmds,
	}); err != nil {
		return 1, fmt.Errorf("load apps: %w", err)
	}

	sessions := session.NewRegistry(session.Config{
		MinBitrateKbps: cfg.BitrateMinKbps,
		MaxBitrateKbps: cfg.BitrateMaxKbps,
	}, logger)

	launch := launcher.New(cfg, catalog, vdisplay, prober, displayDevice, sessions.Count, logger)
	engine := pairing.NewEngine(host, clients, logger)

	gs := gamestream.New(gamestream.Deps{
		Config:        cfg,
		Host:          host,
		Clients:       clients,
		Engine:        engine,
		Catalog:       catalog,
		Launcher:      launch,
		Sessions:      sessions,
		ResolveMAC:    platform.MACForLocalAddress,
		VDisplayReady: vdisplay.Ready,
		Logger:        logger,
	})

	adm := admin.New(admin.Deps{
		Config:   cfg,
		Clients:  clients,
		Sessions: sessions,
		Engine:   engine,
		Catalog:  catalog,
		Launcher: launch,
		Display:  displayDevice,
		Creds:    creds,
		Logger:   logger,
	})

	// Pairing commits surface on the admin event feed.
	engine.OnPaired = func(client identity.PairedClient) {
		adm.Events().Publish("client_paired", map[string]string{
			"name": client.Name,
			"uuid": client.UUID,
		})
	}

	srv, err := server.New(cfg, gs, adm, logger)
	if err != nil {
		return 1, err
	}

	shutdown := server.NewShutdownHandler(srv, context.Background())
	adm.Quit = shutdown.RequestQuit
	adm.Restart = shutdown.RequestRestart

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	code, err := waitExit(shutdown, errCh)

	// Tear down streaming state before the process exits so every prep
	// command gets its undo and displays are restored.
	engine.Clear()
	sessions.TerminateAll()
	launch.Terminate(false, false)
	vdisplay.Shutdown()

	if err != nil {
		logger.Error("shutdown error", zap.Error(err))
		return code, err
	}
	logger.Info("glint shut down cleanly")
	return code, nil
}

// waitExit waits for either a listener failure or a shutdown request.
func waitExit(shutdown *server.ShutdownHandler, errCh <-chan error) (int, error) {
	type result struct {
		code int
		err  error
	}

	waitCh := make(chan result, 1)
	go func() {
		code, err := shutdown.Wait()
		waitCh <- result{code, err}
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return 1, err
		}
		// Listeners stopped because a shutdown was requested; collect the
		// handler's verdict.
		res := <-waitCh
		return res.code, res.err
	case res := <-waitCh:
		return res.code, res.err
	}
}

// buildLogger constructs the process logger at the configured level,
// writing to stderr and the log file the admin API serves.
func buildLogger(level, path string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	if path != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, path)
	}
	return cfg.Build()
}
