// If you are AI: This file provides shared fixtures for the launcher tests.
// Fake probers, display drivers and marker-file apps live here.

package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"glint/internal/apps"
	"glint/internal/config"
	"glint/internal/perm"
	"glint/internal/platform"
	"glint/internal/session"
)

// failingProber simulates a host without a capture-capable display.
type failingProber struct {
	probeErr   error
	allowProbe bool
}

func (p failingProber) Probe() error       { return p.probeErr }
func (p failingProber) AllowProbing() bool { return p.allowProbe }

// recordingDisplay tracks collaborator calls.
type recordingDisplay struct {
	configured []platform.DisplaySettings
	reverted   int
	resets     int
}

func (d *recordingDisplay) Configure(s platform.DisplaySettings) error {
	d.configured = append(d.configured, s)
	return nil
}
func (d *recordingDisplay) Revert()           { d.reverted++ }
func (d *recordingDisplay) ResetPersistence() { d.resets++ }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.conf"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.FileApps = filepath.Join(t.TempDir(), "apps.json")
	return cfg
}

func newTestLauncher(t *testing.T, cfg *config.Config, prober platform.EncoderProber, driver VDriver) (*Launcher, *recordingDisplay, *platform.VDisplayManager) {
	t.Helper()

	catalog := apps.NewCatalog(t.TempDir(), nil)
	manager := platform.NewVDisplayManager(driver, time.Minute, nil)
	display := &recordingDisplay{}

	l := New(cfg, catalog, manager, prober, display, nil, nil)
	return l, display, manager
}

// VDriver aliases the platform driver interface for test fakes.
type VDriver = platform.VDisplayDriver

// scriptDriver is a minimal working virtual display driver.
type scriptDriver struct {
	created map[[16]byte]string
	hdr     map[string]bool
}

func newScriptDriver() *scriptDriver {
	return &scriptDriver{created: map[[16]byte]string{}, hdr: map[string]bool{}}
}

func (d *scriptDriver) Open() error { return nil }
func (d *scriptDriver) Close()      {}
func (d *scriptDriver) Ping() error { return nil }
func (d *scriptDriver) Create(deviceUUID, deviceName string, w, h, fps int, guid [16]byte) (string, error) {
	name := "GLINT-VD-" + deviceName
	d.created[guid] = name
	return name, nil
}
func (d *scriptDriver) Remove(guid [16]byte) bool {
	if _, ok := d.created[guid]; !ok {
		return false
	}
	delete(d.created, guid)
	return true
}
func (d *scriptDriver) SetMode(name string, w, h, fps int) error { return nil }
func (d *scriptDriver) GetHDR(name string) bool                  { return d.hdr[name] }
func (d *scriptDriver) SetHDR(name string, enabled bool) bool {
	d.hdr[name] = enabled
	return true
}

func newLaunchSession(clientUUID string) *session.LaunchSession {
	return &session.LaunchSession{
		ID:         1,
		DeviceName: "Test Client",
		UniqueID:   clientUUID,
		Perm:       perm.All,
		Width:      1920,
		Height:     1080,
		FPSMilli:   60000,
	}
}

func markerApp(t *testing.T, dir string) (apps.App, string) {
	t.Helper()
	marker := filepath.Join(dir, "order.log")
	app := apps.App{
		ID:                 "1001",
		UUID:               "app-uuid-1",
		Name:               "Test App",
		Cmd:                fmt.Sprintf("/bin/sh -c 'echo main >> %s; sleep 30'", marker),
		ExitTimeoutSeconds: 1,
		WaitAll:            true,
		PrepCmds: []apps.PrepCmd{
			{Do: fmt.Sprintf("/bin/sh -c 'echo do1 >> %s'", marker), Undo: fmt.Sprintf("/bin/sh -c 'echo undo1 >> %s'", marker)},
			{Do: fmt.Sprintf("/bin/sh -c 'echo do2 >> %s'", marker), Undo: fmt.Sprintf("/bin/sh -c 'echo undo2 >> %s'", marker)},
		},
	}
	return app, marker
}

func readMarker(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return strings.Fields(string(data))
}

