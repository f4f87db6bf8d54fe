// If you are AI: This file contains unit tests for the launch orchestrator.
// Real commands run through /bin/sh wrappers writing to a scratch directory.

package launcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"glint/internal/apps"
	"glint/internal/platform"
)

func TestExecuteRunsPrepAndApp(t *testing.T) {
	cfg := testConfig(t)
	l, _, _ := newTestLauncher(t, cfg, platform.NopProber{}, nil)

	dir := t.TempDir()
	app, marker := markerApp(t, dir)

	if err := l.Execute(app, newLaunchSession("client-1")); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if l.Running() != 1001 {
		t.Errorf("Running = %d, want 1001", l.Running())
	}
	if l.RunningUUID() != "app-uuid-1" {
		t.Errorf("RunningUUID = %q", l.RunningUUID())
	}

	// Let the main command write its marker before tearing down.
	time.Sleep(300 * time.Millisecond)

	l.Terminate(false, false)

	if l.Running() != 0 {
		t.Errorf("Running after terminate = %d", l.Running())
	}

	got := readMarker(t, marker)
	want := []string{"do1", "do2", "main", "undo2", "undo1"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("command order = %v, want %v", got, want)
	}
}

func TestPrepFailureRunsPartialUndo(t *testing.T) {
	cfg := testConfig(t)
	l, display, _ := newTestLauncher(t, cfg, platform.NopProber{}, nil)

	dir := t.TempDir()
	marker := filepath.Join(dir, "order.log")
	app := apps.App{
		ID:   "1002",
		UUID: "app-uuid-2",
		Name: "Failing App",
		Cmd:  "/bin/true",
		PrepCmds: []apps.PrepCmd{
			{Do: fmt.Sprintf("/bin/sh -c 'echo do1 >> %s'", marker), Undo: fmt.Sprintf("/bin/sh -c 'echo undo1 >> %s'", marker)},
			{Do: "/bin/false", Undo: fmt.Sprintf("/bin/sh -c 'echo undo2 >> %s'", marker)},
			{Do: fmt.Sprintf("/bin/sh -c 'echo do3 >> %s'", marker), Undo: fmt.Sprintf("/bin/sh -c 'echo undo3 >> %s'", marker)},
		},
	}

	err := l.Execute(app, newLaunchSession("client-1"))
	if err == nil {
		t.Fatal("Execute should fail when a prep command fails")
	}

	// Only the command that executed gets its undo; the failed and the
	// never-started ones don't.
	got := readMarker(t, marker)
	want := []string{"do1", "undo1"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("command order = %v, want %v", got, want)
	}
	if display.reverted == 0 {
		t.Error("display not reverted on failed launch")
	}
	if l.Running() != 0 {
		t.Error("launcher still reports a running app")
	}
}

func TestEncoderProbeFailureReturns503(t *testing.T) {
	cfg := testConfig(t)
	l, _, _ := newTestLauncher(t, cfg, failingProber{probeErr: platform.ErrNoDisplay, allowProbe: true}, nil)

	app := apps.App{ID: "1003", UUID: "u", Name: "App", Cmd: "/bin/true"}
	err := l.Execute(app, newLaunchSession("client-1"))
	if err == nil {
		t.Fatal("Execute should fail when probing fails")
	}
	if !errors.Is(err, ErrEncoderInit) {
		t.Errorf("error = %v, want ErrEncoderInit", err)
	}
}

func TestPlaceboDesktopLaunch(t *testing.T) {
	cfg := testConfig(t)
	l, _, _ := newTestLauncher(t, cfg, platform.NopProber{}, nil)

	app := apps.App{ID: "2001", UUID: "desktop", Name: "Desktop"}
	if err := l.Execute(app, newLaunchSession("client-1")); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// No command: the desktop placebo still counts as running.
	if l.Running() != 2001 {
		t.Errorf("Running = %d, want 2001", l.Running())
	}
	l.Terminate(false, false)
}

func TestAutoDetachTreatsQuickCleanExitAsRunning(t *testing.T) {
	cfg := testConfig(t)
	l, _, _ := newTestLauncher(t, cfg, platform.NopProber{}, nil)

	app := apps.App{
		ID: "3001", UUID: "u", Name: "Launcher Stub",
		Cmd:        "/bin/true",
		AutoDetach: true,
	}
	if err := l.Execute(app, newLaunchSession("client-1")); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Give /bin/true a moment to exit.
	time.Sleep(300 * time.Millisecond)

	if l.Running() != 3001 {
		t.Errorf("Running = %d, want 3001 via auto-detach", l.Running())
	}
	l.Terminate(false, false)
}

func TestNonDetachExitCleansUp(t *testing.T) {
	cfg := testConfig(t)
	l, _, _ := newTestLauncher(t, cfg, platform.NopProber{}, nil)

	app := apps.App{
		ID: "3002", UUID: "u", Name: "Short App",
		Cmd:        "/bin/true",
		AutoDetach: false,
	}
	if err := l.Execute(app, newLaunchSession("client-1")); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	if l.Running() != 0 {
		t.Errorf("Running = %d, want 0 after the app exited", l.Running())
	}
}

func TestExitTimeoutForceKills(t *testing.T) {
	cfg := testConfig(t)
	l, _, _ := newTestLauncher(t, cfg, platform.NopProber{}, nil)

	// The app ignores SIGTERM; termination must still finish quickly via
	// the force-kill fallback.
	app := apps.App{
		ID: "5001", UUID: "u", Name: "Stubborn",
		Cmd:                "/bin/sh -c 'trap \"\" TERM; sleep 60'",
		ExitTimeoutSeconds: 1,
		WaitAll:            true,
	}
	if err := l.Execute(app, newLaunchSession("client-1")); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	l.Terminate(false, false)
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("terminate took %v", elapsed)
	}
	if l.Running() != 0 {
		t.Error("app still reported running after terminate")
	}
}

func TestTerminateIdempotent(t *testing.T) {
	cfg := testConfig(t)
	l, _, _ := newTestLauncher(t, cfg, platform.NopProber{}, nil)

	// Terminate with nothing running is a no-op.
	l.Terminate(false, false)
	l.Terminate(true, false)
	if l.Running() != 0 {
		t.Error("launcher invented a running app")
	}
}

