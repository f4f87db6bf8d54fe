// If you are AI: This file manages the virtual-display driver collaborator.
// A watchdog pings the driver and fails it after three missed pings.

package platform

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DriverStatus is the virtual-display driver's health.
type DriverStatus int

// Driver states reported to serverinfo and the launcher.
const (
	DriverUnknown DriverStatus = iota
	DriverOK
	DriverUnavailable
	DriverWatchdogFailed
)

// ErrDriverUnavailable is returned when the driver cannot be opened.
var ErrDriverUnavailable = errors.New("platform: virtual display driver unavailable")

// watchdogFailLimit is how many consecutive missed pings fail the driver.
const watchdogFailLimit = 3

// VDisplayDriver is the platform-specific virtual display implementation.
type VDisplayDriver interface {
	// Open acquires the driver handle.
	Open() error

	// Close releases the driver handle.
	Close()

	// Ping checks driver liveness.
	Ping() error

	// Create instantiates a display matching the mode and returns its name.
	Create(deviceUUID, deviceName string, width, height, fpsMilli int, guid [16]byte) (string, error)

	// Remove tears down the display identified by guid.
	Remove(guid [16]byte) bool

	// SetMode applies a display mode to a named display.
	SetMode(name string, width, height, fpsMilli int) error

	// HDR state access for a named display.
	GetHDR(name string) bool
	SetHDR(name string, enabled bool) bool
}

// VDisplayManager wraps a driver with status tracking and the ping watchdog.
type VDisplayManager struct {
	mu     sync.Mutex
	driver VDisplayDriver
	status DriverStatus

	pingInterval time.Duration
	stopPing     chan struct{}
	pingDone     chan struct{}

	logger *zap.Logger
}

// NewVDisplayManager wraps driver. timeout is the driver's own liveness
// window; the watchdog pings at a third of it.
func NewVDisplayManager(driver VDisplayDriver, timeout time.Duration, logger *zap.Logger) *VDisplayManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VDisplayManager{
		driver:       driver,
		status:       DriverUnknown,
		pingInterval: timeout / 3,
		logger:       logger.Named("vdisplay"),
	}
}

// Status returns the current driver status.
func (m *VDisplayManager) Status() DriverStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Ready reports whether the driver is usable right now.
func (m *VDisplayManager) Ready() bool {
	return m.Status() == DriverOK
}

// Init opens the driver and starts the watchdog. Safe to call again after
// a failure; it re-opens from scratch.
func (m *VDisplayManager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.driver == nil {
		m.status = DriverUnavailable
		return ErrDriverUnavailable
	}
	if m.status == DriverOK {
		return nil
	}

	if err := m.driver.Open(); err != nil {
		m.status = DriverUnavailable
		return err
	}
	m.status = DriverOK

	m.stopPing = make(chan struct{})
	m.pingDone = make(chan struct{})
	go m.watchdog(m.stopPing, m.pingDone)
	return nil
}

// watchdog pings the driver until stopped or three consecutive failures.
func (m *VDisplayManager) watchdog(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := m.driver.Ping(); err != nil {
				failures++
				m.logger.Warn("driver ping failed",
					zap.Int("consecutive", failures), zap.Error(err))
				if failures >= watchdogFailLimit {
					m.failDriver()
					return
				}
			} else {
				failures = 0
			}
		}
	}
}

// failDriver marks the driver dead and releases its handle.
func (m *VDisplayManager) failDriver() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status = DriverWatchdogFailed
	m.driver.Close()
	m.logger.Error("virtual display driver failed watchdog, handle closed")
}

// Shutdown stops the watchdog and closes the driver.
func (m *VDisplayManager) Shutdown() {
	m.mu.Lock()
	stop, done := m.stopPing, m.pingDone
	wasOK := m.status == DriverOK
	m.status = DriverUnknown
	m.stopPing, m.pingDone = nil, nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	if wasOK {
		m.driver.Close()
	}
}

// Create forwards to the driver when it is healthy.
func (m *VDisplayManager) Create(deviceUUID, deviceName string, width, height, fpsMilli int, guid [16]byte) (string, error) {
	if !m.Ready() {
		return "", ErrDriverUnavailable
	}
	return m.driver.Create(deviceUUID, deviceName, width, height, fpsMilli, guid)
}

// Remove forwards to the driver.
func (m *VDisplayManager) Remove(guid [16]byte) bool {
	if !m.Ready() {
		return false
	}
	return m.driver.Remove(guid)
}

// SetMode forwards to the driver.
func (m *VDisplayManager) SetMode(name string, width, height, fpsMilli int) error {
	if !m.Ready() {
		return ErrDriverUnavailable
	}
	return m.driver.SetMode(name, width, height, fpsMilli)
}

// GetHDR forwards to the driver.
func (m *VDisplayManager) GetHDR(name string) bool {
	if !m.Ready() {
		return false
	}
	return m.driver.GetHDR(name)
}

// SetHDR forwards to the driver.
func (m *VDisplayManager) SetHDR(name string, enabled bool) bool {
	if !m.Ready() {
		return false
	}
	return m.driver.SetHDR(name, enabled)
}
